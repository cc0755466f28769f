// Package janitor releases temporary resources created during an export.
//
// A Janitor is a LIFO stack of release functions. Code that acquires a
// resource (a DOM clone, a mutated inline style, an object URL) registers its
// release with [Janitor.Defer] immediately after acquiring it, and the owner
// of the scope calls [Janitor.Release] from a defer statement. Release runs
// on every exit path, including panics unwinding through the owner.
//
//	j := janitor.New(logger)
//	defer j.Release(ctx)
//
//	clone, err := el.Clone(ctx, css)
//	if err != nil {
//	    return err
//	}
//	j.Defer("remove clone", clone.Remove)
//
// Release functions receive a context detached from the caller's
// cancellation, so a cancelled export still cleans up after itself.
package janitor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

// ReleaseTimeout bounds the time all release functions of one janitor may take.
const ReleaseTimeout = 5 * time.Second

// ReleaseFunc releases one resource.
type ReleaseFunc func(ctx context.Context) error

type entry struct {
	name string
	fn   ReleaseFunc
}

// Janitor tracks resources that must be released before a scope exits.
// It is safe for concurrent use.
type Janitor struct {
	mu       sync.Mutex
	entries  []entry
	released bool
	logger   *log.Logger
}

// New creates a janitor. A nil logger discards diagnostics.
func New(logger *log.Logger) *Janitor {
	if logger == nil {
		logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	return &Janitor{logger: logger}
}

// Defer registers fn to run on Release. Registering after Release runs fn
// immediately, so late acquisitions are never leaked.
func (j *Janitor) Defer(name string, fn ReleaseFunc) {
	j.mu.Lock()
	if j.released {
		j.mu.Unlock()
		ctx, cancel := context.WithTimeout(context.Background(), ReleaseTimeout)
		defer cancel()
		if err := fn(ctx); err != nil {
			j.logger.Warn("late release failed", "resource", name, "error", err)
		}
		return
	}
	j.entries = append(j.entries, entry{name: name, fn: fn})
	j.mu.Unlock()
}

// Pending returns the number of resources not yet released.
func (j *Janitor) Pending() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return len(j.entries)
}

// Release runs all registered release functions in reverse order of
// registration. It runs each function exactly once even if called
// repeatedly, continues past failures and returns them joined.
func (j *Janitor) Release(ctx context.Context) error {
	j.mu.Lock()
	entries := j.entries
	j.entries = nil
	j.released = true
	j.mu.Unlock()

	if len(entries) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), ReleaseTimeout)
	defer cancel()

	var errs []error
	for i := len(entries) - 1; i >= 0; i-- {
		e := entries[i]
		if err := e.fn(ctx); err != nil {
			j.logger.Warn("release failed", "resource", e.name, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", e.name, err))
			continue
		}
		j.logger.Debug("released", "resource", e.name)
	}
	return errors.Join(errs...)
}
