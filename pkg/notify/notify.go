// Package notify carries user-facing status updates out of an export call.
//
// The engine reports progress as a sequence of [Status] values: zero or more
// loading states followed by exactly one terminal success or error. How the
// statuses are rendered (toast, spinner, log line, HTTP header) is up to the
// [Notifier] the caller supplies.
package notify

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

// Kind classifies a status.
type Kind string

// Status kinds.
const (
	KindLoading Kind = "loading"
	KindSuccess Kind = "success"
	KindError   Kind = "error"
)

// Display durations for terminal statuses.
const (
	ShortDuration = 3 * time.Second
	LongDuration  = 5 * time.Second
)

// Status is one user-facing message.
type Status struct {
	Kind     Kind
	Message  string
	Duration time.Duration // how long a terminal status stays visible; zero for loading
}

// Terminal reports whether s ends an export.
func (s Status) Terminal() bool {
	return s.Kind != KindLoading
}

// Loading returns a loading status.
func Loading(msg string) Status {
	return Status{Kind: KindLoading, Message: msg}
}

// Success returns a success status shown for d.
func Success(msg string, d time.Duration) Status {
	return Status{Kind: KindSuccess, Message: msg, Duration: d}
}

// Error returns an error status shown for d.
func Error(msg string, d time.Duration) Status {
	return Status{Kind: KindError, Message: msg, Duration: d}
}

// Notifier receives status updates. Implementations must not block for long;
// the export waits for Notify to return.
type Notifier interface {
	Notify(ctx context.Context, s Status)
}

// Func adapts a function to the Notifier interface.
type Func func(ctx context.Context, s Status)

// Notify calls f(ctx, s).
func (f Func) Notify(ctx context.Context, s Status) { f(ctx, s) }

// Discard drops every status.
var Discard Notifier = Func(func(context.Context, Status) {})

// =============================================================================
// Implementations
// =============================================================================

// Recorder keeps every status it receives. It is safe for concurrent use.
type Recorder struct {
	mu       sync.Mutex
	statuses []Status
}

// Notify implements Notifier.
func (r *Recorder) Notify(_ context.Context, s Status) {
	r.mu.Lock()
	r.statuses = append(r.statuses, s)
	r.mu.Unlock()
}

// Statuses returns a copy of the recorded statuses in arrival order.
func (r *Recorder) Statuses() []Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Status(nil), r.statuses...)
}

// Last returns the most recent status, or false if none was recorded.
func (r *Recorder) Last() (Status, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.statuses) == 0 {
		return Status{}, false
	}
	return r.statuses[len(r.statuses)-1], true
}

// LogNotifier writes statuses to a structured logger.
type LogNotifier struct {
	Logger *log.Logger
}

// NewLogNotifier returns a LogNotifier. A nil logger discards output.
func NewLogNotifier(l *log.Logger) *LogNotifier {
	if l == nil {
		l = log.NewWithOptions(io.Discard, log.Options{})
	}
	return &LogNotifier{Logger: l}
}

// Notify implements Notifier.
func (n *LogNotifier) Notify(_ context.Context, s Status) {
	switch s.Kind {
	case KindLoading:
		n.Logger.Debug(s.Message)
	case KindSuccess:
		n.Logger.Info(s.Message)
	case KindError:
		n.Logger.Error(s.Message)
	}
}

// Multi fans a status out to several notifiers in order. Nil entries are skipped.
func Multi(ns ...Notifier) Notifier {
	return Func(func(ctx context.Context, s Status) {
		for _, n := range ns {
			if n != nil {
				n.Notify(ctx, s)
			}
		}
	})
}
