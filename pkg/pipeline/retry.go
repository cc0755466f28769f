package pipeline

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/matzehuels/receiptify/pkg/errors"
	"github.com/matzehuels/receiptify/pkg/observability"
)

const (
	// DefaultMaxAttempts counts the first try.
	DefaultMaxAttempts = 3

	// DefaultBackoff is the fixed wait between attempts.
	DefaultBackoff = time.Second
)

// RetryPolicy bounds a retried operation.
type RetryPolicy struct {
	MaxAttempts int
	Backoff     time.Duration

	// Sleep waits d or until ctx is done. Defaults to a timer.
	Sleep func(ctx context.Context, d time.Duration) error
}

// DefaultRetryPolicy returns 3 attempts spaced 1 second apart.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: DefaultMaxAttempts, Backoff: DefaultBackoff}
}

func (p RetryPolicy) withDefaults() RetryPolicy {
	if p.MaxAttempts < 1 {
		p.MaxAttempts = DefaultMaxAttempts
	}
	if p.Backoff < 0 {
		p.Backoff = 0
	}
	if p.Sleep == nil {
		p.Sleep = sleep
	}
	return p
}

// RetryState is the progress of one retried operation.
type RetryState struct {
	Attempt     int
	MaxAttempts int
	LastError   error
}

// Exhausted reports whether no attempts remain.
func (s RetryState) Exhausted() bool { return s.Attempt >= s.MaxAttempts }

// Retry runs fn until it succeeds, fails with a non-retryable error, or the
// policy runs out of attempts. Only errors for which errors.Retryable
// reports true are retried, and the wait between attempts is fixed.
//
// fn must release everything it acquired before returning; the next attempt
// starts from scratch.
//
// When attempts run out, or ctx ends during a backoff, the returned error is
// EXPORT_FAILED wrapping the last attempt's error. A non-retryable error is
// returned unchanged.
func Retry(ctx context.Context, policy RetryPolicy, fn func(ctx context.Context, attempt int) error) (RetryState, error) {
	policy = policy.withDefaults()
	state := RetryState{MaxAttempts: policy.MaxAttempts}

	for {
		state.Attempt++
		err := fn(ctx, state.Attempt)
		if err == nil {
			state.LastError = nil
			return state, nil
		}
		state.LastError = err

		if !errors.Retryable(err) {
			return state, err
		}
		if state.Exhausted() {
			return state, errors.Wrap(errors.ErrCodeExportFailed, err,
				"Failed to generate image. Please try again or take a screenshot.")
		}

		observability.Export().OnRetry(ctx, state.Attempt, policy.Backoff, err)
		if serr := policy.Sleep(ctx, policy.Backoff); serr != nil {
			return state, errors.Wrap(errors.ErrCodeExportFailed, stderrors.Join(err, serr),
				"export canceled")
		}
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
