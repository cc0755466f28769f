package pipeline

import (
	"context"
	"io"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/matzehuels/receiptify/pkg/artifact"
	"github.com/matzehuels/receiptify/pkg/capture"
	"github.com/matzehuels/receiptify/pkg/deliver"
	"github.com/matzehuels/receiptify/pkg/errors"
	"github.com/matzehuels/receiptify/pkg/notify"
	"github.com/matzehuels/receiptify/pkg/observability"
	"github.com/matzehuels/receiptify/pkg/receipt"
)

// Runner encapsulates export execution.
// Both CLI and API use it to avoid duplicating the export chain.
//
// The Runner is stateless: every export computes its own profile, retry
// state and artifact. Multiple goroutines can safely share a Runner as long
// as they export different elements.
type Runner struct {
	Backend    capture.Backend
	Normalizer *artifact.Normalizer
	Dispatcher *deliver.Dispatcher
	Notifier   notify.Notifier
	Policy     RetryPolicy
	Logger     *log.Logger
}

// NewRunner creates a runner with the default normalizer and retry policy.
// A nil notifier discards notifications; a nil logger discards logs.
func NewRunner(b capture.Backend, d *deliver.Dispatcher, n notify.Notifier, logger *log.Logger) *Runner {
	if n == nil {
		n = notify.Discard
	}
	if logger == nil {
		logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	return &Runner{
		Backend:    b,
		Normalizer: artifact.New(),
		Dispatcher: d,
		Notifier:   n,
		Policy:     DefaultRetryPolicy(),
		Logger:     logger,
	}
}

// Export runs profile → capture → normalize → deliver for one receipt.
//
// Every export that passes validation ends with exactly one terminal
// notification. A refused share never captures; a failed delivery is never
// retried.
func (r *Runner) Export(ctx context.Context, req Request) (*Result, error) {
	mode, err := receipt.ParseMode(string(req.Mode))
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "invalid export mode")
	}
	if req.Target == nil {
		return nil, errors.New(errors.ErrCodeInvalidInput, "no receipt target")
	}
	if r.Backend == nil || r.Dispatcher == nil {
		return nil, errors.New(errors.ErrCodeInternal, "runner is missing a capture backend or dispatcher")
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	logger := r.Logger.With("export", req.ID)
	result := &Result{ID: req.ID, Mode: mode}

	// Stage 1: Profile
	profileStart := time.Now()
	prof, err := r.Dispatcher.Profile(ctx)
	result.Stats.ProfileTime = time.Since(profileStart)
	if err != nil {
		logger.Error("probe failed", "error", err)
		r.notify(ctx, notify.Error(MsgDeliveryFailed, notify.LongDuration))
		return result, err
	}
	result.Profile = prof
	result.Route = prof.Route(mode)

	if err := deliver.Admit(prof, mode); err != nil {
		logger.Warn("share refused", "reason", errors.UserMessage(err))
		result.Outcome = receipt.OutcomeRefused
		r.notify(ctx, notify.Error(MsgInstagramDesktop, notify.ShortDuration))
		return result, err
	}

	logger.Debug("profiled environment",
		"mobile", prof.IsMobile,
		"ios_safari", prof.IsIOSSafari,
		"web_share", prof.SupportsWebShare,
		"route", result.Route)

	r.notify(ctx, notify.Loading(MsgPreparing))

	// Stages 2 and 3: Capture and normalize, retried together
	var art *receipt.Artifact
	state, err := Retry(ctx, r.policy(), func(ctx context.Context, attempt int) error {
		r.notify(ctx, notify.Loading(MsgGenerating))
		a, err := r.render(ctx, req, attempt, &result.Stats)
		if err != nil {
			logger.Warn("attempt failed", "attempt", attempt, "error", err)
			return err
		}
		art = a
		return nil
	})
	result.Stats.Attempts = state.Attempt
	if err != nil {
		logger.Error("export failed", "attempts", state.Attempt, "error", err)
		r.notify(ctx, notify.Error(MsgExportFailed, notify.LongDuration))
		return result, err
	}
	result.Digest = art.Digest
	result.Size = art.Blob.Size()

	logger.Info("rendered receipt",
		"attempts", state.Attempt,
		"bytes", result.Size,
		"capture", result.Stats.CaptureTime,
		"encode", result.Stats.EncodeTime)

	// Stage 4: Deliver
	r.notify(ctx, notify.Loading(MsgDelivering))
	deliverStart := time.Now()
	d, err := r.Dispatcher.Deliver(ctx, art, mode, prof)
	result.Stats.DeliverTime = time.Since(deliverStart)
	if err != nil {
		logger.Error("delivery failed", "route", result.Route, "error", err)
		r.notify(ctx, notify.Error(MsgDeliveryFailed, notify.LongDuration))
		return result, err
	}
	result.Outcome = d.Outcome
	result.Route = d.Route
	result.FellBack = d.FellBack

	logger.Info("delivered receipt",
		"outcome", d.Outcome,
		"route", d.Route,
		"fell_back", d.FellBack,
		"duration", result.Stats.DeliverTime)

	r.notify(ctx, successStatus(d, prof))
	return result, nil
}

// render runs one capture and normalize attempt. The backend releases its
// clone or restores the live node before returning.
func (r *Runner) render(ctx context.Context, req Request, attempt int, stats *Stats) (*receipt.Artifact, error) {
	backend := r.Backend.Name()
	hooks := observability.Export()

	captureStart := time.Now()
	hooks.OnCaptureStart(ctx, backend, attempt)
	raster, err := r.capture(ctx, req)
	elapsed := time.Since(captureStart)
	stats.CaptureTime += elapsed
	hooks.OnCaptureComplete(ctx, backend, attempt, elapsed, err)
	if err != nil {
		return nil, err
	}

	norm := r.Normalizer
	if norm == nil {
		norm = artifact.New()
	}
	encodeStart := time.Now()
	art, err := norm.Normalize(raster)
	elapsed = time.Since(encodeStart)
	stats.EncodeTime += elapsed
	size := 0
	if art != nil {
		size = art.Blob.Size()
	}
	hooks.OnEncodeComplete(ctx, size, elapsed, err)
	return art, err
}

func (r *Runner) capture(ctx context.Context, req Request) (*receipt.RasterResult, error) {
	target, err := req.Target(ctx)
	if err != nil {
		if errors.GetCode(err) == "" {
			err = errors.Wrap(errors.ErrCodeCapture, err, "receipt element not found")
		}
		return nil, err
	}
	return r.Backend.Capture(ctx, target)
}

func (r *Runner) policy() RetryPolicy {
	if r.Policy.MaxAttempts == 0 {
		p := DefaultRetryPolicy()
		p.Sleep = r.Policy.Sleep
		return p
	}
	return r.Policy
}

func (r *Runner) notify(ctx context.Context, s notify.Status) {
	if r.Notifier != nil {
		r.Notifier.Notify(ctx, s)
	}
}

func successStatus(d *deliver.Delivery, prof deliver.Profile) notify.Status {
	switch d.Outcome {
	case receipt.OutcomeShared:
		if prof.IsInstagram && prof.IsMobile {
			return notify.Success(MsgSharedInstagram, notify.ShortDuration)
		}
		return notify.Success(MsgShared, notify.ShortDuration)
	case receipt.OutcomeOpened:
		return notify.Success(MsgOpened, notify.LongDuration)
	default:
		if d.FellBack && prof.IsMobile {
			return notify.Success(MsgShareFellBack, notify.ShortDuration)
		}
		return notify.Success(MsgDownloaded, notify.ShortDuration)
	}
}
