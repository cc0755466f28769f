// Package deliver hands a finished artifact to the user through exactly one
// channel: native share, direct download or a fallback tab.
//
// The channel is chosen from a [Profile] computed for the call. Execution is
// delegated to a [Platform]: package inpage drives a Chrome page, package
// httpchannel answers an HTTP request.
//
// Every call resolves to exactly one receipt.Outcome. A share that is
// cancelled or fails falls through to a download rather than ending the
// call. Object URLs created for a download are revoked before Deliver
// returns, no earlier than RevokeDelay after the download started.
package deliver

import (
	"context"
	stderrors "errors"
	"io"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/receiptify/pkg/errors"
	"github.com/matzehuels/receiptify/pkg/janitor"
	"github.com/matzehuels/receiptify/pkg/observability"
	"github.com/matzehuels/receiptify/pkg/receipt"
)

// MinRevokeDelay is the shortest wait between starting a download and
// revoking its object URL. Revoking earlier can cancel the transfer.
const MinRevokeDelay = time.Second

// Options configures a Dispatcher.
type Options struct {
	// RevokeDelay is raised to MinRevokeDelay if lower.
	RevokeDelay time.Duration

	Logger *log.Logger

	// Sleep waits d or until ctx is done. Defaults to a timer.
	Sleep func(ctx context.Context, d time.Duration) error
}

func (o Options) withDefaults() Options {
	if o.RevokeDelay < MinRevokeDelay {
		o.RevokeDelay = MinRevokeDelay
	}
	if o.Logger == nil {
		o.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	if o.Sleep == nil {
		o.Sleep = sleep
	}
	return o
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Delivery reports how an artifact reached the user.
type Delivery struct {
	Outcome receipt.Outcome
	Route   Route

	// FellBack is set when a share was requested but the artifact was
	// downloaded instead.
	FellBack bool

	// ShareErr holds the share failure that caused the fallback, if any.
	ShareErr error
}

// Dispatcher routes artifacts to a Platform.
type Dispatcher struct {
	platform Platform
	opts     Options
}

// New creates a Dispatcher delivering through p.
func New(p Platform, opts Options) *Dispatcher {
	return &Dispatcher{platform: p, opts: opts.withDefaults()}
}

// Platform returns the platform the dispatcher delivers through.
func (d *Dispatcher) Platform() Platform { return d.platform }

// Profile probes the platform and derives a fresh profile.
func (d *Dispatcher) Profile(ctx context.Context) (Profile, error) {
	p, err := d.platform.Probe(ctx)
	if err != nil {
		return Profile{}, errors.Wrap(errors.ErrCodeDelivery, err, "inspect browser environment")
	}
	return Detect(p), nil
}

// Deliver executes the channel prof selects for mode.
func (d *Dispatcher) Deliver(ctx context.Context, a *receipt.Artifact, mode receipt.Mode, prof Profile) (res *Delivery, err error) {
	start := time.Now()
	defer func() {
		route, outcome := "", ""
		if res != nil {
			route, outcome = res.Route.String(), string(res.Outcome)
		}
		observability.Export().OnDeliver(ctx, route, outcome, time.Since(start), err)
	}()

	if err := Admit(prof, mode); err != nil {
		return &Delivery{Outcome: receipt.OutcomeRefused, Route: prof.Route(mode)}, err
	}
	if a == nil {
		return nil, errors.New(errors.ErrCodeDelivery, "no artifact to deliver")
	}

	logger := d.opts.Logger
	route := prof.Route(mode)
	logger.Debug("routing delivery", "mode", mode, "route", route)

	switch route {
	case RouteTab:
		return d.openTab(ctx, a)
	case RouteShare:
		res, shareErr := d.share(ctx, a)
		if shareErr == nil {
			return res, nil
		}
		if stderrors.Is(shareErr, ErrShareCanceled) {
			logger.Info("share sheet dismissed, downloading instead")
		} else {
			logger.Warn("share failed, downloading instead", "error", shareErr)
		}
		res, err := d.download(ctx, a)
		if res != nil {
			res.FellBack, res.ShareErr = true, shareErr
		}
		return res, err
	case RouteDownload:
		res, err := d.download(ctx, a)
		if res != nil {
			res.FellBack = mode == receipt.ModeShare
		}
		return res, err
	}
	return nil, errors.New(errors.ErrCodeInternal, "unhandled route %v", route)
}

func (d *Dispatcher) openTab(ctx context.Context, a *receipt.Artifact) (*Delivery, error) {
	if err := d.platform.OpenTab(ctx, a.DataURL); err != nil {
		return nil, errors.Wrap(errors.ErrCodeDelivery, err, "Couldn't open the image in a new tab. Please allow popups and try again.")
	}
	return &Delivery{Outcome: receipt.OutcomeOpened, Route: RouteTab}, nil
}

// share returns a non-nil error whenever the artifact was not shared.
func (d *Dispatcher) share(ctx context.Context, a *receipt.Artifact) (*Delivery, error) {
	f := a.File()
	ok, err := d.platform.CanShare(ctx, f)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, stderrors.New("platform cannot share this file")
	}

	err = d.platform.Share(ctx, ShareData{Title: ShareTitle, Text: ShareText, Files: []receipt.File{f}})
	if err != nil {
		return nil, err
	}
	return &Delivery{Outcome: receipt.OutcomeShared, Route: RouteShare}, nil
}

func (d *Dispatcher) download(ctx context.Context, a *receipt.Artifact) (res *Delivery, err error) {
	j := janitor.New(d.opts.Logger)
	defer func() {
		if rerr := j.Release(ctx); rerr != nil {
			d.opts.Logger.Warn("object url not revoked", "error", rerr)
		}
	}()

	url, err := d.platform.CreateObjectURL(ctx, a.Blob, a.Filename)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeDelivery, err, "Couldn't prepare the download. Please try again.")
	}
	j.Defer("object url", func(ctx context.Context) error {
		return d.platform.RevokeObjectURL(ctx, url)
	})

	if err := d.platform.Download(ctx, url, a.Filename); err != nil {
		return nil, errors.Wrap(errors.ErrCodeDelivery, err, "Couldn't download the image. Please allow downloads and try again.")
	}

	// The transfer has started; hold the URL until it is safe to revoke.
	if err := d.opts.Sleep(ctx, d.opts.RevokeDelay); err != nil {
		d.opts.Logger.Debug("revoke delay interrupted", "error", err)
	}
	return &Delivery{Outcome: receipt.OutcomeDownload, Route: RouteDownload}, nil
}
