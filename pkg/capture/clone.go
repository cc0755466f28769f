package capture

import (
	"context"

	"github.com/matzehuels/receiptify/pkg/janitor"
	"github.com/matzehuels/receiptify/pkg/receipt"
)

// CloneBackend captures a detached deep clone of the card. The live card is
// never modified.
type CloneBackend struct {
	opts Options
}

// NewCloneBackend creates a clone-and-detach backend.
func NewCloneBackend(opts Options) *CloneBackend {
	return &CloneBackend{opts: opts.withDefaults()}
}

// Name implements Backend.
func (b *CloneBackend) Name() string { return BackendClone }

// Capture implements Backend. The clone is removed on every return path.
func (b *CloneBackend) Capture(ctx context.Context, t *Target) (res *receipt.RasterResult, err error) {
	if err := validateTarget(t); err != nil {
		return nil, err
	}
	logger := b.opts.Logger.With("backend", BackendClone)

	j := janitor.New(logger)
	defer func() {
		if rerr := j.Release(ctx); rerr != nil && err == nil {
			res, err = nil, captureErr(rerr, "remove receipt clone")
		}
	}()

	clone, err := t.Element.Clone(ctx, frameStyle(t.Scheme))
	if err != nil {
		return nil, captureErr(err, "clone receipt element")
	}
	j.Defer("receipt clone", clone.Remove)

	idx, err := excluded(ctx, clone, b.opts.Exclude)
	if err != nil {
		return nil, captureErr(err, "enumerate receipt nodes")
	}
	if len(idx) > 0 {
		if err := clone.RemoveNodes(ctx, idx); err != nil {
			return nil, captureErr(err, "drop excluded nodes")
		}
		logger.Debug("dropped excluded nodes", "count", len(idx))
	}

	if err := settleImages(ctx, clone, b.opts.SettleTimeout); err != nil {
		return nil, err
	}

	bg := t.Scheme.Background()
	img, err := clone.Rasterize(ctx, bg)
	if err != nil {
		return nil, captureErr(err, "rasterize receipt")
	}
	logger.Debug("rasterized", "width", img.Bounds().Dx(), "height", img.Bounds().Dy())

	return &receipt.RasterResult{
		Image:      canonicalize(img, bg),
		Background: bg,
		Backend:    BackendClone,
	}, nil
}
