package capture

import (
	"context"

	"github.com/matzehuels/receiptify/pkg/janitor"
	"github.com/matzehuels/receiptify/pkg/receipt"
)

const (
	// hiddenDecl hides an excluded node while the live card is rasterized.
	hiddenDecl = "display:none !important"

	// flatDecl cancels an ancestor transform so the card is laid out at
	// its own size.
	flatDecl = "transform:none !important"
)

// MutateBackend captures the live card after temporarily overwriting its
// inline style. Transforms on the card's ancestors are cancelled for the
// same span. The exact original inline style strings of the card, its
// ancestors and every hidden descendant are restored on every return path.
type MutateBackend struct {
	opts Options
}

// NewMutateBackend creates a mutate-and-restore backend.
func NewMutateBackend(opts Options) *MutateBackend {
	return &MutateBackend{opts: opts.withDefaults()}
}

// Name implements Backend.
func (b *MutateBackend) Name() string { return BackendMutate }

// Capture implements Backend.
func (b *MutateBackend) Capture(ctx context.Context, t *Target) (res *receipt.RasterResult, err error) {
	if err := validateTarget(t); err != nil {
		return nil, err
	}
	logger := b.opts.Logger.With("backend", BackendMutate)
	el := t.Element

	j := janitor.New(logger)
	defer func() {
		if rerr := j.Release(ctx); rerr != nil && err == nil {
			res, err = nil, captureErr(rerr, "restore receipt styles")
		}
	}()

	orig, err := el.Style(ctx)
	if err != nil {
		return nil, captureErr(err, "read receipt style")
	}
	j.Defer("receipt style", func(ctx context.Context) error {
		return el.SetStyle(ctx, orig)
	})
	if err := el.SetStyle(ctx, appendStyle(orig, frameStyle(t.Scheme))); err != nil {
		return nil, captureErr(err, "force receipt geometry")
	}

	ancestors, err := el.AncestorStyles(ctx)
	if err != nil {
		return nil, captureErr(err, "read ancestor styles")
	}
	if len(ancestors) > 0 {
		j.Defer("ancestor styles", func(ctx context.Context) error {
			return el.SetAncestorStyles(ctx, ancestors)
		})
		flat := make([]string, len(ancestors))
		for i, s := range ancestors {
			flat[i] = appendStyle(s, flatDecl)
		}
		if err := el.SetAncestorStyles(ctx, flat); err != nil {
			return nil, captureErr(err, "flatten ancestor transforms")
		}
	}

	idx, err := excluded(ctx, el, b.opts.Exclude)
	if err != nil {
		return nil, captureErr(err, "enumerate receipt nodes")
	}
	if len(idx) > 0 {
		styles, err := el.NodeStyles(ctx, idx)
		if err != nil {
			return nil, captureErr(err, "read excluded node styles")
		}
		j.Defer("excluded node styles", func(ctx context.Context) error {
			return el.SetNodeStyles(ctx, idx, styles)
		})

		hidden := make([]string, len(styles))
		for i, s := range styles {
			hidden[i] = appendStyle(s, hiddenDecl)
		}
		if err := el.SetNodeStyles(ctx, idx, hidden); err != nil {
			return nil, captureErr(err, "hide excluded nodes")
		}
		logger.Debug("hid excluded nodes", "count", len(idx))
	}

	if err := settleImages(ctx, el, b.opts.SettleTimeout); err != nil {
		return nil, err
	}

	bg := t.Scheme.Background()
	img, err := el.Rasterize(ctx, bg)
	if err != nil {
		return nil, captureErr(err, "rasterize receipt")
	}

	return &receipt.RasterResult{
		Image:      canonicalize(img, bg),
		Background: bg,
		Backend:    BackendMutate,
	}, nil
}
