package capture

import (
	"context"
	stderrors "errors"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/matzehuels/receiptify/pkg/errors"
)

// settleImages waits until every image inside el has loaded or failed.
// The waits run concurrently; only "all settled" matters. A wait that exceeds
// timeout fails the capture.
func settleImages(ctx context.Context, el Element, timeout time.Duration) error {
	images, err := el.Images(ctx)
	if err != nil {
		return captureErr(err, "list receipt images")
	}
	if len(images) == 0 {
		return nil
	}

	settleCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	g, gctx := errgroup.WithContext(settleCtx)
	for _, img := range images {
		g.Go(func() error {
			return img.Settle(gctx)
		})
	}

	err = g.Wait()
	switch {
	case err == nil:
		return nil
	case ctx.Err() != nil:
		return errors.Wrap(errors.ErrCodeCapture, ctx.Err(), "image settle interrupted")
	case stderrors.Is(err, context.DeadlineExceeded):
		return errors.Wrap(errors.ErrCodeCapture, err, "%d images did not settle within %s", len(images), timeout)
	}
	return captureErr(err, "wait for receipt images")
}
