package deliver

import (
	"context"
	"errors"

	"github.com/matzehuels/receiptify/pkg/receipt"
)

// ErrShareCanceled is returned by Platform.Share when the user dismissed the
// share sheet.
var ErrShareCanceled = errors.New("share canceled")

// Share sheet payload.
const (
	ShareTitle = "My Spotify Receiptify"
	ShareText  = "Check out my Spotify stats!"
)

// ShareData is the payload handed to the native share sheet.
type ShareData struct {
	Title string
	Text  string
	Files []receipt.File
}

// Platform executes delivery channels in one environment: a browser page,
// an HTTP response.
type Platform interface {
	// Probe reports the environment.
	Probe(ctx context.Context) (Probe, error)

	// CanShare reports whether f can be handed to the share sheet.
	CanShare(ctx context.Context, f receipt.File) (bool, error)

	// Share opens the native share sheet and waits for it to close.
	Share(ctx context.Context, data ShareData) error

	// CreateObjectURL registers b and returns a URL that resolves to it.
	CreateObjectURL(ctx context.Context, b receipt.Blob, filename string) (string, error)

	// RevokeObjectURL releases a URL created by CreateObjectURL.
	RevokeObjectURL(ctx context.Context, url string) error

	// Download starts a download of url saved as filename.
	Download(ctx context.Context, url, filename string) error

	// OpenTab opens a new tab showing the image at dataURL.
	OpenTab(ctx context.Context, dataURL string) error
}
