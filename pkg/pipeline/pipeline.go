// Package pipeline provides the export pipeline for receiptify.
//
// This package implements the complete capture → normalize → deliver chain
// that both the CLI and the HTTP API run. By centralizing it, every entry
// point reports the same notifications and honors the same retry and
// cleanup rules.
//
// # Architecture
//
// One export runs four stages strictly in order:
//
//  1. Profile: probe the delivery platform and refuse impossible requests
//  2. Capture: rasterize the receipt element at 758×1384
//  3. Normalize: encode the raster into the PNG artifact
//  4. Deliver: share, download or open the artifact in a tab
//
// Capture and normalize run together under [Retry]; delivery is never
// retried. Only image settling inside capture runs concurrently.
//
// # Usage
//
//	runner := pipeline.NewRunner(backend, dispatcher, notifier, logger)
//	res, err := runner.Export(ctx, pipeline.Request{
//	    Target: rodpage.Resolver(page, "#receipt", ""),
//	    Mode:   receipt.ModeDownload,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(res.Outcome, res.Digest)
//
// A Runner holds no per-export state. Concurrent exports against the same
// page element must be serialized by the caller.
package pipeline

import (
	"time"

	"github.com/matzehuels/receiptify/pkg/capture"
	"github.com/matzehuels/receiptify/pkg/deliver"
	"github.com/matzehuels/receiptify/pkg/receipt"
)

// =============================================================================
// Notification Messages
// =============================================================================

// Loading messages, in the order an export shows them.
const (
	MsgPreparing  = "Preparing receipt..."
	MsgGenerating = "Generating image..."
	MsgDelivering = "Processing download..."
)

// Terminal messages.
const (
	MsgShared           = "Shared successfully!"
	MsgSharedInstagram  = "Opening Instagram Stories..."
	MsgDownloaded       = "Image downloaded successfully!"
	MsgShareFellBack    = "Sharing not supported. Image downloaded instead."
	MsgOpened           = "Image opened in new tab. Long press to save!"
	MsgDeliveryFailed   = "Couldn't deliver the image. Please allow popups and try again."
	MsgExportFailed     = "Failed to generate image. Please try again or take a screenshot."
	MsgInstagramDesktop = deliver.InstagramDesktopMessage
)

// =============================================================================
// Request and Result
// =============================================================================

// Request describes one export.
type Request struct {
	// ID labels log lines and hooks. Generated when empty.
	ID string

	// Target resolves the receipt element. It is called once per attempt
	// so a re-rendered page is picked up on retry.
	Target capture.TargetFunc

	// Mode is the requested delivery. Empty means download.
	Mode receipt.Mode
}

// Result reports a finished export. It is returned alongside refusal and
// failure errors as far as the export got.
type Result struct {
	ID       string
	Mode     receipt.Mode
	Outcome  receipt.Outcome
	Route    deliver.Route
	FellBack bool
	Profile  deliver.Profile

	// Digest is the SHA-256 of the delivered PNG; Size its length in bytes.
	Digest string
	Size   int

	Stats Stats
}

// Stats contains timing information for an export.
type Stats struct {
	ProfileTime time.Duration
	CaptureTime time.Duration // summed over attempts
	EncodeTime  time.Duration // summed over attempts
	DeliverTime time.Duration
	Attempts    int
}

// Total returns the time spent in all stages.
func (s Stats) Total() time.Duration {
	return s.ProfileTime + s.CaptureTime + s.EncodeTime + s.DeliverTime
}
