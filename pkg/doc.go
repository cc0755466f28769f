// Package pkg provides the core libraries for Receiptify receipt export.
//
// # Overview
//
// Receiptify turns a rendered Spotify receipt card into a fixed-size PNG
// (758×1384) and hands it to the user the way their browser allows: the
// native share sheet, a download, or a new tab for a manual save. The pkg
// directory is organized by stage:
//
//  1. [capture] - Render the receipt element into an opaque raster
//  2. [artifact] - Normalize the raster into a PNG artifact
//  3. [deliver] - Detect the platform and route the artifact to the user
//  4. [pipeline] - Orchestrate capture, retry and delivery with status updates
//  5. [server] - Serve the engine over HTTP
//
// # Architecture
//
// The typical data flow:
//
//	Web page (URL or inline HTML)
//	         ↓
//	    [browser] package (Chrome tab via go-rod)
//	         ↓
//	    [capture] package (clone or mutate backend, settle, rasterize)
//	         ↓
//	    [artifact] package (758×1384 PNG, SHA-256 digest)
//	         ↓
//	    [deliver] package (share, download or open-in-tab)
//
// [pipeline] runs the middle stages with up to three attempts and reports
// progress through [notify]. [objecturl] backs the object URLs a delivery
// hands out, in memory, on disk or in Redis.
//
// # Quick Start
//
//	import (
//	    "github.com/matzehuels/receiptify/pkg/capture"
//	    "github.com/matzehuels/receiptify/pkg/capture/rodpage"
//	    "github.com/matzehuels/receiptify/pkg/deliver"
//	    "github.com/matzehuels/receiptify/pkg/deliver/inpage"
//	    "github.com/matzehuels/receiptify/pkg/pipeline"
//	    "github.com/matzehuels/receiptify/pkg/receipt"
//	)
//
//	backend, _ := capture.New("clone", capture.Options{})
//	d := deliver.New(inpage.New(page, "."), deliver.Options{})
//	r := pipeline.NewRunner(backend, d, nil, logger)
//	res, err := r.Export(ctx, pipeline.Request{
//	    Target: rodpage.Resolver(page, "#receipt", ""),
//	    Mode:   receipt.ModeDownload,
//	})
//
// # Supporting Packages
//
// [config] loads the TOML configuration. [errors] carries the error codes
// that decide retries and HTTP statuses. [janitor] releases object URLs and
// page state after a delivery. [observability] exposes hooks for metrics and
// tracing.
//
// [capture]: https://pkg.go.dev/github.com/matzehuels/receiptify/pkg/capture
// [artifact]: https://pkg.go.dev/github.com/matzehuels/receiptify/pkg/artifact
// [deliver]: https://pkg.go.dev/github.com/matzehuels/receiptify/pkg/deliver
// [pipeline]: https://pkg.go.dev/github.com/matzehuels/receiptify/pkg/pipeline
// [server]: https://pkg.go.dev/github.com/matzehuels/receiptify/pkg/server
// [browser]: https://pkg.go.dev/github.com/matzehuels/receiptify/pkg/browser
// [notify]: https://pkg.go.dev/github.com/matzehuels/receiptify/pkg/notify
// [objecturl]: https://pkg.go.dev/github.com/matzehuels/receiptify/pkg/objecturl
// [config]: https://pkg.go.dev/github.com/matzehuels/receiptify/pkg/config
// [errors]: https://pkg.go.dev/github.com/matzehuels/receiptify/pkg/errors
// [janitor]: https://pkg.go.dev/github.com/matzehuels/receiptify/pkg/janitor
// [observability]: https://pkg.go.dev/github.com/matzehuels/receiptify/pkg/observability
package pkg
