// Package observability provides hooks for metrics, tracing, and logging.
//
// The export engine emits events at each stage boundary without depending on
// a specific observability backend. Consumers register hooks at startup;
// until they do, every hook is a no-op.
//
// # Usage
//
// Register hooks at application startup:
//
//	func main() {
//	    observability.SetExportHooks(&myExportHooks{})
//	    observability.SetObjectURLHooks(&myObjectURLHooks{})
//	    // ... run application
//	}
//
// Libraries call hooks to emit events:
//
//	observability.Export().OnCaptureStart(ctx, backend, attempt)
//	// ... capture ...
//	observability.Export().OnCaptureComplete(ctx, backend, attempt, duration, err)
package observability

import (
	"context"
	"sync"
	"time"
)

// =============================================================================
// Export Hooks
// =============================================================================

// ExportHooks receives events from the export pipeline.
type ExportHooks interface {
	// Capture events, once per attempt
	OnCaptureStart(ctx context.Context, backend string, attempt int)
	OnCaptureComplete(ctx context.Context, backend string, attempt int, duration time.Duration, err error)

	// OnEncodeComplete records a normalize pass and the encoded size.
	OnEncodeComplete(ctx context.Context, size int, duration time.Duration, err error)

	// OnRetry records a failed attempt that will be retried after backoff.
	OnRetry(ctx context.Context, attempt int, backoff time.Duration, err error)

	// OnDeliver records the terminal delivery outcome.
	OnDeliver(ctx context.Context, route, outcome string, duration time.Duration, err error)
}

// =============================================================================
// Object URL Hooks
// =============================================================================

// ObjectURLHooks receives events from object URL stores.
type ObjectURLHooks interface {
	// OnCreate records a newly minted object URL.
	OnCreate(ctx context.Context, store string, size int)

	// OnResolve records a lookup; found is false for revoked or expired URLs.
	OnResolve(ctx context.Context, store string, found bool)

	// OnRevoke records a revocation.
	OnRevoke(ctx context.Context, store string)
}

// =============================================================================
// HTTP Hooks
// =============================================================================

// HTTPHooks receives events from the HTTP API.
type HTTPHooks interface {
	// OnRequest records an incoming request.
	OnRequest(ctx context.Context, method, path string)

	// OnResponse records a completed response.
	OnResponse(ctx context.Context, method, path string, statusCode int, duration time.Duration)
}

// =============================================================================
// No-op Implementations
// =============================================================================

// NoopExportHooks is a no-op implementation of ExportHooks.
type NoopExportHooks struct{}

func (NoopExportHooks) OnCaptureStart(context.Context, string, int)                          {}
func (NoopExportHooks) OnCaptureComplete(context.Context, string, int, time.Duration, error) {}
func (NoopExportHooks) OnEncodeComplete(context.Context, int, time.Duration, error)          {}
func (NoopExportHooks) OnRetry(context.Context, int, time.Duration, error)                   {}
func (NoopExportHooks) OnDeliver(context.Context, string, string, time.Duration, error)      {}

// NoopObjectURLHooks is a no-op implementation of ObjectURLHooks.
type NoopObjectURLHooks struct{}

func (NoopObjectURLHooks) OnCreate(context.Context, string, int)   {}
func (NoopObjectURLHooks) OnResolve(context.Context, string, bool) {}
func (NoopObjectURLHooks) OnRevoke(context.Context, string)        {}

// NoopHTTPHooks is a no-op implementation of HTTPHooks.
type NoopHTTPHooks struct{}

func (NoopHTTPHooks) OnRequest(context.Context, string, string)                      {}
func (NoopHTTPHooks) OnResponse(context.Context, string, string, int, time.Duration) {}

// =============================================================================
// Global Hook Registry
// =============================================================================

var (
	exportHooks    ExportHooks    = NoopExportHooks{}
	objectURLHooks ObjectURLHooks = NoopObjectURLHooks{}
	httpHooks      HTTPHooks      = NoopHTTPHooks{}
	hooksMu        sync.RWMutex
)

// SetExportHooks registers custom export hooks.
// This should be called once at application startup before any export runs.
func SetExportHooks(h ExportHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		exportHooks = h
	}
}

// SetObjectURLHooks registers custom object URL hooks.
func SetObjectURLHooks(h ObjectURLHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		objectURLHooks = h
	}
}

// SetHTTPHooks registers custom HTTP hooks.
func SetHTTPHooks(h HTTPHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		httpHooks = h
	}
}

// Export returns the registered export hooks.
func Export() ExportHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return exportHooks
}

// ObjectURL returns the registered object URL hooks.
func ObjectURL() ObjectURLHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return objectURLHooks
}

// HTTP returns the registered HTTP hooks.
func HTTP() HTTPHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return httpHooks
}

// Reset restores all hooks to their no-op defaults.
// This is primarily useful for testing.
func Reset() {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	exportHooks = NoopExportHooks{}
	objectURLHooks = NoopObjectURLHooks{}
	httpHooks = NoopHTTPHooks{}
}
