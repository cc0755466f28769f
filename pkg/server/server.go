// Package server exposes the export pipeline over HTTP.
//
// Routes:
//
//	POST /api/v1/export   export a receipt; the response is the delivery
//	GET  /objects/{id}    resolve a live object URL
//	GET  /healthz         liveness
//
// An export request names a page (url or inline html) and the receipt
// selector. The page is loaded into its own Chrome tab, and the requesting
// client's User-Agent decides the delivery channel: an attachment for
// downloads, an HTML page embedding the image for the fallback tab. Failures
// before anything was delivered are answered with a JSON error.
package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/matzehuels/receiptify/pkg/browser"
	"github.com/matzehuels/receiptify/pkg/buildinfo"
	"github.com/matzehuels/receiptify/pkg/capture"
	"github.com/matzehuels/receiptify/pkg/capture/rodpage"
	"github.com/matzehuels/receiptify/pkg/deliver"
	"github.com/matzehuels/receiptify/pkg/deliver/httpchannel"
	"github.com/matzehuels/receiptify/pkg/errors"
	"github.com/matzehuels/receiptify/pkg/notify"
	"github.com/matzehuels/receiptify/pkg/objecturl"
	"github.com/matzehuels/receiptify/pkg/observability"
	"github.com/matzehuels/receiptify/pkg/pipeline"
	"github.com/matzehuels/receiptify/pkg/receipt"
)

const (
	// ObjectBase is the path object URLs are served under.
	ObjectBase = "/objects"

	maxRequestBytes = 5 << 20
	shutdownTimeout = 10 * time.Second
)

// =============================================================================
// Pages
// =============================================================================

// Pages loads the document holding a receipt and resolves its element.
type Pages interface {
	// Open loads src and returns a target resolver for selector, plus a
	// function that releases the page.
	Open(ctx context.Context, src browser.Source, selector string, scheme receipt.ColorScheme) (capture.TargetFunc, func() error, error)
}

// BrowserPages opens every request in its own Chrome tab.
type BrowserPages struct {
	Manager *browser.Manager
}

// Open implements Pages.
func (p BrowserPages) Open(ctx context.Context, src browser.Source, selector string, scheme receipt.ColorScheme) (capture.TargetFunc, func() error, error) {
	tab, err := p.Manager.OpenTab(ctx, src)
	if err != nil {
		return nil, nil, err
	}
	return rodpage.Resolver(tab.Page, selector, scheme), tab.Close, nil
}

// =============================================================================
// Server
// =============================================================================

// Config configures a Server.
type Config struct {
	Addr string

	// Selector is used when a request names none.
	Selector string

	Backend     capture.Backend
	Retry       pipeline.RetryPolicy
	RevokeDelay time.Duration
	ObjectTTL   time.Duration

	Logger *log.Logger

	// Sleep replaces timer waits for retry backoff and URL revocation.
	Sleep func(ctx context.Context, d time.Duration) error
}

// Server serves the export API.
type Server struct {
	cfg    Config
	pages  Pages
	store  objecturl.Store
	router *chi.Mux
}

type healthResponse struct {
	Status string         `json:"status"`
	Build  buildinfo.Info `json:"build"`
}

// New creates a server exporting pages from pages and keeping object URLs
// in store.
func New(cfg Config, pages Pages, store objecturl.Store) *Server {
	if cfg.Logger == nil {
		cfg.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	if cfg.Selector == "" {
		cfg.Selector = "#receipt"
	}
	if cfg.Sleep != nil {
		cfg.Retry.Sleep = cfg.Sleep
	}

	s := &Server{cfg: cfg, pages: pages, store: store}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, healthResponse{Status: "ok", Build: buildinfo.Current()})
	})
	r.Post("/api/v1/export", s.handleExport)
	r.Get(ObjectBase+"/{id}", s.handleObject)

	s.router = r
	return s
}

// Handler returns the server's HTTP handler.
func (s *Server) Handler() http.Handler { return s.router }

// ListenAndServe serves until ctx is done, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      2 * time.Minute,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.cfg.Logger.Info("server starting", "addr", s.cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.cfg.Logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}

// logRequests logs each request and reports it to the HTTP hooks.
func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		hooks := observability.HTTP()
		hooks.OnRequest(r.Context(), r.Method, r.URL.Path)

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		elapsed := time.Since(start)
		hooks.OnResponse(r.Context(), r.Method, r.URL.Path, status, elapsed)
		s.cfg.Logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", status,
			"bytes", ww.BytesWritten(),
			"duration", elapsed,
			"request_id", middleware.GetReqID(r.Context()))
	})
}

// =============================================================================
// Helpers
// =============================================================================

type errorResponse struct {
	Code    errors.Code `json:"code"`
	Message string      `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	code := errors.GetCode(err)
	if code == "" {
		code = errors.ErrCodeInternal
	}
	writeJSON(w, statusFor(code), errorResponse{Code: code, Message: errors.UserMessage(err)})
}

func statusFor(code errors.Code) int {
	switch code {
	case errors.ErrCodeInvalidInput:
		return http.StatusBadRequest
	case errors.ErrCodeShareRefused:
		return http.StatusForbidden
	case errors.ErrCodeCapture, errors.ErrCodeEncode, errors.ErrCodeExportFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// notifier logs user-facing statuses for the request.
func (s *Server) notifier(logger *log.Logger) notify.Notifier {
	return notify.NewLogNotifier(logger)
}

func (s *Server) dispatcher(p deliver.Platform, logger *log.Logger) *deliver.Dispatcher {
	return deliver.New(p, deliver.Options{
		RevokeDelay: s.cfg.RevokeDelay,
		Logger:      logger,
		Sleep:       s.cfg.Sleep,
	})
}

func (s *Server) channel(w http.ResponseWriter, r *http.Request) *httpchannel.Platform {
	return httpchannel.New(w, r, s.store, httpchannel.Options{
		ObjectBase: ObjectBase,
		ObjectTTL:  s.cfg.ObjectTTL,
	})
}
