package server

import (
	"encoding/json"
	stderrors "errors"
	"mime"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/matzehuels/receiptify/pkg/browser"
	"github.com/matzehuels/receiptify/pkg/errors"
	"github.com/matzehuels/receiptify/pkg/objecturl"
	"github.com/matzehuels/receiptify/pkg/pipeline"
	"github.com/matzehuels/receiptify/pkg/receipt"
)

// ExportRequest is the body of POST /api/v1/export. Exactly one of URL and
// HTML must be set.
type ExportRequest struct {
	URL      string `json:"url,omitempty"`
	HTML     string `json:"html,omitempty"`
	Selector string `json:"selector,omitempty"`
	Mode     string `json:"mode,omitempty"`
	Scheme   string `json:"scheme,omitempty"`
}

type exportParams struct {
	source   browser.Source
	selector string
	mode     receipt.Mode
	scheme   receipt.ColorScheme
}

func (s *Server) parseExport(w http.ResponseWriter, r *http.Request) (*exportParams, error) {
	var req ExportRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes)).Decode(&req); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "request body is not valid JSON")
	}

	p := &exportParams{selector: req.Selector}
	switch {
	case req.URL != "" && req.HTML != "":
		return nil, errors.New(errors.ErrCodeInvalidInput, "set either url or html, not both")
	case req.URL != "":
		if err := errors.ValidateRemotePageURL(req.URL); err != nil {
			return nil, err
		}
		p.source.URL = req.URL
	case req.HTML != "":
		if err := errors.ValidateHTML(req.HTML); err != nil {
			return nil, err
		}
		p.source.HTML = req.HTML
	default:
		return nil, errors.New(errors.ErrCodeInvalidInput, "url or html is required")
	}
	// The page renders for the client that will receive the image.
	p.source.UserAgent = r.UserAgent()

	if p.selector == "" {
		p.selector = s.cfg.Selector
	}
	if err := errors.ValidateSelector(p.selector); err != nil {
		return nil, err
	}

	mode, err := receipt.ParseMode(req.Mode)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "mode must be share or download")
	}
	p.mode = mode

	if req.Scheme != "" {
		scheme, err := receipt.ParseColorScheme(req.Scheme)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "scheme must be dark or light")
		}
		p.scheme = scheme
	}
	return p, nil
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := middleware.GetReqID(ctx)
	logger := s.cfg.Logger.With("request_id", id)

	params, err := s.parseExport(w, r)
	if err != nil {
		writeError(w, err)
		return
	}
	if s.cfg.Backend == nil {
		writeError(w, errors.New(errors.ErrCodeInternal, "no capture backend configured"))
		return
	}

	target, release, err := s.pages.Open(ctx, params.source, params.selector, params.scheme)
	if err != nil {
		logger.Error("open page", "error", err)
		writeError(w, errors.Wrap(errors.ErrCodeExportFailed, err, "Couldn't load the receipt page."))
		return
	}
	defer func() {
		if err := release(); err != nil {
			logger.Warn("close page", "error", err)
		}
	}()

	channel := s.channel(w, r)
	runner := pipeline.NewRunner(s.cfg.Backend, s.dispatcher(channel, logger), s.notifier(logger), logger)
	if s.cfg.Retry.MaxAttempts > 0 || s.cfg.Retry.Sleep != nil {
		runner.Policy = s.cfg.Retry
	}

	res, err := runner.Export(ctx, pipeline.Request{ID: id, Target: target, Mode: params.mode})
	if err != nil {
		if !channel.Written() {
			writeError(w, err)
		}
		return
	}
	logger.Info("export served", "outcome", res.Outcome, "route", res.Route, "bytes", res.Size)
}

func (s *Server) handleObject(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !objecturl.ValidID(id) {
		writeJSON(w, http.StatusNotFound, errorResponse{Code: errors.ErrCodeInvalidInput, Message: "object not found"})
		return
	}

	obj, err := s.store.Resolve(r.Context(), id)
	if stderrors.Is(err, objecturl.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, errorResponse{Code: errors.ErrCodeInvalidInput, Message: "object not found"})
		return
	}
	if err != nil {
		writeError(w, errors.Wrap(errors.ErrCodeInternal, err, "Couldn't read the object."))
		return
	}

	h := w.Header()
	h.Set("Content-Type", obj.Type)
	h.Set("Content-Length", strconv.Itoa(len(obj.Data)))
	h.Set("Cache-Control", "no-store")
	if obj.Filename != "" {
		h.Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": obj.Filename}))
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(obj.Data)
}
