// Package httpchannel delivers an artifact as the response to an HTTP
// request. The requesting client plays the role of the browser: its
// User-Agent drives routing, a download becomes an attachment resolved through
// an object URL store and a fallback tab becomes an HTML page embedding the
// image.
//
// Native sharing is never available over HTTP, so share requests fall
// through to a download.
package httpchannel

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"html"
	"html/template"
	"mime"
	"net/http"
	"path"
	"strconv"
	"time"

	"github.com/microcosm-cc/bluemonday"

	"github.com/matzehuels/receiptify/pkg/deliver"
	"github.com/matzehuels/receiptify/pkg/objecturl"
	"github.com/matzehuels/receiptify/pkg/receipt"
)

// ObjectURLHeader names the object URL a download was resolved through.
const ObjectURLHeader = "X-Receipt-Object-URL"

var (
	errNoShare        = stderrors.New("httpchannel: share sheet not available over http")
	errAlreadyWritten = stderrors.New("httpchannel: response already written")
)

// Options configures a Platform.
type Options struct {
	// ObjectBase is the path prefix object URLs are served under. Default: /objects.
	ObjectBase string

	// ObjectTTL bounds the lifetime of an object URL. Default: objecturl.DefaultTTL.
	ObjectTTL time.Duration
}

// Platform implements deliver.Platform for one HTTP exchange.
type Platform struct {
	w     http.ResponseWriter
	r     *http.Request
	store objecturl.Store
	opts  Options

	written bool
}

// New returns a platform answering r through w.
func New(w http.ResponseWriter, r *http.Request, store objecturl.Store, opts Options) *Platform {
	if opts.ObjectBase == "" {
		opts.ObjectBase = "/objects"
	}
	return &Platform{w: w, r: r, store: store, opts: opts}
}

// Written reports whether the platform has written the response.
func (p *Platform) Written() bool { return p.written }

// Probe implements deliver.Platform.
func (p *Platform) Probe(context.Context) (deliver.Probe, error) {
	return deliver.Probe{UserAgent: p.r.UserAgent()}, nil
}

// CanShare implements deliver.Platform.
func (p *Platform) CanShare(context.Context, receipt.File) (bool, error) {
	return false, nil
}

// Share implements deliver.Platform.
func (p *Platform) Share(context.Context, deliver.ShareData) error {
	return errNoShare
}

// CreateObjectURL implements deliver.Platform.
func (p *Platform) CreateObjectURL(ctx context.Context, b receipt.Blob, filename string) (string, error) {
	id, err := p.store.Create(ctx, objecturl.FromBlob(b, filename), p.opts.ObjectTTL)
	if err != nil {
		return "", err
	}
	return objecturl.URL(p.opts.ObjectBase, id), nil
}

// RevokeObjectURL implements deliver.Platform.
func (p *Platform) RevokeObjectURL(ctx context.Context, url string) error {
	return p.store.Revoke(ctx, path.Base(url))
}

// Download implements deliver.Platform. It resolves url and writes the object
// as an attachment.
func (p *Platform) Download(ctx context.Context, url, filename string) error {
	if p.written {
		return errAlreadyWritten
	}
	obj, err := p.store.Resolve(ctx, path.Base(url))
	if err != nil {
		return fmt.Errorf("httpchannel: resolve %s: %w", url, err)
	}

	h := p.w.Header()
	h.Set("Content-Type", obj.Type)
	h.Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": filename}))
	h.Set("Content-Length", strconv.Itoa(len(obj.Data)))
	h.Set("Cache-Control", "no-store")
	h.Set(ObjectURLHeader, url)
	p.w.WriteHeader(http.StatusOK)
	p.written = true

	if _, err := p.w.Write(obj.Data); err != nil {
		return fmt.Errorf("httpchannel: write download: %w", err)
	}
	if f, ok := p.w.(http.Flusher); ok {
		f.Flush()
	}
	return nil
}

// OpenTab implements deliver.Platform.
func (p *Platform) OpenTab(_ context.Context, dataURL string) error {
	if p.written {
		return errAlreadyWritten
	}
	page, err := TabPage(dataURL)
	if err != nil {
		return err
	}

	h := p.w.Header()
	h.Set("Content-Type", "text/html; charset=utf-8")
	h.Set("Cache-Control", "no-store")
	p.w.WriteHeader(http.StatusOK)
	p.written = true

	if _, err := p.w.Write(page); err != nil {
		return fmt.Errorf("httpchannel: write tab: %w", err)
	}
	return nil
}

// =============================================================================
// Tab Page
// =============================================================================

var tabPolicy = newTabPolicy()

// newTabPolicy allows user content plus the data: image the tab embeds.
func newTabPolicy() *bluemonday.Policy {
	p := bluemonday.UGCPolicy()
	p.AllowDataURIImages()
	return p
}

var tabTemplate = template.Must(template.New("tab").Parse(`<!doctype html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>{{.Title}}</title>
<style>body{margin:0;font-family:system-ui,sans-serif;text-align:center}img{display:block;max-width:100%;height:auto;margin:0 auto}p{margin:12px}</style>
</head>
<body>{{.Body}}</body>
</html>
`))

// TabPage renders the fallback tab: the image plus a hint to long-press it.
// The body is sanitized, so a data URL that is not an image is dropped.
func TabPage(dataURL string) ([]byte, error) {
	body := fmt.Sprintf(`<img src="%s" alt="%s"><p>Long press the image to save it.</p>`,
		html.EscapeString(dataURL), html.EscapeString(deliver.ShareTitle))

	var buf bytes.Buffer
	err := tabTemplate.Execute(&buf, struct {
		Title string
		Body  template.HTML
	}{
		Title: deliver.ShareTitle,
		Body:  template.HTML(tabPolicy.Sanitize(body)),
	})
	if err != nil {
		return nil, fmt.Errorf("httpchannel: render tab: %w", err)
	}
	return buf.Bytes(), nil
}

// Ensure Platform implements deliver.Platform.
var _ deliver.Platform = (*Platform)(nil)
