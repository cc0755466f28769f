// Package inpage delivers artifacts inside the Chrome page that holds the
// receipt, using the same browser APIs a user's click would reach:
// navigator.share, URL.createObjectURL with a download anchor, window.open.
//
// Downloads are caught with rod's download watcher and saved to Dir under the
// artifact's filename.
package inpage

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"

	"github.com/matzehuels/receiptify/pkg/deliver"
	"github.com/matzehuels/receiptify/pkg/receipt"
)

// Platform implements deliver.Platform over a rod page.
type Platform struct {
	Page *rod.Page

	// Dir receives downloaded files. Defaults to the working directory.
	Dir string

	mu     sync.Mutex
	saved  []string
	opened []*rod.Page
}

// New returns a platform bound to page, saving downloads into dir.
func New(page *rod.Page, dir string) *Platform {
	return &Platform{Page: page, Dir: dir}
}

// Saved returns the paths of files downloaded so far.
func (p *Platform) Saved() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.saved...)
}

// Opened returns the tabs opened by OpenTab.
func (p *Platform) Opened() []*rod.Page {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*rod.Page(nil), p.opened...)
}

// gesture evaluates js as if triggered by a user click, which share sheets
// and popups require.
func (p *Platform) gesture(ctx context.Context, js string, args ...any) (*proto.RuntimeRemoteObject, error) {
	opts := rod.Eval(js, args...).ByPromise()
	opts.UserGesture = true
	return p.Page.Context(ctx).Evaluate(opts)
}

// Probe implements deliver.Platform.
func (p *Platform) Probe(ctx context.Context) (deliver.Probe, error) {
	res, err := p.Page.Context(ctx).Eval(`() => ({
		ua: navigator.userAgent,
		share: typeof navigator.share === "function",
		files: typeof navigator.canShare === "function",
	})`)
	if err != nil {
		return deliver.Probe{}, fmt.Errorf("inpage: probe: %w", err)
	}
	var v struct {
		UA    string `json:"ua"`
		Share bool   `json:"share"`
		Files bool   `json:"files"`
	}
	if err := res.Value.Unmarshal(&v); err != nil {
		return deliver.Probe{}, fmt.Errorf("inpage: decode probe: %w", err)
	}
	return deliver.Probe{UserAgent: v.UA, SupportsWebShare: v.Share, SupportsFiles: v.Files}, nil
}

// fileFromArgs builds const file from the b64, name and type arguments.
const fileFromArgs = `
		const bytes = Uint8Array.from(atob(b64), (c) => c.charCodeAt(0));
		const file = new File([bytes], name, { type });`

// CanShare implements deliver.Platform.
func (p *Platform) CanShare(ctx context.Context, f receipt.File) (bool, error) {
	res, err := p.Page.Context(ctx).Eval(`(b64, name, type) => {`+fileFromArgs+`
		return !!navigator.canShare && navigator.canShare({ files: [file] });
	}`, base64.StdEncoding.EncodeToString(f.Data), f.Name, f.Type)
	if err != nil {
		return false, fmt.Errorf("inpage: canShare: %w", err)
	}
	return res.Value.Bool(), nil
}

// Share implements deliver.Platform. An AbortError from the share sheet maps
// to deliver.ErrShareCanceled.
func (p *Platform) Share(ctx context.Context, data deliver.ShareData) error {
	if len(data.Files) != 1 {
		return fmt.Errorf("inpage: share expects one file, got %d", len(data.Files))
	}
	f := data.Files[0]
	res, err := p.gesture(ctx, `async (b64, name, type, title, text) => {`+fileFromArgs+`
		try {
			await navigator.share({ files: [file], title, text });
			return { ok: true };
		} catch (e) {
			return { ok: false, name: e.name, message: String(e.message || e) };
		}
	}`, base64.StdEncoding.EncodeToString(f.Data), f.Name, f.Type, data.Title, data.Text)
	if err != nil {
		return fmt.Errorf("inpage: share: %w", err)
	}
	var v struct {
		OK      bool   `json:"ok"`
		Name    string `json:"name"`
		Message string `json:"message"`
	}
	if err := res.Value.Unmarshal(&v); err != nil {
		return fmt.Errorf("inpage: decode share result: %w", err)
	}
	switch {
	case v.OK:
		return nil
	case v.Name == "AbortError":
		return deliver.ErrShareCanceled
	}
	return fmt.Errorf("inpage: share: %s: %s", v.Name, v.Message)
}

// CreateObjectURL implements deliver.Platform.
func (p *Platform) CreateObjectURL(ctx context.Context, b receipt.Blob, _ string) (string, error) {
	res, err := p.Page.Context(ctx).Eval(`(b64, type) => {
		const bytes = Uint8Array.from(atob(b64), (c) => c.charCodeAt(0));
		return URL.createObjectURL(new Blob([bytes], { type }));
	}`, base64.StdEncoding.EncodeToString(b.Data), b.Type)
	if err != nil {
		return "", fmt.Errorf("inpage: createObjectURL: %w", err)
	}
	return res.Value.Str(), nil
}

// RevokeObjectURL implements deliver.Platform.
func (p *Platform) RevokeObjectURL(ctx context.Context, url string) error {
	if _, err := p.Page.Context(ctx).Eval(`(u) => URL.revokeObjectURL(u)`, url); err != nil {
		return fmt.Errorf("inpage: revokeObjectURL: %w", err)
	}
	return nil
}

// Download implements deliver.Platform. It clicks a temporary download
// anchor and waits for the browser to finish writing the file.
func (p *Platform) Download(ctx context.Context, url, filename string) error {
	dir := p.Dir
	if dir == "" {
		dir = "."
	}
	dir, err := filepath.Abs(dir)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	wctx, cancel := context.WithCancel(ctx)
	defer cancel()
	wait := p.Page.Browser().Context(wctx).WaitDownload(dir)

	_, err = p.gesture(ctx, `(u, name) => {
		const a = document.createElement("a");
		a.href = u;
		a.download = name;
		a.style.display = "none";
		document.body.appendChild(a);
		a.click();
		a.remove();
	}`, url, filename)
	if err != nil {
		return fmt.Errorf("inpage: click download: %w", err)
	}

	info := wait()
	if info == nil || ctx.Err() != nil {
		return fmt.Errorf("inpage: download did not complete: %w", context.Cause(ctx))
	}

	dst := filepath.Join(dir, filepath.Base(filename))
	if err := os.Rename(filepath.Join(dir, info.GUID), dst); err != nil {
		return fmt.Errorf("inpage: save download: %w", err)
	}

	p.mu.Lock()
	p.saved = append(p.saved, dst)
	p.mu.Unlock()
	return nil
}

// OpenTab implements deliver.Platform. A blocked popup is an error.
func (p *Platform) OpenTab(ctx context.Context, dataURL string) error {
	wctx, cancel := context.WithCancel(ctx)
	defer cancel()
	waitOpen := p.Page.Context(wctx).WaitOpen()

	res, err := p.gesture(ctx, `(src, title) => {
		const w = window.open("", "_blank");
		if (!w) return false;
		w.document.title = title;
		const img = w.document.createElement("img");
		img.src = src;
		img.alt = title;
		img.style.maxWidth = "100%";
		w.document.body.style.margin = "0";
		w.document.body.appendChild(img);
		return true;
	}`, dataURL, deliver.ShareTitle)
	if err != nil {
		return fmt.Errorf("inpage: open tab: %w", err)
	}
	if !res.Value.Bool() {
		return fmt.Errorf("inpage: popup blocked")
	}

	tab, err := waitOpen()
	if err != nil {
		return fmt.Errorf("inpage: attach tab: %w", err)
	}
	p.mu.Lock()
	p.opened = append(p.opened, tab.Context(context.Background()))
	p.mu.Unlock()
	return nil
}

// Ensure Platform implements deliver.Platform.
var _ deliver.Platform = (*Platform)(nil)
