package inpage

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-rod/rod/lib/launcher"

	"github.com/matzehuels/receiptify/pkg/browser"
	"github.com/matzehuels/receiptify/pkg/deliver"
	"github.com/matzehuels/receiptify/pkg/receipt"
)

func openTab(t *testing.T) *browser.Tab {
	t.Helper()
	bin, ok := launcher.LookPath()
	if !ok || testing.Short() {
		t.Skip("chrome not available")
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	m := browser.NewManager(browser.Config{Bin: bin, NoSandbox: true})
	if _, err := m.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(func() { _ = m.Close() })

	tab, err := m.OpenTab(ctx, browser.Source{HTML: `<html><body><div id="receipt">hi</div></body></html>`})
	if err != nil {
		t.Fatalf("OpenTab() error = %v", err)
	}
	t.Cleanup(func() { _ = tab.Close() })
	return tab
}

func artifact() *receipt.Artifact {
	data := []byte("\x89PNG\r\n\x1a\nnot really a png")
	return &receipt.Artifact{
		DataURL:  "data:image/png;base64,iVBORw0KGgo=",
		Blob:     receipt.Blob{Data: data, Type: receipt.MIMEType},
		Filename: receipt.Filename,
	}
}

func TestProbe(t *testing.T) {
	tab := openTab(t)
	p := New(tab.Page, t.TempDir())

	probe, err := p.Probe(context.Background())
	if err != nil {
		t.Fatalf("Probe() error = %v", err)
	}
	if probe.UserAgent == "" {
		t.Error("Probe() should report the user agent")
	}
}

func TestDownload(t *testing.T) {
	tab := openTab(t)
	dir := t.TempDir()
	p := New(tab.Page, dir)
	d := deliver.New(p, deliver.Options{})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	a := artifact()
	res, err := d.Deliver(ctx, a, receipt.ModeDownload, deliver.Profile{})
	if err != nil {
		t.Fatalf("Deliver() error = %v", err)
	}
	if res.Outcome != receipt.OutcomeDownload {
		t.Errorf("Outcome = %q, want downloaded", res.Outcome)
	}

	got, err := os.ReadFile(filepath.Join(dir, receipt.Filename))
	if err != nil {
		t.Fatalf("read download: %v", err)
	}
	if !bytes.Equal(got, a.Blob.Data) {
		t.Error("downloaded file differs from the artifact blob")
	}
	if saved := p.Saved(); len(saved) != 1 {
		t.Errorf("Saved() = %v, want one file", saved)
	}
}

func TestObjectURLRevoked(t *testing.T) {
	tab := openTab(t)
	p := New(tab.Page, t.TempDir())
	ctx := context.Background()

	url, err := p.CreateObjectURL(ctx, artifact().Blob, receipt.Filename)
	if err != nil {
		t.Fatalf("CreateObjectURL() error = %v", err)
	}
	if err := p.RevokeObjectURL(ctx, url); err != nil {
		t.Fatalf("RevokeObjectURL() error = %v", err)
	}

	res, err := tab.Page.Eval(`(u) => fetch(u).then(() => "live", () => "revoked")`, url)
	if err != nil {
		t.Fatalf("Eval() error = %v", err)
	}
	if got := res.Value.Str(); got != "revoked" {
		t.Errorf("object url after revoke = %s, want revoked", got)
	}
}

func TestOpenTab(t *testing.T) {
	tab := openTab(t)
	p := New(tab.Page, t.TempDir())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := p.OpenTab(ctx, artifact().DataURL); err != nil {
		t.Fatalf("OpenTab() error = %v", err)
	}
	opened := p.Opened()
	if len(opened) != 1 {
		t.Fatalf("Opened() = %d tabs, want 1", len(opened))
	}
	defer opened[0].Close()
}
