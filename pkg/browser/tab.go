package browser

import (
	"context"
	"fmt"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
)

// Source is the document a tab loads: a URL or an inline HTML document.
type Source struct {
	URL  string
	HTML string

	// UserAgent overrides the tab's user agent when set.
	UserAgent string
}

// Tab wraps a Rod page opened by a Manager.
type Tab struct {
	Page    *rod.Page
	manager *Manager
	closed  bool
}

// OpenTab creates a new tab and loads src into it.
func (m *Manager) OpenTab(ctx context.Context, src Source) (*Tab, error) {
	m.mu.Lock()
	b := m.browser
	if b == nil {
		m.mu.Unlock()
		return nil, fmt.Errorf("browser: no active browser")
	}
	m.open++
	m.mu.Unlock()

	t := &Tab{manager: m}
	page, err := m.newPage(b)
	if err != nil {
		t.release()
		return nil, fmt.Errorf("browser: create tab: %w", err)
	}
	t.Page = page

	if err := t.load(ctx, src); err != nil {
		_ = t.Close()
		return nil, err
	}
	return t, nil
}

func (m *Manager) newPage(b *rod.Browser) (*rod.Page, error) {
	if m.cfg.Stealth {
		return stealth.Page(b)
	}
	return b.Page(proto.TargetCreateTarget{URL: ""})
}

func (t *Tab) load(ctx context.Context, src Source) error {
	cfg := t.manager.cfg

	if src.UserAgent != "" {
		err := t.Page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: src.UserAgent})
		if err != nil {
			return fmt.Errorf("browser: set user agent: %w", err)
		}
	}

	navCtx, cancel := context.WithTimeout(ctx, cfg.NavigateTimeout)
	defer cancel()
	p := t.Page.Context(navCtx)

	switch {
	case src.HTML != "":
		if err := p.SetDocumentContent(src.HTML); err != nil {
			return fmt.Errorf("browser: set document: %w", err)
		}
	case src.URL != "":
		if err := p.Navigate(src.URL); err != nil {
			return fmt.Errorf("browser: navigate %s: %w", src.URL, err)
		}
	default:
		return fmt.Errorf("browser: source has neither url nor html")
	}

	if err := p.WaitLoad(); err != nil {
		cfg.Logger.Warn("wait load timeout", "url", src.URL, "error", err)
	}
	return nil
}

// Close closes the tab. It is safe to call more than once.
func (t *Tab) Close() error {
	if t.closed {
		return nil
	}
	defer t.release()
	if t.Page != nil {
		return t.Page.Close()
	}
	return nil
}

func (t *Tab) release() {
	if t.closed {
		return
	}
	t.closed = true
	t.manager.mu.Lock()
	t.manager.open--
	t.manager.mu.Unlock()
}
