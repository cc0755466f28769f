package deliver

import (
	"context"
	stderrors "errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/matzehuels/receiptify/pkg/errors"
	"github.com/matzehuels/receiptify/pkg/receipt"
)

const (
	uaIPhoneSafari  = "Mozilla/5.0 (iPhone; CPU iPhone OS 17_4 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Mobile/15E148 Safari/604.1"
	uaIPhoneChrome  = "Mozilla/5.0 (iPhone; CPU iPhone OS 17_4 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) CriOS/123.0.6312.52 Mobile/15E148 Safari/604.1"
	uaIPadSafari    = "Mozilla/5.0 (iPad; CPU OS 16_6 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/16.6 Mobile/15E148 Safari/604.1"
	uaAndroid       = "Mozilla/5.0 (Linux; Android 14; Pixel 8) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Mobile Safari/537.36"
	uaOperaDesktop  = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36 OPR/108.0.0.0"
	uaDesktopChrome = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36"
	uaInstagramIOS  = "Mozilla/5.0 (iPhone; CPU iPhone OS 17_4 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Mobile/15E148 Instagram 325.0.0.35.91 (iPhone14,5; iOS 17_4)"
	uaInstagramDesk = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36 Instagram 325.0.0.35.91"
)

func TestDetect(t *testing.T) {
	tests := []struct {
		name string
		ua   string
		want Profile
	}{
		{"iPhone Safari", uaIPhoneSafari, Profile{IsMobile: true, IsIOS: true, IsIOSSafari: true}},
		{"iPad Safari", uaIPadSafari, Profile{IsMobile: true, IsIOS: true, IsIOSSafari: true}},
		{"iPhone Chrome", uaIPhoneChrome, Profile{IsMobile: true, IsIOS: true}},
		{"Android", uaAndroid, Profile{IsMobile: true}},
		{"Opera desktop", uaOperaDesktop, Profile{IsOpera: true}},
		{"desktop Chrome", uaDesktopChrome, Profile{}},
		{"Instagram iOS", uaInstagramIOS, Profile{IsMobile: true, IsIOS: true, IsInstagram: true}},
		{"Instagram desktop", uaInstagramDesk, Profile{IsInstagram: true}},
		{"empty", "", Profile{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Detect(Probe{UserAgent: tt.ua}); got != tt.want {
				t.Errorf("Detect() = %+v, want %+v", got, tt.want)
			}
		})
	}

	p := Detect(Probe{UserAgent: uaAndroid, SupportsWebShare: true, SupportsFiles: true})
	if !p.SupportsWebShare || !p.SupportsFiles {
		t.Errorf("Detect() should carry capability flags, got %+v", p)
	}
}

func TestRoute(t *testing.T) {
	canShare := Profile{IsMobile: true, SupportsWebShare: true, SupportsFiles: true}

	tests := []struct {
		name    string
		profile Profile
		mode    receipt.Mode
		want    Route
	}{
		{"iOS Safari download", Profile{IsIOSSafari: true}, receipt.ModeDownload, RouteTab},
		{"iOS Safari share", Profile{IsIOSSafari: true, SupportsWebShare: true, SupportsFiles: true}, receipt.ModeShare, RouteTab},
		{"Opera share", Profile{IsOpera: true, SupportsWebShare: true, SupportsFiles: true}, receipt.ModeShare, RouteTab},
		{"share supported", canShare, receipt.ModeShare, RouteShare},
		{"share without files", Profile{SupportsWebShare: true}, receipt.ModeShare, RouteDownload},
		{"share without web share", Profile{SupportsFiles: true}, receipt.ModeShare, RouteDownload},
		{"download on share-capable", canShare, receipt.ModeDownload, RouteDownload},
		{"desktop download", Profile{}, receipt.ModeDownload, RouteDownload},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.profile.Route(tt.mode); got != tt.want {
				t.Errorf("Route() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAdmit(t *testing.T) {
	tests := []struct {
		name    string
		profile Profile
		mode    receipt.Mode
		refused bool
	}{
		{"instagram desktop share", Profile{IsInstagram: true}, receipt.ModeShare, true},
		{"instagram desktop download", Profile{IsInstagram: true}, receipt.ModeDownload, false},
		{"instagram mobile share", Profile{IsInstagram: true, IsMobile: true}, receipt.ModeShare, false},
		{"desktop share", Profile{}, receipt.ModeShare, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Admit(tt.profile, tt.mode)
			if (err != nil) != tt.refused {
				t.Fatalf("Admit() error = %v, refused %v", err, tt.refused)
			}
			if err != nil && !errors.Is(err, errors.ErrCodeShareRefused) {
				t.Errorf("Admit() code = %v, want %v", errors.GetCode(err), errors.ErrCodeShareRefused)
			}
			if err != nil && errors.UserMessage(err) != InstagramDesktopMessage {
				t.Errorf("UserMessage() = %q", errors.UserMessage(err))
			}
		})
	}
}

// =============================================================================
// Dispatcher
// =============================================================================

type fakePlatform struct {
	mu sync.Mutex

	probe       Probe
	canShare    bool
	canShareErr error
	shareErr    error
	downloadErr error
	openErr     error

	events  []string
	live    map[string]bool
	shared  []ShareData
	nextURL int
}

func newFakePlatform() *fakePlatform {
	return &fakePlatform{live: make(map[string]bool)}
}

func (p *fakePlatform) record(format string, args ...any) {
	p.mu.Lock()
	p.events = append(p.events, fmt.Sprintf(format, args...))
	p.mu.Unlock()
}

func (p *fakePlatform) Probe(context.Context) (Probe, error) { return p.probe, nil }

func (p *fakePlatform) CanShare(_ context.Context, f receipt.File) (bool, error) {
	p.record("canShare %s", f.Name)
	return p.canShare, p.canShareErr
}

func (p *fakePlatform) Share(_ context.Context, data ShareData) error {
	p.record("share")
	p.shared = append(p.shared, data)
	return p.shareErr
}

func (p *fakePlatform) CreateObjectURL(context.Context, receipt.Blob, string) (string, error) {
	p.mu.Lock()
	p.nextURL++
	url := fmt.Sprintf("blob:receipt/%d", p.nextURL)
	p.live[url] = true
	p.mu.Unlock()
	p.record("create %s", url)
	return url, nil
}

func (p *fakePlatform) RevokeObjectURL(_ context.Context, url string) error {
	p.mu.Lock()
	delete(p.live, url)
	p.mu.Unlock()
	p.record("revoke %s", url)
	return nil
}

func (p *fakePlatform) Download(_ context.Context, url, filename string) error {
	p.record("download %s as %s", url, filename)
	return p.downloadErr
}

func (p *fakePlatform) OpenTab(context.Context, string) error {
	p.record("openTab")
	return p.openErr
}

func (p *fakePlatform) liveURLs() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.live)
}

func artifact() *receipt.Artifact {
	return &receipt.Artifact{
		DataURL:  "data:image/png;base64,iVBORw0KGgo=",
		Blob:     receipt.Blob{Data: []byte("\x89PNG"), Type: receipt.MIMEType},
		Filename: receipt.Filename,
	}
}

// recordingSleep records requested delays and the event log length at the
// time of the call.
type recordingSleep struct {
	p      *fakePlatform
	delays []time.Duration
}

func (s *recordingSleep) sleep(_ context.Context, d time.Duration) error {
	s.delays = append(s.delays, d)
	s.p.record("sleep %s", d)
	return nil
}

func newDispatcher(p *fakePlatform, delay time.Duration) (*Dispatcher, *recordingSleep) {
	rs := &recordingSleep{p: p}
	return New(p, Options{RevokeDelay: delay, Sleep: rs.sleep}), rs
}

func TestDeliverIOSSafariAlwaysOpensTab(t *testing.T) {
	for _, mode := range []receipt.Mode{receipt.ModeShare, receipt.ModeDownload} {
		p := newFakePlatform()
		p.canShare = true
		d, _ := newDispatcher(p, 0)

		prof := Profile{IsMobile: true, IsIOS: true, IsIOSSafari: true, SupportsWebShare: true, SupportsFiles: true}
		res, err := d.Deliver(context.Background(), artifact(), mode, prof)
		if err != nil {
			t.Fatalf("%s: Deliver() error = %v", mode, err)
		}
		if res.Outcome != receipt.OutcomeOpened {
			t.Errorf("%s: Outcome = %q, want %q", mode, res.Outcome, receipt.OutcomeOpened)
		}
		if len(p.events) != 1 || p.events[0] != "openTab" {
			t.Errorf("%s: events = %v, want only openTab", mode, p.events)
		}
	}
}

func TestDeliverShare(t *testing.T) {
	p := newFakePlatform()
	p.canShare = true
	d, _ := newDispatcher(p, 0)

	prof := Profile{IsMobile: true, SupportsWebShare: true, SupportsFiles: true}
	res, err := d.Deliver(context.Background(), artifact(), receipt.ModeShare, prof)
	if err != nil {
		t.Fatalf("Deliver() error = %v", err)
	}
	if res.Outcome != receipt.OutcomeShared || res.FellBack {
		t.Errorf("Deliver() = %+v, want shared without fallback", res)
	}
	if len(p.shared) != 1 {
		t.Fatalf("share called %d times, want 1", len(p.shared))
	}
	got := p.shared[0]
	if got.Title != "My Spotify Receiptify" || got.Text != "Check out my Spotify stats!" {
		t.Errorf("share payload = %q / %q", got.Title, got.Text)
	}
	if len(got.Files) != 1 || got.Files[0].Name != "spotify-receipt.png" || got.Files[0].Type != "image/png" {
		t.Errorf("share files = %+v", got.Files)
	}
}

func TestDeliverShareFallsBackToDownload(t *testing.T) {
	prof := Profile{IsMobile: true, SupportsWebShare: true, SupportsFiles: true}

	tests := []struct {
		name  string
		setup func(p *fakePlatform)
	}{
		{"canShare false", func(p *fakePlatform) { p.canShare = false }},
		{"canShare errors", func(p *fakePlatform) { p.canShareErr = stderrors.New("TypeError") }},
		{"user cancels", func(p *fakePlatform) { p.canShare, p.shareErr = true, ErrShareCanceled }},
		{"share fails", func(p *fakePlatform) { p.canShare, p.shareErr = true, stderrors.New("NotAllowedError") }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newFakePlatform()
			tt.setup(p)
			d, _ := newDispatcher(p, 0)

			res, err := d.Deliver(context.Background(), artifact(), receipt.ModeShare, prof)
			if err != nil {
				t.Fatalf("Deliver() error = %v", err)
			}
			if res.Outcome != receipt.OutcomeDownload {
				t.Errorf("Outcome = %q, want %q", res.Outcome, receipt.OutcomeDownload)
			}
			if !res.FellBack {
				t.Error("FellBack = false, want true")
			}
			if p.liveURLs() != 0 {
				t.Errorf("%d object URLs left live", p.liveURLs())
			}
		})
	}
}

func TestDeliverShareUnsupportedProfile(t *testing.T) {
	p := newFakePlatform()
	d, _ := newDispatcher(p, 0)

	res, err := d.Deliver(context.Background(), artifact(), receipt.ModeShare, Profile{IsMobile: true})
	if err != nil {
		t.Fatalf("Deliver() error = %v", err)
	}
	if res.Outcome != receipt.OutcomeDownload || !res.FellBack {
		t.Errorf("Deliver() = %+v, want downloaded with fallback", res)
	}
	for _, e := range p.events {
		if e == "share" {
			t.Error("share sheet should not open when the profile lacks file sharing")
		}
	}
}

func TestDeliverDownloadRevokesAfterDelay(t *testing.T) {
	p := newFakePlatform()
	d, rs := newDispatcher(p, 1500*time.Millisecond)

	res, err := d.Deliver(context.Background(), artifact(), receipt.ModeDownload, Profile{})
	if err != nil {
		t.Fatalf("Deliver() error = %v", err)
	}
	if res.Outcome != receipt.OutcomeDownload || res.FellBack {
		t.Errorf("Deliver() = %+v, want downloaded", res)
	}

	want := []string{
		"create blob:receipt/1",
		"download blob:receipt/1 as spotify-receipt.png",
		"sleep 1.5s",
		"revoke blob:receipt/1",
	}
	if fmt.Sprint(p.events) != fmt.Sprint(want) {
		t.Errorf("events = %v, want %v", p.events, want)
	}
	if len(rs.delays) != 1 || rs.delays[0] != 1500*time.Millisecond {
		t.Errorf("delays = %v, want [1.5s]", rs.delays)
	}
}

func TestDeliverRevokeDelayFloor(t *testing.T) {
	p := newFakePlatform()
	d, rs := newDispatcher(p, 10*time.Millisecond)

	if _, err := d.Deliver(context.Background(), artifact(), receipt.ModeDownload, Profile{}); err != nil {
		t.Fatalf("Deliver() error = %v", err)
	}
	if len(rs.delays) != 1 || rs.delays[0] < time.Second {
		t.Errorf("delays = %v, want at least 1s", rs.delays)
	}
}

func TestDeliverDownloadFailureRevokes(t *testing.T) {
	p := newFakePlatform()
	p.downloadErr = stderrors.New("anchor click blocked")
	d, _ := newDispatcher(p, 0)

	res, err := d.Deliver(context.Background(), artifact(), receipt.ModeDownload, Profile{})
	if !errors.Is(err, errors.ErrCodeDelivery) {
		t.Fatalf("Deliver() error = %v, want %s", err, errors.ErrCodeDelivery)
	}
	if res != nil {
		t.Errorf("Deliver() = %+v, want nil", res)
	}
	if p.liveURLs() != 0 {
		t.Errorf("%d object URLs left live", p.liveURLs())
	}
}

func TestDeliverCancelledStillRevokes(t *testing.T) {
	p := newFakePlatform()
	d := New(p, Options{})

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(10*time.Millisecond, cancel)

	start := time.Now()
	res, err := d.Deliver(ctx, artifact(), receipt.ModeDownload, Profile{})
	if err != nil {
		t.Fatalf("Deliver() error = %v", err)
	}
	if res.Outcome != receipt.OutcomeDownload {
		t.Errorf("Outcome = %q, want downloaded", res.Outcome)
	}
	if time.Since(start) > 500*time.Millisecond {
		t.Error("cancellation should cut the revoke delay short")
	}
	if p.liveURLs() != 0 {
		t.Errorf("%d object URLs left live", p.liveURLs())
	}
}

func TestDeliverTabFailure(t *testing.T) {
	p := newFakePlatform()
	p.openErr = stderrors.New("popup blocked")
	d, _ := newDispatcher(p, 0)

	_, err := d.Deliver(context.Background(), artifact(), receipt.ModeDownload, Profile{IsOpera: true})
	if !errors.Is(err, errors.ErrCodeDelivery) {
		t.Errorf("Deliver() error = %v, want %s", err, errors.ErrCodeDelivery)
	}
}

func TestDeliverRefusesInstagramDesktop(t *testing.T) {
	p := newFakePlatform()
	d, _ := newDispatcher(p, 0)

	res, err := d.Deliver(context.Background(), artifact(), receipt.ModeShare, Profile{IsInstagram: true})
	if !errors.Is(err, errors.ErrCodeShareRefused) {
		t.Fatalf("Deliver() error = %v, want %s", err, errors.ErrCodeShareRefused)
	}
	if res == nil || res.Outcome != receipt.OutcomeRefused {
		t.Errorf("Deliver() = %+v, want refused", res)
	}
	if len(p.events) != 0 {
		t.Errorf("events = %v, want none", p.events)
	}
}

func TestDispatcherProfile(t *testing.T) {
	p := newFakePlatform()
	p.probe = Probe{UserAgent: uaIPhoneSafari, SupportsWebShare: true, SupportsFiles: true}
	d, _ := newDispatcher(p, 0)

	prof, err := d.Profile(context.Background())
	if err != nil {
		t.Fatalf("Profile() error = %v", err)
	}
	if !prof.IsIOSSafari || !prof.SupportsFiles {
		t.Errorf("Profile() = %+v", prof)
	}
}
