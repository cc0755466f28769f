package deliver

import (
	"regexp"

	"github.com/matzehuels/receiptify/pkg/errors"
	"github.com/matzehuels/receiptify/pkg/receipt"
)

// Probe is the raw environment a platform reports at the start of a call.
type Probe struct {
	UserAgent string

	// SupportsWebShare reports navigator.share.
	SupportsWebShare bool

	// SupportsFiles reports navigator.canShare, required for sharing files.
	SupportsFiles bool
}

// Profile is the environment snapshot a delivery is routed on. It is derived
// from a fresh Probe on every call and never cached: share capability can
// change with runtime permission state.
type Profile struct {
	IsMobile         bool
	IsIOS            bool
	IsIOSSafari      bool
	IsOpera          bool
	IsInstagram      bool
	SupportsWebShare bool
	SupportsFiles    bool
}

var (
	mobileRE    = regexp.MustCompile(`(?i)iPhone|iPad|iPod|Android`)
	iosRE       = regexp.MustCompile(`iPad|iPhone|iPod`)
	safariRE    = regexp.MustCompile(`Safari`)
	iosOtherRE  = regexp.MustCompile(`CriOS|FxiOS|EdgiOS|OPiOS|Instagram|FBAN|FBAV|GSA/`)
	operaRE     = regexp.MustCompile(`OPR/|Opera|OPiOS`)
	instagramRE = regexp.MustCompile(`Instagram`)
)

// Detect derives a Profile from p.
func Detect(p Probe) Profile {
	ua := p.UserAgent
	ios := iosRE.MatchString(ua)
	return Profile{
		IsMobile:         mobileRE.MatchString(ua),
		IsIOS:            ios,
		IsIOSSafari:      ios && safariRE.MatchString(ua) && !iosOtherRE.MatchString(ua),
		IsOpera:          operaRE.MatchString(ua),
		IsInstagram:      instagramRE.MatchString(ua),
		SupportsWebShare: p.SupportsWebShare,
		SupportsFiles:    p.SupportsFiles,
	}
}

// Route is the delivery channel a profile selects.
type Route int

// Delivery routes in precedence order.
const (
	RouteTab Route = iota
	RouteShare
	RouteDownload
)

func (r Route) String() string {
	switch r {
	case RouteTab:
		return "tab"
	case RouteShare:
		return "share"
	case RouteDownload:
		return "download"
	}
	return "unknown"
}

// Route selects the channel for mode; the first match wins.
//
//  1. iOS Safari or Opera: a new tab showing the image for manual saving.
//  2. share mode with file sharing available: the native share sheet.
//  3. otherwise: a direct download.
//
// RouteShare is provisional: the dispatcher still asks the platform whether
// the concrete file can be shared and falls back to RouteDownload if not.
func (p Profile) Route(mode receipt.Mode) Route {
	switch {
	case p.IsIOSSafari || p.IsOpera:
		return RouteTab
	case mode == receipt.ModeShare && p.SupportsWebShare && p.SupportsFiles:
		return RouteShare
	default:
		return RouteDownload
	}
}

// InstagramDesktopMessage is shown when sharing is refused in Instagram's
// desktop in-app browser.
const InstagramDesktopMessage = "Instagram sharing is only available on mobile devices"

// Admit refuses share requests the environment cannot complete. Instagram's
// embedded browser cannot finish the share handshake on desktop.
func Admit(p Profile, mode receipt.Mode) error {
	if mode == receipt.ModeShare && p.IsInstagram && !p.IsMobile {
		return errors.New(errors.ErrCodeShareRefused, InstagramDesktopMessage)
	}
	return nil
}
