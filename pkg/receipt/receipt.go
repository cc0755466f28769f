// Package receipt defines the data model shared by the receipt export engine.
//
// A receipt export turns a rendered receipt card into a PNG artifact of fixed
// dimensions and hands it to a delivery channel. The types in this package
// describe the values that flow between the stages:
//
//	capture.Target → RasterResult → Artifact → deliver.Delivery
//
// Every value is scoped to a single export call. Nothing here is retained
// across calls.
package receipt

import (
	"fmt"
	"image"
	"image/color"
)

// Canonical artifact properties. All exports of a receipt share them.
const (
	// Width is the canonical receipt width in pixels.
	Width = 758

	// Height is the canonical receipt height in pixels.
	Height = 1384

	// Filename is the name every exported receipt is saved and shared under.
	Filename = "spotify-receipt.png"

	// MIMEType is the media type of the exported artifact.
	MIMEType = "image/png"
)

// =============================================================================
// Color Scheme
// =============================================================================

// ColorScheme is the color scheme active on the receipt card.
type ColorScheme string

// Supported color schemes.
const (
	SchemeDark  ColorScheme = "dark"
	SchemeLight ColorScheme = "light"
)

var (
	backgroundDark  = color.NRGBA{R: 0x18, G: 0x18, B: 0x18, A: 0xff} // #181818
	backgroundLight = color.NRGBA{R: 0xf8, G: 0xfa, B: 0xfc, A: 0xff} // #f8fafc
)

// ParseColorScheme validates s. An empty string selects the dark scheme.
func ParseColorScheme(s string) (ColorScheme, error) {
	switch ColorScheme(s) {
	case "", SchemeDark:
		return SchemeDark, nil
	case SchemeLight:
		return SchemeLight, nil
	}
	return "", fmt.Errorf("invalid color scheme: %q (must be one of: dark, light)", s)
}

// Background returns the solid fill painted behind transparent regions.
func (s ColorScheme) Background() color.NRGBA {
	if s == SchemeLight {
		return backgroundLight
	}
	return backgroundDark
}

// BackgroundHex returns Background formatted as a CSS hex color.
func (s ColorScheme) BackgroundHex() string {
	c := s.Background()
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

// =============================================================================
// Mode and Outcome
// =============================================================================

// Mode selects what the user asked for.
type Mode string

// Export modes.
const (
	ModeShare    Mode = "share"
	ModeDownload Mode = "download"
)

// ParseMode validates s. An empty string selects download.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "", ModeDownload:
		return ModeDownload, nil
	case ModeShare:
		return ModeShare, nil
	}
	return "", fmt.Errorf("invalid mode: %q (must be one of: share, download)", s)
}

// Outcome is the terminal result of a delivery. Every export resolves to
// exactly one of these.
type Outcome string

// Delivery outcomes.
const (
	OutcomeShared   Outcome = "shared"
	OutcomeDownload Outcome = "downloaded"
	OutcomeOpened   Outcome = "opened-for-manual-save"
	OutcomeRefused  Outcome = "refused"
)

// =============================================================================
// Raster and Artifact
// =============================================================================

// RasterResult is the pixel surface produced by a capture backend.
// Image is always exactly Width×Height and fully opaque.
type RasterResult struct {
	Image      *image.NRGBA
	Background color.NRGBA
	Backend    string // name of the backend that produced it
}

// Bounds returns the raster dimensions.
func (r *RasterResult) Bounds() image.Rectangle {
	if r == nil || r.Image == nil {
		return image.Rectangle{}
	}
	return r.Image.Bounds()
}

// Blob is an in-memory binary object with a media type.
type Blob struct {
	Data []byte
	Type string
}

// Size returns the blob length in bytes.
func (b Blob) Size() int { return len(b.Data) }

// Artifact is the encoded, deliverable image of one export call.
// It is immutable after creation; callers must not modify Blob.Data.
type Artifact struct {
	DataURL  string
	Blob     Blob
	Filename string

	// Digest is the hex SHA-256 of Blob.Data.
	Digest string
}

// File is the artifact viewed as a named file, as handed to share sheets
// and download anchors.
type File struct {
	Name string
	Type string
	Data []byte
}

// File returns the artifact as a File.
func (a *Artifact) File() File {
	return File{Name: a.Filename, Type: a.Blob.Type, Data: a.Blob.Data}
}
