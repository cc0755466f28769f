// Package capture converts a rendered receipt card into a fixed-size raster.
//
// A [Backend] receives a [Target] (a handle to the live card element plus the
// color scheme active on it) and returns a [receipt.RasterResult] that is
// always exactly receipt.Width×receipt.Height and fully opaque. Two backends
// implement the same contract:
//
//   - [CloneBackend] deep-clones the card, attaches the clone outside the
//     visible viewport, rasterizes the clone and removes it. The live card is
//     never touched.
//   - [MutateBackend] overwrites the live card's inline style to force the
//     canonical geometry, rasterizes it and restores the exact original
//     inline style string.
//
// Both wait for every image inside the rasterized subtree to settle (loaded
// or failed) before rasterizing, drop transient UI chrome selected by an
// exclusion predicate, and flatten the result over the scheme background.
//
// The document is reached through the [Element] interface; package rodpage
// implements it over a Chrome page.
//
// Concurrent captures of the same target are not supported. Callers must
// serialize exports that share a page.
package capture

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"io"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/receiptify/pkg/errors"
	"github.com/matzehuels/receiptify/pkg/receipt"
)

// DefaultSettleTimeout bounds the wait for images to settle.
const DefaultSettleTimeout = 10 * time.Second

// Backend names accepted by New.
const (
	BackendClone  = "clone"
	BackendMutate = "mutate"
)

// =============================================================================
// Document Abstraction
// =============================================================================

// Node describes one descendant of a captured element.
type Node struct {
	Index   int // position in document order among the element's descendants
	Tag     string
	Classes []string
	Role    string
	Attrs   map[string]string
}

// HasClass reports whether the node carries class c.
func (n Node) HasClass(c string) bool {
	return slices.Contains(n.Classes, c)
}

// HasAttr reports whether the node carries attribute name.
func (n Node) HasAttr(name string) bool {
	_, ok := n.Attrs[name]
	return ok
}

// Image is an image element inside a captured subtree.
type Image interface {
	// Settle blocks until the image has loaded or failed to load. A failed
	// load is not an error. Settle returns an error only when waiting itself
	// fails or ctx is done.
	Settle(ctx context.Context) error
}

// Element is a handle to a DOM element.
type Element interface {
	// Clone deep-copies the element, applies style as the copy's inline
	// style and attaches the copy to the document outside the visible
	// viewport.
	Clone(ctx context.Context, style string) (Element, error)

	// Remove detaches the element from the document.
	Remove(ctx context.Context) error

	// Style returns the element's inline style string.
	Style(ctx context.Context) (string, error)

	// SetStyle replaces the element's inline style string.
	SetStyle(ctx context.Context, style string) error

	// AncestorStyles returns the inline style strings of the element's
	// ancestors up to the root element, nearest first.
	AncestorStyles(ctx context.Context) ([]string, error)

	// SetAncestorStyles replaces the inline style strings of the element's
	// ancestors, nearest first. Entries past the root are ignored.
	SetAncestorStyles(ctx context.Context, styles []string) error

	// Nodes lists the element's descendants in document order.
	Nodes(ctx context.Context) ([]Node, error)

	// RemoveNodes detaches the descendants at the given indices.
	RemoveNodes(ctx context.Context, indices []int) error

	// NodeStyles returns the inline style strings of the given descendants.
	NodeStyles(ctx context.Context, indices []int) ([]string, error)

	// SetNodeStyles replaces the inline style strings of the given descendants.
	SetNodeStyles(ctx context.Context, indices []int, styles []string) error

	// Images lists the image elements inside the element.
	Images(ctx context.Context) ([]Image, error)

	// Rasterize paints the element's border box over bg and returns the pixels.
	Rasterize(ctx context.Context, bg color.NRGBA) (image.Image, error)
}

// Target is the card to capture in one export attempt.
type Target struct {
	Element Element
	Width   int // observed layout width
	Height  int // observed layout height
	Scheme  receipt.ColorScheme
}

// TargetFunc resolves the capture target. It is called once per attempt so a
// re-rendered card is picked up by retries.
type TargetFunc func(ctx context.Context) (*Target, error)

// Backend captures a target into a canonical raster.
type Backend interface {
	Name() string
	Capture(ctx context.Context, t *Target) (*receipt.RasterResult, error)
}

// =============================================================================
// Options
// =============================================================================

// Options configures a backend. Zero values use defaults.
type Options struct {
	// Exclude reports whether a descendant is transient UI chrome that must
	// not appear in the capture. Defaults to DefaultExclude.
	Exclude func(Node) bool

	// SettleTimeout bounds the image settle wait. Defaults to DefaultSettleTimeout.
	SettleTimeout time.Duration

	// Logger receives diagnostics. Defaults to a discarding logger.
	Logger *log.Logger
}

func (o Options) withDefaults() Options {
	if o.Exclude == nil {
		o.Exclude = DefaultExclude
	}
	if o.SettleTimeout <= 0 {
		o.SettleTimeout = DefaultSettleTimeout
	}
	if o.Logger == nil {
		o.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	return o
}

// ExcludeAttr marks an element as excluded from captures regardless of its
// classes or role.
const ExcludeAttr = "data-receipt-exclude"

var (
	excludedClasses = []string{"loading-spinner", "animate-spin", "absolute"}
	excludedRoles   = []string{"tooltip", "menu", "listbox", "dialog"}
)

// DefaultExclude drops loading spinners, absolutely positioned overlays,
// tooltips, hover cards, dropdown menus and anything marked with ExcludeAttr.
func DefaultExclude(n Node) bool {
	if n.HasAttr(ExcludeAttr) {
		return true
	}
	for _, c := range excludedClasses {
		if n.HasClass(c) {
			return true
		}
	}
	if slices.Contains(excludedRoles, n.Role) {
		return true
	}
	return n.HasAttr("data-radix-popper-content-wrapper")
}

// New returns the backend registered under name. An empty name selects the
// clone backend.
func New(name string, opts Options) (Backend, error) {
	switch name {
	case "", BackendClone:
		return NewCloneBackend(opts), nil
	case BackendMutate:
		return NewMutateBackend(opts), nil
	}
	return nil, errors.New(errors.ErrCodeInvalidInput,
		"unknown capture backend: %q (must be one of: %s, %s)", name, BackendClone, BackendMutate)
}

// =============================================================================
// Shared Steps
// =============================================================================

// frameStyle returns the declarations that force the canonical geometry and
// paint the scheme background.
func frameStyle(scheme receipt.ColorScheme) string {
	decls := []string{
		fmt.Sprintf("width:%dpx", receipt.Width),
		fmt.Sprintf("height:%dpx", receipt.Height),
		fmt.Sprintf("min-width:%dpx", receipt.Width),
		fmt.Sprintf("max-width:%dpx", receipt.Width),
		fmt.Sprintf("min-height:%dpx", receipt.Height),
		fmt.Sprintf("max-height:%dpx", receipt.Height),
		"transform:none",
		"transform-origin:center",
		"margin:0",
		"padding:0",
		"background:" + scheme.BackgroundHex(),
		"display:block",
	}
	return strings.Join(decls, ";")
}

// appendStyle appends decls to an inline style string, overriding earlier
// declarations of the same properties.
func appendStyle(style, decls string) string {
	style = strings.TrimSpace(style)
	if style == "" {
		return decls
	}
	if !strings.HasSuffix(style, ";") {
		style += ";"
	}
	return style + decls
}

func excluded(ctx context.Context, el Element, exclude func(Node) bool) ([]int, error) {
	nodes, err := el.Nodes(ctx)
	if err != nil {
		return nil, err
	}
	var idx []int
	for _, n := range nodes {
		if exclude(n) {
			idx = append(idx, n.Index)
		}
	}
	return idx, nil
}

func validateTarget(t *Target) error {
	if t == nil || t.Element == nil {
		return errors.New(errors.ErrCodeCapture, "receipt element not found")
	}
	return nil
}

func captureErr(err error, format string, args ...any) error {
	if errors.GetCode(err) == errors.ErrCodeCapture {
		return err
	}
	return errors.Wrap(errors.ErrCodeCapture, err, format, args...)
}
