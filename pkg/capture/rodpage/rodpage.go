// Package rodpage implements capture.Element over a Chrome page driven by
// go-rod. Every DOM operation is one Runtime.callFunctionOn round trip with
// the element bound to this.
package rodpage

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"

	"github.com/matzehuels/receiptify/pkg/capture"
	"github.com/matzehuels/receiptify/pkg/errors"
	"github.com/matzehuels/receiptify/pkg/receipt"
)

// belowFold is the gap between the document end and an attached clone.
const belowFold = 256

// Element adapts a rod element to capture.Element.
type Element struct {
	el *rod.Element
}

// Wrap returns el as a capture.Element.
func Wrap(el *rod.Element) *Element {
	return &Element{el: el}
}

// Rod returns the underlying rod element.
func (e *Element) Rod() *rod.Element { return e.el }

func (e *Element) eval(ctx context.Context, js string, args ...any) (*proto.RuntimeRemoteObject, error) {
	return e.el.Context(ctx).Eval(js, args...)
}

// Clone implements capture.Element. The copy is positioned absolutely below
// the end of the document so it lies outside the viewport but remains
// capturable.
func (e *Element) Clone(ctx context.Context, style string) (capture.Element, error) {
	c, err := e.el.Context(ctx).ElementByJS(rod.Eval(`(style, gap) => {
		const c = this.cloneNode(true);
		const top = Math.max(document.documentElement.scrollHeight, window.innerHeight) + gap;
		c.setAttribute("style", "position:absolute;left:0;top:" + top + "px;z-index:0;" + style);
		c.removeAttribute("id");
		document.body.appendChild(c);
		return c;
	}`, style, belowFold))
	if err != nil {
		return nil, fmt.Errorf("rodpage: clone: %w", err)
	}
	return &Element{el: c}, nil
}

// Remove implements capture.Element.
func (e *Element) Remove(ctx context.Context) error {
	return e.el.Context(ctx).Remove()
}

// Style implements capture.Element.
func (e *Element) Style(ctx context.Context) (string, error) {
	res, err := e.eval(ctx, `() => this.getAttribute("style") || ""`)
	if err != nil {
		return "", fmt.Errorf("rodpage: read style: %w", err)
	}
	return res.Value.Str(), nil
}

// SetStyle implements capture.Element. An empty style removes the attribute
// so the element ends up byte-identical to one that never had one.
func (e *Element) SetStyle(ctx context.Context, style string) error {
	_, err := e.eval(ctx, `(style) => {
		if (style === "") this.removeAttribute("style");
		else this.setAttribute("style", style);
	}`, style)
	if err != nil {
		return fmt.Errorf("rodpage: set style: %w", err)
	}
	return nil
}

// AncestorStyles implements capture.Element.
func (e *Element) AncestorStyles(ctx context.Context) ([]string, error) {
	res, err := e.eval(ctx, `() => {
		const out = [];
		for (let n = this.parentElement; n; n = n.parentElement) out.push(n.getAttribute("style") || "");
		return out;
	}`)
	if err != nil {
		return nil, fmt.Errorf("rodpage: read ancestor styles: %w", err)
	}
	var styles []string
	if err := res.Value.Unmarshal(&styles); err != nil {
		return nil, fmt.Errorf("rodpage: decode ancestor styles: %w", err)
	}
	return styles, nil
}

// SetAncestorStyles implements capture.Element.
func (e *Element) SetAncestorStyles(ctx context.Context, styles []string) error {
	_, err := e.eval(ctx, `(styles) => {
		let n = this.parentElement;
		for (const s of styles) {
			if (!n) break;
			if (s === "") n.removeAttribute("style");
			else n.setAttribute("style", s);
			n = n.parentElement;
		}
	}`, styles)
	if err != nil {
		return fmt.Errorf("rodpage: set ancestor styles: %w", err)
	}
	return nil
}

type jsNode struct {
	Tag     string            `json:"tag"`
	Classes []string          `json:"classes"`
	Role    string            `json:"role"`
	Attrs   map[string]string `json:"attrs"`
}

// Nodes implements capture.Element.
func (e *Element) Nodes(ctx context.Context) ([]capture.Node, error) {
	res, err := e.eval(ctx, `() => Array.from(this.querySelectorAll("*"), (n) => ({
		tag: n.tagName.toLowerCase(),
		classes: Array.from(n.classList || []),
		role: n.getAttribute("role") || "",
		attrs: Object.fromEntries(Array.from(n.attributes, (a) => [a.name, a.value])),
	}))`)
	if err != nil {
		return nil, fmt.Errorf("rodpage: list nodes: %w", err)
	}
	var raw []jsNode
	if err := res.Value.Unmarshal(&raw); err != nil {
		return nil, fmt.Errorf("rodpage: decode nodes: %w", err)
	}
	nodes := make([]capture.Node, len(raw))
	for i, n := range raw {
		nodes[i] = capture.Node{Index: i, Tag: n.Tag, Classes: n.Classes, Role: n.Role, Attrs: n.Attrs}
	}
	return nodes, nil
}

// RemoveNodes implements capture.Element.
func (e *Element) RemoveNodes(ctx context.Context, indices []int) error {
	_, err := e.eval(ctx, `(indices) => {
		const all = this.querySelectorAll("*");
		for (const i of indices) all[i]?.remove();
	}`, indices)
	if err != nil {
		return fmt.Errorf("rodpage: remove nodes: %w", err)
	}
	return nil
}

// NodeStyles implements capture.Element.
func (e *Element) NodeStyles(ctx context.Context, indices []int) ([]string, error) {
	res, err := e.eval(ctx, `(indices) => {
		const all = this.querySelectorAll("*");
		return indices.map((i) => all[i]?.getAttribute("style") || "");
	}`, indices)
	if err != nil {
		return nil, fmt.Errorf("rodpage: read node styles: %w", err)
	}
	var styles []string
	if err := res.Value.Unmarshal(&styles); err != nil {
		return nil, fmt.Errorf("rodpage: decode node styles: %w", err)
	}
	return styles, nil
}

// SetNodeStyles implements capture.Element.
func (e *Element) SetNodeStyles(ctx context.Context, indices []int, styles []string) error {
	_, err := e.eval(ctx, `(indices, styles) => {
		const all = this.querySelectorAll("*");
		indices.forEach((i, k) => {
			const n = all[i];
			if (!n) return;
			if (styles[k] === "") n.removeAttribute("style");
			else n.setAttribute("style", styles[k]);
		});
	}`, indices, styles)
	if err != nil {
		return fmt.Errorf("rodpage: set node styles: %w", err)
	}
	return nil
}

// Images implements capture.Element.
func (e *Element) Images(ctx context.Context) ([]capture.Image, error) {
	els, err := e.el.Context(ctx).ElementsByJS(rod.Eval(`() => Array.from(this.getElementsByTagName("img"))`))
	if err != nil {
		return nil, fmt.Errorf("rodpage: list images: %w", err)
	}
	images := make([]capture.Image, len(els))
	for i, el := range els {
		images[i] = imageElement{el: el}
	}
	return images, nil
}

type imageElement struct {
	el *rod.Element
}

// Settle resolves on load and on error alike.
func (i imageElement) Settle(ctx context.Context) error {
	_, err := i.el.Context(ctx).Eval(`() => this.complete || new Promise((resolve) => {
		this.addEventListener("load", () => resolve(true), { once: true });
		this.addEventListener("error", () => resolve(false), { once: true });
	})`)
	return err
}

type box struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Rasterize implements capture.Element. It screenshots the element's border
// box in document coordinates at scale 1 with bg as the page background.
func (e *Element) Rasterize(ctx context.Context, bg color.NRGBA) (image.Image, error) {
	page := e.el.Page().Context(ctx)

	res, err := e.eval(ctx, `() => {
		const r = this.getBoundingClientRect();
		return { x: r.left + window.scrollX, y: r.top + window.scrollY, width: r.width, height: r.height };
	}`)
	if err != nil {
		return nil, fmt.Errorf("rodpage: measure: %w", err)
	}
	var b box
	if err := res.Value.Unmarshal(&b); err != nil {
		return nil, fmt.Errorf("rodpage: decode box: %w", err)
	}
	if b.Width <= 0 || b.Height <= 0 {
		return nil, fmt.Errorf("rodpage: element has no layout box (%gx%g)", b.Width, b.Height)
	}

	alpha := 1.0
	err = proto.EmulationSetDefaultBackgroundColorOverride{
		Color: &proto.DOMRGBA{R: int(bg.R), G: int(bg.G), B: int(bg.B), A: &alpha},
	}.Call(page)
	if err != nil {
		return nil, fmt.Errorf("rodpage: set background: %w", err)
	}
	defer func() { _ = proto.EmulationSetDefaultBackgroundColorOverride{}.Call(page) }()

	bin, err := page.Screenshot(false, &proto.PageCaptureScreenshot{
		Format: proto.PageCaptureScreenshotFormatPng,
		Clip: &proto.PageViewport{
			X:      b.X,
			Y:      b.Y,
			Width:  b.Width,
			Height: b.Height,
			Scale:  1,
		},
		CaptureBeyondViewport: true,
	})
	if err != nil {
		return nil, fmt.Errorf("rodpage: screenshot: %w", err)
	}

	img, err := png.Decode(bytes.NewReader(bin))
	if err != nil {
		return nil, fmt.Errorf("rodpage: decode screenshot: %w", err)
	}
	return img, nil
}

// =============================================================================
// Target Resolution
// =============================================================================

// Resolver returns a capture.TargetFunc that looks up selector on page at
// every attempt. An empty scheme is detected from the page: a "dark" class on
// the root element or a dark prefers-color-scheme selects the dark scheme.
func Resolver(page *rod.Page, selector string, scheme receipt.ColorScheme) capture.TargetFunc {
	return func(ctx context.Context) (*capture.Target, error) {
		p := page.Context(ctx)
		ok, el, err := p.Has(selector)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeCapture, err, "look up receipt element")
		}
		if !ok {
			return nil, errors.New(errors.ErrCodeCapture, "receipt element %q not found", selector)
		}

		res, err := el.Eval(`() => {
			const r = this.getBoundingClientRect();
			const root = document.documentElement;
			const dark = root.classList.contains("dark") ||
				(!root.classList.contains("light") && window.matchMedia("(prefers-color-scheme: dark)").matches);
			return { width: Math.round(r.width), height: Math.round(r.height), dark };
		}`)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeCapture, err, "measure receipt element")
		}
		var m struct {
			Width  int  `json:"width"`
			Height int  `json:"height"`
			Dark   bool `json:"dark"`
		}
		if err := res.Value.Unmarshal(&m); err != nil {
			return nil, errors.Wrap(errors.ErrCodeCapture, err, "measure receipt element")
		}

		s := scheme
		if s == "" {
			s = receipt.SchemeLight
			if m.Dark {
				s = receipt.SchemeDark
			}
		}
		return &capture.Target{Element: Wrap(el), Width: m.Width, Height: m.Height, Scheme: s}, nil
	}
}
