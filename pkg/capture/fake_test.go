package capture

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"strings"
	"sync"
	"time"
)

// fakeDoc tracks which elements are attached to the document.
type fakeDoc struct {
	mu       sync.Mutex
	attached map[*fakeElement]bool
	last     *fakeElement // most recent clone
}

func newFakeDoc() *fakeDoc {
	return &fakeDoc{attached: make(map[*fakeElement]bool)}
}

func (d *fakeDoc) clones() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for el := range d.attached {
		if el.clone {
			n++
		}
	}
	return n
}

type fakeNode struct {
	Node
	style   string
	removed bool
}

type fakeImage struct {
	delay time.Duration
	fails bool // load error; still settles
	hang  bool
}

func (i *fakeImage) Settle(ctx context.Context) error {
	if i.hang {
		<-ctx.Done()
		return ctx.Err()
	}
	select {
	case <-time.After(i.delay):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

type fakeElement struct {
	doc       *fakeDoc
	clone     bool
	style     string
	ancestors []string
	nodes     []*fakeNode
	images    []Image

	raster    image.Image
	rasterErr error
	removeErr error

	// observed when Rasterize is called
	rasterized      bool
	rasterStyle     string
	rasterAncestors []string
	rasterNodes     []Node
	rasterBG        color.NRGBA
}

func newFakeCard(raster image.Image) *fakeElement {
	doc := newFakeDoc()
	el := &fakeElement{
		doc:       doc,
		style:     "width: 320px; transform: scale(0.5)",
		ancestors: []string{"transform: rotate(2deg) scale(0.8)", ""},
		nodes: []*fakeNode{
			{Node: Node{Index: 0, Tag: "div", Classes: []string{"receipt-header"}}},
			{Node: Node{Index: 1, Tag: "div", Classes: []string{"loading-spinner"}}, style: "color: red"},
			{Node: Node{Index: 2, Tag: "span", Classes: []string{"absolute", "top-0"}}},
			{Node: Node{Index: 3, Tag: "img"}},
			{Node: Node{Index: 4, Tag: "div", Role: "tooltip"}},
			{Node: Node{Index: 5, Tag: "p", Classes: []string{"total"}}},
		},
		images: []Image{&fakeImage{delay: time.Millisecond}},
		raster: raster,
	}
	doc.attached[el] = true
	return el
}

func (e *fakeElement) Clone(_ context.Context, style string) (Element, error) {
	c := &fakeElement{
		doc:       e.doc,
		clone:     true,
		style:     style,
		images:    e.images,
		raster:    e.raster,
		rasterErr: e.rasterErr,
		removeErr: e.removeErr,
	}
	for _, n := range e.nodes {
		cp := *n
		c.nodes = append(c.nodes, &cp)
	}
	e.doc.mu.Lock()
	e.doc.attached[c] = true
	e.doc.last = c
	e.doc.mu.Unlock()
	return c, nil
}

func (e *fakeElement) Remove(context.Context) error {
	if e.removeErr != nil {
		return e.removeErr
	}
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	if !e.doc.attached[e] {
		return fmt.Errorf("element not attached")
	}
	delete(e.doc.attached, e)
	return nil
}

func (e *fakeElement) Style(context.Context) (string, error) { return e.style, nil }

func (e *fakeElement) SetStyle(_ context.Context, style string) error {
	e.style = style
	return nil
}

func (e *fakeElement) AncestorStyles(context.Context) ([]string, error) {
	return append([]string(nil), e.ancestors...), nil
}

func (e *fakeElement) SetAncestorStyles(_ context.Context, styles []string) error {
	for i := range e.ancestors {
		if i < len(styles) {
			e.ancestors[i] = styles[i]
		}
	}
	return nil
}

func (e *fakeElement) Nodes(context.Context) ([]Node, error) {
	var out []Node
	for _, n := range e.nodes {
		if !n.removed {
			out = append(out, n.Node)
		}
	}
	return out, nil
}

func (e *fakeElement) node(i int) (*fakeNode, error) {
	for _, n := range e.nodes {
		if n.Index == i {
			return n, nil
		}
	}
	return nil, fmt.Errorf("no node at index %d", i)
}

func (e *fakeElement) RemoveNodes(_ context.Context, indices []int) error {
	for _, i := range indices {
		n, err := e.node(i)
		if err != nil {
			return err
		}
		n.removed = true
	}
	return nil
}

func (e *fakeElement) NodeStyles(_ context.Context, indices []int) ([]string, error) {
	out := make([]string, len(indices))
	for k, i := range indices {
		n, err := e.node(i)
		if err != nil {
			return nil, err
		}
		out[k] = n.style
	}
	return out, nil
}

func (e *fakeElement) SetNodeStyles(_ context.Context, indices []int, styles []string) error {
	for k, i := range indices {
		n, err := e.node(i)
		if err != nil {
			return err
		}
		n.style = styles[k]
	}
	return nil
}

func (e *fakeElement) Images(context.Context) ([]Image, error) { return e.images, nil }

// visibleNodes returns the nodes neither removed nor hidden.
func (e *fakeElement) visibleNodes() []Node {
	var out []Node
	for _, n := range e.nodes {
		if !n.removed && !strings.Contains(n.style, "display:none") {
			out = append(out, n.Node)
		}
	}
	return out
}

func (e *fakeElement) Rasterize(_ context.Context, bg color.NRGBA) (image.Image, error) {
	e.rasterized = true
	e.rasterStyle = e.style
	e.rasterAncestors = append([]string(nil), e.ancestors...)
	e.rasterNodes = e.visibleNodes()
	e.rasterBG = bg
	if e.rasterErr != nil {
		return nil, e.rasterErr
	}
	return e.raster, nil
}

// solid returns a w×h image filled with c.
func solid(w, h int, c color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = c.R, c.G, c.B, c.A
	}
	return img
}
