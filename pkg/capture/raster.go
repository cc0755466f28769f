package capture

import (
	"image"
	"image/color"

	"golang.org/x/image/draw"

	"github.com/matzehuels/receiptify/pkg/receipt"
)

// canonicalize returns src as an opaque receipt.Width×receipt.Height raster.
// A source of another size (device pixel ratio, rounding) is scaled to fit;
// transparent regions are flattened over bg.
func canonicalize(src image.Image, bg color.NRGBA) *image.NRGBA {
	dst := image.NewNRGBA(image.Rect(0, 0, receipt.Width, receipt.Height))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(bg), image.Point{}, draw.Src)

	sb := src.Bounds()
	if sb.Dx() == receipt.Width && sb.Dy() == receipt.Height {
		draw.Draw(dst, dst.Bounds(), src, sb.Min, draw.Over)
		return dst
	}
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, sb, draw.Over, nil)
	return dst
}
