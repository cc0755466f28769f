// Package artifact turns a capture raster into the deliverable PNG.
//
// A single encode pass produces the bytes behind both the Blob and the data
// URL, so the two always carry identical image content. Encoding is
// deterministic: the same raster always yields the same bytes.
package artifact

import (
	"bytes"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"image"
	"image/png"
	"io"

	"github.com/matzehuels/receiptify/pkg/errors"
	"github.com/matzehuels/receiptify/pkg/receipt"
)

// Encoder writes an image in a lossless format.
type Encoder interface {
	Encode(w io.Writer, img image.Image) error
}

// PNGEncoder encodes at best compression. PNG is lossless at every level.
var PNGEncoder Encoder = &png.Encoder{CompressionLevel: png.BestCompression}

// Normalizer encodes rasters into artifacts.
type Normalizer struct {
	Encoder Encoder
}

// New returns a Normalizer using PNGEncoder.
func New() *Normalizer {
	return &Normalizer{Encoder: PNGEncoder}
}

// Normalize encodes raster into an artifact named receipt.Filename.
func (n *Normalizer) Normalize(raster *receipt.RasterResult) (*receipt.Artifact, error) {
	if raster == nil || raster.Image == nil {
		return nil, errors.New(errors.ErrCodeEncode, "no raster to encode")
	}
	b := raster.Bounds()
	if b.Dx() != receipt.Width || b.Dy() != receipt.Height {
		return nil, errors.New(errors.ErrCodeEncode, "raster is %dx%d, want %dx%d",
			b.Dx(), b.Dy(), receipt.Width, receipt.Height)
	}

	enc := n.Encoder
	if enc == nil {
		enc = PNGEncoder
	}

	var buf bytes.Buffer
	if err := enc.Encode(&buf, raster.Image); err != nil {
		return nil, errors.Wrap(errors.ErrCodeEncode, err, "encode receipt image")
	}
	if buf.Len() == 0 {
		return nil, errors.New(errors.ErrCodeEncode, "encoder produced no data")
	}

	data := buf.Bytes()
	sum := sha256.Sum256(data)
	return &receipt.Artifact{
		DataURL:  DataURL(receipt.MIMEType, data),
		Blob:     receipt.Blob{Data: data, Type: receipt.MIMEType},
		Filename: receipt.Filename,
		Digest:   hex.EncodeToString(sum[:]),
	}, nil
}

// DataURL formats data as a base64 data URL of the given media type.
func DataURL(mimeType string, data []byte) string {
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)
}
