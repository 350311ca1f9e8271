// Package imageio turns image files into NRGBA pixel buffers and back
// without touching pixel values.
package imageio

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"io"
	"os"

	"github.com/rs/zerolog/log"
	"golang.org/x/image/draw"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

var (
	ErrUndecodable = errors.New("image could not be decoded")
)

// Decode reads an image, preferring a strict PNG decode and falling back to
// every registered decoder when that fails.
func Decode(data []byte) (*image.NRGBA, error) {
	img, err := png.Decode(bytes.NewReader(data))
	if err == nil {
		return ToNRGBA(img), nil
	}
	strictErr := err

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: strict: %v, lenient: %v", ErrUndecodable, strictErr, err)
	}
	log.Debug().Str("format", format).Err(strictErr).Msg("Strict decode failed, used lenient decoder")
	return ToNRGBA(img), nil
}

// Load reads and decodes the image file at path.
func Load(path string) (*image.NRGBA, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	img, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return img, nil
}

// Encode writes img as PNG, which never alters pixel values.
func Encode(w io.Writer, img image.Image, level png.CompressionLevel) error {
	enc := png.Encoder{CompressionLevel: level}
	return enc.Encode(w, img)
}

// EncodeBytes is Encode into a byte slice.
func EncodeBytes(img image.Image, level png.CompressionLevel) ([]byte, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, img, level); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Save encodes img as PNG at path.
func Save(path string, img image.Image, level png.CompressionLevel) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := Encode(f, img, level); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// ToNRGBA returns img as an NRGBA buffer anchored at the origin. An NRGBA
// input that already satisfies this is returned as is.
func ToNRGBA(img image.Image) *image.NRGBA {
	b := img.Bounds()
	if n, ok := img.(*image.NRGBA); ok && b.Min == (image.Point{}) && n.Stride == 4*b.Dx() {
		return n
	}

	out := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	if n, ok := img.(*image.NRGBA); ok {
		for y := 0; y < b.Dy(); y++ {
			src := n.PixOffset(b.Min.X, b.Min.Y+y)
			copy(out.Pix[y*out.Stride:(y+1)*out.Stride], n.Pix[src:src+4*b.Dx()])
		}
		return out
	}
	draw.Draw(out, out.Bounds(), img, b.Min, draw.Src)
	return out
}

// Resample scales img to width x height. Smooth selects Catmull-Rom
// interpolation, otherwise nearest neighbour is used. The result never shares
// pixels with img, and an unchanged size copies the pixels exactly.
func Resample(img image.Image, width, height int, smooth bool) *image.NRGBA {
	out := image.NewNRGBA(image.Rect(0, 0, width, height))
	if b := img.Bounds(); b.Dx() == width && b.Dy() == height {
		copy(out.Pix, ToNRGBA(img).Pix)
		return out
	}
	var scaler draw.Scaler = draw.NearestNeighbor
	if smooth {
		scaler = draw.CatmullRom
	}
	scaler.Scale(out, out.Bounds(), img, img.Bounds(), draw.Src, nil)
	return out
}

// ForceOpaque sets every alpha value in img to 255.
func ForceOpaque(img *image.NRGBA) {
	for i := 3; i < len(img.Pix); i += 4 {
		img.Pix[i] = 255
	}
}
