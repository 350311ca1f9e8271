package stego

import (
	"image"
	"math"

	"github.com/andresmejia3/snic/pkg/payload"
)

// NoiseDimensions returns the near-square size of a noise image holding n
// bytes at three bytes per pixel.
func NoiseDimensions(n int) (width, height int) {
	pixels := ceilDiv(n, channelsPerPixel)
	if pixels == 0 {
		return 0, 0
	}
	width = int(math.Ceil(math.Sqrt(float64(pixels))))
	height = ceilDiv(pixels, width)
	return width, height
}

// EncodeNoise renders the framed file as an image where every pixel
// carries three payload bytes. Bytes past the end of the frame are zero.
func EncodeNoise(data []byte, mimeType, name string) (*image.NRGBA, error) {
	framed, err := payload.Frame(data, mimeType, name)
	if err != nil {
		return nil, err
	}

	width, height := NoiseDimensions(len(framed))
	img := image.NewNRGBA(image.Rect(0, 0, width, height))

	i := 0
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			pixel := getPixel(img, x, y)
			for c := 0; c < channelsPerPixel; c++ {
				if i < len(framed) {
					pixel[c] = framed[i]
				}
				i++
			}
			pixel[3] = 255
		}
	}
	return img, nil
}

// noiseProbe returns R, G, B of pixel 0 and R of pixel 1, which hold the
// payload magic of a noise image.
func noiseProbe(img *image.NRGBA) []byte {
	b := img.Bounds()
	if b.Dx()*b.Dy() < 2 {
		return nil
	}
	first := getPixel(img, 0, 0)
	var second []uint8
	if b.Dx() > 1 {
		second = getPixel(img, 1, 0)
	} else {
		second = getPixel(img, 0, 1)
	}
	return []byte{first[0], first[1], first[2], second[0]}
}

// linearize flattens the R, G and B bytes of every pixel in raster order.
func linearize(img *image.NRGBA) []byte {
	b := img.Bounds()
	out := make([]byte, 0, b.Dx()*b.Dy()*channelsPerPixel)
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			out = append(out, getPixel(img, x, y)[:channelsPerPixel]...)
		}
	}
	return out
}
