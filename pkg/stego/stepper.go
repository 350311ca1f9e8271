package stego

import (
	"image"

	"github.com/andresmejia3/snic/pkg/shuffle"
)

// ImageStepper walks the R, G and B channels of an image, either in raster
// order or in the shared shuffle order.
type ImageStepper struct {
	img     *image.NRGBA
	width   int
	total   int
	order   []int
	current int
	channel int
}

// makeLinearStepper visits every pixel in raster order, starting at pixel 0.
func makeLinearStepper(img *image.NRGBA) *ImageStepper {
	b := img.Bounds()
	return &ImageStepper{
		img:   img,
		width: b.Dx(),
		total: b.Dx() * b.Dy(),
	}
}

// makeShuffledStepper visits the pixels after the reserved header area in
// shuffle order.
func makeShuffledStepper(img *image.NRGBA) *ImageStepper {
	b := img.Bounds()
	order := shuffle.Permutation(b.Dx()*b.Dy(), ReservedHeaderPixels)
	return &ImageStepper{
		img:   img,
		width: b.Dx(),
		total: len(order),
		order: order,
	}
}

func (s *ImageStepper) done() bool {
	return s.current >= s.total
}

func (s *ImageStepper) pixelIndex() int {
	if s.order != nil {
		return s.order[s.current]
	}
	return s.current
}

// value returns a pointer to the channel the stepper is on.
func (s *ImageStepper) value() *uint8 {
	idx := s.pixelIndex()
	pixel := getPixel(s.img, idx%s.width, idx/s.width)
	return &pixel[s.channel]
}

func (s *ImageStepper) step() {
	s.channel++
	if s.channel >= channelsPerPixel {
		s.channel = 0
		s.current++
	}
}
