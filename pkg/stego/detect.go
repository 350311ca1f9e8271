package stego

import (
	"image"

	"github.com/andresmejia3/snic/pkg/imageio"
	"github.com/andresmejia3/snic/pkg/payload"
	"github.com/rs/zerolog/log"
)

// detect checks for a noise image first, then for the stego header.
func detect(img *image.NRGBA) (Format, *StegoHeader, error) {
	if payload.IsMagic(noiseProbe(img)) {
		log.Debug().Msg("Detected noise image")
		return FormatNoise, nil, nil
	}

	header, err := readHeader(img)
	if err != nil {
		return FormatUnknown, nil, err
	}
	if header == nil {
		return FormatUnknown, nil, ErrUnrecognizedFormat
	}

	log.Debug().
		Uint32("payloadLength", header.PayloadLength).
		Int("bitsPerChannel", header.BitsPerChannel).
		Int("startPixel", header.StartPixel).
		Msg("Detected stego image")
	return FormatStego, header, nil
}

// Detect reports the layout of img without reading its payload. The header
// is only set for stego images.
func Detect(img image.Image) (Format, *StegoHeader, error) {
	return detectCanvas(imageio.ToNRGBA(img))
}

func detectCanvas(canvas *image.NRGBA) (Format, *StegoHeader, error) {
	if canvas.Bounds().Empty() {
		return FormatUnknown, nil, ErrEmptyImage
	}
	return detect(canvas)
}
