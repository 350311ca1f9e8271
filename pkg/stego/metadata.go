package stego

import (
	"fmt"
	"image"

	"github.com/andresmejia3/snic/pkg/imageio"
	"github.com/andresmejia3/snic/pkg/payload"
)

// Info describes the payload an image carries without extracting its data.
type Info struct {
	Format Format
	Width  int
	Height int
	// BitsPerChannel and PayloadLength come from the stego header and are
	// zero for noise images.
	BitsPerChannel int
	PayloadLength  uint32
	// DataLength is the file size declared in the frame.
	DataLength uint32
	MimeType   string
	Name       string
	Legacy     bool
}

// GetInfo reads the headers of img. For stego images only the first few
// hundred bytes of the frame are extracted.
func GetInfo(img image.Image) (*Info, error) {
	canvas := imageio.ToNRGBA(img)
	b := canvas.Bounds()
	if b.Empty() {
		return nil, ErrEmptyImage
	}

	format, header, err := detect(canvas)
	if err != nil {
		return nil, err
	}

	info := &Info{
		Format: format,
		Width:  b.Dx(),
		Height: b.Dy(),
	}

	var buf []byte
	switch format {
	case FormatNoise:
		buf = linearize(canvas)
	case FormatStego:
		info.BitsPerChannel = header.BitsPerChannel
		info.PayloadLength = header.PayloadLength
		n := min(int(header.PayloadLength), payload.MaxHeaderSize)
		buf = extractPayload(canvas, n, header.BitsPerChannel, &progressTracker{})
	}

	h, err := payload.ParseHeader(buf)
	if err != nil {
		return nil, fmt.Errorf("parsing %s payload header: %w", format, err)
	}
	info.DataLength = h.DataLength
	info.MimeType = h.MimeType
	info.Name = h.Name
	info.Legacy = h.Legacy
	return info, nil
}
