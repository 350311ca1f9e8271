// Package stego hides framed files in images and recovers them.
//
// Two layouts exist. A noise image stores the frame directly in its R, G
// and B bytes. A stego image keeps a cover picture: a 72-bit header sits in
// the lowest bit of the first pixels and the frame is spread over the low
// bits of the remaining pixels in a fixed shuffle order, with OPAP applied
// to every touched channel.
package stego

import (
	"errors"
	"fmt"
	"image"

	"github.com/andresmejia3/snic/pkg/imageio"
	"github.com/andresmejia3/snic/pkg/payload"
	"github.com/rs/zerolog/log"
)

const (
	// ReservedHeaderPixels is the number of leading pixels kept out of the
	// payload area of a stego image.
	ReservedHeaderPixels = 32
	// UtilizationThreshold is the share of capacity above which a cover is
	// enlarged by HeadroomScale.
	UtilizationThreshold = 0.5
	HeadroomScale        = 1.25

	MinBitsPerChannel       = 1
	MaxEncodeBitsPerChannel = 7
	MaxDecodeBitsPerChannel = 8

	channelsPerPixel = 3
	progressChunk    = 64 * 1024
)

var (
	ErrUnrecognizedFormat    = errors.New("image was not produced by this codec")
	ErrInvalidStegoHeader    = errors.New("invalid stego header")
	ErrInvalidBitsPerChannel = errors.New("bits per channel must be between 1 and 7")
	ErrEmptyImage            = errors.New("image has no pixels")
	ErrDimensionMismatch     = errors.New("image dimensions do not match")
)

// Format identifies which layout an image uses.
type Format int

const (
	FormatUnknown Format = iota
	FormatNoise
	FormatStego
)

func (f Format) String() string {
	switch f {
	case FormatNoise:
		return "noise"
	case FormatStego:
		return "stego"
	default:
		return "unknown"
	}
}

// Progress receives the number of payload bytes processed since the last
// call. *progressbar.ProgressBar satisfies it. A failed Add is logged and
// never interrupts encoding or decoding.
type Progress interface {
	Add(num int) error
}

type options struct {
	progress Progress
}

type Option func(*options)

// WithProgress reports embedding and extraction progress to p.
func WithProgress(p Progress) Option {
	return func(o *options) {
		o.progress = p
	}
}

func buildOptions(opts []Option) *options {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// progressTracker forwards whole-byte progress in chunks.
type progressTracker struct {
	progress Progress
	reported int
}

func (p *progressTracker) update(done int, final bool) {
	if p.progress == nil {
		return
	}
	if done-p.reported >= progressChunk || (final && done > p.reported) {
		reportProgress(p.progress, done-p.reported)
		p.reported = done
	}
}

func reportProgress(p Progress, n int) {
	if err := p.Add(n); err != nil {
		log.Debug().Err(err).Msg("Progress update failed")
	}
}

// Result is a file recovered from an image.
type Result struct {
	Data     []byte
	MimeType string
	Name     string
	Format   Format
	// BitsPerChannel is only set for stego images.
	BitsPerChannel int
	// Legacy is set when the payload used the old gzip framing.
	Legacy bool
}

// EncodeStego hides data in cover using bitsPerChannel low bits of each
// colour channel. The returned image may be larger than cover when the
// payload needs the room.
func EncodeStego(data []byte, mimeType, name string, cover image.Image, bitsPerChannel int, opts ...Option) (*image.NRGBA, error) {
	o := buildOptions(opts)

	if bitsPerChannel < MinBitsPerChannel || bitsPerChannel > MaxEncodeBitsPerChannel {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidBitsPerChannel, bitsPerChannel)
	}
	bounds := cover.Bounds()
	if bounds.Empty() {
		return nil, ErrEmptyImage
	}

	framed, err := payload.Frame(data, mimeType, name)
	if err != nil {
		return nil, err
	}

	plan, err := PlanCapacity(len(framed)*8, bounds.Dx(), bounds.Dy(), bitsPerChannel)
	if err != nil {
		return nil, err
	}

	log.Debug().
		Int("width", bounds.Dx()).
		Int("height", bounds.Dy()).
		Int("newWidth", plan.Width).
		Int("newHeight", plan.Height).
		Float64("scale", plan.Scale).
		Float64("utilization", plan.Utilization).
		Int("bitsPerChannel", plan.BitsPerChannel).
		Int("payloadBytes", len(framed)).
		Msg("Planned cover capacity")

	canvas := imageio.Resample(cover, plan.Width, plan.Height, plan.Scale > 1)
	imageio.ForceOpaque(canvas)

	writeHeader(canvas, uint32(len(framed)), plan.BitsPerChannel)
	embedPayload(canvas, framed, plan.BitsPerChannel, &progressTracker{progress: o.progress})

	return canvas, nil
}

func embedPayload(img *image.NRGBA, data []byte, bitsPerChannel int, tracker *progressTracker) {
	mask := lowBitsMask(bitsPerChannel)
	br := newBitReader(data)
	stepper := makeShuffledStepper(img)

	for br.bitsLeftToRead() > 0 && !stepper.done() {
		channel := stepper.value()
		original := *channel
		modified := (original &^ mask) | br.readBits(bitsPerChannel)
		*channel = opap(original, modified, bitsPerChannel)

		stepper.step()
		tracker.update(br.bytesRead(), false)
	}
	tracker.update(br.bytesRead(), true)

	if br.bitsLeftToRead() > 0 {
		log.Warn().
			Int("written", br.bytesRead()).
			Int("total", len(data)).
			Msg("Ran out of pixels, payload truncated")
	}
}

func extractPayload(img *image.NRGBA, length int, bitsPerChannel int, tracker *progressTracker) []byte {
	mask := lowBitsMask(bitsPerChannel)
	bw := newBitWriter(length)
	stepper := makeShuffledStepper(img)

	for !bw.full() && !stepper.done() {
		bw.writeBits(*stepper.value()&mask, bitsPerChannel)

		stepper.step()
		tracker.update(bw.bytesWritten(), false)
	}
	tracker.update(bw.bytesWritten(), true)

	if !bw.full() {
		log.Warn().
			Int("read", bw.bytesWritten()).
			Int("declared", length).
			Msg("Ran out of pixels, payload truncated")
	}
	return bw.result()
}

// Decode detects the layout of img and recovers the file it carries.
func Decode(img image.Image, opts ...Option) (*Result, error) {
	o := buildOptions(opts)

	canvas := imageio.ToNRGBA(img)
	format, header, err := detectCanvas(canvas)
	if err != nil {
		return nil, err
	}

	var buf []byte
	result := &Result{Format: format}
	switch format {
	case FormatNoise:
		buf = linearize(canvas)
	case FormatStego:
		result.BitsPerChannel = header.BitsPerChannel
		buf = extractPayload(canvas, int(header.PayloadLength), header.BitsPerChannel, &progressTracker{progress: o.progress})
	}

	p, err := payload.Parse(buf)
	if err != nil {
		return nil, fmt.Errorf("parsing %s payload: %w", format, err)
	}

	log.Debug().
		Stringer("format", format).
		Str("mime", p.MimeType).
		Str("name", p.Name).
		Int("bytes", len(p.Data)).
		Msg("Decoded payload")

	result.Data = p.Data
	result.MimeType = p.MimeType
	result.Name = p.Name
	result.Legacy = p.Legacy
	return result, nil
}
