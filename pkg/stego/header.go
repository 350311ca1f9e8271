package stego

import (
	"encoding/binary"
	"fmt"
	"image"
)

// MagicStego marks a stego image. It lives in the pixel header, the frame
// inside still starts with its own payload magic.
const MagicStego = "SNIH"

const headerBytes = 4 + 4 + 1

// StegoHeader is the linear 1-bit-per-channel header of a stego image.
type StegoHeader struct {
	PayloadLength  uint32
	BitsPerChannel int
	// StartPixel and StartChannel locate the first channel after the header.
	StartPixel   int
	StartChannel int
}

// writeHeader stores magic, payload length and bits per channel in the
// lowest bit of the leading channels, regardless of the payload density.
func writeHeader(img *image.NRGBA, payloadLength uint32, bitsPerChannel int) {
	buf := make([]byte, 0, headerBytes)
	buf = append(buf, MagicStego...)
	buf = binary.LittleEndian.AppendUint32(buf, payloadLength)
	buf = append(buf, byte(bitsPerChannel))

	br := newBitReader(buf)
	stepper := makeLinearStepper(img)
	for br.bitsLeftToRead() > 0 {
		channel := stepper.value()
		*channel = writeBitUint8(*channel, 0, br.readBits(1))
		stepper.step()
	}
}

func readLinearBytes(stepper *ImageStepper, n int) []byte {
	bw := newBitWriter(n)
	for !bw.full() && !stepper.done() {
		bw.writeBits(getBitUint8(*stepper.value(), 0), 1)
		stepper.step()
	}
	return bw.result()
}

// readHeader returns nil without error when the magic is absent.
func readHeader(img *image.NRGBA) (*StegoHeader, error) {
	b := img.Bounds()
	if b.Dx()*b.Dy() < ReservedHeaderPixels {
		return nil, nil
	}

	stepper := makeLinearStepper(img)
	if string(readLinearBytes(stepper, len(MagicStego))) != MagicStego {
		return nil, nil
	}

	rest := readLinearBytes(stepper, headerBytes-len(MagicStego))
	h := &StegoHeader{
		PayloadLength:  binary.LittleEndian.Uint32(rest[0:4]),
		BitsPerChannel: int(rest[4]),
		StartPixel:     stepper.pixelIndex(),
		StartChannel:   stepper.channel,
	}

	if h.BitsPerChannel < MinBitsPerChannel || h.BitsPerChannel > MaxDecodeBitsPerChannel {
		return nil, fmt.Errorf("%w: %d bits per channel", ErrInvalidStegoHeader, h.BitsPerChannel)
	}
	capacity := uint64(b.Dx()) * uint64(b.Dy()) * channelsPerPixel * uint64(h.BitsPerChannel) / 8
	if uint64(h.PayloadLength) > capacity {
		return nil, fmt.Errorf("%w: payload length %d exceeds capacity %d", ErrInvalidStegoHeader, h.PayloadLength, capacity)
	}
	return h, nil
}
