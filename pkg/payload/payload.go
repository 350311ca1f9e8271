// Package payload frames a file together with its MIME type and name into
// the self-describing buffer carried by noise and stego images.
//
// Byte layout:
//
//	0-3:   Magic ("SNIC", or legacy "SNIZ")
//	4-7:   Data length (little-endian uint32)
//	8:     MIME length
//	...    MIME (UTF-8)
//	...    Name length
//	...    Name (UTF-8)
//	...    Data
package payload

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/klauspost/compress/gzip"
	"github.com/rs/zerolog/log"
)

const (
	// MagicRaw marks an uncompressed payload. Every new frame uses it.
	MagicRaw = "SNIC"
	// MagicGzip marks a legacy gzip-compressed payload. Decode only.
	MagicGzip = "SNIZ"

	MagicSize = 4
	// MaxFieldLength is the largest MIME type or name a frame can carry.
	MaxFieldLength = math.MaxUint8

	fixedHeaderSize = MagicSize + 4 + 1 + 1
	// MaxHeaderSize bounds the header of any frame.
	MaxHeaderSize = fixedHeaderSize + 2*MaxFieldLength
)

var (
	ErrUnrecognizedPayloadMagic = errors.New("unrecognized payload magic")
	ErrTruncatedHeader          = errors.New("payload header truncated")
	ErrDecompressionFailed      = errors.New("legacy payload decompression failed")
	ErrFieldTooLong             = errors.New("payload field longer than 255 bytes")
	ErrDataTooLarge             = errors.New("payload data longer than 4 GiB")
)

// Payload is a parsed frame.
type Payload struct {
	Data     []byte
	MimeType string
	Name     string
	// Legacy is set when the frame carried the gzip magic.
	Legacy bool
	// DeclaredLength is the data length stored in the header, which can
	// exceed len(Data) when the buffer was cut short.
	DeclaredLength uint32
}

// HeaderSize returns the framed size without the data section.
func HeaderSize(mimeType, name string) int {
	return fixedHeaderSize + len(mimeType) + len(name)
}

// Frame builds a raw (SNIC) frame for data.
func Frame(data []byte, mimeType, name string) ([]byte, error) {
	return frame(MagicRaw, data, mimeType, name)
}

func frame(magic string, data []byte, mimeType, name string) ([]byte, error) {
	if len(mimeType) > MaxFieldLength {
		return nil, fmt.Errorf("mime type is %d bytes: %w", len(mimeType), ErrFieldTooLong)
	}
	if len(name) > MaxFieldLength {
		return nil, fmt.Errorf("name is %d bytes: %w", len(name), ErrFieldTooLong)
	}
	if uint64(len(data)) > math.MaxUint32 {
		return nil, ErrDataTooLarge
	}

	buf := make([]byte, 0, HeaderSize(mimeType, name)+len(data))
	buf = append(buf, magic...)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(data)))
	buf = append(buf, byte(len(mimeType)))
	buf = append(buf, mimeType...)
	buf = append(buf, byte(len(name)))
	buf = append(buf, name...)
	buf = append(buf, data...)
	return buf, nil
}

// IsMagic reports whether b starts with one of the payload magics.
func IsMagic(b []byte) bool {
	if len(b) < MagicSize {
		return false
	}
	m := string(b[:MagicSize])
	return m == MagicRaw || m == MagicGzip
}

// Header is the metadata section of a frame.
type Header struct {
	Legacy   bool
	MimeType string
	Name     string
	// DataLength is the data length stored in the frame.
	DataLength uint32
	// Size is the number of bytes the header occupies, i.e. the offset of
	// the data section.
	Size int
}

// ParseHeader decodes everything up to the data section of a frame.
func ParseHeader(buf []byte) (*Header, error) {
	if len(buf) < MagicSize {
		return nil, fmt.Errorf("reading magic: %w", ErrTruncatedHeader)
	}

	h := &Header{}
	switch string(buf[:MagicSize]) {
	case MagicRaw:
	case MagicGzip:
		h.Legacy = true
	default:
		return nil, fmt.Errorf("%q: %w", buf[:MagicSize], ErrUnrecognizedPayloadMagic)
	}

	cursor := MagicSize
	if cursor+4 > len(buf) {
		return nil, fmt.Errorf("reading data length: %w", ErrTruncatedHeader)
	}
	h.DataLength = binary.LittleEndian.Uint32(buf[cursor:])
	cursor += 4

	var err error
	h.MimeType, cursor, err = readField(buf, cursor)
	if err != nil {
		return nil, fmt.Errorf("reading mime type: %w", err)
	}
	h.Name, cursor, err = readField(buf, cursor)
	if err != nil {
		return nil, fmt.Errorf("reading name: %w", err)
	}
	h.Size = cursor
	return h, nil
}

// Parse decodes a frame. Trailing bytes past the declared data length are
// ignored, and a buffer shorter than the declared length yields whatever
// data is present.
func Parse(buf []byte) (*Payload, error) {
	h, err := ParseHeader(buf)
	if err != nil {
		return nil, err
	}

	remaining := len(buf) - h.Size
	n := int(h.DataLength)
	if uint64(h.DataLength) > uint64(remaining) {
		log.Warn().
			Uint32("declared", h.DataLength).
			Int("available", remaining).
			Msg("Payload shorter than declared length, returning partial data")
		n = remaining
	}
	data := buf[h.Size : h.Size+n]

	if h.Legacy {
		data, err = gunzip(data)
		if err != nil {
			return nil, err
		}
	}

	return &Payload{
		Data:           data,
		MimeType:       h.MimeType,
		Name:           h.Name,
		Legacy:         h.Legacy,
		DeclaredLength: h.DataLength,
	}, nil
}

func readField(buf []byte, cursor int) (string, int, error) {
	if cursor+1 > len(buf) {
		return "", cursor, ErrTruncatedHeader
	}
	n := int(buf[cursor])
	cursor++
	if cursor+n > len(buf) {
		return "", cursor, ErrTruncatedHeader
	}
	return string(buf[cursor : cursor+n]), cursor + n, nil
}

func gunzip(data []byte) ([]byte, error) {
	zr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecompressionFailed, err)
	}
	defer zr.Close()

	out, err := io.ReadAll(zr)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecompressionFailed, err)
	}
	return out, nil
}
