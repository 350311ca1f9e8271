package stego

import (
	"image"
	"math"
)

func getPixel(img *image.NRGBA, x int, y int) []uint8 {
	index := img.PixOffset(x, y)
	return img.Pix[index : index+4]
}

func getBitUint8(num uint8, index int) uint8 {
	return (num >> index) & 1
}

func setBitUint8(num uint8, index int) uint8 {
	mask := uint8(1 << index)
	return num | mask
}

func clearBitUint8(num uint8, index int) uint8 {
	mask := uint8(^(1 << index))
	return num & mask
}

func writeBitUint8(num uint8, index int, bit uint8) uint8 {
	if bit == 0 {
		return clearBitUint8(num, index)
	}
	return setBitUint8(num, index)
}

func lowBitsMask(bitsPerChannel int) uint8 {
	return uint8(1<<bitsPerChannel - 1)
}

// opap moves modified by one interval (1<<bitsPerChannel) towards original
// when that lands closer and stays inside [0, 255]. The low bits are kept.
func opap(original, modified uint8, bitsPerChannel int) uint8 {
	delta := int(modified) - int(original)
	interval := 1 << bitsPerChannel
	limit := 1 << (bitsPerChannel - 1)

	switch {
	case delta > limit && int(modified)-interval >= 0:
		return uint8(int(modified) - interval)
	case delta < -limit && int(modified)+interval <= math.MaxUint8:
		return uint8(int(modified) + interval)
	}
	return modified
}

func ceilDiv(a, b int) int {
	if a <= 0 {
		return 0
	}
	return (a + b - 1) / b
}

// bitReader hands out bits of a byte slice, least significant bit first.
type bitReader struct {
	bytes []byte
	pos   int
}

func newBitReader(b []byte) *bitReader {
	return &bitReader{bytes: b}
}

func (br *bitReader) bitsLeftToRead() int {
	return len(br.bytes)*8 - br.pos
}

func (br *bitReader) bytesRead() int {
	return br.pos / 8
}

// readBits returns up to n bits packed into the low bits of the result.
// Missing bits past the end of the input read as zero.
func (br *bitReader) readBits(n int) uint8 {
	var v uint8
	for i := 0; i < n && br.pos < len(br.bytes)*8; i++ {
		v |= getBitUint8(br.bytes[br.pos/8], br.pos%8) << i
		br.pos++
	}
	return v
}

// bitWriter packs bits into a fixed-size byte slice, least significant bit
// first.
type bitWriter struct {
	bytes []byte
	pos   int
}

func newBitWriter(size int) *bitWriter {
	return &bitWriter{bytes: make([]byte, size)}
}

func (bw *bitWriter) full() bool {
	return bw.pos >= len(bw.bytes)*8
}

func (bw *bitWriter) bytesWritten() int {
	return bw.pos / 8
}

// writeBits stores the low n bits of v, dropping any that do not fit.
func (bw *bitWriter) writeBits(v uint8, n int) {
	for i := 0; i < n && !bw.full(); i++ {
		idx := bw.pos / 8
		bw.bytes[idx] = writeBitUint8(bw.bytes[idx], bw.pos%8, getBitUint8(v, i))
		bw.pos++
	}
}

func (bw *bitWriter) result() []byte {
	return bw.bytes[:bw.bytesWritten()]
}
