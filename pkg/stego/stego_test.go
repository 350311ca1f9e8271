package stego

import (
	"bytes"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"
	"os"
	"testing"

	"github.com/andresmejia3/snic/pkg/imageio"
	"github.com/andresmejia3/snic/pkg/payload"
	"github.com/andresmejia3/snic/pkg/shuffle"
	"github.com/klauspost/compress/gzip"
	"github.com/rs/zerolog/log"
)

func TestMain(m *testing.M) {
	// Silence logs during tests
	log.Logger = log.Output(io.Discard)
	os.Exit(m.Run())
}

func randomCover(t *testing.T, width, height int) *image.NRGBA {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	if _, err := rand.Read(img.Pix); err != nil {
		t.Fatalf("Failed to fill cover: %v", err)
	}
	return img
}

func randomBytes(t *testing.T, n int) []byte {
	t.Helper()
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		t.Fatalf("Failed to generate data: %v", err)
	}
	return b
}

// pngRoundTrip pushes img through the PNG codec the CLI uses.
func pngRoundTrip(t *testing.T, img image.Image) *image.NRGBA {
	t.Helper()
	encoded, err := imageio.EncodeBytes(img, png.DefaultCompression)
	if err != nil {
		t.Fatalf("Failed to encode png: %v", err)
	}
	decoded, err := imageio.Decode(encoded)
	if err != nil {
		t.Fatalf("Failed to decode png: %v", err)
	}
	return decoded
}

func TestNoiseEmptyPayload(t *testing.T) {
	img, err := EncodeNoise(nil, "audio/mpeg", "a.mp3")
	if err != nil {
		t.Fatalf("EncodeNoise failed: %v", err)
	}

	// 4 + 4 + 1 + 10 + 1 + 5 = 25 bytes -> 9 pixels -> 3x3
	if img.Bounds().Dx() != 3 || img.Bounds().Dy() != 3 {
		t.Fatalf("Expected 3x3 image, got %v", img.Bounds().Size())
	}

	first := getPixel(img, 0, 0)
	if string(first[:3]) != "SNI" || getPixel(img, 1, 0)[0] != 'C' {
		t.Errorf("Magic not at probe offsets: %v %v", first, getPixel(img, 1, 0))
	}

	last := getPixel(img, 2, 2)
	if last[0] != '3' || last[1] != 0 || last[2] != 0 {
		t.Errorf("Last pixel should hold '3' then zero fill, got %v", last)
	}
	for i := 3; i < len(img.Pix); i += 4 {
		if img.Pix[i] != 255 {
			t.Fatalf("Alpha at %d is %d, want 255", i, img.Pix[i])
		}
	}

	res, err := Decode(pngRoundTrip(t, img))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if res.Format != FormatNoise {
		t.Errorf("Format = %v, want noise", res.Format)
	}
	if len(res.Data) != 0 || res.MimeType != "audio/mpeg" || res.Name != "a.mp3" {
		t.Errorf("Unexpected result: %d bytes, mime %q, name %q", len(res.Data), res.MimeType, res.Name)
	}
}

func TestNoiseRoundTrip(t *testing.T) {
	for _, size := range []int{1, 2, 3, 100, 4096, 100003} {
		t.Run(fmt.Sprintf("%d bytes", size), func(t *testing.T) {
			data := randomBytes(t, size)
			img, err := EncodeNoise(data, "application/octet-stream", "blob.bin")
			if err != nil {
				t.Fatalf("EncodeNoise failed: %v", err)
			}

			framedLen := payload.HeaderSize("application/octet-stream", "blob.bin") + size
			w, h := NoiseDimensions(framedLen)
			if img.Bounds().Dx() != w || img.Bounds().Dy() != h {
				t.Errorf("Got %v, want %dx%d", img.Bounds().Size(), w, h)
			}
			if w*h*3 < framedLen {
				t.Errorf("%dx%d cannot hold %d bytes", w, h, framedLen)
			}

			res, err := Decode(pngRoundTrip(t, img))
			if err != nil {
				t.Fatalf("Decode failed: %v", err)
			}
			if !bytes.Equal(res.Data, data) {
				t.Error("Decoded data does not match")
			}
			if res.Name != "blob.bin" {
				t.Errorf("Name = %q", res.Name)
			}
		})
	}
}

func TestNoiseDimensions(t *testing.T) {
	tests := []struct {
		n             int
		width, height int
	}{
		{0, 0, 0},
		{1, 1, 1},
		{3, 1, 1},
		{4, 2, 1},
		{25, 3, 3},
		{28, 4, 3},
		{30000, 100, 100},
	}
	for _, tt := range tests {
		w, h := NoiseDimensions(tt.n)
		if w != tt.width || h != tt.height {
			t.Errorf("NoiseDimensions(%d) = %dx%d, want %dx%d", tt.n, w, h, tt.width, tt.height)
		}
	}
}

func TestStegoRoundTrip(t *testing.T) {
	covers := [][2]int{{8, 8}, {40, 30}, {64, 64}, {1, 200}}
	sizes := []int{0, 1, 57, 500}

	for bpc := MinBitsPerChannel; bpc <= MaxEncodeBitsPerChannel; bpc++ {
		for _, dims := range covers {
			for _, size := range sizes {
				name := fmt.Sprintf("bpc %d cover %dx%d %d bytes", bpc, dims[0], dims[1], size)
				t.Run(name, func(t *testing.T) {
					cover := randomCover(t, dims[0], dims[1])
					data := randomBytes(t, size)

					out, err := EncodeStego(data, "image/webp", "photo.webp", cover, bpc)
					if err != nil {
						t.Fatalf("EncodeStego failed: %v", err)
					}
					if out.Bounds().Dx() < dims[0] || out.Bounds().Dy() < dims[1] {
						t.Fatalf("Output %v smaller than cover", out.Bounds().Size())
					}

					res, err := Decode(pngRoundTrip(t, out))
					if err != nil {
						t.Fatalf("Decode failed: %v", err)
					}
					if res.Format != FormatStego || res.BitsPerChannel != bpc {
						t.Errorf("Got %v at %d bpc", res.Format, res.BitsPerChannel)
					}
					if !bytes.Equal(res.Data, data) {
						t.Error("Decoded data does not match")
					}
					if res.MimeType != "image/webp" || res.Name != "photo.webp" {
						t.Errorf("Metadata mismatch: %q %q", res.MimeType, res.Name)
					}
				})
			}
		}
	}
}

func TestStegoKeepsCoverWhenRoomy(t *testing.T) {
	cover := randomCover(t, 100, 100)
	out, err := EncodeStego([]byte("hello"), "text/plain", "hello.txt", cover, 2)
	if err != nil {
		t.Fatalf("EncodeStego failed: %v", err)
	}
	if out.Bounds().Size() != cover.Bounds().Size() {
		t.Fatalf("Cover resized to %v", out.Bounds().Size())
	}

	for i := 0; i < len(cover.Pix); i += 4 {
		for c := 0; c < 3; c++ {
			if d := abs(int(out.Pix[i+c]) - int(cover.Pix[i+c])); d > 3 {
				t.Fatalf("Channel %d changed by %d, more than 2^bpc-1", i+c, d)
			}
		}
		if out.Pix[i+3] != 255 {
			t.Fatalf("Alpha at pixel %d is %d", i/4, out.Pix[i+3])
		}
	}
}

func TestStegoLeavesUnusedChannels(t *testing.T) {
	const fill = 0x55
	cover := image.NewNRGBA(image.Rect(0, 0, 64, 64))
	for i := range cover.Pix {
		cover.Pix[i] = fill
		if i%4 == 3 {
			cover.Pix[i] = 255
		}
	}

	out, err := EncodeStego([]byte{0xAB}, "", "", cover, 7)
	if err != nil {
		t.Fatalf("EncodeStego failed: %v", err)
	}
	if out.Bounds().Size() != cover.Bounds().Size() {
		t.Fatalf("Cover resized to %v", out.Bounds().Size())
	}

	// 11 framed bytes are 88 bits, which need 13 channels at 7 bits each.
	framedBits := (payload.HeaderSize("", "") + 1) * 8
	written := (framedBits + 6) / 7
	if written != 13 {
		t.Fatalf("Expected 13 written channels, got %d", written)
	}

	pixel := func(idx int) []uint8 {
		return getPixel(out, idx%64, idx/64)
	}

	for idx := 0; idx < 24; idx++ {
		for c, v := range pixel(idx)[:3] {
			if v&^1 != fill&^1 {
				t.Errorf("Header pixel %d channel %d = %#x, only bit 0 may change", idx, c, v)
			}
		}
	}
	for idx := 24; idx < ReservedHeaderPixels; idx++ {
		if p := pixel(idx); p[0] != fill || p[1] != fill || p[2] != fill {
			t.Errorf("Reserved pixel %d changed: %v", idx, p[:3])
		}
	}

	perm := shuffle.Permutation(64*64, ReservedHeaderPixels)
	last := pixel(perm[written/3])
	for c := written % 3; c < 3; c++ {
		if last[c] != fill {
			t.Errorf("Channel %d of last pixel %d changed: %v", c, perm[written/3], last[:3])
		}
	}
	for _, idx := range perm[written/3+1:] {
		if p := pixel(idx); p[0] != fill || p[1] != fill || p[2] != fill {
			t.Fatalf("Pixel %d after the payload changed: %v", idx, p[:3])
		}
	}

	res, err := Decode(out)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if !bytes.Equal(res.Data, []byte{0xAB}) {
		t.Errorf("Decoded %v", res.Data)
	}
}

func TestStegoUpscale(t *testing.T) {
	cover := randomCover(t, 8, 8)
	data := randomBytes(t, 1000)

	out, err := EncodeStego(data, "", "", cover, 1)
	if err != nil {
		t.Fatalf("EncodeStego failed: %v", err)
	}

	framedBits := (payload.HeaderSize("", "") + len(data)) * 8
	w, h := out.Bounds().Dx(), out.Bounds().Dy()
	if Capacity(w, h, 1) < framedBits {
		t.Fatalf("%dx%d holds %d bits, need %d", w, h, Capacity(w, h, 1), framedBits)
	}

	res, err := Decode(out)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if !bytes.Equal(res.Data, data) {
		t.Error("Decoded data does not match")
	}
}

func TestStegoHeaderMagic(t *testing.T) {
	cover := randomCover(t, 20, 20)
	out, err := EncodeStego([]byte("abc"), "text/plain", "", cover, 3)
	if err != nil {
		t.Fatalf("EncodeStego failed: %v", err)
	}

	stepper := makeLinearStepper(out)
	header := readLinearBytes(stepper, headerBytes)
	if string(header[:4]) != MagicStego {
		t.Errorf("Linear LSB header starts with %q", header[:4])
	}
	framedLen := payload.HeaderSize("text/plain", "") + 3
	if got := binary.LittleEndian.Uint32(header[4:8]); got != uint32(framedLen) {
		t.Errorf("Header length = %d, want %d", got, framedLen)
	}
	if header[8] != 3 {
		t.Errorf("Header bpc = %d, want 3", header[8])
	}

	if payload.IsMagic(noiseProbe(out)) {
		t.Error("Stego image probes as noise")
	}
}

func TestDetectStegoMagic(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 10, 10))
	writeHeader(img, 0, 1)

	format, header, err := detect(img)
	if err != nil {
		t.Fatalf("detect failed: %v", err)
	}
	if format != FormatStego || header.PayloadLength != 0 || header.BitsPerChannel != 1 {
		t.Errorf("Got %v %+v", format, header)
	}
	// 72 header bits end on the first channel of pixel 24.
	if header.StartPixel != 24 || header.StartChannel != 0 {
		t.Errorf("Header ends at pixel %d channel %d", header.StartPixel, header.StartChannel)
	}
}

func TestDetectNoiseMagic(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 2, 1))
	copy(img.Pix[0:3], "SNI")
	img.Pix[4] = 'C'

	format, _, err := detect(img)
	if err != nil || format != FormatNoise {
		t.Errorf("Got %v, %v", format, err)
	}
}

func TestDetect(t *testing.T) {
	noise, err := EncodeNoise([]byte("noise"), "", "")
	if err != nil {
		t.Fatalf("EncodeNoise failed: %v", err)
	}
	stegoImg, err := EncodeStego([]byte("stego"), "", "", randomCover(t, 30, 30), 2)
	if err != nil {
		t.Fatalf("EncodeStego failed: %v", err)
	}

	format, header, err := Detect(noise)
	if err != nil || format != FormatNoise || header != nil {
		t.Errorf("Noise: got %v %+v %v", format, header, err)
	}

	format, header, err = Detect(stegoImg)
	if err != nil || format != FormatStego {
		t.Fatalf("Stego: got %v %v", format, err)
	}
	if want := uint32(payload.HeaderSize("", "") + 5); header.PayloadLength != want || header.BitsPerChannel != 2 {
		t.Errorf("Stego header %+v, want length %d at 2 bpc", header, want)
	}

	plain := image.NewNRGBA(image.Rect(0, 0, 40, 40))
	if _, _, err := Detect(plain); !errors.Is(err, ErrUnrecognizedFormat) {
		t.Errorf("Plain image: got %v", err)
	}
	if _, _, err := Detect(image.NewNRGBA(image.Rect(0, 0, 0, 0))); !errors.Is(err, ErrEmptyImage) {
		t.Errorf("Empty image: got %v", err)
	}
}

func TestDecodeErrors(t *testing.T) {
	zeroBpc := image.NewNRGBA(image.Rect(0, 0, 10, 10))
	writeHeader(zeroBpc, 10, 0)

	hugeBpc := image.NewNRGBA(image.Rect(0, 0, 10, 10))
	writeHeader(hugeBpc, 10, 9)

	tooLong := image.NewNRGBA(image.Rect(0, 0, 10, 10))
	writeHeader(tooLong, 1<<30, 2)

	badFrame := image.NewNRGBA(image.Rect(0, 0, 10, 10))
	writeHeader(badFrame, 20, 2)

	tests := []struct {
		name string
		img  image.Image
		want error
	}{
		{"Blank Image", image.NewNRGBA(image.Rect(0, 0, 50, 50)), ErrUnrecognizedFormat},
		{"Tiny Image", image.NewNRGBA(image.Rect(0, 0, 1, 1)), ErrUnrecognizedFormat},
		{"Empty Image", image.NewNRGBA(image.Rect(0, 0, 0, 0)), ErrEmptyImage},
		{"Zero Bits Per Channel", zeroBpc, ErrInvalidStegoHeader},
		{"Nine Bits Per Channel", hugeBpc, ErrInvalidStegoHeader},
		{"Length Beyond Capacity", tooLong, ErrInvalidStegoHeader},
		{"Missing Payload Magic", badFrame, payload.ErrUnrecognizedPayloadMagic},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.img)
			if !errors.Is(err, tt.want) {
				t.Errorf("Decode() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestEncodeErrors(t *testing.T) {
	cover := randomCover(t, 10, 10)
	longName := string(bytes.Repeat([]byte("x"), 256))

	for _, bpc := range []int{0, 8} {
		if _, err := EncodeStego([]byte("x"), "", "", cover, bpc); !errors.Is(err, ErrInvalidBitsPerChannel) {
			t.Errorf("bpc %d: error = %v, want %v", bpc, err, ErrInvalidBitsPerChannel)
		}
	}
	if _, err := EncodeStego([]byte("x"), "", longName, cover, 2); !errors.Is(err, payload.ErrFieldTooLong) {
		t.Errorf("long name: error = %v", err)
	}
	if _, err := EncodeNoise([]byte("x"), longName, ""); !errors.Is(err, payload.ErrFieldTooLong) {
		t.Errorf("long mime: error = %v", err)
	}
	if _, err := EncodeStego([]byte("x"), "", "", image.NewNRGBA(image.Rectangle{}), 2); !errors.Is(err, ErrEmptyImage) {
		t.Errorf("empty cover: error = %v", err)
	}
}

func TestDecodeLegacyNoise(t *testing.T) {
	original := bytes.Repeat([]byte("legacy payload "), 20)

	var zbuf bytes.Buffer
	zw := gzip.NewWriter(&zbuf)
	zw.Write(original)
	zw.Close()

	framed := []byte(payload.MagicGzip)
	framed = binary.LittleEndian.AppendUint32(framed, uint32(zbuf.Len()))
	framed = append(framed, byte(len("text/plain")))
	framed = append(framed, "text/plain"...)
	framed = append(framed, byte(len("old.txt")))
	framed = append(framed, "old.txt"...)
	framed = append(framed, zbuf.Bytes()...)

	w, h := NoiseDimensions(len(framed))
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		if i%4 == 3 {
			img.Pix[i] = 255
		}
	}
	for i, v := range framed {
		img.Pix[(i/3)*4+i%3] = v
	}

	res, err := Decode(img)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if !res.Legacy || !bytes.Equal(res.Data, original) || res.Name != "old.txt" {
		t.Errorf("Unexpected legacy result: legacy=%v name=%q %d bytes", res.Legacy, res.Name, len(res.Data))
	}
}

type countingProgress struct {
	total int
	calls int
}

func (p *countingProgress) Add(n int) error {
	p.total += n
	p.calls++
	return nil
}

func TestProgressReporting(t *testing.T) {
	cover := randomCover(t, 400, 400)
	data := randomBytes(t, 150*1024)
	framedLen := payload.HeaderSize("", "") + len(data)

	enc := &countingProgress{}
	out, err := EncodeStego(data, "", "", cover, 4, WithProgress(enc))
	if err != nil {
		t.Fatalf("EncodeStego failed: %v", err)
	}
	if enc.total != framedLen {
		t.Errorf("Encode progress total = %d, want %d", enc.total, framedLen)
	}
	if enc.calls < 2 {
		t.Errorf("Expected chunked progress, got %d calls", enc.calls)
	}

	dec := &countingProgress{}
	if _, err := Decode(out, WithProgress(dec)); err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if dec.total != framedLen {
		t.Errorf("Decode progress total = %d, want %d", dec.total, framedLen)
	}
}

type failingProgress struct{ calls int }

func (p *failingProgress) Add(int) error {
	p.calls++
	return errors.New("bar closed")
}

func TestProgressErrorsIgnored(t *testing.T) {
	data := randomBytes(t, 300)
	p := &failingProgress{}

	out, err := EncodeStego(data, "", "", randomCover(t, 50, 50), 3, WithProgress(p))
	if err != nil {
		t.Fatalf("EncodeStego failed: %v", err)
	}
	res, err := Decode(out, WithProgress(p))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if !bytes.Equal(res.Data, data) {
		t.Error("Decoded data does not match")
	}
	if p.calls == 0 {
		t.Error("Progress was never called")
	}
}

func TestDecodeTruncatedStego(t *testing.T) {
	// A header declaring more bytes than the shuffled area holds, but still
	// within the raw capacity check, decodes to partial data.
	img := randomCover(t, 10, 10)
	framed, err := payload.Frame(bytes.Repeat([]byte{7}, 60), "", "")
	if err != nil {
		t.Fatal(err)
	}
	imageio.ForceOpaque(img)
	writeHeader(img, uint32(len(framed)), 2)
	embedPayload(img, framed, 2, &progressTracker{})

	res, err := Decode(img)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	// 68 pixels * 3 channels * 2 bits = 51 bytes, 10 of which are header.
	if len(res.Data) != 41 {
		t.Errorf("Got %d bytes, want 41", len(res.Data))
	}
	for _, b := range res.Data {
		if b != 7 {
			t.Fatalf("Partial data corrupted: %v", res.Data)
		}
	}
}
