package server

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"io"
	"net/http"
	"strconv"

	"github.com/andresmejia3/snic/pkg/config"
	"github.com/andresmejia3/snic/pkg/imageio"
	"github.com/andresmejia3/snic/pkg/payload"
	"github.com/andresmejia3/snic/pkg/stego"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// readFormFile returns the contents and client file name of a multipart
// upload.
func readFormFile(ctx *gin.Context, field string) ([]byte, string, error) {
	header, err := ctx.FormFile(field)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, "", fmt.Errorf("%w: limit %d bytes", errUploadTooLarge, tooLarge.Limit)
		}
		return nil, "", fmt.Errorf("%w: %s", errMissingField, field)
	}
	f, err := header.Open()
	if err != nil {
		return nil, "", fmt.Errorf("opening upload %s: %w", field, err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, "", fmt.Errorf("reading upload %s: %w", field, err)
	}
	return data, header.Filename, nil
}

// readHiddenFile reads the file to hide along with its MIME type and name,
// sniffing whatever the client left out.
func readHiddenFile(ctx *gin.Context) ([]byte, string, string, error) {
	data, filename, err := readFormFile(ctx, "file")
	if err != nil {
		return nil, "", "", err
	}
	mimeType, name := payload.Describe(data, ctx.PostForm("mime"), ctx.PostForm("name"), filename)
	return data, mimeType, name, nil
}

func (s *Server) writePNG(ctx *gin.Context, img image.Image) {
	var buf bytes.Buffer
	if err := imageio.Encode(&buf, img, s.config.PNGCompression); err != nil {
		abortWithError(ctx, err)
		return
	}
	ctx.Data(http.StatusOK, "image/png", buf.Bytes())
}

// EncodeNoiseHandler turns the uploaded file into a noise image.
func (s *Server) EncodeNoiseHandler(ctx *gin.Context) {
	data, mimeType, name, err := readHiddenFile(ctx)
	if err != nil {
		abortWithError(ctx, err)
		return
	}

	img, err := stego.EncodeNoise(data, mimeType, name)
	if err != nil {
		abortWithError(ctx, err)
		return
	}

	log.Debug().
		Str("mime", mimeType).
		Str("name", name).
		Int("width", img.Bounds().Dx()).
		Int("height", img.Bounds().Dy()).
		Msg("Encoded noise image")
	s.writePNG(ctx, img)
}

// EncodeStegoHandler hides the uploaded file in the uploaded cover.
func (s *Server) EncodeStegoHandler(ctx *gin.Context) {
	data, mimeType, name, err := readHiddenFile(ctx)
	if err != nil {
		abortWithError(ctx, err)
		return
	}

	coverBytes, _, err := readFormFile(ctx, "cover")
	if err != nil {
		abortWithError(ctx, err)
		return
	}

	cfg := &config.Encode{HasCover: true, Mode: config.ModeStego}
	cfg.PopulateUnsetConfigVars()
	if raw := ctx.PostForm("bpc"); raw != "" {
		cfg.BitsPerChannel, err = strconv.Atoi(raw)
		if err != nil {
			abortWithError(ctx, fmt.Errorf("%w: %q", stego.ErrInvalidBitsPerChannel, raw))
			return
		}
	}
	if err := cfg.Validate(); err != nil {
		abortWithError(ctx, err)
		return
	}

	cover, err := imageio.Decode(coverBytes)
	if err != nil {
		abortWithError(ctx, err)
		return
	}

	img, err := stego.EncodeStego(data, mimeType, name, cover, cfg.BitsPerChannel)
	if err != nil {
		abortWithError(ctx, err)
		return
	}

	log.Debug().
		Str("mime", mimeType).
		Str("name", name).
		Int("bitsPerChannel", cfg.BitsPerChannel).
		Int("width", img.Bounds().Dx()).
		Int("height", img.Bounds().Dy()).
		Msg("Encoded stego image")
	s.writePNG(ctx, img)
}
