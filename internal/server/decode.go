package server

import (
	"mime"
	"net/http"

	"github.com/andresmejia3/snic/pkg/imageio"
	"github.com/andresmejia3/snic/pkg/stego"
	"github.com/dustin/go-humanize"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

const fallbackMIME = "application/octet-stream"

// DecodeHandler recovers the file hidden in the uploaded image. The body is
// the raw file; errors are JSON.
func (s *Server) DecodeHandler(ctx *gin.Context) {
	raw, _, err := readFormFile(ctx, "image")
	if err != nil {
		abortWithError(ctx, err)
		return
	}

	img, err := imageio.Decode(raw)
	if err != nil {
		abortWithError(ctx, err)
		return
	}

	res, err := stego.Decode(img)
	if err != nil {
		abortWithError(ctx, err)
		return
	}

	log.Info().
		Stringer("format", res.Format).
		Str("mime", res.MimeType).
		Str("name", res.Name).
		Str("size", humanize.Bytes(uint64(len(res.Data)))).
		Msg("Decoded file")

	contentType := res.MimeType
	if contentType == "" {
		contentType = fallbackMIME
	}
	if disposition := mime.FormatMediaType("attachment", map[string]string{"filename": res.Name}); res.Name != "" && disposition != "" {
		ctx.Header("Content-Disposition", disposition)
	}
	ctx.Header("X-Snic-Format", res.Format.String())
	ctx.Data(http.StatusOK, contentType, res.Data)
}
