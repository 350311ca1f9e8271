package server

import (
	"errors"
	"net/http"

	"github.com/andresmejia3/snic/pkg/imageio"
	"github.com/andresmejia3/snic/pkg/payload"
	"github.com/andresmejia3/snic/pkg/stego"
	"github.com/gin-gonic/gin"
)

type apiError struct {
	Code  string `json:"code"`
	Error string `json:"error"`
}

var (
	errMissingField   = errors.New("missing form field")
	errUploadTooLarge = errors.New("request body too large")
)

// errorCodes is checked in order, the first match wins.
var errorCodes = []struct {
	err    error
	code   string
	status int
}{
	{errUploadTooLarge, "upload_too_large", http.StatusRequestEntityTooLarge},
	{errMissingField, "missing_field", http.StatusBadRequest},
	{stego.ErrUnrecognizedFormat, "unrecognized_format", http.StatusBadRequest},
	{stego.ErrInvalidStegoHeader, "invalid_stego_header", http.StatusBadRequest},
	{stego.ErrInvalidBitsPerChannel, "invalid_bpc", http.StatusBadRequest},
	{stego.ErrEmptyImage, "invalid_image", http.StatusBadRequest},
	{imageio.ErrUndecodable, "invalid_image", http.StatusBadRequest},
	{payload.ErrUnrecognizedPayloadMagic, "unrecognized_payload", http.StatusBadRequest},
	{payload.ErrTruncatedHeader, "truncated_header", http.StatusBadRequest},
	{payload.ErrDecompressionFailed, "decompression_failed", http.StatusBadRequest},
	{payload.ErrFieldTooLong, "field_too_long", http.StatusBadRequest},
	{payload.ErrDataTooLarge, "data_too_large", http.StatusBadRequest},
}

func classify(err error) (int, apiError) {
	for _, c := range errorCodes {
		if errors.Is(err, c.err) {
			return c.status, apiError{Code: c.code, Error: err.Error()}
		}
	}
	return http.StatusInternalServerError, apiError{Code: "internal_error", Error: "An internal error occurred"}
}

func abortWithError(ctx *gin.Context, err error) {
	ctx.Error(err)
	status, body := classify(err)
	ctx.AbortWithStatusJSON(status, body)
}
