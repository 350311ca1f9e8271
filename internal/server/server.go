package server

import (
	"fmt"
	"image/png"
	"net/http"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

const DefaultMaxUploadBytes = 64 << 20

type Config struct {
	Port string
	// PNGCompression applies to every image the server returns.
	PNGCompression png.CompressionLevel
	// MaxUploadBytes caps the size of a request body.
	MaxUploadBytes int64
}

type Server struct {
	config Config
	router *gin.Engine
}

func New(config Config) *Server {
	if config.MaxUploadBytes <= 0 {
		config.MaxUploadBytes = DefaultMaxUploadBytes
	}

	r := gin.New()
	r.MaxMultipartMemory = config.MaxUploadBytes
	r.Use(requestLogger(), gin.Recovery(), limitBody(config.MaxUploadBytes))

	s := &Server{config: config, router: r}

	r.GET("/healthz", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := r.Group("/api/v1")
	v1.POST("/encode/noise", s.EncodeNoiseHandler)
	v1.POST("/encode/stego", s.EncodeStegoHandler)
	v1.POST("/decode", s.DecodeHandler)

	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// Run blocks serving on the configured port.
func (s *Server) Run() error {
	addr := fmt.Sprintf(":%s", s.config.Port)
	log.Info().Str("addr", addr).Msg("Starting server")
	return s.router.Run(addr)
}

func requestLogger() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		start := time.Now()
		ctx.Next()

		latency := time.Since(start)
		if latency > time.Minute {
			latency = latency.Truncate(time.Second)
		}

		event := log.Info()
		if ctx.Writer.Status() >= http.StatusInternalServerError {
			event = log.Error()
		}
		event.
			Int("status", ctx.Writer.Status()).
			Str("method", ctx.Request.Method).
			Str("path", ctx.Request.URL.Path).
			Dur("latency", latency).
			Str("requestSize", humanize.Bytes(uint64(max(ctx.Request.ContentLength, 0)))).
			Str("responseSize", humanize.Bytes(uint64(max(ctx.Writer.Size(), 0)))).
			Str("clientIP", ctx.ClientIP()).
			Str("error", ctx.Errors.ByType(gin.ErrorTypePrivate).String()).
			Msg("Handled request")
	}
}

// limitBody rejects requests declaring a body over limit and cuts off bodies
// that grow past it while being read.
func limitBody(limit int64) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		if ctx.Request.ContentLength > limit {
			abortWithError(ctx, fmt.Errorf("%w: %s declared, limit %s", errUploadTooLarge,
				humanize.Bytes(uint64(ctx.Request.ContentLength)), humanize.Bytes(uint64(limit))))
			return
		}
		ctx.Request.Body = http.MaxBytesReader(ctx.Writer, ctx.Request.Body, limit)
		ctx.Next()
	}
}
