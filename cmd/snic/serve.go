package main

import (
	"github.com/andresmejia3/snic/internal/server"
	"github.com/andresmejia3/snic/pkg/config"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	serveFlags struct {
		Port        string
		Compression string
		MaxUpload   int64
	}
)

var serveCmd = &cobra.Command{
	Use:     "serve",
	Short:   "Serve an API to encode and decode images over HTTP",
	Example: "snic serve --port 8888",
	Run: func(cmd *cobra.Command, args []string) {
		level, err := config.ParseCompression(serveFlags.Compression)
		if err != nil {
			log.Fatal().Err(err).Msg("Invalid server options")
		}

		s := server.New(server.Config{
			Port:           serveFlags.Port,
			PNGCompression: level,
			MaxUploadBytes: serveFlags.MaxUpload,
		})
		if err := s.Run(); err != nil {
			log.Fatal().Err(err).Msg("Server stopped")
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveFlags.Port, "port", "8080", "Port on which to start the server")
	serveCmd.Flags().StringVar(&serveFlags.Compression, "png-compression", "best", "PNG compression of returned images: default, none, fast, best")
	serveCmd.Flags().Int64Var(&serveFlags.MaxUpload, "max-upload", server.DefaultMaxUploadBytes, "Maximum request body size in bytes")
}
