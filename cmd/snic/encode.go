package main

import (
	"image"
	"path/filepath"

	"github.com/andresmejia3/snic/pkg/config"
	"github.com/andresmejia3/snic/pkg/imageio"
	"github.com/andresmejia3/snic/pkg/payload"
	"github.com/andresmejia3/snic/pkg/stego"
	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	encodeFlags struct {
		File        string
		Mime        string
		Name        string
		Cover       string
		Bits        int
		Out         string
		Compression string
	}
)

var encodeCmd = &cobra.Command{
	Use:   "encode",
	Short: "Hide a file in an image",
	Long: `Without a cover the file becomes a noise image. With --cover the file is hidden in the
low bits of the cover, which is enlarged when the file does not fit comfortably.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := &config.Encode{
			BitsPerChannel: encodeFlags.Bits,
			PNGCompression: encodeFlags.Compression,
			HasCover:       encodeFlags.Cover != "",
		}
		cfg.PopulateUnsetConfigVars()
		if err := cfg.Validate(); err != nil {
			log.Fatal().Err(err).Msg("Invalid encode options")
		}

		data, err := readInput(encodeFlags.File)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to read input file")
		}

		fallbackName := ""
		if encodeFlags.File != "-" {
			fallbackName = encodeFlags.File
		}
		mimeType, name := payload.Describe(data, encodeFlags.Mime, encodeFlags.Name, fallbackName)

		// Default output handling
		if encodeFlags.Out == "" {
			encodeFlags.Out = filepath.Join("output", "hidden.png")
		}
		if err := prepareOutput(encodeFlags.Out); err != nil {
			log.Fatal().Err(err).Msg("Failed to create output directory")
		}

		log.Debug().
			Str("mode", cfg.Mode).
			Str("mime", mimeType).
			Str("name", name).
			Int("bytes", len(data)).
			Msg("Encoding file")

		var img *image.NRGBA
		switch cfg.Mode {
		case config.ModeNoise:
			img, err = stego.EncodeNoise(data, mimeType, name)
		case config.ModeStego:
			cover, loadErr := imageio.Load(encodeFlags.Cover)
			if loadErr != nil {
				log.Fatal().Err(loadErr).Msg("Failed to load cover image")
			}
			bar := newBar(int64(payload.HeaderSize(mimeType, name)+len(data)), "encoding")
			img, err = stego.EncodeStego(data, mimeType, name, cover, cfg.BitsPerChannel, stego.WithProgress(bar))
		}
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to encode file")
		}

		if err := imageio.Save(encodeFlags.Out, img, cfg.CompressionLevel()); err != nil {
			log.Fatal().Err(err).Msg("Failed to save image")
		}

		log.Info().
			Str("output", encodeFlags.Out).
			Str("mode", cfg.Mode).
			Int("width", img.Bounds().Dx()).
			Int("height", img.Bounds().Dy()).
			Str("hidden", humanize.Bytes(uint64(len(data)))).
			Msg("File hidden")
	},
}

func init() {
	rootCmd.AddCommand(encodeCmd)

	encodeCmd.Flags().StringVarP(&encodeFlags.File, "file", "f", "", "Path to file to hide (required). Use '-' for stdin.")
	encodeCmd.MarkFlagRequired("file")
	encodeCmd.Flags().StringVarP(&encodeFlags.Mime, "mime", "m", "", "MIME type to record (default: detected from the file)")
	encodeCmd.Flags().StringVar(&encodeFlags.Name, "name", "", "File name to record (default: base name of --file)")
	encodeCmd.Flags().StringVarP(&encodeFlags.Cover, "cover", "c", "", "Cover image; enables stego mode")
	encodeCmd.Flags().IntVarP(&encodeFlags.Bits, "bpc", "n", config.DefaultBitsPerChannel, "Bits per colour channel in stego mode (1-7)")
	encodeCmd.Flags().StringVarP(&encodeFlags.Out, "output", "o", "", "Output path for the image")
	encodeCmd.Flags().StringVar(&encodeFlags.Compression, "png-compression", "default", "PNG compression: default, none, fast, best")
}
