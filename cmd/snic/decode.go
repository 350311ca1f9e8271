package main

import (
	"os"

	"github.com/andresmejia3/snic/pkg/imageio"
	"github.com/andresmejia3/snic/pkg/payload"
	"github.com/andresmejia3/snic/pkg/stego"
	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

const defaultRecoveredName = "recovered.bin"

var (
	decodeFlags struct {
		Image string
		Out   string
	}
)

var decodeCmd = &cobra.Command{
	Use:   "decode",
	Short: "Recover the file hidden in an image",
	Run: func(cmd *cobra.Command, args []string) {
		img, err := imageio.Load(decodeFlags.Image)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to load image")
		}

		format, header, err := stego.Detect(img)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to decode file")
		}

		var opts []stego.Option
		if format == stego.FormatStego {
			opts = append(opts, stego.WithProgress(newBar(int64(header.PayloadLength), "decoding")))
		}

		res, err := stego.Decode(img, opts...)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to decode file")
		}
		if res.Legacy {
			log.Debug().Msg("Image used legacy compressed framing")
		}

		out := decodeFlags.Out
		if out == "" {
			// Never trust the stored name with a directory.
			out = payload.CleanName(res.Name)
			if out == "" {
				out = defaultRecoveredName
			}
		}

		if out == "-" {
			if _, err := os.Stdout.Write(res.Data); err != nil {
				log.Fatal().Err(err).Msg("Failed to write output")
			}
		} else {
			if err := prepareOutput(out); err != nil {
				log.Fatal().Err(err).Msg("Failed to create output directory")
			}
			if err := os.WriteFile(out, res.Data, 0644); err != nil {
				log.Fatal().Err(err).Msg("Failed to write output file")
			}
		}

		log.Info().
			Str("output", out).
			Stringer("format", res.Format).
			Str("mime", res.MimeType).
			Str("name", res.Name).
			Str("size", humanize.Bytes(uint64(len(res.Data)))).
			Msg("File recovered")
	},
}

func init() {
	rootCmd.AddCommand(decodeCmd)

	decodeCmd.Flags().StringVarP(&decodeFlags.Image, "image", "i", "", "Path to image (required)")
	decodeCmd.MarkFlagRequired("image")
	decodeCmd.Flags().StringVarP(&decodeFlags.Out, "output", "o", "", "Output path for the recovered file, '-' for stdout (default: the stored file name)")
}
