package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/andresmejia3/snic/pkg/imageio"
	"github.com/andresmejia3/snic/pkg/payload"
	"github.com/andresmejia3/snic/pkg/stego"
	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var capacityCmd = &cobra.Command{
	Use:   "capacity [image-path]",
	Short: "Calculate the storage capacity of a cover image",
	Long: `Prints how much a cover holds at each density without being enlarged. Files above
half of a row's capacity still fit, but the cover is enlarged for headroom.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		img, err := imageio.Load(args[0])
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to load image")
		}

		w, h := img.Bounds().Dx(), img.Bounds().Dy()
		fmt.Printf("Cover: %dx%d (%d payload pixels)\n\n", w, h, max(0, w*h-stego.ReservedHeaderPixels))

		wtr := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(wtr, "Bits/Channel\tCapacity (Bits)\tCapacity (Bytes)\tMax File\tNo Resize")
		fmt.Fprintln(wtr, "------------\t---------------\t----------------\t--------\t---------")
		for bpc := stego.MinBitsPerChannel; bpc <= stego.MaxEncodeBitsPerChannel; bpc++ {
			printCap(wtr, w, h, bpc)
		}
		wtr.Flush()
	},
}

func printCap(wtr *tabwriter.Writer, w, h, bpc int) {
	bits := stego.Capacity(w, h, bpc)
	bytes := bits / 8
	// Largest file with an empty MIME type and name.
	maxFile := max(0, bytes-payload.HeaderSize("", ""))
	noResize := max(0, int(float64(bits)*stego.UtilizationThreshold)/8-payload.HeaderSize("", ""))
	fmt.Fprintf(wtr, "%d\t%d\t%d\t%s\t%s\n", bpc, bits, bytes, humanize.Bytes(uint64(maxFile)), humanize.Bytes(uint64(noResize)))
}

func init() {
	rootCmd.AddCommand(capacityCmd)
}
