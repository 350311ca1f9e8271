package main

import (
	"fmt"
	"image/png"
	"os"
	"time"

	"github.com/andresmejia3/snic/pkg/imageio"
	"github.com/andresmejia3/snic/pkg/stego"
	"github.com/rs/zerolog/log"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

var (
	analyzeFlags struct {
		Original string
		Stego    string
		Heatmap  string
	}
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Analyze the difference between a cover and a stego image",
	Long: `Calculates PSNR (Peak Signal-to-Noise Ratio) and generates a heatmap image highlighting modified pixels.
Both images must have the same size, so covers that were enlarged during encoding cannot be compared.`,
	Run: func(cmd *cobra.Command, args []string) {
		if analyzeFlags.Heatmap == "" {
			analyzeFlags.Heatmap = "heatmap.png"
		}

		fmt.Fprintln(os.Stderr, " 📂 Loading images...")
		original, err := imageio.Load(analyzeFlags.Original)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to load original")
		}
		stegoImg, err := imageio.Load(analyzeFlags.Stego)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to load stego image")
		}

		bounds := original.Bounds()
		bar := progressbar.NewOptions(
			bounds.Dx()*bounds.Dy(),
			progressbar.OptionSetDescription(" 📊 Analyzing"),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionSetWidth(15),
			progressbar.OptionThrottle(65*time.Millisecond),
			progressbar.OptionShowCount(),
			progressbar.OptionOnCompletion(func() {
				fmt.Fprint(os.Stderr, "\n")
			}),
			progressbar.OptionSpinnerType(14),
			progressbar.OptionFullWidth(),
			progressbar.OptionSetRenderBlankState(true),
		)

		result, err := stego.Analyze(original, stegoImg, stego.WithProgress(bar))
		if err != nil {
			log.Fatal().Err(err).Msg("Analysis failed")
		}

		if err := prepareOutput(analyzeFlags.Heatmap); err != nil {
			log.Fatal().Err(err).Msg("Failed to create heatmap directory")
		}
		if err := imageio.Save(analyzeFlags.Heatmap, result.Heatmap, png.DefaultCompression); err != nil {
			log.Fatal().Err(err).Msg("Failed to save heatmap")
		}

		total := bounds.Dx() * bounds.Dy()
		fmt.Printf("Analysis Complete:\n")
		fmt.Printf("------------------\n")
		fmt.Printf("MSE (Mean Squared Error):       %.4f\n", result.MSE)
		fmt.Printf("PSNR (Peak Signal-to-Noise):    %.2f dB\n", result.PSNR)
		fmt.Printf("Modified Pixels:                %d of %d (%.2f%%)\n", result.ModifiedPixels, total, 100*float64(result.ModifiedPixels)/float64(total))
		fmt.Printf("Heatmap saved to:               %s\n", analyzeFlags.Heatmap)
		fmt.Printf("\nInterpretation:\n")
		fmt.Printf(" > 30dB: Good quality (hard to detect visually)\n")
		fmt.Printf(" > 40dB: Excellent quality\n")
	},
}

func init() {
	rootCmd.AddCommand(analyzeCmd)

	analyzeCmd.Flags().StringVarP(&analyzeFlags.Original, "original", "o", "", "Path to original image (required)")
	analyzeCmd.MarkFlagRequired("original")
	analyzeCmd.Flags().StringVarP(&analyzeFlags.Stego, "stego", "s", "", "Path to stego image (required)")
	analyzeCmd.MarkFlagRequired("stego")
	analyzeCmd.Flags().StringVarP(&analyzeFlags.Heatmap, "heatmap", "d", "heatmap.png", "Output path for the difference heatmap image")
}
