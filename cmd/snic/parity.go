package main

import (
	"os"

	"github.com/andresmejia3/snic/pkg/parity"
	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	parityFlags struct {
		DataShards   int
		ParityShards int
		Out          string
	}
)

var parityCmd = &cobra.Command{
	Use:   "parity",
	Short: "Manage Reed-Solomon recovery sidecars for encoded images",
	Long: `A sidecar (IMAGE` + parity.Extension + `) holds a digest of each slice of the image file and
parity slices that rebuild damaged ones.`,
}

var parityCreateCmd = &cobra.Command{
	Use:   "create [image-path]",
	Short: "Write a recovery sidecar next to an image",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		data, err := os.ReadFile(args[0])
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to read image")
		}

		sidecar, err := parity.ProtectShards(data, parityFlags.DataShards, parityFlags.ParityShards)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to build sidecar")
		}

		path := args[0] + parity.Extension
		if err := os.WriteFile(path, sidecar, 0644); err != nil {
			log.Fatal().Err(err).Msg("Failed to write sidecar")
		}
		log.Info().
			Str("sidecar", path).
			Str("size", humanize.Bytes(uint64(len(sidecar)))).
			Int("tolerates", parityFlags.ParityShards).
			Msg("Sidecar written")
	},
}

var parityCheckCmd = &cobra.Command{
	Use:   "check [image-path]",
	Short: "Check an image against its sidecar",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		data, sidecar := readProtected(args[0])

		report, err := parity.Check(data, sidecar)
		if err != nil {
			log.Fatal().Err(err).Msg("Check failed")
		}
		if !report.Intact() {
			log.Fatal().
				Ints("damagedData", report.DamagedData).
				Ints("damagedParity", report.DamagedParity).
				Msg("Image is damaged")
		}
		log.Info().Msg("Image is intact")
	},
}

var parityRepairCmd = &cobra.Command{
	Use:   "repair [image-path]",
	Short: "Repair an image from its sidecar",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		data, sidecar := readProtected(args[0])

		restored, report, err := parity.Repair(data, sidecar)
		if err != nil {
			log.Fatal().Err(err).Msg("Repair failed")
		}
		if !report.Repaired {
			log.Info().Msg("Image is intact, nothing to repair")
			return
		}

		out := parityFlags.Out
		if out == "" {
			out = args[0]
		}
		if err := os.WriteFile(out, restored, 0644); err != nil {
			log.Fatal().Err(err).Msg("Failed to write repaired image")
		}
		log.Info().
			Str("output", out).
			Ints("repairedData", report.DamagedData).
			Ints("damagedParity", report.DamagedParity).
			Msg("Image repaired")
	},
}

func readProtected(path string) ([]byte, []byte) {
	data, err := os.ReadFile(path)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to read image")
	}
	sidecar, err := os.ReadFile(path + parity.Extension)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to read sidecar")
	}
	return data, sidecar
}

func init() {
	rootCmd.AddCommand(parityCmd)
	parityCmd.AddCommand(parityCreateCmd, parityCheckCmd, parityRepairCmd)

	parityCreateCmd.Flags().IntVar(&parityFlags.DataShards, "data-shards", parity.DefaultDataShards, "Number of slices the image is split into")
	parityCreateCmd.Flags().IntVar(&parityFlags.ParityShards, "parity-shards", parity.DefaultParityShards, "Number of damaged slices the sidecar can rebuild")
	parityRepairCmd.Flags().StringVarP(&parityFlags.Out, "output", "o", "", "Output path for the repaired image (default: repair in place)")
}
