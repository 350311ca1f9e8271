package main

import (
	"encoding/hex"
	"fmt"

	"github.com/andresmejia3/snic/pkg/imageio"
	"github.com/andresmejia3/snic/pkg/stego"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"golang.org/x/crypto/blake2b"
)

var infoCmd = &cobra.Command{
	Use:   "info [image_path]",
	Short: "Inspect an encoded image and display its metadata",
	Long:  `Detects whether an image is a noise or stego image and prints its headers along with a BLAKE2b-256 digest of the hidden file.`,
	Args:  cobra.ExactArgs(1), // Requires exactly one argument: the image path
	RunE: func(cmd *cobra.Command, args []string) error {
		imagePath := args[0]

		img, err := imageio.Load(imagePath)
		if err != nil {
			return fmt.Errorf("failed to load %s: %w", imagePath, err)
		}

		info, err := stego.GetInfo(img)
		if err != nil {
			return fmt.Errorf("failed to get info from %s: %w", imagePath, err)
		}
		res, err := stego.Decode(img)
		if err != nil {
			return fmt.Errorf("failed to decode %s: %w", imagePath, err)
		}
		digest := blake2b.Sum256(res.Data)

		fmt.Println("Image Information:")
		fmt.Println("------------------")
		fmt.Printf("Format:           %s\n", info.Format)
		fmt.Printf("Dimensions:       %dx%d\n", info.Width, info.Height)
		if info.Format == stego.FormatStego {
			fmt.Printf("Bits Per Channel: %d\n", info.BitsPerChannel)
			fmt.Printf("Payload Length:   %d bytes\n", info.PayloadLength)
		}
		fmt.Printf("Legacy Framing:   %t\n", info.Legacy)
		fmt.Printf("MIME Type:        %s\n", info.MimeType)
		fmt.Printf("File Name:        %s\n", info.Name)
		fmt.Printf("File Size:        %s (%d bytes)\n", humanize.Bytes(uint64(len(res.Data))), len(res.Data))
		fmt.Printf("BLAKE2b-256:      %s\n", hex.EncodeToString(digest[:]))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(infoCmd)
}
