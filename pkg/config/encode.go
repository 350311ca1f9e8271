package config

import (
	"errors"
	"fmt"
	"image/png"
	"strings"

	"github.com/andresmejia3/snic/pkg/stego"
)

const (
	DefaultBitsPerChannel = 2

	ModeNoise = "noise"
	ModeStego = "stego"
)

var (
	ErrUnknownMode        = errors.New("unknown encode mode")
	ErrUnknownCompression = errors.New("unknown png compression")
	ErrMissingCover       = errors.New("stego mode needs a cover image")
)

var compressionLevels = map[string]png.CompressionLevel{
	"default": png.DefaultCompression,
	"none":    png.NoCompression,
	"fast":    png.BestSpeed,
	"best":    png.BestCompression,
}

// CompressionNames lists the accepted --png-compression values.
func CompressionNames() []string {
	return []string{"default", "none", "fast", "best"}
}

// ParseCompression maps a compression name to its PNG level. The empty
// string selects the default level.
func ParseCompression(name string) (png.CompressionLevel, error) {
	if name == "" {
		return png.DefaultCompression, nil
	}
	level, ok := compressionLevels[strings.ToLower(name)]
	if !ok {
		return 0, fmt.Errorf("%w: %q (want one of %s)", ErrUnknownCompression, name, strings.Join(CompressionNames(), ", "))
	}
	return level, nil
}

type Encode struct {
	// BitsPerChannel is only used in stego mode.
	BitsPerChannel int
	PNGCompression string
	// Mode is ModeNoise or ModeStego. Left empty it follows HasCover.
	Mode     string
	HasCover bool
}

func (c *Encode) PopulateUnsetConfigVars() {
	if c.BitsPerChannel == 0 {
		c.BitsPerChannel = DefaultBitsPerChannel
	}
	if c.PNGCompression == "" {
		c.PNGCompression = "default"
	}
	if c.Mode == "" {
		if c.HasCover {
			c.Mode = ModeStego
		} else {
			c.Mode = ModeNoise
		}
	}
}

func (c *Encode) Validate() error {
	switch c.Mode {
	case ModeNoise:
	case ModeStego:
		if !c.HasCover {
			return ErrMissingCover
		}
		if c.BitsPerChannel < stego.MinBitsPerChannel || c.BitsPerChannel > stego.MaxEncodeBitsPerChannel {
			return fmt.Errorf("%w: got %d", stego.ErrInvalidBitsPerChannel, c.BitsPerChannel)
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownMode, c.Mode)
	}
	if _, err := ParseCompression(c.PNGCompression); err != nil {
		return err
	}
	return nil
}

// CompressionLevel returns the PNG level of a validated config.
func (c *Encode) CompressionLevel() png.CompressionLevel {
	level, _ := ParseCompression(c.PNGCompression)
	return level
}
