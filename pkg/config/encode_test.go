package config

import (
	"image/png"
	"testing"

	"github.com/andresmejia3/snic/pkg/stego"
	"github.com/stretchr/testify/require"
)

func TestPopulateUnsetConfigVars(t *testing.T) {
	c := &Encode{}
	c.PopulateUnsetConfigVars()
	require.Equal(t, DefaultBitsPerChannel, c.BitsPerChannel)
	require.Equal(t, "default", c.PNGCompression)
	require.Equal(t, ModeNoise, c.Mode)

	c = &Encode{HasCover: true, BitsPerChannel: 5}
	c.PopulateUnsetConfigVars()
	require.Equal(t, ModeStego, c.Mode)
	require.Equal(t, 5, c.BitsPerChannel)
	require.Equal(t, png.DefaultCompression, c.CompressionLevel())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		cfg  Encode
		err  error
	}{
		{"Noise", Encode{Mode: ModeNoise, PNGCompression: "best"}, nil},
		{"Stego", Encode{Mode: ModeStego, HasCover: true, BitsPerChannel: 7}, nil},
		{"Stego Without Cover", Encode{Mode: ModeStego, BitsPerChannel: 2}, ErrMissingCover},
		{"Zero Bits", Encode{Mode: ModeStego, HasCover: true}, stego.ErrInvalidBitsPerChannel},
		{"Eight Bits", Encode{Mode: ModeStego, HasCover: true, BitsPerChannel: 8}, stego.ErrInvalidBitsPerChannel},
		{"Unknown Mode", Encode{Mode: "sparkle"}, ErrUnknownMode},
		{"Unknown Compression", Encode{Mode: ModeNoise, PNGCompression: "max"}, ErrUnknownCompression},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.err == nil {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, tt.err)
		})
	}
}

func TestParseCompression(t *testing.T) {
	for name, want := range map[string]png.CompressionLevel{
		"":        png.DefaultCompression,
		"default": png.DefaultCompression,
		"NONE":    png.NoCompression,
		"fast":    png.BestSpeed,
		"best":    png.BestCompression,
	} {
		got, err := ParseCompression(name)
		require.NoError(t, err, name)
		require.Equal(t, want, got, name)
	}
}
