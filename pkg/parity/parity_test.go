package parity

import (
	"bytes"
	"crypto/rand"
	"io"
	"os"
	"testing"

	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	log.Logger = log.Output(io.Discard)
	os.Exit(m.Run())
}

func randomData(t *testing.T, n int) []byte {
	t.Helper()
	b := make([]byte, n)
	_, err := rand.Read(b)
	require.NoError(t, err)
	return b
}

func TestSidecarLayout(t *testing.T) {
	data := randomData(t, 1000)
	sidecar, err := Protect(data)
	require.NoError(t, err)

	require.Equal(t, Magic, string(sidecar[:4]))
	require.Equal(t, byte(Version), sidecar[4])

	s, err := ParseSidecar(sidecar)
	require.NoError(t, err)
	require.Equal(t, DefaultDataShards, s.DataShards)
	require.Equal(t, DefaultParityShards, s.ParityShards)
	require.Equal(t, uint64(1000), s.DataLength)
	require.Equal(t, 100, s.ShardSize)
	require.Len(t, s.Digests, DefaultDataShards+DefaultParityShards)
	require.Len(t, s.Parity, DefaultParityShards)
	require.Len(t, sidecar, headerSize+14*digestSize+4*100)
}

func TestRepairIntact(t *testing.T) {
	data := randomData(t, 4321)
	sidecar, err := Protect(data)
	require.NoError(t, err)

	out, report, err := Repair(data, sidecar)
	require.NoError(t, err)
	require.True(t, report.Intact())
	require.False(t, report.Repaired)
	require.Equal(t, data, out)
}

func TestRepairDamagedShards(t *testing.T) {
	data := randomData(t, 5000)
	sidecar, err := Protect(data)
	require.NoError(t, err)

	// Flip bytes in four different data shards of 500 bytes each.
	damaged := bytes.Clone(data)
	for _, offset := range []int{3, 1200, 2999, 4999} {
		damaged[offset] ^= 0xFF
	}

	report, err := Check(damaged, sidecar)
	require.NoError(t, err)
	require.Equal(t, []int{0, 2, 5, 9}, report.DamagedData)

	out, report, err := Repair(damaged, sidecar)
	require.NoError(t, err)
	require.True(t, report.Repaired)
	require.Equal(t, data, out)
}

func TestRepairTruncated(t *testing.T) {
	data := randomData(t, 2000)
	sidecar, err := Protect(data)
	require.NoError(t, err)

	// Losing the last 300 bytes damages the final two shards.
	out, report, err := Repair(data[:1700], sidecar)
	require.NoError(t, err)
	require.Equal(t, []int{8, 9}, report.DamagedData)
	require.Equal(t, data, out)
}

func TestRepairDamagedParity(t *testing.T) {
	data := randomData(t, 1000)
	sidecar, err := Protect(data)
	require.NoError(t, err)

	sidecar[len(sidecar)-1] ^= 1
	damaged := bytes.Clone(data)
	damaged[0] ^= 1

	out, report, err := Repair(damaged, sidecar)
	require.NoError(t, err)
	require.Equal(t, []int{0}, report.DamagedData)
	require.Equal(t, []int{3}, report.DamagedParity)
	require.Equal(t, data, out)
}

func TestRepairTooDamaged(t *testing.T) {
	data := randomData(t, 1000)
	sidecar, err := ProtectShards(data, 4, 2)
	require.NoError(t, err)

	damaged := bytes.Clone(data)
	for _, offset := range []int{0, 250, 500} {
		damaged[offset] ^= 0xFF
	}

	_, _, err = Repair(damaged, sidecar)
	require.ErrorIs(t, err, ErrUnrecoverable)
}

func TestProtectErrors(t *testing.T) {
	_, err := Protect(nil)
	require.ErrorIs(t, err, ErrEmptyData)

	_, err = ProtectShards([]byte("x"), 0, 2)
	require.Error(t, err)

	_, err = ProtectShards([]byte("x"), 200, 100)
	require.Error(t, err)
}

func TestParseSidecarErrors(t *testing.T) {
	valid, err := Protect(randomData(t, 64))
	require.NoError(t, err)

	badVersion := bytes.Clone(valid)
	badVersion[4] = 9

	tests := map[string][]byte{
		"empty":     nil,
		"magic":     append([]byte("NOPE"), valid[4:]...),
		"version":   badVersion,
		"truncated": valid[:len(valid)-1],
		"trailing":  append(bytes.Clone(valid), 0),
	}
	for name, buf := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParseSidecar(buf)
			require.ErrorIs(t, err, ErrInvalidSidecar)
		})
	}
}
