// Package parity writes Reed-Solomon recovery sidecars for encoded images.
//
// A stego or noise PNG is only useful while every bit survives. The sidecar
// stores a blake2b digest of each shard of the file plus the parity shards,
// so a file with up to ParityShards damaged shards can be restored.
//
// Sidecar layout:
//
//	0-3:    Magic ("SNIP")
//	4:      Version
//	5:      Data shards
//	6:      Parity shards
//	7-14:   Data length (little-endian uint64)
//	15-18:  Shard size (little-endian uint32)
//	...     BLAKE2b-256 digest of every shard, data shards first
//	...     Parity shards
package parity

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/klauspost/reedsolomon"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/blake2b"
)

const (
	Magic   = "SNIP"
	Version = 1

	// Extension is appended to an image path to name its sidecar.
	Extension = ".snp"

	DefaultDataShards   = 10
	DefaultParityShards = 4

	headerSize = 4 + 1 + 1 + 1 + 8 + 4
	digestSize = blake2b.Size256
)

var (
	ErrEmptyData      = errors.New("nothing to protect")
	ErrInvalidSidecar = errors.New("invalid parity sidecar")
	ErrUnrecoverable  = errors.New("too many damaged shards to repair")
)

// Sidecar is a decoded parity file.
type Sidecar struct {
	DataShards   int
	ParityShards int
	DataLength   uint64
	ShardSize    int
	Digests      [][digestSize]byte
	Parity       [][]byte
}

// Report describes the outcome of a check or repair.
type Report struct {
	// DamagedData and DamagedParity list the indexes of shards whose digest
	// did not match.
	DamagedData   []int
	DamagedParity []int
	Repaired      bool
}

// Intact reports whether no shard was damaged.
func (r *Report) Intact() bool {
	return len(r.DamagedData) == 0 && len(r.DamagedParity) == 0
}

// Protect builds a sidecar for data with the default shard counts.
func Protect(data []byte) ([]byte, error) {
	return ProtectShards(data, DefaultDataShards, DefaultParityShards)
}

// ProtectShards builds a sidecar for data split into dataShards pieces with
// parityShards recovery shards.
func ProtectShards(data []byte, dataShards, parityShards int) ([]byte, error) {
	if len(data) == 0 {
		return nil, ErrEmptyData
	}
	if dataShards < 1 || parityShards < 1 || dataShards+parityShards > math.MaxUint8 {
		return nil, fmt.Errorf("invalid shard counts %d+%d", dataShards, parityShards)
	}

	enc, err := reedsolomon.New(dataShards, parityShards)
	if err != nil {
		return nil, fmt.Errorf("error creating reed solomon encoder: %w", err)
	}
	shards, err := enc.Split(data)
	if err != nil {
		return nil, fmt.Errorf("error splitting data: %w", err)
	}
	if err := enc.Encode(shards); err != nil {
		return nil, fmt.Errorf("error encoding parity: %w", err)
	}

	shardSize := len(shards[0])
	buf := make([]byte, 0, headerSize+len(shards)*digestSize+parityShards*shardSize)
	buf = append(buf, Magic...)
	buf = append(buf, Version, byte(dataShards), byte(parityShards))
	buf = binary.LittleEndian.AppendUint64(buf, uint64(len(data)))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(shardSize))
	for _, shard := range shards {
		digest := blake2b.Sum256(shard)
		buf = append(buf, digest[:]...)
	}
	for _, shard := range shards[dataShards:] {
		buf = append(buf, shard...)
	}

	log.Debug().
		Int("dataShards", dataShards).
		Int("parityShards", parityShards).
		Int("shardSize", shardSize).
		Int("bytes", len(data)).
		Msg("Built parity sidecar")
	return buf, nil
}

// ParseSidecar decodes a sidecar without checking it against any data.
func ParseSidecar(buf []byte) (*Sidecar, error) {
	if len(buf) < headerSize || string(buf[:4]) != Magic {
		return nil, fmt.Errorf("%w: bad magic", ErrInvalidSidecar)
	}
	if buf[4] != Version {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrInvalidSidecar, buf[4])
	}

	s := &Sidecar{
		DataShards:   int(buf[5]),
		ParityShards: int(buf[6]),
		DataLength:   binary.LittleEndian.Uint64(buf[7:15]),
		ShardSize:    int(binary.LittleEndian.Uint32(buf[15:19])),
	}
	if s.DataShards < 1 || s.ParityShards < 1 || s.ShardSize < 1 {
		return nil, fmt.Errorf("%w: empty shard geometry", ErrInvalidSidecar)
	}
	if s.DataLength > uint64(s.DataShards)*uint64(s.ShardSize) {
		return nil, fmt.Errorf("%w: data length %d exceeds shard space", ErrInvalidSidecar, s.DataLength)
	}

	total := s.DataShards + s.ParityShards
	want := headerSize + total*digestSize + s.ParityShards*s.ShardSize
	if len(buf) != want {
		return nil, fmt.Errorf("%w: %d bytes, want %d", ErrInvalidSidecar, len(buf), want)
	}

	cursor := headerSize
	s.Digests = make([][digestSize]byte, total)
	for i := range s.Digests {
		copy(s.Digests[i][:], buf[cursor:])
		cursor += digestSize
	}
	s.Parity = make([][]byte, s.ParityShards)
	for i := range s.Parity {
		s.Parity[i] = buf[cursor : cursor+s.ShardSize]
		cursor += s.ShardSize
	}
	return s, nil
}

// shardsFor cuts data into the sidecar's shard geometry, zero padding the
// tail and ignoring bytes past the protected length.
func (s *Sidecar) shardsFor(data []byte) [][]byte {
	if uint64(len(data)) > s.DataLength {
		data = data[:s.DataLength]
	}
	shards := make([][]byte, s.DataShards+s.ParityShards)
	for i := 0; i < s.DataShards; i++ {
		shard := make([]byte, s.ShardSize)
		if start := i * s.ShardSize; start < len(data) {
			copy(shard, data[start:])
		}
		shards[i] = shard
	}
	for i, p := range s.Parity {
		shards[s.DataShards+i] = bytes.Clone(p)
	}
	return shards
}

// check drops every shard whose digest does not match.
func (s *Sidecar) check(shards [][]byte) *Report {
	report := &Report{}
	for i, shard := range shards {
		if blake2b.Sum256(shard) == s.Digests[i] {
			continue
		}
		shards[i] = nil
		if i < s.DataShards {
			report.DamagedData = append(report.DamagedData, i)
		} else {
			report.DamagedParity = append(report.DamagedParity, i-s.DataShards)
		}
	}
	return report
}

// Check compares data against a sidecar without changing anything.
func Check(data, sidecar []byte) (*Report, error) {
	s, err := ParseSidecar(sidecar)
	if err != nil {
		return nil, err
	}
	report := s.check(s.shardsFor(data))
	if uint64(len(data)) != s.DataLength {
		log.Warn().
			Int("size", len(data)).
			Uint64("expected", s.DataLength).
			Msg("Protected file changed size")
	}
	return report, nil
}

// Repair restores damaged data from its sidecar. Intact data is returned
// unchanged.
func Repair(damaged, sidecar []byte) ([]byte, *Report, error) {
	s, err := ParseSidecar(sidecar)
	if err != nil {
		return nil, nil, err
	}

	shards := s.shardsFor(damaged)
	report := s.check(shards)
	if report.Intact() && uint64(len(damaged)) == s.DataLength {
		return damaged, report, nil
	}

	log.Debug().
		Ints("damagedData", report.DamagedData).
		Ints("damagedParity", report.DamagedParity).
		Msg("Reconstructing damaged shards")

	enc, err := reedsolomon.New(s.DataShards, s.ParityShards)
	if err != nil {
		return nil, report, fmt.Errorf("failed to create Reed-Solomon decoder: %w", err)
	}
	if err := enc.ReconstructData(shards); err != nil {
		return nil, report, fmt.Errorf("%w: %v", ErrUnrecoverable, err)
	}

	var restored bytes.Buffer
	if err := enc.Join(&restored, shards[:s.DataShards], int(s.DataLength)); err != nil {
		return nil, report, fmt.Errorf("failed to join Reed-Solomon shards: %w", err)
	}
	report.Repaired = true
	return restored.Bytes(), report, nil
}
