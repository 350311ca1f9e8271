// Package shuffle generates the fixed pixel visiting order shared by the
// stego embedder and extractor.
package shuffle

// Seed is the generator state every permutation starts from. It never
// changes: images encoded with one build must decode with any other.
const Seed uint32 = 1337 ^ 0xDEADBEEF

const (
	increment = 0x6D2B79F5
	twoTo32   = 4294967296.0
)

// Rand is a 32-bit mixing generator. All state arithmetic wraps at 32 bits.
type Rand struct {
	state uint32
}

func NewRand(seed uint32) *Rand {
	return &Rand{state: seed}
}

// Uint32 advances the state and returns the next mixed value.
func (r *Rand) Uint32() uint32 {
	r.state += increment
	t := r.state
	t = (t ^ (t >> 15)) * (t | 1)
	t ^= t + (t^(t>>7))*(t|61)
	return t ^ (t >> 14)
}

// Float64 returns the next value scaled into [0, 1).
func (r *Rand) Float64() float64 {
	return float64(r.Uint32()) / twoTo32
}

// Permutation returns the pixel indices [reserved, total) in shuffled order.
// Identical arguments always produce identical output.
func Permutation(total, reserved int) []int {
	if reserved < 0 {
		reserved = 0
	}
	if total <= reserved {
		return []int{}
	}

	indices := make([]int, total-reserved)
	for i := range indices {
		indices[i] = reserved + i
	}

	r := NewRand(Seed)
	for i := len(indices) - 1; i > 0; i-- {
		// floor(rand * (i+1)) in float64. Integer scaling picks different
		// indices for some draws and breaks existing images.
		j := int(r.Float64() * float64(i+1))
		indices[i], indices[j] = indices[j], indices[i]
	}
	return indices
}
