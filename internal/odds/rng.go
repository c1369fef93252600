package odds

import (
	cryptoRand "crypto/rand"
	"encoding/binary"
	"math/rand/v2"
)

// RandomSource yields uniform samples in [0,1). The engine draws one
// sample per mission attempt; tests swap in a fixed or seeded source.
type RandomSource interface {
	Float64() float64
}

// crypto random, default source
type cryptoRNG struct{}

func (cryptoRNG) Float64() float64 {
	var buf [8]byte
	if _, err := cryptoRand.Read(buf[:]); err != nil {
		return rand.Float64()
	}

	u := binary.BigEndian.Uint64(buf[:]) >> 11 // 53 bits
	return float64(u) / (1 << 53)
}

// Default returns the crypto-backed random source.
func Default() RandomSource { return cryptoRNG{} }

// seeded RNG for replicable runs
type seededRNG struct{ r *rand.Rand }

// NewSeeded returns a deterministic source for the given seed.
func NewSeeded(seed uint64) RandomSource {
	return &seededRNG{r: rand.New(rand.NewPCG(seed, 0))}
}

func (s *seededRNG) Float64() float64 { return s.r.Float64() }

// Fixed always returns the same sample. Used to force outcomes in tests.
type Fixed float64

func (f Fixed) Float64() float64 { return float64(f) }
