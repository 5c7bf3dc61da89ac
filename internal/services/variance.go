package services

import (
	"encoding/binary"
	"hash/fnv"
	"math"
	"math/rand/v2"
	"sync"
)

// VarianceFunc returns a delta in [-bound, bound] to add to a pooled base score.
type VarianceFunc func(base, bound float64) float64

// VarianceBound is the half-width of the variance band for a base score:
// strong markets move less than weak ones.
func VarianceBound(base float64) float64 {
	switch {
	case base > 80:
		return 5
	case base > 60:
		return 10
	default:
		return 15
	}
}

// NoVariance returns base unchanged.
func NoVariance(_, _ float64) float64 { return 0 }

// NewSeededVariance draws uniform deltas from a PCG source, so a fixed seed
// reproduces the same sequence of deltas.
func NewSeededVariance(seed uint64) VarianceFunc {
	var mu sync.Mutex
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	return func(_, bound float64) float64 {
		mu.Lock()
		u := rng.Float64()
		mu.Unlock()
		return (u*2 - 1) * bound
	}
}

// NewConsumerVariance derives the delta from a hash of the consumer and the
// base score. The same consumer always sees the same score for an entry,
// while different consumers in the geography see different ones.
func NewConsumerVariance(consumerID string, seed uint64) VarianceFunc {
	return func(base, bound float64) float64 {
		h := fnv.New64a()
		var buf [16]byte
		binary.LittleEndian.PutUint64(buf[:8], seed)
		binary.LittleEndian.PutUint64(buf[8:], math.Float64bits(base))
		_, _ = h.Write(buf[:])
		_, _ = h.Write([]byte(consumerID))
		u := float64(h.Sum64()>>11) / (1 << 53)
		return (u*2 - 1) * bound
	}
}

