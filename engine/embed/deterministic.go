package embed

import (
	"context"
	"hash/fnv"
)

// DeterministicEmbedder produces a reproducible fixed-dimension vector by
// hashing the input string. It requires no external service, so it is used
// wherever a corpus run is configured without a live embedding backend
// (tests, local dry runs via --embedder=deterministic).
type DeterministicEmbedder struct {
	dims int
}

// NewDeterministicEmbedder creates a hash-based embedder with the given
// dimensionality.
func NewDeterministicEmbedder(dims int) *DeterministicEmbedder {
	if dims <= 0 {
		dims = 64
	}
	return &DeterministicEmbedder{dims: dims}
}

func (e *DeterministicEmbedder) Dims() int { return e.dims }

// Embed hashes text with FNV-1a seeded per output dimension, normalizing
// each component into [-1, 1]. Identical text always yields an identical
// vector.
func (e *DeterministicEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	out := make([]float32, e.dims)
	for i := range out {
		h := fnv.New32a()
		h.Write([]byte(text))
		h.Write([]byte{byte(i), byte(i >> 8)})
		v := h.Sum32()
		out[i] = float32(v%2000)/1000.0 - 1.0
	}
	return out, nil
}
