package testutil

import (
	"context"
	"hash/fnv"
	"math"
)

// FakeEmbedder produces deterministic unit-length vectors derived from the
// input text. Equal inputs always embed to equal vectors, so similarity
// ordering is stable across test runs without calling a real model.
type FakeEmbedder struct {
	dim int
	err error
}

// NewFakeEmbedder creates an embedder emitting vectors of the given
// dimension.
func NewFakeEmbedder(dim int) *FakeEmbedder {
	return &FakeEmbedder{dim: dim}
}

// NewFailingEmbedder creates an embedder that always returns err.
func NewFailingEmbedder(err error) *FakeEmbedder {
	return &FakeEmbedder{err: err}
}

// EmbedQuery embeds a single query string.
func (f *FakeEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.vector(text), nil
}

// EmbedPassages embeds a batch of passages.
func (f *FakeEmbedder) EmbedPassages(_ context.Context, texts []string) ([][]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = f.vector(text)
	}
	return out, nil
}

func (f *FakeEmbedder) vector(text string) []float32 {
	v := make([]float32, f.dim)
	var norm float64
	for i := range v {
		h := fnv.New64a()
		h.Write([]byte(text))
		h.Write([]byte{byte(i), byte(i >> 8)})
		// Map the hash onto [-1, 1).
		v[i] = float32(int64(h.Sum64())) / float32(math.MaxInt64)
		norm += float64(v[i]) * float64(v[i])
	}
	if norm > 0 {
		scale := float32(1 / math.Sqrt(norm))
		for i := range v {
			v[i] *= scale
		}
	}
	return v
}
