// Package embedtest provides a deterministic in-memory Embedder for tests.
// Unknown texts get mutually orthogonal unit vectors, so distinct texts score
// similarity 0 and identical texts score 1; tests that need a specific
// similarity register crafted vectors with Set.
package embedtest

import (
	"context"
	"math"
	"sync"
)

// Dim is the fake's fixed embedding dimension. Auto-assigned vectors use
// dimensions below AutoDim; crafted vectors should use AutoDim and above to
// stay orthogonal to them.
const (
	Dim     = 64
	AutoDim = 32
)

// Fake is a deterministic Embedder. Safe for concurrent use.
type Fake struct {
	mu      sync.Mutex
	vectors map[string][]float32
	next    int

	// Err, when set, makes every call fail. Used to exercise fail-open paths.
	Err error
}

// NewFake creates an empty fake embedder.
func NewFake() *Fake {
	return &Fake{vectors: make(map[string][]float32)}
}

// Set registers a crafted vector for a text.
func (f *Fake) Set(text string, vec []float32) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.vectors[text] = vec
}

// Unit returns the unit vector along dimension i.
func Unit(i int) []float32 {
	v := make([]float32, Dim)
	v[i] = 1
	return v
}

// Blend returns a unit vector with cosine similarity cos to Unit(i), using
// dimension j for the orthogonal remainder.
func Blend(i, j int, cos float64) []float32 {
	v := make([]float32, Dim)
	v[i] = float32(cos)
	v[j] = float32(math.Sqrt(1 - cos*cos))
	return v
}

func (f *Fake) lookup(text string) []float32 {
	f.mu.Lock()
	defer f.mu.Unlock()
	if v, ok := f.vectors[text]; ok {
		return v
	}
	if f.next >= AutoDim {
		panic("embedtest: auto-assign dimensions exhausted")
	}
	v := Unit(f.next)
	f.next++
	f.vectors[text] = v
	return v
}

// EmbedDocuments implements embed.Embedder.
func (f *Fake) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	if f.Err != nil {
		return nil, f.Err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = f.lookup(t)
	}
	return out, nil
}

// EmbedQuery implements embed.Embedder.
func (f *Fake) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	if f.Err != nil {
		return nil, f.Err
	}
	return f.lookup(text), nil
}

// Dimension implements embed.Embedder.
func (f *Fake) Dimension() int { return Dim }
