// Package embedding defines the sentence-embedding boundary: an Embedder turns texts into
// fixed-length vectors, one per input and in input order.
package embedding

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
)

// Embedder produces one vector per input text, preserving order.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([]Vector, error)
	// Model identifies the model and version. Vectors from different models are not comparable.
	Model() string
}

// Vector is a dense embedding.
type Vector []float32

var (
	ErrZeroVector        = errors.New("embedding has zero magnitude")
	ErrDimensionMismatch = errors.New("embedding dimensions differ")
)

// Norm returns the Euclidean length of v.
func (v Vector) Norm() float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

// Normalized returns a unit-length copy of v.
func (v Vector) Normalized() (Vector, error) {
	n := v.Norm()
	if n == 0 || math.IsNaN(n) || math.IsInf(n, 0) {
		return nil, ErrZeroVector
	}

	out := make(Vector, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) / n)
	}
	return out, nil
}

// Dot returns the dot product of v and w. For unit vectors this is the cosine similarity.
func (v Vector) Dot(w Vector) (float64, error) {
	if len(v) != len(w) {
		return 0, fmt.Errorf("%w: %d vs %d", ErrDimensionMismatch, len(v), len(w))
	}

	var dot float64
	for i := range v {
		dot += float64(v[i]) * float64(w[i])
	}
	return dot, nil
}

// NormalizeAll checks that vectors holds exactly want entries of one common dimension and
// returns unit-length copies of them.
func NormalizeAll(vectors []Vector, want int) ([]Vector, error) {
	if len(vectors) != want {
		return nil, fmt.Errorf("expected %d embeddings, got %d", want, len(vectors))
	}

	out := make([]Vector, len(vectors))
	for i, vec := range vectors {
		if len(vec) == 0 {
			return nil, fmt.Errorf("embedding %d is empty", i)
		}
		if i > 0 && len(vec) != len(out[0]) {
			return nil, fmt.Errorf("embedding %d: %w: %d vs %d", i, ErrDimensionMismatch, len(vec), len(out[0]))
		}

		unit, err := vec.Normalized()
		if err != nil {
			return nil, fmt.Errorf("embedding %d: %w", i, err)
		}
		out[i] = unit
	}

	return out, nil
}

type serialized struct {
	mu   sync.Mutex
	next Embedder
}

// Serialize wraps e so that at most one Embed call runs at a time. Use it for models whose
// inference is not safe for concurrent use.
func Serialize(e Embedder) Embedder {
	if e == nil {
		return nil
	}
	if _, ok := e.(*serialized); ok {
		return e
	}
	return &serialized{next: e}
}

func (s *serialized) Embed(ctx context.Context, texts []string) ([]Vector, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.next.Embed(ctx, texts)
}

func (s *serialized) Model() string { return s.next.Model() }
