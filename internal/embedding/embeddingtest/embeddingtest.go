// Package embeddingtest provides a deterministic Embedder for tests of packages built on
// top of the role matcher.
package embeddingtest

import (
	"context"
	"fmt"
	"sync"

	"github.com/spigell/placement-checker/internal/embedding"
)

// Scripted returns fixed vectors keyed by the exact input text.
type Scripted struct {
	// Vectors maps input text to the vector returned for it.
	Vectors map[string]embedding.Vector
	// Fallback is returned for texts missing from Vectors. When nil such texts fail.
	Fallback embedding.Vector
	// Err, when set, fails every call.
	Err error

	mu     sync.Mutex
	calls  int
	inputs [][]string
}

func (s *Scripted) Embed(ctx context.Context, texts []string) ([]embedding.Vector, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls++
	s.inputs = append(s.inputs, append([]string(nil), texts...))

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.Err != nil {
		return nil, s.Err
	}

	out := make([]embedding.Vector, 0, len(texts))
	for _, text := range texts {
		v, ok := s.Vectors[text]
		if !ok {
			if s.Fallback == nil {
				return nil, fmt.Errorf("no scripted vector for %q", text)
			}
			v = s.Fallback
		}
		out = append(out, append(embedding.Vector(nil), v...))
	}

	return out, nil
}

func (s *Scripted) Model() string { return "scripted" }

// Calls reports how many times Embed was called.
func (s *Scripted) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// Inputs returns a copy of every batch passed to Embed.
func (s *Scripted) Inputs() [][]string {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([][]string, len(s.inputs))
	for i, batch := range s.inputs {
		out[i] = append([]string(nil), batch...)
	}
	return out
}
