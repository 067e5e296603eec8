package matcher

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/spigell/placement-checker/internal/embedding"
	"github.com/stretchr/testify/require"
)

const dataAnalystRequirements = `
        * Apply legislative requirements related to data protection
        * Ask analytical questions, formulate a problem and define required data entities
        * Profile data & conduct statistical analysis to assess data quality
        * Organize multiple data sources into an enterprise-wide database using SQL
        * Define what dashboards are needed in a specific situation & identify the ideal visual to present data (i.e., Excel, Tableau, Power BI)
`

func testProfiles(t *testing.T) Profiles {
	t.Helper()

	profiles, err := NewProfiles(
		Profile{Name: "Data Analyst", Requirements: dataAnalystRequirements, Weight: 0.5},
		Profile{Name: "Business Analyst", Requirements: "stakeholder communication requirements gathering\nbusiness processes documentation analysis", Weight: 0.3},
		Profile{Name: "ML Intern", Requirements: "machine learning python data preprocessing\nmodel evaluation feature engineering", Weight: 0.2},
	)
	require.NoError(t, err)
	return profiles
}

const vocabularySize = 512

// bagOfWords counts tokens into a fixed-size vector; every distinct token gets its own slot.
type bagOfWords struct {
	calls   atomic.Int32
	mu      sync.Mutex
	batches [][]string
	vocab   map[string]int
	err     error
}

func (b *bagOfWords) Embed(_ context.Context, texts []string) ([]embedding.Vector, error) {
	b.calls.Add(1)
	b.mu.Lock()
	defer b.mu.Unlock()

	b.batches = append(b.batches, append([]string(nil), texts...))
	if b.err != nil {
		return nil, b.err
	}
	if b.vocab == nil {
		b.vocab = make(map[string]int)
	}

	out := make([]embedding.Vector, len(texts))
	for i, text := range texts {
		vec := make(embedding.Vector, vocabularySize)
		for _, token := range strings.Fields(text) {
			slot, ok := b.vocab[token]
			if !ok {
				slot = len(b.vocab) % vocabularySize
				b.vocab[token] = slot
			}
			vec[slot]++
		}
		out[i] = vec
	}
	return out, nil
}

func (b *bagOfWords) Model() string { return "bag-of-words" }

// scripted returns fixed vectors keyed by the exact text it receives.
type scripted struct {
	vectors  map[string]embedding.Vector
	fallback embedding.Vector
}

func (s *scripted) Embed(_ context.Context, texts []string) ([]embedding.Vector, error) {
	out := make([]embedding.Vector, len(texts))
	for i, text := range texts {
		vec, ok := s.vectors[text]
		if !ok {
			if s.fallback == nil {
				return nil, errors.New("unexpected text: " + text)
			}
			vec = s.fallback
		}
		out[i] = vec
	}
	return out, nil
}

func (s *scripted) Model() string { return "scripted" }
