package matcher

import (
	"context"
	"errors"
	"fmt"
	"math"
	"unicode/utf8"

	"github.com/spigell/placement-checker/internal/embedding"
	"github.com/spigell/placement-checker/internal/textnorm"
	"github.com/spigell/placement-checker/internal/utils"
	"go.uber.org/zap"
)

const (
	precision           = 1e4
	defaultMaxLogLength = 200
)

// Result is the outcome of scoring one candidate text against one role.
type Result struct {
	Role string `json:"role"`
	// Similarity is the cosine similarity rounded to 4 decimal places.
	Similarity float64 `json:"similarity"`
	Weight     float64 `json:"weight"`
}

// Scorer compares candidate texts with cached role embeddings. It embeds candidates with
// the same Embedder the cache was built with.
type Scorer struct {
	cache     *Cache
	logger    *zap.Logger
	maxLogLen int
}

func NewScorer(cache *Cache, logger *zap.Logger, maxLogLength int) *Scorer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxLogLength <= 0 {
		maxLogLength = defaultMaxLogLength
	}

	return &Scorer{
		cache:     cache,
		logger:    logger,
		maxLogLen: maxLogLength,
	}
}

// Score returns the similarity between text and the requirements of role.
//
// Text that normalizes to nothing (empty input, punctuation only) scores 0 without calling
// the model. Model failures are returned wrapped in ErrModelUnavailable and are not retried.
func (s *Scorer) Score(ctx context.Context, role, text string) (*Result, error) {
	profile, ok := s.cache.profiles.Get(role)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownRole, role)
	}

	roleVec, err := s.cache.Embedding(ctx, role)
	if err != nil {
		return nil, err
	}

	cleaned := textnorm.Normalize(text)

	s.logger.Debug("scoring candidate",
		zap.String("role", role),
		zap.Int("text_length", utf8.RuneCountInString(text)),
		zap.String("cleaned_preview", utils.TruncateForLog(cleaned, s.maxLogLen)),
	)

	similarity := 0.0
	if cleaned != "" {
		similarity, err = s.similarity(ctx, roleVec, cleaned)
		if err != nil {
			return nil, err
		}
	}

	result := &Result{
		Role:       profile.Name,
		Similarity: round(similarity),
		Weight:     profile.Weight,
	}

	s.logger.Debug("candidate scored",
		zap.String("role", result.Role),
		zap.Float64("similarity", result.Similarity),
	)

	return result, nil
}

// ScoreOptional scores text that may be absent. A nil text is scored as empty text.
func (s *Scorer) ScoreOptional(ctx context.Context, role string, text *string) (*Result, error) {
	if text == nil {
		return s.Score(ctx, role, "")
	}
	return s.Score(ctx, role, *text)
}

func (s *Scorer) similarity(ctx context.Context, roleVec embedding.Vector, cleaned string) (float64, error) {
	vectors, err := s.cache.embedder.Embed(ctx, []string{cleaned})
	if err != nil {
		return 0, fmt.Errorf("%w: embedding candidate: %w", ErrModelUnavailable, err)
	}
	if len(vectors) != 1 {
		return 0, fmt.Errorf("%w: expected 1 candidate embedding, got %d", ErrModelUnavailable, len(vectors))
	}

	candidate, err := vectors[0].Normalized()
	if errors.Is(err, embedding.ErrZeroVector) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("%w: candidate embedding: %w", ErrModelUnavailable, err)
	}

	dot, err := roleVec.Dot(candidate)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrModelUnavailable, err)
	}

	return math.Max(-1, math.Min(1, dot)), nil
}

func round(v float64) float64 {
	return math.Round(v*precision) / precision
}
