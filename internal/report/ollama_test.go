package report

import (
	"bytes"
	"context"
	"os"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/spigell/placement-checker/internal/config"
	"github.com/spigell/placement-checker/internal/embedding/ollama"
	"github.com/spigell/placement-checker/internal/matcher"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestDataAnalystPostingWithOllama runs the reviewer scenario against a real all-minilm model
// and the built-in role profiles. Set PLACEMENT_TEST_OLLAMA_URL to enable it.
func TestDataAnalystPostingWithOllama(t *testing.T) {
	url := os.Getenv("PLACEMENT_TEST_OLLAMA_URL")
	if url == "" {
		t.Skip("PLACEMENT_TEST_OLLAMA_URL is not set")
	}

	v := viper.New()
	v.SetConfigType("yaml")
	require.NoError(t, v.ReadConfig(bytes.NewReader(config.DefaultYAML)))
	cfg, err := config.Load(v)
	require.NoError(t, err)

	list := make([]matcher.Profile, 0, len(cfg.Roles))
	for _, r := range cfg.Roles {
		list = append(list, matcher.Profile{Name: r.Name, Requirements: r.Requirements, Weight: r.Weight})
	}
	profiles, err := matcher.NewProfiles(list...)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	cache := matcher.NewCache(profiles, ollama.NewEmbedder(url, cfg.Embedding.Ollama.Model, time.Minute, nil), nil)
	require.NoError(t, cache.Build(ctx))

	scorer := matcher.NewScorer(cache, nil, 0)
	result, err := scorer.Score(ctx, "Data Analyst", `
This internship requires strong SQL and Python skills.
You will analyze datasets, build dashboards, and present
insights to business stakeholders.
`)
	require.NoError(t, err)

	r := New(result, cfg.SimilarityThreshold)
	t.Logf("similarity %.4f", r.Similarity)
	assert.True(t, r.Passed)

	unrelated, err := scorer.Score(ctx, "Data Analyst", "Serve coffee and greet guests at the front desk.")
	require.NoError(t, err)
	assert.Less(t, unrelated.Similarity, result.Similarity)
}
