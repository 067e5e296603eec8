package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spigell/placement-checker/internal/config"
	"github.com/spigell/placement-checker/internal/embedding"
	"github.com/spigell/placement-checker/internal/embedding/gemini"
	"github.com/spigell/placement-checker/internal/embedding/ollama"
	"github.com/spigell/placement-checker/internal/embedding/onnx"
	"github.com/spigell/placement-checker/internal/embedding/openai"
	"github.com/spigell/placement-checker/internal/logger"
	"github.com/spigell/placement-checker/internal/matcher"
	"github.com/spigell/placement-checker/internal/secrets"

	"go.uber.org/zap"
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// newEmbedder creates the embedder selected by cfg.Provider. The returned closer releases
// local model resources and must be called once the embedder is no longer used.
func newEmbedder(ctx context.Context, cfg *config.EmbeddingConfig, log *zap.Logger) (embedding.Embedder, io.Closer, error) {
	if cfg == nil {
		return nil, nil, errors.New("embedding config is required")
	}

	var (
		e      embedding.Embedder
		closer io.Closer = nopCloser{}
	)

	switch cfg.Provider {
	case "ollama":
		e = ollama.NewEmbedder(cfg.Ollama.URL, cfg.Ollama.Model, cfg.Ollama.Timeout, log)

	case "gemini":
		key, err := secrets.Load(secrets.Source{
			Name:  "gemini api key",
			Value: cfg.Gemini.APIKey,
			File:  cfg.Gemini.APIKeyFile,
			Env:   cfg.Gemini.APIKeyEnv,
		})
		if err != nil {
			return nil, nil, err
		}

		e, err = gemini.NewEmbedder(ctx, key, gemini.Options{
			Model:      cfg.Gemini.Model,
			TaskType:   cfg.Gemini.TaskType,
			Dimensions: cfg.Gemini.Dimensions,
			MaxRetries: cfg.Gemini.MaxRetries,
		}, log)
		if err != nil {
			return nil, nil, fmt.Errorf("creating gemini embedder: %w", err)
		}

	case "openai":
		key, err := secrets.Load(secrets.Source{
			Name:  "openai api key",
			Value: cfg.OpenAI.APIKey,
			File:  cfg.OpenAI.APIKeyFile,
			Env:   cfg.OpenAI.APIKeyEnv,
		})
		if err != nil {
			return nil, nil, err
		}

		opts := []openai.Option{
			openai.WithModel(cfg.OpenAI.Model),
			openai.WithDimensions(cfg.OpenAI.Dimensions),
			openai.WithMaxRetries(cfg.OpenAI.MaxRetries),
		}
		if cfg.OpenAI.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.OpenAI.BaseURL))
		}

		e, err = openai.NewEmbedder(key, log, opts...)
		if err != nil {
			return nil, nil, fmt.Errorf("creating openai embedder: %w", err)
		}

	case "onnx":
		local, err := onnx.NewEmbedder(onnx.Config{
			LibraryPath:   cfg.ONNX.LibraryPath,
			ModelPath:     cfg.ONNX.ModelPath,
			TokenizerPath: cfg.ONNX.TokenizerPath,
			MaxSeqLen:     cfg.ONNX.MaxSeqLen,
		}, log)
		if err != nil {
			return nil, nil, fmt.Errorf("creating onnx embedder: %w", err)
		}
		e, closer = local, local

	default:
		return nil, nil, fmt.Errorf("unsupported embedding provider %q", cfg.Provider)
	}

	if cfg.Serialize {
		e = embedding.Serialize(e)
	}

	return e, closer, nil
}

// checker holds everything a command needs to score placements.
type checker struct {
	cfg    *config.Config
	logger *zap.Logger
	cache  *matcher.Cache
	scorer *matcher.Scorer
	closer io.Closer
}

func newChecker(ctx context.Context, cfg *config.Config, log *zap.Logger) (*checker, error) {
	profiles, err := profilesFromConfig(cfg)
	if err != nil {
		return nil, err
	}

	e, closer, err := newEmbedder(ctx, cfg.Embedding, log)
	if err != nil {
		return nil, err
	}

	log = logger.WithEmbedding(log, cfg.Embedding.Provider, e.Model())
	cache := matcher.NewCache(profiles, e, log)

	return &checker{
		cfg:    cfg,
		logger: log,
		cache:  cache,
		scorer: matcher.NewScorer(cache, log, cfg.Embedding.MaxLogLength),
		closer: closer,
	}, nil
}

func (c *checker) Close() error {
	return c.closer.Close()
}

func profilesFromConfig(cfg *config.Config) (matcher.Profiles, error) {
	list := make([]matcher.Profile, 0, len(cfg.Roles))
	for _, role := range cfg.Roles {
		list = append(list, matcher.Profile{
			Name:         role.Name,
			Requirements: role.Requirements,
			Weight:       role.Weight,
		})
	}

	profiles, err := matcher.NewProfiles(list...)
	if err != nil {
		return matcher.Profiles{}, fmt.Errorf("loading role profiles: %w", err)
	}

	return profiles, nil
}
