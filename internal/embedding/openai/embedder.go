// Package openai embeds text with the OpenAI embeddings API.
package openai

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/pkoukk/tiktoken-go"
	"github.com/spigell/placement-checker/internal/embedding"
	"go.uber.org/zap"
)

const (
	// DefaultModel is used when no model is configured.
	DefaultModel = "text-embedding-3-small"
	// MaxBatchSize bounds the number of inputs sent in one request.
	MaxBatchSize = 100
	// MaxInputTokens is the input limit of the OpenAI embedding models.
	MaxInputTokens = 8191

	fallbackEncoding = "cl100k_base"
)

type embeddingsAPI interface {
	New(ctx context.Context, body openai.EmbeddingNewParams, opts ...option.RequestOption) (*openai.CreateEmbeddingResponse, error)
}

type embedderOptions struct {
	model      string
	dimensions int
	baseURL    string
	maxRetries int
	maxTokens  int
}

// Option configures the Embedder.
type Option func(*embedderOptions)

// WithModel overrides the embedding model.
func WithModel(model string) Option {
	return func(o *embedderOptions) {
		if model = strings.TrimSpace(model); model != "" {
			o.model = model
		}
	}
}

// WithDimensions requests shortened embeddings. Zero keeps the model default.
func WithDimensions(dimensions int) Option {
	return func(o *embedderOptions) {
		o.dimensions = dimensions
	}
}

// WithBaseURL points the client at an OpenAI compatible endpoint.
func WithBaseURL(url string) Option {
	return func(o *embedderOptions) {
		o.baseURL = strings.TrimSpace(url)
	}
}

// WithMaxRetries sets the SDK retry budget for transient failures.
func WithMaxRetries(retries int) Option {
	return func(o *embedderOptions) {
		o.maxRetries = retries
	}
}

// Embedder implements embedding.Embedder with the OpenAI embeddings endpoint.
type Embedder struct {
	api        embeddingsAPI
	model      string
	dimensions int
	maxTokens  int
	logger     *zap.Logger

	encOnce sync.Once
	enc     *tiktoken.Tiktoken
}

var _ embedding.Embedder = (*Embedder)(nil)

// NewEmbedder creates an Embedder authenticated with apiKey.
func NewEmbedder(apiKey string, logger *zap.Logger, opts ...Option) (*Embedder, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("openai api key is required")
	}

	options := embedderOptions{
		model:      DefaultModel,
		maxRetries: 2,
		maxTokens:  MaxInputTokens,
	}
	for _, opt := range opts {
		opt(&options)
	}

	clientOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(options.maxRetries),
	}
	if options.baseURL != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(options.baseURL))
	}

	client := openai.NewClient(clientOpts...)

	return newEmbedder(&client.Embeddings, options, logger), nil
}

func newEmbedder(api embeddingsAPI, options embedderOptions, logger *zap.Logger) *Embedder {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Embedder{
		api:        api,
		model:      options.model,
		dimensions: options.dimensions,
		maxTokens:  options.maxTokens,
		logger:     logger,
	}
}

// Embed returns one vector per text in input order.
func (e *Embedder) Embed(ctx context.Context, texts []string) ([]embedding.Vector, error) {
	if len(texts) == 0 {
		return nil, errors.New("no texts provided")
	}

	out := make([]embedding.Vector, 0, len(texts))
	for start := 0; start < len(texts); start += MaxBatchSize {
		end := min(start+MaxBatchSize, len(texts))

		batch, err := e.embedBatch(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		out = append(out, batch...)
	}

	return out, nil
}

func (e *Embedder) embedBatch(ctx context.Context, texts []string) ([]embedding.Vector, error) {
	inputs := make([]string, len(texts))
	for i, text := range texts {
		inputs[i] = e.truncate(text)
	}

	params := openai.EmbeddingNewParams{
		Model: openai.EmbeddingModel(e.model),
		Input: openai.EmbeddingNewParamsInputUnion{
			OfArrayOfStrings: inputs,
		},
	}
	if e.dimensions > 0 {
		params.Dimensions = openai.Int(int64(e.dimensions))
	}

	resp, err := e.api.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("failed to generate embeddings: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("openai api returned %d embeddings for %d texts", len(resp.Data), len(texts))
	}

	data := resp.Data
	sort.SliceStable(data, func(i, j int) bool { return data[i].Index < data[j].Index })

	vectors := make([]embedding.Vector, len(data))
	for i, item := range data {
		vector := make(embedding.Vector, len(item.Embedding))
		for j, v := range item.Embedding {
			vector[j] = float32(v)
		}
		vectors[i] = vector
	}

	return vectors, nil
}

// truncate cuts text to the model input limit. Without a tokenizer the text is sent as is.
func (e *Embedder) truncate(text string) string {
	if e.maxTokens <= 0 {
		return text
	}

	enc := e.encoding()
	if enc == nil {
		return text
	}

	tokens := enc.Encode(text, nil, nil)
	if len(tokens) <= e.maxTokens {
		return text
	}

	e.logger.Warn("input exceeds the embedding token limit, truncating",
		zap.Int("tokens", len(tokens)),
		zap.Int("limit", e.maxTokens),
	)

	return enc.Decode(tokens[:e.maxTokens])
}

func (e *Embedder) encoding() *tiktoken.Tiktoken {
	e.encOnce.Do(func() {
		enc, err := tiktoken.EncodingForModel(e.model)
		if err != nil {
			enc, err = tiktoken.GetEncoding(fallbackEncoding)
		}
		if err != nil {
			e.logger.Warn("tokenizer unavailable, inputs will not be truncated", zap.Error(err))
			return
		}
		e.enc = enc
	})
	return e.enc
}

// Model identifies the provider, model and output size.
func (e *Embedder) Model() string {
	if e.dimensions > 0 {
		return fmt.Sprintf("openai/%s@%d", e.model, e.dimensions)
	}
	return "openai/" + e.model
}
