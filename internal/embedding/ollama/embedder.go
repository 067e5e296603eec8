// Package ollama embeds text with a local Ollama server.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/spigell/placement-checker/internal/embedding"
	"go.uber.org/zap"
)

const (
	DefaultURL   = "http://localhost:11434"
	DefaultModel = "all-minilm"

	defaultTimeout = 60 * time.Second
)

// Embedder implements embedding.Embedder using the Ollama /api/embed endpoint.
type Embedder struct {
	baseURL string
	model   string
	client  *http.Client
	logger  *zap.Logger
}

var _ embedding.Embedder = (*Embedder)(nil)

// NewEmbedder creates an Ollama embedder. Empty values fall back to defaults.
func NewEmbedder(baseURL, model string, timeout time.Duration, logger *zap.Logger) *Embedder {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = DefaultURL
	}
	if model = strings.TrimSpace(model); model == "" {
		model = DefaultModel
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Embedder{
		baseURL: baseURL,
		model:   model,
		client: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

type embedRequest struct {
	Model    string   `json:"model"`
	Input    []string `json:"input"`
	Truncate bool     `json:"truncate"`
}

type embedResponse struct {
	Model      string      `json:"model"`
	Embeddings [][]float32 `json:"embeddings"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Embed sends all texts in one request and returns the vectors in input order.
func (e *Embedder) Embed(ctx context.Context, texts []string) ([]embedding.Vector, error) {
	if len(texts) == 0 {
		return nil, errors.New("no texts provided")
	}

	body, err := json.Marshal(embedRequest{Model: e.model, Input: texts, Truncate: true})
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/api/embed", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	started := time.Now()
	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling ollama: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, statusError(resp)
	}

	var decoded embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	if len(decoded.Embeddings) != len(texts) {
		return nil, fmt.Errorf("ollama returned %d embeddings for %d texts", len(decoded.Embeddings), len(texts))
	}

	vectors := make([]embedding.Vector, len(decoded.Embeddings))
	for i, v := range decoded.Embeddings {
		vectors[i] = embedding.Vector(v)
	}

	e.logger.Debug("ollama embed",
		zap.Int("texts", len(texts)),
		zap.Int("dimension", len(vectors[0])),
		zap.Duration("took", time.Since(started)),
	)

	return vectors, nil
}

func statusError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	var decoded errorResponse
	if err := json.Unmarshal(raw, &decoded); err == nil && decoded.Error != "" {
		return fmt.Errorf("ollama returned status %d: %s", resp.StatusCode, decoded.Error)
	}

	return fmt.Errorf("ollama returned status %d", resp.StatusCode)
}

// Model identifies the provider and model.
func (e *Embedder) Model() string {
	return "ollama/" + e.model
}
