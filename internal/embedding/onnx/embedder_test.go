package onnx

import (
	"context"
	"math"
	"os"
	"testing"

	ort "github.com/yalue/onnxruntime_go"
)

func TestMeanPoolIgnoresPadding(t *testing.T) {
	data := []float32{
		1, 2,
		3, 4,
		100, 100,
	}

	got := meanPool(data, []int{1, 1, 0}, 2)
	if got[0] != 2 || got[1] != 3 {
		t.Fatalf("unexpected pooled vector: %v", got)
	}

	if empty := meanPool(data, []int{0, 0, 0}, 2); empty[0] != 0 || empty[1] != 0 {
		t.Fatalf("expected zero vector when mask is empty, got %v", empty)
	}
}

func TestPoolShapes(t *testing.T) {
	pooled, err := pool(ort.NewShape(1, 3), []float32{1, 2, 3}, []int{1})
	if err != nil || len(pooled) != 3 {
		t.Fatalf("expected pooled passthrough, got %v (%v)", pooled, err)
	}

	tokens, err := pool(ort.NewShape(1, 2, 2), []float32{1, 1, 3, 3}, []int{1, 1})
	if err != nil || tokens[0] != 2 {
		t.Fatalf("unexpected token pooling: %v (%v)", tokens, err)
	}

	if _, err := pool(ort.NewShape(1, 3, 2), []float32{1, 1, 3, 3}, []int{1, 1}); err == nil {
		t.Fatal("expected shape mismatch error")
	}

	if _, err := pool(ort.NewShape(4), []float32{1, 2, 3, 4}, nil); err == nil {
		t.Fatal("expected unsupported shape error")
	}
}

func TestTruncateKeepsFinalToken(t *testing.T) {
	tests := []struct {
		name   string
		ids    []int
		limit  int
		expect []int
	}{
		{name: "short", ids: []int{101, 7, 102}, limit: 5, expect: []int{101, 7, 102}},
		{name: "long", ids: []int{101, 1, 2, 3, 4, 102}, limit: 4, expect: []int{101, 1, 2, 102}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := truncate(tt.ids, tt.limit)
			if len(got) != len(tt.expect) {
				t.Fatalf("expected %v, got %v", tt.expect, got)
			}
			for i := range got {
				if got[i] != tt.expect[i] {
					t.Fatalf("expected %v, got %v", tt.expect, got)
				}
			}
		})
	}
}

func TestNewEmbedderValidatesPaths(t *testing.T) {
	if _, err := NewEmbedder(Config{TokenizerPath: "tokenizer.json"}, nil); err == nil {
		t.Fatal("expected error without model path")
	}
	if _, err := NewEmbedder(Config{ModelPath: "model.onnx"}, nil); err == nil {
		t.Fatal("expected error without tokenizer path")
	}
}

// TestEmbedderWithModel runs only when a real model is available, e.g.
// PLACEMENT_TEST_ONNX_MODEL=all-MiniLM-L6-v2/model.onnx PLACEMENT_TEST_ONNX_TOKENIZER=all-MiniLM-L6-v2/tokenizer.json.
func TestEmbedderWithModel(t *testing.T) {
	model := os.Getenv("PLACEMENT_TEST_ONNX_MODEL")
	tok := os.Getenv("PLACEMENT_TEST_ONNX_TOKENIZER")
	if model == "" || tok == "" {
		t.Skip("PLACEMENT_TEST_ONNX_MODEL and PLACEMENT_TEST_ONNX_TOKENIZER are not set")
	}

	e, err := NewEmbedder(Config{
		LibraryPath:   os.Getenv("PLACEMENT_TEST_ONNX_LIBRARY"),
		ModelPath:     model,
		TokenizerPath: tok,
	}, nil)
	if err != nil {
		t.Fatalf("creating embedder: %v", err)
	}
	defer e.Close()

	vectors, err := e.Embed(context.Background(), []string{"sql and python dashboards", "sql and python dashboards"})
	if err != nil {
		t.Fatalf("embed: %v", err)
	}

	var dot, norm float64
	for i := range vectors[0] {
		dot += float64(vectors[0][i]) * float64(vectors[1][i])
		norm += float64(vectors[0][i]) * float64(vectors[0][i])
	}
	if math.Abs(dot/norm-1) > 1e-5 {
		t.Fatalf("identical texts must embed identically, got cosine %v", dot/norm)
	}
}
