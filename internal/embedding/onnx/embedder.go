// Package onnx runs a sentence-transformers model exported to ONNX (for example
// all-MiniLM-L6-v2) in process. Token embeddings are mean-pooled over the attention mask.
package onnx

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spigell/placement-checker/internal/embedding"
	"github.com/sugarme/tokenizer"
	"github.com/sugarme/tokenizer/pretrained"
	ort "github.com/yalue/onnxruntime_go"
	"go.uber.org/zap"
)

const (
	defaultMaxSeqLen = 256

	inputIDs       = "input_ids"
	attentionMask  = "attention_mask"
	tokenTypeIDs   = "token_type_ids"
	hiddenStateOut = "last_hidden_state"
)

var envMu sync.Mutex

// Config locates the runtime library, the model and its tokenizer.
type Config struct {
	// LibraryPath is the onnxruntime shared library. Empty uses the platform default.
	LibraryPath   string
	ModelPath     string
	TokenizerPath string
	MaxSeqLen     int
	// ModelID overrides the identifier derived from the model file name.
	ModelID string
}

// Embedder implements embedding.Embedder with onnxruntime. Inference is serialized.
type Embedder struct {
	mu        sync.Mutex
	cfg       Config
	tk        *tokenizer.Tokenizer
	session   *ort.DynamicAdvancedSession
	inputs    []string
	maxSeqLen int
	logger    *zap.Logger
}

var _ embedding.Embedder = (*Embedder)(nil)

// NewEmbedder loads the tokenizer and creates an inference session.
func NewEmbedder(cfg Config, logger *zap.Logger) (*Embedder, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if strings.TrimSpace(cfg.ModelPath) == "" {
		return nil, errors.New("onnx model path is required")
	}
	if strings.TrimSpace(cfg.TokenizerPath) == "" {
		return nil, errors.New("onnx tokenizer path is required")
	}
	if cfg.ModelID == "" {
		cfg.ModelID = strings.TrimSuffix(filepath.Base(cfg.ModelPath), filepath.Ext(cfg.ModelPath))
	}
	maxSeqLen := cfg.MaxSeqLen
	if maxSeqLen <= 0 {
		maxSeqLen = defaultMaxSeqLen
	}

	tk, err := pretrained.FromFile(cfg.TokenizerPath)
	if err != nil {
		return nil, fmt.Errorf("load tokenizer %q: %w", cfg.TokenizerPath, err)
	}

	if err := initEnvironment(cfg.LibraryPath); err != nil {
		return nil, err
	}

	inputInfo, outputInfo, err := ort.GetInputOutputInfo(cfg.ModelPath)
	if err != nil {
		return nil, fmt.Errorf("inspect onnx model %q: %w", cfg.ModelPath, err)
	}

	inputs := []string{inputIDs, attentionMask}
	for _, info := range inputInfo {
		if info.Name == tokenTypeIDs {
			inputs = append(inputs, tokenTypeIDs)
		}
	}

	output := ""
	for _, info := range outputInfo {
		if info.Name == hiddenStateOut {
			output = info.Name
		}
	}
	if output == "" && len(outputInfo) > 0 {
		output = outputInfo[0].Name
	}
	if output == "" {
		return nil, fmt.Errorf("onnx model %q has no outputs", cfg.ModelPath)
	}

	session, err := ort.NewDynamicAdvancedSession(cfg.ModelPath, inputs, []string{output}, nil)
	if err != nil {
		return nil, fmt.Errorf("create onnx session: %w", err)
	}

	logger.Info("onnx model loaded",
		zap.String("model", cfg.ModelID),
		zap.Strings("inputs", inputs),
		zap.String("output", output),
		zap.Int("max_seq_len", maxSeqLen),
	)

	return &Embedder{
		cfg:       cfg,
		tk:        tk,
		session:   session,
		inputs:    inputs,
		maxSeqLen: maxSeqLen,
		logger:    logger,
	}, nil
}

func initEnvironment(libraryPath string) error {
	envMu.Lock()
	defer envMu.Unlock()

	if ort.IsInitialized() {
		return nil
	}
	if libraryPath = strings.TrimSpace(libraryPath); libraryPath != "" {
		ort.SetSharedLibraryPath(libraryPath)
	}
	if err := ort.InitializeEnvironment(); err != nil {
		return fmt.Errorf("initialize onnxruntime: %w", err)
	}
	return nil
}

// Embed encodes each text separately and returns the mean-pooled vectors.
func (e *Embedder) Embed(ctx context.Context, texts []string) ([]embedding.Vector, error) {
	if len(texts) == 0 {
		return nil, errors.New("no texts provided")
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.session == nil {
		return nil, errors.New("onnx embedder is closed")
	}

	out := make([]embedding.Vector, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		vec, err := e.encode(text)
		if err != nil {
			return nil, fmt.Errorf("encode text %d: %w", i, err)
		}
		out[i] = vec
	}

	return out, nil
}

func (e *Embedder) encode(text string) (embedding.Vector, error) {
	enc, err := e.tk.EncodeSingle(text, true)
	if err != nil {
		return nil, fmt.Errorf("tokenize: %w", err)
	}

	ids := truncate(enc.Ids, e.maxSeqLen)
	mask := truncate(enc.AttentionMask, e.maxSeqLen)
	types := truncate(enc.TypeIds, e.maxSeqLen)
	if len(mask) != len(ids) {
		mask = ones(len(ids))
	}
	if len(types) != len(ids) {
		types = make([]int, len(ids))
	}

	shape := ort.NewShape(1, int64(len(ids)))
	values := map[string][]int{
		inputIDs:      ids,
		attentionMask: mask,
		tokenTypeIDs:  types,
	}

	inputs := make([]ort.Value, 0, len(e.inputs))
	defer func() {
		for _, v := range inputs {
			v.Destroy()
		}
	}()
	for _, name := range e.inputs {
		tensor, err := ort.NewTensor(shape, toInt64(values[name]))
		if err != nil {
			return nil, fmt.Errorf("create %s tensor: %w", name, err)
		}
		inputs = append(inputs, tensor)
	}

	outputs := []ort.Value{nil}
	if err := e.session.Run(inputs, outputs); err != nil {
		return nil, fmt.Errorf("run onnx session: %w", err)
	}
	defer outputs[0].Destroy()

	hidden, ok := outputs[0].(*ort.Tensor[float32])
	if !ok {
		return nil, fmt.Errorf("unexpected onnx output type %T", outputs[0])
	}

	return pool(hidden.GetShape(), hidden.GetData(), mask)
}

// pool handles both token-level [1, seq, hidden] and pooled [1, hidden] outputs.
func pool(shape ort.Shape, data []float32, mask []int) (embedding.Vector, error) {
	switch len(shape) {
	case 2:
		out := make(embedding.Vector, len(data))
		copy(out, data)
		return out, nil
	case 3:
		seqLen, hidden := int(shape[1]), int(shape[2])
		if seqLen*hidden != len(data) || seqLen != len(mask) {
			return nil, fmt.Errorf("onnx output shape %v does not match %d tokens", shape, len(mask))
		}
		return meanPool(data, mask, hidden), nil
	default:
		return nil, fmt.Errorf("unsupported onnx output shape %v", shape)
	}
}

func meanPool(data []float32, mask []int, hidden int) embedding.Vector {
	out := make(embedding.Vector, hidden)
	var count float32
	for t, m := range mask {
		if m == 0 {
			continue
		}
		count++
		row := data[t*hidden : (t+1)*hidden]
		for j, v := range row {
			out[j] += v
		}
	}
	if count == 0 {
		return out
	}
	for j := range out {
		out[j] /= count
	}
	return out
}

// truncate keeps the first limit-1 tokens and the final special token.
func truncate(ids []int, limit int) []int {
	if len(ids) <= limit {
		return ids
	}
	out := make([]int, limit)
	copy(out, ids[:limit-1])
	out[limit-1] = ids[len(ids)-1]
	return out
}

func toInt64(in []int) []int64 {
	out := make([]int64, len(in))
	for i, v := range in {
		out[i] = int64(v)
	}
	return out
}

func ones(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = 1
	}
	return out
}

// Model returns the model identifier.
func (e *Embedder) Model() string {
	return "onnx/" + e.cfg.ModelID
}

// Close releases the inference session.
func (e *Embedder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.session == nil {
		return nil
	}
	err := e.session.Destroy()
	e.session = nil
	return err
}
