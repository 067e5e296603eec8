// Package config loads the immutable application configuration: role profiles, the
// similarity threshold, company weights, and embedding and server settings.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"math"
	"reflect"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"github.com/spigell/placement-checker/internal/textnorm"
)

// DefaultYAML holds the built-in configuration used when no config file is supplied.
//
//go:embed default.yaml
var DefaultYAML []byte

const defaultCompany = "Default"

// Providers lists the supported embedding providers.
var Providers = []string{"ollama", "gemini", "openai", "onnx"}

type Config struct {
	SimilarityThreshold float64          `mapstructure:"similarity-threshold" json:"similarity-threshold"`
	Roles               []Role           `mapstructure:"roles" json:"roles"`
	Companies           []Company        `mapstructure:"companies" json:"companies"`
	Embedding           *EmbeddingConfig `mapstructure:"embedding" json:"embedding"`
	Server              *ServerConfig    `mapstructure:"server" json:"server"`
}

type Role struct {
	Name         string  `mapstructure:"name" json:"name"`
	Requirements string  `mapstructure:"requirements" json:"requirements"`
	Weight       float64 `mapstructure:"weight" json:"weight"`
}

type Company struct {
	Name   string  `mapstructure:"name" json:"name"`
	Weight float64 `mapstructure:"weight" json:"weight"`
}

type EmbeddingConfig struct {
	Provider     string        `mapstructure:"provider" json:"provider"`
	Serialize    bool          `mapstructure:"serialize" json:"serialize"`
	MaxLogLength int           `mapstructure:"max-log-length" json:"max-log-length"`
	Ollama       *OllamaConfig `mapstructure:"ollama" json:"ollama"`
	Gemini       *GeminiConfig `mapstructure:"gemini" json:"gemini"`
	OpenAI       *OpenAIConfig `mapstructure:"openai" json:"openai"`
	ONNX         *ONNXConfig   `mapstructure:"onnx" json:"onnx"`
}

type OllamaConfig struct {
	URL     string        `mapstructure:"url" json:"url"`
	Model   string        `mapstructure:"model" json:"model"`
	Timeout time.Duration `mapstructure:"timeout" json:"timeout"`
}

type GeminiConfig struct {
	Model      string `mapstructure:"model" json:"model"`
	APIKey     string `mapstructure:"api-key" json:"-"`
	APIKeyFile string `mapstructure:"api-key-file" json:"api-key-file"`
	APIKeyEnv  string `mapstructure:"api-key-env" json:"api-key-env"`
	TaskType   string `mapstructure:"task-type" json:"task-type"`
	Dimensions int    `mapstructure:"dimensions" json:"dimensions"`
	MaxRetries int    `mapstructure:"max-retries" json:"max-retries"`
}

type OpenAIConfig struct {
	Model      string `mapstructure:"model" json:"model"`
	APIKey     string `mapstructure:"api-key" json:"-"`
	APIKeyFile string `mapstructure:"api-key-file" json:"api-key-file"`
	APIKeyEnv  string `mapstructure:"api-key-env" json:"api-key-env"`
	BaseURL    string `mapstructure:"base-url" json:"base-url"`
	Dimensions int    `mapstructure:"dimensions" json:"dimensions"`
	MaxRetries int    `mapstructure:"max-retries" json:"max-retries"`
}

type ONNXConfig struct {
	LibraryPath   string `mapstructure:"library-path" json:"library-path"`
	ModelPath     string `mapstructure:"model-path" json:"model-path"`
	TokenizerPath string `mapstructure:"tokenizer-path" json:"tokenizer-path"`
	MaxSeqLen     int    `mapstructure:"max-seq-len" json:"max-seq-len"`
}

type ServerConfig struct {
	Listen         string        `mapstructure:"listen" json:"listen"`
	RequestTimeout time.Duration `mapstructure:"request-timeout" json:"request-timeout"`
	Title          string        `mapstructure:"title" json:"title"`
	Footer         string        `mapstructure:"footer" json:"footer"`
}

// Load decodes the settings held by v and validates them. Keys that do not belong to
// Config (command line flags bound to v, for instance) are ignored.
func Load(v *viper.Viper) (*Config, error) {
	return Decode(v.AllSettings())
}

// Decode converts raw settings into a validated Config.
func Decode(settings map[string]any) (*Config, error) {
	var cfg Config

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &cfg,
		TagName:          "mapstructure",
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			trimStringsHook,
		),
	})
	if err != nil {
		return nil, fmt.Errorf("creating config decoder: %w", err)
	}

	if err := decoder.Decode(settings); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// trimStringsHook trims surrounding whitespace from every string except multi-line values,
// which are role requirements and are normalized later anyway.
func trimStringsHook(from, to reflect.Type, data any) (any, error) {
	if from.Kind() != reflect.String || to.Kind() != reflect.String {
		return data, nil
	}

	s := reflect.ValueOf(data).String()
	if strings.Contains(s, "\n") {
		return data, nil
	}

	return strings.TrimSpace(s), nil
}

func (c *Config) applyDefaults() {
	if c.Embedding == nil {
		c.Embedding = &EmbeddingConfig{}
	}
	c.Embedding.Provider = strings.ToLower(strings.TrimSpace(c.Embedding.Provider))
	if c.Embedding.Provider == "" {
		c.Embedding.Provider = "ollama"
	}
	if c.Embedding.Ollama == nil {
		c.Embedding.Ollama = &OllamaConfig{}
	}
	if c.Embedding.Gemini == nil {
		c.Embedding.Gemini = &GeminiConfig{}
	}
	if c.Embedding.OpenAI == nil {
		c.Embedding.OpenAI = &OpenAIConfig{}
	}
	if c.Embedding.ONNX == nil {
		c.Embedding.ONNX = &ONNXConfig{}
	}

	if c.Server == nil {
		c.Server = &ServerConfig{}
	}
	if c.Server.Listen == "" {
		c.Server.Listen = ":8000"
	}
	if c.Server.RequestTimeout == 0 {
		c.Server.RequestTimeout = 30 * time.Second
	}
}

// Validate reports every problem found in the configuration at once.
func (c *Config) Validate() error {
	var errs []error

	if math.IsNaN(c.SimilarityThreshold) || c.SimilarityThreshold < 0 || c.SimilarityThreshold > 1 {
		errs = append(errs, fmt.Errorf("similarity-threshold must be within [0, 1], got %v", c.SimilarityThreshold))
	}

	if len(c.Roles) == 0 {
		errs = append(errs, errors.New("at least one role is required under roles"))
	}

	seen := make(map[string]struct{}, len(c.Roles))
	for i, role := range c.Roles {
		name := strings.TrimSpace(role.Name)
		switch {
		case name == "":
			errs = append(errs, fmt.Errorf("roles[%d]: name is required", i))
			continue
		case textnorm.Normalize(role.Requirements) == "":
			errs = append(errs, fmt.Errorf("role %q: requirements must contain words", name))
		case math.IsNaN(role.Weight) || math.IsInf(role.Weight, 0):
			errs = append(errs, fmt.Errorf("role %q: weight must be a finite number", name))
		}
		if _, ok := seen[name]; ok {
			errs = append(errs, fmt.Errorf("role %q is defined more than once", name))
		}
		seen[name] = struct{}{}
	}

	companies := make(map[string]struct{}, len(c.Companies))
	for i, company := range c.Companies {
		key := strings.ToLower(strings.TrimSpace(company.Name))
		if key == "" {
			errs = append(errs, fmt.Errorf("companies[%d]: name is required", i))
			continue
		}
		if _, ok := companies[key]; ok {
			errs = append(errs, fmt.Errorf("company %q is defined more than once", company.Name))
		}
		companies[key] = struct{}{}
		if math.IsNaN(company.Weight) || math.IsInf(company.Weight, 0) || company.Weight < 0 {
			errs = append(errs, fmt.Errorf("company %q: weight must be a non-negative number", company.Name))
		}
	}

	if c.Embedding != nil && !isProvider(c.Embedding.Provider) {
		errs = append(errs, fmt.Errorf("embedding.provider %q is not supported (use one of %s)",
			c.Embedding.Provider, strings.Join(Providers, ", ")))
	}

	if c.Server != nil && c.Server.RequestTimeout < 0 {
		errs = append(errs, errors.New("server.request-timeout must be positive"))
	}

	return errors.Join(errs...)
}

func isProvider(name string) bool {
	for _, p := range Providers {
		if p == name {
			return true
		}
	}
	return false
}

// CompanyWeight returns the configured weight for company, matched case-insensitively.
// Unknown companies get the "Default" entry, or 1 when there is none.
func (c *Config) CompanyWeight(company string) float64 {
	key := strings.ToLower(strings.TrimSpace(company))

	fallback := 1.0
	for _, entry := range c.Companies {
		name := strings.ToLower(strings.TrimSpace(entry.Name))
		if name == key && key != "" {
			return entry.Weight
		}
		if name == strings.ToLower(defaultCompany) {
			fallback = entry.Weight
		}
	}

	return fallback
}
