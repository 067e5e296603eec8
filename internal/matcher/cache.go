package matcher

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/spigell/placement-checker/internal/embedding"
	"go.uber.org/zap"
)

// Cache holds one reference embedding per configured role for the lifetime of the process.
//
// Build is the explicit initialization step. Lookups that happen before it completes build
// the cache synchronously; buildMu makes concurrent first lookups share a single build.
type Cache struct {
	profiles Profiles
	embedder embedding.Embedder
	logger   *zap.Logger

	buildMu sync.Mutex

	mu    sync.RWMutex
	state *cacheState
}

type cacheState struct {
	model   string
	vectors map[string]embedding.Vector
	cleaned map[string]string
}

func NewCache(profiles Profiles, embedder embedding.Embedder, logger *zap.Logger) *Cache {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Cache{
		profiles: profiles,
		embedder: embedder,
		logger:   logger,
	}
}

// Build embeds the requirements of every role and replaces the cached state. It is safe to
// call more than once. A failure leaves the previous state untouched.
func (c *Cache) Build(ctx context.Context) error {
	c.buildMu.Lock()
	defer c.buildMu.Unlock()

	return c.build(ctx)
}

func (c *Cache) build(ctx context.Context) error {
	if c.embedder == nil {
		return fmt.Errorf("%w: no embedder configured", ErrModelUnavailable)
	}

	names := c.profiles.Names()
	texts := make([]string, len(names))
	cleaned := make(map[string]string, len(names))
	for i, name := range names {
		profile, _ := c.profiles.Get(name)
		texts[i] = profile.Cleaned()
		cleaned[name] = texts[i]
	}

	started := time.Now()

	raw, err := c.embedder.Embed(ctx, texts)
	if err != nil {
		return fmt.Errorf("%w: embedding role requirements: %w", ErrModelUnavailable, err)
	}

	unit, err := embedding.NormalizeAll(raw, len(names))
	if err != nil {
		return fmt.Errorf("%w: role embeddings: %w", ErrModelUnavailable, err)
	}

	vectors := make(map[string]embedding.Vector, len(names))
	for i, name := range names {
		vectors[name] = unit[i]
	}

	state := &cacheState{
		model:   c.embedder.Model(),
		vectors: vectors,
		cleaned: cleaned,
	}

	c.mu.Lock()
	c.state = state
	c.mu.Unlock()

	c.logger.Info("role cache built",
		zap.Int("roles", len(names)),
		zap.Int("dimension", len(unit[0])),
		zap.Duration("took", time.Since(started)),
	)

	return nil
}

func (c *Cache) current() *cacheState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// ensure returns the built state, building it first when nothing was built yet.
func (c *Cache) ensure(ctx context.Context) (*cacheState, error) {
	if state := c.current(); state != nil {
		return state, nil
	}

	c.buildMu.Lock()
	defer c.buildMu.Unlock()

	if state := c.current(); state != nil {
		return state, nil
	}

	c.logger.Warn("role cache requested before initialization, building it now")

	if err := c.build(ctx); err != nil {
		return nil, err
	}

	return c.current(), nil
}

// Embedding returns the unit-length reference vector of the named role.
func (c *Cache) Embedding(ctx context.Context, name string) (embedding.Vector, error) {
	if _, ok := c.profiles.Get(name); !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownRole, name)
	}

	state, err := c.ensure(ctx)
	if err != nil {
		return nil, err
	}

	return state.vectors[name], nil
}

// CleanedText returns the normalized requirements text the role was embedded from.
// It reports false when the role is unknown or the cache is not built.
func (c *Cache) CleanedText(name string) (string, bool) {
	state := c.current()
	if state == nil {
		return "", false
	}
	text, ok := state.cleaned[name]
	return text, ok
}

// Built reports whether the cache holds embeddings.
func (c *Cache) Built() bool {
	return c.current() != nil
}

// Model returns the identifier of the model the cache was built with, or an empty string.
func (c *Cache) Model() string {
	if state := c.current(); state != nil {
		return state.model
	}
	return ""
}

// Profiles returns the configured role profiles.
func (c *Cache) Profiles() Profiles {
	return c.profiles
}
