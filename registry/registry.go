// Package registry resolves pretrained models by name. Loaders are
// registered up front and run lazily; loaded values are kept alive in a TTL
// cache and concurrent loads of the same name are deduplicated.
package registry

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// ErrNotFound is returned for names that were never registered.
var ErrNotFound = errors.New("model not found")

// Loader builds the value registered under a name.
type Loader[T any] func(ctx context.Context) (T, error)

// Info describes a registered model.
type Info struct {
	Name        string
	Description string
}

type entry[T any] struct {
	info   Info
	loader Loader[T]
}

// Config configures a Registry.
type Config struct {
	KeepAlive       time.Duration // how long loaded values stay cached (0 = forever)
	MaxLoadedModels uint64        // max values in memory (0 = unlimited)
}

// Registry maps names to lazily loaded values.
type Registry[T any] struct {
	logger *zap.Logger

	mu      sync.RWMutex
	entries map[string]entry[T]

	cache     *ttlcache.Cache[string, T]
	sfGroup   singleflight.Group
	keepAlive time.Duration
}

// New creates an empty registry. Call Close to stop the cache janitor.
func New[T any](cfg Config, logger *zap.Logger) *Registry[T] {
	if logger == nil {
		logger = zap.NewNop()
	}
	keepAlive := cfg.KeepAlive
	if keepAlive == 0 {
		keepAlive = ttlcache.NoTTL
	}

	opts := []ttlcache.Option[string, T]{
		ttlcache.WithTTL[string, T](keepAlive),
	}
	if cfg.MaxLoadedModels > 0 {
		opts = append(opts, ttlcache.WithCapacity[string, T](cfg.MaxLoadedModels))
	}
	r := &Registry[T]{
		logger:    logger,
		entries:   make(map[string]entry[T]),
		cache:     ttlcache.New(opts...),
		keepAlive: keepAlive,
	}
	r.cache.OnEviction(func(_ context.Context, reason ttlcache.EvictionReason, item *ttlcache.Item[string, T]) {
		if reason == ttlcache.EvictionReasonDeleted {
			return
		}
		logger.Info("Evicting model from registry cache",
			zap.String("model", item.Key()),
			zap.Bool("expired", reason == ttlcache.EvictionReasonExpired))
	})
	go r.cache.Start()
	return r
}

// Register adds a loader under name, replacing any previous registration and
// dropping its cached value.
func (r *Registry[T]) Register(name, description string, loader Loader[T]) {
	r.mu.Lock()
	r.entries[name] = entry[T]{info: Info{Name: name, Description: description}, loader: loader}
	r.mu.Unlock()
	r.cache.Delete(name)
	r.logger.Debug("Registered model", zap.String("model", name))
}

// Get returns the value for name, loading it on first use.
func (r *Registry[T]) Get(ctx context.Context, name string) (T, error) {
	if item := r.cache.Get(name); item != nil {
		r.logger.Debug("Registry cache hit", zap.String("model", name))
		return item.Value(), nil
	}

	r.mu.RLock()
	e, ok := r.entries[name]
	r.mu.RUnlock()
	if !ok {
		var zero T
		return zero, fmt.Errorf("%w: %s", ErrNotFound, name)
	}

	v, err, shared := r.sfGroup.Do(name, func() (any, error) {
		if item := r.cache.Get(name); item != nil {
			return item.Value(), nil
		}
		r.logger.Info("Loading model on demand", zap.String("model", name))
		start := time.Now()
		val, err := e.loader(ctx)
		if err != nil {
			return nil, fmt.Errorf("loading model %s: %w", name, err)
		}
		r.cache.Set(name, val, r.keepAlive)
		r.logger.Info("Loaded model",
			zap.String("model", name),
			zap.Duration("took", time.Since(start)))
		return val, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	if shared {
		r.logger.Debug("Shared in-flight model load", zap.String("model", name))
	}
	return v.(T), nil
}

// List returns the registered models sorted by name.
func (r *Registry[T]) List() []Info {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Info, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e.info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// IsLoaded reports whether name is currently cached.
func (r *Registry[T]) IsLoaded(name string) bool {
	return r.cache.Has(name)
}

// Close stops the cache janitor and drops every loaded value.
func (r *Registry[T]) Close() {
	r.cache.Stop()
	r.cache.DeleteAll()
}
