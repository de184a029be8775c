package providers

import (
	"net/http"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Constructor builds an adapter for an already-validated config.
type Constructor func(cfg Config, client *http.Client) (Adapter, error)

type registryEntry struct {
	adapter Adapter
	err     error
}

// Registry resolves configs to shared adapters. Each identity is constructed
// at most once; a failed construction is remembered until Reset or until the
// config (and therefore its identity) changes.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]registryEntry
	group   singleflight.Group

	client       *http.Client
	constructors map[Vendor]Constructor
	logger       *zap.Logger
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithHTTPClient makes every HTTP-based adapter share client.
func WithHTTPClient(c *http.Client) RegistryOption {
	return func(r *Registry) { r.client = c }
}

// WithConstructor overrides how adapters for v are built.
func WithConstructor(v Vendor, fn Constructor) RegistryOption {
	return func(r *Registry) { r.constructors[v] = fn }
}

// WithRegistryLogger sets the logger.
func WithRegistryLogger(l *zap.Logger) RegistryOption {
	return func(r *Registry) { r.logger = l }
}

// NewRegistry returns an empty registry.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		entries:      make(map[string]registryEntry),
		constructors: make(map[Vendor]Constructor),
		logger:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Get returns the adapter for cfg, constructing it on first use.
func (r *Registry) Get(cfg Config) (Adapter, error) {
	cfg = cfg.Normalize()
	key := cfg.Identity()

	if e, ok := r.lookup(key); ok {
		return e.adapter, e.err
	}

	v, _, _ := r.group.Do(key, func() (any, error) {
		if e, ok := r.lookup(key); ok {
			return e, nil
		}
		e := r.construct(cfg)
		r.mu.Lock()
		r.entries[key] = e
		r.mu.Unlock()
		return e, nil
	})
	e := v.(registryEntry)
	return e.adapter, e.err
}

func (r *Registry) lookup(key string) (registryEntry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[key]
	return e, ok
}

func (r *Registry) construct(cfg Config) registryEntry {
	log := r.logger.With(zap.String("provider", string(cfg.Vendor)), zap.String("model", cfg.Model))
	if err := ValidateCredential(cfg); err != nil {
		log.Warn("provider credential rejected", zap.Error(err))
		return registryEntry{err: err}
	}
	var (
		a   Adapter
		err error
	)
	if fn, ok := r.constructors[cfg.Vendor]; ok {
		a, err = fn(cfg, r.client)
	} else {
		a, err = New(cfg, r.client)
	}
	if err != nil {
		log.Warn("provider construction failed", zap.Error(err))
		return registryEntry{err: err}
	}
	log.Debug("provider constructed")
	return registryEntry{adapter: a}
}

// Len returns the number of cached identities, failures included.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Reset forgets every cached adapter and failure.
func (r *Registry) Reset() {
	r.mu.Lock()
	r.entries = make(map[string]registryEntry)
	r.mu.Unlock()
}
