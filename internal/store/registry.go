package store

import (
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/google/uuid"
)

// IDGenerator names stores created by a Registry without an explicit id.
// Implemented by UUIDv7Generator (production) and SequenceGenerator (tests).
type IDGenerator interface {
	Generate() string
}

// UUIDv7Generator generates time-sortable UUIDv7 store ids.
//
// Thread-safety: UUIDv7Generator is stateless and safe for concurrent use.
type UUIDv7Generator struct{}

// Generate returns a new hyphenated UUIDv7.
// Panics if UUID generation fails.
func (UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

// SequenceGenerator returns predetermined ids in order.
//
// Thread-safety: SequenceGenerator is safe for concurrent use.
type SequenceGenerator struct {
	mu  sync.Mutex
	ids []string
	idx int
}

// NewSequenceGenerator creates a generator that returns ids in order.
//
//	gen := NewSequenceGenerator("s1", "s2")
//	gen.Generate() // "s1"
//	gen.Generate() // "s2"
//	gen.Generate() // panic: all ids exhausted
func NewSequenceGenerator(ids ...string) *SequenceGenerator {
	return &SequenceGenerator{ids: ids}
}

// Generate returns the next id. Panics once every id has been used.
func (g *SequenceGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.idx >= len(g.ids) {
		panic("SequenceGenerator: all ids exhausted")
	}
	id := g.ids[g.idx]
	g.idx++
	return id
}

// Registry holds named stores for a process: the CLI and persisters look
// stores up by id instead of passing them around.
//
// Each Store stays single-threaded; the Registry itself is safe for
// concurrent use.
type Registry struct {
	mu     sync.Mutex
	stores map[string]*Store
	gen    IDGenerator
	logger *slog.Logger
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithIDGenerator sets the generator for Create. Default: UUIDv7Generator.
func WithIDGenerator(gen IDGenerator) RegistryOption {
	return func(r *Registry) {
		r.gen = gen
	}
}

// WithRegistryLogger sets the logger handed to created stores.
func WithRegistryLogger(logger *slog.Logger) RegistryOption {
	return func(r *Registry) {
		r.logger = logger
	}
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		stores: make(map[string]*Store),
		gen:    UUIDv7Generator{},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Create makes a store with a generated id and registers it.
func (r *Registry) Create(opts ...Option) *Store {
	r.mu.Lock()
	defer r.mu.Unlock()
	for {
		id := r.gen.Generate()
		if _, taken := r.stores[id]; !taken {
			return r.register(id, opts)
		}
	}
}

// GetOrCreate returns the store registered under id, creating it first if
// needed. opts only apply on creation.
func (r *Registry) GetOrCreate(id string, opts ...Option) *Store {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.stores[id]; ok {
		return s
	}
	return r.register(id, opts)
}

func (r *Registry) register(id string, opts []Option) *Store {
	all := append([]Option{WithLogger(r.logger)}, opts...)
	all = append(all, WithID(id))
	s := New(all...)
	r.stores[id] = s
	r.logger.Debug("store registered", "store", id)
	return s
}

// Get returns the store registered under id.
func (r *Registry) Get(id string) (*Store, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.stores[id]
	return s, ok
}

// MustGet returns the store registered under id and panics if there is none.
func (r *Registry) MustGet(id string) *Store {
	s, ok := r.Get(id)
	if !ok {
		panic(fmt.Sprintf("store %q not registered", id))
	}
	return s
}

// Unregister forgets a store. It reports whether the id was registered.
func (r *Registry) Unregister(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.stores[id]; !ok {
		return false
	}
	delete(r.stores, id)
	r.logger.Debug("store unregistered", "store", id)
	return true
}

// IDs returns the registered store ids, sorted.
func (r *Registry) IDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0, len(r.stores))
	for id := range r.stores {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}
