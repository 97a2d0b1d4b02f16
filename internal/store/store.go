package store

import (
	"log/slog"

	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/roach88/tabstore/internal/ir"
	"github.com/roach88/tabstore/internal/listener"
)

type rowMap = orderedmap.OrderedMap[string, ir.Scalar]

type tableMap struct {
	rows *orderedmap.OrderedMap[string, *rowMap]

	// cellIDs counts, per cell id, the rows of this table holding it.
	cellIDs *orderedmap.OrderedMap[string, int]
}

func newTableMap() *tableMap {
	return &tableMap{
		rows:    orderedmap.New[string, *rowMap](),
		cellIDs: orderedmap.New[string, int](),
	}
}

type txState int

const (
	stateIdle txState = iota
	// collecting writes
	stateOpen
	// mutator listeners and WillFinish listeners; writes join the journal
	stateMutating
	// plain listeners and DidFinish listeners; writes are deferred
	stateNotifying
)

// Store is an in-memory reactive tabular store. The zero value is not
// usable; create stores with New.
//
// A Store is not safe for concurrent use.
type Store struct {
	id     string
	logger *slog.Logger

	tables *orderedmap.OrderedMap[string, *tableMap]
	values *orderedmap.OrderedMap[string, ir.Scalar]

	tablesSchema *tablesSchema
	valuesSchema *valuesSchema

	listeners *listener.Registry
	guard     *firingGuard

	journal   *journal
	state     txState
	depth     int
	hadTables bool
	hadValues bool

	// writes requested while listeners are notified
	deferred []func()
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger used for transaction diagnostics.
// Default: slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithID names the store. Registries set it to the registered id.
func WithID(id string) Option {
	return func(s *Store) {
		s.id = id
	}
}

// New creates an empty store.
func New(opts ...Option) *Store {
	s := &Store{
		logger:    slog.Default(),
		tables:    orderedmap.New[string, *tableMap](),
		values:    orderedmap.New[string, ir.Scalar](),
		listeners: listener.NewRegistry(),
		guard:     newFiringGuard(),
		journal:   newJournal(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ID returns the store id, or "" for an anonymous store.
func (s *Store) ID() string {
	return s.id
}

func keys[V any](m *orderedmap.OrderedMap[string, V]) []string {
	if m == nil {
		return []string{}
	}
	out := make([]string, 0, m.Len())
	for pair := m.Oldest(); pair != nil; pair = pair.Next() {
		out = append(out, pair.Key)
	}
	return out
}

// each calls fn for every entry of m in order, including entries added
// while it runs. Entries deleted before they are reached are skipped.
func each[V any](m *orderedmap.OrderedMap[string, V], fn func(key string, value V)) {
	if m == nil {
		return
	}
	seen := make(map[string]bool, m.Len())
	for {
		var pending []string
		for pair := m.Oldest(); pair != nil; pair = pair.Next() {
			if !seen[pair.Key] {
				pending = append(pending, pair.Key)
			}
		}
		if len(pending) == 0 {
			return
		}
		for _, k := range pending {
			seen[k] = true
			if v, ok := m.Get(k); ok {
				fn(k, v)
			}
		}
	}
}

func ensure[V any](m *orderedmap.OrderedMap[string, V], key string, create func() V) V {
	if v, ok := m.Get(key); ok {
		return v
	}
	v := create()
	m.Set(key, v)
	return v
}

func newMap[V any]() *orderedmap.OrderedMap[string, V] {
	return orderedmap.New[string, V]()
}
