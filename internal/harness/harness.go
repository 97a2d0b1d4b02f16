package harness

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/tabstore/internal/compiler"
	"github.com/roach88/tabstore/internal/ir"
	"github.com/roach88/tabstore/internal/store"
	"github.com/roach88/tabstore/internal/testutil"
)

// Harness is the test execution engine.
// It runs one scenario against a fresh store and records every listener
// firing with a deterministic sequence number.
type Harness struct {
	store    *store.Store
	result   *Result
	recorder *testutil.Recorder
	ids      map[string]string // scenario listener id -> store listener id
	logger   *slog.Logger
}

// Option configures Run.
type Option func(*runConfig)

type runConfig struct {
	logger *slog.Logger
}

// WithLogger sets the logger for step and listener activity.
// Default: logs are discarded.
func WithLogger(logger *slog.Logger) Option {
	return func(c *runConfig) {
		c.logger = logger
	}
}

// Run executes a test scenario and returns the result.
//
// Each scenario runs against a new store from a registry with a fixed id
// generator, so traces are identical across runs.
//
// Execution flow:
// 1. Create a fresh store
// 2. Compile and apply the CUE schema and inline schemas
// 3. Register listeners
// 4. Execute steps, checking per-step expectations
// 5. Evaluate assertions
//
// The returned error reports problems with the scenario itself; failed
// expectations and assertions are collected in Result.Errors.
func Run(scenario *Scenario, opts ...Option) (*Result, error) {
	cfg := runConfig{logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	for _, opt := range opts {
		opt(&cfg)
	}

	registry := store.NewRegistry(
		store.WithIDGenerator(testutil.NewFixedIDGenerator(scenario.Name)),
		store.WithRegistryLogger(cfg.logger),
	)
	st := registry.Create(store.WithLogger(cfg.logger))

	h := &Harness{
		store:    st,
		result:   NewResult(),
		recorder: testutil.NewRecorder(),
		ids:      make(map[string]string, len(scenario.Listeners)),
		logger:   cfg.logger.With("scenario", scenario.Name, "store", st.ID()),
	}

	if err := h.applySchemas(scenario); err != nil {
		return nil, err
	}

	for i, spec := range scenario.Listeners {
		id, err := h.register(spec)
		if err != nil {
			return nil, fmt.Errorf("listeners[%d]: %w", i, err)
		}
		h.ids[spec.ID] = id
		h.logger.Debug("listener registered", "listener", spec.ID, "category", spec.Category, "id", id)
	}

	for i, step := range scenario.Steps {
		if err := h.execute(st, step); err != nil {
			return nil, fmt.Errorf("steps[%d]: %w", i, err)
		}
		h.logger.Debug("step completed", "step", i, "op", step.Op, "trace", h.recorder.Seq())
	}

	h.result.Content = st.GetContent()
	h.result.JSON = st.GetJSON()
	h.result.ListenerStats = st.GetListenerStats()

	for _, errMsg := range EvaluateAssertions(h.result, scenario.Assertions, &AssertionContext{Store: st}) {
		h.result.AddError(errMsg)
	}

	return h.result, nil
}

func (h *Harness) applySchemas(scenario *Scenario) error {
	if scenario.Schema != "" {
		schema, err := compiler.CompileFile(scenario.Schema)
		if err != nil {
			return fmt.Errorf("compile schema: %w", err)
		}
		schema.Apply(h.store)
	}
	if len(scenario.TablesSchema) > 0 {
		tables := make(store.TablesSchema, len(scenario.TablesSchema))
		for tableID, cells := range scenario.TablesSchema {
			tables[tableID] = make(map[string]store.CellSchema, len(cells))
			for cellID, spec := range cells {
				tables[tableID][cellID] = spec.schema()
			}
		}
		h.store.SetTablesSchema(tables)
	}
	if len(scenario.ValuesSchema) > 0 {
		values := make(store.ValuesSchema, len(scenario.ValuesSchema))
		for valueID, spec := range scenario.ValuesSchema {
			values[valueID] = spec.schema()
		}
		h.store.SetValuesSchema(values)
	}
	return nil
}

func (c CellSpec) schema() store.CellSchema {
	return store.CellSchema{Type: ir.Type(c.Type), Default: c.Default}
}

// fired records a listener firing and performs the listener's write.
func (h *Harness) fired(s *store.Store, spec ListenerSpec, ids []string, detail string) {
	seq := h.recorder.Record(spec.ID, detail)
	h.result.AddTrace(TraceEvent{
		Seq:      seq,
		Listener: spec.ID,
		Category: spec.Category,
		IDs:      ids,
		Detail:   detail,
	})
	h.logger.Debug("listener fired", "listener", spec.ID, "seq", seq, "ids", ids)

	if spec.Write == nil {
		return
	}
	if err := h.execute(s, *spec.Write); err != nil {
		h.result.AddError(fmt.Sprintf("listener %s: write failed: %v", spec.ID, err))
	}
}

func (h *Harness) listenerID(arg any) (string, error) {
	name, ok := arg.(string)
	if !ok {
		return "", fmt.Errorf("listener id must be a string, got %T", arg)
	}
	id, ok := h.ids[name]
	if !ok {
		return "", fmt.Errorf("unknown listener %q", name)
	}
	return id, nil
}
