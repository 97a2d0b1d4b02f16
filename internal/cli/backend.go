package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/roach88/tabstore/internal/compiler"
	"github.com/roach88/tabstore/internal/ir"
	"github.com/roach88/tabstore/internal/persist"
	"github.com/roach88/tabstore/internal/store"
)

// errDatabaseNotFound is returned by openPersister when mustExist is set
// and the configured path does not exist.
var errDatabaseNotFound = errors.New("database not found")

// openPersister opens the configured backend and binds a new store to it.
// The configured schema, if any, is applied before anything is loaded.
func openPersister(opts *RootOptions, mustExist bool) (*persist.Persister, error) {
	cfg := opts.config()
	logger := opts.logger()

	if mustExist {
		if _, err := os.Stat(cfg.DB); os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", errDatabaseNotFound, cfg.DB)
		}
	}

	st := store.New(store.WithLogger(logger))
	if cfg.Schema != "" {
		schema, err := compiler.CompileFile(cfg.Schema)
		if err != nil {
			return nil, fmt.Errorf("compile schema: %w", err)
		}
		schema.Apply(st)
		logger.Debug("schema applied", "schema", cfg.Schema)
	}

	backend, err := persist.Open(persist.Kind(cfg.Backend), cfg.DB)
	if err != nil {
		return nil, err
	}
	logger.Debug("backend opened", "backend", backend.Name(), "db", cfg.DB)

	return persist.New(st, backend,
		persist.WithLogger(logger),
		persist.WithDebounce(cfg.Debounce),
	), nil
}

// openFailure maps an openPersister error to the command's exit error.
func openFailure(f *OutputFormatter, err error) error {
	if errors.Is(err, errDatabaseNotFound) {
		return f.Fail(ExitCommandError, ErrCodeNotFound, err.Error(), nil)
	}
	return f.Fail(ExitCommandError, ErrCodeBackend, "failed to open database", err)
}

// ContentSummary describes a store's content.
type ContentSummary struct {
	Tables []TableSummary `json:"tables"`
	Values []string       `json:"values"`
	Hash   string         `json:"hash"`
}

// TableSummary describes one table.
type TableSummary struct {
	ID    string   `json:"id"`
	Rows  int      `json:"rows"`
	Cells []string `json:"cells"`
}

// RowCount totals the rows across all tables.
func (s ContentSummary) RowCount() int {
	n := 0
	for _, t := range s.Tables {
		n += t.Rows
	}
	return n
}

func summarize(st *store.Store) (ContentSummary, error) {
	hash, err := ir.ContentHash(st.GetContent())
	if err != nil {
		return ContentSummary{}, err
	}
	summary := ContentSummary{
		Tables: []TableSummary{},
		Values: st.GetValueIDs(),
		Hash:   hash,
	}
	for _, tableID := range st.GetTableIDs() {
		summary.Tables = append(summary.Tables, TableSummary{
			ID:    tableID,
			Rows:  st.GetRowCount(tableID),
			Cells: st.GetTableCellIDs(tableID),
		})
	}
	if summary.Values == nil {
		summary.Values = []string{}
	}
	return summary, nil
}
