package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/tabstore/internal/ir"
	"github.com/roach88/tabstore/internal/store"
)

// InspectOptions holds flags for the inspect command.
type InspectOptions struct {
	*RootOptions
	Table      string // list this table's rows
	SortBy     string // cell to sort rows by
	Descending bool
	Offset     int
	Limit      int
}

// InspectResult describes saved content.
type InspectResult struct {
	Backend string         `json:"backend"`
	DB      string         `json:"db"`
	Saved   bool           `json:"saved"`
	Content ContentSummary `json:"content"`
	Rows    []RowEntry     `json:"rows,omitempty"`
}

// RowEntry is one listed row.
type RowEntry struct {
	ID  string          `json:"id"`
	Row json.RawMessage `json:"row"`
}

// NewInspectCommand creates the inspect command.
func NewInspectCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &InspectOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Summarize saved content",
		Long: `Load the content saved in the configured backend and summarize its
tables and values. With --table, list that table's rows, optionally
sorted by a cell.

Example:
  tabstore inspect --db pets.db
  tabstore inspect --table pets --sort-by price --desc --limit 10`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInspect(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Table, "table", "", "list the rows of this table")
	cmd.Flags().StringVar(&opts.SortBy, "sort-by", "", "cell to sort rows by (default: row id)")
	cmd.Flags().BoolVar(&opts.Descending, "desc", false, "sort in descending order")
	cmd.Flags().IntVar(&opts.Offset, "offset", 0, "number of rows to skip")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "maximum number of rows (0 for all)")

	return cmd
}

func runInspect(opts *InspectOptions, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	p, err := openPersister(opts.RootOptions, true)
	if err != nil {
		return openFailure(formatter, err)
	}
	defer p.Close()

	found, err := p.Load(commandContext(cmd))
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeBackend, "failed to load content", err)
	}

	result := InspectResult{
		Backend: p.Backend().Name(),
		DB:      opts.config().DB,
		Saved:   found,
	}
	var tableFound bool
	p.Do(func(st *store.Store) {
		result.Content, err = summarize(st)
		if opts.Table == "" {
			return
		}
		tableFound = st.HasTable(opts.Table)
		var sortBy any // nil sorts by row id
		if opts.SortBy != "" {
			sortBy = opts.SortBy
		}
		for _, rowID := range st.GetSortedRowIDs(opts.Table, sortBy, opts.Descending, opts.Offset, opts.Limit) {
			result.Rows = append(result.Rows, RowEntry{ID: rowID, Row: rowJSON(st, opts.Table, rowID)})
		}
	})
	if err != nil {
		return formatter.Fail(ExitFailure, ErrCodeGeneric, "failed to hash content", err)
	}
	if opts.Table != "" && !tableFound {
		return formatter.Fail(ExitFailure, ErrCodeNotFound, fmt.Sprintf("table not found: %s", opts.Table), nil)
	}

	if formatter.Format == "json" {
		return formatter.Success(result)
	}
	return outputInspectText(formatter, result, opts.Table)
}

func outputInspectText(formatter *OutputFormatter, result InspectResult, table string) error {
	w := formatter.Writer
	content := result.Content

	fmt.Fprintf(w, "Database: %s (%s)\n", result.DB, result.Backend)
	if !result.Saved {
		fmt.Fprintln(w, "No content saved.")
		return nil
	}
	fmt.Fprintf(w, "Hash:     %s\n\n", content.Hash)

	fmt.Fprintf(w, "Tables (%d):\n", len(content.Tables))
	for _, t := range content.Tables {
		fmt.Fprintf(w, "  %s: %d row(s), cells: %s\n", t.ID, t.Rows, strings.Join(t.Cells, ", "))
	}
	fmt.Fprintf(w, "Values (%d): %s\n", len(content.Values), strings.Join(content.Values, ", "))

	if table != "" {
		fmt.Fprintf(w, "\nRows of %s:\n", table)
		for _, r := range result.Rows {
			fmt.Fprintf(w, "  %s %s\n", r.ID, r.Row)
		}
	}
	return nil
}

// rowJSON renders a row with its cells in store order.
func rowJSON(st *store.Store, tableID, rowID string) json.RawMessage {
	buf := []byte{'{'}
	for i, cellID := range st.GetCellIDs(tableID, rowID) {
		if i > 0 {
			buf = append(buf, ',')
		}
		buf = ir.AppendJSONString(buf, cellID)
		buf = append(buf, ':')
		buf = ir.AppendScalarJSON(buf, st.GetCell(tableID, rowID, cellID))
	}
	return append(buf, '}')
}
