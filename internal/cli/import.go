package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/tabstore/internal/ir"
	"github.com/roach88/tabstore/internal/store"
)

// ImportOptions holds flags for the import command.
type ImportOptions struct {
	*RootOptions
	Merge bool // keep saved content not present in the file
}

// ImportResult reports what was saved.
type ImportResult struct {
	Backend string         `json:"backend"`
	DB      string         `json:"db"`
	Content ContentSummary `json:"content"`
}

// NewImportCommand creates the import command.
func NewImportCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ImportOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "import <content.json>",
		Short: "Load JSON content into the database",
		Long: `Load a [tables, values] JSON document into a store and save it to the
configured backend. Use "-" to read from stdin.

Cells and values the configured schema rejects are dropped or replaced
by their defaults, exactly as for any other store write.

Example:
  tabstore import pets.json --db pets.db
  cat pets.json | tabstore import - --backend bolt --db pets.bolt
  tabstore import extra.json --merge`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Merge, "merge", false, "merge into saved content instead of replacing it")

	return cmd
}

func runImport(opts *ImportOptions, path string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)
	ctx := commandContext(cmd)

	text, err := readInput(cmd, path)
	if err != nil {
		if os.IsNotExist(err) {
			return formatter.Fail(ExitCommandError, ErrCodeNotFound, fmt.Sprintf("content file not found: %s", path), nil)
		}
		return formatter.Fail(ExitCommandError, ErrCodeReadFailed, "failed to read content", err)
	}

	p, err := openPersister(opts.RootOptions, false)
	if err != nil {
		return openFailure(formatter, err)
	}
	defer p.Close()

	if opts.Merge {
		if _, err := p.Load(ctx); err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeBackend, "failed to load content", err)
		}
	}

	var setErr error
	p.Do(func(st *store.Store) {
		if opts.Merge {
			setErr = mergeJSON(st, text)
			return
		}
		setErr = st.SetJSON(text)
	})
	if setErr != nil {
		return formatter.Fail(ExitFailure, ErrCodeInvalidJSON, "content rejected", setErr)
	}

	if err := p.Save(ctx); err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeBackend, "failed to save content", err)
	}

	var summary ContentSummary
	p.Do(func(st *store.Store) { summary, err = summarize(st) })
	if err != nil {
		return formatter.Fail(ExitFailure, ErrCodeGeneric, "failed to hash content", err)
	}
	cfg := opts.config()
	result := ImportResult{Backend: p.Backend().Name(), DB: cfg.DB, Content: summary}

	if formatter.Format == "json" {
		return formatter.Success(result)
	}
	fmt.Fprintf(formatter.Writer, "✓ Imported %d table(s), %d row(s), %d value(s) into %s (%s)\n",
		len(summary.Tables), summary.RowCount(), len(summary.Values), result.DB, result.Backend)
	return nil
}

// mergeJSON writes each row and value of a [tables, values] document over
// st's existing content in one transaction, in document order.
func mergeJSON(st *store.Store, text string) error {
	parsed, err := ir.ParseJSON([]byte(text))
	if err != nil {
		return fmt.Errorf("merge json: %w", err)
	}
	pair, ok := parsed.([]any)
	if !ok || len(pair) != 2 {
		return errors.New("merge json: content must be a [tables, values] array")
	}
	tables, _ := pair[0].(*ir.Object)
	values, _ := pair[1].(*ir.Object)

	st.Transaction(func() {
		if tables != nil {
			for t := tables.Oldest(); t != nil; t = t.Next() {
				table, ok := t.Value.(*ir.Object)
				if !ok {
					continue
				}
				for r := table.Oldest(); r != nil; r = r.Next() {
					st.SetRow(t.Key, r.Key, r.Value)
				}
			}
		}
		if values != nil {
			st.SetPartialValues(values)
		}
	}, nil)
	return nil
}

// readInput reads path, or stdin when path is "-".
func readInput(cmd *cobra.Command, path string) (string, error) {
	if path == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		return string(data), err
	}
	data, err := os.ReadFile(path)
	return string(data), err
}

// commandContext returns the command's context, or Background when the
// command runs without one.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
