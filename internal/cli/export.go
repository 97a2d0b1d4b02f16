package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/tabstore/internal/store"
)

// ExportOptions holds flags for the export command.
type ExportOptions struct {
	*RootOptions
	Output string // output file path
}

// NewExportCommand creates the export command.
func NewExportCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ExportOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Print saved content as JSON",
		Long: `Load the content saved in the configured backend and print it as the
[tables, values] JSON document that import accepts.

Example:
  tabstore export --db pets.db
  tabstore export --backend bolt --db pets.bolt -o pets.json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(opts, cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output file path")

	return cmd
}

func runExport(opts *ExportOptions, cmd *cobra.Command) error {
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
	if !found {
		formatter.VerboseLog("No content saved in %s, exporting an empty store", opts.config().DB)
	}

	var text string
	p.Do(func(st *store.Store) { text = st.GetJSON() })

	if opts.Output != "" {
		if err := os.WriteFile(opts.Output, []byte(text+"\n"), 0644); err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeWriteFailed, "writing output file", err)
		}
		formatter.VerboseLog("Wrote content to %s", opts.Output)
		return nil
	}

	if formatter.Format == "json" {
		return formatter.Success(json.RawMessage(text))
	}
	fmt.Fprintln(formatter.Writer, text)
	return nil
}
