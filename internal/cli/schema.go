package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/tabstore/internal/compiler"
	"github.com/roach88/tabstore/internal/ir"
	"github.com/roach88/tabstore/internal/store"
)

// SchemaOptions holds flags for the schema command.
type SchemaOptions struct {
	*RootOptions
	Output string // output file path
}

// SchemaResult is the compiled schema as the store applies it.
type SchemaResult struct {
	Tables json.RawMessage `json:"tables"`
	Values json.RawMessage `json:"values"`
	Hash   string          `json:"hash"`
}

// NewSchemaCommand creates the schema command.
func NewSchemaCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SchemaOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "schema <file.cue>",
		Short: "Compile and check a CUE schema",
		Long: `Compile a CUE schema file into the tables and values schemas a store
applies, reporting every entry the store would drop.

Example:
  tabstore schema ./pets.cue
  tabstore schema ./pets.cue -o pets.schema.json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSchema(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output file path")

	return cmd
}

func runSchema(opts *SchemaOptions, path string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return formatter.Fail(ExitCommandError, ErrCodeNotFound, fmt.Sprintf("schema file not found: %s", path), nil)
	}

	formatter.VerboseLog("Compiling %s", path)
	schema, err := compiler.CompileFile(path)
	if err != nil {
		return outputCompileError(formatter, err)
	}

	if errs := compiler.Validate(schema); len(errs) > 0 {
		return outputValidationErrors(formatter, errs)
	}

	result, err := effectiveSchema(schema)
	if err != nil {
		return formatter.Fail(ExitFailure, ErrCodeGeneric, "failed to hash schema", err)
	}

	if opts.Output != "" {
		data, err := json.MarshalIndent(result, "", "  ")
		if err == nil {
			err = os.WriteFile(opts.Output, data, 0644)
		}
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeWriteFailed, "writing output file", err)
		}
	}

	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	w := formatter.Writer
	fmt.Fprintf(w, "✓ Compiled %d table(s), %d value(s)\n\n", len(schema.Tables), len(schema.Values))
	fmt.Fprintf(w, "Tables: %s\n", result.Tables)
	fmt.Fprintf(w, "Values: %s\n", result.Values)
	fmt.Fprintf(w, "Hash:   %s\n", result.Hash)
	if opts.Output != "" {
		fmt.Fprintf(w, "\nWrote schema to %s\n", opts.Output)
	}
	return nil
}

// effectiveSchema applies schema to a scratch store and reads it back, so
// the output shows exactly what a store keeps.
func effectiveSchema(schema *compiler.Schema) (*SchemaResult, error) {
	st := store.New()
	schema.Apply(st)

	tables := st.GetTablesSchemaJSON()
	values := st.GetValuesSchemaJSON()

	tablesDoc, err := ir.ParseJSON([]byte(tables))
	if err != nil {
		return nil, err
	}
	valuesDoc, err := ir.ParseJSON([]byte(values))
	if err != nil {
		return nil, err
	}
	hash, err := ir.SchemaHash([]any{tablesDoc, valuesDoc})
	if err != nil {
		return nil, err
	}

	return &SchemaResult{
		Tables: json.RawMessage(tables),
		Values: json.RawMessage(values),
		Hash:   hash,
	}, nil
}

// outputCompileError reports a CUE compile failure. CompileError messages
// carry the source position.
func outputCompileError(formatter *OutputFormatter, err error) error {
	_ = formatter.Error(ErrCodeSchemaCompile, err.Error(), nil)
	// Compilation errors are command-level errors (exit code 2)
	return WrapExitError(ExitCommandError, "schema compilation failed", err)
}

// outputValidationErrors reports every validation error at once.
func outputValidationErrors(formatter *OutputFormatter, errs []compiler.ValidationError) error {
	if formatter.Format == "json" {
		err := formatter.encode(CLIResponse{
			Status: "error",
			Error: &CLIError{
				Code:    ErrCodeSchemaInvalid,
				Message: fmt.Sprintf("schema has %d error(s)", len(errs)),
				Details: errs,
			},
		})
		if err != nil {
			return err
		}
	} else {
		fmt.Fprintln(formatter.Writer, "✗ Schema invalid")
		fmt.Fprintln(formatter.Writer)
		for _, e := range errs {
			fmt.Fprintf(formatter.Writer, "  %s\n", e.Error())
		}
	}
	return NewExitError(ExitFailure, fmt.Sprintf("schema has %d error(s)", len(errs)))
}
