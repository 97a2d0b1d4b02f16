package compiler

import (
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/tabstore/internal/ir"
	"github.com/roach88/tabstore/internal/store"
)

// Schema is a compiled schema file: the tables schema and the values
// schema, either of which may be empty.
type Schema struct {
	Tables store.TablesSchema
	Values store.ValuesSchema
}

// Apply sets both schemas on st. An empty half is left untouched.
func (s *Schema) Apply(st *store.Store) {
	if len(s.Tables) > 0 {
		st.SetTablesSchema(s.Tables)
	}
	if len(s.Values) > 0 {
		st.SetValuesSchema(s.Values)
	}
}

// CompileFile reads and compiles a CUE schema file.
func CompileFile(path string) (*Schema, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schema: %w", err)
	}
	return CompileString(string(src), path)
}

// CompileString compiles CUE source. filename is used in error positions.
func CompileString(src, filename string) (*Schema, error) {
	ctx := cuecontext.New()
	v := ctx.CompileString(src, cue.Filename(filename))
	return CompileSchema(v)
}

// CompileSchema parses a CUE value into a Schema.
// Uses CUE SDK's Go API directly (not CLI subprocess).
//
// The value has two optional top-level fields. Each cell or value is
// declared either by a CUE type with an optional default, or explicitly:
//
//	tables: pets: {
//		species: string
//		price:   number | *0
//		sold:    {type: "boolean", default: false}
//	}
//	values: open: bool | *true
func CompileSchema(v cue.Value) (*Schema, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	if err := v.Validate(); err != nil {
		return nil, formatCUEError(err)
	}

	schema := &Schema{
		Tables: store.TablesSchema{},
		Values: store.ValuesSchema{},
	}

	tablesVal := v.LookupPath(cue.ParsePath("tables"))
	valuesVal := v.LookupPath(cue.ParsePath("values"))
	if !tablesVal.Exists() && !valuesVal.Exists() {
		return nil, &CompileError{
			Field:   "tables",
			Message: "a schema needs tables or values",
			Pos:     v.Pos(),
		}
	}

	if tablesVal.Exists() {
		iter, err := tablesVal.Fields()
		if err != nil {
			return nil, formatCUEError(err)
		}
		for iter.Next() {
			tableID := iter.Label()
			cells, err := parseCells(iter.Value(), "tables."+tableID)
			if err != nil {
				return nil, err
			}
			schema.Tables[tableID] = cells
		}
	}

	if valuesVal.Exists() {
		values, err := parseCells(valuesVal, "values")
		if err != nil {
			return nil, err
		}
		schema.Values = values
	}

	return schema, nil
}

// parseCells reads a struct of cell declarations.
func parseCells(v cue.Value, field string) (map[string]store.CellSchema, error) {
	iter, err := v.Fields()
	if err != nil {
		return nil, &CompileError{
			Field:   field,
			Message: "must be a struct of cell declarations",
			Pos:     v.Pos(),
		}
	}
	cells := make(map[string]store.CellSchema)
	for iter.Next() {
		cellID := iter.Label()
		cell, err := parseCell(iter.Value(), field+"."+cellID)
		if err != nil {
			return nil, err
		}
		cells[cellID] = cell
	}
	return cells, nil
}

// parseCell reads one declaration: {type, default}, a CUE type with an
// optional default, or a concrete value.
func parseCell(v cue.Value, field string) (store.CellSchema, error) {
	if v.IncompleteKind() == cue.StructKind {
		return parseExplicitCell(v, field)
	}

	typ, err := extractType(v, field)
	if err != nil {
		return store.CellSchema{}, err
	}
	cell := store.CellSchema{Type: typ}
	// A concrete value without a disjunction is its own default.
	if def, _ := v.Default(); def.IsConcrete() {
		cell.Default, err = concreteScalar(def, field+".default")
		if err != nil {
			return store.CellSchema{}, err
		}
	}
	return cell, nil
}

func parseExplicitCell(v cue.Value, field string) (store.CellSchema, error) {
	typeVal := v.LookupPath(cue.ParsePath("type"))
	if !typeVal.Exists() {
		return store.CellSchema{}, &CompileError{
			Field:   field + ".type",
			Message: "type is required",
			Pos:     v.Pos(),
		}
	}
	name, err := typeVal.String()
	if err != nil {
		return store.CellSchema{}, formatCUEError(err)
	}
	typ, ok := ir.ParseType(name)
	if !ok {
		return store.CellSchema{}, &CompileError{
			Field:   field + ".type",
			Message: fmt.Sprintf("unknown type %q, must be \"string\", \"number\" or \"boolean\"", name),
			Pos:     typeVal.Pos(),
		}
	}

	cell := store.CellSchema{Type: typ}
	defVal := v.LookupPath(cue.ParsePath("default"))
	if defVal.Exists() {
		cell.Default, err = concreteScalar(defVal, field+".default")
		if err != nil {
			return store.CellSchema{}, err
		}
	}
	return cell, nil
}

// extractType converts a CUE kind to a scalar type. Integers and floats
// are both numbers.
func extractType(v cue.Value, field string) (ir.Type, error) {
	switch v.IncompleteKind() {
	case cue.StringKind:
		return ir.TypeString, nil
	case cue.IntKind, cue.FloatKind, cue.NumberKind:
		return ir.TypeNumber, nil
	case cue.BoolKind:
		return ir.TypeBoolean, nil
	default:
		return "", &CompileError{
			Field:   field,
			Message: fmt.Sprintf("unsupported type kind: %v", v.IncompleteKind()),
			Pos:     v.Pos(),
		}
	}
}

// concreteScalar decodes a concrete CUE value into a Go scalar.
func concreteScalar(v cue.Value, field string) (any, error) {
	switch v.Kind() {
	case cue.StringKind:
		s, err := v.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return s, nil
	case cue.IntKind, cue.FloatKind, cue.NumberKind:
		f, err := v.Float64()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return f, nil
	case cue.BoolKind:
		b, err := v.Bool()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return b, nil
	default:
		return nil, &CompileError{
			Field:   field,
			Message: fmt.Sprintf("default must be a string, number or boolean, got %v", v.Kind()),
			Pos:     v.Pos(),
		}
	}
}

// CompileError represents a compilation error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	// CUE errors may contain multiple errors
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	firstErr := errs[0]
	positions := errors.Positions(firstErr)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: firstErr.Error(),
			Pos:     positions[0],
		}
	}

	return err
}
