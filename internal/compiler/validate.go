package compiler

import (
	"fmt"
	"strings"

	"github.com/roach88/tabstore/internal/ir"
	"github.com/roach88/tabstore/internal/store"
)

// Validation error codes (E100-E199)
const (
	// General validation errors (E100)
	ErrUnsupportedSchemaType = "E100" // unsupported schema type for validation

	// Schema errors (E101-E109)
	ErrSchemaEmpty         = "E101" // neither tables nor values declared
	ErrTableNoCells        = "E102" // table declares no cells
	ErrEmptyID             = "E103" // blank table, cell or value id
	ErrInvalidFieldType    = "E104" // type is not string, number or boolean
	ErrDefaultTypeMismatch = "E105" // default does not have the declared type
	ErrDefaultInvalid      = "E106" // default is not a valid scalar
)

// ValidationError represents a schema validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Validate checks a schema against the rules the store applies when it is
// set. The store silently drops entries that break them; Validate reports
// every one instead (it does not fail fast).
func Validate(v any) []ValidationError {
	switch s := v.(type) {
	case *Schema:
		return validateSchema(s)
	case Schema:
		return validateSchema(&s)
	default:
		return []ValidationError{{
			Field:   "type",
			Message: fmt.Sprintf("unsupported schema type: %T", v),
			Code:    ErrUnsupportedSchemaType,
		}}
	}
}

func validateSchema(s *Schema) []ValidationError {
	var errs []ValidationError

	// E101
	if len(s.Tables) == 0 && len(s.Values) == 0 {
		errs = append(errs, ValidationError{
			Field:   "schema",
			Message: "schema declares no tables and no values",
			Code:    ErrSchemaEmpty,
		})
	}

	for _, tableID := range ir.SortedKeys(s.Tables) {
		cells := s.Tables[tableID]
		field := "tables." + tableID
		if strings.TrimSpace(tableID) == "" {
			errs = append(errs, ValidationError{
				Field:   field,
				Message: "table id must be non-empty",
				Code:    ErrEmptyID,
			})
		}
		// E102
		if len(cells) == 0 {
			errs = append(errs, ValidationError{
				Field:   field,
				Message: fmt.Sprintf("table %q declares no cells", tableID),
				Code:    ErrTableNoCells,
			})
		}
		errs = append(errs, validateCells(cells, field)...)
	}

	errs = append(errs, validateCells(s.Values, "values")...)
	return errs
}

func validateCells(cells map[string]store.CellSchema, field string) []ValidationError {
	var errs []ValidationError
	for _, cellID := range ir.SortedKeys(cells) {
		cell := cells[cellID]
		cellField := field + "." + cellID

		// E103
		if strings.TrimSpace(cellID) == "" {
			errs = append(errs, ValidationError{
				Field:   cellField,
				Message: "id must be non-empty",
				Code:    ErrEmptyID,
			})
		}

		// E104
		if _, ok := ir.ParseType(string(cell.Type)); !ok {
			errs = append(errs, ValidationError{
				Field:   cellField + ".type",
				Message: fmt.Sprintf("invalid type %q, must be \"string\", \"number\" or \"boolean\"", cell.Type),
				Code:    ErrInvalidFieldType,
			})
			continue
		}

		if cell.Default == nil {
			continue
		}
		def, ok := ir.ToScalar(cell.Default)
		// E106
		if !ok {
			errs = append(errs, ValidationError{
				Field:   cellField + ".default",
				Message: fmt.Sprintf("default %v (%T) is not a string, number or boolean", cell.Default, cell.Default),
				Code:    ErrDefaultInvalid,
			})
			continue
		}
		// E105
		if def.Type() != cell.Type {
			errs = append(errs, ValidationError{
				Field:   cellField + ".default",
				Message: fmt.Sprintf("default is a %s but the declared type is %s", def.Type(), cell.Type),
				Code:    ErrDefaultTypeMismatch,
			})
		}
	}
	return errs
}
