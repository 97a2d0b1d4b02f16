package store

import (
	"fmt"

	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/roach88/tabstore/internal/ir"
)

// CellSchema declares the type of one cell or value and an optional
// default. Default is nil when the schema declares none.
type CellSchema struct {
	Type    ir.Type
	Default any
}

// TablesSchema maps TableId to CellId to CellSchema.
type TablesSchema map[string]map[string]CellSchema

// ValuesSchema maps ValueId to CellSchema.
type ValuesSchema map[string]CellSchema

type validSchema struct {
	typ ir.Type
	def ir.Scalar
}

type tablesSchema struct {
	tables *orderedmap.OrderedMap[string, *orderedmap.OrderedMap[string, validSchema]]
}

func (ts *tablesSchema) cell(tableID, cellID string) (validSchema, bool) {
	cells, ok := ts.tables.Get(tableID)
	if !ok {
		return validSchema{}, false
	}
	return cells.Get(cellID)
}

type valuesSchema struct {
	values *orderedmap.OrderedMap[string, validSchema]
}

// validateCellSchema drops the entry entirely when its type is unknown or
// its default does not have that type.
func validateCellSchema(raw any) (validSchema, bool) {
	var typeName, def any
	switch cs := raw.(type) {
	case CellSchema:
		typeName, def = string(cs.Type), cs.Default
	case *CellSchema:
		if cs == nil {
			return validSchema{}, false
		}
		typeName, def = string(cs.Type), cs.Default
	default:
		es, ok := entries(raw)
		if !ok {
			return validSchema{}, false
		}
		for _, e := range es {
			switch e.id {
			case "type":
				typeName = e.value
			case "default":
				def = e.value
			default:
				return validSchema{}, false
			}
		}
	}

	name, ok := typeName.(string)
	if !ok {
		return validSchema{}, false
	}
	typ, ok := ir.ParseType(name)
	if !ok {
		return validSchema{}, false
	}
	out := validSchema{typ: typ}
	if def != nil {
		scalar, ok := ir.ToScalar(def)
		if !ok || scalar.Type() != typ {
			return validSchema{}, false
		}
		out.def = scalar
	}
	return out, true
}

func validateTablesSchema(raw any) *tablesSchema {
	es, ok := entries(raw)
	if !ok {
		return nil
	}
	out := &tablesSchema{tables: newMap[*orderedmap.OrderedMap[string, validSchema]]()}
	for _, table := range es {
		cells, ok := entries(table.value)
		if !ok {
			continue
		}
		valid := newMap[validSchema]()
		for _, cell := range cells {
			if cs, ok := validateCellSchema(cell.value); ok {
				valid.Set(cell.id, cs)
			}
		}
		if valid.Len() > 0 {
			out.tables.Set(table.id, valid)
		}
	}
	if out.tables.Len() == 0 {
		return nil
	}
	return out
}

func validateValuesSchema(raw any) *valuesSchema {
	es, ok := entries(raw)
	if !ok {
		return nil
	}
	out := &valuesSchema{values: newMap[validSchema]()}
	for _, value := range es {
		if cs, ok := validateCellSchema(value.value); ok {
			out.values.Set(value.id, cs)
		}
	}
	if out.values.Len() == 0 {
		return nil
	}
	return out
}

// SetTablesSchema constrains future cell writes. Malformed entries are
// dropped; a schema with no valid entry removes the tables schema. Data
// already in the store is left as it is.
func (s *Store) SetTablesSchema(schema TablesSchema) {
	s.tablesSchema = validateTablesSchema(schema)
}

// SetValuesSchema constrains future value writes, like SetTablesSchema.
func (s *Store) SetValuesSchema(schema ValuesSchema) {
	s.valuesSchema = validateValuesSchema(schema)
}

// SetTablesSchemaJSON parses and applies a tables schema. Malformed JSON
// text returns an error and leaves the schema unchanged.
func (s *Store) SetTablesSchemaJSON(text string) error {
	parsed, err := ir.ParseJSON([]byte(text))
	if err != nil {
		return fmt.Errorf("set tables schema json: %w", err)
	}
	s.tablesSchema = validateTablesSchema(parsed)
	return nil
}

// SetValuesSchemaJSON parses and applies a values schema.
func (s *Store) SetValuesSchemaJSON(text string) error {
	parsed, err := ir.ParseJSON([]byte(text))
	if err != nil {
		return fmt.Errorf("set values schema json: %w", err)
	}
	s.valuesSchema = validateValuesSchema(parsed)
	return nil
}

// DelTablesSchema removes the tables schema.
func (s *Store) DelTablesSchema() {
	s.tablesSchema = nil
}

// DelValuesSchema removes the values schema.
func (s *Store) DelValuesSchema() {
	s.valuesSchema = nil
}

// HasTablesSchema reports whether a tables schema is in effect.
func (s *Store) HasTablesSchema() bool {
	return s.tablesSchema != nil
}

// HasValuesSchema reports whether a values schema is in effect.
func (s *Store) HasValuesSchema() bool {
	return s.valuesSchema != nil
}

// GetTablesSchema returns a copy of the effective tables schema, or nil.
func (s *Store) GetTablesSchema() TablesSchema {
	if s.tablesSchema == nil {
		return nil
	}
	out := make(TablesSchema)
	for t := s.tablesSchema.tables.Oldest(); t != nil; t = t.Next() {
		cells := make(map[string]CellSchema)
		for c := t.Value.Oldest(); c != nil; c = c.Next() {
			cells[c.Key] = c.Value.public()
		}
		out[t.Key] = cells
	}
	return out
}

// GetValuesSchema returns a copy of the effective values schema, or nil.
func (s *Store) GetValuesSchema() ValuesSchema {
	if s.valuesSchema == nil {
		return nil
	}
	out := make(ValuesSchema)
	for v := s.valuesSchema.values.Oldest(); v != nil; v = v.Next() {
		out[v.Key] = v.Value.public()
	}
	return out
}

// GetTablesSchemaJSON renders the effective tables schema, "{}" when none.
func (s *Store) GetTablesSchemaJSON() string {
	buf := []byte{'{'}
	if s.tablesSchema != nil {
		for t := s.tablesSchema.tables.Oldest(); t != nil; t = t.Next() {
			if t != s.tablesSchema.tables.Oldest() {
				buf = append(buf, ',')
			}
			buf = ir.AppendJSONString(buf, t.Key)
			buf = append(buf, ':')
			buf = appendSchemaMap(buf, t.Value)
		}
	}
	return string(append(buf, '}'))
}

// GetValuesSchemaJSON renders the effective values schema, "{}" when none.
func (s *Store) GetValuesSchemaJSON() string {
	if s.valuesSchema == nil {
		return "{}"
	}
	return string(appendSchemaMap(nil, s.valuesSchema.values))
}

func appendSchemaMap(buf []byte, m *orderedmap.OrderedMap[string, validSchema]) []byte {
	buf = append(buf, '{')
	for c := m.Oldest(); c != nil; c = c.Next() {
		if c != m.Oldest() {
			buf = append(buf, ',')
		}
		buf = ir.AppendJSONString(buf, c.Key)
		buf = append(buf, `:{"type":`...)
		buf = ir.AppendJSONString(buf, string(c.Value.typ))
		if c.Value.def != nil {
			buf = append(buf, `,"default":`...)
			buf = ir.AppendScalarJSON(buf, c.Value.def)
		}
		buf = append(buf, '}')
	}
	return append(buf, '}')
}

func (v validSchema) public() CellSchema {
	return CellSchema{Type: v.typ, Default: ir.Native(v.def)}
}
