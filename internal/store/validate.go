package store

import (
	"maps"
	"reflect"
	"slices"
	"strings"

	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/roach88/tabstore/internal/ir"
)

type entry struct {
	id    string
	value any
}

// entries lists the pairs of a mapping in the order they are applied, or
// reports false when v is not a mapping. Ordered maps keep insertion order;
// Go maps are applied in sorted id order.
func entries(v any) ([]entry, bool) {
	switch m := v.(type) {
	case nil:
		return nil, false
	case *ir.Object:
		if m == nil {
			return nil, false
		}
		out := make([]entry, 0, m.Len())
		for pair := m.Oldest(); pair != nil; pair = pair.Next() {
			out = append(out, entry{pair.Key, pair.Value})
		}
		return out, true
	case *orderedmap.OrderedMap[string, ir.Scalar]:
		if m == nil {
			return nil, false
		}
		out := make([]entry, 0, m.Len())
		for pair := m.Oldest(); pair != nil; pair = pair.Next() {
			out = append(out, entry{pair.Key, pair.Value})
		}
		return out, true
	case map[string]any:
		out := make([]entry, 0, len(m))
		for _, k := range slices.Sorted(maps.Keys(m)) {
			out = append(out, entry{k, m[k]})
		}
		return out, true
	case ir.Row:
		out := make([]entry, 0, len(m))
		for _, k := range slices.Sorted(maps.Keys(m)) {
			out = append(out, entry{k, m[k]})
		}
		return out, true
	case ir.Values:
		out := make([]entry, 0, len(m))
		for _, k := range slices.Sorted(maps.Keys(m)) {
			out = append(out, entry{k, m[k]})
		}
		return out, true
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Map {
		return nil, false
	}
	out := make([]entry, 0, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		out = append(out, entry{ir.ToID(iter.Key().Interface()), iter.Value().Interface()})
	}
	slices.SortStableFunc(out, func(a, b entry) int {
		return strings.Compare(a.id, b.id)
	})
	return out, true
}

// validRow is a validated row in application order.
type validRow = orderedmap.OrderedMap[string, ir.Scalar]

type validTable = orderedmap.OrderedMap[string, *validRow]

type validTables = orderedmap.OrderedMap[string, *validTable]

func (s *Store) cellInvalid(tableID, rowID, cellID string, invalidCell any) {
	s.journal.cellInvalid(tableID, rowID, cellID, invalidCell)
}

func (s *Store) valueInvalid(valueID string, invalidValue any) {
	s.journal.valueInvalid(valueID, invalidValue)
}

// validateTables rejects input that is not a mapping. A mapping is always
// accepted; its invalid tables are dropped, so one holding only invalid
// tables validates to no tables.
func (s *Store) validateTables(tables any) (*validTables, bool) {
	es, ok := entries(tables)
	if !ok {
		s.cellInvalid("", "", "", tables)
		return nil, false
	}
	out := newMap[*validTable]()
	for _, e := range es {
		if table, ok := s.validateTable(e.id, e.value); ok {
			out.Set(e.id, table)
		}
	}
	return out, true
}

func (s *Store) validateTable(tableID string, table any) (*validTable, bool) {
	if s.tablesSchema != nil {
		if _, ok := s.tablesSchema.tables.Get(tableID); !ok {
			s.cellInvalid(tableID, "", "", table)
			return nil, false
		}
	}
	es, ok := entries(table)
	if !ok || len(es) == 0 {
		s.cellInvalid(tableID, "", "", table)
		return nil, false
	}
	out := newMap[*validRow]()
	for _, e := range es {
		if row, ok := s.validateRow(tableID, e.id, e.value, false); ok {
			out.Set(e.id, row)
		}
	}
	return out, out.Len() > 0
}

// validateRow validates one row. Unless skipDefaults is set, declared
// defaults fill missing cells and missing cells without a default are
// reported as invalid.
func (s *Store) validateRow(tableID, rowID string, row any, skipDefaults bool) (*validRow, bool) {
	es, ok := entries(row)
	if !ok || len(es) == 0 {
		s.cellInvalid(tableID, rowID, "", row)
		return nil, false
	}
	out := newMap[ir.Scalar]()
	for _, e := range es {
		if cell, ok := s.validatedCell(tableID, rowID, e.id, e.value); ok {
			out.Set(e.id, cell)
		}
	}
	if !skipDefaults {
		s.addDefaultsToRow(out, tableID, rowID, es)
	}
	return out, out.Len() > 0
}

func (s *Store) addDefaultsToRow(row *validRow, tableID, rowID string, given []entry) {
	if s.tablesSchema == nil {
		return
	}
	cells, ok := s.tablesSchema.tables.Get(tableID)
	if !ok {
		return
	}
	for c := cells.Oldest(); c != nil; c = c.Next() {
		if hasEntry(given, c.Key) {
			continue
		}
		if c.Value.def != nil {
			row.Set(c.Key, c.Value.def)
		} else {
			s.cellInvalid(tableID, rowID, c.Key, nil)
		}
	}
}

func hasEntry(es []entry, id string) bool {
	for _, e := range es {
		if e.id == id {
			return true
		}
	}
	return false
}

// validatedCell returns the scalar to store for a candidate cell. A value of
// the wrong type is replaced by the schema default when there is one; it is
// reported as invalid either way.
func (s *Store) validatedCell(tableID, rowID, cellID string, cell any) (ir.Scalar, bool) {
	if s.tablesSchema == nil {
		if scalar, ok := ir.ToScalar(cell); ok {
			return scalar, true
		}
		s.cellInvalid(tableID, rowID, cellID, cell)
		return nil, false
	}
	cs, ok := s.tablesSchema.cell(tableID, cellID)
	if !ok {
		s.cellInvalid(tableID, rowID, cellID, cell)
		return nil, false
	}
	if scalar, ok := ir.ToScalar(cell); ok && scalar.Type() == cs.typ {
		return scalar, true
	}
	s.cellInvalid(tableID, rowID, cellID, cell)
	return cs.def, cs.def != nil
}

func (s *Store) validateValues(values any, skipDefaults bool) (*validRow, bool) {
	es, ok := entries(values)
	if !ok {
		s.valueInvalid("", values)
		return nil, false
	}
	out := newMap[ir.Scalar]()
	for _, e := range es {
		if value, ok := s.validatedValue(e.id, e.value); ok {
			out.Set(e.id, value)
		}
	}
	if !skipDefaults && s.valuesSchema != nil {
		for v := s.valuesSchema.values.Oldest(); v != nil; v = v.Next() {
			if hasEntry(es, v.Key) {
				continue
			}
			if v.Value.def != nil {
				out.Set(v.Key, v.Value.def)
			} else {
				s.valueInvalid(v.Key, nil)
			}
		}
	}
	return out, true
}

func (s *Store) validatedValue(valueID string, value any) (ir.Scalar, bool) {
	if s.valuesSchema == nil {
		if scalar, ok := ir.ToScalar(value); ok {
			return scalar, true
		}
		s.valueInvalid(valueID, value)
		return nil, false
	}
	cs, ok := s.valuesSchema.values.Get(valueID)
	if !ok {
		s.valueInvalid(valueID, value)
		return nil, false
	}
	if scalar, ok := ir.ToScalar(value); ok && scalar.Type() == cs.typ {
		return scalar, true
	}
	s.valueInvalid(valueID, value)
	return cs.def, cs.def != nil
}
