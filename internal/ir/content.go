package ir

import (
	"slices"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Row maps CellId to Cell.
type Row map[string]Scalar

// Table maps RowId to Row.
type Table map[string]Row

// Tables maps TableId to Table.
type Tables map[string]Table

// Values maps ValueId to Value.
type Values map[string]Scalar

// Content is the whole of a store: its tables and its values. Its JSON form
// is the two-element array [tables, values].
type Content struct {
	Tables Tables
	Values Values
}

// Object is an insertion-ordered JSON object. ParseJSON produces it for every
// object it decodes so that document order survives into the store.
type Object = orderedmap.OrderedMap[string, any]

// NewObject returns an empty Object.
func NewObject() *Object {
	return orderedmap.New[string, any]()
}

// ObjectOf builds an Object from alternating key, value arguments.
// It panics if a key is not a string.
func ObjectOf(kv ...any) *Object {
	obj := NewObject()
	for i := 0; i+1 < len(kv); i += 2 {
		obj.Set(kv[i].(string), kv[i+1])
	}
	return obj
}

// Clone returns a deep copy of t.
func (t Tables) Clone() Tables {
	out := make(Tables, len(t))
	for tableID, table := range t {
		out[tableID] = table.Clone()
	}
	return out
}

// Clone returns a deep copy of t.
func (t Table) Clone() Table {
	out := make(Table, len(t))
	for rowID, row := range t {
		out[rowID] = row.Clone()
	}
	return out
}

// Clone returns a copy of r.
func (r Row) Clone() Row {
	out := make(Row, len(r))
	for cellID, cell := range r {
		out[cellID] = cell
	}
	return out
}

// Clone returns a copy of v.
func (v Values) Clone() Values {
	out := make(Values, len(v))
	for valueID, value := range v {
		out[valueID] = value
	}
	return out
}

// SortedKeys returns the keys of any string-keyed map in UTF-16 code unit
// order, the order canonical JSON uses.
func SortedKeys[M ~map[string]V, V any](m M) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, compareKeysRFC8785)
	return keys
}
