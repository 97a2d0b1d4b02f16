package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tabstore/internal/ir"
)

func TestListenerIDsAndStats(t *testing.T) {
	s := New()

	id0 := s.AddTablesListener(func(*Store, GetCellChange) {}, false)
	id1 := s.AddCellListener(nil, nil, nil, func(*Store, string, string, string, ir.Scalar, ir.Scalar) {}, false)
	id2 := s.AddCellListener("t", nil, nil, func(*Store, string, string, string, ir.Scalar, ir.Scalar) {}, true)
	assert.Equal(t, []string{"0", "1", "2"}, []string{id0, id1, id2})

	stats := s.GetListenerStats()
	assert.Len(t, stats, 25)
	assert.Equal(t, 1, stats["tables"])
	assert.Equal(t, 2, stats["cell"])
	assert.Equal(t, 0, stats["value"])

	s.DelListener(id1)
	s.DelListener("missing")
	assert.Equal(t, 1, s.GetListenerStats()["cell"])

	assert.Equal(t, "3", s.AddValuesListener(func(*Store, GetValueChange) {}, false))
}

func TestHasListenersFireOnTransitions(t *testing.T) {
	s := New()
	var hasTables, hasValues []bool
	s.AddHasTablesListener(func(_ *Store, has bool) { hasTables = append(hasTables, has) }, false)
	s.AddHasValuesListener(func(_ *Store, has bool) { hasValues = append(hasValues, has) }, false)

	s.SetCell("t", "r", "a", 1)
	s.SetCell("t", "r", "b", 1)
	s.DelTables()
	s.SetValue("v", 1)
	s.SetValue("w", 1)
	s.DelValues()

	assert.Equal(t, []bool{true, false}, hasTables)
	assert.Equal(t, []bool{true, false}, hasValues)
}

func TestIDListenersReceiveDeltas(t *testing.T) {
	s := New()
	s.SetRow("t", "keep", map[string]any{"a": 1})

	var tableIDs, rowIDs, cellIDs, tableCellIDs, valueIDs []map[string]int
	s.AddTableIDsListener(func(_ *Store, get GetIDChanges) { tableIDs = append(tableIDs, get()) }, false)
	s.AddRowIDsListener("t", func(_ *Store, _ string, get GetIDChanges) { rowIDs = append(rowIDs, get()) }, false)
	s.AddCellIDsListener("t", nil, func(_ *Store, _, _ string, get GetIDChanges) { cellIDs = append(cellIDs, get()) }, false)
	s.AddTableCellIDsListener(nil, func(_ *Store, _ string, get GetIDChanges) { tableCellIDs = append(tableCellIDs, get()) }, false)
	s.AddValueIDsListener(func(_ *Store, get GetIDChanges) { valueIDs = append(valueIDs, get()) }, false)

	s.Transaction(func() {
		s.SetRow("t", "new", map[string]any{"b": 1})
		s.DelRow("t", "keep")
		s.SetValue("v", "x")
	}, nil)

	assert.Empty(t, tableIDs)
	assert.Equal(t, []map[string]int{{"new": 1, "keep": -1}}, rowIDs)
	assert.ElementsMatch(t, []map[string]int{{"b": 1}, {"a": -1}}, cellIDs)
	assert.Equal(t, []map[string]int{{"b": 1, "a": -1}}, tableCellIDs)
	assert.Equal(t, []map[string]int{{"v": 1}}, valueIDs)
}

func TestPresenceListeners(t *testing.T) {
	s := New()
	var events []string
	record := func(name string, has bool) {
		if has {
			events = append(events, "+"+name)
		} else {
			events = append(events, "-"+name)
		}
	}
	s.AddHasRowListener("t", nil, func(_ *Store, _, rowID string, has bool) { record("row:"+rowID, has) }, false)
	s.AddHasCellListener("t", "r", nil, func(_ *Store, _, _, cellID string, has bool) { record("cell:"+cellID, has) }, false)
	s.AddHasTableCellListener("t", nil, func(_ *Store, _, cellID string, has bool) { record("tableCell:"+cellID, has) }, false)
	s.AddHasValueListener("v", func(_ *Store, _ string, has bool) { record("value", has) }, false)

	s.SetCell("t", "r", "c", 1)
	s.DelCell("t", "r", "c", false)
	s.SetValue("v", 1)

	assert.Equal(t, []string{
		"+tableCell:c", "+row:r", "+cell:c",
		"-tableCell:c", "-row:r", "-cell:c",
		"+value",
	}, events)
}

func TestRowCountListener(t *testing.T) {
	s := New()
	var counts []int
	s.AddRowCountListener("t", func(_ *Store, _ string, count int) { counts = append(counts, count) }, false)

	s.AddRow("t", map[string]any{"c": 1})
	s.AddRow("t", map[string]any{"c": 1})
	s.SetCell("t", "0", "c", 2)
	s.DelTable("t")

	assert.Equal(t, []int{1, 2, 0}, counts)
}

func TestTablesListenerGetCellChange(t *testing.T) {
	s := New()
	s.SetCell("t", "r", "c", "old")

	var got Change
	var untouched Change
	s.AddTablesListener(func(_ *Store, get GetCellChange) {
		got = get("t", "r", "c")
		untouched = get("t", "r", "other")
	}, false)
	s.SetCell("t", "r", "c", "new")

	assert.Equal(t, Change{Old: ir.String("old"), New: ir.String("new")}, got)
	assert.True(t, got.Changed())
	assert.False(t, untouched.Changed())
}

func TestValuesListeners(t *testing.T) {
	s := New()
	type valueCall struct {
		id       string
		new, old ir.Scalar
	}
	var calls []valueCall
	s.AddValueListener(nil, func(_ *Store, id string, newValue, oldValue ir.Scalar) {
		calls = append(calls, valueCall{id, newValue, oldValue})
	}, false)
	var change Change
	s.AddValuesListener(func(_ *Store, get GetValueChange) { change = get("a") }, false)
	var invalid []any
	s.AddInvalidValueListener(nil, func(_ *Store, _ string, invalidValues []any) {
		invalid = append(invalid, invalidValues...)
	}, false)

	s.SetValues(map[string]any{"a": 1, "b": "x"})
	s.SetValue("a", 2)
	s.SetValue("c", nil)

	assert.Equal(t, []valueCall{
		{"a", ir.Number(1), nil},
		{"b", ir.String("x"), nil},
		{"a", ir.Number(2), ir.Number(1)},
	}, calls)
	assert.Equal(t, Change{Old: ir.Number(1), New: ir.Number(2)}, change)
	assert.Equal(t, []any{nil}, invalid)
}

func TestSortedRowIDsListener(t *testing.T) {
	s := New()
	s.SetTable("pets", map[string]any{
		"fido":  map[string]any{"price": 4, "name": "Fido"},
		"felix": map[string]any{"price": 5, "name": "Felix"},
	})

	var results [][]string
	s.AddSortedRowIDsListener("pets", "price", false, 0, 0, func(_ *Store, tableID, cellID string, descending bool, offset, limit int, ids []string) {
		assert.Equal(t, "pets", tableID)
		assert.Equal(t, "price", cellID)
		results = append(results, ids)
	}, false)

	s.SetCell("pets", "fido", "name", "Rex")
	assert.Empty(t, results)

	s.SetCell("pets", "fido", "price", 3)
	assert.Empty(t, results)

	s.SetCell("pets", "fido", "price", 6)
	s.SetRow("pets", "cujo", map[string]any{"price": 1})

	assert.Equal(t, [][]string{{"felix", "fido"}, {"cujo", "felix", "fido"}}, results)
}

func TestSortedRowIDsListenerByRowID(t *testing.T) {
	s := New()
	var results [][]string
	s.AddSortedRowIDsListener("t", nil, true, 0, 2, func(_ *Store, _, cellID string, _ bool, _, _ int, ids []string) {
		assert.Empty(t, cellID)
		results = append(results, ids)
	}, false)

	s.SetRow("t", "a", map[string]any{"c": 1})
	s.SetRow("t", "b", map[string]any{"c": 1})
	s.SetRow("t", "c", map[string]any{"c": 1})
	s.SetCell("t", "a", "c", 2)

	assert.Equal(t, [][]string{{"a"}, {"b", "a"}, {"c", "b"}}, results)
}

func TestCallListener(t *testing.T) {
	s := New()
	s.SetTables(map[string]any{
		"a": map[string]any{"r1": map[string]any{"x": 1}},
		"b": map[string]any{"r1": map[string]any{"y": 2}},
	})
	s.SetValue("v", true)

	calls := recordCells(s, nil, nil, nil)
	var hasValue []string
	valueID := s.AddHasValueListener(nil, func(_ *Store, id string, has bool) {
		if has {
			hasValue = append(hasValue, id)
		}
	}, false)
	var rowIDs []map[string]int
	rowIDsID := s.AddRowIDsListener("a", func(_ *Store, _ string, get GetIDChanges) {
		rowIDs = append(rowIDs, get())
	}, false)
	var sorted [][]string
	sortedID := s.AddSortedRowIDsListener("a", nil, false, 0, 0, func(_ *Store, _, _ string, _ bool, _, _ int, ids []string) {
		sorted = append(sorted, ids)
	}, false)

	s.CallListener("0")
	s.CallListener(valueID)
	s.CallListener(rowIDsID)
	s.CallListener(sortedID)
	s.CallListener("missing")

	require.Len(t, *calls, 2)
	assert.Equal(t, cellCall{"a", "r1", "x", ir.Number(1), nil}, (*calls)[0])
	assert.Equal(t, cellCall{"b", "r1", "y", ir.Number(2), nil}, (*calls)[1])
	assert.Equal(t, []string{"v"}, hasValue)
	assert.Equal(t, []map[string]int{{}}, rowIDs)
	assert.Equal(t, [][]string{{"r1"}}, sorted)
}

func TestCallListenerForTransactionListener(t *testing.T) {
	s := New()
	calls := 0
	id := s.AddDidFinishTransactionListener(func(*Store) { calls++ })

	s.CallListener(id)

	assert.Equal(t, 1, calls)
}
