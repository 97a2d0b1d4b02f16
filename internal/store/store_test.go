package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tabstore/internal/ir"
)

type cellCall struct {
	tableID, rowID, cellID string
	newCell, oldCell       ir.Scalar
}

func recordCells(s *Store, tableID, rowID, cellID any) *[]cellCall {
	calls := &[]cellCall{}
	s.AddCellListener(tableID, rowID, cellID, func(_ *Store, t, r, c string, newCell, oldCell ir.Scalar) {
		*calls = append(*calls, cellCall{t, r, c, newCell, oldCell})
	}, false)
	return calls
}

func tables(kv ...any) map[string]any {
	out := make(map[string]any)
	for i := 0; i+1 < len(kv); i += 2 {
		out[kv[i].(string)] = kv[i+1]
	}
	return out
}

func TestSetCellFiresWithOldAndNew(t *testing.T) {
	s := New()
	calls := recordCells(s, "t1", "r1", "c1")

	s.SetTables(tables("t1", tables("r1", tables("c1", 1))))
	s.SetCell("t1", "r1", "c1", 2)

	require.Len(t, *calls, 2)
	assert.Equal(t, cellCall{"t1", "r1", "c1", ir.Number(1), nil}, (*calls)[0])
	assert.Equal(t, cellCall{"t1", "r1", "c1", ir.Number(2), ir.Number(1)}, (*calls)[1])
	assert.Equal(t, ir.Number(2), s.GetCell("t1", "r1", "c1"))
}

func TestDeletingLastCellDeletesTable(t *testing.T) {
	s := New()
	type hasCall struct {
		tableID string
		has     bool
	}
	var calls []hasCall
	s.AddHasTableListener(nil, func(_ *Store, tableID string, has bool) {
		calls = append(calls, hasCall{tableID, has})
	}, false)

	s.SetTables(tables("t1", tables("r1", tables("c1", 1))))
	s.DelCell("t1", "r1", "c1", false)

	assert.False(t, s.HasTable("t1"))
	assert.Empty(t, s.GetTables())
	assert.Equal(t, []hasCall{{"t1", true}, {"t1", false}}, calls)
}

func TestInvalidCellIsReportedNotStored(t *testing.T) {
	s := New()
	var invalid [][]any
	s.AddInvalidCellListener("t1", "r1", "c1", func(_ *Store, _, _, _ string, invalidCells []any) {
		invalid = append(invalid, invalidCells)
	}, false)
	cells := recordCells(s, nil, nil, nil)

	s.SetCell("t1", "r1", "c1", []any{})

	assert.Empty(t, s.GetTables())
	assert.Empty(t, *cells)
	require.Len(t, invalid, 1)
	assert.Equal(t, []any{[]any{}}, invalid[0])
}

func TestAddRowReusesLowestFreeID(t *testing.T) {
	s := New()

	id, ok := s.AddRow("t1", tables("c1", 1))
	require.True(t, ok)
	assert.Equal(t, "0", id)

	id, ok = s.AddRow("t1", tables("c1", 1))
	require.True(t, ok)
	assert.Equal(t, "1", id)

	s.DelRow("t1", "0")
	id, ok = s.AddRow("t1", tables("c1", 1))
	require.True(t, ok)
	assert.Equal(t, "0", id)
	assert.Equal(t, []string{"1", "0"}, s.GetRowIDs("t1"))
}

func TestAddRowRejectsInvalidRow(t *testing.T) {
	s := New()

	id, ok := s.AddRow("t1", tables("c1", []int{1}))

	assert.False(t, ok)
	assert.Equal(t, "", id)
	assert.False(t, s.HasTable("t1"))
}

func TestSameValueWriteFiresOnce(t *testing.T) {
	s := New()
	calls := recordCells(s, "t1", "r1", "c1")

	s.SetCell("t1", "r1", "c1", "a")
	s.SetCell("t1", "r1", "c1", "a")

	assert.Len(t, *calls, 1)

	var values int
	s.AddValueListener("v1", func(*Store, string, ir.Scalar, ir.Scalar) { values++ }, false)
	s.SetValue("v1", true)
	s.SetValue("v1", true)
	assert.Equal(t, 1, values)
}

func TestCascade(t *testing.T) {
	s := New()
	s.SetRow("t1", "r1", tables("a", 1, "b", 2))
	s.SetRow("t1", "r2", tables("a", 3))

	s.DelCell("t1", "r1", "a", false)
	assert.True(t, s.HasRow("t1", "r1"))

	s.DelCell("t1", "r1", "b", false)
	assert.False(t, s.HasRow("t1", "r1"))
	assert.True(t, s.HasTable("t1"))

	s.DelRow("t1", "r2")
	assert.False(t, s.HasTable("t1"))
	assert.False(t, s.HasTables())

	s.SetCell("t1", "r1", "a", 5)
	assert.True(t, s.HasTable("t1"))
	assert.True(t, s.HasRow("t1", "r1"))
	assert.Equal(t, ir.Row{"a": ir.Number(5)}, s.GetRow("t1", "r1"))
}

func TestIDCoercion(t *testing.T) {
	s := New()

	s.SetCell(1, "r", "c", "x")
	assert.Equal(t, ir.String("x"), s.GetCell("1", "r", "c"))

	s.SetCell("1", "r", "c", "y")
	assert.Equal(t, ir.String("y"), s.GetCell(1, "r", "c"))
	assert.Equal(t, []string{"1"}, s.GetTableIDs())

	s.SetValue(2.5, 1)
	assert.True(t, s.HasValue("2.5"))
}

func TestRoundTripFiresNothing(t *testing.T) {
	s := New()
	s.SetTables(tables(
		"pets", tables("fido", tables("species", "dog", "legs", 4)),
		"people", tables("ann", tables("age", 30)),
	))
	s.SetValues(tables("open", true))

	fired := 0
	s.AddTablesListener(func(*Store, GetCellChange) { fired++ }, false)
	s.AddValuesListener(func(*Store, GetValueChange) { fired++ }, false)
	s.AddTableIDsListener(func(*Store, GetIDChanges) { fired++ }, false)
	s.AddHasValuesListener(func(*Store, bool) { fired++ }, false)

	before := s.GetContent()
	s.SetContent(before)

	assert.Equal(t, before, s.GetContent())
	assert.Zero(t, fired)
}

func TestSetTablesAcceptsSnapshotTypes(t *testing.T) {
	s := New()
	s.SetTables(ir.Tables{"t": ir.Table{"r": ir.Row{"c": ir.Bool(true)}}})
	assert.Equal(t, ir.Bool(true), s.GetCell("t", "r", "c"))

	obj := ir.ObjectOf("z", 1, "a", 2)
	s.SetRow("t", "r", obj)
	assert.Equal(t, []string{"z", "a"}, s.GetCellIDs("t", "r"))
}

func TestSetTablesKeepsValidSiblings(t *testing.T) {
	s := New()
	var invalid []string
	s.AddInvalidCellListener(nil, nil, nil, func(_ *Store, t, r, c string, _ []any) {
		invalid = append(invalid, t+"/"+r+"/"+c)
	}, false)

	s.SetTables(tables(
		"t1", tables("r1", tables("ok", 1, "bad", map[string]any{})),
		"t2", "not a table",
	))

	assert.Equal(t, ir.Tables{"t1": ir.Table{"r1": ir.Row{"ok": ir.Number(1)}}}, s.GetTables())
	assert.ElementsMatch(t, []string{"t1/r1/bad", "t2//"}, invalid)
}

func TestSetTablesAppliesValidRemainder(t *testing.T) {
	s := New()
	s.SetCell("t", "r", "c", 1)

	s.SetTables("not a mapping")
	assert.True(t, s.HasTables())

	var invalid []any
	s.AddInvalidCellListener("t", "r", "c", func(_ *Store, _, _, _ string, cells []any) {
		invalid = append(invalid, cells...)
	}, false)
	s.SetTables(tables("t", tables("r", tables("c", []any{}))))
	assert.False(t, s.HasTables())
	assert.Equal(t, []any{[]any{}}, invalid)

	s.SetCell("t", "r", "c", 1)
	s.SetTables(tables("t", "nope"))
	assert.False(t, s.HasTables())

	s.SetCell("t", "r", "c", 1)
	s.SetTables(map[string]any{})
	assert.False(t, s.HasTables())
}

func TestSetValuesAppliesValidRemainder(t *testing.T) {
	s := New()
	s.SetValue("v", 1)

	s.SetValues([]any{"not", "a", "mapping"})
	assert.Equal(t, ir.Values{"v": ir.Number(1)}, s.GetValues())

	s.SetValues(tables("v", []any{}))
	assert.False(t, s.HasValues())

	s.SetValue("v", 1)
	s.SetPartialValues(tables("w", []any{}))
	assert.Equal(t, ir.Values{"v": ir.Number(1)}, s.GetValues())
}

func TestSetPartialRowAndValues(t *testing.T) {
	s := New()
	s.SetRow("t", "r", tables("a", 1, "b", 2))
	s.SetPartialRow("t", "r", tables("b", 3, "c", 4))
	assert.Equal(t, ir.Row{"a": ir.Number(1), "b": ir.Number(3), "c": ir.Number(4)}, s.GetRow("t", "r"))

	s.SetValues(tables("x", 1, "y", 2))
	s.SetPartialValues(tables("y", "two"))
	assert.Equal(t, ir.Values{"x": ir.Number(1), "y": ir.String("two")}, s.GetValues())

	s.SetValues(tables("z", false))
	assert.Equal(t, []string{"z"}, s.GetValueIDs())

	s.DelValue("z")
	assert.False(t, s.HasValues())
}

func TestCellMapper(t *testing.T) {
	s := New()
	inc := CellMapper(func(old ir.Scalar) any {
		n, _ := old.(ir.Number)
		return n + 1
	})

	s.SetCell("t", "r", "count", inc)
	s.SetCell("t", "r", "count", inc)
	assert.Equal(t, ir.Number(2), s.GetCell("t", "r", "count"))

	s.SetValue("v", func(old ir.Scalar) any { return "set" })
	assert.Equal(t, ir.String("set"), s.GetValue("v"))
}

func TestReadsOfMissingData(t *testing.T) {
	s := New()

	assert.Empty(t, s.GetTableIDs())
	assert.Empty(t, s.GetRowIDs("t"))
	assert.Empty(t, s.GetCellIDs("t", "r"))
	assert.Nil(t, s.GetCell("t", "r", "c"))
	assert.Nil(t, s.GetValue("v"))
	assert.Zero(t, s.GetRowCount("t"))
	assert.Empty(t, s.GetSortedRowIDs("t", "c", false, 0, 0))
	assert.False(t, s.HasTableCell("t", "c"))
}

func TestTableCellIDs(t *testing.T) {
	s := New()
	s.SetRow("t", "r1", tables("a", 1, "b", 1))
	s.SetRow("t", "r2", tables("b", 2, "c", 2))

	assert.Equal(t, []string{"a", "b", "c"}, s.GetTableCellIDs("t"))

	s.DelRow("t", "r1")
	assert.Equal(t, []string{"b", "c"}, s.GetTableCellIDs("t"))
	assert.False(t, s.HasTableCell("t", "a"))
}

func TestGetSortedRowIDs(t *testing.T) {
	s := New()
	s.SetTable("pets", tables(
		"fido", tables("price", 4),
		"felix", tables("price", 5),
		"cujo", tables("price", 3),
		"rex", tables("name", "x"),
	))

	tests := []struct {
		name       string
		cellID     any
		descending bool
		offset     int
		limit      int
		want       []string
	}{
		{"by row id", nil, false, 0, 0, []string{"cujo", "felix", "fido", "rex"}},
		{"by cell", "price", false, 0, 0, []string{"rex", "cujo", "fido", "felix"}},
		{"descending", "price", true, 0, 0, []string{"felix", "fido", "cujo", "rex"}},
		{"offset and limit", "price", true, 1, 2, []string{"fido", "cujo"}},
		{"offset past end", "price", false, 9, 0, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, s.GetSortedRowIDs("pets", tt.cellID, tt.descending, tt.offset, tt.limit))
		})
	}
}

func TestForEach(t *testing.T) {
	s := New()
	s.SetTables(tables("a", tables("r", tables("c", 1)), "b", tables("r", tables("c", 2))))
	s.SetValues(tables("v", "x"))

	var visited []string
	s.ForEachTable(func(tableID string) {
		s.ForEachRow(tableID, func(rowID string) {
			s.ForEachCell(tableID, rowID, func(cellID string, cell ir.Scalar) {
				visited = append(visited, tableID+"/"+rowID+"/"+cellID)
			})
		})
	})
	s.ForEachValue(func(valueID string, value ir.Scalar) {
		visited = append(visited, valueID+"="+string(value.(ir.String)))
	})

	assert.Equal(t, []string{"a/r/c", "b/r/c", "v=x"}, visited)
}
