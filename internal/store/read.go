package store

import (
	"slices"
	"strings"

	"github.com/roach88/tabstore/internal/ir"
)

// Reads never trigger listeners. Every returned map or slice is a copy.

func (s *Store) getCell(tableID, rowID, cellID string) ir.Scalar {
	table, ok := s.tables.Get(tableID)
	if !ok {
		return nil
	}
	row, ok := table.rows.Get(rowID)
	if !ok {
		return nil
	}
	cell, _ := row.Get(cellID)
	return cell
}

func (s *Store) getValue(valueID string) ir.Scalar {
	value, _ := s.values.Get(valueID)
	return value
}

func (s *Store) getRowMap(tableID, rowID string) *rowMap {
	table, ok := s.tables.Get(tableID)
	if !ok {
		return nil
	}
	row, _ := table.rows.Get(rowID)
	return row
}

// HasTables reports whether any table exists.
func (s *Store) HasTables() bool {
	return s.tables.Len() > 0
}

// GetTables returns a copy of all tables.
func (s *Store) GetTables() ir.Tables {
	out := make(ir.Tables, s.tables.Len())
	for t := s.tables.Oldest(); t != nil; t = t.Next() {
		out[t.Key] = tableSnapshot(t.Value)
	}
	return out
}

// GetTableIDs returns table ids in insertion order.
func (s *Store) GetTableIDs() []string {
	return keys(s.tables)
}

// HasTable reports whether a table exists.
func (s *Store) HasTable(tableID any) bool {
	_, ok := s.tables.Get(ir.ToID(tableID))
	return ok
}

// GetTable returns a copy of one table; empty when it does not exist.
func (s *Store) GetTable(tableID any) ir.Table {
	table, ok := s.tables.Get(ir.ToID(tableID))
	if !ok {
		return ir.Table{}
	}
	return tableSnapshot(table)
}

func tableSnapshot(table *tableMap) ir.Table {
	out := make(ir.Table, table.rows.Len())
	for r := table.rows.Oldest(); r != nil; r = r.Next() {
		out[r.Key] = rowSnapshot(r.Value)
	}
	return out
}

func rowSnapshot(row *rowMap) ir.Row {
	out := make(ir.Row, row.Len())
	for c := row.Oldest(); c != nil; c = c.Next() {
		out[c.Key] = c.Value
	}
	return out
}

// GetTableCellIDs returns the ids of cells used by any row of a table, in
// order of first use.
func (s *Store) GetTableCellIDs(tableID any) []string {
	table, ok := s.tables.Get(ir.ToID(tableID))
	if !ok {
		return []string{}
	}
	return keys(table.cellIDs)
}

// HasTableCell reports whether any row of a table has the cell.
func (s *Store) HasTableCell(tableID, cellID any) bool {
	table, ok := s.tables.Get(ir.ToID(tableID))
	if !ok {
		return false
	}
	_, ok = table.cellIDs.Get(ir.ToID(cellID))
	return ok
}

// GetRowCount returns the number of rows in a table.
func (s *Store) GetRowCount(tableID any) int {
	table, ok := s.tables.Get(ir.ToID(tableID))
	if !ok {
		return 0
	}
	return table.rows.Len()
}

// GetRowIDs returns row ids of a table in insertion order.
func (s *Store) GetRowIDs(tableID any) []string {
	table, ok := s.tables.Get(ir.ToID(tableID))
	if !ok {
		return []string{}
	}
	return keys(table.rows)
}

// GetSortedRowIDs returns the row ids of a table sorted by the value of
// cellID, or by row id when cellID is nil. Rows missing the cell sort as
// the number zero; ties keep insertion order. Offset skips leading ids and
// a positive limit caps the result.
func (s *Store) GetSortedRowIDs(tableID, cellID any, descending bool, offset, limit int) []string {
	table, ok := s.tables.Get(ir.ToID(tableID))
	if !ok {
		return []string{}
	}
	type sortable struct {
		key   ir.Scalar
		rowID string
	}
	byCell := cellID != nil
	c := ir.ToID(cellID)
	rows := make([]sortable, 0, table.rows.Len())
	for r := table.rows.Oldest(); r != nil; r = r.Next() {
		item := sortable{rowID: r.Key}
		if byCell {
			item.key, _ = r.Value.Get(c)
		}
		rows = append(rows, item)
	}
	slices.SortStableFunc(rows, func(a, b sortable) int {
		var cmp int
		if byCell {
			cmp = ir.Compare(a.key, b.key)
		} else {
			cmp = strings.Compare(a.rowID, b.rowID)
		}
		if descending {
			return -cmp
		}
		return cmp
	})

	offset = max(offset, 0)
	if offset > len(rows) {
		offset = len(rows)
	}
	end := len(rows)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	out := make([]string, 0, end-offset)
	for _, item := range rows[offset:end] {
		out = append(out, item.rowID)
	}
	return out
}

// HasRow reports whether a row exists.
func (s *Store) HasRow(tableID, rowID any) bool {
	return s.getRowMap(ir.ToID(tableID), ir.ToID(rowID)) != nil
}

// GetRow returns a copy of one row; empty when it does not exist.
func (s *Store) GetRow(tableID, rowID any) ir.Row {
	row := s.getRowMap(ir.ToID(tableID), ir.ToID(rowID))
	if row == nil {
		return ir.Row{}
	}
	return rowSnapshot(row)
}

// GetCellIDs returns the cell ids of a row in insertion order.
func (s *Store) GetCellIDs(tableID, rowID any) []string {
	return keys(s.getRowMap(ir.ToID(tableID), ir.ToID(rowID)))
}

// HasCell reports whether a cell exists.
func (s *Store) HasCell(tableID, rowID, cellID any) bool {
	return s.GetCell(tableID, rowID, cellID) != nil
}

// GetCell returns one cell, or nil when it does not exist.
func (s *Store) GetCell(tableID, rowID, cellID any) ir.Scalar {
	return s.getCell(ir.ToID(tableID), ir.ToID(rowID), ir.ToID(cellID))
}

// HasValues reports whether any value exists.
func (s *Store) HasValues() bool {
	return s.values.Len() > 0
}

// GetValues returns a copy of all values.
func (s *Store) GetValues() ir.Values {
	out := make(ir.Values, s.values.Len())
	for v := s.values.Oldest(); v != nil; v = v.Next() {
		out[v.Key] = v.Value
	}
	return out
}

// GetValueIDs returns value ids in insertion order.
func (s *Store) GetValueIDs() []string {
	return keys(s.values)
}

// HasValue reports whether a value exists.
func (s *Store) HasValue(valueID any) bool {
	_, ok := s.values.Get(ir.ToID(valueID))
	return ok
}

// GetValue returns one value, or nil when it does not exist.
func (s *Store) GetValue(valueID any) ir.Scalar {
	return s.getValue(ir.ToID(valueID))
}

// GetContent returns a copy of all tables and values.
func (s *Store) GetContent() ir.Content {
	return ir.Content{Tables: s.GetTables(), Values: s.GetValues()}
}

// ForEachTable calls fn for each table id in insertion order.
func (s *Store) ForEachTable(fn func(tableID string)) {
	for _, tableID := range s.GetTableIDs() {
		fn(tableID)
	}
}

// ForEachRow calls fn for each row id of a table in insertion order.
func (s *Store) ForEachRow(tableID any, fn func(rowID string)) {
	for _, rowID := range s.GetRowIDs(tableID) {
		fn(rowID)
	}
}

// ForEachCell calls fn for each cell of a row in insertion order.
func (s *Store) ForEachCell(tableID, rowID any, fn func(cellID string, cell ir.Scalar)) {
	row := s.getRowMap(ir.ToID(tableID), ir.ToID(rowID))
	for _, cellID := range keys(row) {
		cell, _ := row.Get(cellID)
		fn(cellID, cell)
	}
}

// ForEachValue calls fn for each value in insertion order.
func (s *Store) ForEachValue(fn func(valueID string, value ir.Scalar)) {
	for _, valueID := range s.GetValueIDs() {
		fn(valueID, s.getValue(valueID))
	}
}
