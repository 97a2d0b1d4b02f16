package store

import (
	"strconv"

	"github.com/roach88/tabstore/internal/ir"
)

// CellMapper computes a new cell or value from the current one, which is
// nil when absent. SetCell and SetValue accept one in place of a literal.
type CellMapper func(old ir.Scalar) any

func mapped(v any, old func() ir.Scalar) any {
	switch fn := v.(type) {
	case CellMapper:
		return fn(old())
	case func(ir.Scalar) any:
		return fn(old())
	}
	return v
}

// SetTables replaces all tables. Invalid tables, rows and cells are dropped
// and reported to invalid cell listeners; valid siblings still apply.
func (s *Store) SetTables(tables any) {
	if s.deferWrite(func() { s.SetTables(tables) }) {
		return
	}
	s.write(func() {
		if valid, ok := s.validateTables(tables); ok {
			s.setValidTables(valid)
		}
	})
}

// SetTable replaces one table.
func (s *Store) SetTable(tableID any, table any) {
	if s.deferWrite(func() { s.SetTable(tableID, table) }) {
		return
	}
	t := ir.ToID(tableID)
	s.write(func() {
		if valid, ok := s.validateTable(t, table); ok {
			s.setValidTable(t, valid)
		}
	})
}

// SetRow replaces one row. Declared defaults fill missing cells.
func (s *Store) SetRow(tableID, rowID any, row any) {
	if s.deferWrite(func() { s.SetRow(tableID, rowID, row) }) {
		return
	}
	t, r := ir.ToID(tableID), ir.ToID(rowID)
	s.write(func() {
		if valid, ok := s.validateRow(t, r, row, false); ok {
			s.setValidRow(t, s.getOrCreateTable(t), r, valid, false)
		}
	})
}

// AddRow stores row under the lowest non-negative integer row id not in use
// in the table and returns that id. It returns false when the row is
// invalid.
//
// Called from a plain listener the write is deferred, so AddRow also
// returns ("", false) although the row will be added once the follow-up
// transaction runs. Check WritesDeferred to tell the two apart.
func (s *Store) AddRow(tableID any, row any) (string, bool) {
	if s.deferWrite(func() { s.AddRow(tableID, row) }) {
		return "", false
	}
	t := ir.ToID(tableID)
	rowID, added := "", false
	s.write(func() {
		if valid, ok := s.validateRow(t, "", row, false); ok {
			table := s.getOrCreateTable(t)
			rowID, added = newRowID(table), true
			s.setValidRow(t, table, rowID, valid, false)
		}
	})
	return rowID, added
}

func newRowID(table *tableMap) string {
	for i := 0; ; i++ {
		id := strconv.Itoa(i)
		if _, used := table.rows.Get(id); !used {
			return id
		}
	}
}

// SetPartialRow sets the given cells of a row and leaves the others. A new
// row still receives declared defaults.
func (s *Store) SetPartialRow(tableID, rowID any, partialRow any) {
	if s.deferWrite(func() { s.SetPartialRow(tableID, rowID, partialRow) }) {
		return
	}
	t, r := ir.ToID(tableID), ir.ToID(rowID)
	s.write(func() {
		valid, ok := s.validateRow(t, r, partialRow, true)
		if !ok {
			return
		}
		table := s.getOrCreateTable(t)
		for c := valid.Oldest(); c != nil; c = c.Next() {
			s.setCellIntoDefaultRow(t, table, r, c.Key, c.Value)
		}
	})
}

// SetCell sets one cell to a literal or, given a CellMapper, to the mapper's
// result.
func (s *Store) SetCell(tableID, rowID, cellID any, cell any) {
	if s.deferWrite(func() { s.SetCell(tableID, rowID, cellID, cell) }) {
		return
	}
	t, r, c := ir.ToID(tableID), ir.ToID(rowID), ir.ToID(cellID)
	s.write(func() {
		candidate := mapped(cell, func() ir.Scalar { return s.getCell(t, r, c) })
		if valid, ok := s.validatedCell(t, r, c, candidate); ok {
			s.setCellIntoDefaultRow(t, s.getOrCreateTable(t), r, c, valid)
		}
	})
}

// SetValues replaces all values.
func (s *Store) SetValues(values any) {
	if s.deferWrite(func() { s.SetValues(values) }) {
		return
	}
	s.write(func() {
		if valid, ok := s.validateValues(values, false); ok {
			s.setValidValues(valid)
		}
	})
}

// SetPartialValues sets the given values and leaves the others.
func (s *Store) SetPartialValues(partialValues any) {
	if s.deferWrite(func() { s.SetPartialValues(partialValues) }) {
		return
	}
	s.write(func() {
		if valid, ok := s.validateValues(partialValues, true); ok {
			for v := valid.Oldest(); v != nil; v = v.Next() {
				s.setValidValue(v.Key, v.Value)
			}
		}
	})
}

// SetValue sets one value to a literal or a CellMapper's result.
func (s *Store) SetValue(valueID any, value any) {
	if s.deferWrite(func() { s.SetValue(valueID, value) }) {
		return
	}
	v := ir.ToID(valueID)
	s.write(func() {
		candidate := mapped(value, func() ir.Scalar { return s.getValue(v) })
		if valid, ok := s.validatedValue(v, candidate); ok {
			s.setValidValue(v, valid)
		}
	})
}

// DelTables deletes every table.
func (s *Store) DelTables() {
	if s.deferWrite(s.DelTables) {
		return
	}
	s.write(func() {
		s.setValidTables(newMap[*validTable]())
	})
}

// DelTable deletes one table.
func (s *Store) DelTable(tableID any) {
	if s.deferWrite(func() { s.DelTable(tableID) }) {
		return
	}
	t := ir.ToID(tableID)
	s.write(func() {
		if _, ok := s.tables.Get(t); ok {
			s.delValidTable(t)
		}
	})
}

// DelRow deletes one row.
func (s *Store) DelRow(tableID, rowID any) {
	if s.deferWrite(func() { s.DelRow(tableID, rowID) }) {
		return
	}
	t, r := ir.ToID(tableID), ir.ToID(rowID)
	s.write(func() {
		if table, ok := s.tables.Get(t); ok {
			if _, ok := table.rows.Get(r); ok {
				s.delValidRow(t, table, r)
			}
		}
	})
}

// DelCell deletes one cell. A cell with a schema default is reset to the
// default instead, unless forceDel is set; forcing the delete of such a
// cell deletes its whole row.
func (s *Store) DelCell(tableID, rowID, cellID any, forceDel bool) {
	if s.deferWrite(func() { s.DelCell(tableID, rowID, cellID, forceDel) }) {
		return
	}
	t, r, c := ir.ToID(tableID), ir.ToID(rowID), ir.ToID(cellID)
	s.write(func() {
		table, ok := s.tables.Get(t)
		if !ok {
			return
		}
		row, ok := table.rows.Get(r)
		if !ok {
			return
		}
		if _, ok := row.Get(c); ok {
			s.delValidCell(t, table, r, row, c, forceDel)
		}
	})
}

// DelValues deletes every value. Values with a schema default are reset to
// it.
func (s *Store) DelValues() {
	if s.deferWrite(s.DelValues) {
		return
	}
	s.write(func() {
		s.setValidValues(newMap[ir.Scalar]())
	})
}

// DelValue deletes one value, or resets it to its schema default.
func (s *Store) DelValue(valueID any) {
	if s.deferWrite(func() { s.DelValue(valueID) }) {
		return
	}
	v := ir.ToID(valueID)
	s.write(func() {
		if _, ok := s.values.Get(v); ok {
			s.delValidValue(v)
		}
	})
}

// SetContent replaces tables and values in one transaction.
func (s *Store) SetContent(content ir.Content) {
	s.setContent(content.Tables, content.Values)
}

func (s *Store) setContent(tables, values any) {
	if s.deferWrite(func() { s.setContent(tables, values) }) {
		return
	}
	s.write(func() {
		if valid, ok := s.validateTables(tables); ok {
			s.setValidTables(valid)
		}
		if valid, ok := s.validateValues(values, false); ok {
			s.setValidValues(valid)
		}
	})
}

func (s *Store) getOrCreateTable(tableID string) *tableMap {
	if table, ok := s.tables.Get(tableID); ok {
		return table
	}
	table := newTableMap()
	s.tables.Set(tableID, table)
	s.journal.tableIDsChanged(tableID, 1)
	return table
}

func (s *Store) setValidTables(tables *validTables) {
	for t := tables.Oldest(); t != nil; t = t.Next() {
		s.setValidTable(t.Key, t.Value)
	}
	for _, tableID := range keys(s.tables) {
		if _, keep := tables.Get(tableID); !keep {
			s.delValidTable(tableID)
		}
	}
}

func (s *Store) setValidTable(tableID string, rows *validTable) {
	table := s.getOrCreateTable(tableID)
	for r := rows.Oldest(); r != nil; r = r.Next() {
		s.setValidRow(tableID, table, r.Key, r.Value, false)
	}
	for _, rowID := range keys(table.rows) {
		if _, keep := rows.Get(rowID); !keep {
			s.delValidRow(tableID, table, rowID)
		}
	}
}

func (s *Store) setValidRow(tableID string, table *tableMap, rowID string, cells *validRow, forceDel bool) {
	row, ok := table.rows.Get(rowID)
	if !ok {
		row = newMap[ir.Scalar]()
		table.rows.Set(rowID, row)
		s.journal.rowIDsChanged(tableID, rowID, 1)
	}
	for c := cells.Oldest(); c != nil; c = c.Next() {
		s.setValidCell(tableID, table, rowID, row, c.Key, c.Value)
	}
	for _, cellID := range keys(row) {
		if _, keep := cells.Get(cellID); keep {
			continue
		}
		if _, still := row.Get(cellID); still {
			s.delValidCell(tableID, table, rowID, row, cellID, forceDel)
		}
	}
}

func (s *Store) setCellIntoDefaultRow(tableID string, table *tableMap, rowID, cellID string, cell ir.Scalar) {
	if row, ok := table.rows.Get(rowID); ok {
		s.setValidCell(tableID, table, rowID, row, cellID, cell)
		return
	}
	cells := newMap[ir.Scalar]()
	cells.Set(cellID, cell)
	s.addDefaultsToRow(cells, tableID, rowID, []entry{{id: cellID}})
	s.setValidRow(tableID, table, rowID, cells, false)
}

func (s *Store) setValidCell(tableID string, table *tableMap, rowID string, row *rowMap, cellID string, cell ir.Scalar) {
	old, had := row.Get(cellID)
	if had && old == cell {
		return
	}
	s.journal.cellChanged(tableID, rowID, cellID, old, cell)
	if !had {
		s.journal.cellIDsChanged(table, tableID, rowID, cellID, 1)
	}
	row.Set(cellID, cell)
}

func (s *Store) delValidTable(tableID string) {
	s.setValidTable(tableID, newMap[*validRow]())
}

func (s *Store) delValidRow(tableID string, table *tableMap, rowID string) {
	s.setValidRow(tableID, table, rowID, newMap[ir.Scalar](), true)
}

func (s *Store) delValidCell(tableID string, table *tableMap, rowID string, row *rowMap, cellID string, forceDel bool) {
	var def ir.Scalar
	if s.tablesSchema != nil {
		if cs, ok := s.tablesSchema.cell(tableID, cellID); ok {
			def = cs.def
		}
	}
	if def != nil && !forceDel {
		s.setValidCell(tableID, table, rowID, row, cellID, def)
		return
	}

	del := func(cellID string) {
		old, _ := row.Get(cellID)
		s.journal.cellChanged(tableID, rowID, cellID, old, nil)
		s.journal.cellIDsChanged(table, tableID, rowID, cellID, -1)
		row.Delete(cellID)
	}
	if def == nil {
		del(cellID)
	} else {
		for _, id := range keys(row) {
			del(id)
		}
	}
	s.pruneRow(tableID, table, rowID, row)
}

// pruneRow deletes an empty row, and then its table if that is empty too.
func (s *Store) pruneRow(tableID string, table *tableMap, rowID string, row *rowMap) {
	if row.Len() > 0 {
		return
	}
	s.journal.rowIDsChanged(tableID, rowID, -1)
	table.rows.Delete(rowID)
	if table.rows.Len() == 0 {
		s.journal.tableIDsChanged(tableID, -1)
		s.tables.Delete(tableID)
	}
}

// putCell writes or, given nil, deletes a single cell without validation or
// defaults. Rollback uses it to restore original values.
func (s *Store) putCell(tableID, rowID, cellID string, cell ir.Scalar) {
	if cell != nil {
		table := s.getOrCreateTable(tableID)
		row, ok := table.rows.Get(rowID)
		if !ok {
			row = newMap[ir.Scalar]()
			table.rows.Set(rowID, row)
			s.journal.rowIDsChanged(tableID, rowID, 1)
		}
		s.setValidCell(tableID, table, rowID, row, cellID, cell)
		return
	}
	table, ok := s.tables.Get(tableID)
	if !ok {
		return
	}
	row, ok := table.rows.Get(rowID)
	if !ok {
		return
	}
	old, ok := row.Get(cellID)
	if !ok {
		return
	}
	s.journal.cellChanged(tableID, rowID, cellID, old, nil)
	s.journal.cellIDsChanged(table, tableID, rowID, cellID, -1)
	row.Delete(cellID)
	s.pruneRow(tableID, table, rowID, row)
}

func (s *Store) setValidValues(values *validRow) {
	for v := values.Oldest(); v != nil; v = v.Next() {
		s.setValidValue(v.Key, v.Value)
	}
	for _, valueID := range keys(s.values) {
		if _, keep := values.Get(valueID); !keep {
			s.delValidValue(valueID)
		}
	}
}

func (s *Store) setValidValue(valueID string, value ir.Scalar) {
	old, had := s.values.Get(valueID)
	if had && old == value {
		return
	}
	s.journal.valueChanged(valueID, old, value)
	if !had {
		s.journal.valueIDsChanged(valueID, 1)
	}
	s.values.Set(valueID, value)
}

func (s *Store) delValidValue(valueID string) {
	if s.valuesSchema != nil {
		if cs, ok := s.valuesSchema.values.Get(valueID); ok && cs.def != nil {
			s.setValidValue(valueID, cs.def)
			return
		}
	}
	s.putValue(valueID, nil)
}

// putValue writes or deletes one value without validation or defaults.
func (s *Store) putValue(valueID string, value ir.Scalar) {
	if value != nil {
		s.setValidValue(valueID, value)
		return
	}
	old, ok := s.values.Get(valueID)
	if !ok {
		return
	}
	s.journal.valueChanged(valueID, old, nil)
	s.journal.valueIDsChanged(valueID, -1)
	s.values.Delete(valueID)
}
