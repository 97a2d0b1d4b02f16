package store

import (
	"slices"

	"github.com/roach88/tabstore/internal/ir"
	"github.com/roach88/tabstore/internal/listener"
)

// Listener callbacks, one type per category. Id parameters always carry the
// concrete ids of the change, also for listeners registered with wildcards.
type (
	HasTablesListener    func(s *Store, hasTables bool)
	TablesListener       func(s *Store, getCellChange GetCellChange)
	TableIDsListener     func(s *Store, getIDChanges GetIDChanges)
	HasTableListener     func(s *Store, tableID string, hasTable bool)
	TableListener        func(s *Store, tableID string, getCellChange GetCellChange)
	TableCellIDsListener func(s *Store, tableID string, getIDChanges GetIDChanges)
	HasTableCellListener func(s *Store, tableID, cellID string, hasTableCell bool)
	RowCountListener     func(s *Store, tableID string, count int)
	RowIDsListener       func(s *Store, tableID string, getIDChanges GetIDChanges)
	SortedRowIDsListener func(s *Store, tableID, cellID string, descending bool, offset, limit int, sortedRowIDs []string)
	HasRowListener       func(s *Store, tableID, rowID string, hasRow bool)
	RowListener          func(s *Store, tableID, rowID string, getCellChange GetCellChange)
	CellIDsListener      func(s *Store, tableID, rowID string, getIDChanges GetIDChanges)
	HasCellListener      func(s *Store, tableID, rowID, cellID string, hasCell bool)
	CellListener         func(s *Store, tableID, rowID, cellID string, newCell, oldCell ir.Scalar)
	InvalidCellListener  func(s *Store, tableID, rowID, cellID string, invalidCells []any)
	HasValuesListener    func(s *Store, hasValues bool)
	ValuesListener       func(s *Store, getValueChange GetValueChange)
	ValueIDsListener     func(s *Store, getIDChanges GetIDChanges)
	HasValueListener     func(s *Store, valueID string, hasValue bool)
	ValueListener        func(s *Store, valueID string, newValue, oldValue ir.Scalar)
	InvalidValueListener func(s *Store, valueID string, invalidValues []any)
	TransactionListener  func(s *Store)
)

// Adding listeners: every positional id may be nil, the wildcard, or any id
// accepted by ir.ToID. A mutator listener fires before plain listeners and
// may write to the store within the same transaction. Listeners added while
// a transaction finishes take effect from the next one.

func (s *Store) add(category listener.Category, path listener.Path, callback any, mutator bool) string {
	return s.listeners.Add(category, path, callback, mutator, nil)
}

// AddHasTablesListener fires when the store gains its first table or loses
// its last one.
func (s *Store) AddHasTablesListener(fn HasTablesListener, mutator bool) string {
	return s.add(listener.HasTables, nil, fn, mutator)
}

// AddTablesListener fires when any cell changes.
func (s *Store) AddTablesListener(fn TablesListener, mutator bool) string {
	return s.add(listener.Tables, nil, fn, mutator)
}

// AddTableIDsListener fires when tables are added or removed.
func (s *Store) AddTableIDsListener(fn TableIDsListener, mutator bool) string {
	return s.add(listener.TableIDs, nil, fn, mutator)
}

// AddHasTableListener fires when a table starts or stops existing.
func (s *Store) AddHasTableListener(tableID any, fn HasTableListener, mutator bool) string {
	return s.add(listener.HasTable, listener.PathOf(tableID), fn, mutator)
}

// AddTableListener fires when any cell of a table changes.
func (s *Store) AddTableListener(tableID any, fn TableListener, mutator bool) string {
	return s.add(listener.Table, listener.PathOf(tableID), fn, mutator)
}

// AddTableCellIDsListener fires when a cell id starts or stops being used by
// any row of a table.
func (s *Store) AddTableCellIDsListener(tableID any, fn TableCellIDsListener, mutator bool) string {
	return s.add(listener.TableCellIDs, listener.PathOf(tableID), fn, mutator)
}

// AddHasTableCellListener fires when a cell id starts or stops being used by
// any row of a table.
func (s *Store) AddHasTableCellListener(tableID, cellID any, fn HasTableCellListener, mutator bool) string {
	return s.add(listener.HasTableCell, listener.PathOf(tableID, cellID), fn, mutator)
}

// AddRowCountListener fires when the number of rows in a table changes.
func (s *Store) AddRowCountListener(tableID any, fn RowCountListener, mutator bool) string {
	return s.add(listener.RowCount, listener.PathOf(tableID), fn, mutator)
}

// AddRowIDsListener fires when rows are added to or removed from a table.
func (s *Store) AddRowIDsListener(tableID any, fn RowIDsListener, mutator bool) string {
	return s.add(listener.RowIDs, listener.PathOf(tableID), fn, mutator)
}

// AddSortedRowIDsListener fires when the result of GetSortedRowIDs with the
// same arguments changes. tableID must be concrete; a nil cellID sorts by
// row id and the listener then receives "" as its cell id.
func (s *Store) AddSortedRowIDsListener(tableID, cellID any, descending bool, offset, limit int, fn SortedRowIDsListener, mutator bool) string {
	sl := &sortedListener{
		tableID:    ir.ToID(tableID),
		cellID:     cellID,
		descending: descending,
		offset:     offset,
		limit:      limit,
		fn:         fn,
	}
	if cellID != nil {
		sl.cellID = ir.ToID(cellID)
	}
	sl.last = sl.sorted(s)
	path := listener.Path{listener.Exact(sl.tableID), listener.Any}
	if cellID != nil {
		path[1] = listener.Exact(sl.cellID.(string))
	}
	return s.add(listener.SortedRowIDs, path, sl, mutator)
}

// AddHasRowListener fires when a row starts or stops existing.
func (s *Store) AddHasRowListener(tableID, rowID any, fn HasRowListener, mutator bool) string {
	return s.add(listener.HasRow, listener.PathOf(tableID, rowID), fn, mutator)
}

// AddRowListener fires when any cell of a row changes.
func (s *Store) AddRowListener(tableID, rowID any, fn RowListener, mutator bool) string {
	return s.add(listener.Row, listener.PathOf(tableID, rowID), fn, mutator)
}

// AddCellIDsListener fires when cells are added to or removed from a row.
func (s *Store) AddCellIDsListener(tableID, rowID any, fn CellIDsListener, mutator bool) string {
	return s.add(listener.CellIDs, listener.PathOf(tableID, rowID), fn, mutator)
}

// AddHasCellListener fires when a cell starts or stops existing.
func (s *Store) AddHasCellListener(tableID, rowID, cellID any, fn HasCellListener, mutator bool) string {
	return s.add(listener.HasCell, listener.PathOf(tableID, rowID, cellID), fn, mutator)
}

// AddCellListener fires when a cell's value changes, with the new and the
// old value; nil means absent.
func (s *Store) AddCellListener(tableID, rowID, cellID any, fn CellListener, mutator bool) string {
	return s.add(listener.Cell, listener.PathOf(tableID, rowID, cellID), fn, mutator)
}

// AddInvalidCellListener fires with every rejected write attempt to a cell,
// in the order they were made.
func (s *Store) AddInvalidCellListener(tableID, rowID, cellID any, fn InvalidCellListener, mutator bool) string {
	return s.add(listener.InvalidCell, listener.PathOf(tableID, rowID, cellID), fn, mutator)
}

// AddHasValuesListener fires when the store gains its first value or loses
// its last one.
func (s *Store) AddHasValuesListener(fn HasValuesListener, mutator bool) string {
	return s.add(listener.HasValues, nil, fn, mutator)
}

// AddValuesListener fires when any value changes.
func (s *Store) AddValuesListener(fn ValuesListener, mutator bool) string {
	return s.add(listener.Values, nil, fn, mutator)
}

// AddValueIDsListener fires when values are added or removed.
func (s *Store) AddValueIDsListener(fn ValueIDsListener, mutator bool) string {
	return s.add(listener.ValueIDs, nil, fn, mutator)
}

// AddHasValueListener fires when a value starts or stops existing.
func (s *Store) AddHasValueListener(valueID any, fn HasValueListener, mutator bool) string {
	return s.add(listener.HasValue, listener.PathOf(valueID), fn, mutator)
}

// AddValueListener fires when a value changes.
func (s *Store) AddValueListener(valueID any, fn ValueListener, mutator bool) string {
	return s.add(listener.Value, listener.PathOf(valueID), fn, mutator)
}

// AddInvalidValueListener fires with every rejected write attempt to a
// value.
func (s *Store) AddInvalidValueListener(valueID any, fn InvalidValueListener, mutator bool) string {
	return s.add(listener.InvalidValue, listener.PathOf(valueID), fn, mutator)
}

// AddStartTransactionListener fires when a transaction opens, before any of
// its writes apply.
func (s *Store) AddStartTransactionListener(fn TransactionListener) string {
	return s.add(listener.StartTransaction, nil, fn, false)
}

// AddWillFinishTransactionListener fires after mutator listeners and before
// plain ones. Writes it makes join the finishing transaction.
func (s *Store) AddWillFinishTransactionListener(fn TransactionListener) string {
	return s.add(listener.WillFinishTransaction, nil, fn, false)
}

// AddDidFinishTransactionListener fires after every other listener. Writes
// it makes run in a new transaction.
func (s *Store) AddDidFinishTransactionListener(fn TransactionListener) string {
	return s.add(listener.DidFinishTransaction, nil, fn, false)
}

// DelListener removes a listener. Removing one that has not fired yet in a
// finishing transaction suppresses it.
func (s *Store) DelListener(id string) {
	s.listeners.Del(id)
}

// GetListenerStats returns the number of listeners per category name.
func (s *Store) GetListenerStats() map[string]int {
	counts := s.listeners.Stats()
	out := make(map[string]int, len(listener.StoreCategories()))
	for _, c := range listener.StoreCategories() {
		out[c.String()] = counts[c]
	}
	return out
}

// CallListener invokes a listener immediately with the current state, once
// per existing id its wildcards match. Change accessors report no change.
func (s *Store) CallListener(id string) {
	l, ok := s.listeners.Get(id)
	if !ok {
		return
	}
	if sl, ok := l.Callback.(*sortedListener); ok {
		sl.last = sl.sorted(s)
		sl.call(s)
		return
	}
	s.callWithIDs(l, nil)
}

func (s *Store) callWithIDs(l *listener.Listener, ids []string) {
	if len(ids) == len(l.Path) {
		s.invoke(l, ids, s.currentArg(l.Category, ids))
		return
	}
	seg := l.Path[len(ids)]
	if !seg.Wild {
		s.callWithIDs(l, append(slices.Clone(ids), seg.ID))
		return
	}
	for _, id := range s.idsAt(l.Category, ids) {
		s.callWithIDs(l, append(slices.Clone(ids), id))
	}
}

// idsAt lists the existing ids a wildcard at position len(prefix) stands for.
func (s *Store) idsAt(category listener.Category, prefix []string) []string {
	switch category {
	case listener.HasValue, listener.Value, listener.InvalidValue:
		return s.GetValueIDs()
	case listener.HasTableCell:
		if len(prefix) == 1 {
			return s.GetTableCellIDs(prefix[0])
		}
	}
	switch len(prefix) {
	case 0:
		return s.GetTableIDs()
	case 1:
		return s.GetRowIDs(prefix[0])
	case 2:
		return s.GetCellIDs(prefix[0], prefix[1])
	}
	return nil
}

func (s *Store) currentArg(category listener.Category, ids []string) any {
	noCellChange := GetCellChange(func(string, string, string) Change { return Change{} })
	noIDChanges := GetIDChanges(func() map[string]int { return map[string]int{} })
	switch category {
	case listener.HasTables:
		return s.HasTables()
	case listener.Tables, listener.Table, listener.Row:
		return noCellChange
	case listener.TableIDs, listener.TableCellIDs, listener.RowIDs, listener.CellIDs, listener.ValueIDs:
		return noIDChanges
	case listener.HasTable:
		return s.HasTable(ids[0])
	case listener.HasTableCell:
		return s.HasTableCell(ids[0], ids[1])
	case listener.RowCount:
		return s.GetRowCount(ids[0])
	case listener.HasRow:
		return s.HasRow(ids[0], ids[1])
	case listener.HasCell:
		return s.HasCell(ids[0], ids[1], ids[2])
	case listener.Cell:
		return Change{New: s.GetCell(ids[0], ids[1], ids[2])}
	case listener.InvalidCell, listener.InvalidValue:
		return []any{}
	case listener.HasValues:
		return s.HasValues()
	case listener.Values:
		return GetValueChange(func(string) Change { return Change{} })
	case listener.HasValue:
		return s.HasValue(ids[0])
	case listener.Value:
		return Change{New: s.GetValue(ids[0])}
	}
	return nil
}

func (s *Store) invoke(l *listener.Listener, ids []string, arg any) {
	switch fn := l.Callback.(type) {
	case HasTablesListener:
		fn(s, arg.(bool))
	case TablesListener:
		fn(s, arg.(GetCellChange))
	case TableIDsListener:
		fn(s, arg.(GetIDChanges))
	case HasTableListener:
		fn(s, ids[0], arg.(bool))
	case TableListener:
		fn(s, ids[0], arg.(GetCellChange))
	case TableCellIDsListener:
		fn(s, ids[0], arg.(GetIDChanges))
	case HasTableCellListener:
		fn(s, ids[0], ids[1], arg.(bool))
	case RowCountListener:
		fn(s, ids[0], arg.(int))
	case RowIDsListener:
		fn(s, ids[0], arg.(GetIDChanges))
	case HasRowListener:
		fn(s, ids[0], ids[1], arg.(bool))
	case RowListener:
		fn(s, ids[0], ids[1], arg.(GetCellChange))
	case CellIDsListener:
		fn(s, ids[0], ids[1], arg.(GetIDChanges))
	case HasCellListener:
		fn(s, ids[0], ids[1], ids[2], arg.(bool))
	case CellListener:
		ch := arg.(Change)
		fn(s, ids[0], ids[1], ids[2], ch.New, ch.Old)
	case InvalidCellListener:
		fn(s, ids[0], ids[1], ids[2], arg.([]any))
	case HasValuesListener:
		fn(s, arg.(bool))
	case ValuesListener:
		fn(s, arg.(GetValueChange))
	case ValueIDsListener:
		fn(s, arg.(GetIDChanges))
	case HasValueListener:
		fn(s, ids[0], arg.(bool))
	case ValueListener:
		ch := arg.(Change)
		fn(s, ids[0], ch.New, ch.Old)
	case InvalidValueListener:
		fn(s, ids[0], arg.([]any))
	case TransactionListener:
		fn(s)
	}
}

type sortedListener struct {
	tableID    string
	cellID     any
	descending bool
	offset     int
	limit      int
	last       []string
	fn         SortedRowIDsListener
}

func (sl *sortedListener) sorted(s *Store) []string {
	return s.GetSortedRowIDs(sl.tableID, sl.cellID, sl.descending, sl.offset, sl.limit)
}

// refresh re-sorts and reports whether the result differs from the last one.
func (sl *sortedListener) refresh(s *Store) bool {
	ids := sl.sorted(s)
	if slices.Equal(ids, sl.last) {
		return false
	}
	sl.last = ids
	return true
}

func (sl *sortedListener) call(s *Store) {
	cellID, _ := sl.cellID.(string)
	sl.fn(s, sl.tableID, cellID, sl.descending, sl.offset, sl.limit, slices.Clone(sl.last))
}
