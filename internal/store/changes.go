package store

import (
	"slices"

	"github.com/roach88/tabstore/internal/ir"
)

// Change is the net effect of a transaction on one cell or value. A nil
// Old means the cell did not exist before; a nil New means it no longer
// exists.
type Change struct {
	Old ir.Scalar
	New ir.Scalar
}

// Changed reports whether the cell or value differs from its value at the
// start of the transaction.
func (c Change) Changed() bool {
	return c.Old != c.New
}

// GetCellChange reads the net change of one cell in the finishing
// transaction. Untouched cells report a zero Change.
type GetCellChange func(tableID, rowID, cellID string) Change

// GetValueChange reads the net change of one value in the finishing
// transaction.
type GetValueChange func(valueID string) Change

// GetIDChanges returns a copy of an id-set delta: +1 for ids that now exist
// and did not before, -1 for ids that no longer exist.
type GetIDChanges func() map[string]int

// Changes is the net effect of a transaction: every cell and value whose
// value differs from the start of the transaction.
type Changes struct {
	Tables map[string]map[string]map[string]Change
	Values map[string]Change
}

// IsEmpty reports whether the transaction has no net effect.
func (c Changes) IsEmpty() bool {
	return len(c.Tables) == 0 && len(c.Values) == 0
}

// TransactionLog is the full summary of a transaction as listeners see it.
type TransactionLog struct {
	HasTablesChanged    bool
	HasValuesChanged    bool
	ChangedCells        map[string]map[string]map[string]Change
	InvalidCells        map[string]map[string]map[string][]any
	ChangedValues       map[string]Change
	InvalidValues       map[string][]any
	ChangedTableIDs     map[string]int
	ChangedTableCellIDs map[string]map[string]int
	ChangedRowIDs       map[string]map[string]int
	ChangedCellIDs      map[string]map[string]map[string]int
	ChangedValueIDs     map[string]int
}

// GetTransactionChanges returns the net changes of the open transaction.
// Outside a transaction it returns empty Changes.
func (s *Store) GetTransactionChanges() Changes {
	return Changes{
		Tables: s.changedCells(),
		Values: s.changedValues(),
	}
}

// GetTransactionLog returns the summary of the open transaction. Outside a
// transaction every map is empty.
func (s *Store) GetTransactionLog() TransactionLog {
	j := s.journal
	log := TransactionLog{
		ChangedCells:        s.changedCells(),
		InvalidCells:        make(map[string]map[string]map[string][]any),
		ChangedValues:       s.changedValues(),
		InvalidValues:       make(map[string][]any),
		ChangedTableIDs:     deltasToMap(j.tableIDs),
		ChangedTableCellIDs: make(map[string]map[string]int),
		ChangedRowIDs:       make(map[string]map[string]int),
		ChangedCellIDs:      make(map[string]map[string]map[string]int),
		ChangedValueIDs:     deltasToMap(j.valueIDs),
	}
	log.HasTablesChanged = len(log.ChangedCells) > 0
	log.HasValuesChanged = len(log.ChangedValues) > 0

	for t := j.invalidCells.Oldest(); t != nil; t = t.Next() {
		rows := make(map[string]map[string][]any)
		for r := t.Value.Oldest(); r != nil; r = r.Next() {
			cells := make(map[string][]any)
			for c := r.Value.Oldest(); c != nil; c = c.Next() {
				cells[c.Key] = slices.Clone(c.Value)
			}
			rows[r.Key] = cells
		}
		log.InvalidCells[t.Key] = rows
	}
	for v := j.invalidValues.Oldest(); v != nil; v = v.Next() {
		log.InvalidValues[v.Key] = slices.Clone(v.Value)
	}
	for t := j.tableCellIDs.Oldest(); t != nil; t = t.Next() {
		if t.Value.Len() > 0 {
			log.ChangedTableCellIDs[t.Key] = deltasToMap(t.Value)
		}
	}
	for t := j.rowIDs.Oldest(); t != nil; t = t.Next() {
		if t.Value.Len() > 0 {
			log.ChangedRowIDs[t.Key] = deltasToMap(t.Value)
		}
	}
	for t := j.cellIDs.Oldest(); t != nil; t = t.Next() {
		rows := make(map[string]map[string]int)
		for r := t.Value.Oldest(); r != nil; r = r.Next() {
			if r.Value.Len() > 0 {
				rows[r.Key] = deltasToMap(r.Value)
			}
		}
		if len(rows) > 0 {
			log.ChangedCellIDs[t.Key] = rows
		}
	}
	return log
}

func (s *Store) changedCells() map[string]map[string]map[string]Change {
	out := make(map[string]map[string]map[string]Change)
	for t := s.journal.cells.Oldest(); t != nil; t = t.Next() {
		rows := make(map[string]map[string]Change)
		for r := t.Value.Oldest(); r != nil; r = r.Next() {
			cells := make(map[string]Change)
			for c := r.Value.Oldest(); c != nil; c = c.Next() {
				if c.Value.net() {
					cells[c.Key] = Change{Old: c.Value.old, New: c.Value.new}
				}
			}
			if len(cells) > 0 {
				rows[r.Key] = cells
			}
		}
		if len(rows) > 0 {
			out[t.Key] = rows
		}
	}
	return out
}

func (s *Store) changedValues() map[string]Change {
	out := make(map[string]Change)
	for v := s.journal.values.Oldest(); v != nil; v = v.Next() {
		if v.Value.net() {
			out[v.Key] = Change{Old: v.Value.old, New: v.Value.new}
		}
	}
	return out
}

func (s *Store) getCellChange(tableID, rowID, cellID string) Change {
	if c, ok := s.journal.cellChange(tableID, rowID, cellID); ok {
		return Change{Old: c.old, New: c.new}
	}
	return Change{}
}

func (s *Store) getValueChange(valueID string) Change {
	if c, ok := s.journal.values.Get(valueID); ok {
		return Change{Old: c.old, New: c.new}
	}
	return Change{}
}
