package store

import (
	"slices"

	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/roach88/tabstore/internal/listener"
)

// payload computes a listener argument when the listener is about to be
// invoked. ok is false once the change it describes has netted out, which
// stops the remaining listeners for that path.
type payload func() (arg any, ok bool)

// dispatchMutators repeats the mutator pass until a pass records nothing
// new in the journal, so an entry written by one mutator reaches the
// mutators for its own path before any plain listener runs. The firing
// guard limits each repeat to (listener, path) pairs that have not fired.
func (s *Store) dispatchMutators(cutoff int64) {
	for {
		writes := s.journal.writes
		s.dispatch(true, cutoff)
		if s.journal.writes == writes {
			return
		}
	}
}

// dispatch notifies either the mutator or the plain listeners of the
// journal's net changes.
//
// Cell and value walks read the journal live: entries a listener adds are
// visited in the same walk, and a change reverted by an earlier listener is
// skipped. Id-set walks snapshot their ids when they start.
func (s *Store) dispatch(mutator bool, cutoff int64) {
	s.callInvalidCellListeners(mutator, cutoff)
	s.callTabularListeners(mutator, cutoff)
	s.callInvalidValueListeners(mutator, cutoff)
	s.callValuesListeners(mutator, cutoff)
}

func (s *Store) fire(category listener.Category, mutator bool, cutoff int64, ids []string, p payload) {
	for _, l := range s.listeners.Match(category, ids...) {
		if l.Mutator != mutator || l.Seq > cutoff || !s.listeners.Alive(l) {
			continue
		}
		if s.guard.WouldRefire(l.ID, ids) {
			continue
		}
		arg, ok := p()
		if !ok {
			return
		}
		s.guard.Record(l.ID, ids)
		s.invoke(l, ids, arg)
	}
}

// callIDsAndHas fires id-set listeners for prefix and then presence
// listeners for each changed id. It reports whether deltas held changes.
func (s *Store) callIDsAndHas(deltas *idDeltas, idsCategory, hasCategory listener.Category, prefix []string, mutator bool, cutoff int64) bool {
	if deltas == nil || deltas.Len() == 0 {
		return false
	}
	getIDChanges := GetIDChanges(func() map[string]int { return deltasToMap(deltas) })
	s.fire(idsCategory, mutator, cutoff, prefix, func() (any, bool) {
		return getIDChanges, deltas.Len() > 0
	})
	for _, id := range keys(deltas) {
		s.fire(hasCategory, mutator, cutoff, append(slices.Clone(prefix), id), func() (any, bool) {
			delta, ok := deltas.Get(id)
			return delta == 1, ok
		})
	}
	return true
}

func (s *Store) callInvalidCellListeners(mutator bool, cutoff int64) {
	if s.listeners.Count(listener.InvalidCell) == 0 {
		return
	}
	j := s.journal
	for _, t := range keys(j.invalidCells) {
		rows, _ := j.invalidCells.Get(t)
		for _, r := range keys(rows) {
			cells, _ := rows.Get(r)
			for _, c := range keys(cells) {
				s.fire(listener.InvalidCell, mutator, cutoff, []string{t, r, c}, func() (any, bool) {
					list, _ := cells.Get(c)
					return slices.Clone(list), true
				})
			}
		}
	}
}

func (s *Store) callInvalidValueListeners(mutator bool, cutoff int64) {
	if s.listeners.Count(listener.InvalidValue) == 0 {
		return
	}
	j := s.journal
	for _, v := range keys(j.invalidValues) {
		s.fire(listener.InvalidValue, mutator, cutoff, []string{v}, func() (any, bool) {
			list, _ := j.invalidValues.Get(v)
			return slices.Clone(list), true
		})
	}
}

func (s *Store) callTabularListeners(mutator bool, cutoff int64) {
	j := s.journal

	s.fire(listener.HasTables, mutator, cutoff, nil, func() (any, bool) {
		has := s.HasTables()
		return has, has != s.hadTables
	})

	s.callIDsAndHas(j.tableIDs, listener.TableIDs, listener.HasTable, nil, mutator, cutoff)

	for _, t := range keys(j.tableCellIDs) {
		deltas, _ := j.tableCellIDs.Get(t)
		s.callIDsAndHas(deltas, listener.TableCellIDs, listener.HasTableCell, []string{t}, mutator, cutoff)
	}

	for _, t := range keys(j.rowCount) {
		s.fire(listener.RowCount, mutator, cutoff, []string{t}, func() (any, bool) {
			delta, _ := j.rowCount.Get(t)
			return s.GetRowCount(t), delta != 0
		})
	}

	sorted := s.listeners.Count(listener.SortedRowIDs) > 0
	sortedTables := make(map[string]bool)
	for _, t := range keys(j.rowIDs) {
		deltas, _ := j.rowIDs.Get(t)
		if s.callIDsAndHas(deltas, listener.RowIDs, listener.HasRow, []string{t}, mutator, cutoff) && sorted {
			s.fireSorted(listener.Path{listener.Exact(t), listener.Any}, mutator, cutoff)
			sortedTables[t] = true
		}
	}
	if sorted {
		for _, t := range keys(j.cells) {
			if sortedTables[t] {
				continue
			}
			rows, _ := j.cells.Get(t)
			for _, c := range changedCellIDs(rows) {
				s.fireSorted(listener.PathOf(t, c), mutator, cutoff)
			}
		}
	}

	for _, t := range keys(j.cellIDs) {
		rows, _ := j.cellIDs.Get(t)
		for _, r := range keys(rows) {
			deltas, _ := rows.Get(r)
			s.callIDsAndHas(deltas, listener.CellIDs, listener.HasCell, []string{t, r}, mutator, cutoff)
		}
	}

	getCellChange := GetCellChange(s.getCellChange)
	tablesChanged := false
	each(j.cells, func(t string, rows *orderedmap.OrderedMap[string, *orderedmap.OrderedMap[string, *change]]) {
		tableChanged := false
		each(rows, func(r string, cells *orderedmap.OrderedMap[string, *change]) {
			rowChanged := false
			each(cells, func(c string, ch *change) {
				if !ch.net() {
					return
				}
				s.fire(listener.Cell, mutator, cutoff, []string{t, r, c}, func() (any, bool) {
					return Change{Old: ch.old, New: ch.new}, ch.net()
				})
				if ch.net() {
					rowChanged = true
				}
			})
			if rowChanged {
				tableChanged = true
				s.fire(listener.Row, mutator, cutoff, []string{t, r}, func() (any, bool) {
					return getCellChange, anyNet(cells)
				})
			}
		})
		if tableChanged {
			tablesChanged = true
			s.fire(listener.Table, mutator, cutoff, []string{t}, func() (any, bool) {
				return getCellChange, true
			})
		}
	})
	if tablesChanged {
		s.fire(listener.Tables, mutator, cutoff, nil, func() (any, bool) {
			return getCellChange, j.hasNetCells()
		})
	}
}

func (s *Store) callValuesListeners(mutator bool, cutoff int64) {
	j := s.journal

	s.fire(listener.HasValues, mutator, cutoff, nil, func() (any, bool) {
		has := s.HasValues()
		return has, has != s.hadValues
	})

	s.callIDsAndHas(j.valueIDs, listener.ValueIDs, listener.HasValue, nil, mutator, cutoff)

	valuesChanged := false
	each(j.values, func(v string, ch *change) {
		if !ch.net() {
			return
		}
		s.fire(listener.Value, mutator, cutoff, []string{v}, func() (any, bool) {
			return Change{Old: ch.old, New: ch.new}, ch.net()
		})
		if ch.net() {
			valuesChanged = true
		}
	})
	if valuesChanged {
		s.fire(listener.Values, mutator, cutoff, nil, func() (any, bool) {
			return GetValueChange(s.getValueChange), j.hasNetValues()
		})
	}
}

// fireSorted re-sorts for every sorted row ids listener matching query and
// notifies those whose result changed.
func (s *Store) fireSorted(query listener.Path, mutator bool, cutoff int64) {
	for _, l := range s.listeners.MatchPath(listener.SortedRowIDs, query) {
		if l.Mutator != mutator || l.Seq > cutoff || !s.listeners.Alive(l) {
			continue
		}
		ids := []string{query[0].ID}
		if s.guard.WouldRefire(l.ID, ids) {
			continue
		}
		sl := l.Callback.(*sortedListener)
		if sl.refresh(s) {
			s.guard.Record(l.ID, ids)
			sl.call(s)
		}
	}
}

func changedCellIDs(rows *orderedmap.OrderedMap[string, *orderedmap.OrderedMap[string, *change]]) []string {
	seen := make(map[string]bool)
	var out []string
	for r := rows.Oldest(); r != nil; r = r.Next() {
		for c := r.Value.Oldest(); c != nil; c = c.Next() {
			if c.Value.net() && !seen[c.Key] {
				seen[c.Key] = true
				out = append(out, c.Key)
			}
		}
	}
	return out
}

func anyNet(cells *orderedmap.OrderedMap[string, *change]) bool {
	for c := cells.Oldest(); c != nil; c = c.Next() {
		if c.Value.net() {
			return true
		}
	}
	return false
}
