package harness

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/roach88/tabstore/internal/ir"
	"github.com/roach88/tabstore/internal/listener"
	"github.com/roach88/tabstore/internal/store"
)

// register adds the store listener described by spec. Every callback
// reports its concrete ids and a one-line description of its argument.
func (h *Harness) register(spec ListenerSpec) (string, error) {
	category, err := listener.ParseCategory(spec.Category)
	if err != nil {
		return "", err
	}
	st, p, m := h.store, spec.Path, spec.Mutator

	switch category {
	case listener.HasTables:
		return st.AddHasTablesListener(func(s *store.Store, has bool) {
			h.fired(s, spec, nil, strconv.FormatBool(has))
		}, m), nil
	case listener.Tables:
		return st.AddTablesListener(func(s *store.Store, get store.GetCellChange) {
			h.fired(s, spec, nil, changedCells(s, get, "", ""))
		}, m), nil
	case listener.TableIDs:
		return st.AddTableIDsListener(func(s *store.Store, get store.GetIDChanges) {
			h.fired(s, spec, nil, idChanges(get()))
		}, m), nil
	case listener.HasTable:
		return st.AddHasTableListener(p[0], func(s *store.Store, tableID string, has bool) {
			h.fired(s, spec, []string{tableID}, strconv.FormatBool(has))
		}, m), nil
	case listener.Table:
		return st.AddTableListener(p[0], func(s *store.Store, tableID string, get store.GetCellChange) {
			h.fired(s, spec, []string{tableID}, changedCells(s, get, tableID, ""))
		}, m), nil
	case listener.TableCellIDs:
		return st.AddTableCellIDsListener(p[0], func(s *store.Store, tableID string, get store.GetIDChanges) {
			h.fired(s, spec, []string{tableID}, idChanges(get()))
		}, m), nil
	case listener.HasTableCell:
		return st.AddHasTableCellListener(p[0], p[1], func(s *store.Store, tableID, cellID string, has bool) {
			h.fired(s, spec, []string{tableID, cellID}, strconv.FormatBool(has))
		}, m), nil
	case listener.RowCount:
		return st.AddRowCountListener(p[0], func(s *store.Store, tableID string, count int) {
			h.fired(s, spec, []string{tableID}, strconv.Itoa(count))
		}, m), nil
	case listener.RowIDs:
		return st.AddRowIDsListener(p[0], func(s *store.Store, tableID string, get store.GetIDChanges) {
			h.fired(s, spec, []string{tableID}, idChanges(get()))
		}, m), nil
	case listener.SortedRowIDs:
		return st.AddSortedRowIDsListener(p[0], p[1], spec.Descending, spec.Offset, spec.Limit,
			func(s *store.Store, tableID, cellID string, _ bool, _, _ int, rowIDs []string) {
				h.fired(s, spec, []string{tableID, cellID}, strings.Join(rowIDs, ","))
			}, m), nil
	case listener.HasRow:
		return st.AddHasRowListener(p[0], p[1], func(s *store.Store, tableID, rowID string, has bool) {
			h.fired(s, spec, []string{tableID, rowID}, strconv.FormatBool(has))
		}, m), nil
	case listener.Row:
		return st.AddRowListener(p[0], p[1], func(s *store.Store, tableID, rowID string, get store.GetCellChange) {
			h.fired(s, spec, []string{tableID, rowID}, changedCells(s, get, tableID, rowID))
		}, m), nil
	case listener.CellIDs:
		return st.AddCellIDsListener(p[0], p[1], func(s *store.Store, tableID, rowID string, get store.GetIDChanges) {
			h.fired(s, spec, []string{tableID, rowID}, idChanges(get()))
		}, m), nil
	case listener.HasCell:
		return st.AddHasCellListener(p[0], p[1], p[2], func(s *store.Store, tableID, rowID, cellID string, has bool) {
			h.fired(s, spec, []string{tableID, rowID, cellID}, strconv.FormatBool(has))
		}, m), nil
	case listener.Cell:
		return st.AddCellListener(p[0], p[1], p[2], func(s *store.Store, tableID, rowID, cellID string, newCell, oldCell ir.Scalar) {
			h.fired(s, spec, []string{tableID, rowID, cellID}, transition(oldCell, newCell))
		}, m), nil
	case listener.InvalidCell:
		return st.AddInvalidCellListener(p[0], p[1], p[2], func(s *store.Store, tableID, rowID, cellID string, invalid []any) {
			h.fired(s, spec, []string{tableID, rowID, cellID}, fmt.Sprintf("%v", invalid))
		}, m), nil
	case listener.HasValues:
		return st.AddHasValuesListener(func(s *store.Store, has bool) {
			h.fired(s, spec, nil, strconv.FormatBool(has))
		}, m), nil
	case listener.Values:
		return st.AddValuesListener(func(s *store.Store, get store.GetValueChange) {
			h.fired(s, spec, nil, changedValues(s, get))
		}, m), nil
	case listener.ValueIDs:
		return st.AddValueIDsListener(func(s *store.Store, get store.GetIDChanges) {
			h.fired(s, spec, nil, idChanges(get()))
		}, m), nil
	case listener.HasValue:
		return st.AddHasValueListener(p[0], func(s *store.Store, valueID string, has bool) {
			h.fired(s, spec, []string{valueID}, strconv.FormatBool(has))
		}, m), nil
	case listener.Value:
		return st.AddValueListener(p[0], func(s *store.Store, valueID string, newValue, oldValue ir.Scalar) {
			h.fired(s, spec, []string{valueID}, transition(oldValue, newValue))
		}, m), nil
	case listener.InvalidValue:
		return st.AddInvalidValueListener(p[0], func(s *store.Store, valueID string, invalid []any) {
			h.fired(s, spec, []string{valueID}, fmt.Sprintf("%v", invalid))
		}, m), nil
	case listener.StartTransaction:
		return st.AddStartTransactionListener(func(s *store.Store) {
			h.fired(s, spec, nil, "")
		}), nil
	case listener.WillFinishTransaction:
		return st.AddWillFinishTransactionListener(func(s *store.Store) {
			h.fired(s, spec, nil, "")
		}), nil
	case listener.DidFinishTransaction:
		return st.AddDidFinishTransactionListener(func(s *store.Store) {
			h.fired(s, spec, nil, "")
		}), nil
	}
	return "", fmt.Errorf("unsupported listener category %s", category)
}

// transition renders a cell or value change as "old -> new".
func transition(oldCell, newCell ir.Scalar) string {
	return string(ir.AppendScalarJSON(nil, oldCell)) + " -> " + string(ir.AppendScalarJSON(nil, newCell))
}

// idChanges renders an id delta as "+added -removed", sorted by id.
func idChanges(changes map[string]int) string {
	parts := make([]string, 0, len(changes))
	for _, id := range ir.SortedKeys(changes) {
		if changes[id] > 0 {
			parts = append(parts, "+"+id)
		} else {
			parts = append(parts, "-"+id)
		}
	}
	return strings.Join(parts, " ")
}

// changedCells lists the changed cells below tableID and rowID, as paths
// relative to that scope. An empty tableID means every table.
func changedCells(s *store.Store, get store.GetCellChange, tableID, rowID string) string {
	var paths []string
	for t, rows := range s.GetTransactionChanges().Tables {
		if tableID != "" && t != tableID {
			continue
		}
		for r, cells := range rows {
			if rowID != "" && r != rowID {
				continue
			}
			for c := range cells {
				if !get(t, r, c).Changed() {
					continue
				}
				path := []string{t, r, c}
				switch {
				case rowID != "":
					path = path[2:]
				case tableID != "":
					path = path[1:]
				}
				paths = append(paths, strings.Join(path, "/"))
			}
		}
	}
	slices.Sort(paths)
	return strings.Join(paths, ",")
}

// changedValues lists the changed value ids.
func changedValues(s *store.Store, get store.GetValueChange) string {
	var ids []string
	for v := range s.GetTransactionChanges().Values {
		if get(v).Changed() {
			ids = append(ids, v)
		}
	}
	slices.Sort(ids)
	return strings.Join(ids, ",")
}
