package store

import (
	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/roach88/tabstore/internal/ir"
)

type idDeltas = orderedmap.OrderedMap[string, int]

// change holds the first old and the latest new scalar seen for one cell or
// value in a transaction. A nil scalar means absent.
type change struct {
	old, new ir.Scalar
}

func (c *change) net() bool {
	return c.old != c.new
}

// journal records the effect of the open transaction as it is applied.
type journal struct {
	tableIDs     *idDeltas
	tableCellIDs *orderedmap.OrderedMap[string, *idDeltas]
	rowCount     *orderedmap.OrderedMap[string, int]
	rowIDs       *orderedmap.OrderedMap[string, *idDeltas]
	cellIDs      *orderedmap.OrderedMap[string, *orderedmap.OrderedMap[string, *idDeltas]]
	cells        *orderedmap.OrderedMap[string, *orderedmap.OrderedMap[string, *orderedmap.OrderedMap[string, *change]]]
	invalidCells *orderedmap.OrderedMap[string, *orderedmap.OrderedMap[string, *orderedmap.OrderedMap[string, []any]]]

	valueIDs      *idDeltas
	values        *orderedmap.OrderedMap[string, *change]
	invalidValues *orderedmap.OrderedMap[string, []any]

	// writes counts every entry recorded, across transactions.
	writes int
}

func newJournal() *journal {
	j := &journal{}
	j.clear()
	return j
}

func (j *journal) clear() {
	j.tableIDs = newMap[int]()
	j.tableCellIDs = newMap[*idDeltas]()
	j.rowCount = newMap[int]()
	j.rowIDs = newMap[*idDeltas]()
	j.cellIDs = newMap[*orderedmap.OrderedMap[string, *idDeltas]]()
	j.clearCells()
	j.invalidCells = newMap[*orderedmap.OrderedMap[string, *orderedmap.OrderedMap[string, []any]]]()
	j.valueIDs = newMap[int]()
	j.clearValues()
	j.invalidValues = newMap[[]any]()
}

func (j *journal) clearCells() {
	j.cells = newMap[*orderedmap.OrderedMap[string, *orderedmap.OrderedMap[string, *change]]]()
}

func (j *journal) clearValues() {
	j.values = newMap[*change]()
}

// idsChanged folds a +1/-1 presence delta into deltas. Opposite deltas
// cancel and remove the entry.
func idsChanged(deltas *idDeltas, id string, addedOrRemoved int) {
	if cur, ok := deltas.Get(id); ok && cur == -addedOrRemoved {
		deltas.Delete(id)
		return
	}
	deltas.Set(id, addedOrRemoved)
}

func (j *journal) tableIDsChanged(tableID string, addedOrRemoved int) {
	j.writes++
	idsChanged(j.tableIDs, tableID, addedOrRemoved)
}

func (j *journal) rowIDsChanged(tableID, rowID string, addedOrRemoved int) {
	j.writes++
	idsChanged(ensure(j.rowIDs, tableID, newMap[int]), rowID, addedOrRemoved)
	count, _ := j.rowCount.Get(tableID)
	j.rowCount.Set(tableID, count+addedOrRemoved)
}

func (j *journal) cellIDsChanged(table *tableMap, tableID, rowID, cellID string, addedOrRemoved int) {
	j.writes++
	count, _ := table.cellIDs.Get(cellID)
	if (count == 0 && addedOrRemoved == 1) || (count == 1 && addedOrRemoved == -1) {
		idsChanged(ensure(j.tableCellIDs, tableID, newMap[int]), cellID, addedOrRemoved)
	}
	if count+addedOrRemoved == 0 {
		table.cellIDs.Delete(cellID)
	} else {
		table.cellIDs.Set(cellID, count+addedOrRemoved)
	}
	rows := ensure(j.cellIDs, tableID, newMap[*idDeltas])
	idsChanged(ensure(rows, rowID, newMap[int]), cellID, addedOrRemoved)
}

func (j *journal) cellChanged(tableID, rowID, cellID string, oldCell, newCell ir.Scalar) {
	j.writes++
	rows := ensure(j.cells, tableID, newMap[*orderedmap.OrderedMap[string, *change]])
	cells := ensure(rows, rowID, newMap[*change])
	ensure(cells, cellID, func() *change { return &change{old: oldCell} }).new = newCell
}

func (j *journal) cellInvalid(tableID, rowID, cellID string, invalidCell any) {
	j.writes++
	rows := ensure(j.invalidCells, tableID, newMap[*orderedmap.OrderedMap[string, []any]])
	cells := ensure(rows, rowID, newMap[[]any])
	list, _ := cells.Get(cellID)
	cells.Set(cellID, append(list, invalidCell))
}

func (j *journal) valueIDsChanged(valueID string, addedOrRemoved int) {
	j.writes++
	idsChanged(j.valueIDs, valueID, addedOrRemoved)
}

func (j *journal) valueChanged(valueID string, oldValue, newValue ir.Scalar) {
	j.writes++
	ensure(j.values, valueID, func() *change { return &change{old: oldValue} }).new = newValue
}

func (j *journal) valueInvalid(valueID string, invalidValue any) {
	j.writes++
	list, _ := j.invalidValues.Get(valueID)
	j.invalidValues.Set(valueID, append(list, invalidValue))
}

// cellChange reads the live journal entry for one cell.
func (j *journal) cellChange(tableID, rowID, cellID string) (*change, bool) {
	rows, ok := j.cells.Get(tableID)
	if !ok {
		return nil, false
	}
	cells, ok := rows.Get(rowID)
	if !ok {
		return nil, false
	}
	return cells.Get(cellID)
}

func (j *journal) hasNetCells() bool {
	for t := j.cells.Oldest(); t != nil; t = t.Next() {
		for r := t.Value.Oldest(); r != nil; r = r.Next() {
			for c := r.Value.Oldest(); c != nil; c = c.Next() {
				if c.Value.net() {
					return true
				}
			}
		}
	}
	return false
}

func (j *journal) hasNetValues() bool {
	for v := j.values.Oldest(); v != nil; v = v.Next() {
		if v.Value.net() {
			return true
		}
	}
	return false
}

func deltasToMap(deltas *idDeltas) map[string]int {
	out := make(map[string]int)
	if deltas == nil {
		return out
	}
	for pair := deltas.Oldest(); pair != nil; pair = pair.Next() {
		out[pair.Key] = pair.Value
	}
	return out
}
