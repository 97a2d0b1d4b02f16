package indexes

import (
	"fmt"
	"slices"

	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/roach88/tabstore/internal/ir"
	"github.com/roach88/tabstore/internal/listener"
	"github.com/roach88/tabstore/internal/store"
)

// Listener categories.
const (
	SliceIDs listener.Category = listener.FirstCustom + iota
	SliceRowIDs
)

// SliceFunc returns the slices a row belongs to.
type SliceFunc func(getCell func(cellID string) ir.Scalar, rowID string) []string

// SliceIDsListener fires when the slice ids of an index change.
type SliceIDsListener func(ix *Indexes, indexID string)

// SliceRowIDsListener fires when the sorted row ids of a slice change.
type SliceRowIDsListener func(ix *Indexes, indexID, sliceID string)

type rowSet = orderedmap.OrderedMap[string, struct{}]

type definition struct {
	tableID    string
	slicer     SliceFunc
	sortCellID string
	descending bool

	slices    *orderedmap.OrderedMap[string, *rowSet]
	rowSlices map[string][]string

	storeListener string
}

// view is the last state listeners were told about.
type view struct {
	sliceIDs []string
	rows     map[string][]string
}

// Indexes maintains the indexes defined over one store. It is not safe for
// concurrent use.
type Indexes struct {
	store     *store.Store
	defs      *orderedmap.OrderedMap[string, *definition]
	published map[string]*view
	listeners *listener.Registry

	// slices touched in the current store transaction, per index
	dirty  *orderedmap.OrderedMap[string, map[string]bool]
	finish string
}

// New creates an Indexes object bound to st.
func New(st *store.Store) *Indexes {
	ix := &Indexes{
		store:     st,
		defs:      orderedmap.New[string, *definition](),
		published: make(map[string]*view),
		listeners: listener.NewRegistry(),
		dirty:     orderedmap.New[string, map[string]bool](),
	}
	ix.finish = st.AddDidFinishTransactionListener(func(*store.Store) { ix.flush() })
	return ix
}

// GetStore returns the underlying store.
func (ix *Indexes) GetStore() *store.Store {
	return ix.store
}

// SetIndexDefinition defines or replaces an index over tableID.
//
// slice selects the slices of a row: nil puts every row in the slice "", a
// string names the cell whose value is the slice id ("" when the cell is
// missing), and a SliceFunc returns any number of slice ids. sortCellID
// orders rows within a slice; "" keeps the order rows joined the slice.
func (ix *Indexes) SetIndexDefinition(indexID, tableID string, slice any, sortCellID string, descending bool) error {
	slicer, err := toSliceFunc(slice)
	if err != nil {
		return fmt.Errorf("index %q: %w", indexID, err)
	}

	ix.delDefinition(indexID)
	d := &definition{
		tableID:    tableID,
		slicer:     slicer,
		sortCellID: sortCellID,
		descending: descending,
		slices:     orderedmap.New[string, *rowSet](),
		rowSlices:  make(map[string][]string),
	}
	ix.defs.Set(indexID, d)
	for _, rowID := range ix.store.GetRowIDs(tableID) {
		ix.placeRow(d, rowID, nil)
	}
	d.storeListener = ix.store.AddRowListener(tableID, nil, func(_ *store.Store, _, rowID string, _ store.GetCellChange) {
		ix.placeRow(d, rowID, ix.dirtySlices(indexID))
	}, false)

	ix.publish(indexID, nil)
	return nil
}

func toSliceFunc(slice any) (SliceFunc, error) {
	switch s := slice.(type) {
	case nil:
		return func(func(string) ir.Scalar, string) []string { return []string{""} }, nil
	case string:
		return func(getCell func(string) ir.Scalar, _ string) []string {
			return []string{ir.ToID(getCell(s))}
		}, nil
	case SliceFunc:
		return s, nil
	case func(func(string) ir.Scalar, string) []string:
		return s, nil
	}
	return nil, fmt.Errorf("unsupported slice selector %T", slice)
}

// DelIndexDefinition removes an index. Listeners see every slice go away.
func (ix *Indexes) DelIndexDefinition(indexID string) {
	if !ix.HasIndex(indexID) {
		return
	}
	ix.delDefinition(indexID)
	ix.publish(indexID, nil)
}

func (ix *Indexes) delDefinition(indexID string) {
	if d, ok := ix.defs.Get(indexID); ok {
		ix.store.DelListener(d.storeListener)
		ix.defs.Delete(indexID)
		ix.dirty.Delete(indexID)
	}
}

func (ix *Indexes) dirtySlices(indexID string) map[string]bool {
	dirty, ok := ix.dirty.Get(indexID)
	if !ok {
		dirty = make(map[string]bool)
		ix.dirty.Set(indexID, dirty)
	}
	return dirty
}

// placeRow moves a row into the slices it now belongs to. Slices it leaves,
// joins or stays in are marked in dirty when dirty is non-nil.
func (ix *Indexes) placeRow(d *definition, rowID string, dirty map[string]bool) {
	var now []string
	if ix.store.HasRow(d.tableID, rowID) {
		getCell := func(cellID string) ir.Scalar { return ix.store.GetCell(d.tableID, rowID, cellID) }
		for _, sliceID := range d.slicer(getCell, rowID) {
			if !slices.Contains(now, sliceID) {
				now = append(now, sliceID)
			}
		}
	}
	before := d.rowSlices[rowID]

	for _, sliceID := range before {
		if slices.Contains(now, sliceID) {
			if dirty != nil && d.sortCellID != "" {
				dirty[sliceID] = true
			}
			continue
		}
		rows, _ := d.slices.Get(sliceID)
		rows.Delete(rowID)
		if rows.Len() == 0 {
			d.slices.Delete(sliceID)
		}
		if dirty != nil {
			dirty[sliceID] = true
		}
	}
	for _, sliceID := range now {
		if slices.Contains(before, sliceID) {
			continue
		}
		rows, ok := d.slices.Get(sliceID)
		if !ok {
			rows = orderedmap.New[string, struct{}]()
			d.slices.Set(sliceID, rows)
		}
		rows.Set(rowID, struct{}{})
		if dirty != nil {
			dirty[sliceID] = true
		}
	}

	if len(now) == 0 {
		delete(d.rowSlices, rowID)
	} else {
		d.rowSlices[rowID] = now
	}
}

// GetIndexIDs returns the defined index ids in definition order.
func (ix *Indexes) GetIndexIDs() []string {
	ids := make([]string, 0, ix.defs.Len())
	for pair := ix.defs.Oldest(); pair != nil; pair = pair.Next() {
		ids = append(ids, pair.Key)
	}
	return ids
}

// HasIndex reports whether an index is defined.
func (ix *Indexes) HasIndex(indexID string) bool {
	_, ok := ix.defs.Get(indexID)
	return ok
}

// GetTableID returns the table an index covers.
func (ix *Indexes) GetTableID(indexID string) (string, bool) {
	d, ok := ix.defs.Get(indexID)
	if !ok {
		return "", false
	}
	return d.tableID, true
}

// GetSliceIDs returns the slice ids of an index in the order slices first
// received a row.
func (ix *Indexes) GetSliceIDs(indexID string) []string {
	d, ok := ix.defs.Get(indexID)
	if !ok {
		return []string{}
	}
	ids := make([]string, 0, d.slices.Len())
	for pair := d.slices.Oldest(); pair != nil; pair = pair.Next() {
		ids = append(ids, pair.Key)
	}
	return ids
}

// HasSlice reports whether a slice holds any row.
func (ix *Indexes) HasSlice(indexID, sliceID string) bool {
	d, ok := ix.defs.Get(indexID)
	if !ok {
		return false
	}
	_, ok = d.slices.Get(sliceID)
	return ok
}

// GetSliceRowIDs returns the sorted row ids of one slice.
func (ix *Indexes) GetSliceRowIDs(indexID, sliceID string) []string {
	d, ok := ix.defs.Get(indexID)
	if !ok {
		return []string{}
	}
	return ix.sortedRows(d, sliceID)
}

func (ix *Indexes) sortedRows(d *definition, sliceID string) []string {
	rows, ok := d.slices.Get(sliceID)
	if !ok {
		return []string{}
	}
	ids := make([]string, 0, rows.Len())
	for pair := rows.Oldest(); pair != nil; pair = pair.Next() {
		ids = append(ids, pair.Key)
	}
	if d.sortCellID == "" {
		return ids
	}
	slices.SortStableFunc(ids, func(a, b string) int {
		cmp := ir.Compare(ix.store.GetCell(d.tableID, a, d.sortCellID), ix.store.GetCell(d.tableID, b, d.sortCellID))
		if d.descending {
			return -cmp
		}
		return cmp
	})
	return ids
}

// AddSliceIDsListener registers fn for one index, or every index when
// indexID is nil.
func (ix *Indexes) AddSliceIDsListener(indexID any, fn SliceIDsListener) string {
	return ix.listeners.Add(SliceIDs, listener.PathOf(indexID), fn, false, nil)
}

// AddSliceRowIDsListener registers fn for one slice; either id may be nil.
func (ix *Indexes) AddSliceRowIDsListener(indexID, sliceID any, fn SliceRowIDsListener) string {
	return ix.listeners.Add(SliceRowIDs, listener.PathOf(indexID, sliceID), fn, false, nil)
}

// DelListener removes an index listener.
func (ix *Indexes) DelListener(id string) {
	ix.listeners.Del(id)
}

// GetListenerStats returns the number of listeners per category.
func (ix *Indexes) GetListenerStats() map[string]int {
	return map[string]int{
		"sliceIds":    ix.listeners.Count(SliceIDs),
		"sliceRowIds": ix.listeners.Count(SliceRowIDs),
	}
}

// Destroy removes every definition and detaches from the store.
func (ix *Indexes) Destroy() {
	for _, id := range ix.GetIndexIDs() {
		ix.delDefinition(id)
	}
	ix.store.DelListener(ix.finish)
	ix.listeners.Clear()
	clear(ix.published)
}

func (ix *Indexes) flush() {
	dirty := ix.dirty
	ix.dirty = orderedmap.New[string, map[string]bool]()
	for pair := dirty.Oldest(); pair != nil; pair = pair.Next() {
		if len(pair.Value) > 0 {
			ix.publish(pair.Key, pair.Value)
		}
	}
}

// publish compares the index with what was last published and notifies
// listeners of the differences. A nil only compares every slice.
func (ix *Indexes) publish(indexID string, only map[string]bool) {
	last := ix.published[indexID]
	if last == nil {
		last = &view{rows: make(map[string][]string)}
	}
	next := &view{
		sliceIDs: ix.GetSliceIDs(indexID),
		rows:     make(map[string][]string, len(last.rows)),
	}
	for sliceID, rows := range last.rows {
		next.rows[sliceID] = rows
	}

	candidates := slices.Clone(last.sliceIDs)
	for _, sliceID := range next.sliceIDs {
		if !slices.Contains(candidates, sliceID) {
			candidates = append(candidates, sliceID)
		}
	}
	var changedSlices []string
	for _, sliceID := range candidates {
		if only != nil && !only[sliceID] {
			continue
		}
		rows := ix.GetSliceRowIDs(indexID, sliceID)
		if len(rows) == 0 {
			delete(next.rows, sliceID)
		} else {
			next.rows[sliceID] = rows
		}
		if !slices.Equal(rows, last.rows[sliceID]) {
			changedSlices = append(changedSlices, sliceID)
		}
	}
	ix.published[indexID] = next

	if !slices.Equal(next.sliceIDs, last.sliceIDs) {
		for _, l := range ix.listeners.Match(SliceIDs, indexID) {
			if ix.listeners.Alive(l) {
				l.Callback.(SliceIDsListener)(ix, indexID)
			}
		}
	}
	for _, sliceID := range changedSlices {
		for _, l := range ix.listeners.Match(SliceRowIDs, indexID, sliceID) {
			if ix.listeners.Alive(l) {
				l.Callback.(SliceRowIDsListener)(ix, indexID, sliceID)
			}
		}
	}
}
