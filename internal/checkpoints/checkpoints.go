package checkpoints

import (
	"slices"
	"strconv"

	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/roach88/tabstore/internal/ir"
	"github.com/roach88/tabstore/internal/listener"
	"github.com/roach88/tabstore/internal/store"
)

// DefaultSize is the number of backward checkpoints kept.
const DefaultSize = 100

// Listener categories.
const (
	CheckpointIDs listener.Category = listener.FirstCustom + iota
	Checkpoint
)

// CheckpointIDsListener fires when the backward, current or forward ids
// change.
type CheckpointIDsListener func(c *Checkpoints)

// CheckpointListener fires when the label of a checkpoint changes.
type CheckpointListener func(c *Checkpoints, checkpointID string)

// IDs is the shape of the history. Current is "" while changes are pending.
type IDs struct {
	Backward []string
	Current  string
	Forward  []string
}

type cellKey struct {
	tableID, rowID, cellID string
}

type delta struct {
	cells  *orderedmap.OrderedMap[cellKey, store.Change]
	values *orderedmap.OrderedMap[string, store.Change]
}

func newDelta() *delta {
	return &delta{
		cells:  orderedmap.New[cellKey, store.Change](),
		values: orderedmap.New[string, store.Change](),
	}
}

func record[K comparable](m *orderedmap.OrderedMap[K, store.Change], key K, newCell, oldCell ir.Scalar) {
	change, ok := m.Get(key)
	if !ok {
		change.Old = oldCell
	}
	change.New = newCell
	if change.Changed() {
		m.Set(key, change)
	} else {
		m.Delete(key)
	}
}

// Checkpoints holds the history of one store. It is not safe for
// concurrent use.
type Checkpoints struct {
	store     *store.Store
	listeners *listener.Registry

	backward []string
	current  string
	forward  []string
	deltas   map[string]*delta
	labels   map[string]string
	pending  *delta
	nextID   int
	size     int

	applying   bool
	idsChanged bool
	relabeled  []string

	storeListeners []string
}

// New creates a Checkpoints object for st with checkpoint "0" as current.
func New(st *store.Store) *Checkpoints {
	c := &Checkpoints{
		store:     st,
		listeners: listener.NewRegistry(),
		size:      DefaultSize,
	}
	c.reset()
	c.storeListeners = []string{
		st.AddCellListener(nil, nil, nil, func(_ *store.Store, tableID, rowID, cellID string, newCell, oldCell ir.Scalar) {
			if c.listening() {
				record(c.pending.cells, cellKey{tableID, rowID, cellID}, newCell, oldCell)
			}
		}, false),
		st.AddValueListener(nil, func(_ *store.Store, valueID string, newValue, oldValue ir.Scalar) {
			if c.listening() {
				record(c.pending.values, valueID, newValue, oldValue)
			}
		}, false),
		st.AddDidFinishTransactionListener(func(*store.Store) {
			if !c.applying {
				c.notify()
			}
		}),
	}
	return c
}

func (c *Checkpoints) reset() {
	c.backward = nil
	c.forward = nil
	c.deltas = map[string]*delta{}
	c.labels = map[string]string{}
	c.pending = newDelta()
	c.nextID = 0
	c.current = c.newID()
	c.deltas[c.current] = newDelta()
}

func (c *Checkpoints) newID() string {
	id := strconv.Itoa(c.nextID)
	c.nextID++
	return id
}

// listening is called for every recorded change. The first change after a
// checkpoint moves that checkpoint onto the backward list.
func (c *Checkpoints) listening() bool {
	if c.applying {
		return false
	}
	if c.current != "" {
		c.backward = append(c.backward, c.current)
		c.current = ""
		c.trim()
		c.dropForward()
		c.idsChanged = true
	}
	return true
}

// GetStore returns the underlying store.
func (c *Checkpoints) GetStore() *store.Store {
	return c.store
}

// SetSize sets how many backward checkpoints are kept and trims the
// history to fit.
func (c *Checkpoints) SetSize(size int) {
	c.size = size
	c.trim()
	c.notify()
}

func (c *Checkpoints) trim() {
	if c.size < 0 || len(c.backward) <= c.size {
		return
	}
	drop := len(c.backward) - c.size
	for _, id := range c.backward[:drop] {
		c.forget(id)
	}
	c.backward = slices.Clone(c.backward[drop:])
	c.idsChanged = true
}

func (c *Checkpoints) forget(id string) {
	delete(c.deltas, id)
	delete(c.labels, id)
}

func (c *Checkpoints) dropForward() {
	if len(c.forward) == 0 {
		return
	}
	for _, id := range c.forward {
		c.forget(id)
	}
	c.forward = nil
	c.idsChanged = true
}

// AddCheckpoint seals pending changes into a new checkpoint and returns its
// id. Without pending changes it returns the current id, relabeling it when
// label is not empty.
func (c *Checkpoints) AddCheckpoint(label string) string {
	id := c.seal(label)
	if c.current == id && label != "" {
		c.setLabel(id, label)
	}
	c.notify()
	return id
}

func (c *Checkpoints) seal(label string) string {
	if c.current != "" {
		return c.current
	}
	id := c.newID()
	c.deltas[id] = c.pending
	c.pending = newDelta()
	c.current = id
	c.idsChanged = true
	c.setLabel(id, label)
	return id
}

// SetCheckpoint relabels a checkpoint. It reports false for unknown ids.
func (c *Checkpoints) SetCheckpoint(checkpointID, label string) bool {
	if _, ok := c.deltas[checkpointID]; !ok {
		return false
	}
	c.setLabel(checkpointID, label)
	c.notify()
	return true
}

func (c *Checkpoints) setLabel(id, label string) {
	if c.labels[id] == label {
		return
	}
	c.labels[id] = label
	c.relabeled = append(c.relabeled, id)
}

// GetCheckpoint returns the label of a checkpoint.
func (c *Checkpoints) GetCheckpoint(checkpointID string) (string, bool) {
	if _, ok := c.deltas[checkpointID]; !ok {
		return "", false
	}
	return c.labels[checkpointID], true
}

// HasCheckpoint reports whether a checkpoint is in the history.
func (c *Checkpoints) HasCheckpoint(checkpointID string) bool {
	_, ok := c.deltas[checkpointID]
	return ok
}

// GetCheckpointIDs returns a copy of the history.
func (c *Checkpoints) GetCheckpointIDs() IDs {
	return IDs{
		Backward: append([]string{}, c.backward...),
		Current:  c.current,
		Forward:  append([]string{}, c.forward...),
	}
}

// GoBackward seals pending changes, then reverts the current checkpoint.
func (c *Checkpoints) GoBackward() {
	c.goBackward()
	c.notify()
}

func (c *Checkpoints) goBackward() bool {
	if len(c.backward) == 0 {
		return false
	}
	id := c.seal("")
	c.apply(c.deltas[id], false)
	c.forward = append([]string{id}, c.forward...)
	c.current = c.backward[len(c.backward)-1]
	c.backward = c.backward[:len(c.backward)-1]
	c.idsChanged = true
	return true
}

// GoForward reapplies the next forward checkpoint.
func (c *Checkpoints) GoForward() {
	c.goForward()
	c.notify()
}

func (c *Checkpoints) goForward() bool {
	if len(c.forward) == 0 || c.current == "" {
		return false
	}
	id := c.forward[0]
	c.forward = c.forward[1:]
	c.backward = append(c.backward, c.current)
	c.current = id
	c.apply(c.deltas[id], true)
	c.idsChanged = true
	return true
}

// GoTo moves backward or forward until checkpointID is current. Unknown ids
// are ignored.
func (c *Checkpoints) GoTo(checkpointID string) {
	switch {
	case slices.Contains(c.backward, checkpointID):
		for c.current != checkpointID && c.goBackward() {
		}
	case slices.Contains(c.forward, checkpointID):
		for c.current != checkpointID && c.goForward() {
		}
	}
	c.notify()
}

// ClearForward discards the forward checkpoints.
func (c *Checkpoints) ClearForward() {
	c.dropForward()
	c.notify()
}

// Clear discards the whole history. The store's state becomes checkpoint
// "0".
func (c *Checkpoints) Clear() {
	c.reset()
	c.idsChanged = true
	c.notify()
}

func (c *Checkpoints) apply(d *delta, forward bool) {
	side := func(change store.Change) ir.Scalar {
		if forward {
			return change.New
		}
		return change.Old
	}
	c.applying = true
	defer func() { c.applying = false }()
	c.store.Transaction(func() {
		for pair := d.cells.Oldest(); pair != nil; pair = pair.Next() {
			k := pair.Key
			if cell := side(pair.Value); cell == nil {
				c.store.DelCell(k.tableID, k.rowID, k.cellID, true)
			} else {
				c.store.SetCell(k.tableID, k.rowID, k.cellID, cell)
			}
		}
		for pair := d.values.Oldest(); pair != nil; pair = pair.Next() {
			if value := side(pair.Value); value == nil {
				c.store.DelValue(pair.Key)
			} else {
				c.store.SetValue(pair.Key, value)
			}
		}
	}, nil)
}

// AddCheckpointIDsListener registers fn for history changes.
func (c *Checkpoints) AddCheckpointIDsListener(fn CheckpointIDsListener) string {
	return c.listeners.Add(CheckpointIDs, nil, fn, false, nil)
}

// AddCheckpointListener registers fn for label changes of one checkpoint,
// or of every checkpoint when checkpointID is nil.
func (c *Checkpoints) AddCheckpointListener(checkpointID any, fn CheckpointListener) string {
	return c.listeners.Add(Checkpoint, listener.PathOf(checkpointID), fn, false, nil)
}

// DelListener removes a checkpoints listener.
func (c *Checkpoints) DelListener(id string) {
	c.listeners.Del(id)
}

// GetListenerStats returns the number of listeners per category.
func (c *Checkpoints) GetListenerStats() map[string]int {
	return map[string]int{
		"checkpointIds": c.listeners.Count(CheckpointIDs),
		"checkpoint":    c.listeners.Count(Checkpoint),
	}
}

// Destroy detaches from the store and drops every listener.
func (c *Checkpoints) Destroy() {
	for _, id := range c.storeListeners {
		c.store.DelListener(id)
	}
	c.storeListeners = nil
	c.listeners.Clear()
}

func (c *Checkpoints) notify() {
	if c.idsChanged {
		c.idsChanged = false
		for _, l := range c.listeners.All(CheckpointIDs) {
			if c.listeners.Alive(l) {
				l.Callback.(CheckpointIDsListener)(c)
			}
		}
	}
	relabeled := c.relabeled
	c.relabeled = nil
	for _, id := range relabeled {
		for _, l := range c.listeners.Match(Checkpoint, id) {
			if c.listeners.Alive(l) {
				l.Callback.(CheckpointListener)(c, id)
			}
		}
	}
}
