package relationships

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
	RemoteRowID listener.Category = listener.FirstCustom + iota
	LocalRowIDs
	LinkedRowIDs
)

// RemoteRowFunc returns the remote row id a local row points at, or "" for
// none.
type RemoteRowFunc func(getCell func(cellID string) ir.Scalar, localRowID string) string

// RemoteRowIDListener fires when the remote row of a local row changes.
type RemoteRowIDListener func(r *Relationships, relationshipID, localRowID string)

// LocalRowIDsListener fires when the local rows pointing at a remote row
// change.
type LocalRowIDsListener func(r *Relationships, relationshipID, remoteRowID string)

// LinkedRowIDsListener fires when the linked list starting at a row changes.
type LinkedRowIDsListener func(r *Relationships, relationshipID, firstRowID string)

type rowSet = orderedmap.OrderedMap[string, struct{}]

type definition struct {
	localTableID  string
	remoteTableID string
	remote        RemoteRowFunc

	remoteOf *orderedmap.OrderedMap[string, string]
	localsOf *orderedmap.OrderedMap[string, *rowSet]

	storeListener string
}

// pending holds, per relationship, the state of every link touched in the
// current store transaction as it was when the transaction started.
type pending struct {
	remote *orderedmap.OrderedMap[string, string]
	locals *orderedmap.OrderedMap[string, []string]
}

func newPending() *pending {
	return &pending{
		remote: orderedmap.New[string, string](),
		locals: orderedmap.New[string, []string](),
	}
}

// linkedState remembers what a linked row ids listener was last told.
type linkedState struct {
	last []string
}

// Relationships maintains the relationships defined over one store. It is
// not safe for concurrent use.
type Relationships struct {
	store     *store.Store
	defs      *orderedmap.OrderedMap[string, *definition]
	listeners *listener.Registry

	dirty  *orderedmap.OrderedMap[string, *pending]
	finish string
}

// New creates a Relationships object bound to st.
func New(st *store.Store) *Relationships {
	r := &Relationships{
		store:     st,
		defs:      orderedmap.New[string, *definition](),
		listeners: listener.NewRegistry(),
		dirty:     orderedmap.New[string, *pending](),
	}
	r.finish = st.AddDidFinishTransactionListener(func(*store.Store) { r.flush() })
	return r
}

// GetStore returns the underlying store.
func (r *Relationships) GetStore() *store.Store {
	return r.store
}

// SetRelationshipDefinition defines or replaces a relationship. remote is
// the id of the local cell holding the remote row id, or a RemoteRowFunc.
func (r *Relationships) SetRelationshipDefinition(relationshipID, localTableID, remoteTableID string, remote any) error {
	fn, err := toRemoteRowFunc(remote)
	if err != nil {
		return fmt.Errorf("relationship %q: %w", relationshipID, err)
	}

	p := r.snapshot(relationshipID)
	r.delDefinition(relationshipID)
	d := &definition{
		localTableID:  localTableID,
		remoteTableID: remoteTableID,
		remote:        fn,
		remoteOf:      orderedmap.New[string, string](),
		localsOf:      orderedmap.New[string, *rowSet](),
	}
	r.defs.Set(relationshipID, d)
	for _, rowID := range r.store.GetRowIDs(localTableID) {
		r.link(d, rowID, nil)
	}
	for pair := d.remoteOf.Oldest(); pair != nil; pair = pair.Next() {
		remember(p, pair.Key, "", pair.Value, nil)
	}
	d.storeListener = r.store.AddRowListener(localTableID, nil, func(_ *store.Store, _, rowID string, _ store.GetCellChange) {
		r.link(d, rowID, r.pendingFor(relationshipID))
	}, false)

	r.notify(relationshipID, p)
	return nil
}

func toRemoteRowFunc(remote any) (RemoteRowFunc, error) {
	switch fn := remote.(type) {
	case string:
		return func(getCell func(string) ir.Scalar, _ string) string {
			cell := getCell(fn)
			if cell == nil {
				return ""
			}
			return ir.ToID(cell)
		}, nil
	case RemoteRowFunc:
		return fn, nil
	case func(func(string) ir.Scalar, string) string:
		return fn, nil
	}
	return nil, fmt.Errorf("unsupported remote row selector %T", remote)
}

// snapshot records the current links of a relationship as the "before"
// state for a definition change.
func (r *Relationships) snapshot(relationshipID string) *pending {
	p := newPending()
	d, ok := r.defs.Get(relationshipID)
	if !ok {
		return p
	}
	for pair := d.remoteOf.Oldest(); pair != nil; pair = pair.Next() {
		remember(p, pair.Key, pair.Value, "", d)
	}
	return p
}

// remember records the starting state of a local row's link and of the
// remote rows it touches, keeping the first record per row.
func remember(p *pending, localRowID, oldRemote, newRemote string, d *definition) {
	if _, ok := p.remote.Get(localRowID); !ok {
		p.remote.Set(localRowID, oldRemote)
	}
	for _, remoteRowID := range []string{oldRemote, newRemote} {
		if remoteRowID == "" {
			continue
		}
		if _, ok := p.locals.Get(remoteRowID); ok {
			continue
		}
		var locals []string
		if d != nil {
			locals = localRowIDs(d, remoteRowID)
		}
		p.locals.Set(remoteRowID, locals)
	}
}

// DelRelationshipDefinition removes a relationship.
func (r *Relationships) DelRelationshipDefinition(relationshipID string) {
	if !r.HasRelationship(relationshipID) {
		return
	}
	p := r.snapshot(relationshipID)
	r.delDefinition(relationshipID)
	r.notify(relationshipID, p)
}

func (r *Relationships) delDefinition(relationshipID string) {
	if d, ok := r.defs.Get(relationshipID); ok {
		r.store.DelListener(d.storeListener)
		r.defs.Delete(relationshipID)
		r.dirty.Delete(relationshipID)
	}
}

func (r *Relationships) pendingFor(relationshipID string) *pending {
	p, ok := r.dirty.Get(relationshipID)
	if !ok {
		p = newPending()
		r.dirty.Set(relationshipID, p)
	}
	return p
}

// link recomputes the remote row of one local row.
func (r *Relationships) link(d *definition, localRowID string, p *pending) {
	next := ""
	if r.store.HasRow(d.localTableID, localRowID) {
		getCell := func(cellID string) ir.Scalar { return r.store.GetCell(d.localTableID, localRowID, cellID) }
		next = d.remote(getCell, localRowID)
	}
	prev, _ := d.remoteOf.Get(localRowID)
	if prev == next {
		return
	}
	if p != nil {
		remember(p, localRowID, prev, next, d)
	}

	if prev != "" {
		locals, _ := d.localsOf.Get(prev)
		locals.Delete(localRowID)
		if locals.Len() == 0 {
			d.localsOf.Delete(prev)
		}
	}
	if next == "" {
		d.remoteOf.Delete(localRowID)
		return
	}
	d.remoteOf.Set(localRowID, next)
	locals, ok := d.localsOf.Get(next)
	if !ok {
		locals = orderedmap.New[string, struct{}]()
		d.localsOf.Set(next, locals)
	}
	locals.Set(localRowID, struct{}{})
}

// GetRelationshipIDs returns the defined relationship ids in definition
// order.
func (r *Relationships) GetRelationshipIDs() []string {
	ids := make([]string, 0, r.defs.Len())
	for pair := r.defs.Oldest(); pair != nil; pair = pair.Next() {
		ids = append(ids, pair.Key)
	}
	return ids
}

// HasRelationship reports whether a relationship is defined.
func (r *Relationships) HasRelationship(relationshipID string) bool {
	_, ok := r.defs.Get(relationshipID)
	return ok
}

// GetLocalTableID returns the table whose rows point at remote rows.
func (r *Relationships) GetLocalTableID(relationshipID string) (string, bool) {
	d, ok := r.defs.Get(relationshipID)
	if !ok {
		return "", false
	}
	return d.localTableID, true
}

// GetRemoteTableID returns the table the links point into.
func (r *Relationships) GetRemoteTableID(relationshipID string) (string, bool) {
	d, ok := r.defs.Get(relationshipID)
	if !ok {
		return "", false
	}
	return d.remoteTableID, true
}

// GetRemoteRowID returns the remote row a local row points at. The remote
// row need not exist.
func (r *Relationships) GetRemoteRowID(relationshipID, localRowID string) (string, bool) {
	d, ok := r.defs.Get(relationshipID)
	if !ok {
		return "", false
	}
	return d.remoteOf.Get(localRowID)
}

// GetLocalRowIDs returns the local rows pointing at a remote row, in the
// order they started pointing at it.
func (r *Relationships) GetLocalRowIDs(relationshipID, remoteRowID string) []string {
	d, ok := r.defs.Get(relationshipID)
	if !ok {
		return []string{}
	}
	return localRowIDs(d, remoteRowID)
}

func localRowIDs(d *definition, remoteRowID string) []string {
	locals, ok := d.localsOf.Get(remoteRowID)
	if !ok {
		return []string{}
	}
	ids := make([]string, 0, locals.Len())
	for pair := locals.Oldest(); pair != nil; pair = pair.Next() {
		ids = append(ids, pair.Key)
	}
	return ids
}

// GetLinkedRowIDs follows links from firstRowID and returns the rows
// visited, starting with firstRowID. The walk stops at a row without a
// link or at the first row seen before.
func (r *Relationships) GetLinkedRowIDs(relationshipID, firstRowID string) []string {
	ids := []string{firstRowID}
	d, ok := r.defs.Get(relationshipID)
	if !ok {
		return ids
	}
	seen := map[string]bool{firstRowID: true}
	for cur := firstRowID; ; {
		next, ok := d.remoteOf.Get(cur)
		if !ok || seen[next] {
			return ids
		}
		seen[next] = true
		ids = append(ids, next)
		cur = next
	}
}

// AddRemoteRowIDListener registers fn for the link of a local row; either id
// may be nil.
func (r *Relationships) AddRemoteRowIDListener(relationshipID, localRowID any, fn RemoteRowIDListener) string {
	return r.listeners.Add(RemoteRowID, listener.PathOf(relationshipID, localRowID), fn, false, nil)
}

// AddLocalRowIDsListener registers fn for the local rows of a remote row;
// either id may be nil.
func (r *Relationships) AddLocalRowIDsListener(relationshipID, remoteRowID any, fn LocalRowIDsListener) string {
	return r.listeners.Add(LocalRowIDs, listener.PathOf(relationshipID, remoteRowID), fn, false, nil)
}

// AddLinkedRowIDsListener registers fn for the linked list starting at
// firstRowID. Both ids are required.
func (r *Relationships) AddLinkedRowIDsListener(relationshipID, firstRowID string, fn LinkedRowIDsListener) string {
	state := &linkedState{last: r.GetLinkedRowIDs(relationshipID, firstRowID)}
	return r.listeners.Add(LinkedRowIDs, listener.PathOf(relationshipID, firstRowID), fn, false, state)
}

// DelListener removes a relationship listener.
func (r *Relationships) DelListener(id string) {
	r.listeners.Del(id)
}

// GetListenerStats returns the number of listeners per category.
func (r *Relationships) GetListenerStats() map[string]int {
	return map[string]int{
		"remoteRowId":  r.listeners.Count(RemoteRowID),
		"localRowIds":  r.listeners.Count(LocalRowIDs),
		"linkedRowIds": r.listeners.Count(LinkedRowIDs),
	}
}

// Destroy removes every definition and detaches from the store.
func (r *Relationships) Destroy() {
	for _, id := range r.GetRelationshipIDs() {
		r.delDefinition(id)
	}
	r.store.DelListener(r.finish)
	r.listeners.Clear()
}

func (r *Relationships) flush() {
	dirty := r.dirty
	r.dirty = orderedmap.New[string, *pending]()
	for pair := dirty.Oldest(); pair != nil; pair = pair.Next() {
		r.notify(pair.Key, pair.Value)
	}
}

func (r *Relationships) notify(relationshipID string, p *pending) {
	changed := false
	for pair := p.remote.Oldest(); pair != nil; pair = pair.Next() {
		now, _ := r.GetRemoteRowID(relationshipID, pair.Key)
		if now == pair.Value {
			continue
		}
		changed = true
		for _, l := range r.listeners.Match(RemoteRowID, relationshipID, pair.Key) {
			if r.listeners.Alive(l) {
				l.Callback.(RemoteRowIDListener)(r, relationshipID, pair.Key)
			}
		}
	}
	for pair := p.locals.Oldest(); pair != nil; pair = pair.Next() {
		if slices.Equal(r.GetLocalRowIDs(relationshipID, pair.Key), pair.Value) {
			continue
		}
		for _, l := range r.listeners.Match(LocalRowIDs, relationshipID, pair.Key) {
			if r.listeners.Alive(l) {
				l.Callback.(LocalRowIDsListener)(r, relationshipID, pair.Key)
			}
		}
	}
	if !changed {
		return
	}
	for _, l := range r.listeners.MatchPath(LinkedRowIDs, listener.Path{listener.Exact(relationshipID), listener.Any}) {
		if !r.listeners.Alive(l) {
			continue
		}
		state := l.Params.(*linkedState)
		firstRowID := l.Path[1].ID
		now := r.GetLinkedRowIDs(relationshipID, firstRowID)
		if slices.Equal(now, state.last) {
			continue
		}
		state.last = now
		l.Callback.(LinkedRowIDsListener)(r, relationshipID, firstRowID)
	}
}
