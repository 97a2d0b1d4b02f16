package listener

import (
	"slices"
	"strconv"
)

// Listener is one registration.
type Listener struct {
	ID       string
	Seq      int64
	Category Category
	Path     Path
	Callback any
	Mutator  bool

	// Params carries category specific arguments that are not part of the
	// path, such as the sort cell of a sorted row ids listener.
	Params any
}

type node struct {
	children  map[string]*node
	wild      *node
	listeners map[string]*Listener
}

func (n *node) child(seg Segment, create bool) *node {
	if seg.Wild {
		if n.wild == nil && create {
			n.wild = &node{}
		}
		return n.wild
	}
	c := n.children[seg.ID]
	if c == nil && create {
		if n.children == nil {
			n.children = make(map[string]*node)
		}
		c = &node{}
		n.children[seg.ID] = c
	}
	return c
}

func (n *node) empty() bool {
	return len(n.children) == 0 && n.wild == nil && len(n.listeners) == 0
}

// Registry stores listeners per category in path tries.
//
// A Registry is not safe for concurrent use. Adding or deleting listeners
// from inside a callback is allowed: Match returns a fresh slice, and
// callers check Alive before invoking a matched listener.
type Registry struct {
	clock *Clock
	roots map[Category]*node
	byID  map[string]*Listener
	count map[Category]int
}

// NewRegistry creates an empty registry with its own clock.
func NewRegistry() *Registry {
	return &Registry{
		clock: NewClock(),
		roots: make(map[Category]*node),
		byID:  make(map[string]*Listener),
		count: make(map[Category]int),
	}
}

// Add registers callback under category and path and returns its id.
// Ids are "0", "1", ... in registration order and are never reused.
func (r *Registry) Add(category Category, path Path, callback any, mutator bool, params any) string {
	seq := r.clock.Next()
	l := &Listener{
		ID:       strconv.FormatInt(seq-1, 10),
		Seq:      seq,
		Category: category,
		Path:     slices.Clone(path),
		Callback: callback,
		Mutator:  mutator,
		Params:   params,
	}

	root := r.roots[category]
	if root == nil {
		root = &node{}
		r.roots[category] = root
	}
	n := root
	for _, seg := range l.Path {
		n = n.child(seg, true)
	}
	if n.listeners == nil {
		n.listeners = make(map[string]*Listener)
	}
	n.listeners[l.ID] = l
	r.byID[l.ID] = l
	r.count[category]++
	return l.ID
}

// Del removes a listener and prunes trie nodes left empty. It returns the
// removed record, or false when id is unknown.
func (r *Registry) Del(id string) (*Listener, bool) {
	l, ok := r.byID[id]
	if !ok {
		return nil, false
	}
	delete(r.byID, id)
	r.count[l.Category]--
	if r.count[l.Category] == 0 {
		delete(r.count, l.Category)
	}

	root := r.roots[l.Category]
	trail := []*node{root}
	n := root
	for _, seg := range l.Path {
		n = n.child(seg, false)
		if n == nil {
			return l, true
		}
		trail = append(trail, n)
	}
	delete(n.listeners, id)

	for i := len(l.Path); i > 0; i-- {
		if !trail[i].empty() {
			break
		}
		seg := l.Path[i-1]
		parent := trail[i-1]
		if seg.Wild {
			parent.wild = nil
		} else {
			delete(parent.children, seg.ID)
		}
	}
	if root.empty() {
		delete(r.roots, l.Category)
	}
	return l, true
}

// Get returns the listener registered under id.
func (r *Registry) Get(id string) (*Listener, bool) {
	l, ok := r.byID[id]
	return l, ok
}

// Alive reports whether l is still registered.
func (r *Registry) Alive(l *Listener) bool {
	return r.byID[l.ID] == l
}

// Match returns every listener of category whose path matches ids, in
// registration order.
func (r *Registry) Match(category Category, ids ...string) []*Listener {
	query := make(Path, len(ids))
	for i, id := range ids {
		query[i] = Exact(id)
	}
	return r.MatchPath(category, query)
}

// MatchPath is like Match, but a wildcard segment in query matches every
// registered segment at that position, concrete or wildcard.
func (r *Registry) MatchPath(category Category, query Path) []*Listener {
	root := r.roots[category]
	if root == nil {
		return nil
	}
	var out []*Listener
	var walk func(n *node, depth int)
	walk = func(n *node, depth int) {
		if depth == len(query) {
			for _, l := range n.listeners {
				out = append(out, l)
			}
			return
		}
		if query[depth].Wild {
			for _, c := range n.children {
				walk(c, depth+1)
			}
		} else if c := n.children[query[depth].ID]; c != nil {
			walk(c, depth+1)
		}
		if n.wild != nil {
			walk(n.wild, depth+1)
		}
	}
	walk(root, 0)
	sortBySeq(out)
	return out
}

// All returns every listener of category in registration order.
func (r *Registry) All(category Category) []*Listener {
	var out []*Listener
	for _, l := range r.byID {
		if l.Category == category {
			out = append(out, l)
		}
	}
	sortBySeq(out)
	return out
}

// Count returns the number of listeners registered for category.
func (r *Registry) Count(category Category) int {
	return r.count[category]
}

// Len returns the total number of registered listeners.
func (r *Registry) Len() int {
	return len(r.byID)
}

// Stats returns the listener count per category, omitting empty ones.
func (r *Registry) Stats() map[Category]int {
	out := make(map[Category]int, len(r.count))
	for c, n := range r.count {
		out[c] = n
	}
	return out
}

// Clock returns the registration clock.
func (r *Registry) Clock() *Clock {
	return r.clock
}

// Clear removes every listener. The clock keeps running so ids stay unique.
func (r *Registry) Clear() {
	r.roots = make(map[Category]*node)
	r.byID = make(map[string]*Listener)
	r.count = make(map[Category]int)
}

func sortBySeq(ls []*Listener) {
	slices.SortFunc(ls, func(a, b *Listener) int {
		switch {
		case a.Seq < b.Seq:
			return -1
		case a.Seq > b.Seq:
			return 1
		}
		return 0
	})
}
