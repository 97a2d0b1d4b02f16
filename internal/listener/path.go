package listener

import (
	"strings"

	"github.com/roach88/tabstore/internal/ir"
)

// Segment is one position of a listener path.
type Segment struct {
	ID   string
	Wild bool
}

// Any is the wildcard segment.
var Any = Segment{Wild: true}

// Exact returns a segment matching only id.
func Exact(id string) Segment {
	return Segment{ID: id}
}

// Path is the positional id pattern a listener is registered under.
type Path []Segment

// PathOf builds a path from caller-supplied ids. A nil id is the wildcard;
// anything else is coerced with ir.ToID.
func PathOf(ids ...any) Path {
	p := make(Path, len(ids))
	for i, id := range ids {
		if id == nil {
			p[i] = Any
		} else {
			p[i] = Exact(ir.ToID(id))
		}
	}
	return p
}

// Matches reports whether the path matches the concrete ids.
func (p Path) Matches(ids ...string) bool {
	if len(p) != len(ids) {
		return false
	}
	for i, seg := range p {
		if !seg.Wild && seg.ID != ids[i] {
			return false
		}
	}
	return true
}

// IsConcrete reports whether no segment is a wildcard.
func (p Path) IsConcrete() bool {
	for _, seg := range p {
		if seg.Wild {
			return false
		}
	}
	return true
}

func (p Path) String() string {
	parts := make([]string, len(p))
	for i, seg := range p {
		if seg.Wild {
			parts[i] = "*"
		} else {
			parts[i] = seg.ID
		}
	}
	return "/" + strings.Join(parts, "/")
}
