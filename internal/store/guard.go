package store

import "strings"

// firingGuard tracks listener firings within one transaction finish so that
// no (listener, path) pair is invoked twice.
//
// Re-entrant writes from mutator listeners can touch paths that were already
// notified; the guard is what keeps a self-mutating listener from firing for
// itself again in the same pass. The history is cleared when the
// transaction returns to idle.
type firingGuard struct {
	history map[string]bool
}

func newFiringGuard() *firingGuard {
	return &firingGuard{history: make(map[string]bool)}
}

// WouldRefire reports whether the listener already fired for path.
func (g *firingGuard) WouldRefire(listenerID string, path []string) bool {
	return g.history[guardKey(listenerID, path)]
}

// Record marks that the listener fired for path.
// Call it immediately before invoking the listener.
func (g *firingGuard) Record(listenerID string, path []string) {
	g.history[guardKey(listenerID, path)] = true
}

// Clear forgets every firing.
func (g *firingGuard) Clear() {
	clear(g.history)
}

// Size returns the number of recorded firings.
func (g *firingGuard) Size() int {
	return len(g.history)
}

func guardKey(listenerID string, path []string) string {
	return listenerID + "\x00" + strings.Join(path, "\x00")
}
