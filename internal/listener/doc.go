// Package listener is the registry behind every add*Listener call.
//
// Each listener is registered against a Category and a Path of zero to three
// positional segments. A segment is either a concrete id or the wildcard.
// Per category the registry keeps a trie keyed by segment, so a concrete
// change such as (tableID, rowID, cellID) enumerates exactly the listeners
// whose path matches it, descending both the concrete and the wildcard
// branch at every level, without scanning unrelated listeners.
//
// Listener records live in an arena keyed by id. Ids are stringified values
// of a monotonic logical Clock, so registration order is total and a
// dispatcher can ignore listeners added after a cutoff.
//
// The registry holds callbacks as opaque values. Interpreting them is the
// caller's job; this package never invokes a callback.
package listener
