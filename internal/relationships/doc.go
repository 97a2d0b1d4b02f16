// Package relationships links rows of a local table to rows of a remote
// table.
//
// A relationship definition reads, for every local row, the id of the
// remote row it points at: the value of a cell, or the result of a
// RemoteRowFunc. The Relationships object keeps both directions (remote row
// per local row, local rows per remote row) in sync through a wildcard row
// listener on the local table.
//
// When local and remote table are the same, rows form linked lists.
// GetLinkedRowIDs walks one from a first row and stops at the first row
// already visited, so a cycle ends the list instead of looping.
package relationships
