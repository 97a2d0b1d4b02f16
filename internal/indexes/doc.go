// Package indexes keeps secondary indexes of store tables up to date.
//
// An index definition splits the rows of one table into slices, keyed by
// the value of a cell or by a SliceFunc that may place a row in several
// slices, and orders the rows of every slice by a sort cell. The index
// follows the table through a wildcard row listener and only revisits the
// slices a changed row leaves or joins.
//
// Slice-ids and slice-row-ids listeners fire once per store transaction,
// after the store's own listeners, comparing against what was last
// published.
package indexes
