// Package metrics keeps numeric aggregates of store tables up to date.
//
// A metric definition names a table, a way to read one number per row and
// an Aggregate. The Metrics object subscribes to the table through a
// wildcard row listener, keeps the per-row numbers, and folds each row
// change into the metric with the aggregate's incremental functions when it
// has them, recomputing from all numbers otherwise.
//
// Metric listeners fire once per store transaction, after every store
// listener, when a metric's value differs from its value when the
// transaction started. A metric over no rows has no value.
package metrics
