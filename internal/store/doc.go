// Package store implements the tabstore reactive tabular store.
//
// A Store holds a hierarchical map of tables to rows to cells plus a flat
// map of values. Every mutation runs inside a transaction; when the
// outermost transaction finishes, the store notifies each matching listener
// exactly once with the net change.
//
// ARCHITECTURE:
//
// Single-Writer Transactions:
// A Store is owned by one goroutine. Listener callbacks run synchronously on
// the call stack of the mutation that finished the transaction, so
// "concurrency" inside a store is re-entrancy, not parallelism. Nested
// transactions collapse into the outermost one.
//
// Transaction Flow:
//  1. The first write (or StartTransaction) opens a transaction and fires
//     StartTransaction listeners
//  2. Writes are validated and applied to the ordered data model; each
//     applied write updates the change journal
//  3. On finish, mutator listeners fire first and may write; their writes
//     join the same journal
//  4. The optional rollback predicate may revert the whole transaction
//  5. WillFinishTransaction listeners fire; their writes also join the journal
//  6. Plain listeners fire, then DidFinishTransaction listeners
//  7. The journal is cleared; writes requested by plain or DidFinish
//     listeners run in one follow-up transaction
//
// CRITICAL PATTERNS:
//
// Net Changes Only:
// The journal keeps the first old value and the latest new value per cell
// and per value, and +1/-1 presence deltas per id that cancel out. A cell
// changed and changed back, or a row added and deleted, fires nothing.
//
// Cascading Deletes:
// A row with no cells and a table with no rows do not exist. Deleting the
// last cell deletes the row, and deleting the last row deletes the table,
// in the same transaction.
//
// Deterministic Dispatch:
// Tables, rows, cells and values keep insertion order, and so does every
// journal map. Listeners matched for one path fire in registration order.
package store
