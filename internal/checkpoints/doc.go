// Package checkpoints records undo and redo history for a store.
//
// Every cell and value change is collected into a pending delta. A
// checkpoint seals the pending delta under a new id; moving backward applies
// the old side of a checkpoint's delta, moving forward applies the new side.
//
// The history is three lists: backward ids, the current id and forward
// ids. While changes are pending there is no current id, and the checkpoint
// that was current sits on top of the backward list. Any new change
// discards the forward list.
//
// Checkpoint ids are "0", "1", ... in creation order. "0" is the state of
// the store when the Checkpoints object was created.
package checkpoints
