package store

import (
	"github.com/roach88/tabstore/internal/ir"
	"github.com/roach88/tabstore/internal/listener"
)

// RollbackFunc is evaluated after mutator listeners have run and before any
// other listener. Returning true reverts every change of the transaction;
// WillFinish and DidFinish listeners still fire and observe no changes.
type RollbackFunc func(changes Changes) bool

// Transaction runs fn as one transaction. Listeners are notified once, when
// the outermost transaction finishes. Called inside another transaction, fn
// joins it and doRollback is ignored.
//
// If fn panics, the changes it made are reverted without notifying
// listeners and the panic continues.
func (s *Store) Transaction(fn func(), doRollback RollbackFunc) {
	if s.deferWrite(func() { s.Transaction(fn, doRollback) }) {
		return
	}
	s.transaction(fn, doRollback)
}

// Transact is Transaction for a function with a result. When the
// transaction is deferred, because it was requested from a plain listener,
// the zero value is returned.
func Transact[T any](s *Store, fn func() T, doRollback RollbackFunc) T {
	var out T
	s.Transaction(func() { out = fn() }, doRollback)
	return out
}

// StartTransaction opens a transaction, or joins the open one. Every call
// must be paired with FinishTransaction.
func (s *Store) StartTransaction() {
	if s.state == stateNotifying {
		return
	}
	s.start()
}

// FinishTransaction closes a transaction opened with StartTransaction. The
// outermost call notifies listeners. doRollback may be nil.
func (s *Store) FinishTransaction(doRollback RollbackFunc) {
	if s.state == stateNotifying {
		return
	}
	s.finish(doRollback)
}

// InTransaction reports whether a transaction is open.
func (s *Store) InTransaction() bool {
	return s.state != stateIdle
}

// WritesDeferred reports whether writes are being queued for a follow-up
// transaction, which is the case while plain listeners are notified.
// AddRow reports no row id then, even for a valid row.
func (s *Store) WritesDeferred() bool {
	return s.state == stateNotifying
}

func (s *Store) write(fn func()) {
	s.transaction(fn, nil)
}

// deferWrite queues a write requested while plain listeners are notified.
// Queued writes run in one follow-up transaction.
func (s *Store) deferWrite(fn func()) bool {
	if s.state != stateNotifying {
		return false
	}
	s.deferred = append(s.deferred, fn)
	return true
}

func (s *Store) transaction(fn func(), doRollback RollbackFunc) {
	opened := s.state == stateIdle
	done := false
	defer func() {
		if done {
			return
		}
		if opened {
			s.abort()
		} else {
			s.depth--
		}
	}()
	s.start()
	fn()
	done = true
	s.finish(doRollback)
}

func (s *Store) start() {
	if s.state != stateIdle {
		s.depth++
		return
	}
	s.state = stateOpen
	s.depth = 1
	for _, l := range s.listeners.Match(listener.StartTransaction) {
		if s.listeners.Alive(l) {
			s.invoke(l, nil, nil)
		}
	}
}

func (s *Store) finish(doRollback RollbackFunc) {
	if s.depth == 0 {
		return
	}
	// an explicit finish from a mutator cannot close the finishing transaction
	if s.state == stateMutating && s.depth == 1 {
		return
	}
	s.depth--
	if s.depth > 0 {
		return
	}
	s.finishOutermost(doRollback)
}

func (s *Store) finishOutermost(doRollback RollbackFunc) {
	s.depth = 1
	s.state = stateMutating
	defer func() {
		if r := recover(); r != nil {
			s.deferred = nil
			s.reset()
			panic(r)
		}
	}()

	cutoff := s.listeners.Clock().Current()
	s.dispatchMutators(cutoff)

	rolledBack := false
	if doRollback != nil && doRollback(s.GetTransactionChanges()) {
		s.revert()
		rolledBack = true
	}

	s.callTransactionListeners(listener.WillFinishTransaction, cutoff)
	s.state = stateNotifying
	s.dispatch(false, cutoff)
	s.callTransactionListeners(listener.DidFinishTransaction, cutoff)

	changes := s.GetTransactionChanges()
	s.logger.Debug("transaction finished",
		"store", s.id,
		"tables", len(changes.Tables),
		"values", len(changes.Values),
		"rolled_back", rolledBack,
	)
	s.reset()
	s.flushDeferred()
}

func (s *Store) callTransactionListeners(category listener.Category, cutoff int64) {
	for _, l := range s.listeners.Match(category) {
		if l.Seq <= cutoff && s.listeners.Alive(l) {
			s.invoke(l, nil, nil)
		}
	}
}

// revert restores the value every changed cell and value had when the
// transaction opened. Invalid write records are kept.
func (s *Store) revert() {
	type cellRef struct {
		tableID, rowID, cellID string
		old                    ir.Scalar
	}
	var cells []cellRef
	for t := s.journal.cells.Oldest(); t != nil; t = t.Next() {
		for r := t.Value.Oldest(); r != nil; r = r.Next() {
			for c := r.Value.Oldest(); c != nil; c = c.Next() {
				if c.Value.net() {
					cells = append(cells, cellRef{t.Key, r.Key, c.Key, c.Value.old})
				}
			}
		}
	}
	for _, c := range cells {
		s.putCell(c.tableID, c.rowID, c.cellID, c.old)
	}

	type valueRef struct {
		valueID string
		old     ir.Scalar
	}
	var values []valueRef
	for v := s.journal.values.Oldest(); v != nil; v = v.Next() {
		if v.Value.net() {
			values = append(values, valueRef{v.Key, v.Value.old})
		}
	}
	for _, v := range values {
		s.putValue(v.valueID, v.old)
	}

	s.journal.clearCells()
	s.journal.clearValues()
}

// abort reverts an open transaction without notifying anyone.
func (s *Store) abort() {
	s.revert()
	s.reset()
}

func (s *Store) reset() {
	s.journal.clear()
	s.guard.Clear()
	s.state = stateIdle
	s.depth = 0
	s.hadTables = s.HasTables()
	s.hadValues = s.HasValues()
}

func (s *Store) flushDeferred() {
	if len(s.deferred) == 0 {
		return
	}
	queue := s.deferred
	s.deferred = nil
	s.logger.Debug("flushing deferred writes", "store", s.id, "writes", len(queue))
	s.transaction(func() {
		for _, fn := range queue {
			fn()
		}
	}, nil)
}
