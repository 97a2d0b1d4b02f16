package testutil

import (
	"slices"
	"sync"
)

// Call is one recorded listener invocation.
type Call struct {
	Seq  int64
	Name string
	Args []any
}

// Recorder collects listener invocations in the order they happen, each
// stamped with a monotonic sequence number starting at 1.
//
// Unlike the listener clock, a Recorder can be reset for test reuse, so the
// same scenario run twice produces identical sequence numbers.
//
// Thread-safety: All methods are safe for concurrent use.
type Recorder struct {
	mu    sync.Mutex
	seq   int64
	calls []Call
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Record appends a call and returns its sequence number.
func (r *Recorder) Record(name string, args ...any) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	r.calls = append(r.calls, Call{Seq: r.seq, Name: name, Args: args})
	return r.seq
}

// Calls returns a copy of every recorded call.
func (r *Recorder) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.calls)
}

// Names returns the recorded call names in order.
func (r *Recorder) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, len(r.calls))
	for i, c := range r.calls {
		names[i] = c.Name
	}
	return names
}

// Count returns how often name was recorded.
func (r *Recorder) Count(name string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, c := range r.calls {
		if c.Name == name {
			n++
		}
	}
	return n
}

// Seq returns the sequence number of the last recorded call.
func (r *Recorder) Seq() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.seq
}

// Reset drops every call. The next Record returns 1.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq = 0
	r.calls = nil
}
