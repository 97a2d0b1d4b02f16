package listener

import "sync/atomic"

// Clock is a monotonic logical clock for listener registration order.
//
// Every registration is stamped with a strictly increasing seq number from
// this clock. Dispatch takes Current() as a cutoff when a transaction
// finishes; listeners stamped after the cutoff wait for the next one.
//
// Clock is safe for concurrent use, though a store only touches it from
// the goroutine that owns the store.
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a new clock starting at 0.
func NewClock() *Clock {
	return &Clock{}
}

// NewClockAt creates a new clock starting at a specific sequence number.
func NewClockAt(start int64) *Clock {
	c := &Clock{}
	c.seq.Store(start)
	return c
}

// Next returns the next sequence number and increments the clock.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the current sequence number without incrementing.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}
