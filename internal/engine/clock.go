package engine

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/roach88/kobzar/internal/store"
)

// Clock stamps transitions, mailbox arrivals and ledger rows with a
// strictly increasing seq. Mailbox FIFO order and the persisted ledger
// both order by seq, never by wall time.
//
// Clock is safe for concurrent use.
type Clock struct {
	last atomic.Int64
}

// NewClock returns a clock whose first stamp is 1.
func NewClock() *Clock {
	return &Clock{}
}

// NewClockAt returns a clock whose first stamp is after.
func NewClockAt(after int64) *Clock {
	c := &Clock{}
	c.last.Store(after)
	return c
}

// ResumeClock returns a clock that continues after the highest seq
// recorded in s, so a reused ledger keeps one ordering.
func ResumeClock(ctx context.Context, s *store.Store) (*Clock, error) {
	last, err := s.MaxSeq(ctx)
	if err != nil {
		return nil, fmt.Errorf("resume clock: %w", err)
	}
	return NewClockAt(last), nil
}

// Stamp issues the next seq.
func (c *Clock) Stamp() int64 {
	return c.last.Add(1)
}

// Last returns the most recently issued seq, or the starting point when
// nothing has been stamped.
func (c *Clock) Last() int64 {
	return c.last.Load()
}

// Advance moves the clock forward to at least seq. It never moves back.
func (c *Clock) Advance(seq int64) {
	for {
		cur := c.last.Load()
		if seq <= cur || c.last.CompareAndSwap(cur, seq) {
			return
		}
	}
}
