package engine

import (
	"errors"
	"fmt"

	"github.com/roach88/kobzar/internal/ident"
)

// DefaultMaxThreads is the default number of live threads one owner may
// hold.
const DefaultMaxThreads = 1000

// QuotaEnforcer tracks how many live threads each owner holds and refuses
// creation beyond the limit.
//
// A thread counts against its owner from creation until it dies.
// Not safe for concurrent use; the engine guards it with its own lock.
type QuotaEnforcer struct {
	max  int
	live map[ident.Uid]int
}

// NewQuotaEnforcer creates a quota with the given per-owner limit.
// A limit of 0 or less disables the quota.
func NewQuotaEnforcer(max int) *QuotaEnforcer {
	return &QuotaEnforcer{max: max, live: make(map[ident.Uid]int)}
}

// Acquire counts one more thread for owner.
// Returns ThreadsExceededError if the owner is at its limit.
func (q *QuotaEnforcer) Acquire(owner ident.Uid) error {
	if q.max > 0 && q.live[owner] >= q.max {
		return &ThreadsExceededError{Owner: owner, Live: q.live[owner], Limit: q.max}
	}
	q.live[owner]++
	return nil
}

// Release returns one thread of owner's quota.
func (q *QuotaEnforcer) Release(owner ident.Uid) {
	if q.live[owner] <= 1 {
		delete(q.live, owner)
		return
	}
	q.live[owner]--
}

// Live returns how many threads owner currently holds.
func (q *QuotaEnforcer) Live(owner ident.Uid) int {
	return q.live[owner]
}

// Max returns the per-owner limit.
func (q *QuotaEnforcer) Max() int {
	return q.max
}

// ThreadsExceededError is returned when an owner is at its thread limit.
type ThreadsExceededError struct {
	Owner ident.Uid
	Live  int
	Limit int
}

// Error implements the error interface.
func (e *ThreadsExceededError) Error() string {
	return fmt.Sprintf("owner %s holds %d live threads, limit %d", e.Owner.Short(), e.Live, e.Limit)
}

// IsThreadsExceededError reports whether err is a ThreadsExceededError.
// Uses errors.As to handle wrapped errors.
func IsThreadsExceededError(err error) bool {
	var te *ThreadsExceededError
	return errors.As(err, &te)
}
