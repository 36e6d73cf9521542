package engine

import (
	"context"
	"log/slog"
	"sync"

	"github.com/roach88/kobzar/internal/ident"
	"github.com/roach88/kobzar/internal/store"
)

// Resource kinds recorded in the ledger.
const (
	KindThread  = "thread"
	KindMessage = "message"
)

// Ledger counts live references per uid.
//
// Every handle group issued by the engine holds one reference; releasing
// the last owner of a group decrements the count once. A release that would
// take a count below zero is logged and ignored. When a store is attached
// every change is mirrored to it.
type Ledger struct {
	mu    sync.Mutex
	live  map[ident.Uid]int64
	kinds map[ident.Uid]string
	clock *Clock
	store *store.Store
}

func newLedger(clock *Clock, s *store.Store) *Ledger {
	return &Ledger{
		live:  make(map[ident.Uid]int64),
		kinds: make(map[ident.Uid]string),
		clock: clock,
		store: s,
	}
}

// Retain adds one live reference to uid.
func (l *Ledger) Retain(uid ident.Uid, kind string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if kind != "" {
		l.kinds[uid] = kind
	}
	l.live[uid]++
	l.mirror(uid, 1)
}

// Release drops one live reference to uid.
func (l *Ledger) Release(uid ident.Uid) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.live[uid] <= 0 {
		slog.Warn("release of resource with no live references", "uid", uid.Short())
		return
	}
	l.live[uid]--
	l.mirror(uid, -1)
	if l.live[uid] == 0 {
		slog.Debug("resource collectable", "uid", uid.Short(), "kind", l.kinds[uid])
	}
}

// Live returns the current live count of uid.
func (l *Ledger) Live(uid ident.Uid) int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.live[uid]
}

// Outstanding returns every uid with a positive live count.
func (l *Ledger) Outstanding() map[ident.Uid]int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make(map[ident.Uid]int64)
	for uid, n := range l.live {
		if n > 0 {
			out[uid] = n
		}
	}
	return out
}

func (l *Ledger) mirror(uid ident.Uid, delta int) {
	if l.store == nil {
		return
	}
	kind := l.kinds[uid]
	if kind == "" {
		kind = "unknown"
	}
	ev := store.ResourceEvent{
		Seq:   l.clock.Stamp(),
		Uid:   uid.String(),
		Kind:  kind,
		Delta: delta,
		Live:  l.live[uid],
	}
	if err := l.store.WriteResourceEvent(context.Background(), ev); err != nil {
		slog.Error("ledger write failed", "uid", uid.Short(), "error", err)
	}
}
