package engine

import (
	"context"
	"runtime"
	"time"

	"github.com/roach88/kobzar/internal/ident"
	"github.com/roach88/kobzar/internal/msg"
)

// deliverable checks that caller may put a message under iface into the
// mailbox of to. Caller holds e.mu.
func (e *Engine) deliverable(caller *proc, to ident.Uid, iface ident.Interface) (*proc, error) {
	t, ok := e.procs[to]
	if !ok {
		return nil, msg.NewError(msg.CodeConnectionLost, to, iface, "unknown peer")
	}
	if t.info.State.IsDead() {
		return nil, msg.NewError(msg.CodeDied, to, iface, "peer is "+t.info.State.String())
	}

	// A thread may always write to itself and answer a peer that wrote to
	// it first.
	if t.uid == caller.uid || t.contacted[caller.uid] {
		return t, nil
	}
	if t.info.Owner != caller.uid && !t.info.Publicity.Admits(t.info.Path, caller.info.Path) {
		return nil, msg.NewError(msg.CodeNotPermitted, to, iface,
			t.info.Publicity.String()+" thread "+t.info.Path.String()+" not visible from "+caller.info.Path.String())
	}
	if !t.impl.serves(iface) {
		return nil, msg.NewError(msg.CodeUnsupported, to, iface, "interface not accepted")
	}
	return t, nil
}

// place puts a letter into the mailbox of t. Caller holds e.mu.
func (e *Engine) place(caller, t *proc, p msg.Packet, mode string) *letter {
	l := &letter{
		key:     slotKey{from: caller.uid, iface: p.Interface},
		payload: p.Payload,
		shared:  p.Uid,
		seq:     e.clock.Stamp(),
		mode:    mode,
	}
	t.box.put(l)
	caller.contacted[t.uid] = true
	if !p.Uid.IsZero() {
		// The mailbox holds its own reference until the letter is taken,
		// withdrawn or dropped.
		e.ledger.Retain(p.Uid, KindMessage)
	}
	e.record(Delivery{
		From:      caller.uid,
		To:        t.uid,
		Interface: p.Interface,
		Mode:      mode,
		Outcome:   OutcomeQueued,
		Shared:    p.Uid,
	})
	e.broadcast()
	return l
}

// withdraw takes an untaken letter back out of the mailbox of t.
// Caller holds e.mu.
func (e *Engine) withdraw(t *proc, l *letter) {
	if !t.box.remove(l) {
		return
	}
	if !l.shared.IsZero() {
		e.ledger.Release(l.shared)
	}
	e.record(Delivery{
		From:      l.key.from,
		To:        t.uid,
		Interface: l.key.iface,
		Mode:      l.mode,
		Outcome:   OutcomeWithdrawn,
		Shared:    l.shared,
	})
	e.broadcast()
}

func (e *Engine) send(_ context.Context, caller ident.Uid, p msg.Packet) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, err := e.trySend(caller, p, ModeSend)
	return err
}

// trySend places p if its slot is free. Caller holds e.mu.
func (e *Engine) trySend(caller ident.Uid, p msg.Packet, mode string) (*letter, error) {
	c, err := e.lookup(caller)
	if err != nil {
		return nil, err
	}
	t, err := e.deliverable(c, p.To, p.Interface)
	if err != nil {
		e.record(Delivery{From: caller, To: p.To, Interface: p.Interface, Mode: mode, Outcome: OutcomeRefused})
		return nil, err
	}
	if !t.box.available(slotKey{from: caller, iface: p.Interface}) {
		e.record(Delivery{From: caller, To: p.To, Interface: p.Interface, Mode: mode, Outcome: OutcomePending})
		return nil, msg.NewError(msg.CodePending, p.To, p.Interface, "previous message not yet received")
	}
	return e.place(c, t, p, mode), nil
}

// queueSend waits in FIFO order for the slot of p to become free and
// places p. Returns (nil, nil) on timeout.
func (e *Engine) queueSend(ctx context.Context, caller ident.Uid, p msg.Packet, mode string, timeout time.Duration) (*letter, error) {
	key := slotKey{from: caller, iface: p.Interface}

	e.mu.Lock()
	c, err := e.lookup(caller)
	if err == nil {
		_, err = e.deliverable(c, p.To, p.Interface)
	}
	if err != nil {
		e.record(Delivery{From: caller, To: p.To, Interface: p.Interface, Mode: mode, Outcome: OutcomeRefused})
		e.mu.Unlock()
		return nil, err
	}
	e.tickets++
	ticket := e.tickets
	e.procs[p.To].box.wait(key, ticket)
	e.mu.Unlock()

	var (
		placed  *letter
		sendErr error
	)
	ok, err := e.waitUntil(ctx, timeout, func() bool {
		t, err := e.deliverable(c, p.To, p.Interface)
		if err != nil {
			sendErr = err
			return true
		}
		if !t.box.availableFor(key, ticket) {
			return false
		}
		t.box.unwait(key, ticket)
		placed = e.place(c, t, p, mode)
		return true
	})
	if placed != nil {
		return placed, nil
	}

	// Timed out, cancelled or refused: give up the place in line.
	e.mu.Lock()
	if t, found := e.procs[p.To]; found {
		t.box.unwait(key, ticket)
		e.broadcast()
	}
	if ok && sendErr != nil {
		e.record(Delivery{From: caller, To: p.To, Interface: p.Interface, Mode: mode, Outcome: OutcomeRefused})
	}
	e.mu.Unlock()

	if err != nil {
		return nil, err
	}
	return nil, sendErr
}

func (e *Engine) sendWhenAvailable(ctx context.Context, caller ident.Uid, p msg.Packet) error {
	_, err := e.queueSend(ctx, caller, p, ModeSendWhenAvailable, msg.Forever)
	return err
}

func (e *Engine) rendezvous(ctx context.Context, caller ident.Uid, p msg.Packet, timeout time.Duration) (bool, error) {
	start := time.Now()
	remaining := func() time.Duration {
		if timeout < 0 {
			return msg.Forever
		}
		left := timeout - time.Since(start)
		if left < 0 {
			return 0
		}
		return left
	}

	l, err := e.queueSend(ctx, caller, p, ModeRendezvous, timeout)
	if err != nil {
		return false, err
	}
	if l == nil {
		e.mu.Lock()
		e.record(Delivery{From: caller, To: p.To, Interface: p.Interface, Mode: ModeRendezvous, Outcome: OutcomeWithdrawn})
		e.mu.Unlock()
		return false, nil
	}

	var died error
	ok, err := e.waitUntil(ctx, remaining(), func() bool {
		if l.taken {
			return true
		}
		t, found := e.procs[p.To]
		if !found || t.info.State.IsDead() {
			died = msg.NewError(msg.CodeDied, p.To, p.Interface, "peer died before receiving")
			return true
		}
		return false
	})
	if ok {
		if died != nil && !l.taken {
			return false, died
		}
		return true, nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if l.taken {
		return true, nil
	}
	if t, found := e.procs[p.To]; found {
		e.withdraw(t, l)
	}
	return false, err
}

func (e *Engine) transferTime(_ context.Context, caller ident.Uid, p msg.Packet) error {
	e.mu.Lock()
	c, err := e.lookup(caller)
	if err != nil {
		e.mu.Unlock()
		return err
	}
	if t, ok := e.procs[p.To]; ok && t.unit != c.unit {
		e.record(Delivery{From: caller, To: p.To, Interface: p.Interface, Mode: ModeTransferTime, Outcome: OutcomeRefused})
		e.mu.Unlock()
		return msg.NewError(msg.CodeUnsupported, p.To, p.Interface,
			"peer runs on unit "+t.unit+", caller on "+c.unit)
	}
	_, err = e.trySend(caller, p, ModeTransferTime)
	e.mu.Unlock()
	if err != nil {
		return err
	}

	// Hand the rest of the time slice to the receiver.
	runtime.Gosched()
	return nil
}

func (e *Engine) newSharedUid(_ context.Context, caller ident.Uid) (ident.Uid, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, err := e.lookup(caller); err != nil {
		return ident.Uid{}, err
	}
	uid := e.uids.Next(ident.DomainMessage)
	e.ledger.Retain(uid, KindMessage)
	return uid, nil
}

func (e *Engine) receive(ctx context.Context, caller ident.Uid, f msg.Filter, timeout time.Duration) (*msg.Envelope, error) {
	var (
		got     *letter
		peerErr error
	)
	_, err := e.waitUntil(ctx, timeout, func() bool {
		c, err := e.lookup(caller)
		if err != nil {
			peerErr = err
			return true
		}
		if l := c.box.take(f); l != nil {
			l.taken = true
			got = l
			e.record(Delivery{
				From:      l.key.from,
				To:        caller,
				Interface: l.key.iface,
				Mode:      ModeReceive,
				Outcome:   OutcomeTaken,
				Shared:    l.shared,
			})
			e.broadcast()
			return true
		}
		if !f.From.IsZero() {
			// Nothing can arrive any more from a dead or unknown peer.
			if peer, ok := e.procs[f.From]; !ok {
				peerErr = msg.NewError(msg.CodeConnectionLost, f.From, ident.Interface{}, "unknown peer")
				return true
			} else if peer.info.State.IsDead() {
				peerErr = msg.NewError(msg.CodeDied, f.From, ident.Interface{}, "peer is "+peer.info.State.String())
				return true
			}
		}
		return false
	})
	if got != nil {
		// The mailbox reference moves to the envelope.
		return msg.NewEnvelope(got.key.from, got.key.iface, got.payload, got.shared, got.seq, e.scope(caller)), nil
	}
	if err != nil {
		return nil, err
	}
	return nil, peerErr
}

func (e *Engine) peek(_ context.Context, caller ident.Uid, f msg.Filter) (*msg.Envelope, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	c, err := e.lookup(caller)
	if err != nil {
		return nil, err
	}
	l := c.box.peek(f)
	if l == nil {
		return nil, nil
	}
	return msg.PeekedEnvelope(l.key.from, l.key.iface, l.payload, l.shared, l.seq), nil
}

func (e *Engine) hasIncoming(_ context.Context, caller ident.Uid, f msg.Filter) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	c, ok := e.procs[caller]
	return ok && c.box.peek(f) != nil
}

func (e *Engine) waitAny(ctx context.Context, caller ident.Uid, f msg.Filter, timeout time.Duration) (bool, error) {
	return e.waitUntil(ctx, timeout, func() bool {
		c, ok := e.procs[caller]
		return ok && c.box.peek(f) != nil
	})
}
