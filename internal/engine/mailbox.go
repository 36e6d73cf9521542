package engine

import (
	"github.com/roach88/kobzar/internal/ident"
	"github.com/roach88/kobzar/internal/msg"
)

// slotKey identifies a mailbox slot. A mailbox holds at most one
// undelivered message per sender and interface.
type slotKey struct {
	from  ident.Uid
	iface ident.Interface
}

// letter is a message sitting in a mailbox.
type letter struct {
	key     slotKey
	payload []byte
	shared  ident.Uid
	seq     int64
	mode    string

	// taken is set once the receiver has taken the letter.
	taken bool
}

// mailbox is one thread's inbox. All access happens under Engine.mu.
type mailbox struct {
	letters []*letter // arrival order

	// tickets queues senders waiting for an occupied slot, oldest first.
	tickets map[slotKey][]int64
}

func newMailbox() *mailbox {
	return &mailbox{tickets: make(map[slotKey][]int64)}
}

func (m *mailbox) occupied(k slotKey) bool {
	for _, l := range m.letters {
		if l.key == k {
			return true
		}
	}
	return false
}

// available reports whether a sender holding no ticket may place a letter
// in slot k right now.
func (m *mailbox) available(k slotKey) bool {
	return !m.occupied(k) && len(m.tickets[k]) == 0
}

// availableFor reports whether ticket t is at the head of the queue for k
// and the slot is free.
func (m *mailbox) availableFor(k slotKey, t int64) bool {
	q := m.tickets[k]
	return len(q) > 0 && q[0] == t && !m.occupied(k)
}

func (m *mailbox) put(l *letter) {
	m.letters = append(m.letters, l)
}

func (m *mailbox) wait(k slotKey, t int64) {
	m.tickets[k] = append(m.tickets[k], t)
}

func (m *mailbox) unwait(k slotKey, t int64) {
	q := m.tickets[k]
	for i, v := range q {
		if v == t {
			q = append(q[:i], q[i+1:]...)
			break
		}
	}
	if len(q) == 0 {
		delete(m.tickets, k)
		return
	}
	m.tickets[k] = q
}

// peek returns the oldest letter matching f without removing it.
func (m *mailbox) peek(f msg.Filter) *letter {
	for _, l := range m.letters {
		if f.Match(l.key.from, l.key.iface) {
			return l
		}
	}
	return nil
}

// take removes and returns the oldest letter matching f.
func (m *mailbox) take(f msg.Filter) *letter {
	for i, l := range m.letters {
		if f.Match(l.key.from, l.key.iface) {
			m.letters = append(m.letters[:i], m.letters[i+1:]...)
			return l
		}
	}
	return nil
}

// remove withdraws l if it is still in the mailbox.
func (m *mailbox) remove(l *letter) bool {
	for i, x := range m.letters {
		if x == l {
			m.letters = append(m.letters[:i], m.letters[i+1:]...)
			return true
		}
	}
	return false
}

// drain empties the mailbox and returns what it held.
func (m *mailbox) drain() []*letter {
	out := m.letters
	m.letters = nil
	clear(m.tickets)
	return out
}
