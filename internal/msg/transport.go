package msg

import (
	"context"
	"time"

	"github.com/roach88/kobzar/internal/handle"
	"github.com/roach88/kobzar/internal/ident"
)

// Forever disables the bound of a blocking operation.
const Forever time.Duration = -1

// Packet is an outbound message on the Transport boundary.
type Packet struct {
	To        ident.Uid
	Interface ident.Interface
	Payload   []byte

	// Uid is set for shared messages and zero otherwise.
	Uid ident.Uid
}

// Filter selects mailbox entries. Zero fields match everything.
type Filter struct {
	From       ident.Uid
	Interfaces []ident.Interface
}

// Match reports whether an envelope from from under iface passes f.
func (f Filter) Match(from ident.Uid, iface ident.Interface) bool {
	if !f.From.IsZero() && f.From != from {
		return false
	}
	if len(f.Interfaces) == 0 {
		return true
	}
	for _, want := range f.Interfaces {
		if want == iface {
			return true
		}
	}
	return false
}

// Transport is the environment side of messaging. Every call acts on
// behalf of the thread owning the Transport value; that thread is the
// sender of outbound packets and the owner of the mailbox read by Receive.
//
// A timeout of 0 polls, Forever blocks until the condition holds or ctx
// ends. Timed-out operations report false with a nil error.
type Transport interface {
	handle.Tracker

	Send(ctx context.Context, p Packet) error
	SendWhenAvailable(ctx context.Context, p Packet) error
	Rendezvous(ctx context.Context, p Packet, timeout time.Duration) (bool, error)
	TransferTime(ctx context.Context, p Packet) error

	// NewSharedUid registers a shared message resource and one live
	// reference to it held by the caller.
	NewSharedUid(ctx context.Context) (ident.Uid, error)

	// Receive takes the oldest matching envelope out of the mailbox.
	Receive(ctx context.Context, f Filter, timeout time.Duration) (*Envelope, error)
	// Peek returns the oldest matching envelope and leaves it in place.
	Peek(ctx context.Context, f Filter) (*Envelope, error)
	HasIncoming(ctx context.Context, f Filter) bool
	WaitAny(ctx context.Context, f Filter, timeout time.Duration) (bool, error)
}

// Envelope is a received message whose payload type is not yet known.
type Envelope struct {
	From      ident.Uid
	Interface ident.Interface
	Payload   []byte

	// Uid is the shared message uid, zero for plain messages.
	Uid ident.Uid
	// Seq is the arrival order in the receiver's mailbox.
	Seq int64

	tracker  handle.Tracker
	consumed bool
}

// NewEnvelope is used by Transport implementations. For a shared envelope
// the receiver holds one live reference to uid, dropped through tracker
// when the envelope or the accepted message is released.
func NewEnvelope(from ident.Uid, iface ident.Interface, payload []byte, uid ident.Uid, seq int64, tracker handle.Tracker) *Envelope {
	return &Envelope{From: from, Interface: iface, Payload: payload, Uid: uid, Seq: seq, tracker: tracker}
}

// Shared reports whether the envelope carries a shared message.
func (e *Envelope) Shared() bool { return !e.Uid.IsZero() }

// Release drops the live reference of an unaccepted shared envelope.
func (e *Envelope) Release() {
	if e.consumed {
		return
	}
	e.consumed = true
	if e.Shared() && e.tracker != nil {
		e.tracker.ReleaseResource(e.Uid)
	}
}

// PeekedEnvelope is used by Transport implementations for Peek results.
// The envelope is a view of a message still in the mailbox: it carries no
// live reference and cannot be accepted.
func PeekedEnvelope(from ident.Uid, iface ident.Interface, payload []byte, uid ident.Uid, seq int64) *Envelope {
	return &Envelope{From: from, Interface: iface, Payload: payload, Uid: uid, Seq: seq, consumed: true}
}
