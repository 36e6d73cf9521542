package msg

import (
	"context"
	"fmt"
	"time"

	"github.com/roach88/kobzar/internal/handle"
	"github.com/roach88/kobzar/internal/ident"
)

// Receiver reads I payloads from one peer under one interface.
//
// The codec is trusted: the caller guarantees the peer encodes what the
// interface declares. Decode failures are reported but nothing checks the
// payload against the interface beyond its tag.
type Receiver[I any] struct {
	tr    Transport
	peer  ident.Uid
	iface ident.Interface
	codec Codec[I]
}

// ReceiverFrom binds a receiver to a known peer.
func ReceiverFrom[I any](tr Transport, peer ident.Uid, iface ident.Interface, codec Codec[I]) *Receiver[I] {
	return &Receiver[I]{tr: tr, peer: peer, iface: iface, codec: codec}
}

// NewReceiver binds a receiver to the sender of the oldest pending message
// under iface. Returns false when no such message is waiting.
func NewReceiver[I any](ctx context.Context, tr Transport, iface ident.Interface, codec Codec[I]) (*Receiver[I], bool, error) {
	env, err := tr.Peek(ctx, Filter{Interfaces: []ident.Interface{iface}})
	if err != nil || env == nil {
		return nil, false, err
	}
	return ReceiverFrom(tr, env.From, iface, codec), true, nil
}

// NewReceiverSync is NewReceiver that waits for a message under iface.
func NewReceiverSync[I any](ctx context.Context, tr Transport, iface ident.Interface, codec Codec[I]) (*Receiver[I], error) {
	r, _, err := newReceiverWait(ctx, tr, iface, codec, Forever)
	return r, err
}

// NewReceiverSyncFor is NewReceiverSync bounded by d. Returns false on
// timeout.
func NewReceiverSyncFor[I any](ctx context.Context, tr Transport, iface ident.Interface, codec Codec[I], d time.Duration) (*Receiver[I], bool, error) {
	if d < 0 {
		d = 0
	}
	return newReceiverWait(ctx, tr, iface, codec, d)
}

func newReceiverWait[I any](ctx context.Context, tr Transport, iface ident.Interface, codec Codec[I], d time.Duration) (*Receiver[I], bool, error) {
	ok, err := tr.WaitAny(ctx, Filter{Interfaces: []ident.Interface{iface}}, d)
	if err != nil || !ok {
		return nil, false, err
	}
	return NewReceiver(ctx, tr, iface, codec)
}

func (r *Receiver[I]) Peer() ident.Uid { return r.peer }

func (r *Receiver[I]) Interface() ident.Interface { return r.iface }

func (r *Receiver[I]) filter() Filter {
	return Filter{From: r.peer, Interfaces: []ident.Interface{r.iface}}
}

// Recv takes the next message without blocking. Returns false if none is
// waiting.
func (r *Receiver[I]) Recv(ctx context.Context) (I, bool, error) {
	return r.recv(ctx, 0)
}

// RecvSync blocks until a message arrives.
func (r *Receiver[I]) RecvSync(ctx context.Context) (I, error) {
	v, _, err := r.recv(ctx, Forever)
	return v, err
}

// RecvSyncFor blocks for at most d. Returns false on timeout.
func (r *Receiver[I]) RecvSyncFor(ctx context.Context, d time.Duration) (I, bool, error) {
	if d < 0 {
		d = 0
	}
	return r.recv(ctx, d)
}

func (r *Receiver[I]) recv(ctx context.Context, d time.Duration) (I, bool, error) {
	var zero I
	env, err := r.tr.Receive(ctx, r.filter(), d)
	if err != nil || env == nil {
		return zero, false, err
	}
	got, err := AcceptUnchecked(env, r.codec)
	if err != nil {
		// The letter is already out of the mailbox.
		env.Release()
		return zero, false, err
	}
	// Plain receivers do not keep shared handles.
	got.Release()
	return got.Value, true, nil
}

// Receive takes the oldest envelope in the mailbox, or nil if it is empty.
func Receive(ctx context.Context, tr Transport) (*Envelope, error) {
	return tr.Receive(ctx, Filter{}, 0)
}

// ReceiveFrom takes the oldest envelope sent by from, or nil if none.
func ReceiveFrom(ctx context.Context, tr Transport, from ident.Uid) (*Envelope, error) {
	return tr.Receive(ctx, Filter{From: from}, 0)
}

// HasIncoming reports whether any message is waiting.
func HasIncoming(ctx context.Context, tr Transport) bool {
	return tr.HasIncoming(ctx, Filter{})
}

// IsEmpty reports whether the mailbox is empty.
func IsEmpty(ctx context.Context, tr Transport) bool {
	return !HasIncoming(ctx, tr)
}

// WaitAny blocks until a message under one of ifaces is waiting. With no
// interfaces any message counts.
func WaitAny(ctx context.Context, tr Transport, ifaces ...ident.Interface) error {
	_, err := tr.WaitAny(ctx, Filter{Interfaces: ifaces}, Forever)
	return err
}

// WaitAnyFor is WaitAny bounded by d. Returns false on timeout.
func WaitAnyFor(ctx context.Context, tr Transport, d time.Duration, ifaces ...ident.Interface) (bool, error) {
	if d < 0 {
		d = 0
	}
	return tr.WaitAny(ctx, Filter{Interfaces: ifaces}, d)
}

// Accept decodes e as a message under iface. A different interface tag is
// ErrUnsupported and leaves e untouched.
func Accept[T any](e *Envelope, iface ident.Interface, codec Codec[T]) (*Received[T], error) {
	if e.Interface != iface {
		return nil, NewError(CodeUnsupported, e.From, e.Interface,
			fmt.Sprintf("expected %s", iface))
	}
	return AcceptUnchecked(e, codec)
}

// AcceptUnchecked decodes e without looking at its interface tag.
// The caller guarantees codec matches what the sender encoded.
func AcceptUnchecked[T any](e *Envelope, codec Codec[T]) (*Received[T], error) {
	if e.consumed {
		return nil, fmt.Errorf("msg: envelope from %s already consumed", e.From.Short())
	}
	v, err := codec.Decode(e.Payload)
	if err != nil {
		return nil, fmt.Errorf("decode %s from %s: %w", e.Interface, e.From.Short(), err)
	}
	e.consumed = true
	got := &Received[T]{From: e.From, Interface: e.Interface, Value: v}
	if e.Shared() {
		// The envelope's live reference moves to the handle.
		got.shared = handle.NewShared(e.Uid, v, e.tracker)
	}
	return got, nil
}
