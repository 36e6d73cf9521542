package msg

import (
	"context"
	"fmt"
	"time"

	"github.com/roach88/kobzar/internal/handle"
	"github.com/roach88/kobzar/internal/ident"
)

// Sender sends O payloads to one peer under one interface.
type Sender[O any] struct {
	tr    Transport
	peer  ident.Uid
	iface ident.Interface
	codec Codec[O]
}

// NewSender binds a sender to peer and iface.
func NewSender[O any](tr Transport, peer ident.Uid, iface ident.Interface, codec Codec[O]) *Sender[O] {
	return &Sender[O]{tr: tr, peer: peer, iface: iface, codec: codec}
}

func (s *Sender[O]) Peer() ident.Uid { return s.peer }

func (s *Sender[O]) Interface() ident.Interface { return s.iface }

func (s *Sender[O]) packet(v O) Packet {
	return Packet{To: s.peer, Interface: s.iface, Payload: s.codec.Encode(v)}
}

// Send buffers v in the peer's mailbox without blocking. Fails with
// ErrPending if an earlier message from this sender is still pending there.
func (s *Sender[O]) Send(ctx context.Context, v O) error {
	return s.tr.Send(ctx, s.packet(v))
}

// SendWhenAvailable waits for the mailbox slot to free up, then buffers v.
// Waiting senders are served in arrival order.
func (s *Sender[O]) SendWhenAvailable(ctx context.Context, v O) error {
	return s.tr.SendWhenAvailable(ctx, s.packet(v))
}

// Rendezvous blocks until the receiver takes v out of its mailbox. It runs
// after every earlier message from this sender under this interface has been
// taken.
func (s *Sender[O]) Rendezvous(ctx context.Context, v O) error {
	_, err := s.tr.Rendezvous(ctx, s.packet(v), Forever)
	return err
}

// RendezvousFor is Rendezvous bounded by d. It returns false when d elapses;
// the message is then withdrawn and never delivered.
func (s *Sender[O]) RendezvousFor(ctx context.Context, v O, d time.Duration) (bool, error) {
	if d < 0 {
		d = 0
	}
	return s.tr.Rendezvous(ctx, s.packet(v), d)
}

// TransferTime delivers v and hands the rest of the caller's slice to the
// receiver. Both threads must share a computing unit, otherwise the
// transport returns ErrUnsupported.
func (s *Sender[O]) TransferTime(ctx context.Context, v O) error {
	return s.tr.TransferTime(ctx, s.packet(v))
}

// SendMessage sends m with Send after checking its interface tag.
func (s *Sender[O]) SendMessage(ctx context.Context, m Message[O]) error {
	if m.Interface != s.iface {
		return s.mismatch(m.Interface)
	}
	return s.Send(ctx, m.Value)
}

// SendShared sends m with Send. The first send registers m with the
// environment and assigns its Uid; later sends reuse it.
func (s *Sender[O]) SendShared(ctx context.Context, m *SharedMessage[O]) error {
	if m.iface != s.iface {
		return s.mismatch(m.iface)
	}
	if m.h == nil {
		uid, err := s.tr.NewSharedUid(ctx)
		if err != nil {
			return fmt.Errorf("register shared message: %w", err)
		}
		m.h = handle.NewShared(uid, m.value, handle.Tracker(s.tr))
	}
	p := s.packet(m.value)
	p.Uid = m.h.Uid()
	return s.tr.Send(ctx, p)
}

// Reshare forwards a received shared message to this sender's peer under
// the same Uid.
func (r *Received[T]) Reshare(ctx context.Context, s *Sender[T]) error {
	if r.shared == nil {
		return NewError(CodeUnsupported, r.From, r.Interface, "message is not shared")
	}
	if r.Interface != s.iface {
		return s.mismatch(r.Interface)
	}
	p := s.packet(r.Value)
	p.Uid = r.shared.Uid()
	return s.tr.Send(ctx, p)
}

func (s *Sender[O]) mismatch(got ident.Interface) error {
	return NewError(CodeUnsupported, s.peer, s.iface,
		fmt.Sprintf("message tagged %s", got))
}
