package msg

import (
	"context"
	"time"

	"github.com/roach88/kobzar/internal/ident"
)

// Pipe is a standing two-way channel with one peer under one interface.
type Pipe[T any] struct {
	out *Sender[T]
	in  *Receiver[T]
}

// NewPipe opens a pipe to peer.
func NewPipe[T any](tr Transport, peer ident.Uid, iface ident.Interface, codec Codec[T]) *Pipe[T] {
	return &Pipe[T]{
		out: NewSender(tr, peer, iface, codec),
		in:  ReceiverFrom(tr, peer, iface, codec),
	}
}

func (p *Pipe[T]) Peer() ident.Uid { return p.out.peer }

func (p *Pipe[T]) Interface() ident.Interface { return p.out.iface }

func (p *Pipe[T]) Send(ctx context.Context, v T) error { return p.out.Send(ctx, v) }

func (p *Pipe[T]) Rendezvous(ctx context.Context, v T) error { return p.out.Rendezvous(ctx, v) }

func (p *Pipe[T]) RendezvousFor(ctx context.Context, v T, d time.Duration) (bool, error) {
	return p.out.RendezvousFor(ctx, v, d)
}

// Peek decodes the next inbound message without taking it.
func (p *Pipe[T]) Peek(ctx context.Context) (T, bool, error) {
	var zero T
	env, err := p.in.tr.Peek(ctx, p.in.filter())
	if err != nil || env == nil {
		return zero, false, err
	}
	v, err := p.in.codec.Decode(env.Payload)
	if err != nil {
		return zero, false, err
	}
	return v, true, nil
}

// TryRecv takes the next inbound message without blocking.
func (p *Pipe[T]) TryRecv(ctx context.Context) (T, bool, error) {
	return p.in.Recv(ctx)
}

// RecvSync blocks until the peer sends.
func (p *Pipe[T]) RecvSync(ctx context.Context) (T, error) {
	return p.in.RecvSync(ctx)
}
