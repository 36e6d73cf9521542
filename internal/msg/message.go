package msg

import (
	"github.com/roach88/kobzar/internal/handle"
	"github.com/roach88/kobzar/internal/ident"
)

// Message is a single outbound payload tagged with its interface.
type Message[T any] struct {
	Interface ident.Interface
	Value     T
}

// NewMessage tags v with iface.
func NewMessage[T any](iface ident.Interface, v T) Message[T] {
	return Message[T]{Interface: iface, Value: v}
}

// NewSignal is a zero-payload message that notifies by interface tag alone.
func NewSignal(iface ident.Interface) Message[struct{}] {
	return Message[struct{}]{Interface: iface}
}

// SharedMessage is a message that keeps an environment Uid after its first
// send and can be shared with further recipients under that Uid.
type SharedMessage[T any] struct {
	iface ident.Interface
	value T
	h     *handle.Shared[T]
}

// NewSharedMessage tags v with iface. It has no Uid until first sent.
func NewSharedMessage[T any](iface ident.Interface, v T) *SharedMessage[T] {
	return &SharedMessage[T]{iface: iface, value: v}
}

func (m *SharedMessage[T]) Interface() ident.Interface { return m.iface }

func (m *SharedMessage[T]) Value() T { return m.value }

// Uid returns the environment uid, or the zero Uid before the first send.
func (m *SharedMessage[T]) Uid() ident.Uid {
	if m.h == nil {
		return ident.Uid{}
	}
	return m.h.Uid()
}

// Sent reports whether the message has been sent at least once.
func (m *SharedMessage[T]) Sent() bool { return m.h != nil }

// Release drops the sender's live reference. A never-sent message holds
// none.
func (m *SharedMessage[T]) Release() {
	if m.h != nil {
		m.h.Release()
	}
}

// Received is a decoded inbound message.
type Received[T any] struct {
	From      ident.Uid
	Interface ident.Interface
	Value     T

	shared *handle.Shared[T]
}

// Shared reports whether the message can be reshared.
func (r *Received[T]) Shared() bool { return r.shared != nil }

// Uid returns the shared message uid, zero for plain messages.
func (r *Received[T]) Uid() ident.Uid {
	if r.shared == nil {
		return ident.Uid{}
	}
	return r.shared.Uid()
}

// Release drops the receiver's live reference to a shared message.
func (r *Received[T]) Release() {
	if r.shared != nil {
		r.shared.Release()
	}
}
