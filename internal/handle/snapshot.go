package handle

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/roach88/kobzar/internal/ident"
)

// Snapshot is a handle over variable data: a cached copy of state the
// environment may change independently of the holder.
//
// Each Snapshot is one owner of one live reference. Update mutates the cache
// in place; nothing is ever written back. Reads and Update are safe for
// concurrent use.
type Snapshot[T any] struct {
	uid      ident.Uid
	src      Source
	mu       sync.RWMutex
	value    T
	released atomic.Bool
}

// NewSnapshot wraps value fetched for uid. Environment implementations call
// this after registering the live reference for uid.
func NewSnapshot[T any](uid ident.Uid, value T, src Source) *Snapshot[T] {
	return &Snapshot[T]{uid: uid, value: value, src: src}
}

func (s *Snapshot[T]) Uid() ident.Uid { return s.uid }

// Value returns the payload as of creation or the last Update.
func (s *Snapshot[T]) Value() T {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.value
}

// Released reports whether the snapshot has been released.
func (s *Snapshot[T]) Released() bool { return s.released.Load() }

// Update re-fetches the payload from the environment and replaces the
// cached copy. The Uid and live reference are unchanged.
func (s *Snapshot[T]) Update(ctx context.Context) error {
	if s.released.Load() {
		return ErrReleased
	}
	v, err := download[T](ctx, s.src, s.uid)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.value = v
	s.mu.Unlock()
	return nil
}

// DownloadLatest returns a fresh snapshot of the same resource without
// touching the receiver. The new snapshot holds its own live reference.
func (s *Snapshot[T]) DownloadLatest(ctx context.Context) (*Snapshot[T], error) {
	if s.released.Load() {
		return nil, ErrReleased
	}
	v, err := download[T](ctx, s.src, s.uid)
	if err != nil {
		return nil, err
	}
	s.src.RetainResource(s.uid)
	return NewSnapshot(s.uid, v, s.src), nil
}

// Clone returns an independent snapshot with the same cached payload and
// its own live reference. Updating one does not affect the other.
// Panics if s was already released.
func (s *Snapshot[T]) Clone() *Snapshot[T] {
	if s.released.Load() {
		panic(ErrReleased)
	}
	s.src.RetainResource(s.uid)
	return NewSnapshot(s.uid, s.Value(), s.src)
}

// Release drops this snapshot's live reference. Safe to call more than once.
func (s *Snapshot[T]) Release() {
	if s.released.CompareAndSwap(false, true) {
		s.src.ReleaseResource(s.uid)
	}
}

func download[T any](ctx context.Context, src Source, uid ident.Uid) (T, error) {
	var zero T
	raw, err := src.DownloadSnapshot(ctx, uid)
	if err != nil {
		return zero, fmt.Errorf("download snapshot %s: %w", uid.Short(), err)
	}
	v, ok := raw.(T)
	if !ok {
		return zero, fmt.Errorf("%w: got %T, want %T", ErrPayloadType, raw, zero)
	}
	return v, nil
}
