package handle

import (
	"cmp"
	"context"
	"sync/atomic"

	"github.com/roach88/kobzar/internal/ident"
)

// Tracker is the environment side of resource lifetime.
//
// RetainResource registers one more live reference under uid.
// ReleaseResource drops one; the environment uses the counts to decide when
// a network-wide resource record may be collected.
type Tracker interface {
	RetainResource(uid ident.Uid)
	ReleaseResource(uid ident.Uid)
}

// Source is a Tracker that can also re-fetch variable data by Uid.
//
// DownloadSnapshot returns the environment's latest payload for uid. It does
// not register a live reference.
type Source interface {
	Tracker
	DownloadSnapshot(ctx context.Context, uid ident.Uid) (any, error)
}

// Domain identifies a scheduling domain (one computing unit).
type Domain uint32

// Handle is anything tracked by the environment under a Uid.
type Handle interface {
	Uid() ident.Uid
}

// Constant is a handle whose payload never changes while the handle lives.
type Constant interface {
	Handle
	constant()
}

// Variable is a handle whose payload may go stale and must be re-synced
// explicitly.
type Variable interface {
	Handle
	Update(ctx context.Context) error
}

// Ref is a handle exposing its cached payload.
type Ref[T any] interface {
	Handle
	Value() T
}

// Equal reports whether a and b denote the same resource or hold equal
// payloads. Equal Uids short-circuit to true without looking at payloads.
func Equal[T comparable](a, b Ref[T]) bool {
	if a.Uid() == b.Uid() {
		return true
	}
	return a.Value() == b.Value()
}

// EqualFunc is Equal with a caller-supplied payload comparison.
func EqualFunc[T any](a, b Ref[T], eq func(x, y T) bool) bool {
	if a.Uid() == b.Uid() {
		return true
	}
	return eq(a.Value(), b.Value())
}

// Compare orders a and b by payload. Handles with equal Uids compare as 0.
func Compare[T cmp.Ordered](a, b Ref[T]) int {
	if a.Uid() == b.Uid() {
		return 0
	}
	return cmp.Compare(a.Value(), b.Value())
}

// CompareFunc is Compare with a caller-supplied payload ordering.
func CompareFunc[T any](a, b Ref[T], order func(x, y T) int) int {
	if a.Uid() == b.Uid() {
		return 0
	}
	return order(a.Value(), b.Value())
}

// group is the state shared by all owners of one handle group.
type group[T any] struct {
	uid       ident.Uid
	value     T
	tracker   Tracker
	finalized atomic.Bool
}

// finalize notifies the environment. Safe to call more than once; only the
// first call reaches the tracker.
func (g *group[T]) finalize() {
	if g.finalized.CompareAndSwap(false, true) {
		g.tracker.ReleaseResource(g.uid)
	}
}

// Local is a handle owned within a single scheduling domain.
//
// Local is not safe for concurrent use: its owner count is not atomic and it
// must not migrate to a different domain. Use Share to obtain a Shared.
type Local[T any] struct {
	g       *localGroup[T]
	dropped bool
}

type localGroup[T any] struct {
	group[T]
	owners int
	domain Domain
}

// NewLocal wraps value as the first owner of a new single-domain group.
// Environment implementations call this after registering the live
// reference for uid.
func NewLocal[T any](uid ident.Uid, value T, domain Domain, tracker Tracker) *Local[T] {
	g := &localGroup[T]{domain: domain, owners: 1}
	g.uid, g.value, g.tracker = uid, value, tracker
	return &Local[T]{g: g}
}

func (h *Local[T]) Uid() ident.Uid { return h.g.uid }

// Value returns the wrapped payload.
func (h *Local[T]) Value() T { return h.g.value }

// Domain returns the scheduling domain the group is bound to.
func (h *Local[T]) Domain() Domain { return h.g.domain }

// Released reports whether this owner has been released.
func (h *Local[T]) Released() bool { return h.dropped }

// Owners returns the number of live owners in the group.
func (h *Local[T]) Owners() int { return h.g.owners }

func (h *Local[T]) constant() {}

// Clone adds an owner to the group.
// Panics if this owner was already released.
func (h *Local[T]) Clone() *Local[T] {
	if h.dropped {
		panic(ErrReleased)
	}
	h.g.owners++
	return &Local[T]{g: h.g}
}

// Release drops this owner. The last owner's release finalizes the group.
// Releasing the same owner twice is a no-op.
func (h *Local[T]) Release() {
	if h.dropped {
		return
	}
	h.dropped = true
	h.g.owners--
	if h.g.owners == 0 {
		h.g.finalize()
	}
}

// Share converts a sole-owner Local into a Shared. The live reference moves
// to the new group; this owner becomes released without finalizing.
func (h *Local[T]) Share() (*Shared[T], error) {
	if h.dropped {
		return nil, ErrReleased
	}
	if h.g.owners != 1 {
		return nil, ErrNotUnique
	}
	h.dropped = true
	h.g.owners = 0
	return NewShared(h.g.uid, h.g.value, h.g.tracker), nil
}

// Shared is a handle that may be handed across scheduling domains.
// All methods are safe for concurrent use.
type Shared[T any] struct {
	g       *sharedGroup[T]
	dropped atomic.Bool
}

type sharedGroup[T any] struct {
	group[T]
	owners atomic.Int64
}

// NewShared wraps value as the first owner of a new cross-domain group.
// Environment implementations call this after registering the live
// reference for uid.
func NewShared[T any](uid ident.Uid, value T, tracker Tracker) *Shared[T] {
	g := &sharedGroup[T]{}
	g.uid, g.value, g.tracker = uid, value, tracker
	g.owners.Store(1)
	return &Shared[T]{g: g}
}

func (h *Shared[T]) Uid() ident.Uid { return h.g.uid }

// Value returns the wrapped payload.
func (h *Shared[T]) Value() T { return h.g.value }

// Released reports whether this owner has been released.
func (h *Shared[T]) Released() bool { return h.dropped.Load() }

// Owners returns the number of live owners in the group.
func (h *Shared[T]) Owners() int { return int(h.g.owners.Load()) }

func (h *Shared[T]) constant() {}

// Clone adds an owner to the group.
// Panics if this owner was already released.
func (h *Shared[T]) Clone() *Shared[T] {
	if h.dropped.Load() {
		panic(ErrReleased)
	}
	h.g.owners.Add(1)
	return &Shared[T]{g: h.g}
}

// Release drops this owner. The last owner's release finalizes the group.
// Releasing the same owner twice is a no-op.
func (h *Shared[T]) Release() {
	if !h.dropped.CompareAndSwap(false, true) {
		return
	}
	if h.g.owners.Add(-1) == 0 {
		h.g.finalize()
	}
}

// Localize converts a sole-owner Shared into a Local bound to domain d.
// The live reference moves to the new group.
func (h *Shared[T]) Localize(d Domain) (*Local[T], error) {
	if h.dropped.Load() {
		return nil, ErrReleased
	}
	if !h.g.owners.CompareAndSwap(1, 0) {
		return nil, ErrNotUnique
	}
	h.dropped.Store(true)
	return NewLocal(h.g.uid, h.g.value, d, h.g.tracker), nil
}
