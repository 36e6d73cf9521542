package thread

import (
	"context"
	"time"

	"github.com/roach88/kobzar/internal/handle"
	"github.com/roach88/kobzar/internal/ident"
)

// Controller is the environment side of thread management. Every call acts
// on behalf of the thread that owns the Controller value.
type Controller interface {
	CreateThread(ctx context.Context, b *Builder) (*OwnedThread, error)
	AllowRun(ctx context.Context, t *OwnedThread) error
	RequestPause(ctx context.Context, t *OwnedThread) error
	RequestCease(ctx context.Context, t *OwnedThread) error
	BrutalKill(ctx context.Context, t *OwnedThread) error
	Sleep(ctx context.Context, t *OwnedThread, d time.Duration) error
	SetPerformancePolicy(ctx context.Context, t *OwnedThread, p PerformancePolicy) error
	SetKillGuard(ctx context.Context, t *OwnedThread, guarded bool) error
	CurrentThread(ctx context.Context) (*OwnedThread, error)

	// Checkpoint is a cooperative confirmation point for the calling thread.
	// Pending pause and cease requests are confirmed here; a paused caller
	// blocks until it is allowed to run again.
	Checkpoint(ctx context.Context) error
}

// Info is the public record of a thread as kept by the environment.
type Info struct {
	Instance    ident.InstanceID
	Path        ident.Path
	State       State
	Publicity   Publicity
	Performance PerformancePolicy
	Type        Type
	Owner       ident.Uid
	Guarded     bool

	PowersaveNotify        bool
	PowersaveDisableNotify bool
}

// Thread is a snapshot of a thread's public record.
type Thread struct {
	snap *handle.Snapshot[Info]
}

// NewThread wraps an environment-issued snapshot.
func NewThread(s *handle.Snapshot[Info]) *Thread {
	return &Thread{snap: s}
}

func (t *Thread) Uid() ident.Uid { return t.snap.Uid() }

// Value returns the record as of the last update.
func (t *Thread) Value() Info { return t.snap.Value() }

// State returns the state when the snapshot was taken or last updated.
func (t *Thread) State() State { return t.snap.Value().State }

// Instance returns the instance the thread registers as.
func (t *Thread) Instance() ident.InstanceID { return t.snap.Value().Instance }

func (t *Thread) Publicity() Publicity { return t.snap.Value().Publicity }

// Update refreshes the record from the environment.
func (t *Thread) Update(ctx context.Context) error { return t.snap.Update(ctx) }

// DownloadLatest returns a fresh Thread without touching t.
func (t *Thread) DownloadLatest(ctx context.Context) (*Thread, error) {
	s, err := t.snap.DownloadLatest(ctx)
	if err != nil {
		return nil, err
	}
	return NewThread(s), nil
}

// Release drops the live reference held by this snapshot.
func (t *Thread) Release() { t.snap.Release() }

// OwnedThread is a thread together with its owner's privileges.
type OwnedThread struct {
	*Thread
	ctl    Controller
	policy PerformancePolicy
}

// NewOwned binds a thread snapshot to the controller that issued it.
func NewOwned(s *handle.Snapshot[Info], ctl Controller) *OwnedThread {
	return &OwnedThread{Thread: NewThread(s), ctl: ctl, policy: s.Value().Performance}
}

// Current returns the calling thread as seen through ctl.
func Current(ctx context.Context, ctl Controller) (*OwnedThread, error) {
	return ctl.CurrentThread(ctx)
}

// AllowRun requests that the thread be allowed to run.
func (t *OwnedThread) AllowRun(ctx context.Context) error {
	return t.ctl.AllowRun(ctx, t)
}

// RequestPause asks the thread to stop executing until run is allowed again.
func (t *OwnedThread) RequestPause(ctx context.Context) error {
	return t.ctl.RequestPause(ctx, t)
}

// RequestCease asks the thread to finish.
func (t *OwnedThread) RequestCease(ctx context.Context) error {
	return t.ctl.RequestCease(ctx, t)
}

// BruteKill terminates the thread immediately, skipping confirmation.
// Resources owned by the thread are lost. Returns ErrGuarded if the thread
// holds a kill guard; prefer RequestCease.
func (t *OwnedThread) BruteKill(ctx context.Context) error {
	return t.ctl.BrutalKill(ctx, t)
}

// Sleep suspends the thread for at least d.
func (t *OwnedThread) Sleep(ctx context.Context, d time.Duration) error {
	return t.ctl.Sleep(ctx, t, d)
}

// SetPerformancePolicy changes the policy or returns a *PolicyError naming
// the most permissive policy available. The policy is never clamped.
func (t *OwnedThread) SetPerformancePolicy(ctx context.Context, p PerformancePolicy) error {
	if err := t.ctl.SetPerformancePolicy(ctx, t, p); err != nil {
		return err
	}
	t.policy = p
	return nil
}

// PerformancePolicy returns the last policy set through this handle.
func (t *OwnedThread) PerformancePolicy() PerformancePolicy { return t.policy }

// SetKillGuard toggles protection against BruteKill. Only the thread
// itself may do this; owners get ErrNotSelf.
func (t *OwnedThread) SetKillGuard(ctx context.Context, guarded bool) error {
	return t.ctl.SetKillGuard(ctx, t, guarded)
}
