package engine

import (
	"context"
	"time"

	"github.com/roach88/kobzar/internal/discovery"
	"github.com/roach88/kobzar/internal/env"
	"github.com/roach88/kobzar/internal/ident"
	"github.com/roach88/kobzar/internal/msg"
	"github.com/roach88/kobzar/internal/thread"
)

// scope is the environment of one thread. Every call it forwards to the
// engine acts on behalf of self.
type scope struct {
	e    *Engine
	self ident.Uid
}

var (
	_ env.Environment = (*scope)(nil)
	_ env.Network     = (*scope)(nil)
)

// Self returns the uid of the thread this scope acts for.
func (s *scope) Self() ident.Uid { return s.self }

func (s *scope) Network() env.Network { return s }

func (s *scope) RetainResource(uid ident.Uid) { s.e.ledger.Retain(uid, "") }

func (s *scope) ReleaseResource(uid ident.Uid) { s.e.ledger.Release(uid) }

func (s *scope) DownloadSnapshot(ctx context.Context, uid ident.Uid) (any, error) {
	return s.e.downloadSnapshot(ctx, uid)
}

func (s *scope) FindPackageInstances(ctx context.Context, req *discovery.FindInstanceRequest) (discovery.Instances, error) {
	return s.e.findPackageInstances(ctx, s.self, req)
}

func (s *scope) CreateThread(ctx context.Context, b *thread.Builder) (*thread.OwnedThread, error) {
	return s.e.createThread(ctx, s.self, b)
}

func (s *scope) AllowRun(ctx context.Context, t *thread.OwnedThread) error {
	return s.e.allowRun(ctx, s.self, t)
}

func (s *scope) RequestPause(ctx context.Context, t *thread.OwnedThread) error {
	return s.e.requestPause(ctx, s.self, t)
}

func (s *scope) RequestCease(ctx context.Context, t *thread.OwnedThread) error {
	return s.e.requestCease(ctx, s.self, t)
}

func (s *scope) BrutalKill(ctx context.Context, t *thread.OwnedThread) error {
	return s.e.brutalKill(ctx, s.self, t)
}

func (s *scope) Sleep(ctx context.Context, t *thread.OwnedThread, d time.Duration) error {
	return s.e.sleep(ctx, s.self, t, d)
}

func (s *scope) SetPerformancePolicy(ctx context.Context, t *thread.OwnedThread, p thread.PerformancePolicy) error {
	return s.e.setPerformancePolicy(ctx, s.self, t, p)
}

func (s *scope) SetKillGuard(ctx context.Context, t *thread.OwnedThread, guarded bool) error {
	return s.e.setKillGuard(ctx, s.self, t, guarded)
}

func (s *scope) CurrentThread(ctx context.Context) (*thread.OwnedThread, error) {
	return s.e.currentThread(ctx, s.self)
}

func (s *scope) Checkpoint(ctx context.Context) error {
	return s.e.checkpoint(ctx, s.self)
}

func (s *scope) Send(ctx context.Context, p msg.Packet) error {
	return s.e.send(ctx, s.self, p)
}

func (s *scope) SendWhenAvailable(ctx context.Context, p msg.Packet) error {
	return s.e.sendWhenAvailable(ctx, s.self, p)
}

func (s *scope) Rendezvous(ctx context.Context, p msg.Packet, timeout time.Duration) (bool, error) {
	return s.e.rendezvous(ctx, s.self, p, timeout)
}

func (s *scope) TransferTime(ctx context.Context, p msg.Packet) error {
	return s.e.transferTime(ctx, s.self, p)
}

func (s *scope) NewSharedUid(ctx context.Context) (ident.Uid, error) {
	return s.e.newSharedUid(ctx, s.self)
}

func (s *scope) Receive(ctx context.Context, f msg.Filter, timeout time.Duration) (*msg.Envelope, error) {
	return s.e.receive(ctx, s.self, f, timeout)
}

func (s *scope) Peek(ctx context.Context, f msg.Filter) (*msg.Envelope, error) {
	return s.e.peek(ctx, s.self, f)
}

func (s *scope) HasIncoming(ctx context.Context, f msg.Filter) bool {
	return s.e.hasIncoming(ctx, s.self, f)
}

func (s *scope) WaitAny(ctx context.Context, f msg.Filter, timeout time.Duration) (bool, error) {
	return s.e.waitAny(ctx, s.self, f, timeout)
}
