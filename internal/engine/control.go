package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/roach88/kobzar/internal/discovery"
	"github.com/roach88/kobzar/internal/handle"
	"github.com/roach88/kobzar/internal/ident"
	"github.com/roach88/kobzar/internal/msg"
	"github.com/roach88/kobzar/internal/thread"
)

// authorize checks that caller may control target: it must own it or be
// it. Caller holds e.mu.
func (e *Engine) authorize(caller ident.Uid, target ident.Uid) (*proc, error) {
	t, err := e.lookup(target)
	if err != nil {
		return nil, err
	}
	if t.uid != caller && t.info.Owner != caller {
		return nil, newRuntimeError(ErrCodeNotOwner, target, "caller %s does not own thread", caller.Short())
	}
	return t, nil
}

func (e *Engine) createThread(_ context.Context, caller ident.Uid, b *thread.Builder) (*thread.OwnedThread, error) {
	path, err := ident.NewPath(b.Path.Segments()...)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	c, err := e.lookup(caller)
	if err != nil {
		return nil, err
	}
	if !e.cfg.creationAllowed(path) {
		return nil, &thread.BuildError{
			Code:    thread.ErrCodeCreationNotPermitted,
			Path:    path.String(),
			Message: "creation denied under this path",
		}
	}
	if most := e.cfg.mostSupported(c.info.Path, c.isRoot); b.Performance > most {
		return nil, &thread.BuildError{
			Code:          thread.ErrCodePolicyNotPermitted,
			Path:          path.String(),
			Message:       "performance policy " + b.Performance.String() + " not permitted",
			MostSupported: most,
		}
	}
	impl, ok := e.impls[b.Implements]
	if !ok {
		return nil, &thread.BuildError{
			Code:    thread.ErrCodeNotFound,
			Path:    path.String(),
			Message: "no implementation of " + b.Implements.String(),
		}
	}
	if err := e.quota.Acquire(caller); err != nil {
		return nil, &thread.BuildError{
			Code:    thread.ErrCodeCreationNotPermitted,
			Path:    path.String(),
			Message: err.Error(),
		}
	}

	uid := e.uids.Next(ident.DomainThread)
	p := &proc{
		uid: uid,
		info: thread.Info{
			Instance:               ident.InstanceID{Interface: b.Implements, Uid: uid},
			Path:                   path,
			State:                  thread.Paused,
			Publicity:              max(b.Publicity, impl.Publicity),
			Performance:            b.Performance,
			Type:                   b.Type,
			Owner:                  caller,
			PowersaveNotify:        b.PowersaveNotify,
			PowersaveDisableNotify: b.PowersaveDisableNotify,
		},
		impl:      impl,
		unit:      e.cfg.unitOf(path),
		box:       newMailbox(),
		contacted: make(map[ident.Uid]bool),
	}
	e.procs[uid] = p
	e.order = append(e.order, uid)
	e.ledger.Retain(uid, KindThread)

	slog.Info("thread created",
		"thread", uid.Short(),
		"path", path.String(),
		"interface", b.Implements.String(),
		"owner", caller.Short(),
		"unit", p.unit,
	)
	e.broadcast()

	sc := e.scope(caller)
	return thread.NewOwned(handle.NewSnapshot(uid, p.info, sc), sc), nil
}

// request applies a request event on behalf of caller and hands the
// confirmation to the loop when the loop is responsible for it.
func (e *Engine) request(caller ident.Uid, t *thread.OwnedThread, ev thread.Event) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	p, err := e.authorize(caller, t.Uid())
	if err != nil {
		return err
	}
	if err := e.transition(p, ev); err != nil {
		return err
	}
	s := p.info.State
	if s == thread.PausedRunRequested || s == thread.PausedCeaseRequested || (s.HasPending() && !p.bodyActive()) {
		if !e.queue.Enqueue(Event{Type: EventTypeRequested, Thread: p.uid}) {
			return newRuntimeError(ErrCodeStopped, p.uid, "engine stopped; request stays pending")
		}
	}
	return nil
}

func (e *Engine) allowRun(_ context.Context, caller ident.Uid, t *thread.OwnedThread) error {
	return e.request(caller, t, thread.EventAllowRun)
}

func (e *Engine) requestPause(_ context.Context, caller ident.Uid, t *thread.OwnedThread) error {
	return e.request(caller, t, thread.EventRequestPause)
}

func (e *Engine) requestCease(_ context.Context, caller ident.Uid, t *thread.OwnedThread) error {
	return e.request(caller, t, thread.EventRequestCease)
}

func (e *Engine) brutalKill(_ context.Context, caller ident.Uid, t *thread.OwnedThread) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	p, err := e.authorize(caller, t.Uid())
	if err != nil {
		return err
	}
	if p.isRoot {
		return newRuntimeError(ErrCodeNotOwner, p.uid, "the root thread cannot be killed")
	}
	if p.info.Guarded {
		return thread.ErrGuarded
	}
	return e.transition(p, thread.EventKill)
}

func (e *Engine) sleep(ctx context.Context, caller ident.Uid, t *thread.OwnedThread, d time.Duration) error {
	if t.Uid() == caller {
		timer := time.NewTimer(d)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
		return e.checkpoint(ctx, caller)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	p, err := e.authorize(caller, t.Uid())
	if err != nil {
		return err
	}
	if p.info.State.IsDead() {
		return thread.ErrTerminal
	}
	// The target serves the sleep at its next checkpoint.
	if until := time.Now().Add(d); until.After(p.sleepUntil) {
		p.sleepUntil = until
	}
	return nil
}

func (e *Engine) setPerformancePolicy(_ context.Context, caller ident.Uid, t *thread.OwnedThread, pol thread.PerformancePolicy) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	c, err := e.lookup(caller)
	if err != nil {
		return err
	}
	p, err := e.authorize(caller, t.Uid())
	if err != nil {
		return err
	}
	if most := e.cfg.mostSupported(c.info.Path, c.isRoot); pol > most {
		return &thread.PolicyError{Requested: pol, MostSupported: most}
	}
	if p.info.Performance != pol {
		slog.Debug("performance policy changed",
			"thread", p.uid.Short(),
			"from", p.info.Performance.String(),
			"to", pol.String(),
		)
		p.info.Performance = pol
		e.broadcast()
	}
	return nil
}

func (e *Engine) setKillGuard(_ context.Context, caller ident.Uid, t *thread.OwnedThread, guarded bool) error {
	if t.Uid() != caller {
		return thread.ErrNotSelf
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	p, err := e.lookup(caller)
	if err != nil {
		return err
	}
	p.info.Guarded = guarded
	e.broadcast()
	return nil
}

func (e *Engine) currentThread(_ context.Context, caller ident.Uid) (*thread.OwnedThread, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	p, err := e.lookup(caller)
	if err != nil {
		return nil, err
	}
	e.ledger.Retain(caller, KindThread)
	sc := e.scope(caller)
	return thread.NewOwned(handle.NewSnapshot(caller, p.info, sc), sc), nil
}

// checkpoint confirms pending requests of the calling thread and blocks
// while it is paused.
func (e *Engine) checkpoint(ctx context.Context, caller ident.Uid) error {
	e.mu.Lock()
	p, err := e.lookup(caller)
	if err != nil {
		e.mu.Unlock()
		return err
	}
	until := p.sleepUntil
	p.sleepUntil = time.Time{}
	e.mu.Unlock()

	if wait := time.Until(until); wait > 0 {
		timer := time.NewTimer(wait)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}

	for {
		e.mu.Lock()
		switch p.info.State {
		case thread.RunningPauseRequested, thread.RunningCeaseRequested:
			if err := e.transition(p, thread.EventConfirm); err != nil {
				e.mu.Unlock()
				return err
			}
		}
		state := p.info.State
		e.mu.Unlock()

		switch {
		case state.IsDead():
			return newRuntimeError(ErrCodeCeased, caller, "thread is %s", state)
		case state.Executing():
			return nil
		}

		// Paused: wait until allowed to run again or finished.
		if _, err := e.waitUntil(ctx, msg.Forever, func() bool {
			s := p.info.State
			return s.Executing() || s.IsDead()
		}); err != nil {
			return err
		}
	}
}

func (e *Engine) downloadSnapshot(_ context.Context, uid ident.Uid) (any, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	p, ok := e.procs[uid]
	if !ok {
		return nil, newRuntimeError(ErrCodeUnknownResource, uid, "no snapshot for resource")
	}
	return p.info, nil
}

func (e *Engine) findPackageInstances(_ context.Context, caller ident.Uid, req *discovery.FindInstanceRequest) (discovery.Instances, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	c, err := e.lookup(caller)
	if err != nil {
		return nil, err
	}

	sc := e.scope(caller)
	out := discovery.NewInstances()
	for _, uid := range e.order {
		p := e.procs[uid]
		if p.impl == nil || p.info.State.IsDead() {
			continue
		}
		if uid != caller && p.info.Owner != caller && !p.info.Publicity.Admits(p.info.Path, c.info.Path) {
			continue
		}
		iface, ok := matchImplementation(p.impl, req)
		if !ok {
			continue
		}
		// Instance handles share the thread's uid and count as references
		// to it.
		e.ledger.Retain(uid, "")
		out = append(out, handle.NewShared(uid, ident.InstanceID{Interface: iface, Uid: uid}, sc))
	}
	slog.Debug("instances found", "query", req.String(), "caller", caller.Short(), "count", len(out))
	return out, nil
}

// matchImplementation returns the first interface of impl the request
// matches, the implemented one before the accepted ones.
func matchImplementation(impl *Implementation, req *discovery.FindInstanceRequest) (ident.Interface, bool) {
	if req.Matches(impl.Interface) {
		return impl.Interface, true
	}
	for _, a := range impl.Accepts {
		if req.Matches(a) {
			return a, true
		}
	}
	return ident.Interface{}, false
}
