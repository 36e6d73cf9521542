package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/roach88/kobzar/internal/env"
	"github.com/roach88/kobzar/internal/ident"
	"github.com/roach88/kobzar/internal/store"
	"github.com/roach88/kobzar/internal/thread"
)

// Body is the code a thread runs once it is first allowed to run.
//
// The body must return when ctx is done or when a call returns an error
// for which IsCeased is true.
type Body func(ctx context.Context, e env.Environment) error

// Implementation binds an interface to the code of threads implementing it.
type Implementation struct {
	Interface ident.Interface

	// Accepts lists further interfaces the thread receives messages under.
	Accepts []ident.Interface

	// Publicity is the least restrictive visibility threads of this
	// implementation may have. A builder asking for less visibility wins.
	Publicity thread.Publicity

	// Body may be nil for threads that only hold a mailbox. The engine
	// confirms their pending requests itself.
	Body Body
}

func (impl *Implementation) serves(iface ident.Interface) bool {
	if impl == nil {
		return false
	}
	if impl.Interface == iface {
		return true
	}
	for _, a := range impl.Accepts {
		if a == iface {
			return true
		}
	}
	return false
}

// Transition is one confirmed thread state change.
type Transition struct {
	Seq    int64
	Thread ident.Uid
	Path   ident.Path
	Event  thread.Event
	From   thread.State
	To     thread.State
}

// Delivery is one mailbox event: a message placed, refused, withdrawn or
// taken.
type Delivery struct {
	Seq       int64
	From      ident.Uid
	To        ident.Uid
	Interface ident.Interface
	Mode      string
	Outcome   string
	Shared    ident.Uid
}

// Delivery modes.
const (
	ModeSend              = "send"
	ModeSendWhenAvailable = "send_when_available"
	ModeRendezvous        = "rendezvous"
	ModeTransferTime      = "transfer_time"
	ModeReceive           = "receive"
)

// Delivery outcomes.
const (
	OutcomeQueued    = "queued"
	OutcomePending   = "pending"
	OutcomeRefused   = "refused"
	OutcomeWithdrawn = "withdrawn"
	OutcomeTaken     = "taken"
	OutcomeDropped   = "dropped"
)

// proc is the engine's record of one thread.
type proc struct {
	uid    ident.Uid
	info   thread.Info
	impl   *Implementation
	unit   string
	isRoot bool

	started bool
	cancel  context.CancelFunc
	err     error

	box *mailbox

	// contacted holds peers this thread has sent to. They may reply
	// regardless of publicity and interface support.
	contacted map[ident.Uid]bool

	sleepUntil time.Time
}

// bodyActive reports whether a body goroutine is responsible for
// confirming this thread's pending requests.
func (p *proc) bodyActive() bool {
	return p.started && p.impl != nil && p.impl.Body != nil
}

// Engine is an in-process environment hosting threads.
//
// Thread-safety model:
//   - Register: before Run only
//   - Run: exactly one goroutine
//   - everything reached through an env.Environment: any goroutine
type Engine struct {
	cfg    Config
	clock  *Clock
	queue  *eventQueue
	uids   UidGenerator
	ledger *Ledger
	store  *store.Store
	quota  *QuotaEnforcer

	onTransition []func(Transition)
	onDelivery   []func(Delivery)

	mu      sync.Mutex
	changed chan struct{}
	impls   map[ident.Interface]*Implementation
	procs   map[ident.Uid]*proc
	order   []ident.Uid // creation order
	root    *proc
	runCtx  context.Context
	tickets int64

	bodies sync.WaitGroup
}

// EngineOption allows configuration of engine parameters.
type EngineOption func(*Engine)

// WithStore mirrors transitions, deliveries and ledger changes to s.
func WithStore(s *store.Store) EngineOption {
	return func(e *Engine) {
		e.store = s
	}
}

// WithUidGenerator replaces the default UUIDv7 uid source.
// Use a SeqGenerator for reproducible runs.
func WithUidGenerator(g UidGenerator) EngineOption {
	return func(e *Engine) {
		e.uids = g
	}
}

// WithClock sets the logical clock, e.g. to resume numbering after the
// highest seq already in a store.
func WithClock(c *Clock) EngineOption {
	return func(e *Engine) {
		e.clock = c
	}
}

// WithTransitionHook calls fn for every confirmed transition.
// fn runs with the engine lock held and must not call back into the engine.
func WithTransitionHook(fn func(Transition)) EngineOption {
	return func(e *Engine) {
		e.onTransition = append(e.onTransition, fn)
	}
}

// WithDeliveryHook calls fn for every mailbox event.
// fn runs with the engine lock held and must not call back into the engine.
func WithDeliveryHook(fn func(Delivery)) EngineOption {
	return func(e *Engine) {
		e.onDelivery = append(e.onDelivery, fn)
	}
}

// New creates an Engine with a running root thread.
func New(cfg Config, opts ...EngineOption) (*Engine, error) {
	if err := cfg.compile(); err != nil {
		return nil, err
	}

	e := &Engine{
		cfg:     cfg,
		clock:   NewClock(),
		queue:   newEventQueue(),
		uids:    UUIDv7Generator{},
		quota:   NewQuotaEnforcer(cfg.MaxThreadsPerOwner),
		changed: make(chan struct{}),
		impls:   make(map[ident.Interface]*Implementation),
		procs:   make(map[ident.Uid]*proc),
		runCtx:  context.Background(),
	}

	for _, opt := range opts {
		opt(e)
	}
	e.ledger = newLedger(e.clock, e.store)

	uid := e.uids.Next(ident.DomainThread)
	e.root = &proc{
		uid: uid,
		info: thread.Info{
			Instance:    ident.InstanceID{Uid: uid},
			Path:        cfg.root,
			State:       thread.Running,
			Publicity:   thread.Public,
			Performance: thread.Performance,
			Type:        thread.Parallel(),
		},
		unit:      cfg.unitOf(cfg.root),
		isRoot:    true,
		started:   true,
		box:       newMailbox(),
		contacted: make(map[ident.Uid]bool),
	}
	e.procs[uid] = e.root
	e.order = append(e.order, uid)

	return e, nil
}

// Register makes impl available to CreateThread.
// Returns a RuntimeError if the interface is already registered.
func (e *Engine) Register(impl Implementation) error {
	if impl.Interface.IsZero() {
		return fmt.Errorf("register: %w", ident.ErrInvalidIface)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.impls[impl.Interface]; ok {
		return newRuntimeError(ErrCodeDuplicateImplementation, ident.Uid{},
			"interface %s already registered", impl.Interface)
	}
	e.impls[impl.Interface] = &impl
	return nil
}

// Root returns the environment of the root thread.
func (e *Engine) Root() env.Environment {
	return e.scope(e.root.uid)
}

// RootUid returns the uid of the root thread.
func (e *Engine) RootUid() ident.Uid {
	return e.root.uid
}

// Ledger returns the live-reference ledger.
func (e *Engine) Ledger() *Ledger {
	return e.ledger
}

// Clock returns the logical clock shared by every record the engine emits.
func (e *Engine) Clock() *Clock {
	return e.clock
}

// Threads returns the records of every thread in creation order.
func (e *Engine) Threads() []thread.Info {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]thread.Info, 0, len(e.order))
	for _, uid := range e.order {
		out = append(out, e.procs[uid].info)
	}
	return out
}

// State returns the current state of uid.
func (e *Engine) State(uid ident.Uid) (thread.State, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	p, ok := e.procs[uid]
	if !ok {
		return 0, false
	}
	return p.info.State, true
}

// Err returns the error the thread body returned, if it has returned.
func (e *Engine) Err(uid ident.Uid) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if p, ok := e.procs[uid]; ok {
		return p.err
	}
	return nil
}

// WaitState blocks until uid reaches want, the timeout elapses or ctx ends.
// A timeout of 0 checks once; msg.Forever waits without bound.
func (e *Engine) WaitState(ctx context.Context, uid ident.Uid, want thread.State, timeout time.Duration) (bool, error) {
	return e.waitUntil(ctx, timeout, func() bool {
		p, ok := e.procs[uid]
		return ok && p.info.State == want
	})
}

// Run starts the single-writer scheduler loop.
// Blocks until ctx is cancelled or Stop is called. On return every thread
// body has been cancelled and has returned.
//
// CRITICAL: Must be called from exactly ONE goroutine.
func (e *Engine) Run(ctx context.Context) error {
	slog.Info("engine starting", "root", e.root.uid.Short(), "path", e.root.info.Path.String())

	runCtx, cancel := context.WithCancel(ctx)
	e.mu.Lock()
	e.runCtx = runCtx
	e.mu.Unlock()

	defer func() {
		cancel()
		e.bodies.Wait()
		slog.Info("engine stopped", "merged_requests", e.queue.Merged())
	}()

	for {
		event, ok := e.queue.TryDequeue()
		if ok {
			if err := e.processEvent(event); err != nil {
				logEventError(event, err)
			}
			continue
		}

		select {
		case <-ctx.Done():
			slog.Info("engine stopping: context cancelled")
			e.queue.Close()
			return ctx.Err()

		case <-e.queue.Wait():
			// The signal channel is closed once the queue is closed; drain
			// whatever is left before returning.
			if e.queue.Closed() && e.queue.Len() == 0 {
				slog.Info("engine stopping: queue closed")
				return nil
			}
		}
	}
}

// Stop gracefully shuts down the engine.
// Closes the event queue, which will cause Run() to return.
func (e *Engine) Stop() {
	e.queue.Close()
}

// processEvent routes an event to the appropriate handler.
// CRITICAL: Called only from Run() goroutine.
func (e *Engine) processEvent(ev Event) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	p, ok := e.procs[ev.Thread]
	if !ok {
		return newRuntimeError(ErrCodeUnknownThread, ev.Thread, "event for unknown thread")
	}

	switch ev.Type {
	case EventTypeRequested:
		return e.confirmRequest(p)

	case EventTypeExited:
		p.err = ev.Err
		if p.info.State.IsDead() {
			return nil
		}
		if ev.Err != nil && !IsCeased(ev.Err) && !errors.Is(ev.Err, context.Canceled) {
			slog.Warn("thread body failed",
				"thread", p.uid.Short(),
				"path", p.info.Path.String(),
				"error", ev.Err,
			)
		}
		return e.transition(p, thread.EventExit)

	default:
		return fmt.Errorf("unknown event type: %d", ev.Type)
	}
}

// confirmRequest confirms whatever p has pending that the loop is
// responsible for. Requests a live body must confirm itself are left alone.
// Caller holds e.mu.
func (e *Engine) confirmRequest(p *proc) error {
	switch s := p.info.State; {
	case s == thread.PausedRunRequested:
		if err := e.transition(p, thread.EventConfirm); err != nil {
			return err
		}
		e.start(p)
		return nil
	case s == thread.PausedCeaseRequested:
		return e.transition(p, thread.EventConfirm)
	case s.HasPending() && !p.bodyActive():
		return e.transition(p, thread.EventConfirm)
	}
	return nil
}

// start launches the thread body on its first run. Caller holds e.mu.
func (e *Engine) start(p *proc) {
	if p.started {
		return
	}
	p.started = true
	if p.impl == nil || p.impl.Body == nil {
		return
	}

	ctx, cancel := context.WithCancel(e.runCtx)
	p.cancel = cancel
	body := p.impl.Body
	sc := e.scope(p.uid)

	slog.Debug("thread body starting", "thread", p.uid.Short(), "path", p.info.Path.String())

	e.bodies.Add(1)
	go func() {
		defer e.bodies.Done()
		defer cancel()
		err := body(ctx, sc)
		e.queue.Enqueue(Event{Type: EventTypeExited, Thread: p.uid, Err: err})
	}()
}

// transition applies ev to p and publishes the change. A no-op event
// publishes nothing. Caller holds e.mu.
func (e *Engine) transition(p *proc, ev thread.Event) error {
	from := p.info.State
	to, err := from.Apply(ev)
	if err != nil {
		return err
	}
	if to == from {
		return nil
	}
	p.info.State = to

	tr := Transition{
		Seq:    e.clock.Stamp(),
		Thread: p.uid,
		Path:   p.info.Path,
		Event:  ev,
		From:   from,
		To:     to,
	}
	slog.Debug("thread transition",
		"thread", p.uid.Short(),
		"path", p.info.Path.String(),
		"event", ev.String(),
		"from", from.String(),
		"to", to.String(),
		"seq", tr.Seq,
	)
	if e.store != nil {
		row := store.Transition{
			Seq:    tr.Seq,
			Thread: p.uid.String(),
			Path:   p.info.Path.String(),
			Event:  ev.String(),
			From:   from.String(),
			To:     to.String(),
		}
		if err := e.store.WriteTransition(context.Background(), row); err != nil {
			slog.Error("transition write failed", "thread", p.uid.Short(), "error", err)
		}
	}
	for _, fn := range e.onTransition {
		fn(tr)
	}

	if to.IsDead() {
		e.onDeath(p)
	}
	e.broadcast()
	return nil
}

// onDeath releases what a dead thread holds. Caller holds e.mu.
func (e *Engine) onDeath(p *proc) {
	if p.cancel != nil {
		p.cancel()
	}
	if !p.isRoot {
		e.quota.Release(p.info.Owner)
	}
	for _, l := range p.box.drain() {
		e.record(Delivery{
			From:      l.key.from,
			To:        p.uid,
			Interface: l.key.iface,
			Mode:      l.mode,
			Outcome:   OutcomeDropped,
			Shared:    l.shared,
		})
		if !l.shared.IsZero() {
			e.ledger.Release(l.shared)
		}
	}
	slog.Info("thread dead",
		"thread", p.uid.Short(),
		"path", p.info.Path.String(),
		"state", p.info.State.String(),
	)
}

// record publishes a mailbox event. Caller holds e.mu.
func (e *Engine) record(d Delivery) {
	d.Seq = e.clock.Stamp()
	slog.Debug("delivery",
		"from", d.From.Short(),
		"to", d.To.Short(),
		"interface", d.Interface.String(),
		"mode", d.Mode,
		"outcome", d.Outcome,
		"seq", d.Seq,
	)
	if e.store != nil {
		row := store.Delivery{
			Seq:       d.Seq,
			From:      d.From.String(),
			To:        d.To.String(),
			Interface: d.Interface.String(),
			Mode:      d.Mode,
			Outcome:   d.Outcome,
		}
		if !d.Shared.IsZero() {
			row.Shared = d.Shared.String()
		}
		if err := e.store.WriteDelivery(context.Background(), row); err != nil {
			slog.Error("delivery write failed", "to", d.To.Short(), "error", err)
		}
	}
	for _, fn := range e.onDelivery {
		fn(d)
	}
}

// broadcast wakes every waiter. Caller holds e.mu.
func (e *Engine) broadcast() {
	close(e.changed)
	e.changed = make(chan struct{})
}

// waitUntil evaluates cond under e.mu until it returns true, the timeout
// elapses or ctx ends. cond may mutate engine state; it runs with the lock
// held and must call broadcast itself after a change.
//
// Returns (false, nil) on timeout and (false, ctx.Err()) on cancellation.
func (e *Engine) waitUntil(ctx context.Context, timeout time.Duration, cond func() bool) (bool, error) {
	var deadline <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		deadline = timer.C
	}

	for {
		e.mu.Lock()
		if cond() {
			e.mu.Unlock()
			return true, nil
		}
		changed := e.changed
		e.mu.Unlock()

		if timeout == 0 {
			return false, nil
		}

		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-deadline:
			// One last look so a change racing the timer is not lost.
			e.mu.Lock()
			ok := cond()
			e.mu.Unlock()
			return ok, nil
		case <-changed:
		}
	}
}

// lookup returns the record of uid. Caller holds e.mu.
func (e *Engine) lookup(uid ident.Uid) (*proc, error) {
	p, ok := e.procs[uid]
	if !ok {
		return nil, newRuntimeError(ErrCodeUnknownThread, uid, "no such thread")
	}
	return p, nil
}

func (e *Engine) scope(self ident.Uid) *scope {
	return &scope{e: e, self: self}
}

// logEventError logs event processing failures with full context.
func logEventError(event Event, err error) {
	slog.Error("event processing failed",
		"type", event.Type.String(),
		"thread", event.Thread.Short(),
		"error", err,
	)
}
