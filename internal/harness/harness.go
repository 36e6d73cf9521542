package harness

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/roach88/kobzar/internal/compiler"
	"github.com/roach88/kobzar/internal/discovery"
	"github.com/roach88/kobzar/internal/engine"
	"github.com/roach88/kobzar/internal/env"
	"github.com/roach88/kobzar/internal/ident"
	"github.com/roach88/kobzar/internal/msg"
	"github.com/roach88/kobzar/internal/store"
	"github.com/roach88/kobzar/internal/thread"
)

// RootAlias names the boot thread in scenarios.
const RootAlias = "root"

// DefaultStepTimeout bounds waiting steps that set no timeout_ms, and the
// settling of run, pause and cease requests.
const DefaultStepTimeout = time.Second

// ErrCodeTimeout is reported when recv or wait_state time out.
const ErrCodeTimeout = "TIMEOUT"

// Options configure a scenario run.
type Options struct {
	// StorePath is the SQLite ledger path. Empty means in-memory.
	StorePath string

	// Config replaces the scenario's engine config.
	Config *engine.Config

	// Specs lists extra manifest directories loaded before the scenario's.
	Specs []string

	// StepTimeout replaces DefaultStepTimeout.
	StepTimeout time.Duration
}

// Harness runs one scenario against a fresh engine.
type Harness struct {
	scenario *Scenario
	opts     Options
	store    *store.Store
	engine   *engine.Engine
	net      env.Network
	specs    map[string]*compiler.InterfaceSpec
	threads  map[string]*thread.OwnedThread
	aliases  map[ident.Uid]string
	result   *Result

	mu          sync.Mutex
	transitions []engine.Transition
	deliveries  []engine.Delivery
}

// Run executes a test scenario with default options.
func Run(scenario *Scenario) (*Result, error) {
	return RunWithOptions(context.Background(), scenario, Options{})
}

// RunWithOptions executes a test scenario and returns the result.
//
// Execution flow:
//  1. Open the ledger (in-memory unless opts.StorePath is set)
//  2. Compile manifests from spec directories and inline declarations
//  3. Start an engine with deterministic uids and register implementations
//  4. Execute steps as the root thread, checking each expect clause
//  5. Evaluate assertions against the trace and the ledger
//
// A returned error means the scenario could not run. Failed expectations
// are reported in the result.
func RunWithOptions(ctx context.Context, scenario *Scenario, opts Options) (*Result, error) {
	if opts.StepTimeout <= 0 {
		opts.StepTimeout = DefaultStepTimeout
	}

	path := opts.StorePath
	if path == "" {
		path = ":memory:"
	}
	st, err := store.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	defer st.Close()

	h := &Harness{
		scenario: scenario,
		opts:     opts,
		store:    st,
		threads:  make(map[string]*thread.OwnedThread),
		aliases:  make(map[ident.Uid]string),
		result:   NewResult(),
	}

	specs, err := h.compileSpecs()
	if err != nil {
		return nil, err
	}

	clock, err := engine.ResumeClock(ctx, st)
	if err != nil {
		return nil, fmt.Errorf("failed to read ledger: %w", err)
	}

	seed := scenario.Seed
	if seed == "" {
		seed = scenario.Name
	}
	eng, err := engine.New(h.config(),
		engine.WithStore(st),
		engine.WithClock(clock),
		engine.WithUidGenerator(engine.NewSeqGenerator(seed)),
		engine.WithTransitionHook(h.onTransition),
		engine.WithDeliveryHook(h.onDelivery),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create engine: %w", err)
	}
	h.engine = eng
	h.net = eng.Root().Network()
	h.aliases[eng.RootUid()] = RootAlias

	for _, spec := range specs {
		body, err := Body(spec.Behavior)
		if err != nil {
			return nil, fmt.Errorf("interface %s: %w", spec.Name, err)
		}
		if err := eng.Register(spec.Implementation(body)); err != nil {
			return nil, fmt.Errorf("register %s: %w", spec.Name, err)
		}
	}

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() { done <- eng.Run(runCtx) }()

	for i := range scenario.Steps {
		if err := h.executeStep(runCtx, i, &scenario.Steps[i]); err != nil {
			h.result.AddError(fmt.Sprintf("steps[%d]: %v", i, err))
		}
	}

	for alias, t := range h.threads {
		if s, ok := eng.State(t.Uid()); ok {
			h.result.Threads[alias] = s.String()
		}
	}
	if s, ok := eng.State(eng.RootUid()); ok {
		h.result.Threads[RootAlias] = s.String()
	}

	eng.Stop()
	cancel()
	if err := <-done; err != nil && !errors.Is(err, context.Canceled) {
		slog.Warn("engine stopped with error", "scenario", scenario.Name, "error", err)
	}

	h.buildTrace()

	actx := &AssertionContext{Store: st, Ctx: ctx, Aliases: h.uidStrings()}
	for _, failure := range EvaluateAssertions(h.result, scenario.Assertions, actx) {
		h.result.AddError(failure)
	}

	return h.result, nil
}

// config returns the engine config: options first, then the scenario.
func (h *Harness) config() engine.Config {
	if h.opts.Config != nil {
		return *h.opts.Config
	}
	if h.scenario.Config != nil {
		cfg := *h.scenario.Config
		if cfg.RootPath == "" {
			cfg.RootPath = engine.DefaultConfig().RootPath
		}
		return cfg
	}
	return engine.DefaultConfig()
}

// compileSpecs loads manifest directories and inline declarations, keyed
// by name. Later definitions of a name replace earlier ones.
func (h *Harness) compileSpecs() ([]*compiler.InterfaceSpec, error) {
	var all []*compiler.InterfaceSpec

	dirs := append(slices.Clone(h.opts.Specs), h.scenario.Specs...)
	for _, dir := range dirs {
		loaded, errs := compiler.LoadDir(dir, compiler.LoadModeFailFast)
		if len(errs) > 0 {
			return nil, fmt.Errorf("load specs %s: %w", dir, errs[0])
		}
		all = append(all, loaded.Interfaces...)
	}

	for i, d := range h.scenario.Interfaces {
		spec, err := d.compile()
		if err != nil {
			return nil, fmt.Errorf("interfaces[%d]: %w", i, err)
		}
		all = append(all, spec)
	}

	h.specs = make(map[string]*compiler.InterfaceSpec, len(all))
	var specs []*compiler.InterfaceSpec
	for _, s := range all {
		if _, ok := h.specs[s.Name]; ok {
			specs = slices.DeleteFunc(specs, func(o *compiler.InterfaceSpec) bool { return o.Name == s.Name })
		}
		h.specs[s.Name] = s
		specs = append(specs, s)
	}

	for _, verr := range compiler.ValidateAll(specs) {
		if verr.Code == compiler.ErrPurposeEmpty {
			continue
		}
		return nil, fmt.Errorf("invalid interface: %w", verr)
	}
	return specs, nil
}

func (d *InterfaceDecl) compile() (*compiler.InterfaceSpec, error) {
	iface, err := ident.ParseInterface(d.Interface)
	if err != nil {
		return nil, err
	}
	pub, err := thread.ParsePublicity(d.Publicity)
	if err != nil {
		return nil, err
	}
	spec := &compiler.InterfaceSpec{
		Name:      d.Name,
		Interface: iface,
		Behavior:  d.Behavior,
		Publicity: pub,
		Type:      thread.Parallel(),
	}
	if spec.Behavior == "" {
		spec.Behavior = compiler.BehaviorSink
	}
	for _, a := range d.Accepts {
		ai, err := ident.ParseInterface(a)
		if err != nil {
			return nil, err
		}
		spec.Accepts = append(spec.Accepts, ai)
	}
	return spec, nil
}

func (h *Harness) onTransition(t engine.Transition) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.transitions = append(h.transitions, t)
}

func (h *Harness) onDelivery(d engine.Delivery) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.deliveries = append(h.deliveries, d)
}

// buildTrace merges the recorded events in seq order and names threads by
// alias. Runs after the engine stopped.
func (h *Harness) buildTrace() {
	h.mu.Lock()
	defer h.mu.Unlock()

	trace := make([]TraceEvent, 0, len(h.transitions)+len(h.deliveries))
	for _, t := range h.transitions {
		trace = append(trace, TraceEvent{
			Seq:    t.Seq,
			Type:   TraceTransition,
			Thread: h.alias(t.Thread),
			Event:  t.Event.String(),
			From:   t.From.String(),
			To:     t.To.String(),
		})
	}
	for _, d := range h.deliveries {
		trace = append(trace, TraceEvent{
			Seq:       d.Seq,
			Type:      TraceDelivery,
			From:      h.alias(d.From),
			To:        h.alias(d.To),
			Interface: d.Interface.String(),
			Mode:      d.Mode,
			Outcome:   d.Outcome,
		})
	}
	slices.SortFunc(trace, func(a, b TraceEvent) int {
		switch {
		case a.Seq < b.Seq:
			return -1
		case a.Seq > b.Seq:
			return 1
		}
		return 0
	})
	h.result.Trace = trace
}

func (h *Harness) alias(uid ident.Uid) string {
	if a, ok := h.aliases[uid]; ok {
		return a
	}
	return uid.Short()
}

func (h *Harness) uidStrings() map[string]string {
	out := make(map[string]string, len(h.aliases))
	for uid, alias := range h.aliases {
		out[alias] = uid.String()
	}
	return out
}

func (h *Harness) timeout(step *Step) time.Duration {
	if step.TimeoutMs != nil {
		return time.Duration(*step.TimeoutMs) * time.Millisecond
	}
	return h.opts.StepTimeout
}

// target resolves an alias to a thread uid.
func (h *Harness) target(alias string) (ident.Uid, error) {
	if alias == RootAlias {
		return h.engine.RootUid(), nil
	}
	t, ok := h.threads[alias]
	if !ok {
		return ident.Uid{}, fmt.Errorf("unknown thread alias %q", alias)
	}
	return t.Uid(), nil
}

func (h *Harness) owned(alias string) (*thread.OwnedThread, error) {
	t, ok := h.threads[alias]
	if !ok {
		return nil, fmt.Errorf("thread %q cannot be controlled by the root", alias)
	}
	return t, nil
}

// outcome carries what a step produced for its expect clause.
type outcome struct {
	payload   *string
	count     *int
	delivered *bool
}

// executeStep runs one step and checks its expect clause.
func (h *Harness) executeStep(ctx context.Context, i int, step *Step) error {
	op, target, err := step.Op()
	if err != nil {
		return err
	}

	out, opErr := h.perform(ctx, op, target, step)

	slog.Debug("scenario step",
		"scenario", h.scenario.Name,
		"step", i,
		"op", op,
		"target", target,
		"error", opErr,
	)

	return h.check(op, target, step.Expect, out, opErr)
}

func (h *Harness) perform(ctx context.Context, op, target string, step *Step) (outcome, error) {
	var out outcome

	switch op {
	case OpSpawn:
		return out, h.spawn(ctx, target, step)

	case OpAllowRun:
		t, err := h.owned(target)
		if err != nil {
			return out, err
		}
		if err := t.AllowRun(ctx); err != nil {
			return out, err
		}
		return out, h.settle(ctx, t.Uid(), thread.Running)

	case OpRequestPause:
		t, err := h.owned(target)
		if err != nil {
			return out, err
		}
		if err := t.RequestPause(ctx); err != nil {
			return out, err
		}
		return out, h.settle(ctx, t.Uid(), thread.Paused)

	case OpRequestCease:
		t, err := h.owned(target)
		if err != nil {
			return out, err
		}
		if err := t.RequestCease(ctx); err != nil {
			return out, err
		}
		return out, h.settle(ctx, t.Uid(), thread.Ceased)

	case OpKill:
		t, err := h.owned(target)
		if err != nil {
			return out, err
		}
		return out, t.BruteKill(ctx)

	case OpWaitState:
		uid, err := h.target(target)
		if err != nil {
			return out, err
		}
		want, err := thread.ParseState(step.State)
		if err != nil {
			return out, err
		}
		ok, err := h.engine.WaitState(ctx, uid, want, h.timeout(step))
		if err != nil {
			return out, err
		}
		if !ok {
			return out, &stepError{code: ErrCodeTimeout, msg: fmt.Sprintf("%s never reached %s", target, want)}
		}
		return out, nil

	case OpSend, OpRendezvous, OpRendezvousFor:
		s, err := h.sender(target, step)
		if err != nil {
			return out, err
		}
		switch op {
		case OpSend:
			return out, s.Send(ctx, step.Payload)
		case OpRendezvous:
			return out, s.Rendezvous(ctx, step.Payload)
		}
		ok, err := s.RendezvousFor(ctx, step.Payload, h.timeout(step))
		out.delivered = &ok
		return out, err

	case OpRecv:
		f := msg.Filter{}
		if target != AnyPeer {
			uid, err := h.target(target)
			if err != nil {
				return out, err
			}
			f.From = uid
		}
		if step.Interface != "" {
			iface, err := ident.ParseInterface(step.Interface)
			if err != nil {
				return out, err
			}
			f.Interfaces = []ident.Interface{iface}
		}
		in, err := h.net.Receive(ctx, f, h.timeout(step))
		if err != nil {
			return out, err
		}
		if in == nil {
			return out, &stepError{code: ErrCodeTimeout, msg: "no message arrived"}
		}
		got, err := msg.AcceptUnchecked(in, msg.String)
		if err != nil {
			return out, err
		}
		got.Release()
		out.payload = &got.Value
		return out, nil

	case OpFind:
		lp, err := ident.ParseLocalPath(target)
		if err != nil {
			return out, err
		}
		req := discovery.New(lp)
		if step.Version != "" {
			vr, err := ident.ParseVersionRange(step.Version)
			if err != nil {
				return out, err
			}
			req = req.WithVersion(vr)
		}
		found, err := req.Find(ctx, h.net)
		if err != nil {
			return out, err
		}
		n := len(found)
		found.Release()
		out.count = &n
		return out, nil
	}

	return out, fmt.Errorf("unknown operation %q", op)
}

func (h *Harness) spawn(ctx context.Context, alias string, step *Step) error {
	spec, ok := h.specs[step.Impl]
	if !ok {
		return fmt.Errorf("unknown implementation %q", step.Impl)
	}

	pathStr := step.Path
	if pathStr == "" {
		pathStr = spec.Interface.Path.String() + "/" + alias
	}
	lp, err := ident.ParseLocalPath(pathStr)
	if err != nil {
		return err
	}

	b := spec.Builder(lp)
	if step.Publicity != "" {
		if b.Publicity, err = thread.ParsePublicity(step.Publicity); err != nil {
			return err
		}
	}
	if step.Performance != "" {
		if b.Performance, err = thread.ParsePerformancePolicy(step.Performance); err != nil {
			return err
		}
	}

	t, err := b.Build(ctx, h.net)
	if err != nil {
		return err
	}
	h.threads[alias] = t
	h.mu.Lock()
	h.aliases[t.Uid()] = alias
	h.mu.Unlock()
	return nil
}

func (h *Harness) sender(alias string, step *Step) (*msg.Sender[string], error) {
	uid, err := h.target(alias)
	if err != nil {
		return nil, err
	}
	var iface ident.Interface
	switch {
	case step.Interface != "":
		if iface, err = ident.ParseInterface(step.Interface); err != nil {
			return nil, err
		}
	case alias == RootAlias:
		return nil, fmt.Errorf("messages to the root need an explicit interface")
	default:
		iface = h.threads[alias].Instance().Interface
	}
	return msg.NewSender(h.net, uid, iface, msg.String), nil
}

// settle waits for a requested transition to be confirmed. A thread that
// dies first settles as well.
func (h *Harness) settle(ctx context.Context, uid ident.Uid, want thread.State) error {
	deadline := time.Now().Add(h.opts.StepTimeout)
	for {
		s, ok := h.engine.State(uid)
		if !ok {
			return nil
		}
		if s == want || s.IsDead() {
			return nil
		}
		left := time.Until(deadline)
		if left <= 0 {
			return &stepError{code: ErrCodeTimeout, msg: fmt.Sprintf("request not confirmed, state is %s", s)}
		}
		if _, err := h.engine.WaitState(ctx, uid, want, min(left, pollInterval)); err != nil {
			return err
		}
	}
}

// check compares a step's outcome with its expect clause.
func (h *Harness) check(op, target string, exp *Expect, out outcome, opErr error) error {
	if exp == nil {
		exp = &Expect{}
	}

	if exp.Error != "" {
		if opErr == nil {
			return fmt.Errorf("%s %s: expected error %s, got success", op, target, exp.Error)
		}
		if got := ErrorCode(opErr); got != exp.Error {
			return fmt.Errorf("%s %s: expected error %s, got %s (%v)", op, target, exp.Error, got, opErr)
		}
	} else if opErr != nil {
		return fmt.Errorf("%s %s: %w", op, target, opErr)
	}

	if exp.Payload != nil {
		if out.payload == nil {
			return fmt.Errorf("%s %s: expected payload %q, got none", op, target, *exp.Payload)
		}
		if *out.payload != *exp.Payload {
			return fmt.Errorf("%s %s: expected payload %q, got %q", op, target, *exp.Payload, *out.payload)
		}
	}
	if exp.Count != nil {
		got := -1
		if out.count != nil {
			got = *out.count
		}
		if got != *exp.Count {
			return fmt.Errorf("%s %s: expected count %d, got %d", op, target, *exp.Count, got)
		}
	}
	if exp.Delivered != nil {
		if out.delivered == nil || *out.delivered != *exp.Delivered {
			return fmt.Errorf("%s %s: expected delivered=%t", op, target, *exp.Delivered)
		}
	}
	if exp.State != "" {
		uid, err := h.target(target)
		if err != nil {
			return err
		}
		s, _ := h.engine.State(uid)
		if s.String() != exp.State {
			return fmt.Errorf("%s %s: expected state %s, got %s", op, target, exp.State, s)
		}
	}
	return nil
}

// stepError is a harness-level step failure with a code of its own.
type stepError struct {
	code string
	msg  string
}

func (e *stepError) Error() string { return e.code + ": " + e.msg }

// ErrorCode returns the scenario-facing code of an error.
func ErrorCode(err error) string {
	var (
		se *stepError
		me *msg.Error
		be *thread.BuildError
		pe *thread.PolicyError
		re *engine.RuntimeError
	)
	switch {
	case errors.As(err, &se):
		return se.code
	case errors.As(err, &me):
		return string(me.Code)
	case errors.As(err, &be):
		return string(be.Code)
	case errors.As(err, &pe):
		return string(thread.ErrCodePolicyNotPermitted)
	case errors.As(err, &re):
		return string(re.Code)
	case errors.Is(err, thread.ErrGuarded):
		return "GUARDED"
	case errors.Is(err, thread.ErrTerminal):
		return "TERMINAL"
	case errors.Is(err, thread.ErrInvalidTransition):
		return "INVALID_TRANSITION"
	case errors.Is(err, context.DeadlineExceeded):
		return ErrCodeTimeout
	}
	return "ERROR"
}
