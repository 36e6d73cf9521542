// Package testutil holds fixtures shared by tests that need a live engine
// or a ledger.
package testutil

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/roach88/kobzar/internal/engine"
	"github.com/roach88/kobzar/internal/ident"
	"github.com/roach88/kobzar/internal/store"
	"github.com/roach88/kobzar/internal/thread"
)

// WaitTimeout bounds every wait in this package.
const WaitTimeout = 2 * time.Second

// Uids returns n thread uids derived from prefix. The same prefix always
// yields the same uids, so tests can name threads before creating them.
func Uids(prefix string, n int) []ident.Uid {
	out := make([]ident.Uid, n)
	for i := range out {
		out[i] = ident.DeriveUid(ident.DomainThread, []byte(fmt.Sprintf("%s-%d", prefix, i)))
	}
	return out
}

// OpenStore opens an in-memory ledger that is closed when the test ends.
func OpenStore(t testing.TB) *store.Store {
	t.Helper()
	st, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

// Engine is an engine whose loop runs until the test ends.
type Engine struct {
	*engine.Engine
	Store *store.Store

	t testing.TB
}

// StartEngine creates an engine over an in-memory ledger with uids seeded
// from the test name, registers impls and starts the loop. opts are applied
// after the defaults and may replace them.
func StartEngine(t testing.TB, cfg engine.Config, impls []engine.Implementation, opts ...engine.EngineOption) *Engine {
	t.Helper()

	st := OpenStore(t)
	all := append([]engine.EngineOption{
		engine.WithStore(st),
		engine.WithUidGenerator(engine.NewSeqGenerator(t.Name())),
	}, opts...)
	e, err := engine.New(cfg, all...)
	require.NoError(t, err)
	for _, impl := range impls {
		require.NoError(t, e.Register(impl))
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- e.Run(ctx) }()

	t.Cleanup(func() {
		e.Stop()
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Error("engine did not stop")
		}
		cancel()
	})
	return &Engine{Engine: e, Store: st, t: t}
}

// Spawn builds b as a child of the root thread.
func (e *Engine) Spawn(b *thread.Builder) *thread.OwnedThread {
	e.t.Helper()
	owned, err := b.Build(context.Background(), e.Root().Network())
	require.NoError(e.t, err)
	return owned
}

// RunThread spawns b and waits until the thread is running.
func (e *Engine) RunThread(b *thread.Builder) *thread.OwnedThread {
	e.t.Helper()
	owned := e.Spawn(b)
	require.NoError(e.t, owned.AllowRun(context.Background()))
	e.AwaitState(owned.Uid(), thread.Running)
	return owned
}

// AwaitState fails the test unless uid reaches want within WaitTimeout.
func (e *Engine) AwaitState(uid ident.Uid, want thread.State) {
	e.t.Helper()
	ok, err := e.WaitState(context.Background(), uid, want, WaitTimeout)
	require.NoError(e.t, err)
	if !ok {
		got, _ := e.State(uid)
		e.t.Fatalf("thread %s never reached %s (state %s)", uid.Short(), want, got)
	}
}
