package testutil

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/kobzar/internal/engine"
	"github.com/roach88/kobzar/internal/ident"
	"github.com/roach88/kobzar/internal/thread"
)

func TestUids(t *testing.T) {
	a := Uids("seed", 3)
	b := Uids("seed", 3)
	require.Len(t, a, 3)
	assert.Equal(t, a, b)
	assert.NotEqual(t, a[0], a[1])
	assert.NotEqual(t, a[0], Uids("other", 1)[0])
}

func TestStartEngine_RecordsToStore(t *testing.T) {
	iface := ident.MustInterface("svc/sink@1.0.0")
	e := StartEngine(t, engine.DefaultConfig(), []engine.Implementation{{Interface: iface}})

	owned := e.RunThread(&thread.Builder{
		Path:       ident.MustLocalPath("svc/sink/1"),
		Type:       thread.Parallel(),
		Implements: iface,
	})

	res, err := e.Store.ReadResource(context.Background(), owned.Uid().String())
	require.NoError(t, err)
	assert.Equal(t, engine.KindThread, res.Kind)

	transitions, err := e.Store.ReadTransitions(context.Background(), owned.Uid().String())
	require.NoError(t, err)
	require.NotEmpty(t, transitions)
	assert.Equal(t, "running", transitions[len(transitions)-1].To)
}

func TestStartEngine_FixedUids(t *testing.T) {
	uids := Uids("fixed", 2)
	iface := ident.MustInterface("svc/sink@1.0.0")
	e := StartEngine(t, engine.DefaultConfig(), []engine.Implementation{{Interface: iface}},
		engine.WithUidGenerator(engine.NewFixedGenerator(uids...)))

	assert.Equal(t, uids[0], e.RootUid())
	owned := e.Spawn(&thread.Builder{
		Path:       ident.MustLocalPath("svc/sink/1"),
		Type:       thread.Parallel(),
		Implements: iface,
	})
	assert.Equal(t, uids[1], owned.Uid())
	e.AwaitState(owned.Uid(), thread.Paused)
}
