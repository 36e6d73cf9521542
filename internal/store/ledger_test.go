package store

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteResourceEvent_TracksLiveCount(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)

	events := []ResourceEvent{
		{Seq: 1, Uid: "aa", Kind: "thread", Delta: 1, Live: 1},
		{Seq: 2, Uid: "aa", Kind: "thread", Delta: 1, Live: 2},
		{Seq: 3, Uid: "bb", Kind: "message", Delta: 1, Live: 1},
		{Seq: 4, Uid: "aa", Kind: "thread", Delta: -1, Live: 1},
	}
	for _, ev := range events {
		require.NoError(t, s.WriteResourceEvent(ctx, ev))
	}

	got, err := s.ReadResources(ctx)
	require.NoError(t, err)
	assert.Equal(t, []Resource{
		{Uid: "aa", Kind: "thread", Live: 1, FirstSeq: 1, LastSeq: 4},
		{Uid: "bb", Kind: "message", Live: 1, FirstSeq: 3, LastSeq: 3},
	}, got)

	history, err := s.ReadResourceEvents(ctx, "aa")
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, -1, history[2].Delta)
	assert.Equal(t, "thread", history[2].Kind)
}

func TestWriteResourceEvent_RejectsBadDelta(t *testing.T) {
	s := createTestStore(t)
	err := s.WriteResourceEvent(context.Background(), ResourceEvent{Seq: 1, Uid: "aa", Kind: "thread", Delta: 0})
	assert.Error(t, err)
}

func TestReadResource_NotFound(t *testing.T) {
	s := createTestStore(t)
	_, err := s.ReadResource(context.Background(), "nope")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestTransitions_FilterAndOrder(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)

	require.NoError(t, s.WriteTransition(ctx, Transition{Seq: 7, Thread: "t2", Path: "app/b", Event: "allow_run", From: "paused", To: "paused_run_requested"}))
	require.NoError(t, s.WriteTransition(ctx, Transition{Seq: 5, Thread: "t1", Path: "app/a", Event: "allow_run", From: "paused", To: "paused_run_requested"}))
	require.NoError(t, s.WriteTransition(ctx, Transition{Seq: 6, Thread: "t1", Path: "app/a", Event: "confirm", From: "paused_run_requested", To: "running"}))
	// Same seq again is ignored.
	require.NoError(t, s.WriteTransition(ctx, Transition{Seq: 6, Thread: "t1", Path: "app/a", Event: "kill", From: "running", To: "killed"}))

	all, err := s.ReadTransitions(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []int64{5, 6, 7}, []int64{all[0].Seq, all[1].Seq, all[2].Seq})
	assert.Equal(t, "running", all[1].To)

	t1, err := s.ReadTransitions(ctx, "t1")
	require.NoError(t, err)
	assert.Len(t, t1, 2)
}

func TestDeliveries_RoundTrip(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)

	d := Delivery{Seq: 3, From: "a", To: "b", Interface: "svc/echo@1.0.0", Mode: "rendezvous", Outcome: "taken", Shared: "cc"}
	require.NoError(t, s.WriteDelivery(ctx, d))

	got, err := s.ReadDeliveries(ctx)
	require.NoError(t, err)
	assert.Equal(t, []Delivery{d}, got)
}

func TestMaxSeq(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)

	seq, err := s.MaxSeq(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), seq)

	require.NoError(t, s.WriteResourceEvent(ctx, ResourceEvent{Seq: 4, Uid: "u", Kind: "thread", Delta: 1, Live: 1}))
	require.NoError(t, s.WriteDelivery(ctx, Delivery{Seq: 9, From: "a", To: "b", Interface: "i@1.0.0", Mode: "send", Outcome: "queued"}))

	seq, err = s.MaxSeq(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(9), seq)
}
