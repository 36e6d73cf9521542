package engine

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/kobzar/internal/store"
)

func setupTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestLedger_RetainRelease(t *testing.T) {
	l := newLedger(NewClock(), nil)
	uid := testUid("res")

	l.Retain(uid, KindMessage)
	l.Retain(uid, "")
	assert.Equal(t, int64(2), l.Live(uid))

	l.Release(uid)
	assert.Equal(t, int64(1), l.Live(uid))
	assert.Len(t, l.Outstanding(), 1)

	l.Release(uid)
	assert.Equal(t, int64(0), l.Live(uid))
	assert.Empty(t, l.Outstanding())
}

func TestLedger_ReleaseBelowZeroIgnored(t *testing.T) {
	l := newLedger(NewClock(), nil)
	uid := testUid("res")

	l.Release(uid)
	assert.Equal(t, int64(0), l.Live(uid))

	l.Retain(uid, KindThread)
	assert.Equal(t, int64(1), l.Live(uid))
}

func TestLedger_MirrorsToStore(t *testing.T) {
	s := setupTestStore(t)
	l := newLedger(NewClock(), s)
	uid := testUid("res")

	l.Retain(uid, KindThread)
	l.Retain(uid, "")
	l.Release(uid)

	ctx := context.Background()
	res, err := s.ReadResource(ctx, uid.String())
	require.NoError(t, err)
	assert.Equal(t, KindThread, res.Kind)
	assert.Equal(t, int64(1), res.Live)

	events, err := s.ReadResourceEvents(ctx, uid.String())
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, []int{1, 1, -1}, []int{events[0].Delta, events[1].Delta, events[2].Delta})
	assert.Less(t, events[0].Seq, events[2].Seq)
}
