package engine

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/kobzar/internal/ident"
)

func testUid(name string) ident.Uid {
	return ident.DeriveUid(ident.DomainThread, []byte(name))
}

func requested(name string) Event {
	return Event{Type: EventTypeRequested, Thread: testUid(name)}
}

func drain(q *eventQueue) []Event {
	var out []Event
	for {
		e, ok := q.TryDequeue()
		if !ok {
			return out
		}
		out = append(out, e)
	}
}

func TestEventQueue_FIFOAcrossThreads(t *testing.T) {
	q := newEventQueue()
	for _, name := range []string{"a", "b", "c"} {
		require.True(t, q.Enqueue(requested(name)))
	}

	got := drain(q)
	require.Len(t, got, 3)
	for i, name := range []string{"a", "b", "c"} {
		assert.Equal(t, testUid(name), got[i].Thread)
	}

	_, ok := q.TryDequeue()
	assert.False(t, ok)
}

func TestEventQueue_MergesRepeatedRequests(t *testing.T) {
	q := newEventQueue()
	q.Enqueue(requested("a"))
	q.Enqueue(requested("b"))
	q.Enqueue(requested("a"))

	assert.Equal(t, 2, q.Len())
	assert.Equal(t, 1, q.Merged())

	got := drain(q)
	require.Len(t, got, 2)
	assert.Equal(t, testUid("a"), got[0].Thread, "merged request keeps its first position")
	assert.Equal(t, testUid("b"), got[1].Thread)
}

func TestEventQueue_RequestAfterDequeueIsQueuedAgain(t *testing.T) {
	q := newEventQueue()
	q.Enqueue(requested("a"))
	_, ok := q.TryDequeue()
	require.True(t, ok)

	q.Enqueue(requested("a"))
	assert.Equal(t, 1, q.Len())
	assert.Equal(t, 0, q.Merged())
}

func TestEventQueue_ExitsAreNeverMerged(t *testing.T) {
	q := newEventQueue()
	q.Enqueue(requested("a"))
	q.Enqueue(Event{Type: EventTypeExited, Thread: testUid("a")})
	q.Enqueue(Event{Type: EventTypeExited, Thread: testUid("a"), Err: errors.New("boom")})

	got := drain(q)
	require.Len(t, got, 3)
	assert.Equal(t, EventTypeRequested, got[0].Type)
	assert.Equal(t, EventTypeExited, got[1].Type)
	assert.EqualError(t, got[2].Err, "boom")
}

func TestEventQueue_CompactsConsumedPrefix(t *testing.T) {
	q := newEventQueue()
	for i := 0; i < 100; i++ {
		q.Enqueue(requested(fmt.Sprint(i)))
	}
	for i := 0; i < 60; i++ {
		e, ok := q.TryDequeue()
		require.True(t, ok)
		require.Equal(t, testUid(fmt.Sprint(i)), e.Thread)
	}
	assert.Equal(t, 40, q.Len())

	q.Enqueue(requested("tail"))
	got := drain(q)
	require.Len(t, got, 41)
	assert.Equal(t, testUid("60"), got[0].Thread)
	assert.Equal(t, testUid("tail"), got[40].Thread)
}

func TestEventQueue_WaitSignalsOnEnqueue(t *testing.T) {
	q := newEventQueue()
	done := make(chan Event)

	go func() {
		<-q.Wait()
		if e, ok := q.TryDequeue(); ok {
			done <- e
		}
	}()

	time.Sleep(10 * time.Millisecond)
	q.Enqueue(Event{Type: EventTypeExited, Thread: testUid("body"), Err: errors.New("boom")})

	select {
	case e := <-done:
		assert.Equal(t, EventTypeExited, e.Type)
	case <-time.After(time.Second):
		t.Fatal("wait did not signal")
	}
}

func TestEventQueue_CloseKeepsQueuedEvents(t *testing.T) {
	q := newEventQueue()
	q.Enqueue(requested("a"))
	q.Close()
	assert.NotPanics(t, q.Close)

	select {
	case <-q.Wait():
	case <-time.After(time.Second):
		t.Fatal("close did not wake waiters")
	}

	assert.True(t, q.Closed())
	assert.False(t, q.Enqueue(requested("late")), "enqueue after close")
	assert.False(t, q.Enqueue(requested("a")), "merge after close")

	got := drain(q)
	require.Len(t, got, 1)
	assert.Equal(t, testUid("a"), got[0].Thread)
}

func TestEventQueue_ConcurrentProducers(t *testing.T) {
	q := newEventQueue()
	const producers = 8
	const perProducer = 100

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				q.Enqueue(requested(fmt.Sprintf("%d-%d", p, i)))
				q.Enqueue(requested(fmt.Sprintf("%d-%d", p, i)))
			}
		}(p)
	}
	wg.Wait()

	got := drain(q)
	assert.Len(t, got, producers*perProducer)

	seen := make(map[ident.Uid]bool, len(got))
	for _, e := range got {
		require.False(t, seen[e.Thread], "thread queued twice")
		seen[e.Thread] = true
	}
}

func TestEventType_String(t *testing.T) {
	assert.Equal(t, "requested", EventTypeRequested.String())
	assert.Equal(t, "exited", EventTypeExited.String())
	assert.Equal(t, "unknown", EventType(99).String())
}
