package harness

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/kobzar/internal/store"
	"github.com/roach88/kobzar/internal/testutil"
)

func sampleTrace() []TraceEvent {
	return []TraceEvent{
		{Seq: 1, Type: TraceTransition, Thread: "e", Event: "allow_run", From: "paused", To: "paused_run_requested"},
		{Seq: 2, Type: TraceTransition, Thread: "e", Event: "confirm", From: "paused_run_requested", To: "running"},
		{Seq: 4, Type: TraceDelivery, From: "root", To: "e", Mode: "send", Outcome: "queued"},
		{Seq: 6, Type: TraceDelivery, From: "root", To: "e", Mode: "receive", Outcome: "taken"},
		{Seq: 8, Type: TraceDelivery, From: "e", To: "root", Mode: "send_when_available", Outcome: "queued"},
		{Seq: 9, Type: TraceDelivery, From: "e", To: "root", Mode: "receive", Outcome: "taken"},
	}
}

func TestTraceEventLabel(t *testing.T) {
	trace := sampleTrace()
	assert.Equal(t, "e:running", trace[1].Label())
	assert.Equal(t, "root->e:queued", trace[2].Label())
}

func TestAssertTraceContains(t *testing.T) {
	trace := sampleTrace()

	assert.NoError(t, assertTraceContains(trace, Assertion{Type: AssertTraceContains, Event: "e->root:taken"}))

	err := assertTraceContains(trace, Assertion{Type: AssertTraceContains, Event: "e:ceased"})
	require.Error(t, err)

	var ae *AssertionError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, AssertTraceContains, ae.Type)
	assert.Contains(t, err.Error(), "event e:ceased")
	assert.Contains(t, err.Error(), "[2] e:running")
}

func TestAssertTraceOrder(t *testing.T) {
	trace := sampleTrace()

	tests := []struct {
		name    string
		events  []string
		wantErr bool
	}{
		{"in order", []string{"e:running", "root->e:queued", "e->root:taken"}, false},
		{"gaps allowed", []string{"e:paused_run_requested", "e->root:queued"}, false},
		{"out of order", []string{"root->e:queued", "e:running"}, true},
		{"missing", []string{"e:running", "e:ceased"}, true},
		{"repeated label needs repeated event", []string{"e:running", "e:running"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := assertTraceOrder(trace, Assertion{Type: AssertTraceOrder, Events: tt.events})
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestAssertTraceCount(t *testing.T) {
	trace := sampleTrace()

	assert.NoError(t, assertTraceCount(trace, Assertion{Event: "root->e:queued", Count: 1}))
	assert.NoError(t, assertTraceCount(trace, Assertion{Event: "e:killed", Count: 0}))

	err := assertTraceCount(trace, Assertion{Type: AssertTraceCount, Event: "e:running", Count: 2})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "2 occurrences of e:running")
	assert.Contains(t, err.Error(), "1 occurrences")
}

func openLedger(t *testing.T) *store.Store {
	t.Helper()
	st := testutil.OpenStore(t)
	ctx := context.Background()
	require.NoError(t, st.WriteResourceEvent(ctx, store.ResourceEvent{Seq: 1, Uid: "uid-e", Kind: "thread", Delta: 1, Live: 1}))
	require.NoError(t, st.WriteTransition(ctx, store.Transition{
		Seq: 2, Thread: "uid-e", Path: "svc/echo/e", Event: "allow_run", From: "paused", To: "paused_run_requested",
	}))
	require.NoError(t, st.WriteTransition(ctx, store.Transition{
		Seq: 3, Thread: "uid-e", Path: "svc/echo/e", Event: "confirm", From: "paused_run_requested", To: "running",
	}))
	require.NoError(t, st.WriteDelivery(ctx, store.Delivery{
		Seq: 4, From: "uid-root", To: "uid-e", Interface: "svc/echo@1.0.0", Mode: "send", Outcome: "queued",
	}))
	return st
}

func TestAssertFinalState(t *testing.T) {
	st := openLedger(t)
	ctx := context.Background()
	aliases := map[string]string{"e": "uid-e", "root": "uid-root"}

	tests := []struct {
		name      string
		assertion Assertion
		wantErr   string
	}{
		{
			name: "resource row",
			assertion: Assertion{Table: "resources", Where: map[string]any{"uid": "@e"},
				Expect: map[string]any{"kind": "thread", "live": 1}},
		},
		{
			name: "transition by target state",
			assertion: Assertion{Table: "transitions",
				Where:  map[string]any{"thread_uid": "@e", "to_state": "running"},
				Expect: map[string]any{"event": "confirm", "seq": 3}},
		},
		{
			name: "delivery sender alias in expect",
			assertion: Assertion{Table: "deliveries", Where: map[string]any{"to_uid": "@e"},
				Expect: map[string]any{"from_uid": "@root", "outcome": "queued"}},
		},
		{
			name: "value mismatch",
			assertion: Assertion{Table: "resources", Where: map[string]any{"uid": "@e"},
				Expect: map[string]any{"live": 2}},
			wantErr: `field "live" = 2`,
		},
		{
			name: "ambiguous",
			assertion: Assertion{Table: "transitions", Where: map[string]any{"thread_uid": "@e"},
				Expect: map[string]any{"path": "svc/echo/e"}},
			wantErr: "multiple rows matched",
		},
		{
			name: "no row",
			assertion: Assertion{Table: "transitions", Where: map[string]any{"to_state": "killed"},
				Expect: map[string]any{"event": "kill"}},
			wantErr: "row not found",
		},
		{
			name: "unknown column in expect",
			assertion: Assertion{Table: "resources", Where: map[string]any{"uid": "@e"},
				Expect: map[string]any{"owner": "root"}},
			wantErr: `unknown column "owner" in resources`,
		},
		{
			name: "unknown alias",
			assertion: Assertion{Table: "resources", Where: map[string]any{"uid": "@ghost"},
				Expect: map[string]any{"kind": "thread"}},
			wantErr: `unknown thread alias "@ghost"`,
		},
		{
			name: "injected table name",
			assertion: Assertion{Table: "resources; DROP TABLE resources",
				Expect: map[string]any{"kind": "thread"}},
			wantErr: "unknown ledger table",
		},
		{
			name: "injected column name",
			assertion: Assertion{Table: "resources", Where: map[string]any{"uid = uid OR 1": 1},
				Expect: map[string]any{"kind": "thread"}},
			wantErr: `unknown column "uid = uid OR 1"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := assertFinalState(ctx, st, tt.assertion, aliases)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestBuildWhereClause_SortedKeys(t *testing.T) {
	sql, args := buildWhereClause(map[string]any{"to_state": "running", "event": "confirm", "seq": 3.0})
	assert.Equal(t, "event = ? AND seq = ? AND to_state = ?", sql)
	assert.Equal(t, []any{"confirm", "3", "running"}, args)

	sql, args = buildWhereClause(nil)
	assert.Empty(t, sql)
	assert.Empty(t, args)
}

func TestCheckLedgerColumns(t *testing.T) {
	ok := Assertion{Table: "resource_events", Where: map[string]any{"uid": "@e"}, Expect: map[string]any{"delta": -1}}
	assert.NoError(t, checkLedgerColumns(&ok))

	bad := Assertion{Table: "deliveries", Expect: map[string]any{"from": "@root"}}
	err := checkLedgerColumns(&bad)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "from_uid")
}

func TestStateValuesEqual(t *testing.T) {
	assert.True(t, stateValuesEqual(nil, nil))
	assert.False(t, stateValuesEqual("a", nil))
	assert.True(t, stateValuesEqual("a", []byte("a")))
	assert.True(t, stateValuesEqual(1, int64(1)))
	assert.True(t, stateValuesEqual(true, int64(1)))
	assert.False(t, stateValuesEqual(false, int64(1)))
	assert.False(t, stateValuesEqual(1, "1"))
}

func TestEvaluateAssertions(t *testing.T) {
	result := NewResult()
	result.Trace = sampleTrace()

	failures := EvaluateAssertions(result, []Assertion{
		{Type: AssertTraceContains, Event: "e:running"},
		{Type: AssertTraceCount, Event: "e:running", Count: 3},
		{Type: AssertFinalState, Table: "resources", Expect: map[string]any{"kind": "thread"}},
		{Type: "bogus"},
	}, nil)

	require.Len(t, failures, 3)
	assert.Contains(t, failures[0], "3 occurrences of e:running")
	assert.Contains(t, failures[1], "final_state requires database context")
	assert.Contains(t, failures[2], `unknown assertion type "bogus"`)
}
