package harness

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/roach88/kobzar/internal/store"
)

// ledgerColumns is the queryable schema of the ledger. final_state
// assertions may only name these tables and columns; every other string
// reaches SQL as a bound parameter.
var ledgerColumns = map[string][]string{
	"resources":       {"uid", "kind", "live", "first_seq", "last_seq"},
	"resource_events": {"seq", "uid", "delta", "live"},
	"transitions":     {"seq", "thread_uid", "path", "event", "from_state", "to_state"},
	"deliveries":      {"seq", "from_uid", "to_uid", "interface", "mode", "outcome", "shared_uid"},
}

// checkLedgerColumns rejects final_state assertions that name anything
// outside ledgerColumns.
func checkLedgerColumns(a *Assertion) error {
	cols, ok := ledgerColumns[a.Table]
	if !ok {
		return fmt.Errorf("unknown ledger table %q", a.Table)
	}
	for _, m := range []map[string]any{a.Where, a.Expect} {
		for key := range m {
			if !slices.Contains(cols, key) {
				return fmt.Errorf("unknown column %q in %s (have %s)", key, a.Table, strings.Join(cols, ", "))
			}
		}
	}
	return nil
}

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
	Trace    []TraceEvent // attached for trace assertions
}

func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)
	if len(e.Trace) > 0 {
		buf.WriteString("\nFull trace:\n")
		for _, ev := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s\n", ev.Seq, ev.Label())
		}
	}
	return buf.String()
}

func labels(trace []TraceEvent) []string {
	out := make([]string, len(trace))
	for i, ev := range trace {
		out[i] = ev.Label()
	}
	return out
}

func assertTraceContains(trace []TraceEvent, a Assertion) error {
	if slices.Contains(labels(trace), a.Event) {
		return nil
	}
	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: "event " + a.Event,
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

// assertTraceOrder checks that a.Events occur as a subsequence of the
// trace; other events may come between them.
func assertTraceOrder(trace []TraceEvent, a Assertion) error {
	rest := labels(trace)
	for _, want := range a.Events {
		i := slices.Index(rest, want)
		if i < 0 {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("events in order: %v", a.Events),
				Actual:   want + " missing or out of order",
				Trace:    trace,
			}
		}
		rest = rest[i+1:]
	}
	return nil
}

func assertTraceCount(trace []TraceEvent, a Assertion) error {
	n := 0
	for _, l := range labels(trace) {
		if l == a.Event {
			n++
		}
	}
	if n == a.Count {
		return nil
	}
	return &AssertionError{
		Type:     AssertTraceCount,
		Expected: fmt.Sprintf("%d occurrences of %s", a.Count, a.Event),
		Actual:   fmt.Sprintf("%d occurrences", n),
		Trace:    trace,
	}
}

// assertFinalState finds the single ledger row matching a.Where and checks
// the columns named in a.Expect. "@alias" values stand for thread uids.
func assertFinalState(ctx context.Context, st *store.Store, a Assertion, aliases map[string]string) error {
	if err := checkLedgerColumns(&a); err != nil {
		return err
	}
	where, err := resolveAliases(a.Where, aliases)
	if err != nil {
		return err
	}
	expect, err := resolveAliases(a.Expect, aliases)
	if err != nil {
		return err
	}

	cond, args := buildWhereClause(where)
	query := "SELECT * FROM " + a.Table
	if cond != "" {
		query += " WHERE " + cond
	}

	row, n, err := queryOne(ctx, st, query, args)
	if err != nil {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: "query " + a.Table,
			Actual:   fmt.Sprintf("query error: %v", err),
		}
	}
	switch {
	case n == 0:
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("row in %s where %s", a.Table, formatWhereClause(a.Where)),
			Actual:   "row not found",
		}
	case n > 1:
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("exactly one row in %s where %s", a.Table, formatWhereClause(a.Where)),
			Actual:   "multiple rows matched (assertion is ambiguous)",
		}
	}

	for _, key := range sortedKeys(expect) {
		want, got := expect[key], row[key]
		if !stateValuesEqual(want, got) {
			return &AssertionError{
				Type:     AssertFinalState,
				Expected: fmt.Sprintf("field %q = %v (type %T)", key, want, want),
				Actual:   fmt.Sprintf("field %q = %v (type %T)", key, got, got),
			}
		}
	}
	return nil
}

// queryOne returns the first row as a column map and how many rows
// matched, stopping at two.
func queryOne(ctx context.Context, st *store.Store, query string, args []any) (map[string]any, int, error) {
	rows, err := st.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, 0, fmt.Errorf("get columns: %w", err)
	}

	var row map[string]any
	n := 0
	for n < 2 && rows.Next() {
		n++
		if row != nil {
			break
		}
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, 0, fmt.Errorf("scan row: %w", err)
		}
		row = make(map[string]any, len(cols))
		for i, c := range cols {
			row[c] = vals[i]
		}
	}
	return row, n, rows.Err()
}

// resolveAliases replaces "@alias" string values with thread uids.
func resolveAliases(m map[string]any, aliases map[string]string) (map[string]any, error) {
	if len(m) == 0 {
		return m, nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		s, ok := v.(string)
		if !ok || !strings.HasPrefix(s, "@") {
			out[k] = v
			continue
		}
		uid, ok := aliases[s[1:]]
		if !ok {
			return nil, fmt.Errorf("unknown thread alias %q in %s", s, k)
		}
		out[k] = uid
	}
	return out, nil
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// buildWhereClause joins where as "col = ?" terms in key order. Column
// names must already be checked against ledgerColumns.
func buildWhereClause(where map[string]any) (string, []any) {
	keys := sortedKeys(where)
	terms := make([]string, len(keys))
	args := make([]any, len(keys))
	for i, k := range keys {
		terms[i] = k + " = ?"
		switch v := where[k].(type) {
		case string, int, int64, bool:
			args[i] = v
		default:
			args[i] = fmt.Sprint(v)
		}
	}
	return strings.Join(terms, " AND "), args
}

func formatWhereClause(where map[string]any) string {
	if len(where) == 0 {
		return "(no conditions)"
	}
	keys := sortedKeys(where)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%v", k, where[k])
	}
	return strings.Join(parts, " AND ")
}

// stateValuesEqual compares a YAML-decoded expectation with a value
// scanned from SQLite, which returns TEXT as string or []byte and INTEGER
// as int64.
func stateValuesEqual(expected, actual any) bool {
	switch exp := expected.(type) {
	case nil:
		return actual == nil
	case string:
		switch a := actual.(type) {
		case string:
			return exp == a
		case []byte:
			return exp == string(a)
		}
	case int:
		a, ok := actual.(int64)
		return ok && int64(exp) == a
	case int64:
		a, ok := actual.(int64)
		return ok && exp == a
	case bool:
		a, ok := actual.(int64)
		return ok && exp == (a != 0)
	}
	return false
}

// AssertionContext gives final_state assertions access to the ledger.
type AssertionContext struct {
	Store *store.Store
	Ctx   context.Context

	// Aliases maps thread aliases to uid strings.
	Aliases map[string]string
}

// EvaluateAssertions runs assertions against result and returns one
// message per failure. actx may be nil when no assertion needs the ledger.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var failures []string
	for i, a := range assertions {
		var err error
		switch a.Type {
		case AssertTraceContains:
			err = assertTraceContains(result.Trace, a)
		case AssertTraceOrder:
			err = assertTraceOrder(result.Trace, a)
		case AssertTraceCount:
			err = assertTraceCount(result.Trace, a)
		case AssertFinalState:
			if actx == nil || actx.Store == nil {
				err = fmt.Errorf("assertion[%d]: final_state requires database context", i)
			} else {
				err = assertFinalState(actx.Ctx, actx.Store, a, actx.Aliases)
			}
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, a.Type)
		}
		if err != nil {
			failures = append(failures, err.Error())
		}
	}
	return failures
}
