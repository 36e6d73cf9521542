package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("store: not found")

// ReadResources returns every tracked resource ordered by first appearance.
// Returns an empty slice (not nil) for an empty ledger.
func (s *Store) ReadResources(ctx context.Context) ([]Resource, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT uid, kind, live, first_seq, last_seq
		FROM resources
		ORDER BY first_seq ASC, uid COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query resources: %w", err)
	}
	defer rows.Close()

	out := []Resource{}
	for rows.Next() {
		var r Resource
		if err := rows.Scan(&r.Uid, &r.Kind, &r.Live, &r.FirstSeq, &r.LastSeq); err != nil {
			return nil, fmt.Errorf("scan resource: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate resources: %w", err)
	}
	return out, nil
}

// ReadResource returns the ledger row for uid or ErrNotFound.
func (s *Store) ReadResource(ctx context.Context, uid string) (Resource, error) {
	var r Resource
	err := s.db.QueryRowContext(ctx, `
		SELECT uid, kind, live, first_seq, last_seq
		FROM resources WHERE uid = ?
	`, uid).Scan(&r.Uid, &r.Kind, &r.Live, &r.FirstSeq, &r.LastSeq)
	if errors.Is(err, sql.ErrNoRows) {
		return Resource{}, fmt.Errorf("resource %s: %w", uid, ErrNotFound)
	}
	if err != nil {
		return Resource{}, fmt.Errorf("read resource %s: %w", uid, err)
	}
	return r, nil
}

// ReadResourceEvents returns the retain/release history of uid in clock order.
func (s *Store) ReadResourceEvents(ctx context.Context, uid string) ([]ResourceEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT e.seq, e.uid, r.kind, e.delta, e.live
		FROM resource_events e
		JOIN resources r ON r.uid = e.uid
		WHERE e.uid = ?
		ORDER BY e.seq ASC
	`, uid)
	if err != nil {
		return nil, fmt.Errorf("query resource events: %w", err)
	}
	defer rows.Close()

	out := []ResourceEvent{}
	for rows.Next() {
		var ev ResourceEvent
		if err := rows.Scan(&ev.Seq, &ev.Uid, &ev.Kind, &ev.Delta, &ev.Live); err != nil {
			return nil, fmt.Errorf("scan resource event: %w", err)
		}
		out = append(out, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate resource events: %w", err)
	}
	return out, nil
}

// ReadTransitions returns state changes in clock order. An empty thread
// returns transitions of every thread.
func (s *Store) ReadTransitions(ctx context.Context, thread string) ([]Transition, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, thread_uid, path, event, from_state, to_state
		FROM transitions
		WHERE ? = '' OR thread_uid = ?
		ORDER BY seq ASC
	`, thread, thread)
	if err != nil {
		return nil, fmt.Errorf("query transitions: %w", err)
	}
	defer rows.Close()

	out := []Transition{}
	for rows.Next() {
		var tr Transition
		if err := rows.Scan(&tr.Seq, &tr.Thread, &tr.Path, &tr.Event, &tr.From, &tr.To); err != nil {
			return nil, fmt.Errorf("scan transition: %w", err)
		}
		out = append(out, tr)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transitions: %w", err)
	}
	return out, nil
}

// ReadDeliveries returns mailbox operations in clock order.
func (s *Store) ReadDeliveries(ctx context.Context) ([]Delivery, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, from_uid, to_uid, interface, mode, outcome, shared_uid
		FROM deliveries
		ORDER BY seq ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query deliveries: %w", err)
	}
	defer rows.Close()

	out := []Delivery{}
	for rows.Next() {
		var d Delivery
		if err := rows.Scan(&d.Seq, &d.From, &d.To, &d.Interface, &d.Mode, &d.Outcome, &d.Shared); err != nil {
			return nil, fmt.Errorf("scan delivery: %w", err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate deliveries: %w", err)
	}
	return out, nil
}

// MaxSeq returns the highest seq recorded in any table, 0 for an empty
// ledger. The engine resumes its clock from here when reopening a ledger.
func (s *Store) MaxSeq(ctx context.Context) (int64, error) {
	var seq int64
	err := s.db.QueryRowContext(ctx, `
		SELECT MAX(m) FROM (
			SELECT COALESCE(MAX(seq), 0) AS m FROM resource_events
			UNION ALL SELECT COALESCE(MAX(seq), 0) FROM transitions
			UNION ALL SELECT COALESCE(MAX(seq), 0) FROM deliveries
		)
	`).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("max seq: %w", err)
	}
	return seq, nil
}
