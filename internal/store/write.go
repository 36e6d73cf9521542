package store

import (
	"context"
	"fmt"
)

// WriteResourceEvent records a retain or release and updates the resource's
// live count in one transaction. The first event for a uid creates its row.
func (s *Store) WriteResourceEvent(ctx context.Context, ev ResourceEvent) error {
	if ev.Delta != 1 && ev.Delta != -1 {
		return fmt.Errorf("write resource event: delta must be +1 or -1, got %d", ev.Delta)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("write resource event: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO resources (uid, kind, live, first_seq, last_seq)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(uid) DO UPDATE SET live = excluded.live, last_seq = excluded.last_seq
	`, ev.Uid, ev.Kind, ev.Live, ev.Seq, ev.Seq)
	if err != nil {
		return fmt.Errorf("write resource %s: %w", ev.Uid, err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO resource_events (seq, uid, delta, live)
		VALUES (?, ?, ?, ?)
		ON CONFLICT DO NOTHING
	`, ev.Seq, ev.Uid, ev.Delta, ev.Live)
	if err != nil {
		return fmt.Errorf("write resource event %s@%d: %w", ev.Uid, ev.Seq, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("write resource event: commit: %w", err)
	}
	return nil
}

// WriteTransition records a thread state change.
// Uses ON CONFLICT(seq) DO NOTHING so replaying the same run is harmless.
func (s *Store) WriteTransition(ctx context.Context, tr Transition) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO transitions (seq, thread_uid, path, event, from_state, to_state)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(seq) DO NOTHING
	`, tr.Seq, tr.Thread, tr.Path, tr.Event, tr.From, tr.To)
	if err != nil {
		return fmt.Errorf("write transition: %w", err)
	}
	return nil
}

// WriteDelivery records a mailbox operation.
func (s *Store) WriteDelivery(ctx context.Context, d Delivery) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO deliveries (seq, from_uid, to_uid, interface, mode, outcome, shared_uid)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(seq) DO NOTHING
	`, d.Seq, d.From, d.To, d.Interface, d.Mode, d.Outcome, d.Shared)
	if err != nil {
		return fmt.Errorf("write delivery: %w", err)
	}
	return nil
}
