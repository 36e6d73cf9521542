package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestOpen_CreatesNewDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer s.Close()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Error("database file was not created")
	}
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	for i := 0; i < 3; i++ {
		s, err := Open(path)
		if err != nil {
			t.Fatalf("Open() iteration %d failed: %v", i, err)
		}
		s.Close()
	}

	s, err := Open(path)
	if err != nil {
		t.Fatalf("final Open() failed: %v", err)
	}
	defer s.Close()

	tables := []string{"resources", "resource_events", "transitions", "deliveries"}
	for _, table := range tables {
		var name string
		err := s.db.QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?",
			table,
		).Scan(&name)
		if err != nil {
			t.Errorf("table %q not found after idempotent opens: %v", table, err)
		}
	}
}

func TestOpen_InvalidPath(t *testing.T) {
	_, err := Open("/nonexistent/dir/test.db")
	if err == nil {
		t.Error("expected error for invalid path, got nil")
	}
}

func TestClose_NilDB(t *testing.T) {
	s := &Store{db: nil}
	if err := s.Close(); err != nil {
		t.Errorf("Close() on nil db should not error: %v", err)
	}
}

func TestPragmas(t *testing.T) {
	s := createTestStore(t)

	tests := []struct {
		name, want string
	}{
		{"journal_mode", "wal"},
		{"synchronous", "1"},
		{"busy_timeout", "5000"},
		{"foreign_keys", "1"},
	}
	for _, tt := range tests {
		if err := s.verifyPragma(tt.name, tt.want); err != nil {
			t.Error(err)
		}
	}
}

func TestConstraint_ResourceEventNeedsResource(t *testing.T) {
	s := createTestStore(t)

	_, err := s.db.Exec(`INSERT INTO resource_events (seq, uid, delta, live) VALUES (1, 'missing', 1, 1)`)
	if err == nil {
		t.Error("expected foreign key violation for unknown uid")
	}
}

func TestConstraint_DeltaIsUnit(t *testing.T) {
	s := createTestStore(t)

	if _, err := s.db.Exec(`INSERT INTO resources (uid, kind, live, first_seq, last_seq) VALUES ('u', 'thread', 1, 1, 1)`); err != nil {
		t.Fatalf("insert resource: %v", err)
	}
	_, err := s.db.Exec(`INSERT INTO resource_events (seq, uid, delta, live) VALUES (2, 'u', 2, 3)`)
	if err == nil {
		t.Error("expected CHECK violation for delta 2")
	}
}

func TestMigration_SchemaVersion(t *testing.T) {
	s := createTestStore(t)

	var version int
	if err := s.db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		t.Fatalf("failed to get user_version: %v", err)
	}
	if version != currentSchemaVersion {
		t.Errorf("user_version = %d, want %d", version, currentSchemaVersion)
	}
}

func TestMigration_UpgradeFromV0(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		t.Fatalf("failed to apply schema: %v", err)
	}
	if _, err := db.Exec("PRAGMA user_version = 0"); err != nil {
		t.Fatalf("failed to set user_version: %v", err)
	}
	db.Close()

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer s.Close()

	if idx := getTableIndexes(t, s.db, "resource_events"); !contains(idx, "idx_resource_events_uid") {
		t.Errorf("resource_events missing uid index after upgrade, indexes: %v", idx)
	}
	idx := getTableIndexes(t, s.db, "deliveries")
	for _, want := range []string{"idx_deliveries_from", "idx_deliveries_to"} {
		if !contains(idx, want) {
			t.Errorf("deliveries missing %s after upgrade, indexes: %v", want, idx)
		}
	}

	v, err := s.SchemaVersion(context.Background())
	if err != nil {
		t.Fatalf("SchemaVersion() failed: %v", err)
	}
	if v != currentSchemaVersion {
		t.Errorf("SchemaVersion() = %d, want %d", v, currentSchemaVersion)
	}
}

func TestMigration_RejectsNewerLedger(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion+1)); err != nil {
		t.Fatalf("failed to set user_version: %v", err)
	}
	db.Close()

	if _, err := Open(path); err == nil {
		t.Error("expected error opening a ledger from a newer build")
	}
}

func TestOpen_BusyTimeoutOption(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "test.db"), WithBusyTimeout(250*time.Millisecond))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer s.Close()

	if err := s.verifyPragma("busy_timeout", "250"); err != nil {
		t.Error(err)
	}
}

func TestOpen_Memory(t *testing.T) {
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer s.Close()

	if s.Path() != ":memory:" {
		t.Errorf("Path() = %q", s.Path())
	}
	seq, err := s.MaxSeq(context.Background())
	if err != nil {
		t.Fatalf("MaxSeq() failed: %v", err)
	}
	if seq != 0 {
		t.Errorf("MaxSeq() = %d on empty ledger", seq)
	}
}
