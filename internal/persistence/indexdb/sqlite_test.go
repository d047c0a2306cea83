package indexdb

import (
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"voxelsiege.gg/internal/sim/tuning"
	"voxelsiege.gg/internal/sim/world"
)

func openTestIndex(t *testing.T) (*SQLiteIndex, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "index", "world.sqlite")
	s, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	return s, path
}

func TestIndexWritesEditsAndDenials(t *testing.T) {
	s, path := openTestIndex(t)

	edits := []world.EditLogEntry{
		{Tick: 10, Actor: 1, Kind: "BUILD", Pos: [3]int{1, 2, 60}, Color: 0xFF112233},
		{Tick: 10, Actor: 1, Kind: "BUILD", Pos: [3]int{1, 3, 60}, Color: 0xFF112233},
		{Tick: 11, Actor: 2, Kind: "DESTROY_ONE", Pos: [3]int{1, 2, 60}, Vacated: 4},
	}
	for _, e := range edits {
		if err := s.WriteEdit(e); err != nil {
			t.Fatalf("write edit: %v", err)
		}
	}
	if err := s.WriteAudit(world.AuditEntry{
		Tick: 11, Actor: 3, Kind: "BUILD", Pos: [3]int{5, 5, 63}, Reason: "D_BEDROCK",
	}); err != nil {
		t.Fatalf("write audit: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer db.Close()

	var n int
	if err := db.QueryRow(`SELECT COUNT(*) FROM edits`).Scan(&n); err != nil {
		t.Fatalf("count edits: %v", err)
	}
	if n != 3 {
		t.Fatalf("edits = %d, want 3", n)
	}

	// Sequence numbers restart per tick.
	var seq int
	if err := db.QueryRow(`SELECT seq FROM edits WHERE tick=10 AND y=3`).Scan(&seq); err != nil {
		t.Fatalf("seq query: %v", err)
	}
	if seq != 1 {
		t.Fatalf("second edit of tick 10 seq = %d, want 1", seq)
	}
	if err := db.QueryRow(`SELECT seq FROM edits WHERE tick=11`).Scan(&seq); err != nil {
		t.Fatalf("seq query: %v", err)
	}
	if seq != 0 {
		t.Fatalf("first edit of tick 11 seq = %d, want 0", seq)
	}

	var vacated int
	if err := db.QueryRow(`SELECT vacated FROM edits WHERE tick=11`).Scan(&vacated); err != nil {
		t.Fatalf("vacated query: %v", err)
	}
	if vacated != 4 {
		t.Fatalf("vacated = %d, want 4", vacated)
	}

	var reason string
	if err := db.QueryRow(`SELECT reason FROM denials WHERE actor=3`).Scan(&reason); err != nil {
		t.Fatalf("denial query: %v", err)
	}
	if reason != "D_BEDROCK" {
		t.Fatalf("reason = %q", reason)
	}
}

func TestIndexRecordTuning(t *testing.T) {
	s, path := openTestIndex(t)
	if err := s.RecordTuning(tuning.Defaults()); err != nil {
		t.Fatalf("record tuning: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer db.Close()

	var digest string
	if err := db.QueryRow(`SELECT value FROM meta WHERE key='tuning_digest'`).Scan(&digest); err != nil {
		t.Fatalf("digest query: %v", err)
	}
	if len(digest) != 64 {
		t.Fatalf("digest length = %d, want sha256 hex", len(digest))
	}
}

func TestIndexWritesAfterCloseAreNoOps(t *testing.T) {
	s, _ := openTestIndex(t)
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := s.WriteEdit(world.EditLogEntry{Tick: 1}); err != nil {
		t.Fatalf("write after close: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("double close: %v", err)
	}
}

func TestIndexBatchCommitsWithoutClose(t *testing.T) {
	s, path := openTestIndex(t)
	defer s.Close()

	// More than one commit batch.
	for i := 0; i < 2500; i++ {
		if err := s.WriteEdit(world.EditLogEntry{
			Tick: uint64(i / 10), Actor: 1, Kind: "BUILD", Pos: [3]int{i % 512, 0, 60},
		}); err != nil {
			t.Fatalf("write: %v", err)
		}
	}

	deadline := time.Now().Add(5 * time.Second)
	for {
		db, err := sql.Open("sqlite", path)
		if err != nil {
			t.Fatalf("reopen: %v", err)
		}
		var n int
		err = db.QueryRow(`SELECT COUNT(*) FROM edits`).Scan(&n)
		_ = db.Close()
		if err == nil && n >= 2000 {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("batch never committed: n=%d err=%v", n, err)
		}
		time.Sleep(50 * time.Millisecond)
	}
}
