package profile

import (
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/decisionarena/xp-engine/internal/ledger"
	_ "modernc.org/sqlite"
)

func tempStore(t *testing.T) (*Store, *sql.DB) {
	t.Helper()
	dir := t.TempDir()
	db, err := sql.Open("sqlite", filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	s, err := NewStore(db)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	return s, db
}

func TestEnsureAndGetDefaults(t *testing.T) {
	s, _ := tempStore(t)

	if err := s.Ensure("u1"); err != nil {
		t.Fatalf("Ensure: %v", err)
	}
	// Idempotent.
	if err := s.Ensure("u1"); err != nil {
		t.Fatalf("second Ensure: %v", err)
	}

	p, err := s.Get("u1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if p.XPState != StateProgressing {
		t.Fatalf("expected progressing, got %s", p.XPState)
	}
	if p.XP.Total != 0 || p.Level != 1 || p.StagnationCount != 0 {
		t.Fatalf("unexpected defaults: %+v", p)
	}
	if p.XPFrozenUntil != nil {
		t.Fatal("new profile must not be frozen")
	}
	if len(p.ExploitHistory) != 0 {
		t.Fatal("new profile must have empty exploit history")
	}
	if p.Version != 1 {
		t.Fatalf("expected version 1, got %d", p.Version)
	}
}

func TestApplyAwardTx(t *testing.T) {
	s, db := tempStore(t)
	if err := s.Ensure("u1"); err != nil {
		t.Fatalf("Ensure: %v", err)
	}

	tx, _ := db.Begin()
	xp := ledger.Snapshot{RiskTaker: 13, Analyst: 6, Builder: 0, Strategist: 3, Total: 22}
	if err := s.ApplyAwardTx(tx, "u1", xp, 1, StateProgressing, 0, 1); err != nil {
		t.Fatalf("ApplyAwardTx: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}

	p, err := s.Get("u1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if p.XP != xp {
		t.Fatalf("expected %+v, got %+v", xp, p.XP)
	}
	if p.Version != 2 {
		t.Fatalf("expected version bump to 2, got %d", p.Version)
	}
}

func TestApplyAwardTxVersionConflict(t *testing.T) {
	s, db := tempStore(t)
	if err := s.Ensure("u1"); err != nil {
		t.Fatalf("Ensure: %v", err)
	}

	tx, _ := db.Begin()
	err := s.ApplyAwardTx(tx, "u1", ledger.Snapshot{Total: 5}, 1, StateProgressing, 0, 99)
	if !errors.Is(err, ErrVersionConflict) {
		t.Fatalf("expected ErrVersionConflict, got %v", err)
	}
	tx.Rollback()

	p, _ := s.Get("u1")
	if p.XP.Total != 0 {
		t.Fatal("conflicting write must not mutate the profile")
	}
}

func TestFreezeAndThaw(t *testing.T) {
	s, db := tempStore(t)
	if err := s.Ensure("u1"); err != nil {
		t.Fatalf("Ensure: %v", err)
	}

	until := time.Now().UTC().Add(30 * time.Minute)
	tx, _ := db.Begin()
	incident := Incident{Reason: "exact_replay", Similarity: 1.0, CooldownS: 1800, At: time.Now().UTC()}
	if err := s.SetFreezeTx(tx, "u1", until, incident); err != nil {
		t.Fatalf("SetFreezeTx: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}

	p, err := s.Get("u1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if p.XPState != StateFrozen {
		t.Fatalf("expected frozen, got %s", p.XPState)
	}
	if p.XPFrozenUntil == nil || p.XPFrozenUntil.Unix() != until.Unix() {
		t.Fatalf("freeze timestamp not persisted: %v", p.XPFrozenUntil)
	}
	if len(p.ExploitHistory) != 1 || p.ExploitHistory[0].Reason != "exact_replay" {
		t.Fatalf("incident not appended: %+v", p.ExploitHistory)
	}

	if err := s.Thaw("u1"); err != nil {
		t.Fatalf("Thaw: %v", err)
	}
	p, _ = s.Get("u1")
	if p.XPState != StateProgressing || p.XPFrozenUntil != nil {
		t.Fatalf("thaw did not clear freeze: %+v", p)
	}
	// History survives the thaw.
	if len(p.ExploitHistory) != 1 {
		t.Fatal("exploit history must survive thawing")
	}
}

func TestExploitHistoryAccumulates(t *testing.T) {
	s, db := tempStore(t)
	if err := s.Ensure("u1"); err != nil {
		t.Fatalf("Ensure: %v", err)
	}

	for i := 0; i < 3; i++ {
		tx, _ := db.Begin()
		err := s.SetFreezeTx(tx, "u1", time.Now().UTC().Add(time.Hour), Incident{Reason: "near_duplicate", At: time.Now().UTC()})
		if err != nil {
			t.Fatalf("SetFreezeTx %d: %v", i, err)
		}
		tx.Commit()
	}

	p, _ := s.Get("u1")
	if len(p.ExploitHistory) != 3 {
		t.Fatalf("expected 3 incidents, got %d", len(p.ExploitHistory))
	}
}
