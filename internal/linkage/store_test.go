package linkage

import (
	"database/sql"
	"fmt"
	"path/filepath"
	"testing"

	_ "modernc.org/sqlite"
)

func tempStore(t *testing.T, config Config) *Store {
	t.Helper()
	dir := t.TempDir()
	db, err := sql.Open("sqlite", filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	s, err := NewStore(db, config)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	return s
}

func mustLink(t *testing.T, s *Store, account, device string) {
	t.Helper()
	if err := s.RecordLink(account, device); err != nil {
		t.Fatalf("RecordLink(%s, %s): %v", account, device, err)
	}
}

func TestResolveDirectLink(t *testing.T) {
	s := tempStore(t, DefaultConfig())
	mustLink(t, s, "a", "dev1")
	mustLink(t, s, "b", "dev1")

	linked, err := s.Resolve("a")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(linked) != 1 || linked[0] != "b" {
		t.Fatalf("expected [b], got %v", linked)
	}
}

func TestResolveTransitive(t *testing.T) {
	s := tempStore(t, DefaultConfig())
	// a-dev1-b, b-dev2-c: c is two hops from a
	mustLink(t, s, "a", "dev1")
	mustLink(t, s, "b", "dev1")
	mustLink(t, s, "b", "dev2")
	mustLink(t, s, "c", "dev2")

	linked, err := s.Resolve("a")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(linked) != 2 {
		t.Fatalf("expected 2 linked accounts, got %v", linked)
	}
}

func TestResolveCycleTerminates(t *testing.T) {
	s := tempStore(t, DefaultConfig())
	// a and b share both devices: the walk must not loop
	mustLink(t, s, "a", "dev1")
	mustLink(t, s, "b", "dev1")
	mustLink(t, s, "a", "dev2")
	mustLink(t, s, "b", "dev2")

	linked, err := s.Resolve("a")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(linked) != 1 || linked[0] != "b" {
		t.Fatalf("expected [b], got %v", linked)
	}
}

func TestResolveDepthBound(t *testing.T) {
	s := tempStore(t, Config{MaxDepth: 1, MaxAccounts: 50})
	mustLink(t, s, "a", "dev1")
	mustLink(t, s, "b", "dev1")
	mustLink(t, s, "b", "dev2")
	mustLink(t, s, "c", "dev2")

	linked, err := s.Resolve("a")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	// depth 1: only b is reachable; c requires expanding b
	if len(linked) != 1 || linked[0] != "b" {
		t.Fatalf("expected [b] at depth 1, got %v", linked)
	}
}

func TestResolveAccountCap(t *testing.T) {
	s := tempStore(t, Config{MaxDepth: 3, MaxAccounts: 5})
	for i := 0; i < 20; i++ {
		mustLink(t, s, fmt.Sprintf("acct-%d", i), "shared")
	}

	linked, err := s.Resolve("acct-0")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(linked) != 5 {
		t.Fatalf("expected cap of 5 accounts, got %d", len(linked))
	}
}

func TestResolveNoLinks(t *testing.T) {
	s := tempStore(t, DefaultConfig())
	linked, err := s.Resolve("lonely")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(linked) != 0 {
		t.Fatalf("expected no linked accounts, got %v", linked)
	}
}
