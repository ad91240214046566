package integrity

import (
	"testing"
	"time"

	"github.com/decisionarena/xp-engine/internal/ledger"
	"github.com/decisionarena/xp-engine/internal/profile"
)

func TestGateSubmissionActiveFreeze(t *testing.T) {
	m := NewMachine(DefaultMachineConfig())
	until := time.Now().Add(time.Hour)
	p := profile.Profile{UserID: "u1", XPState: profile.StateFrozen, XPFrozenUntil: &until}

	thawed := false
	out, err := m.GateSubmission(p, time.Now(), func(string) error { thawed = true; return nil })
	if err != nil {
		t.Fatalf("gate: %v", err)
	}
	if out.Allowed {
		t.Fatal("expected frozen profile to be blocked")
	}
	if out.Reason != "xp_frozen" {
		t.Fatalf("reason = %q, want xp_frozen", out.Reason)
	}
	if !out.ResumeAt.Equal(until) {
		t.Fatalf("resume at = %v, want %v", out.ResumeAt, until)
	}
	if thawed {
		t.Fatal("thaw must not run while the freeze is active")
	}
}

func TestGateSubmissionExpiredFreeze(t *testing.T) {
	m := NewMachine(DefaultMachineConfig())
	until := time.Now().Add(-time.Minute)
	p := profile.Profile{UserID: "u1", XPState: profile.StateFrozen, XPFrozenUntil: &until}

	var thawedUser string
	out, err := m.GateSubmission(p, time.Now(), func(id string) error { thawedUser = id; return nil })
	if err != nil {
		t.Fatalf("gate: %v", err)
	}
	if !out.Allowed {
		t.Fatal("expired freeze should allow submission")
	}
	if thawedUser != "u1" {
		t.Fatalf("thawed user = %q, want u1", thawedUser)
	}
}

func TestGateSubmissionActiveCooldown(t *testing.T) {
	m := NewMachine(DefaultMachineConfig())
	end := time.Now().Add(15 * time.Minute)
	p := profile.Profile{UserID: "u2", XPState: profile.StateProgressing, ExploitCooldownEnd: &end}

	out, err := m.GateSubmission(p, time.Now(), func(string) error {
		t.Fatal("thaw must not run during an active cooldown")
		return nil
	})
	if err != nil {
		t.Fatalf("gate: %v", err)
	}
	if out.Allowed {
		t.Fatal("active cooldown should block submission")
	}
	if out.Reason != "cooldown_active" {
		t.Fatalf("reason = %q, want cooldown_active", out.Reason)
	}
}

func TestGateSubmissionClean(t *testing.T) {
	m := NewMachine(DefaultMachineConfig())
	p := profile.Profile{UserID: "u3", XPState: profile.StateProgressing}

	out, err := m.GateSubmission(p, time.Now(), func(string) error {
		t.Fatal("thaw must not run for a clean profile")
		return nil
	})
	if err != nil {
		t.Fatalf("gate: %v", err)
	}
	if !out.Allowed {
		t.Fatal("clean profile should be allowed")
	}
}

func TestNextStateStagnationCounting(t *testing.T) {
	m := NewMachine(DefaultMachineConfig())

	p := profile.Profile{UserID: "u4", XPState: profile.StateProgressing}
	for i := 1; i <= 2; i++ {
		tr := m.NextState(p, 0)
		if tr.StagnationCount != i {
			t.Fatalf("after %d zero-gain submissions: count = %d", i, tr.StagnationCount)
		}
		if tr.State != string(profile.StateProgressing) {
			t.Fatalf("state = %q before threshold, want progressing", tr.State)
		}
		p.StagnationCount = tr.StagnationCount
	}

	tr := m.NextState(p, 0)
	if tr.StagnationCount != 3 {
		t.Fatalf("count = %d, want 3", tr.StagnationCount)
	}
	if tr.State != string(profile.StateStagnating) {
		t.Fatalf("state = %q at threshold, want stagnating", tr.State)
	}
}

func TestNextStatePositiveGainClearsCounter(t *testing.T) {
	m := NewMachine(DefaultMachineConfig())

	p := profile.Profile{UserID: "u5", XPState: profile.StateStagnating, StagnationCount: 4}
	tr := m.NextState(p, 12)
	if tr.StagnationCount != 0 {
		t.Fatalf("count = %d after gain, want 0", tr.StagnationCount)
	}
	if tr.State != string(profile.StateProgressing) {
		t.Fatalf("state = %q after gain, want progressing", tr.State)
	}
	if !tr.CounterCleared {
		t.Fatal("expected CounterCleared when recovering from stagnation")
	}

	// Clearing a sub-threshold counter is not a recovery event.
	p = profile.Profile{UserID: "u5", StagnationCount: 1}
	tr = m.NextState(p, 5)
	if tr.CounterCleared {
		t.Fatal("CounterCleared must only fire at or above the threshold")
	}
}

func TestValidateAwardSource(t *testing.T) {
	m := NewMachine(DefaultMachineConfig())
	change := ledger.Snapshot{RiskTaker: 5, Analyst: 5}

	if err := m.ValidateAward(ledger.SourceArenaSubmit, change); err != nil {
		t.Fatalf("valid award rejected: %v", err)
	}
	if err := m.ValidateAward("admin_grant", change); err == nil {
		t.Fatal("non-arena source must be rejected")
	}
	if err := m.ValidateAward("", change); err == nil {
		t.Fatal("empty source must be rejected")
	}
}

func TestValidateAwardRanges(t *testing.T) {
	m := NewMachine(DefaultMachineConfig())

	if err := m.ValidateAward(ledger.SourceArenaSubmit, ledger.Snapshot{Analyst: -1}); err == nil {
		t.Fatal("negative per-archetype change must be rejected")
	}
	if err := m.ValidateAward(ledger.SourceArenaSubmit, ledger.Snapshot{Builder: 101}); err == nil {
		t.Fatal("over-cap per-archetype change must be rejected")
	}
	if err := m.ValidateAward(ledger.SourceArenaSubmit, ledger.Snapshot{Strategist: 100}); err != nil {
		t.Fatalf("at-cap change rejected: %v", err)
	}
}

func TestLockPerUser(t *testing.T) {
	m := NewMachine(DefaultMachineConfig())

	m.Lock("a")
	done := make(chan struct{})
	go func() {
		m.Lock("b") // distinct user, must not block
		m.Unlock("b")
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("lock on a different user blocked")
	}
	m.Unlock("a")
}
