package profile

import (
	"time"

	"github.com/decisionarena/xp-engine/internal/ledger"
)

// #region xp-state
// XPState is the user's integrity state.
type XPState string

const (
	StateProgressing XPState = "progressing"
	StateStagnating  XPState = "stagnating"
	StateFrozen      XPState = "frozen"
)

// #endregion xp-state

// #region incident
// Incident is one detected exploit, kept as an append-only history on the
// profile. The history length drives cooldown escalation.
type Incident struct {
	Reason     string    `json:"reason"`
	Detail     string    `json:"detail"`
	Similarity float64   `json:"similarity"`
	CooldownS  int64     `json:"cooldown_seconds"`
	ProblemID  string    `json:"problem_id,omitempty"`
	At         time.Time `json:"at"`
}

// #endregion incident

// #region profile
// Profile carries a user's XP totals and integrity state. All mutation goes
// through the store's Tx methods so the engine controls the transactional
// boundary; nothing here is written outside a submission.
type Profile struct {
	UserID             string
	XP                 ledger.Snapshot
	Level              int
	XPState            XPState
	StagnationCount    int
	XPFrozenUntil      *time.Time
	ExploitCooldownEnd *time.Time
	ExploitHistory     []Incident
	Version            int
	UpdatedAt          time.Time
}

// #endregion profile
