package ledger

import (
	"errors"
	"time"
)

// #region action
// Action enumerates the XP state transitions the ledger records.
type Action string

const (
	ActionAward           Action = "award"
	ActionFreeze          Action = "freeze"
	ActionPenalty         Action = "penalty"
	ActionStagnationReset Action = "stagnation_reset"
)

// SourceArenaSubmit is the only source permitted to append entries. There is
// no administrative or manual writer.
const SourceArenaSubmit = "arena_submit"

// #endregion action

// #region errors
var (
	// ErrInvalidSource is returned when an append names any source other
	// than arena_submit.
	ErrInvalidSource = errors.New("ledger: source must be arena_submit")

	// ErrInvalidAction is returned for an unknown action tag.
	ErrInvalidAction = errors.New("ledger: unknown action")

	// ErrImmutable is returned when storage rejects a mutation of an
	// existing entry.
	ErrImmutable = errors.New("ledger: audit log entries are immutable")
)

// #endregion errors

// #region snapshot
// Snapshot captures the four archetype XP values plus total at one instant.
// All fields are required on both sides of a transition.
type Snapshot struct {
	RiskTaker  int `json:"risk_taker" validate:"gte=0"`
	Analyst    int `json:"analyst" validate:"gte=0"`
	Builder    int `json:"builder" validate:"gte=0"`
	Strategist int `json:"strategist" validate:"gte=0"`
	Total      int `json:"total" validate:"gte=0"`
}

// Diff returns the per-field difference s - prev.
func (s Snapshot) Diff(prev Snapshot) Snapshot {
	return Snapshot{
		RiskTaker:  s.RiskTaker - prev.RiskTaker,
		Analyst:    s.Analyst - prev.Analyst,
		Builder:    s.Builder - prev.Builder,
		Strategist: s.Strategist - prev.Strategist,
		Total:      s.Total - prev.Total,
	}
}

// #endregion snapshot

// #region entry
// Entry is one immutable row of the audit log. XPChange is always derived here
// from the two snapshots; a caller-supplied delta is never trusted.
type Entry struct {
	ID        string
	UserID    string
	Action    Action
	XPBefore  Snapshot
	XPAfter   Snapshot
	XPChange  Snapshot
	Source    string
	SessionID string
	ProblemID string
	Metadata  string // JSON: courage/accuracy split, stagnation and exploit flags
	CreatedAt time.Time
}

// #endregion entry
