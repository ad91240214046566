package fingerprint

import "time"

// #region fingerprint
// Fingerprint is the normalized signature of one submission. Created once at
// submission time and never mutated; queried for replay and similarity checks.
type Fingerprint struct {
	ID          string
	UserID      string
	SessionID   string
	ProblemID   string
	ContentHash string
	Keywords    []string
	Archetype   string
	Difficulty  int
	XPEarned    int
	Similarity  []float64 // scores against prior fingerprints, audit trail only
	Flagged     bool
	FlagReason  string
	CreatedAt   time.Time
}

// #endregion fingerprint
