package exploit

import (
	"time"

	"github.com/decisionarena/xp-engine/internal/fingerprint"
)

// #region reasons
// Reason tags the exploit pattern a detection matched.
type Reason string

const (
	ReasonNone          Reason = ""
	ReasonExactReplay   Reason = "exact_replay"
	ReasonNearDuplicate Reason = "near_duplicate"
	ReasonRoleSwitch    Reason = "role_switch"
	ReasonCollusion     Reason = "collusion"
)

// #endregion reasons

// #region detector-config
// DetectorConfig holds detection thresholds. The cross-account policy values are
// deliberately configurable rather than fixed constants.
type DetectorConfig struct {
	RecentWindow    int           // N most recent fingerprints scanned per user
	FlagThreshold   float64       // Jaccard above this flags the submission
	RecordThreshold float64       // Jaccard above this is recorded but not flagged
	CollusionWindow time.Duration // cross-account same-problem window
	BaseCooldown    time.Duration // first incident cooldown
	MaxCooldown     time.Duration // escalation cap
}

// DefaultDetectorConfig returns production detection thresholds.
func DefaultDetectorConfig() DetectorConfig {
	return DetectorConfig{
		RecentWindow:    10,
		FlagThreshold:   0.85,
		RecordThreshold: 0.70,
		CollusionWindow: 10 * time.Minute,
		BaseCooldown:    15 * time.Minute,
		MaxCooldown:     24 * time.Hour,
	}
}

// #endregion detector-config

// #region check-input
// CheckInput carries everything the detector needs for one submission. The
// fingerprint histories are resolved by the caller so the check stays pure.
type CheckInput struct {
	UserID        string
	SessionID     string
	ProblemID     string
	Text          string
	Recent        []fingerprint.Fingerprint // user's own recent fingerprints, newest first
	LinkedRecent  []fingerprint.Fingerprint // linked accounts' same-problem fingerprints in window
	HistoryLength int                       // prior exploit incidents for cooldown escalation
}

// #endregion check-input

// #region detection
// Detection is the detector's decision for one submission. The normalized hash
// and keywords are returned so the caller can fingerprint the attempt without
// recomputing them, flagged or not.
type Detection struct {
	Flagged     bool
	Reason      Reason
	Detail      string
	Similarity  float64   // score of the strongest match
	Scores      []float64 // per-history similarity scores, audit trail
	Cooldown    time.Duration
	ContentHash string
	Keywords    []string
}

// #endregion detection
