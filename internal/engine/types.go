package engine

import (
	"time"

	"github.com/decisionarena/xp-engine/internal/exploit"
	"github.com/decisionarena/xp-engine/internal/ledger"
	"github.com/decisionarena/xp-engine/internal/xp"
)

// #region outcome
// Outcome is the terminal result of one submission.
type Outcome string

const (
	OutcomeAwarded          Outcome = "awarded"
	OutcomeExploitFlagged   Outcome = "exploit_flagged"
	OutcomeCooldownActive   Outcome = "cooldown_active"
	OutcomeXPFrozen         Outcome = "xp_frozen"
	OutcomeValidationFailed Outcome = "validation_failed"
)

// #endregion outcome

// #region submission
// Submission is one completed arena attempt. Evaluation and Session come from
// external collaborators and are treated as opaque inputs: validated, never
// recomputed.
type Submission struct {
	UserID     string
	SessionID  string
	ProblemID  string
	Text       string
	Archetype  string
	Difficulty int
	DeviceHash string

	Evaluation xp.Evaluation
	Session    xp.SessionMetrics
}

// #endregion submission

// #region result
// Result reports what happened to a submission. Award and Entry are only
// populated for OutcomeAwarded; Detection only when the detector flagged.
type Result struct {
	Outcome   Outcome
	Award     xp.Award
	Entry     ledger.Entry
	Detection exploit.Detection
	ResumeAt  time.Time // when a blocked user may submit again
	Detail    string
}

// #endregion result
