package xp

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// #region archetypes
// Archetype names the four skill tracks. Order is fixed and used wherever
// per-archetype values are stored or split.
type Archetype string

const (
	RiskTaker  Archetype = "risk_taker"
	Analyst    Archetype = "analyst"
	Builder    Archetype = "builder"
	Strategist Archetype = "strategist"
)

// Archetypes lists the four tracks in canonical order.
var Archetypes = [4]Archetype{RiskTaker, Analyst, Builder, Strategist}

// #endregion archetypes

// #region evaluation
// Evaluation is the opaque quality judgment supplied by the evaluation
// collaborator. The engine validates ranges but never recomputes the scores.
type Evaluation struct {
	QualityScore       float64 `json:"quality_score" validate:"gte=0,lte=1"`
	XPRiskTaker        int     `json:"xp_risk_taker" validate:"gte=0,lte=20"`
	XPAnalyst          int     `json:"xp_analyst" validate:"gte=0,lte=20"`
	XPBuilder          int     `json:"xp_builder" validate:"gte=0,lte=20"`
	XPStrategist       int     `json:"xp_strategist" validate:"gte=0,lte=20"`
	LevelUpAchieved    bool    `json:"level_up_achieved"`
	StagnationDetected bool    `json:"stagnation_detected"`
}

// evalValidate is the shared validator instance for evaluation payloads.
var evalValidate = validator.New()

// Validate checks the evaluation's range constraints.
func (e *Evaluation) Validate() error {
	if err := evalValidate.Struct(e); err != nil {
		return fmt.Errorf("invalid evaluation: %w", err)
	}
	return nil
}

// Scores returns the per-archetype raw scores in canonical order.
func (e *Evaluation) Scores() [4]int {
	return [4]int{e.XPRiskTaker, e.XPAnalyst, e.XPBuilder, e.XPStrategist}
}

// #endregion evaluation

// #region session-metrics
// SessionMetrics is behavioral input from the timing/tracking collaborator.
// It feeds courage XP only; nothing here touches the accuracy component.
type SessionMetrics struct {
	FirstActionTimeMs  int64 `json:"first_action_time_ms"`
	UniqueApproaches   int   `json:"unique_approaches"`
	CompletedEntryFlow bool  `json:"completed_entry_flow"`
	ExchangeCount      int   `json:"exchange_count"`
}

// #endregion session-metrics

// #region breakdown
// CourageBreakdown itemizes the attempt-based bonuses for audit.
type CourageBreakdown struct {
	FastStart  int `json:"fast_start"`
	Approaches int `json:"approaches"`
	EntryFlow  int `json:"entry_flow"`
	Engagement int `json:"engagement"`
}

// Breakdown is the full per-award audit trail; callers always receive it,
// never just the total.
type Breakdown struct {
	RiskTaker        int              `json:"risk_taker"`
	Analyst          int              `json:"analyst"`
	Builder          int              `json:"builder"`
	Strategist       int              `json:"strategist"`
	Courage          int              `json:"courage"`
	CourageBreakdown CourageBreakdown `json:"courage_breakdown"`
}

// Award is the calculator's output.
type Award struct {
	TotalXP    int       `json:"total_xp"`
	CourageXP  int       `json:"courage_xp"`
	AccuracyXP int       `json:"accuracy_xp"`
	Breakdown  Breakdown `json:"xp_breakdown"`

	// PerArchetype is the amount actually applied to each track in canonical
	// order: accuracy share plus the floor-divided courage share. The courage
	// remainder is dropped, so the applied sum can trail TotalXP by up to 3.
	PerArchetype [4]int `json:"-"`
}

// #endregion breakdown

// #region calc-config
// CalcConfig holds the courage bonus schedule and accuracy clamps.
type CalcConfig struct {
	FastStartMs       int64 // first action faster than this earns the bonus
	FastStartBonus    int
	ApproachBonus     int // per distinct approach beyond the first
	ApproachCap       int
	EntryFlowBonus    int
	EngagementDivisor int // one engagement point per this many exchanges
	EngagementCap     int
	ScoreClamp        int     // per-archetype accuracy input ceiling
	StagnationFactor  float64 // accuracy multiplier when stagnation is detected
	LevelUpBonusRate  float64 // per-difficulty-level bonus rate on level-up
}

// DefaultCalcConfig returns the production bonus schedule.
func DefaultCalcConfig() CalcConfig {
	return CalcConfig{
		FastStartMs:       30_000,
		FastStartBonus:    5,
		ApproachBonus:     3,
		ApproachCap:       9,
		EntryFlowBonus:    5,
		EngagementDivisor: 5,
		EngagementCap:     5,
		ScoreClamp:        20,
		StagnationFactor:  0.3,
		LevelUpBonusRate:  0.1,
	}
}

// #endregion calc-config
