package xp

import (
	"math"

	"github.com/decisionarena/xp-engine/internal/baseline"
)

// #region calculator
// Calculator computes a validated XP award from the evaluation, the difficulty
// baseline, and session behavior. It is a pure function of its inputs: pricing
// depends on the baseline looked up by difficulty, never on population
// statistics, so identical submissions always price identically.
type Calculator struct {
	config CalcConfig
}

// NewCalculator creates a calculator with the given bonus schedule.
func NewCalculator(config CalcConfig) *Calculator {
	return &Calculator{config: config}
}

// Calculate produces the award for one submission. Courage rewards the attempt
// and ignores correctness; accuracy prices the evaluation's scores against the
// baseline multiplier. Stagnation reduces accuracy only.
func (c *Calculator) Calculate(eval Evaluation, b baseline.Baseline, session SessionMetrics) Award {
	courage, courageParts := c.courage(session)

	shares := c.accuracyShares(eval, b)
	accuracyPer, accuracyTotal := apportion(shares)

	award := Award{
		CourageXP:  courage,
		AccuracyXP: accuracyTotal,
		TotalXP:    courage + accuracyTotal,
		Breakdown: Breakdown{
			RiskTaker:        accuracyPer[0],
			Analyst:          accuracyPer[1],
			Builder:          accuracyPer[2],
			Strategist:       accuracyPer[3],
			Courage:          courage,
			CourageBreakdown: courageParts,
		},
	}

	// Courage splits evenly across the four tracks. Integer floor division;
	// the remainder is dropped, not redistributed.
	courageShare := courage / 4
	for i := range award.PerArchetype {
		award.PerArchetype[i] = accuracyPer[i] + courageShare
	}

	return award
}

// #endregion calculator

// #region courage
// courage sums capped attempt-based bonuses from session behavior.
func (c *Calculator) courage(session SessionMetrics) (int, CourageBreakdown) {
	var parts CourageBreakdown

	if session.FirstActionTimeMs > 0 && session.FirstActionTimeMs < c.config.FastStartMs {
		parts.FastStart = c.config.FastStartBonus
	}

	if session.UniqueApproaches > 1 {
		parts.Approaches = (session.UniqueApproaches - 1) * c.config.ApproachBonus
		if parts.Approaches > c.config.ApproachCap {
			parts.Approaches = c.config.ApproachCap
		}
	}

	if session.CompletedEntryFlow {
		parts.EntryFlow = c.config.EntryFlowBonus
	}

	if c.config.EngagementDivisor > 0 {
		parts.Engagement = session.ExchangeCount / c.config.EngagementDivisor
		if parts.Engagement > c.config.EngagementCap {
			parts.Engagement = c.config.EngagementCap
		}
	}

	return parts.FastStart + parts.Approaches + parts.EntryFlow + parts.Engagement, parts
}

// #endregion courage

// #region accuracy
// accuracyShares computes the per-archetype accuracy contribution as floats.
// Integer apportionment happens afterwards so the rounded total matches the
// rounded sum, not the sum of independently rounded tracks.
func (c *Calculator) accuracyShares(eval Evaluation, b baseline.Baseline) [4]float64 {
	var shares [4]float64
	for i, score := range eval.Scores() {
		if score < 0 {
			score = 0
		}
		if score > c.config.ScoreClamp {
			score = c.config.ScoreClamp
		}
		shares[i] = float64(score) * b.Multiplier
	}

	if eval.LevelUpAchieved {
		bonus := (1.0 + c.config.LevelUpBonusRate*float64(b.Level)) * eval.QualityScore
		for i := range shares {
			shares[i] *= bonus
		}
	}

	if eval.StagnationDetected {
		for i := range shares {
			shares[i] *= c.config.StagnationFactor
		}
	}

	return shares
}

// apportion converts float shares to integers whose sum equals the rounded
// share total, assigning leftover units by largest fractional part.
func apportion(shares [4]float64) ([4]int, int) {
	var total float64
	for _, s := range shares {
		total += s
	}
	target := int(math.Round(total))

	var ints [4]int
	var fracs [4]float64
	sum := 0
	for i, s := range shares {
		ints[i] = int(math.Floor(s))
		fracs[i] = s - math.Floor(s)
		sum += ints[i]
	}

	for sum < target {
		best := 0
		for i := 1; i < 4; i++ {
			if fracs[i] > fracs[best] {
				best = i
			}
		}
		ints[best]++
		fracs[best] = -1
		sum++
	}

	return ints, target
}

// #endregion accuracy
