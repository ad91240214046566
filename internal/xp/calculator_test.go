package xp

import (
	"testing"

	"github.com/decisionarena/xp-engine/internal/baseline"
)

func level3() baseline.Baseline {
	return baseline.Derive(3) // multiplier 1.3
}

func TestCalculateLevel3Scenario(t *testing.T) {
	c := NewCalculator(DefaultCalcConfig())
	eval := Evaluation{
		QualityScore: 1.0,
		XPRiskTaker:  10,
		XPAnalyst:    5,
		XPBuilder:    0,
		XPStrategist: 2,
	}

	award := c.Calculate(eval, level3(), SessionMetrics{})

	// (10+5+0+2) × 1.3 = 22.1 → 22
	if award.AccuracyXP != 22 {
		t.Fatalf("expected accuracy 22, got %d", award.AccuracyXP)
	}
	if award.CourageXP != 0 {
		t.Fatalf("expected courage 0, got %d", award.CourageXP)
	}
	if award.TotalXP != 22 {
		t.Fatalf("expected total 22, got %d", award.TotalXP)
	}

	sum := award.Breakdown.RiskTaker + award.Breakdown.Analyst + award.Breakdown.Builder + award.Breakdown.Strategist
	if sum != award.AccuracyXP {
		t.Fatalf("breakdown sum %d must equal accuracy total %d", sum, award.AccuracyXP)
	}
	if award.Breakdown.Builder != 0 {
		t.Fatalf("zero score must yield zero XP, got %d", award.Breakdown.Builder)
	}
}

func TestCalculateIsDeterministic(t *testing.T) {
	c := NewCalculator(DefaultCalcConfig())
	eval := Evaluation{QualityScore: 0.8, XPRiskTaker: 7, XPAnalyst: 12, XPBuilder: 3, XPStrategist: 9}
	session := SessionMetrics{FirstActionTimeMs: 12_000, UniqueApproaches: 2, ExchangeCount: 7}

	first := c.Calculate(eval, level3(), session)
	for i := 0; i < 50; i++ {
		again := c.Calculate(eval, level3(), session)
		if again != first {
			t.Fatalf("award drifted on repeat calculation: %+v vs %+v", again, first)
		}
	}
}

func TestCourageBonuses(t *testing.T) {
	c := NewCalculator(DefaultCalcConfig())
	session := SessionMetrics{
		FirstActionTimeMs:  20_000, // fast start: +5
		UniqueApproaches:   3,      // 2 extra approaches: +6
		CompletedEntryFlow: true,   // +5
		ExchangeCount:      12,     // 12/5 = 2 engagement
	}

	award := c.Calculate(Evaluation{}, level3(), session)

	if award.CourageXP != 18 {
		t.Fatalf("expected courage 18, got %d (%+v)", award.CourageXP, award.Breakdown.CourageBreakdown)
	}
	if award.AccuracyXP != 0 {
		t.Fatalf("expected accuracy 0, got %d", award.AccuracyXP)
	}

	// 18 / 4 = 4 per archetype, remainder 2 dropped.
	for i, v := range award.PerArchetype {
		if v != 4 {
			t.Fatalf("archetype %d: expected courage share 4, got %d", i, v)
		}
	}
}

func TestCourageCaps(t *testing.T) {
	c := NewCalculator(DefaultCalcConfig())
	session := SessionMetrics{
		FirstActionTimeMs:  1,
		UniqueApproaches:   50,
		CompletedEntryFlow: true,
		ExchangeCount:      1000,
	}

	award := c.Calculate(Evaluation{}, level3(), session)

	parts := award.Breakdown.CourageBreakdown
	if parts.Approaches != 9 {
		t.Fatalf("approaches must cap at 9, got %d", parts.Approaches)
	}
	if parts.Engagement != 5 {
		t.Fatalf("engagement must cap at 5, got %d", parts.Engagement)
	}
	if award.CourageXP != 5+9+5+5 {
		t.Fatalf("expected capped courage 24, got %d", award.CourageXP)
	}
}

func TestFastStartBoundary(t *testing.T) {
	c := NewCalculator(DefaultCalcConfig())

	at := c.Calculate(Evaluation{}, level3(), SessionMetrics{FirstActionTimeMs: 30_000})
	if at.CourageXP != 0 {
		t.Fatalf("30s exactly must not earn the fast start bonus, got %d", at.CourageXP)
	}
	under := c.Calculate(Evaluation{}, level3(), SessionMetrics{FirstActionTimeMs: 29_999})
	if under.CourageXP != 5 {
		t.Fatalf("under 30s must earn the fast start bonus, got %d", under.CourageXP)
	}
	unset := c.Calculate(Evaluation{}, level3(), SessionMetrics{FirstActionTimeMs: 0})
	if unset.CourageXP != 0 {
		t.Fatal("missing first-action time must not earn the bonus")
	}
}

func TestAccuracyClamp(t *testing.T) {
	c := NewCalculator(DefaultCalcConfig())
	eval := Evaluation{QualityScore: 1.0, XPRiskTaker: 500, XPAnalyst: -3, XPBuilder: 20, XPStrategist: 0}

	award := c.Calculate(eval, baseline.Derive(1), SessionMetrics{}) // multiplier 1.0

	if award.Breakdown.RiskTaker != 20 {
		t.Fatalf("score above 20 must clamp to 20, got %d", award.Breakdown.RiskTaker)
	}
	if award.Breakdown.Analyst != 0 {
		t.Fatalf("negative score must clamp to 0, got %d", award.Breakdown.Analyst)
	}
	if award.AccuracyXP != 40 {
		t.Fatalf("expected accuracy 40, got %d", award.AccuracyXP)
	}
}

func TestStagnationReducesAccuracyOnly(t *testing.T) {
	c := NewCalculator(DefaultCalcConfig())
	eval := Evaluation{
		QualityScore: 1.0,
		XPRiskTaker:  10, XPAnalyst: 10, XPBuilder: 10, XPStrategist: 10,
		StagnationDetected: true,
	}
	session := SessionMetrics{CompletedEntryFlow: true}

	award := c.Calculate(eval, baseline.Derive(1), session)

	// 40 × 1.0 × 0.3 = 12
	if award.AccuracyXP != 12 {
		t.Fatalf("expected stagnation-reduced accuracy 12, got %d", award.AccuracyXP)
	}
	if award.CourageXP != 5 {
		t.Fatalf("courage must be unaffected by stagnation, got %d", award.CourageXP)
	}
}

func TestLevelUpBonus(t *testing.T) {
	c := NewCalculator(DefaultCalcConfig())
	eval := Evaluation{
		QualityScore: 1.0,
		XPRiskTaker:  10, XPAnalyst: 10, XPBuilder: 10, XPStrategist: 10,
		LevelUpAchieved: true,
	}

	award := c.Calculate(eval, baseline.Derive(1), SessionMetrics{})

	// 40 × 1.0 × (1 + 0.1×1) × 1.0 = 44
	if award.AccuracyXP != 44 {
		t.Fatalf("expected level-up accuracy 44, got %d", award.AccuracyXP)
	}
}

func TestEvaluationValidate(t *testing.T) {
	good := Evaluation{QualityScore: 0.5, XPRiskTaker: 10, XPAnalyst: 0, XPBuilder: 20, XPStrategist: 5}
	if err := good.Validate(); err != nil {
		t.Fatalf("valid evaluation rejected: %v", err)
	}

	bad := Evaluation{QualityScore: 1.5, XPRiskTaker: 10}
	if err := bad.Validate(); err == nil {
		t.Fatal("quality above 1.0 must fail validation")
	}
	over := Evaluation{QualityScore: 0.5, XPRiskTaker: 21}
	if err := over.Validate(); err == nil {
		t.Fatal("score above 20 must fail validation")
	}
	negative := Evaluation{QualityScore: 0.5, XPAnalyst: -1}
	if err := negative.Validate(); err == nil {
		t.Fatal("negative score must fail validation")
	}
}

func TestApportionMatchesRoundedTotal(t *testing.T) {
	shares := [4]float64{13.0, 6.5, 0, 2.6} // sums to 22.1
	ints, total := apportion(shares)
	if total != 22 {
		t.Fatalf("expected total 22, got %d", total)
	}
	sum := ints[0] + ints[1] + ints[2] + ints[3]
	if sum != total {
		t.Fatalf("apportioned sum %d must equal total %d", sum, total)
	}
	if ints[3] != 3 {
		t.Fatalf("largest fraction must win the leftover unit, got %v", ints)
	}
}
