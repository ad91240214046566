package replay

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/decisionarena/xp-engine/internal/exploit"
	"github.com/decisionarena/xp-engine/internal/xp"
)

// #region fixture-types

// Fixture is the top-level JSON structure for an audit replay fixture: a
// sequence of recorded attempts plus the expected per-attempt outcome.
type Fixture struct {
	Description     string                  `json:"description"`
	Config          FixtureConfig           `json:"config"`
	Attempts        []FixtureAttempt        `json:"attempts"`
	ExpectedResults []FixtureExpectedResult `json:"expected_results"`
}

// FixtureAttempt mirrors one recorded submission with JSON tags. Evaluation
// and session metrics carry their own tags already.
type FixtureAttempt struct {
	AttemptID  string            `json:"attempt_id"`
	UserID     string            `json:"user_id"`
	SessionID  string            `json:"session_id"`
	ProblemID  string            `json:"problem_id"`
	Text       string            `json:"text"`
	Archetype  string            `json:"archetype"`
	Difficulty int               `json:"difficulty"`
	Evaluation xp.Evaluation     `json:"evaluation"`
	Session    xp.SessionMetrics `json:"session"`
}

// FixtureExpectedResult captures the expected action and total per attempt.
type FixtureExpectedResult struct {
	AttemptID string `json:"attempt_id"`
	Action    string `json:"action"`
	TotalXP   int    `json:"total_xp"`
}

// FixtureConfig mirrors the detector and calculator configs with JSON tags.
// Durations are in seconds so fixtures stay hand-editable.
type FixtureConfig struct {
	RecentWindow     int     `json:"recent_window"`
	FlagThreshold    float64 `json:"flag_threshold"`
	RecordThreshold  float64 `json:"record_threshold"`
	CollusionWindowS int64   `json:"collusion_window_seconds"`
	BaseCooldownS    int64   `json:"base_cooldown_seconds"`
	MaxCooldownS     int64   `json:"max_cooldown_seconds"`

	FastStartMs       int64   `json:"fast_start_ms"`
	FastStartBonus    int     `json:"fast_start_bonus"`
	ApproachBonus     int     `json:"approach_bonus"`
	ApproachCap       int     `json:"approach_cap"`
	EntryFlowBonus    int     `json:"entry_flow_bonus"`
	EngagementDivisor int     `json:"engagement_divisor"`
	EngagementCap     int     `json:"engagement_cap"`
	ScoreClamp        int     `json:"score_clamp"`
	StagnationFactor  float64 `json:"stagnation_factor"`
	LevelUpBonusRate  float64 `json:"level_up_bonus_rate"`
}

// #endregion fixture-types

// #region fixture-io

// LoadFixture reads and parses a JSON fixture file.
func LoadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture %s: %w", path, err)
	}
	var f Fixture
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse fixture %s: %w", path, err)
	}
	return &f, nil
}

// SaveFixture writes a fixture as indented JSON.
func SaveFixture(path string, f *Fixture) error {
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal fixture: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write fixture %s: %w", path, err)
	}
	return nil
}

// DefaultFixtureConfig returns the production config in fixture form.
func DefaultFixtureConfig() FixtureConfig {
	det := exploit.DefaultDetectorConfig()
	calc := xp.DefaultCalcConfig()
	return FixtureConfig{
		RecentWindow:      det.RecentWindow,
		FlagThreshold:     det.FlagThreshold,
		RecordThreshold:   det.RecordThreshold,
		CollusionWindowS:  int64(det.CollusionWindow.Seconds()),
		BaseCooldownS:     int64(det.BaseCooldown.Seconds()),
		MaxCooldownS:      int64(det.MaxCooldown.Seconds()),
		FastStartMs:       calc.FastStartMs,
		FastStartBonus:    calc.FastStartBonus,
		ApproachBonus:     calc.ApproachBonus,
		ApproachCap:       calc.ApproachCap,
		EntryFlowBonus:    calc.EntryFlowBonus,
		EngagementDivisor: calc.EngagementDivisor,
		EngagementCap:     calc.EngagementCap,
		ScoreClamp:        calc.ScoreClamp,
		StagnationFactor:  calc.StagnationFactor,
		LevelUpBonusRate:  calc.LevelUpBonusRate,
	}
}

// #endregion fixture-io
