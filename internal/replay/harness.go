// Package replay re-runs recorded arena attempts through the pure detection
// and pricing stages, entirely in memory, and verifies persisted audit logs
// for delta consistency. The engine's outputs are deterministic given the same
// inputs, so a fixture replay that diverges points at tampering or a config
// drift, never at nondeterminism.
package replay

import (
	"fmt"
	"time"

	"github.com/decisionarena/xp-engine/internal/baseline"
	"github.com/decisionarena/xp-engine/internal/exploit"
	"github.com/decisionarena/xp-engine/internal/fingerprint"
	"github.com/decisionarena/xp-engine/internal/ledger"
	"github.com/decisionarena/xp-engine/internal/xp"
)

// #region types
// Result captures the outcome of replaying one attempt.
type Result struct {
	AttemptID string
	UserID    string
	Action    string // "awarded" | "flagged"
	Reason    string
	TotalXP   int
	Award     xp.Award
	Detection exploit.Detection
}

// Summary aggregates one replay run.
type Summary struct {
	TotalAttempts int
	Awarded       int
	Flagged       int
	TotalXP       int
	PerUser       map[string]ledger.Snapshot
}

// #endregion types

// #region configs
// Configs converts the fixture's flat config into the domain configs.
func (fc FixtureConfig) Configs() (exploit.DetectorConfig, xp.CalcConfig) {
	det := exploit.DetectorConfig{
		RecentWindow:    fc.RecentWindow,
		FlagThreshold:   fc.FlagThreshold,
		RecordThreshold: fc.RecordThreshold,
		CollusionWindow: time.Duration(fc.CollusionWindowS) * time.Second,
		BaseCooldown:    time.Duration(fc.BaseCooldownS) * time.Second,
		MaxCooldown:     time.Duration(fc.MaxCooldownS) * time.Second,
	}
	calc := xp.CalcConfig{
		FastStartMs:       fc.FastStartMs,
		FastStartBonus:    fc.FastStartBonus,
		ApproachBonus:     fc.ApproachBonus,
		ApproachCap:       fc.ApproachCap,
		EntryFlowBonus:    fc.EntryFlowBonus,
		EngagementDivisor: fc.EngagementDivisor,
		EngagementCap:     fc.EngagementCap,
		ScoreClamp:        fc.ScoreClamp,
		StagnationFactor:  fc.StagnationFactor,
		LevelUpBonusRate:  fc.LevelUpBonusRate,
	}
	return det, calc
}

// #endregion configs

// #region replay
// Replay runs attempts through detect-then-price in order, maintaining
// per-user fingerprint history in memory. Flagged attempts freeze nothing
// here; they simply earn zero and join the history as flagged.
func Replay(attempts []FixtureAttempt, config FixtureConfig) ([]Result, Summary) {
	detCfg, calcCfg := config.Configs()
	detector := exploit.NewDetector(detCfg)
	calculator := xp.NewCalculator(calcCfg)

	history := make(map[string][]fingerprint.Fingerprint)
	incidents := make(map[string]int)
	summary := Summary{PerUser: make(map[string]ledger.Snapshot)}
	results := make([]Result, 0, len(attempts))

	for _, a := range attempts {
		summary.TotalAttempts++

		// Newest first, matching the store's read order.
		recent := history[a.UserID]
		det := detector.Check(exploit.CheckInput{
			UserID:        a.UserID,
			SessionID:     a.SessionID,
			ProblemID:     a.ProblemID,
			Text:          a.Text,
			Recent:        recent,
			HistoryLength: incidents[a.UserID],
		})

		fp := fingerprint.Fingerprint{
			UserID:      a.UserID,
			SessionID:   a.SessionID,
			ProblemID:   a.ProblemID,
			ContentHash: det.ContentHash,
			Keywords:    det.Keywords,
			Archetype:   a.Archetype,
			Difficulty:  a.Difficulty,
			Flagged:     det.Flagged,
			FlagReason:  string(det.Reason),
		}
		history[a.UserID] = append([]fingerprint.Fingerprint{fp}, recent...)

		if det.Flagged {
			incidents[a.UserID]++
			summary.Flagged++
			results = append(results, Result{
				AttemptID: a.AttemptID,
				UserID:    a.UserID,
				Action:    "flagged",
				Reason:    string(det.Reason),
				Detection: det,
			})
			continue
		}

		lvl := a.Difficulty
		if lvl < baseline.MinLevel {
			lvl = baseline.MinLevel
		}
		if lvl > baseline.MaxLevel {
			lvl = baseline.MaxLevel
		}
		award := calculator.Calculate(a.Evaluation, baseline.Derive(lvl), a.Session)
		summary.Awarded++
		summary.TotalXP += award.TotalXP

		snap := summary.PerUser[a.UserID]
		snap.RiskTaker += award.PerArchetype[0]
		snap.Analyst += award.PerArchetype[1]
		snap.Builder += award.PerArchetype[2]
		snap.Strategist += award.PerArchetype[3]
		snap.Total = snap.RiskTaker + snap.Analyst + snap.Builder + snap.Strategist
		summary.PerUser[a.UserID] = snap

		results = append(results, Result{
			AttemptID: a.AttemptID,
			UserID:    a.UserID,
			Action:    "awarded",
			TotalXP:   award.TotalXP,
			Award:     award,
			Detection: det,
		})
	}

	return results, summary
}

// Check compares a replay run against the fixture's expected results.
func Check(f *Fixture, results []Result) []string {
	var mismatches []string
	byID := make(map[string]Result, len(results))
	for _, r := range results {
		byID[r.AttemptID] = r
	}
	for _, exp := range f.ExpectedResults {
		r, ok := byID[exp.AttemptID]
		if !ok {
			mismatches = append(mismatches, fmt.Sprintf("attempt %s: no result", exp.AttemptID))
			continue
		}
		if r.Action != exp.Action {
			mismatches = append(mismatches, fmt.Sprintf("attempt %s: action %s, expected %s", exp.AttemptID, r.Action, exp.Action))
		}
		if r.Action == "awarded" && r.TotalXP != exp.TotalXP {
			mismatches = append(mismatches, fmt.Sprintf("attempt %s: total %d, expected %d", exp.AttemptID, r.TotalXP, exp.TotalXP))
		}
	}
	return mismatches
}

// #endregion replay

// #region verify
// Violation is one audit-log consistency failure.
type Violation struct {
	EntryID string
	Detail  string
}

// VerifyEntries checks a user's ledger entries for internal and chain
// consistency: each entry's delta must equal after minus before, totals must
// equal the sum of the four tracks, and consecutive entries must chain, each
// before snapshot matching the previous after. Entries must be oldest first.
func VerifyEntries(entries []ledger.Entry) []Violation {
	var violations []Violation
	for i, e := range entries {
		if got := e.XPAfter.Diff(e.XPBefore); got != e.XPChange {
			violations = append(violations, Violation{
				EntryID: e.ID,
				Detail:  fmt.Sprintf("recorded change %+v, derived %+v", e.XPChange, got),
			})
		}
		for _, s := range []ledger.Snapshot{e.XPBefore, e.XPAfter} {
			if s.RiskTaker+s.Analyst+s.Builder+s.Strategist != s.Total {
				violations = append(violations, Violation{
					EntryID: e.ID,
					Detail:  fmt.Sprintf("snapshot total %d does not equal track sum", s.Total),
				})
				break
			}
		}
		if i > 0 {
			prev := entries[i-1]
			if e.XPBefore != prev.XPAfter {
				violations = append(violations, Violation{
					EntryID: e.ID,
					Detail:  fmt.Sprintf("before snapshot %+v does not chain from previous after %+v", e.XPBefore, prev.XPAfter),
				})
			}
		}
	}
	return violations
}

// VerifyLedger loads a user's full history and verifies it.
func VerifyLedger(led *ledger.Ledger, userID string, limit int) ([]Violation, error) {
	entries, err := led.RecentByUser(userID, limit)
	if err != nil {
		return nil, fmt.Errorf("load ledger for %s: %w", userID, err)
	}
	// RecentByUser returns newest first; the chain check wants oldest first.
	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
	return VerifyEntries(entries), nil
}

// #endregion verify
