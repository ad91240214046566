// Package engine drives the full submission pipeline: integrity gate, exploit
// detection, XP calculation, validation, and the transactional profile+ledger
// write. Everything else in this module is a collaborator of this package.
package engine

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/decisionarena/xp-engine/internal/baseline"
	"github.com/decisionarena/xp-engine/internal/exploit"
	"github.com/decisionarena/xp-engine/internal/fingerprint"
	"github.com/decisionarena/xp-engine/internal/integrity"
	"github.com/decisionarena/xp-engine/internal/ledger"
	"github.com/decisionarena/xp-engine/internal/linkage"
	"github.com/decisionarena/xp-engine/internal/metrics"
	"github.com/decisionarena/xp-engine/internal/profile"
	"github.com/decisionarena/xp-engine/internal/xp"
)

// #region engine
// Deps bundles the engine's collaborators. All of them are required.
type Deps struct {
	DB           *sql.DB
	Baselines    *baseline.Store
	Fingerprints *fingerprint.Store
	Links        *linkage.Store
	Detector     *exploit.Detector
	Calculator   *xp.Calculator
	Ledger       *ledger.Ledger
	Profiles     *profile.Store
	Machine      *integrity.Machine
}

// Engine processes arena submissions. Safe for concurrent use; operations on
// the same user are serialized by the integrity machine's per-user lock.
type Engine struct {
	db           *sql.DB
	baselines    *baseline.Store
	fingerprints *fingerprint.Store
	links        *linkage.Store
	detector     *exploit.Detector
	calculator   *xp.Calculator
	ledger       *ledger.Ledger
	profiles     *profile.Store
	machine      *integrity.Machine

	detectorConfig exploit.DetectorConfig
}

// New wires an engine from its collaborators.
func New(d Deps, detectorConfig exploit.DetectorConfig) *Engine {
	return &Engine{
		db:             d.DB,
		baselines:      d.Baselines,
		fingerprints:   d.Fingerprints,
		links:          d.Links,
		detector:       d.Detector,
		calculator:     d.Calculator,
		ledger:         d.Ledger,
		profiles:       d.Profiles,
		machine:        d.Machine,
		detectorConfig: detectorConfig,
	}
}

// #endregion engine

// #region submit
// awardMetadata is the JSON payload stored on award ledger entries.
// The full evaluation and session inputs ride along so a recorded award can be
// re-priced offline and compared against what the ledger says.
type awardMetadata struct {
	CourageXP     int               `json:"courage_xp"`
	AccuracyXP    int               `json:"accuracy_xp"`
	Breakdown     xp.Breakdown      `json:"xp_breakdown"`
	Stagnation    bool              `json:"stagnation_detected"`
	LevelUp       bool              `json:"level_up_achieved"`
	Difficulty    int               `json:"difficulty"`
	Evaluation    xp.Evaluation     `json:"evaluation"`
	Session       xp.SessionMetrics `json:"session"`
	FingerprintID string            `json:"fingerprint_id,omitempty"`
}

// exploitMetadata is the JSON payload stored on freeze ledger entries.
type exploitMetadata struct {
	Reason     string  `json:"reason"`
	Detail     string  `json:"detail"`
	Similarity float64 `json:"similarity"`
	CooldownS  int64   `json:"cooldown_seconds"`
}

// Submit runs one submission through the full pipeline. A blocked or flagged
// submission returns a typed outcome, not an error; errors are reserved for
// storage and invariant failures.
func (e *Engine) Submit(ctx context.Context, sub Submission) (Result, error) {
	start := time.Now()
	defer func() {
		metrics.SubmissionDuration.Observe(time.Since(start).Seconds())
	}()

	if sub.UserID == "" {
		return Result{}, fmt.Errorf("submit: user id is required")
	}

	e.machine.Lock(sub.UserID)
	defer e.machine.Unlock(sub.UserID)

	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	if err := e.profiles.Ensure(sub.UserID); err != nil {
		return Result{}, fmt.Errorf("ensure profile: %w", err)
	}
	p, err := e.profiles.Get(sub.UserID)
	if err != nil {
		return Result{}, fmt.Errorf("load profile: %w", err)
	}

	now := time.Now().UTC()
	gate, err := e.machine.GateSubmission(p, now, e.profiles.Thaw)
	if err != nil {
		return Result{}, err
	}
	if !gate.Allowed {
		// Blocked submissions are not fingerprinted and leave no ledger row.
		outcome := OutcomeXPFrozen
		if gate.Reason == "cooldown_active" {
			outcome = OutcomeCooldownActive
		}
		metrics.RecordSubmission(string(outcome))
		log.Printf("[ENGINE] blocked user=%s reason=%s resume=%s", sub.UserID, gate.Reason, gate.ResumeAt.Format(time.RFC3339))
		return Result{Outcome: outcome, ResumeAt: gate.ResumeAt, Detail: gate.Reason}, nil
	}
	if p.XPFrozenUntil != nil || p.ExploitCooldownEnd != nil {
		// An expired block was cleared during the gate; reload for the bumped version.
		p, err = e.profiles.Get(sub.UserID)
		if err != nil {
			return Result{}, fmt.Errorf("reload profile: %w", err)
		}
	}

	if sub.DeviceHash != "" {
		if err := e.links.RecordLink(sub.UserID, sub.DeviceHash); err != nil {
			return Result{}, fmt.Errorf("record device link: %w", err)
		}
	}

	det, err := e.detect(sub, p)
	if err != nil {
		return Result{}, err
	}
	if det.Flagged {
		return e.applyFreeze(sub, p, det, now)
	}

	if err := sub.Evaluation.Validate(); err != nil {
		metrics.RecordSubmission(string(OutcomeValidationFailed))
		log.Printf("[ENGINE] rejected user=%s: %v", sub.UserID, err)
		return Result{Outcome: OutcomeValidationFailed, Detail: err.Error()}, nil
	}

	b, err := e.baselines.GetOrCreate(sub.Difficulty)
	if err != nil {
		return Result{}, fmt.Errorf("load baseline: %w", err)
	}

	award := e.calculator.Calculate(sub.Evaluation, b, sub.Session)

	before := p.XP
	after := ledger.Snapshot{
		RiskTaker:  before.RiskTaker + award.PerArchetype[0],
		Analyst:    before.Analyst + award.PerArchetype[1],
		Builder:    before.Builder + award.PerArchetype[2],
		Strategist: before.Strategist + award.PerArchetype[3],
	}
	after.Total = after.RiskTaker + after.Analyst + after.Builder + after.Strategist

	if err := e.machine.ValidateAward(ledger.SourceArenaSubmit, after.Diff(before)); err != nil {
		metrics.RecordSubmission(string(OutcomeValidationFailed))
		log.Printf("[ENGINE] rejected user=%s: %v", sub.UserID, err)
		return Result{Outcome: OutcomeValidationFailed, Detail: err.Error()}, nil
	}

	transition := e.machine.NextState(p, award.TotalXP)
	level := levelFor(after.Total)

	fp := fingerprint.Fingerprint{
		UserID:      sub.UserID,
		SessionID:   sub.SessionID,
		ProblemID:   sub.ProblemID,
		ContentHash: det.ContentHash,
		Keywords:    det.Keywords,
		Archetype:   sub.Archetype,
		Difficulty:  sub.Difficulty,
		XPEarned:    award.TotalXP,
		Similarity:  det.Scores,
	}

	entry, err := e.commitAward(sub, p, award, before, after, level, transition, &fp)
	if err != nil {
		return Result{}, err
	}

	metrics.RecordSubmission(string(OutcomeAwarded))
	metrics.RecordLedger(string(ledger.ActionAward))
	log.Printf("[ENGINE] awarded user=%s total=%d courage=%d accuracy=%d level=%d state=%s",
		sub.UserID, award.TotalXP, award.CourageXP, award.AccuracyXP, level, transition.State)

	return Result{Outcome: OutcomeAwarded, Award: award, Entry: entry, Detection: det}, nil
}

// #endregion submit

// #region detect
// detect resolves fingerprint histories and runs the pure detector.
func (e *Engine) detect(sub Submission, p profile.Profile) (exploit.Detection, error) {
	recent, err := e.fingerprints.RecentByUser(sub.UserID, e.detectorConfig.RecentWindow)
	if err != nil {
		return exploit.Detection{}, fmt.Errorf("load recent fingerprints: %w", err)
	}

	var linked []fingerprint.Fingerprint
	if sub.ProblemID != "" {
		accounts, err := e.links.Resolve(sub.UserID)
		if err != nil {
			return exploit.Detection{}, fmt.Errorf("resolve linked accounts: %w", err)
		}
		others := accounts[:0]
		for _, a := range accounts {
			if a != sub.UserID {
				others = append(others, a)
			}
		}
		if len(others) > 0 {
			since := time.Now().UTC().Add(-e.detectorConfig.CollusionWindow)
			linked, err = e.fingerprints.RecentByProblem(sub.ProblemID, others, since)
			if err != nil {
				return exploit.Detection{}, fmt.Errorf("load linked fingerprints: %w", err)
			}
		}
	}

	det := e.detector.Check(exploit.CheckInput{
		UserID:        sub.UserID,
		SessionID:     sub.SessionID,
		ProblemID:     sub.ProblemID,
		Text:          sub.Text,
		Recent:        recent,
		LinkedRecent:  linked,
		HistoryLength: len(p.ExploitHistory),
	})
	return det, nil
}

// #endregion detect

// #region freeze
// applyFreeze persists a detection: freeze + incident on the profile, a freeze
// ledger entry, and the flagged fingerprint, all in one transaction. The
// snapshots on the entry are identical since no XP moves.
func (e *Engine) applyFreeze(sub Submission, p profile.Profile, det exploit.Detection, now time.Time) (Result, error) {
	until := now.Add(det.Cooldown)
	incident := profile.Incident{
		Reason:     string(det.Reason),
		Detail:     det.Detail,
		Similarity: det.Similarity,
		CooldownS:  int64(det.Cooldown.Seconds()),
		ProblemID:  sub.ProblemID,
		At:         now,
	}

	meta, err := json.Marshal(exploitMetadata{
		Reason:     string(det.Reason),
		Detail:     det.Detail,
		Similarity: det.Similarity,
		CooldownS:  int64(det.Cooldown.Seconds()),
	})
	if err != nil {
		return Result{}, fmt.Errorf("marshal freeze metadata: %w", err)
	}

	tx, err := e.db.Begin()
	if err != nil {
		return Result{}, fmt.Errorf("begin freeze tx: %w", err)
	}
	defer tx.Rollback()

	if err := e.profiles.SetFreezeTx(tx, sub.UserID, until, incident); err != nil {
		return Result{}, err
	}
	entry, err := e.ledger.AppendTx(tx, sub.UserID, ledger.ActionFreeze, p.XP, p.XP,
		ledger.SourceArenaSubmit, sub.SessionID, sub.ProblemID, string(meta))
	if err != nil {
		return Result{}, err
	}

	fp := fingerprint.Fingerprint{
		UserID:      sub.UserID,
		SessionID:   sub.SessionID,
		ProblemID:   sub.ProblemID,
		ContentHash: det.ContentHash,
		Keywords:    det.Keywords,
		Archetype:   sub.Archetype,
		Difficulty:  sub.Difficulty,
		Similarity:  det.Scores,
		Flagged:     true,
		FlagReason:  string(det.Reason),
	}
	if err := e.fingerprints.Insert(tx, &fp); err != nil {
		return Result{}, err
	}

	if err := tx.Commit(); err != nil {
		return Result{}, fmt.Errorf("commit freeze tx: %w", err)
	}

	metrics.RecordSubmission(string(OutcomeExploitFlagged))
	metrics.RecordExploit(string(det.Reason))
	metrics.RecordLedger(string(ledger.ActionFreeze))
	log.Printf("[ENGINE] flagged user=%s reason=%s similarity=%.2f frozen_until=%s",
		sub.UserID, det.Reason, det.Similarity, until.Format(time.RFC3339))

	return Result{Outcome: OutcomeExploitFlagged, Detection: det, Entry: entry, ResumeAt: until, Detail: det.Detail}, nil
}

// #endregion freeze

// #region commit
// commitAward writes the profile mutation, the award ledger entry, an optional
// stagnation_reset entry, and the fingerprint in a single transaction.
func (e *Engine) commitAward(sub Submission, p profile.Profile, award xp.Award,
	before, after ledger.Snapshot, level int, transition integrity.Transition,
	fp *fingerprint.Fingerprint) (ledger.Entry, error) {

	tx, err := e.db.Begin()
	if err != nil {
		return ledger.Entry{}, fmt.Errorf("begin award tx: %w", err)
	}
	defer tx.Rollback()

	err = e.profiles.ApplyAwardTx(tx, sub.UserID, after, level,
		profile.XPState(transition.State), transition.StagnationCount, p.Version)
	if err != nil {
		return ledger.Entry{}, err
	}

	if err := e.fingerprints.Insert(tx, fp); err != nil {
		return ledger.Entry{}, err
	}

	meta, err := json.Marshal(awardMetadata{
		CourageXP:     award.CourageXP,
		AccuracyXP:    award.AccuracyXP,
		Breakdown:     award.Breakdown,
		Stagnation:    sub.Evaluation.StagnationDetected,
		LevelUp:       sub.Evaluation.LevelUpAchieved,
		Difficulty:    sub.Difficulty,
		Evaluation:    sub.Evaluation,
		Session:       sub.Session,
		FingerprintID: fp.ID,
	})
	if err != nil {
		return ledger.Entry{}, fmt.Errorf("marshal award metadata: %w", err)
	}

	entry, err := e.ledger.AppendTx(tx, sub.UserID, ledger.ActionAward, before, after,
		ledger.SourceArenaSubmit, sub.SessionID, sub.ProblemID, string(meta))
	if err != nil {
		return ledger.Entry{}, err
	}

	if transition.CounterCleared {
		_, err = e.ledger.AppendTx(tx, sub.UserID, ledger.ActionStagnationReset, after, after,
			ledger.SourceArenaSubmit, sub.SessionID, sub.ProblemID, `{"stagnation_count":0}`)
		if err != nil {
			return ledger.Entry{}, err
		}
		metrics.RecordLedger(string(ledger.ActionStagnationReset))
	}

	if err := tx.Commit(); err != nil {
		return ledger.Entry{}, fmt.Errorf("commit award tx: %w", err)
	}
	return entry, nil
}

// #endregion commit

// #region penalty
// ApplyPenalty deducts XP from a profile, clamping each track at zero, and
// records the deduction as a penalty ledger entry.
func (e *Engine) ApplyPenalty(ctx context.Context, userID string, deduction ledger.Snapshot, reason string) (ledger.Entry, error) {
	e.machine.Lock(userID)
	defer e.machine.Unlock(userID)

	if err := ctx.Err(); err != nil {
		return ledger.Entry{}, err
	}

	p, err := e.profiles.Get(userID)
	if err != nil {
		return ledger.Entry{}, fmt.Errorf("load profile: %w", err)
	}

	after := ledger.Snapshot{
		RiskTaker:  max(0, p.XP.RiskTaker-deduction.RiskTaker),
		Analyst:    max(0, p.XP.Analyst-deduction.Analyst),
		Builder:    max(0, p.XP.Builder-deduction.Builder),
		Strategist: max(0, p.XP.Strategist-deduction.Strategist),
	}
	after.Total = after.RiskTaker + after.Analyst + after.Builder + after.Strategist

	meta, err := json.Marshal(map[string]string{"reason": reason})
	if err != nil {
		return ledger.Entry{}, fmt.Errorf("marshal penalty metadata: %w", err)
	}

	tx, err := e.db.Begin()
	if err != nil {
		return ledger.Entry{}, fmt.Errorf("begin penalty tx: %w", err)
	}
	defer tx.Rollback()

	err = e.profiles.ApplyAwardTx(tx, userID, after, levelFor(after.Total),
		p.XPState, p.StagnationCount, p.Version)
	if err != nil {
		return ledger.Entry{}, err
	}
	entry, err := e.ledger.AppendTx(tx, userID, ledger.ActionPenalty, p.XP, after,
		ledger.SourceArenaSubmit, "", "", string(meta))
	if err != nil {
		return ledger.Entry{}, err
	}
	if err := tx.Commit(); err != nil {
		return ledger.Entry{}, fmt.Errorf("commit penalty tx: %w", err)
	}

	metrics.RecordLedger(string(ledger.ActionPenalty))
	log.Printf("[ENGINE] penalty user=%s total=%d->%d reason=%s", userID, p.XP.Total, after.Total, reason)
	return entry, nil
}

// #endregion penalty

// #region level
// levelFor maps cumulative total XP onto a difficulty level using the derived
// per-level requirements.
func levelFor(total int) int {
	level := baseline.MinLevel
	need := 0
	for level < baseline.MaxLevel {
		need += baseline.Derive(level).XPToLevel
		if total < need {
			break
		}
		level++
	}
	return level
}

// #endregion level
