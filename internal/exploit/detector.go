package exploit

import (
	"fmt"
	"strings"
	"time"

	"github.com/decisionarena/xp-engine/internal/fingerprint"
)

// #region detector
// Detector decides whether a submission is a replay, near-duplicate, or
// cross-account farming attempt. It has no side effects; persisting the flag
// and cooldown is the caller's responsibility.
type Detector struct {
	config DetectorConfig
}

// NewDetector creates a detector with the given configuration.
func NewDetector(config DetectorConfig) *Detector {
	return &Detector{config: config}
}

// Check runs the detection pipeline in order: exact replay, keyword
// similarity, then the cross-account check. The first match wins.
func (d *Detector) Check(input CheckInput) Detection {
	det := Detection{
		ContentHash: fingerprint.Hash(input.Text),
		Keywords:    fingerprint.Keywords(input.Text),
	}

	// Empty or whitespace-only text carries no signal. It is never flagged
	// but still fingerprintable by the caller.
	if strings.TrimSpace(input.Text) == "" {
		return det
	}

	recent := input.Recent
	if len(recent) > d.config.RecentWindow {
		recent = recent[:d.config.RecentWindow]
	}

	// 1. Exact replay: hash match against the user's recent history.
	for _, fp := range recent {
		if fp.ContentHash == det.ContentHash {
			det.Flagged = true
			det.Reason = ReasonExactReplay
			det.Detail = "exact replay of a previous submission"
			det.Similarity = 1.0
			det.Scores = append(det.Scores, 1.0)
			det.Cooldown = d.cooldownFor(input.HistoryLength)
			return det
		}
	}

	// 2. Keyword similarity. Above FlagThreshold flags; scores from
	// RecordThreshold up to FlagThreshold are kept as a soft signal only.
	var best float64
	for _, fp := range recent {
		score := fingerprint.Jaccard(det.Keywords, fp.Keywords)
		if score >= d.config.RecordThreshold {
			det.Scores = append(det.Scores, score)
		}
		if score > best {
			best = score
		}
	}
	det.Similarity = best
	if best > d.config.FlagThreshold {
		det.Flagged = true
		det.Reason = ReasonNearDuplicate
		det.Detail = fmt.Sprintf("high keyword similarity (%.0f%%)", best*100)
		det.Cooldown = d.cooldownFor(input.HistoryLength)
		return det
	}

	// 3. Cross-account check. LinkedRecent is pre-filtered to the same
	// problem inside the collusion window; any presence is suspicious, and
	// a matching hash means the same answer moved between accounts.
	for _, fp := range input.LinkedRecent {
		if fp.ContentHash == det.ContentHash {
			det.Flagged = true
			det.Reason = ReasonRoleSwitch
			det.Detail = fmt.Sprintf("identical submission from linked account %s", fp.UserID)
			det.Similarity = 1.0
			det.Cooldown = d.cooldownFor(input.HistoryLength)
			return det
		}
	}
	if len(input.LinkedRecent) > 0 {
		det.Flagged = true
		det.Reason = ReasonCollusion
		det.Detail = fmt.Sprintf("linked account activity on the same problem within %s", d.config.CollusionWindow)
		det.Cooldown = d.cooldownFor(input.HistoryLength)
		return det
	}

	return det
}

// #endregion detector

// #region cooldown
// cooldownFor doubles the base cooldown per prior incident, capped at MaxCooldown.
func (d *Detector) cooldownFor(historyLength int) time.Duration {
	cd := d.config.BaseCooldown
	for i := 0; i < historyLength; i++ {
		cd *= 2
		if cd >= d.config.MaxCooldown {
			return d.config.MaxCooldown
		}
	}
	if cd > d.config.MaxCooldown {
		return d.config.MaxCooldown
	}
	return cd
}

// #endregion cooldown
