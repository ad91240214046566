package baseline

import "time"

// #region baseline
// Baseline holds the fixed per-difficulty-level reference thresholds used to
// price XP. Pricing is keyed by level only, never by population statistics, so
// the same submission at the same level always prices identically.
type Baseline struct {
	Level        int
	MinQuality   float64
	MinDepth     float64
	MinTradeoff  float64
	TimeMinSecs  int
	TimeMaxSecs  int
	XPToLevel    int
	Multiplier   float64
	Version      int
	CreatedAt    time.Time
}

// #endregion baseline

// #region limits
const (
	// MinLevel and MaxLevel bound the supported difficulty range.
	MinLevel = 1
	MaxLevel = 10
)

// #endregion limits
