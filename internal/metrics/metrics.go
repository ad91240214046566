// Package metrics exposes Prometheus counters for the XP pipeline. All
// metrics register on the default registry; serve them with promhttp where a
// binary wants an endpoint.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// #region collectors
var (
	// SubmissionsTotal counts arena submissions by terminal outcome.
	SubmissionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "arena_submissions_total",
		Help: "Total arena submissions by outcome",
	}, []string{"outcome"})

	// ExploitFlagsTotal counts exploit detections by reason.
	ExploitFlagsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "arena_exploit_flags_total",
		Help: "Total exploit detections by reason",
	}, []string{"reason"})

	// LedgerEntriesTotal counts audit ledger appends by action.
	LedgerEntriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "arena_ledger_entries_total",
		Help: "Total ledger entries by action",
	}, []string{"action"})

	// SubmissionDuration tracks end-to-end submission processing latency.
	SubmissionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "arena_submission_duration_seconds",
		Help:    "Submission processing duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
	})
)

// #endregion collectors

// #region helpers
// Outcome labels used by SubmissionsTotal.
const (
	OutcomeAwarded          = "awarded"
	OutcomeCooldownActive   = "cooldown_active"
	OutcomeXPFrozen         = "xp_frozen"
	OutcomeValidationFailed = "validation_failed"
	OutcomeExploitFlagged   = "exploit_flagged"
)

// RecordSubmission increments the outcome counter.
func RecordSubmission(outcome string) {
	SubmissionsTotal.WithLabelValues(outcome).Inc()
}

// RecordExploit increments the detection counter for reason.
func RecordExploit(reason string) {
	ExploitFlagsTotal.WithLabelValues(reason).Inc()
}

// RecordLedger increments the ledger counter for action.
func RecordLedger(action string) {
	LedgerEntriesTotal.WithLabelValues(action).Inc()
}

// #endregion helpers
