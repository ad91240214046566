package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordSubmission(t *testing.T) {
	before := testutil.ToFloat64(SubmissionsTotal.WithLabelValues(OutcomeAwarded))
	RecordSubmission(OutcomeAwarded)
	RecordSubmission(OutcomeAwarded)
	after := testutil.ToFloat64(SubmissionsTotal.WithLabelValues(OutcomeAwarded))
	if after-before != 2 {
		t.Fatalf("awarded counter moved by %v, want 2", after-before)
	}
}

func TestRecordExploit(t *testing.T) {
	before := testutil.ToFloat64(ExploitFlagsTotal.WithLabelValues("exact_replay"))
	RecordExploit("exact_replay")
	after := testutil.ToFloat64(ExploitFlagsTotal.WithLabelValues("exact_replay"))
	if after-before != 1 {
		t.Fatalf("exploit counter moved by %v, want 1", after-before)
	}
}

func TestRecordLedger(t *testing.T) {
	before := testutil.ToFloat64(LedgerEntriesTotal.WithLabelValues("award"))
	RecordLedger("award")
	after := testutil.ToFloat64(LedgerEntriesTotal.WithLabelValues("award"))
	if after-before != 1 {
		t.Fatalf("ledger counter moved by %v, want 1", after-before)
	}
}
