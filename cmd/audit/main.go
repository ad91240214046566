package main

import (
	"database/sql"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	_ "modernc.org/sqlite"

	"github.com/decisionarena/xp-engine/internal/ledger"
	"github.com/decisionarena/xp-engine/internal/replay"
	"github.com/decisionarena/xp-engine/internal/xp"
)

// #region main

func main() {
	dbPath := flag.String("db", "", "path to xp_engine.db (verify mode)")
	user := flag.String("user", "", "verify a single user's ledger")
	limit := flag.Int("limit", 10000, "max ledger entries to verify per user")
	fixturePath := flag.String("fixture", "", "path to fixture JSON (replay mode)")
	exportPath := flag.String("export", "", "export recent awards from --db as a fixture")
	exportLast := flag.Int("last", 20, "number of award entries to export")
	flag.Parse()

	if (*dbPath == "" && *fixturePath == "") || (*dbPath != "" && *fixturePath != "") {
		fmt.Fprintln(os.Stderr, "usage: audit --db path/to/xp_engine.db [--user id] [--limit N]")
		fmt.Fprintln(os.Stderr, "       audit --db path/to/xp_engine.db --export fixture.json [--last N]")
		fmt.Fprintln(os.Stderr, "       audit --fixture path/to/fixture.json")
		os.Exit(2)
	}

	var exitCode int
	switch {
	case *fixturePath != "":
		exitCode = runFixtureMode(*fixturePath)
	case *exportPath != "":
		exitCode = runExportMode(*dbPath, *exportPath, *exportLast)
	default:
		exitCode = runVerifyMode(*dbPath, *user, *limit)
	}
	os.Exit(exitCode)
}

// #endregion main

// #region verify-mode

func runVerifyMode(dbPath, user string, limit int) int {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open db: %v\n", err)
		return 1
	}
	defer db.Close()

	led, err := ledger.New(db)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open ledger: %v\n", err)
		return 1
	}

	users := []string{user}
	if user == "" {
		users, err = allUsers(db)
		if err != nil {
			fmt.Fprintf(os.Stderr, "list users: %v\n", err)
			return 1
		}
	}

	var total int
	for _, u := range users {
		violations, err := replay.VerifyLedger(led, u, limit)
		if err != nil {
			fmt.Fprintf(os.Stderr, "verify %s: %v\n", u, err)
			return 1
		}
		for _, v := range violations {
			fmt.Printf("VIOLATION user=%s entry=%s: %s\n", u, v.EntryID, v.Detail)
		}
		total += len(violations)
	}

	if total > 0 {
		fmt.Printf("%d violation(s) across %d user(s)\n", total, len(users))
		return 1
	}
	fmt.Printf("ok: %d user(s) verified, no violations\n", len(users))
	return 0
}

func allUsers(db *sql.DB) ([]string, error) {
	rows, err := db.Query(`SELECT DISTINCT user_id FROM xp_audit_log ORDER BY user_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []string
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// #endregion verify-mode

// #region fixture-mode

func runFixtureMode(path string) int {
	f, err := replay.LoadFixture(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}

	results, summary := replay.Replay(f.Attempts, f.Config)
	for _, r := range results {
		if r.Action == "flagged" {
			fmt.Printf("%-12s %-10s %s (%.2f)\n", r.AttemptID, r.Action, r.Reason, r.Detection.Similarity)
		} else {
			fmt.Printf("%-12s %-10s total=%d\n", r.AttemptID, r.Action, r.TotalXP)
		}
	}
	fmt.Printf("attempts=%d awarded=%d flagged=%d total_xp=%d\n",
		summary.TotalAttempts, summary.Awarded, summary.Flagged, summary.TotalXP)

	if mismatches := replay.Check(f, results); len(mismatches) > 0 {
		for _, m := range mismatches {
			fmt.Printf("MISMATCH %s\n", m)
		}
		return 1
	}
	if len(f.ExpectedResults) > 0 {
		fmt.Println("ok: all expectations matched")
	}
	return 0
}

// #endregion fixture-mode

// #region export-mode

// exportMeta is the subset of award metadata needed to reconstruct an attempt.
type exportMeta struct {
	CourageXP  int               `json:"courage_xp"`
	AccuracyXP int               `json:"accuracy_xp"`
	Difficulty int               `json:"difficulty"`
	Evaluation xp.Evaluation     `json:"evaluation"`
	Session    xp.SessionMetrics `json:"session"`
}

func runExportMode(dbPath, outPath string, last int) int {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open db: %v\n", err)
		return 1
	}
	defer db.Close()

	led, err := ledger.New(db)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open ledger: %v\n", err)
		return 1
	}
	entries, err := led.Recent(last)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load entries: %v\n", err)
		return 1
	}

	f := &replay.Fixture{
		Description: fmt.Sprintf("exported from %s", dbPath),
		Config:      replay.DefaultFixtureConfig(),
	}

	// Oldest first so the replay sees history in submission order.
	for i := len(entries) - 1; i >= 0; i-- {
		e := entries[i]
		if e.Action != ledger.ActionAward {
			continue
		}
		var meta exportMeta
		if e.Metadata != "" {
			if err := json.Unmarshal([]byte(e.Metadata), &meta); err != nil {
				fmt.Fprintf(os.Stderr, "parse metadata for %s: %v\n", e.ID, err)
				return 1
			}
		}
		f.Attempts = append(f.Attempts, replay.FixtureAttempt{
			AttemptID:  e.ID,
			UserID:     e.UserID,
			SessionID:  e.SessionID,
			ProblemID:  e.ProblemID,
			Difficulty: meta.Difficulty,
			Evaluation: meta.Evaluation,
			Session:    meta.Session,
		})
		f.ExpectedResults = append(f.ExpectedResults, replay.FixtureExpectedResult{
			AttemptID: e.ID,
			Action:    "awarded",
			TotalXP:   meta.CourageXP + meta.AccuracyXP,
		})
	}

	if err := replay.SaveFixture(outPath, f); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	fmt.Printf("exported %d attempt(s) to %s\n", len(f.Attempts), outPath)
	return 0
}

// #endregion export-mode
