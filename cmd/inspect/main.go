package main

import (
	"database/sql"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/decisionarena/xp-engine/internal/ledger"
	"github.com/decisionarena/xp-engine/internal/profile"
)

// #region main

func main() {
	dbPath := flag.String("db", "", "path to xp_engine.db")
	user := flag.String("user", "", "filter to one user")
	last := flag.Int("last", 20, "show N most recent ledger entries")
	entryID := flag.String("entry", "", "show single entry detail")
	jsonOut := flag.Bool("json", false, "output as JSON instead of table")
	flag.Parse()

	if *dbPath == "" {
		fmt.Fprintln(os.Stderr, "usage: inspect --db path/to/xp_engine.db [--user id] [--last N] [--entry id] [--json]")
		os.Exit(2)
	}

	db, err := sql.Open("sqlite", *dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open db: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	led, err := ledger.New(db)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open ledger: %v\n", err)
		os.Exit(1)
	}

	if *entryID != "" {
		err = runDetailMode(led, *entryID, *jsonOut)
	} else {
		err = runListMode(db, led, *user, *last, *jsonOut)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// #endregion main

// #region list-mode

type listRow struct {
	ID        string `json:"id"`
	UserID    string `json:"user_id"`
	Action    string `json:"action"`
	Change    int    `json:"change_total"`
	After     int    `json:"after_total"`
	ProblemID string `json:"problem_id,omitempty"`
	CreatedAt string `json:"created_at"`
}

func runListMode(db *sql.DB, led *ledger.Ledger, user string, last int, jsonOut bool) error {
	var entries []ledger.Entry
	var err error
	if user != "" {
		entries, err = led.RecentByUser(user, last)
	} else {
		entries, err = led.Recent(last)
	}
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Fprintln(os.Stderr, "no entries found")
		return nil
	}

	rows := make([]listRow, len(entries))
	for i, e := range entries {
		rows[i] = listRow{
			ID:        e.ID,
			UserID:    e.UserID,
			Action:    string(e.Action),
			Change:    e.XPChange.Total,
			After:     e.XPAfter.Total,
			ProblemID: e.ProblemID,
			CreatedAt: e.CreatedAt.Format("2006-01-02 15:04:05"),
		}
	}

	if jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(rows)
	}

	fmt.Printf("%-36s  %-12s  %-16s  %7s  %7s  %s\n", "ID", "USER", "ACTION", "CHANGE", "AFTER", "CREATED")
	fmt.Println(strings.Repeat("-", 100))
	for _, r := range rows {
		fmt.Printf("%-36s  %-12s  %-16s  %+7d  %7d  %s\n", r.ID, r.UserID, r.Action, r.Change, r.After, r.CreatedAt)
	}

	if user != "" {
		if err := printProfile(db, user, jsonOut); err != nil {
			return err
		}
	}
	return nil
}

func printProfile(db *sql.DB, user string, jsonOut bool) error {
	profiles, err := profile.NewStore(db)
	if err != nil {
		return err
	}
	p, err := profiles.Get(user)
	if err != nil {
		return err
	}
	fmt.Printf("\nprofile %s: level=%d state=%s stagnation=%d incidents=%d\n", p.UserID, p.Level, p.XPState, p.StagnationCount, len(p.ExploitHistory))
	fmt.Printf("  xp: risk_taker=%d analyst=%d builder=%d strategist=%d total=%d\n",
		p.XP.RiskTaker, p.XP.Analyst, p.XP.Builder, p.XP.Strategist, p.XP.Total)
	if p.XPFrozenUntil != nil {
		fmt.Printf("  frozen until %s\n", p.XPFrozenUntil.Format("2006-01-02 15:04:05"))
	}
	return nil
}

// #endregion list-mode

// #region detail-mode

func runDetailMode(led *ledger.Ledger, entryID string, jsonOut bool) error {
	e, err := led.Get(entryID)
	if err != nil {
		return err
	}

	if jsonOut {
		out := map[string]interface{}{
			"id":         e.ID,
			"user_id":    e.UserID,
			"action":     string(e.Action),
			"xp_before":  e.XPBefore,
			"xp_after":   e.XPAfter,
			"xp_change":  e.XPChange,
			"source":     e.Source,
			"session_id": e.SessionID,
			"problem_id": e.ProblemID,
			"created_at": e.CreatedAt,
		}
		if e.Metadata != "" {
			out["metadata"] = json.RawMessage(e.Metadata)
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	fmt.Printf("entry %s\n", e.ID)
	fmt.Printf("  user:    %s\n", e.UserID)
	fmt.Printf("  action:  %s\n", e.Action)
	fmt.Printf("  source:  %s\n", e.Source)
	fmt.Printf("  before:  %+v\n", e.XPBefore)
	fmt.Printf("  after:   %+v\n", e.XPAfter)
	fmt.Printf("  change:  %+v\n", e.XPChange)
	if e.SessionID != "" {
		fmt.Printf("  session: %s\n", e.SessionID)
	}
	if e.ProblemID != "" {
		fmt.Printf("  problem: %s\n", e.ProblemID)
	}
	if e.Metadata != "" {
		fmt.Printf("  meta:    %s\n", e.Metadata)
	}
	fmt.Printf("  created: %s\n", e.CreatedAt.Format("2006-01-02 15:04:05.000"))
	return nil
}

// #endregion detail-mode
