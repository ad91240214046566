package main

import (
	"bufio"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	_ "modernc.org/sqlite"

	"github.com/decisionarena/xp-engine/internal/baseline"
	"github.com/decisionarena/xp-engine/internal/engine"
	"github.com/decisionarena/xp-engine/internal/exploit"
	"github.com/decisionarena/xp-engine/internal/fingerprint"
	"github.com/decisionarena/xp-engine/internal/integrity"
	"github.com/decisionarena/xp-engine/internal/ledger"
	"github.com/decisionarena/xp-engine/internal/linkage"
	"github.com/decisionarena/xp-engine/internal/profile"
	"github.com/decisionarena/xp-engine/internal/xp"
)

// #region main
func main() {
	dbPath := envOr("ARENA_DB", "xp_engine.db")
	metricsAddr := envOr("ARENA_METRICS_ADDR", "")

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		log.Fatalf("failed to open db: %v", err)
	}
	defer db.Close()

	eng, baselines, err := buildEngine(db)
	if err != nil {
		log.Fatalf("failed to build engine: %v", err)
	}

	if err := baselines.SeedAll(); err != nil {
		log.Fatalf("failed to seed baselines: %v", err)
	}

	if metricsAddr != "" {
		go func() {
			http.Handle("/metrics", promhttp.Handler())
			if err := http.ListenAndServe(metricsAddr, nil); err != nil {
				log.Printf("metrics server: %v", err)
			}
		}()
	}

	fmt.Println("XP Integrity Engine ready.")
	fmt.Printf("  DB: %s", dbPath)
	if metricsAddr != "" {
		fmt.Printf(" | Metrics: %s/metrics", metricsAddr)
	}
	fmt.Println()
	fmt.Println("Paste one submission as JSON per line (or 'quit' to exit):")

	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "quit" || line == "exit" {
			break
		}

		var sub submissionJSON
		if err := json.Unmarshal([]byte(line), &sub); err != nil {
			log.Printf("parse error: %v", err)
			continue
		}

		res, err := eng.Submit(context.Background(), sub.toSubmission())
		if err != nil {
			log.Printf("submit error: %v", err)
			continue
		}
		printResult(res)
	}
}

// #endregion main

// #region wiring
func buildEngine(db *sql.DB) (*engine.Engine, *baseline.Store, error) {
	baselines, err := baseline.NewStore(db)
	if err != nil {
		return nil, nil, fmt.Errorf("baseline store: %w", err)
	}
	fps, err := fingerprint.NewStore(db)
	if err != nil {
		return nil, nil, fmt.Errorf("fingerprint store: %w", err)
	}
	links, err := linkage.NewStore(db, linkage.DefaultConfig())
	if err != nil {
		return nil, nil, fmt.Errorf("linkage store: %w", err)
	}
	led, err := ledger.New(db)
	if err != nil {
		return nil, nil, fmt.Errorf("ledger: %w", err)
	}
	profiles, err := profile.NewStore(db)
	if err != nil {
		return nil, nil, fmt.Errorf("profile store: %w", err)
	}

	detCfg := exploit.DefaultDetectorConfig()
	eng := engine.New(engine.Deps{
		DB:           db,
		Baselines:    baselines,
		Fingerprints: fps,
		Links:        links,
		Detector:     exploit.NewDetector(detCfg),
		Calculator:   xp.NewCalculator(xp.DefaultCalcConfig()),
		Ledger:       led,
		Profiles:     profiles,
		Machine:      integrity.NewMachine(integrity.DefaultMachineConfig()),
	}, detCfg)
	return eng, baselines, nil
}

// #endregion wiring

// #region io
// submissionJSON is the wire form of one arena submission.
type submissionJSON struct {
	UserID     string            `json:"user_id"`
	SessionID  string            `json:"session_id"`
	ProblemID  string            `json:"problem_id"`
	Text       string            `json:"text"`
	Archetype  string            `json:"archetype"`
	Difficulty int               `json:"difficulty"`
	DeviceHash string            `json:"device_hash"`
	Evaluation xp.Evaluation     `json:"evaluation"`
	Session    xp.SessionMetrics `json:"session"`
}

func (s submissionJSON) toSubmission() engine.Submission {
	return engine.Submission{
		UserID:     s.UserID,
		SessionID:  s.SessionID,
		ProblemID:  s.ProblemID,
		Text:       s.Text,
		Archetype:  s.Archetype,
		Difficulty: s.Difficulty,
		DeviceHash: s.DeviceHash,
		Evaluation: s.Evaluation,
		Session:    s.Session,
	}
}

func printResult(res engine.Result) {
	switch res.Outcome {
	case engine.OutcomeAwarded:
		fmt.Printf("[awarded] total=%d courage=%d accuracy=%d entry=%s\n",
			res.Award.TotalXP, res.Award.CourageXP, res.Award.AccuracyXP, res.Entry.ID)
	case engine.OutcomeExploitFlagged:
		fmt.Printf("[flagged] reason=%s similarity=%.2f frozen_until=%s\n",
			res.Detection.Reason, res.Detection.Similarity, res.ResumeAt.Format("15:04:05"))
	case engine.OutcomeXPFrozen, engine.OutcomeCooldownActive:
		fmt.Printf("[blocked] %s until %s\n", res.Outcome, res.ResumeAt.Format("15:04:05"))
	case engine.OutcomeValidationFailed:
		fmt.Printf("[rejected] %s\n", res.Detail)
	}
}

// #endregion io

// #region helpers
func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// #endregion helpers
