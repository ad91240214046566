package main

import (
	"database/sql"
	"flag"
	"fmt"
	"os"

	_ "modernc.org/sqlite"

	"github.com/decisionarena/xp-engine/internal/baseline"
)

// #region main

func main() {
	dbPath := flag.String("db", "", "path to xp_engine.db")
	list := flag.Bool("list", false, "print the stored baselines after seeding")
	bump := flag.Int("bump", 0, "bump the version of one difficulty level")
	flag.Parse()

	if *dbPath == "" {
		fmt.Fprintln(os.Stderr, "usage: seed-baselines --db path/to/xp_engine.db [--list] [--bump level]")
		os.Exit(2)
	}

	db, err := sql.Open("sqlite", *dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open db: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	store, err := baseline.NewStore(db)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open store: %v\n", err)
		os.Exit(1)
	}

	if err := store.SeedAll(); err != nil {
		fmt.Fprintf(os.Stderr, "seed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("seeded levels %d-%d\n", baseline.MinLevel, baseline.MaxLevel)

	if *bump != 0 {
		if err := store.BumpVersion(*bump); err != nil {
			fmt.Fprintf(os.Stderr, "bump: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("bumped version for level %d\n", *bump)
	}

	if *list {
		baselines, err := store.List()
		if err != nil {
			fmt.Fprintf(os.Stderr, "list: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("%5s  %10s  %11s  %9s  %8s  %7s\n", "LEVEL", "MULTIPLIER", "MIN_QUALITY", "XP_TO_LVL", "TIME_MAX", "VERSION")
		for _, b := range baselines {
			fmt.Printf("%5d  %10.2f  %11.2f  %9d  %8d  %7d\n",
				b.Level, b.Multiplier, b.MinQuality, b.XPToLevel, b.TimeMaxSecs, b.Version)
		}
	}
}

// #endregion main
