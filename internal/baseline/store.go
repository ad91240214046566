package baseline

import (
	"database/sql"
	"fmt"
	"time"
)

// #region schema
const schema = `
CREATE TABLE IF NOT EXISTS difficulty_baselines (
	level          INTEGER PRIMARY KEY,
	min_quality    REAL NOT NULL,
	min_depth      REAL NOT NULL,
	min_tradeoff   REAL NOT NULL,
	time_min_secs  INTEGER NOT NULL,
	time_max_secs  INTEGER NOT NULL,
	xp_to_level    INTEGER NOT NULL,
	multiplier     REAL NOT NULL,
	version        INTEGER NOT NULL DEFAULT 1,
	created_at     TEXT NOT NULL
);
`

// #endregion schema

// #region store
// Store manages difficulty baselines in SQLite. Baselines are created lazily on
// first lookup and are read-only afterwards apart from the version counter.
type Store struct {
	db *sql.DB
}

// NewStore creates the difficulty_baselines table if needed and returns a store.
func NewStore(db *sql.DB) (*Store, error) {
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("baseline schema: %w", err)
	}
	return &Store{db: db}, nil
}

// #endregion store

// #region seed-formula
// Derive computes the reference baseline for a level from the level-indexed
// formula. Thresholds and multiplier are non-decreasing with level.
func Derive(level int) Baseline {
	return Baseline{
		Level:       level,
		MinQuality:  0.30 + 0.05*float64(level-1),
		MinDepth:    0.25 + 0.05*float64(level-1),
		MinTradeoff: 0.20 + 0.05*float64(level-1),
		TimeMinSecs: 30 + 15*(level-1),
		TimeMaxSecs: 300 + 60*(level-1),
		XPToLevel:   100 * level,
		Multiplier:  1.0 + 0.15*float64(level-1),
		Version:     1,
	}
}

// #endregion seed-formula

// #region get-or-create
// GetOrCreate returns the baseline for a level, seeding it from the formula if
// no row exists yet.
func (s *Store) GetOrCreate(level int) (Baseline, error) {
	if level < MinLevel || level > MaxLevel {
		return Baseline{}, fmt.Errorf("level %d out of range [%d, %d]", level, MinLevel, MaxLevel)
	}

	b, err := s.get(level)
	if err == nil {
		return b, nil
	}
	if err != sql.ErrNoRows {
		return Baseline{}, err
	}

	b = Derive(level)
	b.CreatedAt = time.Now().UTC()
	_, err = s.db.Exec(
		`INSERT INTO difficulty_baselines
		 (level, min_quality, min_depth, min_tradeoff, time_min_secs, time_max_secs, xp_to_level, multiplier, version, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(level) DO NOTHING`,
		b.Level, b.MinQuality, b.MinDepth, b.MinTradeoff,
		b.TimeMinSecs, b.TimeMaxSecs, b.XPToLevel, b.Multiplier, b.Version,
		b.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return Baseline{}, fmt.Errorf("seed baseline %d: %w", level, err)
	}

	// Re-read so a concurrent seeder's row wins over our in-memory copy.
	return s.get(level)
}

func (s *Store) get(level int) (Baseline, error) {
	var b Baseline
	var createdStr string
	err := s.db.QueryRow(
		`SELECT level, min_quality, min_depth, min_tradeoff, time_min_secs, time_max_secs, xp_to_level, multiplier, version, created_at
		 FROM difficulty_baselines WHERE level = ?`, level,
	).Scan(&b.Level, &b.MinQuality, &b.MinDepth, &b.MinTradeoff,
		&b.TimeMinSecs, &b.TimeMaxSecs, &b.XPToLevel, &b.Multiplier, &b.Version, &createdStr)
	if err != nil {
		return Baseline{}, err
	}
	b.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
	return b, nil
}

// #endregion get-or-create

// #region seed-all
// SeedAll creates every baseline in [MinLevel, MaxLevel] and validates the
// monotonicity invariant across the seeded set.
func (s *Store) SeedAll() error {
	var prev Baseline
	for level := MinLevel; level <= MaxLevel; level++ {
		b, err := s.GetOrCreate(level)
		if err != nil {
			return err
		}
		if level > MinLevel {
			if b.Multiplier < prev.Multiplier || b.MinQuality < prev.MinQuality || b.XPToLevel < prev.XPToLevel {
				return fmt.Errorf("baseline monotonicity violated between levels %d and %d", prev.Level, b.Level)
			}
		}
		prev = b
	}
	return nil
}

// #endregion seed-all

// #region bump-version
// BumpVersion increments the version counter for a level. Baselines are never
// deleted; a version bump is the only write after seeding.
func (s *Store) BumpVersion(level int) error {
	res, err := s.db.Exec(
		`UPDATE difficulty_baselines SET version = version + 1 WHERE level = ?`, level,
	)
	if err != nil {
		return fmt.Errorf("bump baseline %d: %w", level, err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("baseline %d not found", level)
	}
	return nil
}

// #endregion bump-version

// #region list
// List returns all seeded baselines in level order.
func (s *Store) List() ([]Baseline, error) {
	rows, err := s.db.Query(
		`SELECT level, min_quality, min_depth, min_tradeoff, time_min_secs, time_max_secs, xp_to_level, multiplier, version, created_at
		 FROM difficulty_baselines ORDER BY level`,
	)
	if err != nil {
		return nil, fmt.Errorf("list baselines: %w", err)
	}
	defer rows.Close()

	var out []Baseline
	for rows.Next() {
		var b Baseline
		var createdStr string
		if err := rows.Scan(&b.Level, &b.MinQuality, &b.MinDepth, &b.MinTradeoff,
			&b.TimeMinSecs, &b.TimeMaxSecs, &b.XPToLevel, &b.Multiplier, &b.Version, &createdStr); err != nil {
			return nil, fmt.Errorf("scan baseline: %w", err)
		}
		b.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
		out = append(out, b)
	}
	return out, rows.Err()
}

// #endregion list
