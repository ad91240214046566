package profile

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/decisionarena/xp-engine/internal/ledger"
)

// #region schema
const schema = `
CREATE TABLE IF NOT EXISTS user_profiles (
	user_id              TEXT PRIMARY KEY,
	xp_risk_taker        INTEGER NOT NULL DEFAULT 0,
	xp_analyst           INTEGER NOT NULL DEFAULT 0,
	xp_builder           INTEGER NOT NULL DEFAULT 0,
	xp_strategist        INTEGER NOT NULL DEFAULT 0,
	xp_total             INTEGER NOT NULL DEFAULT 0,
	level                INTEGER NOT NULL DEFAULT 1,
	xp_state             TEXT NOT NULL DEFAULT 'progressing',
	stagnation_count     INTEGER NOT NULL DEFAULT 0,
	xp_frozen_until      TEXT,
	exploit_cooldown_until TEXT,
	exploit_history      TEXT NOT NULL DEFAULT '[]',
	version              INTEGER NOT NULL DEFAULT 1,
	updated_at           TEXT NOT NULL
);
`

// #endregion schema

// #region errors
// ErrVersionConflict means another writer updated the profile between our read
// and write. The engine's per-user lock makes this unreachable in normal
// operation; the version check is the storage-level backstop.
var ErrVersionConflict = errors.New("profile: concurrent modification detected")

// #endregion errors

// #region store
// Store persists user profiles in SQLite.
type Store struct {
	db *sql.DB
}

// NewStore creates the user_profiles table if needed and returns a store.
func NewStore(db *sql.DB) (*Store, error) {
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("profile schema: %w", err)
	}
	return &Store{db: db}, nil
}

// #endregion store

// #region ensure-get
// Ensure creates a zeroed profile for the user if none exists.
func (s *Store) Ensure(userID string) error {
	_, err := s.db.Exec(
		`INSERT OR IGNORE INTO user_profiles (user_id, updated_at) VALUES (?, ?)`,
		userID, time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("ensure profile: %w", err)
	}
	return nil
}

// Get reads a profile.
func (s *Store) Get(userID string) (Profile, error) {
	var p Profile
	var state string
	var frozen, cooldown sql.NullString
	var historyJSON, updatedStr string

	err := s.db.QueryRow(
		`SELECT user_id, xp_risk_taker, xp_analyst, xp_builder, xp_strategist, xp_total, level,
		        xp_state, stagnation_count, xp_frozen_until, exploit_cooldown_until, exploit_history, version, updated_at
		 FROM user_profiles WHERE user_id = ?`, userID,
	).Scan(&p.UserID, &p.XP.RiskTaker, &p.XP.Analyst, &p.XP.Builder, &p.XP.Strategist, &p.XP.Total,
		&p.Level, &state, &p.StagnationCount, &frozen, &cooldown, &historyJSON, &p.Version, &updatedStr)
	if err != nil {
		return Profile{}, fmt.Errorf("get profile %s: %w", userID, err)
	}

	p.XPState = XPState(state)
	if frozen.Valid {
		t, err := time.Parse(time.RFC3339Nano, frozen.String)
		if err == nil {
			p.XPFrozenUntil = &t
		}
	}
	if cooldown.Valid {
		t, err := time.Parse(time.RFC3339Nano, cooldown.String)
		if err == nil {
			p.ExploitCooldownEnd = &t
		}
	}
	if err := json.Unmarshal([]byte(historyJSON), &p.ExploitHistory); err != nil {
		return Profile{}, fmt.Errorf("unmarshal exploit history: %w", err)
	}
	p.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedStr)
	return p, nil
}

// #endregion ensure-get

// #region apply-award
// ApplyAwardTx sets the profile's XP, level, state, and stagnation counter in
// one write, guarded by the optimistic version check against expectedVersion.
func (s *Store) ApplyAwardTx(tx *sql.Tx, userID string, xp ledger.Snapshot, level int, state XPState, stagnationCount, expectedVersion int) error {
	res, err := tx.Exec(
		`UPDATE user_profiles
		 SET xp_risk_taker = ?, xp_analyst = ?, xp_builder = ?, xp_strategist = ?, xp_total = ?,
		     level = ?, xp_state = ?, stagnation_count = ?, version = version + 1, updated_at = ?
		 WHERE user_id = ? AND version = ?`,
		xp.RiskTaker, xp.Analyst, xp.Builder, xp.Strategist, xp.Total,
		level, string(state), stagnationCount, time.Now().UTC().Format(time.RFC3339Nano),
		userID, expectedVersion,
	)
	if err != nil {
		return fmt.Errorf("apply award: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrVersionConflict
	}
	return nil
}

// #endregion apply-award

// #region freeze
// SetFreezeTx freezes the profile until the given time and appends the
// incident to the exploit history.
func (s *Store) SetFreezeTx(tx *sql.Tx, userID string, until time.Time, incident Incident) error {
	p, err := s.getTx(tx, userID)
	if err != nil {
		return err
	}
	history := append(p.ExploitHistory, incident)
	historyJSON, err := json.Marshal(history)
	if err != nil {
		return fmt.Errorf("marshal exploit history: %w", err)
	}

	_, err = tx.Exec(
		`UPDATE user_profiles
		 SET xp_state = ?, xp_frozen_until = ?, exploit_cooldown_until = ?, exploit_history = ?,
		     version = version + 1, updated_at = ?
		 WHERE user_id = ?`,
		string(StateFrozen), until.UTC().Format(time.RFC3339Nano), until.UTC().Format(time.RFC3339Nano),
		string(historyJSON), time.Now().UTC().Format(time.RFC3339Nano), userID,
	)
	if err != nil {
		return fmt.Errorf("set freeze: %w", err)
	}
	return nil
}

// #endregion freeze

// #region thaw
// Thaw clears an expired freeze, returning the profile to progressing. Called
// as a side effect of reading a frozen profile whose window has passed.
func (s *Store) Thaw(userID string) error {
	_, err := s.db.Exec(
		`UPDATE user_profiles
		 SET xp_state = ?, xp_frozen_until = NULL, exploit_cooldown_until = NULL,
		     version = version + 1, updated_at = ?
		 WHERE user_id = ?`,
		string(StateProgressing), time.Now().UTC().Format(time.RFC3339Nano), userID,
	)
	if err != nil {
		return fmt.Errorf("thaw profile: %w", err)
	}
	return nil
}

// #endregion thaw

// #region tx-get
func (s *Store) getTx(tx *sql.Tx, userID string) (Profile, error) {
	var p Profile
	var historyJSON string
	err := tx.QueryRow(
		`SELECT user_id, exploit_history, version FROM user_profiles WHERE user_id = ?`, userID,
	).Scan(&p.UserID, &historyJSON, &p.Version)
	if err != nil {
		return Profile{}, fmt.Errorf("get profile in tx: %w", err)
	}
	if err := json.Unmarshal([]byte(historyJSON), &p.ExploitHistory); err != nil {
		return Profile{}, fmt.Errorf("unmarshal exploit history: %w", err)
	}
	return p, nil
}

// #endregion tx-get
