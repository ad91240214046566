package fingerprint

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// #region schema
const schema = `
CREATE TABLE IF NOT EXISTS response_fingerprints (
	id             TEXT PRIMARY KEY,
	user_id        TEXT NOT NULL,
	session_id     TEXT NOT NULL,
	problem_id     TEXT NOT NULL,
	content_hash   TEXT NOT NULL,
	keywords_json  TEXT NOT NULL,
	archetype      TEXT NOT NULL,
	difficulty     INTEGER NOT NULL,
	xp_earned      INTEGER NOT NULL DEFAULT 0,
	similarity_json TEXT,
	flagged        INTEGER NOT NULL DEFAULT 0,
	flag_reason    TEXT,
	created_at     TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_fp_user ON response_fingerprints(user_id, created_at);
CREATE INDEX IF NOT EXISTS idx_fp_problem ON response_fingerprints(problem_id, created_at);
`

// #endregion schema

// #region store
// Store persists response fingerprints in SQLite. Rows are write-once: the API
// exposes Insert and bounded reads only.
type Store struct {
	db *sql.DB
}

// NewStore creates the response_fingerprints table if needed and returns a store.
func NewStore(db *sql.DB) (*Store, error) {
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("fingerprint schema: %w", err)
	}
	return &Store{db: db}, nil
}

// #endregion store

// #region insert
// Insert writes a fingerprint inside the given transaction. The ID and
// CreatedAt are assigned here when unset.
func (s *Store) Insert(tx *sql.Tx, fp *Fingerprint) error {
	if fp.ID == "" {
		fp.ID = uuid.New().String()
	}
	if fp.CreatedAt.IsZero() {
		fp.CreatedAt = time.Now().UTC()
	}

	kwJSON, err := json.Marshal(fp.Keywords)
	if err != nil {
		return fmt.Errorf("marshal keywords: %w", err)
	}
	simJSON, err := json.Marshal(fp.Similarity)
	if err != nil {
		return fmt.Errorf("marshal similarity: %w", err)
	}

	flagged := 0
	if fp.Flagged {
		flagged = 1
	}

	_, err = tx.Exec(
		`INSERT INTO response_fingerprints
		 (id, user_id, session_id, problem_id, content_hash, keywords_json, archetype, difficulty, xp_earned, similarity_json, flagged, flag_reason, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		fp.ID, fp.UserID, fp.SessionID, fp.ProblemID, fp.ContentHash,
		string(kwJSON), fp.Archetype, fp.Difficulty, fp.XPEarned,
		string(simJSON), flagged, nullIfEmpty(fp.FlagReason),
		fp.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert fingerprint: %w", err)
	}
	return nil
}

// #endregion insert

// #region recent-by-user
// RecentByUser returns the user's n most recent fingerprints, newest first.
// The limit keeps the similarity scan bounded as history grows.
func (s *Store) RecentByUser(userID string, n int) ([]Fingerprint, error) {
	rows, err := s.db.Query(
		`SELECT id, user_id, session_id, problem_id, content_hash, keywords_json, archetype, difficulty, xp_earned, similarity_json, flagged, flag_reason, created_at
		 FROM response_fingerprints
		 WHERE user_id = ?
		 ORDER BY created_at DESC, rowid DESC LIMIT ?`,
		userID, n,
	)
	if err != nil {
		return nil, fmt.Errorf("recent fingerprints: %w", err)
	}
	defer rows.Close()
	return scanAll(rows)
}

// #endregion recent-by-user

// #region recent-by-problem
// RecentByProblem returns fingerprints for a problem submitted by any of the
// given users since the cutoff, newest first. Used for the cross-account check.
func (s *Store) RecentByProblem(problemID string, userIDs []string, since time.Time) ([]Fingerprint, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}
	query := `SELECT id, user_id, session_id, problem_id, content_hash, keywords_json, archetype, difficulty, xp_earned, similarity_json, flagged, flag_reason, created_at
		 FROM response_fingerprints
		 WHERE problem_id = ? AND created_at >= ? AND user_id IN (?` +
		repeatPlaceholder(len(userIDs)-1) + `)
		 ORDER BY created_at DESC`

	args := make([]interface{}, 0, len(userIDs)+2)
	args = append(args, problemID, since.UTC().Format(time.RFC3339Nano))
	for _, id := range userIDs {
		args = append(args, id)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("fingerprints by problem: %w", err)
	}
	defer rows.Close()
	return scanAll(rows)
}

// #endregion recent-by-problem

// #region helpers
func scanAll(rows *sql.Rows) ([]Fingerprint, error) {
	var out []Fingerprint
	for rows.Next() {
		var fp Fingerprint
		var kwJSON string
		var simJSON sql.NullString
		var flagged int
		var reason sql.NullString
		var createdStr string

		if err := rows.Scan(&fp.ID, &fp.UserID, &fp.SessionID, &fp.ProblemID, &fp.ContentHash,
			&kwJSON, &fp.Archetype, &fp.Difficulty, &fp.XPEarned,
			&simJSON, &flagged, &reason, &createdStr); err != nil {
			return nil, fmt.Errorf("scan fingerprint: %w", err)
		}
		if err := json.Unmarshal([]byte(kwJSON), &fp.Keywords); err != nil {
			return nil, fmt.Errorf("unmarshal keywords: %w", err)
		}
		if simJSON.Valid && simJSON.String != "" {
			if err := json.Unmarshal([]byte(simJSON.String), &fp.Similarity); err != nil {
				return nil, fmt.Errorf("unmarshal similarity: %w", err)
			}
		}
		fp.Flagged = flagged != 0
		if reason.Valid {
			fp.FlagReason = reason.String
		}
		fp.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
		out = append(out, fp)
	}
	return out, rows.Err()
}

func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func repeatPlaceholder(n int) string {
	out := ""
	for i := 0; i < n; i++ {
		out += ", ?"
	}
	return out
}

// #endregion helpers
