package ledger

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// #region schema
// The BEFORE UPDATE and BEFORE DELETE triggers make immutability a property of
// the storage layer: no caller, privileged or not, can alter a written entry.
const schema = `
CREATE TABLE IF NOT EXISTS xp_audit_log (
	id           TEXT PRIMARY KEY,
	user_id      TEXT NOT NULL,
	action       TEXT NOT NULL,
	xp_before    TEXT NOT NULL,
	xp_after     TEXT NOT NULL,
	xp_change    TEXT NOT NULL,
	source       TEXT NOT NULL CHECK (source = 'arena_submit'),
	session_id   TEXT,
	problem_id   TEXT,
	metadata     TEXT,
	created_at   TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_audit_user ON xp_audit_log(user_id, created_at);

CREATE TRIGGER IF NOT EXISTS xp_audit_no_update
BEFORE UPDATE ON xp_audit_log
BEGIN
	SELECT RAISE(ABORT, 'xp_audit_log is append-only');
END;

CREATE TRIGGER IF NOT EXISTS xp_audit_no_delete
BEFORE DELETE ON xp_audit_log
BEGIN
	SELECT RAISE(ABORT, 'xp_audit_log is append-only');
END;
`

// #endregion schema

// #region ledger
// Ledger is the append-only audit log of XP state transitions. Its interface
// deliberately has no update or delete method; the schema triggers back that
// up at the storage layer for anything reaching the table directly.
type Ledger struct {
	db *sql.DB
}

// New creates the xp_audit_log table and its guard triggers if needed.
func New(db *sql.DB) (*Ledger, error) {
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("ledger schema: %w", err)
	}
	return &Ledger{db: db}, nil
}

// #endregion ledger

// #region append
// Append writes one entry in its own transaction. See AppendTx.
func (l *Ledger) Append(userID string, action Action, before, after Snapshot, source, sessionID, problemID, metadata string) (Entry, error) {
	tx, err := l.db.Begin()
	if err != nil {
		return Entry{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	entry, err := l.AppendTx(tx, userID, action, before, after, source, sessionID, problemID, metadata)
	if err != nil {
		return Entry{}, err
	}
	if err := tx.Commit(); err != nil {
		return Entry{}, fmt.Errorf("commit: %w", err)
	}
	return entry, nil
}

// AppendTx writes one entry inside the caller's transaction so the profile
// mutation and the audit record commit or roll back together. The change
// fields are computed here as after minus before.
func (l *Ledger) AppendTx(tx *sql.Tx, userID string, action Action, before, after Snapshot, source, sessionID, problemID, metadata string) (Entry, error) {
	if source != SourceArenaSubmit {
		return Entry{}, ErrInvalidSource
	}
	switch action {
	case ActionAward, ActionFreeze, ActionPenalty, ActionStagnationReset:
	default:
		return Entry{}, fmt.Errorf("%w: %q", ErrInvalidAction, action)
	}

	entry := Entry{
		ID:        uuid.New().String(),
		UserID:    userID,
		Action:    action,
		XPBefore:  before,
		XPAfter:   after,
		XPChange:  after.Diff(before),
		Source:    source,
		SessionID: sessionID,
		ProblemID: problemID,
		Metadata:  metadata,
		CreatedAt: time.Now().UTC(),
	}

	beforeJSON, _ := json.Marshal(entry.XPBefore)
	afterJSON, _ := json.Marshal(entry.XPAfter)
	changeJSON, _ := json.Marshal(entry.XPChange)

	_, err := tx.Exec(
		`INSERT INTO xp_audit_log (id, user_id, action, xp_before, xp_after, xp_change, source, session_id, problem_id, metadata, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.UserID, string(entry.Action),
		string(beforeJSON), string(afterJSON), string(changeJSON),
		entry.Source, nullIfEmpty(entry.SessionID), nullIfEmpty(entry.ProblemID),
		nullIfEmpty(entry.Metadata), entry.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return Entry{}, fmt.Errorf("append audit entry: %w", err)
	}
	return entry, nil
}

// #endregion append

// #region reads
// Get retrieves a single entry by id.
func (l *Ledger) Get(id string) (Entry, error) {
	row := l.db.QueryRow(
		`SELECT id, user_id, action, xp_before, xp_after, xp_change, source, session_id, problem_id, metadata, created_at
		 FROM xp_audit_log WHERE id = ?`, id,
	)
	return scanEntry(row)
}

// RecentByUser returns a user's n most recent entries, newest first.
func (l *Ledger) RecentByUser(userID string, n int) ([]Entry, error) {
	rows, err := l.db.Query(
		`SELECT id, user_id, action, xp_before, xp_after, xp_change, source, session_id, problem_id, metadata, created_at
		 FROM xp_audit_log WHERE user_id = ? ORDER BY created_at DESC, rowid DESC LIMIT ?`,
		userID, n,
	)
	if err != nil {
		return nil, fmt.Errorf("recent entries: %w", err)
	}
	defer rows.Close()
	return scanEntries(rows)
}

// Recent returns the n most recent entries across all users, newest first.
func (l *Ledger) Recent(n int) ([]Entry, error) {
	rows, err := l.db.Query(
		`SELECT id, user_id, action, xp_before, xp_after, xp_change, source, session_id, problem_id, metadata, created_at
		 FROM xp_audit_log ORDER BY created_at DESC, rowid DESC LIMIT ?`, n,
	)
	if err != nil {
		return nil, fmt.Errorf("recent entries: %w", err)
	}
	defer rows.Close()
	return scanEntries(rows)
}

// #endregion reads

// #region scan
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanEntry(row rowScanner) (Entry, error) {
	var e Entry
	var action, beforeJSON, afterJSON, changeJSON, createdStr string
	var sessionID, problemID, metadata sql.NullString

	err := row.Scan(&e.ID, &e.UserID, &action, &beforeJSON, &afterJSON, &changeJSON,
		&e.Source, &sessionID, &problemID, &metadata, &createdStr)
	if err != nil {
		return Entry{}, fmt.Errorf("scan audit entry: %w", err)
	}

	e.Action = Action(action)
	if err := json.Unmarshal([]byte(beforeJSON), &e.XPBefore); err != nil {
		return Entry{}, fmt.Errorf("unmarshal xp_before: %w", err)
	}
	if err := json.Unmarshal([]byte(afterJSON), &e.XPAfter); err != nil {
		return Entry{}, fmt.Errorf("unmarshal xp_after: %w", err)
	}
	if err := json.Unmarshal([]byte(changeJSON), &e.XPChange); err != nil {
		return Entry{}, fmt.Errorf("unmarshal xp_change: %w", err)
	}
	if sessionID.Valid {
		e.SessionID = sessionID.String
	}
	if problemID.Valid {
		e.ProblemID = problemID.String
	}
	if metadata.Valid {
		e.Metadata = metadata.String
	}
	e.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
	return e, nil
}

func scanEntries(rows *sql.Rows) ([]Entry, error) {
	var out []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// IsImmutabilityViolation reports whether err came from the append-only guard
// triggers.
func IsImmutabilityViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "append-only")
}

func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// #endregion scan
