package linkage

import (
	"database/sql"
	"fmt"
	"time"
)

// #region schema
const schema = `
CREATE TABLE IF NOT EXISTS device_links (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	account_id  TEXT NOT NULL,
	device_hash TEXT NOT NULL,
	created_at  TEXT NOT NULL,
	UNIQUE(account_id, device_hash)
);
CREATE INDEX IF NOT EXISTS idx_links_account ON device_links(account_id);
CREATE INDEX IF NOT EXISTS idx_links_device ON device_links(device_hash);
`

// #endregion schema

// #region store
// Store manages the account-device link graph used for cross-account exploit
// detection. Accounts sharing a device hash are considered linked.
type Store struct {
	db     *sql.DB
	config Config
}

// Config bounds the traversal so a pathological link graph cannot stall a
// submission.
type Config struct {
	MaxDepth    int // hops away from the start account
	MaxAccounts int // hard cap on resolved accounts
}

// DefaultConfig returns traversal bounds suitable for production.
func DefaultConfig() Config {
	return Config{
		MaxDepth:    3,
		MaxAccounts: 50,
	}
}

// NewStore creates the device_links table if needed and returns a store.
func NewStore(db *sql.DB, config Config) (*Store, error) {
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("linkage schema: %w", err)
	}
	return &Store{db: db, config: config}, nil
}

// #endregion store

// #region record-link
// RecordLink associates an account with a device hash. Duplicate links are ignored.
func (s *Store) RecordLink(accountID, deviceHash string) error {
	_, err := s.db.Exec(
		`INSERT OR IGNORE INTO device_links (account_id, device_hash, created_at) VALUES (?, ?, ?)`,
		accountID, deviceHash, time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("record link: %w", err)
	}
	return nil
}

// #endregion record-link

// #region resolve
// Resolve returns all accounts transitively linked to accountID through shared
// device hashes, excluding accountID itself. The traversal is an iterative
// breadth-first walk over the account/device bipartite graph with an explicit
// queue and visited set, bounded by MaxDepth hops and MaxAccounts results.
func (s *Store) Resolve(accountID string) ([]string, error) {
	type node struct {
		account string
		depth   int
	}

	visitedAccounts := map[string]bool{accountID: true}
	visitedDevices := map[string]bool{}
	queue := []node{{account: accountID, depth: 0}}
	var linked []string

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		if cur.depth >= s.config.MaxDepth {
			continue
		}

		devices, err := s.devicesFor(cur.account)
		if err != nil {
			return nil, err
		}
		for _, dev := range devices {
			if visitedDevices[dev] {
				continue
			}
			visitedDevices[dev] = true

			accounts, err := s.accountsFor(dev)
			if err != nil {
				return nil, err
			}
			for _, acc := range accounts {
				if visitedAccounts[acc] {
					continue
				}
				visitedAccounts[acc] = true
				linked = append(linked, acc)
				if len(linked) >= s.config.MaxAccounts {
					return linked, nil
				}
				queue = append(queue, node{account: acc, depth: cur.depth + 1})
			}
		}
	}

	return linked, nil
}

// #endregion resolve

// #region queries
func (s *Store) devicesFor(accountID string) ([]string, error) {
	rows, err := s.db.Query(`SELECT device_hash FROM device_links WHERE account_id = ?`, accountID)
	if err != nil {
		return nil, fmt.Errorf("devices for %s: %w", accountID, err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			return nil, fmt.Errorf("scan device: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *Store) accountsFor(deviceHash string) ([]string, error) {
	rows, err := s.db.Query(`SELECT account_id FROM device_links WHERE device_hash = ?`, deviceHash)
	if err != nil {
		return nil, fmt.Errorf("accounts for device: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var a string
		if err := rows.Scan(&a); err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// #endregion queries
