// Package store persists entries and their check results in sqlite.
package store

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/phantomlimb717/IPTV-Manager-Pro/internal/account"
)

// Store wraps the entries database. Safe for use from one goroutine at a
// time, which matches the sequential batch model.
type Store struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS entries (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL,
	category TEXT DEFAULT 'Uncategorized',
	server_base_url TEXT NOT NULL DEFAULT '',
	username TEXT NOT NULL DEFAULT '',
	password TEXT NOT NULL DEFAULT '',
	last_checked_at TEXT,
	api_status TEXT,
	api_message TEXT,
	expiry_date_ts INTEGER,
	is_trial INTEGER,
	active_connections INTEGER,
	max_connections INTEGER,
	live_streams_count INTEGER,
	movies_count INTEGER,
	series_count INTEGER,
	created_at TEXT DEFAULT CURRENT_TIMESTAMP,
	raw_user_info TEXT,
	raw_server_info TEXT,
	account_type TEXT DEFAULT 'xc',
	mac_address TEXT,
	portal_url TEXT,
	bad_count INTEGER DEFAULT 0,
	frozen_until REAL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS categories (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT UNIQUE NOT NULL
);
INSERT OR IGNORE INTO categories (name) VALUES ('Uncategorized');
`

// migrations add columns introduced after early database versions. Applied
// additively on every open; already-present columns are skipped.
var migrations = map[string]string{
	"account_type":       "ALTER TABLE entries ADD COLUMN account_type TEXT DEFAULT 'xc'",
	"mac_address":        "ALTER TABLE entries ADD COLUMN mac_address TEXT",
	"portal_url":         "ALTER TABLE entries ADD COLUMN portal_url TEXT",
	"live_streams_count": "ALTER TABLE entries ADD COLUMN live_streams_count INTEGER",
	"movies_count":       "ALTER TABLE entries ADD COLUMN movies_count INTEGER",
	"series_count":       "ALTER TABLE entries ADD COLUMN series_count INTEGER",
	"bad_count":          "ALTER TABLE entries ADD COLUMN bad_count INTEGER DEFAULT 0",
	"frozen_until":       "ALTER TABLE entries ADD COLUMN frozen_until REAL DEFAULT 0",
}

// Open opens (creating if needed) the entries database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: schema: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate() error {
	rows, err := s.db.Query(`PRAGMA table_info(entries)`)
	if err != nil {
		return fmt.Errorf("store: table_info: %w", err)
	}
	have := map[string]bool{}
	for rows.Next() {
		var cid int
		var name, ctype string
		var notnull, pk int
		var dflt sql.NullString
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dflt, &pk); err != nil {
			rows.Close()
			return err
		}
		have[name] = true
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}
	for col, stmt := range migrations {
		if have[col] {
			continue
		}
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("store: add column %s: %w", col, err)
		}
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Add inserts an account and returns its id.
func (s *Store) Add(acc account.Account) (int64, error) {
	if acc.Category == "" {
		acc.Category = "Uncategorized"
	}
	res, err := s.db.Exec(`
		INSERT INTO entries (name, category, server_base_url, username, password, account_type, mac_address, portal_url)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		acc.Name, acc.Category,
		acc.Xtream.ServerBaseURL, acc.Xtream.Username, acc.Xtream.Password,
		string(acc.Type), acc.Stalker.MACAddress, acc.Stalker.PortalURL,
	)
	if err != nil {
		return 0, fmt.Errorf("store: add: %w", err)
	}
	return res.LastInsertId()
}

const accountCols = `id, name, category, server_base_url, username, password, account_type,
	COALESCE(mac_address, ''), COALESCE(portal_url, ''), COALESCE(bad_count, 0), COALESCE(frozen_until, 0)`

func scanAccount(row interface{ Scan(...any) error }) (account.Account, error) {
	var acc account.Account
	var typ string
	var frozen float64
	err := row.Scan(&acc.ID, &acc.Name, &acc.Category,
		&acc.Xtream.ServerBaseURL, &acc.Xtream.Username, &acc.Xtream.Password,
		&typ, &acc.Stalker.MACAddress, &acc.Stalker.PortalURL,
		&acc.Backoff.BadCount, &frozen)
	if err != nil {
		return acc, err
	}
	acc.Type = account.Type(typ)
	if frozen > 0 {
		acc.Backoff.FrozenUntil = time.Unix(int64(frozen), 0)
	}
	return acc, nil
}

// List returns all accounts ordered by id.
func (s *Store) List() ([]account.Account, error) {
	rows, err := s.db.Query(`SELECT ` + accountCols + ` FROM entries ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("store: list: %w", err)
	}
	defer rows.Close()
	var out []account.Account
	for rows.Next() {
		acc, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, acc)
	}
	return out, rows.Err()
}

// Get returns one account by id.
func (s *Store) Get(id int64) (account.Account, error) {
	row := s.db.QueryRow(`SELECT `+accountCols+` FROM entries WHERE id = ?`, id)
	acc, err := scanAccount(row)
	if err == sql.ErrNoRows {
		return acc, fmt.Errorf("store: entry %d not found", id)
	}
	return acc, err
}

// Delete removes an entry.
func (s *Store) Delete(id int64) error {
	_, err := s.db.Exec(`DELETE FROM entries WHERE id = ?`, id)
	return err
}

// ApplyResult persists a CheckResult against an entry: status columns, the
// raw payloads, and the new backoff state. A Frozen result only refreshes
// status/message so the prior check's metadata survives the skip.
func (s *Store) ApplyResult(id int64, res account.CheckResult, checkedAt time.Time) error {
	if res.Status == account.StatusFrozen {
		_, err := s.db.Exec(`UPDATE entries SET api_status = ?, api_message = ? WHERE id = ?`,
			string(res.Status), res.Message, id)
		return err
	}
	var expiry any
	if !res.Expiry.IsZero() {
		expiry = res.Expiry.Unix()
	}
	var trial any
	if res.IsTrial != nil {
		if *res.IsTrial {
			trial = 1
		} else {
			trial = 0
		}
	}
	frozen := float64(0)
	if !res.NewBackoff.FrozenUntil.IsZero() {
		frozen = float64(res.NewBackoff.FrozenUntil.Unix())
	}
	_, err := s.db.Exec(`
		UPDATE entries SET
			last_checked_at = ?, api_status = ?, api_message = ?,
			expiry_date_ts = ?, is_trial = ?,
			active_connections = ?, max_connections = ?,
			live_streams_count = ?, movies_count = ?, series_count = ?,
			raw_user_info = ?, raw_server_info = ?,
			bad_count = ?, frozen_until = ?
		WHERE id = ?`,
		checkedAt.UTC().Format(time.RFC3339), string(res.Status), res.Message,
		expiry, trial,
		intPtrVal(res.ActiveConns), intPtrVal(res.MaxConns),
		intPtrVal(res.LiveCount), intPtrVal(res.VodCount), intPtrVal(res.SeriesCount),
		res.RawUserInfo, res.RawServerInfo,
		res.NewBackoff.BadCount, frozen,
		id,
	)
	if err != nil {
		return fmt.Errorf("store: apply result: %w", err)
	}
	return nil
}

func intPtrVal(p *int) any {
	if p == nil {
		return nil
	}
	return *p
}

// Categories returns the known category names.
func (s *Store) Categories() ([]string, error) {
	rows, err := s.db.Query(`SELECT name FROM categories ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		out = append(out, name)
	}
	return out, rows.Err()
}

// AddCategory inserts a category name, ignoring duplicates.
func (s *Store) AddCategory(name string) error {
	_, err := s.db.Exec(`INSERT OR IGNORE INTO categories (name) VALUES (?)`, name)
	return err
}
