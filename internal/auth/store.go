// Package auth runs the OAuth sign-in flows and keeps tokens in sqlite.
package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/oauth2"
	_ "modernc.org/sqlite"

	"github.com/agis/unical/internal/contract"
)

const (
	DefaultAccount = "default"
	schemaName     = "unical"
	schemaVersion  = 1
)

var ErrNoToken = errors.New("no stored token")

// Store keeps OAuth tokens per (source, account) in a local SQLite file.
type Store struct {
	db *sql.DB
}

type Record struct {
	Source    contract.Source `json:"source"`
	Account   string          `json:"account"`
	Expiry    time.Time       `json:"expiry"`
	Refresh   bool            `json:"has_refresh_token"`
	UpdatedAt time.Time       `json:"updated_at"`
}

func DefaultStorePath() (string, error) {
	if dir := os.Getenv("XDG_STATE_HOME"); dir != "" {
		return filepath.Join(dir, "unical", "tokens.db"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".local", "state", "unical", "tokens.db"), nil
}

func OpenStore(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create token store dir: %w", err)
	}
	db, err := sql.Open("sqlite", "file:"+path+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open token store: %w", err)
	}
	db.SetMaxOpenConns(1)
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) migrate() error {
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS db_version (
		name TEXT PRIMARY KEY,
		version INTEGER NOT NULL
	)`); err != nil {
		return fmt.Errorf("create db_version table: %w", err)
	}
	var version int
	err := s.db.QueryRow(`SELECT version FROM db_version WHERE name = ?`, schemaName).Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		version = 0
	} else if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}

	if version < 1 {
		if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS tokens (
			source TEXT NOT NULL,
			account TEXT NOT NULL,
			token TEXT NOT NULL,
			updated_at INTEGER NOT NULL,
			PRIMARY KEY (source, account)
		)`); err != nil {
			return fmt.Errorf("create tokens table: %w", err)
		}
		if _, err := s.db.Exec(`INSERT OR REPLACE INTO db_version (name, version) VALUES (?, ?)`, schemaName, schemaVersion); err != nil {
			return fmt.Errorf("update schema version: %w", err)
		}
	}
	return nil
}

func (s *Store) Save(ctx context.Context, source contract.Source, account string, tok *oauth2.Token) error {
	if tok == nil {
		return fmt.Errorf("nil token")
	}
	raw, err := json.Marshal(tok)
	if err != nil {
		return fmt.Errorf("encode token: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO tokens (source, account, token, updated_at) VALUES (?, ?, ?, ?)`,
		string(source), accountOrDefault(account), string(raw), time.Now().Unix())
	if err != nil {
		return fmt.Errorf("save token: %w", err)
	}
	return nil
}

func (s *Store) Load(ctx context.Context, source contract.Source, account string) (*oauth2.Token, error) {
	var raw string
	err := s.db.QueryRowContext(ctx,
		`SELECT token FROM tokens WHERE source = ? AND account = ?`,
		string(source), accountOrDefault(account)).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", source, ErrNoToken)
	}
	if err != nil {
		return nil, fmt.Errorf("load token: %w", err)
	}
	tok := &oauth2.Token{}
	if err := json.Unmarshal([]byte(raw), tok); err != nil {
		return nil, fmt.Errorf("decode token: %w", err)
	}
	return tok, nil
}

// Delete removes the token. Deleting a missing token is not an error.
func (s *Store) Delete(ctx context.Context, source contract.Source, account string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM tokens WHERE source = ? AND account = ?`,
		string(source), accountOrDefault(account))
	if err != nil {
		return fmt.Errorf("delete token: %w", err)
	}
	return nil
}

func (s *Store) List(ctx context.Context) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT source, account, token, updated_at FROM tokens ORDER BY source, account`)
	if err != nil {
		return nil, fmt.Errorf("list tokens: %w", err)
	}
	defer rows.Close()

	out := []Record{}
	for rows.Next() {
		var (
			source, account, raw string
			updated              int64
		)
		if err := rows.Scan(&source, &account, &raw, &updated); err != nil {
			return nil, err
		}
		var tok oauth2.Token
		if err := json.Unmarshal([]byte(raw), &tok); err != nil {
			return nil, fmt.Errorf("decode token for %s/%s: %w", source, account, err)
		}
		out = append(out, Record{
			Source:    contract.Source(source),
			Account:   account,
			Expiry:    tok.Expiry,
			Refresh:   tok.RefreshToken != "",
			UpdatedAt: time.Unix(updated, 0).UTC(),
		})
	}
	return out, rows.Err()
}

// SignedIn returns the sources holding a token for account.
func (s *Store) SignedIn(ctx context.Context, account string) ([]contract.Source, error) {
	recs, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	out := []contract.Source{}
	for _, r := range recs {
		if r.Account == accountOrDefault(account) && r.Source.Valid() {
			out = append(out, r.Source)
		}
	}
	return out, nil
}

func accountOrDefault(account string) string {
	if account == "" {
		return DefaultAccount
	}
	return account
}
