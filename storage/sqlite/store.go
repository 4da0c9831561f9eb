// Package sqlite is the persistent implementation of the provider, user,
// and grant repositories, backed by a single SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Store wraps the database handle. One Store serves all repositories.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path and applies the
// schema. Use ":memory:" for tests.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("[sqlite.Open] %w", err)
	}
	// SQLite handles one writer at a time; a single connection avoids
	// SQLITE_BUSY under concurrent handlers.
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.migrate(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate(ctx context.Context) error {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS oidc_settings (
			id TEXT PRIMARY KEY,
			issuer_url TEXT NOT NULL,
			client_id TEXT NOT NULL,
			encrypted_client_secret TEXT NOT NULL DEFAULT '',
			client_secret_nonce TEXT NOT NULL DEFAULT '',
			client_secret_tag TEXT NOT NULL DEFAULT '',
			redirect_uris TEXT NOT NULL DEFAULT '[]',
			scope TEXT NOT NULL DEFAULT '',
			token_endpoint_auth_method TEXT NOT NULL DEFAULT '',
			response_types TEXT NOT NULL DEFAULT '[]',
			id_token_signing_alg TEXT NOT NULL DEFAULT '',
			userinfo_signing_alg TEXT NOT NULL DEFAULT '',
			request_timeout_ms INTEGER NOT NULL DEFAULT 0,
			auto_register INTEGER NOT NULL DEFAULT 0,
			enable_password_login INTEGER NOT NULL DEFAULT 1,
			is_active INTEGER NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			email TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL DEFAULT '',
			federated_subject TEXT NOT NULL DEFAULT '',
			role TEXT NOT NULL DEFAULT 'user',
			display_name TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS nutrient_preferences (
			user_id TEXT NOT NULL,
			view_group TEXT NOT NULL,
			platform TEXT NOT NULL,
			visible_nutrients TEXT NOT NULL DEFAULT '[]',
			PRIMARY KEY (user_id, view_group, platform)
		)`,
		`CREATE TABLE IF NOT EXISTS access_grants (
			id TEXT PRIMARY KEY,
			owner_user_id TEXT NOT NULL,
			grantee_user_id TEXT NOT NULL DEFAULT '',
			grantee_email TEXT NOT NULL,
			permissions TEXT NOT NULL DEFAULT '{}',
			valid_until TEXT,
			is_active INTEGER NOT NULL DEFAULT 1,
			status TEXT NOT NULL DEFAULT 'pending',
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_access_grants_owner ON access_grants(owner_user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_access_grants_grantee ON access_grants(grantee_user_id)`,
	}
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("[sqlite.migrate] %w", err)
		}
	}
	return nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
