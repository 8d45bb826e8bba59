package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

var schemas = map[string][]string{
	MySQL: {
		`CREATE TABLE IF NOT EXISTS users (
			id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
			email VARCHAR(320) NOT NULL,
			password_hash VARCHAR(256) NULL,
			fname VARCHAR(60) NOT NULL,
			lname VARCHAR(60) NOT NULL,
			profile_img VARCHAR(256) NULL,
			status VARCHAR(12) NULL,
			email_confirmed TINYINT(1) NOT NULL DEFAULT 0,
			created_at DATETIME NOT NULL,
			UNIQUE KEY uq_users_email (email)
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
		`CREATE TABLE IF NOT EXISTS token_blocklist (
			id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
			jti VARCHAR(36) NOT NULL,
			token_type VARCHAR(16) NOT NULL,
			user_identity VARCHAR(320) NOT NULL,
			revoked TINYINT(1) NOT NULL DEFAULT 0,
			revoked_at DATETIME NULL,
			expires_at DATETIME NOT NULL,
			UNIQUE KEY uq_token_blocklist_jti (jti),
			KEY ix_token_blocklist_identity (user_identity),
			KEY ix_token_blocklist_expires (expires_at)
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	},
	Postgres: {
		`CREATE TABLE IF NOT EXISTS users (
			id BIGSERIAL PRIMARY KEY,
			email VARCHAR(320) NOT NULL UNIQUE,
			password_hash VARCHAR(256) NULL,
			fname VARCHAR(60) NOT NULL,
			lname VARCHAR(60) NOT NULL,
			profile_img VARCHAR(256) NULL,
			status VARCHAR(12) NULL,
			email_confirmed BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS token_blocklist (
			id BIGSERIAL PRIMARY KEY,
			jti VARCHAR(36) NOT NULL UNIQUE,
			token_type VARCHAR(16) NOT NULL,
			user_identity VARCHAR(320) NOT NULL,
			revoked BOOLEAN NOT NULL DEFAULT FALSE,
			revoked_at TIMESTAMPTZ NULL,
			expires_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS ix_token_blocklist_identity ON token_blocklist (user_identity)`,
		`CREATE INDEX IF NOT EXISTS ix_token_blocklist_expires ON token_blocklist (expires_at)`,
	},
	SQLite: {
		`CREATE TABLE IF NOT EXISTS users (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			email TEXT NOT NULL UNIQUE,
			password_hash TEXT NULL,
			fname TEXT NOT NULL,
			lname TEXT NOT NULL,
			profile_img TEXT NULL,
			status TEXT NULL,
			email_confirmed BOOLEAN NOT NULL DEFAULT 0,
			created_at DATETIME NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS token_blocklist (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			jti TEXT NOT NULL UNIQUE,
			token_type TEXT NOT NULL,
			user_identity TEXT NOT NULL,
			revoked BOOLEAN NOT NULL DEFAULT 0,
			revoked_at DATETIME NULL,
			expires_at DATETIME NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS ix_token_blocklist_identity ON token_blocklist (user_identity)`,
		`CREATE INDEX IF NOT EXISTS ix_token_blocklist_expires ON token_blocklist (expires_at)`,
	},
}

// Migrate creates the users and token_blocklist tables for the connection's
// dialect.  Statements are idempotent.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	stmts, ok := schemas[db.DriverName()]
	if !ok {
		return fmt.Errorf("no schema for driver %q", db.DriverName())
	}
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("applying schema: %w", err)
		}
	}
	return nil
}
