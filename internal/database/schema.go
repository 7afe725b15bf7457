package database

import (
	"context"
	"database/sql"
	"fmt"
)

// Dialect selects the DDL flavour passed to Migrate.
type Dialect int

const (
	MySQL Dialect = iota
	// SQLite is used by tests through the pure-Go glebarez driver.
	SQLite
)

// mysqlSchema holds the DDL for the account core.  Email uses a binary
// collation so uniqueness and lookups are case-sensitive.
var mysqlSchema = []string{
	`CREATE TABLE IF NOT EXISTS accounts (
		id                      BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
		email                   VARCHAR(255) CHARACTER SET utf8mb4 COLLATE utf8mb4_bin NOT NULL,
		password                VARCHAR(255) NOT NULL,
		role                    VARCHAR(16)  NOT NULL,
		status                  VARCHAR(16)  NOT NULL,
		first_name              VARCHAR(100) NOT NULL DEFAULT '',
		last_name               VARCHAR(100) NOT NULL DEFAULT '',
		phone                   VARCHAR(32)  NOT NULL DEFAULT '',
		verified                TINYINT(1)   NOT NULL DEFAULT 0,
		verification_code       VARCHAR(16)  NULL,
		verification_expires_at DATETIME     NULL,
		access_code             VARCHAR(16)  NULL,
		google_id               VARCHAR(64)  NULL,
		google_access_token     TEXT         NULL,
		google_refresh_token    TEXT         NULL,
		created_at              DATETIME     NOT NULL,
		updated_at              DATETIME     NOT NULL,
		UNIQUE KEY uq_accounts_email (email),
		UNIQUE KEY uq_accounts_google (google_id),
		KEY idx_accounts_status_role (status, role)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS notifications (
		id         BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
		account_id BIGINT UNSIGNED NULL,
		message    VARCHAR(500) NOT NULL,
		kind       VARCHAR(32)  NOT NULL,
		link       VARCHAR(255) NOT NULL DEFAULT '',
		icon       VARCHAR(32)  NOT NULL DEFAULT '',
		is_read    TINYINT(1)   NOT NULL DEFAULT 0,
		created_at DATETIME     NOT NULL,
		KEY idx_notifications_account (account_id, created_at),
		CONSTRAINT fk_notifications_account FOREIGN KEY (account_id) REFERENCES accounts (id) ON DELETE CASCADE
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
}

// sqliteSchema mirrors mysqlSchema.  SQLite compares TEXT with the BINARY
// collation by default, which keeps email matching case-sensitive.
var sqliteSchema = []string{
	`PRAGMA foreign_keys = ON`,
	`CREATE TABLE IF NOT EXISTS accounts (
		id                      INTEGER PRIMARY KEY AUTOINCREMENT,
		email                   TEXT NOT NULL UNIQUE,
		password                TEXT NOT NULL,
		role                    TEXT NOT NULL,
		status                  TEXT NOT NULL,
		first_name              TEXT NOT NULL DEFAULT '',
		last_name               TEXT NOT NULL DEFAULT '',
		phone                   TEXT NOT NULL DEFAULT '',
		verified                BOOLEAN NOT NULL DEFAULT 0,
		verification_code       TEXT NULL,
		verification_expires_at DATETIME NULL,
		access_code             TEXT NULL,
		google_id               TEXT NULL UNIQUE,
		google_access_token     TEXT NULL,
		google_refresh_token    TEXT NULL,
		created_at              DATETIME NOT NULL,
		updated_at              DATETIME NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_accounts_status_role ON accounts (status, role)`,
	`CREATE TABLE IF NOT EXISTS notifications (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		account_id INTEGER NULL REFERENCES accounts (id) ON DELETE CASCADE,
		message    TEXT NOT NULL,
		kind       TEXT NOT NULL,
		link       TEXT NOT NULL DEFAULT '',
		icon       TEXT NOT NULL DEFAULT '',
		is_read    BOOLEAN NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_notifications_account ON notifications (account_id, created_at)`,
}

// Migrate creates the tables used by the service when they do not exist.
func Migrate(ctx context.Context, db *sql.DB, d Dialect) error {
	schema := mysqlSchema
	if d == SQLite {
		schema = sqliteSchema
	}
	for i, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate step %d: %w", i+1, err)
		}
	}
	return nil
}
