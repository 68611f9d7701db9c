// Package db provides the panel's local SQLite database and schema. The
// database holds only panel-side state (persisted settings, the command audit
// ledger); the controller remains the source of truth for everything else.
package db

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// DB wraps the SQLite database connection
type DB struct {
	*sql.DB
}

// Open opens the database and initializes the schema
func Open(dbPath string) (*DB, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := initSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &DB{db}, nil
}

// initSchema creates all required tables
func initSchema(db *sql.DB) error {
	// Command ledger - append-only record of every command the panel sent,
	// for auditing which operator action moved which vents when
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS command_ledger (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			command TEXT NOT NULL,
			scope TEXT,
			target TEXT,
			value REAL,
			outcome TEXT NOT NULL,
			detail TEXT,
			idempotency_key TEXT,
			timestamp INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_cmd_ledger_ts ON command_ledger(timestamp);
		CREATE INDEX IF NOT EXISTS idx_cmd_ledger_cmd_ts ON command_ledger(command, timestamp);
	`)
	if err != nil {
		return fmt.Errorf("failed to create command_ledger table: %w", err)
	}

	// Unique partial index so a retried command with the same idempotency key
	// records at most one success
	_, err = db.Exec(`
		CREATE UNIQUE INDEX IF NOT EXISTS idx_cmd_ledger_idempotency
		ON command_ledger(idempotency_key)
		WHERE idempotency_key IS NOT NULL AND idempotency_key != '' AND outcome = 'sent';
	`)
	if err != nil {
		return fmt.Errorf("failed to create idx_cmd_ledger_idempotency index: %w", err)
	}

	// KV store - generic key-value storage with optional TTL; holds the admin
	// token and other persisted panel settings
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS kv_store (
			bucket TEXT NOT NULL,
			key TEXT NOT NULL,
			value TEXT NOT NULL,
			expires_at INTEGER,
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL,
			PRIMARY KEY (bucket, key)
		);
		CREATE INDEX IF NOT EXISTS idx_kv_bucket ON kv_store(bucket);
		CREATE INDEX IF NOT EXISTS idx_kv_expires ON kv_store(expires_at) WHERE expires_at IS NOT NULL;
	`)
	if err != nil {
		return fmt.Errorf("failed to create kv_store table: %w", err)
	}

	return nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.DB.Close()
}
