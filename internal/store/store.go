// Package store persists accounts and transactions in SQLite.
//
// Writes run through Write, which holds the database write lock for the
// whole unit of work (BEGIN IMMEDIATE), so concurrent commits are
// serialized and a failure rolls back every statement. Read runs a deferred
// transaction that sees one committed snapshot.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a looked-up row does not exist.
var ErrNotFound = errors.New("not found")

var schema = []string{
	`CREATE TABLE IF NOT EXISTS accounts (
		id              TEXT PRIMARY KEY,
		owner           TEXT NOT NULL,
		name            TEXT NOT NULL,
		institution     TEXT NOT NULL,
		type            TEXT NOT NULL,
		currency        TEXT NOT NULL,
		account_number  TEXT NOT NULL DEFAULT '',
		current_balance TEXT NOT NULL DEFAULT '0',
		credit_limit    TEXT NOT NULL DEFAULT '0',
		is_active       INTEGER NOT NULL DEFAULT 1,
		created_at      TEXT NOT NULL,
		updated_at      TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_accounts_owner ON accounts(owner, institution)`,
	`CREATE TABLE IF NOT EXISTS transactions (
		seq                 INTEGER PRIMARY KEY AUTOINCREMENT,
		id                  TEXT NOT NULL UNIQUE,
		account_id          TEXT NOT NULL REFERENCES accounts(id),
		date                TEXT NOT NULL,
		amount              TEXT NOT NULL,
		direction           TEXT NOT NULL CHECK (direction IN ('credit', 'debit')),
		description         TEXT NOT NULL,
		description_hash    TEXT NOT NULL,
		natural_key         TEXT NOT NULL,
		cheque_number       TEXT NOT NULL DEFAULT '',
		branch_code         TEXT NOT NULL DEFAULT '',
		post_date           TEXT,
		value_date          TEXT,
		reported_balance    TEXT,
		category            TEXT NOT NULL DEFAULT '',
		category_confidence TEXT NOT NULL DEFAULT '0',
		category_source     TEXT NOT NULL DEFAULT '',
		corrected_by_user   INTEGER NOT NULL DEFAULT 0,
		dialect             TEXT NOT NULL DEFAULT '',
		created_at          TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_transactions_dedup ON transactions(account_id, date, amount, direction)`,
	`CREATE INDEX IF NOT EXISTS idx_transactions_key ON transactions(account_id, natural_key)`,
}

// DB is an open tally database.
type DB struct {
	db   *sql.DB
	path string
}

// Open opens (or creates) the database at path and applies the schema.
func Open(ctx context.Context, path string, busyTimeout time.Duration) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating database dir: %w", err)
	}
	if busyTimeout <= 0 {
		busyTimeout = 5 * time.Second
	}

	dsn := fmt.Sprintf("%s?_pragma=busy_timeout(%d)&_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)",
		path, busyTimeout.Milliseconds())
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("create schema: %w", err)
		}
	}
	return &DB{db: db, path: path}, nil
}

// Close closes the database.
func (d *DB) Close() error {
	return d.db.Close()
}

// Path returns the database file path.
func (d *DB) Path() string {
	return d.path
}

// Queries runs statements outside any explicit transaction.
func (d *DB) Queries() *Queries {
	return &Queries{q: d.db}
}

// Write runs fn in an immediate transaction on a dedicated connection. The
// transaction commits only if fn returns nil.
func (d *DB) Write(ctx context.Context, fn func(*Queries) error) error {
	conn, err := d.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("acquiring connection: %w", err)
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, "BEGIN IMMEDIATE"); err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			// Background context: the rollback must run even after ctx is canceled.
			_, _ = conn.ExecContext(context.Background(), "ROLLBACK")
		}
	}()

	if err := fn(&Queries{q: conn}); err != nil {
		return err
	}
	if _, err := conn.ExecContext(ctx, "COMMIT"); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	committed = true
	return nil
}

// Read runs fn in a read transaction so every query sees the same snapshot.
func (d *DB) Read(ctx context.Context, fn func(*Queries) error) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin read: %w", err)
	}
	defer func() { _ = tx.Rollback() }()
	return fn(&Queries{q: tx})
}

// querier is satisfied by *sql.DB, *sql.Tx and *sql.Conn.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Queries holds the statements tally runs against the database.
type Queries struct {
	q querier
}
