// Package sqlite implements the repository interfaces using SQLite as the storage backend.
//
// WHY modernc.org/sqlite INSTEAD OF github.com/mattn/go-sqlite3?
// mattn/go-sqlite3 uses CGo, which means you need a C compiler installed and
// cross-compilation becomes painful. modernc.org/sqlite is a pure Go
// translation of the SQLite C code, so no C compiler is needed.
//
// LAYOUT:
//   - DB          owns the *sql.DB pool, runs migrations, implements repository.Store
//   - SnippetDB   snippets table      (repository.SnippetRepository)
//   - UserDB      users table         (repository.UserRepository)
//   - ActionDB    api_actions table   (repository.ActionRepository)
//
// Every table store talks to a querier, which is either the pool itself or an
// open *sql.Tx. That is how WithinTx hands out transaction-scoped stores
// without duplicating any SQL.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sqlitedriver "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/sakif/snippets/internal/repository"
)

// querier is the subset of *sql.DB and *sql.Tx the table stores use.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// DB wraps a sql.DB connection pool and hands out the table stores.
type DB struct {
	conn *sql.DB
	q    querier
	tx   *sql.Tx // non-nil for a transaction-scoped DB
}

var _ repository.Store = (*DB)(nil)

// New opens the database at dbPath and runs migrations.
//
// dbPath examples:
//   - "data/snippets.db" → file-based database (persistent)
//   - ":memory:"         → in-memory database (tests)
//
// PRAGMAs in the DSN are applied by the driver to every pooled connection,
// so foreign keys are enforced no matter which connection serves a query.
func New(dbPath string) (*DB, error) {
	dsn := dbPath + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_time_format=sqlite"

	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}

	// Each connection to ":memory:" is its own empty database, so the pool
	// must hold exactly one connection for the lifetime of the DB.
	if dbPath == ":memory:" {
		conn.SetMaxOpenConns(1)
		conn.SetMaxIdleConns(1)
		conn.SetConnMaxLifetime(0)
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	// WAL lets readers proceed while a write is in flight. It is a property
	// of the database file, so one Exec is enough.
	if dbPath != ":memory:" {
		if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
			conn.Close()
			return nil, fmt.Errorf("sqlite: setting WAL mode: %w", err)
		}
	}

	db := &DB{conn: conn, q: conn}

	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return db, nil
}

// Close closes the database connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Ping checks that the database is reachable. Used by the health endpoint.
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

func (db *DB) Snippets() repository.SnippetRepository { return &SnippetDB{q: db.q} }
func (db *DB) Users() repository.UserRepository       { return &UserDB{q: db.q} }
func (db *DB) Actions() repository.ActionRepository   { return &ActionDB{q: db.q} }

// WithinTx runs fn inside a single SQL transaction. Nested calls reuse the
// outer transaction.
func (db *DB) WithinTx(ctx context.Context, fn func(tx repository.Store) error) error {
	if db.tx != nil {
		return fn(db)
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: beginning transaction: %w", err)
	}

	scoped := &DB{conn: db.conn, q: tx, tx: tx}
	if err := fn(scoped); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("%w (rollback failed: %v)", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: committing transaction: %w", err)
	}
	return nil
}

// migrate creates the schema. CREATE ... IF NOT EXISTS makes it safe to run
// on every start.
func (db *DB) migrate() error {
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			id            TEXT PRIMARY KEY,
			username      TEXT NOT NULL UNIQUE,
			email         TEXT NOT NULL DEFAULT '',
			is_staff      INTEGER NOT NULL DEFAULT 0,
			is_superuser  INTEGER NOT NULL DEFAULT 0,
			password_hash TEXT NOT NULL DEFAULT '',
			github_id     INTEGER UNIQUE,
			avatar_url    TEXT NOT NULL DEFAULT '',
			created_at    DATETIME NOT NULL,
			updated_at    DATETIME NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_users_created_at ON users(created_at);
	`)
	if err != nil {
		return fmt.Errorf("creating users table: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS snippets (
			id          TEXT PRIMARY KEY,
			created_at  DATETIME NOT NULL,
			title       TEXT NOT NULL DEFAULT '',
			code        TEXT NOT NULL,
			linenos     INTEGER NOT NULL DEFAULT 0,
			language    TEXT NOT NULL DEFAULT 'python',
			style       TEXT NOT NULL DEFAULT 'friendly',
			owner_id    TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			highlighted TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_snippets_created_at ON snippets(created_at);
		CREATE INDEX IF NOT EXISTS idx_snippets_owner_id ON snippets(owner_id);
	`)
	if err != nil {
		return fmt.Errorf("creating snippets table: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS api_actions (
			id         TEXT PRIMARY KEY,
			user_id    TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			model_name TEXT NOT NULL,
			model_id   TEXT NOT NULL,
			action     TEXT NOT NULL CHECK (action IN ('create', 'update', 'destroy')),
			timestamp  DATETIME NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_api_actions_timestamp ON api_actions(timestamp);
	`)
	if err != nil {
		return fmt.Errorf("creating api_actions table: %w", err)
	}

	return nil
}

// clampList applies the default and maximum page size.
func clampList(opts repository.ListOptions) (limit, offset int) {
	limit = opts.Limit
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	offset = opts.Offset
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// isUniqueViolation reports whether err is a UNIQUE or PRIMARY KEY
// constraint failure.
func isUniqueViolation(err error) bool {
	var se *sqlitedriver.Error
	if !errors.As(err, &se) {
		return false
	}
	switch se.Code() {
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
		return true
	}
	return false
}
