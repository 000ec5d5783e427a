// Package sqlite implements the repository interfaces using SQLite as the
// storage backend.
//
// SQLite is embedded — the identity store lives inside the binary as a single
// file, with ":memory:" available for tests. We use modernc.org/sqlite, a
// pure-Go translation of the SQLite sources, so no CGo toolchain is needed
// and cross-compilation stays trivial.
//
// The full-text search over user names and emails is an FTS5 index
// (users_fts) kept in sync with the users table by triggers. FTS5 gives us an
// explicit tokenization policy (unicode61, case-folded) instead of inheriting
// undefined behavior from an external search service.
package sqlite

import (
	"database/sql"
	"fmt"

	// Side-effect import: the package's init() registers itself with
	// database/sql as the driver named "sqlite".
	_ "modernc.org/sqlite"
)

// DB wraps a sql.DB connection pool and provides the repository methods.
// The lifecycle is owned by whoever calls New — the server opens it at
// startup and closes it during graceful shutdown.
type DB struct {
	conn *sql.DB
}

// New creates a new SQLite database connection and runs migrations.
//
// dbPath examples:
//   - "data/splitr.db" → file-based database (persistent)
//   - ":memory:"       → in-memory database (tests, lost on close)
func New(dbPath string) (*DB, error) {
	// sql.Open only builds the pool manager; Ping forces a real connection
	// so a bad path or permissions problem surfaces here, not on the first
	// query.
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}

	// An in-memory database exists per connection: a second pooled
	// connection would see an empty schema. Pin the pool to one connection
	// so ":memory:" behaves like a single database.
	if dbPath == ":memory:" {
		conn.SetMaxOpenConns(1)
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	// WAL mode allows concurrent reads while a write is in progress —
	// necessary once multiple requests hit the DB at the same time.
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting WAL mode: %w", err)
	}

	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: enabling foreign keys: %w", err)
	}

	db := &DB{conn: conn}

	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return db, nil
}

// Close closes the database connection pool. Callers of New should defer
// Close so the WAL is flushed and the file lock released on shutdown.
func (db *DB) Close() error {
	return db.conn.Close()
}

// migrate creates the schema. CREATE ... IF NOT EXISTS keeps it safe to run
// on every startup.
//
// token_identifier is UNIQUE: one authenticated person maps to exactly one
// row, and a lost first-time-store race fails the second INSERT instead of
// producing a duplicate.
func (db *DB) migrate() error {
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			id               TEXT PRIMARY KEY,
			name             TEXT NOT NULL,
			token_identifier TEXT NOT NULL UNIQUE,
			email            TEXT NOT NULL DEFAULT '',
			image_url        TEXT NOT NULL DEFAULT '',
			created_at       DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at       DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
	`)
	if err != nil {
		return fmt.Errorf("creating users table: %w", err)
	}

	// Full-text index over name and email, external-content against the
	// users table. unicode61 case-folds and splits at punctuation, so
	// "alice@b.com" indexes as the tokens [alice, b, com].
	_, err = db.conn.Exec(`
		CREATE VIRTUAL TABLE IF NOT EXISTS users_fts USING fts5(
			name,
			email,
			content='users',
			content_rowid='rowid',
			tokenize='unicode61'
		);
	`)
	if err != nil {
		return fmt.Errorf("creating users_fts index: %w", err)
	}

	// Triggers keep the external-content FTS table in sync. The 'delete'
	// command variant needs the old column values, hence the AFTER
	// UPDATE/DELETE forms.
	_, err = db.conn.Exec(`
		CREATE TRIGGER IF NOT EXISTS users_fts_ai AFTER INSERT ON users BEGIN
			INSERT INTO users_fts(rowid, name, email)
			VALUES (new.rowid, new.name, new.email);
		END;
		CREATE TRIGGER IF NOT EXISTS users_fts_ad AFTER DELETE ON users BEGIN
			INSERT INTO users_fts(users_fts, rowid, name, email)
			VALUES ('delete', old.rowid, old.name, old.email);
		END;
		CREATE TRIGGER IF NOT EXISTS users_fts_au AFTER UPDATE ON users BEGIN
			INSERT INTO users_fts(users_fts, rowid, name, email)
			VALUES ('delete', old.rowid, old.name, old.email);
			INSERT INTO users_fts(rowid, name, email)
			VALUES (new.rowid, new.name, new.email);
		END;
	`)
	if err != nil {
		return fmt.Errorf("creating users_fts triggers: %w", err)
	}

	return nil
}
