// Package sqlstore provides the SQLite-backed card store and vote ledger.
package sqlstore

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/starford/tally/internal/cardservice"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS cards (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	name        TEXT NOT NULL UNIQUE,
	type        TEXT NOT NULL DEFAULT 'person' CHECK (type IN ('person', 'organization')),
	industry    TEXT,
	country     TEXT NOT NULL,
	side        TEXT NOT NULL CHECK (side IN ('good', 'bad')),
	description TEXT NOT NULL,
	links       TEXT NOT NULL DEFAULT '[]',
	image_url   TEXT,
	likes       INTEGER NOT NULL DEFAULT 0 CHECK (likes >= 0),
	dislikes    INTEGER NOT NULL DEFAULT 0 CHECK (dislikes >= 0),
	created_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_cards_created_at ON cards(created_at);

CREATE TABLE IF NOT EXISTS votes (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	card_id    INTEGER NOT NULL REFERENCES cards(id) ON DELETE CASCADE,
	ip_address TEXT NOT NULL,
	vote_type  TEXT NOT NULL CHECK (vote_type IN ('like', 'dislike')),
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	UNIQUE(card_id, ip_address)
);

CREATE TABLE IF NOT EXISTS disputes (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	card_id    INTEGER NOT NULL REFERENCES cards(id) ON DELETE CASCADE,
	name       TEXT NOT NULL,
	email      TEXT NOT NULL,
	reason     TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_disputes_card_id ON disputes(card_id);

CREATE TABLE IF NOT EXISTS link_titles (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	url        TEXT NOT NULL UNIQUE,
	title      TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

// DB wraps a sql.DB with card and vote operations.
type DB struct {
	conn *sql.DB
}

// Verify *DB satisfies cardservice.Store at compile time.
var _ cardservice.Store = (*DB)(nil)

// Open opens (or creates) the SQLite database and applies the schema.
//
// Transactions begin IMMEDIATE, so a vote transaction holds the write lock
// from its first read and concurrent casts serialize instead of racing.
func Open(dsn string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on&_txlock=immediate")
	if err != nil {
		return nil, fmt.Errorf("sqlstore: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlstore: ping: %w", err)
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlstore: apply schema: %w", err)
	}
	return &DB{conn: conn}, nil
}

// Ping checks the database connection.
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Conn exposes the underlying connection for maintenance queries.
func (db *DB) Conn() *sql.DB {
	return db.conn
}
