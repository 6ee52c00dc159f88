// Package pgstore provides the PostgreSQL-backed card store and vote ledger.
//
// Unlike the SQLite store, vote transactions do not serialize globally. The
// create path relies on UNIQUE(card_id, ip_address) through INSERT ... ON
// CONFLICT DO NOTHING, and the existing-row path locks the vote row with
// SELECT ... FOR UPDATE, so only requests for the same (card, voter) contend.
package pgstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/starford/tally/internal/cardservice"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS cards (
	id          BIGSERIAL PRIMARY KEY,
	name        TEXT NOT NULL UNIQUE,
	type        TEXT NOT NULL DEFAULT 'person' CHECK (type IN ('person', 'organization')),
	industry    TEXT,
	country     TEXT NOT NULL,
	side        TEXT NOT NULL CHECK (side IN ('good', 'bad')),
	description TEXT NOT NULL,
	links       TEXT[] NOT NULL DEFAULT '{}',
	image_url   TEXT,
	likes       INTEGER NOT NULL DEFAULT 0,
	dislikes    INTEGER NOT NULL DEFAULT 0,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	CONSTRAINT cards_counters_non_negative CHECK (likes >= 0 AND dislikes >= 0)
);

CREATE INDEX IF NOT EXISTS idx_cards_created_at ON cards(created_at);

CREATE TABLE IF NOT EXISTS votes (
	id         BIGSERIAL PRIMARY KEY,
	card_id    BIGINT NOT NULL REFERENCES cards(id) ON DELETE CASCADE,
	ip_address TEXT NOT NULL,
	vote_type  TEXT NOT NULL CHECK (vote_type IN ('like', 'dislike')),
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (card_id, ip_address)
);

CREATE TABLE IF NOT EXISTS disputes (
	id         BIGSERIAL PRIMARY KEY,
	card_id    BIGINT NOT NULL REFERENCES cards(id) ON DELETE CASCADE,
	name       TEXT NOT NULL,
	email      TEXT NOT NULL,
	reason     TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_disputes_card_id ON disputes(card_id);

CREATE TABLE IF NOT EXISTS link_titles (
	id         BIGSERIAL PRIMARY KEY,
	url        TEXT NOT NULL UNIQUE,
	title      TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

const uniqueViolation = "23505"

// DB wraps a pgx pool with card and vote operations.
type DB struct {
	pool *pgxpool.Pool
}

var _ cardservice.Store = (*DB)(nil)

// Open connects to dsn and applies the schema. maxConns <= 0 keeps the pool
// default.
func Open(ctx context.Context, dsn string, maxConns int32) (*DB, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("pgstore: parse dsn: %w", err)
	}
	if maxConns > 0 {
		cfg.MaxConns = maxConns
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("pgstore: connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pgstore: ping: %w", err)
	}
	if _, err := pool.Exec(ctx, schemaSQL); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pgstore: apply schema: %w", err)
	}
	return &DB{pool: pool}, nil
}

// Pool exposes the underlying pool for maintenance queries.
func (db *DB) Pool() *pgxpool.Pool {
	return db.pool
}

func (db *DB) Ping(ctx context.Context) error {
	return db.pool.Ping(ctx)
}

func (db *DB) Close() error {
	db.pool.Close()
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

// querier is satisfied by both the pool and a transaction.
type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}
