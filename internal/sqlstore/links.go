package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// LinkTitle returns the cached title for url. ok is false on a miss.
func (db *DB) LinkTitle(ctx context.Context, url string) (title string, ok bool, err error) {
	err = db.conn.QueryRowContext(ctx, `SELECT title FROM link_titles WHERE url = ?`, url).Scan(&title)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("sqlstore: get link title: %w", err)
	}
	return title, true, nil
}

// SaveLinkTitle caches title for url. An existing entry wins.
func (db *DB) SaveLinkTitle(ctx context.Context, url, title string) error {
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO link_titles (url, title, created_at) VALUES (?, ?, ?)
		ON CONFLICT(url) DO NOTHING
	`, url, title, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("sqlstore: save link title: %w", err)
	}
	return nil
}
