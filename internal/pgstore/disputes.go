package pgstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/starford/tally/internal/apperr"
	"github.com/starford/tally/internal/models"
)

// CreateDispute records a dispute. An unknown card yields apperr.ErrNotFound.
func (db *DB) CreateDispute(ctx context.Context, cardID int64, d models.NewDispute) (models.Dispute, error) {
	out := models.Dispute{CardID: cardID, Name: d.Name, Email: d.Email, Reason: d.Reason}
	err := db.pool.QueryRow(ctx, `
		INSERT INTO disputes (card_id, name, email, reason)
		SELECT $1, $2, $3, $4
		WHERE EXISTS (SELECT 1 FROM cards WHERE id = $1)
		RETURNING id, created_at
	`, cardID, d.Name, d.Email, d.Reason).Scan(&out.ID, &out.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Dispute{}, fmt.Errorf("pgstore: card %d: %w", cardID, apperr.ErrNotFound)
	}
	if err != nil {
		return models.Dispute{}, fmt.Errorf("pgstore: insert dispute: %w", err)
	}
	out.CreatedAt = out.CreatedAt.UTC()
	return out, nil
}

// LinkTitle returns the cached title for url. ok is false on a miss.
func (db *DB) LinkTitle(ctx context.Context, url string) (title string, ok bool, err error) {
	err = db.pool.QueryRow(ctx, `SELECT title FROM link_titles WHERE url = $1`, url).Scan(&title)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("pgstore: get link title: %w", err)
	}
	return title, true, nil
}

// SaveLinkTitle caches title for url. An existing entry wins.
func (db *DB) SaveLinkTitle(ctx context.Context, url, title string) error {
	_, err := db.pool.Exec(ctx, `
		INSERT INTO link_titles (url, title, created_at) VALUES ($1, $2, $3)
		ON CONFLICT (url) DO NOTHING
	`, url, title, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("pgstore: save link title: %w", err)
	}
	return nil
}
