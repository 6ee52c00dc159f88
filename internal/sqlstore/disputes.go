package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/starford/tally/internal/apperr"
	"github.com/starford/tally/internal/models"
)

// CreateDispute records a dispute. An unknown card yields apperr.ErrNotFound.
func (db *DB) CreateDispute(ctx context.Context, cardID int64, d models.NewDispute) (models.Dispute, error) {
	out := models.Dispute{
		CardID:    cardID,
		Name:      d.Name,
		Email:     d.Email,
		Reason:    d.Reason,
		CreatedAt: time.Now().UTC(),
	}
	err := db.conn.QueryRowContext(ctx, `
		INSERT INTO disputes (card_id, name, email, reason, created_at)
		SELECT ?, ?, ?, ?, ?
		WHERE EXISTS (SELECT 1 FROM cards WHERE id = ?)
		RETURNING id
	`, cardID, d.Name, d.Email, d.Reason, out.CreatedAt, cardID).Scan(&out.ID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Dispute{}, fmt.Errorf("sqlstore: card %d: %w", cardID, apperr.ErrNotFound)
	}
	if err != nil {
		return models.Dispute{}, fmt.Errorf("sqlstore: insert dispute: %w", err)
	}
	return out, nil
}
