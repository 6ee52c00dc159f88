package sqlstore

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/starford/tally/internal/models"
)

const driftQuery = `
	SELECT c.id, c.likes, c.dislikes,
		COALESCE(SUM(CASE WHEN v.vote_type = 'like' THEN 1 ELSE 0 END), 0),
		COALESCE(SUM(CASE WHEN v.vote_type = 'dislike' THEN 1 ELSE 0 END), 0)
	FROM cards c
	LEFT JOIN votes v ON v.card_id = c.id
	GROUP BY c.id, c.likes, c.dislikes
	HAVING c.likes <> COALESCE(SUM(CASE WHEN v.vote_type = 'like' THEN 1 ELSE 0 END), 0)
		OR c.dislikes <> COALESCE(SUM(CASE WHEN v.vote_type = 'dislike' THEN 1 ELSE 0 END), 0)
	ORDER BY c.id
`

// CheckConsistency lists cards whose counters disagree with the vote ledger.
func (db *DB) CheckConsistency(ctx context.Context) ([]models.Drift, error) {
	return drifts(ctx, db.conn)
}

type rowsQueryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func drifts(ctx context.Context, q rowsQueryer) ([]models.Drift, error) {
	rows, err := q.QueryContext(ctx, driftQuery)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: check consistency: %w", err)
	}
	defer rows.Close()

	var out []models.Drift
	for rows.Next() {
		var d models.Drift
		if err := rows.Scan(&d.CardID, &d.Likes, &d.Dislikes, &d.LedgerLikes, &d.LedgerDislikes); err != nil {
			return nil, fmt.Errorf("sqlstore: scan drift: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// RecomputeCounters rewrites drifted counters from the ledger in one
// transaction and returns the cards it changed.
func (db *DB) RecomputeCounters(ctx context.Context) ([]models.Drift, error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	found, err := drifts(ctx, tx)
	if err != nil {
		return nil, err
	}
	for _, d := range found {
		if _, err := tx.ExecContext(ctx,
			`UPDATE cards SET likes = ?, dislikes = ? WHERE id = ?`,
			d.LedgerLikes, d.LedgerDislikes, d.CardID); err != nil {
			return nil, fmt.Errorf("sqlstore: recompute card %d: %w", d.CardID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("sqlstore: commit: %w", err)
	}
	return found, nil
}
