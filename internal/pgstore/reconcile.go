package pgstore

import (
	"context"
	"fmt"

	"github.com/starford/tally/internal/models"
)

const driftQuery = `
	SELECT c.id, c.likes, c.dislikes,
		COUNT(v.id) FILTER (WHERE v.vote_type = 'like'),
		COUNT(v.id) FILTER (WHERE v.vote_type = 'dislike')
	FROM cards c
	LEFT JOIN votes v ON v.card_id = c.id
	GROUP BY c.id
	HAVING c.likes <> COUNT(v.id) FILTER (WHERE v.vote_type = 'like')
		OR c.dislikes <> COUNT(v.id) FILTER (WHERE v.vote_type = 'dislike')
	ORDER BY c.id
`

// CheckConsistency lists cards whose counters disagree with the vote ledger.
func (db *DB) CheckConsistency(ctx context.Context) ([]models.Drift, error) {
	return drifts(ctx, db.pool)
}

func drifts(ctx context.Context, q querier) ([]models.Drift, error) {
	rows, err := q.Query(ctx, driftQuery)
	if err != nil {
		return nil, fmt.Errorf("pgstore: check consistency: %w", err)
	}
	defer rows.Close()

	var out []models.Drift
	for rows.Next() {
		var d models.Drift
		if err := rows.Scan(&d.CardID, &d.Likes, &d.Dislikes, &d.LedgerLikes, &d.LedgerDislikes); err != nil {
			return nil, fmt.Errorf("pgstore: scan drift: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// RecomputeCounters rewrites drifted counters from the ledger and returns
// the cards it changed. The votes table is locked against writes for the
// duration so no cast interleaves with the recount.
func (db *DB) RecomputeCounters(ctx context.Context) ([]models.Drift, error) {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("pgstore: begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx, `LOCK TABLE votes IN SHARE MODE`); err != nil {
		return nil, fmt.Errorf("pgstore: lock votes: %w", err)
	}
	found, err := drifts(ctx, tx)
	if err != nil {
		return nil, err
	}
	for _, d := range found {
		if _, err := tx.Exec(ctx,
			`UPDATE cards SET likes = $1, dislikes = $2 WHERE id = $3`,
			d.LedgerLikes, d.LedgerDislikes, d.CardID); err != nil {
			return nil, fmt.Errorf("pgstore: recompute card %d: %w", d.CardID, err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("pgstore: commit: %w", err)
	}
	return found, nil
}
