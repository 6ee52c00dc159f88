package pgstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/starford/tally/internal/apperr"
	"github.com/starford/tally/internal/cardservice"
	"github.com/starford/tally/internal/models"
	"github.com/starford/tally/internal/vote"
)

// InVoteTx runs fn in one READ COMMITTED transaction.
func (db *DB) InVoteTx(ctx context.Context, fn func(tx cardservice.VoteTx) error) error {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("pgstore: begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if err := fn(&voteTx{tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("pgstore: commit: %w", err)
	}
	return nil
}

// FindVote returns the voter's vote on the card, or nil.
func (db *DB) FindVote(ctx context.Context, cardID int64, voterKey string) (*models.Vote, error) {
	return findVote(ctx, db.pool, cardID, voterKey, "")
}

func findVote(ctx context.Context, q querier, cardID int64, voterKey, lock string) (*models.Vote, error) {
	var v models.Vote
	err := q.QueryRow(ctx, `
		SELECT id, card_id, ip_address, vote_type, created_at
		FROM votes WHERE card_id = $1 AND ip_address = $2
	`+lock, cardID, voterKey).Scan(&v.ID, &v.CardID, &v.VoterKey, &v.Kind, &v.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("pgstore: find vote: %w", err)
	}
	return &v, nil
}

type voteTx struct {
	tx pgx.Tx
}

func (t *voteTx) GetCard(ctx context.Context, id int64) (models.Card, error) {
	return getCard(ctx, t.tx, id)
}

func (t *voteTx) FindVote(ctx context.Context, cardID int64, voterKey string) (*models.Vote, error) {
	return findVote(ctx, t.tx, cardID, voterKey, " FOR UPDATE")
}

// InsertVote waits for any in-flight insert of the same key and reports
// apperr.ErrConflict when that insert committed. No error is raised inside
// the transaction, so it stays usable.
func (t *voteTx) InsertVote(ctx context.Context, cardID int64, voterKey string, kind vote.Kind) (models.Vote, error) {
	v := models.Vote{CardID: cardID, VoterKey: voterKey, Kind: kind}
	err := t.tx.QueryRow(ctx, `
		INSERT INTO votes (card_id, ip_address, vote_type)
		VALUES ($1, $2, $3)
		ON CONFLICT (card_id, ip_address) DO NOTHING
		RETURNING id, created_at
	`, cardID, voterKey, string(kind)).Scan(&v.ID, &v.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Vote{}, fmt.Errorf("pgstore: vote on card %d: %w", cardID, apperr.ErrConflict)
	}
	if err != nil {
		return models.Vote{}, fmt.Errorf("pgstore: insert vote: %w", err)
	}
	return v, nil
}

func (t *voteTx) DeleteVote(ctx context.Context, id int64) error {
	if _, err := t.tx.Exec(ctx, `DELETE FROM votes WHERE id = $1`, id); err != nil {
		return fmt.Errorf("pgstore: delete vote: %w", err)
	}
	return nil
}

func (t *voteTx) UpdateVoteKind(ctx context.Context, id int64, kind vote.Kind) error {
	if _, err := t.tx.Exec(ctx, `UPDATE votes SET vote_type = $1 WHERE id = $2`, string(kind), id); err != nil {
		return fmt.Errorf("pgstore: update vote: %w", err)
	}
	return nil
}

func (t *voteTx) AdjustCounters(ctx context.Context, cardID int64, d vote.Delta) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE cards SET likes = likes + $1, dislikes = dislikes + $2 WHERE id = $3
	`, d.Likes, d.Dislikes, cardID)
	if err != nil {
		return fmt.Errorf("pgstore: adjust counters: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("pgstore: card %d: %w", cardID, apperr.ErrNotFound)
	}
	return nil
}
