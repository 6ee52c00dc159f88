package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/starford/tally/internal/apperr"
	"github.com/starford/tally/internal/cardservice"
	"github.com/starford/tally/internal/models"
	"github.com/starford/tally/internal/vote"
)

// InVoteTx runs fn inside one IMMEDIATE transaction. The transaction commits
// when fn returns nil and rolls back otherwise.
func (db *DB) InVoteTx(ctx context.Context, fn func(tx cardservice.VoteTx) error) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlstore: begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if err := fn(&voteTx{tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlstore: commit: %w", err)
	}
	return nil
}

// FindVote returns the voter's vote on the card, or nil.
func (db *DB) FindVote(ctx context.Context, cardID int64, voterKey string) (*models.Vote, error) {
	return findVote(ctx, db.conn, cardID, voterKey)
}

func findVote(ctx context.Context, q queryer, cardID int64, voterKey string) (*models.Vote, error) {
	var v models.Vote
	err := q.QueryRowContext(ctx, `
		SELECT id, card_id, ip_address, vote_type, created_at
		FROM votes WHERE card_id = ? AND ip_address = ?
	`, cardID, voterKey).Scan(&v.ID, &v.CardID, &v.VoterKey, &v.Kind, &v.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("sqlstore: find vote: %w", err)
	}
	return &v, nil
}

type voteTx struct {
	tx *sql.Tx
}

func (t *voteTx) GetCard(ctx context.Context, id int64) (models.Card, error) {
	return getCard(ctx, t.tx, id)
}

func (t *voteTx) FindVote(ctx context.Context, cardID int64, voterKey string) (*models.Vote, error) {
	return findVote(ctx, t.tx, cardID, voterKey)
}

func (t *voteTx) InsertVote(ctx context.Context, cardID int64, voterKey string, kind vote.Kind) (models.Vote, error) {
	v := models.Vote{CardID: cardID, VoterKey: voterKey, Kind: kind, CreatedAt: time.Now().UTC()}
	err := t.tx.QueryRowContext(ctx, `
		INSERT INTO votes (card_id, ip_address, vote_type, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(card_id, ip_address) DO NOTHING
		RETURNING id
	`, cardID, voterKey, string(kind), v.CreatedAt).Scan(&v.ID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Vote{}, fmt.Errorf("sqlstore: vote on card %d: %w", cardID, apperr.ErrConflict)
	}
	if err != nil {
		return models.Vote{}, fmt.Errorf("sqlstore: insert vote: %w", err)
	}
	return v, nil
}

func (t *voteTx) DeleteVote(ctx context.Context, id int64) error {
	if _, err := t.tx.ExecContext(ctx, `DELETE FROM votes WHERE id = ?`, id); err != nil {
		return fmt.Errorf("sqlstore: delete vote: %w", err)
	}
	return nil
}

func (t *voteTx) UpdateVoteKind(ctx context.Context, id int64, kind vote.Kind) error {
	if _, err := t.tx.ExecContext(ctx, `UPDATE votes SET vote_type = ? WHERE id = ?`, string(kind), id); err != nil {
		return fmt.Errorf("sqlstore: update vote: %w", err)
	}
	return nil
}

func (t *voteTx) AdjustCounters(ctx context.Context, cardID int64, d vote.Delta) error {
	res, err := t.tx.ExecContext(ctx, `
		UPDATE cards SET likes = likes + ?, dislikes = dislikes + ? WHERE id = ?
	`, d.Likes, d.Dislikes, cardID)
	if err != nil {
		return fmt.Errorf("sqlstore: adjust counters: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("sqlstore: card %d: %w", cardID, apperr.ErrNotFound)
	}
	return nil
}
