package cardservice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/starford/tally/internal/apperr"
	"github.com/starford/tally/internal/models"
	"github.com/starford/tally/internal/vote"
)

// maxCastAttempts bounds the re-reads after an insert conflict. A conflict
// means another request for the same voter committed between our read and
// our insert; the next read sees its row unless that row was retracted again.
const maxCastAttempts = 3

var errCastContention = errors.New("cardservice: vote contention retries exhausted")

// VoteResult is the outcome of a cast.
type VoteResult struct {
	Card       models.Card
	Transition vote.Transition
}

// CastVote applies rawKind from voterKey to the card and returns the card as
// persisted after the write. Validation happens before any write; an unknown
// card yields apperr.ErrNotFound. The ledger write and the counter delta
// commit in one transaction.
func (s *Service) CastVote(ctx context.Context, cardID int64, voterKey, rawKind string) (VoteResult, error) {
	kind, err := vote.ParseKind(rawKind)
	if err != nil {
		return VoteResult{}, err
	}

	var res VoteResult
	err = s.store.InVoteTx(ctx, func(tx VoteTx) error {
		if _, err := tx.GetCard(ctx, cardID); err != nil {
			return err
		}
		t, err := reconcile(ctx, tx, cardID, voterKey, kind)
		if err != nil {
			return err
		}
		card, err := tx.GetCard(ctx, cardID)
		if err != nil {
			return err
		}
		res = VoteResult{Card: card, Transition: t}
		return nil
	})
	if err != nil {
		return VoteResult{}, err
	}

	s.logger.Debug("vote cast",
		slog.Int64("card_id", cardID),
		slog.String("kind", string(kind)),
		slog.String("transition", string(res.Transition)),
		slog.Int("likes", res.Card.Likes),
		slog.Int("dislikes", res.Card.Dislikes))
	if s.pub != nil && res.Transition != vote.Duplicate {
		s.pub.CardVoted(res.Card, res.Transition)
	}
	return res, nil
}

// reconcile performs one ledger write and its matching counter delta.
func reconcile(ctx context.Context, tx VoteTx, cardID int64, voterKey string, kind vote.Kind) (vote.Transition, error) {
	conflicted := false
	for attempt := 0; attempt < maxCastAttempts; attempt++ {
		existing, err := tx.FindVote(ctx, cardID, voterKey)
		if err != nil {
			return "", err
		}

		if existing == nil {
			if _, err := tx.InsertVote(ctx, cardID, voterKey, kind); err != nil {
				if errors.Is(err, apperr.ErrConflict) {
					conflicted = true
					continue
				}
				return "", err
			}
			return vote.Create, tx.AdjustCounters(ctx, cardID, vote.DeltaFor(vote.Create, kind))
		}

		t := vote.Decide(&existing.Kind, kind)
		switch t {
		case vote.Retract:
			if conflicted {
				// The row we collided with is the same first vote.
				return vote.Duplicate, nil
			}
			if err := tx.DeleteVote(ctx, existing.ID); err != nil {
				return "", err
			}
		case vote.Switch:
			if err := tx.UpdateVoteKind(ctx, existing.ID, kind); err != nil {
				return "", err
			}
		}
		return t, tx.AdjustCounters(ctx, cardID, vote.DeltaFor(t, kind))
	}
	return "", fmt.Errorf("%w: card %d", errCastContention, cardID)
}

// VoteStatus reports the voter's current vote on the card.
func (s *Service) VoteStatus(ctx context.Context, cardID int64, voterKey string) (vote.Status, error) {
	v, err := s.store.FindVote(ctx, cardID, voterKey)
	if err != nil {
		return vote.Status{}, err
	}
	if v == nil {
		return vote.Status{}, nil
	}
	k := v.Kind
	return vote.Status{Voted: true, Kind: &k}, nil
}

// CheckConsistency lists cards whose counters disagree with the ledger.
func (s *Service) CheckConsistency(ctx context.Context) ([]models.Drift, error) {
	drifts, err := s.store.CheckConsistency(ctx)
	if err != nil {
		return nil, err
	}
	return nonNilSlice(drifts), nil
}

// RecomputeCounters resets drifted counters from the ledger.
func (s *Service) RecomputeCounters(ctx context.Context) ([]models.Drift, error) {
	fixed, err := s.store.RecomputeCounters(ctx)
	if err != nil {
		return nil, err
	}
	for _, d := range fixed {
		s.logger.Warn("counter drift repaired",
			slog.Int64("card_id", d.CardID),
			slog.Int("likes", d.Likes), slog.Int("ledger_likes", d.LedgerLikes),
			slog.Int("dislikes", d.Dislikes), slog.Int("ledger_dislikes", d.LedgerDislikes))
	}
	return nonNilSlice(fixed), nil
}
