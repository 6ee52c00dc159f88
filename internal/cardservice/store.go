package cardservice

import (
	"context"

	"github.com/starford/tally/internal/models"
	"github.com/starford/tally/internal/vote"
)

// VoteTx is the ledger and counter surface available inside one vote
// transaction. Implementations must run every call on the same transaction
// so the read-decide-write sequence commits or rolls back as a unit.
type VoteTx interface {
	// GetCard returns apperr.ErrNotFound when the card does not exist.
	GetCard(ctx context.Context, id int64) (models.Card, error)
	// FindVote returns nil when the voter has no vote on the card. Stores
	// that allow concurrent writers lock the returned row until commit.
	FindVote(ctx context.Context, cardID int64, voterKey string) (*models.Vote, error)
	// InsertVote returns apperr.ErrConflict when a vote for (cardID,
	// voterKey) already exists. The transaction stays usable afterwards.
	InsertVote(ctx context.Context, cardID int64, voterKey string, kind vote.Kind) (models.Vote, error)
	DeleteVote(ctx context.Context, id int64) error
	UpdateVoteKind(ctx context.Context, id int64, kind vote.Kind) error
	// AdjustCounters applies d to both counters in a single update.
	AdjustCounters(ctx context.Context, cardID int64, d vote.Delta) error
}

// Store is the persistence surface used by Service.
type Store interface {
	InVoteTx(ctx context.Context, fn func(tx VoteTx) error) error
	FindVote(ctx context.Context, cardID int64, voterKey string) (*models.Vote, error)

	CreateCard(ctx context.Context, c models.NewCard) (models.Card, error)
	UpsertCardByName(ctx context.Context, c models.NewCard) (models.Card, error)
	GetCard(ctx context.Context, id int64) (models.Card, error)
	ListCards(ctx context.Context, f models.CardFilter) ([]models.Card, error)

	CreateDispute(ctx context.Context, cardID int64, d models.NewDispute) (models.Dispute, error)
	Stats(ctx context.Context) (models.Stats, error)

	// CheckConsistency lists cards whose counters differ from the ledger.
	CheckConsistency(ctx context.Context) ([]models.Drift, error)
	// RecomputeCounters overwrites drifted counters with the ledger
	// aggregate and returns what it fixed.
	RecomputeCounters(ctx context.Context) ([]models.Drift, error)

	Ping(ctx context.Context) error
	Close() error
}

// Publisher receives notifications after successful writes.
type Publisher interface {
	CardCreated(card models.Card)
	CardVoted(card models.Card, t vote.Transition)
}
