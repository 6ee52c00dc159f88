// Package cardservice implements card submission, voting, and disputes on top
// of a Store.
package cardservice

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"

	"github.com/starford/tally/internal/apperr"
	"github.com/starford/tally/internal/models"
)

// Service coordinates store operations and change notifications.
type Service struct {
	store  Store
	pub    Publisher
	logger *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithPublisher sets the receiver of card change notifications.
func WithPublisher(p Publisher) Option {
	return func(s *Service) {
		s.pub = p
	}
}

// WithLogger sets the service logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		s.logger = l
	}
}

// NewService creates a new card service.
func NewService(store Store, opts ...Option) *Service {
	s := &Service{store: store, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Store returns the underlying store.
func (s *Service) Store() Store {
	return s.store
}

// GetCard returns a single card.
func (s *Service) GetCard(ctx context.Context, id int64) (models.Card, error) {
	return s.store.GetCard(ctx, id)
}

// ListCards returns cards newest first.
func (s *Service) ListCards(ctx context.Context, f models.CardFilter) ([]models.Card, error) {
	f.Type = strings.ToLower(strings.TrimSpace(f.Type))
	f.Side = strings.ToLower(strings.TrimSpace(f.Side))
	cards, err := s.store.ListCards(ctx, f)
	if err != nil {
		return nil, err
	}
	return nonNilSlice(cards), nil
}

// CreateCard validates and stores a card submission. Counters start at zero.
func (s *Service) CreateCard(ctx context.Context, in models.NewCard) (models.Card, error) {
	in = NormalizeCard(in)
	if err := ValidateCard(in); err != nil {
		return models.Card{}, err
	}
	card, err := s.store.CreateCard(ctx, in)
	if err != nil {
		return models.Card{}, err
	}
	s.logger.Info("card created", slog.Int64("card_id", card.ID), slog.String("name", card.Name))
	if s.pub != nil {
		s.pub.CardCreated(card)
	}
	return card, nil
}

// ImportCard validates in and inserts it, or replaces the descriptive
// fields of the card with the same name. Votes and counters are untouched;
// callers doing bulk imports recompute counters afterwards.
func (s *Service) ImportCard(ctx context.Context, in models.NewCard) (models.Card, error) {
	in = NormalizeCard(in)
	if err := ValidateCard(in); err != nil {
		return models.Card{}, fmt.Errorf("card %q: %w", in.Name, err)
	}
	return s.store.UpsertCardByName(ctx, in)
}

// CreateDispute records a dispute against an existing card.
func (s *Service) CreateDispute(ctx context.Context, cardID int64, in models.NewDispute) (models.Dispute, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.TrimSpace(in.Email)
	in.Reason = strings.TrimSpace(in.Reason)
	if err := validation.ValidateStruct(&in,
		validation.Field(&in.Name, validation.Required),
		validation.Field(&in.Email, validation.Required, is.EmailFormat),
		validation.Field(&in.Reason, validation.Required),
	); err != nil {
		return models.Dispute{}, fmt.Errorf("%w: %s", apperr.ErrInvalidArgument, err)
	}
	return s.store.CreateDispute(ctx, cardID, in)
}

// Stats returns the dashboard aggregates.
func (s *Service) Stats(ctx context.Context) (models.Stats, error) {
	return s.store.Stats(ctx)
}

// NormalizeCard trims fields, lower-cases type and side, and drops blank
// links, keeping at most models.MaxLinks.
func NormalizeCard(in models.NewCard) models.NewCard {
	in.Name = strings.TrimSpace(in.Name)
	in.Type = strings.ToLower(strings.TrimSpace(in.Type))
	in.Industry = strings.TrimSpace(in.Industry)
	in.Country = strings.TrimSpace(in.Country)
	in.Side = strings.ToLower(strings.TrimSpace(in.Side))
	in.Description = strings.TrimSpace(in.Description)
	in.ImageURL = strings.TrimSpace(in.ImageURL)

	links := make([]string, 0, len(in.Links))
	for _, l := range in.Links {
		if l = strings.TrimSpace(l); l != "" {
			links = append(links, l)
		}
		if len(links) == models.MaxLinks {
			break
		}
	}
	in.Links = links
	return in
}

// ValidateCard checks a normalized card submission.
func ValidateCard(in models.NewCard) error {
	err := validation.ValidateStruct(&in,
		validation.Field(&in.Name, validation.Required, validation.Length(1, 200)),
		validation.Field(&in.Type, validation.Required, validation.In(models.TypePerson, models.TypeOrganization)),
		validation.Field(&in.Industry, validation.Required, validation.Length(1, 100)),
		validation.Field(&in.Country, validation.Required, validation.Length(1, 100)),
		validation.Field(&in.Side, validation.Required, validation.In(models.SideGood, models.SideBad)),
		validation.Field(&in.Description, validation.Required),
		validation.Field(&in.Links, validation.Length(0, models.MaxLinks)),
	)
	if err != nil {
		return fmt.Errorf("%w: %s", apperr.ErrInvalidArgument, err)
	}
	return nil
}

func nonNilSlice[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
