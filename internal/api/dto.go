package api

import "github.com/starford/tally/internal/models"

// Card is the card response type (aliased from the domain layer).
type Card = models.Card

// CreateCardRequest is the request body for submitting a card.
type CreateCardRequest struct {
	Name        string   `json:"name" example:"Jane Doe" validate:"required"`
	Type        string   `json:"type" example:"person" validate:"required"`
	Industry    string   `json:"industry" example:"Journalism" validate:"required"`
	Country     string   `json:"country" example:"Norway" validate:"required"`
	Side        string   `json:"side" example:"good" validate:"required"`
	Description string   `json:"description" validate:"required"`
	Links       []string `json:"links"`
	ImageURL    string   `json:"imageUrl"`
}

func (r CreateCardRequest) toModel() models.NewCard {
	return models.NewCard{
		Name:        r.Name,
		Type:        r.Type,
		Industry:    r.Industry,
		Country:     r.Country,
		Side:        r.Side,
		Description: r.Description,
		Links:       r.Links,
		ImageURL:    r.ImageURL,
	}
}

// VoteRequest is the request body for casting a vote.
type VoteRequest struct {
	VoteType string `json:"voteType" example:"like" validate:"required"`
}

// DisputeRequest is the request body for disputing a card.
type DisputeRequest struct {
	Name   string `json:"name" validate:"required"`
	Email  string `json:"email" example:"jane@example.com" validate:"required"`
	Reason string `json:"reason" validate:"required"`
}

// DisputeResponse is returned after a dispute is recorded.
type DisputeResponse struct {
	Message string         `json:"message" validate:"required"`
	Dispute models.Dispute `json:"dispute" validate:"required"`
}

// TitleResponse is returned by the link title lookup.
type TitleResponse struct {
	Title string `json:"title"`
}
