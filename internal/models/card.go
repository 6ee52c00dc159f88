// Package models defines the domain types for tally.
package models

import (
	"time"

	"github.com/starford/tally/internal/vote"
)

// Card types.
const (
	TypePerson       = "person"
	TypeOrganization = "organization"
)

// Card sides.
const (
	SideGood = "good"
	SideBad  = "bad"
)

// MaxLinks caps the evidence links stored on a card.
const MaxLinks = 10

// Card is a person or organization under public like/dislike voting.
// Likes and Dislikes mirror the vote ledger and are only adjusted by the
// vote reconciler or recomputed from the ledger.
type Card struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Type        string    `json:"type"`
	Industry    *string   `json:"industry"`
	Country     string    `json:"country"`
	Side        string    `json:"side"`
	Description string    `json:"description"`
	Links       []string  `json:"links"`
	ImageURL    *string   `json:"imageUrl"`
	Likes       int       `json:"likes"`
	Dislikes    int       `json:"dislikes"`
	CreatedAt   time.Time `json:"createdAt"`
}

// NewCard holds the descriptive fields of a card submission.
type NewCard struct {
	Name        string   `json:"name" yaml:"name"`
	Type        string   `json:"type" yaml:"type"`
	Industry    string   `json:"industry" yaml:"industry"`
	Country     string   `json:"country" yaml:"country"`
	Side        string   `json:"side" yaml:"side"`
	Description string   `json:"description" yaml:"description"`
	Links       []string `json:"links" yaml:"links"`
	ImageURL    string   `json:"imageUrl" yaml:"image_url"`
}

// CardFilter narrows a card listing. Empty fields match everything.
type CardFilter struct {
	Type string
	Side string
}

// Vote is one ledger record. At most one exists per (CardID, VoterKey).
type Vote struct {
	ID        int64     `json:"id"`
	CardID    int64     `json:"cardId"`
	VoterKey  string    `json:"-"`
	Kind      vote.Kind `json:"voteType"`
	CreatedAt time.Time `json:"createdAt"`
}

// Dispute is an append-only objection to a card's classification.
type Dispute struct {
	ID        int64     `json:"id"`
	CardID    int64     `json:"cardId"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Reason    string    `json:"reason"`
	CreatedAt time.Time `json:"createdAt"`
}

// NewDispute holds a dispute submission.
type NewDispute struct {
	Name   string `json:"name"`
	Email  string `json:"email"`
	Reason string `json:"reason"`
}

// Drift reports a card whose counters disagree with the ledger.
type Drift struct {
	CardID         int64 `json:"cardId"`
	Likes          int   `json:"likes"`
	Dislikes       int   `json:"dislikes"`
	LedgerLikes    int   `json:"ledgerLikes"`
	LedgerDislikes int   `json:"ledgerDislikes"`
}
