// Package vote holds the like/dislike transition rules applied to the ledger.
//
// A voter key owns at most one vote per card. Casting a vote against the
// current ledger state yields exactly one of three transitions:
//
//   - no existing vote: Create, +1 on the requested column
//   - same kind again: Retract, -1 on that column (toggle off)
//   - opposite kind: Switch, -1 on the old column and +1 on the new one
//
// The counters on a card are a cache over the ledger, so every transition
// carries the Delta that keeps them equal to the ledger aggregate.
package vote

import (
	"fmt"

	"github.com/starford/tally/internal/apperr"
)

// Kind is the reaction recorded in a vote.
type Kind string

const (
	Like    Kind = "like"
	Dislike Kind = "dislike"
)

// ParseKind validates s as a vote kind.
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case Like, Dislike:
		return Kind(s), nil
	}
	return "", fmt.Errorf("%w: vote type must be 'like' or 'dislike'", apperr.ErrInvalidArgument)
}

// Opposite returns the other kind.
func (k Kind) Opposite() Kind {
	if k == Like {
		return Dislike
	}
	return Like
}

// Transition is the ledger mutation chosen for a cast.
type Transition string

const (
	Create  Transition = "create"
	Retract Transition = "retract"
	Switch  Transition = "switch"
	// Duplicate marks a first vote that lost an insert race to an identical
	// concurrent first vote from the same voter. It changes nothing.
	Duplicate Transition = "duplicate"
)

// Decide picks the transition for requested given the voter's existing vote
// (nil when the voter has not voted on the card).
func Decide(existing *Kind, requested Kind) Transition {
	switch {
	case existing == nil:
		return Create
	case *existing == requested:
		return Retract
	default:
		return Switch
	}
}

// Delta is the signed adjustment to a card's counters.
type Delta struct {
	Likes    int
	Dislikes int
}

// IsZero reports whether d leaves both counters unchanged.
func (d Delta) IsZero() bool { return d.Likes == 0 && d.Dislikes == 0 }

func unit(k Kind, n int) Delta {
	if k == Like {
		return Delta{Likes: n}
	}
	return Delta{Dislikes: n}
}

// DeltaFor returns the counter adjustment that matches transition t for the
// requested kind.
func DeltaFor(t Transition, requested Kind) Delta {
	switch t {
	case Create:
		return unit(requested, 1)
	case Retract:
		return unit(requested, -1)
	case Switch:
		d := unit(requested, 1)
		old := unit(requested.Opposite(), -1)
		return Delta{Likes: d.Likes + old.Likes, Dislikes: d.Dislikes + old.Dislikes}
	}
	return Delta{}
}

// Status is a voter's current vote on one card.
type Status struct {
	Voted bool  `json:"voted"`
	Kind  *Kind `json:"voteType"`
}
