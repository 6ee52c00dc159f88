package vote

import (
	"errors"
	"testing"

	"github.com/starford/tally/internal/apperr"
)

func kindPtr(k Kind) *Kind { return &k }

func TestParseKind(t *testing.T) {
	for _, s := range []string{"like", "dislike"} {
		k, err := ParseKind(s)
		if err != nil {
			t.Fatalf("ParseKind(%q): %v", s, err)
		}
		if string(k) != s {
			t.Errorf("ParseKind(%q) = %q", s, k)
		}
	}
	for _, s := range []string{"", "Like", "love", " like"} {
		_, err := ParseKind(s)
		if !errors.Is(err, apperr.ErrInvalidArgument) {
			t.Errorf("ParseKind(%q) err = %v, want ErrInvalidArgument", s, err)
		}
	}
}

func TestDecide(t *testing.T) {
	tests := []struct {
		name      string
		existing  *Kind
		requested Kind
		want      Transition
	}{
		{"first like", nil, Like, Create},
		{"first dislike", nil, Dislike, Create},
		{"like again", kindPtr(Like), Like, Retract},
		{"dislike again", kindPtr(Dislike), Dislike, Retract},
		{"like to dislike", kindPtr(Like), Dislike, Switch},
		{"dislike to like", kindPtr(Dislike), Like, Switch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Decide(tt.existing, tt.requested); got != tt.want {
				t.Errorf("Decide = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDeltaFor(t *testing.T) {
	tests := []struct {
		t         Transition
		requested Kind
		want      Delta
	}{
		{Create, Like, Delta{Likes: 1}},
		{Create, Dislike, Delta{Dislikes: 1}},
		{Retract, Like, Delta{Likes: -1}},
		{Retract, Dislike, Delta{Dislikes: -1}},
		{Switch, Dislike, Delta{Likes: -1, Dislikes: 1}},
		{Switch, Like, Delta{Likes: 1, Dislikes: -1}},
	}
	for _, tt := range tests {
		if got := DeltaFor(tt.t, tt.requested); got != tt.want {
			t.Errorf("DeltaFor(%s, %s) = %+v, want %+v", tt.t, tt.requested, got, tt.want)
		}
	}
}

// Replaying Decide/DeltaFor over a sequence of casts must keep the counters
// equal to the final ledger contents.
func TestDeltaMatchesLedger(t *testing.T) {
	ledger := map[string]Kind{}
	var counters Delta
	casts := []struct {
		voter string
		kind  Kind
	}{
		{"a", Like}, {"b", Like}, {"a", Like}, {"a", Dislike},
		{"c", Dislike}, {"c", Like}, {"b", Like}, {"c", Like},
	}
	for _, c := range casts {
		var existing *Kind
		if k, ok := ledger[c.voter]; ok {
			existing = &k
		}
		tr := Decide(existing, c.kind)
		switch tr {
		case Create, Switch:
			ledger[c.voter] = c.kind
		case Retract:
			delete(ledger, c.voter)
		}
		d := DeltaFor(tr, c.kind)
		counters.Likes += d.Likes
		counters.Dislikes += d.Dislikes
		if counters.Likes < 0 || counters.Dislikes < 0 {
			t.Fatalf("counters went negative: %+v", counters)
		}
	}
	var want Delta
	for _, k := range ledger {
		if k == Like {
			want.Likes++
		} else {
			want.Dislikes++
		}
	}
	if counters != want {
		t.Errorf("counters = %+v, ledger aggregate = %+v", counters, want)
	}
}
