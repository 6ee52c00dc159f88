package cardservice_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/starford/tally/internal/apperr"
	"github.com/starford/tally/internal/cardservice"
	"github.com/starford/tally/internal/models"
	"github.com/starford/tally/internal/sqlstore"
	"github.com/starford/tally/internal/testutil"
	"github.com/starford/tally/internal/vote"
)

func newService(t *testing.T) (*cardservice.Service, *sqlstore.DB) {
	t.Helper()
	db := testutil.TestDB(t)
	return cardservice.NewService(db), db
}

// assertLedger fails when any card's counters disagree with its vote rows.
func assertLedger(t *testing.T, s *cardservice.Service) {
	t.Helper()
	drift, err := s.CheckConsistency(context.Background())
	if err != nil {
		t.Fatalf("CheckConsistency: %v", err)
	}
	if len(drift) != 0 {
		t.Fatalf("counter drift: %+v", drift)
	}
}

func cast(t *testing.T, s *cardservice.Service, cardID int64, key, kind string) cardservice.VoteResult {
	t.Helper()
	res, err := s.CastVote(context.Background(), cardID, key, kind)
	if err != nil {
		t.Fatalf("CastVote(%s, %s): %v", key, kind, err)
	}
	return res
}

func TestCastVoteScenario(t *testing.T) {
	s, db := newService(t)
	card := testutil.SeedCard(t, db, "Ada")

	steps := []struct {
		voter          string
		kind           string
		wantTransition vote.Transition
		wantLikes      int
		wantDislikes   int
	}{
		{"A", "like", vote.Create, 1, 0},
		{"B", "like", vote.Create, 2, 0},
		{"A", "like", vote.Retract, 1, 0},
		{"A", "dislike", vote.Create, 1, 1},
	}
	for i, st := range steps {
		res := cast(t, s, card.ID, st.voter, st.kind)
		if res.Transition != st.wantTransition {
			t.Errorf("step %d: transition = %s, want %s", i, res.Transition, st.wantTransition)
		}
		if res.Card.Likes != st.wantLikes || res.Card.Dislikes != st.wantDislikes {
			t.Errorf("step %d: likes=%d dislikes=%d, want %d/%d",
				i, res.Card.Likes, res.Card.Dislikes, st.wantLikes, st.wantDislikes)
		}
		assertLedger(t, s)
	}

	ctx := context.Background()
	for voter, want := range map[string]vote.Kind{"A": vote.Dislike, "B": vote.Like} {
		st, err := s.VoteStatus(ctx, card.ID, voter)
		if err != nil {
			t.Fatal(err)
		}
		if !st.Voted || st.Kind == nil || *st.Kind != want {
			t.Errorf("voter %s status = %+v, want %s", voter, st, want)
		}
	}
}

func TestCastVoteToggleIsIdempotentInPairs(t *testing.T) {
	s, db := newService(t)
	card := testutil.SeedCard(t, db, "Ada")

	for i := 0; i < 3; i++ {
		cast(t, s, card.ID, "A", "dislike")
		res := cast(t, s, card.ID, "A", "dislike")
		if res.Card.Likes != 0 || res.Card.Dislikes != 0 {
			t.Fatalf("round %d: counters %d/%d, want 0/0", i, res.Card.Likes, res.Card.Dislikes)
		}
	}
	st, err := s.VoteStatus(context.Background(), card.ID, "A")
	if err != nil {
		t.Fatal(err)
	}
	if st.Voted || st.Kind != nil {
		t.Errorf("status = %+v, want no vote", st)
	}
	assertLedger(t, s)
}

func TestCastVoteSwitch(t *testing.T) {
	s, db := newService(t)
	card := testutil.SeedCard(t, db, "Ada")

	cast(t, s, card.ID, "A", "like")
	res := cast(t, s, card.ID, "A", "dislike")
	if res.Transition != vote.Switch {
		t.Errorf("transition = %s, want switch", res.Transition)
	}
	if res.Card.Likes != 0 || res.Card.Dislikes != 1 {
		t.Errorf("counters %d/%d, want 0/1", res.Card.Likes, res.Card.Dislikes)
	}
	res = cast(t, s, card.ID, "A", "like")
	if res.Card.Likes != 1 || res.Card.Dislikes != 0 {
		t.Errorf("counters %d/%d, want 1/0", res.Card.Likes, res.Card.Dislikes)
	}
	assertLedger(t, s)
}

func TestCastVoteIsolatesVoters(t *testing.T) {
	s, db := newService(t)
	card := testutil.SeedCard(t, db, "Ada")
	other := testutil.SeedCard(t, db, "Bo")

	cast(t, s, card.ID, "A", "like")
	cast(t, s, card.ID, "B", "dislike")
	cast(t, s, other.ID, "A", "dislike")

	// A retracting on card must not touch B's vote or A's vote on other.
	cast(t, s, card.ID, "A", "like")

	ctx := context.Background()
	if st, _ := s.VoteStatus(ctx, card.ID, "B"); !st.Voted || *st.Kind != vote.Dislike {
		t.Errorf("B on card = %+v", st)
	}
	if st, _ := s.VoteStatus(ctx, other.ID, "A"); !st.Voted || *st.Kind != vote.Dislike {
		t.Errorf("A on other = %+v", st)
	}
	got, _ := s.GetCard(ctx, other.ID)
	if got.Likes != 0 || got.Dislikes != 1 {
		t.Errorf("other counters %d/%d", got.Likes, got.Dislikes)
	}
	assertLedger(t, s)
}

func TestCastVoteReadAfterWrite(t *testing.T) {
	s, db := newService(t)
	card := testutil.SeedCard(t, db, "Ada")

	res := cast(t, s, card.ID, "A", "like")
	stored, err := s.GetCard(context.Background(), card.ID)
	if err != nil {
		t.Fatal(err)
	}
	if res.Card.Likes != stored.Likes || res.Card.Dislikes != stored.Dislikes {
		t.Errorf("returned %d/%d, stored %d/%d", res.Card.Likes, res.Card.Dislikes, stored.Likes, stored.Dislikes)
	}
}

func TestCastVoteInvalidKind(t *testing.T) {
	s, db := newService(t)
	card := testutil.SeedCard(t, db, "Ada")

	for _, kind := range []string{"", "LIKE", "upvote"} {
		_, err := s.CastVote(context.Background(), card.ID, "A", kind)
		if !errors.Is(err, apperr.ErrInvalidArgument) {
			t.Errorf("kind %q: err = %v, want ErrInvalidArgument", kind, err)
		}
	}
	if st, _ := s.VoteStatus(context.Background(), card.ID, "A"); st.Voted {
		t.Error("invalid kind wrote a vote")
	}
}

func TestCastVoteUnknownCard(t *testing.T) {
	s, _ := newService(t)
	_, err := s.CastVote(context.Background(), 4242, "A", "like")
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

// racingStore makes the first FindVote of a transaction miss while a vote
// from the same voter lands, as if a concurrent request committed between
// the read and the insert.
type racingStore struct {
	*sqlstore.DB
	kind  vote.Kind
	fired bool
}

func (r *racingStore) InVoteTx(ctx context.Context, fn func(tx cardservice.VoteTx) error) error {
	return r.DB.InVoteTx(ctx, func(tx cardservice.VoteTx) error {
		return fn(&racingTx{VoteTx: tx, store: r})
	})
}

type racingTx struct {
	cardservice.VoteTx
	store *racingStore
}

func (r *racingTx) FindVote(ctx context.Context, cardID int64, voterKey string) (*models.Vote, error) {
	if r.store.fired {
		return r.VoteTx.FindVote(ctx, cardID, voterKey)
	}
	r.store.fired = true
	if _, err := r.VoteTx.InsertVote(ctx, cardID, voterKey, r.store.kind); err != nil {
		return nil, err
	}
	if err := r.VoteTx.AdjustCounters(ctx, cardID, vote.DeltaFor(vote.Create, r.store.kind)); err != nil {
		return nil, err
	}
	return nil, nil
}

func TestCastVoteConcurrentFirstVotesCountOnce(t *testing.T) {
	db := testutil.TestDB(t)
	card := testutil.SeedCard(t, db, "Ada")
	s := cardservice.NewService(&racingStore{DB: db, kind: vote.Like})

	res := cast(t, s, card.ID, "A", "like")
	if res.Transition != vote.Duplicate {
		t.Errorf("transition = %s, want duplicate", res.Transition)
	}
	if res.Card.Likes != 1 || res.Card.Dislikes != 0 {
		t.Errorf("counters %d/%d, want 1/0", res.Card.Likes, res.Card.Dislikes)
	}
	assertLedger(t, s)

	// The next sequential like is an ordinary toggle off.
	res = cast(t, s, card.ID, "A", "like")
	if res.Transition != vote.Retract || res.Card.Likes != 0 {
		t.Errorf("after race: transition=%s likes=%d", res.Transition, res.Card.Likes)
	}
	assertLedger(t, s)
}

func TestCastVoteConcurrentOppositeFirstVoteSwitches(t *testing.T) {
	db := testutil.TestDB(t)
	card := testutil.SeedCard(t, db, "Ada")
	s := cardservice.NewService(&racingStore{DB: db, kind: vote.Dislike})

	res := cast(t, s, card.ID, "A", "like")
	if res.Transition != vote.Switch {
		t.Errorf("transition = %s, want switch", res.Transition)
	}
	if res.Card.Likes != 1 || res.Card.Dislikes != 0 {
		t.Errorf("counters %d/%d, want 1/0", res.Card.Likes, res.Card.Dislikes)
	}
	assertLedger(t, s)
}

func TestCastVoteParallel(t *testing.T) {
	s, db := newService(t)
	card := testutil.SeedCard(t, db, "Ada")

	const voters = 16
	var wg sync.WaitGroup
	errs := make(chan error, voters*2)
	for i := 0; i < voters; i++ {
		key := fmt.Sprintf("10.0.0.%d", i)
		kind := "like"
		if i%2 == 1 {
			kind = "dislike"
		}
		wg.Add(2)
		for j := 0; j < 2; j++ {
			go func() {
				defer wg.Done()
				if _, err := s.CastVote(context.Background(), card.ID, key, kind); err != nil {
					errs <- err
				}
			}()
		}
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("CastVote: %v", err)
	}

	// Every voter cast the same kind twice, so all votes are retracted.
	got, err := s.GetCard(context.Background(), card.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Likes != 0 || got.Dislikes != 0 {
		t.Errorf("counters %d/%d, want 0/0", got.Likes, got.Dislikes)
	}
	assertLedger(t, s)
}

func TestRecomputeCountersRepairsDrift(t *testing.T) {
	s, db := newService(t)
	card := testutil.SeedCard(t, db, "Ada")
	cast(t, s, card.ID, "A", "like")

	if _, err := db.Conn().Exec(`UPDATE cards SET likes = 5, dislikes = 2 WHERE id = ?`, card.ID); err != nil {
		t.Fatal(err)
	}
	fixed, err := s.RecomputeCounters(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(fixed) != 1 || fixed[0].LedgerLikes != 1 || fixed[0].LedgerDislikes != 0 {
		t.Fatalf("fixed = %+v", fixed)
	}
	assertLedger(t, s)
}
