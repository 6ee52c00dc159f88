package sse

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/starford/tally/internal/models"
	"github.com/starford/tally/internal/vote"
)

func drain(ch chan []byte) []string {
	time.Sleep(50 * time.Millisecond)
	var out []string
	for {
		select {
		case msg := <-ch:
			out = append(out, string(msg))
		default:
			return out
		}
	}
}

func TestSubscribeUnsubscribe(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()
	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients")
	}
	ch := b.Subscribe()
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client")
	}
	b.Unsubscribe(ch)
	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients after unsub")
	}
}

func TestCardVotedDelivery(t *testing.T) {
	b := NewBroker(time.Hour)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.CardVoted(models.Card{ID: 7, Likes: 3, Dislikes: 1}, vote.Switch)

	select {
	case msg := <-ch:
		s := string(msg)
		if !strings.HasPrefix(s, "event: card.voted\n") {
			t.Errorf("missing event type in %q", s)
		}
		for _, want := range []string{`"cardId":7`, `"likes":3`, `"dislikes":1`, `"transition":"switch"`} {
			if !strings.Contains(s, want) {
				t.Errorf("missing %s in %q", want, s)
			}
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for message")
	}
}

func TestStatsUpdatedThrottle(t *testing.T) {
	b := NewBroker(500 * time.Millisecond)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.CardCreated(models.Card{ID: 1, Name: "Ada"})
	b.CardVoted(models.Card{ID: 1, Likes: 1}, vote.Create)
	b.Publish(Event{Type: "other", Data: map[string]string{}})

	statsCount, cardCount := 0, 0
	for _, s := range drain(ch) {
		switch {
		case strings.Contains(s, "event: "+TypeStatsUpdated):
			statsCount++
		case strings.Contains(s, "event: card."):
			cardCount++
		}
	}
	if cardCount != 2 {
		t.Errorf("card events = %d, want 2", cardCount)
	}
	if statsCount != 1 {
		t.Errorf("stats events = %d, want 1 (throttled)", statsCount)
	}
}

func TestSSEHandler(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req := httptest.NewRequest(http.MethodGet, "/api/events", nil).WithContext(ctx)
	w := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		b.ServeHTTP(w, req)
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client from handler")
	}

	b.CardCreated(models.Card{ID: 9, Name: "Acme"})
	time.Sleep(50 * time.Millisecond)

	cancel()
	<-done

	if ct := w.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type = %q", ct)
	}
	body := w.Body.String()
	if !strings.Contains(body, "event: card.created") || !strings.Contains(body, `"name":"Acme"`) {
		t.Errorf("handler output missing event: %q", body)
	}

	time.Sleep(50 * time.Millisecond)
	if b.ClientCount() != 0 {
		t.Errorf("client not cleaned up after disconnect")
	}
}

func TestPublishDropsOnFullBuffer(t *testing.T) {
	b := NewBroker(time.Second)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	// The client buffer holds 64; the rest must be dropped without blocking.
	for i := 0; i < 100; i++ {
		b.CardVoted(models.Card{ID: int64(i)}, vote.Create)
	}
	if n := len(drain(ch)); n > 64 {
		t.Errorf("delivered %d messages, buffer is 64", n)
	}
}

func TestCloseStopsBroker(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	ch := b.Subscribe()
	b.Close()

	select {
	case _, ok := <-ch:
		if ok {
			t.Fatal("expected subscriber channel to be closed")
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for channel close")
	}
	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients after close")
	}

	b.CardCreated(models.Card{ID: 1})
	b.CardVoted(models.Card{ID: 1}, vote.Retract)
	if sub := b.Subscribe(); sub == nil {
		t.Fatal("Subscribe returned nil after close")
	}
}
