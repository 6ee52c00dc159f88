package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/starford/tally/internal/cardservice"
)

// NewRouter creates a chi router with all API routes mounted.
// events, if non-nil, is mounted at GET /events.
func NewRouter(svc *cardservice.Service, titles TitleResolver, events http.Handler) chi.Router {
	h := NewHandler(svc, titles)

	r := chi.NewRouter()

	r.Route("/cards", func(r chi.Router) {
		r.Get("/", h.ListCards)
		r.Post("/", h.CreateCard)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.GetCard)
			r.Get("/vote", h.VoteStatus)
			r.Post("/vote", h.CastVote)
			r.Post("/dispute", h.CreateDispute)
		})
	})

	r.Get("/stats", h.Stats)
	r.Get("/fetch-title", h.FetchTitle)

	if events != nil {
		r.Get("/events", events.ServeHTTP)
	}
	return r
}

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// MountHealth registers /health/live and /health/ready. Ready fails with 503
// when the store does not answer within two seconds.
func MountHealth(r chi.Router, store Pinger) {
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := store.Ping(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
}
