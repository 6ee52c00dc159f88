package api

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/starford/tally/internal/cardservice"
	"github.com/starford/tally/internal/models"
)

// TitleResolver returns the title of a linked page, or "" when unknown.
type TitleResolver interface {
	Resolve(ctx context.Context, url string) string
}

// Handler holds API route handlers.
type Handler struct {
	svc    *cardservice.Service
	titles TitleResolver
}

// NewHandler creates a new Handler. titles may be nil, in which case the
// title lookup always answers "".
func NewHandler(svc *cardservice.Service, titles TitleResolver) *Handler {
	return &Handler{svc: svc, titles: titles}
}

func cardID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid card id"))
		return 0, false
	}
	return id, true
}

// ListCards handles GET /api/cards.
//
//	@Summary		List cards newest first
//	@Tags			cards
//	@Produce		json
//	@Param			type	query		string	false	"Filter by type"	Enums(person, organization)
//	@Param			side	query		string	false	"Filter by side"	Enums(good, bad)
//	@Success		200		{array}		Card
//	@Router			/cards [get]
func (h *Handler) ListCards(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	cards, err := h.svc.ListCards(r.Context(), models.CardFilter{Type: q.Get("type"), Side: q.Get("side")})
	if err != nil {
		writeError(w, err, "list cards")
		return
	}
	writeJSON(w, http.StatusOK, cards)
}

// GetCard handles GET /api/cards/{id}.
//
//	@Summary		Get a single card
//	@Tags			cards
//	@Produce		json
//	@Param			id	path		int	true	"Card ID"
//	@Success		200	{object}	Card
//	@Failure		404	{object}	errResponse
//	@Router			/cards/{id} [get]
func (h *Handler) GetCard(w http.ResponseWriter, r *http.Request) {
	id, ok := cardID(w, r)
	if !ok {
		return
	}
	card, err := h.svc.GetCard(r.Context(), id)
	if err != nil {
		writeError(w, err, "get card", slog.Int64("card_id", id))
		return
	}
	writeJSON(w, http.StatusOK, card)
}

// CreateCard handles POST /api/cards.
//
//	@Summary		Submit a card
//	@Tags			cards
//	@Accept			json
//	@Produce		json
//	@Param			body	body		CreateCardRequest	true	"Card to create"
//	@Success		201		{object}	Card
//	@Failure		400		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Router			/cards [post]
func (h *Handler) CreateCard(w http.ResponseWriter, r *http.Request) {
	var req CreateCardRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	card, err := h.svc.CreateCard(r.Context(), req.toModel())
	if err != nil {
		writeError(w, err, "create card", slog.String("name", req.Name))
		return
	}
	writeJSON(w, http.StatusCreated, card)
}

// CreateDispute handles POST /api/cards/{id}/dispute.
//
//	@Summary		Dispute a card
//	@Tags			cards
//	@Accept			json
//	@Produce		json
//	@Param			id		path		int				true	"Card ID"
//	@Param			body	body		DisputeRequest	true	"Dispute"
//	@Success		201		{object}	DisputeResponse
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Router			/cards/{id}/dispute [post]
func (h *Handler) CreateDispute(w http.ResponseWriter, r *http.Request) {
	id, ok := cardID(w, r)
	if !ok {
		return
	}
	var req DisputeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	d, err := h.svc.CreateDispute(r.Context(), id, models.NewDispute{Name: req.Name, Email: req.Email, Reason: req.Reason})
	if err != nil {
		writeError(w, err, "create dispute", slog.Int64("card_id", id))
		return
	}
	writeJSON(w, http.StatusCreated, DisputeResponse{Message: "Dispute submitted successfully", Dispute: d})
}

// Stats handles GET /api/stats.
//
//	@Summary		Dashboard aggregates
//	@Tags			stats
//	@Produce		json
//	@Success		200	{object}	models.Stats
//	@Router			/stats [get]
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	s, err := h.svc.Stats(r.Context())
	if err != nil {
		writeError(w, err, "stats")
		return
	}
	writeJSON(w, http.StatusOK, s)
}

// FetchTitle handles GET /api/fetch-title.
//
//	@Summary		Resolve the title of an evidence link
//	@Tags			links
//	@Produce		json
//	@Param			url	query		string	true	"Page URL"
//	@Success		200	{object}	TitleResponse
//	@Failure		400	{object}	errResponse
//	@Router			/fetch-title [get]
func (h *Handler) FetchTitle(w http.ResponseWriter, r *http.Request) {
	url := strings.TrimSpace(r.URL.Query().Get("url"))
	if url == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("URL parameter is required"))
		return
	}
	var title string
	if h.titles != nil {
		title = h.titles.Resolve(r.Context(), url)
	}
	writeJSON(w, http.StatusOK, TitleResponse{Title: title})
}
