package api

import (
	"log/slog"
	"net/http"

	"github.com/starford/tally/internal/voter"
)

// CastVote handles POST /api/cards/{id}/vote.
//
// The caller is identified by voter.Key. Repeating the current vote retracts
// it, sending the opposite kind switches it.
//
//	@Summary		Like or dislike a card
//	@Tags			votes
//	@Accept			json
//	@Produce		json
//	@Param			id		path		int			true	"Card ID"
//	@Param			body	body		VoteRequest	true	"Vote"
//	@Success		200		{object}	Card
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Router			/cards/{id}/vote [post]
func (h *Handler) CastVote(w http.ResponseWriter, r *http.Request) {
	id, ok := cardID(w, r)
	if !ok {
		return
	}
	var req VoteRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	res, err := h.svc.CastVote(r.Context(), id, voter.Key(r), req.VoteType)
	if err != nil {
		writeError(w, err, "cast vote", slog.Int64("card_id", id))
		return
	}
	writeJSON(w, http.StatusOK, res.Card)
}

// VoteStatus handles GET /api/cards/{id}/vote.
//
//	@Summary		Current vote of the caller
//	@Tags			votes
//	@Produce		json
//	@Param			id	path		int	true	"Card ID"
//	@Success		200	{object}	vote.Status
//	@Router			/cards/{id}/vote [get]
func (h *Handler) VoteStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := cardID(w, r)
	if !ok {
		return
	}
	st, err := h.svc.VoteStatus(r.Context(), id, voter.Key(r))
	if err != nil {
		writeError(w, err, "vote status", slog.Int64("card_id", id))
		return
	}
	writeJSON(w, http.StatusOK, st)
}
