package handlers

import (
	"net/http"

	"skillarena/internal/models"
	"skillarena/internal/services"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
)

type ContestHandler struct {
	contests *services.ContestService
	logger   zerolog.Logger
}

func NewContestHandler(contests *services.ContestService, logger zerolog.Logger) *ContestHandler {
	return &ContestHandler{
		contests: contests,
		logger:   logger,
	}
}

func (h *ContestHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, offset := pagination(r)
	contests, err := h.contests.ListContests(r.Context(), models.ContestFilter{
		Status:     models.ContestStatus(q.Get("status")),
		GameType:   models.GameType(q.Get("game_type")),
		Difficulty: models.Difficulty(q.Get("difficulty")),
		Limit:      limit,
		Offset:     offset,
	})
	if err != nil {
		respondWithServiceError(w, h.logger, err, "Failed to list contests")
		return
	}
	respondWithJSON(w, http.StatusOK, contests)
}

func (h *ContestHandler) Get(w http.ResponseWriter, r *http.Request) {
	contest, err := h.contests.GetContest(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		respondWithServiceError(w, h.logger, err, "Failed to fetch contest")
		return
	}
	respondWithJSON(w, http.StatusOK, contest)
}

func (h *ContestHandler) Join(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	// Only private contests need a body.
	var req models.JoinContestRequest
	if !decodeOptionalJSON(w, r, &req) {
		return
	}

	resp, err := h.contests.JoinContest(r.Context(), mux.Vars(r)["id"], userID, req.AccessCode)
	if err != nil {
		respondWithServiceError(w, h.logger, err, "Failed to join contest")
		return
	}
	respondWithJSON(w, http.StatusOK, resp)
}

func (h *ContestHandler) SubmitResult(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req models.SubmitResultRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	resp, err := h.contests.SubmitResult(r.Context(), mux.Vars(r)["id"], userID, &req)
	if err != nil {
		respondWithServiceError(w, h.logger, err, "Failed to submit result")
		return
	}
	respondWithJSON(w, http.StatusCreated, resp)
}

func (h *ContestHandler) Leaderboard(w http.ResponseWriter, r *http.Request) {
	results, err := h.contests.Leaderboard(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		respondWithServiceError(w, h.logger, err, "Failed to fetch leaderboard")
		return
	}
	respondWithJSON(w, http.StatusOK, results)
}
