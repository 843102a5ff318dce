package handlers

import (
	"net/http"
	"strconv"

	"skillarena/internal/middleware"
	"skillarena/internal/models"
	"skillarena/internal/services"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
)

type UserHandler struct {
	userService *services.UserService
	logger      zerolog.Logger
}

func NewUserHandler(userService *services.UserService, logger zerolog.Logger) *UserHandler {
	return &UserHandler{
		userService: userService,
		logger:      logger,
	}
}

func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	user, err := h.userService.GetUserByID(r.Context(), userID)
	if err != nil {
		respondWithServiceError(w, h.logger, err, "Failed to fetch user")
		return
	}
	respondWithJSON(w, http.StatusOK, user)
}

func (h *UserHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid_user_id", "Invalid user ID")
		return
	}

	user, err := h.userService.GetUserByID(r.Context(), userID)
	if err != nil {
		respondWithServiceError(w, h.logger, err, "Failed to fetch user")
		return
	}
	respondWithJSON(w, http.StatusOK, user)
}

func (h *UserHandler) UpdateRole(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid_user_id", "Invalid user ID")
		return
	}

	var req models.UpdateRoleRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	adminID, _ := middleware.GetUserID(r)
	if err := h.userService.UpdateUserRole(r.Context(), userID, req.Role, adminID); err != nil {
		respondWithServiceError(w, h.logger, err, "Failed to update user role")
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]string{
		"message": "User role updated successfully",
	})
}
