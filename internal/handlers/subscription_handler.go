package handlers

import (
	"net/http"

	"skillarena/internal/models"
	"skillarena/internal/services"

	"github.com/rs/zerolog"
)

type SubscriptionHandler struct {
	payments *services.PaymentService
	logger   zerolog.Logger
}

func NewSubscriptionHandler(payments *services.PaymentService, logger zerolog.Logger) *SubscriptionHandler {
	return &SubscriptionHandler{
		payments: payments,
		logger:   logger,
	}
}

func (h *SubscriptionHandler) Plans(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, h.payments.ListPlans())
}

func (h *SubscriptionHandler) Purchase(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req models.PurchaseSubscriptionRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	resp, err := h.payments.PurchaseSubscription(r.Context(), userID, req.PlanID)
	if err != nil {
		respondWithServiceError(w, h.logger, err, "Subscription purchase failed")
		return
	}
	respondWithJSON(w, http.StatusCreated, resp)
}

// Verify settles a subscription order through the same path as deposits.
func (h *SubscriptionHandler) Verify(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req models.VerifyPaymentRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if _, err := h.payments.VerifyPayment(r.Context(), userID, &req); err != nil {
		respondWithServiceError(w, h.logger, err, "Subscription verification failed")
		return
	}

	status, err := h.payments.SubscriptionStatus(r.Context(), userID)
	if err != nil {
		respondWithServiceError(w, h.logger, err, "Failed to fetch subscription status")
		return
	}
	respondWithJSON(w, http.StatusOK, status)
}

func (h *SubscriptionHandler) Status(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	status, err := h.payments.SubscriptionStatus(r.Context(), userID)
	if err != nil {
		respondWithServiceError(w, h.logger, err, "Failed to fetch subscription status")
		return
	}
	respondWithJSON(w, http.StatusOK, status)
}
