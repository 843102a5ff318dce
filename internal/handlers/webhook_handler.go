package handlers

import (
	"io"
	"net/http"

	"skillarena/internal/services"

	"github.com/rs/zerolog"
)

const (
	SignatureHeader = "X-Razorpay-Signature"
	maxWebhookBody  = 1 << 20
)

type WebhookHandler struct {
	payments *services.PaymentService
	logger   zerolog.Logger
}

func NewWebhookHandler(payments *services.PaymentService, logger zerolog.Logger) *WebhookHandler {
	return &WebhookHandler{
		payments: payments,
		logger:   logger,
	}
}

// Razorpay receives the gateway's event callbacks. The signature covers the
// raw body, so it is read before any decoding. Any non-2xx reply makes the
// gateway redeliver.
func (h *WebhookHandler) Razorpay(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid_request", "Unable to read request body")
		return
	}

	if err := h.payments.HandleWebhook(r.Context(), body, r.Header.Get(SignatureHeader)); err != nil {
		respondWithServiceError(w, h.logger, err, "Webhook processing failed")
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
