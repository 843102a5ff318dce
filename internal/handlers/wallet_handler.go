package handlers

import (
	"net/http"

	"skillarena/internal/models"
	"skillarena/internal/services"

	"github.com/rs/zerolog"
)

type WalletHandler struct {
	wallets      *services.WalletService
	transactions *services.TransactionService
	payments     *services.PaymentService
	logger       zerolog.Logger
}

func NewWalletHandler(wallets *services.WalletService, transactions *services.TransactionService, payments *services.PaymentService, logger zerolog.Logger) *WalletHandler {
	return &WalletHandler{
		wallets:      wallets,
		transactions: transactions,
		payments:     payments,
		logger:       logger,
	}
}

func (h *WalletHandler) GetWallet(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	wallet, err := h.wallets.GetOrCreateWallet(r.Context(), userID)
	if err != nil {
		respondWithServiceError(w, h.logger, err, "Failed to fetch wallet")
		return
	}
	respondWithJSON(w, http.StatusOK, wallet)
}

func (h *WalletHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	limit, offset := pagination(r)
	txns, err := h.transactions.ListTransactions(r.Context(), models.TransactionFilter{
		UserID: &userID,
		Type:   models.TransactionType(r.URL.Query().Get("type")),
		Status: models.TransactionStatus(r.URL.Query().Get("status")),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		respondWithServiceError(w, h.logger, err, "Failed to fetch transactions")
		return
	}
	respondWithJSON(w, http.StatusOK, txns)
}

func (h *WalletHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	limit, offset := pagination(r)
	history, err := h.wallets.GetBalanceHistory(r.Context(), userID, limit, offset)
	if err != nil {
		respondWithServiceError(w, h.logger, err, "Failed to fetch balance history")
		return
	}
	respondWithJSON(w, http.StatusOK, history)
}

func (h *WalletHandler) AddMoney(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req models.AddMoneyRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	resp, err := h.payments.AddMoney(r.Context(), userID, &req)
	if err != nil {
		respondWithServiceError(w, h.logger, err, "Add money failed")
		return
	}
	respondWithJSON(w, http.StatusCreated, resp)
}

func (h *WalletHandler) VerifyPayment(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req models.VerifyPaymentRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	resp, err := h.payments.VerifyPayment(r.Context(), userID, &req)
	if err != nil {
		respondWithServiceError(w, h.logger, err, "Payment verification failed")
		return
	}
	respondWithJSON(w, http.StatusOK, resp)
}

func (h *WalletHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req models.WithdrawalRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	txn, err := h.payments.RequestWithdrawal(r.Context(), userID, &req)
	if err != nil {
		respondWithServiceError(w, h.logger, err, "Withdrawal request failed")
		return
	}
	respondWithJSON(w, http.StatusCreated, txn)
}
