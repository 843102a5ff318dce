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

type AdminHandler struct {
	contests     *services.ContestService
	transactions *services.TransactionService
	payments     *services.PaymentService
	wallets      *services.WalletService
	logger       zerolog.Logger
}

func NewAdminHandler(
	contests *services.ContestService,
	transactions *services.TransactionService,
	payments *services.PaymentService,
	wallets *services.WalletService,
	logger zerolog.Logger,
) *AdminHandler {
	return &AdminHandler{
		contests:     contests,
		transactions: transactions,
		payments:     payments,
		wallets:      wallets,
		logger:       logger,
	}
}

func (h *AdminHandler) CreateContest(w http.ResponseWriter, r *http.Request) {
	var req models.CreateContestRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	adminID, _ := middleware.GetUserID(r)
	contest, err := h.contests.CreateContest(r.Context(), adminID, &req)
	if err != nil {
		respondWithServiceError(w, h.logger, err, "Failed to create contest")
		return
	}
	respondWithJSON(w, http.StatusCreated, contest)
}

func (h *AdminHandler) StartContest(w http.ResponseWriter, r *http.Request) {
	contest, err := h.contests.StartContest(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		respondWithServiceError(w, h.logger, err, "Failed to start contest")
		return
	}
	respondWithJSON(w, http.StatusOK, contest)
}

func (h *AdminHandler) EndContest(w http.ResponseWriter, r *http.Request) {
	var req models.EndContestRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	contest, err := h.contests.EndContest(r.Context(), mux.Vars(r)["id"], req.Winners)
	if err != nil {
		respondWithServiceError(w, h.logger, err, "Failed to end contest")
		return
	}
	respondWithJSON(w, http.StatusOK, contest)
}

func (h *AdminHandler) CancelContest(w http.ResponseWriter, r *http.Request) {
	var req models.CancelContestRequest
	if !decodeOptionalJSON(w, r, &req) {
		return
	}

	contest, err := h.contests.CancelContest(r.Context(), mux.Vars(r)["id"], req.Reason)
	if err != nil {
		respondWithServiceError(w, h.logger, err, "Failed to cancel contest")
		return
	}
	respondWithJSON(w, http.StatusOK, contest)
}

func (h *AdminHandler) LockCommission(w http.ResponseWriter, r *http.Request) {
	contest, err := h.contests.LockCommission(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		respondWithServiceError(w, h.logger, err, "Failed to calculate commission")
		return
	}
	respondWithJSON(w, http.StatusOK, contest)
}

func (h *AdminHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, offset := pagination(r)
	filter := models.TransactionFilter{
		Type:        models.TransactionType(q.Get("type")),
		Status:      models.TransactionStatus(q.Get("status")),
		ReferenceID: q.Get("reference_id"),
		Limit:       limit,
		Offset:      offset,
	}
	if raw := q.Get("user_id"); raw != "" {
		userID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			respondWithError(w, http.StatusBadRequest, "invalid_user_id", "Invalid user ID")
			return
		}
		filter.UserID = &userID
	}

	txns, err := h.transactions.ListTransactions(r.Context(), filter)
	if err != nil {
		respondWithServiceError(w, h.logger, err, "Failed to list transactions")
		return
	}
	respondWithJSON(w, http.StatusOK, txns)
}

func (h *AdminHandler) ApproveWithdrawal(w http.ResponseWriter, r *http.Request) {
	adminID, _ := middleware.GetUserID(r)
	txn, err := h.payments.ApproveWithdrawal(r.Context(), adminID, mux.Vars(r)["id"])
	if err != nil {
		respondWithServiceError(w, h.logger, err, "Failed to approve withdrawal")
		return
	}
	respondWithJSON(w, http.StatusOK, txn)
}

func (h *AdminHandler) RejectWithdrawal(w http.ResponseWriter, r *http.Request) {
	var req models.ReviewRequest
	if !decodeOptionalJSON(w, r, &req) {
		return
	}

	adminID, _ := middleware.GetUserID(r)
	txn, err := h.payments.RejectWithdrawal(r.Context(), adminID, mux.Vars(r)["id"], req.Reason)
	if err != nil {
		respondWithServiceError(w, h.logger, err, "Failed to reject withdrawal")
		return
	}
	respondWithJSON(w, http.StatusOK, txn)
}

func (h *AdminHandler) IssueCredit(w http.ResponseWriter, r *http.Request) {
	var req models.CreditRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	adminID, _ := middleware.GetUserID(r)
	txn, err := h.payments.IssueCredit(r.Context(), adminID, &req)
	if err != nil {
		respondWithServiceError(w, h.logger, err, "Failed to issue credit")
		return
	}
	respondWithJSON(w, http.StatusCreated, txn)
}

func (h *AdminHandler) Reconcile(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(mux.Vars(r)["userId"], 10, 64)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid_user_id", "Invalid user ID")
		return
	}

	report, err := h.wallets.Reconcile(r.Context(), userID)
	if err != nil {
		respondWithServiceError(w, h.logger, err, "Failed to reconcile wallet")
		return
	}
	respondWithJSON(w, http.StatusOK, report)
}
