package router

import (
	"net/http"

	"skillarena/internal/handlers"
	"skillarena/internal/idempotency"
	"skillarena/internal/middleware"
	"skillarena/internal/models"
	"skillarena/internal/services"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

type Services struct {
	Users          *services.UserService
	Auth           *services.AuthService
	Wallets        *services.WalletService
	Transactions   *services.TransactionService
	Contests       *services.ContestService
	Payments       *services.PaymentService
	Idempotency    idempotency.Repository
	RateLimit      rate.Limit
	RateLimitBurst int
}

func SetupRouter(svc Services, logger zerolog.Logger) *mux.Router {
	authHandler := handlers.NewAuthHandler(svc.Users, svc.Auth, logger)
	userHandler := handlers.NewUserHandler(svc.Users, logger)
	walletHandler := handlers.NewWalletHandler(svc.Wallets, svc.Transactions, svc.Payments, logger)
	contestHandler := handlers.NewContestHandler(svc.Contests, logger)
	subscriptionHandler := handlers.NewSubscriptionHandler(svc.Payments, logger)
	webhookHandler := handlers.NewWebhookHandler(svc.Payments, logger)
	adminHandler := handlers.NewAdminHandler(svc.Contests, svc.Transactions, svc.Payments, svc.Wallets, logger)

	r := mux.NewRouter()

	rateLimiter := middleware.NewRateLimiter(svc.RateLimit, svc.RateLimitBurst)
	authenticate := middleware.Authentication(svc.Auth, logger)
	idempotent := middleware.Idempotency(svc.Idempotency, logger)

	r.Use(middleware.Recover(logger))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORS())
	r.Use(rateLimiter.Middleware())

	api := r.PathPrefix("/api/v1").Subrouter()

	auth := api.PathPrefix("/auth").Subrouter()
	auth.Use(middleware.RequestValidation())
	auth.HandleFunc("/register", authHandler.Register).Methods("POST")
	auth.HandleFunc("/login", authHandler.Login).Methods("POST")
	auth.HandleFunc("/refresh", authHandler.Refresh).Methods("POST")

	// The gateway signs the raw body; no JWT.
	api.HandleFunc("/razorpay/webhook", webhookHandler.Razorpay).Methods("POST")

	users := api.PathPrefix("/users").Subrouter()
	users.Use(authenticate)
	users.HandleFunc("/me", userHandler.Me).Methods("GET")

	wallet := api.PathPrefix("/wallet").Subrouter()
	wallet.Use(authenticate)
	wallet.Use(middleware.RequestValidation())
	wallet.Use(idempotent)
	wallet.HandleFunc("", walletHandler.GetWallet).Methods("GET")
	wallet.HandleFunc("/transactions", walletHandler.ListTransactions).Methods("GET")
	wallet.HandleFunc("/history", walletHandler.GetHistory).Methods("GET")
	wallet.HandleFunc("/add", walletHandler.AddMoney).Methods("POST")
	wallet.HandleFunc("/verify", walletHandler.VerifyPayment).Methods("POST")
	wallet.HandleFunc("/withdraw", walletHandler.Withdraw).Methods("POST")

	contests := api.PathPrefix("/contests").Subrouter()
	contests.Use(authenticate)
	contests.Use(middleware.RequestValidation())
	contests.Use(idempotent)
	contests.HandleFunc("", contestHandler.List).Methods("GET")
	contests.HandleFunc("/{id}", contestHandler.Get).Methods("GET")
	contests.HandleFunc("/{id}/join", contestHandler.Join).Methods("POST")
	contests.HandleFunc("/{id}/result", contestHandler.SubmitResult).Methods("POST")
	contests.HandleFunc("/{id}/leaderboard", contestHandler.Leaderboard).Methods("GET")

	subscriptions := api.PathPrefix("/subscriptions").Subrouter()
	subscriptions.HandleFunc("/plans", subscriptionHandler.Plans).Methods("GET")
	protectedSubs := subscriptions.PathPrefix("").Subrouter()
	protectedSubs.Use(authenticate)
	protectedSubs.Use(middleware.RequestValidation())
	protectedSubs.Use(idempotent)
	protectedSubs.HandleFunc("/purchase", subscriptionHandler.Purchase).Methods("POST")
	protectedSubs.HandleFunc("/verify", subscriptionHandler.Verify).Methods("POST")
	protectedSubs.HandleFunc("/status", subscriptionHandler.Status).Methods("GET")

	admin := api.PathPrefix("/admin").Subrouter()
	admin.Use(authenticate)
	admin.Use(middleware.RequireRole(string(models.RoleAdmin)))
	admin.Use(middleware.RequestValidation())
	admin.HandleFunc("/contests", adminHandler.CreateContest).Methods("POST")
	admin.HandleFunc("/contests/{id}/start", adminHandler.StartContest).Methods("POST")
	admin.HandleFunc("/contests/{id}/end", adminHandler.EndContest).Methods("POST")
	admin.HandleFunc("/contests/{id}/cancel", adminHandler.CancelContest).Methods("POST")
	admin.HandleFunc("/contests/{id}/commission", adminHandler.LockCommission).Methods("POST")
	admin.HandleFunc("/transactions", adminHandler.ListTransactions).Methods("GET")
	admin.HandleFunc("/transactions/{id}/approve", adminHandler.ApproveWithdrawal).Methods("POST")
	admin.HandleFunc("/transactions/{id}/reject", adminHandler.RejectWithdrawal).Methods("POST")
	admin.HandleFunc("/credits", adminHandler.IssueCredit).Methods("POST")
	admin.HandleFunc("/wallets/{userId}/reconcile", adminHandler.Reconcile).Methods("GET")
	admin.HandleFunc("/users/{id}", userHandler.GetUser).Methods("GET")
	admin.HandleFunc("/users/{id}/role", userHandler.UpdateRole).Methods("PUT")

	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	}).Methods("GET")

	return r
}
