package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"skillarena/internal/config"
	"skillarena/internal/db"
	"skillarena/internal/events"
	"skillarena/internal/gateway/razorpay"
	"skillarena/internal/idempotency"
	"skillarena/internal/logger"
	"skillarena/internal/router"
	"skillarena/internal/services"
	"skillarena/internal/store"
	"skillarena/internal/store/memory"
	"skillarena/internal/store/mysql"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

func main() {
	cfg := config.LoadConfig()

	log := logger.InitLogger(cfg.LogLevel, cfg.Environment)
	log.Info().Str("environment", cfg.Environment).Msg("Starting application")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openStore(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open store")
	}
	defer st.Close()

	idem, closeIdem := openIdempotency(ctx, cfg, log)
	defer closeIdem()

	publisher, closePublisher := openPublisher(cfg, log)
	defer closePublisher()

	gw := razorpay.NewClient(razorpay.Config{
		KeyID:         cfg.RazorpayKeyID,
		KeySecret:     cfg.RazorpayKeySecret,
		WebhookSecret: cfg.RazorpayWebhookSecret,
		AccountNumber: cfg.RazorpayAccountNumber,
		Timeout:       cfg.GatewayTimeout,
	}, log)

	wallets := services.NewWalletService(st, log, cfg.Currency)
	transactions := services.NewTransactionService(st, log, publisher, cfg.Currency)
	users := services.NewUserService(st, wallets, log)
	contests := services.NewContestService(st, wallets, transactions, services.NewResultValidator(), publisher, log, cfg.CommissionPercent)
	payments := services.NewPaymentService(st, wallets, transactions, gw, log, cfg.Currency)

	handler := router.SetupRouter(router.Services{
		Users:          users,
		Auth:           services.NewAuthService(cfg.JWTSecret, st, log),
		Wallets:        wallets,
		Transactions:   transactions,
		Contests:       contests,
		Payments:       payments,
		Idempotency:    idem,
		RateLimit:      rate.Limit(cfg.RateLimitRPS),
		RateLimitBurst: cfg.RateLimitBurst,
	}, log)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Msgf("Server listening on port %s", cfg.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Graceful shutdown failed")
	}

	log.Info().Msg("Server stopped")
}

func openStore(ctx context.Context, cfg config.Config, log zerolog.Logger) (store.Store, error) {
	switch cfg.StoreDriver {
	case "memory":
		log.Warn().Msg("Using in-memory store, data is lost on restart")
		return memory.New(), nil
	case "mysql":
		database, err := db.InitDB(ctx, cfg.DBUrl, log)
		if err != nil {
			return nil, err
		}
		if err := db.RunMigrations(ctx, database, log); err != nil {
			database.Close()
			return nil, err
		}
		return mysql.New(database, log), nil
	default:
		return nil, errors.New("unknown STORE_DRIVER " + cfg.StoreDriver)
	}
}

// openIdempotency prefers Redis and falls back to a process-local cache.
func openIdempotency(ctx context.Context, cfg config.Config, log zerolog.Logger) (idempotency.Repository, func()) {
	if cfg.RedisAddr == "" {
		log.Warn().Msg("REDIS_ADDR not set, idempotency keys are kept in memory")
		return idempotency.NewMemoryRepository(), func() {}
	}

	client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		log.Error().Err(err).Msg("Redis is not responding, idempotency keys are kept in memory")
		client.Close()
		return idempotency.NewMemoryRepository(), func() {}
	}

	log.Info().Msg("Connected to Redis")
	return idempotency.NewRedisRepository(client), func() { client.Close() }
}

// openPublisher connects to RabbitMQ. Without a broker, events are dropped.
func openPublisher(cfg config.Config, log zerolog.Logger) (events.Publisher, func()) {
	if cfg.RabbitMQURL == "" {
		log.Warn().Msg("RABBITMQ_URL not set, ledger events are not published")
		return events.NopPublisher{}, func() {}
	}

	conn, err := amqp.DialConfig(cfg.RabbitMQURL, amqp.Config{
		Properties: amqp.Table{"connection_name": "SkillArena_API"},
	})
	if err != nil {
		log.Error().Err(err).Msg("Failed to connect to RabbitMQ, ledger events are not published")
		return events.NopPublisher{}, func() {}
	}

	ch, err := conn.Channel()
	if err != nil {
		log.Error().Err(err).Msg("Failed to open RabbitMQ channel")
		conn.Close()
		return events.NopPublisher{}, func() {}
	}
	if err := events.DeclareExchange(ch); err != nil {
		log.Error().Err(err).Msg("Failed to declare ledger exchange")
		ch.Close()
		conn.Close()
		return events.NopPublisher{}, func() {}
	}

	log.Info().Msg("Connected to RabbitMQ")
	return events.NewRabbitMQPublisher(ch, log), func() {
		ch.Close()
		conn.Close()
	}
}
