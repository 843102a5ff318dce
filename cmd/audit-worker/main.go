package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"skillarena/internal/audit"
	"skillarena/internal/config"
	"skillarena/internal/logger"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

func main() {
	cfg := config.LoadConfig()
	log := logger.InitLogger(cfg.LogLevel, cfg.Environment)

	if cfg.MongoURI == "" || cfg.RabbitMQURL == "" {
		log.Fatal().Msg("MONGO_URI and RABBITMQ_URL are required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	mongoClient, err := mongo.Connect(options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create MongoDB client")
	}
	defer func() {
		if err := mongoClient.Disconnect(context.Background()); err != nil {
			log.Error().Err(err).Msg("Failed to disconnect MongoDB")
		}
	}()

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := mongoClient.Ping(pingCtx, nil); err != nil {
		log.Fatal().Err(err).Msg("MongoDB is not responding")
	}
	log.Info().Msg("Connected to MongoDB")

	conn, err := amqp.DialConfig(cfg.RabbitMQURL, amqp.Config{
		Properties: amqp.Table{"connection_name": "AuditWorker_Consumer"},
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to RabbitMQ")
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open channel")
	}
	defer ch.Close()

	if err := audit.Setup(ch); err != nil {
		log.Fatal().Err(err).Msg("Failed to set up audit queue")
	}

	consumer := audit.NewConsumer(audit.NewMongoRepository(mongoClient, cfg.MongoDB), log)
	if err := consumer.Run(ctx, ch); err != nil {
		log.Error().Err(err).Msg("Audit worker stopped")
		os.Exit(1)
	}
	log.Info().Msg("Audit worker shut down")
}
