// Package events publishes ledger and contest lifecycle events to the
// ledger_events topic exchange. Publishing happens after commit and is
// best-effort: a failed publish never rolls back a ledger change.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"skillarena/internal/models"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const Exchange = "ledger_events"

const (
	TransactionCreated   = "transaction.created"
	TransactionCompleted = "transaction.completed"
	TransactionFailed    = "transaction.failed"
	TransactionCancelled = "transaction.cancelled"
	ContestStarted       = "contest.started"
	ContestEnded         = "contest.ended"
	ContestCancelled     = "contest.cancelled"
)

type Event struct {
	ID            string          `json:"event_id"`
	RoutingKey    string          `json:"routing_key"`
	TransactionID string          `json:"transaction_id,omitempty"`
	ContestID     string          `json:"contest_id,omitempty"`
	UserID        int64           `json:"user_id,omitempty"`
	Type          string          `json:"type,omitempty"`
	Amount        decimal.Decimal `json:"amount"`
	Status        string          `json:"status"`
	OccurredAt    time.Time       `json:"occurred_at"`
}

func TransactionEvent(routingKey string, t *models.Transaction, now time.Time) Event {
	return Event{
		ID:            uuid.NewString(),
		RoutingKey:    routingKey,
		TransactionID: t.ID,
		UserID:        t.UserID,
		Type:          string(t.Type),
		Amount:        t.Amount,
		Status:        string(t.Status),
		OccurredAt:    now,
	}
}

func ContestEvent(routingKey string, c *models.Contest, now time.Time) Event {
	return Event{
		ID:         uuid.NewString(),
		RoutingKey: routingKey,
		ContestID:  c.ID,
		Amount:     c.PrizePool,
		Status:     string(c.Status),
		OccurredAt: now,
	}
}

type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

type RabbitMQPublisher struct {
	channel *amqp.Channel
	logger  zerolog.Logger
}

func NewRabbitMQPublisher(ch *amqp.Channel, logger zerolog.Logger) *RabbitMQPublisher {
	return &RabbitMQPublisher{channel: ch, logger: logger}
}

// DeclareExchange makes sure the topic exchange exists. It is idempotent.
func DeclareExchange(ch *amqp.Channel) error {
	if err := ch.ExchangeDeclare(Exchange, "topic", true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare exchange: %w", err)
	}
	return nil
}

func (p *RabbitMQPublisher) Publish(ctx context.Context, event Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	err = p.channel.PublishWithContext(ctx,
		Exchange,
		event.RoutingKey,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			MessageId:    event.ID,
			Timestamp:    event.OccurredAt,
			Body:         body,
			DeliveryMode: amqp.Persistent,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish message: %w", err)
	}

	p.logger.Debug().Str("routing_key", event.RoutingKey).Str("event_id", event.ID).Msg("Event published")
	return nil
}

// NopPublisher drops every event. Used when RABBITMQ_URL is unset.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }
