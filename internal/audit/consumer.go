package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"skillarena/internal/events"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

const (
	QueueName   = "audit_queue"
	consumerTag = "audit_worker"
)

var bindings = []string{"transaction.#", "contest.#"}

type Consumer struct {
	saver  Saver
	logger zerolog.Logger
	now    func() time.Time
}

func NewConsumer(saver Saver, logger zerolog.Logger) *Consumer {
	return &Consumer{saver: saver, logger: logger, now: time.Now}
}

// Handle decodes one message body and persists it. A decode failure is
// permanent; a save failure is worth retrying.
func (c *Consumer) Handle(ctx context.Context, body []byte) (retry bool, err error) {
	var event events.Event
	if err := json.Unmarshal(body, &event); err != nil {
		return false, fmt.Errorf("failed to decode event: %w", err)
	}
	if event.ID == "" {
		return false, fmt.Errorf("event has no id")
	}

	log := Log{
		ID:            event.ID,
		RoutingKey:    event.RoutingKey,
		TransactionID: event.TransactionID,
		ContestID:     event.ContestID,
		UserID:        event.UserID,
		Type:          event.Type,
		Amount:        amountString(event.Amount),
		Status:        event.Status,
		OccurredAt:    event.OccurredAt,
		ProcessedAt:   c.now(),
	}
	if err := c.saver.Save(ctx, log); err != nil {
		return true, err
	}
	return false, nil
}

// Setup declares the exchange and the durable audit queue and binds it to
// every transaction and contest routing key.
func Setup(ch *amqp.Channel) error {
	if err := ch.Qos(1, 0, false); err != nil {
		return fmt.Errorf("failed to set QoS: %w", err)
	}
	if err := events.DeclareExchange(ch); err != nil {
		return err
	}
	q, err := ch.QueueDeclare(QueueName, true, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("failed to declare queue: %w", err)
	}
	for _, key := range bindings {
		if err := ch.QueueBind(q.Name, key, events.Exchange, false, nil); err != nil {
			return fmt.Errorf("failed to bind queue to %s: %w", key, err)
		}
	}
	return nil
}

// Run consumes until ctx is done or the channel closes.
func (c *Consumer) Run(ctx context.Context, ch *amqp.Channel) error {
	msgs, err := ch.Consume(QueueName, consumerTag, false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("failed to register consumer: %w", err)
	}

	notifyClose := ch.NotifyClose(make(chan *amqp.Error, 1))
	c.logger.Info().Str("queue", QueueName).Msg("Audit worker waiting for messages")

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-notifyClose:
			if err != nil {
				return fmt.Errorf("channel closed: %w", err)
			}
			return nil
		case d, ok := <-msgs:
			if !ok {
				return fmt.Errorf("delivery channel closed")
			}
			c.deliver(ctx, d)
		}
	}
}

func (c *Consumer) deliver(ctx context.Context, d amqp.Delivery) {
	saveCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	retry, err := c.Handle(saveCtx, d.Body)
	if err != nil {
		c.logger.Error().Err(err).Bool("requeue", retry).Str("routing_key", d.RoutingKey).Msg("Failed to audit event")
		if nackErr := d.Nack(false, retry); nackErr != nil {
			c.logger.Error().Err(nackErr).Msg("Failed to nack message")
		}
		return
	}

	if err := d.Ack(false); err != nil {
		c.logger.Error().Err(err).Msg("Failed to ack message")
		return
	}
	c.logger.Debug().Str("routing_key", d.RoutingKey).Msg("Event audited")
}
