// Package audit persists ledger events to MongoDB.
package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

const collectionName = "audit_logs"

type Log struct {
	ID            string    `bson:"_id"`
	RoutingKey    string    `bson:"routing_key"`
	TransactionID string    `bson:"transaction_id,omitempty"`
	ContestID     string    `bson:"contest_id,omitempty"`
	UserID        int64     `bson:"user_id,omitempty"`
	Type          string    `bson:"type,omitempty"`
	Amount        string    `bson:"amount"`
	Status        string    `bson:"status"`
	OccurredAt    time.Time `bson:"occurred_at"`
	ProcessedAt   time.Time `bson:"processed_at"`
}

type Saver interface {
	Save(ctx context.Context, log Log) error
}

type MongoRepository struct {
	collection *mongo.Collection
}

func NewMongoRepository(client *mongo.Client, dbName string) *MongoRepository {
	return &MongoRepository{collection: client.Database(dbName).Collection(collectionName)}
}

// Save upserts by event id, so a redelivered message does not create a
// second document.
func (r *MongoRepository) Save(ctx context.Context, log Log) error {
	_, err := r.collection.ReplaceOne(ctx,
		bson.D{{Key: "_id", Value: log.ID}},
		log,
		options.Replace().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("failed to insert audit log: %w", err)
	}
	return nil
}

func amountString(d decimal.Decimal) string {
	return d.StringFixed(2)
}
