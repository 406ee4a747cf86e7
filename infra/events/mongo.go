package events

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/giovaniif/e-commerce/inventory/protocols"
)

const AuditCollection = "reservation_events"

type documentInserter interface {
	InsertOne(ctx context.Context, document any, opts ...options.Lister[options.InsertOneOptions]) (*mongo.InsertOneResult, error)
}

// MongoAuditLog keeps every reservation event as a document, one per
// transition, for later inspection.
type MongoAuditLog struct {
	collection documentInserter
}

func ConnectMongo(ctx context.Context, uri string) (*mongo.Client, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.WithoutCancel(ctx))
		return nil, err
	}
	return client, nil
}

func NewMongoAuditLog(collection documentInserter) *MongoAuditLog {
	return &MongoAuditLog{collection: collection}
}

func (a *MongoAuditLog) Publish(ctx context.Context, event protocols.ReservationEvent) error {
	if _, err := a.collection.InsertOne(ctx, event); err != nil {
		return fmt.Errorf("insert %s event: %w", event.Type, err)
	}
	return nil
}
