package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/giovaniif/e-commerce/inventory/protocols"
)

var event = protocols.ReservationEvent{
	Type:          protocols.EventReservationCreated,
	ReservationId: "res-1",
	OrderId:       "order-1",
	Items:         []protocols.EventLine{{Sku: "A", Quantity: 2}},
	OccurredAt:    time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
}

type mockWriter struct {
	messages []kafka.Message
	err      error
	closed   bool
}

func (m *mockWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	m.messages = append(m.messages, msgs...)
	return m.err
}

func (m *mockWriter) Close() error {
	m.closed = true
	return nil
}

type mockInserter struct {
	documents []any
	err       error
}

func (m *mockInserter) InsertOne(ctx context.Context, document any, opts ...options.Lister[options.InsertOneOptions]) (*mongo.InsertOneResult, error) {
	m.documents = append(m.documents, document)
	return &mongo.InsertOneResult{}, m.err
}

type mockPublisher struct {
	calls int
	err   error
}

func (m *mockPublisher) Publish(ctx context.Context, event protocols.ReservationEvent) error {
	m.calls++
	return m.err
}

func TestKafkaPublisher_KeysByReservation(t *testing.T) {
	writer := &mockWriter{}
	p := NewKafkaPublisher(writer)

	if err := p.Publish(context.Background(), event); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if len(writer.messages) != 1 {
		t.Fatalf("expected one message, got %d", len(writer.messages))
	}
	msg := writer.messages[0]
	if string(msg.Key) != "res-1" {
		t.Fatalf("expected key res-1, got %s", msg.Key)
	}
	var decoded protocols.ReservationEvent
	if err := json.Unmarshal(msg.Value, &decoded); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if decoded.Type != protocols.EventReservationCreated || decoded.OrderId != "order-1" || len(decoded.Items) != 1 {
		t.Fatalf("unexpected payload %+v", decoded)
	}

	_ = p.Close()
	if !writer.closed {
		t.Fatalf("expected writer closed")
	}
}

func TestKafkaPublisher_WriteError(t *testing.T) {
	p := NewKafkaPublisher(&mockWriter{err: errors.New("leader not available")})

	if err := p.Publish(context.Background(), event); err == nil {
		t.Fatalf("expected error, got nil")
	}
}

func TestNewKafkaWriter_BoundsRetries(t *testing.T) {
	w := NewKafkaWriter([]string{"kafka:9092"}, "inventory.reservations")
	defer w.Close()

	if w.Topic != "inventory.reservations" || w.MaxAttempts != 3 || w.WriteTimeout != time.Second {
		t.Fatalf("unexpected writer config topic=%s attempts=%d timeout=%s", w.Topic, w.MaxAttempts, w.WriteTimeout)
	}
	if _, ok := w.Balancer.(*kafka.Hash); !ok {
		t.Fatalf("expected hash balancer, got %T", w.Balancer)
	}
}

func TestMongoAuditLog_InsertsEvent(t *testing.T) {
	inserter := &mockInserter{}
	a := NewMongoAuditLog(inserter)

	if err := a.Publish(context.Background(), event); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if len(inserter.documents) != 1 {
		t.Fatalf("expected one document, got %d", len(inserter.documents))
	}
	if doc, ok := inserter.documents[0].(protocols.ReservationEvent); !ok || doc.ReservationId != "res-1" {
		t.Fatalf("unexpected document %+v", inserter.documents[0])
	}

	inserter.err = errors.New("not primary")
	if err := a.Publish(context.Background(), event); err == nil {
		t.Fatalf("expected error, got nil")
	}
}

func TestMulti_PublishesToEverySink(t *testing.T) {
	failing := &mockPublisher{err: errors.New("down")}
	healthy := &mockPublisher{}

	err := Multi{failing, healthy}.Publish(context.Background(), event)
	if err == nil {
		t.Fatalf("expected error, got nil")
	}
	if failing.calls != 1 || healthy.calls != 1 {
		t.Fatalf("expected both sinks called once, got %d and %d", failing.calls, healthy.calls)
	}
	if err := (Multi{healthy}).Publish(context.Background(), event); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
}
