package protocols

import (
	"context"
	"time"
)

const (
	EventReservationCreated   = "reservation.created"
	EventReservationConfirmed = "reservation.confirmed"
	EventReservationReleased  = "reservation.released"
	EventReservationExpired   = "reservation.expired"
)

type EventLine struct {
	Sku      string `json:"sku" bson:"sku"`
	Quantity int32  `json:"quantity" bson:"quantity"`
}

type ReservationEvent struct {
	Type          string      `json:"type" bson:"type"`
	ReservationId string      `json:"reservationId" bson:"reservationId"`
	OrderId       string      `json:"orderId" bson:"orderId"`
	Items         []EventLine `json:"items" bson:"items"`
	OccurredAt    time.Time   `json:"occurredAt" bson:"occurredAt"`
}

// EventPublisher is best effort: callers log a failed publish and carry on.
type EventPublisher interface {
	Publish(ctx context.Context, event ReservationEvent) error
}
