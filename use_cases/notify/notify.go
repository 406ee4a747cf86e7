package notify

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/giovaniif/e-commerce/inventory/domain/reservation"
	"github.com/giovaniif/e-commerce/inventory/protocols"
)

// DefaultPublishTimeout bounds how long a transition waits on the event
// publisher before the event is dropped and logged.
const DefaultPublishTimeout = 2 * time.Second

// Notifier fans a reservation transition out to the observer and the event
// publisher. Neither can fail the transition that already happened.
type Notifier struct {
	observer  protocols.Observer
	publisher protocols.EventPublisher
	clock     protocols.Clock
	logger    *zap.Logger
	timeout   time.Duration
}

func NewNotifier(observer protocols.Observer, publisher protocols.EventPublisher, clock protocols.Clock, logger *zap.Logger) *Notifier {
	if observer == nil {
		observer = protocols.NoopObserver{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Notifier{
		observer:  observer,
		publisher: publisher,
		clock:     clock,
		logger:    logger,
		timeout:   DefaultPublishTimeout,
	}
}

func (n *Notifier) WithPublishTimeout(timeout time.Duration) *Notifier {
	if timeout > 0 {
		n.timeout = timeout
	}
	return n
}

func (n *Notifier) Notify(ctx context.Context, eventType string, res *reservation.Reservation) {
	switch eventType {
	case protocols.EventReservationCreated:
		n.observer.ReservationCreated()
	case protocols.EventReservationConfirmed:
		n.observer.ReservationConfirmed()
	case protocols.EventReservationReleased:
		n.observer.ReservationReleased()
	case protocols.EventReservationExpired:
		n.observer.ReservationExpired()
	}

	if n.publisher == nil {
		return
	}
	event := NewEvent(eventType, res, n.clock.Now())
	publishCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), n.timeout)
	defer cancel()
	if err := n.publisher.Publish(publishCtx, event); err != nil {
		n.logger.Warn("failed to publish reservation event",
			zap.String("type", eventType),
			zap.String("reservation_id", res.Id),
			zap.Error(err),
		)
	}
}

func (n *Notifier) LowStockItems(count int64) {
	n.observer.LowStockItems(count)
}

func NewEvent(eventType string, res *reservation.Reservation, at time.Time) protocols.ReservationEvent {
	lines := make([]protocols.EventLine, len(res.Items))
	for i, line := range res.Items {
		lines[i] = protocols.EventLine{Sku: line.Sku, Quantity: line.Quantity}
	}
	return protocols.ReservationEvent{
		Type:          eventType,
		ReservationId: res.Id,
		OrderId:       res.OrderId,
		Items:         lines,
		OccurredAt:    at,
	}
}
