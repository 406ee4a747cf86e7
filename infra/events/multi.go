package events

import (
	"context"
	"errors"

	"github.com/giovaniif/e-commerce/inventory/protocols"
)

// Multi publishes to every sink and joins their errors. One failing sink
// does not stop the others.
type Multi []protocols.EventPublisher

func (m Multi) Publish(ctx context.Context, event protocols.ReservationEvent) error {
	var errs []error
	for _, p := range m {
		if err := p.Publish(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
