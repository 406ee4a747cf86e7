package reservation

import (
	"context"
	"time"
)

type Repository interface {
	Get(ctx context.Context, reservationId string) (*Reservation, error)
	FindByOrderId(ctx context.Context, orderId string) ([]*Reservation, error)
	Create(ctx context.Context, r *Reservation) error
	// Save fails with domain.ErrConflict unless the stored row is ACTIVE.
	Save(ctx context.Context, r *Reservation) error
	// FindExpired returns ACTIVE reservations with ExpiresAt before now.
	FindExpired(ctx context.Context, now time.Time) ([]*Reservation, error)
	CountByStatus(ctx context.Context, status Status) (int64, error)
}
