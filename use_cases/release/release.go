package release

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/giovaniif/e-commerce/inventory/domain"
	"github.com/giovaniif/e-commerce/inventory/domain/reservation"
	"github.com/giovaniif/e-commerce/inventory/infra/tracing"
	"github.com/giovaniif/e-commerce/inventory/protocols"
	"github.com/giovaniif/e-commerce/inventory/use_cases/ledger"
	"github.com/giovaniif/e-commerce/inventory/use_cases/notify"
)

type Release struct {
	ledger                *ledger.Ledger
	reservationRepository reservation.Repository
	locker                protocols.Locker
	clock                 protocols.Clock
	notifier              *notify.Notifier
	logger                *zap.Logger
}

func NewRelease(
	ledger *ledger.Ledger,
	reservationRepository reservation.Repository,
	locker protocols.Locker,
	clock protocols.Clock,
	notifier *notify.Notifier,
	logger *zap.Logger,
) *Release {
	return &Release{
		ledger:                ledger,
		reservationRepository: reservationRepository,
		locker:                locker,
		clock:                 clock,
		notifier:              notifier,
		logger:                logger,
	}
}

// Release gives the held quantities back to the ledger and marks the
// reservation RELEASED. Only an ACTIVE reservation can be released.
func (r *Release) Release(ctx context.Context, input Input) error {
	return r.run(ctx, input.ReservationId, false)
}

// Expire runs the same path as Release for a reservation past its deadline
// and marks it EXPIRED instead.
func (r *Release) Expire(ctx context.Context, input Input) error {
	return r.run(ctx, input.ReservationId, true)
}

func (r *Release) run(ctx context.Context, reservationId string, expired bool) error {
	spanName := "reservation.release"
	if expired {
		spanName = "reservation.expire"
	}
	ctx, span := tracing.Start(ctx, spanName, attribute.String("reservation.id", reservationId))
	defer span.End()

	res, err := r.release(ctx, reservationId, expired)
	if err != nil {
		tracing.Fail(span, err)
		return err
	}

	eventType := protocols.EventReservationReleased
	if expired {
		eventType = protocols.EventReservationExpired
	}
	r.logger.Info("reservation released",
		zap.String("reservation_id", res.Id),
		zap.String("order_id", res.OrderId),
		zap.String("status", string(res.Status)),
	)
	r.notifier.Notify(ctx, eventType, res)
	return nil
}

func (r *Release) release(ctx context.Context, reservationId string, expired bool) (*reservation.Reservation, error) {
	unlockReservation, err := r.locker.Acquire(ctx, protocols.ReservationLockKey(reservationId))
	if err != nil {
		return nil, err
	}
	defer unlockReservation()

	res, err := r.reservationRepository.Get(ctx, reservationId)
	if err != nil {
		return nil, err
	}
	if err := res.EnsureActive(); err != nil {
		return nil, err
	}
	now := r.clock.Now()
	if expired && !res.IsExpired(now) {
		return nil, domain.NewInvalidStateError(fmt.Sprintf("reservation %s expires at %s", res.Id, res.ExpiresAt))
	}

	keys := make([]string, len(res.Items))
	for i, line := range res.Items {
		keys[i] = protocols.SkuLockKey(line.Sku)
	}
	unlockSkus, err := r.locker.Acquire(ctx, keys...)
	if err != nil {
		return nil, err
	}
	defer unlockSkus()

	released := make([]reservation.Line, 0, len(res.Items))
	for _, line := range res.Items {
		quantity, err := r.ledger.Release(ctx, line.Sku, line.Quantity)
		if err != nil {
			r.rollback(ctx, res.Id, released)
			return nil, err
		}
		released = append(released, reservation.Line{Sku: line.Sku, Quantity: quantity})
	}

	if err := res.Release(now, expired); err != nil {
		r.rollback(ctx, res.Id, released)
		return nil, err
	}
	if err := r.reservationRepository.Save(ctx, res); err != nil {
		r.rollback(ctx, res.Id, released)
		return nil, err
	}
	return res, nil
}

// rollback holds again what this call gave back, so a failed release leaves
// the ledger as it found it and a retry releases each line once. It runs
// while the sku locks are still held.
func (r *Release) rollback(ctx context.Context, reservationId string, released []reservation.Line) {
	ctx = context.WithoutCancel(ctx)
	for _, line := range released {
		if line.Quantity == 0 {
			continue
		}
		ok, err := r.ledger.Reserve(ctx, line.Sku, line.Quantity)
		if err == nil && !ok {
			err = domain.NewInvariantError(fmt.Sprintf("sku %s cannot hold %d again", line.Sku, line.Quantity))
		}
		if err != nil {
			r.logger.Error("failed to roll back released stock",
				zap.String("reservation_id", reservationId),
				zap.String("sku", line.Sku),
				zap.Int32("quantity", line.Quantity),
				zap.Error(err),
			)
		}
	}
}

type Input struct {
	ReservationId string
}
