package confirm

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/giovaniif/e-commerce/inventory/domain/reservation"
	"github.com/giovaniif/e-commerce/inventory/infra/tracing"
	"github.com/giovaniif/e-commerce/inventory/protocols"
	"github.com/giovaniif/e-commerce/inventory/use_cases/ledger"
	"github.com/giovaniif/e-commerce/inventory/use_cases/notify"
)

type Confirm struct {
	ledger                *ledger.Ledger
	reservationRepository reservation.Repository
	locker                protocols.Locker
	clock                 protocols.Clock
	notifier              *notify.Notifier
	logger                *zap.Logger
}

func NewConfirm(
	ledger *ledger.Ledger,
	reservationRepository reservation.Repository,
	locker protocols.Locker,
	clock protocols.Clock,
	notifier *notify.Notifier,
	logger *zap.Logger,
) *Confirm {
	return &Confirm{
		ledger:                ledger,
		reservationRepository: reservationRepository,
		locker:                locker,
		clock:                 clock,
		notifier:              notifier,
		logger:                logger,
	}
}

// Confirm turns an ACTIVE reservation into a permanent stock deduction. A
// reservation in any other status fails with domain.ErrInvalidState and the
// ledger is left alone.
func (c *Confirm) Confirm(ctx context.Context, input Input) error {
	ctx, span := tracing.Start(ctx, "reservation.confirm", attribute.String("reservation.id", input.ReservationId))
	defer span.End()

	res, err := c.confirm(ctx, input.ReservationId)
	if err != nil {
		tracing.Fail(span, err)
		return err
	}

	c.logger.Info("reservation confirmed",
		zap.String("reservation_id", res.Id),
		zap.String("order_id", res.OrderId),
	)
	c.notifier.Notify(ctx, protocols.EventReservationConfirmed, res)
	return nil
}

func (c *Confirm) confirm(ctx context.Context, reservationId string) (*reservation.Reservation, error) {
	unlockReservation, err := c.locker.Acquire(ctx, protocols.ReservationLockKey(reservationId))
	if err != nil {
		return nil, err
	}
	defer unlockReservation()

	res, err := c.reservationRepository.Get(ctx, reservationId)
	if err != nil {
		return nil, err
	}
	if err := res.EnsureActive(); err != nil {
		return nil, err
	}

	keys := make([]string, len(res.Items))
	for i, line := range res.Items {
		keys[i] = protocols.SkuLockKey(line.Sku)
	}
	unlockSkus, err := c.locker.Acquire(ctx, keys...)
	if err != nil {
		return nil, err
	}
	defer unlockSkus()

	// Check every line first so a broken row cannot leave the reservation
	// half confirmed.
	for _, line := range res.Items {
		it, err := c.ledger.Get(ctx, line.Sku)
		if err != nil {
			return nil, err
		}
		if err := it.CanConfirm(line.Quantity); err != nil {
			return nil, err
		}
	}
	confirmed := make([]reservation.Line, 0, len(res.Items))
	for _, line := range res.Items {
		if err := c.ledger.Confirm(ctx, line.Sku, line.Quantity); err != nil {
			c.rollback(ctx, res.Id, confirmed)
			return nil, err
		}
		confirmed = append(confirmed, line)
	}

	if err := res.Confirm(c.clock.Now()); err != nil {
		c.rollback(ctx, res.Id, confirmed)
		return nil, err
	}
	if err := c.reservationRepository.Save(ctx, res); err != nil {
		c.rollback(ctx, res.Id, confirmed)
		return nil, err
	}
	return res, nil
}

// rollback puts back the lines this call already deducted. It runs while the
// sku locks are still held.
func (c *Confirm) rollback(ctx context.Context, reservationId string, confirmed []reservation.Line) {
	ctx = context.WithoutCancel(ctx)
	for _, line := range confirmed {
		if err := c.ledger.UndoConfirm(ctx, line.Sku, line.Quantity); err != nil {
			c.logger.Error("failed to roll back confirmed stock",
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
