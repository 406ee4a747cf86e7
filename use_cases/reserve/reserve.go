package reserve

import (
	"context"
	"fmt"
	"math"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/giovaniif/e-commerce/inventory/domain"
	"github.com/giovaniif/e-commerce/inventory/domain/reservation"
	"github.com/giovaniif/e-commerce/inventory/infra/tracing"
	"github.com/giovaniif/e-commerce/inventory/protocols"
	"github.com/giovaniif/e-commerce/inventory/use_cases/ledger"
	"github.com/giovaniif/e-commerce/inventory/use_cases/notify"
)

type Reserve struct {
	ledger                *ledger.Ledger
	reservationRepository reservation.Repository
	locker                protocols.Locker
	idGenerator           protocols.IdGenerator
	clock                 protocols.Clock
	notifier              *notify.Notifier
	logger                *zap.Logger
	ttl                   time.Duration
}

func NewReserve(
	ledger *ledger.Ledger,
	reservationRepository reservation.Repository,
	locker protocols.Locker,
	idGenerator protocols.IdGenerator,
	clock protocols.Clock,
	notifier *notify.Notifier,
	logger *zap.Logger,
) *Reserve {
	return &Reserve{
		ledger:                ledger,
		reservationRepository: reservationRepository,
		locker:                locker,
		idGenerator:           idGenerator,
		clock:                 clock,
		notifier:              notifier,
		logger:                logger,
		ttl:                   reservation.DefaultTTL,
	}
}

func (r *Reserve) WithTTL(ttl time.Duration) *Reserve {
	if ttl > 0 {
		r.ttl = ttl
	}
	return r
}

// Reserve holds stock for every requested line or for none. All sku locks are
// taken up front in one ordered acquisition and kept from the availability
// check until the reservation row is written.
func (r *Reserve) Reserve(ctx context.Context, input Input) (Output, error) {
	ctx, span := tracing.Start(ctx, "reservation.create", attribute.String("order.id", input.OrderId))
	defer span.End()

	lines, err := normalize(input)
	if err != nil {
		tracing.Fail(span, err)
		return Output{}, err
	}

	keys := make([]string, len(lines))
	for i, line := range lines {
		keys[i] = protocols.SkuLockKey(line.Sku)
	}
	unlock, err := r.locker.Acquire(ctx, keys...)
	if err != nil {
		tracing.Fail(span, err)
		return Output{}, err
	}
	defer unlock()

	for _, line := range lines {
		it, err := r.ledger.Get(ctx, line.Sku)
		if err != nil {
			tracing.Fail(span, err)
			return Output{}, err
		}
		if it.QuantityAvailable < line.Quantity {
			r.logger.Info("insufficient stock",
				zap.String("order_id", input.OrderId),
				zap.String("sku", line.Sku),
				zap.Int32("available", it.QuantityAvailable),
				zap.Int32("requested", line.Quantity),
			)
			span.SetAttributes(attribute.String("reservation.shortage_sku", line.Sku))
			return Output{
				Success: false,
				Message: fmt.Sprintf("Insufficient stock for SKU: %s (available: %d, requested: %d)", line.Sku, it.QuantityAvailable, line.Quantity),
				Shortage: &Shortage{
					Sku:       line.Sku,
					Available: it.QuantityAvailable,
					Requested: line.Quantity,
				},
			}, nil
		}
	}

	reserved := make([]reservation.Line, 0, len(lines))
	for _, line := range lines {
		ok, err := r.ledger.Reserve(ctx, line.Sku, line.Quantity)
		if err == nil && !ok {
			err = domain.NewInvariantError(fmt.Sprintf("sku %s lost availability while locked", line.Sku))
		}
		if err != nil {
			r.compensate(ctx, input.OrderId, reserved)
			tracing.Fail(span, err)
			return Output{}, err
		}
		reserved = append(reserved, line)
	}

	res := reservation.New(r.idGenerator.NewId(), input.OrderId, lines, r.clock.Now(), r.ttl)
	if err := r.reservationRepository.Create(ctx, res); err != nil {
		r.compensate(ctx, input.OrderId, reserved)
		tracing.Fail(span, err)
		return Output{}, err
	}
	unlock()

	span.SetAttributes(attribute.String("reservation.id", res.Id))
	r.logger.Info("reservation created",
		zap.String("reservation_id", res.Id),
		zap.String("order_id", res.OrderId),
		zap.Int("lines", len(res.Items)),
	)
	r.notifier.Notify(ctx, protocols.EventReservationCreated, res)

	return Output{
		ReservationId: res.Id,
		Success:       true,
		Message:       "Stock reserved successfully",
		ExpiresAt:     res.ExpiresAt,
	}, nil
}

// compensate gives back lines already reserved in this call. It runs while
// the sku locks are still held.
func (r *Reserve) compensate(ctx context.Context, orderId string, reserved []reservation.Line) {
	ctx = context.WithoutCancel(ctx)
	for _, line := range reserved {
		if _, err := r.ledger.Release(ctx, line.Sku, line.Quantity); err != nil {
			r.logger.Error("failed to roll back reserved stock",
				zap.String("order_id", orderId),
				zap.String("sku", line.Sku),
				zap.Int32("quantity", line.Quantity),
				zap.Error(err),
			)
		}
	}
}

// normalize validates the request and merges repeated skus, keeping the
// order in which each sku first appeared.
func normalize(input Input) ([]reservation.Line, error) {
	if input.OrderId == "" {
		return nil, domain.NewInvalidQuantityError("order id is required")
	}
	if len(input.Items) == 0 {
		return nil, domain.NewInvalidQuantityError("at least one item is required")
	}
	index := make(map[string]int, len(input.Items))
	var skus []string
	var totals []int64
	for _, it := range input.Items {
		if it.Sku == "" {
			return nil, domain.NewInvalidQuantityError("sku is required")
		}
		if it.Quantity <= 0 {
			return nil, domain.NewInvalidQuantityError(fmt.Sprintf("quantity %d for sku %s", it.Quantity, it.Sku))
		}
		i, ok := index[it.Sku]
		if !ok {
			i = len(skus)
			index[it.Sku] = i
			skus = append(skus, it.Sku)
			totals = append(totals, 0)
		}
		totals[i] += int64(it.Quantity)
		if totals[i] > math.MaxInt32 {
			return nil, domain.NewInvalidQuantityError(fmt.Sprintf("total quantity for sku %s exceeds %d", it.Sku, int32(math.MaxInt32)))
		}
	}
	lines := make([]reservation.Line, len(skus))
	for i, sku := range skus {
		lines[i] = reservation.Line{Sku: sku, Quantity: int32(totals[i])}
	}
	return lines, nil
}

type Item struct {
	Sku      string
	Quantity int32
}

type Input struct {
	OrderId string
	Items   []Item
}

type Shortage struct {
	Sku       string
	Available int32
	Requested int32
}

type Output struct {
	ReservationId string
	Success       bool
	Message       string
	Shortage      *Shortage
	ExpiresAt     time.Time
}
