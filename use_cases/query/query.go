package query

import (
	"context"

	"github.com/giovaniif/e-commerce/inventory/domain"
	"github.com/giovaniif/e-commerce/inventory/domain/item"
	"github.com/giovaniif/e-commerce/inventory/domain/reservation"
)

// Query is the read-only surface. Nothing here takes a lock, so results may
// trail mutations that are still in flight.
type Query struct {
	itemRepository        item.Repository
	reservationRepository reservation.Repository
}

func NewQuery(itemRepository item.Repository, reservationRepository reservation.Repository) *Query {
	return &Query{
		itemRepository:        itemRepository,
		reservationRepository: reservationRepository,
	}
}

func (q *Query) GetItem(ctx context.Context, sku string) (*item.Item, error) {
	return q.itemRepository.GetItem(ctx, sku)
}

func (q *Query) GetReservation(ctx context.Context, reservationId string) (*reservation.Reservation, error) {
	return q.reservationRepository.Get(ctx, reservationId)
}

func (q *Query) ReservationsByOrder(ctx context.Context, orderId string) ([]*reservation.Reservation, error) {
	return q.reservationRepository.FindByOrderId(ctx, orderId)
}

func (q *Query) LowStock(ctx context.Context) ([]*item.Item, error) {
	return q.itemRepository.LowStockItems(ctx)
}

func (q *Query) ItemsByWarehouse(ctx context.Context, warehouseId string) ([]*item.Item, error) {
	if warehouseId == "" {
		return nil, domain.NewInvalidQuantityError("warehouse id is required")
	}
	return q.itemRepository.ItemsByWarehouse(ctx, warehouseId)
}

func (q *Query) Stats(ctx context.Context) (Stats, error) {
	var stats Stats
	counts := []struct {
		status item.Status
		into   *int64
	}{
		{item.StatusInStock, &stats.InStock},
		{item.StatusLowStock, &stats.LowStock},
		{item.StatusOutOfStock, &stats.OutOfStock},
	}
	for _, c := range counts {
		n, err := q.itemRepository.CountByStatus(ctx, c.status)
		if err != nil {
			return Stats{}, err
		}
		*c.into = n
	}

	totals, err := q.itemRepository.Totals(ctx)
	if err != nil {
		return Stats{}, err
	}
	stats.TotalQuantity = totals.QuantityOnHand
	stats.TotalReserved = totals.QuantityReserved

	stats.ActiveReservations, err = q.reservationRepository.CountByStatus(ctx, reservation.StatusActive)
	if err != nil {
		return Stats{}, err
	}
	return stats, nil
}

type Stats struct {
	InStock            int64
	LowStock           int64
	OutOfStock         int64
	TotalQuantity      int64
	TotalReserved      int64
	ActiveReservations int64
}
