package admin

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/giovaniif/e-commerce/inventory/domain"
	"github.com/giovaniif/e-commerce/inventory/domain/item"
	"github.com/giovaniif/e-commerce/inventory/protocols"
	"github.com/giovaniif/e-commerce/inventory/use_cases/ledger"
)

type Defaults struct {
	ReorderPoint    int32
	ReorderQuantity int32
}

// Admin holds the administrative ledger mutations. They take the same sku
// lock as reservations.
type Admin struct {
	ledger         *ledger.Ledger
	itemRepository item.Repository
	locker         protocols.Locker
	clock          protocols.Clock
	logger         *zap.Logger
	defaults       Defaults
}

func NewAdmin(
	ledger *ledger.Ledger,
	itemRepository item.Repository,
	locker protocols.Locker,
	clock protocols.Clock,
	logger *zap.Logger,
	defaults Defaults,
) *Admin {
	if defaults.ReorderPoint < 0 {
		defaults.ReorderPoint = item.DefaultReorderPoint
	}
	if defaults.ReorderQuantity <= 0 {
		defaults.ReorderQuantity = item.DefaultReorderQuantity
	}
	return &Admin{
		ledger:         ledger,
		itemRepository: itemRepository,
		locker:         locker,
		clock:          clock,
		logger:         logger,
		defaults:       defaults,
	}
}

func (a *Admin) AddInventory(ctx context.Context, input AddInput) (*item.Item, error) {
	reorderPoint := a.defaults.ReorderPoint
	if input.ReorderPoint != nil {
		reorderPoint = *input.ReorderPoint
	}
	it, err := item.NewItem(input.Sku, input.QuantityOnHand, reorderPoint, a.clock.Now())
	if err != nil {
		return nil, err
	}
	it.ProductId = input.ProductId
	it.ReorderQuantity = a.defaults.ReorderQuantity
	if input.ReorderQuantity != nil {
		if *input.ReorderQuantity < 0 {
			return nil, domain.NewInvalidQuantityError(fmt.Sprintf("reorder quantity %d for sku %s", *input.ReorderQuantity, input.Sku))
		}
		it.ReorderQuantity = *input.ReorderQuantity
	}
	it.WarehouseId = input.WarehouseId
	it.WarehouseLocation = input.WarehouseLocation

	unlock, err := a.locker.Acquire(ctx, protocols.SkuLockKey(it.Sku))
	if err != nil {
		return nil, err
	}
	defer unlock()

	if err := a.itemRepository.Create(ctx, it); err != nil {
		return nil, err
	}
	a.logger.Info("inventory added",
		zap.String("sku", it.Sku),
		zap.Int32("quantity_on_hand", it.QuantityOnHand),
		zap.Int32("reorder_point", it.ReorderPoint),
	)
	return it, nil
}

// UpdateStock sets on hand to an absolute value. A value below the reserved
// quantity is rejected with domain.ErrInvariant.
func (a *Admin) UpdateStock(ctx context.Context, input StockInput) (*item.Item, error) {
	return a.withLock(ctx, input.Sku, func() (*item.Item, error) {
		return a.ledger.SetOnHand(ctx, input.Sku, input.Quantity)
	})
}

func (a *Admin) Restock(ctx context.Context, input StockInput) (*item.Item, error) {
	return a.withLock(ctx, input.Sku, func() (*item.Item, error) {
		return a.ledger.Restock(ctx, input.Sku, input.Quantity)
	})
}

func (a *Admin) withLock(ctx context.Context, sku string, apply func() (*item.Item, error)) (*item.Item, error) {
	unlock, err := a.locker.Acquire(ctx, protocols.SkuLockKey(sku))
	if err != nil {
		return nil, err
	}
	defer unlock()

	it, err := apply()
	if err != nil {
		return nil, err
	}
	a.logger.Info("stock updated",
		zap.String("sku", it.Sku),
		zap.Int32("quantity_on_hand", it.QuantityOnHand),
		zap.Int32("quantity_available", it.QuantityAvailable),
		zap.String("status", string(it.Status)),
	)
	return it, nil
}

type AddInput struct {
	Sku               string
	ProductId         int64
	QuantityOnHand    int32
	ReorderPoint      *int32
	ReorderQuantity   *int32
	WarehouseId       string
	WarehouseLocation string
}

type StockInput struct {
	Sku      string
	Quantity int32
}
