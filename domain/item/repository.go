package item

import "context"

type Totals struct {
	QuantityOnHand   int64
	QuantityReserved int64
}

// Repository stores ledger rows keyed by sku. Reads return copies; Save
// succeeds only if the stored Version still equals it.Version and bumps it.
type Repository interface {
	GetItem(ctx context.Context, sku string) (*Item, error)
	GetItems(ctx context.Context, skus []string) ([]*Item, error)
	Create(ctx context.Context, it *Item) error
	Save(ctx context.Context, it *Item) error
	LowStockItems(ctx context.Context) ([]*Item, error)
	ItemsByWarehouse(ctx context.Context, warehouseId string) ([]*Item, error)
	CountByStatus(ctx context.Context, status Status) (int64, error)
	Totals(ctx context.Context) (Totals, error)
}
