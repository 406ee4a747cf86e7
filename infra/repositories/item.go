package repositories

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/giovaniif/e-commerce/inventory/domain"
	"github.com/giovaniif/e-commerce/inventory/domain/item"
)

type ItemRepositoryMemory struct {
	mutex sync.RWMutex
	items map[string]*item.Item
}

func NewItemRepositoryMemory() *ItemRepositoryMemory {
	return &ItemRepositoryMemory{
		items: make(map[string]*item.Item),
	}
}

func (r *ItemRepositoryMemory) GetItem(ctx context.Context, sku string) (*item.Item, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	stored, ok := r.items[sku]
	if !ok {
		return nil, domain.NewNotFoundError("sku " + sku)
	}
	return stored.Clone(), nil
}

func (r *ItemRepositoryMemory) GetItems(ctx context.Context, skus []string) ([]*item.Item, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	found := make([]*item.Item, 0, len(skus))
	for _, sku := range skus {
		if stored, ok := r.items[sku]; ok {
			found = append(found, stored.Clone())
		}
	}
	return found, nil
}

func (r *ItemRepositoryMemory) Create(ctx context.Context, it *item.Item) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	if _, ok := r.items[it.Sku]; ok {
		return domain.NewAlreadyExistsError("sku " + it.Sku)
	}
	it.Version = 1
	r.items[it.Sku] = it.Clone()
	return nil
}

func (r *ItemRepositoryMemory) Save(ctx context.Context, it *item.Item) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	stored, ok := r.items[it.Sku]
	if !ok {
		return domain.NewNotFoundError("sku " + it.Sku)
	}
	if stored.Version != it.Version {
		return domain.NewConflictError(fmt.Sprintf("sku %s at version %d, saving %d", it.Sku, stored.Version, it.Version))
	}
	it.Version++
	r.items[it.Sku] = it.Clone()
	return nil
}

func (r *ItemRepositoryMemory) LowStockItems(ctx context.Context) ([]*item.Item, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	var low []*item.Item
	for _, stored := range r.items {
		if stored.NeedsReorder() {
			low = append(low, stored.Clone())
		}
	}
	sort.Slice(low, func(i, j int) bool { return low[i].Sku < low[j].Sku })
	return low, nil
}

func (r *ItemRepositoryMemory) ItemsByWarehouse(ctx context.Context, warehouseId string) ([]*item.Item, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	var found []*item.Item
	for _, stored := range r.items {
		if stored.WarehouseId == warehouseId {
			found = append(found, stored.Clone())
		}
	}
	sort.Slice(found, func(i, j int) bool { return found[i].Sku < found[j].Sku })
	return found, nil
}

func (r *ItemRepositoryMemory) CountByStatus(ctx context.Context, status item.Status) (int64, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	var count int64
	for _, stored := range r.items {
		if stored.Status == status {
			count++
		}
	}
	return count, nil
}

func (r *ItemRepositoryMemory) Totals(ctx context.Context) (item.Totals, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	var totals item.Totals
	for _, stored := range r.items {
		totals.QuantityOnHand += int64(stored.QuantityOnHand)
		totals.QuantityReserved += int64(stored.QuantityReserved)
	}
	return totals, nil
}
