package check

import (
	"context"

	"github.com/giovaniif/e-commerce/inventory/domain/item"
)

type Check struct {
	itemRepository item.Repository
}

func NewCheck(itemRepository item.Repository) *Check {
	return &Check{itemRepository: itemRepository}
}

// Check reads availability without taking any lock. Results follow the order
// of skus; an unknown sku reports zero and not in stock.
func (c *Check) Check(ctx context.Context, input Input) ([]Result, error) {
	found, err := c.itemRepository.GetItems(ctx, input.Skus)
	if err != nil {
		return nil, err
	}
	bySku := make(map[string]*item.Item, len(found))
	for _, it := range found {
		bySku[it.Sku] = it
	}

	results := make([]Result, len(input.Skus))
	for i, sku := range input.Skus {
		results[i] = Result{Sku: sku}
		if it, ok := bySku[sku]; ok {
			results[i].Available = it.QuantityAvailable
			results[i].InStock = it.QuantityAvailable > 0
		}
	}
	return results, nil
}

type Input struct {
	Skus []string
}

type Result struct {
	Sku       string
	Available int32
	InStock   bool
}
