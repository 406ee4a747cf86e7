package item

import (
	"fmt"
	"math"
	"time"

	"github.com/giovaniif/e-commerce/inventory/domain"
)

type Status string

const (
	StatusInStock    Status = "IN_STOCK"
	StatusLowStock   Status = "LOW_STOCK"
	StatusOutOfStock Status = "OUT_OF_STOCK"
)

const (
	DefaultReorderPoint    int32 = 10
	DefaultReorderQuantity int32 = 50
)

// Item is the ledger row of one SKU. QuantityAvailable and Status are derived
// from QuantityOnHand, QuantityReserved and ReorderPoint and are recomputed by
// every mutator; they are never set on their own.
type Item struct {
	Sku               string
	ProductId         int64
	QuantityOnHand    int32
	QuantityReserved  int32
	QuantityAvailable int32
	ReorderPoint      int32
	ReorderQuantity   int32
	WarehouseId       string
	WarehouseLocation string
	Status            Status
	CreatedAt         time.Time
	UpdatedAt         time.Time
	LastRestockedAt   *time.Time
	Version           int64
}

func NewItem(sku string, quantityOnHand int32, reorderPoint int32, now time.Time) (*Item, error) {
	if sku == "" {
		return nil, domain.NewInvalidQuantityError("sku is required")
	}
	if quantityOnHand < 0 || reorderPoint < 0 {
		return nil, domain.NewInvalidQuantityError(fmt.Sprintf("negative quantity for sku %s", sku))
	}
	it := &Item{
		Sku:             sku,
		QuantityOnHand:  quantityOnHand,
		ReorderPoint:    reorderPoint,
		ReorderQuantity: DefaultReorderQuantity,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	it.recompute()
	return it, nil
}

func StatusFor(available int32, reorderPoint int32) Status {
	if available <= 0 {
		return StatusOutOfStock
	}
	if available <= reorderPoint {
		return StatusLowStock
	}
	return StatusInStock
}

func (i *Item) recompute() {
	i.QuantityAvailable = i.QuantityOnHand - i.QuantityReserved
	i.Status = StatusFor(i.QuantityAvailable, i.ReorderPoint)
}

// Reserve reports false without mutating when quantity exceeds availability.
func (i *Item) Reserve(quantity int32) bool {
	if quantity <= 0 || quantity > i.QuantityAvailable {
		return false
	}
	i.QuantityReserved += quantity
	i.recompute()
	return true
}

// Release never drives QuantityReserved below zero, so a late or duplicate
// release is harmless. It returns the quantity actually given back.
func (i *Item) Release(quantity int32) int32 {
	if quantity <= 0 {
		return 0
	}
	released := min(i.QuantityReserved, quantity)
	i.QuantityReserved -= released
	i.recompute()
	return released
}

func (i *Item) CanConfirm(quantity int32) error {
	if quantity <= 0 {
		return domain.NewInvalidQuantityError(fmt.Sprintf("confirm %d of sku %s", quantity, i.Sku))
	}
	if quantity > i.QuantityReserved || quantity > i.QuantityOnHand {
		return domain.NewInvariantError(fmt.Sprintf("confirm %d of sku %s with on hand %d and reserved %d", quantity, i.Sku, i.QuantityOnHand, i.QuantityReserved))
	}
	return nil
}

func (i *Item) Confirm(quantity int32) error {
	if err := i.CanConfirm(quantity); err != nil {
		return err
	}
	i.QuantityOnHand -= quantity
	i.QuantityReserved -= quantity
	i.recompute()
	return nil
}

// UndoConfirm puts back a confirmed quantity as on hand and reserved again.
// It is only used to roll back a transition that failed before it was stored.
func (i *Item) UndoConfirm(quantity int32) error {
	if quantity <= 0 || quantity > math.MaxInt32-i.QuantityOnHand || quantity > math.MaxInt32-i.QuantityReserved {
		return domain.NewInvalidQuantityError(fmt.Sprintf("undo confirm %d of sku %s", quantity, i.Sku))
	}
	i.QuantityOnHand += quantity
	i.QuantityReserved += quantity
	i.recompute()
	return nil
}

func (i *Item) Restock(quantity int32, now time.Time) error {
	if quantity <= 0 {
		return domain.NewInvalidQuantityError(fmt.Sprintf("restock %d of sku %s", quantity, i.Sku))
	}
	if quantity > math.MaxInt32-i.QuantityOnHand {
		return domain.NewInvalidQuantityError(fmt.Sprintf("restock %d of sku %s would exceed %d on hand", quantity, i.Sku, int32(math.MaxInt32)))
	}
	i.QuantityOnHand += quantity
	i.LastRestockedAt = &now
	i.recompute()
	return nil
}

// SetOnHand rejects a value below the reserved quantity instead of clamping it.
func (i *Item) SetOnHand(quantity int32) error {
	if quantity < 0 {
		return domain.NewInvalidQuantityError(fmt.Sprintf("on hand %d for sku %s", quantity, i.Sku))
	}
	if quantity < i.QuantityReserved {
		return domain.NewInvariantError(fmt.Sprintf("on hand %d below reserved %d for sku %s", quantity, i.QuantityReserved, i.Sku))
	}
	i.QuantityOnHand = quantity
	i.recompute()
	return nil
}

func (i *Item) NeedsReorder() bool {
	return i.QuantityAvailable <= i.ReorderPoint
}

func (i *Item) Touch(now time.Time) {
	i.UpdatedAt = now
}

func (i *Item) Clone() *Item {
	c := *i
	if i.LastRestockedAt != nil {
		t := *i.LastRestockedAt
		c.LastRestockedAt = &t
	}
	return &c
}
