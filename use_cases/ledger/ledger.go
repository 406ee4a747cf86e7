package ledger

import (
	"context"

	"github.com/giovaniif/e-commerce/inventory/domain/item"
	"github.com/giovaniif/e-commerce/inventory/protocols"
)

// Ledger applies quantity bookkeeping to single ledger rows. Every method
// expects the caller to hold protocols.SkuLockKey(sku) across the call, so the
// read, the mutation and the write are one critical section.
type Ledger struct {
	itemRepository item.Repository
	clock          protocols.Clock
}

func NewLedger(itemRepository item.Repository, clock protocols.Clock) *Ledger {
	return &Ledger{
		itemRepository: itemRepository,
		clock:          clock,
	}
}

func (l *Ledger) Get(ctx context.Context, sku string) (*item.Item, error) {
	return l.itemRepository.GetItem(ctx, sku)
}

// Reserve reports false, without writing, when quantity exceeds availability.
func (l *Ledger) Reserve(ctx context.Context, sku string, quantity int32) (bool, error) {
	it, err := l.itemRepository.GetItem(ctx, sku)
	if err != nil {
		return false, err
	}
	if !it.Reserve(quantity) {
		return false, nil
	}
	if err := l.save(ctx, it); err != nil {
		return false, err
	}
	return true, nil
}

// Release returns the quantity actually given back, which is less than
// quantity when the row held less.
func (l *Ledger) Release(ctx context.Context, sku string, quantity int32) (int32, error) {
	var released int32
	_, err := l.mutate(ctx, sku, func(it *item.Item) error {
		released = it.Release(quantity)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return released, nil
}

func (l *Ledger) Confirm(ctx context.Context, sku string, quantity int32) error {
	_, err := l.mutate(ctx, sku, func(it *item.Item) error {
		return it.Confirm(quantity)
	})
	return err
}

func (l *Ledger) UndoConfirm(ctx context.Context, sku string, quantity int32) error {
	_, err := l.mutate(ctx, sku, func(it *item.Item) error {
		return it.UndoConfirm(quantity)
	})
	return err
}

func (l *Ledger) Restock(ctx context.Context, sku string, quantity int32) (*item.Item, error) {
	return l.mutate(ctx, sku, func(it *item.Item) error {
		return it.Restock(quantity, l.clock.Now())
	})
}

func (l *Ledger) SetOnHand(ctx context.Context, sku string, quantity int32) (*item.Item, error) {
	return l.mutate(ctx, sku, func(it *item.Item) error {
		return it.SetOnHand(quantity)
	})
}

func (l *Ledger) mutate(ctx context.Context, sku string, apply func(it *item.Item) error) (*item.Item, error) {
	it, err := l.itemRepository.GetItem(ctx, sku)
	if err != nil {
		return nil, err
	}
	if err := apply(it); err != nil {
		return nil, err
	}
	if err := l.save(ctx, it); err != nil {
		return nil, err
	}
	return it, nil
}

func (l *Ledger) save(ctx context.Context, it *item.Item) error {
	it.Touch(l.clock.Now())
	return l.itemRepository.Save(ctx, it)
}
