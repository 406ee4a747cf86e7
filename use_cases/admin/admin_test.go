package admin

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/giovaniif/e-commerce/inventory/domain"
	"github.com/giovaniif/e-commerce/inventory/domain/item"
	"github.com/giovaniif/e-commerce/inventory/infra/locks"
	"github.com/giovaniif/e-commerce/inventory/infra/repositories"
	"github.com/giovaniif/e-commerce/inventory/use_cases/ledger"
)

var now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

func newAdmin() (*Admin, *repositories.ItemRepositoryMemory) {
	repo := repositories.NewItemRepositoryMemory()
	clock := fixedClock{now: now}
	uc := NewAdmin(ledger.NewLedger(repo, clock), repo, locks.NewKeyedLockMemory(time.Second), clock, zap.NewNop(), Defaults{ReorderPoint: 10, ReorderQuantity: 50})
	return uc, repo
}

func ptr(v int32) *int32 { return &v }

func TestAddInventory_AppliesDefaults(t *testing.T) {
	uc, repo := newAdmin()

	it, err := uc.AddInventory(context.Background(), AddInput{Sku: "A", ProductId: 7, QuantityOnHand: 30, WarehouseId: "WH-1"})
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if it.ReorderPoint != 10 || it.ReorderQuantity != 50 {
		t.Fatalf("expected defaults 10/50, got %d/%d", it.ReorderPoint, it.ReorderQuantity)
	}
	stored, err := repo.GetItem(context.Background(), "A")
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if stored.ProductId != 7 || stored.WarehouseId != "WH-1" || stored.Status != item.StatusInStock || stored.Version != 1 {
		t.Fatalf("unexpected stored item %+v", stored)
	}
}

func TestAddInventory_ExplicitThresholds(t *testing.T) {
	uc, _ := newAdmin()

	it, err := uc.AddInventory(context.Background(), AddInput{Sku: "A", QuantityOnHand: 4, ReorderPoint: ptr(0), ReorderQuantity: ptr(12)})
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if it.ReorderPoint != 0 || it.ReorderQuantity != 12 || it.Status != item.StatusInStock {
		t.Fatalf("expected 0/12 IN_STOCK, got %d/%d %s", it.ReorderPoint, it.ReorderQuantity, it.Status)
	}
}

func TestAddInventory_Rejections(t *testing.T) {
	uc, _ := newAdmin()
	ctx := context.Background()

	if _, err := uc.AddInventory(ctx, AddInput{Sku: "A", QuantityOnHand: 1}); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if _, err := uc.AddInventory(ctx, AddInput{Sku: "A", QuantityOnHand: 1}); !errors.Is(err, domain.ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}
	if _, err := uc.AddInventory(ctx, AddInput{Sku: "B", QuantityOnHand: -1}); !errors.Is(err, domain.ErrInvalidQuantity) {
		t.Fatalf("expected ErrInvalidQuantity, got %v", err)
	}
	if _, err := uc.AddInventory(ctx, AddInput{QuantityOnHand: 1}); !errors.Is(err, domain.ErrInvalidQuantity) {
		t.Fatalf("expected ErrInvalidQuantity, got %v", err)
	}
	if _, err := uc.AddInventory(ctx, AddInput{Sku: "C", ReorderQuantity: ptr(-5)}); !errors.Is(err, domain.ErrInvalidQuantity) {
		t.Fatalf("expected ErrInvalidQuantity, got %v", err)
	}
}

func TestRestock_OutOfStockBecomesInStock(t *testing.T) {
	uc, _ := newAdmin()
	ctx := context.Background()
	if _, err := uc.AddInventory(ctx, AddInput{Sku: "SKU1", QuantityOnHand: 0, ReorderPoint: ptr(5)}); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}

	it, err := uc.Restock(ctx, StockInput{Sku: "SKU1", Quantity: 20})
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if it.QuantityAvailable != 20 || it.Status != item.StatusInStock {
		t.Fatalf("expected 20 IN_STOCK, got %d %s", it.QuantityAvailable, it.Status)
	}
	if _, err := uc.Restock(ctx, StockInput{Sku: "SKU1", Quantity: 0}); !errors.Is(err, domain.ErrInvalidQuantity) {
		t.Fatalf("expected ErrInvalidQuantity, got %v", err)
	}
	if _, err := uc.Restock(ctx, StockInput{Sku: "missing", Quantity: 1}); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRestock_RejectsOverflow(t *testing.T) {
	uc, repo := newAdmin()
	ctx := context.Background()
	if _, err := uc.AddInventory(ctx, AddInput{Sku: "SKU1", QuantityOnHand: 10}); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}

	if _, err := uc.Restock(ctx, StockInput{Sku: "SKU1", Quantity: math.MaxInt32}); !errors.Is(err, domain.ErrInvalidQuantity) {
		t.Fatalf("expected ErrInvalidQuantity, got %v", err)
	}
	stored, _ := repo.GetItem(ctx, "SKU1")
	if stored.QuantityOnHand != 10 || stored.QuantityAvailable != 10 || stored.Status != item.StatusInStock || stored.Version != 1 {
		t.Fatalf("expected untouched 10 IN_STOCK, got %+v", stored)
	}
}

func TestUpdateStock(t *testing.T) {
	uc, repo := newAdmin()
	ctx := context.Background()
	if _, err := uc.AddInventory(ctx, AddInput{Sku: "A", QuantityOnHand: 10, ReorderPoint: ptr(2)}); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	stored, _ := repo.GetItem(ctx, "A")
	stored.Reserve(6)
	_ = repo.Save(ctx, stored)

	if _, err := uc.UpdateStock(ctx, StockInput{Sku: "A", Quantity: 5}); !errors.Is(err, domain.ErrInvariant) {
		t.Fatalf("expected ErrInvariant, got %v", err)
	}
	it, err := uc.UpdateStock(ctx, StockInput{Sku: "A", Quantity: 7})
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if it.QuantityAvailable != 1 || it.Status != item.StatusLowStock {
		t.Fatalf("expected 1 LOW_STOCK, got %d %s", it.QuantityAvailable, it.Status)
	}
}
