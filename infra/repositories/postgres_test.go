package repositories

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/giovaniif/e-commerce/inventory/domain"
	"github.com/giovaniif/e-commerce/inventory/domain/reservation"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set")
	}
	db, err := OpenPostgres(context.Background(), dsn)
	if err != nil {
		t.Fatalf("open postgres: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestItemRepositoryPostgres_SaveChecksVersion(t *testing.T) {
	ctx := context.Background()
	repo := NewItemRepositoryPostgres(openTestDB(t))
	sku := "pg-" + uuid.NewString()

	if err := repo.Create(ctx, mustItem(t, sku, 10, 5)); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if err := repo.Create(ctx, mustItem(t, sku, 10, 5)); !errors.Is(err, domain.ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}

	first, err := repo.GetItem(ctx, sku)
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	stale, _ := repo.GetItem(ctx, sku)

	first.Reserve(4)
	if err := repo.Save(ctx, first); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	stale.Reserve(1)
	if err := repo.Save(ctx, stale); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}

	got, _ := repo.GetItem(ctx, sku)
	if got.QuantityReserved != 4 || got.QuantityAvailable != 6 {
		t.Fatalf("unexpected item: %+v", got)
	}
}

func TestReservationRepositoryPostgres_RoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := NewReservationRepositoryPostgres(openTestDB(t))
	created := time.Now().UTC().Add(-time.Hour).Truncate(time.Microsecond)
	res := reservation.New(uuid.NewString(), "order-"+uuid.NewString(),
		[]reservation.Line{{Sku: "B", Quantity: 2}, {Sku: "A", Quantity: 1}}, created, reservation.DefaultTTL)

	if err := repo.Create(ctx, res); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}

	got, err := repo.Get(ctx, res.Id)
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if len(got.Items) != 2 || got.Items[0].Sku != "B" || got.Items[1].Sku != "A" {
		t.Fatalf("expected items in creation order, got %v", got.Items)
	}

	expired, _ := repo.FindExpired(ctx, time.Now().UTC())
	found := false
	for _, r := range expired {
		if r.Id == res.Id {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected %s among expired reservations", res.Id)
	}

	_ = got.Release(time.Now().UTC(), true)
	if err := repo.Save(ctx, got); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	byOrder, _ := repo.FindByOrderId(ctx, res.OrderId)
	if len(byOrder) != 1 || byOrder[0].Status != reservation.StatusExpired || byOrder[0].ReleasedAt == nil {
		t.Fatalf("unexpected reservations for order: %+v", byOrder)
	}

	_ = got.Confirm(time.Now().UTC())
	got.Status = reservation.StatusConfirmed
	if err := repo.Save(ctx, got); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected ErrConflict saving over EXPIRED, got %v", err)
	}
}
