package reserve

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/giovaniif/e-commerce/inventory/domain"
	"github.com/giovaniif/e-commerce/inventory/domain/item"
	"github.com/giovaniif/e-commerce/inventory/domain/reservation"
	"github.com/giovaniif/e-commerce/inventory/infra/locks"
	"github.com/giovaniif/e-commerce/inventory/infra/repositories"
	"github.com/giovaniif/e-commerce/inventory/protocols"
	"github.com/giovaniif/e-commerce/inventory/use_cases/ledger"
	"github.com/giovaniif/e-commerce/inventory/use_cases/notify"
)

var now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

type sequenceIds struct{ next atomic.Int64 }

func (s *sequenceIds) NewId() string { return fmt.Sprintf("res-%d", s.next.Add(1)) }

type recordingPublisher struct {
	mutex  sync.Mutex
	events []protocols.ReservationEvent
}

func (p *recordingPublisher) Publish(ctx context.Context, event protocols.ReservationEvent) error {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	p.events = append(p.events, event)
	return nil
}

type failingReservationRepository struct {
	reservation.Repository
	createErr error
}

func (f *failingReservationRepository) Create(ctx context.Context, res *reservation.Reservation) error {
	return f.createErr
}

type fixture struct {
	items        *repositories.ItemRepositoryMemory
	reservations *repositories.ReservationRepositoryMemory
	publisher    *recordingPublisher
	uc           *Reserve
}

func newFixture(t *testing.T, stock map[string]int32) *fixture {
	t.Helper()
	f := &fixture{
		items:        repositories.NewItemRepositoryMemory(),
		reservations: repositories.NewReservationRepositoryMemory(),
		publisher:    &recordingPublisher{},
	}
	for sku, onHand := range stock {
		it, err := item.NewItem(sku, onHand, item.DefaultReorderPoint, now)
		if err != nil {
			t.Fatalf("expected nil error, got %v", err)
		}
		if err := f.items.Create(context.Background(), it); err != nil {
			t.Fatalf("expected nil error, got %v", err)
		}
	}
	f.uc = f.build(f.reservations)
	return f
}

func (f *fixture) build(reservations reservation.Repository) *Reserve {
	clock := fixedClock{now: now}
	logger := zap.NewNop()
	return NewReserve(
		ledger.NewLedger(f.items, clock),
		reservations,
		locks.NewKeyedLockMemory(time.Second),
		&sequenceIds{},
		clock,
		notify.NewNotifier(nil, f.publisher, clock, logger),
		logger,
	)
}

func (f *fixture) item(t *testing.T, sku string) *item.Item {
	t.Helper()
	it, err := f.items.GetItem(context.Background(), sku)
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	return it
}

func TestReserve_Success(t *testing.T) {
	f := newFixture(t, map[string]int32{"SKU-1": 100})

	out, err := f.uc.Reserve(context.Background(), Input{OrderId: "order-1", Items: []Item{{Sku: "SKU-1", Quantity: 95}}})
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if !out.Success || out.ReservationId == "" {
		t.Fatalf("expected success with id, got %+v", out)
	}
	if !out.ExpiresAt.Equal(now.Add(reservation.DefaultTTL)) {
		t.Fatalf("expected expiry %v, got %v", now.Add(reservation.DefaultTTL), out.ExpiresAt)
	}

	it := f.item(t, "SKU-1")
	if it.QuantityReserved != 95 || it.QuantityAvailable != 5 || it.Status != item.StatusLowStock {
		t.Fatalf("expected reserved 95 available 5 LOW_STOCK, got %d %d %s", it.QuantityReserved, it.QuantityAvailable, it.Status)
	}

	res, err := f.reservations.Get(context.Background(), out.ReservationId)
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if res.Status != reservation.StatusActive || res.OrderId != "order-1" {
		t.Fatalf("expected ACTIVE reservation for order-1, got %s %s", res.Status, res.OrderId)
	}
	if len(f.publisher.events) != 1 || f.publisher.events[0].Type != protocols.EventReservationCreated {
		t.Fatalf("expected one created event, got %+v", f.publisher.events)
	}
}

func TestReserve_InsufficientStock(t *testing.T) {
	f := newFixture(t, map[string]int32{"SKU-1": 3})

	out, err := f.uc.Reserve(context.Background(), Input{OrderId: "order-1", Items: []Item{{Sku: "SKU-1", Quantity: 5}}})
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if out.Success {
		t.Fatalf("expected failure")
	}
	if out.Shortage == nil || out.Shortage.Sku != "SKU-1" || out.Shortage.Available != 3 || out.Shortage.Requested != 5 {
		t.Fatalf("expected shortage for SKU-1 3/5, got %+v", out.Shortage)
	}
	if out.Message != "Insufficient stock for SKU: SKU-1 (available: 3, requested: 5)" {
		t.Fatalf("unexpected message %q", out.Message)
	}
	if it := f.item(t, "SKU-1"); it.QuantityReserved != 0 {
		t.Fatalf("expected nothing reserved, got %d", it.QuantityReserved)
	}
	if len(f.publisher.events) != 0 {
		t.Fatalf("expected no events, got %d", len(f.publisher.events))
	}
}

func TestReserve_AllOrNothing(t *testing.T) {
	f := newFixture(t, map[string]int32{"A": 10, "B": 2})

	out, err := f.uc.Reserve(context.Background(), Input{OrderId: "order-1", Items: []Item{
		{Sku: "A", Quantity: 4},
		{Sku: "B", Quantity: 3},
	}})
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if out.Success || out.Shortage.Sku != "B" {
		t.Fatalf("expected shortage on B, got %+v", out)
	}
	if it := f.item(t, "A"); it.QuantityReserved != 0 || it.Version != 1 {
		t.Fatalf("expected A untouched, got reserved %d version %d", it.QuantityReserved, it.Version)
	}
	if found, _ := f.reservations.FindByOrderId(context.Background(), "order-1"); len(found) != 0 {
		t.Fatalf("expected no reservation, got %d", len(found))
	}
}

func TestReserve_MergesRepeatedSkus(t *testing.T) {
	f := newFixture(t, map[string]int32{"A": 10})

	out, err := f.uc.Reserve(context.Background(), Input{OrderId: "order-1", Items: []Item{
		{Sku: "A", Quantity: 4},
		{Sku: "A", Quantity: 3},
	}})
	if err != nil || !out.Success {
		t.Fatalf("expected success, got %+v %v", out, err)
	}
	res, _ := f.reservations.Get(context.Background(), out.ReservationId)
	if len(res.Items) != 1 || res.Items[0].Quantity != 7 {
		t.Fatalf("expected one line of 7, got %+v", res.Items)
	}
	if it := f.item(t, "A"); it.QuantityReserved != 7 {
		t.Fatalf("expected reserved 7, got %d", it.QuantityReserved)
	}
}

func TestReserve_RepeatedSkusCannotWrapAround(t *testing.T) {
	f := newFixture(t, map[string]int32{"A": 10})

	_, err := f.uc.Reserve(context.Background(), Input{OrderId: "order-1", Items: []Item{
		{Sku: "A", Quantity: math.MaxInt32},
		{Sku: "A", Quantity: math.MaxInt32},
		{Sku: "A", Quantity: 4},
	}})
	if !errors.Is(err, domain.ErrInvalidQuantity) {
		t.Fatalf("expected ErrInvalidQuantity, got %v", err)
	}
	if it := f.item(t, "A"); it.QuantityReserved != 0 {
		t.Fatalf("expected A untouched, got reserved %d", it.QuantityReserved)
	}

	out, err := f.uc.Reserve(context.Background(), Input{OrderId: "order-1", Items: []Item{
		{Sku: "A", Quantity: math.MaxInt32 - 1},
		{Sku: "A", Quantity: 1},
	}})
	if err != nil || out.Success {
		t.Fatalf("expected a shortage at the int32 ceiling, got %+v %v", out, err)
	}
	if out.Shortage.Requested != math.MaxInt32 || out.Shortage.Available != 10 {
		t.Fatalf("expected %d requested of 10, got %+v", int32(math.MaxInt32), out.Shortage)
	}
}

func TestReserve_RejectsBadInput(t *testing.T) {
	f := newFixture(t, map[string]int32{"A": 10})
	inputs := map[string]Input{
		"no order":      {Items: []Item{{Sku: "A", Quantity: 1}}},
		"no items":      {OrderId: "order-1"},
		"empty sku":     {OrderId: "order-1", Items: []Item{{Quantity: 1}}},
		"zero quantity": {OrderId: "order-1", Items: []Item{{Sku: "A", Quantity: 0}}},
		"negative":      {OrderId: "order-1", Items: []Item{{Sku: "A", Quantity: -2}}},
	}
	for name, input := range inputs {
		t.Run(name, func(t *testing.T) {
			_, err := f.uc.Reserve(context.Background(), input)
			if !errors.Is(err, domain.ErrInvalidQuantity) {
				t.Fatalf("expected ErrInvalidQuantity, got %v", err)
			}
		})
	}
}

func TestReserve_UnknownSku(t *testing.T) {
	f := newFixture(t, map[string]int32{"A": 10})

	_, err := f.uc.Reserve(context.Background(), Input{OrderId: "order-1", Items: []Item{
		{Sku: "A", Quantity: 1},
		{Sku: "missing", Quantity: 1},
	}})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if it := f.item(t, "A"); it.QuantityReserved != 0 {
		t.Fatalf("expected A untouched, got %d", it.QuantityReserved)
	}
}

func TestReserve_RollsBackWhenReservationWriteFails(t *testing.T) {
	f := newFixture(t, map[string]int32{"A": 10, "B": 10})
	uc := f.build(&failingReservationRepository{
		Repository: f.reservations,
		createErr:  errors.New("connection reset"),
	})

	_, err := uc.Reserve(context.Background(), Input{OrderId: "order-1", Items: []Item{
		{Sku: "A", Quantity: 4},
		{Sku: "B", Quantity: 6},
	}})
	if err == nil {
		t.Fatalf("expected error, got nil")
	}
	for _, sku := range []string{"A", "B"} {
		if it := f.item(t, sku); it.QuantityReserved != 0 || it.QuantityAvailable != 10 {
			t.Fatalf("expected %s rolled back, got reserved %d available %d", sku, it.QuantityReserved, it.QuantityAvailable)
		}
	}
}

func TestReserve_ConcurrentRequestsNeverOversell(t *testing.T) {
	f := newFixture(t, map[string]int32{"A": 10, "B": 10})

	var wg sync.WaitGroup
	var succeeded atomic.Int32
	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			// Alternate line order so requests name the skus both ways.
			items := []Item{{Sku: "A", Quantity: 1}, {Sku: "B", Quantity: 1}}
			if i%2 == 1 {
				items[0], items[1] = items[1], items[0]
			}
			out, err := f.uc.Reserve(context.Background(), Input{OrderId: fmt.Sprintf("order-%d", i), Items: items})
			if err != nil {
				t.Errorf("expected nil error, got %v", err)
				return
			}
			if out.Success {
				succeeded.Add(1)
			}
		}(i)
	}
	wg.Wait()

	if succeeded.Load() != 10 {
		t.Fatalf("expected 10 successful reservations, got %d", succeeded.Load())
	}
	for _, sku := range []string{"A", "B"} {
		it := f.item(t, sku)
		if it.QuantityReserved != 10 || it.QuantityAvailable != 0 {
			t.Fatalf("expected %s fully reserved, got reserved %d available %d", sku, it.QuantityReserved, it.QuantityAvailable)
		}
	}
	if active, _ := f.reservations.CountByStatus(context.Background(), reservation.StatusActive); active != 10 {
		t.Fatalf("expected 10 active reservations, got %d", active)
	}
}

func TestReserve_WithTTL(t *testing.T) {
	f := newFixture(t, map[string]int32{"A": 10})
	f.uc.WithTTL(5 * time.Minute)

	out, err := f.uc.Reserve(context.Background(), Input{OrderId: "order-1", Items: []Item{{Sku: "A", Quantity: 1}}})
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if !out.ExpiresAt.Equal(now.Add(5 * time.Minute)) {
		t.Fatalf("expected 5 minute expiry, got %v", out.ExpiresAt)
	}
}
