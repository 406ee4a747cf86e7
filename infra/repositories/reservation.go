package repositories

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/giovaniif/e-commerce/inventory/domain"
	"github.com/giovaniif/e-commerce/inventory/domain/reservation"
)

type ReservationRepositoryMemory struct {
	mutex        sync.RWMutex
	reservations map[string]*reservation.Reservation
}

func NewReservationRepositoryMemory() *ReservationRepositoryMemory {
	return &ReservationRepositoryMemory{
		reservations: make(map[string]*reservation.Reservation),
	}
}

func (r *ReservationRepositoryMemory) Get(ctx context.Context, reservationId string) (*reservation.Reservation, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	stored, ok := r.reservations[reservationId]
	if !ok {
		return nil, domain.NewNotFoundError("reservation " + reservationId)
	}
	return stored.Clone(), nil
}

func (r *ReservationRepositoryMemory) FindByOrderId(ctx context.Context, orderId string) ([]*reservation.Reservation, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	var found []*reservation.Reservation
	for _, stored := range r.reservations {
		if stored.OrderId == orderId {
			found = append(found, stored.Clone())
		}
	}
	sortByCreation(found)
	return found, nil
}

func (r *ReservationRepositoryMemory) Create(ctx context.Context, res *reservation.Reservation) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	if _, ok := r.reservations[res.Id]; ok {
		return domain.NewAlreadyExistsError("reservation " + res.Id)
	}
	r.reservations[res.Id] = res.Clone()
	return nil
}

func (r *ReservationRepositoryMemory) Save(ctx context.Context, res *reservation.Reservation) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	stored, ok := r.reservations[res.Id]
	if !ok {
		return domain.NewNotFoundError("reservation " + res.Id)
	}
	if stored.Status != reservation.StatusActive {
		return domain.NewConflictError(fmt.Sprintf("reservation %s already %s", res.Id, stored.Status))
	}
	r.reservations[res.Id] = res.Clone()
	return nil
}

func (r *ReservationRepositoryMemory) FindExpired(ctx context.Context, now time.Time) ([]*reservation.Reservation, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	var expired []*reservation.Reservation
	for _, stored := range r.reservations {
		if stored.IsExpired(now) {
			expired = append(expired, stored.Clone())
		}
	}
	sortByCreation(expired)
	return expired, nil
}

func (r *ReservationRepositoryMemory) CountByStatus(ctx context.Context, status reservation.Status) (int64, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	var count int64
	for _, stored := range r.reservations {
		if stored.Status == status {
			count++
		}
	}
	return count, nil
}

func sortByCreation(rs []*reservation.Reservation) {
	sort.Slice(rs, func(i, j int) bool {
		if rs[i].CreatedAt.Equal(rs[j].CreatedAt) {
			return rs[i].Id < rs[j].Id
		}
		return rs[i].CreatedAt.Before(rs[j].CreatedAt)
	})
}
