package reservation

import (
	"fmt"
	"time"

	"github.com/giovaniif/e-commerce/inventory/domain"
)

type Status string

const (
	StatusActive    Status = "ACTIVE"
	StatusConfirmed Status = "CONFIRMED"
	StatusReleased  Status = "RELEASED"
	StatusExpired   Status = "EXPIRED"
)

const DefaultTTL = 30 * time.Minute

func (s Status) IsTerminal() bool {
	return s == StatusConfirmed || s == StatusReleased || s == StatusExpired
}

type Line struct {
	Sku      string
	Quantity int32
}

type Reservation struct {
	Id          string
	OrderId     string
	Items       []Line
	Status      Status
	CreatedAt   time.Time
	ExpiresAt   time.Time
	ConfirmedAt *time.Time
	ReleasedAt  *time.Time
}

func New(id string, orderId string, items []Line, now time.Time, ttl time.Duration) *Reservation {
	lines := make([]Line, len(items))
	copy(lines, items)
	return &Reservation{
		Id:        id,
		OrderId:   orderId,
		Items:     lines,
		Status:    StatusActive,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
}

// IsExpired is true only for an ACTIVE reservation whose deadline has passed.
func (r *Reservation) IsExpired(now time.Time) bool {
	return r.Status == StatusActive && r.ExpiresAt.Before(now)
}

func (r *Reservation) EnsureActive() error {
	if r.Status != StatusActive {
		return domain.NewInvalidStateError(fmt.Sprintf("reservation %s is %s", r.Id, r.Status))
	}
	return nil
}

func (r *Reservation) Confirm(now time.Time) error {
	if err := r.EnsureActive(); err != nil {
		return err
	}
	r.Status = StatusConfirmed
	r.ConfirmedAt = &now
	return nil
}

// Release moves an ACTIVE reservation to RELEASED, or to EXPIRED when
// expired is set. Both record the release time.
func (r *Reservation) Release(now time.Time, expired bool) error {
	if err := r.EnsureActive(); err != nil {
		return err
	}
	r.Status = StatusReleased
	if expired {
		r.Status = StatusExpired
	}
	r.ReleasedAt = &now
	return nil
}

func (r *Reservation) Clone() *Reservation {
	c := *r
	c.Items = make([]Line, len(r.Items))
	copy(c.Items, r.Items)
	if r.ConfirmedAt != nil {
		t := *r.ConfirmedAt
		c.ConfirmedAt = &t
	}
	if r.ReleasedAt != nil {
		t := *r.ReleasedAt
		c.ReleasedAt = &t
	}
	return &c
}
