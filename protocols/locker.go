package protocols

import "context"

// Locker hands out exclusive per-key locks. Acquire takes every key in a
// fixed order, blocks until all are held or the bound elapses, and returns a
// release func that is safe to call more than once.
type Locker interface {
	Acquire(ctx context.Context, keys ...string) (func(), error)
}

func SkuLockKey(sku string) string {
	return "sku:" + sku
}

func ReservationLockKey(reservationId string) string {
	return "reservation:" + reservationId
}
