package protocols

// Observer receives side-effect notifications for metrics. It is not part of
// the reservation contract; implementations must not block.
type Observer interface {
	ReservationCreated()
	ReservationConfirmed()
	ReservationReleased()
	ReservationExpired()
	LowStockItems(count int64)
}

type NoopObserver struct{}

func (NoopObserver) ReservationCreated()   {}
func (NoopObserver) ReservationConfirmed() {}
func (NoopObserver) ReservationReleased()  {}
func (NoopObserver) ReservationExpired()   {}
func (NoopObserver) LowStockItems(int64)   {}
