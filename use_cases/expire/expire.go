package expire

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/giovaniif/e-commerce/inventory/domain/item"
	"github.com/giovaniif/e-commerce/inventory/domain/reservation"
	"github.com/giovaniif/e-commerce/inventory/infra/tracing"
	"github.com/giovaniif/e-commerce/inventory/protocols"
	"github.com/giovaniif/e-commerce/inventory/use_cases/release"
)

const DefaultInterval = 60 * time.Second

var ErrAlreadyRunning = errors.New("sweeper already running")

// Expirer is the release entry point the sweeper drives for each candidate.
type Expirer interface {
	Expire(ctx context.Context, input release.Input) error
}

type Sweeper struct {
	expirer               Expirer
	reservationRepository reservation.Repository
	itemRepository        item.Repository
	observer              protocols.Observer
	clock                 protocols.Clock
	logger                *zap.Logger
	interval              time.Duration

	mutex sync.Mutex
	stop  chan struct{}
	done  chan struct{}
}

func NewSweeper(
	expirer Expirer,
	reservationRepository reservation.Repository,
	itemRepository item.Repository,
	observer protocols.Observer,
	clock protocols.Clock,
	logger *zap.Logger,
	interval time.Duration,
) *Sweeper {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if observer == nil {
		observer = protocols.NoopObserver{}
	}
	return &Sweeper{
		expirer:               expirer,
		reservationRepository: reservationRepository,
		itemRepository:        itemRepository,
		observer:              observer,
		clock:                 clock,
		logger:                logger,
		interval:              interval,
	}
}

type Result struct {
	Candidates int
	Expired    int
	Failed     int
}

// Sweep expires every ACTIVE reservation past its deadline. A failure on one
// reservation is logged and the sweep moves on to the next.
func (s *Sweeper) Sweep(ctx context.Context) (Result, error) {
	ctx, span := tracing.Start(ctx, "reservation.sweep")
	defer span.End()

	candidates, err := s.reservationRepository.FindExpired(ctx, s.clock.Now())
	if err != nil {
		tracing.Fail(span, err)
		return Result{}, err
	}

	result := Result{Candidates: len(candidates)}
	for _, res := range candidates {
		if err := s.expirer.Expire(ctx, release.Input{ReservationId: res.Id}); err != nil {
			result.Failed++
			s.logger.Error("failed to expire reservation",
				zap.String("reservation_id", res.Id),
				zap.String("order_id", res.OrderId),
				zap.Error(err),
			)
			continue
		}
		result.Expired++
	}

	if lowStock, err := s.itemRepository.CountByStatus(ctx, item.StatusLowStock); err != nil {
		s.logger.Warn("failed to count low stock items", zap.Error(err))
	} else {
		s.observer.LowStockItems(lowStock)
	}

	span.SetAttributes(
		attribute.Int("sweep.candidates", result.Candidates),
		attribute.Int("sweep.expired", result.Expired),
		attribute.Int("sweep.failed", result.Failed),
	)
	if result.Candidates > 0 {
		s.logger.Info("expiry sweep finished",
			zap.Int("candidates", result.Candidates),
			zap.Int("expired", result.Expired),
			zap.Int("failed", result.Failed),
		)
	}
	return result, nil
}

// Start runs Sweep every interval until Stop is called or ctx is done.
func (s *Sweeper) Start(ctx context.Context) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.done != nil {
		return ErrAlreadyRunning
	}
	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	go s.loop(ctx, s.stop, s.done)
	s.logger.Info("expiry sweeper started", zap.Duration("interval", s.interval))
	return nil
}

// Stop ends the loop and waits for an in-flight sweep to finish. It is safe
// to call when the sweeper is not running.
func (s *Sweeper) Stop() {
	s.mutex.Lock()
	stop, done := s.stop, s.done
	s.stop, s.done = nil, nil
	s.mutex.Unlock()
	if done == nil {
		return
	}
	close(stop)
	<-done
	s.logger.Info("expiry sweeper stopped")
}

func (s *Sweeper) loop(ctx context.Context, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.Sweep(ctx); err != nil {
				s.logger.Error("expiry sweep failed", zap.Error(err))
			}
		}
	}
}
