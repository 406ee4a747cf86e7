package api

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/giovaniif/e-commerce/inventory/domain/item"
	"github.com/giovaniif/e-commerce/inventory/domain/reservation"
	"github.com/giovaniif/e-commerce/inventory/infra/config"
	"github.com/giovaniif/e-commerce/inventory/infra/events"
	"github.com/giovaniif/e-commerce/inventory/infra/gateways"
	"github.com/giovaniif/e-commerce/inventory/infra/locks"
	"github.com/giovaniif/e-commerce/inventory/infra/logging"
	"github.com/giovaniif/e-commerce/inventory/infra/metrics"
	"github.com/giovaniif/e-commerce/inventory/infra/repositories"
	"github.com/giovaniif/e-commerce/inventory/infra/requestid"
	"github.com/giovaniif/e-commerce/inventory/infra/tracing"
	"github.com/giovaniif/e-commerce/inventory/protocols"
	"github.com/giovaniif/e-commerce/inventory/use_cases/admin"
	"github.com/giovaniif/e-commerce/inventory/use_cases/check"
	"github.com/giovaniif/e-commerce/inventory/use_cases/confirm"
	"github.com/giovaniif/e-commerce/inventory/use_cases/expire"
	"github.com/giovaniif/e-commerce/inventory/use_cases/ledger"
	"github.com/giovaniif/e-commerce/inventory/use_cases/notify"
	"github.com/giovaniif/e-commerce/inventory/use_cases/query"
	"github.com/giovaniif/e-commerce/inventory/use_cases/release"
	"github.com/giovaniif/e-commerce/inventory/use_cases/reserve"
)

const shutdownTimeout = 10 * time.Second

// backends holds the optional external clients so /health and shutdown can
// reach them. A nil field means the in-process fallback is in use.
type backends struct {
	db    *sql.DB
	redis *redis.Client
	mongo *mongo.Client
	kafka *events.KafkaPublisher
}

// StartServer runs the service until SIGINT or SIGTERM. Setup failures are
// returned after the deferred closers ran, so buffered logs still reach Loki.
func StartServer() error {
	cfg := config.Load()
	logger, logCloser := logging.New(cfg.ServiceName, cfg.LokiURL, zapcore.InfoLevel)
	defer logCloser.Close()
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Error("inventory stopped", zap.Error(err))
		return err
	}
	return nil
}

func run(cfg config.Config, logger *zap.Logger) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if shutdownTracing := tracing.Init(cfg.ServiceName, cfg.OTLPEndpoint); shutdownTracing != nil {
		defer shutdownTracing(context.Background())
		logger.Info("tracing enabled", zap.String("endpoint", cfg.OTLPEndpoint))
	}

	var b backends
	defer b.close(logger)

	itemRepository, reservationRepository, err := openRepositories(ctx, cfg, logger, &b)
	if err != nil {
		return err
	}
	locker, err := openLocker(ctx, cfg, logger, &b)
	if err != nil {
		return err
	}
	publisher := openPublishers(ctx, cfg, logger, &b)

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry)

	clock := gateways.NewClock()
	stockLedger := ledger.NewLedger(itemRepository, clock)
	notifier := notify.NewNotifier(m, publisher, clock, logger)

	reserveUseCase := reserve.NewReserve(stockLedger, reservationRepository, locker, gateways.NewUUIDGenerator(), clock, notifier, logger).
		WithTTL(cfg.ReservationTTL)
	confirmUseCase := confirm.NewConfirm(stockLedger, reservationRepository, locker, clock, notifier, logger)
	releaseUseCase := release.NewRelease(stockLedger, reservationRepository, locker, clock, notifier, logger)
	adminUseCase := admin.NewAdmin(stockLedger, itemRepository, locker, clock, logger, admin.Defaults{
		ReorderPoint:    cfg.DefaultReorderPoint,
		ReorderQuantity: cfg.DefaultReorderQuantity,
	})
	handlers := NewHandlers(
		reserveUseCase,
		confirmUseCase,
		releaseUseCase,
		check.NewCheck(itemRepository),
		adminUseCase,
		query.NewQuery(itemRepository, reservationRepository),
		logger,
	)

	sweeper := expire.NewSweeper(releaseUseCase, reservationRepository, itemRepository, m, clock, logger, cfg.SweepInterval)
	if err := sweeper.Start(ctx); err != nil {
		return fmt.Errorf("start expiry sweeper: %w", err)
	}
	defer sweeper.Stop()

	r := NewRouter(handlers, m, registry, b.health)
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("inventory is running", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown failed", zap.Error(err))
	}
	select {
	case err := <-serveErr:
		return fmt.Errorf("http server: %w", err)
	default:
		return nil
	}
}

// NewRouter wires middleware, probes and the inventory routes onto a new
// engine.
func NewRouter(handlers *Handlers, m *metrics.Metrics, gatherer prometheus.Gatherer, health func(ctx context.Context) gin.H) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestid.Middleware(), tracing.Middleware(), m.Middleware())

	r.GET("/health", func(c *gin.Context) {
		checks := health(c.Request.Context())
		status := "healthy"
		for _, v := range checks {
			if v == "down" {
				status = "degraded"
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": status, "checks": checks})
	})
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	handlers.Register(r)
	return r
}

func openRepositories(ctx context.Context, cfg config.Config, logger *zap.Logger, b *backends) (item.Repository, reservation.Repository, error) {
	if cfg.DatabaseURL == "" {
		logger.Info("ledger store: in-memory (set DATABASE_URL for postgres)")
		return repositories.NewItemRepositoryMemory(), repositories.NewReservationRepositoryMemory(), nil
	}
	db, err := repositories.OpenPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("postgres unavailable: %w", err)
	}
	b.db = db
	logger.Info("ledger store: postgres")
	return repositories.NewItemRepositoryPostgres(db), repositories.NewReservationRepositoryPostgres(db), nil
}

func openLocker(ctx context.Context, cfg config.Config, logger *zap.Logger, b *backends) (protocols.Locker, error) {
	if cfg.RedisAddr == "" {
		logger.Info("lock coordinator: in-process (set REDIS_ADDR for redis)")
		return locks.NewKeyedLockMemory(cfg.LockTimeout), nil
	}
	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	b.redis = rdb
	if err := rdb.Ping(ctx).Err(); err != nil {
		// A second process on the same store would not see in-process locks.
		return nil, fmt.Errorf("redis unavailable at %s: %w", cfg.RedisAddr, err)
	}
	logger.Info("lock coordinator: redis", zap.Duration("ttl", cfg.LockTTL))
	return locks.NewKeyedLockRedis(rdb, cfg.LockTTL, cfg.LockTimeout), nil
}

func openPublishers(ctx context.Context, cfg config.Config, logger *zap.Logger, b *backends) protocols.EventPublisher {
	var sinks events.Multi
	if len(cfg.KafkaBrokers) > 0 {
		b.kafka = events.NewKafkaPublisher(events.NewKafkaWriter(cfg.KafkaBrokers, cfg.KafkaTopic))
		sinks = append(sinks, b.kafka)
		logger.Info("events: kafka", zap.Strings("brokers", cfg.KafkaBrokers), zap.String("topic", cfg.KafkaTopic))
	}
	if cfg.MongoURI != "" {
		client, err := events.ConnectMongo(ctx, cfg.MongoURI)
		if err != nil {
			logger.Warn("mongo unavailable, audit log disabled", zap.Error(err))
		} else {
			b.mongo = client
			sinks = append(sinks, events.NewMongoAuditLog(client.Database(cfg.MongoDatabase).Collection(events.AuditCollection)))
			logger.Info("events: mongo audit log", zap.String("database", cfg.MongoDatabase))
		}
	}
	if len(sinks) == 0 {
		return nil
	}
	return sinks
}

func (b *backends) health(ctx context.Context) gin.H {
	checks := gin.H{"postgres": "n/a", "redis": "n/a", "mongo": "n/a"}
	if b.db != nil {
		checks["postgres"] = upDown(b.db.PingContext(ctx))
	}
	if b.redis != nil {
		checks["redis"] = upDown(b.redis.Ping(ctx).Err())
	}
	if b.mongo != nil {
		checks["mongo"] = upDown(b.mongo.Ping(ctx, nil))
	}
	return checks
}

func (b *backends) close(logger *zap.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if b.kafka != nil {
		if err := b.kafka.Close(); err != nil {
			logger.Warn("kafka close failed", zap.Error(err))
		}
	}
	if b.mongo != nil {
		if err := b.mongo.Disconnect(ctx); err != nil {
			logger.Warn("mongo disconnect failed", zap.Error(err))
		}
	}
	if b.redis != nil {
		_ = b.redis.Close()
	}
	if b.db != nil {
		_ = b.db.Close()
	}
}

func upDown(err error) string {
	if err != nil {
		return "down"
	}
	return "up"
}
