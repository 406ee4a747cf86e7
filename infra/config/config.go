package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	HTTPAddr      string
	ServiceName   string
	LokiURL       string
	OTLPEndpoint  string
	DatabaseURL   string
	RedisAddr     string
	KafkaBrokers  []string
	KafkaTopic    string
	MongoURI      string
	MongoDatabase string

	LockTimeout            time.Duration
	LockTTL                time.Duration
	SweepInterval          time.Duration
	ReservationTTL         time.Duration
	DefaultReorderPoint    int32
	DefaultReorderQuantity int32
}

// Load reads the environment, after an optional .env file in the working
// directory. Unparsable numbers fall back to their defaults.
func Load() Config {
	_ = godotenv.Load()
	return Config{
		HTTPAddr:      env("HTTP_ADDR", ":3133"),
		ServiceName:   env("SERVICE_NAME", "inventory"),
		LokiURL:       env("LOKI_URL", ""),
		OTLPEndpoint:  env("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		DatabaseURL:   env("DATABASE_URL", ""),
		RedisAddr:     env("REDIS_ADDR", ""),
		KafkaBrokers:  list(env("KAFKA_BROKERS", "")),
		KafkaTopic:    env("KAFKA_TOPIC", "inventory.reservations"),
		MongoURI:      env("MONGO_URI", ""),
		MongoDatabase: env("MONGO_DATABASE", "inventory"),

		LockTimeout:            time.Duration(number("LOCK_TIMEOUT_MS", 5000)) * time.Millisecond,
		LockTTL:                time.Duration(number("LOCK_TTL_MS", 10000)) * time.Millisecond,
		SweepInterval:          time.Duration(number("SWEEP_INTERVAL_SECONDS", 60)) * time.Second,
		ReservationTTL:         time.Duration(number("RESERVATION_TTL_MINUTES", 30)) * time.Minute,
		DefaultReorderPoint:    int32(number("DEFAULT_REORDER_POINT", 10)),
		DefaultReorderQuantity: int32(number("DEFAULT_REORDER_QUANTITY", 50)),
	}
}

func (c Config) Validate() error {
	var errs []error
	if c.LockTimeout <= 0 {
		errs = append(errs, fmt.Errorf("LOCK_TIMEOUT_MS must be positive, got %s", c.LockTimeout))
	}
	if c.LockTTL <= 0 {
		errs = append(errs, fmt.Errorf("LOCK_TTL_MS must be positive, got %s", c.LockTTL))
	}
	if c.SweepInterval <= 0 {
		errs = append(errs, fmt.Errorf("SWEEP_INTERVAL_SECONDS must be positive, got %s", c.SweepInterval))
	}
	if c.ReservationTTL <= 0 {
		errs = append(errs, fmt.Errorf("RESERVATION_TTL_MINUTES must be positive, got %s", c.ReservationTTL))
	}
	if c.DefaultReorderPoint < 0 {
		errs = append(errs, fmt.Errorf("DEFAULT_REORDER_POINT must not be negative, got %d", c.DefaultReorderPoint))
	}
	if c.DefaultReorderQuantity < 0 {
		errs = append(errs, fmt.Errorf("DEFAULT_REORDER_QUANTITY must not be negative, got %d", c.DefaultReorderQuantity))
	}
	return errors.Join(errs...)
}

func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func number(k string, def int) int {
	if s := os.Getenv(k); s != "" {
		if n, err := strconv.Atoi(s); err == nil {
			return n
		}
	}
	return def
}

func list(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
