package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

const schema = `
CREATE TABLE IF NOT EXISTS inventory_items (
  sku                TEXT PRIMARY KEY,
  product_id         BIGINT NOT NULL DEFAULT 0,
  quantity_on_hand   INTEGER NOT NULL CHECK (quantity_on_hand >= 0),
  quantity_reserved  INTEGER NOT NULL CHECK (quantity_reserved >= 0),
  quantity_available INTEGER NOT NULL,
  reorder_point      INTEGER NOT NULL CHECK (reorder_point >= 0),
  reorder_quantity   INTEGER NOT NULL DEFAULT 0,
  warehouse_id       TEXT NOT NULL DEFAULT '',
  warehouse_location TEXT NOT NULL DEFAULT '',
  status             TEXT NOT NULL,
  created_at         TIMESTAMPTZ NOT NULL,
  updated_at         TIMESTAMPTZ NOT NULL,
  last_restocked_at  TIMESTAMPTZ,
  version            BIGINT NOT NULL DEFAULT 1
);
CREATE INDEX IF NOT EXISTS idx_inventory_items_status ON inventory_items(status);
CREATE INDEX IF NOT EXISTS idx_inventory_items_warehouse ON inventory_items(warehouse_id);

CREATE TABLE IF NOT EXISTS stock_reservations (
  reservation_id TEXT PRIMARY KEY,
  order_id       TEXT NOT NULL,
  status         TEXT NOT NULL,
  created_at     TIMESTAMPTZ NOT NULL,
  expires_at     TIMESTAMPTZ NOT NULL,
  confirmed_at   TIMESTAMPTZ,
  released_at    TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS idx_stock_reservations_order ON stock_reservations(order_id);
CREATE INDEX IF NOT EXISTS idx_stock_reservations_status_expiry ON stock_reservations(status, expires_at);

CREATE TABLE IF NOT EXISTS stock_reservation_items (
  reservation_id TEXT NOT NULL REFERENCES stock_reservations(reservation_id),
  position       INTEGER NOT NULL,
  sku            TEXT NOT NULL,
  quantity       INTEGER NOT NULL CHECK (quantity > 0),
  PRIMARY KEY (reservation_id, position)
);
`

func OpenPostgres(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(20)
	db.SetConnMaxIdleTime(2 * time.Minute)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres ping: %w", err)
	}
	if err := Migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres migrate: %w", err)
	}
	return db, nil
}

func Migrate(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, schema)
	return err
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time.UTC()
	return &v
}
