package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/giovaniif/e-commerce/inventory/domain"
	"github.com/giovaniif/e-commerce/inventory/domain/item"
)

const itemColumns = `sku, product_id, quantity_on_hand, quantity_reserved, quantity_available,
  reorder_point, reorder_quantity, warehouse_id, warehouse_location, status,
  created_at, updated_at, last_restocked_at, version`

type ItemRepositoryPostgres struct {
	db *sql.DB
}

func NewItemRepositoryPostgres(db *sql.DB) *ItemRepositoryPostgres {
	return &ItemRepositoryPostgres{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(row rowScanner) (*item.Item, error) {
	var it item.Item
	var status string
	var restockedAt sql.NullTime
	err := row.Scan(&it.Sku, &it.ProductId, &it.QuantityOnHand, &it.QuantityReserved, &it.QuantityAvailable,
		&it.ReorderPoint, &it.ReorderQuantity, &it.WarehouseId, &it.WarehouseLocation, &status,
		&it.CreatedAt, &it.UpdatedAt, &restockedAt, &it.Version)
	if err != nil {
		return nil, err
	}
	it.Status = item.Status(status)
	it.CreatedAt = it.CreatedAt.UTC()
	it.UpdatedAt = it.UpdatedAt.UTC()
	it.LastRestockedAt = timePtr(restockedAt)
	return &it, nil
}

func (r *ItemRepositoryPostgres) queryItems(ctx context.Context, query string, args ...any) ([]*item.Item, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*item.Item
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func (r *ItemRepositoryPostgres) GetItem(ctx context.Context, sku string) (*item.Item, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM inventory_items WHERE sku = $1`, sku)
	it, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NewNotFoundError("sku " + sku)
	}
	if err != nil {
		return nil, fmt.Errorf("select item: %w", err)
	}
	return it, nil
}

func (r *ItemRepositoryPostgres) GetItems(ctx context.Context, skus []string) ([]*item.Item, error) {
	if len(skus) == 0 {
		return nil, nil
	}
	items, err := r.queryItems(ctx, `SELECT `+itemColumns+` FROM inventory_items WHERE sku = ANY($1)`, pq.Array(skus))
	if err != nil {
		return nil, fmt.Errorf("select items: %w", err)
	}
	return items, nil
}

func (r *ItemRepositoryPostgres) Create(ctx context.Context, it *item.Item) error {
	res, err := r.db.ExecContext(ctx, `
INSERT INTO inventory_items (`+itemColumns+`)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, 1)
ON CONFLICT (sku) DO NOTHING`,
		it.Sku, it.ProductId, it.QuantityOnHand, it.QuantityReserved, it.QuantityAvailable,
		it.ReorderPoint, it.ReorderQuantity, it.WarehouseId, it.WarehouseLocation, string(it.Status),
		it.CreatedAt, it.UpdatedAt, nullTime(it.LastRestockedAt))
	if err != nil {
		return fmt.Errorf("insert item: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.NewAlreadyExistsError("sku " + it.Sku)
	}
	it.Version = 1
	return nil
}

// Save is a compare-and-swap on version; it backs up the per-sku lock when
// several processes write the same table.
func (r *ItemRepositoryPostgres) Save(ctx context.Context, it *item.Item) error {
	res, err := r.db.ExecContext(ctx, `
UPDATE inventory_items SET
  product_id = $2, quantity_on_hand = $3, quantity_reserved = $4, quantity_available = $5,
  reorder_point = $6, reorder_quantity = $7, warehouse_id = $8, warehouse_location = $9,
  status = $10, updated_at = $11, last_restocked_at = $12, version = version + 1
WHERE sku = $1 AND version = $13`,
		it.Sku, it.ProductId, it.QuantityOnHand, it.QuantityReserved, it.QuantityAvailable,
		it.ReorderPoint, it.ReorderQuantity, it.WarehouseId, it.WarehouseLocation,
		string(it.Status), it.UpdatedAt, nullTime(it.LastRestockedAt), it.Version)
	if err != nil {
		return fmt.Errorf("update item: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		if _, err := r.GetItem(ctx, it.Sku); err != nil {
			return err
		}
		return domain.NewConflictError(fmt.Sprintf("sku %s changed since version %d", it.Sku, it.Version))
	}
	it.Version++
	return nil
}

func (r *ItemRepositoryPostgres) LowStockItems(ctx context.Context) ([]*item.Item, error) {
	items, err := r.queryItems(ctx, `SELECT `+itemColumns+` FROM inventory_items WHERE quantity_available <= reorder_point ORDER BY sku`)
	if err != nil {
		return nil, fmt.Errorf("select low stock: %w", err)
	}
	return items, nil
}

func (r *ItemRepositoryPostgres) ItemsByWarehouse(ctx context.Context, warehouseId string) ([]*item.Item, error) {
	items, err := r.queryItems(ctx, `SELECT `+itemColumns+` FROM inventory_items WHERE warehouse_id = $1 ORDER BY sku`, warehouseId)
	if err != nil {
		return nil, fmt.Errorf("select warehouse %s: %w", warehouseId, err)
	}
	return items, nil
}

func (r *ItemRepositoryPostgres) CountByStatus(ctx context.Context, status item.Status) (int64, error) {
	var count int64
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM inventory_items WHERE status = $1`, string(status)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count items: %w", err)
	}
	return count, nil
}

func (r *ItemRepositoryPostgres) Totals(ctx context.Context) (item.Totals, error) {
	var totals item.Totals
	err := r.db.QueryRowContext(ctx, `
SELECT COALESCE(SUM(quantity_on_hand), 0), COALESCE(SUM(quantity_reserved), 0) FROM inventory_items`).
		Scan(&totals.QuantityOnHand, &totals.QuantityReserved)
	if err != nil {
		return item.Totals{}, fmt.Errorf("sum items: %w", err)
	}
	return totals, nil
}
