package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/giovaniif/e-commerce/inventory/domain"
	"github.com/giovaniif/e-commerce/inventory/domain/reservation"
)

const reservationColumns = `reservation_id, order_id, status, created_at, expires_at, confirmed_at, released_at`

type ReservationRepositoryPostgres struct {
	db *sql.DB
}

func NewReservationRepositoryPostgres(db *sql.DB) *ReservationRepositoryPostgres {
	return &ReservationRepositoryPostgres{db: db}
}

func scanReservation(row rowScanner) (*reservation.Reservation, error) {
	var res reservation.Reservation
	var status string
	var confirmedAt, releasedAt sql.NullTime
	if err := row.Scan(&res.Id, &res.OrderId, &status, &res.CreatedAt, &res.ExpiresAt, &confirmedAt, &releasedAt); err != nil {
		return nil, err
	}
	res.Status = reservation.Status(status)
	res.CreatedAt = res.CreatedAt.UTC()
	res.ExpiresAt = res.ExpiresAt.UTC()
	res.ConfirmedAt = timePtr(confirmedAt)
	res.ReleasedAt = timePtr(releasedAt)
	return &res, nil
}

func (r *ReservationRepositoryPostgres) Get(ctx context.Context, reservationId string) (*reservation.Reservation, error) {
	found, err := r.query(ctx, `SELECT `+reservationColumns+` FROM stock_reservations WHERE reservation_id = $1`, reservationId)
	if err != nil {
		return nil, err
	}
	if len(found) == 0 {
		return nil, domain.NewNotFoundError("reservation " + reservationId)
	}
	return found[0], nil
}

func (r *ReservationRepositoryPostgres) FindByOrderId(ctx context.Context, orderId string) ([]*reservation.Reservation, error) {
	return r.query(ctx, `SELECT `+reservationColumns+` FROM stock_reservations WHERE order_id = $1 ORDER BY created_at, reservation_id`, orderId)
}

func (r *ReservationRepositoryPostgres) FindExpired(ctx context.Context, now time.Time) ([]*reservation.Reservation, error) {
	return r.query(ctx, `SELECT `+reservationColumns+` FROM stock_reservations WHERE status = $1 AND expires_at < $2 ORDER BY created_at, reservation_id`,
		string(reservation.StatusActive), now)
}

func (r *ReservationRepositoryPostgres) CountByStatus(ctx context.Context, status reservation.Status) (int64, error) {
	var count int64
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM stock_reservations WHERE status = $1`, string(status)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count reservations: %w", err)
	}
	return count, nil
}

func (r *ReservationRepositoryPostgres) Create(ctx context.Context, res *reservation.Reservation) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
INSERT INTO stock_reservations (`+reservationColumns+`)
VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		res.Id, res.OrderId, string(res.Status), res.CreatedAt, res.ExpiresAt, nullTime(res.ConfirmedAt), nullTime(res.ReleasedAt))
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return domain.NewAlreadyExistsError("reservation " + res.Id)
		}
		return fmt.Errorf("insert reservation: %w", err)
	}
	for i, line := range res.Items {
		_, err := tx.ExecContext(ctx, `
INSERT INTO stock_reservation_items (reservation_id, position, sku, quantity) VALUES ($1, $2, $3, $4)`,
			res.Id, i, line.Sku, line.Quantity)
		if err != nil {
			return fmt.Errorf("insert reservation item: %w", err)
		}
	}
	return tx.Commit()
}

// Save persists status and transition times; items are fixed at creation.
// Only a row still ACTIVE is updated, so a writer whose lock lease lapsed
// cannot overwrite a transition made by another.
func (r *ReservationRepositoryPostgres) Save(ctx context.Context, res *reservation.Reservation) error {
	result, err := r.db.ExecContext(ctx, `
UPDATE stock_reservations SET status = $2, confirmed_at = $3, released_at = $4
WHERE reservation_id = $1 AND status = 'ACTIVE'`,
		res.Id, string(res.Status), nullTime(res.ConfirmedAt), nullTime(res.ReleasedAt))
	if err != nil {
		return fmt.Errorf("update reservation: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		if _, err := r.Get(ctx, res.Id); err != nil {
			return err
		}
		return domain.NewConflictError("reservation " + res.Id + " is no longer ACTIVE")
	}
	return nil
}

func (r *ReservationRepositoryPostgres) query(ctx context.Context, query string, args ...any) ([]*reservation.Reservation, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select reservations: %w", err)
	}
	var found []*reservation.Reservation
	for rows.Next() {
		res, err := scanReservation(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		found = append(found, res)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := r.loadItems(ctx, found); err != nil {
		return nil, err
	}
	return found, nil
}

func (r *ReservationRepositoryPostgres) loadItems(ctx context.Context, found []*reservation.Reservation) error {
	if len(found) == 0 {
		return nil
	}
	ids := make([]string, len(found))
	byId := make(map[string]*reservation.Reservation, len(found))
	for i, res := range found {
		ids[i] = res.Id
		byId[res.Id] = res
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT reservation_id, sku, quantity FROM stock_reservation_items
WHERE reservation_id = ANY($1) ORDER BY reservation_id, position`, pq.Array(ids))
	if err != nil {
		return fmt.Errorf("select reservation items: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var id string
		var line reservation.Line
		if err := rows.Scan(&id, &line.Sku, &line.Quantity); err != nil {
			return err
		}
		if res, ok := byId[id]; ok {
			res.Items = append(res.Items, line)
		}
	}
	return rows.Err()
}
