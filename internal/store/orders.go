package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"shootflow-backend/internal/apperrors"
	"shootflow-backend/internal/models"
)

const orderColumns = `id, client_id, client_email, client_phone, status, is_rush,
	scheduled_at, delivered_at, metadata, status_event_id, created_at, updated_at`

func scanOrder(row interface{ Scan(...any) error }) (*models.Order, error) {
	var order models.Order
	err := row.Scan(
		&order.ID, &order.ClientID, &order.ClientEmail, &order.ClientPhone,
		&order.Status, &order.IsRush, &order.ScheduledAt, &order.DeliveredAt,
		&order.Metadata, &order.StatusEventID, &order.CreatedAt, &order.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// CreateOrder inserts the order and its order_created event in one
// transaction. The created event also records the initial status entry.
func (s *Store) CreateOrder(ctx context.Context, order *models.Order, ev models.Event) (*models.Order, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	row := tx.QueryRow(`
		INSERT INTO orders (id, client_id, client_email, client_phone, status, is_rush, scheduled_at, metadata, status_event_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING `+orderColumns+`
	`, order.ID, order.ClientID, order.ClientEmail, order.ClientPhone,
		order.Status, order.IsRush, order.ScheduledAt, order.Metadata, ev.ID)

	created, err := scanOrder(row)
	if err != nil {
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	if err := appendEvent(tx, ev); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit: %w", err)
	}

	return created, nil
}

func (s *Store) GetOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+orderColumns+` FROM orders WHERE id = $1
	`, orderID)

	order, err := scanOrder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFound("order", orderID.String())
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get order: %w", err)
	}

	return order, nil
}

func (s *Store) ListOrders(ctx context.Context) ([]models.Order, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+orderColumns+` FROM orders ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	defer rows.Close()

	var orders []models.Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, *order)
	}

	return orders, rows.Err()
}

// ApplyTransition performs the single-writer status update: a conditional
// UPDATE guarded on the expected current status, the transition event, and
// the idempotency marker, all in one transaction.
//
// The second return value is false when the idempotency key was already
// recorded and nothing was applied.
func (s *Store) ApplyTransition(ctx context.Context, orderID uuid.UUID, from, to models.OrderStatus, ev models.Event, idempotencyKey string) (*models.Order, bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if idempotencyKey != "" {
		res, err := tx.Exec(`
			INSERT INTO transition_keys (order_id, target_status, idempotency_key)
			VALUES ($1, $2, $3)
			ON CONFLICT DO NOTHING
		`, orderID, to, idempotencyKey)
		if err != nil {
			return nil, false, fmt.Errorf("failed to record idempotency key: %w", err)
		}
		inserted, _ := res.RowsAffected()
		if inserted == 0 {
			order, err := s.GetOrder(ctx, orderID)
			if err != nil {
				return nil, false, err
			}
			return order, false, nil
		}
	}

	row := tx.QueryRow(`
		UPDATE orders
		SET status = $1,
		    status_event_id = $2,
		    delivered_at = CASE WHEN $1 = 'delivered' THEN NOW() ELSE delivered_at END,
		    updated_at = NOW()
		WHERE id = $3 AND status = $4
		RETURNING `+orderColumns+`
	`, to, ev.ID, orderID, from)

	order, err := scanOrder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, ErrStaleStatus
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to update status: %w", err)
	}

	if err := appendEvent(tx, ev); err != nil {
		return nil, false, err
	}

	if err := tx.Commit(); err != nil {
		return nil, false, fmt.Errorf("failed to commit: %w", err)
	}

	return order, true, nil
}

// TimeDelayCandidate pairs an order with the moment it entered its current
// status; the status-entry event id is the dedupe key for time-delay rules.
type TimeDelayCandidate struct {
	Order     models.Order
	EnteredAt time.Time
}

// ListTimeDelayCandidates returns non-terminal orders whose current status
// was entered at or before the cutoff.
func (s *Store) ListTimeDelayCandidates(ctx context.Context, enteredBefore time.Time) ([]TimeDelayCandidate, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+prefixColumns("o", orderColumns)+`, e.created_at
		FROM orders o
		JOIN events e ON e.id = o.status_event_id
		WHERE o.status NOT IN ('delivered', 'cancelled')
		  AND e.created_at <= $1
	`, enteredBefore)
	if err != nil {
		return nil, fmt.Errorf("failed to list time-delay candidates: %w", err)
	}
	defer rows.Close()

	var out []TimeDelayCandidate
	for rows.Next() {
		var c TimeDelayCandidate
		err := rows.Scan(
			&c.Order.ID, &c.Order.ClientID, &c.Order.ClientEmail, &c.Order.ClientPhone,
			&c.Order.Status, &c.Order.IsRush, &c.Order.ScheduledAt, &c.Order.DeliveredAt,
			&c.Order.Metadata, &c.Order.StatusEventID, &c.Order.CreatedAt, &c.Order.UpdatedAt,
			&c.EnteredAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan candidate: %w", err)
		}
		out = append(out, c)
	}

	return out, rows.Err()
}
