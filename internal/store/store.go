// Package store is the persistence layer. All writes that matter to order
// history go through transactions that also append to the events table, so a
// failed append aborts the mutation it describes.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	_ "github.com/lib/pq"
	"shootflow-backend/internal/models"
)

// ErrStaleStatus is returned when a conditional status update matched no rows
// because a concurrent writer got there first.
var ErrStaleStatus = errors.New("order status changed concurrently")

type Store struct {
	db *sql.DB
}

func New(connectionString string) (*Store, error) {
	db, err := sql.Open("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// prefixColumns qualifies a comma-separated column list with a table alias.
func prefixColumns(alias, columns string) string {
	parts := strings.Split(columns, ",")
	for i, p := range parts {
		parts[i] = alias + "." + strings.TrimSpace(p)
	}
	return strings.Join(parts, ", ")
}

// appendEvent writes an event inside tx. Every state mutation in this package
// calls it from the same transaction as the mutation itself.
func appendEvent(tx *sql.Tx, ev models.Event) error {
	_, err := tx.Exec(`
		INSERT INTO events (id, order_id, event_type, payload, actor_id, actor_type, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, ev.ID, ev.OrderID, ev.Type, ev.Payload, ev.ActorID, ev.ActorType, ev.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to append event: %w", err)
	}
	return nil
}

func (s *Store) ListEvents(ctx context.Context, orderID string) ([]models.Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, order_id, event_type, payload, actor_id, actor_type, created_at
		FROM events
		WHERE order_id = $1
		ORDER BY created_at ASC
	`, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	defer rows.Close()

	var events []models.Event
	for rows.Next() {
		var ev models.Event
		err := rows.Scan(&ev.ID, &ev.OrderID, &ev.Type, &ev.Payload, &ev.ActorID, &ev.ActorType, &ev.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		events = append(events, ev)
	}

	return events, rows.Err()
}
