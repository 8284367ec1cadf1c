// Package lifecycle implements the order status state machine. It is the
// single writer of order status: every change is a validated transition that
// commits its event before any observer sees it.
package lifecycle

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"shootflow-backend/internal/apperrors"
	"shootflow-backend/internal/models"
	"shootflow-backend/internal/store"
)

// Store is the persistence the machine needs.
type Store interface {
	GetOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	ApplyTransition(ctx context.Context, orderID uuid.UUID, from, to models.OrderStatus, ev models.Event, idempotencyKey string) (*models.Order, bool, error)
}

// Observer receives committed events. Observers run after the transaction
// that wrote the event; they never see an uncommitted transition.
type Observer func(models.Event)

// staleRetries bounds re-validation attempts when a concurrent writer moved
// the status between our read and our conditional update.
const staleRetries = 3

type Machine struct {
	store     Store
	table     Table
	observers []Observer
	logger    *slog.Logger
}

func NewMachine(st Store, table Table) *Machine {
	return &Machine{
		store:  st,
		table:  table,
		logger: slog.With("component", "lifecycle"),
	}
}

// Subscribe registers an observer for committed events. Not safe to call
// after the machine is in use.
func (m *Machine) Subscribe(obs Observer) {
	m.observers = append(m.observers, obs)
}

// Notify fans a committed event out to observers. Components that append
// events through their own store transactions call this after commit.
func (m *Machine) Notify(ev models.Event) {
	for _, obs := range m.observers {
		obs(ev)
	}
}

// Transition moves the order to target if the edge is allowed from the
// current persisted status. Re-submitting with an idempotency key already
// recorded returns the current snapshot without applying anything.
func (m *Machine) Transition(ctx context.Context, orderID uuid.UUID, target models.OrderStatus, actor models.Actor, idempotencyKey string) (*models.Order, error) {
	for attempt := 0; ; attempt++ {
		order, err := m.store.GetOrder(ctx, orderID)
		if err != nil {
			return nil, err
		}

		if err := m.validate(order.Status, target, actor); err != nil {
			return nil, err
		}

		ev := models.NewEvent(orderID, models.EventStatusChanged, actor, map[string]any{
			"from": string(order.Status),
			"to":   string(target),
		})

		updated, applied, err := m.store.ApplyTransition(ctx, orderID, order.Status, target, ev, idempotencyKey)
		if errors.Is(err, store.ErrStaleStatus) {
			if attempt < staleRetries {
				continue
			}
			return nil, apperrors.Internal("lifecycle.transition", err)
		}
		if err != nil {
			return nil, err
		}

		if applied {
			m.logger.Info("status transition",
				"order_id", orderID, "from", order.Status, "to", target, "actor", actor.Type)
			m.Notify(ev)
		}
		return updated, nil
	}
}

func (m *Machine) validate(from, to models.OrderStatus, actor models.Actor) error {
	if !m.table.Allowed(from, to) {
		return apperrors.InvalidTransition(string(from), string(to))
	}
	// The one regression edge belongs to the revision loop, not to callers.
	if from == models.StatusInQC && to == models.StatusProcessing &&
		actor.Type != models.ActorReviewer && actor.Type != models.ActorSystem {
		return apperrors.InvalidTransition(string(from), string(to))
	}
	return nil
}
