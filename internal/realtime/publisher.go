// Package realtime pushes order progress to dashboard clients through
// Supabase realtime, fed by inserts into a per-order event table that
// clients subscribe to with postgres_changes.
package realtime

import (
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/supabase-community/supabase-go"
)

const eventsTable = "realtime_order_events"

type Publisher struct {
	client *supabase.Client
	logger *slog.Logger
}

func NewPublisher(supabaseURL, serviceRoleKey string) (*Publisher, error) {
	client, err := supabase.NewClient(supabaseURL, serviceRoleKey, nil)
	if err != nil {
		return nil, err
	}

	return &Publisher{
		client: client,
		logger: slog.With("component", "realtime"),
	}, nil
}

type orderEventRow struct {
	OrderID   string         `json:"order_id"`
	Event     string         `json:"event"`
	Payload   map[string]any `json:"payload"`
	CreatedAt string         `json:"created_at"`
}

// PublishOrderEvent inserts a row the dashboard's subscription picks up.
// Best effort: callers ignore the error or log it, delivery of realtime
// updates never gates order progress.
func (p *Publisher) PublishOrderEvent(orderID uuid.UUID, event string, payload map[string]any) error {
	row := orderEventRow{
		OrderID:   orderID.String(),
		Event:     event,
		Payload:   payload,
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
	}

	_, _, err := p.client.From(eventsTable).Insert(row, false, "", "", "").Execute()
	if err != nil {
		p.logger.Warn("failed to publish realtime event",
			"order_id", orderID, "event", event, "error", err)
		return err
	}

	return nil
}

// Payload helpers shared by the tracker and handlers.

func ProcessingStartedPayload(batchID uuid.UUID, providerJobID string) map[string]any {
	return map[string]any{
		"batch_id":        batchID.String(),
		"status":          "processing",
		"provider_job_id": providerJobID,
	}
}

func ProcessingProgressPayload(stage string, percent int) map[string]any {
	return map[string]any{
		"status":  "processing",
		"stage":   stage,
		"percent": percent,
	}
}

func ProcessingCompletedPayload(batchID uuid.UUID, assetCount int) map[string]any {
	return map[string]any{
		"batch_id":    batchID.String(),
		"status":      "completed",
		"percent":     100,
		"asset_count": assetCount,
	}
}

func ProcessingFailedPayload(errorMsg string) map[string]any {
	return map[string]any{
		"status": "failed",
		"error":  errorMsg,
	}
}

func OrderDeliveredPayload(orderID uuid.UUID) map[string]any {
	return map[string]any{
		"order_id": orderID.String(),
		"status":   "delivered",
	}
}
