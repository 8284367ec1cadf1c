package rules

import (
	"context"
	"time"

	"shootflow-backend/internal/models"
)

// RunTimeDelaySweep evaluates time_delay rules on a fixed interval until
// the context is cancelled.
func (e *Engine) RunTimeDelaySweep(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	e.logger.Info("time-delay sweep started", "interval", interval)
	for {
		select {
		case <-ctx.Done():
			e.logger.Info("time-delay sweep stopped")
			return
		case <-ticker.C:
			if err := e.SweepTimeDelays(ctx); err != nil {
				e.logger.Error("time-delay sweep failed", "error", err)
			}
		}
	}
}

// SweepTimeDelays fires every time_delay rule whose delay has elapsed for an
// order's current status. The status-entry event id keys the firing, so each
// rule fires at most once per order per status entry, even across
// overlapping sweeps.
func (e *Engine) SweepTimeDelays(ctx context.Context) error {
	active, err := e.store.ListActiveRules(ctx, models.TriggerTimeDelay)
	if err != nil {
		return err
	}

	now := time.Now()
	for _, rule := range active {
		var cond TimeDelayConditions
		if err := decodeConditions(rule.TriggerConditions, &cond); err != nil {
			e.logger.Error("failed to decode time-delay conditions", "rule_id", rule.ID, "error", err)
			continue
		}
		if cond.DelayMinutes <= 0 {
			continue
		}

		cutoff := now.Add(-time.Duration(cond.DelayMinutes) * time.Minute)
		candidates, err := e.store.ListTimeDelayCandidates(ctx, cutoff)
		if err != nil {
			return err
		}

		for _, cand := range candidates {
			if cond.Status != "" && cond.Status != string(cand.Order.Status) {
				continue
			}
			e.fire(ctx, rule, cand.Order.ID, cand.Order.StatusEventID, map[string]any{
				"status":     string(cand.Order.Status),
				"entered_at": cand.EnteredAt.UTC().Format(time.RFC3339),
			})
		}
	}

	return nil
}
