package rules

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"shootflow-backend/internal/models"
	"shootflow-backend/internal/store"
)

type Store interface {
	ListActiveRules(ctx context.Context, triggerType models.TriggerType) ([]models.NotificationRule, error)
	MarkFired(ctx context.Context, ruleID, orderID, eventID uuid.UUID) (bool, error)
	GetOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	ListTimeDelayCandidates(ctx context.Context, enteredBefore time.Time) ([]store.TimeDelayCandidate, error)
}

// Dispatcher accepts outbound notification requests. Delivery is best
// effort; Enqueue never blocks the caller.
type Dispatcher interface {
	Enqueue(req models.DispatchRequest)
}

var eventTriggers = map[string]models.TriggerType{
	models.EventStatusChanged:       models.TriggerStatusChange,
	models.EventProcessingCompleted: models.TriggerIntegrationComplete,
	models.EventProcessingFailed:    models.TriggerIntegrationFailed,
	models.EventAssignmentEscalated: models.TriggerEscalation,
}

// Engine matches committed events against active rules. It runs as an
// observer on the lifecycle machine, so it only ever sees events that made
// it into the log.
type Engine struct {
	store      Store
	dispatcher Dispatcher
	logger     *slog.Logger
}

func NewEngine(st Store, dispatcher Dispatcher) *Engine {
	return &Engine{
		store:      st,
		dispatcher: dispatcher,
		logger:     slog.With("component", "rules"),
	}
}

// HandleEvent evaluates every active rule for the event's trigger type.
// Evaluation failures are logged and swallowed: notifications never block
// or roll back the mutation that produced the event.
func (e *Engine) HandleEvent(ev models.Event) {
	triggerType, ok := eventTriggers[ev.Type]
	if !ok {
		return
	}

	ctx := context.Background()
	active, err := e.store.ListActiveRules(ctx, triggerType)
	if err != nil {
		e.logger.Error("failed to load rules", "trigger_type", triggerType, "error", err)
		return
	}
	if len(active) == 0 {
		return
	}

	payload := ev.DecodePayload()
	for _, rule := range active {
		matched, err := matches(rule, payload)
		if err != nil {
			e.logger.Error("failed to evaluate rule", "rule_id", rule.ID, "error", err)
			continue
		}
		if !matched {
			continue
		}
		e.fire(ctx, rule, ev.OrderID, ev.ID, payload)
	}
}

func matches(rule models.NotificationRule, payload map[string]any) (bool, error) {
	switch rule.TriggerType {
	case models.TriggerStatusChange:
		var cond StatusChangeConditions
		if err := decodeConditions(rule.TriggerConditions, &cond); err != nil {
			return false, err
		}
		from, _ := payload["from"].(string)
		to, _ := payload["to"].(string)
		if cond.FromStatus != "" && cond.FromStatus != from {
			return false, nil
		}
		if cond.ToStatus != "" && cond.ToStatus != to {
			return false, nil
		}
		return true, nil

	case models.TriggerIntegrationComplete, models.TriggerIntegrationFailed:
		var cond IntegrationConditions
		if err := decodeConditions(rule.TriggerConditions, &cond); err != nil {
			return false, err
		}
		if cond.IntegrationType != "" {
			got, _ := payload["integration_type"].(string)
			return cond.IntegrationType == got, nil
		}
		return true, nil

	case models.TriggerEscalation:
		return true, nil

	default:
		// time_delay fires from the sweep, schedule from an external cadence.
		return false, nil
	}
}

// fire records the (rule, event) pair and, when this is the first sighting,
// emits one dispatch per configured channel.
func (e *Engine) fire(ctx context.Context, rule models.NotificationRule, orderID, eventID uuid.UUID, variables map[string]any) {
	fired, err := e.store.MarkFired(ctx, rule.ID, orderID, eventID)
	if err != nil {
		e.logger.Error("failed to record firing", "rule_id", rule.ID, "event_id", eventID, "error", err)
		return
	}
	if !fired {
		return
	}

	order, err := e.store.GetOrder(ctx, orderID)
	if err != nil {
		e.logger.Error("failed to load order for dispatch", "order_id", orderID, "error", err)
		return
	}

	vars := map[string]any{
		"order_id": orderID.String(),
		"rule":     rule.Name,
	}
	for k, v := range variables {
		vars[k] = v
	}

	for _, ch := range rule.Channels {
		channel := models.Channel(ch)
		recipient := recipientFor(order, channel)
		if recipient == "" {
			e.logger.Warn("no recipient for channel", "rule_id", rule.ID, "channel", channel, "order_id", orderID)
			continue
		}
		e.dispatcher.Enqueue(models.DispatchRequest{
			Channel:    channel,
			Recipient:  recipient,
			TemplateID: rule.TemplateID,
			Variables:  vars,
		})
	}

	e.logger.Info("rule fired", "rule_id", rule.ID, "rule", rule.Name, "order_id", orderID, "event_id", eventID)
}

func recipientFor(order *models.Order, channel models.Channel) string {
	switch channel {
	case models.ChannelEmail:
		return order.ClientEmail
	case models.ChannelSMS:
		if order.ClientPhone.Valid {
			return order.ClientPhone.String
		}
	}
	return ""
}
