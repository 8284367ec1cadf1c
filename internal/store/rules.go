package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"shootflow-backend/internal/apperrors"
	"shootflow-backend/internal/models"
)

const ruleColumns = `id, name, trigger_type, trigger_conditions, channels,
	template_id, is_active, created_at, updated_at`

func scanRule(row interface{ Scan(...any) error }) (*models.NotificationRule, error) {
	var r models.NotificationRule
	err := row.Scan(
		&r.ID, &r.Name, &r.TriggerType, &r.TriggerConditions, &r.Channels,
		&r.TemplateID, &r.IsActive, &r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *Store) CreateRule(ctx context.Context, rule *models.NotificationRule) (*models.NotificationRule, error) {
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO notification_rules (id, name, trigger_type, trigger_conditions, channels, template_id, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING `+ruleColumns+`
	`, rule.ID, rule.Name, rule.TriggerType, rule.TriggerConditions,
		rule.Channels, rule.TemplateID, rule.IsActive)

	created, err := scanRule(row)
	if err != nil {
		return nil, fmt.Errorf("failed to create rule: %w", err)
	}

	return created, nil
}

func (s *Store) GetRule(ctx context.Context, ruleID uuid.UUID) (*models.NotificationRule, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+ruleColumns+` FROM notification_rules WHERE id = $1
	`, ruleID)

	rule, err := scanRule(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFound("rule", ruleID.String())
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get rule: %w", err)
	}

	return rule, nil
}

func (s *Store) ListRules(ctx context.Context) ([]models.NotificationRule, error) {
	return s.listRules(ctx, `
		SELECT `+ruleColumns+` FROM notification_rules ORDER BY created_at ASC
	`)
}

// ListActiveRules returns active rules for one trigger type.
func (s *Store) ListActiveRules(ctx context.Context, triggerType models.TriggerType) ([]models.NotificationRule, error) {
	return s.listRules(ctx, `
		SELECT `+ruleColumns+`
		FROM notification_rules
		WHERE is_active AND trigger_type = $1
		ORDER BY created_at ASC
	`, triggerType)
}

func (s *Store) listRules(ctx context.Context, query string, args ...any) ([]models.NotificationRule, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list rules: %w", err)
	}
	defer rows.Close()

	var rules []models.NotificationRule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan rule: %w", err)
		}
		rules = append(rules, *rule)
	}

	return rules, rows.Err()
}

func (s *Store) UpdateRule(ctx context.Context, rule *models.NotificationRule) (*models.NotificationRule, error) {
	row := s.db.QueryRowContext(ctx, `
		UPDATE notification_rules
		SET name = $1, trigger_conditions = $2, channels = $3, template_id = $4,
		    is_active = $5, updated_at = NOW()
		WHERE id = $6
		RETURNING `+ruleColumns+`
	`, rule.Name, rule.TriggerConditions, rule.Channels, rule.TemplateID,
		rule.IsActive, rule.ID)

	updated, err := scanRule(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFound("rule", rule.ID.String())
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update rule: %w", err)
	}

	return updated, nil
}

func (s *Store) DeleteRule(ctx context.Context, ruleID uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM notification_rules WHERE id = $1
	`, ruleID)
	if err != nil {
		return fmt.Errorf("failed to delete rule: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperrors.NotFound("rule", ruleID.String())
	}
	return nil
}

// MarkFired records a firing for (rule, event). Returns false when the pair
// was already recorded, making rule evaluation idempotent under event replay
// and overlapping sweeps.
func (s *Store) MarkFired(ctx context.Context, ruleID, orderID, eventID uuid.UUID) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO rule_firings (rule_id, order_id, event_id)
		VALUES ($1, $2, $3)
		ON CONFLICT DO NOTHING
	`, ruleID, orderID, eventID)
	if err != nil {
		return false, fmt.Errorf("failed to mark firing: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}
