package models

import "time"

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

type OrderResponse struct {
	ID          string         `json:"order_id"`
	Status      string         `json:"status"`
	IsRush      bool           `json:"is_rush"`
	ScheduledAt *time.Time     `json:"scheduled_at,omitempty"`
	DeliveredAt *time.Time     `json:"delivered_at,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

type OrderListResponse struct {
	Orders []OrderResponse `json:"orders"`
}

type EventResponse struct {
	ID        string         `json:"id"`
	Type      string         `json:"type"`
	Payload   map[string]any `json:"payload,omitempty"`
	ActorType string         `json:"actor_type"`
	CreatedAt time.Time      `json:"created_at"`
}

type EventListResponse struct {
	OrderID string          `json:"order_id"`
	Events  []EventResponse `json:"events"`
}

type BatchResponse struct {
	ID       string   `json:"batch_id"`
	Category string   `json:"category"`
	AssetIDs []string `json:"asset_ids"`
}

type ProcessingJobResponse struct {
	ID           string `json:"job_id"`
	OrderID      string `json:"order_id"`
	Status       string `json:"status"`
	Stage        string `json:"stage,omitempty"`
	Percent      int    `json:"percent"`
	ErrorMessage string `json:"error_message,omitempty"`
}

type AssignmentResponse struct {
	ID            string     `json:"assignment_id"`
	OrderID       string     `json:"order_id"`
	EditorID      string     `json:"editor_id,omitempty"`
	Status        string     `json:"status"`
	RevisionCount int        `json:"revision_count"`
	MaxRevisions  int        `json:"max_revisions"`
	IsRush        bool       `json:"is_rush"`
	ClaimedAt     *time.Time `json:"claimed_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

type QueueResponse struct {
	Assignments []AssignmentResponse `json:"assignments"`
}

type ReviewResponse struct {
	AssignmentID  string `json:"assignment_id"`
	Outcome       string `json:"outcome"`
	RevisionCount int    `json:"revision_count"`
	Status        string `json:"status"`
}

type RuleResponse struct {
	ID                string         `json:"rule_id"`
	Name              string         `json:"name"`
	TriggerType       string         `json:"trigger_type"`
	TriggerConditions map[string]any `json:"trigger_conditions,omitempty"`
	Channels          []string       `json:"channels"`
	TemplateID        string         `json:"template_id"`
	IsActive          bool           `json:"is_active"`
	CreatedAt         time.Time      `json:"created_at"`
}

type RuleListResponse struct {
	Rules []RuleResponse `json:"rules"`
}

type HealthResponse struct {
	Status string `json:"status"`
}
