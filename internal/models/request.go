package models

type CreateOrderRequest struct {
	ClientEmail string `json:"client_email" binding:"required,email"`
	ClientPhone string `json:"client_phone,omitempty"`
	IsRush      bool   `json:"is_rush"`
	// ScheduledAt is RFC3339; empty means not yet scheduled.
	ScheduledAt string         `json:"scheduled_at,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

type TransitionRequest struct {
	TargetStatus string `json:"target_status" binding:"required"`
	// IdempotencyKey lets callers safely re-submit after a persistence failure.
	IdempotencyKey string `json:"idempotency_key,omitempty"`
}

type RegisterBatchRequest struct {
	Category string `json:"category" binding:"required"`
	Assets   []struct {
		Filename  string `json:"filename" binding:"required"`
		SourceURL string `json:"source_url" binding:"required"`
	} `json:"assets" binding:"required"`
}

type SubmitProcessingRequest struct {
	BatchID  string   `json:"batch_id" binding:"required"`
	AssetIDs []string `json:"asset_ids" binding:"required"`
}

type ClaimRequest struct {
	// Override skips the workload cap check (administrators only).
	Override bool `json:"override,omitempty"`
}

type SubmitEditsRequest struct {
	EditedAssets []struct {
		AssetID   string `json:"asset_id" binding:"required"`
		EditedURL string `json:"edited_url" binding:"required"`
	} `json:"edited_assets" binding:"required"`
}

type ReviewRequest struct {
	Outcome          string   `json:"outcome" binding:"required"`
	RejectedAssetIDs []string `json:"rejected_asset_ids,omitempty"`
	Notes            string   `json:"notes,omitempty"`
}

type CreateRuleRequest struct {
	Name              string         `json:"name" binding:"required"`
	TriggerType       string         `json:"trigger_type" binding:"required"`
	TriggerConditions map[string]any `json:"trigger_conditions,omitempty"`
	Channels          []string       `json:"channels" binding:"required"`
	TemplateID        string         `json:"template_id" binding:"required"`
	IsActive          *bool          `json:"is_active,omitempty"`
}

type UpdateRuleRequest struct {
	Name              *string        `json:"name,omitempty"`
	TriggerConditions map[string]any `json:"trigger_conditions,omitempty"`
	Channels          []string       `json:"channels,omitempty"`
	TemplateID        *string        `json:"template_id,omitempty"`
	IsActive          *bool          `json:"is_active,omitempty"`
}
