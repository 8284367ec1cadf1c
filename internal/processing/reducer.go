package processing

import (
	"github.com/google/uuid"
	"shootflow-backend/internal/models"
)

// CallbackPayload is the provider's webhook body.
type CallbackPayload struct {
	JobID   string           `json:"job_id"`
	Status  string           `json:"status"` // "completed", "failed" or "progress"
	Stage   string           `json:"stage,omitempty"`
	Percent int              `json:"percent,omitempty"`
	Results []CallbackResult `json:"results,omitempty"`
	Error   string           `json:"error,omitempty"`
}

type CallbackResult struct {
	AssetID      string `json:"asset_id"`
	ProcessedURL string `json:"processed_url"`
	ThumbnailURL string `json:"thumbnail_url"`
}

type Action int

const (
	ActionNone Action = iota
	ActionComplete
	ActionFail
	ActionProgress
)

// Result is a provider output reference resolved to an asset id.
type Result struct {
	AssetID      uuid.UUID
	ProcessedURL string
	ThumbnailURL string
}

// Decision is what a callback means for the tracked job. Apply computes it
// without touching storage, so idempotence and ordering rules are testable
// against plain values.
type Decision struct {
	Action       Action
	Results      []Result
	ErrorMessage string
	Stage        string
	Percent      int
}

// Provider pipeline stages in reporting order. Unknown stage names rank
// lowest so a replayed or malformed stage can never displace a known one at
// the same percent.
func stageRank(stage string) int {
	switch stage {
	case "", "queued":
		return 0
	case "merge":
		return 1
	case "tone":
		return 2
	case "export":
		return 3
	case "done":
		return 4
	}
	return -1
}

// Apply reduces (current job state, callback payload) to a decision.
// Callbacks for a terminal job are no-ops regardless of payload, and
// progress that does not advance the recorded (stage, percent) is dropped.
func Apply(job *models.ProcessingJob, payload CallbackPayload) Decision {
	if job.Status.Terminal() {
		return Decision{Action: ActionNone}
	}

	switch payload.Status {
	case "completed":
		d := Decision{Action: ActionComplete}
		for _, r := range payload.Results {
			assetID, err := uuid.Parse(r.AssetID)
			if err != nil {
				continue
			}
			d.Results = append(d.Results, Result{
				AssetID:      assetID,
				ProcessedURL: r.ProcessedURL,
				ThumbnailURL: r.ThumbnailURL,
			})
		}
		return d

	case "failed":
		msg := payload.Error
		if msg == "" {
			msg = "processing failed"
		}
		return Decision{Action: ActionFail, ErrorMessage: msg}

	case "progress":
		if payload.Percent < job.Percent {
			return Decision{Action: ActionNone}
		}
		if payload.Percent == job.Percent && stageRank(payload.Stage) <= stageRank(job.Stage) {
			return Decision{Action: ActionNone}
		}
		return Decision{Action: ActionProgress, Stage: payload.Stage, Percent: payload.Percent}
	}

	return Decision{Action: ActionNone}
}
