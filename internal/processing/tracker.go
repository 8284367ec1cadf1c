// Package processing owns the lifecycle of the external HDR-merge job: one
// in-flight job per capture batch, driven by provider callbacks and a
// timeout sweep.
package processing

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"shootflow-backend/internal/apperrors"
	"shootflow-backend/internal/models"
	"shootflow-backend/internal/provider"
	"shootflow-backend/internal/realtime"
	"shootflow-backend/internal/store"
)

// MinAssets is the smallest bracket set the provider can merge.
const MinAssets = 2

type Store interface {
	GetOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	GetBatch(ctx context.Context, batchID uuid.UUID) (*models.CaptureBatch, error)
	ListBatchAssets(ctx context.Context, batchID uuid.UUID) ([]models.CaptureAsset, error)
	CreateProcessingJob(ctx context.Context, job *models.ProcessingJob) error
	MarkJobRunning(ctx context.Context, jobID uuid.UUID, providerJobID string, ev models.Event) error
	MarkJobFailed(ctx context.Context, jobID uuid.UUID, errorMsg string, ev models.Event) (bool, error)
	CompleteJob(ctx context.Context, jobID uuid.UUID, results []store.AssetResult, assignment *models.EditingAssignment, evs []models.Event) (bool, error)
	UpdateJobProgress(ctx context.Context, jobID uuid.UUID, fromStage string, fromPercent int, stage string, percent int) (bool, error)
	GetProcessingJob(ctx context.Context, jobID uuid.UUID) (*models.ProcessingJob, error)
	GetJobByProviderID(ctx context.Context, providerJobID string) (*models.ProcessingJob, error)
	ListStaleRunningJobs(ctx context.Context, submittedBefore time.Time) ([]models.ProcessingJob, error)
}

// StatusDriver is the slice of the lifecycle machine the tracker needs.
type StatusDriver interface {
	Transition(ctx context.Context, orderID uuid.UUID, target models.OrderStatus, actor models.Actor, idempotencyKey string) (*models.Order, error)
	Notify(ev models.Event)
}

// Submitter is the slice of the provider client the tracker uses: merge
// submission plus direct polling for jobs whose callbacks went quiet.
type Submitter interface {
	SubmitMerge(ctx context.Context, req provider.MergeRequest) (string, error)
	GetJobStatus(ctx context.Context, jobID string) (*provider.JobStatusResponse, error)
	RetryWithBackoff(fn func() error, maxRetries int) error
}

// Archiver copies processed outputs into long-term storage. Best-effort.
type Archiver interface {
	ArchiveProcessed(ctx context.Context, orderID uuid.UUID, results []Result)
}

// Publisher pushes live status updates to dashboards. Best-effort.
type Publisher interface {
	PublishOrderEvent(orderID uuid.UUID, event string, payload map[string]any) error
}

type Config struct {
	CallbackURL  string
	MaxRevisions int
	Timeout      time.Duration
}

type Tracker struct {
	store     Store
	submitter Submitter
	driver    StatusDriver
	archiver  Archiver
	publisher Publisher
	cfg       Config
	logger    *slog.Logger
}

func NewTracker(st Store, submitter Submitter, driver StatusDriver, cfg Config) *Tracker {
	return &Tracker{
		store:     st,
		submitter: submitter,
		driver:    driver,
		cfg:       cfg,
		logger:    slog.With("component", "processing"),
	}
}

// WithArchiver attaches processed-output archival.
func (t *Tracker) WithArchiver(a Archiver) *Tracker {
	t.archiver = a
	return t
}

// WithPublisher attaches realtime status publication.
func (t *Tracker) WithPublisher(p Publisher) *Tracker {
	t.publisher = p
	return t
}

// Submit creates a processing job for the batch and hands it to the
// provider. If the provider call fails the job is marked failed and the
// order keeps its prior status.
func (t *Tracker) Submit(ctx context.Context, orderID, batchID uuid.UUID, assetIDs []uuid.UUID, actor models.Actor) (*models.ProcessingJob, error) {
	if len(assetIDs) < MinAssets {
		return nil, apperrors.InsufficientAssets(len(assetIDs), MinAssets)
	}

	order, err := t.store.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}

	batch, err := t.store.GetBatch(ctx, batchID)
	if err != nil {
		return nil, err
	}
	if batch.OrderID != orderID {
		return nil, apperrors.Validation("batch does not belong to order")
	}

	assets, err := t.store.ListBatchAssets(ctx, batchID)
	if err != nil {
		return nil, err
	}
	byID := make(map[uuid.UUID]models.CaptureAsset, len(assets))
	for _, a := range assets {
		byID[a.ID] = a
	}

	mergeAssets := make([]provider.MergeAsset, 0, len(assetIDs))
	for _, id := range assetIDs {
		asset, ok := byID[id]
		if !ok {
			return nil, apperrors.Validation("asset " + id.String() + " is not in the batch")
		}
		mergeAssets = append(mergeAssets, provider.MergeAsset{
			AssetID:   asset.ID.String(),
			SourceURL: asset.SourceURL,
		})
	}

	job := &models.ProcessingJob{
		ID:      uuid.New(),
		OrderID: orderID,
		BatchID: batchID,
		Status:  models.ProcessingQueued,
	}
	if err := t.store.CreateProcessingJob(ctx, job); err != nil {
		return nil, err
	}

	providerJobID, err := t.submitter.SubmitMerge(ctx, provider.MergeRequest{
		Assets:      mergeAssets,
		CallbackURL: t.cfg.CallbackURL,
		HDRMerge:    true,
	})
	if err != nil {
		ev := models.NewEvent(orderID, models.EventProcessingFailed, actor, map[string]any{
			"job_id":        job.ID.String(),
			"error_message": err.Error(),
		})
		if _, markErr := t.store.MarkJobFailed(ctx, job.ID, err.Error(), ev); markErr != nil {
			t.logger.Error("failed to mark job failed", "job_id", job.ID, "error", markErr)
		} else {
			t.driver.Notify(ev)
		}
		return nil, apperrors.Upstream("provider.submitMerge", err)
	}

	ev := models.NewEvent(orderID, models.EventProcessingSubmitted, actor, map[string]any{
		"job_id":          job.ID.String(),
		"provider_job_id": providerJobID,
		"asset_count":     len(assetIDs),
	})
	if err := t.store.MarkJobRunning(ctx, job.ID, providerJobID, ev); err != nil {
		return nil, err
	}
	t.driver.Notify(ev)

	if order.Status != models.StatusProcessing {
		if _, err := t.driver.Transition(ctx, orderID, models.StatusProcessing, actor, ""); err != nil {
			return nil, err
		}
	}

	if t.publisher != nil {
		_ = t.publisher.PublishOrderEvent(orderID, "processing_started",
			realtime.ProcessingStartedPayload(batchID, providerJobID))
	}

	job.Status = models.ProcessingRunning
	return job, nil
}

// HandleCallback applies a provider callback. Replayed callbacks for a
// terminal job are no-ops.
func (t *Tracker) HandleCallback(ctx context.Context, payload CallbackPayload) error {
	job, err := t.store.GetJobByProviderID(ctx, payload.JobID)
	if err != nil {
		return err
	}

	decision := Apply(job, payload)

	switch decision.Action {
	case ActionNone:
		return nil

	case ActionProgress:
		applied, err := t.store.UpdateJobProgress(ctx, job.ID, job.Stage, job.Percent, decision.Stage, decision.Percent)
		if err != nil {
			return err
		}
		if applied && t.publisher != nil {
			_ = t.publisher.PublishOrderEvent(job.OrderID, "processing_progress",
				realtime.ProcessingProgressPayload(decision.Stage, decision.Percent))
		}
		return nil

	case ActionFail:
		return t.failJob(ctx, job, decision.ErrorMessage)

	case ActionComplete:
		return t.completeJob(ctx, job, decision)
	}

	return nil
}

func (t *Tracker) failJob(ctx context.Context, job *models.ProcessingJob, errorMsg string) error {
	ev := models.NewEvent(job.OrderID, models.EventProcessingFailed, models.SystemActor, map[string]any{
		"job_id":        job.ID.String(),
		"error_message": errorMsg,
	})
	applied, err := t.store.MarkJobFailed(ctx, job.ID, errorMsg, ev)
	if err != nil {
		return err
	}
	if !applied {
		return nil
	}

	t.logger.Warn("processing job failed", "job_id", job.ID, "order_id", job.OrderID, "error", errorMsg)
	t.driver.Notify(ev)

	if t.publisher != nil {
		_ = t.publisher.PublishOrderEvent(job.OrderID, "processing_failed",
			realtime.ProcessingFailedPayload(errorMsg))
	}
	return nil
}

func (t *Tracker) completeJob(ctx context.Context, job *models.ProcessingJob, decision Decision) error {
	order, err := t.store.GetOrder(ctx, job.OrderID)
	if err != nil {
		return err
	}

	assignment := &models.EditingAssignment{
		ID:           uuid.New(),
		OrderID:      job.OrderID,
		BatchID:      job.BatchID,
		Status:       models.AssignmentPending,
		MaxRevisions: t.cfg.MaxRevisions,
		IsRush:       order.IsRush,
	}

	results := make([]store.AssetResult, 0, len(decision.Results))
	for _, r := range decision.Results {
		results = append(results, store.AssetResult{
			AssetID:      r.AssetID,
			ProcessedURL: r.ProcessedURL,
			ThumbnailURL: r.ThumbnailURL,
		})
	}

	completedEv := models.NewEvent(job.OrderID, models.EventProcessingCompleted, models.SystemActor, map[string]any{
		"job_id":      job.ID.String(),
		"asset_count": len(results),
	})
	assignmentEv := models.NewEvent(job.OrderID, models.EventAssignmentCreated, models.SystemActor, map[string]any{
		"assignment_id": assignment.ID.String(),
		"batch_id":      job.BatchID.String(),
	})

	applied, err := t.store.CompleteJob(ctx, job.ID, results, assignment, []models.Event{completedEv, assignmentEv})
	if err != nil {
		return err
	}
	if !applied {
		return nil
	}

	t.logger.Info("processing job completed", "job_id", job.ID, "order_id", job.OrderID, "assets", len(results))
	t.driver.Notify(completedEv)
	t.driver.Notify(assignmentEv)

	if t.archiver != nil {
		go t.archiver.ArchiveProcessed(context.WithoutCancel(ctx), job.OrderID, decision.Results)
	}
	if t.publisher != nil {
		_ = t.publisher.PublishOrderEvent(job.OrderID, "processing_completed",
			realtime.ProcessingCompletedPayload(job.BatchID, len(results)))
	}
	return nil
}
