package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"shootflow-backend/internal/apperrors"
	"shootflow-backend/internal/models"
)

const jobColumns = `id, order_id, batch_id, provider_job_id, status, stage, percent,
	error_message, submitted_at, completed_at, created_at, updated_at`

func scanJob(row interface{ Scan(...any) error }) (*models.ProcessingJob, error) {
	var job models.ProcessingJob
	err := row.Scan(
		&job.ID, &job.OrderID, &job.BatchID, &job.ProviderJobID, &job.Status,
		&job.Stage, &job.Percent, &job.ErrorMessage, &job.SubmittedAt,
		&job.CompletedAt, &job.CreatedAt, &job.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &job, nil
}

// CreateBatch inserts a capture batch with its assets and the registration
// event in one transaction.
func (s *Store) CreateBatch(ctx context.Context, batch *models.CaptureBatch, assets []models.CaptureAsset, ev models.Event) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO capture_batches (id, order_id, category)
		VALUES ($1, $2, $3)
	`, batch.ID, batch.OrderID, batch.Category)
	if err != nil {
		return fmt.Errorf("failed to create batch: %w", err)
	}

	for _, asset := range assets {
		_, err = tx.Exec(`
			INSERT INTO capture_assets (id, batch_id, filename, source_url)
			VALUES ($1, $2, $3, $4)
		`, asset.ID, batch.ID, asset.Filename, asset.SourceURL)
		if err != nil {
			return fmt.Errorf("failed to create asset: %w", err)
		}
	}

	if err := appendEvent(tx, ev); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}

	return nil
}

func (s *Store) GetBatch(ctx context.Context, batchID uuid.UUID) (*models.CaptureBatch, error) {
	var batch models.CaptureBatch
	err := s.db.QueryRowContext(ctx, `
		SELECT id, order_id, category, locked, created_at
		FROM capture_batches
		WHERE id = $1
	`, batchID).Scan(&batch.ID, &batch.OrderID, &batch.Category, &batch.Locked, &batch.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFound("capture_batch", batchID.String())
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get batch: %w", err)
	}

	return &batch, nil
}

func (s *Store) ListBatchAssets(ctx context.Context, batchID uuid.UUID) ([]models.CaptureAsset, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, batch_id, filename, source_url, processed_url, thumbnail_url, edited_url, qc_status, created_at
		FROM capture_assets
		WHERE batch_id = $1
		ORDER BY created_at ASC
	`, batchID)
	if err != nil {
		return nil, fmt.Errorf("failed to list assets: %w", err)
	}
	defer rows.Close()

	var assets []models.CaptureAsset
	for rows.Next() {
		var a models.CaptureAsset
		err := rows.Scan(&a.ID, &a.BatchID, &a.Filename, &a.SourceURL,
			&a.ProcessedURL, &a.ThumbnailURL, &a.EditedURL, &a.QCStatus, &a.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan asset: %w", err)
		}
		assets = append(assets, a)
	}

	return assets, rows.Err()
}

// CreateProcessingJob inserts a queued job and locks its batch against
// further asset registration. The partial unique index on
// processing_jobs(batch_id) rejects a second in-flight job for the batch.
func (s *Store) CreateProcessingJob(ctx context.Context, job *models.ProcessingJob) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO processing_jobs (id, order_id, batch_id, status)
		VALUES ($1, $2, $3, $4)
	`, job.ID, job.OrderID, job.BatchID, models.ProcessingQueued)
	if err != nil {
		return fmt.Errorf("failed to create processing job: %w", err)
	}

	_, err = tx.Exec(`
		UPDATE capture_batches SET locked = TRUE WHERE id = $1
	`, job.BatchID)
	if err != nil {
		return fmt.Errorf("failed to lock batch: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}

	return nil
}

// MarkJobRunning records provider acceptance along with its event.
func (s *Store) MarkJobRunning(ctx context.Context, jobID uuid.UUID, providerJobID string, ev models.Event) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		UPDATE processing_jobs
		SET status = $1, provider_job_id = $2, submitted_at = NOW(), updated_at = NOW()
		WHERE id = $3
	`, models.ProcessingRunning, providerJobID, jobID)
	if err != nil {
		return fmt.Errorf("failed to mark job running: %w", err)
	}

	if err := appendEvent(tx, ev); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}

	return nil
}

// MarkJobFailed moves a job to failed unless it is already terminal. Returns
// false when nothing was applied.
func (s *Store) MarkJobFailed(ctx context.Context, jobID uuid.UUID, errorMsg string, ev models.Event) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec(`
		UPDATE processing_jobs
		SET status = $1, error_message = $2, completed_at = NOW(), updated_at = NOW()
		WHERE id = $3 AND status NOT IN ('completed', 'failed')
	`, models.ProcessingFailed, errorMsg, jobID)
	if err != nil {
		return false, fmt.Errorf("failed to mark job failed: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return false, nil
	}

	if err := appendEvent(tx, ev); err != nil {
		return false, err
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit: %w", err)
	}

	return true, nil
}

// AssetResult carries the provider output references for one asset.
type AssetResult struct {
	AssetID      uuid.UUID
	ProcessedURL string
	ThumbnailURL string
}

// CompleteJob marks a job completed, persists output references, creates the
// editing assignment, and appends the completion events, atomically. A job
// already terminal is left untouched and false is returned, which makes a
// replayed provider callback a no-op.
func (s *Store) CompleteJob(ctx context.Context, jobID uuid.UUID, results []AssetResult, assignment *models.EditingAssignment, evs []models.Event) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec(`
		UPDATE processing_jobs
		SET status = $1, stage = 'done', percent = 100, completed_at = NOW(), updated_at = NOW()
		WHERE id = $2 AND status NOT IN ('completed', 'failed')
	`, models.ProcessingCompleted, jobID)
	if err != nil {
		return false, fmt.Errorf("failed to complete job: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return false, nil
	}

	for _, r := range results {
		_, err = tx.Exec(`
			UPDATE capture_assets
			SET processed_url = $1, thumbnail_url = $2
			WHERE id = $3
		`, r.ProcessedURL, r.ThumbnailURL, r.AssetID)
		if err != nil {
			return false, fmt.Errorf("failed to store asset result: %w", err)
		}
	}

	_, err = tx.Exec(`
		INSERT INTO editing_assignments (id, order_id, batch_id, status, max_revisions, is_rush)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, assignment.ID, assignment.OrderID, assignment.BatchID,
		models.AssignmentPending, assignment.MaxRevisions, assignment.IsRush)
	if err != nil {
		return false, fmt.Errorf("failed to create assignment: %w", err)
	}

	for _, ev := range evs {
		if err := appendEvent(tx, ev); err != nil {
			return false, err
		}
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit: %w", err)
	}

	return true, nil
}

// UpdateJobProgress applies a progress push only while the recorded
// (stage, percent) still matches the snapshot the caller decided against.
// A concurrent writer wins the race and the stale push matches no rows.
func (s *Store) UpdateJobProgress(ctx context.Context, jobID uuid.UUID, fromStage string, fromPercent int, stage string, percent int) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE processing_jobs
		SET stage = $1, percent = $2, updated_at = NOW()
		WHERE id = $3 AND status = 'running' AND stage = $4 AND percent = $5
	`, stage, percent, jobID, fromStage, fromPercent)
	if err != nil {
		return false, fmt.Errorf("failed to update progress: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (s *Store) GetProcessingJob(ctx context.Context, jobID uuid.UUID) (*models.ProcessingJob, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+jobColumns+` FROM processing_jobs WHERE id = $1
	`, jobID)

	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFound("processing_job", jobID.String())
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get processing job: %w", err)
	}

	return job, nil
}

func (s *Store) GetJobByProviderID(ctx context.Context, providerJobID string) (*models.ProcessingJob, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+jobColumns+` FROM processing_jobs WHERE provider_job_id = $1
	`, providerJobID)

	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFound("processing_job", providerJobID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get processing job: %w", err)
	}

	return job, nil
}

// ListStaleRunningJobs returns jobs submitted before the cutoff and still
// running, for the timeout sweep.
func (s *Store) ListStaleRunningJobs(ctx context.Context, submittedBefore time.Time) ([]models.ProcessingJob, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+jobColumns+`
		FROM processing_jobs
		WHERE status = 'running' AND submitted_at <= $1
	`, submittedBefore)
	if err != nil {
		return nil, fmt.Errorf("failed to list stale jobs: %w", err)
	}
	defer rows.Close()

	var jobs []models.ProcessingJob
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan job: %w", err)
		}
		jobs = append(jobs, *job)
	}

	return jobs, rows.Err()
}
