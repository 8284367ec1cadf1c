package processing

import (
	"context"
	"time"

	"shootflow-backend/internal/models"
	"shootflow-backend/internal/provider"
)

const pollRetries = 3

// RunTimeoutSweep flags jobs running past the configured ceiling as failed.
// It runs until the context is cancelled; the caller owns the goroutine.
func (t *Tracker) RunTimeoutSweep(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.SweepTimeouts(ctx)
		}
	}
}

// SweepTimeouts performs one pass over stale running jobs. Each stale job is
// polled at the provider first, so a job that actually finished upstream is
// not failed locally just because its callback went missing.
func (t *Tracker) SweepTimeouts(ctx context.Context) {
	cutoff := time.Now().Add(-t.cfg.Timeout)
	jobs, err := t.store.ListStaleRunningJobs(ctx, cutoff)
	if err != nil {
		t.logger.Error("timeout sweep failed", "error", err)
		return
	}

	for _, job := range jobs {
		t.resolveStaleJob(ctx, &job)
	}
}

func (t *Tracker) resolveStaleJob(ctx context.Context, job *models.ProcessingJob) {
	reason := "timeout"

	if job.ProviderJobID.Valid {
		var status *provider.JobStatusResponse
		err := t.submitter.RetryWithBackoff(func() error {
			s, pollErr := t.submitter.GetJobStatus(ctx, job.ProviderJobID.String)
			if pollErr != nil {
				return pollErr
			}
			status = s
			return nil
		}, pollRetries)
		if err != nil {
			t.logger.Warn("stale job poll failed", "job_id", job.ID, "error", err)
		} else {
			switch status.Status {
			case "completed":
				// The provider finished but the callback never arrived.
				// Leave the job running so the callback replay (or an
				// operator) can complete it with its results.
				t.logger.Warn("stale job completed upstream, awaiting callback",
					"job_id", job.ID, "provider_job_id", job.ProviderJobID.String)
				return
			case "failed":
				if status.Error != "" {
					reason = status.Error
				}
			}
		}
	}

	if err := t.failJob(ctx, job, reason); err != nil {
		t.logger.Error("failed to time out job", "job_id", job.ID, "error", err)
	}
}
