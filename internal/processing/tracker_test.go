package processing

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"shootflow-backend/internal/apperrors"
	"shootflow-backend/internal/models"
	"shootflow-backend/internal/provider"
	"shootflow-backend/internal/store"
)

type fakeStore struct {
	mu          sync.Mutex
	orders      map[uuid.UUID]*models.Order
	batches     map[uuid.UUID]*models.CaptureBatch
	assets      map[uuid.UUID][]models.CaptureAsset
	jobs        map[uuid.UUID]*models.ProcessingJob
	assignments map[uuid.UUID]*models.EditingAssignment
	events      []models.Event
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		orders:      map[uuid.UUID]*models.Order{},
		batches:     map[uuid.UUID]*models.CaptureBatch{},
		assets:      map[uuid.UUID][]models.CaptureAsset{},
		jobs:        map[uuid.UUID]*models.ProcessingJob{},
		assignments: map[uuid.UUID]*models.EditingAssignment{},
	}
}

func (f *fakeStore) seedOrder(status models.OrderStatus, rush bool) *models.Order {
	o := &models.Order{ID: uuid.New(), Status: status, IsRush: rush}
	f.orders[o.ID] = o
	return o
}

func (f *fakeStore) seedBatch(orderID uuid.UUID, assetCount int) (*models.CaptureBatch, []uuid.UUID) {
	b := &models.CaptureBatch{ID: uuid.New(), OrderID: orderID, Category: "exterior"}
	f.batches[b.ID] = b
	ids := make([]uuid.UUID, 0, assetCount)
	for i := 0; i < assetCount; i++ {
		a := models.CaptureAsset{ID: uuid.New(), BatchID: b.ID, Filename: "f.raw", SourceURL: "https://cdn/f.raw"}
		f.assets[b.ID] = append(f.assets[b.ID], a)
		ids = append(ids, a.ID)
	}
	return b, ids
}

func (f *fakeStore) GetOrder(_ context.Context, id uuid.UUID) (*models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[id]
	if !ok {
		return nil, apperrors.NotFound("order", id.String())
	}
	copied := *o
	return &copied, nil
}

func (f *fakeStore) GetBatch(_ context.Context, id uuid.UUID) (*models.CaptureBatch, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.batches[id]
	if !ok {
		return nil, apperrors.NotFound("capture_batch", id.String())
	}
	copied := *b
	return &copied, nil
}

func (f *fakeStore) ListBatchAssets(_ context.Context, id uuid.UUID) ([]models.CaptureAsset, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.CaptureAsset(nil), f.assets[id]...), nil
}

func (f *fakeStore) CreateProcessingJob(_ context.Context, job *models.ProcessingJob) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	copied := *job
	f.jobs[job.ID] = &copied
	f.batches[job.BatchID].Locked = true
	return nil
}

func (f *fakeStore) MarkJobRunning(_ context.Context, jobID uuid.UUID, providerJobID string, ev models.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	job := f.jobs[jobID]
	job.Status = models.ProcessingRunning
	job.ProviderJobID.String = providerJobID
	job.ProviderJobID.Valid = true
	job.SubmittedAt.Time = time.Now()
	job.SubmittedAt.Valid = true
	f.events = append(f.events, ev)
	return nil
}

func (f *fakeStore) MarkJobFailed(_ context.Context, jobID uuid.UUID, errorMsg string, ev models.Event) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	job := f.jobs[jobID]
	if job.Status.Terminal() {
		return false, nil
	}
	job.Status = models.ProcessingFailed
	job.ErrorMessage.String = errorMsg
	job.ErrorMessage.Valid = true
	f.events = append(f.events, ev)
	return true, nil
}

func (f *fakeStore) CompleteJob(_ context.Context, jobID uuid.UUID, results []store.AssetResult, assignment *models.EditingAssignment, evs []models.Event) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	job := f.jobs[jobID]
	if job.Status.Terminal() {
		return false, nil
	}
	job.Status = models.ProcessingCompleted
	for _, r := range results {
		for i, a := range f.assets[job.BatchID] {
			if a.ID == r.AssetID {
				f.assets[job.BatchID][i].ProcessedURL.String = r.ProcessedURL
				f.assets[job.BatchID][i].ProcessedURL.Valid = true
			}
		}
	}
	copied := *assignment
	f.assignments[assignment.ID] = &copied
	f.events = append(f.events, evs...)
	return true, nil
}

func (f *fakeStore) UpdateJobProgress(_ context.Context, jobID uuid.UUID, fromStage string, fromPercent int, stage string, percent int) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	job := f.jobs[jobID]
	if job.Status != models.ProcessingRunning || job.Stage != fromStage || job.Percent != fromPercent {
		return false, nil
	}
	job.Stage = stage
	job.Percent = percent
	return true, nil
}

func (f *fakeStore) GetProcessingJob(_ context.Context, id uuid.UUID) (*models.ProcessingJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	job, ok := f.jobs[id]
	if !ok {
		return nil, apperrors.NotFound("processing_job", id.String())
	}
	copied := *job
	return &copied, nil
}

func (f *fakeStore) GetJobByProviderID(_ context.Context, providerJobID string) (*models.ProcessingJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, job := range f.jobs {
		if job.ProviderJobID.Valid && job.ProviderJobID.String == providerJobID {
			copied := *job
			return &copied, nil
		}
	}
	return nil, apperrors.NotFound("processing_job", providerJobID)
}

func (f *fakeStore) ListStaleRunningJobs(_ context.Context, before time.Time) ([]models.ProcessingJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.ProcessingJob
	for _, job := range f.jobs {
		if job.Status == models.ProcessingRunning && job.SubmittedAt.Valid && !job.SubmittedAt.Time.After(before) {
			out = append(out, *job)
		}
	}
	return out, nil
}

type fakeDriver struct {
	mu          sync.Mutex
	transitions []models.OrderStatus
	notified    []models.Event
	store       *fakeStore
}

func (d *fakeDriver) Transition(_ context.Context, orderID uuid.UUID, target models.OrderStatus, _ models.Actor, _ string) (*models.Order, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.transitions = append(d.transitions, target)
	d.store.orders[orderID].Status = target
	copied := *d.store.orders[orderID]
	return &copied, nil
}

func (d *fakeDriver) Notify(ev models.Event) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.notified = append(d.notified, ev)
}

type fakeSubmitter struct {
	jobID      string
	err        error
	calls      int
	pollStatus *provider.JobStatusResponse
	pollErr    error
	polls      int
}

func (s *fakeSubmitter) SubmitMerge(_ context.Context, _ provider.MergeRequest) (string, error) {
	s.calls++
	if s.err != nil {
		return "", s.err
	}
	return s.jobID, nil
}

func (s *fakeSubmitter) GetJobStatus(_ context.Context, _ string) (*provider.JobStatusResponse, error) {
	s.polls++
	if s.pollErr != nil {
		return nil, s.pollErr
	}
	if s.pollStatus != nil {
		return s.pollStatus, nil
	}
	return &provider.JobStatusResponse{Status: "running"}, nil
}

func (s *fakeSubmitter) RetryWithBackoff(fn func() error, maxRetries int) error {
	var err error
	for i := 0; i < maxRetries; i++ {
		if err = fn(); err == nil {
			return nil
		}
	}
	return err
}

func newTracker(fs *fakeStore, sub *fakeSubmitter) (*Tracker, *fakeDriver) {
	driver := &fakeDriver{store: fs}
	tracker := NewTracker(fs, sub, driver, Config{
		CallbackURL:  "https://api.test/webhooks/processing",
		MaxRevisions: 3,
		Timeout:      time.Hour,
	})
	return tracker, driver
}

func TestSubmit_InsufficientAssets(t *testing.T) {
	fs := newFakeStore()
	order := fs.seedOrder(models.StatusStaged, false)
	batch, ids := fs.seedBatch(order.ID, 1)
	tracker, _ := newTracker(fs, &fakeSubmitter{jobID: "prov-1"})

	_, err := tracker.Submit(context.Background(), order.ID, batch.ID, ids, models.SystemActor)

	assert.ErrorIs(t, err, apperrors.ErrInsufficientAssets)
	assert.Empty(t, fs.jobs, "no job row may be created")
}

func TestSubmit_Success(t *testing.T) {
	fs := newFakeStore()
	order := fs.seedOrder(models.StatusStaged, false)
	batch, ids := fs.seedBatch(order.ID, 3)
	sub := &fakeSubmitter{jobID: "prov-1"}
	tracker, driver := newTracker(fs, sub)

	job, err := tracker.Submit(context.Background(), order.ID, batch.ID, ids, models.SystemActor)
	require.NoError(t, err)

	assert.Equal(t, models.ProcessingRunning, job.Status)
	assert.Equal(t, 1, sub.calls)
	assert.Equal(t, []models.OrderStatus{models.StatusProcessing}, driver.transitions)
	assert.True(t, fs.batches[batch.ID].Locked)
	require.Len(t, fs.events, 1)
	assert.Equal(t, models.EventProcessingSubmitted, fs.events[0].Type)
}

func TestSubmit_ProviderFailureLeavesOrderAlone(t *testing.T) {
	fs := newFakeStore()
	order := fs.seedOrder(models.StatusStaged, false)
	batch, ids := fs.seedBatch(order.ID, 2)
	tracker, driver := newTracker(fs, &fakeSubmitter{err: errors.New("503 from provider")})

	_, err := tracker.Submit(context.Background(), order.ID, batch.ID, ids, models.SystemActor)

	assert.ErrorIs(t, err, apperrors.ErrUpstream)
	assert.Empty(t, driver.transitions, "order status must stay untouched")
	require.Len(t, fs.jobs, 1)
	for _, job := range fs.jobs {
		assert.Equal(t, models.ProcessingFailed, job.Status)
	}
}

func TestSubmit_AssetOutsideBatch(t *testing.T) {
	fs := newFakeStore()
	order := fs.seedOrder(models.StatusStaged, false)
	batch, ids := fs.seedBatch(order.ID, 2)
	tracker, _ := newTracker(fs, &fakeSubmitter{jobID: "prov-1"})

	_, err := tracker.Submit(context.Background(), order.ID, batch.ID, append(ids, uuid.New()), models.SystemActor)
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func submitRunningJob(t *testing.T, fs *fakeStore, tracker *Tracker, orderID, batchID uuid.UUID, ids []uuid.UUID) *models.ProcessingJob {
	t.Helper()
	job, err := tracker.Submit(context.Background(), orderID, batchID, ids, models.SystemActor)
	require.NoError(t, err)
	return job
}

func TestHandleCallback_CompletedCreatesAssignment(t *testing.T) {
	fs := newFakeStore()
	order := fs.seedOrder(models.StatusStaged, true)
	batch, ids := fs.seedBatch(order.ID, 3)
	tracker, driver := newTracker(fs, &fakeSubmitter{jobID: "prov-1"})
	submitRunningJob(t, fs, tracker, order.ID, batch.ID, ids)

	payload := CallbackPayload{
		JobID:  "prov-1",
		Status: "completed",
		Results: []CallbackResult{
			{AssetID: ids[0].String(), ProcessedURL: "https://cdn/p0.jpg", ThumbnailURL: "https://cdn/t0.jpg"},
			{AssetID: ids[1].String(), ProcessedURL: "https://cdn/p1.jpg", ThumbnailURL: "https://cdn/t1.jpg"},
			{AssetID: ids[2].String(), ProcessedURL: "https://cdn/p2.jpg", ThumbnailURL: "https://cdn/t2.jpg"},
		},
	}
	require.NoError(t, tracker.HandleCallback(context.Background(), payload))

	require.Len(t, fs.assignments, 1)
	for _, a := range fs.assignments {
		assert.Equal(t, models.AssignmentPending, a.Status)
		assert.True(t, a.IsRush, "assignment inherits the order's rush flag")
		assert.Equal(t, 3, a.MaxRevisions)
		assert.False(t, a.EditorID.Valid)
	}

	// submitted + completed + assignment_created
	types := []string{}
	for _, ev := range fs.events {
		types = append(types, ev.Type)
	}
	assert.Contains(t, types, models.EventProcessingCompleted)
	assert.Contains(t, types, models.EventAssignmentCreated)
	assert.GreaterOrEqual(t, len(driver.notified), 3)
}

func TestHandleCallback_ReplayIsNoOp(t *testing.T) {
	fs := newFakeStore()
	order := fs.seedOrder(models.StatusStaged, false)
	batch, ids := fs.seedBatch(order.ID, 2)
	tracker, _ := newTracker(fs, &fakeSubmitter{jobID: "prov-1"})
	submitRunningJob(t, fs, tracker, order.ID, batch.ID, ids)

	payload := CallbackPayload{
		JobID:  "prov-1",
		Status: "completed",
		Results: []CallbackResult{
			{AssetID: ids[0].String(), ProcessedURL: "https://cdn/p.jpg", ThumbnailURL: "https://cdn/t.jpg"},
		},
	}
	require.NoError(t, tracker.HandleCallback(context.Background(), payload))
	eventsAfterFirst := len(fs.events)
	assignmentsAfterFirst := len(fs.assignments)

	require.NoError(t, tracker.HandleCallback(context.Background(), payload))

	assert.Equal(t, eventsAfterFirst, len(fs.events), "replay must not append events")
	assert.Equal(t, assignmentsAfterFirst, len(fs.assignments), "replay must not create a second assignment")
}

func TestHandleCallback_Failed(t *testing.T) {
	fs := newFakeStore()
	order := fs.seedOrder(models.StatusStaged, false)
	batch, ids := fs.seedBatch(order.ID, 2)
	tracker, driver := newTracker(fs, &fakeSubmitter{jobID: "prov-1"})
	job := submitRunningJob(t, fs, tracker, order.ID, batch.ID, ids)

	err := tracker.HandleCallback(context.Background(), CallbackPayload{
		JobID:  "prov-1",
		Status: "failed",
		Error:  "merge rejected",
	})
	require.NoError(t, err)

	stored := fs.jobs[job.ID]
	assert.Equal(t, models.ProcessingFailed, stored.Status)
	assert.Equal(t, "merge rejected", stored.ErrorMessage.String)
	// Order is left where it was for manual intervention.
	assert.Equal(t, []models.OrderStatus{models.StatusProcessing}, driver.transitions)
}

func TestHandleCallback_UnknownJob(t *testing.T) {
	fs := newFakeStore()
	tracker, _ := newTracker(fs, &fakeSubmitter{jobID: "prov-1"})

	err := tracker.HandleCallback(context.Background(), CallbackPayload{JobID: "missing", Status: "completed"})
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestHandleCallback_EarlierStageAtSamePercentIsNoOp(t *testing.T) {
	fs := newFakeStore()
	order := fs.seedOrder(models.StatusStaged, false)
	batch, ids := fs.seedBatch(order.ID, 2)
	tracker, _ := newTracker(fs, &fakeSubmitter{jobID: "prov-1"})
	job := submitRunningJob(t, fs, tracker, order.ID, batch.ID, ids)

	require.NoError(t, tracker.HandleCallback(context.Background(), CallbackPayload{
		JobID: "prov-1", Status: "progress", Stage: "tone", Percent: 40,
	}))
	require.Equal(t, "tone", fs.jobs[job.ID].Stage)

	// A resent merge-stage message at the same percent must not roll the
	// recorded stage back.
	require.NoError(t, tracker.HandleCallback(context.Background(), CallbackPayload{
		JobID: "prov-1", Status: "progress", Stage: "merge", Percent: 40,
	}))

	stored := fs.jobs[job.ID]
	assert.Equal(t, "tone", stored.Stage)
	assert.Equal(t, 40, stored.Percent)
}

func agePastTimeout(fs *fakeStore, jobID uuid.UUID) {
	fs.mu.Lock()
	fs.jobs[jobID].SubmittedAt.Time = time.Now().Add(-2 * time.Hour)
	fs.mu.Unlock()
}

func TestSweepTimeouts(t *testing.T) {
	fs := newFakeStore()
	order := fs.seedOrder(models.StatusStaged, false)
	batch, ids := fs.seedBatch(order.ID, 2)
	sub := &fakeSubmitter{jobID: "prov-1"}
	tracker, _ := newTracker(fs, sub)
	job := submitRunningJob(t, fs, tracker, order.ID, batch.ID, ids)

	agePastTimeout(fs, job.ID)
	tracker.SweepTimeouts(context.Background())

	stored := fs.jobs[job.ID]
	assert.Equal(t, models.ProcessingFailed, stored.Status)
	assert.Equal(t, "timeout", stored.ErrorMessage.String)
	assert.Equal(t, 1, sub.polls, "a stale job is polled before being failed")

	// A second sweep pass is a no-op on the already-failed job.
	eventsAfter := len(fs.events)
	tracker.SweepTimeouts(context.Background())
	assert.Equal(t, eventsAfter, len(fs.events))
}

func TestSweepTimeouts_ProviderReportsFailure(t *testing.T) {
	fs := newFakeStore()
	order := fs.seedOrder(models.StatusStaged, false)
	batch, ids := fs.seedBatch(order.ID, 2)
	sub := &fakeSubmitter{
		jobID:      "prov-1",
		pollStatus: &provider.JobStatusResponse{Status: "failed", Error: "merge rejected upstream"},
	}
	tracker, _ := newTracker(fs, sub)
	job := submitRunningJob(t, fs, tracker, order.ID, batch.ID, ids)

	agePastTimeout(fs, job.ID)
	tracker.SweepTimeouts(context.Background())

	stored := fs.jobs[job.ID]
	assert.Equal(t, models.ProcessingFailed, stored.Status)
	assert.Equal(t, "merge rejected upstream", stored.ErrorMessage.String)
}

func TestSweepTimeouts_CompletedUpstreamStaysRunning(t *testing.T) {
	fs := newFakeStore()
	order := fs.seedOrder(models.StatusStaged, false)
	batch, ids := fs.seedBatch(order.ID, 2)
	sub := &fakeSubmitter{
		jobID:      "prov-1",
		pollStatus: &provider.JobStatusResponse{Status: "completed", Percent: 100},
	}
	tracker, _ := newTracker(fs, sub)
	job := submitRunningJob(t, fs, tracker, order.ID, batch.ID, ids)

	agePastTimeout(fs, job.ID)
	eventsBefore := len(fs.events)
	tracker.SweepTimeouts(context.Background())

	// The callback replay still has to deliver the results, so the job is
	// left running rather than failed.
	assert.Equal(t, models.ProcessingRunning, fs.jobs[job.ID].Status)
	assert.Equal(t, eventsBefore, len(fs.events))
}

func TestSweepTimeouts_PollErrorFallsBackToTimeout(t *testing.T) {
	fs := newFakeStore()
	order := fs.seedOrder(models.StatusStaged, false)
	batch, ids := fs.seedBatch(order.ID, 2)
	sub := &fakeSubmitter{jobID: "prov-1", pollErr: errors.New("provider unreachable")}
	tracker, _ := newTracker(fs, sub)
	job := submitRunningJob(t, fs, tracker, order.ID, batch.ID, ids)

	agePastTimeout(fs, job.ID)
	tracker.SweepTimeouts(context.Background())

	stored := fs.jobs[job.ID]
	assert.Equal(t, models.ProcessingFailed, stored.Status)
	assert.Equal(t, "timeout", stored.ErrorMessage.String)
	assert.Equal(t, pollRetries, sub.polls)
}
