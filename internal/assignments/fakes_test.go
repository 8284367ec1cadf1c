package assignments

import (
	"context"
	"database/sql"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"shootflow-backend/internal/apperrors"
	"shootflow-backend/internal/models"
)

// fakeStore replicates the conditional-update contracts of the SQL store
// under a mutex so claim races behave the same way.
type fakeStore struct {
	mu          sync.Mutex
	orders      map[uuid.UUID]*models.Order
	assignments map[uuid.UUID]*models.EditingAssignment
	assets      map[uuid.UUID][]models.CaptureAsset
	reviews     []models.QCReview
	events      []models.Event
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		orders:      make(map[uuid.UUID]*models.Order),
		assignments: make(map[uuid.UUID]*models.EditingAssignment),
		assets:      make(map[uuid.UUID][]models.CaptureAsset),
	}
}

func (f *fakeStore) GetAssignment(_ context.Context, id uuid.UUID) (*models.EditingAssignment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.assignments[id]
	if !ok {
		return nil, apperrors.NotFound("assignment", id.String())
	}
	cp := *a
	return &cp, nil
}

func (f *fakeStore) GetOrder(_ context.Context, id uuid.UUID) (*models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[id]
	if !ok {
		return nil, apperrors.NotFound("order", id.String())
	}
	cp := *o
	return &cp, nil
}

func (f *fakeStore) ClaimAssignment(_ context.Context, assignmentID, editorID uuid.UUID, ev models.Event) (*models.EditingAssignment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.assignments[assignmentID]
	if !ok {
		return nil, apperrors.NotFound("assignment", assignmentID.String())
	}
	if a.Status != models.AssignmentPending || (a.EditorID.Valid && a.EditorID.UUID != editorID) {
		return nil, apperrors.AlreadyClaimed(assignmentID.String())
	}
	a.Status = models.AssignmentInProgress
	a.EditorID = uuid.NullUUID{UUID: editorID, Valid: true}
	a.ClaimedAt = sql.NullTime{Time: time.Now(), Valid: true}
	f.events = append(f.events, ev)
	cp := *a
	return &cp, nil
}

func (f *fakeStore) CountInProgress(_ context.Context, editorID uuid.UUID) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, a := range f.assignments {
		if a.Status == models.AssignmentInProgress && a.EditorID.Valid && a.EditorID.UUID == editorID {
			count++
		}
	}
	return count, nil
}

func (f *fakeStore) ListQueue(_ context.Context) ([]models.EditingAssignment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.EditingAssignment
	for _, a := range f.assignments {
		if a.Status == models.AssignmentPending && !a.EditorID.Valid {
			out = append(out, *a)
		}
	}
	sortAssignments(out)
	return out, nil
}

func (f *fakeStore) ListForEditor(_ context.Context, editorID uuid.UUID) ([]models.EditingAssignment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.EditingAssignment
	for _, a := range f.assignments {
		if a.EditorID.Valid && a.EditorID.UUID == editorID &&
			(a.Status == models.AssignmentPending || a.Status == models.AssignmentInProgress) {
			out = append(out, *a)
		}
	}
	sortAssignments(out)
	return out, nil
}

func sortAssignments(out []models.EditingAssignment) {
	sort.Slice(out, func(i, j int) bool {
		if out[i].IsRush != out[j].IsRush {
			return out[i].IsRush
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
}

func (f *fakeStore) ListBatchAssets(_ context.Context, batchID uuid.UUID) ([]models.CaptureAsset, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.CaptureAsset(nil), f.assets[batchID]...), nil
}

func (f *fakeStore) SubmitAssignmentEdits(_ context.Context, assignmentID uuid.UUID, edits map[uuid.UUID]string, ev models.Event) (*models.EditingAssignment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.assignments[assignmentID]
	if !ok {
		return nil, apperrors.NotFound("assignment", assignmentID.String())
	}
	if a.Status != models.AssignmentInProgress {
		return nil, apperrors.Validation("assignment is not in progress")
	}
	a.Status = models.AssignmentPendingQC
	batch := f.assets[a.BatchID]
	for i := range batch {
		if url, ok := edits[batch[i].ID]; ok {
			batch[i].EditedURL = sql.NullString{String: url, Valid: true}
		}
	}
	f.events = append(f.events, ev)
	cp := *a
	return &cp, nil
}

func (f *fakeStore) RecordReview(_ context.Context, review models.QCReview, next models.AssignmentStatus, newRevisionCount int, keepEditor bool, evs []models.Event) (*models.EditingAssignment, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.assignments[review.AssignmentID]
	if !ok {
		return nil, 0, apperrors.NotFound("assignment", review.AssignmentID.String())
	}
	if a.Status != models.AssignmentPendingQC {
		return nil, 0, apperrors.Validation("assignment is not pending qc")
	}
	f.reviews = append(f.reviews, review)
	a.Status = next
	a.RevisionCount = newRevisionCount
	if !keepEditor {
		a.EditorID = uuid.NullUUID{}
		a.ClaimedAt = sql.NullTime{}
	}
	for _, assetID := range review.RejectedAssets {
		batch := f.assets[a.BatchID]
		for i := range batch {
			if batch[i].ID.String() == assetID {
				batch[i].QCStatus = sql.NullString{String: "rejected", Valid: true}
			}
		}
	}
	remaining := 0
	for _, other := range f.assignments {
		if other.OrderID == a.OrderID && other.ID != a.ID && other.Status != models.AssignmentCompleted {
			remaining++
		}
	}
	f.events = append(f.events, evs...)
	cp := *a
	return &cp, remaining, nil
}

func (f *fakeStore) ListReviews(_ context.Context, assignmentID uuid.UUID) ([]models.QCReview, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.QCReview
	for _, r := range f.reviews {
		if r.AssignmentID == assignmentID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Round < out[j].Round })
	return out, nil
}

func (f *fakeStore) eventTypes() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	types := make([]string, len(f.events))
	for i, ev := range f.events {
		types[i] = ev.Type
	}
	return types
}

// fakeDriver records transitions and applies them to the fake store so
// reads in the same scenario observe the new order status.
type fakeDriver struct {
	mu          sync.Mutex
	store       *fakeStore
	transitions []models.OrderStatus
	notified    []models.Event
}

func (d *fakeDriver) Transition(_ context.Context, orderID uuid.UUID, target models.OrderStatus, _ models.Actor, _ string) (*models.Order, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.transitions = append(d.transitions, target)
	d.store.mu.Lock()
	defer d.store.mu.Unlock()
	o, ok := d.store.orders[orderID]
	if !ok {
		return nil, apperrors.NotFound("order", orderID.String())
	}
	o.Status = target
	cp := *o
	return &cp, nil
}

func (d *fakeDriver) Notify(ev models.Event) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.notified = append(d.notified, ev)
}

func seedOrder(st *fakeStore, status models.OrderStatus, rush bool) *models.Order {
	o := &models.Order{
		ID:       uuid.New(),
		ClientID: uuid.New(),
		Status:   status,
		IsRush:   rush,
	}
	st.orders[o.ID] = o
	return o
}

func seedAssignment(st *fakeStore, order *models.Order, status models.AssignmentStatus, maxRevisions int) *models.EditingAssignment {
	a := &models.EditingAssignment{
		ID:           uuid.New(),
		OrderID:      order.ID,
		BatchID:      uuid.New(),
		Status:       status,
		MaxRevisions: maxRevisions,
		IsRush:       order.IsRush,
		CreatedAt:    time.Now(),
	}
	st.assignments[a.ID] = a
	return a
}

func seedAssets(st *fakeStore, batchID uuid.UUID, n int) []models.CaptureAsset {
	assets := make([]models.CaptureAsset, n)
	for i := range assets {
		assets[i] = models.CaptureAsset{ID: uuid.New(), BatchID: batchID}
	}
	st.assets[batchID] = assets
	return assets
}
