// Package assignments covers the editing side of the pipeline: exclusive
// claim of editing work and the QC review loop that gates delivery.
package assignments

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"shootflow-backend/internal/apperrors"
	"shootflow-backend/internal/models"
)

type QueueStore interface {
	GetAssignment(ctx context.Context, assignmentID uuid.UUID) (*models.EditingAssignment, error)
	ClaimAssignment(ctx context.Context, assignmentID, editorID uuid.UUID, ev models.Event) (*models.EditingAssignment, error)
	CountInProgress(ctx context.Context, editorID uuid.UUID) (int, error)
	ListQueue(ctx context.Context) ([]models.EditingAssignment, error)
	ListForEditor(ctx context.Context, editorID uuid.UUID) ([]models.EditingAssignment, error)
	ListBatchAssets(ctx context.Context, batchID uuid.UUID) ([]models.CaptureAsset, error)
	SubmitAssignmentEdits(ctx context.Context, assignmentID uuid.UUID, edits map[uuid.UUID]string, ev models.Event) (*models.EditingAssignment, error)
}

// StatusDriver is the slice of the lifecycle machine the queue needs.
type StatusDriver interface {
	Transition(ctx context.Context, orderID uuid.UUID, target models.OrderStatus, actor models.Actor, idempotencyKey string) (*models.Order, error)
	Notify(ev models.Event)
}

type Queue struct {
	store       QueueStore
	driver      StatusDriver
	workloadCap int
	logger      *slog.Logger
}

func NewQueue(st QueueStore, driver StatusDriver, workloadCap int) *Queue {
	return &Queue{
		store:       st,
		driver:      driver,
		workloadCap: workloadCap,
		logger:      slog.With("component", "assignments"),
	}
}

// Claim assigns the editing work to the editor. The workload check is
// advisory backpressure; the conditional update inside ClaimAssignment is
// the only step that decides a race.
func (q *Queue) Claim(ctx context.Context, assignmentID, editorID uuid.UUID, override bool) (*models.EditingAssignment, error) {
	if !override {
		held, err := q.store.CountInProgress(ctx, editorID)
		if err != nil {
			return nil, err
		}
		if held >= q.workloadCap {
			return nil, apperrors.WorkloadExceeded(editorID.String(), held)
		}
	}

	// Resolve the order id for the claim event before the atomic step.
	current, err := q.store.GetAssignment(ctx, assignmentID)
	if err != nil {
		return nil, err
	}

	ev := models.NewEvent(current.OrderID, models.EventAssignmentClaimed,
		models.Actor{ID: editorID, Type: models.ActorEditor},
		map[string]any{"assignment_id": assignmentID.String()})

	claimed, err := q.store.ClaimAssignment(ctx, assignmentID, editorID, ev)
	if err != nil {
		return nil, err
	}

	q.logger.Info("assignment claimed", "assignment_id", assignmentID, "editor_id", editorID)
	q.driver.Notify(ev)
	return claimed, nil
}

// ListQueue returns unclaimed pending assignments, rush first.
func (q *Queue) ListQueue(ctx context.Context) ([]models.EditingAssignment, error) {
	return q.store.ListQueue(ctx)
}

// ListForEditor returns the editor's open work, including pre-assigned
// revision rounds.
func (q *Queue) ListForEditor(ctx context.Context, editorID uuid.UUID) ([]models.EditingAssignment, error) {
	return q.store.ListForEditor(ctx, editorID)
}

// SubmitEdits records the edited asset references and moves the assignment
// to pending_qc. Every asset in the batch needs an edited counterpart,
// either from this submission or a previous revision round.
func (q *Queue) SubmitEdits(ctx context.Context, assignmentID uuid.UUID, edits map[uuid.UUID]string, actor models.Actor) (*models.EditingAssignment, error) {
	assignment, err := q.store.GetAssignment(ctx, assignmentID)
	if err != nil {
		return nil, err
	}
	if assignment.Status != models.AssignmentInProgress {
		return nil, apperrors.Validation("assignment is not in progress")
	}
	if actor.Type == models.ActorEditor && assignment.EditorID.Valid && assignment.EditorID.UUID != actor.ID {
		return nil, apperrors.Validation("assignment belongs to another editor")
	}

	assets, err := q.store.ListBatchAssets(ctx, assignment.BatchID)
	if err != nil {
		return nil, err
	}

	missing := 0
	for _, asset := range assets {
		if asset.EditedURL.Valid {
			continue
		}
		if _, ok := edits[asset.ID]; !ok {
			missing++
		}
	}
	if missing > 0 {
		return nil, apperrors.IncompleteEdit(missing)
	}

	ev := models.NewEvent(assignment.OrderID, models.EventEditsSubmitted, actor, map[string]any{
		"assignment_id": assignmentID.String(),
		"edited_count":  len(edits),
	})

	updated, err := q.store.SubmitAssignmentEdits(ctx, assignmentID, edits, ev)
	if err != nil {
		return nil, err
	}
	q.driver.Notify(ev)

	if _, err := q.driver.Transition(ctx, assignment.OrderID, models.StatusReadyForQC, actor, ""); err != nil {
		return nil, err
	}

	return updated, nil
}
