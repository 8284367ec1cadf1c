package assignments

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"shootflow-backend/internal/apperrors"
	"shootflow-backend/internal/models"
	"shootflow-backend/internal/realtime"
)

// Publisher pushes live order updates to dashboards. Best-effort.
type Publisher interface {
	PublishOrderEvent(orderID uuid.UUID, event string, payload map[string]any) error
}

type ReviewStore interface {
	GetAssignment(ctx context.Context, assignmentID uuid.UUID) (*models.EditingAssignment, error)
	GetOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	RecordReview(ctx context.Context, review models.QCReview, next models.AssignmentStatus, newRevisionCount int, keepEditor bool, evs []models.Event) (*models.EditingAssignment, int, error)
	ListReviews(ctx context.Context, assignmentID uuid.UUID) ([]models.QCReview, error)
}

// Reviewer applies QC outcomes to assignments and drives the order status
// alongside: approval of the last open assignment delivers the order, a
// rejection sends it back to processing for another revision round.
type Reviewer struct {
	store     ReviewStore
	driver    StatusDriver
	publisher Publisher
	logger    *slog.Logger
}

func NewReviewer(st ReviewStore, driver StatusDriver) *Reviewer {
	return &Reviewer{
		store:  st,
		driver: driver,
		logger: slog.With("component", "qc"),
	}
}

// WithPublisher attaches realtime delivery publication.
func (r *Reviewer) WithPublisher(p Publisher) *Reviewer {
	r.publisher = p
	return r
}

// Review records a QC outcome for an assignment sitting at pending_qc.
func (r *Reviewer) Review(ctx context.Context, assignmentID, reviewerID uuid.UUID, outcome models.ReviewOutcome, rejectedAssetIDs []uuid.UUID, notes string) (*models.EditingAssignment, error) {
	assignment, err := r.store.GetAssignment(ctx, assignmentID)
	if err != nil {
		return nil, err
	}
	if assignment.Status != models.AssignmentPendingQC {
		return nil, apperrors.Validation("assignment is not pending qc")
	}

	reviewer := models.Actor{ID: reviewerID, Type: models.ActorReviewer}

	// Pull the order into in_qc when the review starts on a fresh round.
	order, err := r.store.GetOrder(ctx, assignment.OrderID)
	if err != nil {
		return nil, err
	}
	if order.Status == models.StatusReadyForQC {
		if _, err := r.driver.Transition(ctx, order.ID, models.StatusInQC, reviewer, ""); err != nil {
			return nil, err
		}
	}

	switch outcome {
	case models.ReviewApproved:
		return r.approve(ctx, assignment, reviewer, rejectedAssetIDs, notes)
	case models.ReviewRejected:
		return r.reject(ctx, assignment, reviewer, rejectedAssetIDs, notes)
	default:
		return nil, apperrors.Validation("outcome must be approved or rejected")
	}
}

func (r *Reviewer) approve(ctx context.Context, assignment *models.EditingAssignment, reviewer models.Actor, rejectedAssetIDs []uuid.UUID, notes string) (*models.EditingAssignment, error) {
	if len(rejectedAssetIDs) > 0 {
		return nil, apperrors.Validation("an approved review cannot reject assets")
	}

	review := newReview(assignment, reviewer.ID, models.ReviewApproved, nil, notes)
	ev := models.NewEvent(assignment.OrderID, models.EventQCReviewRecorded, reviewer, map[string]any{
		"assignment_id": assignment.ID.String(),
		"outcome":       string(models.ReviewApproved),
		"round":         review.Round,
	})

	updated, remaining, err := r.store.RecordReview(ctx, review,
		models.AssignmentCompleted, assignment.RevisionCount, true, []models.Event{ev})
	if err != nil {
		return nil, err
	}
	r.driver.Notify(ev)

	// Delivery waits for the last open assignment on the order.
	if remaining == 0 {
		if _, err := r.driver.Transition(ctx, assignment.OrderID, models.StatusDelivered, reviewer, ""); err != nil {
			return nil, err
		}
		if r.publisher != nil {
			_ = r.publisher.PublishOrderEvent(assignment.OrderID, "order_delivered",
				realtime.OrderDeliveredPayload(assignment.OrderID))
		}
	}

	r.logger.Info("assignment approved", "assignment_id", assignment.ID, "remaining", remaining)
	return updated, nil
}

func (r *Reviewer) reject(ctx context.Context, assignment *models.EditingAssignment, reviewer models.Actor, rejectedAssetIDs []uuid.UUID, notes string) (*models.EditingAssignment, error) {
	rejected := make(pq.StringArray, 0, len(rejectedAssetIDs))
	for _, id := range rejectedAssetIDs {
		rejected = append(rejected, id.String())
	}

	review := newReview(assignment, reviewer.ID, models.ReviewRejected, rejected, notes)
	newCount := assignment.RevisionCount + 1

	evs := []models.Event{
		models.NewEvent(assignment.OrderID, models.EventQCReviewRecorded, reviewer, map[string]any{
			"assignment_id":  assignment.ID.String(),
			"outcome":        string(models.ReviewRejected),
			"round":          review.Round,
			"rejected_count": len(rejected),
		}),
	}

	next := models.AssignmentPending
	if newCount >= assignment.MaxRevisions {
		next = models.AssignmentNeedsEscalation
		evs = append(evs, models.NewEvent(assignment.OrderID, models.EventAssignmentEscalated, models.SystemActor, map[string]any{
			"assignment_id":  assignment.ID.String(),
			"revision_count": newCount,
		}))
	}

	// The same editor keeps the revision round, so requeued work lands on
	// their list rather than back in the open queue.
	updated, _, err := r.store.RecordReview(ctx, review, next, newCount, true, evs)
	if err != nil {
		return nil, err
	}
	for _, ev := range evs {
		r.driver.Notify(ev)
	}

	if next == models.AssignmentPending {
		if _, err := r.driver.Transition(ctx, assignment.OrderID, models.StatusProcessing, reviewer, ""); err != nil {
			return nil, err
		}
		r.logger.Info("assignment rejected, revision requeued",
			"assignment_id", assignment.ID, "revision_count", newCount)
	} else {
		r.logger.Warn("assignment escalated after exhausting revisions",
			"assignment_id", assignment.ID, "revision_count", newCount)
	}

	return updated, nil
}

// ListReviews returns the review history for an assignment in round order.
func (r *Reviewer) ListReviews(ctx context.Context, assignmentID uuid.UUID) ([]models.QCReview, error) {
	return r.store.ListReviews(ctx, assignmentID)
}

func newReview(assignment *models.EditingAssignment, reviewerID uuid.UUID, outcome models.ReviewOutcome, rejected pq.StringArray, notes string) models.QCReview {
	return models.QCReview{
		ID:             uuid.New(),
		AssignmentID:   assignment.ID,
		ReviewerID:     reviewerID,
		Outcome:        outcome,
		RejectedAssets: rejected,
		Notes:          notes,
		Round:          assignment.RevisionCount + 1,
	}
}
