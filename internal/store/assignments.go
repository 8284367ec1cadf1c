package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"shootflow-backend/internal/apperrors"
	"shootflow-backend/internal/models"
)

const assignmentColumns = `id, order_id, batch_id, editor_id, status, revision_count,
	max_revisions, is_rush, claimed_at, created_at, updated_at`

func scanAssignment(row interface{ Scan(...any) error }) (*models.EditingAssignment, error) {
	var a models.EditingAssignment
	err := row.Scan(
		&a.ID, &a.OrderID, &a.BatchID, &a.EditorID, &a.Status, &a.RevisionCount,
		&a.MaxRevisions, &a.IsRush, &a.ClaimedAt, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *Store) GetAssignment(ctx context.Context, assignmentID uuid.UUID) (*models.EditingAssignment, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+assignmentColumns+` FROM editing_assignments WHERE id = $1
	`, assignmentID)

	a, err := scanAssignment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFound("assignment", assignmentID.String())
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get assignment: %w", err)
	}

	return a, nil
}

// ClaimAssignment is the one genuine compare-and-set in the system: the
// conditional UPDATE succeeds for exactly one claimant. Revision rounds keep
// editor_id populated, so only the pre-assigned editor matches.
func (s *Store) ClaimAssignment(ctx context.Context, assignmentID, editorID uuid.UUID, ev models.Event) (*models.EditingAssignment, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	row := tx.QueryRow(`
		UPDATE editing_assignments
		SET status = $1, editor_id = $2, claimed_at = NOW(), updated_at = NOW()
		WHERE id = $3
		  AND status = 'pending'
		  AND (editor_id IS NULL OR editor_id = $2)
		RETURNING `+assignmentColumns+`
	`, models.AssignmentInProgress, editorID, assignmentID)

	a, err := scanAssignment(row)
	if errors.Is(err, sql.ErrNoRows) {
		// Distinguish a lost race from an unknown assignment.
		if _, getErr := s.GetAssignment(ctx, assignmentID); getErr != nil {
			return nil, getErr
		}
		return nil, apperrors.AlreadyClaimed(assignmentID.String())
	}
	if err != nil {
		return nil, fmt.Errorf("failed to claim assignment: %w", err)
	}

	if err := appendEvent(tx, ev); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit: %w", err)
	}

	return a, nil
}

// CountInProgress returns how many assignments the editor currently holds.
func (s *Store) CountInProgress(ctx context.Context, editorID uuid.UUID) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM editing_assignments
		WHERE editor_id = $1 AND status = 'in_progress'
	`, editorID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count assignments: %w", err)
	}
	return count, nil
}

// ListQueue returns unclaimed pending assignments, rush orders first, oldest
// first within the same priority.
func (s *Store) ListQueue(ctx context.Context) ([]models.EditingAssignment, error) {
	return s.listAssignments(ctx, `
		SELECT `+assignmentColumns+`
		FROM editing_assignments
		WHERE status = 'pending' AND editor_id IS NULL
		ORDER BY is_rush DESC, created_at ASC
	`)
}

// ListForEditor returns the editor's open work, including revision rounds
// requeued as pending with the editor pre-assigned.
func (s *Store) ListForEditor(ctx context.Context, editorID uuid.UUID) ([]models.EditingAssignment, error) {
	return s.listAssignments(ctx, `
		SELECT `+assignmentColumns+`
		FROM editing_assignments
		WHERE editor_id = $1 AND status IN ('pending', 'in_progress')
		ORDER BY is_rush DESC, created_at ASC
	`, editorID)
}

func (s *Store) listAssignments(ctx context.Context, query string, args ...any) ([]models.EditingAssignment, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list assignments: %w", err)
	}
	defer rows.Close()

	var out []models.EditingAssignment
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan assignment: %w", err)
		}
		out = append(out, *a)
	}

	return out, rows.Err()
}

// SubmitAssignmentEdits stores the edited asset references and moves the
// assignment to pending_qc, guarded on it still being in progress.
func (s *Store) SubmitAssignmentEdits(ctx context.Context, assignmentID uuid.UUID, edits map[uuid.UUID]string, ev models.Event) (*models.EditingAssignment, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	row := tx.QueryRow(`
		UPDATE editing_assignments
		SET status = $1, updated_at = NOW()
		WHERE id = $2 AND status = 'in_progress'
		RETURNING `+assignmentColumns+`
	`, models.AssignmentPendingQC, assignmentID)

	a, err := scanAssignment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.Validation("assignment is not in progress")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to submit edits: %w", err)
	}

	for assetID, editedURL := range edits {
		_, err = tx.Exec(`
			UPDATE capture_assets SET edited_url = $1 WHERE id = $2
		`, editedURL, assetID)
		if err != nil {
			return nil, fmt.Errorf("failed to store edited asset: %w", err)
		}
	}

	if err := appendEvent(tx, ev); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit: %w", err)
	}

	return a, nil
}

// RecordReview writes the QC review row, applies the outcome to the
// assignment (guarded on pending_qc), marks rejected assets, and appends the
// outcome events. Returns the updated assignment and how many other
// assignments for the order are still unfinished.
func (s *Store) RecordReview(ctx context.Context, review models.QCReview, next models.AssignmentStatus, newRevisionCount int, keepEditor bool, evs []models.Event) (*models.EditingAssignment, int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// Lock the order row first. Concurrent reviews of sibling assignments
	// serialize here, so the remaining-count below always sees the other
	// review's committed outcome and the last approval reliably observes
	// remaining == 0.
	var orderID uuid.UUID
	err = tx.QueryRow(`
		SELECT o.id FROM orders o
		JOIN editing_assignments ea ON ea.order_id = o.id
		WHERE ea.id = $1
		FOR UPDATE OF o
	`, review.AssignmentID).Scan(&orderID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, 0, apperrors.NotFound("assignment", review.AssignmentID.String())
	}
	if err != nil {
		return nil, 0, fmt.Errorf("failed to lock order for review: %w", err)
	}

	_, err = tx.Exec(`
		INSERT INTO qc_reviews (id, assignment_id, reviewer_id, outcome, rejected_assets, notes, round)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, review.ID, review.AssignmentID, review.ReviewerID, review.Outcome,
		review.RejectedAssets, review.Notes, review.Round)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to record review: %w", err)
	}

	editorClause := ""
	if !keepEditor {
		editorClause = ", editor_id = NULL, claimed_at = NULL"
	}
	row := tx.QueryRow(`
		UPDATE editing_assignments
		SET status = $1, revision_count = $2, updated_at = NOW()`+editorClause+`
		WHERE id = $3 AND status = 'pending_qc'
		RETURNING `+assignmentColumns,
		next, newRevisionCount, review.AssignmentID)

	a, err := scanAssignment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, 0, apperrors.Validation("assignment is not pending qc")
	}
	if err != nil {
		return nil, 0, fmt.Errorf("failed to apply review: %w", err)
	}

	for _, assetID := range review.RejectedAssets {
		_, err = tx.Exec(`
			UPDATE capture_assets SET qc_status = 'rejected' WHERE id = $1
		`, assetID)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to flag rejected asset: %w", err)
		}
	}

	var remaining int
	err = tx.QueryRow(`
		SELECT COUNT(*) FROM editing_assignments
		WHERE order_id = $1 AND id <> $2 AND status NOT IN ('completed')
	`, a.OrderID, a.ID).Scan(&remaining)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count remaining assignments: %w", err)
	}

	for _, ev := range evs {
		if err := appendEvent(tx, ev); err != nil {
			return nil, 0, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, 0, fmt.Errorf("failed to commit: %w", err)
	}

	return a, remaining, nil
}

func (s *Store) ListReviews(ctx context.Context, assignmentID uuid.UUID) ([]models.QCReview, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, assignment_id, reviewer_id, outcome, rejected_assets, notes, round, created_at
		FROM qc_reviews
		WHERE assignment_id = $1
		ORDER BY round ASC
	`, assignmentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list reviews: %w", err)
	}
	defer rows.Close()

	var reviews []models.QCReview
	for rows.Next() {
		var r models.QCReview
		err := rows.Scan(&r.ID, &r.AssignmentID, &r.ReviewerID, &r.Outcome,
			&r.RejectedAssets, &r.Notes, &r.Round, &r.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan review: %w", err)
		}
		reviews = append(reviews, r)
	}

	return reviews, rows.Err()
}
