package models

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

type AssignmentStatus string

const (
	AssignmentPending         AssignmentStatus = "pending"
	AssignmentInProgress      AssignmentStatus = "in_progress"
	AssignmentPendingQC       AssignmentStatus = "pending_qc"
	AssignmentCompleted       AssignmentStatus = "completed"
	AssignmentNeedsEscalation AssignmentStatus = "needs_escalation"
)

type EditingAssignment struct {
	ID            uuid.UUID
	OrderID       uuid.UUID
	BatchID       uuid.UUID
	EditorID      uuid.NullUUID // null = unclaimed
	Status        AssignmentStatus
	RevisionCount int
	MaxRevisions  int
	IsRush        bool // denormalized from the order for queue ordering
	ClaimedAt     sql.NullTime
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

type ReviewOutcome string

const (
	ReviewApproved ReviewOutcome = "approved"
	ReviewRejected ReviewOutcome = "rejected"
)

type QCReview struct {
	ID             uuid.UUID
	AssignmentID   uuid.UUID
	ReviewerID     uuid.UUID
	Outcome        ReviewOutcome
	RejectedAssets pq.StringArray
	Notes          string
	Round          int
	CreatedAt      time.Time
}
