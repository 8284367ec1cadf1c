package models

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

type ProcessingStatus string

const (
	ProcessingQueued    ProcessingStatus = "queued"
	ProcessingRunning   ProcessingStatus = "running"
	ProcessingCompleted ProcessingStatus = "completed"
	ProcessingFailed    ProcessingStatus = "failed"
)

// Terminal reports whether the job can no longer change state.
func (s ProcessingStatus) Terminal() bool {
	return s == ProcessingCompleted || s == ProcessingFailed
}

type ProcessingJob struct {
	ID            uuid.UUID
	OrderID       uuid.UUID
	BatchID       uuid.UUID
	ProviderJobID sql.NullString
	Status        ProcessingStatus
	Stage         string
	Percent       int
	ErrorMessage  sql.NullString
	SubmittedAt   sql.NullTime
	CompletedAt   sql.NullTime
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
