package models

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type OrderStatus string

const (
	StatusPending    OrderStatus = "pending"
	StatusScheduled  OrderStatus = "scheduled"
	StatusInProgress OrderStatus = "in_progress"
	StatusStaged     OrderStatus = "staged"
	StatusProcessing OrderStatus = "processing"
	StatusReadyForQC OrderStatus = "ready_for_qc"
	StatusInQC       OrderStatus = "in_qc"
	StatusDelivered  OrderStatus = "delivered"
	StatusCancelled  OrderStatus = "cancelled"
)

// Terminal reports whether no further transitions are allowed out of s.
func (s OrderStatus) Terminal() bool {
	return s == StatusDelivered || s == StatusCancelled
}

type Order struct {
	ID            uuid.UUID
	ClientID      uuid.UUID
	ClientEmail   string
	ClientPhone   sql.NullString
	Status        OrderStatus
	IsRush        bool
	ScheduledAt   sql.NullTime
	DeliveredAt   sql.NullTime
	Metadata      json.RawMessage
	StatusEventID uuid.UUID // event that recorded the current status
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

type CaptureBatch struct {
	ID        uuid.UUID
	OrderID   uuid.UUID
	Category  string
	Locked    bool // set once a processing job starts; new assets need a new batch
	CreatedAt time.Time
}

type CaptureAsset struct {
	ID           uuid.UUID
	BatchID      uuid.UUID
	Filename     string
	SourceURL    string
	ProcessedURL sql.NullString
	ThumbnailURL sql.NullString
	EditedURL    sql.NullString
	QCStatus     sql.NullString
	CreatedAt    time.Time
}
