package lifecycle

import "shootflow-backend/internal/models"

// Edge is one row of the transition table: the statuses reachable from From.
type Edge struct {
	From models.OrderStatus
	To   []models.OrderStatus
}

// Table is the allowed-flow configuration consumed by the Machine. Changing
// the lifecycle means changing this data, not the transition algorithm.
type Table map[models.OrderStatus][]models.OrderStatus

// DefaultTable covers the standard flow: forward progression, cancellation
// from any non-terminal status, and the single QC regression edge.
func DefaultTable() Table {
	return NewTable([]Edge{
		{From: models.StatusPending, To: []models.OrderStatus{models.StatusScheduled}},
		{From: models.StatusScheduled, To: []models.OrderStatus{models.StatusInProgress}},
		{From: models.StatusInProgress, To: []models.OrderStatus{models.StatusStaged}},
		{From: models.StatusStaged, To: []models.OrderStatus{models.StatusProcessing}},
		{From: models.StatusProcessing, To: []models.OrderStatus{models.StatusReadyForQC}},
		{From: models.StatusReadyForQC, To: []models.OrderStatus{models.StatusInQC}},
		{From: models.StatusInQC, To: []models.OrderStatus{models.StatusDelivered, models.StatusProcessing}},
	})
}

// NewTable builds a Table from edges, adding the cancelled edge to every
// non-terminal source status.
func NewTable(edges []Edge) Table {
	t := Table{}
	for _, e := range edges {
		targets := make([]models.OrderStatus, 0, len(e.To)+1)
		targets = append(targets, e.To...)
		t[e.From] = append(targets, models.StatusCancelled)
	}
	return t
}

// Allowed reports whether the edge from -> to is in the table.
func (t Table) Allowed(from, to models.OrderStatus) bool {
	for _, target := range t[from] {
		if target == to {
			return true
		}
	}
	return false
}
