// Package apperrors provides structured application errors with HTTP status mapping.
package apperrors

import (
	"errors"
	"fmt"
)

// Sentinel errors for classification via errors.Is().
var (
	ErrInvalidTransition  = errors.New("invalid transition")
	ErrInsufficientAssets = errors.New("insufficient assets")
	ErrAlreadyClaimed     = errors.New("already claimed")
	ErrWorkloadExceeded   = errors.New("workload exceeded")
	ErrIncompleteEdit     = errors.New("incomplete edit")
	ErrValidation         = errors.New("validation error")
	ErrNotFound           = errors.New("not found")
	ErrUpstream           = errors.New("upstream failure")
	ErrInternal           = errors.New("internal error")
)

// Error provides a structured error with context.
type Error struct {
	Sentinel error  // Wrapped sentinel for errors.Is() classification
	Message  string // Human-readable message
	Resource string // Affected resource (e.g. "order", "assignment")
	Op       string // Operation that failed (e.g. "store.claimAssignment")
	Cause    error  // Underlying error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Sentinel
}

// InvalidTransition creates a caller error for a disallowed status edge.
func InvalidTransition(from, to string) error {
	return &Error{
		Sentinel: ErrInvalidTransition,
		Message:  fmt.Sprintf("transition %s -> %s is not allowed", from, to),
		Resource: "order",
	}
}

// InsufficientAssets creates a caller error for an undersized submission.
func InsufficientAssets(got, min int) error {
	return &Error{
		Sentinel: ErrInsufficientAssets,
		Message:  fmt.Sprintf("processing requires at least %d assets, got %d", min, got),
		Resource: "capture_batch",
	}
}

// AlreadyClaimed creates a caller error for a lost claim race.
func AlreadyClaimed(assignmentID string) error {
	return &Error{
		Sentinel: ErrAlreadyClaimed,
		Message:  fmt.Sprintf("assignment %s is already claimed", assignmentID),
		Resource: "assignment",
	}
}

// WorkloadExceeded creates a caller error for the editor workload cap.
func WorkloadExceeded(editorID string, cap int) error {
	return &Error{
		Sentinel: ErrWorkloadExceeded,
		Message:  fmt.Sprintf("editor %s already holds %d assignments in progress", editorID, cap),
		Resource: "assignment",
	}
}

// IncompleteEdit creates a caller error for a submission missing edited assets.
func IncompleteEdit(missing int) error {
	return &Error{
		Sentinel: ErrIncompleteEdit,
		Message:  fmt.Sprintf("%d assets are missing an edited counterpart", missing),
		Resource: "assignment",
	}
}

// Validation creates a validation error with a message.
func Validation(message string) error {
	return &Error{
		Sentinel: ErrValidation,
		Message:  message,
	}
}

// NotFound creates a not found error for a resource.
func NotFound(resource, id string) error {
	return &Error{
		Sentinel: ErrNotFound,
		Message:  fmt.Sprintf("%s %s not found", resource, id),
		Resource: resource,
	}
}

// Upstream creates an error for a failed external collaborator call.
func Upstream(op string, cause error) error {
	return &Error{
		Sentinel: ErrUpstream,
		Message:  fmt.Sprintf("%s: %v", op, cause),
		Op:       op,
		Cause:    cause,
	}
}

// Internal creates an internal error wrapping an underlying cause.
func Internal(op string, cause error) error {
	return &Error{
		Sentinel: ErrInternal,
		Message:  fmt.Sprintf("%s: %v", op, cause),
		Op:       op,
		Cause:    cause,
	}
}
