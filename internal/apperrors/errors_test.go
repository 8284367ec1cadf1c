package apperrors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestInvalidTransition(t *testing.T) {
	t.Parallel()
	err := InvalidTransition("delivered", "processing")

	if !errors.Is(err, ErrInvalidTransition) {
		t.Error("expected error to match ErrInvalidTransition")
	}
	if err.Error() != "transition delivered -> processing is not allowed" {
		t.Errorf("unexpected message: %q", err.Error())
	}

	var appErr *Error
	if !errors.As(err, &appErr) {
		t.Fatal("expected error to be *Error")
	}
	if appErr.Resource != "order" {
		t.Errorf("expected resource 'order', got %q", appErr.Resource)
	}
}

func TestAlreadyClaimed(t *testing.T) {
	t.Parallel()
	err := AlreadyClaimed("abc123")

	if !errors.Is(err, ErrAlreadyClaimed) {
		t.Error("expected error to match ErrAlreadyClaimed")
	}
	if err.Error() != "assignment abc123 is already claimed" {
		t.Errorf("unexpected message: %q", err.Error())
	}
}

func TestUpstream(t *testing.T) {
	t.Parallel()
	cause := fmt.Errorf("connection refused")
	err := Upstream("provider.submit", cause)

	if !errors.Is(err, ErrUpstream) {
		t.Error("expected error to match ErrUpstream")
	}

	var appErr *Error
	if !errors.As(err, &appErr) {
		t.Fatal("expected error to be *Error")
	}
	if appErr.Op != "provider.submit" {
		t.Errorf("expected op 'provider.submit', got %q", appErr.Op)
	}
	if appErr.Cause != cause {
		t.Error("expected cause to be preserved")
	}
}

func TestHTTPStatus(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{"invalid transition", InvalidTransition("a", "b"), http.StatusUnprocessableEntity},
		{"insufficient assets", InsufficientAssets(1, 2), http.StatusBadRequest},
		{"incomplete edit", IncompleteEdit(3), http.StatusBadRequest},
		{"validation", Validation("bad id"), http.StatusBadRequest},
		{"already claimed", AlreadyClaimed("x"), http.StatusConflict},
		{"workload exceeded", WorkloadExceeded("e", 5), http.StatusConflict},
		{"not found", NotFound("order", "123"), http.StatusNotFound},
		{"upstream", Upstream("op", fmt.Errorf("fail")), http.StatusBadGateway},
		{"internal", Internal("op", fmt.Errorf("fail")), http.StatusInternalServerError},
		{"wrapped claim", fmt.Errorf("wrap: %w", AlreadyClaimed("x")), http.StatusConflict},
		{"unknown error", fmt.Errorf("unknown"), http.StatusInternalServerError},
		{"nil error", nil, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := HTTPStatus(tt.err)
			if got != tt.expected {
				t.Errorf("HTTPStatus() = %d, want %d", got, tt.expected)
			}
		})
	}
}
