package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestNew(t *testing.T) {
	err := New(CodeValidation, "validation failed", http.StatusBadRequest)

	if err.Code != CodeValidation {
		t.Errorf("expected code %s, got %s", CodeValidation, err.Code)
	}
	if err.Message != "validation failed" {
		t.Errorf("expected message 'validation failed', got %s", err.Message)
	}
	if err.HTTPStatus != http.StatusBadRequest {
		t.Errorf("expected status %d, got %d", http.StatusBadRequest, err.HTTPStatus)
	}
}

func TestWrap(t *testing.T) {
	originalErr := errors.New("connection refused")
	wrapped := Wrap(originalErr, CodePersistence, "store unavailable", http.StatusServiceUnavailable)

	if wrapped.Err != originalErr {
		t.Errorf("expected wrapped error to contain original error")
	}
	if !errors.Is(wrapped, originalErr) {
		t.Errorf("errors.Is should see through AppError")
	}
}

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name     string
		appErr   *AppError
		expected string
	}{
		{
			name:     "without underlying error",
			appErr:   &AppError{Code: CodeNotFound, Message: "Booking not found"},
			expected: "NOT_FOUND: Booking not found",
		},
		{
			name: "with underlying error",
			appErr: &AppError{
				Code:    CodeInternal,
				Message: "internal error",
				Err:     errors.New("boom"),
			},
			expected: "INTERNAL_ERROR: internal error (caused by: boom)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.appErr.Error(); got != tt.expected {
				t.Errorf("Error() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestAppError_StatusCodeDefaultsTo500(t *testing.T) {
	err := &AppError{Code: "SOMETHING"}
	if err.StatusCode() != http.StatusInternalServerError {
		t.Errorf("StatusCode() = %d, want 500", err.StatusCode())
	}
}

func TestTaxonomyStatusCodes(t *testing.T) {
	tests := []struct {
		name   string
		err    *AppError
		code   string
		status int
	}{
		{"validation", Validation("bad", nil), CodeValidation, http.StatusBadRequest},
		{"invalid input", InvalidInput("bad id"), CodeInvalidInput, http.StatusBadRequest},
		{"authentication", Unauthorized("Invalid credentials"), CodeUnauthorized, http.StatusUnauthorized},
		{"not found", NotFound("User"), CodeNotFound, http.StatusNotFound},
		{"invalid transition", InvalidTransition("confirmed", "rejected"), CodeInvalidTransition, http.StatusConflict},
		{"persistence", Persistence("write failed", errors.New("x")), CodePersistence, http.StatusServiceUnavailable},
		{"internal", Internal("oops", nil), CodeInternal, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Code != tt.code {
				t.Errorf("code = %s, want %s", tt.err.Code, tt.code)
			}
			if tt.err.StatusCode() != tt.status {
				t.Errorf("status = %d, want %d", tt.err.StatusCode(), tt.status)
			}
		})
	}
}

func TestNotFoundWithID(t *testing.T) {
	err := NotFoundWithID("Property", "12345")

	if err.Message != "Property not found" {
		t.Errorf("unexpected message %q", err.Message)
	}
	if err.Details["id"] != "12345" {
		t.Errorf("expected id '12345', got %v", err.Details["id"])
	}
	if err.Details["resource"] != "Property" {
		t.Errorf("expected resource 'Property', got %v", err.Details["resource"])
	}
}

func TestInvalidTransition_Details(t *testing.T) {
	err := InvalidTransition("confirmed", "pending")

	if err.Details["from"] != "confirmed" || err.Details["to"] != "pending" {
		t.Errorf("unexpected details %v", err.Details)
	}
}

func TestAsAppError(t *testing.T) {
	appErr := NotFound("User")
	regularErr := errors.New("regular error")

	if AsAppError(appErr) != appErr {
		t.Errorf("AsAppError() should return same AppError")
	}

	wrapped := fmt.Errorf("context: %w", appErr)
	if AsAppError(wrapped) != appErr {
		t.Errorf("AsAppError() should unwrap to the AppError")
	}

	result := AsAppError(regularErr)
	if result.Code != CodeInternal {
		t.Errorf("AsAppError() should wrap regular error as internal error")
	}
	if result.Err != regularErr {
		t.Errorf("AsAppError() should wrap the original error")
	}
}

func TestHasCode(t *testing.T) {
	if !HasCode(fmt.Errorf("x: %w", Unauthorized("no")), CodeUnauthorized) {
		t.Errorf("HasCode should match wrapped AppError")
	}
	if HasCode(errors.New("plain"), CodeInternal) {
		t.Errorf("HasCode should be false for plain errors")
	}
	if !IsAppError(Validation("x", nil)) {
		t.Errorf("IsAppError should be true for AppError")
	}
}
