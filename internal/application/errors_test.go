package application

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/example/clubflow/internal/scheduler"
)

func TestValidationError_Error(t *testing.T) {
	t.Parallel()

	var err *ValidationError
	if err.Error() != "" {
		t.Fatalf("expected empty string for nil error, got %q", err.Error())
	}

	empty := &ValidationError{}
	if got := empty.Error(); got != "validation failed" {
		t.Fatalf("expected generic message for empty error, got %q", got)
	}

	withFields := &ValidationError{FieldErrors: map[string]string{"startTime": "invalid", "facilityId": "required"}}
	if got := withFields.Error(); got != "validation failed: facilityId, startTime" {
		t.Fatalf("expected sorted field names, got %q", got)
	}
}

func TestValidationError_HasErrors(t *testing.T) {
	t.Parallel()

	if err := (&ValidationError{}).HasErrors(); err {
		t.Fatalf("expected HasErrors to report false for empty error")
	}

	if err := (&ValidationError{FieldErrors: map[string]string{"field": "bad"}}).HasErrors(); !err {
		t.Fatalf("expected HasErrors to report true when fields are present")
	}
}

func TestValidationError_AddAndMerge(t *testing.T) {
	t.Parallel()

	base := &ValidationError{}
	base.add("first", "value")
	if got := base.FieldErrors["first"]; got != "value" {
		t.Fatalf("expected add to populate map, got %q", got)
	}

	other := &ValidationError{FieldErrors: map[string]string{"second": "another"}}
	base.merge(other)
	if got := base.FieldErrors["second"]; got != "another" {
		t.Fatalf("expected merge to copy field, got %q", got)
	}

	base.merge(nil)
	if len(base.FieldErrors) != 2 {
		t.Fatalf("expected merge with nil to leave fields unchanged")
	}
}

func TestAdmissionError(t *testing.T) {
	t.Parallel()

	start := time.Date(2025, 5, 3, 9, 0, 0, 0, time.UTC)
	err := error(&AdmissionError{Result: scheduler.AdmissionResult{
		ResourceID:    "court-1",
		Proposed:      scheduler.NewInterval(start, start.Add(time.Hour)),
		Capacity:      2,
		ConflictCount: 2,
	}})

	if !errors.Is(err, ErrCapacityExceeded) {
		t.Fatalf("expected AdmissionError to match ErrCapacityExceeded")
	}
	if !strings.Contains(err.Error(), "court-1") || !strings.Contains(err.Error(), "2 of 2") {
		t.Fatalf("unexpected message %q", err.Error())
	}
	if ErrorKind(err) != "capacity_exceeded" {
		t.Fatalf("unexpected error kind %q", ErrorKind(err))
	}
}
