package application

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/example/clubflow/internal/scheduler"
)

var (
	// ErrUnauthorized is returned when the acting principal lacks permission for an operation.
	ErrUnauthorized = errors.New("application: unauthorized")
	// ErrNotFound is returned when the requested resource does not exist.
	ErrNotFound = errors.New("application: not found")
	// ErrAlreadyExists is returned when a unique attribute is already taken.
	ErrAlreadyExists = errors.New("application: already exists")
	// ErrCapacityExceeded is returned when a booking would overfill a facility.
	ErrCapacityExceeded = errors.New("application: facility capacity exceeded")
	// ErrFacilityBusy is returned when the facility lock could not be taken in time.
	ErrFacilityBusy = errors.New("application: facility busy")
	// ErrInvalidCredentials is returned when authentication fails.
	ErrInvalidCredentials = errors.New("application: invalid credentials")
	// ErrAccountDisabled is returned when an inactive member tries to sign in.
	ErrAccountDisabled = errors.New("application: account disabled")
	// ErrSessionExpired is returned for sessions past their expiry.
	ErrSessionExpired = errors.New("application: session expired")
	// ErrSessionRevoked is returned for sessions that were signed out.
	ErrSessionRevoked = errors.New("application: session revoked")
)

// AdmissionError reports a rejected booking together with the admission
// outcome that rejected it. It matches ErrCapacityExceeded with errors.Is.
type AdmissionError struct {
	Result scheduler.AdmissionResult
	// Conflicts are the bookings that counted against the decision.
	Conflicts []Booking
}

// Error implements the error interface.
func (e *AdmissionError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("facility %s is full from %s to %s (%d of %d)",
		e.Result.ResourceID,
		e.Result.Proposed.Start.Format("2006-01-02 15:04"),
		e.Result.Proposed.End.Format("15:04"),
		e.Result.ConflictCount,
		e.Result.Capacity,
	)
}

// Unwrap exposes ErrCapacityExceeded.
func (e *AdmissionError) Unwrap() error {
	return ErrCapacityExceeded
}

// ValidationError captures field level validation issues that callers can surface to users.
type ValidationError struct {
	FieldErrors map[string]string
}

// Error implements the error interface.
func (v *ValidationError) Error() string {
	if v == nil {
		return ""
	}
	if len(v.FieldErrors) == 0 {
		return "validation failed"
	}
	fields := make([]string, 0, len(v.FieldErrors))
	for field := range v.FieldErrors {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	return "validation failed: " + strings.Join(fields, ", ")
}

// HasErrors reports whether any field level issues were recorded.
func (v *ValidationError) HasErrors() bool {
	return v != nil && len(v.FieldErrors) > 0
}

// add records a field level validation error.
func (v *ValidationError) add(field, message string) {
	if v.FieldErrors == nil {
		v.FieldErrors = make(map[string]string)
	}
	v.FieldErrors[field] = message
}

// merge copies entries from another validation error into the receiver.
func (v *ValidationError) merge(other *ValidationError) {
	if other == nil || len(other.FieldErrors) == 0 {
		return
	}
	for field, msg := range other.FieldErrors {
		v.add(field, msg)
	}
}

func validationFailure(field, message string) *ValidationError {
	vErr := &ValidationError{}
	vErr.add(field, message)
	return vErr
}
