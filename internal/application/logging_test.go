package application

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
)

func TestDefaultLogger(t *testing.T) {
	t.Parallel()

	custom := slog.New(slog.NewTextHandler(io.Discard, nil))
	if got := defaultLogger(custom); got != custom {
		t.Fatalf("expected custom logger to be returned")
	}

	if got := defaultLogger(nil); got != slog.Default() {
		t.Fatalf("expected default logger when none provided")
	}
}

func TestErrorKind(t *testing.T) {
	t.Parallel()

	cases := map[string]error{
		"":                  nil,
		"unauthorized":      ErrUnauthorized,
		"not_found":         fmt.Errorf("load: %w", ErrNotFound),
		"facility_busy":     ErrFacilityBusy,
		"session_revoked":   ErrSessionRevoked,
		"canceled":          context.DeadlineExceeded,
		"validation":        validationFailure("name", "required"),
		"unexpected":        errors.New("boom"),
		"capacity_exceeded": ErrCapacityExceeded,
	}
	for want, err := range cases {
		if got := ErrorKind(err); got != want {
			t.Fatalf("ErrorKind(%v) = %q, want %q", err, got, want)
		}
	}
}
