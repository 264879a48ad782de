package http

import (
	"fmt"
	"strings"
	"time"
)

const dateLayout = "2006-01-02"

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func formatOptionalTime(t *time.Time) *string {
	if t == nil || t.IsZero() {
		return nil
	}
	s := formatTime(*t)
	return &s
}

// parseTimestamp accepts RFC 3339 with or without fractional seconds. An
// empty value yields the zero time.
func parseTimestamp(field, value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, nil
	}
	if ts, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return ts, nil
	}
	return time.Time{}, fmt.Errorf("%s must be an RFC 3339 timestamp", field)
}

func parseOptionalTimestamp(field string, value *string) (*time.Time, error) {
	if value == nil || strings.TrimSpace(*value) == "" {
		return nil, nil
	}
	ts, err := parseTimestamp(field, *value)
	if err != nil {
		return nil, err
	}
	return &ts, nil
}

func parseDate(field, value string) (*time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	d, err := time.Parse(dateLayout, value)
	if err != nil {
		return nil, fmt.Errorf("%s must be a YYYY-MM-DD date", field)
	}
	return &d, nil
}

// fieldErrors collects request level parse failures keyed by JSON field.
type fieldErrors map[string]string

func (f fieldErrors) check(field string, err error) {
	if err != nil {
		f[field] = err.Error()
	}
}
