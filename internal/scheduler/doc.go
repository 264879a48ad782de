// Package scheduler decides whether a proposed time interval can be admitted
// onto a capacity-limited resource and lays out overlapping intervals into
// columns for a day grid.
//
// Everything in this package is a pure function over caller-supplied data.
// Callers own persistence, locking and the coercion of malformed input.
package scheduler
