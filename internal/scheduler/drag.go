package scheduler

import (
	"errors"
	"time"
)

// ErrHandleClosed is returned by a drag handle after Finish or Cancel.
var ErrHandleClosed = errors.New("scheduler: drag handle closed")

// DragMode tells a DragHandle which edge(s) follow the pointer.
type DragMode int

const (
	// DragMove shifts both ends of the interval.
	DragMove DragMode = iota + 1
	// DragResize shifts only the end of the interval.
	DragResize
)

// DragHandle tracks one drag or resize gesture. The component that began the
// gesture owns the handle and must call Finish or Cancel exactly once; the
// handle is not safe for concurrent use.
type DragHandle struct {
	mode          DragMode
	original      Interval
	originY       float64
	pixelsPerHour float64
	minDuration   time.Duration
	closed        bool
}

// BeginMove starts moving original from the pointer position originY.
func BeginMove(original Interval, originY float64, cfg LayoutConfig) *DragHandle {
	return begin(DragMove, original, originY, cfg)
}

// BeginResize starts resizing the end of original from originY.
func BeginResize(original Interval, originY float64, cfg LayoutConfig) *DragHandle {
	return begin(DragResize, original, originY, cfg)
}

func begin(mode DragMode, original Interval, originY float64, cfg LayoutConfig) *DragHandle {
	cfg = cfg.normalized()
	return &DragHandle{
		mode:          mode,
		original:      Coerce(original, cfg.MinDuration),
		originY:       originY,
		pixelsPerHour: cfg.PixelsPerHour,
		minDuration:   cfg.MinDuration,
	}
}

// Mode reports the gesture kind.
func (h *DragHandle) Mode() DragMode {
	return h.mode
}

// Original returns the interval the gesture started from.
func (h *DragHandle) Original() Interval {
	return h.original
}

// Update returns the snapped candidate interval for pointer position y.
func (h *DragHandle) Update(y float64) (Interval, error) {
	if h == nil || h.closed {
		return Interval{}, ErrHandleClosed
	}
	return h.candidate(y), nil
}

// Finish returns the final interval for y and closes the handle.
func (h *DragHandle) Finish(y float64) (Interval, error) {
	if h == nil || h.closed {
		return Interval{}, ErrHandleClosed
	}
	h.closed = true
	return h.candidate(y), nil
}

// Cancel closes the handle without producing an interval. It is safe to call
// on a closed handle.
func (h *DragHandle) Cancel() {
	if h != nil {
		h.closed = true
	}
}

// Closed reports whether Finish or Cancel has been called.
func (h *DragHandle) Closed() bool {
	return h == nil || h.closed
}

func (h *DragHandle) candidate(y float64) Interval {
	delta := SnapDuration(y-h.originY, h.pixelsPerHour)
	switch h.mode {
	case DragResize:
		end := h.original.End.Add(delta)
		if end.Sub(h.original.Start) < h.minDuration {
			end = h.original.Start.Add(h.minDuration)
		}
		return Interval{Start: h.original.Start, End: end}
	default:
		return Interval{Start: h.original.Start.Add(delta), End: h.original.End.Add(delta)}
	}
}
