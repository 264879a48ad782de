package scheduler

// ReservationStatus is the lifecycle state of a reservation.
type ReservationStatus string

const (
	StatusPending   ReservationStatus = "pending"
	StatusConfirmed ReservationStatus = "confirmed"
	StatusCancelled ReservationStatus = "cancelled"
)

// Reservation is an existing claim on a resource for an interval.
type Reservation struct {
	ID         string
	ResourceID string
	Interval   Interval
	Status     ReservationStatus
}

// Active reports whether the reservation takes part in conflict checks.
func (r Reservation) Active() bool {
	return r.Status != StatusCancelled
}

// AdmissionResult is the outcome of CheckAdmission.
//
// ConflictCount drives the decision and ignores the excluded reservation.
// CurrentBookings is what a user editing a reservation should see: it still
// counts the reservation being edited, so an edit of one of two booked slots
// reads "2 of 2" both before and after saving.
type AdmissionResult struct {
	ResourceID      string
	Proposed        Interval
	Available       bool
	Capacity        int
	ConflictCount   int
	CurrentBookings int
	Conflicts       []Reservation
}

// CheckAdmission decides whether proposed may be admitted onto resourceID.
//
// proposed must be valid (see Coerce). existing should already be limited to
// the resource; reservations for another resource or with a cancelled status
// are skipped anyway. excludeID, when non-empty, names a reservation that must
// not count against the decision. A capacity below 1 is never available.
func CheckAdmission(resourceID string, proposed Interval, capacity int, existing []Reservation, excludeID string) AdmissionResult {
	result := AdmissionResult{
		ResourceID: resourceID,
		Proposed:   proposed,
		Capacity:   capacity,
		Conflicts:  make([]Reservation, 0),
	}

	for _, reservation := range existing {
		if !reservation.Active() {
			continue
		}
		if resourceID != "" && reservation.ResourceID != "" && reservation.ResourceID != resourceID {
			continue
		}
		if !proposed.Overlaps(reservation.Interval) {
			continue
		}
		result.CurrentBookings++
		if excludeID != "" && reservation.ID == excludeID {
			continue
		}
		result.ConflictCount++
		result.Conflicts = append(result.Conflicts, reservation)
	}

	result.Available = capacity >= 1 && result.ConflictCount < capacity
	return result
}
