package scheduling

import (
	"fmt"
	"time"

	"teleclinic/models"
)

// ConflictError reports that a requested interval overlaps an existing
// confirmed booking. It is an expected outcome, not a bug: the caller should
// re-propose. NextAvailable, when set, is the soonest viable alternative.
type ConflictError struct {
	DoctorID      string               `json:"doctorId"`
	Requested     models.TimeInterval  `json:"requested"`
	NextAvailable *models.TimeInterval `json:"nextAvailable,omitempty"`
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("doctor %s already booked between %s and %s",
		e.DoctorID, e.Requested.Start.Format(time.RFC3339), e.Requested.End.Format(time.RFC3339))
}

// NotFoundError reports an unknown doctor or booking.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.ID)
}

// TimeoutError reports that the per-doctor lock could not be acquired within
// budget. The operation left no partial state and may be retried.
type TimeoutError struct {
	Op       string
	DoctorID string
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s timed out waiting for doctor %s", e.Op, e.DoctorID)
}

// InvalidStateError reports a booking transition attempted from a state that
// does not admit it.
type InvalidStateError struct {
	BookingID string
	Status    models.BookingStatus
	Op        string
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("cannot %s booking %s in status %s", e.Op, e.BookingID, e.Status)
}
