package consult

import (
	"fmt"

	"teleclinic/models"
)

// AlreadyActiveError reports a join attempt on a booking that already has a
// live session.
type AlreadyActiveError struct {
	BookingID string
	SessionID string
}

func (e *AlreadyActiveError) Error() string {
	return fmt.Sprintf("booking %s already has live session %s", e.BookingID, e.SessionID)
}

// InvalidStateError reports an operation attempted against a session or
// booking state that does not admit it.
type InvalidStateError struct {
	Subject string
	ID      string
	State   string
	Op      string
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("cannot %s %s %s in state %s", e.Op, e.Subject, e.ID, e.State)
}

// ModalityUnsupportedError reports that capability negotiation exhausted the
// fallback chain. Attempted lists every modality tried, in order, so the
// client can explain why.
type ModalityUnsupportedError struct {
	Requested models.Modality   `json:"requested"`
	Attempted []models.Modality `json:"attempted"`
}

func (e *ModalityUnsupportedError) Error() string {
	return fmt.Sprintf("device supports none of %v (requested %s)", e.Attempted, e.Requested)
}

// NotFoundError reports an unknown session.
type NotFoundError struct {
	SessionID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("session %s not found", e.SessionID)
}

// ResourceAcquisitionError reports a transient failure acquiring a media or
// XR resource handle. Callers retry once with backoff before surfacing it.
type ResourceAcquisitionError struct {
	Kind string
	Err  error
}

func (e *ResourceAcquisitionError) Error() string {
	return fmt.Sprintf("failed to acquire %s resource: %v", e.Kind, e.Err)
}

func (e *ResourceAcquisitionError) Unwrap() error {
	return e.Err
}
