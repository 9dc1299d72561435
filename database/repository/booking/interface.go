package bookingRepo

import (
	"context"
	"errors"
	"time"

	"teleclinic/models"
)

// ErrNotFound is returned when a booking does not exist.
var ErrNotFound = errors.New("booking not found")

// BookingRepository is the durable store for booking records. All writes go
// through the BookingLedger; no other component touches this collection.
type BookingRepository interface {
	Insert(ctx context.Context, booking *models.Booking) error
	GetByID(ctx context.Context, bookingID string) (*models.Booking, error)
	Update(ctx context.Context, booking *models.Booking) error
	// ListConfirmedOverlapping returns confirmed bookings for the doctor whose
	// interval overlaps the given one.
	ListConfirmedOverlapping(ctx context.Context, doctorID string, ival models.TimeInterval) ([]models.Booking, error)
	// ListConfirmedInRange returns confirmed bookings for the doctor starting
	// inside [from, to), ordered by start time.
	ListConfirmedInRange(ctx context.Context, doctorID string, from, to time.Time) ([]models.Booking, error)
	// ListConfirmedEndedBefore returns confirmed bookings whose interval ended
	// before the cutoff, across all doctors.
	ListConfirmedEndedBefore(ctx context.Context, cutoff time.Time) ([]models.Booking, error)
}
