package models

import "time"

// BookingStatus is the lifecycle state of a booking record.
type BookingStatus string

const (
	BookingPending   BookingStatus = "pending"
	BookingConfirmed BookingStatus = "confirmed"
	BookingCancelled BookingStatus = "cancelled"
	BookingCompleted BookingStatus = "completed"
	BookingNoShow    BookingStatus = "no_show"
)

// Terminal reports whether the status admits no further transitions.
func (s BookingStatus) Terminal() bool {
	switch s {
	case BookingCancelled, BookingCompleted, BookingNoShow:
		return true
	}
	return false
}

// UrgencyTier is the patient-declared priority of a consultation request.
// It drives the minimum lead time and the search horizon of slot proposals.
type UrgencyTier string

const (
	UrgencyNormal UrgencyTier = "normal"
	UrgencyUrgent UrgencyTier = "urgent"
)

// Booking represents a consultation reservation.
type Booking struct {
	ID          string        `bson:"id" json:"id"`
	DoctorID    string        `bson:"doctor_id" json:"doctorId"`
	PatientID   string        `bson:"patient_id" json:"patientId"`
	Interval    TimeInterval  `bson:"interval" json:"interval"`
	Status      BookingStatus `bson:"status" json:"status"`
	Modality    Modality      `bson:"modality" json:"modality"`
	Urgency     UrgencyTier   `bson:"urgency,omitempty" json:"urgency,omitempty"`
	CancelledBy string        `bson:"cancelled_by,omitempty" json:"cancelledBy,omitempty"`
	CreatedAt   time.Time     `bson:"created_at" json:"createdAt"`
	UpdatedAt   time.Time     `bson:"updated_at" json:"updatedAt"`
}
