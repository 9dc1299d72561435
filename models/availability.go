package models

import (
	"strings"
	"time"
)

// DayWindow is a recurring open window within a single day, expressed as
// minutes from midnight (e.g. 540 for 9:00 AM). End is exclusive.
type DayWindow struct {
	Start int `bson:"start" json:"start"`
	End   int `bson:"end" json:"end"`
}

// AvailabilityTemplate holds a doctor's recurring weekly working hours.
// Weekly is keyed by lowercase weekday name ("monday" ... "sunday"); each
// day's windows are ordered and non-overlapping.
type AvailabilityTemplate struct {
	DoctorID  string                 `bson:"doctor_id" json:"doctorId"`
	Weekly    map[string][]DayWindow `bson:"weekly" json:"weekly"`
	UpdatedAt time.Time              `bson:"updated_at" json:"updatedAt"`
}

// WindowsFor returns the template windows for the given weekday.
func (t AvailabilityTemplate) WindowsFor(day time.Weekday) []DayWindow {
	return t.Weekly[strings.ToLower(day.String())]
}

// TimeOff is a doctor-declared exception carved out of the weekly template.
// Confirmed bookings are never invalidated by a time-off entry; it only
// removes the range from future proposals.
type TimeOff struct {
	ID       string       `bson:"id" json:"id"`
	DoctorID string       `bson:"doctor_id" json:"doctorId"`
	Interval TimeInterval `bson:"interval" json:"interval"`
	Reason   string       `bson:"reason,omitempty" json:"reason,omitempty"`
}
