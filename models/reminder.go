package models

// ReminderPayload is the wire payload of a queued reminder task.
type ReminderPayload struct {
	BookingID string `json:"bookingId"`
	PatientID string `json:"patientId"`
	DoctorID  string `json:"doctorId"`
	FireAt    string `json:"fireAt"`
	Title     string `json:"title"`
	Body      string `json:"body"`
}
