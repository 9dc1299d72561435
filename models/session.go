package models

import "time"

// Modality is the channel a consultation runs over.
type Modality string

const (
	ModalityVideo Modality = "video"
	ModalityAR    Modality = "ar"
	ModalityVR    Modality = "vr"
)

// SessionState is the runtime state of a consultation session.
type SessionState string

const (
	SessionNegotiating SessionState = "negotiating"
	SessionActive      SessionState = "active"
	SessionEnding      SessionState = "ending"
	SessionEnded       SessionState = "ended"
	SessionFailed      SessionState = "failed"
)

// Live reports whether the session still owns, or may still acquire, resources.
func (s SessionState) Live() bool {
	return s == SessionNegotiating || s == SessionActive
}

// DeviceCapabilitySet is the capability snapshot a client reports when
// joining. It is produced by device-side probing (WebXR, getUserMedia) and
// treated here as an opaque immutable value.
type DeviceCapabilitySet struct {
	SupportsVR    bool `json:"supportsVR"`
	SupportsAR    bool `json:"supportsAR"`
	HasCamera     bool `json:"hasCamera"`
	HasMicrophone bool `json:"hasMicrophone"`
}

// SessionControl is a toggleable in-session control flag.
type SessionControl string

const (
	ControlAudio SessionControl = "audio"
	ControlVideo SessionControl = "video"
)

// Session is the record of one consultation session's lifecycle.
type Session struct {
	ID                string                  `bson:"id" json:"id"`
	BookingID         string                  `bson:"booking_id" json:"bookingId"`
	State             SessionState            `bson:"state" json:"state"`
	RequestedModality Modality                `bson:"requested_modality" json:"requestedModality"`
	GrantedModality   Modality                `bson:"granted_modality,omitempty" json:"grantedModality,omitempty"`
	AttemptedChain    []Modality              `bson:"attempted_chain,omitempty" json:"attemptedChain,omitempty"`
	ResourceHandleIDs []string                `bson:"resource_handle_ids,omitempty" json:"resourceHandleIds,omitempty"`
	Controls          map[SessionControl]bool `bson:"controls,omitempty" json:"controls,omitempty"`
	FailureReason     string                  `bson:"failure_reason,omitempty" json:"failureReason,omitempty"`
	CreatedAt         time.Time               `bson:"created_at" json:"createdAt"`
	StartedAt         *time.Time              `bson:"started_at,omitempty" json:"startedAt,omitempty"`
	EndedAt           *time.Time              `bson:"ended_at,omitempty" json:"endedAt,omitempty"`
}
