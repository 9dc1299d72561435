package handlers

import (
	"context"
	"net/http"
	"time"

	"teleclinic/models"
	"teleclinic/services/scheduling"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// BookingLister serves a doctor's confirmed bookings for agenda views.
type BookingLister interface {
	ListConfirmedInRange(ctx context.Context, doctorID string, from, to time.Time) ([]models.Booking, error)
}

// SchedulingHandler exposes slot proposal and the booking ledger.
type SchedulingHandler struct {
	Proposer *scheduling.SlotProposer
	Ledger   scheduling.BookingLedger
	Bookings BookingLister
	Logger   *zap.Logger
}

func NewSchedulingHandler(proposer *scheduling.SlotProposer, ledger scheduling.BookingLedger, bookings BookingLister, logger *zap.Logger) *SchedulingHandler {
	return &SchedulingHandler{Proposer: proposer, Ledger: ledger, Bookings: bookings, Logger: logger}
}

// ProposeSlotsHandler returns bookable candidate slots for a doctor.
func (h *SchedulingHandler) ProposeSlotsHandler(c *gin.Context) {
	var input struct {
		DoctorID string `json:"doctorID" binding:"required"`
		Urgency  string `json:"urgency"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid input", "details": err.Error()})
		return
	}

	urgency := models.UrgencyNormal
	if input.Urgency != "" {
		urgency = models.UrgencyTier(input.Urgency)
		if urgency != models.UrgencyNormal && urgency != models.UrgencyUrgent {
			c.JSON(http.StatusBadRequest, gin.H{"error": "urgency must be 'normal' or 'urgent'"})
			return
		}
	}

	slots, err := h.Proposer.Propose(c.Request.Context(), input.DoctorID, urgency, time.Now())
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"doctorID": input.DoctorID,
		"urgency":  urgency,
		"slots":    slots,
	})
}

// ReserveBookingHandler atomically books a slot.
func (h *SchedulingHandler) ReserveBookingHandler(c *gin.Context) {
	var input struct {
		DoctorID  string    `json:"doctorID" binding:"required"`
		PatientID string    `json:"patientID" binding:"required"`
		Start     time.Time `json:"start" binding:"required"`
		End       time.Time `json:"end" binding:"required"`
		Modality  string    `json:"modality"`
		Urgency   string    `json:"urgency"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid input", "details": err.Error()})
		return
	}

	modality := models.ModalityVideo
	if input.Modality != "" {
		modality = models.Modality(input.Modality)
	}
	urgency := models.UrgencyNormal
	if input.Urgency == string(models.UrgencyUrgent) {
		urgency = models.UrgencyUrgent
	}

	ival := models.TimeInterval{Start: input.Start, End: input.End}
	booking, err := h.Ledger.Reserve(c.Request.Context(), input.DoctorID, input.PatientID, ival, modality, urgency)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	h.Logger.Info("booking reserved",
		zap.String("bookingID", booking.ID),
		zap.String("doctorID", booking.DoctorID))
	c.JSON(http.StatusCreated, booking)
}

// CancelBookingHandler cancels a booking; repeat calls are no-ops.
func (h *SchedulingHandler) CancelBookingHandler(c *gin.Context) {
	bookingID := c.Param("bookingID")
	var input struct {
		Actor string `json:"actor"`
	}
	// Body is optional; an empty actor is recorded as such.
	_ = c.ShouldBindJSON(&input)

	booking, err := h.Ledger.Cancel(c.Request.Context(), bookingID, input.Actor)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, booking)
}

// ListDoctorBookingsHandler returns a doctor's confirmed bookings in a time
// range; defaults to the week ahead.
func (h *SchedulingHandler) ListDoctorBookingsHandler(c *gin.Context) {
	doctorID := c.Param("doctorID")

	from, err := parseTimeQuery(c, "from", time.Now())
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid 'from' timestamp", "details": err.Error()})
		return
	}
	to, err := parseTimeQuery(c, "to", from.Add(7*24*time.Hour))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid 'to' timestamp", "details": err.Error()})
		return
	}
	if !to.After(from) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "'to' must be after 'from'"})
		return
	}

	bookings, err := h.Bookings.ListConfirmedInRange(c.Request.Context(), doctorID, from, to)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"doctorID": doctorID,
		"from":     from,
		"to":       to,
		"bookings": bookings,
	})
}

// GetBookingHandler fetches a booking by ID.
func (h *SchedulingHandler) GetBookingHandler(c *gin.Context) {
	booking, err := h.Ledger.GetBooking(c.Request.Context(), c.Param("bookingID"))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, booking)
}
