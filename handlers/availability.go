package handlers

import (
	"net/http"
	"time"

	"teleclinic/models"
	"teleclinic/services/scheduling"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// AvailabilityHandler exposes the doctor availability surface: weekly
// templates, time off, and the computed open intervals.
type AvailabilityHandler struct {
	Service scheduling.AvailabilityService
	Logger  *zap.Logger
}

func NewAvailabilityHandler(svc scheduling.AvailabilityService, logger *zap.Logger) *AvailabilityHandler {
	return &AvailabilityHandler{Service: svc, Logger: logger}
}

// SetTemplateHandler replaces a doctor's weekly availability template.
// Already confirmed bookings are unaffected.
func (h *AvailabilityHandler) SetTemplateHandler(c *gin.Context) {
	doctorID := c.Param("doctorID")
	var input struct {
		Weekly map[string][]models.DayWindow `json:"weekly" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid input", "details": err.Error()})
		return
	}

	tmpl, err := h.Service.SetTemplate(c.Request.Context(), doctorID, input.Weekly)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	h.Logger.Info("availability template updated", zap.String("doctorID", doctorID))
	c.JSON(http.StatusOK, tmpl)
}

// DeclareTimeOffHandler blocks out an interval from a doctor's schedule.
func (h *AvailabilityHandler) DeclareTimeOffHandler(c *gin.Context) {
	doctorID := c.Param("doctorID")
	var input struct {
		Start  time.Time `json:"start" binding:"required"`
		End    time.Time `json:"end" binding:"required"`
		Reason string    `json:"reason"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid input", "details": err.Error()})
		return
	}

	timeOff, err := h.Service.DeclareTimeOff(c.Request.Context(),
		doctorID, models.TimeInterval{Start: input.Start, End: input.End}, input.Reason)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, timeOff)
}

// GetOpenIntervalsHandler returns the doctor's open intervals over a query
// range (template windows minus time off).
func (h *AvailabilityHandler) GetOpenIntervalsHandler(c *gin.Context) {
	doctorID := c.Param("doctorID")

	from, err := parseTimeQuery(c, "from", time.Now())
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid 'from' timestamp, expected RFC3339"})
		return
	}
	to, err := parseTimeQuery(c, "to", from.Add(7*24*time.Hour))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid 'to' timestamp, expected RFC3339"})
		return
	}

	open, err := h.Service.GetOpenIntervals(c.Request.Context(), doctorID, models.TimeInterval{Start: from, End: to})
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"doctorID": doctorID,
		"from":     from,
		"to":       to,
		"open":     open,
	})
}

func parseTimeQuery(c *gin.Context, key string, fallback time.Time) (time.Time, error) {
	raw := c.Query(key)
	if raw == "" {
		return fallback, nil
	}
	return time.Parse(time.RFC3339, raw)
}
