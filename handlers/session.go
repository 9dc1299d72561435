package handlers

import (
	"net/http"

	"teleclinic/models"
	"teleclinic/services/consult"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// SessionHandler exposes the consultation session lifecycle.
type SessionHandler struct {
	Orchestrator consult.SessionOrchestrator
	Logger       *zap.Logger
}

func NewSessionHandler(orch consult.SessionOrchestrator, logger *zap.Logger) *SessionHandler {
	return &SessionHandler{Orchestrator: orch, Logger: logger}
}

// StartSessionHandler joins a confirmed booking, negotiating the session
// modality against the device's reported capabilities.
func (h *SessionHandler) StartSessionHandler(c *gin.Context) {
	var input struct {
		BookingID    string                     `json:"bookingID" binding:"required"`
		Modality     string                     `json:"modality"`
		Capabilities models.DeviceCapabilitySet `json:"capabilities"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid input", "details": err.Error()})
		return
	}

	requested := models.ModalityVideo
	if input.Modality != "" {
		requested = models.Modality(input.Modality)
	}

	session, err := h.Orchestrator.Start(c.Request.Context(), input.BookingID, requested, input.Capabilities)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	h.Logger.Info("session started",
		zap.String("sessionID", session.ID),
		zap.String("bookingID", input.BookingID))
	c.JSON(http.StatusCreated, session)
}

// ToggleControlHandler flips an in-session control (audio or video mute).
func (h *SessionHandler) ToggleControlHandler(c *gin.Context) {
	sessionID := c.Param("sessionID")
	var input struct {
		Control string `json:"control" binding:"required"`
		On      *bool  `json:"on" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid input", "details": err.Error()})
		return
	}

	session, err := h.Orchestrator.ToggleControl(c.Request.Context(), sessionID, models.SessionControl(input.Control), *input.On)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, session)
}

// EndSessionHandler ends a session; repeat calls return the final state.
func (h *SessionHandler) EndSessionHandler(c *gin.Context) {
	sessionID := c.Param("sessionID")
	var input struct {
		Reason string `json:"reason"`
	}
	_ = c.ShouldBindJSON(&input)

	session, err := h.Orchestrator.End(c.Request.Context(), sessionID, input.Reason)
	if err != nil {
		// The session may still have reached its terminal state; surface the
		// release failure but include what we know.
		if session != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error(), "session": session})
			return
		}
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, session)
}

// GetSessionHandler fetches live or recorded session state.
func (h *SessionHandler) GetSessionHandler(c *gin.Context) {
	session, err := h.Orchestrator.Get(c.Request.Context(), c.Param("sessionID"))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, session)
}
