package handlers

import (
	"github.com/gin-gonic/gin"
)

// HandlerBundle groups all endpoint handlers into one struct.
type HandlerBundle struct {
	// Availability endpoints
	SetTemplateHandler      gin.HandlerFunc
	DeclareTimeOffHandler   gin.HandlerFunc
	GetOpenIntervalsHandler gin.HandlerFunc

	// Scheduling endpoints
	ProposeSlotsHandler       gin.HandlerFunc
	ReserveBookingHandler     gin.HandlerFunc
	CancelBookingHandler      gin.HandlerFunc
	GetBookingHandler         gin.HandlerFunc
	ListDoctorBookingsHandler gin.HandlerFunc

	// Session endpoints
	StartSessionHandler  gin.HandlerFunc
	ToggleControlHandler gin.HandlerFunc
	EndSessionHandler    gin.HandlerFunc
	GetSessionHandler    gin.HandlerFunc
}
