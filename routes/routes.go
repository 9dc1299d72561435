package routes

import (
	"net/http"
	"time"

	"teleclinic/handlers"
	"teleclinic/utils"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// RegisterAvailabilityRoutes registers doctor availability endpoints.
func RegisterAvailabilityRoutes(r *gin.Engine, hb *handlers.HandlerBundle) {
	api := r.Group("/api/doctors")
	{
		api.PUT("/:doctorID/availability", hb.SetTemplateHandler)
		api.POST("/:doctorID/time-off", hb.DeclareTimeOffHandler)
		api.GET("/:doctorID/availability", hb.GetOpenIntervalsHandler)
		api.GET("/:doctorID/bookings", hb.ListDoctorBookingsHandler)
	}
}

// RegisterBookingRoutes sets up the endpoints for the scheduling engine.
func RegisterBookingRoutes(r *gin.Engine, hb *handlers.HandlerBundle) {
	api := r.Group("/api/bookings")
	{
		api.POST("/propose", hb.ProposeSlotsHandler)
		api.POST("", hb.ReserveBookingHandler)
		api.GET("/:bookingID", hb.GetBookingHandler)
		api.DELETE("/:bookingID", hb.CancelBookingHandler)
	}
}

// RegisterSessionRoutes sets up the consultation session endpoints.
func RegisterSessionRoutes(r *gin.Engine, hb *handlers.HandlerBundle) {
	api := r.Group("/api/sessions")
	{
		api.POST("", hb.StartSessionHandler)
		api.GET("/:sessionID", hb.GetSessionHandler)
		api.PATCH("/:sessionID/controls", hb.ToggleControlHandler)
		api.POST("/:sessionID/end", hb.EndSessionHandler)
	}
}

// RegisterHealthRoute registers a health-check endpoint.
func RegisterHealthRoute(r *gin.Engine) {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":       "ok",
			"message":      "Hi, I'm Teleclinic",
			"dependencies": utils.GetHealthStatus(),
		})
	})
}

// RegisterRoutes centralizes registration of all endpoints and middleware.
func RegisterRoutes(r *gin.Engine, hb *handlers.HandlerBundle) {
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Authorization", "Content-Type"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	RegisterAvailabilityRoutes(r, hb)
	RegisterBookingRoutes(r, hb)
	RegisterSessionRoutes(r, hb)
	RegisterHealthRoute(r)
}
