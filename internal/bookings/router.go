package bookings

import (
	"ticketflow/internal/shared/middleware"

	"github.com/gin-gonic/gin"
)

// SetupBookingRoutes registers the checkout and booking lifecycle endpoints.
// Everything requires an authenticated user; ownership checks happen in the
// service layer.
func SetupBookingRoutes(rg *gin.RouterGroup, controller *Controller) {
	bookings := rg.Group("/bookings")
	bookings.Use(middleware.JWTAuth())
	{
		bookings.POST("", controller.CreateBooking)
		bookings.GET("", controller.GetBookings)
		bookings.GET("/:reference", controller.GetBooking)
		bookings.POST("/:reference/confirm", controller.ConfirmBooking)
		bookings.POST("/:reference/cancel", controller.CancelBooking)
		bookings.GET("/:reference/history", controller.GetBookingHistory)
	}
}
