package waitlist

import (
	"ticketflow/internal/shared/middleware"

	"github.com/gin-gonic/gin"
)

// SetupWaitlistRoutes registers waitlist endpoints under the event resource.
func SetupWaitlistRoutes(rg *gin.RouterGroup, controller *Controller) {
	waitlist := rg.Group("/events/:event_id/waitlist")
	waitlist.Use(middleware.JWTAuth())
	{
		waitlist.POST("", controller.Join)
		waitlist.DELETE("", controller.Leave)
		waitlist.GET("/position", controller.GetPosition)
	}
}
