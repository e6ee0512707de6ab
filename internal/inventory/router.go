package inventory

import (
	"github.com/gin-gonic/gin"
)

// SetupInventoryRoutes registers the public availability endpoints. Ledger
// mutations (reserve/release/commit) have no HTTP surface; they are only
// reachable through the booking and payment flows.
func SetupInventoryRoutes(rg *gin.RouterGroup, controller *Controller) {
	ticketTypes := rg.Group("/ticket-types")
	{
		ticketTypes.GET("/:id", controller.GetTicketType)
		ticketTypes.GET("/:id/availability", controller.GetAvailability)
	}

	rg.GET("/events/:event_id/ticket-types", controller.GetEventTicketTypes)
}
