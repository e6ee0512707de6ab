package tickets

import (
	"ticketflow/internal/shared/middleware"
	"ticketflow/internal/users"

	"github.com/gin-gonic/gin"
)

// SetupTicketRoutes registers ticket endpoints. Check-in is staff-only;
// everything else is owner-scoped in the service layer.
func SetupTicketRoutes(rg *gin.RouterGroup, controller *Controller) {
	tickets := rg.Group("/tickets")
	tickets.Use(middleware.JWTAuth())
	{
		tickets.GET("", controller.GetTickets)
		tickets.GET("/:code", controller.GetTicket)
		tickets.GET("/:code/qr", controller.GetQR)
		tickets.GET("/:code/transfers", controller.GetTransfers)
		tickets.POST("/:code/transfer", controller.Transfer)
		tickets.POST("/:code/refund", controller.RefundTicket)

		staff := tickets.Group("")
		staff.Use(middleware.RequireRoles(string(users.RoleOrganizer), string(users.RoleAdmin)))
		{
			staff.POST("/:code/check-in", controller.CheckIn)
		}
	}
}
