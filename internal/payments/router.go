package payments

import (
	"ticketflow/internal/shared/middleware"

	"github.com/gin-gonic/gin"
)

// SetupPaymentRoutes registers payment and refund endpoints. The webhook is
// unauthenticated (gateway-signed, idempotent); refund settlement and
// organizer settlement are admin operations.
func SetupPaymentRoutes(rg *gin.RouterGroup, controller *Controller) {
	payments := rg.Group("/payments")
	{
		payments.POST("/webhook", controller.HandleWebhook)

		authed := payments.Group("")
		authed.Use(middleware.JWTAuth())
		{
			authed.POST("/initiate", controller.InitiatePayment)
			authed.GET("/:reference", controller.GetPayment)
			authed.POST("/:reference/retry", controller.RetryPayment)
		}

		admin := payments.Group("")
		admin.Use(middleware.JWTAuth(), middleware.RequireAdmin())
		{
			admin.POST("/:reference/refunds", controller.ProcessRefund)
			admin.POST("/:reference/settle", controller.SettlePayment)
		}
	}

	refunds := rg.Group("/refunds")
	refunds.Use(middleware.JWTAuth(), middleware.RequireAdmin())
	{
		refunds.POST("/:reference/complete", controller.CompleteRefund)
		refunds.POST("/:reference/fail", controller.FailRefund)
	}
}
