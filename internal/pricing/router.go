package pricing

import (
	"ticketflow/internal/shared/middleware"

	"github.com/gin-gonic/gin"
)

// SetupPricingRoutes registers the discount preview endpoint. Quote
// computation itself has no standalone HTTP surface; it runs inside the
// checkout flow.
func SetupPricingRoutes(rg *gin.RouterGroup, controller *Controller) {
	discounts := rg.Group("/discounts")
	discounts.Use(middleware.JWTAuth())
	{
		discounts.POST("/validate", controller.ValidateDiscount)
	}
}
