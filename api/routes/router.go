package routes

import (
	"net/http"
	"time"

	"ticketflow/internal/bookings"
	"ticketflow/internal/events"
	"ticketflow/internal/inventory"
	"ticketflow/internal/notifications"
	"ticketflow/internal/payments"
	"ticketflow/internal/pricing"
	"ticketflow/internal/shared/config"
	"ticketflow/internal/shared/database"
	"ticketflow/internal/tickets"
	"ticketflow/internal/users"
	"ticketflow/internal/waitlist"
	"ticketflow/pkg/cache"
	"ticketflow/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "ticketflow/docs"
)

// Router wires the feature modules together. Construction order matters only
// for the narrow cross-module interfaces, which are connected through setters
// after every service exists.
type Router struct {
	config    *config.Config
	db        *database.DB
	logger    *logger.Logger
	publisher notifications.Publisher

	bookingService  bookings.Service
	paymentService  payments.Service
	waitlistService waitlist.Service
}

func NewRouter(cfg *config.Config, db *database.DB, publisher notifications.Publisher, log *logger.Logger) *Router {
	return &Router{
		config:    cfg,
		db:        db,
		logger:    log,
		publisher: publisher,
	}
}

// BookingService exposes the booking state machine for the scheduler.
func (r *Router) BookingService() bookings.Service {
	return r.bookingService
}

// PaymentService exposes the payment orchestrator for the scheduler.
func (r *Router) PaymentService() payments.Service {
	return r.paymentService
}

// WaitlistService exposes the waitlist for the scheduler.
func (r *Router) WaitlistService() waitlist.Service {
	return r.waitlistService
}

// SetupRoutes configures all application routes
func (r *Router) SetupRoutes(engine *gin.Engine) {
	r.setupHealthRoutes(engine)

	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))
	engine.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	api := engine.Group(r.config.GetAPIBasePath())
	{
		api.GET("/status", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{
				"service":   "ticketflow",
				"version":   r.config.APIVersion,
				"timestamp": time.Now(),
			})
		})
		r.setupFeatureRoutes(api)
	}
}

// setupHealthRoutes sets up health check and system status routes
func (r *Router) setupHealthRoutes(engine *gin.Engine) {
	engine.GET("/health", func(c *gin.Context) {
		if err := r.db.HealthCheck(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":    "unhealthy",
				"error":     err.Error(),
				"timestamp": time.Now(),
				"service":   "ticketflow",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"timestamp": time.Now(),
			"service":   "ticketflow",
		})
	})

	engine.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "pong",
			"version": r.config.APIVersion,
		})
	})
}

// setupFeatureRoutes constructs every feature module against the shared
// database handles and registers its routes.
func (r *Router) setupFeatureRoutes(rg *gin.RouterGroup) {
	pg := r.db.GetPostgreSQL()
	cacheService := cache.NewService(r.db.GetRedisClient())
	guard := cache.NewGuard(r.db.GetRedisClient())

	// Read-side collaborators shared across modules.
	eventRepo := events.NewRepository(pg)
	userRepo := users.NewRepository(pg)

	// Inventory ledger.
	inventoryRepo := inventory.NewRepository(pg)
	inventoryService := inventory.NewService(inventoryRepo, cacheService, r.logger)
	inventoryController := inventory.NewController(inventoryService)

	// Pricing engine.
	pricingRepo := pricing.NewRepository(pg)
	pricingService := pricing.NewService(pricingRepo, inventoryService, r.logger)
	pricingController := pricing.NewController(pricingService)

	// Booking state machine.
	bookingRepo := bookings.NewRepository(pg)
	bookingService := bookings.NewService(bookingRepo, inventoryService, pricingService,
		eventRepo, userRepo, r.publisher, cacheService, r.config, r.logger)
	bookingController := bookings.NewController(bookingService)

	// Payment orchestrator.
	paymentRepo := payments.NewRepository(pg)
	paymentService := payments.NewService(paymentRepo, bookingService, eventRepo,
		r.publisher, guard, r.config, r.logger)
	paymentController := payments.NewController(paymentService)

	// Ticket issuance and gate operations.
	ticketRepo := tickets.NewRepository(pg)
	ticketService := tickets.NewService(ticketRepo, bookingService, inventoryService,
		eventRepo, r.publisher, r.logger)
	ticketController := tickets.NewController(ticketService)

	// Waitlist.
	waitlistRepo := waitlist.NewRepository(pg)
	waitlistService := waitlist.NewService(waitlistRepo, inventoryService,
		r.publisher, cacheService, r.config, r.logger)
	waitlistController := waitlist.NewController(waitlistService)

	// Cross-module wiring. Each pair is connected through a narrow interface
	// so the packages stay acyclic.
	pricingService.SetPurchaseHistory(bookingService)
	bookingService.SetTicketIssuer(ticketService)
	paymentService.SetTicketNotifier(ticketService)
	ticketService.SetRefundRequester(paymentService)
	inventoryService.SetCapacityListener(waitlistService)

	r.bookingService = bookingService
	r.paymentService = paymentService
	r.waitlistService = waitlistService

	inventory.SetupInventoryRoutes(rg, inventoryController)
	pricing.SetupPricingRoutes(rg, pricingController)
	bookings.SetupBookingRoutes(rg, bookingController)
	payments.SetupPaymentRoutes(rg, paymentController)
	tickets.SetupTicketRoutes(rg, ticketController)
	waitlist.SetupWaitlistRoutes(rg, waitlistController)
}
