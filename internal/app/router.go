package app

import (
	"github.com/gin-gonic/gin"
	"github.com/newrelic/go-agent/v3/integrations/nrgin"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/redis/go-redis/v9"

	"travelpay/internal/handler"
	"travelpay/internal/middleware"
)

// RouterDeps contains all dependencies needed for the router.
type RouterDeps struct {
	PaymentHandler *handler.PaymentHandler
	RedisClient    *redis.Client // optional; enables Idempotency-Key support
	NewRelicApp    *newrelic.Application
}

// NewRouter creates a new Gin router with all routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	router := gin.New()

	// Global middleware.
	router.Use(gin.Recovery())
	router.Use(gin.Logger())
	router.Use(middleware.CORSMiddleware())

	// Add New Relic middleware if enabled.
	if deps.NewRelicApp != nil {
		router.Use(nrgin.Middleware(deps.NewRelicApp))
	}

	// Health check.
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	initiate := []gin.HandlerFunc{deps.PaymentHandler.InitiatePayment}
	if deps.RedisClient != nil {
		initiate = append([]gin.HandlerFunc{middleware.IdempotencyMiddleware(deps.RedisClient)}, initiate...)
	}

	// Payment routes.
	payment := router.Group("/payment")
	{
		payment.POST("/initiate", initiate...)
		payment.GET("/verify", deps.PaymentHandler.VerifyPayment)
	}

	router.GET("/payments/:id", deps.PaymentHandler.GetPayment)

	return router
}
