package app

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/newrelic/go-agent/v3/integrations/nrgin"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"servicedesk/internal/config"
	"servicedesk/internal/handler"
	"servicedesk/internal/middleware"
)

// RouterDeps contains all dependencies needed for the router.
type RouterDeps struct {
	ServiceRequestHandler *handler.ServiceRequestHandler
	PaymentHandler        *handler.PaymentHandler
	CallbackHandler       *handler.CallbackHandler
	PricingHandler        *handler.PricingHandler

	// RedisClient backs Idempotency-Key replay. Nil disables it.
	RedisClient *redis.Client
	NewRelicApp *newrelic.Application

	// RateLimiter limits client-facing POSTs. Nil disables it.
	RateLimiter *middleware.RateLimiter

	Mpesa          config.MpesaConfig
	AdminToken     string
	AllowedOrigins []string
	Logger         *zap.Logger
}

// NewRouter creates a new Gin router with all routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	handler.RegisterJSONFieldNames()

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	router := gin.New()

	// Global middleware.
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger(logger.With(zap.String("component", "http"))))
	router.Use(middleware.CORSMiddleware(deps.AllowedOrigins...))

	// Add New Relic middleware if enabled.
	if deps.NewRelicApp != nil {
		router.Use(nrgin.Middleware(deps.NewRelicApp))
		router.Use(middleware.NewRelicErrors())
	}

	idempotency := middleware.IdempotencyMiddleware(deps.RedisClient, logger.With(zap.String("component", "idempotency")))
	limit := deps.RateLimiter.Middleware()

	// Health check.
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Client routes.
	router.POST("/service-request", limit, idempotency, deps.ServiceRequestHandler.Create)
	router.GET("/service-request/:id", deps.ServiceRequestHandler.Get)
	router.POST("/initiate-payment", limit, idempotency, deps.PaymentHandler.Initiate)
	router.GET("/payment-status/:id", deps.PaymentHandler.Status)
	router.GET("/pricing", deps.PricingHandler.List)

	// Provider callback.
	router.POST("/payment-callback",
		middleware.CallbackAuth(deps.Mpesa.CallbackToken, deps.Mpesa.AllowedIPs, logger.With(zap.String("component", "callback_auth"))),
		deps.CallbackHandler.Handle,
	)

	// Operator routes.
	admin := router.Group("/admin", middleware.AdminAuth(deps.AdminToken))
	{
		admin.POST("/pricing", deps.PricingHandler.Create)
		admin.PUT("/pricing", deps.PricingHandler.Update)
		admin.PATCH("/service-request/:id/status", deps.ServiceRequestHandler.UpdateStatus)
	}

	return router
}
