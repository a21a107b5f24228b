package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/ens-relayer/relayer_service/internal/api/handlers"
	"github.com/ens-relayer/relayer_service/internal/api/middleware"
	"github.com/ens-relayer/relayer_service/internal/infrastructure/di"
	"github.com/ens-relayer/relayer_service/pkg/idempotency"
	"github.com/ens-relayer/relayer_service/pkg/tracing"
)

// Version is stamped at build time
var Version = "dev"

// SetupRoutes configures all application routes
func SetupRoutes(container *di.Container) *gin.Engine {
	router := gin.New()

	// Global middleware - order matters
	router.Use(tracing.HTTPMiddleware())
	router.Use(middleware.RequestID())
	router.Use(middleware.MetricsMiddleware())
	router.Use(middleware.RequestSizeLimit())
	router.Use(middleware.InputValidation())
	router.Use(middleware.Logger(container.Logger))
	router.Use(middleware.Recovery(container.Logger))
	router.Use(middleware.CORS(container.Config.Server.AllowedOrigins))
	router.Use(middleware.RateLimit(container.IPRateLimiter))
	router.Use(middleware.SecurityHeaders())

	healthHandler := handlers.NewHealthHandler(container.Liveness, container.Readiness, container.ZapLog, Version)
	reverseHandlers := handlers.NewReverseHandlers(container.ReverseService, container.Logger)
	relayerHandlers := handlers.NewRelayerHandlers(container.RelayerService)

	router.GET("/health", healthHandler.Health)
	router.GET("/health/liveness", healthHandler.Liveness)
	router.GET("/health/readiness", healthHandler.Readiness)
	router.GET("/ping", healthHandler.Ping)
	router.GET("/metrics", handlers.Metrics())

	api := router.Group("/api")
	{
		api.GET("/chains", reverseHandlers.GetChains)
		api.POST("/signature-message", reverseHandlers.SignatureMessage)
		api.GET("/relayer/status", relayerHandlers.GetStatus)

		setReverse := []gin.HandlerFunc{}
		if container.Config.Idempotency.Enabled {
			setReverse = append(setReverse, idempotency.Middleware(container.ResponseStore, container.Config.Idempotency.TTL, container.ZapLog))
		}
		setReverse = append(setReverse, reverseHandlers.SetReverse)
		api.POST("/set-reverse", setReverse...)
	}

	return router
}
