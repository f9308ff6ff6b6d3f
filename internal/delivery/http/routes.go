package http

import (
	"github.com/gin-gonic/gin"

	"github.com/pricelens/backend/config"
)

// SetupRouter creates and configures the Gin router
func SetupRouter(cfg *config.Config, handler *Handler) *gin.Engine {
	// Set Gin mode based on environment
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Global middleware
	router.Use(RecoveryMiddleware())
	router.Use(LoggerMiddleware())
	router.Use(CORSMiddleware(cfg.Server.AllowedOrigins))
	router.Use(RateLimitMiddleware(cfg.RateLimit.PerIP))

	// Health check endpoint
	router.GET("/health", handler.HealthCheck)

	// API v1 routes
	v1 := router.Group("/api/v1")
	{
		v1.POST("/ingest", handler.Ingest)

		products := v1.Group("/products")
		{
			products.GET("/find", handler.FindProduct)
		}

		alerts := v1.Group("/alerts")
		{
			alerts.POST("", handler.CreateAlert)
			alerts.GET("/:id", handler.GetAlert)
			alerts.POST("/sweep", handler.SweepAlerts)
		}
	}

	return router
}
