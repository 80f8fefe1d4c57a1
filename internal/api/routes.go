package api

import (
	"github.com/gin-gonic/gin"

	"github.com/watchwise/watchwise/internal/telemetry"
)

// SetupRoutes configures all API routes
func SetupRoutes(router *gin.Engine, handler *Handler, tel *telemetry.Provider) {
	// Health and metrics
	router.GET("/health", handler.HealthCheck)
	router.GET("/metrics", gin.WrapH(tel.Handler()))

	// API v1 routes
	v1 := router.Group("/api/v1")
	{
		v1.POST("/observe", handler.Observe)    // POST /api/v1/observe
		v1.GET("/stats", handler.GetStats)      // GET  /api/v1/stats
		v1.POST("/videos", handler.StoreVideo)  // POST /api/v1/videos

		data := v1.Group("/data")
		{
			data.POST("/clear", handler.ClearData)  // POST /api/v1/data/clear
			data.GET("/export", handler.ExportData) // GET  /api/v1/data/export
		}

		v1.POST("/tracking/toggle", handler.ToggleTracking) // POST /api/v1/tracking/toggle
	}
}
