package routes

import (
	"github.com/gin-gonic/gin"

	"listingpilot/backend/internal/api/handlers"
	"listingpilot/backend/internal/api/middleware"
)

func SetupRoutes(api *handlers.API) *gin.Engine {
	router := gin.New()

	// Global middleware
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(middleware.CORSMiddleware())

	v1 := router.Group("/api/v1")
	{
		v1.GET("/health", api.HealthCheck)

		// Ping is public, every other action checks the operator in the handler
		v1.POST("/messages", middleware.OptionalAuthMiddleware(), api.PostMessage)

		// The session id authorizes the socket
		v1.GET("/ws/recording", api.RecordingWebSocket)

		protected := v1.Group("")
		protected.Use(middleware.AuthMiddleware())
		{
			protected.GET("/status", api.GetStatus)

			mappings := protected.Group("/mappings")
			{
				mappings.GET("", api.GetMappings)
				mappings.PUT("/:field", api.PutMapping)
				mappings.DELETE("", api.ClearMappings)
			}

			recording := protected.Group("/recording")
			{
				recording.POST("/start", api.StartRecording)
				recording.POST("/stop", api.StopRecording)
				recording.GET("/status", api.GetRecordingStatus)
			}

			attempts := protected.Group("/attempts")
			{
				attempts.GET("", api.GetAttempts)
				attempts.GET("/:id", api.GetAttempt)
			}
		}
	}

	return router
}
