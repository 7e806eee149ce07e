package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"scriba_backend/internal/handlers"
)

// RegisterRoutes mounts every handler under /api/v1.
func RegisterRoutes(router *gin.Engine, appHandlers *handlers.AppHandlers) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := router.Group("/api/v1")
	{
		appHandlers.AuthHandler.RegisterRoutes(api)
		appHandlers.UserHandler.RegisterRoutes(api)
		appHandlers.PlanHandler.RegisterRoutes(api)
		appHandlers.TranscriptionHandler.RegisterRoutes(api)
		appHandlers.AgentHandler.RegisterRoutes(api)
		appHandlers.AssistantHandler.RegisterRoutes(api)
	}
}
