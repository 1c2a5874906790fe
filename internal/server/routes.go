package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func registerRoutes(router *gin.Engine, h *handlers) {
	router.NoMethod(func(c *gin.Context) {
		c.JSON(http.StatusMethodNotAllowed, ingestResponse{OK: false, Errors: []string{"method not allowed"}})
	})

	api := router.Group("/api")
	{
		api.POST("/ingest", h.handleIngest)

		sessions := api.Group("/sessions")
		{
			sessions.POST("", h.handleStart)
			sessions.POST("/events", h.handleEvent)
			sessions.GET("/context", h.handleContext)
			sessions.POST("/end", h.handleEnd)
		}

		api.GET("/health", h.handleHealth)
	}

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
}
