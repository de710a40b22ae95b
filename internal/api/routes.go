package api

import (
	"net/http"

	"deepsite_server/internal/metrics"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter builds the engine with logging, recovery, metrics and CORS
// middleware and registers every route.
func NewRouter(h *APIHandler, allowedOrigins []string) *gin.Engine {
	router := gin.New()        // Use gin.New() for more control over middleware
	router.Use(gin.Logger())   // Access log
	router.Use(gin.Recovery()) // Panic recovery
	router.Use(metrics.GinMiddleware())

	if len(allowedOrigins) > 0 {
		config := cors.DefaultConfig()
		config.AllowOrigins = allowedOrigins
		config.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
		config.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization"}
		router.Use(cors.New(config))
	}

	RegisterRoutes(router, h)
	return router
}

// RegisterRoutes sets up the API endpoints and groups them logically.
func RegisterRoutes(router *gin.Engine, h *APIHandler) {
	router.GET("/health", h.Health)
	router.GET("/health/upstream", h.UpstreamHealth)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// --- Editing sessions ---
	sessions := router.Group("/sessions")
	{
		sessions.POST("", h.CreateSession)
		sessions.GET("/:sid", h.GetSession)
		sessions.DELETE("/:sid", h.DeleteSession)
		sessions.PUT("/:sid/settings", h.UpdateSettings)
		sessions.PUT("/:sid/markup", h.SetMarkup)
		sessions.GET("/:sid/preview", h.Preview)
		sessions.POST("/:sid/generate", h.Generate)
		sessions.POST("/:sid/generate/stream", h.GenerateStream)
		sessions.POST("/:sid/load", h.LoadProject)
		sessions.POST("/:sid/save", h.SaveProject)
		sessions.POST("/:sid/deploy", h.Deploy)
	}

	// --- Stored projects ---
	projects := router.Group("/projects")
	{
		projects.GET("", h.ListProjects)
		projects.POST("", h.CreateProject)
		projects.GET("/events", h.broker.ServeEvents)
		projects.GET("/:id", h.GetProject)
		projects.PATCH("/:id", h.UpdateProject)
		projects.DELETE("/:id", h.DeleteProject)
	}

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "route not found"})
	})
}
