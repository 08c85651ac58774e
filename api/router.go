package api

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/use-agent/qrawl"
	"github.com/use-agent/qrawl/api/handler"
	"github.com/use-agent/qrawl/api/middleware"
	"github.com/use-agent/qrawl/cache"
	"github.com/use-agent/qrawl/config"
)

// NewRouter creates a configured Gin engine with all routes and middleware.
//
// Middleware chain:
//
//	Global:  Recovery → Logger
//	API:     Auth (if enabled) → RateLimit
//
// Health endpoint is intentionally outside auth so monitoring probes always work.
func NewRouter(client *qrawl.Client, cfg *config.Config, cc *cache.Cache, startTime time.Time) *gin.Engine {
	gin.SetMode(cfg.Server.Mode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.Logger())

	v1 := r.Group("/api/v1")

	// Health — no auth required.
	v1.GET("/health", handler.Health(startTime))

	// Protected group — auth + rate limit.
	protected := v1.Group("")
	if cfg.Auth.Enabled {
		protected.Use(middleware.Auth(cfg.Auth.APIKeys))
	}
	protected.Use(middleware.RateLimit(cfg.RateLimit))

	// Extraction
	protected.POST("/extract", handler.Extract(client, cc))

	// Structure mining
	protected.POST("/map", handler.Map)

	// HTML cleanup
	protected.POST("/clean", handler.Clean)

	// Policy lifecycle
	protected.GET("/policies", handler.ListPolicies(client))
	protected.POST("/policies/:domain", handler.CreatePolicy(client))
	protected.GET("/policies/:domain", handler.ReadPolicy(client))
	protected.DELETE("/policies/:domain", handler.DeletePolicy(client))

	return r
}
