package api

import (
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/stitts-dev/player-enrichment/internal/api/handlers"
	"github.com/stitts-dev/player-enrichment/internal/api/middleware"
	"github.com/stitts-dev/player-enrichment/internal/metrics"
	"github.com/stitts-dev/player-enrichment/pkg/logger"
)

// RouterDeps are the collaborators the HTTP layer needs
type RouterDeps struct {
	Service  handlers.EnrichmentAPI
	Fetcher  handlers.RefreshTrigger
	Cache    handlers.Pinger
	Breakers handlers.BreakerStatuses
	Metrics  *metrics.Registry
	Logger   *logrus.Logger
}

// NewRouter builds the gin engine with middleware and every route
func NewRouter(deps RouterDeps) *gin.Engine {
	if deps.Logger == nil {
		deps.Logger = logger.GetLogger()
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.RequestLogger(deps.Logger))
	router.Use(middleware.ErrorLogger(deps.Logger))
	if deps.Metrics != nil {
		router.Use(middleware.Metrics(deps.Metrics))
	}

	healthHandler := handlers.NewHealthHandler(deps.Cache, deps.Breakers)
	router.GET("/health", healthHandler.GetHealth)
	router.GET("/ready", healthHandler.GetReady)
	if deps.Metrics != nil {
		router.GET("/metrics", gin.WrapH(deps.Metrics.Handler()))
	}

	SetupRoutes(router.Group("/api/v1"), deps)
	return router
}

// SetupRoutes configures all API routes on the given router group
func SetupRoutes(group *gin.RouterGroup, deps RouterDeps) {
	enrichmentHandler := handlers.NewEnrichmentHandler(deps.Service, deps.Fetcher)

	// Player endpoints
	group.GET("/players/:id/enrichment", enrichmentHandler.GetPlayerEnrichment)
	group.POST("/players/enrich", enrichmentHandler.EnrichPlayers)

	// Cache endpoints
	group.GET("/cache/status", enrichmentHandler.GetCacheStatus)
	group.DELETE("/cache", enrichmentHandler.InvalidateCache)

	// Mapping endpoints
	group.GET("/mapping/stats", enrichmentHandler.GetMappingStats)
	group.POST("/mapping/overrides", enrichmentHandler.AddMappingOverride)

	// Ingestion
	group.POST("/refresh", enrichmentHandler.TriggerRefresh)
	group.GET("/refresh/status", enrichmentHandler.GetRefreshStatus)

	// Enrichment metrics
	group.GET("/enrichment/metrics", enrichmentHandler.GetMetrics)
	group.DELETE("/enrichment/metrics", enrichmentHandler.ResetMetrics)
}
