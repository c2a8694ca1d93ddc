package handlers

import (
	"context"
	"fmt"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/stitts-dev/player-enrichment/internal/cache"
	"github.com/stitts-dev/player-enrichment/internal/enrichment"
	"github.com/stitts-dev/player-enrichment/internal/matching"
	"github.com/stitts-dev/player-enrichment/internal/models"
	"github.com/stitts-dev/player-enrichment/pkg/utils"
)

const maxBatchSize = 5000

// EnrichmentAPI is the service surface the handlers depend on
type EnrichmentAPI interface {
	GetEnrichment(ctx context.Context, sleeperID string) (*models.EnrichedPlayer, error)
	RefreshEnrichment(ctx context.Context, sleeperID string) (*models.EnrichedPlayer, error)
	EnrichBatch(ctx context.Context, players map[string]models.SleeperPlayer) map[string]models.EnrichedPlayer
	EnrichByIDs(ctx context.Context, sleeperIDs []string) (map[string]models.EnrichedPlayer, []string)
	GetCacheStatus(ctx context.Context) cache.Status
	GetMappingStats() matching.MappingStats
	InvalidateCache(ctx context.Context, pattern string) int
	AddMappingOverride(ctx context.Context, sleeperID string, ffnerdID int, confidence float64) error
	GetMetrics() enrichment.MetricsSnapshot
	ResetMetrics()
}

// RefreshTrigger starts ingestion runs
type RefreshTrigger interface {
	FetchOnDemand(rebuildMapping bool) error
	GetFetchStatus() map[string]interface{}
}

type EnrichmentHandler struct {
	service EnrichmentAPI
	fetcher RefreshTrigger
}

func NewEnrichmentHandler(service EnrichmentAPI, fetcher RefreshTrigger) *EnrichmentHandler {
	return &EnrichmentHandler{
		service: service,
		fetcher: fetcher,
	}
}

// GetPlayerEnrichment returns one enriched player. ?fresh=true bypasses the
// cached composite record.
func (h *EnrichmentHandler) GetPlayerEnrichment(c *gin.Context) {
	playerID := c.Param("id")
	if playerID == "" {
		utils.SendValidationError(c, "Invalid player ID", "player id is required")
		return
	}

	fresh, _ := strconv.ParseBool(c.DefaultQuery("fresh", "false"))

	var (
		player *models.EnrichedPlayer
		err    error
	)
	if fresh {
		player, err = h.service.RefreshEnrichment(c.Request.Context(), playerID)
	} else {
		player, err = h.service.GetEnrichment(c.Request.Context(), playerID)
	}
	if err != nil {
		utils.SendServiceError(c, err)
		return
	}

	utils.SendSuccess(c, player)
}

type enrichBatchRequest struct {
	PlayerIDs []string                        `json:"player_ids"`
	Players   map[string]models.SleeperPlayer `json:"players"`
}

type enrichBatchResponse struct {
	Players    map[string]models.EnrichedPlayer `json:"players"`
	UnknownIDs []string                         `json:"unknown_ids,omitempty"`
}

// EnrichPlayers enriches either caller supplied Sleeper players or players of
// the current directory by id.
func (h *EnrichmentHandler) EnrichPlayers(c *gin.Context) {
	var req enrichBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendValidationError(c, "Invalid request body", err.Error())
		return
	}

	requested := len(req.PlayerIDs) + len(req.Players)
	if requested == 0 {
		utils.SendValidationError(c, "No players supplied", "provide player_ids or players")
		return
	}
	if requested > maxBatchSize {
		utils.SendValidationError(c, "Batch too large", fmt.Sprintf("at most %d players per request", maxBatchSize))
		return
	}

	resp := enrichBatchResponse{Players: make(map[string]models.EnrichedPlayer, requested)}

	if len(req.Players) > 0 {
		players := make(map[string]models.SleeperPlayer, len(req.Players))
		for id, p := range req.Players {
			if p.PlayerID == "" {
				p.PlayerID = id
			}
			players[id] = p
		}
		for id, p := range h.service.EnrichBatch(c.Request.Context(), players) {
			resp.Players[id] = p
		}
	}

	if len(req.PlayerIDs) > 0 {
		enriched, unknown := h.service.EnrichByIDs(c.Request.Context(), req.PlayerIDs)
		for id, p := range enriched {
			resp.Players[id] = p
		}
		resp.UnknownIDs = unknown
	}

	enrichedCount := 0
	for _, p := range resp.Players {
		if p.IsEnriched() {
			enrichedCount++
		}
	}

	utils.SendSuccessWithMeta(c, resp, &utils.Meta{
		Total:    requested,
		Returned: enrichedCount,
	})
}

func (h *EnrichmentHandler) GetCacheStatus(c *gin.Context) {
	utils.SendSuccess(c, h.service.GetCacheStatus(c.Request.Context()))
}

// InvalidateCache deletes keys matching ?pattern= within the cache namespace
func (h *EnrichmentHandler) InvalidateCache(c *gin.Context) {
	pattern := c.Query("pattern")
	if pattern == "" {
		utils.SendValidationError(c, "Missing pattern", "pattern query parameter is required")
		return
	}
	deleted := h.service.InvalidateCache(c.Request.Context(), pattern)
	utils.SendSuccess(c, gin.H{
		"pattern": pattern,
		"deleted": deleted,
	})
}

func (h *EnrichmentHandler) GetMappingStats(c *gin.Context) {
	utils.SendSuccess(c, h.service.GetMappingStats())
}

type mappingOverrideRequest struct {
	SleeperID  string   `json:"sleeper_id" binding:"required"`
	FFNerdID   int      `json:"ffnerd_id" binding:"required,gt=0"`
	Confidence *float64 `json:"confidence"`
}

// AddMappingOverride pins a Sleeper id to an FFNerd id
func (h *EnrichmentHandler) AddMappingOverride(c *gin.Context) {
	var req mappingOverrideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendValidationError(c, "Invalid request body", err.Error())
		return
	}

	confidence := 1.0
	if req.Confidence != nil {
		confidence = *req.Confidence
	}
	if confidence < 0 || confidence > 1 {
		utils.SendValidationError(c, "Invalid confidence", "confidence must be between 0 and 1")
		return
	}

	if err := h.service.AddMappingOverride(c.Request.Context(), req.SleeperID, req.FFNerdID, confidence); err != nil {
		utils.SendServiceError(c, err)
		return
	}

	utils.SendSuccess(c, gin.H{
		"sleeper_id": req.SleeperID,
		"ffnerd_id":  req.FFNerdID,
		"confidence": confidence,
	})
}

// TriggerRefresh starts an ingestion run in the background. It answers 409
// while another run is in flight.
func (h *EnrichmentHandler) TriggerRefresh(c *gin.Context) {
	if h.fetcher == nil {
		utils.SendServiceUnavailable(c, "Data fetcher not configured")
		return
	}
	rebuild, _ := strconv.ParseBool(c.DefaultQuery("rebuild_mapping", "false"))
	if err := h.fetcher.FetchOnDemand(rebuild); err != nil {
		utils.SendServiceError(c, err)
		return
	}
	utils.SendAccepted(c, gin.H{
		"status":          "refresh started",
		"rebuild_mapping": rebuild,
	})
}

func (h *EnrichmentHandler) GetRefreshStatus(c *gin.Context) {
	if h.fetcher == nil {
		utils.SendServiceUnavailable(c, "Data fetcher not configured")
		return
	}
	utils.SendSuccess(c, h.fetcher.GetFetchStatus())
}

func (h *EnrichmentHandler) GetMetrics(c *gin.Context) {
	utils.SendSuccess(c, h.service.GetMetrics())
}

func (h *EnrichmentHandler) ResetMetrics(c *gin.Context) {
	h.service.ResetMetrics()
	utils.SendSuccess(c, gin.H{"reset": true})
}
