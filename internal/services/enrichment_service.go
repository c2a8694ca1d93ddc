package services

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/stitts-dev/player-enrichment/internal/cache"
	"github.com/stitts-dev/player-enrichment/internal/enrichment"
	"github.com/stitts-dev/player-enrichment/internal/matching"
	"github.com/stitts-dev/player-enrichment/internal/models"
	"github.com/stitts-dev/player-enrichment/pkg/utils"
)

// PlayerDirectory resolves Sleeper ids to directory entries
type PlayerDirectory interface {
	Player(sleeperID string) (models.SleeperPlayer, bool)
}

// EnrichmentService is the surface consumed by the API and the CLI
type EnrichmentService struct {
	enricher        *enrichment.PlayerEnricher
	cache           *cache.EnrichmentCache
	matcher         *matching.IdentityMatcher
	directory       PlayerDirectory
	mappingFilePath string
	maxConcurrent   int
	logger          *logrus.Logger
}

func NewEnrichmentService(
	enricher *enrichment.PlayerEnricher,
	enrichmentCache *cache.EnrichmentCache,
	matcher *matching.IdentityMatcher,
	directory PlayerDirectory,
	mappingFilePath string,
	maxConcurrent int,
	logger *logrus.Logger,
) *EnrichmentService {
	if maxConcurrent <= 0 {
		maxConcurrent = enrichment.DefaultMaxConcurrent
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &EnrichmentService{
		enricher:        enricher,
		cache:           enrichmentCache,
		matcher:         matcher,
		directory:       directory,
		mappingFilePath: mappingFilePath,
		maxConcurrent:   maxConcurrent,
		logger:          logger,
	}
}

// GetEnrichment enriches one player of the current Sleeper directory. An
// unknown player yields utils.ErrNotFound, or utils.ErrMappingUnavailable
// while no mapping exists.
func (s *EnrichmentService) GetEnrichment(ctx context.Context, sleeperID string) (*models.EnrichedPlayer, error) {
	return s.getEnrichment(ctx, sleeperID, false)
}

// RefreshEnrichment bypasses the cached composite record for one player
func (s *EnrichmentService) RefreshEnrichment(ctx context.Context, sleeperID string) (*models.EnrichedPlayer, error) {
	return s.getEnrichment(ctx, sleeperID, true)
}

func (s *EnrichmentService) getEnrichment(ctx context.Context, sleeperID string, skipCache bool) (*models.EnrichedPlayer, error) {
	player, ok := s.directory.Player(sleeperID)
	if !ok {
		if s.matcher.Len() == 0 {
			return nil, fmt.Errorf("sleeper player %q: %w", sleeperID, utils.ErrMappingUnavailable)
		}
		return nil, fmt.Errorf("%w: sleeper player %q", utils.ErrNotFound, sleeperID)
	}
	enriched := s.enricher.EnrichOne(ctx, player, skipCache)
	return &enriched, nil
}

// EnrichBatch enriches caller-supplied players
func (s *EnrichmentService) EnrichBatch(ctx context.Context, players map[string]models.SleeperPlayer) map[string]models.EnrichedPlayer {
	return s.enricher.EnrichMany(ctx, players, s.maxConcurrent)
}

// EnrichByIDs enriches players of the current directory. Unknown ids are
// returned separately.
func (s *EnrichmentService) EnrichByIDs(ctx context.Context, sleeperIDs []string) (map[string]models.EnrichedPlayer, []string) {
	players := make(map[string]models.SleeperPlayer, len(sleeperIDs))
	var unknown []string
	for _, id := range sleeperIDs {
		player, ok := s.directory.Player(id)
		if !ok {
			unknown = append(unknown, id)
			continue
		}
		players[id] = player
	}
	return s.EnrichBatch(ctx, players), unknown
}

func (s *EnrichmentService) GetCacheStatus(ctx context.Context) cache.Status {
	return s.cache.GetStatus(ctx)
}

func (s *EnrichmentService) GetMappingStats() matching.MappingStats {
	return s.matcher.Stats()
}

// InvalidateCache deletes cache keys matching pattern within the namespace
func (s *EnrichmentService) InvalidateCache(ctx context.Context, pattern string) int {
	return s.cache.Invalidate(ctx, pattern)
}

// AddMappingOverride records a manual mapping and persists the mapping file
// and the cached mapping.
func (s *EnrichmentService) AddMappingOverride(ctx context.Context, sleeperID string, ffnerdID int, confidence float64) error {
	if sleeperID == "" || ffnerdID <= 0 {
		return fmt.Errorf("%w: override %q -> %d", utils.ErrInvalidInput, sleeperID, ffnerdID)
	}
	s.matcher.AddManualOverride(sleeperID, ffnerdID, confidence)

	if s.mappingFilePath != "" {
		if err := s.matcher.SaveMapping(s.mappingFilePath); err != nil {
			return fmt.Errorf("failed to persist mapping override: %w", err)
		}
	}
	s.cache.StoreMapping(ctx, s.matcher.Entries(), 0)
	return nil
}

func (s *EnrichmentService) GetMetrics() enrichment.MetricsSnapshot {
	return s.enricher.GetMetrics()
}

func (s *EnrichmentService) ResetMetrics() {
	s.enricher.ResetMetrics()
	s.logger.WithField("component", "enrichment_service").Info("Enrichment metrics reset")
}

// Ping checks the cache backend
func (s *EnrichmentService) Ping(ctx context.Context) error {
	return s.cache.Ping(ctx)
}
