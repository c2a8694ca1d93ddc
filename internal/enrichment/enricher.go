package enrichment

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"

	"github.com/stitts-dev/player-enrichment/internal/models"
)

// DefaultMaxConcurrent bounds in-flight cache fetches during EnrichMany
const DefaultMaxConcurrent = 50

// MappingLookup resolves Sleeper ids to FFNerd ids
type MappingLookup interface {
	GetFFNerdID(sleeperID string) (int, bool)
}

// RecordStore reads and writes composite enrichment records
type RecordStore interface {
	GetEnrichment(ctx context.Context, ffnerdID int) (*models.EnrichmentRecord, bool)
	StoreEnrichment(ctx context.Context, ffnerdID int, record *models.EnrichmentRecord, ttl time.Duration) bool
}

// LiveSource composes a fresh record from upstream data when the cache is bypassed
type LiveSource interface {
	ComposeForPlayer(ctx context.Context, ffnerdID int) (*models.EnrichmentRecord, error)
}

type outcome int

const (
	outcomeEnriched outcome = iota
	outcomeMissingMapping
	outcomeFailed
)

type result struct {
	outcome  outcome
	cacheHit bool
}

// PlayerEnricher attaches cached FFNerd data to Sleeper players
type PlayerEnricher struct {
	mapping MappingLookup
	store   RecordStore
	live    LiveSource
	metrics *EnrichmentMetrics
	logger  *logrus.Logger
}

func NewPlayerEnricher(mapping MappingLookup, store RecordStore, logger *logrus.Logger) *PlayerEnricher {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &PlayerEnricher{
		mapping: mapping,
		store:   store,
		metrics: NewEnrichmentMetrics(),
		logger:  logger,
	}
}

// SetLiveSource enables skipCache enrichment
func (e *PlayerEnricher) SetLiveSource(live LiveSource) {
	e.live = live
}

// EnrichOne returns a copy of player with FFNerd data attached when a mapping
// and a composite record exist. It never mutates player and never panics.
func (e *PlayerEnricher) EnrichOne(ctx context.Context, player models.SleeperPlayer, skipCache bool) models.EnrichedPlayer {
	enriched, _ := e.enrich(ctx, player, skipCache)
	return enriched
}

func (e *PlayerEnricher) enrich(ctx context.Context, player models.SleeperPlayer, skipCache bool) (models.EnrichedPlayer, result) {
	start := time.Now()
	enriched := models.EnrichedPlayer{SleeperPlayer: player.Clone()}

	if player.PlayerID == "" {
		e.metrics.RecordFailure(FailureNoPlayerID, time.Since(start))
		return enriched, result{outcome: outcomeFailed}
	}

	record, mapped, cacheHit, err := e.fetch(ctx, player.PlayerID, skipCache)
	switch {
	case err != nil:
		e.logger.WithError(err).WithFields(logrus.Fields{
			"component":  "player_enricher",
			"sleeper_id": player.PlayerID,
		}).Error("Enrichment failed")
		e.metrics.RecordFailure(FailureError, time.Since(start))
		return enriched, result{outcome: outcomeFailed}
	case !mapped:
		e.metrics.RecordMissingMapping()
		return enriched, result{outcome: outcomeMissingMapping}
	case record == nil:
		e.metrics.RecordFailure(FailureCacheMiss, time.Since(start))
		return enriched, result{outcome: outcomeFailed}
	}

	confidence := CalculateConfidence(player, record)
	record.Confidence = confidence
	now := time.Now().UTC()

	enriched.FFNerdData = record
	enriched.EnrichmentConfidence = confidence
	enriched.EnrichedAt = &now

	e.metrics.RecordSuccess(confidence, time.Since(start), cacheHit)
	return enriched, result{outcome: outcomeEnriched, cacheHit: cacheHit}
}

// fetch resolves the mapping and loads the composite record. A nil record with
// mapped=true means nothing is cached for the player.
func (e *PlayerEnricher) fetch(ctx context.Context, sleeperID string, skipCache bool) (record *models.EnrichmentRecord, mapped, cacheHit bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			record, cacheHit = nil, false
			err = fmt.Errorf("panic during enrichment of %s: %v", sleeperID, r)
		}
	}()

	ffnerdID, ok := e.mapping.GetFFNerdID(sleeperID)
	if !ok {
		return nil, false, false, nil
	}

	if skipCache {
		if e.live == nil {
			return nil, true, false, nil
		}
		record, err = e.live.ComposeForPlayer(ctx, ffnerdID)
		if err != nil {
			return nil, true, false, fmt.Errorf("failed to compose record for ffnerd player %d: %w", ffnerdID, err)
		}
		if record == nil {
			return nil, true, false, nil
		}
		if record.FFNerdID == 0 {
			record.FFNerdID = ffnerdID
		}
		e.store.StoreEnrichment(ctx, ffnerdID, record, 0)
	} else {
		record, cacheHit = e.store.GetEnrichment(ctx, ffnerdID)
		if !cacheHit || record == nil {
			return nil, true, false, nil
		}
	}

	// the caller owns the returned record
	out := *record
	if out.FFNerdID == 0 {
		out.FFNerdID = ffnerdID
	}
	return &out, true, cacheHit, nil
}

// EnrichMany enriches a batch concurrently with at most maxConcurrent players
// in flight. Players whose task panics, or that never started because ctx was
// cancelled, are left out of the result.
func (e *PlayerEnricher) EnrichMany(ctx context.Context, players map[string]models.SleeperPlayer, maxConcurrent int) map[string]models.EnrichedPlayer {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrent
	}

	start := time.Now()
	batchID := uuid.New().String()
	logger := e.logger.WithFields(logrus.Fields{
		"component": "player_enricher",
		"batch_id":  batchID,
	})

	sem := semaphore.NewWeighted(int64(maxConcurrent))
	results := make(map[string]models.EnrichedPlayer, len(players))

	var (
		wg         sync.WaitGroup
		mu         sync.Mutex
		enriched   int
		cacheHits  int
		lookups    int
		confidence float64
		dropped    int
	)

	for id, player := range players {
		wg.Add(1)
		go func(id string, player models.SleeperPlayer) {
			defer wg.Done()
			if err := sem.Acquire(ctx, 1); err != nil {
				mu.Lock()
				dropped++
				mu.Unlock()
				return
			}
			defer sem.Release(1)

			defer func() {
				if r := recover(); r != nil {
					logger.WithField("sleeper_id", id).Errorf("Enrichment task panicked: %v", r)
					mu.Lock()
					dropped++
					mu.Unlock()
				}
			}()

			out, res := e.enrich(ctx, player, false)

			mu.Lock()
			defer mu.Unlock()
			results[id] = out
			switch res.outcome {
			case outcomeEnriched:
				enriched++
				lookups++
				confidence += out.EnrichmentConfidence
				if res.cacheHit {
					cacheHits++
				}
			case outcomeFailed:
				if player.PlayerID != "" {
					lookups++
				}
			}
		}(id, player)
	}
	wg.Wait()

	var successRate, avgConfidence, hitRate float64
	if len(players) > 0 {
		successRate = float64(enriched) / float64(len(players))
	}
	if enriched > 0 {
		avgConfidence = confidence / float64(enriched)
	}
	if lookups > 0 {
		hitRate = float64(cacheHits) / float64(lookups)
	}

	logger.WithFields(logrus.Fields{
		"players":        len(players),
		"enriched":       enriched,
		"dropped":        dropped,
		"success_rate":   fmt.Sprintf("%.1f%%", successRate*100),
		"avg_confidence": fmt.Sprintf("%.3f", avgConfidence),
		"cache_hit_rate": fmt.Sprintf("%.1f%%", hitRate*100),
		"max_concurrent": maxConcurrent,
		"elapsed":        time.Since(start).String(),
	}).Info("Batch enrichment completed")

	return results
}

// GetMetrics returns a snapshot of the running metrics
func (e *PlayerEnricher) GetMetrics() MetricsSnapshot {
	return e.metrics.Snapshot()
}

func (e *PlayerEnricher) ResetMetrics() {
	e.metrics.Reset()
}

// Metrics exposes the aggregate for collectors
func (e *PlayerEnricher) Metrics() *EnrichmentMetrics {
	return e.metrics
}
