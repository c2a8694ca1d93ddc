package app

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/stitts-dev/player-enrichment/internal/cache"
	"github.com/stitts-dev/player-enrichment/internal/enrichment"
	"github.com/stitts-dev/player-enrichment/internal/matching"
	"github.com/stitts-dev/player-enrichment/internal/metrics"
	"github.com/stitts-dev/player-enrichment/internal/providers"
	"github.com/stitts-dev/player-enrichment/internal/services"
	"github.com/stitts-dev/player-enrichment/pkg/config"
)

const (
	// breakerOpenTimeout is how long a tripped provider stays short-circuited
	breakerOpenTimeout = 60 * time.Second

	cachedMappingTimeout = 5 * time.Second
)

// App holds the wired components shared by the server and the CLI
type App struct {
	Config      *config.Config
	Logger      *logrus.Logger
	Redis       redis.UniversalClient
	Cache       *cache.EnrichmentCache
	Matcher     *matching.IdentityMatcher
	Breakers    *providers.CircuitBreakerService
	Sleeper     *providers.SleeperClient
	FFNerd      *providers.FFNerdClient
	Ingestion   *services.IngestionService
	Enricher    *enrichment.PlayerEnricher
	Service     *services.EnrichmentService
	DataFetcher *services.DataFetcherService
	Metrics     *metrics.Registry
}

// New wires every component from cfg. It fails on configuration errors and
// when the mapping file exists but cannot be read. When the file yields no
// mapping the copy cached in Redis is used instead. Redis connectivity is not
// checked here.
func New(cfg *config.Config, logger *logrus.Logger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	redisClient := redis.NewClient(opt)

	stats := cache.NewStats()
	enrichmentCache := cache.NewEnrichmentCache(redisClient, cfg.CacheNamespace, stats, logger)

	matcher := matching.NewIdentityMatcher(logger, matching.GreedyAssignment{})
	if err := matcher.LoadMapping(cfg.MappingFilePath); err != nil {
		redisClient.Close()
		return nil, err
	}
	if matcher.Len() == 0 {
		loadCachedMapping(enrichmentCache, matcher, logger)
	}

	breakers := providers.NewCircuitBreakerService(cfg.CircuitBreakerThreshold, breakerOpenTimeout, logger)
	clientOpts := providers.DefaultClientOptions()
	if cfg.ExternalAPITimeout > 0 {
		clientOpts.Timeout = cfg.ExternalAPITimeout
	}
	if cfg.ProviderRateLimit > 0 {
		clientOpts.RatePerSecond = cfg.ProviderRateLimit
	}

	sleeperClient := providers.NewSleeperClient(cfg.SleeperBaseURL, breakers, clientOpts, logger)
	ffnerdClient, err := providers.NewFFNerdClient(cfg.FFNerdAPIKey, cfg.FFNerdBaseURL, breakers, clientOpts, logger)
	if err != nil {
		redisClient.Close()
		return nil, err
	}

	ingestion := services.NewIngestionService(sleeperClient, ffnerdClient, matcher, enrichmentCache, services.IngestionConfig{
		MappingFilePath: cfg.MappingFilePath,
		Scoring:         cfg.ScoringFormat,
		Week:            cfg.NFLWeek,
	}, logger)

	enricher := enrichment.NewPlayerEnricher(matcher, enrichmentCache, logger)
	enricher.SetLiveSource(ingestion)

	service := services.NewEnrichmentService(enricher, enrichmentCache, matcher, ingestion,
		cfg.MappingFilePath, cfg.MaxConcurrentEnrichments, logger)

	fetcher := services.NewDataFetcherService(ingestion, logger, cfg.DataFetchInterval, 0)

	registry, err := metrics.NewRegistry(metrics.NewCollector(enricher.Metrics(), stats, breakers))
	if err != nil {
		redisClient.Close()
		return nil, fmt.Errorf("failed to register metrics: %w", err)
	}

	return &App{
		Config:      cfg,
		Logger:      logger,
		Redis:       redisClient,
		Cache:       enrichmentCache,
		Matcher:     matcher,
		Breakers:    breakers,
		Sleeper:     sleeperClient,
		FFNerd:      ffnerdClient,
		Ingestion:   ingestion,
		Enricher:    enricher,
		Service:     service,
		DataFetcher: fetcher,
		Metrics:     registry,
	}, nil
}

func loadCachedMapping(c *cache.EnrichmentCache, matcher *matching.IdentityMatcher, logger *logrus.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), cachedMappingTimeout)
	defer cancel()

	entries, ok := c.GetMapping(ctx)
	if !ok || len(entries) == 0 {
		return
	}
	kept := matcher.LoadEntries(entries)
	logger.WithFields(logrus.Fields{
		"component": "app",
		"entries":   kept,
	}).Info("Loaded player mapping from cache")
}

// Ping checks Redis
func (a *App) Ping(ctx context.Context) error {
	return a.Redis.Ping(ctx).Err()
}

// Close stops background work and releases the Redis connection
func (a *App) Close() error {
	a.DataFetcher.Stop()
	return a.Redis.Close()
}
