package cache

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/stitts-dev/player-enrichment/internal/models"
)

const (
	// DefaultNamespace prefixes every key written by the service
	DefaultNamespace = "fantasy"

	scanBatchSize = 200
)

// EnrichmentCache stores compressed enrichment datasets in Redis with a TTL per category.
// Backend failures are logged, counted in Stats and reported as false/miss; they never
// reach the caller as errors.
type EnrichmentCache struct {
	client    redis.UniversalClient
	namespace string
	stats     *Stats
	logger    *logrus.Logger
}

// Status describes the cache contents and counters
type Status struct {
	Namespace      string         `json:"namespace"`
	TotalKeys      int            `json:"total_keys"`
	CategoryCounts map[string]int `json:"category_counts"`
	TotalSizeBytes int64          `json:"total_size_bytes"`
	Hits           int64          `json:"hits"`
	Misses         int64          `json:"misses"`
	HitRate        float64        `json:"hit_rate"`
	ErrorCount     int64          `json:"error_count"`
	LastError      string         `json:"last_error,omitempty"`
	Connected      bool           `json:"connected"`
	Timestamp      time.Time      `json:"timestamp"`
}

// NewEnrichmentCache creates a cache bound to one namespace. A nil stats gets a fresh Stats.
func NewEnrichmentCache(client redis.UniversalClient, namespace string, stats *Stats, logger *logrus.Logger) *EnrichmentCache {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	if stats == nil {
		stats = NewStats()
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &EnrichmentCache{
		client:    client,
		namespace: strings.ToLower(namespace),
		stats:     stats,
		logger:    logger,
	}
}

// Namespace returns the key prefix
func (c *EnrichmentCache) Namespace() string {
	return c.namespace
}

// Stats returns the counters owned by this cache
func (c *EnrichmentCache) Stats() *Stats {
	return c.stats
}

// Key renders the full Redis key for k
func (c *EnrichmentCache) Key(k Key) string {
	return BuildKey(c.namespace, k)
}

// Ping checks connectivity to Redis
func (c *EnrichmentCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *EnrichmentCache) store(ctx context.Context, k Key, value interface{}, ttl time.Duration) bool {
	key := c.Key(k)
	if ttl <= 0 {
		ttl = k.Category().DefaultTTL()
	}

	payload, err := encode(value)
	if err != nil {
		c.stats.RecordError(err)
		c.logger.WithError(err).WithField("key", key).Error("Failed to encode cache value")
		return false
	}

	if err := c.client.Set(ctx, key, payload, ttl).Err(); err != nil {
		c.stats.RecordError(err)
		c.logger.WithError(err).WithField("key", key).Error("Failed to set cache value")
		return false
	}

	c.logger.WithFields(logrus.Fields{
		"key":        key,
		"ttl":        ttl.String(),
		"size_bytes": len(payload),
	}).Debug("Cached value successfully")
	return true
}

func (c *EnrichmentCache) load(ctx context.Context, k Key, dest interface{}) bool {
	key := c.Key(k)

	raw, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			c.stats.RecordMiss()
			return false
		}
		c.stats.RecordError(err)
		c.logger.WithError(err).WithField("key", key).Error("Failed to get cache value")
		return false
	}

	if err := decode(raw, dest); err != nil {
		c.stats.RecordError(err)
		c.logger.WithError(err).WithField("key", key).Error("Failed to decode cache value")
		return false
	}

	c.stats.RecordHit()
	c.logger.WithField("key", key).Debug("Cache hit")
	return true
}

// StoreMapping caches the identity mapping. ttl <= 0 selects the category default.
func (c *EnrichmentCache) StoreMapping(ctx context.Context, entries map[string]models.MappingEntry, ttl time.Duration) bool {
	return c.store(ctx, MappingKey{}, entries, ttl)
}

func (c *EnrichmentCache) GetMapping(ctx context.Context) (map[string]models.MappingEntry, bool) {
	var entries map[string]models.MappingEntry
	if !c.load(ctx, MappingKey{}, &entries) {
		return nil, false
	}
	return entries, true
}

func (c *EnrichmentCache) StoreProjections(ctx context.Context, week int, scoring string, projections []models.Projection, ttl time.Duration) bool {
	return c.store(ctx, ProjectionsKey{Week: week, Scoring: scoring}, projections, ttl)
}

func (c *EnrichmentCache) GetProjections(ctx context.Context, week int, scoring string) ([]models.Projection, bool) {
	var projections []models.Projection
	if !c.load(ctx, ProjectionsKey{Week: week, Scoring: scoring}, &projections) {
		return nil, false
	}
	return projections, true
}

func (c *EnrichmentCache) StoreInjuries(ctx context.Context, week int, injuries []models.Injury, ttl time.Duration) bool {
	return c.store(ctx, InjuriesKey{Week: week}, injuries, ttl)
}

func (c *EnrichmentCache) GetInjuries(ctx context.Context, week int) ([]models.Injury, bool) {
	var injuries []models.Injury
	if !c.load(ctx, InjuriesKey{Week: week}, &injuries) {
		return nil, false
	}
	return injuries, true
}

func (c *EnrichmentCache) StoreNews(ctx context.Context, team string, news []models.NewsItem, ttl time.Duration) bool {
	return c.store(ctx, NewsKey{Team: team}, news, ttl)
}

func (c *EnrichmentCache) GetNews(ctx context.Context, team string) ([]models.NewsItem, bool) {
	var news []models.NewsItem
	if !c.load(ctx, NewsKey{Team: team}, &news) {
		return nil, false
	}
	return news, true
}

func (c *EnrichmentCache) StoreRankings(ctx context.Context, week int, scoring, position string, rankings []models.Ranking, ttl time.Duration) bool {
	return c.store(ctx, RankingsKey{Week: week, Scoring: scoring, Position: position}, rankings, ttl)
}

func (c *EnrichmentCache) GetRankings(ctx context.Context, week int, scoring, position string) ([]models.Ranking, bool) {
	var rankings []models.Ranking
	if !c.load(ctx, RankingsKey{Week: week, Scoring: scoring, Position: position}, &rankings) {
		return nil, false
	}
	return rankings, true
}

// StoreEnrichment caches the composite record of one FFNerd player
func (c *EnrichmentCache) StoreEnrichment(ctx context.Context, ffnerdID int, record *models.EnrichmentRecord, ttl time.Duration) bool {
	if record == nil {
		return false
	}
	return c.store(ctx, EnrichmentKey{FFNerdID: ffnerdID}, record, ttl)
}

// GetEnrichment returns the composite record of one FFNerd player
func (c *EnrichmentCache) GetEnrichment(ctx context.Context, ffnerdID int) (*models.EnrichmentRecord, bool) {
	var record models.EnrichmentRecord
	if !c.load(ctx, EnrichmentKey{FFNerdID: ffnerdID}, &record) {
		return nil, false
	}
	return &record, true
}

// Invalidate deletes every key in the namespace matching pattern and returns
// how many were removed. An empty pattern clears the whole namespace. A
// pattern without wildcards matches whole key segments: "projections:1"
// removes that key and everything under "projections:1:" but not week 12.
func (c *EnrichmentCache) Invalidate(ctx context.Context, pattern string) int {
	deleted := 0
	for _, match := range c.matchPatterns(pattern) {
		n, ok := c.deleteMatching(ctx, match)
		deleted += n
		if !ok {
			break
		}
	}

	c.logger.WithFields(logrus.Fields{
		"pattern": pattern,
		"count":   deleted,
	}).Info("Invalidated cache keys")
	return deleted
}

func (c *EnrichmentCache) deleteMatching(ctx context.Context, match string) (int, bool) {
	deleted := 0
	iter := c.client.Scan(ctx, 0, match, scanBatchSize).Iterator()
	batch := make([]string, 0, scanBatchSize)
	flush := func() bool {
		if len(batch) == 0 {
			return true
		}
		n, err := c.client.Del(ctx, batch...).Result()
		if err != nil {
			c.stats.RecordError(err)
			c.logger.WithError(err).WithField("pattern", match).Error("Failed to delete keys by pattern")
			return false
		}
		deleted += int(n)
		batch = batch[:0]
		return true
	}

	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) >= scanBatchSize && !flush() {
			return deleted, false
		}
	}
	if err := iter.Err(); err != nil {
		c.stats.RecordError(err)
		c.logger.WithError(err).WithField("pattern", match).Error("Failed to scan keys")
	}
	return deleted, flush()
}

// InvalidateCategory deletes every key of one category
func (c *EnrichmentCache) InvalidateCategory(ctx context.Context, category Category) int {
	return c.Invalidate(ctx, category.String())
}

// GetTTL returns the remaining lifetime of a key. Missing or expired keys report false.
func (c *EnrichmentCache) GetTTL(ctx context.Context, k Key) (time.Duration, bool) {
	key := c.Key(k)
	ttl, err := c.client.TTL(ctx, key).Result()
	if err != nil {
		c.logger.WithError(err).WithField("key", key).Warn("Failed to read cache TTL")
		return 0, false
	}
	// -2 = missing, -1 = no expiry; neither is a live TTL
	if ttl <= 0 {
		return 0, false
	}
	return ttl, true
}

// GetStatus walks the namespace with SCAN and reports key counts and sizes.
// It does not touch the hit/miss counters.
func (c *EnrichmentCache) GetStatus(ctx context.Context) Status {
	snap := c.stats.Snapshot()
	status := Status{
		Namespace:      c.namespace,
		CategoryCounts: make(map[string]int, len(Categories())),
		Hits:           snap.Hits,
		Misses:         snap.Misses,
		HitRate:        snap.HitRate,
		ErrorCount:     snap.Errors,
		LastError:      snap.LastError,
		Connected:      true,
		Timestamp:      time.Now().UTC(),
	}
	for _, cat := range Categories() {
		status.CategoryCounts[cat.String()] = 0
	}

	iter := c.client.Scan(ctx, 0, c.namespace+":*", scanBatchSize).Iterator()
	batch := make([]string, 0, scanBatchSize)
	measure := func() {
		if len(batch) == 0 {
			return
		}
		pipe := c.client.Pipeline()
		cmds := make([]*redis.IntCmd, len(batch))
		for i, key := range batch {
			cmds[i] = pipe.StrLen(ctx, key)
		}
		if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
			c.logger.WithError(err).Warn("Failed to measure cache key sizes")
		}
		for _, cmd := range cmds {
			if n, err := cmd.Result(); err == nil {
				status.TotalSizeBytes += n
			}
		}
		batch = batch[:0]
	}

	for iter.Next(ctx) {
		key := iter.Val()
		status.TotalKeys++
		status.CategoryCounts[c.categoryOf(key)]++
		batch = append(batch, key)
		if len(batch) >= scanBatchSize {
			measure()
		}
	}
	if err := iter.Err(); err != nil {
		status.Connected = false
		c.logger.WithError(err).Warn("Failed to scan cache keys for status")
	}
	measure()

	return status
}

// matchPatterns scopes pattern to the namespace. Wildcard-free patterns expand
// to the exact key plus its ":*" children.
func (c *EnrichmentCache) matchPatterns(pattern string) []string {
	pattern = strings.ToLower(strings.TrimSpace(pattern))
	pattern = strings.TrimPrefix(pattern, c.namespace+":")
	pattern = strings.TrimSuffix(pattern, ":")
	if pattern == "" || pattern == "*" {
		return []string{c.namespace + ":*"}
	}
	prefixed := c.namespace + ":" + pattern
	if strings.ContainsAny(pattern, "*?[") {
		return []string{prefixed}
	}
	return []string{prefixed, prefixed + ":*"}
}

func (c *EnrichmentCache) categoryOf(key string) string {
	rest := strings.TrimPrefix(key, c.namespace+":")
	segment := rest
	if i := strings.IndexByte(rest, ':'); i >= 0 {
		segment = rest[:i]
	}
	if cat, ok := ParseCategory(segment); ok {
		return cat.String()
	}
	return "other"
}
