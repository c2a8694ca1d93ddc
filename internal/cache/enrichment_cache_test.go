package cache

import (
	"context"
	"encoding/json"
	"io"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stitts-dev/player-enrichment/internal/models"
)

func newTestCache(t *testing.T) (*EnrichmentCache, *miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { client.Close() })

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	return NewEnrichmentCache(client, "test", nil, logger), mr, client
}

func TestEnrichmentCache_ProjectionsRoundTrip(t *testing.T) {
	c, _, _ := newTestCache(t)
	ctx := context.Background()

	projections := []models.Projection{
		{FFNerdID: 501, Week: 5, Scoring: "ppr", ProjectedPoints: 21.4, Stats: map[string]float64{"pass_yds": 287}},
	}

	require.True(t, c.StoreProjections(ctx, 5, "PPR", projections, 0))

	got, ok := c.GetProjections(ctx, 5, "ppr")
	require.True(t, ok)
	assert.Equal(t, projections, got)

	_, ok = c.GetProjections(ctx, 6, "ppr")
	assert.False(t, ok)

	snap := c.Stats().Snapshot()
	assert.Equal(t, int64(1), snap.Hits)
	assert.Equal(t, int64(1), snap.Misses)
	assert.Equal(t, 0.5, snap.HitRate)
}

func TestEnrichmentCache_CategoryTTLs(t *testing.T) {
	c, _, _ := newTestCache(t)
	ctx := context.Background()

	require.True(t, c.StoreProjections(ctx, 5, "ppr", []models.Projection{{FFNerdID: 1}}, 0))
	require.True(t, c.StoreInjuries(ctx, 0, []models.Injury{{FFNerdID: 1, Status: "Questionable"}}, 0))
	require.True(t, c.StoreNews(ctx, "", []models.NewsItem{{Headline: "h"}}, 0))
	require.True(t, c.StoreRankings(ctx, 0, "ppr", "", []models.Ranking{{FFNerdID: 1, Overall: 3}}, 0))
	require.True(t, c.StoreEnrichment(ctx, 1, &models.EnrichmentRecord{FFNerdID: 1}, 0))
	require.True(t, c.StoreMapping(ctx, map[string]models.MappingEntry{"1": {FFNerdID: 1, Confidence: 1}}, 0))

	tests := []struct {
		key      Key
		expected time.Duration
	}{
		{ProjectionsKey{Week: 5, Scoring: "ppr"}, 7200 * time.Second},
		{InjuriesKey{}, 3600 * time.Second},
		{NewsKey{}, 1800 * time.Second},
		{RankingsKey{Scoring: "ppr"}, 7200 * time.Second},
		{EnrichmentKey{FFNerdID: 1}, 3600 * time.Second},
		{MappingKey{}, 86400 * time.Second},
	}
	for _, tt := range tests {
		t.Run(tt.key.Category().String(), func(t *testing.T) {
			ttl, ok := c.GetTTL(ctx, tt.key)
			require.True(t, ok)
			assert.Equal(t, tt.expected, ttl)
		})
	}
}

func TestEnrichmentCache_ExplicitTTLOverridesDefault(t *testing.T) {
	c, _, _ := newTestCache(t)
	ctx := context.Background()

	require.True(t, c.StoreNews(ctx, "KC", []models.NewsItem{{Headline: "h"}}, 90*time.Second))

	ttl, ok := c.GetTTL(ctx, NewsKey{Team: "kc"})
	require.True(t, ok)
	assert.Equal(t, 90*time.Second, ttl)
}

func TestEnrichmentCache_GetTTLMissingAndExpired(t *testing.T) {
	c, mr, _ := newTestCache(t)
	ctx := context.Background()

	_, ok := c.GetTTL(ctx, EnrichmentKey{FFNerdID: 42})
	assert.False(t, ok)

	require.True(t, c.StoreEnrichment(ctx, 42, &models.EnrichmentRecord{FFNerdID: 42}, 0))
	mr.FastForward(2 * time.Hour)

	_, ok = c.GetTTL(ctx, EnrichmentKey{FFNerdID: 42})
	assert.False(t, ok)
	_, ok = c.GetEnrichment(ctx, 42)
	assert.False(t, ok)
}

func TestEnrichmentCache_PayloadIsCompressed(t *testing.T) {
	c, mr, _ := newTestCache(t)
	ctx := context.Background()

	record := &models.EnrichmentRecord{FFNerdID: 7, Confidence: 0.8}
	require.True(t, c.StoreEnrichment(ctx, 7, record, 0))

	raw, err := mr.Get("test:enrichment:7")
	require.NoError(t, err)

	plain, err := Decompress([]byte(raw))
	require.NoError(t, err)
	var decoded models.EnrichmentRecord
	require.NoError(t, json.Unmarshal(plain, &decoded))
	assert.Equal(t, 7, decoded.FFNerdID)
}

func TestEnrichmentCache_ReadsLegacyUncompressedPayload(t *testing.T) {
	c, _, client := newTestCache(t)
	ctx := context.Background()

	legacy, err := json.Marshal(models.EnrichmentRecord{
		FFNerdID: 9,
		Injury:   &models.Injury{FFNerdID: 9, Status: "Out"},
	})
	require.NoError(t, err)
	require.NoError(t, client.Set(ctx, "test:enrichment:9", legacy, time.Hour).Err())

	record, ok := c.GetEnrichment(ctx, 9)
	require.True(t, ok)
	require.NotNil(t, record.Injury)
	assert.Equal(t, "Out", record.Injury.Status)
	assert.Equal(t, int64(0), c.Stats().Snapshot().Errors)
}

func TestEnrichmentCache_CorruptPayloadCountsError(t *testing.T) {
	c, _, client := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, client.Set(ctx, "test:enrichment:3", "\x00garbage", time.Hour).Err())

	_, ok := c.GetEnrichment(ctx, 3)
	assert.False(t, ok)

	snap := c.Stats().Snapshot()
	assert.Equal(t, int64(1), snap.Errors)
	assert.NotEmpty(t, snap.LastError)
}

func TestEnrichmentCache_BackendFailureNeverPanics(t *testing.T) {
	c, mr, _ := newTestCache(t)
	ctx := context.Background()

	mr.Close()

	assert.False(t, c.StoreInjuries(ctx, 0, []models.Injury{{FFNerdID: 1}}, 0))
	_, ok := c.GetInjuries(ctx, 0)
	assert.False(t, ok)

	snap := c.Stats().Snapshot()
	assert.Equal(t, int64(2), snap.Errors)
	assert.Equal(t, int64(0), snap.Misses)
}

func TestEnrichmentCache_Invalidate(t *testing.T) {
	c, mr, _ := newTestCache(t)
	ctx := context.Background()

	require.True(t, c.StoreProjections(ctx, 5, "ppr", nil, 0))
	require.True(t, c.StoreProjections(ctx, 6, "ppr", nil, 0))
	require.True(t, c.StoreInjuries(ctx, 0, nil, 0))
	require.True(t, c.StoreEnrichment(ctx, 1, &models.EnrichmentRecord{FFNerdID: 1}, 0))
	require.NoError(t, mr.Set("other:projections:5:ppr", "x"))

	assert.Equal(t, 1, c.Invalidate(ctx, "projections:5"))
	assert.Equal(t, 1, c.InvalidateCategory(ctx, CategoryProjections))
	assert.Equal(t, 0, c.Invalidate(ctx, "projections"))
	assert.Equal(t, 2, c.Invalidate(ctx, ""))

	assert.True(t, mr.Exists("other:projections:5:ppr"), "keys outside the namespace survive")
}

func TestEnrichmentCache_InvalidateStopsAtSegmentBoundary(t *testing.T) {
	c, mr, _ := newTestCache(t)
	ctx := context.Background()

	require.True(t, c.StoreProjections(ctx, 1, "ppr", nil, 0))
	require.True(t, c.StoreProjections(ctx, 12, "ppr", nil, 0))
	require.True(t, c.StoreEnrichment(ctx, 1, &models.EnrichmentRecord{FFNerdID: 1}, 0))
	require.True(t, c.StoreEnrichment(ctx, 18, &models.EnrichmentRecord{FFNerdID: 18}, 0))
	require.True(t, c.StoreMapping(ctx, map[string]models.MappingEntry{"1": {FFNerdID: 1, Confidence: 1}}, 0))

	tests := []struct {
		name    string
		pattern string
		deleted int
		gone    Key
		kept    Key
	}{
		{"week prefix", "projections:1", 1, ProjectionsKey{Week: 1, Scoring: "ppr"}, ProjectionsKey{Week: 12, Scoring: "ppr"}},
		{"exact key", "enrichment:1", 1, EnrichmentKey{FFNerdID: 1}, EnrichmentKey{FFNerdID: 18}},
		{"key without params", "player_mapping", 1, MappingKey{}, ProjectionsKey{Week: 12, Scoring: "ppr"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.deleted, c.Invalidate(ctx, tt.pattern))
			assert.False(t, mr.Exists(c.Key(tt.gone)))
			assert.True(t, mr.Exists(c.Key(tt.kept)))
		})
	}

	assert.Equal(t, 1, c.Invalidate(ctx, "projections:1*"), "explicit globs are honored")
}

func TestEnrichmentCache_GetStatus(t *testing.T) {
	c, _, _ := newTestCache(t)
	ctx := context.Background()

	require.True(t, c.StoreProjections(ctx, 5, "ppr", []models.Projection{{FFNerdID: 1, ProjectedPoints: 10}}, 0))
	require.True(t, c.StoreRankings(ctx, 5, "ppr", "qb", []models.Ranking{{FFNerdID: 1, Overall: 1}}, 0))
	require.True(t, c.StoreEnrichment(ctx, 1, &models.EnrichmentRecord{FFNerdID: 1}, 0))
	require.True(t, c.StoreEnrichment(ctx, 2, &models.EnrichmentRecord{FFNerdID: 2}, 0))
	_, _ = c.GetEnrichment(ctx, 1)
	_, _ = c.GetEnrichment(ctx, 99)

	before := c.Stats().Snapshot()
	status := c.GetStatus(ctx)
	after := c.Stats().Snapshot()

	assert.Equal(t, before, after, "status must not mutate counters")
	assert.Equal(t, 4, status.TotalKeys)
	assert.Equal(t, 1, status.CategoryCounts["projections"])
	assert.Equal(t, 1, status.CategoryCounts["rankings"])
	assert.Equal(t, 2, status.CategoryCounts["enrichment"])
	assert.Equal(t, 0, status.CategoryCounts["news"])
	assert.Greater(t, status.TotalSizeBytes, int64(0))
	assert.Equal(t, 0.5, status.HitRate)
	assert.True(t, status.Connected)
}
