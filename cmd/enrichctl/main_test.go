package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stitts-dev/player-enrichment/internal/app"
	"github.com/stitts-dev/player-enrichment/internal/cache"
	"github.com/stitts-dev/player-enrichment/internal/models"
	"github.com/stitts-dev/player-enrichment/pkg/config"
)

type cliEnv struct {
	cfg   *config.Config
	redis *miniredis.Miniredis
}

func setupCLITestEnv(t *testing.T) *cliEnv {
	t.Helper()
	mr := miniredis.RunT(t)

	sleeper := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/players/nfl" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{
			"4046": {"full_name": "Pat Mahomes", "team": "KC", "position": "QB", "active": true},
			"6794": {"full_name": "Sam Rookie", "team": "BUF", "position": "WR", "active": true}
		}`)
	}))
	t.Cleanup(sleeper.Close)

	dir := t.TempDir()
	cfg := &config.Config{
		RedisURL:                 "redis://" + mr.Addr() + "/0",
		CacheNamespace:           "fantasy",
		MappingFilePath:          filepath.Join(dir, "player_mapping.json"),
		SleeperBaseURL:           sleeper.URL,
		FFNerdBaseURL:            "http://127.0.0.1:1",
		FFNerdAPIKey:             "test-key",
		ScoringFormat:            "ppr",
		MaxConcurrentEnrichments: 4,
		DataFetchInterval:        time.Hour,
		CircuitBreakerThreshold:  3,
		ProviderRateLimit:        100,
		ExternalAPITimeout:       time.Second,
	}
	return &cliEnv{cfg: cfg, redis: mr}
}

func (e *cliEnv) loader() appLoader {
	return func(bool) (*app.App, error) {
		logger := logrus.New()
		logger.SetOutput(io.Discard)
		return app.New(e.cfg, logger)
	}
}

// seedRecord stores a composite record the way ingestion does
func (e *cliEnv) seedRecord(t *testing.T, record *models.EnrichmentRecord) {
	t.Helper()
	client := redis.NewClient(&redis.Options{Addr: e.redis.Addr()})
	defer client.Close()
	c := cache.NewEnrichmentCache(client, e.cfg.CacheNamespace, cache.NewStats(), nil)
	require.True(t, c.StoreEnrichment(context.Background(), record.FFNerdID, record, 0))
}

func runCLI(t *testing.T, env *cliEnv, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand(env.loader())
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestMappingOverrideAndLookup(t *testing.T) {
	env := setupCLITestEnv(t)

	out, err := runCLI(t, env, "mapping", "override", "4046", "1823", "--confidence", "0.9")
	require.NoError(t, err)
	assert.Contains(t, out, "Mapped 4046 -> 1823 (confidence 0.90)")

	_, err = os.Stat(env.cfg.MappingFilePath)
	require.NoError(t, err, "override should persist the mapping file")

	out, err = runCLI(t, env, "mapping", "lookup", "4046", "9999", "--json")
	require.NoError(t, err)
	var lookups []mappingLookup
	require.NoError(t, json.Unmarshal([]byte(out), &lookups))
	require.Len(t, lookups, 2)
	assert.True(t, lookups[0].Mapped)
	assert.Equal(t, 1823, lookups[0].FFNerdID)
	assert.Equal(t, 0.9, lookups[0].Confidence)
	assert.False(t, lookups[1].Mapped)

	out, err = runCLI(t, env, "mapping", "stats")
	require.NoError(t, err)
	assert.Contains(t, out, "Mapped")
	assert.Contains(t, out, "Tier high")
}

func TestMappingOverrideRejectsBadInput(t *testing.T) {
	env := setupCLITestEnv(t)

	_, err := runCLI(t, env, "mapping", "override", "4046", "abc")
	assert.Error(t, err)

	_, err = runCLI(t, env, "mapping", "override", "4046", "1823", "--confidence", "2")
	assert.Error(t, err)

	_, err = runCLI(t, env, "mapping", "override", "4046")
	assert.Error(t, err)
}

func TestCacheStatusAndInvalidate(t *testing.T) {
	env := setupCLITestEnv(t)
	env.seedRecord(t, &models.EnrichmentRecord{FFNerdID: 1823, CachedAt: time.Now().UTC()})
	env.seedRecord(t, &models.EnrichmentRecord{FFNerdID: 77, CachedAt: time.Now().UTC()})

	out, err := runCLI(t, env, "cache", "status", "--json")
	require.NoError(t, err)
	var status cache.Status
	require.NoError(t, json.Unmarshal([]byte(out), &status))
	assert.Equal(t, "fantasy", status.Namespace)
	assert.Equal(t, 2, status.TotalKeys)
	assert.True(t, status.Connected)

	out, err = runCLI(t, env, "cache", "invalidate", "enrichment:1823")
	require.NoError(t, err)
	assert.Contains(t, out, "Deleted 1 keys")

	out, err = runCLI(t, env, "cache", "status")
	require.NoError(t, err)
	assert.Contains(t, out, "Keys:      1")
}

func TestEnrichCommand(t *testing.T) {
	env := setupCLITestEnv(t)
	require.NoError(t, os.WriteFile(env.cfg.MappingFilePath,
		[]byte(`{"4046":{"ffnerd_id":1823,"confidence":0.97}}`), 0o644))
	env.seedRecord(t, &models.EnrichmentRecord{
		FFNerdID:    1823,
		Projections: &models.Projection{FFNerdID: 1823, ProjectedPoints: 24.5},
		Injury:      &models.Injury{FFNerdID: 1823, Status: "Questionable"},
		CachedAt:    time.Now().UTC(),
	})

	out, err := runCLI(t, env, "enrich", "4046", "6794", "ghost")
	require.NoError(t, err)
	assert.Contains(t, out, "Pat Mahomes")
	assert.Contains(t, out, "1823")
	assert.Contains(t, out, "24.50")
	assert.Contains(t, out, "Questionable")
	assert.Contains(t, out, "Sam Rookie")
	assert.Contains(t, out, "Unknown Sleeper id: ghost")

	out, err = runCLI(t, env, "enrich", "4046", "--json")
	require.NoError(t, err)
	var parsed enrichOutput
	require.NoError(t, json.Unmarshal([]byte(out), &parsed))
	require.Len(t, parsed.Players, 1)
	assert.True(t, parsed.Players[0].IsEnriched())
}

func TestRenderTable(t *testing.T) {
	out := renderTable([]string{"A", "B"}, [][]string{{"1"}, {"2", "3"}}, []columnAlignment{alignLeft, alignRight})
	lines := strings.Split(out, "\n")
	assert.GreaterOrEqual(t, len(lines), 5)
	assert.Contains(t, out, "A")
	assert.Empty(t, renderTable(nil, nil, nil))

	assert.Equal(t, "512 B", humanBytes(512))
	assert.Equal(t, "1.5 KiB", humanBytes(1536))
	assert.Equal(t, "never", formatTime(time.Time{}))
}
