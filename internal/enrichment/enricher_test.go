package enrichment

import (
	"context"
	"errors"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/stitts-dev/player-enrichment/internal/models"
)

type staticMapping map[string]int

func (m staticMapping) GetFFNerdID(sleeperID string) (int, bool) {
	id, ok := m[sleeperID]
	return id, ok
}

type panickingMapping struct{}

func (panickingMapping) GetFFNerdID(string) (int, bool) {
	panic("mapping unavailable")
}

type MockRecordStore struct {
	mock.Mock
}

func (m *MockRecordStore) GetEnrichment(ctx context.Context, ffnerdID int) (*models.EnrichmentRecord, bool) {
	args := m.Called(ctx, ffnerdID)
	record, _ := args.Get(0).(*models.EnrichmentRecord)
	return record, args.Bool(1)
}

func (m *MockRecordStore) StoreEnrichment(ctx context.Context, ffnerdID int, record *models.EnrichmentRecord, ttl time.Duration) bool {
	args := m.Called(ctx, ffnerdID, record, ttl)
	return args.Bool(0)
}

type MockLiveSource struct {
	mock.Mock
}

func (m *MockLiveSource) ComposeForPlayer(ctx context.Context, ffnerdID int) (*models.EnrichmentRecord, error) {
	args := m.Called(ctx, ffnerdID)
	record, _ := args.Get(0).(*models.EnrichmentRecord)
	return record, args.Error(1)
}

func newTestEnricher(mapping MappingLookup, store RecordStore) *PlayerEnricher {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return NewPlayerEnricher(mapping, store, logger)
}

func fullRecord(ffnerdID int) *models.EnrichmentRecord {
	return &models.EnrichmentRecord{
		FFNerdID:    ffnerdID,
		Projections: &models.Projection{FFNerdID: ffnerdID, Week: 5, Scoring: "ppr", ProjectedPoints: 18.2},
		Injury:      &models.Injury{FFNerdID: ffnerdID, Status: "Questionable"},
		News:        []models.NewsItem{{Headline: "Limited in practice"}},
		Rankings:    &models.Ranking{FFNerdID: ffnerdID, Overall: 12},
		CachedAt:    time.Now().UTC(),
	}
}

func TestEnrichOne_MissingMappingIsNotAFailure(t *testing.T) {
	store := new(MockRecordStore)
	store.On("GetEnrichment", mock.Anything, 501).Return(nil, false)

	e := newTestEnricher(staticMapping{"p1": 501}, store)
	ctx := context.Background()

	mappedMiss := e.EnrichOne(ctx, models.SleeperPlayer{PlayerID: "p1", FullName: "Pat Doe", Position: "QB"}, false)
	assert.False(t, mappedMiss.IsEnriched())
	assert.Equal(t, "Pat Doe", mappedMiss.FullName)

	unmapped := e.EnrichOne(ctx, models.SleeperPlayer{PlayerID: "p2", FullName: "Sam Roe", Position: "WR"}, false)
	assert.False(t, unmapped.IsEnriched())

	metrics := e.GetMetrics()
	assert.Equal(t, int64(2), metrics.TotalProcessed)
	assert.Equal(t, int64(1), metrics.Failed)
	assert.Equal(t, int64(1), metrics.MissingMapping)
	assert.Equal(t, int64(1), metrics.CacheMisses)
	assert.Equal(t, int64(1), metrics.FailureReasons[FailureCacheMiss])
	assert.Equal(t, int64(0), metrics.Successful)

	store.AssertExpectations(t)
	store.AssertNumberOfCalls(t, "GetEnrichment", 1)
}

func TestEnrichOne_CacheHitAttachesRecord(t *testing.T) {
	store := new(MockRecordStore)
	store.On("GetEnrichment", mock.Anything, 501).Return(fullRecord(501), true)

	e := newTestEnricher(staticMapping{"p1": 501}, store)

	input := models.SleeperPlayer{PlayerID: "p1", FullName: "Pat Doe", Position: "QB", FantasyPositions: []string{"QB"}}
	out := e.EnrichOne(context.Background(), input, false)

	require.True(t, out.IsEnriched())
	assert.Equal(t, 501, out.FFNerdData.FFNerdID)
	assert.Equal(t, 1.0, out.EnrichmentConfidence)
	assert.Equal(t, out.EnrichmentConfidence, out.FFNerdData.Confidence)
	require.NotNil(t, out.EnrichedAt)

	out.FantasyPositions[0] = "RB"
	assert.Equal(t, "QB", input.FantasyPositions[0], "input must not be mutated")

	metrics := e.GetMetrics()
	assert.Equal(t, int64(1), metrics.Successful)
	assert.Equal(t, int64(1), metrics.CacheHits)
	assert.Equal(t, 1.0, metrics.SuccessRate)
	assert.Equal(t, 1.0, metrics.CacheHitRate)
	assert.Equal(t, 1, metrics.Samples)
}

func TestEnrichOne_NoPlayerID(t *testing.T) {
	store := new(MockRecordStore)
	e := newTestEnricher(staticMapping{}, store)

	out := e.EnrichOne(context.Background(), models.SleeperPlayer{FullName: "Nobody"}, false)
	assert.False(t, out.IsEnriched())

	metrics := e.GetMetrics()
	assert.Equal(t, int64(1), metrics.Failed)
	assert.Equal(t, int64(1), metrics.FailureReasons[FailureNoPlayerID])
	store.AssertNotCalled(t, "GetEnrichment", mock.Anything, mock.Anything)
}

func TestEnrichOne_RecoversFromPanics(t *testing.T) {
	e := newTestEnricher(panickingMapping{}, new(MockRecordStore))

	var out models.EnrichedPlayer
	require.NotPanics(t, func() {
		out = e.EnrichOne(context.Background(), models.SleeperPlayer{PlayerID: "p1", FullName: "Pat Doe"}, false)
	})
	assert.Equal(t, "p1", out.PlayerID)
	assert.False(t, out.IsEnriched())
	assert.Equal(t, int64(1), e.GetMetrics().FailureReasons[FailureError])
}

func TestEnrichOne_SkipCache(t *testing.T) {
	t.Run("uses live source and writes back", func(t *testing.T) {
		record := &models.EnrichmentRecord{Injury: &models.Injury{Status: "Out"}}
		store := new(MockRecordStore)
		store.On("StoreEnrichment", mock.Anything, 77, record, time.Duration(0)).Return(true)
		live := new(MockLiveSource)
		live.On("ComposeForPlayer", mock.Anything, 77).Return(record, nil)

		e := newTestEnricher(staticMapping{"p1": 77}, store)
		e.SetLiveSource(live)

		out := e.EnrichOne(context.Background(), models.SleeperPlayer{PlayerID: "p1", Position: "TE"}, true)
		require.True(t, out.IsEnriched())
		assert.Equal(t, 77, out.FFNerdData.FFNerdID)
		assert.InDelta(t, (0.20+0.10)*1.1, out.EnrichmentConfidence, 1e-9)
		assert.Equal(t, int64(0), e.GetMetrics().CacheHits)

		store.AssertExpectations(t)
		store.AssertNotCalled(t, "GetEnrichment", mock.Anything, mock.Anything)
		live.AssertExpectations(t)
	})

	t.Run("without live source behaves as a miss", func(t *testing.T) {
		store := new(MockRecordStore)
		e := newTestEnricher(staticMapping{"p1": 77}, store)

		out := e.EnrichOne(context.Background(), models.SleeperPlayer{PlayerID: "p1"}, true)
		assert.False(t, out.IsEnriched())
		assert.Equal(t, int64(1), e.GetMetrics().FailureReasons[FailureCacheMiss])
		store.AssertNotCalled(t, "GetEnrichment", mock.Anything, mock.Anything)
	})

	t.Run("live source error is a failure", func(t *testing.T) {
		live := new(MockLiveSource)
		live.On("ComposeForPlayer", mock.Anything, 77).Return(nil, errors.New("upstream down"))

		e := newTestEnricher(staticMapping{"p1": 77}, new(MockRecordStore))
		e.SetLiveSource(live)

		out := e.EnrichOne(context.Background(), models.SleeperPlayer{PlayerID: "p1"}, true)
		assert.False(t, out.IsEnriched())
		assert.Equal(t, int64(1), e.GetMetrics().FailureReasons[FailureError])
	})
}

func TestEnrichMany_ReturnsEveryPlayerRegardlessOfConcurrency(t *testing.T) {
	const n = 120

	mapping := staticMapping{}
	players := make(map[string]models.SleeperPlayer, n)
	for i := 0; i < n; i++ {
		id := fmt.Sprintf("%d", 1000+i)
		players[id] = models.SleeperPlayer{PlayerID: id, FullName: fmt.Sprintf("Player %d", i), Position: "WR"}
		if i%2 == 0 {
			mapping[id] = i + 1
		}
	}

	for _, maxConcurrent := range []int{1, 3, 50, 500, 0} {
		t.Run(fmt.Sprintf("max_concurrent_%d", maxConcurrent), func(t *testing.T) {
			store := new(MockRecordStore)
			store.On("GetEnrichment", mock.Anything, mock.AnythingOfType("int")).Return(fullRecord(1), true)

			e := newTestEnricher(mapping, store)
			results := e.EnrichMany(context.Background(), players, maxConcurrent)

			require.Len(t, results, n)
			enriched := 0
			for id, p := range results {
				assert.Equal(t, id, p.PlayerID)
				if p.IsEnriched() {
					enriched++
				}
			}
			assert.Equal(t, n/2, enriched)

			metrics := e.GetMetrics()
			assert.Equal(t, int64(n), metrics.TotalProcessed)
			assert.Equal(t, int64(n/2), metrics.Successful)
			assert.Equal(t, int64(n/2), metrics.MissingMapping)
		})
	}
}

func TestEnrichMany_Empty(t *testing.T) {
	e := newTestEnricher(staticMapping{}, new(MockRecordStore))
	results := e.EnrichMany(context.Background(), nil, 10)
	assert.Empty(t, results)
}

func TestResetMetrics(t *testing.T) {
	store := new(MockRecordStore)
	store.On("GetEnrichment", mock.Anything, 1).Return(fullRecord(1), true)
	e := newTestEnricher(staticMapping{"a": 1}, store)

	e.EnrichOne(context.Background(), models.SleeperPlayer{PlayerID: "a"}, false)
	require.Equal(t, int64(1), e.GetMetrics().Successful)

	e.ResetMetrics()
	metrics := e.GetMetrics()
	assert.Equal(t, int64(0), metrics.TotalProcessed)
	assert.Equal(t, 0, metrics.Samples)
	assert.Empty(t, metrics.FailureReasons)
}
