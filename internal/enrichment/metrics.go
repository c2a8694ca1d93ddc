package enrichment

import (
	"sync"
	"time"
)

// Failure reasons recorded by the enricher
const (
	FailureNoPlayerID = "no_player_id"
	FailureCacheMiss  = "cache_miss"
	FailureError      = "error"
)

// maxSamples bounds the confidence and latency sample lists
const maxSamples = 10000

// EnrichmentMetrics aggregates enrichment outcomes until explicitly reset.
// It is safe for concurrent use.
type EnrichmentMetrics struct {
	mu sync.Mutex

	processed      int64
	succeeded      int64
	failed         int64
	missingMapping int64
	cacheHits      int64
	cacheMisses    int64
	failureReasons map[string]int64

	confidences *sampleRing[float64]
	latencies   *sampleRing[time.Duration]
	since       time.Time
}

// MetricsSnapshot is a point-in-time view of EnrichmentMetrics
type MetricsSnapshot struct {
	TotalProcessed    int64            `json:"total_processed"`
	Successful        int64            `json:"successful"`
	Failed            int64            `json:"failed"`
	MissingMapping    int64            `json:"missing_mapping"`
	CacheHits         int64            `json:"cache_hits"`
	CacheMisses       int64            `json:"cache_misses"`
	FailureReasons    map[string]int64 `json:"failure_reasons"`
	SuccessRate       float64          `json:"success_rate"`
	CacheHitRate      float64          `json:"cache_hit_rate"`
	AverageConfidence float64          `json:"average_confidence"`
	AverageLatencyMs  float64          `json:"average_latency_ms"`
	MaxLatencyMs      float64          `json:"max_latency_ms"`
	Samples           int              `json:"samples"`
	Since             time.Time        `json:"since"`
}

func NewEnrichmentMetrics() *EnrichmentMetrics {
	return &EnrichmentMetrics{
		failureReasons: make(map[string]int64),
		confidences:    newSampleRing[float64](maxSamples),
		latencies:      newSampleRing[time.Duration](maxSamples),
		since:          time.Now().UTC(),
	}
}

// RecordSuccess counts an enriched player
func (m *EnrichmentMetrics) RecordSuccess(confidence float64, latency time.Duration, cacheHit bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.processed++
	m.succeeded++
	if cacheHit {
		m.cacheHits++
	}
	m.confidences.add(confidence)
	m.latencies.add(latency)
}

// RecordFailure counts a player that could not be enriched
func (m *EnrichmentMetrics) RecordFailure(reason string, latency time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.processed++
	m.failed++
	m.failureReasons[reason]++
	if reason == FailureCacheMiss {
		m.cacheMisses++
	}
	m.latencies.add(latency)
}

// RecordMissingMapping counts a player without an FFNerd counterpart. It is
// not a failure.
func (m *EnrichmentMetrics) RecordMissingMapping() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.processed++
	m.missingMapping++
}

func (m *EnrichmentMetrics) Snapshot() MetricsSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := MetricsSnapshot{
		TotalProcessed: m.processed,
		Successful:     m.succeeded,
		Failed:         m.failed,
		MissingMapping: m.missingMapping,
		CacheHits:      m.cacheHits,
		CacheMisses:    m.cacheMisses,
		FailureReasons: make(map[string]int64, len(m.failureReasons)),
		Samples:        m.confidences.len(),
		Since:          m.since,
	}
	for k, v := range m.failureReasons {
		snap.FailureReasons[k] = v
	}

	if attempted := m.succeeded + m.failed; attempted > 0 {
		snap.SuccessRate = float64(m.succeeded) / float64(attempted)
	}
	if lookups := m.cacheHits + m.cacheMisses; lookups > 0 {
		snap.CacheHitRate = float64(m.cacheHits) / float64(lookups)
	}
	if confidences := m.confidences.values(); len(confidences) > 0 {
		total := 0.0
		for _, c := range confidences {
			total += c
		}
		snap.AverageConfidence = total / float64(len(confidences))
	}
	if latencies := m.latencies.values(); len(latencies) > 0 {
		var total, longest time.Duration
		for _, l := range latencies {
			total += l
			if l > longest {
				longest = l
			}
		}
		snap.AverageLatencyMs = float64(total.Microseconds()) / 1000 / float64(len(latencies))
		snap.MaxLatencyMs = float64(longest.Microseconds()) / 1000
	}
	return snap
}

// Reset clears all counters and samples
func (m *EnrichmentMetrics) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.processed = 0
	m.succeeded = 0
	m.failed = 0
	m.missingMapping = 0
	m.cacheHits = 0
	m.cacheMisses = 0
	m.failureReasons = make(map[string]int64)
	m.confidences.reset()
	m.latencies.reset()
	m.since = time.Now().UTC()
}

// sampleRing keeps the newest size samples, overwriting the oldest once full
type sampleRing[T any] struct {
	buf  []T
	next int
}

func newSampleRing[T any](size int) *sampleRing[T] {
	return &sampleRing[T]{buf: make([]T, 0, size)}
}

func (r *sampleRing[T]) add(v T) {
	if len(r.buf) < cap(r.buf) {
		r.buf = append(r.buf, v)
		return
	}
	r.buf[r.next] = v
	r.next = (r.next + 1) % len(r.buf)
}

func (r *sampleRing[T]) len() int { return len(r.buf) }

// values returns the stored samples in no particular order
func (r *sampleRing[T]) values() []T { return r.buf }

func (r *sampleRing[T]) reset() {
	r.buf = r.buf[:0]
	r.next = 0
}
