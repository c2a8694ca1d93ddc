package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/stitts-dev/player-enrichment/internal/cache"
	"github.com/stitts-dev/player-enrichment/internal/enrichment"
	"github.com/stitts-dev/player-enrichment/internal/providers"
)

const namespace = "player_enrichment"

// EnrichmentSource exposes enrichment counters
type EnrichmentSource interface {
	Snapshot() enrichment.MetricsSnapshot
}

// CacheSource exposes cache hit/miss/error counters
type CacheSource interface {
	Snapshot() cache.StatsSnapshot
}

// BreakerSource exposes provider circuit breaker states
type BreakerSource interface {
	Statuses() map[string]providers.BreakerStatus
}

// Collector turns the in-process enrichment and cache counters into
// Prometheus metrics at scrape time.
type Collector struct {
	enrichment EnrichmentSource
	cache      CacheSource
	breakers   BreakerSource

	processed      *prometheus.Desc
	outcomes       *prometheus.Desc
	failureReasons *prometheus.Desc
	avgConfidence  *prometheus.Desc
	avgLatency     *prometheus.Desc
	maxLatency     *prometheus.Desc
	cacheLookups   *prometheus.Desc
	cacheErrors    *prometheus.Desc
	breakerState   *prometheus.Desc
}

func NewCollector(enrichmentSource EnrichmentSource, cacheSource CacheSource, breakers BreakerSource) *Collector {
	return &Collector{
		enrichment: enrichmentSource,
		cache:      cacheSource,
		breakers:   breakers,
		processed: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "enrichment", "processed_total"),
			"Players submitted for enrichment.", nil, nil),
		outcomes: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "enrichment", "outcomes_total"),
			"Enrichment outcomes by result.", []string{"result"}, nil),
		failureReasons: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "enrichment", "failures_total"),
			"Enrichment failures by reason.", []string{"reason"}, nil),
		avgConfidence: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "enrichment", "confidence_average"),
			"Average confidence over retained samples.", nil, nil),
		avgLatency: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "enrichment", "latency_average_ms"),
			"Average enrichment latency over retained samples.", nil, nil),
		maxLatency: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "enrichment", "latency_max_ms"),
			"Maximum enrichment latency over retained samples.", nil, nil),
		cacheLookups: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "cache", "lookups_total"),
			"Cache lookups by result.", []string{"result"}, nil),
		cacheErrors: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "cache", "errors_total"),
			"Cache backend errors.", nil, nil),
		breakerState: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "provider", "circuit_open"),
			"1 when the provider circuit breaker is open.", []string{"provider", "state"}, nil),
	}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.processed
	ch <- c.outcomes
	ch <- c.failureReasons
	ch <- c.avgConfidence
	ch <- c.avgLatency
	ch <- c.maxLatency
	ch <- c.cacheLookups
	ch <- c.cacheErrors
	ch <- c.breakerState
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	if c.enrichment != nil {
		snap := c.enrichment.Snapshot()
		ch <- prometheus.MustNewConstMetric(c.processed, prometheus.CounterValue, float64(snap.TotalProcessed))
		ch <- prometheus.MustNewConstMetric(c.outcomes, prometheus.CounterValue, float64(snap.Successful), "success")
		ch <- prometheus.MustNewConstMetric(c.outcomes, prometheus.CounterValue, float64(snap.Failed), "failure")
		ch <- prometheus.MustNewConstMetric(c.outcomes, prometheus.CounterValue, float64(snap.MissingMapping), "missing_mapping")
		for reason, count := range snap.FailureReasons {
			ch <- prometheus.MustNewConstMetric(c.failureReasons, prometheus.CounterValue, float64(count), reason)
		}
		ch <- prometheus.MustNewConstMetric(c.avgConfidence, prometheus.GaugeValue, snap.AverageConfidence)
		ch <- prometheus.MustNewConstMetric(c.avgLatency, prometheus.GaugeValue, snap.AverageLatencyMs)
		ch <- prometheus.MustNewConstMetric(c.maxLatency, prometheus.GaugeValue, snap.MaxLatencyMs)
	}

	if c.cache != nil {
		snap := c.cache.Snapshot()
		ch <- prometheus.MustNewConstMetric(c.cacheLookups, prometheus.CounterValue, float64(snap.Hits), "hit")
		ch <- prometheus.MustNewConstMetric(c.cacheLookups, prometheus.CounterValue, float64(snap.Misses), "miss")
		ch <- prometheus.MustNewConstMetric(c.cacheErrors, prometheus.CounterValue, float64(snap.Errors))
	}

	if c.breakers != nil {
		for provider, status := range c.breakers.Statuses() {
			open := 0.0
			if status.State == "open" {
				open = 1
			}
			ch <- prometheus.MustNewConstMetric(c.breakerState, prometheus.GaugeValue, open, provider, status.State)
		}
	}
}

// Registry is a dedicated Prometheus registry for the service
type Registry struct {
	registry        *prometheus.Registry
	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
}

// NewRegistry registers the collector, HTTP request metrics and the Go
// runtime collectors on a fresh registry.
func NewRegistry(collector *Collector) (*Registry, error) {
	reg := prometheus.NewRegistry()

	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "HTTP requests by method, route and status.",
	}, []string{"method", "path", "status"})
	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path"})

	cs := []prometheus.Collector{
		requests,
		requestDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	}
	if collector != nil {
		cs = append(cs, collector)
	}
	for _, c := range cs {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}

	return &Registry{
		registry:        reg,
		requests:        requests,
		requestDuration: requestDuration,
	}, nil
}

// ObserveHTTPRequest records one served request. path should be the route
// template, not the raw URL, to keep label cardinality bounded.
func (r *Registry) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if r == nil {
		return
	}
	r.requests.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	r.requestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.registry
}
