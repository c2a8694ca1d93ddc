package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/stitts-dev/player-enrichment/internal/providers"
)

// Pinger checks a backend dependency
type Pinger interface {
	Ping(ctx context.Context) error
}

// BreakerStatuses reports provider circuit breaker states
type BreakerStatuses interface {
	Statuses() map[string]providers.BreakerStatus
	AnyOpen() bool
}

type HealthHandler struct {
	cache    Pinger
	breakers BreakerStatuses
	started  time.Time
}

func NewHealthHandler(cache Pinger, breakers BreakerStatuses) *HealthHandler {
	return &HealthHandler{
		cache:    cache,
		breakers: breakers,
		started:  time.Now().UTC(),
	}
}

// GetHealth returns basic health status - always returns 200 if server is running
func (h *HealthHandler) GetHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"time":    time.Now().UTC(),
		"uptime":  time.Since(h.started).Round(time.Second).String(),
		"service": "player-enrichment",
	})
}

// GetReady returns 200 only when Redis answers. Open provider breakers are
// reported but do not fail readiness, cached data can still be served.
func (h *HealthHandler) GetReady(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	body := gin.H{"redis": "ok"}
	status := http.StatusOK

	if err := h.cache.Ping(ctx); err != nil {
		body["redis"] = err.Error()
		status = http.StatusServiceUnavailable
	}

	if h.breakers != nil {
		body["providers"] = h.breakers.Statuses()
		body["degraded"] = h.breakers.AnyOpen()
	}

	if status == http.StatusOK {
		body["status"] = "ready"
	} else {
		body["status"] = "not_ready"
	}
	c.JSON(status, body)
}
