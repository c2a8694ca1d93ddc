package cache

import (
	"sync"
	"sync/atomic"
	"time"
)

// Stats holds hit/miss/error counters for one cache instance
type Stats struct {
	hits   atomic.Int64
	misses atomic.Int64
	errors atomic.Int64

	mu          sync.Mutex
	lastError   string
	lastErrorAt time.Time
}

// StatsSnapshot is a point-in-time copy of Stats
type StatsSnapshot struct {
	Hits        int64     `json:"hits"`
	Misses      int64     `json:"misses"`
	Errors      int64     `json:"errors"`
	HitRate     float64   `json:"hit_rate"`
	LastError   string    `json:"last_error,omitempty"`
	LastErrorAt time.Time `json:"last_error_at,omitempty"`
}

func NewStats() *Stats {
	return &Stats{}
}

func (s *Stats) RecordHit()  { s.hits.Add(1) }
func (s *Stats) RecordMiss() { s.misses.Add(1) }

func (s *Stats) RecordError(err error) {
	s.errors.Add(1)
	if err == nil {
		return
	}
	s.mu.Lock()
	s.lastError = err.Error()
	s.lastErrorAt = time.Now().UTC()
	s.mu.Unlock()
}

// Snapshot returns the current counters
func (s *Stats) Snapshot() StatsSnapshot {
	snap := StatsSnapshot{
		Hits:   s.hits.Load(),
		Misses: s.misses.Load(),
		Errors: s.errors.Load(),
	}
	if total := snap.Hits + snap.Misses; total > 0 {
		snap.HitRate = float64(snap.Hits) / float64(total)
	}
	s.mu.Lock()
	snap.LastError = s.lastError
	snap.LastErrorAt = s.lastErrorAt
	s.mu.Unlock()
	return snap
}

// Reset zeroes all counters
func (s *Stats) Reset() {
	s.hits.Store(0)
	s.misses.Store(0)
	s.errors.Store(0)
	s.mu.Lock()
	s.lastError = ""
	s.lastErrorAt = time.Time{}
	s.mu.Unlock()
}
