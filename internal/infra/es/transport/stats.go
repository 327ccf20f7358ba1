package transport

import (
	"sync"
	"time"
)

// Health is a snapshot of a transport's request statistics.
type Health struct {
	Available     bool          `json:"available"`
	Latency       time.Duration `json:"latency"`
	ErrorRate     float64       `json:"error_rate"`
	Requests      int           `json:"requests"`
	Failures      int           `json:"failures"`
	LastSuccessAt time.Time     `json:"last_success_at"`
	LastFailureAt time.Time     `json:"last_failure_at,omitzero"`
}

// Stats tracks success and failure of cluster requests.
type Stats struct {
	mu           sync.RWMutex
	health       Health
	totalLatency time.Duration
	successCount int
}

// NewStats creates stats for a transport that is assumed reachable.
func NewStats() *Stats {
	return &Stats{
		health: Health{
			Available:     true,
			LastSuccessAt: time.Now(),
		},
	}
}

// Snapshot returns the current statistics.
func (s *Stats) Snapshot() Health {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.health
}

func (s *Stats) RecordSuccess(latency time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.successCount++
	s.health.Requests++
	s.totalLatency += latency
	s.health.LastSuccessAt = time.Now()
	s.health.Available = true

	s.health.ErrorRate = float64(s.health.Failures) / float64(s.health.Requests)
	s.health.Latency = s.totalLatency / time.Duration(s.successCount)
}

// RecordFailure counts a failed request. Only unreachable-cluster failures
// mark the transport unavailable.
func (s *Stats) RecordFailure(unreachable bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.health.Failures++
	s.health.Requests++
	s.health.LastFailureAt = time.Now()
	s.health.ErrorRate = float64(s.health.Failures) / float64(s.health.Requests)

	if unreachable || s.health.ErrorRate > 0.5 {
		s.health.Available = false
	}
}
