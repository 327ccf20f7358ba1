package health

import (
	"context"
	"sync"
	"time"

	"github.com/vietddude/esguard/internal/infra/es/transport"
	"github.com/vietddude/esguard/internal/metrics"
)

// Cluster is the part of the transport the monitor probes.
type Cluster interface {
	Ping(ctx context.Context) error
	Health() transport.Health
}

// Backlog counts pending dead letters.
type Backlog interface {
	Count(ctx context.Context) (int, error)
}

const (
	defaultCacheFor = 10 * time.Second
	// criticalBacklog is the pending dead letter count that makes the system critical.
	criticalBacklog = 1000
)

// Monitor aggregates health status from the cluster and the dead letter store.
type Monitor struct {
	cluster    Cluster
	backlog    Backlog
	backend    string
	cacheFor   time.Duration
	now        func() time.Time
	lastReport *HealthReport
	mu         sync.Mutex
}

// NewMonitor creates a new health monitor. backlog may be nil when dead
// lettering is disabled.
func NewMonitor(cluster Cluster, backlog Backlog, backend string) *Monitor {
	return &Monitor{
		cluster:  cluster,
		backlog:  backlog,
		backend:  backend,
		cacheFor: defaultCacheFor,
		now:      time.Now,
	}
}

// CheckHealth probes every component. Results are cached briefly so that
// scrapes do not hammer the cluster.
func (m *Monitor) CheckHealth(ctx context.Context) HealthReport {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if m.lastReport != nil && now.Sub(m.lastReport.CheckedAt) < m.cacheFor {
		return *m.lastReport
	}

	report := HealthReport{
		SystemStatus: StatusHealthy,
		Cluster:      m.checkCluster(ctx),
		CheckedAt:    now,
	}
	report.SystemStatus = worst(report.SystemStatus, report.Cluster.Status)

	if m.backlog != nil {
		dl := m.checkBacklog(ctx)
		report.DeadLetter = &dl
		report.SystemStatus = worst(report.SystemStatus, dl.Status)
	}

	m.lastReport = &report
	return report
}

func (m *Monitor) checkCluster(ctx context.Context) ClusterHealth {
	h := ClusterHealth{Status: StatusHealthy, Reachable: true}

	if err := m.cluster.Ping(ctx); err != nil {
		h.Reachable = false
		h.PingError = err.Error()
		h.Status = StatusCritical
	}

	h.Transport = m.cluster.Health()
	if h.Status == StatusHealthy && !h.Transport.Available {
		h.Status = StatusDegraded
	}
	return h
}

func (m *Monitor) checkBacklog(ctx context.Context) DeadLetterHealth {
	h := DeadLetterHealth{Status: StatusHealthy, Backend: m.backend}

	n, err := m.backlog.Count(ctx)
	if err != nil {
		h.Status = StatusDegraded
		h.Error = err.Error()
		return h
	}

	h.Pending = n
	metrics.DeadLetterPending.Set(float64(n))

	switch {
	case n >= criticalBacklog:
		h.Status = StatusCritical
	case n > 0:
		h.Status = StatusDegraded
	}
	return h
}
