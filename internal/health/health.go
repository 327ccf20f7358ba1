// Package health provides cluster and dead letter health reporting over HTTP.
package health

import (
	"time"

	"github.com/vietddude/esguard/internal/infra/es/transport"
)

// SystemStatus represents the overall health state of the system or a component.
type SystemStatus string

const (
	StatusHealthy  SystemStatus = "healthy"
	StatusDegraded SystemStatus = "degraded"
	StatusCritical SystemStatus = "critical"
)

// ClusterHealth reports reachability and request statistics of the cluster.
type ClusterHealth struct {
	Status    SystemStatus     `json:"status"`
	Reachable bool             `json:"reachable"`
	PingError string           `json:"ping_error,omitempty"`
	Transport transport.Health `json:"transport"`
}

// DeadLetterHealth reports the dead letter backlog.
type DeadLetterHealth struct {
	Status  SystemStatus `json:"status"`
	Backend string       `json:"backend"`
	Pending int          `json:"pending"`
	Error   string       `json:"error,omitempty"`
}

// HealthReport contains the full system health report.
type HealthReport struct {
	SystemStatus SystemStatus      `json:"system_status"`
	Cluster      ClusterHealth     `json:"cluster"`
	DeadLetter   *DeadLetterHealth `json:"dead_letter,omitempty"`
	CheckedAt    time.Time         `json:"checked_at"`
}

// worst returns the more severe of two statuses.
func worst(a, b SystemStatus) SystemStatus {
	rank := map[SystemStatus]int{StatusHealthy: 0, StatusDegraded: 1, StatusCritical: 2}
	if rank[b] > rank[a] {
		return b
	}
	return a
}
