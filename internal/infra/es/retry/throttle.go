package retry

import (
	"time"

	"golang.org/x/time/rate"
)

// DefaultWarnInterval is the minimum gap between two bulk overload warnings.
const DefaultWarnInterval = 5 * time.Second

// Throttle runs f at most once per window. *rate.Sometimes satisfies it.
type Throttle interface {
	Do(f func())
}

// NewWarnThrottle returns a limiter meant to be created once per process and
// shared by every executor.
func NewWarnThrottle(interval time.Duration) *rate.Sometimes {
	if interval <= 0 {
		interval = DefaultWarnInterval
	}
	return &rate.Sometimes{Interval: interval}
}
