package retry

import (
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
)

// Policy defines the escalating backoff window of a retry chain.
type Policy struct {
	InitialFloor   time.Duration
	InitialCeiling time.Duration
	FloorStep      time.Duration
	CeilingStep    time.Duration
	MaxFloor       time.Duration
	MaxCeiling     time.Duration

	// MaxRetries stops a chain after this many retries. Zero means unbounded.
	MaxRetries int
	// MaxElapsed stops a chain once it has been running this long. Zero means unbounded.
	MaxElapsed time.Duration
}

// DefaultPolicy retries forever with delays growing from [5s,10s) to [30s,60s).
var DefaultPolicy = Policy{
	InitialFloor:   5 * time.Second,
	InitialCeiling: 10 * time.Second,
	FloorStep:      5 * time.Second,
	CeilingStep:    10 * time.Second,
	MaxFloor:       30 * time.Second,
	MaxCeiling:     60 * time.Second,
}

// State is the backoff window of one retry chain. It is owned by the chain
// and never shared between calls.
type State struct {
	ID       string
	Floor    time.Duration
	Ceiling  time.Duration
	Attempts int
	Started  time.Time

	policy Policy
}

// NewState starts a fresh chain.
func (p Policy) NewState(now time.Time) *State {
	floor, ceiling := p.InitialFloor, p.InitialCeiling
	if floor > ceiling {
		floor = ceiling
	}
	return &State{
		ID:      uuid.NewString(),
		Floor:   floor,
		Ceiling: ceiling,
		Started: now,
		policy:  p,
	}
}

// Next draws a delay uniformly from [Floor, Ceiling) and then widens the
// window for the following retry. rnd must return a value in [0, n); nil
// uses math/rand/v2.
func (s *State) Next(rnd func(n int64) int64) time.Duration {
	if rnd == nil {
		rnd = rand.Int64N
	}

	delay := s.Floor
	if span := int64(s.Ceiling - s.Floor); span > 0 {
		delay += time.Duration(rnd(span))
	}

	if s.Ceiling < s.policy.MaxCeiling {
		s.Ceiling = min(s.Ceiling+s.policy.CeilingStep, s.policy.MaxCeiling)
	}
	if s.Floor < s.policy.MaxFloor {
		s.Floor = min(s.Floor+s.policy.FloorStep, s.policy.MaxFloor)
	}
	if s.Floor > s.Ceiling {
		s.Floor = s.Ceiling
	}
	s.Attempts++

	return delay
}

// exhausted reports whether the optional retry bounds of the policy are spent.
func (s *State) exhausted(now time.Time) bool {
	if s.policy.MaxRetries > 0 && s.Attempts >= s.policy.MaxRetries {
		return true
	}
	if s.policy.MaxElapsed > 0 && now.Sub(s.Started) >= s.policy.MaxElapsed {
		return true
	}
	return false
}
