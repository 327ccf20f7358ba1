// Package retry implements the classify-then-retry engine in front of the cluster.
//
// Every top-level call owns one backoff State. Retriable failures (admission
// control rejections, no living connections) are absorbed by waiting and
// resending the identical request; anything else ends the chain with a single
// descriptive error.
package retry

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/vietddude/esguard/internal/metrics"
)

const (
	outcomeSuccess = "success"
	outcomeFatal   = "fatal"
)

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Executor runs retry chains with a shared policy.
type Executor struct {
	policy   Policy
	log      *slog.Logger
	throttle Throttle
	sleep    SleepFunc
	rand     func(n int64) int64
	now      func() time.Time
}

// Option configures an Executor.
type Option func(*Executor)

// WithLogger sets the logger used for retry and failure events.
func WithLogger(l *slog.Logger) Option {
	return func(e *Executor) {
		if l != nil {
			e.log = l
		}
	}
}

// WithThrottle injects the process-wide limiter for the bulk overload warning.
func WithThrottle(t Throttle) Option {
	return func(e *Executor) {
		if t != nil {
			e.throttle = t
		}
	}
}

// WithSleep replaces the backoff wait.
func WithSleep(fn SleepFunc) Option {
	return func(e *Executor) {
		if fn != nil {
			e.sleep = fn
		}
	}
}

// WithRand replaces the random source used to draw delays.
func WithRand(fn func(n int64) int64) Option {
	return func(e *Executor) { e.rand = fn }
}

// WithClock replaces the clock used for MaxElapsed.
func WithClock(fn func() time.Time) Option {
	return func(e *Executor) {
		if fn != nil {
			e.now = fn
		}
	}
}

// NewExecutor creates an executor for the given policy.
func NewExecutor(policy Policy, opts ...Option) *Executor {
	e := &Executor{
		policy: policy,
		log:    slog.Default(),
		sleep:  sleepContext,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.throttle == nil {
		e.throttle = NewWarnThrottle(DefaultWarnInterval)
	}
	return e
}

// Policy returns the executor's backoff policy.
func (e *Executor) Policy() Policy {
	return e.policy
}

// Run calls fn until it succeeds or fails with a non-retriable error.
// fn must send the same request on every call.
func Run[T any](ctx context.Context, e *Executor, op string, fn func(ctx context.Context) (T, error)) (T, error) {
	st := e.policy.NewState(e.now())

	for {
		res, err := fn(ctx)
		if err == nil {
			metrics.OperationsTotal.WithLabelValues(op, outcomeSuccess).Inc()
			return res, nil
		}

		var zero T
		c := Classify(err)
		if !c.Category.Retriable() {
			return zero, e.fail(op, st, c, err)
		}
		if err := e.backoff(ctx, op, st, c, err); err != nil {
			return zero, err
		}
	}
}

func (e *Executor) fail(op string, st *State, c Classification, err error) error {
	fe := &FatalError{Op: op, Reason: c.Reason, Err: err}
	metrics.OperationsTotal.WithLabelValues(op, outcomeFatal).Inc()
	e.log.Error(fe.Error(), "op", op, "chain", st.ID, "attempts", st.Attempts)
	return fe
}

// backoff waits out the next delay of the chain. It fails when the policy
// bounds are spent or ctx ends first.
func (e *Executor) backoff(ctx context.Context, op string, st *State, c Classification, cause error) error {
	if st.exhausted(e.now()) {
		limit := fmt.Errorf("%w after %d retries: %w", ErrRetryLimit, st.Attempts, cause)
		return e.fail(op, st, Classification{Category: Fatal, Reason: c.Reason}, limit)
	}

	delay := st.Next(e.rand)
	metrics.RetriesTotal.WithLabelValues(op, c.Category.String()).Inc()
	metrics.BackoffDelay.WithLabelValues(op).Observe(delay.Seconds())

	e.log.Debug("Retrying after retriable failure",
		"op", op,
		"chain", st.ID,
		"category", c.Category.String(),
		"attempt", st.Attempts,
		"delay", delay,
		"reason", c.Reason,
	)

	if err := e.sleep(ctx, delay); err != nil {
		return fmt.Errorf("%s retry aborted: %w", op, err)
	}
	return nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
