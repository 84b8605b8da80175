package resilience

import (
	"context"
	"sync"
	"time"

	"agentmemory/internal/memerr"
)

// BreakerState is one of the three circuit breaker states.
type BreakerState int

const (
	Closed BreakerState = iota
	Open
	HalfOpen
)

func (s BreakerState) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// BreakerConfig configures a single named circuit breaker.
type BreakerConfig struct {
	MonitoringWindow time.Duration // rolling window of outcomes considered
	MinimumCalls     int           // calls required in window before tripping
	FailureThreshold float64       // failure rate in [0,1] that trips the breaker
	ResetTimeout     time.Duration // time OPEN stays before admitting a probe
}

func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		MonitoringWindow: 60 * time.Second,
		MinimumCalls:     10,
		FailureThreshold: 0.5,
		ResetTimeout:     30 * time.Second,
	}
}

type outcome struct {
	at      time.Time
	success bool
}

// Status is the observable state of a CircuitBreaker.
type Status struct {
	State         BreakerState
	Failures      int
	Calls         int
	SuccessRate   float64
	NextAttemptAt time.Time
}

// CircuitBreaker short-circuits calls to a downstream whose recent failure
// rate, over a rolling window of outcomes, is above FailureThreshold.
// Adapted from the teacher's circuitbreaker.CircuitBreaker, reworked from a
// consecutive-failure counter to the rolling-window accounting the
// resilience contract requires.
type CircuitBreaker struct {
	name string
	cfg  BreakerConfig

	mu            sync.Mutex
	state         BreakerState
	outcomes      []outcome
	openedAt      time.Time
	halfOpenInUse bool
}

// NewCircuitBreaker builds a CircuitBreaker for the named downstream
// operation.
func NewCircuitBreaker(name string, cfg BreakerConfig) *CircuitBreaker {
	return &CircuitBreaker{name: name, cfg: cfg, state: Closed}
}

// Execute runs fn with circuit breaker protection: an OPEN circuit fails
// immediately with memerr.CircuitOpen without invoking fn.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func(context.Context) error) error {
	if !cb.allow() {
		return memerr.Newf(memerr.CircuitOpen, "circuit %q is open", cb.name)
	}

	err := fn(ctx)
	cb.record(err == nil)
	return err
}

func (cb *CircuitBreaker) allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.pruneLocked(time.Now())

	switch cb.state {
	case Closed:
		return true
	case Open:
		if time.Since(cb.openedAt) >= cb.cfg.ResetTimeout {
			cb.state = HalfOpen
			cb.halfOpenInUse = false
		} else {
			return false
		}
		fallthrough
	case HalfOpen:
		if cb.halfOpenInUse {
			return false
		}
		cb.halfOpenInUse = true
		return true
	}
	return false
}

func (cb *CircuitBreaker) record(success bool) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	now := time.Now()
	cb.outcomes = append(cb.outcomes, outcome{at: now, success: success})
	cb.pruneLocked(now)

	switch cb.state {
	case HalfOpen:
		cb.halfOpenInUse = false
		if success {
			cb.state = Closed
			cb.outcomes = nil
		} else {
			cb.state = Open
			cb.openedAt = now
		}
	case Closed:
		calls, failures := cb.countsLocked()
		if calls >= cb.cfg.MinimumCalls {
			rate := float64(failures) / float64(calls)
			if rate >= cb.cfg.FailureThreshold {
				cb.state = Open
				cb.openedAt = now
			}
		}
	case Open:
		// Outcomes recorded while open (shouldn't normally happen) are
		// folded into the window for the next evaluation.
	}
}

func (cb *CircuitBreaker) pruneLocked(now time.Time) {
	if cb.cfg.MonitoringWindow <= 0 {
		return
	}
	cutoff := now.Add(-cb.cfg.MonitoringWindow)
	i := 0
	for i < len(cb.outcomes) && cb.outcomes[i].at.Before(cutoff) {
		i++
	}
	if i > 0 {
		cb.outcomes = cb.outcomes[i:]
	}
}

func (cb *CircuitBreaker) countsLocked() (calls, failures int) {
	for _, o := range cb.outcomes {
		calls++
		if !o.success {
			failures++
		}
	}
	return calls, failures
}

// Status reports the breaker's current observable state.
func (cb *CircuitBreaker) Status() Status {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.pruneLocked(time.Now())
	calls, failures := cb.countsLocked()

	successRate := 1.0
	if calls > 0 {
		successRate = float64(calls-failures) / float64(calls)
	}

	var next time.Time
	if cb.state == Open {
		next = cb.openedAt.Add(cb.cfg.ResetTimeout)
	}

	return Status{
		State:         cb.state,
		Failures:      failures,
		Calls:         calls,
		SuccessRate:   successRate,
		NextAttemptAt: next,
	}
}

// Reset forces the breaker back to CLOSED with an empty window.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.state = Closed
	cb.outcomes = nil
	cb.halfOpenInUse = false
}
