// Package ratelimit throttles RPC calls per tenant using a sliding window
// count. It is adapted from the teacher's internal/ratelimit package, which
// rate limited per IP/user/endpoint for an HTTP API; here the only scope
// that matters is the tenant id carried in every memory/* RPC call.
package ratelimit

import (
	"sync"
	"time"
)

// Limit describes the sliding window applied to a single tenant.
type Limit struct {
	Requests int
	Window   time.Duration
}

// Limiter is satisfied by both the in-memory Window limiter and the
// Redis-backed limiter, so the RPC server can swap one for the other
// without changing call sites.
type Limiter interface {
	// Allow reports whether tenant may make one more request right now,
	// recording the request only when it is admitted.
	Allow(tenantID string) (bool, error)
}

// Window is an in-memory sliding window limiter, grounded on the teacher's
// SlidingWindow type. It is the default limiter when Redis is not
// configured, and the only limiter available to single-process deployments.
type Window struct {
	mu    sync.Mutex
	limit Limit
	hits  map[string][]time.Time
	nowFn func() time.Time
}

// NewWindow builds an in-memory limiter enforcing limit for every tenant.
func NewWindow(limit Limit) *Window {
	return &Window{limit: limit, hits: make(map[string][]time.Time), nowFn: time.Now}
}

func (w *Window) Allow(tenantID string) (bool, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.nowFn()
	cutoff := now.Add(-w.limit.Window)

	events := w.hits[tenantID]
	kept := events[:0]
	for _, t := range events {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}

	if len(kept) >= w.limit.Requests {
		w.hits[tenantID] = kept
		return false, nil
	}

	w.hits[tenantID] = append(kept, now)
	return true, nil
}
