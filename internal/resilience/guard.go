package resilience

import "context"

// Guard composes a CircuitBreaker outside a Retrier: the breaker decides
// whether the whole retry sequence is allowed to run at all, and records
// the sequence's final outcome as a single call (attempts inside it are not
// checked or counted one by one).
type Guard struct {
	breaker *CircuitBreaker
	retrier *Retrier
}

// NewGuard builds a Guard wrapping retrier attempts with breaker protection.
func NewGuard(breaker *CircuitBreaker, retrier *Retrier) *Guard {
	return &Guard{breaker: breaker, retrier: retrier}
}

// Run executes op under retry, with the whole retry sequence gated by the
// breaker. If the breaker is open the call fails fast with
// memerr.CircuitOpen and op is never invoked.
func (g *Guard) Run(ctx context.Context, op func(context.Context) error) error {
	return g.breaker.Execute(ctx, func(ctx context.Context) error {
		return g.retrier.Do(ctx, op)
	})
}

// Status reports the underlying breaker's observable state.
func (g *Guard) Status() Status {
	return g.breaker.Status()
}
