package resilience

import "context"

// Policy retries transient failures behind a circuit breaker. An exhausted
// retry counts as one breaker failure.
type Policy struct {
	retrier *Retrier
	breaker *Breaker
}

// NewPolicy combines r and b. Either may be nil.
func NewPolicy(r *Retrier, b *Breaker) *Policy {
	return &Policy{retrier: r, breaker: b}
}

// Do runs fn under the policy.
func (p *Policy) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	run := fn
	if p.retrier != nil {
		run = func(ctx context.Context) error { return p.retrier.Do(ctx, fn) }
	}
	if p.breaker != nil {
		return p.breaker.Do(ctx, run)
	}
	return run(ctx)
}
