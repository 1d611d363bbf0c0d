package resilience

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ErrCircuitOpen is returned without calling the operation while the breaker is open.
var ErrCircuitOpen = errors.New("circuit breaker is open")

type breakerState int

const (
	closed breakerState = iota
	open
	halfOpen
)

func (s breakerState) String() string {
	switch s {
	case open:
		return "open"
	case halfOpen:
		return "half-open"
	default:
		return "closed"
	}
}

// Breaker opens after Threshold consecutive transient failures and lets a
// single probe through once Cooldown has elapsed. Other errors, failed
// commits included, count as successes.
type Breaker struct {
	mu        sync.Mutex
	threshold int
	cooldown  time.Duration
	now       func() time.Time
	logger    *zap.Logger

	state    breakerState
	failures int
	openedAt time.Time
	probing  bool
}

// NewBreaker creates a closed breaker. A threshold below one is treated as one.
func NewBreaker(threshold int, cooldown time.Duration, logger *zap.Logger) *Breaker {
	if threshold < 1 {
		threshold = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Breaker{threshold: threshold, cooldown: cooldown, now: time.Now, logger: logger}
}

// Do runs fn unless the breaker is open.
func (b *Breaker) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := b.allow(); err != nil {
		return err
	}
	err := fn(ctx)
	b.record(err)
	return err
}

// Open reports whether calls are currently rejected.
func (b *Breaker) Open() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state == open && b.now().Sub(b.openedAt) < b.cooldown
}

func (b *Breaker) allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case open:
		if b.now().Sub(b.openedAt) < b.cooldown {
			return ErrCircuitOpen
		}
		b.setState(halfOpen)
		b.probing = true
		return nil
	case halfOpen:
		if b.probing {
			return ErrCircuitOpen
		}
		b.probing = true
	}
	return nil
}

func (b *Breaker) record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.probing = false
	if !retryable(err) {
		b.failures = 0
		if b.state != closed {
			b.setState(closed)
		}
		return
	}

	b.failures++
	if b.state == halfOpen || b.failures >= b.threshold {
		b.openedAt = b.now()
		b.setState(open)
	}
}

func (b *Breaker) setState(s breakerState) {
	if b.state == s {
		return
	}
	b.logger.Warn("Circuit breaker state changed",
		zap.Stringer("from", b.state),
		zap.Stringer("to", s),
		zap.Int("failures", b.failures),
	)
	b.state = s
}
