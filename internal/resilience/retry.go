// Package resilience wraps unit-of-work calls with retries and a circuit breaker.
package resilience

import (
	"context"
	"errors"
	"time"

	"catalog-core/internal/domain"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

// RetryConfig tunes the exponential backoff of a Retrier.
type RetryConfig struct {
	InitialInterval time.Duration
	MaxInterval     time.Duration
	MaxElapsedTime  time.Duration
	MaxRetries      int
}

// DefaultRetryConfig returns conservative retry settings.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		InitialInterval: 50 * time.Millisecond,
		MaxInterval:     2 * time.Second,
		MaxElapsedTime:  10 * time.Second,
		MaxRetries:      5,
	}
}

// Retrier re-runs an operation while it fails with ErrTransientStorage.
// Every other error is returned immediately. A failed commit is never re-run:
// its writes may have been applied.
type Retrier struct {
	cfg    RetryConfig
	logger *zap.Logger
}

// NewRetrier creates a Retrier.
func NewRetrier(cfg RetryConfig, logger *zap.Logger) *Retrier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Retrier{cfg: cfg, logger: logger}
}

func (r *Retrier) backOff(ctx context.Context) backoff.BackOff {
	exp := backoff.NewExponentialBackOff()
	if r.cfg.InitialInterval > 0 {
		exp.InitialInterval = r.cfg.InitialInterval
	}
	if r.cfg.MaxInterval > 0 {
		exp.MaxInterval = r.cfg.MaxInterval
	}
	exp.MaxElapsedTime = r.cfg.MaxElapsedTime
	exp.Reset()

	var b backoff.BackOff = exp
	if r.cfg.MaxRetries > 0 {
		b = backoff.WithMaxRetries(b, uint64(r.cfg.MaxRetries))
	}
	return backoff.WithContext(b, ctx)
}

// retryable reports whether err is a transient failure that happened before
// anything could have been committed.
func retryable(err error) bool {
	return domain.IsTransient(err) && !errors.Is(err, domain.ErrCommitFailed)
}

// Do runs fn until it succeeds, fails permanently or the backoff gives up.
// fn must start from scratch on every call, typically with a fresh unit of work.
func (r *Retrier) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	attempt := 0
	op := func() error {
		attempt++
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if !retryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		r.logger.Warn("Retrying after transient storage failure",
			zap.Error(err),
			zap.Int("attempt", attempt),
			zap.Duration("backoff", wait),
		)
	}
	return backoff.RetryNotify(op, r.backOff(ctx), notify)
}
