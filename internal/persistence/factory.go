package persistence

import (
	"time"

	"catalog-core/internal/storage"

	"go.uber.org/zap"
)

// Factory creates units of work over one driver.
type Factory struct {
	driver storage.Driver
	clock  func() time.Time
	logger *zap.Logger
	hooks  []CommitHook
}

// Option configures a Factory.
type Option func(*Factory)

func WithLogger(logger *zap.Logger) Option {
	return func(f *Factory) { f.logger = logger }
}

// WithClock replaces time.Now for audit stamps.
func WithClock(clock func() time.Time) Option {
	return func(f *Factory) { f.clock = clock }
}

// WithCommitHook registers hook on every unit of work the factory creates.
func WithCommitHook(hook CommitHook) Option {
	return func(f *Factory) { f.hooks = append(f.hooks, hook) }
}

func NewFactory(driver storage.Driver, opts ...Option) *Factory {
	f := &Factory{driver: driver, clock: time.Now, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// New returns a fresh, idle unit of work.
func (f *Factory) New() *UnitOfWork {
	hooks := append([]CommitHook(nil), f.hooks...)
	return newUnitOfWork(f.driver, f.clock, f.logger, hooks)
}

// Driver returns the underlying store.
func (f *Factory) Driver() storage.Driver {
	return f.driver
}
