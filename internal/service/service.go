// Package service implements the catalog use cases on top of units of work.
package service

import (
	"context"
	"fmt"
	"time"

	"catalog-core/internal/domain"
	"catalog-core/internal/persistence"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Runner executes fn, possibly more than once. resilience.Policy satisfies it.
type Runner interface {
	Do(ctx context.Context, fn func(ctx context.Context) error) error
}

type direct struct{}

func (direct) Do(ctx context.Context, fn func(ctx context.Context) error) error { return fn(ctx) }

// Deps are shared by every service.
type Deps struct {
	Factory *persistence.Factory
	Runner  Runner
	Logger  *zap.Logger
}

type base struct {
	factory *persistence.Factory
	runner  Runner
	logger  *zap.Logger
	now     func() time.Time
}

func newBase(d Deps) base {
	b := base{factory: d.Factory, runner: d.Runner, logger: d.Logger, now: time.Now}
	if b.runner == nil {
		b.runner = direct{}
	}
	if b.logger == nil {
		b.logger = zap.NewNop()
	}
	return b
}

// run gives every attempt a fresh unit of work and rolls it back on failure.
func (b base) run(ctx context.Context, fn func(ctx context.Context, uow *persistence.UnitOfWork) error) error {
	return b.runner.Do(ctx, func(ctx context.Context) error {
		uow := b.factory.New()
		if err := fn(ctx, uow); err != nil {
			if uow.State() == persistence.InTransaction {
				if rerr := uow.Rollback(ctx); rerr != nil {
					b.logger.Error("Failed to roll back unit of work", zap.Error(rerr))
				}
			}
			return err
		}
		return nil
	})
}

// write runs fn inside a transaction and commits it.
func (b base) write(ctx context.Context, fn func(ctx context.Context, uow *persistence.UnitOfWork) error) error {
	return b.run(ctx, func(ctx context.Context, uow *persistence.UnitOfWork) error {
		if err := uow.BeginTransaction(ctx); err != nil {
			return err
		}
		if err := fn(ctx, uow); err != nil {
			return err
		}
		return uow.Commit(ctx)
	})
}

func getCategory(ctx context.Context, uow *persistence.UnitOfWork, id uuid.UUID) (*domain.Category, error) {
	c, ok, err := uow.Categories().GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: category %s", domain.ErrNotFound, id)
	}
	return c, nil
}

func getProduct(ctx context.Context, uow *persistence.UnitOfWork, id uuid.UUID) (*domain.Product, error) {
	p, ok, err := uow.Products().GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: product %s", domain.ErrNotFound, id)
	}
	return p, nil
}

func getTag(ctx context.Context, uow *persistence.UnitOfWork, id uuid.UUID) (*domain.Tag, error) {
	t, ok, err := uow.Tags().GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: tag %s", domain.ErrNotFound, id)
	}
	return t, nil
}
