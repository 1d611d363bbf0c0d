package persistence

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"catalog-core/internal/domain"
	"catalog-core/internal/storage"
	"catalog-core/internal/storage/memory"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// fakeClock returns a fixed instant until advanced.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestFactory(opts ...Option) (*Factory, *memory.Store, *fakeClock) {
	store := memory.New(nil)
	clock := newFakeClock()
	opts = append([]Option{WithClock(clock.Now)}, opts...)
	return NewFactory(store, opts...), store, clock
}

func mustCategory(t *testing.T, name string, parent *uuid.UUID, order int) *domain.Category {
	t.Helper()
	c, err := domain.NewCategory(name, parent, order)
	if err != nil {
		t.Fatalf("NewCategory(%q) error = %v", name, err)
	}
	return c
}

func mustProduct(t *testing.T, name string, categoryID uuid.UUID, sku string) *domain.Product {
	t.Helper()
	params := domain.ProductParams{Name: name, Price: decimal.NewFromInt(10), CategoryID: categoryID}
	if sku != "" {
		params.Sku = &sku
	}
	p, err := domain.NewProduct(params)
	if err != nil {
		t.Fatalf("NewProduct(%q) error = %v", name, err)
	}
	return p
}

// seedCategory commits a category and returns it.
func seedCategory(t *testing.T, f *Factory, name string, parent *uuid.UUID) *domain.Category {
	t.Helper()
	ctx := context.Background()
	u := f.New()
	c := mustCategory(t, name, parent, 0)
	if err := u.Categories().Add(ctx, c); err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	if _, err := u.SaveChanges(ctx); err != nil {
		t.Fatalf("SaveChanges() error = %v", err)
	}
	return c
}

var errInjected = errors.New("injected failure")

// faultyDriver wraps a store and fails selected transaction calls.
type faultyDriver struct {
	storage.Driver
	failCommit   bool
	failRollback bool
	rollbacks    int
}

func (d *faultyDriver) Begin(ctx context.Context) (storage.Tx, error) {
	tx, err := d.Driver.Begin(ctx)
	if err != nil {
		return nil, err
	}
	return &faultyTx{Tx: tx, driver: d}, nil
}

type faultyTx struct {
	storage.Tx
	driver *faultyDriver
}

func (t *faultyTx) Commit(ctx context.Context) error {
	if t.driver.failCommit {
		return errInjected
	}
	return t.Tx.Commit(ctx)
}

func (t *faultyTx) Rollback(ctx context.Context) error {
	t.driver.rollbacks++
	if err := t.Tx.Rollback(ctx); err != nil {
		return err
	}
	if t.driver.failRollback {
		return errors.New("rollback failed")
	}
	return nil
}
