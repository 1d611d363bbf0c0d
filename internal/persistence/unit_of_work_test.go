package persistence

import (
	"context"
	"errors"
	"testing"
	"time"

	"catalog-core/internal/domain"
	"catalog-core/internal/specification"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestUnitOfWork_StateTransitions(t *testing.T) {
	f, _, _ := newTestFactory()
	ctx := context.Background()
	u := f.New()

	if u.State() != Idle {
		t.Fatalf("State() = %v, want idle", u.State())
	}
	if err := u.BeginTransaction(ctx); err != nil {
		t.Fatalf("BeginTransaction() error = %v", err)
	}
	if err := u.BeginTransaction(ctx); err != nil {
		t.Fatalf("second BeginTransaction() error = %v", err)
	}
	if u.State() != InTransaction {
		t.Fatalf("State() = %v, want in_transaction", u.State())
	}
	if err := u.Commit(ctx); err != nil {
		t.Fatalf("Commit() error = %v", err)
	}
	if u.State() != Idle {
		t.Errorf("State() after commit = %v, want idle", u.State())
	}
}

func TestUnitOfWork_CommitIsAtomic(t *testing.T) {
	f, store, _ := newTestFactory()
	ctx := context.Background()
	u := f.New()

	if err := u.BeginTransaction(ctx); err != nil {
		t.Fatalf("BeginTransaction() error = %v", err)
	}
	first := mustCategory(t, "Desserts", nil, 0)
	second := mustCategory(t, "Desserts", nil, 1)
	_ = u.Categories().Add(ctx, first)
	_ = u.Categories().Add(ctx, second)

	err := u.Commit(ctx)
	if !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("Commit() error = %v, want ErrConflict", err)
	}
	if n, _ := store.Count(ctx, CategoryTable.Schema, nil); n != 0 {
		t.Errorf("store holds %d categories after failed commit, want 0", n)
	}
	if u.State() != Idle || u.HasChanges() {
		t.Errorf("after failed commit: state=%v changes=%v", u.State(), u.HasChanges())
	}
}

func TestUnitOfWork_CommitFailureWrapsCause(t *testing.T) {
	base, _, _ := newTestFactory()
	driver := &faultyDriver{Driver: base.Driver(), failCommit: true, failRollback: true}

	core, logs := observer.New(zap.ErrorLevel)
	f := NewFactory(driver, WithLogger(zap.New(core)))
	ctx := context.Background()
	u := f.New()

	_ = u.Categories().Add(ctx, mustCategory(t, "Soups", nil, 0))
	err := u.Commit(ctx)
	if !errors.Is(err, domain.ErrCommitFailed) || !errors.Is(err, errInjected) {
		t.Fatalf("Commit() error = %v, want ErrCommitFailed wrapping the cause", err)
	}
	if driver.rollbacks != 1 {
		t.Errorf("rollbacks = %d, want 1", driver.rollbacks)
	}
	if logs.FilterMessage("Failed to roll back transaction").Len() != 1 {
		t.Error("rollback failure was not logged")
	}
}

func TestUnitOfWork_CancelledCommitRollsBack(t *testing.T) {
	f, store, _ := newTestFactory()
	ctx, cancel := context.WithCancel(context.Background())
	u := f.New()

	if err := u.BeginTransaction(ctx); err != nil {
		t.Fatalf("BeginTransaction() error = %v", err)
	}
	_ = u.Categories().Add(ctx, mustCategory(t, "Late", nil, 0))
	if _, err := u.SaveChanges(ctx); err != nil {
		t.Fatalf("SaveChanges() error = %v", err)
	}
	cancel()

	if err := u.Commit(ctx); !errors.Is(err, domain.ErrCommitFailed) {
		t.Fatalf("Commit() error = %v, want ErrCommitFailed", err)
	}
	if n, _ := store.Count(context.Background(), CategoryTable.Schema, nil); n != 0 {
		t.Errorf("store holds %d categories, want 0", n)
	}
}

func TestUnitOfWork_RollbackDiscardsChanges(t *testing.T) {
	f, store, _ := newTestFactory()
	ctx := context.Background()
	u := f.New()

	_ = u.BeginTransaction(ctx)
	c := mustCategory(t, "Salads", nil, 0)
	_ = u.Categories().Add(ctx, c)
	if _, err := u.SaveChanges(ctx); err != nil {
		t.Fatalf("SaveChanges() error = %v", err)
	}
	if err := u.Rollback(ctx); err != nil {
		t.Fatalf("Rollback() error = %v", err)
	}

	if n, _ := store.Count(ctx, CategoryTable.Schema, nil); n != 0 {
		t.Errorf("store holds %d categories after rollback", n)
	}
	if _, ok, _ := u.Categories().GetByID(ctx, c.ID); ok {
		t.Error("rolled back category is still visible")
	}
}

func TestUnitOfWork_ImplicitSaveFailureKeepsChanges(t *testing.T) {
	f, _, _ := newTestFactory()
	ctx := context.Background()
	seedCategory(t, f, "Drinks", nil)

	u := f.New()
	dup := mustCategory(t, "Drinks", nil, 0)
	_ = u.Categories().Add(ctx, dup)
	if _, err := u.SaveChanges(ctx); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("SaveChanges() error = %v, want ErrConflict", err)
	}
	if !u.HasChanges() {
		t.Fatal("failed implicit save dropped the staged changes")
	}

	_ = dup.Rename("Cold Drinks")
	n, err := u.SaveChanges(ctx)
	if err != nil || n != 1 {
		t.Fatalf("retry SaveChanges() = %d, %v", n, err)
	}
}

func TestUnitOfWork_ReadsSeeOpenTransaction(t *testing.T) {
	f, _, _ := newTestFactory()
	ctx := context.Background()
	u := f.New()
	_ = u.BeginTransaction(ctx)
	_ = u.Categories().Add(ctx, mustCategory(t, "Pasta", nil, 0))
	_, _ = u.SaveChanges(ctx)

	if n, _ := u.Categories().CountWhere(ctx, nil); n != 1 {
		t.Errorf("count inside transaction = %d, want 1", n)
	}
	other := f.New()
	if n, _ := other.Categories().CountWhere(ctx, nil); n != 0 {
		t.Errorf("count outside transaction = %d, want 0", n)
	}
	_ = u.Rollback(ctx)
}

func TestUnitOfWork_CommitHooks(t *testing.T) {
	var got []Change
	f, _, clock := newTestFactory(WithCommitHook(func(_ context.Context, changes []Change) {
		got = append(got, changes...)
	}))
	ctx := WithActor(context.Background(), "editor")
	u := f.New()

	_ = u.BeginTransaction(ctx)
	c := mustCategory(t, "Grill", nil, 0)
	_ = u.Categories().Add(ctx, c)
	_, _ = u.SaveChanges(ctx)
	if len(got) != 0 {
		t.Fatal("hook ran before commit")
	}
	clock.Advance(time.Second)
	_ = c.Rename("Barbecue")
	_ = u.Categories().Update(ctx, c)
	if err := u.Commit(ctx); err != nil {
		t.Fatalf("Commit() error = %v", err)
	}

	if len(got) != 2 {
		t.Fatalf("hook received %d changes, want 2", len(got))
	}
	if got[0].Op != Added || got[1].Op != Modified || got[0].ID != c.ID {
		t.Errorf("changes = %+v", got)
	}
	if got[1].Actor == nil || *got[1].Actor != "editor" {
		t.Errorf("actor = %v", got[1].Actor)
	}
}

func TestFor_CachesRepositories(t *testing.T) {
	f, _, _ := newTestFactory()
	u := f.New()
	if For(u, ProductTable) != u.Products() {
		t.Error("For() returned a new repository for the same table")
	}
	if f.New().Products() == u.Products() {
		t.Error("repositories are shared between units of work")
	}
}

func TestRepository_UnknownInclude(t *testing.T) {
	f, _, _ := newTestFactory()
	seedCategory(t, f, "Any", nil)
	spec := specification.MustNew[*domain.Category](specification.Including(IncludeTags))
	if _, err := f.New().Categories().List(context.Background(), spec); !errors.Is(err, domain.ErrInvalidSpecification) {
		t.Errorf("List() error = %v, want ErrInvalidSpecification", err)
	}
}
