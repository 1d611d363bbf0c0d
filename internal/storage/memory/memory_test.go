package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"catalog-core/internal/domain"
	"catalog-core/internal/specification"
	"catalog-core/internal/storage"
)

var tagSchema = &storage.Schema{
	Collection: "tags",
	Columns:    domain.TagColumns,
	Immutable:  []string{domain.FieldID, domain.FieldCreatedAt, domain.FieldCreatedBy},
	Unique:     []storage.UniqueKey{{Name: "tags_name_key", Fields: []string{domain.FieldName}}},
	New:        func() storage.Record { return &domain.Tag{} },
	Clone:      func(r storage.Record) storage.Record { return r.(*domain.Tag).Clone() },
}

func newTag(t *testing.T, name string) *domain.Tag {
	t.Helper()
	tag, err := domain.NewTag(name, 0)
	if err != nil {
		t.Fatalf("NewTag() error = %v", err)
	}
	tag.CreatedAt = time.Now().UTC()
	return tag
}

func TestTx_WritesInvisibleUntilCommit(t *testing.T) {
	ctx := context.Background()
	store := New(nil)

	tx, err := store.Begin(ctx)
	if err != nil {
		t.Fatalf("Begin() error = %v", err)
	}
	tag := newTag(t, "Vegan")
	if err := tx.Insert(ctx, tagSchema, tag); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}

	if n, _ := tx.Count(ctx, tagSchema, nil); n != 1 {
		t.Errorf("tx Count() = %d, want 1", n)
	}
	if n, _ := store.Count(ctx, tagSchema, nil); n != 0 {
		t.Errorf("store Count() before commit = %d, want 0", n)
	}

	if err := tx.Commit(ctx); err != nil {
		t.Fatalf("Commit() error = %v", err)
	}
	if n, _ := store.Count(ctx, tagSchema, nil); n != 1 {
		t.Errorf("store Count() after commit = %d, want 1", n)
	}
}

func TestTx_RollbackDiscards(t *testing.T) {
	ctx := context.Background()
	store := New(nil)
	tx, _ := store.Begin(ctx)
	_ = tx.Insert(ctx, tagSchema, newTag(t, "Spicy"))
	if err := tx.Rollback(ctx); err != nil {
		t.Fatalf("Rollback() error = %v", err)
	}
	if n, _ := store.Count(ctx, tagSchema, nil); n != 0 {
		t.Errorf("Count() = %d, want 0", n)
	}
	if err := tx.Insert(ctx, tagSchema, newTag(t, "Late")); !errors.Is(err, domain.ErrInvalidOperation) {
		t.Errorf("Insert() after rollback error = %v", err)
	}
}

func TestTx_UniqueKeyOnWrite(t *testing.T) {
	ctx := context.Background()
	store := New(nil)
	tx, _ := store.Begin(ctx)
	if err := tx.Insert(ctx, tagSchema, newTag(t, "Hot")); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}
	if err := tx.Insert(ctx, tagSchema, newTag(t, "Hot")); !errors.Is(err, domain.ErrConflict) {
		t.Errorf("duplicate Insert() error = %v, want ErrConflict", err)
	}
}

func TestTx_UniqueKeyAtCommit(t *testing.T) {
	ctx := context.Background()
	store := New(nil)

	first, _ := store.Begin(ctx)
	second, _ := store.Begin(ctx)
	if err := first.Insert(ctx, tagSchema, newTag(t, "Hot")); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}
	if err := second.Insert(ctx, tagSchema, newTag(t, "Hot")); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}
	if err := first.Commit(ctx); err != nil {
		t.Fatalf("Commit() error = %v", err)
	}
	if err := second.Commit(ctx); !errors.Is(err, domain.ErrConflict) {
		t.Errorf("second Commit() error = %v, want ErrConflict", err)
	}
	if n, _ := store.Count(ctx, tagSchema, nil); n != 1 {
		t.Errorf("Count() = %d, want 1", n)
	}
}

func TestTx_UpdateKeepsImmutableColumns(t *testing.T) {
	ctx := context.Background()
	store := New(nil)
	tag := newTag(t, "Original")
	created := tag.CreatedAt

	tx, _ := store.Begin(ctx)
	_ = tx.Insert(ctx, tagSchema, tag)
	_ = tx.Commit(ctx)

	changed := tag.Clone()
	changed.Name = "Renamed"
	changed.CreatedAt = created.Add(time.Hour)

	tx, _ = store.Begin(ctx)
	n, err := tx.Update(ctx, tagSchema, changed)
	if err != nil || n != 1 {
		t.Fatalf("Update() = %d, %v", n, err)
	}
	_ = tx.Commit(ctx)

	got, _ := store.Find(ctx, tagSchema, specification.Query{Where: specification.Eq(domain.FieldID, tag.ID)})
	if len(got) != 1 {
		t.Fatalf("Find() returned %d records", len(got))
	}
	stored := got[0].(*domain.Tag)
	if stored.Name != "Renamed" {
		t.Errorf("Name = %q, want Renamed", stored.Name)
	}
	if !stored.CreatedAt.Equal(created) {
		t.Errorf("CreatedAt = %v, want %v", stored.CreatedAt, created)
	}
}

func TestTx_UpdateAndDeleteMissing(t *testing.T) {
	ctx := context.Background()
	tx, _ := New(nil).Begin(ctx)
	tag := newTag(t, "Ghost")
	if n, err := tx.Update(ctx, tagSchema, tag); n != 0 || err != nil {
		t.Errorf("Update() = %d, %v", n, err)
	}
	if n, err := tx.Delete(ctx, tagSchema, tag.ID); n != 0 || err != nil {
		t.Errorf("Delete() = %d, %v", n, err)
	}
}

func TestStore_FindReturnsCopies(t *testing.T) {
	ctx := context.Background()
	store := New(nil)
	tag := newTag(t, "Copy")
	tx, _ := store.Begin(ctx)
	_ = tx.Insert(ctx, tagSchema, tag)
	_ = tx.Commit(ctx)

	tag.Name = "Mutated"
	got, _ := store.Find(ctx, tagSchema, specification.Query{})
	if got[0].(*domain.Tag).Name != "Copy" {
		t.Error("store shares memory with the caller")
	}
}

func TestStore_RejectsUnknownField(t *testing.T) {
	_, err := New(nil).Find(context.Background(), tagSchema, specification.Query{Where: specification.Eq("price", 1)})
	if !errors.Is(err, domain.ErrInvalidSpecification) {
		t.Errorf("Find() error = %v", err)
	}
}
