package persistence

import (
	"context"

	"catalog-core/internal/domain"
	"catalog-core/internal/specification"
	"catalog-core/internal/storage"
)

// Entity is a domain type the unit of work can track.
type Entity interface {
	storage.Record
	Base() *domain.Entity
	Validate() error
}

// Loader fills a navigation property on items.
type Loader[T Entity] func(ctx context.Context, u *UnitOfWork, items []T) error

// Table binds an entity type to its storage schema, its include loaders and
// the checks run before one of its entities is removed.
type Table[T Entity] struct {
	Schema       *storage.Schema
	loaders      map[specification.Include]Loader[T]
	beforeRemove func(ctx context.Context, u *UnitOfWork, entity T) error
}

func newTable[T Entity](collection string, columns []string, unique ...storage.UniqueKey) *Table[T] {
	return &Table[T]{
		Schema: &storage.Schema{
			Collection: collection,
			Columns:    columns,
			Immutable:  []string{domain.FieldID, domain.FieldCreatedAt, domain.FieldCreatedBy},
			Unique:     unique,
		},
		loaders: make(map[specification.Include]Loader[T]),
	}
}

// Supports reports whether inc can be loaded for T.
func (t *Table[T]) Supports(inc specification.Include) bool {
	_, ok := t.loaders[inc]
	return ok
}
