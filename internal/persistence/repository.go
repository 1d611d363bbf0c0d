package persistence

import (
	"context"
	"fmt"

	"catalog-core/internal/domain"
	"catalog-core/internal/specification"

	"github.com/google/uuid"
)

// defaultOrder keeps paging stable when a spec names no order.
var defaultOrder = []specification.Order{specification.Desc(domain.FieldCreatedAt), specification.Asc(domain.FieldID)}

// Repository reads entities of one table and stages their changes on the
// owning unit of work. Reads run inside the open transaction when there is
// one. Writes reach the store on SaveChanges or Commit.
type Repository[T Entity] struct {
	uow   *UnitOfWork
	table *Table[T]
}

// Paged is one page of results with the total number of matches.
type Paged[T any] struct {
	Items []T `json:"items"`
	Total int `json:"total"`
	Skip  int `json:"skip"`
	Take  int `json:"take"`
}

// For returns the repository of table on u, creating it on first use.
func For[T Entity](u *UnitOfWork, table *Table[T]) *Repository[T] {
	if r, ok := u.repos[table.Schema]; ok {
		return r.(*Repository[T])
	}
	r := &Repository[T]{uow: u, table: table}
	u.repos[table.Schema] = r
	return r
}

// GetByID returns the entity with id. Absence is reported by ok, not an error.
func (r *Repository[T]) GetByID(ctx context.Context, id uuid.UUID) (T, bool, error) {
	var zero T
	if en := r.uow.tracker.get(r.table.Schema, id); en != nil {
		if en.state == Deleted {
			return zero, false, nil
		}
		return en.entity.(T), true, nil
	}
	items, err := r.query(ctx, specification.Query{Where: specification.Eq(domain.FieldID, id), Take: 1})
	if err != nil {
		return zero, false, err
	}
	if len(items) == 0 {
		return zero, false, nil
	}
	return items[0], true, nil
}

// List returns the entities matching spec. A nil spec lists everything.
func (r *Repository[T]) List(ctx context.Context, spec *specification.Spec[T]) ([]T, error) {
	q, err := specification.Evaluate(specification.Query{Order: defaultOrder}, spec)
	if err != nil {
		return nil, err
	}
	return r.query(ctx, q)
}

// FirstOrDefault returns the first entity matching spec.
func (r *Repository[T]) FirstOrDefault(ctx context.Context, spec *specification.Spec[T]) (T, bool, error) {
	var zero T
	q, err := specification.Evaluate(specification.Query{Order: defaultOrder}, spec)
	if err != nil {
		return zero, false, err
	}
	q.Take = 1
	items, err := r.query(ctx, q)
	if err != nil || len(items) == 0 {
		return zero, false, err
	}
	return items[0], true, nil
}

// Count returns how many entities match the criteria of spec. Paging is ignored.
func (r *Repository[T]) Count(ctx context.Context, spec *specification.Spec[T]) (int, error) {
	if spec == nil {
		return r.CountWhere(ctx, nil)
	}
	if err := spec.Validate(); err != nil {
		return 0, err
	}
	return r.CountWhere(ctx, spec.Criteria)
}

// CountWhere returns how many entities match e.
func (r *Repository[T]) CountWhere(ctx context.Context, e *specification.Expr) (int, error) {
	if err := e.Validate(); err != nil {
		return 0, fmt.Errorf("%w: %w", domain.ErrInvalidSpecification, err)
	}
	n, err := r.uow.reader().Count(ctx, r.table.Schema, e)
	if err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", r.table.Schema.Collection, err)
	}
	return n, nil
}

// Any reports whether some entity matches e.
func (r *Repository[T]) Any(ctx context.Context, e *specification.Expr) (bool, error) {
	if err := e.Validate(); err != nil {
		return false, fmt.Errorf("%w: %w", domain.ErrInvalidSpecification, err)
	}
	recs, err := r.uow.reader().Find(ctx, r.table.Schema, specification.Query{Where: e, Take: 1})
	if err != nil {
		return false, fmt.Errorf("failed to query %s: %w", r.table.Schema.Collection, err)
	}
	return len(recs) > 0, nil
}

// Page returns the window of spec together with the total match count.
func (r *Repository[T]) Page(ctx context.Context, spec *specification.Spec[T]) (Paged[T], error) {
	q, err := specification.Evaluate(specification.Query{Order: defaultOrder}, spec)
	if err != nil {
		return Paged[T]{}, err
	}
	items, err := r.query(ctx, q)
	if err != nil {
		return Paged[T]{}, err
	}
	total, err := r.CountWhere(ctx, q.Where)
	if err != nil {
		return Paged[T]{}, err
	}
	if items == nil {
		items = []T{}
	}
	return Paged[T]{Items: items, Total: total, Skip: q.Skip, Take: q.Take}, nil
}

// ListAs lists the entities of p.Spec and maps them through p.Select.
func ListAs[T Entity, R any](ctx context.Context, r *Repository[T], p specification.Projection[T, R]) ([]R, error) {
	items, err := r.List(ctx, p.Spec)
	if err != nil {
		return nil, err
	}
	return p.Map(items), nil
}

// FirstAs maps the first entity of p.Spec through p.Select.
func FirstAs[T Entity, R any](ctx context.Context, r *Repository[T], p specification.Projection[T, R]) (R, bool, error) {
	var zero R
	item, ok, err := r.FirstOrDefault(ctx, p.Spec)
	if err != nil || !ok {
		return zero, false, err
	}
	return p.Select(item), true, nil
}

// query runs q, resolves identities against the tracker and loads includes.
func (r *Repository[T]) query(ctx context.Context, q specification.Query) ([]T, error) {
	for _, inc := range q.Includes {
		if !r.table.Supports(inc) {
			return nil, fmt.Errorf("%w: %s has no include %q", domain.ErrInvalidSpecification, r.table.Schema.Collection, inc)
		}
	}

	recs, err := r.uow.reader().Find(ctx, r.table.Schema, q)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", r.table.Schema.Collection, err)
	}

	items := make([]T, 0, len(recs))
	for _, rec := range recs {
		if en := r.uow.tracker.get(r.table.Schema, rec.Key()); en != nil {
			items = append(items, en.entity.(T))
			continue
		}
		item := rec.(T)
		r.uow.tracker.attach(r.table.Schema, item, Unchanged, snapshot(item), nil)
		items = append(items, item)
	}

	if len(items) == 0 {
		return items, nil
	}
	for _, inc := range q.Includes {
		if err := r.table.loaders[inc](ctx, r.uow, items); err != nil {
			return nil, fmt.Errorf("failed to load %s of %s: %w", inc, r.table.Schema.Collection, err)
		}
	}
	return items, nil
}

// Add stages entity for insertion.
func (r *Repository[T]) Add(ctx context.Context, entity T) error {
	if err := entity.Validate(); err != nil {
		return err
	}
	if en := r.uow.tracker.get(r.table.Schema, entity.Key()); en != nil {
		if en.state == Deleted && en.entity == Entity(entity) {
			r.uow.tracker.mark(en, Modified, actorPtr(ctx))
			return nil
		}
		return fmt.Errorf("%w: %s %s is already tracked", domain.ErrInvalidOperation, r.table.Schema.Collection, entity.Key())
	}
	r.uow.tracker.attach(r.table.Schema, entity, Added, domain.Entity{}, actorPtr(ctx))
	return nil
}

// AddRange stages every entity for insertion. Nothing is staged if one fails validation.
func (r *Repository[T]) AddRange(ctx context.Context, entities ...T) error {
	for _, e := range entities {
		if err := e.Validate(); err != nil {
			return err
		}
	}
	for _, e := range entities {
		if err := r.Add(ctx, e); err != nil {
			return err
		}
	}
	return nil
}

// Update stages entity for update. An entity that is not tracked is attached
// using its stored audit fields; it must exist.
func (r *Repository[T]) Update(ctx context.Context, entity T) error {
	if err := entity.Validate(); err != nil {
		return err
	}
	schema := r.table.Schema
	if en := r.uow.tracker.get(schema, entity.Key()); en != nil {
		if en.entity != Entity(entity) {
			return fmt.Errorf("%w: another instance of %s %s is tracked", domain.ErrInvalidOperation, schema.Collection, entity.Key())
		}
		switch en.state {
		case Deleted:
			return fmt.Errorf("%w: %s %s is staged for removal", domain.ErrInvalidOperation, schema.Collection, entity.Key())
		case Added:
			en.actor = actorPtr(ctx)
		default:
			r.uow.tracker.mark(en, Modified, actorPtr(ctx))
		}
		return nil
	}

	stored, err := r.stored(ctx, entity.Key())
	if err != nil {
		return err
	}
	r.uow.tracker.attach(schema, entity, Modified, snapshot(stored), actorPtr(ctx))
	return nil
}

// Remove stages entity for removal. Removing an entity that was only staged
// for insertion forgets it.
func (r *Repository[T]) Remove(ctx context.Context, entity T) error {
	schema := r.table.Schema
	en := r.uow.tracker.get(schema, entity.Key())
	if en != nil && en.state == Deleted {
		return nil
	}

	var original domain.Entity
	if en == nil {
		stored, err := r.stored(ctx, entity.Key())
		if err != nil {
			return err
		}
		original = snapshot(stored)
	}
	if r.table.beforeRemove != nil {
		if err := r.table.beforeRemove(ctx, r.uow, entity); err != nil {
			return err
		}
	}

	switch {
	case en == nil:
		r.uow.tracker.attach(schema, entity, Deleted, original, actorPtr(ctx))
	case en.state == Added:
		r.uow.tracker.detach(schema, entity.Key())
	default:
		r.uow.tracker.mark(en, Deleted, actorPtr(ctx))
	}
	return nil
}

// RemoveRange stages every entity for removal.
func (r *Repository[T]) RemoveRange(ctx context.Context, entities ...T) error {
	for _, e := range entities {
		if err := r.Remove(ctx, e); err != nil {
			return err
		}
	}
	return nil
}

func (r *Repository[T]) stored(ctx context.Context, id uuid.UUID) (T, error) {
	recs, err := r.uow.reader().Find(ctx, r.table.Schema, specification.Query{Where: specification.Eq(domain.FieldID, id), Take: 1})
	if err != nil {
		var zero T
		return zero, fmt.Errorf("failed to query %s: %w", r.table.Schema.Collection, err)
	}
	if len(recs) == 0 {
		var zero T
		return zero, fmt.Errorf("%w: %s %s", domain.ErrNotFound, r.table.Schema.Collection, id)
	}
	return recs[0].(T), nil
}
