// Package memory is an in-process store used by tests and the memory driver.
// Transactions buffer their writes and apply them atomically on commit;
// reads inside a transaction see committed data merged with its own writes.
package memory

import (
	"bytes"
	"context"
	"fmt"
	"slices"
	"sync"

	"catalog-core/internal/domain"
	"catalog-core/internal/specification"
	"catalog-core/internal/storage"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type opKind int

const (
	opInsert opKind = iota
	opUpdate
	opDelete
)

type write struct {
	kind   opKind
	schema *storage.Schema
	record storage.Record
}

type table map[uuid.UUID]storage.Record

// Store keeps committed records per collection.
type Store struct {
	mu     sync.RWMutex
	data   map[string]table
	logger *zap.Logger
	closed bool
}

// New creates an empty store.
func New(logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{data: make(map[string]table), logger: logger}
}

func (s *Store) Name() string { return "memory" }

func (s *Store) Ping(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return fmt.Errorf("%w: store closed", domain.ErrTransientStorage)
	}
	return ctx.Err()
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *Store) Find(ctx context.Context, schema *storage.Schema, q specification.Query) ([]storage.Record, error) {
	return s.find(ctx, schema, q, nil)
}

func (s *Store) Count(ctx context.Context, schema *storage.Schema, where *specification.Expr) (int, error) {
	return s.count(ctx, schema, where, nil)
}

func (s *Store) Begin(ctx context.Context) (storage.Tx, error) {
	if err := s.Ping(ctx); err != nil {
		return nil, err
	}
	return &Tx{store: s, writes: make(map[string]map[uuid.UUID]*write)}, nil
}

// view returns clones of the committed records of schema merged with the
// pending writes, ordered by id.
func (s *Store) view(schema *storage.Schema, pending map[uuid.UUID]*write) []storage.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []storage.Record
	for id, r := range s.data[schema.Collection] {
		if _, ok := pending[id]; ok {
			continue
		}
		out = append(out, schema.Clone(r))
	}
	for _, w := range pending {
		if w.kind != opDelete {
			out = append(out, schema.Clone(w.record))
		}
	}
	slices.SortFunc(out, func(a, b storage.Record) int {
		ak, bk := a.Key(), b.Key()
		return bytes.Compare(ak[:], bk[:])
	})
	return out
}

func (s *Store) find(ctx context.Context, schema *storage.Schema, q specification.Query, pending map[uuid.UUID]*write) ([]storage.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrTransientStorage, err)
	}
	if err := schema.CheckQuery(q); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrInvalidSpecification, err)
	}
	return specification.Apply(s.view(schema, pending), q), nil
}

func (s *Store) count(ctx context.Context, schema *storage.Schema, where *specification.Expr, pending map[uuid.UUID]*write) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, fmt.Errorf("%w: %w", domain.ErrTransientStorage, err)
	}
	if err := schema.CheckExpr(where); err != nil {
		return 0, fmt.Errorf("%w: %w", domain.ErrInvalidSpecification, err)
	}
	return len(specification.Filter(s.view(schema, pending), where)), nil
}

// Tx is a buffered transaction. It must not be shared between goroutines.
type Tx struct {
	store  *Store
	writes map[string]map[uuid.UUID]*write
	done   bool
}

func (tx *Tx) pending(schema *storage.Schema) map[uuid.UUID]*write {
	p, ok := tx.writes[schema.Collection]
	if !ok {
		p = make(map[uuid.UUID]*write)
		tx.writes[schema.Collection] = p
	}
	return p
}

func (tx *Tx) active() error {
	if tx.done {
		return fmt.Errorf("%w: transaction already finished", domain.ErrInvalidOperation)
	}
	return nil
}

func (tx *Tx) Find(ctx context.Context, schema *storage.Schema, q specification.Query) ([]storage.Record, error) {
	if err := tx.active(); err != nil {
		return nil, err
	}
	return tx.store.find(ctx, schema, q, tx.writes[schema.Collection])
}

func (tx *Tx) Count(ctx context.Context, schema *storage.Schema, where *specification.Expr) (int, error) {
	if err := tx.active(); err != nil {
		return 0, err
	}
	return tx.store.count(ctx, schema, where, tx.writes[schema.Collection])
}

func (tx *Tx) lookup(schema *storage.Schema, id uuid.UUID) storage.Record {
	if w, ok := tx.writes[schema.Collection][id]; ok {
		if w.kind == opDelete {
			return nil
		}
		return w.record
	}
	tx.store.mu.RLock()
	defer tx.store.mu.RUnlock()
	return tx.store.data[schema.Collection][id]
}

func (tx *Tx) Insert(ctx context.Context, schema *storage.Schema, r storage.Record) error {
	if err := tx.active(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrTransientStorage, err)
	}
	if tx.lookup(schema, r.Key()) != nil {
		return fmt.Errorf("%w: %s %s already exists", domain.ErrConflict, schema.Collection, r.Key())
	}
	rec := schema.Clone(r)
	if err := checkUnique(schema, rec, tx.store.view(schema, tx.writes[schema.Collection])); err != nil {
		return err
	}
	kind := opInsert
	if prev, ok := tx.pending(schema)[r.Key()]; ok && prev.kind == opDelete {
		kind = opUpdate
	}
	tx.pending(schema)[r.Key()] = &write{kind: kind, schema: schema, record: rec}
	return nil
}

func (tx *Tx) Update(ctx context.Context, schema *storage.Schema, r storage.Record) (int, error) {
	if err := tx.active(); err != nil {
		return 0, err
	}
	if err := ctx.Err(); err != nil {
		return 0, fmt.Errorf("%w: %w", domain.ErrTransientStorage, err)
	}
	current := tx.lookup(schema, r.Key())
	if current == nil {
		return 0, nil
	}
	rec := schema.Clone(r)
	schema.CopyColumns(rec, current, schema.Immutable)
	if err := checkUnique(schema, rec, tx.store.view(schema, tx.writes[schema.Collection])); err != nil {
		return 0, err
	}
	kind := opUpdate
	if prev, ok := tx.pending(schema)[r.Key()]; ok && prev.kind == opInsert {
		kind = opInsert
	}
	tx.pending(schema)[r.Key()] = &write{kind: kind, schema: schema, record: rec}
	return 1, nil
}

func (tx *Tx) Delete(ctx context.Context, schema *storage.Schema, id uuid.UUID) (int, error) {
	if err := tx.active(); err != nil {
		return 0, err
	}
	if err := ctx.Err(); err != nil {
		return 0, fmt.Errorf("%w: %w", domain.ErrTransientStorage, err)
	}
	if tx.lookup(schema, id) == nil {
		return 0, nil
	}
	p := tx.pending(schema)
	if prev, ok := p[id]; ok && prev.kind == opInsert {
		delete(p, id)
		return 1, nil
	}
	p[id] = &write{kind: opDelete, schema: schema}
	return 1, nil
}

// Commit applies every buffered write or none. Unique keys are checked again
// against the committed state, which may have moved since the writes were
// buffered.
func (tx *Tx) Commit(ctx context.Context) error {
	if err := tx.active(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrTransientStorage, err)
	}

	s := tx.store
	s.mu.Lock()
	defer s.mu.Unlock()

	next := make(map[string]table, len(tx.writes))
	for collection, writes := range tx.writes {
		t := make(table, len(s.data[collection])+len(writes))
		for id, r := range s.data[collection] {
			t[id] = r
		}
		for id, w := range writes {
			switch w.kind {
			case opInsert:
				if _, exists := t[id]; exists {
					return fmt.Errorf("%w: %s %s already exists", domain.ErrConflict, collection, id)
				}
				t[id] = w.record
			case opUpdate:
				if _, exists := t[id]; exists {
					t[id] = w.record
				}
			case opDelete:
				delete(t, id)
			}
		}
		next[collection] = t
	}

	for collection, writes := range tx.writes {
		all := make([]storage.Record, 0, len(next[collection]))
		for _, r := range next[collection] {
			all = append(all, r)
		}
		for _, w := range writes {
			if w.kind == opDelete {
				continue
			}
			if err := checkUnique(w.schema, w.record, all); err != nil {
				return err
			}
		}
	}

	for collection, t := range next {
		s.data[collection] = t
	}
	tx.done = true
	s.logger.Debug("memory transaction committed", zap.Int("collections", len(next)))
	return nil
}

func (tx *Tx) Rollback(ctx context.Context) error {
	if tx.done {
		return nil
	}
	tx.done = true
	tx.writes = nil
	return nil
}

// checkUnique reports a conflict when another record in all shares a unique
// key with r.
func checkUnique(schema *storage.Schema, r storage.Record, all []storage.Record) error {
	for _, key := range schema.Unique {
		values := make([]any, len(key.Fields))
		skip := false
		for i, f := range key.Fields {
			values[i] = specification.Normalize(r.Value(f))
			if values[i] == nil {
				skip = true
			}
		}
		if skip {
			continue
		}
		clauses := make([]*specification.Expr, len(key.Fields))
		for i, f := range key.Fields {
			clauses[i] = specification.Eq(f, values[i])
		}
		match := specification.And(clauses...)
		for _, other := range all {
			if other.Key() != r.Key() && match.Matches(other) {
				return fmt.Errorf("%w: %s violates %s", domain.ErrConflict, schema.Collection, key.Name)
			}
		}
	}
	return nil
}
