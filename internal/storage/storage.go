// Package storage defines the contract between the unit of work and the
// concrete stores. A store only moves flat records; includes, change
// tracking and auditing live above it.
package storage

import (
	"context"
	"fmt"
	"reflect"
	"slices"

	"catalog-core/internal/specification"

	"github.com/google/uuid"
)

// Record is a persisted row or document.
type Record interface {
	specification.Record
	Key() uuid.UUID
	// Targets returns pointers to the record fields in Schema.Columns order.
	Targets() []any
}

// UniqueKey is a set of fields whose combined value must be unique. Records
// with a null in any of the fields are not constrained.
type UniqueKey struct {
	Name   string
	Fields []string
}

// Schema describes how a record type is stored.
type Schema struct {
	Collection string
	Columns    []string
	// Immutable columns are written on insert only.
	Immutable []string
	Unique    []UniqueKey
	New       func() Record
	Clone     func(Record) Record
}

// Mutable returns the columns an update writes.
func (s *Schema) Mutable() []string {
	out := make([]string, 0, len(s.Columns))
	for _, c := range s.Columns {
		if !slices.Contains(s.Immutable, c) {
			out = append(out, c)
		}
	}
	return out
}

// HasColumn reports whether field is stored.
func (s *Schema) HasColumn(field string) bool {
	return slices.Contains(s.Columns, field)
}

// CheckQuery rejects filters and orderings on unknown fields.
func (s *Schema) CheckQuery(q specification.Query) error {
	if err := s.CheckExpr(q.Where); err != nil {
		return err
	}
	for _, o := range q.Order {
		if !s.HasColumn(o.Field) {
			return fmt.Errorf("unknown order field %q on %s", o.Field, s.Collection)
		}
	}
	return nil
}

// CheckExpr rejects filters on unknown fields.
func (s *Schema) CheckExpr(e *specification.Expr) error {
	var err error
	e.Walk(func(n *specification.Expr) {
		if err == nil && n.Field != "" && !s.HasColumn(n.Field) {
			err = fmt.Errorf("unknown field %q on %s", n.Field, s.Collection)
		}
	})
	return err
}

// CopyColumns copies the named columns from src into dst. Both records must
// belong to s.
func (s *Schema) CopyColumns(dst, src Record, columns []string) {
	dt, st := dst.Targets(), src.Targets()
	for _, c := range columns {
		i := slices.Index(s.Columns, c)
		if i < 0 {
			continue
		}
		reflect.ValueOf(dt[i]).Elem().Set(reflect.ValueOf(st[i]).Elem())
	}
}

// Reader runs queries.
type Reader interface {
	Find(ctx context.Context, s *Schema, q specification.Query) ([]Record, error)
	Count(ctx context.Context, s *Schema, where *specification.Expr) (int, error)
}

// Tx is an open transaction. Reads observe the transaction's own writes.
// Update and Delete return the number of affected records.
type Tx interface {
	Reader
	Insert(ctx context.Context, s *Schema, r Record) error
	Update(ctx context.Context, s *Schema, r Record) (int, error)
	Delete(ctx context.Context, s *Schema, id uuid.UUID) (int, error)
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Driver is a store. Reads outside a transaction see committed data only.
type Driver interface {
	Reader
	Begin(ctx context.Context) (Tx, error)
	Ping(ctx context.Context) error
	Close() error
	Name() string
}
