// Package postgres stores records in PostgreSQL through pgx. Transactions run
// at read committed isolation via go-transaction-manager.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"catalog-core/internal/domain"
	"catalog-core/internal/specification"
	"catalog-core/internal/storage"

	transaction "github.com/avito-tech/go-transaction-manager/drivers/pgxv5/v2"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Store is a PostgreSQL backed storage.Driver.
type Store struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// New wraps an open pool. The pool is closed by Close.
func New(pool *pgxpool.Pool, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{pool: pool, logger: logger}
}

func (s *Store) Name() string { return "postgres" }

func (s *Store) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return classify(err)
	}
	return nil
}

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

func (s *Store) Find(ctx context.Context, schema *storage.Schema, q specification.Query) ([]storage.Record, error) {
	return find(ctx, s.pool, s.logger, schema, q)
}

func (s *Store) Count(ctx context.Context, schema *storage.Schema, where *specification.Expr) (int, error) {
	return count(ctx, s.pool, schema, where)
}

func (s *Store) Begin(ctx context.Context) (storage.Tx, error) {
	_, tr, err := transaction.NewTransaction(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, s.pool)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", classify(err))
	}
	pgxTx, ok := tr.Transaction().(pgx.Tx)
	if !ok {
		_ = tr.Rollback(ctx)
		return nil, fmt.Errorf("unexpected transaction type %T", tr.Transaction())
	}
	return &Tx{tr: tr, tx: pgxTx, logger: s.logger}, nil
}

// Tx is an open PostgreSQL transaction.
type Tx struct {
	tr     *transaction.Transaction
	tx     pgx.Tx
	logger *zap.Logger
}

func (t *Tx) Find(ctx context.Context, schema *storage.Schema, q specification.Query) ([]storage.Record, error) {
	return find(ctx, t.tx, t.logger, schema, q)
}

func (t *Tx) Count(ctx context.Context, schema *storage.Schema, where *specification.Expr) (int, error) {
	return count(ctx, t.tx, schema, where)
}

func (t *Tx) Insert(ctx context.Context, schema *storage.Schema, r storage.Record) error {
	sql, args := insertSQL(schema, r)
	if _, err := t.tx.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("failed to insert into %s: %w", schema.Collection, classify(err))
	}
	return nil
}

func (t *Tx) Update(ctx context.Context, schema *storage.Schema, r storage.Record) (int, error) {
	sql, args := updateSQL(schema, r)
	tag, err := t.tx.Exec(ctx, sql, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to update %s: %w", schema.Collection, classify(err))
	}
	return int(tag.RowsAffected()), nil
}

func (t *Tx) Delete(ctx context.Context, schema *storage.Schema, id uuid.UUID) (int, error) {
	sql, args := deleteSQL(schema, id)
	tag, err := t.tx.Exec(ctx, sql, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to delete from %s: %w", schema.Collection, classify(err))
	}
	return int(tag.RowsAffected()), nil
}

func (t *Tx) Commit(ctx context.Context) error {
	if err := t.tr.Commit(ctx); err != nil {
		return classify(err)
	}
	return nil
}

func (t *Tx) Rollback(ctx context.Context) error {
	if !t.tr.IsActive() {
		return nil
	}
	if err := t.tr.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return classify(err)
	}
	return nil
}

func find(ctx context.Context, q querier, logger *zap.Logger, schema *storage.Schema, query specification.Query) ([]storage.Record, error) {
	if err := schema.CheckQuery(query); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrInvalidSpecification, err)
	}
	sql, args := selectSQL(schema, query)
	logger.Debug("postgres query", zap.String("sql", sql), zap.Int("args", len(args)))

	rows, err := q.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", schema.Collection, classify(err))
	}
	defer rows.Close()

	var out []storage.Record
	for rows.Next() {
		r := schema.New()
		if err := rows.Scan(r.Targets()...); err != nil {
			return nil, fmt.Errorf("failed to scan %s: %w", schema.Collection, classify(err))
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", schema.Collection, classify(err))
	}
	return out, nil
}

func count(ctx context.Context, q querier, schema *storage.Schema, where *specification.Expr) (int, error) {
	if err := schema.CheckExpr(where); err != nil {
		return 0, fmt.Errorf("%w: %w", domain.ErrInvalidSpecification, err)
	}
	sql, args := countSQL(schema, where)
	var n int64
	if err := q.QueryRow(ctx, sql, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", schema.Collection, classify(err))
	}
	return int(n), nil
}
