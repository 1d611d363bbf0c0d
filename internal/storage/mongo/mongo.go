// Package mongo stores records as MongoDB documents. Transactions use
// sessions with majority read and write concerns, which needs a replica set.
package mongo

import (
	"context"
	"errors"
	"fmt"

	"catalog-core/internal/domain"
	"catalog-core/internal/specification"
	"catalog-core/internal/storage"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	driver "go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readconcern"
	"go.mongodb.org/mongo-driver/mongo/writeconcern"
	mongodriver "go.mongodb.org/mongo-driver/x/mongo/driver"
	"go.uber.org/zap"
)

// Store is a MongoDB backed storage.Driver.
type Store struct {
	client *driver.Client
	db     *driver.Database
	logger *zap.Logger
}

// New uses database on an already connected client.
func New(client *driver.Client, database string, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{client: client, db: client.Database(database), logger: logger}
}

func (s *Store) Name() string { return "mongo" }

func (s *Store) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx, nil); err != nil {
		return classify(err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.client.Disconnect(context.Background())
}

// EnsureIndexes creates the unique indexes of schemas. Null values are left
// out of each index so optional unique fields behave like SQL.
func (s *Store) EnsureIndexes(ctx context.Context, schemas ...*storage.Schema) error {
	for _, schema := range schemas {
		var models []driver.IndexModel
		for _, u := range schema.Unique {
			keys := bson.D{}
			partial := bson.D{}
			for _, f := range u.Fields {
				keys = append(keys, bson.E{Key: key(f), Value: 1})
				partial = append(partial, bson.E{Key: key(f), Value: bson.D{{Key: "$type", Value: "string"}}})
			}
			models = append(models, driver.IndexModel{
				Keys: keys,
				Options: options.Index().
					SetName(u.Name).
					SetUnique(true).
					SetPartialFilterExpression(partial),
			})
		}
		if len(models) == 0 {
			continue
		}
		if _, err := s.db.Collection(schema.Collection).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("failed to create indexes on %s: %w", schema.Collection, classify(err))
		}
		s.logger.Info("Ensured indexes", zap.String("collection", schema.Collection), zap.Int("count", len(models)))
	}
	return nil
}

func (s *Store) Find(ctx context.Context, schema *storage.Schema, q specification.Query) ([]storage.Record, error) {
	return find(ctx, s.db, schema, q)
}

func (s *Store) Count(ctx context.Context, schema *storage.Schema, where *specification.Expr) (int, error) {
	return count(ctx, s.db, schema, where)
}

func (s *Store) Begin(ctx context.Context) (storage.Tx, error) {
	session, err := s.client.StartSession()
	if err != nil {
		return nil, fmt.Errorf("failed to start session: %w", classify(err))
	}
	txOpts := options.Transaction().
		SetReadConcern(readconcern.Majority()).
		SetWriteConcern(writeconcern.Majority())
	if err := session.StartTransaction(txOpts); err != nil {
		session.EndSession(ctx)
		return nil, fmt.Errorf("failed to start transaction: %w", classify(err))
	}
	return &Tx{session: session, db: s.db, logger: s.logger}, nil
}

// Tx is a MongoDB multi-document transaction.
type Tx struct {
	session driver.Session
	db      *driver.Database
	logger  *zap.Logger
	done    bool
}

func (t *Tx) ctx(ctx context.Context) context.Context {
	return driver.NewSessionContext(ctx, t.session)
}

func (t *Tx) Find(ctx context.Context, schema *storage.Schema, q specification.Query) ([]storage.Record, error) {
	return find(t.ctx(ctx), t.db, schema, q)
}

func (t *Tx) Count(ctx context.Context, schema *storage.Schema, where *specification.Expr) (int, error) {
	return count(t.ctx(ctx), t.db, schema, where)
}

func (t *Tx) Insert(ctx context.Context, schema *storage.Schema, r storage.Record) error {
	doc, err := toDocument(schema, r, schema.Columns)
	if err != nil {
		return err
	}
	if _, err := t.db.Collection(schema.Collection).InsertOne(t.ctx(ctx), doc); err != nil {
		return fmt.Errorf("failed to insert into %s: %w", schema.Collection, classify(err))
	}
	return nil
}

func (t *Tx) Update(ctx context.Context, schema *storage.Schema, r storage.Record) (int, error) {
	set, err := toDocument(schema, r, schema.Mutable())
	if err != nil {
		return 0, err
	}
	res, err := t.db.Collection(schema.Collection).UpdateOne(t.ctx(ctx),
		bson.D{{Key: "_id", Value: r.Key().String()}},
		bson.D{{Key: "$set", Value: set}},
	)
	if err != nil {
		return 0, fmt.Errorf("failed to update %s: %w", schema.Collection, classify(err))
	}
	return int(res.MatchedCount), nil
}

func (t *Tx) Delete(ctx context.Context, schema *storage.Schema, id uuid.UUID) (int, error) {
	res, err := t.db.Collection(schema.Collection).DeleteOne(t.ctx(ctx), bson.D{{Key: "_id", Value: id.String()}})
	if err != nil {
		return 0, fmt.Errorf("failed to delete from %s: %w", schema.Collection, classify(err))
	}
	return int(res.DeletedCount), nil
}

func (t *Tx) Commit(ctx context.Context) error {
	if t.done {
		return fmt.Errorf("%w: transaction already finished", domain.ErrInvalidOperation)
	}
	if err := t.session.CommitTransaction(ctx); err != nil {
		return classify(err)
	}
	t.done = true
	t.session.EndSession(ctx)
	return nil
}

func (t *Tx) Rollback(ctx context.Context) error {
	if t.done {
		return nil
	}
	t.done = true
	defer t.session.EndSession(ctx)
	if err := t.session.AbortTransaction(ctx); err != nil {
		return classify(err)
	}
	return nil
}

func find(ctx context.Context, db *driver.Database, schema *storage.Schema, q specification.Query) ([]storage.Record, error) {
	if err := schema.CheckQuery(q); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrInvalidSpecification, err)
	}
	f, err := filter(q.Where)
	if err != nil {
		return nil, err
	}
	opts := options.Find()
	if len(q.Order) > 0 {
		opts.SetSort(sortDoc(q.Order))
	}
	if q.Skip > 0 {
		opts.SetSkip(int64(q.Skip))
	}
	if q.Take > 0 {
		opts.SetLimit(int64(q.Take))
	}

	cur, err := db.Collection(schema.Collection).Find(ctx, f, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", schema.Collection, classify(err))
	}
	defer cur.Close(ctx)

	var out []storage.Record
	for cur.Next(ctx) {
		r, err := decode(schema, cur.Current)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", schema.Collection, classify(err))
	}
	return out, nil
}

func count(ctx context.Context, db *driver.Database, schema *storage.Schema, where *specification.Expr) (int, error) {
	if err := schema.CheckExpr(where); err != nil {
		return 0, fmt.Errorf("%w: %w", domain.ErrInvalidSpecification, err)
	}
	f, err := filter(where)
	if err != nil {
		return 0, err
	}
	n, err := db.Collection(schema.Collection).CountDocuments(ctx, f)
	if err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", schema.Collection, classify(err))
	}
	return int(n), nil
}

// classify maps driver errors onto the domain error taxonomy.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if driver.IsDuplicateKeyError(err) {
		return fmt.Errorf("%w: %w", domain.ErrConflict, err)
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) ||
		driver.IsNetworkError(err) || driver.IsTimeout(err) {
		return fmt.Errorf("%w: %w", domain.ErrTransientStorage, err)
	}
	var labeled interface{ HasErrorLabel(string) bool }
	if errors.As(err, &labeled) &&
		(labeled.HasErrorLabel(mongodriver.TransientTransactionError) || labeled.HasErrorLabel("RetryableWriteError")) {
		return fmt.Errorf("%w: %w", domain.ErrTransientStorage, err)
	}
	return err
}
