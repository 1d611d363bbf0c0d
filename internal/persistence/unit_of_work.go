package persistence

import (
	"context"
	"fmt"
	"time"

	"catalog-core/internal/domain"
	"catalog-core/internal/storage"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// State is the transaction state of a unit of work.
type State int

const (
	Idle State = iota
	InTransaction
	Committed
	RolledBack
)

func (s State) String() string {
	switch s {
	case InTransaction:
		return "in_transaction"
	case Committed:
		return "committed"
	case RolledBack:
		return "rolled_back"
	}
	return "idle"
}

// Change describes one write made durable by a commit.
type Change struct {
	Collection string     `json:"collection"`
	ID         uuid.UUID  `json:"id"`
	Op         EntryState `json:"-"`
	Actor      *string    `json:"actor,omitempty"`
	At         time.Time  `json:"at"`
}

// CommitHook runs after changes are committed.
type CommitHook func(ctx context.Context, changes []Change)

// UnitOfWork tracks entity changes for one logical operation and writes them
// atomically. It is not safe for concurrent use; create one per request.
type UnitOfWork struct {
	driver  storage.Driver
	tx      storage.Tx
	state   State
	tracker *tracker
	repos   map[*storage.Schema]any
	// flushed holds changes written into the open transaction but not yet committed.
	flushed []Change
	hooks   []CommitHook
	clock   func() time.Time
	logger  *zap.Logger
}

func newUnitOfWork(driver storage.Driver, clock func() time.Time, logger *zap.Logger, hooks []CommitHook) *UnitOfWork {
	return &UnitOfWork{
		driver:  driver,
		tracker: newTracker(),
		repos:   make(map[*storage.Schema]any),
		hooks:   hooks,
		clock:   clock,
		logger:  logger,
	}
}

// State returns the current transaction state.
func (u *UnitOfWork) State() State {
	return u.state
}

// OnCommitted registers fn to run after every successful commit.
func (u *UnitOfWork) OnCommitted(fn CommitHook) {
	u.hooks = append(u.hooks, fn)
}

func (u *UnitOfWork) Categories() *Repository[*domain.Category] { return For(u, CategoryTable) }
func (u *UnitOfWork) Products() *Repository[*domain.Product]    { return For(u, ProductTable) }
func (u *UnitOfWork) Tags() *Repository[*domain.Tag]            { return For(u, TagTable) }
func (u *UnitOfWork) ProductTags() *Repository[*domain.ProductTag] {
	return For(u, ProductTagTable)
}

func (u *UnitOfWork) reader() storage.Reader {
	if u.state == InTransaction {
		return u.tx
	}
	return u.driver
}

func (u *UnitOfWork) transition(to State) {
	u.logger.Debug("unit of work state changed",
		zap.Stringer("from", u.state),
		zap.Stringer("to", to),
	)
	u.state = to
}

// HasChanges reports whether any change is staged.
func (u *UnitOfWork) HasChanges() bool {
	return len(u.tracker.pending()) > 0
}

// BeginTransaction opens a transaction. Calling it again while one is open
// does nothing.
func (u *UnitOfWork) BeginTransaction(ctx context.Context) error {
	if u.state == InTransaction {
		return nil
	}
	tx, err := u.driver.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	u.tx = tx
	u.transition(InTransaction)
	return nil
}

// SaveChanges writes the staged changes and returns how many entities were
// written. With no open transaction the changes are committed in a
// transaction of their own; a failure then leaves them staged for another
// attempt. Inside an explicit transaction a failure rolls it back.
func (u *UnitOfWork) SaveChanges(ctx context.Context) (int, error) {
	if u.state == InTransaction {
		changes, err := u.flush(ctx)
		if err != nil {
			u.abort(ctx)
			return 0, err
		}
		u.flushed = append(u.flushed, changes...)
		return len(changes), nil
	}

	if !u.HasChanges() {
		return 0, nil
	}
	tx, err := u.driver.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	u.tx = tx
	u.state = InTransaction

	changes, err := u.flushStaged(ctx)
	if err == nil {
		err = ctx.Err()
		if err == nil {
			if cerr := tx.Commit(ctx); cerr != nil {
				err = fmt.Errorf("%w: %w", domain.ErrCommitFailed, cerr)
			}
		} else {
			err = fmt.Errorf("%w: %w", domain.ErrCommitFailed, err)
		}
	}
	if err != nil {
		u.rollbackTx(ctx)
		u.tx = nil
		u.state = Idle
		return 0, err
	}

	u.tx = nil
	u.state = Idle
	u.accept()
	u.logger.Debug("changes saved", zap.Int("count", len(changes)))
	u.notify(ctx, changes)
	return len(changes), nil
}

// Commit writes the staged changes and commits the open transaction. With no
// open transaction one is started first. On any failure the transaction is
// rolled back and every tracked entity is detached.
func (u *UnitOfWork) Commit(ctx context.Context) error {
	if err := u.BeginTransaction(ctx); err != nil {
		return err
	}

	changes, err := u.flush(ctx)
	if err != nil {
		u.abort(ctx)
		return err
	}
	if err := ctx.Err(); err != nil {
		u.abort(ctx)
		return fmt.Errorf("%w: %w", domain.ErrCommitFailed, err)
	}
	if err := u.tx.Commit(ctx); err != nil {
		u.abort(ctx)
		return fmt.Errorf("%w: %w", domain.ErrCommitFailed, err)
	}

	committed := append(u.flushed, changes...)
	u.flushed = nil
	u.tx = nil
	u.transition(Committed)
	u.transition(Idle)
	u.logger.Info("Transaction committed", zap.Int("changes", len(committed)))
	u.notify(ctx, committed)
	return nil
}

// Rollback discards staged changes and detaches every tracked entity,
// rolling back the open transaction if there is one.
func (u *UnitOfWork) Rollback(ctx context.Context) error {
	var err error
	if u.state == InTransaction {
		err = u.tx.Rollback(context.WithoutCancel(ctx))
		u.tx = nil
		u.transition(RolledBack)
		u.transition(Idle)
	}
	u.reset()
	if err != nil {
		return fmt.Errorf("failed to roll back: %w", err)
	}
	return nil
}

// flush writes staged changes into the open transaction and accepts them.
func (u *UnitOfWork) flush(ctx context.Context) ([]Change, error) {
	changes, err := u.flushStaged(ctx)
	if err != nil {
		return nil, err
	}
	u.accept()
	return changes, nil
}

func (u *UnitOfWork) flushStaged(ctx context.Context) ([]Change, error) {
	pending := u.tracker.pending()
	if len(pending) == 0 {
		return nil, nil
	}
	now := u.clock().UTC().Truncate(time.Millisecond)
	changes := make([]Change, 0, len(pending))

	for _, en := range pending {
		id := en.entity.Key()
		switch en.state {
		case Added:
			stamp(en, now)
			if err := u.tx.Insert(ctx, en.schema, en.entity); err != nil {
				return nil, err
			}
		case Modified:
			stamp(en, now)
			n, err := u.tx.Update(ctx, en.schema, en.entity)
			if err != nil {
				return nil, err
			}
			if n == 0 {
				return nil, fmt.Errorf("%w: %s %s was removed concurrently", domain.ErrNotFound, en.schema.Collection, id)
			}
		case Deleted:
			n, err := u.tx.Delete(ctx, en.schema, id)
			if err != nil {
				return nil, err
			}
			if n == 0 {
				return nil, fmt.Errorf("%w: %s %s was removed concurrently", domain.ErrNotFound, en.schema.Collection, id)
			}
		}
		at := now
		if en.state != Deleted {
			at = *en.entity.Base().ModifiedAt
		}
		changes = append(changes, Change{
			Collection: en.schema.Collection,
			ID:         id,
			Op:         en.state,
			Actor:      cloneString(en.actor),
			At:         at,
		})
	}
	return changes, nil
}

// accept marks every staged entry as persisted.
func (u *UnitOfWork) accept() {
	for _, en := range u.tracker.pending() {
		if en.state == Deleted {
			u.tracker.detach(en.schema, en.entity.Key())
			continue
		}
		en.original = snapshot(en.entity)
		en.actor = nil
		en.state = Unchanged
	}
}

func (u *UnitOfWork) abort(ctx context.Context) {
	u.rollbackTx(ctx)
	u.tx = nil
	u.transition(RolledBack)
	u.transition(Idle)
	u.reset()
}

// rollbackTx rolls back with a context that survives cancellation of ctx.
// Its failure is logged so the error that caused it stays the one returned.
func (u *UnitOfWork) rollbackTx(ctx context.Context) {
	if u.tx == nil {
		return
	}
	if err := u.tx.Rollback(context.WithoutCancel(ctx)); err != nil {
		u.logger.Error("Failed to roll back transaction",
			zap.String("driver", u.driver.Name()),
			zap.Error(err),
		)
	}
}

func (u *UnitOfWork) reset() {
	u.tracker.clear()
	u.flushed = nil
}

func (u *UnitOfWork) notify(ctx context.Context, changes []Change) {
	if len(changes) == 0 {
		return
	}
	for _, hook := range u.hooks {
		hook(context.WithoutCancel(ctx), changes)
	}
}

func (u *UnitOfWork) stagedDeletes(schema *storage.Schema) []uuid.UUID {
	var ids []uuid.UUID
	for _, en := range u.tracker.pending() {
		if en.schema == schema && en.state == Deleted {
			ids = append(ids, en.entity.Key())
		}
	}
	return ids
}

func (u *UnitOfWork) stagedAdds(schema *storage.Schema) []Entity {
	var out []Entity
	for _, en := range u.tracker.pending() {
		if en.schema == schema && en.state == Added {
			out = append(out, en.entity)
		}
	}
	return out
}

func (u *UnitOfWork) hasStaged(schema *storage.Schema, match func(Entity) bool) bool {
	for _, en := range u.tracker.pending() {
		if en.schema == schema && (en.state == Added || en.state == Modified) && match(en.entity) {
			return true
		}
	}
	return false
}
