package hierarchy

import (
	"context"
	"fmt"

	"catalog-core/internal/domain"
	"catalog-core/internal/persistence"
	"catalog-core/internal/specification"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Engine runs hierarchy operations through a unit of work. Every answer is
// computed from the store on each call.
type Engine struct {
	uow    *persistence.UnitOfWork
	logger *zap.Logger
}

func NewEngine(uow *persistence.UnitOfWork, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{uow: uow, logger: logger}
}

// Snapshot loads every category.
func (e *Engine) Snapshot(ctx context.Context) ([]*domain.Category, error) {
	return e.uow.Categories().List(ctx, nil)
}

// Tree returns the ordered forest, or the subtree at rootID when given.
func (e *Engine) Tree(ctx context.Context, rootID *uuid.UUID) ([]*Node, error) {
	categories, err := e.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return BuildTree(categories, rootID)
}

func (e *Engine) require(ctx context.Context, id uuid.UUID) (*domain.Category, error) {
	c, ok, err := e.uow.Categories().GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: category %s", domain.ErrNotFound, id)
	}
	return c, nil
}

// walkDown visits the descendants of id one level at a time, querying the
// store with the stored parent ids. visit returning false stops the walk.
func (e *Engine) walkDown(ctx context.Context, id uuid.UUID, visit func(uuid.UUID) bool) error {
	repo := e.uow.Categories()
	seen := map[uuid.UUID]bool{id: true}
	frontier := []uuid.UUID{id}
	for len(frontier) > 0 {
		level, err := repo.List(ctx, specification.MustNew[*domain.Category](
			specification.Where(specification.In(domain.FieldParentCategoryID, frontier)),
		))
		if err != nil {
			return err
		}
		frontier = frontier[:0]
		for _, c := range level {
			if seen[c.ID] {
				return fmt.Errorf("%w: category %s reached twice below %s", domain.ErrHierarchyCorrupted, c.ID, id)
			}
			seen[c.ID] = true
			if !visit(c.ID) {
				return nil
			}
			frontier = append(frontier, c.ID)
		}
	}
	return nil
}

// DescendantIDs returns every category below id, nearest levels first.
func (e *Engine) DescendantIDs(ctx context.Context, id uuid.UUID) ([]uuid.UUID, error) {
	if _, err := e.require(ctx, id); err != nil {
		return nil, err
	}
	var out []uuid.UUID
	err := e.walkDown(ctx, id, func(d uuid.UUID) bool {
		out = append(out, d)
		return true
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Path returns the categories from the root down to id inclusive.
func (e *Engine) Path(ctx context.Context, id uuid.UUID) ([]*domain.Category, error) {
	current, err := e.require(ctx, id)
	if err != nil {
		return nil, err
	}
	path := []*domain.Category{current}
	seen := map[uuid.UUID]bool{id: true}
	for current.ParentCategoryID != nil {
		parentID := *current.ParentCategoryID
		if seen[parentID] {
			return nil, fmt.Errorf("%w: category %s is its own ancestor", domain.ErrHierarchyCorrupted, parentID)
		}
		seen[parentID] = true
		parent, ok, err := e.uow.Categories().GetByID(ctx, parentID)
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		path = append(path, parent)
		current = parent
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path, nil
}

// AncestorIDs returns the ids above id, root first.
func (e *Engine) AncestorIDs(ctx context.Context, id uuid.UUID) ([]uuid.UUID, error) {
	path, err := e.Path(ctx, id)
	if err != nil {
		return nil, err
	}
	ids := make([]uuid.UUID, 0, len(path)-1)
	for _, c := range path[:len(path)-1] {
		ids = append(ids, c.ID)
	}
	return ids, nil
}

// Depth is the number of ancestors of id.
func (e *Engine) Depth(ctx context.Context, id uuid.UUID) (int, error) {
	ids, err := e.AncestorIDs(ctx, id)
	return len(ids), err
}

// ProductCount counts the products in id, and in every category below it
// when includeDescendants is set.
func (e *Engine) ProductCount(ctx context.Context, id uuid.UUID, includeDescendants bool) (int, error) {
	if _, err := e.require(ctx, id); err != nil {
		return 0, err
	}
	ids := []uuid.UUID{id}
	if includeDescendants {
		err := e.walkDown(ctx, id, func(d uuid.UUID) bool {
			ids = append(ids, d)
			return true
		})
		if err != nil {
			return 0, err
		}
	}
	return e.uow.Products().CountWhere(ctx, specification.In(domain.FieldCategoryID, ids))
}

// Move re-parents category id under newParentID, or makes it a main category
// when newParentID is nil. It joins the open transaction if there is one and
// otherwise commits the unit of work. A rejected move leaves the unit of work
// as it was, including changes the caller staged before.
func (e *Engine) Move(ctx context.Context, id uuid.UUID, newParentID *uuid.UUID) error {
	if err := e.move(ctx, id, newParentID); err != nil {
		return err
	}
	if e.uow.State() == persistence.InTransaction {
		_, err := e.uow.SaveChanges(ctx)
		return err
	}
	return e.uow.Commit(ctx)
}

func (e *Engine) move(ctx context.Context, id uuid.UUID, newParentID *uuid.UUID) error {
	category, err := e.require(ctx, id)
	if err != nil {
		return err
	}

	if newParentID != nil {
		if *newParentID == id {
			return fmt.Errorf("%w: category %s cannot be its own parent", domain.ErrInvalidOperation, id)
		}
		exists, err := e.uow.Categories().Any(ctx, specification.Eq(domain.FieldID, *newParentID))
		if err != nil {
			return err
		}
		if !exists {
			return fmt.Errorf("%w: parent category %s", domain.ErrNotFound, *newParentID)
		}

		cycle := false
		err = e.walkDown(ctx, id, func(d uuid.UUID) bool {
			cycle = d == *newParentID
			return !cycle
		})
		if err != nil {
			return err
		}
		if cycle {
			return fmt.Errorf("%w: category %s is below %s", domain.ErrInvalidOperation, *newParentID, id)
		}
	}

	current := category.ParentCategoryID
	if (current == nil && newParentID == nil) || (current != nil && newParentID != nil && *current == *newParentID) {
		return nil
	}

	if err := category.SetParent(newParentID); err != nil {
		return err
	}
	if err := e.uow.Categories().Update(ctx, category); err != nil {
		return err
	}
	e.logger.Info("Category moved",
		zap.String("category_id", id.String()),
		zap.Any("parent_id", newParentID),
	)
	return nil
}
