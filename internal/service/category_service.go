package service

import (
	"context"
	"fmt"
	"strings"

	"catalog-core/internal/catalog"
	"catalog-core/internal/domain"
	"catalog-core/internal/hierarchy"
	"catalog-core/internal/persistence"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CategoryInput carries the editable fields of a category. The parent is only
// read on create; use Move afterwards.
type CategoryInput struct {
	Name         string
	Description  *string
	ImageURL     *string
	ParentID     *uuid.UUID
	DisplayOrder int
}

// CategoryService defines the category use cases
type CategoryService interface {
	Create(ctx context.Context, in CategoryInput) (*domain.Category, error)
	Get(ctx context.Context, id uuid.UUID) (*domain.Category, error)
	Update(ctx context.Context, id uuid.UUID, in CategoryInput) (*domain.Category, error)
	Delete(ctx context.Context, id uuid.UUID) error
	Move(ctx context.Context, id uuid.UUID, parentID *uuid.UUID) error
	Tree(ctx context.Context, rootID *uuid.UUID) ([]*hierarchy.Node, error)
	Path(ctx context.Context, id uuid.UUID) ([]*domain.Category, error)
	ProductCount(ctx context.Context, id uuid.UUID, includeDescendants bool) (int, error)
}

type categoryService struct {
	base
}

// NewCategoryService creates a new instance of CategoryService
func NewCategoryService(d Deps) CategoryService {
	return &categoryService{base: newBase(d)}
}

func (s *categoryService) checkName(ctx context.Context, uow *persistence.UnitOfWork, name string, except *uuid.UUID) error {
	taken, err := uow.Categories().Any(ctx, catalog.CategoryNameTaken(name, except))
	if err != nil {
		return err
	}
	if taken {
		return fmt.Errorf("%w: category name %q is already used", domain.ErrConflict, strings.TrimSpace(name))
	}
	return nil
}

// Create adds a category under an existing parent, or as a main category.
func (s *categoryService) Create(ctx context.Context, in CategoryInput) (*domain.Category, error) {
	var created *domain.Category
	err := s.write(ctx, func(ctx context.Context, uow *persistence.UnitOfWork) error {
		c, err := domain.NewCategory(in.Name, in.ParentID, in.DisplayOrder)
		if err != nil {
			return err
		}
		c.Describe(in.Description, in.ImageURL)

		if err := s.checkName(ctx, uow, c.Name, nil); err != nil {
			return err
		}
		if in.ParentID != nil {
			if _, err := getCategory(ctx, uow, *in.ParentID); err != nil {
				return err
			}
		}
		if err := uow.Categories().Add(ctx, c); err != nil {
			return err
		}
		created = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("Category created", zap.String("category_id", created.ID.String()))
	return created, nil
}

// Get returns a category with its parent and direct children.
func (s *categoryService) Get(ctx context.Context, id uuid.UUID) (*domain.Category, error) {
	var c *domain.Category
	err := s.run(ctx, func(ctx context.Context, uow *persistence.UnitOfWork) error {
		found, ok, err := uow.Categories().FirstOrDefault(ctx, catalog.CategoryWithRelatives(id))
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: category %s", domain.ErrNotFound, id)
		}
		c = found
		return nil
	})
	return c, err
}

// Update replaces the name, description, image and display order.
func (s *categoryService) Update(ctx context.Context, id uuid.UUID, in CategoryInput) (*domain.Category, error) {
	var c *domain.Category
	err := s.write(ctx, func(ctx context.Context, uow *persistence.UnitOfWork) error {
		found, err := getCategory(ctx, uow, id)
		if err != nil {
			return err
		}
		if err := s.checkName(ctx, uow, in.Name, &id); err != nil {
			return err
		}
		if err := found.Rename(in.Name); err != nil {
			return err
		}
		if err := found.SetDisplayOrder(in.DisplayOrder); err != nil {
			return err
		}
		found.Describe(in.Description, in.ImageURL)
		c = found
		return uow.Categories().Update(ctx, found)
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

// Delete removes a category without products or children.
func (s *categoryService) Delete(ctx context.Context, id uuid.UUID) error {
	err := s.write(ctx, func(ctx context.Context, uow *persistence.UnitOfWork) error {
		c, err := getCategory(ctx, uow, id)
		if err != nil {
			return err
		}
		return uow.Categories().Remove(ctx, c)
	})
	if err != nil {
		return err
	}
	s.logger.Info("Category deleted", zap.String("category_id", id.String()))
	return nil
}

// Move re-parents a category, refusing cycles.
func (s *categoryService) Move(ctx context.Context, id uuid.UUID, parentID *uuid.UUID) error {
	return s.run(ctx, func(ctx context.Context, uow *persistence.UnitOfWork) error {
		return hierarchy.NewEngine(uow, s.logger).Move(ctx, id, parentID)
	})
}

// Tree returns the ordered category forest, or one subtree.
func (s *categoryService) Tree(ctx context.Context, rootID *uuid.UUID) ([]*hierarchy.Node, error) {
	var nodes []*hierarchy.Node
	err := s.run(ctx, func(ctx context.Context, uow *persistence.UnitOfWork) error {
		var err error
		nodes, err = hierarchy.NewEngine(uow, s.logger).Tree(ctx, rootID)
		return err
	})
	return nodes, err
}

// Path returns the breadcrumb from the root down to id.
func (s *categoryService) Path(ctx context.Context, id uuid.UUID) ([]*domain.Category, error) {
	var path []*domain.Category
	err := s.run(ctx, func(ctx context.Context, uow *persistence.UnitOfWork) error {
		var err error
		path, err = hierarchy.NewEngine(uow, s.logger).Path(ctx, id)
		return err
	})
	return path, err
}

// ProductCount counts the products filed under id.
func (s *categoryService) ProductCount(ctx context.Context, id uuid.UUID, includeDescendants bool) (int, error) {
	var n int
	err := s.run(ctx, func(ctx context.Context, uow *persistence.UnitOfWork) error {
		var err error
		n, err = hierarchy.NewEngine(uow, s.logger).ProductCount(ctx, id, includeDescendants)
		return err
	})
	return n, err
}
