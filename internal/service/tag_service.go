package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"catalog-core/internal/catalog"
	"catalog-core/internal/domain"
	"catalog-core/internal/persistence"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Assignment describes how a tag is attached to a product.
type Assignment struct {
	DisplayOrder int
	IsFeatured   bool
	StartDate    *time.Time
	EndDate      *time.Time
}

// TagService defines the tag use cases
type TagService interface {
	Create(ctx context.Context, name string, displayOrder int) (*domain.Tag, error)
	List(ctx context.Context, activeOnly bool) ([]*domain.Tag, error)
	Rename(ctx context.Context, id uuid.UUID, name string) (*domain.Tag, error)
	SetActive(ctx context.Context, id uuid.UUID, active bool) (*domain.Tag, error)
	Delete(ctx context.Context, id uuid.UUID) error
	Assign(ctx context.Context, productID, tagID uuid.UUID, a Assignment) (*domain.ProductTag, error)
	Unassign(ctx context.Context, productID, tagID uuid.UUID) error
	ActiveTags(ctx context.Context, productID uuid.UUID) ([]*domain.Tag, error)
}

type tagService struct {
	base
}

// NewTagService creates a new instance of TagService
func NewTagService(d Deps) TagService {
	return &tagService{base: newBase(d)}
}

func checkTagName(ctx context.Context, uow *persistence.UnitOfWork, name string, except *uuid.UUID) error {
	taken, err := uow.Tags().Any(ctx, catalog.TagNameTaken(name, except))
	if err != nil {
		return err
	}
	if taken {
		return fmt.Errorf("%w: tag name %q is already used", domain.ErrConflict, strings.TrimSpace(name))
	}
	return nil
}

// Create adds an active tag with a unique name.
func (s *tagService) Create(ctx context.Context, name string, displayOrder int) (*domain.Tag, error) {
	var created *domain.Tag
	err := s.write(ctx, func(ctx context.Context, uow *persistence.UnitOfWork) error {
		t, err := domain.NewTag(name, displayOrder)
		if err != nil {
			return err
		}
		if err := checkTagName(ctx, uow, t.Name, nil); err != nil {
			return err
		}
		created = t
		return uow.Tags().Add(ctx, t)
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// List returns tags in display order.
func (s *tagService) List(ctx context.Context, activeOnly bool) ([]*domain.Tag, error) {
	var tags []*domain.Tag
	err := s.run(ctx, func(ctx context.Context, uow *persistence.UnitOfWork) error {
		var err error
		if activeOnly {
			tags, err = uow.Tags().List(ctx, catalog.ActiveTags())
		} else {
			tags, err = uow.Tags().List(ctx, catalog.AllTags())
		}
		return err
	})
	return tags, err
}

func (s *tagService) mutate(ctx context.Context, id uuid.UUID, fn func(ctx context.Context, uow *persistence.UnitOfWork, t *domain.Tag) error) (*domain.Tag, error) {
	var t *domain.Tag
	err := s.write(ctx, func(ctx context.Context, uow *persistence.UnitOfWork) error {
		found, err := getTag(ctx, uow, id)
		if err != nil {
			return err
		}
		if err := fn(ctx, uow, found); err != nil {
			return err
		}
		t = found
		return uow.Tags().Update(ctx, found)
	})
	if err != nil {
		return nil, err
	}
	return t, nil
}

// Rename changes the tag name, keeping names unique.
func (s *tagService) Rename(ctx context.Context, id uuid.UUID, name string) (*domain.Tag, error) {
	return s.mutate(ctx, id, func(ctx context.Context, uow *persistence.UnitOfWork, t *domain.Tag) error {
		if err := checkTagName(ctx, uow, name, &id); err != nil {
			return err
		}
		return t.Rename(name)
	})
}

// SetActive activates or deactivates the tag.
func (s *tagService) SetActive(ctx context.Context, id uuid.UUID, active bool) (*domain.Tag, error) {
	return s.mutate(ctx, id, func(ctx context.Context, uow *persistence.UnitOfWork, t *domain.Tag) error {
		if active {
			t.Activate()
		} else {
			t.Deactivate()
		}
		return nil
	})
}

// Delete removes a tag no product uses.
func (s *tagService) Delete(ctx context.Context, id uuid.UUID) error {
	return s.write(ctx, func(ctx context.Context, uow *persistence.UnitOfWork) error {
		t, err := getTag(ctx, uow, id)
		if err != nil {
			return err
		}
		return uow.Tags().Remove(ctx, t)
	})
}

// Assign attaches the tag to the product. A pair can be assigned once.
func (s *tagService) Assign(ctx context.Context, productID, tagID uuid.UUID, a Assignment) (*domain.ProductTag, error) {
	var pt *domain.ProductTag
	err := s.write(ctx, func(ctx context.Context, uow *persistence.UnitOfWork) error {
		if _, err := getProduct(ctx, uow, productID); err != nil {
			return err
		}
		if _, err := getTag(ctx, uow, tagID); err != nil {
			return err
		}
		assigned, err := uow.ProductTags().Any(ctx, catalog.ProductTagPair(productID, tagID))
		if err != nil {
			return err
		}
		if assigned {
			return fmt.Errorf("%w: tag %s is already assigned to product %s", domain.ErrConflict, tagID, productID)
		}

		link, err := domain.NewProductTag(productID, tagID, a.DisplayOrder)
		if err != nil {
			return err
		}
		link.Feature(a.IsFeatured)
		if err := link.SetWindow(a.StartDate, a.EndDate); err != nil {
			return err
		}
		pt = link
		return uow.ProductTags().Add(ctx, link)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Debug("tag assigned",
		zap.String("product_id", productID.String()),
		zap.String("tag_id", tagID.String()),
	)
	return pt, nil
}

// Unassign detaches the tag from the product.
func (s *tagService) Unassign(ctx context.Context, productID, tagID uuid.UUID) error {
	return s.write(ctx, func(ctx context.Context, uow *persistence.UnitOfWork) error {
		link, ok, err := uow.ProductTags().FirstOrDefault(ctx, catalog.ProductTagLink(productID, tagID))
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: tag %s is not assigned to product %s", domain.ErrNotFound, tagID, productID)
		}
		return uow.ProductTags().Remove(ctx, link)
	})
}

// ActiveTags returns the active tags whose assignment window contains now.
func (s *tagService) ActiveTags(ctx context.Context, productID uuid.UUID) ([]*domain.Tag, error) {
	var tags []*domain.Tag
	err := s.run(ctx, func(ctx context.Context, uow *persistence.UnitOfWork) error {
		if _, err := getProduct(ctx, uow, productID); err != nil {
			return err
		}
		links, err := uow.ProductTags().List(ctx, catalog.ActiveProductTags(productID, s.now()))
		if err != nil {
			return err
		}
		tags = make([]*domain.Tag, 0, len(links))
		for _, l := range links {
			if l.Tag != nil && l.Tag.IsActive {
				tags = append(tags, l.Tag)
			}
		}
		return nil
	})
	return tags, err
}
