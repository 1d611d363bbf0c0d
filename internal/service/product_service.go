package service

import (
	"context"
	"fmt"

	"catalog-core/internal/catalog"
	"catalog-core/internal/domain"
	"catalog-core/internal/hierarchy"
	"catalog-core/internal/persistence"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ProductUpdate lists the fields to change. Nil fields are left alone; a
// blank Sku or Barcode clears it.
type ProductUpdate struct {
	Name          *string
	Slug          *string
	Description   *string
	Price         *decimal.Decimal
	DiscountPrice *decimal.Decimal
	ClearDiscount bool
	StockQuantity *int
	Sku           *string
	Barcode       *string
	CategoryID    *uuid.UUID
	IsFeatured    *bool
}

// ProductQuery pages through products. CategoryID overrides
// Filter.CategoryIDs and can be widened to the whole subtree.
type ProductQuery struct {
	Filter               catalog.ProductFilter
	CategoryID           *uuid.UUID
	IncludeSubcategories bool
	Page                 int
	Size                 int
}

// ProductService defines the product use cases
type ProductService interface {
	Create(ctx context.Context, params domain.ProductParams) (*domain.Product, error)
	Get(ctx context.Context, id uuid.UUID) (*domain.Product, error)
	List(ctx context.Context, q ProductQuery) (persistence.Paged[*domain.Product], error)
	Featured(ctx context.Context, limit int) ([]*domain.Product, error)
	Update(ctx context.Context, id uuid.UUID, u ProductUpdate) (*domain.Product, error)
	AdjustStock(ctx context.Context, id uuid.UUID, delta int) (*domain.Product, error)
	Publish(ctx context.Context, id uuid.UUID) (*domain.Product, error)
	Unpublish(ctx context.Context, id uuid.UUID) (*domain.Product, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type productService struct {
	base
}

// NewProductService creates a new instance of ProductService
func NewProductService(d Deps) ProductService {
	return &productService{base: newBase(d)}
}

// checkCodes rejects a SKU or barcode another product already uses.
func checkCodes(ctx context.Context, uow *persistence.UnitOfWork, p *domain.Product) error {
	repo := uow.Products()
	if p.Sku != nil {
		taken, err := repo.Any(ctx, catalog.SkuTaken(*p.Sku, &p.ID))
		if err != nil {
			return err
		}
		if taken {
			return fmt.Errorf("%w: sku %q is already used", domain.ErrConflict, *p.Sku)
		}
	}
	if p.Barcode != nil {
		taken, err := repo.Any(ctx, catalog.BarcodeTaken(*p.Barcode, &p.ID))
		if err != nil {
			return err
		}
		if taken {
			return fmt.Errorf("%w: barcode %q is already used", domain.ErrConflict, *p.Barcode)
		}
	}
	return nil
}

// Create adds a product to an existing category.
func (s *productService) Create(ctx context.Context, params domain.ProductParams) (*domain.Product, error) {
	var created *domain.Product
	err := s.write(ctx, func(ctx context.Context, uow *persistence.UnitOfWork) error {
		p, err := domain.NewProduct(params)
		if err != nil {
			return err
		}
		if _, err := getCategory(ctx, uow, p.CategoryID); err != nil {
			return err
		}
		if err := checkCodes(ctx, uow, p); err != nil {
			return err
		}
		if err := uow.Products().Add(ctx, p); err != nil {
			return err
		}
		created = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("Product created",
		zap.String("product_id", created.ID.String()),
		zap.String("category_id", created.CategoryID.String()),
	)
	return created, nil
}

// Get returns a product with its category and tags.
func (s *productService) Get(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	var p *domain.Product
	err := s.run(ctx, func(ctx context.Context, uow *persistence.UnitOfWork) error {
		found, ok, err := uow.Products().FirstOrDefault(ctx, catalog.ProductWithDetails(id))
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: product %s", domain.ErrNotFound, id)
		}
		p = found
		return nil
	})
	return p, err
}

// List returns one page of products matching q.
func (s *productService) List(ctx context.Context, q ProductQuery) (persistence.Paged[*domain.Product], error) {
	var page persistence.Paged[*domain.Product]
	err := s.run(ctx, func(ctx context.Context, uow *persistence.UnitOfWork) error {
		filter := q.Filter
		if q.CategoryID != nil {
			ids := []uuid.UUID{*q.CategoryID}
			if q.IncludeSubcategories {
				below, err := hierarchy.NewEngine(uow, s.logger).DescendantIDs(ctx, *q.CategoryID)
				if err != nil {
					return err
				}
				ids = append(ids, below...)
			}
			filter.CategoryIDs = ids
		}
		spec, err := catalog.ProductPage(filter, q.Page, q.Size)
		if err != nil {
			return err
		}
		page, err = uow.Products().Page(ctx, spec)
		return err
	})
	return page, err
}

// Featured lists up to limit published featured products.
func (s *productService) Featured(ctx context.Context, limit int) ([]*domain.Product, error) {
	var items []*domain.Product
	err := s.run(ctx, func(ctx context.Context, uow *persistence.UnitOfWork) error {
		spec, err := catalog.FeaturedProducts(limit)
		if err != nil {
			return err
		}
		items, err = uow.Products().List(ctx, spec)
		return err
	})
	return items, err
}

// Update applies u to the product.
func (s *productService) Update(ctx context.Context, id uuid.UUID, u ProductUpdate) (*domain.Product, error) {
	return s.mutate(ctx, id, func(ctx context.Context, uow *persistence.UnitOfWork, p *domain.Product) error {
		if u.Name != nil || u.Slug != nil {
			name, slug := p.Name, p.Slug
			if u.Name != nil {
				name = *u.Name
			}
			if u.Slug != nil {
				slug = *u.Slug
			}
			if err := p.Rename(name, slug); err != nil {
				return err
			}
		}
		if u.Description != nil {
			p.Redescribe(*u.Description)
		}
		if u.Price != nil || u.DiscountPrice != nil || u.ClearDiscount {
			price, discount := p.Price, p.DiscountPrice
			if u.Price != nil {
				price = *u.Price
			}
			if u.DiscountPrice != nil {
				discount = u.DiscountPrice
			}
			if u.ClearDiscount {
				discount = nil
			}
			if err := p.ChangePrice(price, discount); err != nil {
				return err
			}
		}
		if u.StockQuantity != nil {
			if err := p.SetStock(*u.StockQuantity); err != nil {
				return err
			}
		}
		if u.Sku != nil || u.Barcode != nil {
			sku, barcode := p.Sku, p.Barcode
			if u.Sku != nil {
				sku = u.Sku
			}
			if u.Barcode != nil {
				barcode = u.Barcode
			}
			if err := p.AssignCodes(sku, barcode); err != nil {
				return err
			}
			if err := checkCodes(ctx, uow, p); err != nil {
				return err
			}
		}
		if u.CategoryID != nil && *u.CategoryID != p.CategoryID {
			if _, err := getCategory(ctx, uow, *u.CategoryID); err != nil {
				return err
			}
			if err := p.MoveToCategory(*u.CategoryID); err != nil {
				return err
			}
		}
		if u.IsFeatured != nil {
			p.Feature(*u.IsFeatured)
		}
		return nil
	})
}

// AdjustStock adds delta to the stock quantity.
func (s *productService) AdjustStock(ctx context.Context, id uuid.UUID, delta int) (*domain.Product, error) {
	return s.mutate(ctx, id, func(ctx context.Context, uow *persistence.UnitOfWork, p *domain.Product) error {
		return p.AdjustStock(delta)
	})
}

// Publish makes the product visible.
func (s *productService) Publish(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	return s.mutate(ctx, id, func(ctx context.Context, uow *persistence.UnitOfWork, p *domain.Product) error {
		p.Publish(s.now())
		return nil
	})
}

// Unpublish hides the product.
func (s *productService) Unpublish(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	return s.mutate(ctx, id, func(ctx context.Context, uow *persistence.UnitOfWork, p *domain.Product) error {
		p.Unpublish()
		return nil
	})
}

// Delete removes the product together with its tag assignments.
func (s *productService) Delete(ctx context.Context, id uuid.UUID) error {
	err := s.write(ctx, func(ctx context.Context, uow *persistence.UnitOfWork) error {
		p, err := getProduct(ctx, uow, id)
		if err != nil {
			return err
		}
		return uow.Products().Remove(ctx, p)
	})
	if err != nil {
		return err
	}
	s.logger.Info("Product deleted", zap.String("product_id", id.String()))
	return nil
}

func (s *productService) mutate(ctx context.Context, id uuid.UUID, fn func(ctx context.Context, uow *persistence.UnitOfWork, p *domain.Product) error) (*domain.Product, error) {
	var p *domain.Product
	err := s.write(ctx, func(ctx context.Context, uow *persistence.UnitOfWork) error {
		found, err := getProduct(ctx, uow, id)
		if err != nil {
			return err
		}
		if err := fn(ctx, uow, found); err != nil {
			return err
		}
		if err := found.Validate(); err != nil {
			return err
		}
		p = found
		return uow.Products().Update(ctx, found)
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}
