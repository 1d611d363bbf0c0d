package service

import (
	"context"
	"testing"
	"time"

	"catalog-core/internal/domain"
	"catalog-core/internal/persistence"
	"catalog-core/internal/storage/memory"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type services struct {
	categories CategoryService
	products   ProductService
	tags       TagService
	now        time.Time
}

func newServices(t *testing.T) *services {
	t.Helper()
	f := persistence.NewFactory(memory.New(nil))
	now := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	d := Deps{Factory: f}
	cs := NewCategoryService(d)
	ps := NewProductService(d)
	ts := NewTagService(d)
	ps.(*productService).now = clock
	ts.(*tagService).now = clock
	return &services{categories: cs, products: ps, tags: ts, now: now}
}

func (s *services) category(t *testing.T, name string, parent *uuid.UUID) *domain.Category {
	t.Helper()
	c, err := s.categories.Create(context.Background(), CategoryInput{Name: name, ParentID: parent})
	if err != nil {
		t.Fatalf("Create category %q: %v", name, err)
	}
	return c
}

func (s *services) product(t *testing.T, name string, categoryID uuid.UUID, sku string) *domain.Product {
	t.Helper()
	params := domain.ProductParams{Name: name, Price: decimal.NewFromInt(25), CategoryID: categoryID}
	if sku != "" {
		params.Sku = &sku
	}
	p, err := s.products.Create(context.Background(), params)
	if err != nil {
		t.Fatalf("Create product %q: %v", name, err)
	}
	return p
}

func strPtr(s string) *string { return &s }
