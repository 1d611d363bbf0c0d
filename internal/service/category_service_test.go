package service

import (
	"context"
	"errors"
	"testing"

	"catalog-core/internal/domain"

	"github.com/google/uuid"
)

func TestCategoryService_CreateRejectsDuplicateName(t *testing.T) {
	s := newServices(t)
	s.category(t, "Drinks", nil)

	_, err := s.categories.Create(context.Background(), CategoryInput{Name: "  Drinks "})
	if !errors.Is(err, domain.ErrConflict) {
		t.Errorf("expected ErrConflict, got %v", err)
	}
	if !errors.Is(err, domain.ErrInvalidOperation) {
		t.Errorf("conflict should also be an invalid operation, got %v", err)
	}
}

func TestCategoryService_CreateRequiresExistingParent(t *testing.T) {
	s := newServices(t)
	missing := uuid.New()

	_, err := s.categories.Create(context.Background(), CategoryInput{Name: "Orphan", ParentID: &missing})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestCategoryService_GetLoadsRelatives(t *testing.T) {
	s := newServices(t)
	root := s.category(t, "Food", nil)
	mid := s.category(t, "Fruit", &root.ID)
	s.category(t, "Citrus", &mid.ID)
	s.category(t, "Berries", &mid.ID)

	got, err := s.categories.Get(context.Background(), mid.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Parent == nil || got.Parent.ID != root.ID {
		t.Errorf("expected parent %s, got %+v", root.ID, got.Parent)
	}
	if len(got.Children) != 2 {
		t.Errorf("expected 2 children, got %d", len(got.Children))
	}
	if got.IsMainCategory {
		t.Error("a category with a parent is not a main category")
	}
}

func TestCategoryService_UpdateKeepsNameUnique(t *testing.T) {
	s := newServices(t)
	a := s.category(t, "Alpha", nil)
	s.category(t, "Beta", nil)
	ctx := context.Background()

	if _, err := s.categories.Update(ctx, a.ID, CategoryInput{Name: "Beta"}); !errors.Is(err, domain.ErrConflict) {
		t.Errorf("expected ErrConflict renaming onto Beta, got %v", err)
	}

	desc := "first letter"
	got, err := s.categories.Update(ctx, a.ID, CategoryInput{Name: "Alpha", Description: &desc, DisplayOrder: 3})
	if err != nil {
		t.Fatalf("Update with its own name: %v", err)
	}
	if got.DisplayOrder != 3 || got.Description == nil || *got.Description != desc {
		t.Errorf("update not applied: %+v", got)
	}
	if got.ModifiedAt == nil {
		t.Error("expected ModifiedAt to be stamped")
	}
}

func TestCategoryService_DeleteGuards(t *testing.T) {
	s := newServices(t)
	ctx := context.Background()
	root := s.category(t, "Root", nil)
	child := s.category(t, "Child", &root.ID)
	p := s.product(t, "Widget", child.ID, "")

	if err := s.categories.Delete(ctx, root.ID); !errors.Is(err, domain.ErrInvalidOperation) {
		t.Errorf("deleting a parent: expected ErrInvalidOperation, got %v", err)
	}
	if err := s.categories.Delete(ctx, child.ID); !errors.Is(err, domain.ErrInvalidOperation) {
		t.Errorf("deleting a category with products: expected ErrInvalidOperation, got %v", err)
	}

	if err := s.products.Delete(ctx, p.ID); err != nil {
		t.Fatalf("Delete product: %v", err)
	}
	if err := s.categories.Delete(ctx, child.ID); err != nil {
		t.Fatalf("Delete empty child: %v", err)
	}
	if err := s.categories.Delete(ctx, root.ID); err != nil {
		t.Fatalf("Delete empty root: %v", err)
	}
	if err := s.categories.Delete(ctx, root.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("second delete: expected ErrNotFound, got %v", err)
	}
}

func TestCategoryService_MoveTreeAndCount(t *testing.T) {
	s := newServices(t)
	ctx := context.Background()
	food := s.category(t, "Food", nil)
	fruit := s.category(t, "Fruit", nil)
	citrus := s.category(t, "Citrus", &fruit.ID)
	s.product(t, "Lemon", citrus.ID, "")
	s.product(t, "Apple", fruit.ID, "")

	if err := s.categories.Move(ctx, fruit.ID, &food.ID); err != nil {
		t.Fatalf("Move: %v", err)
	}
	if err := s.categories.Move(ctx, food.ID, &citrus.ID); !errors.Is(err, domain.ErrInvalidOperation) {
		t.Errorf("moving under a descendant: expected ErrInvalidOperation, got %v", err)
	}

	path, err := s.categories.Path(ctx, citrus.ID)
	if err != nil {
		t.Fatalf("Path: %v", err)
	}
	if len(path) != 3 || path[0].ID != food.ID || path[2].ID != citrus.ID {
		t.Errorf("unexpected path %v", path)
	}

	tree, err := s.categories.Tree(ctx, nil)
	if err != nil {
		t.Fatalf("Tree: %v", err)
	}
	if len(tree) != 1 || tree[0].Category.ID != food.ID {
		t.Fatalf("expected a single root Food, got %d roots", len(tree))
	}

	n, err := s.categories.ProductCount(ctx, food.ID, true)
	if err != nil {
		t.Fatalf("ProductCount: %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2 products below Food, got %d", n)
	}
	n, err = s.categories.ProductCount(ctx, food.ID, false)
	if err != nil {
		t.Fatalf("ProductCount: %v", err)
	}
	if n != 0 {
		t.Errorf("expected no products directly in Food, got %d", n)
	}
}
