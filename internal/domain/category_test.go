package domain

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestNewCategory(t *testing.T) {
	c, err := NewCategory("  Drinks ", nil, 2)
	if err != nil {
		t.Fatalf("NewCategory() error = %v", err)
	}
	if c.Name != "Drinks" {
		t.Errorf("Name = %q, want %q", c.Name, "Drinks")
	}
	if !c.IsMainCategory || !c.IsRoot() {
		t.Error("category without parent should be a main category")
	}

	parent := uuid.New()
	child, err := NewCategory("Juice", &parent, 0)
	if err != nil {
		t.Fatalf("NewCategory() error = %v", err)
	}
	if child.IsMainCategory {
		t.Error("category with parent should not be a main category")
	}
}

func TestCategory_Validation(t *testing.T) {
	if _, err := NewCategory("", nil, 0); !errors.Is(err, ErrInvalidOperation) {
		t.Errorf("empty name: error = %v", err)
	}
	if _, err := NewCategory(strings.Repeat("x", 201), nil, 0); !errors.Is(err, ErrInvalidOperation) {
		t.Errorf("long name: error = %v", err)
	}
	if _, err := NewCategory("ok", nil, -1); !errors.Is(err, ErrInvalidOperation) {
		t.Errorf("negative order: error = %v", err)
	}
}

func TestCategory_SetParentRejectsSelf(t *testing.T) {
	c, _ := NewCategory("Self", nil, 0)
	id := c.ID
	if err := c.SetParent(&id); !errors.Is(err, ErrInvalidOperation) {
		t.Fatalf("SetParent(self) error = %v", err)
	}
	if c.ParentCategoryID != nil {
		t.Error("failed SetParent changed the parent")
	}

	other := uuid.New()
	if err := c.SetParent(&other); err != nil {
		t.Fatalf("SetParent() error = %v", err)
	}
	other = uuid.New()
	if *c.ParentCategoryID == other {
		t.Error("SetParent kept a reference to the caller's value")
	}
	if err := c.SetParent(nil); err != nil || !c.IsMainCategory {
		t.Errorf("SetParent(nil) err=%v main=%v", err, c.IsMainCategory)
	}
}

func TestProductTag_Window(t *testing.T) {
	pt, err := NewProductTag(uuid.New(), uuid.New(), 0)
	if err != nil {
		t.Fatalf("NewProductTag() error = %v", err)
	}
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	if !pt.IsActiveAt(now) {
		t.Error("tag without window should always be active")
	}

	start, end := now.Add(-time.Hour), now.Add(time.Hour)
	if err := pt.SetWindow(&end, &start); !errors.Is(err, ErrInvalidOperation) {
		t.Errorf("inverted window error = %v", err)
	}
	if err := pt.SetWindow(&start, &end); err != nil {
		t.Fatalf("SetWindow() error = %v", err)
	}
	if !pt.IsActiveAt(now) || !pt.IsActiveAt(start) || !pt.IsActiveAt(end) {
		t.Error("window bounds should be inclusive")
	}
	if pt.IsActiveAt(end.Add(time.Second)) || pt.IsActiveAt(start.Add(-time.Second)) {
		t.Error("instant outside the window reported active")
	}
}

func TestNewProductTag_RequiresIDs(t *testing.T) {
	if _, err := NewProductTag(uuid.Nil, uuid.New(), 0); !errors.Is(err, ErrInvalidOperation) {
		t.Errorf("error = %v", err)
	}
}
