package domain

import (
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
)

const maxCategoryNameLength = 200

// CategoryColumns lists the persisted fields of a category in storage order.
var CategoryColumns = append(append([]string{}, AuditFields...),
	FieldName, FieldDescription, FieldImageURL, FieldParentCategoryID, FieldIsMainCategory, FieldDisplayOrder)

// Category represents a node of the catalog category hierarchy. The parent is
// referenced by id only; children are never nested in storage.
type Category struct {
	Entity
	Name             string     `json:"name"`
	Description      *string    `json:"description,omitempty"`
	ImageURL         *string    `json:"image_url,omitempty"`
	ParentCategoryID *uuid.UUID `json:"parent_category_id,omitempty"`
	IsMainCategory   bool       `json:"is_main_category"`
	DisplayOrder     int        `json:"display_order"`

	// Navigation, filled by includes only.
	Parent   *Category   `json:"parent,omitempty"`
	Children []*Category `json:"children,omitempty"`
}

// NewCategory creates a validated category. A nil parent makes it a main category.
func NewCategory(name string, parentID *uuid.UUID, displayOrder int) (*Category, error) {
	c := &Category{Entity: newEntity()}
	if err := c.Rename(name); err != nil {
		return nil, err
	}
	if err := c.SetDisplayOrder(displayOrder); err != nil {
		return nil, err
	}
	if err := c.SetParent(parentID); err != nil {
		return nil, err
	}
	return c, nil
}

// Rename trims and sets the category name.
func (c *Category) Rename(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return invalid("category name is required")
	}
	if utf8.RuneCountInString(name) > maxCategoryNameLength {
		return invalid("category name exceeds %d characters", maxCategoryNameLength)
	}
	c.Name = name
	return nil
}

// Describe replaces the optional description and image.
func (c *Category) Describe(description, imageURL *string) {
	c.Description = trimmedOrNil(description)
	c.ImageURL = trimmedOrNil(imageURL)
}

// SetParent points the category at a new parent, or makes it a root when
// parentID is nil. Cycle checks beyond self-parenting need the whole graph and
// live in the hierarchy engine.
func (c *Category) SetParent(parentID *uuid.UUID) error {
	if parentID != nil && *parentID == c.ID {
		return invalid("category %s cannot be its own parent", c.ID)
	}
	c.ParentCategoryID = cloneUUID(parentID)
	c.IsMainCategory = parentID == nil
	return nil
}

// SetDisplayOrder sets the sibling position.
func (c *Category) SetDisplayOrder(order int) error {
	if order < 0 {
		return invalid("display order must be non-negative")
	}
	c.DisplayOrder = order
	return nil
}

// IsRoot reports whether the category has no parent.
func (c *Category) IsRoot() bool {
	return c.ParentCategoryID == nil
}

// Validate checks every category invariant.
func (c *Category) Validate() error {
	if c.ID == uuid.Nil {
		return invalid("category id is required")
	}
	if strings.TrimSpace(c.Name) == "" {
		return invalid("category name is required")
	}
	if c.DisplayOrder < 0 {
		return invalid("display order must be non-negative")
	}
	if c.ParentCategoryID != nil && *c.ParentCategoryID == c.ID {
		return invalid("category %s cannot be its own parent", c.ID)
	}
	if c.IsMainCategory != (c.ParentCategoryID == nil) {
		return invalid("main category flag must match the absence of a parent")
	}
	return nil
}

// Value returns the stored value of field, or nil for unknown fields.
func (c *Category) Value(field string) any {
	if v, ok := c.auditValue(field); ok {
		return v
	}
	switch field {
	case FieldName:
		return c.Name
	case FieldDescription:
		return c.Description
	case FieldImageURL:
		return c.ImageURL
	case FieldParentCategoryID:
		return c.ParentCategoryID
	case FieldIsMainCategory:
		return c.IsMainCategory
	case FieldDisplayOrder:
		return c.DisplayOrder
	}
	return nil
}

// Targets returns scan destinations in CategoryColumns order.
func (c *Category) Targets() []any {
	return append(c.auditTargets(),
		&c.Name, &c.Description, &c.ImageURL, &c.ParentCategoryID, &c.IsMainCategory, &c.DisplayOrder)
}

// Clone returns a copy without navigation properties.
func (c *Category) Clone() *Category {
	return &Category{
		Entity:           c.Entity.clone(),
		Name:             c.Name,
		Description:      cloneString(c.Description),
		ImageURL:         cloneString(c.ImageURL),
		ParentCategoryID: cloneUUID(c.ParentCategoryID),
		IsMainCategory:   c.IsMainCategory,
		DisplayOrder:     c.DisplayOrder,
	}
}

func trimmedOrNil(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}
