package domain

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

const maxTagNameLength = 100

// TagColumns lists the persisted fields of a tag in storage order.
var TagColumns = append(append([]string{}, AuditFields...), FieldName, FieldIsActive, FieldDisplayOrder)

// ProductTagColumns lists the persisted fields of a product tag in storage order.
var ProductTagColumns = append(append([]string{}, AuditFields...),
	FieldProductID, FieldTagID, FieldIsFeatured, FieldDisplayOrder, FieldStartDate, FieldEndDate)

// Tag is a named label that can be attached to products
type Tag struct {
	Entity
	Name         string `json:"name"`
	IsActive     bool   `json:"is_active"`
	DisplayOrder int    `json:"display_order"`
}

// NewTag creates an active tag.
func NewTag(name string, displayOrder int) (*Tag, error) {
	t := &Tag{Entity: newEntity(), IsActive: true}
	if err := t.Rename(name); err != nil {
		return nil, err
	}
	if err := t.SetDisplayOrder(displayOrder); err != nil {
		return nil, err
	}
	return t, nil
}

// Rename trims and sets the tag name.
func (t *Tag) Rename(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return invalid("tag name is required")
	}
	if utf8.RuneCountInString(name) > maxTagNameLength {
		return invalid("tag name exceeds %d characters", maxTagNameLength)
	}
	t.Name = name
	return nil
}

func (t *Tag) SetDisplayOrder(order int) error {
	if order < 0 {
		return invalid("display order must be non-negative")
	}
	t.DisplayOrder = order
	return nil
}

func (t *Tag) Activate()   { t.IsActive = true }
func (t *Tag) Deactivate() { t.IsActive = false }

// Validate checks every tag invariant.
func (t *Tag) Validate() error {
	if t.ID == uuid.Nil {
		return invalid("tag id is required")
	}
	if strings.TrimSpace(t.Name) == "" {
		return invalid("tag name is required")
	}
	if t.DisplayOrder < 0 {
		return invalid("display order must be non-negative")
	}
	return nil
}

// Value returns the stored value of field, or nil for unknown fields.
func (t *Tag) Value(field string) any {
	if v, ok := t.auditValue(field); ok {
		return v
	}
	switch field {
	case FieldName:
		return t.Name
	case FieldIsActive:
		return t.IsActive
	case FieldDisplayOrder:
		return t.DisplayOrder
	}
	return nil
}

// Targets returns scan destinations in TagColumns order.
func (t *Tag) Targets() []any {
	return append(t.auditTargets(), &t.Name, &t.IsActive, &t.DisplayOrder)
}

func (t *Tag) Clone() *Tag {
	return &Tag{Entity: t.Entity.clone(), Name: t.Name, IsActive: t.IsActive, DisplayOrder: t.DisplayOrder}
}

// ProductTag links a tag to a product, optionally for a limited window.
type ProductTag struct {
	Entity
	ProductID    uuid.UUID  `json:"product_id"`
	TagID        uuid.UUID  `json:"tag_id"`
	IsFeatured   bool       `json:"is_featured"`
	DisplayOrder int        `json:"display_order"`
	StartDate    *time.Time `json:"start_date,omitempty"`
	EndDate      *time.Time `json:"end_date,omitempty"`

	// Navigation, filled by includes only.
	Product *Product `json:"product,omitempty"`
	Tag     *Tag     `json:"tag,omitempty"`
}

// NewProductTag links productID and tagID.
func NewProductTag(productID, tagID uuid.UUID, displayOrder int) (*ProductTag, error) {
	if productID == uuid.Nil {
		return nil, invalid("product is required")
	}
	if tagID == uuid.Nil {
		return nil, invalid("tag is required")
	}
	pt := &ProductTag{Entity: newEntity(), ProductID: productID, TagID: tagID}
	if err := pt.SetDisplayOrder(displayOrder); err != nil {
		return nil, err
	}
	return pt, nil
}

func (pt *ProductTag) SetDisplayOrder(order int) error {
	if order < 0 {
		return invalid("display order must be non-negative")
	}
	pt.DisplayOrder = order
	return nil
}

func (pt *ProductTag) Feature(featured bool) {
	pt.IsFeatured = featured
}

// SetWindow limits when the tag applies. Either bound may be nil.
func (pt *ProductTag) SetWindow(start, end *time.Time) error {
	if start != nil && end != nil && end.Before(*start) {
		return invalid("tag window ends before it starts")
	}
	pt.StartDate = utcOrNil(start)
	pt.EndDate = utcOrNil(end)
	return nil
}

// IsActiveAt reports whether at falls inside the window. Both bounds are inclusive.
func (pt *ProductTag) IsActiveAt(at time.Time) bool {
	if pt.StartDate != nil && at.Before(*pt.StartDate) {
		return false
	}
	if pt.EndDate != nil && at.After(*pt.EndDate) {
		return false
	}
	return true
}

// Validate checks every product tag invariant.
func (pt *ProductTag) Validate() error {
	if pt.ID == uuid.Nil {
		return invalid("product tag id is required")
	}
	if pt.ProductID == uuid.Nil || pt.TagID == uuid.Nil {
		return invalid("product and tag are required")
	}
	if pt.DisplayOrder < 0 {
		return invalid("display order must be non-negative")
	}
	if pt.StartDate != nil && pt.EndDate != nil && pt.EndDate.Before(*pt.StartDate) {
		return invalid("tag window ends before it starts")
	}
	return nil
}

// Value returns the stored value of field, or nil for unknown fields.
func (pt *ProductTag) Value(field string) any {
	if v, ok := pt.auditValue(field); ok {
		return v
	}
	switch field {
	case FieldProductID:
		return pt.ProductID
	case FieldTagID:
		return pt.TagID
	case FieldIsFeatured:
		return pt.IsFeatured
	case FieldDisplayOrder:
		return pt.DisplayOrder
	case FieldStartDate:
		return pt.StartDate
	case FieldEndDate:
		return pt.EndDate
	}
	return nil
}

// Targets returns scan destinations in ProductTagColumns order.
func (pt *ProductTag) Targets() []any {
	return append(pt.auditTargets(),
		&pt.ProductID, &pt.TagID, &pt.IsFeatured, &pt.DisplayOrder, &pt.StartDate, &pt.EndDate)
}

func (pt *ProductTag) Clone() *ProductTag {
	return &ProductTag{
		Entity:       pt.Entity.clone(),
		ProductID:    pt.ProductID,
		TagID:        pt.TagID,
		IsFeatured:   pt.IsFeatured,
		DisplayOrder: pt.DisplayOrder,
		StartDate:    cloneTime(pt.StartDate),
		EndDate:      cloneTime(pt.EndDate),
	}
}

func utcOrNil(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := t.UTC()
	return &v
}
