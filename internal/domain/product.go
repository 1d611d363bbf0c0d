package domain

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	maxProductNameLength = 255
	maxSkuLength         = 64
)

// ProductColumns lists the persisted fields of a product in storage order.
var ProductColumns = append(append([]string{}, AuditFields...),
	FieldName, FieldDescription, FieldPrice, FieldDiscountPrice, FieldStockQuantity, FieldSku, FieldBarcode,
	FieldCategoryID, FieldIsFeatured, FieldIsPublished, FieldPublishedAt, FieldSlug)

// Product represents a product in the catalog
type Product struct {
	Entity
	Name          string           `json:"name"`
	Description   string           `json:"description"`
	Price         decimal.Decimal  `json:"price"`
	DiscountPrice *decimal.Decimal `json:"discount_price,omitempty"`
	StockQuantity int              `json:"stock_quantity"`
	Sku           *string          `json:"sku,omitempty"`
	Barcode       *string          `json:"barcode,omitempty"`
	CategoryID    uuid.UUID        `json:"category_id"`
	IsFeatured    bool             `json:"is_featured"`
	IsPublished   bool             `json:"is_published"`
	PublishedAt   *time.Time       `json:"published_at,omitempty"`
	Slug          string           `json:"slug"`

	// Navigation, filled by includes only.
	Category *Category    `json:"category,omitempty"`
	Tags     []*ProductTag `json:"tags,omitempty"`
}

// ProductParams carries the input of NewProduct.
type ProductParams struct {
	Name          string
	Description   string
	Price         decimal.Decimal
	DiscountPrice *decimal.Decimal
	StockQuantity int
	Sku           *string
	Barcode       *string
	CategoryID    uuid.UUID
	IsFeatured    bool
	Slug          string
}

// NewProduct creates a validated, unpublished product.
func NewProduct(p ProductParams) (*Product, error) {
	product := &Product{
		Entity:      newEntity(),
		Description: strings.TrimSpace(p.Description),
		IsFeatured:  p.IsFeatured,
	}
	if err := product.Rename(p.Name, p.Slug); err != nil {
		return nil, err
	}
	if err := product.ChangePrice(p.Price, p.DiscountPrice); err != nil {
		return nil, err
	}
	if err := product.SetStock(p.StockQuantity); err != nil {
		return nil, err
	}
	if err := product.AssignCodes(p.Sku, p.Barcode); err != nil {
		return nil, err
	}
	if err := product.MoveToCategory(p.CategoryID); err != nil {
		return nil, err
	}
	return product, nil
}

// Rename sets the name and slug. An empty slug is derived from the name.
func (p *Product) Rename(name, slug string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return invalid("product name is required")
	}
	if utf8.RuneCountInString(name) > maxProductNameLength {
		return invalid("product name exceeds %d characters", maxProductNameLength)
	}
	if strings.TrimSpace(slug) == "" {
		slug = name
	}
	slug = Slugify(slug)
	if slug == "" {
		return invalid("product slug cannot be derived from %q", name)
	}
	p.Name = name
	p.Slug = slug
	return nil
}

// Redescribe replaces the free-text description.
func (p *Product) Redescribe(description string) {
	p.Description = strings.TrimSpace(description)
}

// ChangePrice sets the price and optional discount price.
func (p *Product) ChangePrice(price decimal.Decimal, discount *decimal.Decimal) error {
	if price.IsNegative() {
		return invalid("price must be non-negative")
	}
	if discount != nil {
		if discount.IsNegative() {
			return invalid("discount price must be non-negative")
		}
		if !discount.LessThan(price) {
			return invalid("discount price must be lower than price")
		}
		d := *discount
		discount = &d
	}
	p.Price = price
	p.DiscountPrice = discount
	return nil
}

// EffectivePrice is the discount price when one applies, the price otherwise.
func (p *Product) EffectivePrice() decimal.Decimal {
	if p.DiscountPrice != nil && p.DiscountPrice.LessThan(p.Price) {
		return *p.DiscountPrice
	}
	return p.Price
}

// SetStock sets the stock quantity.
func (p *Product) SetStock(quantity int) error {
	if quantity < 0 {
		return invalid("stock quantity must be non-negative")
	}
	p.StockQuantity = quantity
	return nil
}

// AdjustStock adds delta (possibly negative) to the stock quantity.
func (p *Product) AdjustStock(delta int) error {
	return p.SetStock(p.StockQuantity + delta)
}

// AssignCodes sets the optional SKU and barcode. Blank values clear them.
func (p *Product) AssignCodes(sku, barcode *string) error {
	sku = trimmedOrNil(sku)
	barcode = trimmedOrNil(barcode)
	if sku != nil && utf8.RuneCountInString(*sku) > maxSkuLength {
		return invalid("sku exceeds %d characters", maxSkuLength)
	}
	if barcode != nil && utf8.RuneCountInString(*barcode) > maxSkuLength {
		return invalid("barcode exceeds %d characters", maxSkuLength)
	}
	p.Sku = sku
	p.Barcode = barcode
	return nil
}

// MoveToCategory reassigns the product. Existence of the category is checked
// by the caller against storage.
func (p *Product) MoveToCategory(categoryID uuid.UUID) error {
	if categoryID == uuid.Nil {
		return invalid("category is required")
	}
	p.CategoryID = categoryID
	return nil
}

// Feature toggles the featured flag.
func (p *Product) Feature(featured bool) {
	p.IsFeatured = featured
}

// Publish marks the product published. PublishedAt only moves on the
// unpublished to published transition.
func (p *Product) Publish(at time.Time) {
	if p.IsPublished {
		return
	}
	p.IsPublished = true
	at = at.UTC()
	p.PublishedAt = &at
}

// Unpublish hides the product and clears PublishedAt.
func (p *Product) Unpublish() {
	p.IsPublished = false
	p.PublishedAt = nil
}

// Validate checks every product invariant.
func (p *Product) Validate() error {
	if p.ID == uuid.Nil {
		return invalid("product id is required")
	}
	if strings.TrimSpace(p.Name) == "" {
		return invalid("product name is required")
	}
	if p.Slug == "" {
		return invalid("product slug is required")
	}
	if p.Price.IsNegative() {
		return invalid("price must be non-negative")
	}
	if p.DiscountPrice != nil && (p.DiscountPrice.IsNegative() || !p.DiscountPrice.LessThan(p.Price)) {
		return invalid("discount price must be non-negative and lower than price")
	}
	if p.StockQuantity < 0 {
		return invalid("stock quantity must be non-negative")
	}
	if p.CategoryID == uuid.Nil {
		return invalid("category is required")
	}
	if p.IsPublished != (p.PublishedAt != nil) {
		return invalid("published_at must be set exactly when the product is published")
	}
	return nil
}

// Value returns the stored value of field, or nil for unknown fields.
func (p *Product) Value(field string) any {
	if v, ok := p.auditValue(field); ok {
		return v
	}
	switch field {
	case FieldName:
		return p.Name
	case FieldDescription:
		return p.Description
	case FieldPrice:
		return p.Price
	case FieldDiscountPrice:
		return p.DiscountPrice
	case FieldStockQuantity:
		return p.StockQuantity
	case FieldSku:
		return p.Sku
	case FieldBarcode:
		return p.Barcode
	case FieldCategoryID:
		return p.CategoryID
	case FieldIsFeatured:
		return p.IsFeatured
	case FieldIsPublished:
		return p.IsPublished
	case FieldPublishedAt:
		return p.PublishedAt
	case FieldSlug:
		return p.Slug
	}
	return nil
}

// Targets returns scan destinations in ProductColumns order.
func (p *Product) Targets() []any {
	return append(p.auditTargets(),
		&p.Name, &p.Description, &p.Price, &p.DiscountPrice, &p.StockQuantity, &p.Sku, &p.Barcode,
		&p.CategoryID, &p.IsFeatured, &p.IsPublished, &p.PublishedAt, &p.Slug)
}

// Clone returns a copy without navigation properties.
func (p *Product) Clone() *Product {
	var discount *decimal.Decimal
	if p.DiscountPrice != nil {
		d := *p.DiscountPrice
		discount = &d
	}
	return &Product{
		Entity:        p.Entity.clone(),
		Name:          p.Name,
		Description:   p.Description,
		Price:         p.Price,
		DiscountPrice: discount,
		StockQuantity: p.StockQuantity,
		Sku:           cloneString(p.Sku),
		Barcode:       cloneString(p.Barcode),
		CategoryID:    p.CategoryID,
		IsFeatured:    p.IsFeatured,
		IsPublished:   p.IsPublished,
		PublishedAt:   cloneTime(p.PublishedAt),
		Slug:          p.Slug,
	}
}
