// Package catalog holds the named queries the catalog services run.
package catalog

import (
	"strings"
	"time"

	"catalog-core/internal/domain"
	"catalog-core/internal/persistence"
	spec "catalog-core/internal/specification"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ProductFilter narrows a product listing. Zero values do not filter.
type ProductFilter struct {
	Search      string
	CategoryIDs []uuid.UUID
	Featured    *bool
	Published   *bool
	MinPrice    *decimal.Decimal
	MaxPrice    *decimal.Decimal
}

func (f ProductFilter) criteria() *spec.Expr {
	var parts []*spec.Expr
	if term := strings.TrimSpace(f.Search); term != "" {
		parts = append(parts, spec.Or(
			spec.Contains(domain.FieldName, term),
			spec.Contains(domain.FieldDescription, term),
			spec.Contains(domain.FieldSku, term),
		))
	}
	if len(f.CategoryIDs) > 0 {
		parts = append(parts, spec.In(domain.FieldCategoryID, f.CategoryIDs))
	}
	if f.Featured != nil {
		parts = append(parts, spec.Eq(domain.FieldIsFeatured, *f.Featured))
	}
	if f.Published != nil {
		parts = append(parts, spec.Eq(domain.FieldIsPublished, *f.Published))
	}
	if f.MinPrice != nil {
		parts = append(parts, spec.Gte(domain.FieldPrice, *f.MinPrice))
	}
	if f.MaxPrice != nil {
		parts = append(parts, spec.Lte(domain.FieldPrice, *f.MaxPrice))
	}
	return spec.And(parts...)
}

// ProductPage lists products matching f, sorted by name, one page at a time.
func ProductPage(f ProductFilter, page, size int) (*spec.Spec[*domain.Product], error) {
	return spec.New[*domain.Product](
		spec.Where(f.criteria()),
		spec.Including(persistence.IncludeCategory),
		spec.OrderBy(domain.FieldName),
		spec.ThenBy(domain.FieldID),
		spec.PageNumber(page, size),
	)
}

// ProductsInCategories matches products of any of ids.
func ProductsInCategories(ids []uuid.UUID) *spec.Expr {
	return spec.In(domain.FieldCategoryID, ids)
}

// FeaturedProducts lists published featured products, newest first.
func FeaturedProducts(limit int) (*spec.Spec[*domain.Product], error) {
	return spec.New[*domain.Product](
		spec.Where(spec.And(spec.Eq(domain.FieldIsFeatured, true), spec.Eq(domain.FieldIsPublished, true))),
		spec.OrderByDescending(domain.FieldPublishedAt),
		spec.ThenBy(domain.FieldID),
		spec.Page(0, limit),
	)
}

// ProductWithDetails loads one product with its category and tags.
func ProductWithDetails(id uuid.UUID) *spec.Spec[*domain.Product] {
	return spec.MustNew[*domain.Product](
		spec.Where(spec.Eq(domain.FieldID, id)),
		spec.Including(persistence.IncludeCategory, persistence.IncludeTags),
	)
}

// excluding adds an id exclusion to e when id is set.
func excluding(e *spec.Expr, id *uuid.UUID) *spec.Expr {
	if id == nil {
		return e
	}
	return spec.And(e, spec.Ne(domain.FieldID, *id))
}

// SkuTaken matches another product already using sku.
func SkuTaken(sku string, except *uuid.UUID) *spec.Expr {
	return excluding(spec.Eq(domain.FieldSku, sku), except)
}

// BarcodeTaken matches another product already using barcode.
func BarcodeTaken(barcode string, except *uuid.UUID) *spec.Expr {
	return excluding(spec.Eq(domain.FieldBarcode, barcode), except)
}

// CategoryNameTaken matches another category named name.
func CategoryNameTaken(name string, except *uuid.UUID) *spec.Expr {
	return excluding(spec.Eq(domain.FieldName, strings.TrimSpace(name)), except)
}

// TagNameTaken matches another tag named name.
func TagNameTaken(name string, except *uuid.UUID) *spec.Expr {
	return excluding(spec.Eq(domain.FieldName, strings.TrimSpace(name)), except)
}

// TagByName finds a tag by exact name.
func TagByName(name string) *spec.Spec[*domain.Tag] {
	return spec.MustNew[*domain.Tag](spec.Where(spec.Eq(domain.FieldName, strings.TrimSpace(name))))
}

// ActiveTags lists active tags in display order.
func ActiveTags() *spec.Spec[*domain.Tag] {
	return spec.MustNew[*domain.Tag](
		spec.Where(spec.Eq(domain.FieldIsActive, true)),
		spec.OrderBy(domain.FieldDisplayOrder),
		spec.ThenBy(domain.FieldName),
	)
}

// ProductTagPair matches the link between productID and tagID.
func ProductTagPair(productID, tagID uuid.UUID) *spec.Expr {
	return spec.And(spec.Eq(domain.FieldProductID, productID), spec.Eq(domain.FieldTagID, tagID))
}

// ActiveProductTags lists the tag links of productID whose window contains at,
// with their tags loaded, in display order.
func ActiveProductTags(productID uuid.UUID, at time.Time) *spec.Spec[*domain.ProductTag] {
	return spec.MustNew[*domain.ProductTag](
		spec.Where(spec.And(
			spec.Eq(domain.FieldProductID, productID),
			spec.Or(spec.IsNull(domain.FieldStartDate), spec.Lte(domain.FieldStartDate, at)),
			spec.Or(spec.IsNull(domain.FieldEndDate), spec.Gte(domain.FieldEndDate, at)),
		)),
		spec.Including(persistence.IncludeTag),
		spec.OrderBy(domain.FieldDisplayOrder),
		spec.ThenBy(domain.FieldID),
	)
}

// MainCategories lists the root categories in sibling order.
func MainCategories() *spec.Spec[*domain.Category] {
	return spec.MustNew[*domain.Category](
		spec.Where(spec.IsNull(domain.FieldParentCategoryID)),
		spec.OrderBy(domain.FieldDisplayOrder),
		spec.ThenBy(domain.FieldName),
	)
}

// ChildrenOf lists the direct children of any of ids.
func ChildrenOf(ids ...uuid.UUID) *spec.Spec[*domain.Category] {
	return spec.MustNew[*domain.Category](
		spec.Where(spec.In(domain.FieldParentCategoryID, ids)),
		spec.OrderBy(domain.FieldDisplayOrder),
		spec.ThenBy(domain.FieldName),
	)
}

// CategoryWithRelatives loads one category with its parent and children.
func CategoryWithRelatives(id uuid.UUID) *spec.Spec[*domain.Category] {
	return spec.MustNew[*domain.Category](
		spec.Where(spec.Eq(domain.FieldID, id)),
		spec.Including(persistence.IncludeParent, persistence.IncludeChildren),
	)
}

// AllTags lists every tag in display order.
func AllTags() *spec.Spec[*domain.Tag] {
	return spec.MustNew[*domain.Tag](
		spec.OrderBy(domain.FieldDisplayOrder),
		spec.ThenBy(domain.FieldName),
	)
}

// ProductTagLink finds the link between productID and tagID.
func ProductTagLink(productID, tagID uuid.UUID) *spec.Spec[*domain.ProductTag] {
	return spec.MustNew[*domain.ProductTag](spec.Where(ProductTagPair(productID, tagID)))
}
