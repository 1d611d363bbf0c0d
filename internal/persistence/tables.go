package persistence

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"

	"catalog-core/internal/domain"
	"catalog-core/internal/specification"
	"catalog-core/internal/storage"

	"github.com/google/uuid"
)

// Includes understood by the catalog tables.
const (
	IncludeParent   specification.Include = "parent"
	IncludeChildren specification.Include = "children"
	IncludeCategory specification.Include = "category"
	IncludeTags     specification.Include = "tags"
	IncludeProduct  specification.Include = "product"
	IncludeTag      specification.Include = "tag"
)

var (
	CategoryTable = newTable[*domain.Category]("categories", domain.CategoryColumns,
		storage.UniqueKey{Name: "categories_name_key", Fields: []string{domain.FieldName}})

	ProductTable = newTable[*domain.Product]("products", domain.ProductColumns,
		storage.UniqueKey{Name: "products_sku_key", Fields: []string{domain.FieldSku}},
		storage.UniqueKey{Name: "products_barcode_key", Fields: []string{domain.FieldBarcode}})

	TagTable = newTable[*domain.Tag]("tags", domain.TagColumns,
		storage.UniqueKey{Name: "tags_name_key", Fields: []string{domain.FieldName}})

	ProductTagTable = newTable[*domain.ProductTag]("product_tags", domain.ProductTagColumns,
		storage.UniqueKey{Name: "product_tags_product_id_tag_id_key", Fields: []string{domain.FieldProductID, domain.FieldTagID}})
)

// Schemas lists every table schema, parents first.
func Schemas() []*storage.Schema {
	return []*storage.Schema{CategoryTable.Schema, TagTable.Schema, ProductTable.Schema, ProductTagTable.Schema}
}

// Loaders reference the tables themselves, so they are wired here rather
// than in the variable declarations.
func init() {
	CategoryTable.Schema.New = func() storage.Record { return &domain.Category{} }
	CategoryTable.Schema.Clone = func(r storage.Record) storage.Record { return r.(*domain.Category).Clone() }
	CategoryTable.loaders[IncludeParent] = loadParents
	CategoryTable.loaders[IncludeChildren] = loadChildren
	CategoryTable.beforeRemove = guardCategoryRemoval

	ProductTable.Schema.New = func() storage.Record { return &domain.Product{} }
	ProductTable.Schema.Clone = func(r storage.Record) storage.Record { return r.(*domain.Product).Clone() }
	ProductTable.loaders[IncludeCategory] = loadProductCategories
	ProductTable.loaders[IncludeTags] = loadProductTags
	ProductTable.beforeRemove = cascadeProductTags

	TagTable.Schema.New = func() storage.Record { return &domain.Tag{} }
	TagTable.Schema.Clone = func(r storage.Record) storage.Record { return r.(*domain.Tag).Clone() }
	TagTable.beforeRemove = guardTagRemoval

	ProductTagTable.Schema.New = func() storage.Record { return &domain.ProductTag{} }
	ProductTagTable.Schema.Clone = func(r storage.Record) storage.Record { return r.(*domain.ProductTag).Clone() }
	ProductTagTable.loaders[IncludeProduct] = loadTaggedProducts
	ProductTagTable.loaders[IncludeTag] = loadTags
}

func byID[T Entity](items []T) map[uuid.UUID]T {
	m := make(map[uuid.UUID]T, len(items))
	for _, it := range items {
		m[it.Key()] = it
	}
	return m
}

func loadParents(ctx context.Context, u *UnitOfWork, items []*domain.Category) error {
	var ids []uuid.UUID
	for _, c := range items {
		if c.ParentCategoryID != nil {
			ids = append(ids, *c.ParentCategoryID)
		}
	}
	parents, err := For(u, CategoryTable).query(ctx, specification.Query{Where: specification.In(domain.FieldID, ids)})
	if err != nil {
		return err
	}
	m := byID(parents)
	for _, c := range items {
		if c.ParentCategoryID != nil {
			c.Parent = m[*c.ParentCategoryID]
		}
	}
	return nil
}

func loadChildren(ctx context.Context, u *UnitOfWork, items []*domain.Category) error {
	ids := make([]uuid.UUID, len(items))
	for i, c := range items {
		ids[i] = c.ID
	}
	children, err := For(u, CategoryTable).query(ctx, specification.Query{
		Where: specification.In(domain.FieldParentCategoryID, ids),
		Order: []specification.Order{specification.Asc(domain.FieldDisplayOrder), specification.Asc(domain.FieldName)},
	})
	if err != nil {
		return err
	}
	m := byID(items)
	for _, c := range items {
		c.Children = nil
	}
	for _, child := range children {
		if parent, ok := m[*child.ParentCategoryID]; ok {
			parent.Children = append(parent.Children, child)
		}
	}
	return nil
}

func loadProductCategories(ctx context.Context, u *UnitOfWork, items []*domain.Product) error {
	ids := make([]uuid.UUID, len(items))
	for i, p := range items {
		ids[i] = p.CategoryID
	}
	categories, err := For(u, CategoryTable).query(ctx, specification.Query{Where: specification.In(domain.FieldID, ids)})
	if err != nil {
		return err
	}
	m := byID(categories)
	for _, p := range items {
		p.Category = m[p.CategoryID]
	}
	return nil
}

func loadProductTags(ctx context.Context, u *UnitOfWork, items []*domain.Product) error {
	ids := make([]uuid.UUID, len(items))
	for i, p := range items {
		ids[i] = p.ID
	}
	links, err := For(u, ProductTagTable).query(ctx, specification.Query{
		Where:    specification.In(domain.FieldProductID, ids),
		Includes: []specification.Include{IncludeTag},
		Order:    []specification.Order{specification.Asc(domain.FieldDisplayOrder), specification.Asc(domain.FieldID)},
	})
	if err != nil {
		return err
	}
	m := byID(items)
	for _, p := range items {
		p.Tags = nil
	}
	for _, link := range links {
		if p, ok := m[link.ProductID]; ok {
			p.Tags = append(p.Tags, link)
		}
	}
	return nil
}

func loadTaggedProducts(ctx context.Context, u *UnitOfWork, items []*domain.ProductTag) error {
	ids := make([]uuid.UUID, len(items))
	for i, pt := range items {
		ids[i] = pt.ProductID
	}
	products, err := For(u, ProductTable).query(ctx, specification.Query{Where: specification.In(domain.FieldID, ids)})
	if err != nil {
		return err
	}
	m := byID(products)
	for _, pt := range items {
		pt.Product = m[pt.ProductID]
	}
	return nil
}

func loadTags(ctx context.Context, u *UnitOfWork, items []*domain.ProductTag) error {
	ids := make([]uuid.UUID, len(items))
	for i, pt := range items {
		ids[i] = pt.TagID
	}
	tags, err := For(u, TagTable).query(ctx, specification.Query{Where: specification.In(domain.FieldID, ids)})
	if err != nil {
		return err
	}
	m := byID(tags)
	for _, pt := range items {
		pt.Tag = m[pt.TagID]
	}
	return nil
}

// excludingDeleted narrows e to stored rows the unit of work has not staged
// for deletion.
func excludingDeleted(u *UnitOfWork, schema *storage.Schema, e *specification.Expr) *specification.Expr {
	deleted := u.stagedDeletes(schema)
	if len(deleted) == 0 {
		return e
	}
	return specification.And(e, specification.Not(specification.In(domain.FieldID, deleted)))
}

func guardCategoryRemoval(ctx context.Context, u *UnitOfWork, c *domain.Category) error {
	var blockers []string

	products, err := For(u, ProductTable).CountWhere(ctx,
		excludingDeleted(u, ProductTable.Schema, specification.Eq(domain.FieldCategoryID, c.ID)))
	if err != nil {
		return err
	}
	if products > 0 || u.hasStaged(ProductTable.Schema, func(e Entity) bool { return e.(*domain.Product).CategoryID == c.ID }) {
		blockers = append(blockers, "products")
	}

	children, err := For(u, CategoryTable).CountWhere(ctx,
		excludingDeleted(u, CategoryTable.Schema, specification.Eq(domain.FieldParentCategoryID, c.ID)))
	if err != nil {
		return err
	}
	if children > 0 || u.hasStaged(CategoryTable.Schema, func(e Entity) bool {
		p := e.(*domain.Category).ParentCategoryID
		return p != nil && *p == c.ID
	}) {
		blockers = append(blockers, "child categories")
	}

	if len(blockers) > 0 {
		return fmt.Errorf("%w: category %q still has %s", domain.ErrInvalidOperation, c.Name, strings.Join(blockers, " and "))
	}
	return nil
}

func guardTagRemoval(ctx context.Context, u *UnitOfWork, t *domain.Tag) error {
	n, err := For(u, ProductTagTable).CountWhere(ctx,
		excludingDeleted(u, ProductTagTable.Schema, specification.Eq(domain.FieldTagID, t.ID)))
	if err != nil {
		return err
	}
	if n > 0 || u.hasStaged(ProductTagTable.Schema, func(e Entity) bool { return e.(*domain.ProductTag).TagID == t.ID }) {
		return fmt.Errorf("%w: tag %q is assigned to %d products", domain.ErrInvalidOperation, t.Name, n)
	}
	return nil
}

// cascadeProductTags stages the removal of every tag link of p.
func cascadeProductTags(ctx context.Context, u *UnitOfWork, p *domain.Product) error {
	repo := For(u, ProductTagTable)
	links, err := repo.query(ctx, specification.Query{Where: specification.Eq(domain.FieldProductID, p.ID)})
	if err != nil {
		return err
	}
	for _, staged := range u.stagedAdds(ProductTagTable.Schema) {
		if pt := staged.(*domain.ProductTag); pt.ProductID == p.ID {
			links = append(links, pt)
		}
	}
	slices.SortFunc(links, func(a, b *domain.ProductTag) int { return cmp.Compare(a.DisplayOrder, b.DisplayOrder) })
	return repo.RemoveRange(ctx, links...)
}
