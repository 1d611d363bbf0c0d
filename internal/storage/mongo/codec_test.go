package mongo

import (
	"testing"
	"time"

	"catalog-core/internal/domain"
	"catalog-core/internal/specification"
	"catalog-core/internal/storage"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var productSchema = &storage.Schema{
	Collection: "products",
	Columns:    domain.ProductColumns,
	Immutable:  []string{domain.FieldID, domain.FieldCreatedAt, domain.FieldCreatedBy},
	New:        func() storage.Record { return &domain.Product{} },
}

func TestDocumentRoundTrip(t *testing.T) {
	discount := decimal.RequireFromString("3.25")
	sku := "SKU-9"
	p, err := domain.NewProduct(domain.ProductParams{
		Name:          "Lemonade",
		Price:         decimal.RequireFromString("4.50"),
		DiscountPrice: &discount,
		Sku:           &sku,
		StockQuantity: 7,
		CategoryID:    uuid.New(),
	})
	if err != nil {
		t.Fatalf("NewProduct() error = %v", err)
	}
	p.CreatedAt = time.Date(2024, 1, 2, 3, 4, 5, 6000000, time.UTC)
	p.Publish(p.CreatedAt)

	doc, err := toDocument(productSchema, p, productSchema.Columns)
	if err != nil {
		t.Fatalf("toDocument() error = %v", err)
	}
	if doc[0].Key != "_id" || doc[0].Value != p.ID.String() {
		t.Errorf("first element = %v, want _id string", doc[0])
	}

	raw, err := bson.Marshal(doc)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	rec, err := decode(productSchema, raw)
	if err != nil {
		t.Fatalf("decode() error = %v", err)
	}
	got := rec.(*domain.Product)

	if got.ID != p.ID || got.CategoryID != p.CategoryID {
		t.Errorf("ids = %s/%s, want %s/%s", got.ID, got.CategoryID, p.ID, p.CategoryID)
	}
	if !got.Price.Equal(p.Price) || got.DiscountPrice == nil || !got.DiscountPrice.Equal(discount) {
		t.Errorf("prices = %s/%v", got.Price, got.DiscountPrice)
	}
	if got.Sku == nil || *got.Sku != sku || got.Barcode != nil {
		t.Errorf("codes = %v/%v", got.Sku, got.Barcode)
	}
	if got.StockQuantity != 7 || !got.IsPublished || got.PublishedAt == nil {
		t.Errorf("stock/published = %d/%v/%v", got.StockQuantity, got.IsPublished, got.PublishedAt)
	}
	if !got.CreatedAt.Equal(p.CreatedAt) {
		t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, p.CreatedAt)
	}
	if got.ModifiedAt != nil {
		t.Errorf("ModifiedAt = %v, want nil", got.ModifiedAt)
	}
}

func TestFilter(t *testing.T) {
	id := uuid.New()
	f, err := filter(specification.And(
		specification.Eq(domain.FieldID, id),
		specification.Contains(domain.FieldName, "a.b"),
		specification.Gte(domain.FieldPrice, decimal.NewFromInt(2)),
	))
	if err != nil {
		t.Fatalf("filter() error = %v", err)
	}
	and, ok := f[0].Value.(bson.A)
	if f[0].Key != "$and" || !ok || len(and) != 3 {
		t.Fatalf("filter() = %v", f)
	}

	eq := and[0].(bson.D)
	if eq[0].Key != "_id" || eq[0].Value.(bson.D)[0].Value != id.String() {
		t.Errorf("id filter = %v", eq)
	}
	re := and[1].(bson.D)[0].Value.(primitive.Regex)
	if re.Pattern != `a\.b` || re.Options != "i" {
		t.Errorf("regex = %v", re)
	}
	if _, ok := and[2].(bson.D)[0].Value.(bson.D)[0].Value.(primitive.Decimal128); !ok {
		t.Errorf("price operand not encoded as Decimal128: %v", and[2])
	}
}

func TestFilter_NilAndNone(t *testing.T) {
	f, _ := filter(nil)
	if len(f) != 0 {
		t.Errorf("filter(nil) = %v", f)
	}
	f, _ = filter(specification.None())
	if f[0].Key != "_id" {
		t.Errorf("filter(None) = %v", f)
	}
}
