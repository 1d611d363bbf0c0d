package catalog

import (
	"testing"
	"time"

	"catalog-core/internal/domain"
	spec "catalog-core/internal/specification"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func product(t *testing.T, name, sku string, price string) *domain.Product {
	t.Helper()
	p, err := domain.NewProduct(domain.ProductParams{
		Name:       name,
		Price:      decimal.RequireFromString(price),
		CategoryID: uuid.New(),
		Sku:        &sku,
	})
	if err != nil {
		t.Fatalf("NewProduct(%q) error = %v", name, err)
	}
	return p
}

func names(products []*domain.Product) []string {
	out := make([]string, len(products))
	for i, p := range products {
		out[i] = p.Name
	}
	return out
}

func TestProductFilter(t *testing.T) {
	pizza := product(t, "Pepperoni Pizza", "PZ-1", "12.00")
	pasta := product(t, "Carbonara", "PS-1", "9.50")
	bread := product(t, "Garlic Bread", "BR-1", "4.00")
	pasta.Publish(time.Now())
	all := []*domain.Product{pizza, pasta, bread}

	minPrice := decimal.RequireFromString("5")
	published := true

	tests := []struct {
		name   string
		filter ProductFilter
		want   []string
	}{
		{"empty filter matches all", ProductFilter{}, []string{"Pepperoni Pizza", "Carbonara", "Garlic Bread"}},
		{"search is case insensitive", ProductFilter{Search: "PIZZA"}, []string{"Pepperoni Pizza"}},
		{"search covers sku", ProductFilter{Search: "br-"}, []string{"Garlic Bread"}},
		{"minimum price", ProductFilter{MinPrice: &minPrice}, []string{"Pepperoni Pizza", "Carbonara"}},
		{"published only", ProductFilter{Published: &published}, []string{"Carbonara"}},
		{"category", ProductFilter{CategoryIDs: []uuid.UUID{bread.CategoryID}}, []string{"Garlic Bread"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := names(spec.Filter(all, tt.filter.criteria()))
			if len(got) != len(tt.want) {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Fatalf("got %v, want %v", got, tt.want)
				}
			}
		})
	}
}

func TestActiveProductTags_WindowIsInclusive(t *testing.T) {
	productID := uuid.New()
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC)

	link, err := domain.NewProductTag(productID, uuid.New(), 0)
	if err != nil {
		t.Fatalf("NewProductTag() error = %v", err)
	}
	if err := link.SetWindow(&start, &end); err != nil {
		t.Fatalf("SetWindow() error = %v", err)
	}
	open, err := domain.NewProductTag(productID, uuid.New(), 1)
	if err != nil {
		t.Fatalf("NewProductTag() error = %v", err)
	}

	tests := []struct {
		name string
		at   time.Time
		want int
	}{
		{"before start", start.Add(-time.Second), 1},
		{"at start", start, 2},
		{"at end", end, 2},
		{"after end", end.Add(time.Second), 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := ActiveProductTags(productID, tt.at)
			got := spec.Filter([]*domain.ProductTag{link, open}, s.Criteria)
			if len(got) != tt.want {
				t.Errorf("got %d active links, want %d", len(got), tt.want)
			}
		})
	}
}

func TestUniquenessPredicatesExcludeSelf(t *testing.T) {
	p := product(t, "Calzone", "CZ-1", "10.00")
	items := []*domain.Product{p}

	if got := spec.Filter(items, SkuTaken("CZ-1", nil)); len(got) != 1 {
		t.Errorf("SkuTaken without exclusion matched %d, want 1", len(got))
	}
	if got := spec.Filter(items, SkuTaken("CZ-1", &p.ID)); len(got) != 0 {
		t.Errorf("SkuTaken excluding self matched %d, want 0", len(got))
	}
}
