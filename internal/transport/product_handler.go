package transport

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"catalog-core/internal/catalog"
	"catalog-core/internal/domain"
	"catalog-core/internal/middleware"
	"catalog-core/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// CreateProductRequest is the payload for creating a product
type CreateProductRequest struct {
	Name          string           `json:"name" validate:"required,max=255"`
	Slug          string           `json:"slug" validate:"omitempty,max=255,slug"`
	Description   string           `json:"description" validate:"max=10000"`
	Price         decimal.Decimal  `json:"price" validate:"gt=0"`
	DiscountPrice *decimal.Decimal `json:"discount_price" validate:"omitempty,gt=0"`
	StockQuantity int              `json:"stock_quantity" validate:"gte=0"`
	Sku           *string          `json:"sku" validate:"omitempty,max=64"`
	Barcode       *string          `json:"barcode" validate:"omitempty,max=64"`
	CategoryID    uuid.UUID        `json:"category_id" validate:"required"`
	IsFeatured    bool             `json:"is_featured"`
}

// UpdateProductRequest changes only the fields present in the payload.
type UpdateProductRequest struct {
	Name          *string          `json:"name" validate:"omitempty,max=255"`
	Slug          *string          `json:"slug" validate:"omitempty,max=255,slug"`
	Description   *string          `json:"description" validate:"omitempty,max=10000"`
	Price         *decimal.Decimal `json:"price" validate:"omitempty,gt=0"`
	DiscountPrice *decimal.Decimal `json:"discount_price" validate:"omitempty,gt=0"`
	ClearDiscount bool             `json:"clear_discount"`
	StockQuantity *int             `json:"stock_quantity" validate:"omitempty,gte=0"`
	Sku           *string          `json:"sku" validate:"omitempty,max=64"`
	Barcode       *string          `json:"barcode" validate:"omitempty,max=64"`
	CategoryID    *uuid.UUID       `json:"category_id"`
	IsFeatured    *bool            `json:"is_featured"`
}

// StockRequest adjusts stock by a signed delta
type StockRequest struct {
	Delta int `json:"delta" validate:"ne=0"`
}

// AssignTagRequest attaches a tag to a product, optionally for a window of time
type AssignTagRequest struct {
	DisplayOrder int        `json:"display_order" validate:"gte=0"`
	IsFeatured   bool       `json:"is_featured"`
	StartDate    *time.Time `json:"start_date"`
	EndDate      *time.Time `json:"end_date"`
}

// ProductHandler handles HTTP requests for products
type ProductHandler struct {
	products service.ProductService
	tags     service.TagService
	logger   *zap.Logger
}

// NewProductHandler creates a new ProductHandler
func NewProductHandler(products service.ProductService, tags service.TagService, logger *zap.Logger) *ProductHandler {
	return &ProductHandler{products: products, tags: tags, logger: logger}
}

// RegisterRoutes registers the storefront reads and, behind guard, the admin
// endpoints. Storefront routes only ever show published products.
func (h *ProductHandler) RegisterRoutes(r chi.Router, guard func(http.Handler) http.Handler) {
	r.Route("/api/products", func(r chi.Router) {
		r.Get("/", h.listPublished)
		r.Get("/featured", h.Featured)
		r.Get("/{id}", h.getPublished)
		r.Get("/{id}/tags", h.ActiveTags)
	})

	r.Route("/api/admin/products", func(r chi.Router) {
		r.Use(guard)
		r.Get("/", h.List)
		r.Post("/", h.Create)
		r.Get("/{id}", h.Get)
		r.Patch("/{id}", h.Update)
		r.Post("/{id}/stock", h.AdjustStock)
		r.Post("/{id}/publish", h.Publish)
		r.Post("/{id}/unpublish", h.Unpublish)
		r.Delete("/{id}", h.Delete)
		r.Put("/{id}/tags/{tagID}", h.AssignTag)
		r.Delete("/{id}/tags/{tagID}", h.UnassignTag)
	})
}

// query reads the listing filters shared by the storefront and admin lists.
func query(r *http.Request) (service.ProductQuery, error) {
	var q service.ProductQuery
	var err error
	if q.Page, q.Size, err = pageParams(r); err != nil {
		return q, err
	}
	if q.CategoryID, err = queryID(r, "category_id"); err != nil {
		return q, err
	}
	deep, err := queryBool(r, "include_subcategories")
	if err != nil {
		return q, err
	}
	q.IncludeSubcategories = deep != nil && *deep

	f := catalog.ProductFilter{Search: r.URL.Query().Get("search")}
	if f.Featured, err = queryBool(r, "featured"); err != nil {
		return q, err
	}
	if f.Published, err = queryBool(r, "published"); err != nil {
		return q, err
	}
	if f.MinPrice, err = queryDecimal(r, "min_price"); err != nil {
		return q, err
	}
	if f.MaxPrice, err = queryDecimal(r, "max_price"); err != nil {
		return q, err
	}
	q.Filter = f
	return q, nil
}

func (h *ProductHandler) respondPage(w http.ResponseWriter, r *http.Request, q service.ProductQuery) {
	page, err := h.products.List(r.Context(), q)
	if err != nil {
		middleware.RespondWithDomainError(w, h.logger, err)
		return
	}
	w.Header().Set("X-Total-Count", strconv.Itoa(page.Total))
	middleware.RespondWithJSON(w, http.StatusOK, page)
}

func (h *ProductHandler) listPublished(w http.ResponseWriter, r *http.Request) {
	q, err := query(r)
	if err != nil {
		middleware.RespondWithDomainError(w, h.logger, err)
		return
	}
	published := true
	q.Filter.Published = &published
	h.respondPage(w, r, q)
}

// List pages through every product, published or not.
func (h *ProductHandler) List(w http.ResponseWriter, r *http.Request) {
	q, err := query(r)
	if err != nil {
		middleware.RespondWithDomainError(w, h.logger, err)
		return
	}
	h.respondPage(w, r, q)
}

func (h *ProductHandler) Featured(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 10)
	if err == nil && (limit < 1 || limit > maxPageSize) {
		err = badRequest("limit must be between 1 and %d", maxPageSize)
	}
	if err != nil {
		middleware.RespondWithDomainError(w, h.logger, err)
		return
	}
	items, err := h.products.Featured(r.Context(), limit)
	if err != nil {
		middleware.RespondWithDomainError(w, h.logger, err)
		return
	}
	if items == nil {
		items = []*domain.Product{}
	}
	middleware.RespondWithJSON(w, http.StatusOK, items)
}

func (h *ProductHandler) load(w http.ResponseWriter, r *http.Request) (*domain.Product, bool) {
	id, err := pathID(r, "id")
	if err != nil {
		middleware.RespondWithDomainError(w, h.logger, err)
		return nil, false
	}
	p, err := h.products.Get(r.Context(), id)
	if err != nil {
		middleware.RespondWithDomainError(w, h.logger, err)
		return nil, false
	}
	return p, true
}

func (h *ProductHandler) getPublished(w http.ResponseWriter, r *http.Request) {
	p, ok := h.load(w, r)
	if !ok {
		return
	}
	if !p.IsPublished {
		middleware.RespondWithDomainError(w, h.logger, fmt.Errorf("%w: product %s", domain.ErrNotFound, p.ID))
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, p)
}

func (h *ProductHandler) Get(w http.ResponseWriter, r *http.Request) {
	if p, ok := h.load(w, r); ok {
		middleware.RespondWithJSON(w, http.StatusOK, p)
	}
}

// ActiveTags lists the tags currently shown on a product.
func (h *ProductHandler) ActiveTags(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		middleware.RespondWithDomainError(w, h.logger, err)
		return
	}
	tags, err := h.tags.ActiveTags(r.Context(), id)
	if err != nil {
		middleware.RespondWithDomainError(w, h.logger, err)
		return
	}
	if tags == nil {
		tags = []*domain.Tag{}
	}
	middleware.RespondWithJSON(w, http.StatusOK, tags)
}

func (h *ProductHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateProductRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		h.logger.Debug("Product validation failed", zap.Error(err))
		middleware.RespondWithDecodeError(w, err)
		return
	}
	p, err := h.products.Create(r.Context(), domain.ProductParams{
		Name:          req.Name,
		Description:   req.Description,
		Price:         req.Price,
		DiscountPrice: req.DiscountPrice,
		StockQuantity: req.StockQuantity,
		Sku:           req.Sku,
		Barcode:       req.Barcode,
		CategoryID:    req.CategoryID,
		IsFeatured:    req.IsFeatured,
		Slug:          req.Slug,
	})
	if err != nil {
		middleware.RespondWithDomainError(w, h.logger, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusCreated, p)
}

func (h *ProductHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		middleware.RespondWithDomainError(w, h.logger, err)
		return
	}
	var req UpdateProductRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		h.logger.Debug("Product validation failed", zap.Error(err))
		middleware.RespondWithDecodeError(w, err)
		return
	}
	p, err := h.products.Update(r.Context(), id, service.ProductUpdate{
		Name:          req.Name,
		Slug:          req.Slug,
		Description:   req.Description,
		Price:         req.Price,
		DiscountPrice: req.DiscountPrice,
		ClearDiscount: req.ClearDiscount,
		StockQuantity: req.StockQuantity,
		Sku:           req.Sku,
		Barcode:       req.Barcode,
		CategoryID:    req.CategoryID,
		IsFeatured:    req.IsFeatured,
	})
	if err != nil {
		middleware.RespondWithDomainError(w, h.logger, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, p)
}

func (h *ProductHandler) AdjustStock(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		middleware.RespondWithDomainError(w, h.logger, err)
		return
	}
	var req StockRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		middleware.RespondWithDecodeError(w, err)
		return
	}
	p, err := h.products.AdjustStock(r.Context(), id, req.Delta)
	if err != nil {
		middleware.RespondWithDomainError(w, h.logger, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, p)
}

func (h *ProductHandler) Publish(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.products.Publish)
}

func (h *ProductHandler) Unpublish(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.products.Unpublish)
}

func (h *ProductHandler) transition(w http.ResponseWriter, r *http.Request, apply func(ctx context.Context, id uuid.UUID) (*domain.Product, error)) {
	id, err := pathID(r, "id")
	if err != nil {
		middleware.RespondWithDomainError(w, h.logger, err)
		return
	}
	p, err := apply(r.Context(), id)
	if err != nil {
		middleware.RespondWithDomainError(w, h.logger, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, p)
}

func (h *ProductHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		middleware.RespondWithDomainError(w, h.logger, err)
		return
	}
	if err := h.products.Delete(r.Context(), id); err != nil {
		middleware.RespondWithDomainError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// AssignTag attaches {tagID} to product {id}.
func (h *ProductHandler) AssignTag(w http.ResponseWriter, r *http.Request) {
	productID, err := pathID(r, "id")
	if err != nil {
		middleware.RespondWithDomainError(w, h.logger, err)
		return
	}
	tagID, err := pathID(r, "tagID")
	if err != nil {
		middleware.RespondWithDomainError(w, h.logger, err)
		return
	}
	var req AssignTagRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		middleware.RespondWithDecodeError(w, err)
		return
	}
	link, err := h.tags.Assign(r.Context(), productID, tagID, service.Assignment{
		DisplayOrder: req.DisplayOrder,
		IsFeatured:   req.IsFeatured,
		StartDate:    req.StartDate,
		EndDate:      req.EndDate,
	})
	if err != nil {
		middleware.RespondWithDomainError(w, h.logger, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusCreated, link)
}

func (h *ProductHandler) UnassignTag(w http.ResponseWriter, r *http.Request) {
	productID, err := pathID(r, "id")
	if err != nil {
		middleware.RespondWithDomainError(w, h.logger, err)
		return
	}
	tagID, err := pathID(r, "tagID")
	if err != nil {
		middleware.RespondWithDomainError(w, h.logger, err)
		return
	}
	if err := h.tags.Unassign(r.Context(), productID, tagID); err != nil {
		middleware.RespondWithDomainError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
