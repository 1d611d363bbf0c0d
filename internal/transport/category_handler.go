package transport

import (
	"net/http"

	"catalog-core/internal/middleware"
	"catalog-core/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CategoryRequest is the payload for creating or updating a category
type CategoryRequest struct {
	Name         string     `json:"name" validate:"required,max=200"`
	Description  *string    `json:"description" validate:"omitempty,max=2000"`
	ImageURL     *string    `json:"image_url" validate:"omitempty,url"`
	ParentID     *uuid.UUID `json:"parent_id"`
	DisplayOrder int        `json:"display_order" validate:"gte=0"`
}

func (req CategoryRequest) input() service.CategoryInput {
	return service.CategoryInput{
		Name:         req.Name,
		Description:  req.Description,
		ImageURL:     req.ImageURL,
		ParentID:     req.ParentID,
		DisplayOrder: req.DisplayOrder,
	}
}

// MoveRequest re-parents a category. A null parent makes it a main category.
type MoveRequest struct {
	ParentID *uuid.UUID `json:"parent_id"`
}

// ProductCountResponse is returned by the product count endpoint
type ProductCountResponse struct {
	CategoryID         uuid.UUID `json:"category_id"`
	IncludeDescendants bool      `json:"include_descendants"`
	Count              int       `json:"count"`
}

// CategoryHandler handles HTTP requests for categories
type CategoryHandler struct {
	categories service.CategoryService
	logger     *zap.Logger
}

// NewCategoryHandler creates a new CategoryHandler
func NewCategoryHandler(categories service.CategoryService, logger *zap.Logger) *CategoryHandler {
	return &CategoryHandler{categories: categories, logger: logger}
}

// RegisterRoutes registers the public category reads and, behind guard, the
// admin writes.
func (h *CategoryHandler) RegisterRoutes(r chi.Router, guard func(http.Handler) http.Handler) {
	r.Route("/api/categories", func(r chi.Router) {
		r.Get("/", h.Tree)
		r.Get("/{id}", h.Get)
		r.Get("/{id}/path", h.Path)
		r.Get("/{id}/product-count", h.ProductCount)
	})

	r.Route("/api/admin/categories", func(r chi.Router) {
		r.Use(guard)
		r.Post("/", h.Create)
		r.Put("/{id}", h.Update)
		r.Post("/{id}/move", h.Move)
		r.Delete("/{id}", h.Delete)
	})
}

// Tree returns the ordered category forest, or one subtree with ?root=.
func (h *CategoryHandler) Tree(w http.ResponseWriter, r *http.Request) {
	root, err := queryID(r, "root")
	if err != nil {
		middleware.RespondWithDomainError(w, h.logger, err)
		return
	}
	tree, err := h.categories.Tree(r.Context(), root)
	if err != nil {
		middleware.RespondWithDomainError(w, h.logger, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, tree)
}

func (h *CategoryHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		middleware.RespondWithDomainError(w, h.logger, err)
		return
	}
	c, err := h.categories.Get(r.Context(), id)
	if err != nil {
		middleware.RespondWithDomainError(w, h.logger, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, c)
}

// Path returns the categories from the main category down to {id}.
func (h *CategoryHandler) Path(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		middleware.RespondWithDomainError(w, h.logger, err)
		return
	}
	path, err := h.categories.Path(r.Context(), id)
	if err != nil {
		middleware.RespondWithDomainError(w, h.logger, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, path)
}

func (h *CategoryHandler) ProductCount(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		middleware.RespondWithDomainError(w, h.logger, err)
		return
	}
	deep, err := queryBool(r, "include_descendants")
	if err != nil {
		middleware.RespondWithDomainError(w, h.logger, err)
		return
	}
	include := deep != nil && *deep
	n, err := h.categories.ProductCount(r.Context(), id, include)
	if err != nil {
		middleware.RespondWithDomainError(w, h.logger, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, ProductCountResponse{
		CategoryID:         id,
		IncludeDescendants: include,
		Count:              n,
	})
}

func (h *CategoryHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CategoryRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		h.logger.Debug("Category validation failed", zap.Error(err))
		middleware.RespondWithDecodeError(w, err)
		return
	}
	c, err := h.categories.Create(r.Context(), req.input())
	if err != nil {
		middleware.RespondWithDomainError(w, h.logger, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusCreated, c)
}

func (h *CategoryHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		middleware.RespondWithDomainError(w, h.logger, err)
		return
	}
	var req CategoryRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		h.logger.Debug("Category validation failed", zap.Error(err))
		middleware.RespondWithDecodeError(w, err)
		return
	}
	c, err := h.categories.Update(r.Context(), id, req.input())
	if err != nil {
		middleware.RespondWithDomainError(w, h.logger, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, c)
}

func (h *CategoryHandler) Move(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		middleware.RespondWithDomainError(w, h.logger, err)
		return
	}
	var req MoveRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		middleware.RespondWithDecodeError(w, err)
		return
	}
	if err := h.categories.Move(r.Context(), id, req.ParentID); err != nil {
		middleware.RespondWithDomainError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *CategoryHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		middleware.RespondWithDomainError(w, h.logger, err)
		return
	}
	if err := h.categories.Delete(r.Context(), id); err != nil {
		middleware.RespondWithDomainError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
