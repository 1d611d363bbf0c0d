package transport

import (
	"net/http"

	"catalog-core/internal/domain"
	"catalog-core/internal/middleware"
	"catalog-core/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// CreateTagRequest is the payload for creating a tag
type CreateTagRequest struct {
	Name         string `json:"name" validate:"required,max=100"`
	DisplayOrder int    `json:"display_order" validate:"gte=0"`
}

// RenameTagRequest is the payload for renaming a tag
type RenameTagRequest struct {
	Name string `json:"name" validate:"required,max=100"`
}

// TagHandler handles HTTP requests for tags
type TagHandler struct {
	tags   service.TagService
	logger *zap.Logger
}

// NewTagHandler creates a new TagHandler
func NewTagHandler(tags service.TagService, logger *zap.Logger) *TagHandler {
	return &TagHandler{tags: tags, logger: logger}
}

// RegisterRoutes registers the public tag list and, behind guard, the admin
// endpoints.
func (h *TagHandler) RegisterRoutes(r chi.Router, guard func(http.Handler) http.Handler) {
	r.Get("/api/tags", h.listActive)

	r.Route("/api/admin/tags", func(r chi.Router) {
		r.Use(guard)
		r.Get("/", h.List)
		r.Post("/", h.Create)
		r.Put("/{id}", h.Rename)
		r.Post("/{id}/activate", h.Activate)
		r.Post("/{id}/deactivate", h.Deactivate)
		r.Delete("/{id}", h.Delete)
	})
}

func (h *TagHandler) respondList(w http.ResponseWriter, r *http.Request, activeOnly bool) {
	tags, err := h.tags.List(r.Context(), activeOnly)
	if err != nil {
		middleware.RespondWithDomainError(w, h.logger, err)
		return
	}
	if tags == nil {
		tags = []*domain.Tag{}
	}
	middleware.RespondWithJSON(w, http.StatusOK, tags)
}

func (h *TagHandler) listActive(w http.ResponseWriter, r *http.Request) {
	h.respondList(w, r, true)
}

// List returns every tag; ?active=true narrows it to active ones.
func (h *TagHandler) List(w http.ResponseWriter, r *http.Request) {
	active, err := queryBool(r, "active")
	if err != nil {
		middleware.RespondWithDomainError(w, h.logger, err)
		return
	}
	h.respondList(w, r, active != nil && *active)
}

func (h *TagHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateTagRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		middleware.RespondWithDecodeError(w, err)
		return
	}
	t, err := h.tags.Create(r.Context(), req.Name, req.DisplayOrder)
	if err != nil {
		middleware.RespondWithDomainError(w, h.logger, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusCreated, t)
}

func (h *TagHandler) Rename(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		middleware.RespondWithDomainError(w, h.logger, err)
		return
	}
	var req RenameTagRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		middleware.RespondWithDecodeError(w, err)
		return
	}
	t, err := h.tags.Rename(r.Context(), id, req.Name)
	if err != nil {
		middleware.RespondWithDomainError(w, h.logger, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, t)
}

func (h *TagHandler) Activate(w http.ResponseWriter, r *http.Request)   { h.setActive(w, r, true) }
func (h *TagHandler) Deactivate(w http.ResponseWriter, r *http.Request) { h.setActive(w, r, false) }

func (h *TagHandler) setActive(w http.ResponseWriter, r *http.Request, active bool) {
	id, err := pathID(r, "id")
	if err != nil {
		middleware.RespondWithDomainError(w, h.logger, err)
		return
	}
	t, err := h.tags.SetActive(r.Context(), id, active)
	if err != nil {
		middleware.RespondWithDomainError(w, h.logger, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, t)
}

func (h *TagHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		middleware.RespondWithDomainError(w, h.logger, err)
		return
	}
	if err := h.tags.Delete(r.Context(), id); err != nil {
		middleware.RespondWithDomainError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
