package promo

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/coursehub/coursehub-api/internal/pkg/errorhandler"
	"github.com/coursehub/coursehub-api/internal/pkg/response"
	"github.com/coursehub/coursehub-api/internal/pkg/validator"
)

// Handler handles admin promo code HTTP requests
type Handler struct {
	service *Service
}

// NewHandler creates new promo handler
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Create handles POST /api/admin/promo-codes
// @Summary Create promo code
// @Tags Admin Promo
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body CreateRequest true "Promo code"
// @Success 201 {object} response.Response{data=Response}
// @Failure 409 {object} response.Response
// @Failure 422 {object} response.Response
// @Router /admin/promo-codes [post]
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}

	if errs := validator.Validate(&req); errs != nil {
		errorhandler.LogValidationError(r.Context(), errs)
		response.ValidationError(w, errs)
		return
	}
	if !req.DiscountValue.IsPositive() {
		response.ValidationError(w, map[string]string{"discount_value": "Value must be greater than 0"})
		return
	}

	p, err := h.service.Create(r.Context(), &req)
	switch {
	case errors.Is(err, ErrCodeExists):
		response.Conflict(w, "promo code already exists")
	case errors.Is(err, ErrExpiryPast):
		response.ValidationError(w, map[string]string{"expired_at": err.Error()})
	case errors.Is(err, ErrPercentMax), errors.Is(err, ErrFractional):
		response.ValidationError(w, map[string]string{"discount_value": err.Error()})
	case err != nil:
		errorhandler.Internal(r.Context(), w, err)
	default:
		response.Created(w, p.ToResponse())
	}
}

// List handles GET /api/admin/promo-codes
// @Summary List promo codes
// @Tags Admin Promo
// @Produce json
// @Security BearerAuth
// @Param limit query int false "Page size"
// @Param offset query int false "Offset"
// @Param include_deleted query bool false "Include soft-deleted codes"
// @Success 200 {object} response.Response
// @Router /admin/promo-codes [get]
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))
	includeDeleted, _ := strconv.ParseBool(q.Get("include_deleted"))

	codes, total, err := h.service.List(r.Context(), ListFilter{
		IncludeDeleted: includeDeleted,
		Limit:          limit,
		Offset:         offset,
	})
	if err != nil {
		errorhandler.Internal(r.Context(), w, err)
		return
	}

	items := make([]*Response, 0, len(codes))
	for i := range codes {
		items = append(items, codes[i].ToResponse())
	}

	response.OK(w, map[string]interface{}{
		"items": items,
		"total": total,
	})
}

// Delete handles DELETE /api/admin/promo-codes/{id}
// @Summary Soft delete promo code
// @Tags Admin Promo
// @Security BearerAuth
// @Param id path string true "Promo code ID"
// @Success 204
// @Failure 404 {object} response.Response
// @Router /admin/promo-codes/{id} [delete]
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "invalid promo code id")
		return
	}

	if err := h.service.Delete(r.Context(), id); err != nil {
		if errors.Is(err, ErrNotFound) {
			response.NotFound(w, "promo code not found")
			return
		}
		errorhandler.Internal(r.Context(), w, err)
		return
	}

	response.NoContent(w)
}

// AdminRoutes returns promo code admin routes. The caller applies auth and role guards.
func AdminRoutes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Post("/", h.Create)
	r.Get("/", h.List)
	r.Delete("/{id}", h.Delete)
	return r
}
