package transaction

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/coursehub/coursehub-api/internal/domain/course"
	"github.com/coursehub/coursehub-api/internal/middleware"
	"github.com/coursehub/coursehub-api/internal/pkg/errorhandler"
	"github.com/coursehub/coursehub-api/internal/pkg/logger"
	"github.com/coursehub/coursehub-api/internal/pkg/response"
	"github.com/coursehub/coursehub-api/internal/pkg/validator"
)

// Handler handles checkout and transaction HTTP requests
type Handler struct {
	service *Service
}

// NewHandler creates new transaction handler
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Quote handles POST /api/v1/checkout/quote
// @Summary Price preview
// @Tags Checkout
// @Accept json
// @Produce json
// @Param request body QuoteRequest true "Course type and promo code"
// @Success 200 {object} response.Response{data=QuoteResponse}
// @Failure 404 {object} response.Response
// @Router /checkout/quote [post]
func (h *Handler) Quote(w http.ResponseWriter, r *http.Request) {
	var req QuoteRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}
	if errs := validator.Validate(&req); errs != nil {
		response.ValidationError(w, errs)
		return
	}

	priced, err := h.service.Quote(r.Context(), uuid.MustParse(req.CourseTypeID), req.PromoCode)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	resp := &QuoteResponse{
		CourseTypeID: priced.CourseType.ID.String(),
		CourseTitle:  priced.CourseType.DisplayName(),
		Quote:        priced.Quote,
		PromoApplied: priced.Promo != nil && priced.Quote.PromoApplied(),
	}
	if resp.PromoApplied {
		resp.PromoCode = priced.Promo.Code
	}
	response.OK(w, resp)
}

// Initiate handles POST /api/v1/checkout
// @Summary Start a purchase
// @Tags Checkout
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body InitiateRequest true "Course type and promo code"
// @Success 201 {object} response.Response{data=InitiateResponse}
// @Failure 401 {object} response.Response
// @Failure 409 {object} response.Response
// @Router /checkout [post]
func (h *Handler) Initiate(w http.ResponseWriter, r *http.Request) {
	var req InitiateRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}
	if errs := validator.Validate(&req); errs != nil {
		errorhandler.LogValidationError(r.Context(), errs)
		response.ValidationError(w, errs)
		return
	}

	studentID := middleware.GetUserID(r.Context())
	t, err := h.service.Initiate(r.Context(), studentID, uuid.MustParse(req.CourseTypeID), req.PromoCode)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	response.Created(w, &InitiateResponse{
		ID:         t.ID.String(),
		Code:       t.Code,
		Status:     t.Status,
		FinalPrice: t.FinalPrice,
	})
}

// CreateSession handles POST /api/v1/checkout/{id}/session
// @Summary Open the payment page
// @Tags Checkout
// @Produce json
// @Security BearerAuth
// @Param id path string true "Transaction ID"
// @Success 200 {object} response.Response{data=SessionResponse}
// @Failure 409 {object} response.Response
// @Failure 502 {object} response.Response
// @Router /checkout/{id}/session [post]
func (h *Handler) CreateSession(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "invalid transaction id")
		return
	}

	session, err := h.service.CreateSession(r.Context(), middleware.GetUserID(r.Context()), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	response.OK(w, &SessionResponse{
		TransactionID: id.String(),
		Token:         session.Token,
		RedirectURL:   session.RedirectURL,
	})
}

// ListMine handles GET /api/v1/transactions
// @Summary Purchase history
// @Tags Transactions
// @Produce json
// @Security BearerAuth
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Response
// @Router /transactions [get]
func (h *Handler) ListMine(w http.ResponseWriter, r *http.Request) {
	page, limit := pageParams(r)

	items, total, err := h.service.ListMine(r.Context(), middleware.GetUserID(r.Context()), limit, (page-1)*limit)
	if err != nil {
		errorhandler.Internal(r.Context(), w, err)
		return
	}

	out := make([]*Response, 0, len(items))
	for i := range items {
		out = append(out, items[i].ToResponse())
	}
	response.WithMeta(w, out, response.NewMeta(total, page, limit))
}

// Get handles GET /api/v1/transactions/{id}
// @Summary Transaction details
// @Tags Transactions
// @Produce json
// @Security BearerAuth
// @Param id path string true "Transaction ID"
// @Success 200 {object} response.Response{data=Response}
// @Failure 404 {object} response.Response
// @Router /transactions/{id} [get]
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "invalid transaction id")
		return
	}

	viewer := Viewer{UserID: middleware.GetUserID(r.Context()), IsAdmin: middleware.IsAdmin(r.Context())}
	d, err := h.service.Lookup(r.Context(), id, viewer)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	response.OK(w, d.ToResponse())
}

// AdminList handles GET /api/admin/transactions
// @Summary List transactions
// @Tags Admin Transactions
// @Produce json
// @Security BearerAuth
// @Param status query string false "unpaid, paid or failed"
// @Param limit query int false "Page size"
// @Param offset query int false "Offset"
// @Success 200 {object} response.Response
// @Router /admin/transactions [get]
func (h *Handler) AdminList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	status := Status(q.Get("status"))
	if status != "" && validator.ValidateVar(string(status), "transaction_status") != nil {
		response.ValidationError(w, map[string]string{"status": "Invalid status. Must be: unpaid, paid, or failed"})
		return
	}
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))

	items, total, err := h.service.ListAll(r.Context(), ListFilter{Status: status, Limit: limit, Offset: offset})
	if err != nil {
		errorhandler.Internal(r.Context(), w, err)
		return
	}

	out := make([]*Response, 0, len(items))
	for i := range items {
		out = append(out, items[i].ToResponse())
	}
	response.OK(w, map[string]interface{}{
		"items": out,
		"total": total,
	})
}

// AdminUpdateStatus handles PATCH /api/admin/transactions/{id}/status
// @Summary Override transaction status
// @Tags Admin Transactions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Transaction ID"
// @Param request body UpdateStatusRequest true "New status"
// @Success 200 {object} response.Response{data=Response}
// @Failure 409 {object} response.Response
// @Router /admin/transactions/{id}/status [patch]
func (h *Handler) AdminUpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "invalid transaction id")
		return
	}

	var req UpdateStatusRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}
	if errs := validator.Validate(&req); errs != nil {
		response.ValidationError(w, errs)
		return
	}

	t, res, err := h.service.UpdateStatus(r.Context(), id, Status(req.Status))
	if err != nil && !errors.Is(err, ErrFulfillment) {
		h.writeError(w, r, err)
		return
	}
	if err != nil {
		errorhandler.LogExternalServiceError(r.Context(), "fulfillment", "on_paid", 0, err, "")
	}

	logger.FromContext(r.Context()).Info().
		Str("admin_id", middleware.GetUserID(r.Context()).String()).
		Str("transaction_id", t.ID.String()).
		Str("from", string(res.From)).
		Str("to", string(res.To)).
		Bool("changed", res.Changed).
		Msg("admin status override")

	response.OK(w, t.ToResponse())
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrNotAuthenticated):
		response.Unauthorized(w, "Authentication required")
	case errors.Is(err, ErrNotFound):
		response.NotFound(w, "transaction not found")
	case errors.Is(err, course.ErrCourseTypeNotFound):
		response.NotFound(w, "course type not found")
	case errors.Is(err, course.ErrFractionalPrice):
		response.UnprocessableEntity(w, "INVALID_PRICE", err.Error())
	case errors.Is(err, ErrDuplicatePurchase):
		response.Conflict(w, err.Error())
	case errors.Is(err, ErrPromoUnavailable):
		response.Conflict(w, err.Error())
	case errors.Is(err, ErrInvalidTransition):
		response.Conflict(w, err.Error())
	case errors.Is(err, ErrNotPayable):
		response.UnprocessableEntity(w, "NOT_PAYABLE", err.Error())
	case errors.Is(err, ErrPriceMismatch):
		response.Conflict(w, err.Error())
	case errors.Is(err, ErrGateway):
		response.BadGateway(w, "payment gateway is unavailable, try again later")
	default:
		errorhandler.Internal(r.Context(), w, err)
	}
}

func pageParams(r *http.Request) (page, limit int) {
	page, _ = strconv.Atoi(r.URL.Query().Get("page"))
	limit, _ = strconv.Atoi(r.URL.Query().Get("limit"))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	return page, limit
}
