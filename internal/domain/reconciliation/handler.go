package reconciliation

import (
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/coursehub/coursehub-api/internal/pkg/logger"
	"github.com/coursehub/coursehub-api/internal/pkg/response"
)

const maxNotificationSize = 1 << 20

// Ack is the body returned to the gateway
type Ack struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

type rejection struct {
	Error string `json:"error"`
}

// Handler receives payment gateway notifications
type Handler struct {
	service *Service
}

// NewHandler creates new webhook handler
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Notification handles POST /webhooks/midtrans/notification.
// The gateway only ever sees 200 with an Ack or 403. A body that cannot be read
// or decoded has no signature to verify, so it is refused as unsigned.
// @Summary Midtrans HTTP notification
// @Tags Webhooks
// @Accept json
// @Produce json
// @Success 200 {object} Ack
// @Failure 403 {object} rejection
// @Router /webhooks/midtrans/notification [post]
func (h *Handler) Notification(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxNotificationSize))
	if err != nil {
		logger.FromContext(r.Context()).Warn().Err(err).Msg("notification body unreadable")
		response.Raw(w, http.StatusForbidden, rejection{Error: "Missing signature"})
		return
	}

	outcome, err := h.service.Handle(r.Context(), body)
	switch {
	case errors.Is(err, ErrInvalidSignature):
		response.Raw(w, http.StatusForbidden, rejection{Error: "Invalid signature"})
		return
	case err != nil:
		response.Raw(w, http.StatusForbidden, rejection{Error: "Missing signature"})
		return
	}

	success, message := outcome.Ack()
	response.Raw(w, http.StatusOK, Ack{Success: success, Message: message})
}

// Routes returns webhook router
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/midtrans/notification", h.Notification)
	return r
}
