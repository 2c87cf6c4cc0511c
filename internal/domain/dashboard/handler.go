package dashboard

import (
	"net/http"

	"github.com/coursehub/coursehub-api/internal/pkg/errorhandler"
	"github.com/coursehub/coursehub-api/internal/pkg/response"
)

// Handler handles dashboard HTTP requests
type Handler struct {
	service *Service
}

// NewHandler creates new dashboard handler
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// TransactionStats returns aggregated transaction statistics
// GET /api/admin/transactions/stats
func (h *Handler) TransactionStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.TransactionStats(r.Context())
	if err != nil {
		errorhandler.Internal(r.Context(), w, err)
		return
	}
	response.OK(w, stats)
}
