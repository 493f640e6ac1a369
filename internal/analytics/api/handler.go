package analytics_api

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	"ms-ticketcodes/internal/analytics"
	"ms-ticketcodes/internal/logger"
	"ms-ticketcodes/internal/models"
	"ms-ticketcodes/internal/utils"

	"github.com/go-chi/chi/v5"
)

// Handler handles analytics HTTP endpoints
type Handler struct {
	Service *analytics.Service
	Logger  *logger.Logger
}

// NewHandler creates a new analytics handler
func NewHandler(service *analytics.Service, logger *logger.Logger) *Handler {
	return &Handler{
		Service: service,
		Logger:  logger,
	}
}

// RegisterRoutes registers the analytics routes on a chi router
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/admin/stats", h.GetDashboardStats)
	r.Get("/admin/orders/export", h.ExportOrders)
}

// GetDashboardStats handles GET /admin/stats
func (h *Handler) GetDashboardStats(w http.ResponseWriter, r *http.Request) {
	h.Logger.Info("ANALYTICS", "Dashboard stats requested")

	stats, err := h.Service.GetDashboardStats(r.Context())
	if err != nil {
		h.Logger.Error("ANALYTICS", fmt.Sprintf("Failed to fetch stats: %v", err))
		sendJSONResponse(w, http.StatusInternalServerError, utils.ErrorResponse("Failed to fetch stats", "internal error"))
		return
	}
	sendJSONResponse(w, http.StatusOK, utils.SuccessResponse("Stats retrieved", stats))
}

// ExportOrders handles GET /admin/orders/export?status=CONFIRMED
func (h *Handler) ExportOrders(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")
	if status != "" && !models.OrderStatus(status).Valid() {
		sendJSONResponse(w, http.StatusBadRequest, utils.ErrorResponse("Invalid status filter", status))
		return
	}

	// Buffer so a failed query can still answer with a JSON error.
	var buf bytes.Buffer
	n, err := h.Service.ExportOrders(r.Context(), &buf, status)
	if err != nil {
		h.Logger.Error("ANALYTICS", fmt.Sprintf("Failed to export orders: %v", err))
		sendJSONResponse(w, http.StatusInternalServerError, utils.ErrorResponse("Failed to export orders", "internal error"))
		return
	}

	filename := fmt.Sprintf("orders-%s.csv", time.Now().UTC().Format("20060102-150405"))
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(buf.Bytes()); err != nil {
		h.Logger.Error("ANALYTICS", fmt.Sprintf("Failed to write export: %v", err))
		return
	}
	h.Logger.Info("ANALYTICS", fmt.Sprintf("Exported %d orders", n))
}

// sendJSONResponse is a helper function to send JSON responses
func sendJSONResponse(w http.ResponseWriter, status int, data interface{}) {
	_ = utils.WriteJSON(w, status, data)
}
