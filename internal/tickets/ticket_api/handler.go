package ticket_api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"ms-ticketcodes/internal/logger"
	"ms-ticketcodes/internal/models"
	"ms-ticketcodes/internal/tickets/importer"
	"ms-ticketcodes/internal/utils"

	"github.com/go-chi/chi/v5"
)

type TicketTypeLister interface {
	ListTicketTypes(ctx context.Context) ([]models.TicketType, error)
}

type PoolReader interface {
	Stats(ctx context.Context) (models.PoolStats, error)
}

type Handler struct {
	TicketTypes TicketTypeLister
	Pool        PoolReader
	Importer    *importer.Importer
	Logger      *logger.Logger
}

func NewHandler(types TicketTypeLister, pool PoolReader, imp *importer.Importer, log *logger.Logger) *Handler {
	return &Handler{
		TicketTypes: types,
		Pool:        pool,
		Importer:    imp,
		Logger:      log,
	}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/tickets", h.ListTicketTypes)
}

func (h *Handler) RegisterAdminRoutes(r chi.Router) {
	r.Get("/admin/codes/stats", h.PoolStats)
	r.Post("/admin/codes", h.ImportCodes)
}

// ListTicketTypes returns the ticket types on sale, cheapest first.
func (h *Handler) ListTicketTypes(w http.ResponseWriter, r *http.Request) {
	types, err := h.TicketTypes.ListTicketTypes(r.Context())
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("ListTicketTypes: %v", err))
		h.writeJSON(w, http.StatusInternalServerError, utils.ErrorResponse("Failed to fetch tickets", "internal error"))
		return
	}
	if types == nil {
		types = []models.TicketType{}
	}
	h.writeJSON(w, http.StatusOK, utils.SuccessResponse("Ticket types retrieved", types))
}

func (h *Handler) PoolStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.Pool.Stats(r.Context())
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("PoolStats: %v", err))
		h.writeJSON(w, http.StatusInternalServerError, utils.ErrorResponse("Error retrieving pool stats", "internal error"))
		return
	}
	h.writeJSON(w, http.StatusOK, utils.SuccessResponse("Pool stats retrieved", stats))
}

type importRequest struct {
	Codes []struct {
		TicketNumber string `json:"ticketNumber"`
		TicketCode   string `json:"ticketCode"`
	} `json:"codes"`
}

// ImportCodes adds codes posted as JSON, with the same rules as the sheet
// import.
func (h *Handler) ImportCodes(w http.ResponseWriter, r *http.Request) {
	var req importRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid request body", err.Error()))
		return
	}
	if len(req.Codes) == 0 {
		h.writeJSON(w, http.StatusBadRequest, utils.ErrorResponse("No codes supplied", "codes is empty"))
		return
	}

	rows := make([][]string, 0, len(req.Codes))
	for _, c := range req.Codes {
		rows = append(rows, []string{c.TicketNumber, c.TicketCode})
	}

	res, err := h.Importer.ImportRows(r.Context(), rows, "admin-api")
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("ImportCodes: %v", err))
		h.writeJSON(w, http.StatusInternalServerError, utils.ErrorResponse("Import failed", "internal error"))
		return
	}
	h.writeJSON(w, http.StatusOK, utils.SuccessResponse("Codes imported", res))
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, body interface{}) {
	if err := utils.WriteJSON(w, status, body); err != nil {
		h.Logger.Error("API", fmt.Sprintf("failed to encode response: %v", err))
	}
}
