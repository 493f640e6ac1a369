package order_api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"ms-ticketcodes/internal/logger"
	"ms-ticketcodes/internal/models"
	"ms-ticketcodes/internal/order"
	orderdb "ms-ticketcodes/internal/order/db"
	"ms-ticketcodes/internal/utils"

	"github.com/go-chi/chi/v5"
)

type Handler struct {
	OrderService   *order.OrderService
	PaymentService *order.PaymentService
	Logger         *logger.Logger
	TestMode       bool
}

func NewHandler(orderService *order.OrderService, paymentService *order.PaymentService, log *logger.Logger) *Handler {
	return &Handler{
		OrderService:   orderService,
		PaymentService: paymentService,
		Logger:         log,
	}
}

// RegisterRoutes registers the public order and payment routes under /api.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/health", h.Health)
	r.Get("/ordering-status", h.OrderingStatus)

	r.Post("/orders", h.CreateOrder)
	r.Get("/orders/{orderId}", h.GetOrder)

	r.Route("/payments", func(r chi.Router) {
		r.Post("/create-intent", h.CreatePaymentIntent)
		r.Get("/paymaya-callback", h.PaymentCallback)
		r.Post("/paymaya-callback", h.PaymentWebhook)
		r.Post("/webhook", h.PaymentWebhook)
	})
}

// RegisterAdminRoutes registers the operator routes. The caller is expected
// to have applied the auth middleware.
func (h *Handler) RegisterAdminRoutes(r chi.Router) {
	r.Route("/admin", func(r chi.Router) {
		r.Get("/orders", h.AdminListOrders)
		r.Get("/orders/{orderId}", h.AdminGetOrder)
		r.Patch("/orders/{orderId}", h.AdminUpdateOrder)
		r.Post("/orders/{orderId}/allocate", h.AdminAllocateOrder)
		r.Post("/allocations/pending", h.AdminAllocatePending)
	})
}

func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	h.Logger.Info("API", "CreateOrder: received request")

	var req models.CreateOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Logger.Error("API", fmt.Sprintf("CreateOrder: failed to decode request body: %v", err))
		h.writeJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid request body", err.Error()))
		return
	}

	created, err := h.OrderService.CreateOrder(r.Context(), req)
	if err != nil {
		h.Logger.Warn("API", fmt.Sprintf("CreateOrder: rejected: %v", err))
		h.writeOrderError(w, err)
		return
	}

	h.Logger.Info("API", fmt.Sprintf("CreateOrder: created order %s", created.OrderNumber))
	h.writeJSON(w, http.StatusCreated, utils.SuccessResponse("Order created", created))
}

func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderId")
	h.Logger.Info("API", fmt.Sprintf("GetOrder: orderId=%s", orderID))

	details, err := h.OrderService.GetOrderDetails(r.Context(), orderID)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("GetOrder: %v", err))
		h.writeOrderError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, utils.SuccessResponse("Order retrieved", details))
}

func (h *Handler) OrderingStatus(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, utils.SuccessResponse("Ordering status", map[string]bool{
		"enabled":  h.OrderService.OrderingEnabled,
		"testMode": h.OrderService.TestMode,
	}))
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ---------------- ADMIN ----------------

func (h *Handler) AdminListOrders(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := orderdb.OrderFilter{
		Status: q.Get("status"),
		Search: q.Get("search"),
	}
	f.Page, _ = strconv.Atoi(q.Get("page"))
	f.Limit, _ = strconv.Atoi(q.Get("limit"))
	if f.Status != "" && !models.OrderStatus(f.Status).Valid() {
		h.writeJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid status filter", order.ErrInvalidStatus.Error()))
		return
	}

	orders, total, err := h.OrderService.ListOrders(r.Context(), f)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("AdminListOrders: %v", err))
		h.writeJSON(w, http.StatusInternalServerError, utils.ErrorResponse("Failed to list orders", "internal error"))
		return
	}
	h.writeJSON(w, http.StatusOK, utils.SuccessResponse("Orders retrieved", map[string]interface{}{
		"orders": orders,
		"total":  total,
	}))
}

func (h *Handler) AdminGetOrder(w http.ResponseWriter, r *http.Request) {
	h.GetOrder(w, r)
}

func (h *Handler) AdminUpdateOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderId")
	h.Logger.Info("API", fmt.Sprintf("AdminUpdateOrder: orderId=%s", orderID))

	var upd models.AdminOrderUpdate
	if err := json.NewDecoder(r.Body).Decode(&upd); err != nil {
		h.writeJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid request body", err.Error()))
		return
	}

	updated, err := h.OrderService.AdminUpdateStatus(r.Context(), orderID, upd)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("AdminUpdateOrder: %v", err))
		h.writeOrderError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, utils.SuccessResponse("Order updated", updated))
}

func (h *Handler) AdminAllocateOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderId")
	h.Logger.Info("API", fmt.Sprintf("AdminAllocateOrder: orderId=%s", orderID))

	res, err := h.PaymentService.AllocateOrder(r.Context(), orderID)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("AdminAllocateOrder: %v", err))
		h.writeOrderError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, utils.SuccessResponse("Allocation complete", res))
}

func (h *Handler) AdminAllocatePending(w http.ResponseWriter, r *http.Request) {
	h.Logger.Info("API", "AdminAllocatePending: sweep requested")

	summary, err := h.PaymentService.AllocatePending(r.Context())
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("AdminAllocatePending: %v", err))
		h.writeJSON(w, http.StatusInternalServerError, utils.ErrorResponse("Sweep failed", "internal error"))
		return
	}
	h.writeJSON(w, http.StatusOK, utils.SuccessResponse("Sweep complete", summary))
}

func (h *Handler) writeOrderError(w http.ResponseWriter, err error) {
	var verr *order.ValidationError
	switch {
	case errors.As(err, &verr):
		h.writeJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid request data", verr.Error()))
	case errors.Is(err, order.ErrOrderNotFound):
		h.writeJSON(w, http.StatusNotFound, utils.ErrorResponse("Order not found", err.Error()))
	case errors.Is(err, order.ErrOrderingDisabled):
		h.writeJSON(w, http.StatusForbidden, utils.ErrorResponse("Ordering disabled", err.Error()))
	case errors.Is(err, order.ErrTicketTypeInvalid),
		errors.Is(err, order.ErrQuantityExceeded),
		errors.Is(err, order.ErrInvalidStatus),
		errors.Is(err, order.ErrAlreadyPaid):
		h.writeJSON(w, http.StatusBadRequest, utils.ErrorResponse("Request rejected", err.Error()))
	case errors.Is(err, order.ErrNothingToAllocate):
		h.writeJSON(w, http.StatusConflict, utils.ErrorResponse("Nothing to allocate", err.Error()))
	case errors.Is(err, order.ErrProviderNotReady):
		h.writeJSON(w, http.StatusServiceUnavailable, utils.ErrorResponse("Payment provider unavailable", err.Error()))
	default:
		h.writeJSON(w, http.StatusInternalServerError, utils.ErrorResponse("Internal server error", "internal error"))
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, body interface{}) {
	if err := utils.WriteJSON(w, status, body); err != nil {
		h.Logger.Error("API", fmt.Sprintf("failed to encode response: %v", err))
	}
}
