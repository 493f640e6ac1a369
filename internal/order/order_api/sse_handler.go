package order_api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"ms-ticketcodes/internal/logger"
	"ms-ticketcodes/internal/models"
	"ms-ticketcodes/internal/order"
	"ms-ticketcodes/internal/sse"

	"github.com/go-chi/chi/v5"
)

// SSEHandler streams order status updates to the success page.
type SSEHandler struct {
	Logger       *logger.Logger
	EventEmitter *sse.OrderEventEmitter
	Orders       *order.OrderService
	Heartbeat    time.Duration
}

func NewSSEHandler(log *logger.Logger, emitter *sse.OrderEventEmitter, orders *order.OrderService) *SSEHandler {
	return &SSEHandler{
		Logger:       log,
		EventEmitter: emitter,
		Orders:       orders,
		Heartbeat:    25 * time.Second,
	}
}

// HandleOrderEvents sends the order's current state, then every update
// published for it until the client goes away.
func (h *SSEHandler) HandleOrderEvents(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderId")
	if orderID == "" {
		http.Error(w, "Order ID is required", http.StatusBadRequest)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// Subscribe before the snapshot so an update in between is not lost.
	eventChan := h.EventEmitter.Subscribe(ctx, orderID)

	snapshot, err := h.Orders.GetOrderDetails(ctx, orderID)
	if err != nil {
		if errors.Is(err, order.ErrOrderNotFound) {
			http.Error(w, "Order not found", http.StatusNotFound)
			return
		}
		h.Logger.Error("SSE", fmt.Sprintf("Failed to load order %s: %v", orderID, err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	h.setupSSEHeaders(w)
	fmt.Fprintf(w, "event: connected\ndata: {\"status\":\"connected\",\"orderId\":%q}\n\n", orderID)
	h.writeEvent(w, *snapshot)
	flusher.Flush()

	h.Logger.Info("SSE", fmt.Sprintf("Client connected to order events for order: %s", orderID))

	heartbeat := time.NewTicker(h.Heartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case update, ok := <-eventChan:
			if !ok {
				h.Logger.Debug("SSE", fmt.Sprintf("Channel closed for order: %s", orderID))
				return
			}
			h.writeEvent(w, update)
			flusher.Flush()

		case <-heartbeat.C:
			fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()

		case <-ctx.Done():
			h.Logger.Debug("SSE", fmt.Sprintf("Client disconnected from order events for: %s", orderID))
			return
		}
	}
}

func (h *SSEHandler) writeEvent(w http.ResponseWriter, update models.OrderWithTickets) {
	jsonData, err := json.Marshal(update)
	if err != nil {
		h.Logger.Error("SSE", fmt.Sprintf("Failed to serialize order event: %v", err))
		return
	}
	fmt.Fprintf(w, "event: order\ndata: %s\n\n", jsonData)
}

func (h *SSEHandler) setupSSEHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream;charset=UTF-8")
	w.Header().Set("Cache-Control", "no-cache, no-store, max-age=0, must-revalidate")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Pragma", "no-cache")
	w.Header().Set("Expires", "0")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("X-Accel-Buffering", "no")
}
