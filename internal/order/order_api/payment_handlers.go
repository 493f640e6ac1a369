package order_api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"ms-ticketcodes/internal/models"
	"ms-ticketcodes/internal/order"
	"ms-ticketcodes/internal/utils"
)

const maxWebhookBody = 1 << 20

// Provider statuses that mean the money has been captured.
var paidStatuses = map[string]bool{
	"paid":            true,
	"payment_success": true,
	"completed":       true,
	"success":         true,
}

type webhookAck struct {
	Received bool          `json:"received"`
	Outcome  order.Outcome `json:"outcome,omitempty"`
	Ignored  string        `json:"ignored,omitempty"`
}

// CreatePaymentIntent opens a checkout for an order and returns where the
// customer should be sent to pay.
func (h *Handler) CreatePaymentIntent(w http.ResponseWriter, r *http.Request) {
	var req models.PaymentIntentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.OrderID) == "" {
		h.Logger.Error("API", "CreatePaymentIntent: order ID is required")
		h.writeJSON(w, http.StatusBadRequest, utils.ErrorResponse("Order ID is required", "missing orderId"))
		return
	}
	h.Logger.Info("API", fmt.Sprintf("CreatePaymentIntent: orderId=%s", req.OrderID))

	intent, err := h.OrderService.CreatePaymentIntent(r.Context(), req.OrderID)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("CreatePaymentIntent: failed to create payment intent: %v", err))
		h.writeOrderError(w, err)
		return
	}

	h.Logger.Info("API", fmt.Sprintf("CreatePaymentIntent: created checkout %s for order %s", intent.TransactionID, intent.OrderNumber))
	h.writeJSON(w, http.StatusOK, utils.SuccessResponse("Payment intent created", intent))
}

// PaymentCallback handles the customer's browser returning from the hosted
// checkout. The answer is always a redirect to the success or error page.
func (h *Handler) PaymentCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	orderID := q.Get("orderId")
	invoiceID := q.Get("invoiceId")
	status := q.Get("status")
	test := isTruthy(q.Get("test"))
	h.Logger.Info("API", fmt.Sprintf("PaymentCallback: orderId=%s invoiceId=%s status=%s test=%t", orderID, invoiceID, status, test))

	if orderID == "" {
		h.redirectError(w, r, "")
		return
	}

	if !(status == "success" || invoiceID != "" || (test && h.TestMode)) {
		if test && !h.TestMode {
			h.Logger.LogSecurity("TEST_CALLBACK_REJECTED", fmt.Sprintf("test callback for order %s while test mode is off", orderID))
		}
		// A late failure redirect must not hide a payment that already went through.
		if details, err := h.OrderService.GetOrderDetails(r.Context(), orderID); err == nil && details.Order.IsCompleted() {
			h.redirectSuccess(w, r, orderID)
			return
		}
		h.redirectError(w, r, "")
		return
	}

	res, err := h.PaymentService.CompletePayment(r.Context(), order.Signal{
		Source:     order.SourceCallback,
		OrderID:    orderID,
		ExternalID: invoiceID,
		Amount:     q.Get("amount"),
		Test:       test,
	})
	if err != nil {
		var perr *order.PaymentError
		if errors.As(err, &perr) && perr.Category == order.CategoryValidation {
			h.redirectError(w, r, perr.Reason)
			return
		}
		h.Logger.Error("API", fmt.Sprintf("PaymentCallback: completion failed for order %s: %v", orderID, err))
		h.redirectError(w, r, "")
		return
	}
	switch res.Outcome {
	case order.OutcomeUnresolved:
		h.redirectError(w, r, "")
		return
	case order.OutcomeNotPending:
		h.redirectError(w, r, order.ReasonNotPending)
		return
	}

	h.redirectSuccess(w, r, orderID)
}

// PaymentWebhook handles the provider's server-to-server notification.
// Anything that cannot be acted on is acknowledged with 200 so the provider
// stops retrying; only internal failures answer 5xx.
func (h *Handler) PaymentWebhook(w http.ResponseWriter, r *http.Request) {
	h.Logger.Info("API", "PaymentWebhook: received webhook event")

	raw, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		h.Logger.Warn("API", fmt.Sprintf("PaymentWebhook: failed to read body: %v", err))
		h.writeJSON(w, http.StatusOK, webhookAck{Received: true, Ignored: "unreadable body"})
		return
	}

	body, err := decodeWebhook(raw)
	if err != nil {
		h.Logger.Warn("API", fmt.Sprintf("PaymentWebhook: ignoring malformed payload: %v", err))
		h.writeJSON(w, http.StatusOK, webhookAck{Received: true, Ignored: "malformed payload"})
		return
	}

	externalID := firstString(body, "invoiceId", "id", "checkoutId")
	status := strings.ToLower(firstString(body, "status", "paymentStatus"))
	if externalID == "" || !paidStatuses[status] {
		h.Logger.Info("API", fmt.Sprintf("PaymentWebhook: ignoring id=%q status=%q", externalID, status))
		h.writeJSON(w, http.StatusOK, webhookAck{Received: true, Ignored: "not a completed payment"})
		return
	}

	res, err := h.PaymentService.CompletePayment(r.Context(), order.Signal{
		Source:     order.SourceWebhook,
		ExternalID: externalID,
		Amount:     amountField(body, "amount", "totalAmount", "paidAmount"),
	})
	if err != nil {
		h.writePaymentError(w, err)
		return
	}

	h.Logger.Info("API", fmt.Sprintf("PaymentWebhook: %s -> %s", externalID, res.Outcome))
	h.writeJSON(w, http.StatusOK, webhookAck{Received: true, Outcome: res.Outcome})
}

func (h *Handler) writePaymentError(w http.ResponseWriter, err error) {
	var perr *order.PaymentError
	if !errors.As(err, &perr) {
		h.Logger.Error("API", fmt.Sprintf("PaymentWebhook: %v", err))
		h.writeJSON(w, http.StatusInternalServerError, utils.ErrorResponse("Payment processing error", "internal error"))
		return
	}

	h.Logger.Info("API", fmt.Sprintf("PaymentWebhook: handling payment error category=%s, status=%d", perr.Category, perr.StatusCode))
	resp := utils.ErrorResponse(perr.PublicError, perr.Category)
	resp.Reason = perr.Reason
	h.writeJSON(w, perr.StatusCode, resp)
}

func (h *Handler) redirectSuccess(w http.ResponseWriter, r *http.Request, orderID string) {
	http.Redirect(w, r, "/checkout/success?orderId="+url.QueryEscape(orderID), http.StatusFound)
}

func (h *Handler) redirectError(w http.ResponseWriter, r *http.Request, reason string) {
	target := "/checkout/payment-error"
	if reason != "" {
		target += "?reason=" + url.QueryEscape(reason)
	}
	http.Redirect(w, r, target, http.StatusFound)
}

func decodeWebhook(raw []byte) (map[string]interface{}, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var body map[string]interface{}
	if err := dec.Decode(&body); err != nil {
		return nil, err
	}
	if body == nil {
		return nil, errors.New("payload is not a JSON object")
	}
	return body, nil
}

func firstString(body map[string]interface{}, keys ...string) string {
	for _, k := range keys {
		switch v := body[k].(type) {
		case string:
			if s := strings.TrimSpace(v); s != "" {
				return s
			}
		case json.Number:
			return v.String()
		}
	}
	return ""
}

// amountField accepts a bare number, a numeric string or a {"value": ...}
// object under any of keys.
func amountField(body map[string]interface{}, keys ...string) string {
	for _, k := range keys {
		switch v := body[k].(type) {
		case json.Number:
			return v.String()
		case string:
			if s := strings.TrimSpace(v); s != "" {
				return s
			}
		case map[string]interface{}:
			if s := amountField(v, "value"); s != "" {
				return s
			}
		}
	}
	return ""
}

func isTruthy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes":
		return true
	}
	return false
}
