package order_api_test

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"ms-ticketcodes/internal/database/sqlitetest"
	"ms-ticketcodes/internal/logger"
	"ms-ticketcodes/internal/models"
	"ms-ticketcodes/internal/notify"
	"ms-ticketcodes/internal/order"
	orderdb "ms-ticketcodes/internal/order/db"
	"ms-ticketcodes/internal/order/order_api"
	"ms-ticketcodes/internal/sse"
	ticketdb "ms-ticketcodes/internal/tickets/db"
	tickets "ms-ticketcodes/internal/tickets/service"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
)

type apiFixture struct {
	router  http.Handler
	db      *bun.DB
	store   *orderdb.DB
	orders  *order.OrderService
	emitter *sse.OrderEventEmitter
}

func newAPIFixture(t *testing.T, testMode bool) *apiFixture {
	bunDB := sqlitetest.New(t)
	sqlitetest.SeedTicketType(t, bunDB, "Premium", "1500")
	log := logger.NewDiscard()

	store := &orderdb.DB{Bun: bunDB}
	alloc := tickets.NewAllocator(bunDB, &ticketdb.DB{Bun: bunDB}, log)
	emitter := sse.NewOrderEventEmitter()

	orders := order.NewOrderService(store, bunDB, alloc, nil, nil, log)
	orders.OrderingEnabled = true
	orders.TestMode = testMode
	orders.PublicURL = "https://shop.example"

	payments := order.NewPaymentService(bunDB, store, alloc, nil, notify.NewBridge(nil, nil, nil, emitter, log), log)
	payments.TestMode = testMode

	h := order_api.NewHandler(orders, payments, log)
	h.TestMode = testMode
	events := order_api.NewSSEHandler(log, emitter, orders)

	r := chi.NewRouter()
	r.Route("/api", func(r chi.Router) {
		h.RegisterRoutes(r)
		r.Get("/orders/{orderId}/events", events.HandleOrderEvents)
		h.RegisterAdminRoutes(r)
	})

	return &apiFixture{router: r, db: bunDB, store: store, orders: orders, emitter: emitter}
}

func (f *apiFixture) do(t *testing.T, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func (f *apiFixture) seedTransaction(t *testing.T, orderID, externalID, amount string) {
	t.Helper()
	now := time.Now().UTC()
	require.NoError(t, f.store.UpsertTransaction(context.Background(), f.db, &models.PaymentTransaction{
		ID:         "txn-" + orderID,
		OrderID:    orderID,
		Provider:   models.ProviderPayMaya,
		ExternalID: externalID,
		Amount:     decimal.RequireFromString(amount),
		Status:     models.TransactionPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}))
}

func (f *apiFixture) orderDetails(t *testing.T, id string) models.OrderWithTickets {
	t.Helper()
	rec := f.do(t, http.MethodGet, "/api/orders/"+id, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Data models.OrderWithTickets `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	return body.Data
}

type ackBody struct {
	Received bool   `json:"received"`
	Outcome  string `json:"outcome"`
	Ignored  string `json:"ignored"`
	Reason   string `json:"reason"`
}

func decodeAck(t *testing.T, rec *httptest.ResponseRecorder) ackBody {
	t.Helper()
	var ack ackBody
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&ack))
	return ack
}

func TestPaymentCallbackCompletesAndRedirects(t *testing.T) {
	f := newAPIFixture(t, false)
	sqlitetest.SeedOrder(t, f.db, "o1", 2, "3000")
	sqlitetest.SeedCodes(t, f.db, 1, 3)

	rec := f.do(t, http.MethodGet, "/api/payments/paymaya-callback?orderId=o1&status=success&amount=3000.00", "")
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/checkout/success?orderId=o1", rec.Header().Get("Location"))

	details := f.orderDetails(t, "o1")
	assert.Equal(t, models.PaymentCompleted, details.Order.PaymentStatus)
	assert.Equal(t, models.OrderConfirmed, details.Order.Status)
	require.Len(t, details.Tickets, 2)
	assert.Equal(t, "CODE-0001", details.Tickets[0].TicketCode)
	assert.False(t, details.AssignmentPending)

	// The browser refreshing the callback page changes nothing.
	rec = f.do(t, http.MethodGet, "/api/payments/paymaya-callback?orderId=o1&status=success", "")
	assert.Equal(t, "/checkout/success?orderId=o1", rec.Header().Get("Location"))
	assert.Len(t, f.orderDetails(t, "o1").Tickets, 2)
}

func TestCallbackThenLateWebhookKeepsCodes(t *testing.T) {
	f := newAPIFixture(t, false)
	sqlitetest.SeedOrder(t, f.db, "o1", 2, "3000.00")
	sqlitetest.SeedCodes(t, f.db, 1, 5)
	f.seedTransaction(t, "o1", "inv-1", "3000.00")
	freeCodes := func() int {
		n, err := f.db.NewSelect().Model((*models.TicketCode)(nil)).Where("order_id IS NULL").Count(context.Background())
		require.NoError(t, err)
		return n
	}

	rec := f.do(t, http.MethodGet, "/api/payments/paymaya-callback?orderId=o1&invoiceId=inv-1&status=success", "")
	assert.Equal(t, "/checkout/success?orderId=o1", rec.Header().Get("Location"))
	first := f.orderDetails(t, "o1")
	assert.Equal(t, models.PaymentCompleted, first.Order.PaymentStatus)
	assert.Equal(t, models.OrderConfirmed, first.Order.Status)
	require.Len(t, first.Tickets, 2)
	assert.Equal(t, 3, freeCodes())

	time.Sleep(400 * time.Millisecond)
	rec = f.do(t, http.MethodPost, "/api/payments/webhook", `{"id":"inv-1","status":"PAYMENT_SUCCESS","amount":"3000.00"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "already_completed", decodeAck(t, rec).Outcome)

	assert.Equal(t, first.Tickets, f.orderDetails(t, "o1").Tickets)
	assert.Equal(t, 3, freeCodes())
}

func TestCallbackAmountMismatchLeavesOrderPending(t *testing.T) {
	f := newAPIFixture(t, false)
	sqlitetest.SeedOrder(t, f.db, "o1", 2, "3000.00")
	sqlitetest.SeedCodes(t, f.db, 1, 5)

	rec := f.do(t, http.MethodGet, "/api/payments/paymaya-callback?orderId=o1&status=success&amount=2950.00", "")
	assert.Equal(t, "/checkout/payment-error?reason=amount_mismatch", rec.Header().Get("Location"))

	details := f.orderDetails(t, "o1")
	assert.Equal(t, models.PaymentPending, details.Order.PaymentStatus)
	assert.Equal(t, models.OrderPending, details.Order.Status)
	assert.Empty(t, details.Tickets)
}

func TestPaymentCallbackFailures(t *testing.T) {
	f := newAPIFixture(t, false)
	sqlitetest.SeedOrder(t, f.db, "o1", 1, "1500")

	tests := []struct {
		name     string
		query    string
		location string
	}{
		{"missing order id", "status=success", "/checkout/payment-error"},
		{"unknown order", "orderId=nope&status=success", "/checkout/payment-error"},
		{"no success evidence", "orderId=o1&status=failed", "/checkout/payment-error"},
		{"amount mismatch", "orderId=o1&status=success&amount=1499.98", "/checkout/payment-error?reason=amount_mismatch"},
		{"amount not a number", "orderId=o1&status=success&amount=abc", "/checkout/payment-error?reason=invalid_amount"},
		{"test flag outside test mode", "orderId=o1&test=1", "/checkout/payment-error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(t, http.MethodGet, "/api/payments/paymaya-callback?"+tt.query, "")
			assert.Equal(t, http.StatusFound, rec.Code)
			assert.Equal(t, tt.location, rec.Header().Get("Location"))
		})
	}

	assert.Equal(t, models.PaymentPending, f.orderDetails(t, "o1").Order.PaymentStatus)
}

func TestPaymentCallbackWithinToleranceCompletes(t *testing.T) {
	f := newAPIFixture(t, false)
	sqlitetest.SeedOrder(t, f.db, "o1", 1, "1500")
	sqlitetest.SeedCodes(t, f.db, 1, 1)

	rec := f.do(t, http.MethodGet, "/api/payments/paymaya-callback?orderId=o1&invoiceId=inv-9&amount=1500.01", "")
	assert.Equal(t, "/checkout/success?orderId=o1", rec.Header().Get("Location"))
}

func TestPaymentCallbackFailureAfterCompletionShowsSuccess(t *testing.T) {
	f := newAPIFixture(t, false)
	sqlitetest.SeedOrder(t, f.db, "o1", 1, "1500")
	sqlitetest.SeedCodes(t, f.db, 1, 1)

	f.do(t, http.MethodGet, "/api/payments/paymaya-callback?orderId=o1&status=success", "")
	rec := f.do(t, http.MethodGet, "/api/payments/paymaya-callback?orderId=o1&status=cancelled", "")
	assert.Equal(t, "/checkout/success?orderId=o1", rec.Header().Get("Location"))
}

func TestPaymentCallbackTestMode(t *testing.T) {
	f := newAPIFixture(t, true)
	sqlitetest.SeedOrder(t, f.db, "o1", 2, "3000")
	sqlitetest.SeedCodes(t, f.db, 1, 5)

	rec := f.do(t, http.MethodGet, "/api/payments/paymaya-callback?orderId=o1&test=1", "")
	assert.Equal(t, "/checkout/success?orderId=o1", rec.Header().Get("Location"))

	details := f.orderDetails(t, "o1")
	require.Len(t, details.Tickets, 2)
	assert.Equal(t, "TEST-CR-TEST-o1-01", details.Tickets[0].TicketCode)
	assert.Equal(t, "TEST-02", details.Tickets[1].TicketNumber)

	free, err := f.db.NewSelect().Model((*models.TicketCode)(nil)).Where("order_id IS NULL").Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5, free)
}

func TestPaymentWebhook(t *testing.T) {
	f := newAPIFixture(t, false)
	sqlitetest.SeedOrder(t, f.db, "o1", 2, "3000")
	sqlitetest.SeedCodes(t, f.db, 1, 2)
	f.seedTransaction(t, "o1", "inv-1", "3000")

	body := `{"id":"inv-1","status":"PAID","totalAmount":{"value":"3000.00","currency":"PHP"}}`
	rec := f.do(t, http.MethodPost, "/api/payments/webhook", body)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "completed", decodeAck(t, rec).Outcome)

	details := f.orderDetails(t, "o1")
	assert.Equal(t, models.PaymentCompleted, details.Order.PaymentStatus)
	assert.Len(t, details.Tickets, 2)

	// Redelivery is acknowledged without a second transition.
	rec = f.do(t, http.MethodPost, "/api/payments/paymaya-callback", `{"invoiceId":"inv-1","paymentStatus":"paid","amount":3000}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "already_completed", decodeAck(t, rec).Outcome)
}

func TestPaymentWebhookIgnoredPayloads(t *testing.T) {
	f := newAPIFixture(t, false)
	sqlitetest.SeedOrder(t, f.db, "o1", 1, "1500")
	f.seedTransaction(t, "o1", "inv-1", "1500")

	for name, body := range map[string]string{
		"malformed":      `{"id":`,
		"not an object":  `[1,2,3]`,
		"missing id":     `{"status":"paid"}`,
		"pending status": `{"id":"inv-1","status":"PENDING"}`,
		"failed status":  `{"id":"inv-1","status":"payment_failed"}`,
	} {
		t.Run(name, func(t *testing.T) {
			rec := f.do(t, http.MethodPost, "/api/payments/webhook", body)
			assert.Equal(t, http.StatusOK, rec.Code)
			ack := decodeAck(t, rec)
			assert.True(t, ack.Received)
			assert.NotEmpty(t, ack.Ignored)
		})
	}

	rec := f.do(t, http.MethodPost, "/api/payments/webhook", `{"id":"inv-unknown","status":"paid"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "unresolved", decodeAck(t, rec).Outcome)

	assert.Equal(t, models.PaymentPending, f.orderDetails(t, "o1").Order.PaymentStatus)
}

func TestPaymentWebhookRejectsBadAmount(t *testing.T) {
	f := newAPIFixture(t, false)
	sqlitetest.SeedOrder(t, f.db, "o1", 1, "1500")
	f.seedTransaction(t, "o1", "inv-1", "1500")

	rec := f.do(t, http.MethodPost, "/api/payments/webhook", `{"id":"inv-1","status":"paid","paidAmount":"1400"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, order.ReasonAmountMismatch, decodeAck(t, rec).Reason)

	rec = f.do(t, http.MethodPost, "/api/payments/webhook", `{"id":"inv-1","status":"paid","amount":"lots"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, order.ReasonInvalidAmount, decodeAck(t, rec).Reason)

	assert.Equal(t, models.PaymentPending, f.orderDetails(t, "o1").Order.PaymentStatus)
}

func TestPaymentAmountCheckedOnlyForPendingOrders(t *testing.T) {
	f := newAPIFixture(t, false)
	sqlitetest.SeedOrder(t, f.db, "o1", 1, "1500")
	sqlitetest.SeedCodes(t, f.db, 1, 1)
	f.seedTransaction(t, "o1", "inv-1", "1500")

	rec := f.do(t, http.MethodPost, "/api/payments/webhook", `{"id":"inv-unknown","status":"paid","amount":"lots"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "unresolved", decodeAck(t, rec).Outcome)

	rec = f.do(t, http.MethodPost, "/api/payments/webhook", `{"id":"inv-1","status":"paid","amount":"1500.00"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "completed", decodeAck(t, rec).Outcome)

	rec = f.do(t, http.MethodPost, "/api/payments/webhook", `{"id":"inv-1","status":"paid","amount":{"value":"1,500.00"}}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "already_completed", decodeAck(t, rec).Outcome)

	rec = f.do(t, http.MethodGet, "/api/payments/paymaya-callback?orderId=o1&status=success&amount=abc", "")
	assert.Equal(t, "/checkout/success?orderId=o1", rec.Header().Get("Location"))
}

func TestPaymentSignalsAfterRefundChangeNothing(t *testing.T) {
	f := newAPIFixture(t, false)
	sqlitetest.SeedOrder(t, f.db, "o1", 1, "1500")
	sqlitetest.SeedCodes(t, f.db, 1, 1)
	f.seedTransaction(t, "o1", "inv-1", "1500")

	rec := f.do(t, http.MethodPost, "/api/payments/webhook", `{"id":"inv-1","status":"paid","amount":"1500"}`)
	require.Equal(t, "completed", decodeAck(t, rec).Outcome)

	refunded := models.PaymentRefunded
	status := models.OrderRefunded
	_, err := f.store.AdminUpdate(context.Background(), "o1",
		models.AdminOrderUpdate{Status: &status, PaymentStatus: &refunded}, time.Now().UTC())
	require.NoError(t, err)

	rec = f.do(t, http.MethodPost, "/api/payments/webhook", `{"id":"inv-1","status":"paid","amount":"1500"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "not_pending", decodeAck(t, rec).Outcome)

	rec = f.do(t, http.MethodGet, "/api/payments/paymaya-callback?orderId=o1&status=success", "")
	assert.Equal(t, "/checkout/payment-error?reason=order_not_pending", rec.Header().Get("Location"))

	details := f.orderDetails(t, "o1")
	assert.Equal(t, models.PaymentRefunded, details.Order.PaymentStatus)
	assert.Equal(t, models.OrderRefunded, details.Order.Status)
}

func TestPaymentWebhookInternalFailureAsksForRetry(t *testing.T) {
	f := newAPIFixture(t, false)
	require.NoError(t, f.db.Close())

	rec := f.do(t, http.MethodPost, "/api/payments/webhook", `{"id":"inv-1","status":"paid"}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestCreateOrderEndpoint(t *testing.T) {
	f := newAPIFixture(t, false)

	valid := `{"ticketTypeId":"Premium-type","customerName":"Ana Reyes","customerEmail":"ana@example.com",
		"customerPhone":"09171234567","emergencyContact":"Ben Reyes","emergencyPhone":"09181234567","quantity":2}`
	rec := f.do(t, http.MethodPost, "/api/orders", valid)
	require.Equal(t, http.StatusCreated, rec.Code)

	var created struct {
		Data models.Order `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&created))
	assert.True(t, created.Data.TotalAmount.Equal(decimal.RequireFromString("3000")))
	assert.Equal(t, models.PaymentPending, created.Data.PaymentStatus)

	rec = f.do(t, http.MethodPost, "/api/orders", `{"ticketTypeId":"Premium-type","quantity":0}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/orders", `not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	f.orders.OrderingEnabled = false
	rec = f.do(t, http.MethodPost, "/api/orders", valid)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/ordering-status", "")
	assert.Contains(t, rec.Body.String(), `"enabled":false`)
}

func TestCreatePaymentIntentEndpoint(t *testing.T) {
	f := newAPIFixture(t, true)
	sqlitetest.SeedOrder(t, f.db, "o1", 1, "1500")

	rec := f.do(t, http.MethodPost, "/api/payments/create-intent", `{"orderId":"o1"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var intent struct {
		Data models.PaymentIntentResponse `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&intent))
	assert.True(t, intent.Data.TestMode)
	assert.Equal(t, "https://shop.example/checkout/test-payment?orderId=o1", intent.Data.PaymentURL)
	assert.True(t, strings.HasPrefix(intent.Data.TransactionID, "test-"))

	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodPost, "/api/payments/create-intent", `{}`).Code)
	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodPost, "/api/payments/create-intent", `{"orderId":"nope"}`).Code)
}

func TestAdminEndpoints(t *testing.T) {
	f := newAPIFixture(t, false)
	sqlitetest.SeedOrder(t, f.db, "o1", 2, "3000")
	sqlitetest.SeedOrder(t, f.db, "o2", 1, "1500")
	sqlitetest.SeedCodes(t, f.db, 1, 1)

	rec := f.do(t, http.MethodGet, "/api/admin/orders?limit=10", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"total":2`)
	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodGet, "/api/admin/orders?status=BOGUS", "").Code)

	// Not yet paid, nothing to allocate.
	assert.Equal(t, http.StatusConflict, f.do(t, http.MethodPost, "/api/admin/orders/o1/allocate", "").Code)
	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodPost, "/api/admin/orders/nope/allocate", "").Code)

	// Paid with one code short.
	f.do(t, http.MethodGet, "/api/payments/paymaya-callback?orderId=o1&status=success", "")
	assert.True(t, f.orderDetails(t, "o1").AssignmentPending)

	sqlitetest.SeedCodes(t, f.db, 2, 1)
	rec = f.do(t, http.MethodPost, "/api/admin/allocations/pending", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"fulfilled":1`)
	assert.False(t, f.orderDetails(t, "o1").AssignmentPending)

	rec = f.do(t, http.MethodPatch, "/api/admin/orders/o1", `{"status":"REFUNDED","paymentStatus":"REFUNDED","notes":"customer request"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	details := f.orderDetails(t, "o1")
	assert.Equal(t, models.OrderRefunded, details.Order.Status)
	assert.Equal(t, models.PaymentRefunded, details.Order.PaymentStatus)

	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodPatch, "/api/admin/orders/o2", `{"status":"SHIPPED"}`).Code)
	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodGet, "/api/admin/orders/nope", "").Code)
}

func TestOrderEventsStream(t *testing.T) {
	f := newAPIFixture(t, false)
	sqlitetest.SeedOrder(t, f.db, "o1", 1, "1500")
	sqlitetest.SeedCodes(t, f.db, 1, 1)

	srv := httptest.NewServer(f.router)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/orders/o1/events", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/event-stream")

	reader := bufio.NewReader(resp.Body)
	name, _ := readEvent(t, reader)
	assert.Equal(t, "connected", name)

	name, data := readEvent(t, reader)
	require.Equal(t, "order", name)
	var snapshot models.OrderWithTickets
	require.NoError(t, json.Unmarshal([]byte(data), &snapshot))
	assert.Equal(t, models.PaymentPending, snapshot.Order.PaymentStatus)

	f.do(t, http.MethodGet, "/api/payments/paymaya-callback?orderId=o1&status=success", "")

	name, data = readEvent(t, reader)
	require.Equal(t, "order", name)
	var update models.OrderWithTickets
	require.NoError(t, json.Unmarshal([]byte(data), &update))
	assert.Equal(t, models.PaymentCompleted, update.Order.PaymentStatus)
	require.Len(t, update.Tickets, 1)
	assert.Equal(t, "CODE-0001", update.Tickets[0].TicketCode)
}

func TestOrderEventsUnknownOrder(t *testing.T) {
	f := newAPIFixture(t, false)
	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodGet, "/api/orders/nope/events", "").Code)
}

func readEvent(t *testing.T, r *bufio.Reader) (name, data string) {
	t.Helper()
	for {
		line, err := r.ReadString('\n')
		require.NoError(t, err)
		line = strings.TrimRight(line, "\r\n")
		switch {
		case line == "":
			if name != "" || data != "" {
				return name, data
			}
		case strings.HasPrefix(line, "event: "):
			name = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			data = strings.TrimPrefix(line, "data: ")
		}
	}
}
