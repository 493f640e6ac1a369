package order

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	"ms-ticketcodes/internal/logger"
	"ms-ticketcodes/internal/models"
	orderdb "ms-ticketcodes/internal/order/db"
	"ms-ticketcodes/internal/payment/paymaya"
	"ms-ticketcodes/internal/utils"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
)

type DBLayer interface {
	GetOrderByID(ctx context.Context, id string) (*models.Order, error)
	CreateOrder(ctx context.Context, order *models.Order) error
	AdminUpdate(ctx context.Context, id string, upd models.AdminOrderUpdate, at time.Time) (int64, error)
	ListOrders(ctx context.Context, f orderdb.OrderFilter) ([]models.Order, int, error)
	GetTransactionByOrder(ctx context.Context, idb bun.IDB, orderID string) (*models.PaymentTransaction, error)
	UpsertTransaction(ctx context.Context, idb bun.IDB, txn *models.PaymentTransaction) error
	ListTicketTypes(ctx context.Context) ([]models.TicketType, error)
	GetTicketType(ctx context.Context, id string) (*models.TicketType, error)
}

type CheckoutProvider interface {
	CreateCheckout(ctx context.Context, p paymaya.CheckoutParams) (*paymaya.Checkout, error)
}

type TicketReader interface {
	Assigned(ctx context.Context, orderID string) ([]models.AssignedTicket, error)
}

type AuditPublisher interface {
	OrderCreated(ctx context.Context, order models.Order, ticketTypeName string)
	StatusUpdated(ctx context.Context, order models.Order, ticketTypeName, notes string)
}

type OrderService struct {
	DB              DBLayer
	Conn            bun.IDB
	Tickets         TicketReader
	Checkout        CheckoutProvider
	Audit           AuditPublisher
	Logger          *logger.Logger
	OrderingEnabled bool
	TestMode        bool
	PublicURL       string
	Now             func() time.Time
	validate        *validator.Validate
}

func NewOrderService(db DBLayer, conn bun.IDB, ticketReader TicketReader, checkout CheckoutProvider, audit AuditPublisher, log *logger.Logger) *OrderService {
	return &OrderService{
		DB:       db,
		Conn:     conn,
		Tickets:  ticketReader,
		Checkout: checkout,
		Audit:    audit,
		Logger:   log,
		Now:      func() time.Time { return time.Now().UTC() },
		validate: validator.New(),
	}
}

// ValidationError wraps request validation failures so handlers can answer 400.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for f, tag := range e.Fields {
		parts = append(parts, f+": "+tag)
	}
	sort.Strings(parts)
	return "invalid request data: " + strings.Join(parts, ", ")
}

// ---------------- ORDERS ----------------

func (s *OrderService) CreateOrder(ctx context.Context, req models.CreateOrderRequest) (*models.Order, error) {
	if !s.OrderingEnabled {
		return nil, ErrOrderingDisabled
	}
	if err := s.validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make(map[string]string, len(verrs))
			for _, fe := range verrs {
				fields[fe.Field()] = fe.Tag()
			}
			return nil, &ValidationError{Fields: fields}
		}
		return nil, err
	}

	tt, err := s.DB.GetTicketType(ctx, req.TicketTypeID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTicketTypeInvalid
		}
		return nil, fmt.Errorf("load ticket type: %w", err)
	}
	if !tt.IsActive {
		return nil, ErrTicketTypeInvalid
	}
	if tt.MaxQuantity != nil && req.Quantity > *tt.MaxQuantity {
		return nil, ErrQuantityExceeded
	}

	now := s.Now()
	order := &models.Order{
		ID:               utils.NewID(),
		OrderNumber:      utils.GenerateOrderNumber(now),
		TicketTypeID:     tt.ID,
		CustomerName:     strings.TrimSpace(req.CustomerName),
		CustomerEmail:    strings.TrimSpace(req.CustomerEmail),
		CustomerPhone:    strings.TrimSpace(req.CustomerPhone),
		ShirtSize:        req.ShirtSize,
		EmergencyContact: strings.TrimSpace(req.EmergencyContact),
		EmergencyPhone:   strings.TrimSpace(req.EmergencyPhone),
		Quantity:         req.Quantity,
		TotalAmount:      tt.Price.Mul(decimal.NewFromInt(int64(req.Quantity))),
		Status:           models.OrderPending,
		PaymentStatus:    models.PaymentPending,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	if err := s.DB.CreateOrder(ctx, order); err != nil {
		s.Logger.Error("ORDER", fmt.Sprintf("Failed to create order for %s: %v", order.CustomerEmail, err))
		return nil, fmt.Errorf("create order: %w", err)
	}
	order.TicketType = tt

	s.Logger.LogOrder("CREATED", order.ID, fmt.Sprintf("%s x%d %s total %s", order.OrderNumber, order.Quantity, tt.Name, order.TotalAmount.StringFixed(2)))
	if s.Audit != nil {
		s.Audit.OrderCreated(ctx, *order, tt.Name)
	}
	return order, nil
}

// CreatePaymentIntent starts a checkout for an unpaid order. In test mode no
// provider call is made and the customer is sent to the local test page.
func (s *OrderService) CreatePaymentIntent(ctx context.Context, orderID string) (*models.PaymentIntentResponse, error) {
	order, err := s.getOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.IsCompleted() {
		return nil, ErrAlreadyPaid
	}

	existing, err := s.DB.GetTransactionByOrder(ctx, s.Conn, order.ID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("load transaction: %w", err)
	}

	now := s.Now()
	txn := &models.PaymentTransaction{
		ID:        utils.NewID(),
		OrderID:   order.ID,
		Provider:  models.ProviderPayMaya,
		Amount:    order.TotalAmount,
		Status:    models.TransactionPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err == nil {
		txn.ID = existing.ID
		txn.CreatedAt = existing.CreatedAt
	}

	if s.TestMode {
		txn.ExternalID = utils.GenerateTestTransactionID(now)
		txn.TestMode = true
		txn.PaymentURL = s.PublicURL + "/checkout/test-payment?orderId=" + url.QueryEscape(order.ID)
	} else {
		if s.Checkout == nil {
			return nil, ErrProviderNotReady
		}
		checkout, err := s.Checkout.CreateCheckout(ctx, paymaya.CheckoutParams{
			OrderID:     order.ID,
			OrderNumber: order.OrderNumber,
			Amount:      order.TotalAmount,
			SuccessURL:  s.callbackURL(order.ID),
			FailureURL:  s.PublicURL + "/checkout/payment-error?orderId=" + url.QueryEscape(order.ID),
		})
		if err != nil {
			if errors.Is(err, paymaya.ErrNotConfigured) {
				return nil, ErrProviderNotReady
			}
			return nil, fmt.Errorf("create checkout: %w", err)
		}
		txn.ExternalID = checkout.CheckoutID
		txn.PaymentURL = checkout.RedirectURL
	}

	if err := s.DB.UpsertTransaction(ctx, s.Conn, txn); err != nil {
		return nil, fmt.Errorf("record transaction: %w", err)
	}
	s.Logger.LogPayment("INTENT_CREATED", txn.ExternalID, fmt.Sprintf("Checkout for order %s (test mode: %t)", order.OrderNumber, txn.TestMode))

	return &models.PaymentIntentResponse{
		OrderID:       order.ID,
		OrderNumber:   order.OrderNumber,
		TransactionID: txn.ExternalID,
		PaymentURL:    txn.PaymentURL,
		Amount:        order.TotalAmount,
		TestMode:      txn.TestMode,
	}, nil
}

// GetOrderDetails returns an order with whatever codes it holds.
func (s *OrderService) GetOrderDetails(ctx context.Context, orderID string) (*models.OrderWithTickets, error) {
	order, err := s.getOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}

	out := &models.OrderWithTickets{Order: *order, Tickets: []models.AssignedTicket{}}
	if !order.IsCompleted() {
		return out, nil
	}

	txn, err := s.DB.GetTransactionByOrder(ctx, s.Conn, order.ID)
	if err == nil && txn.TestMode {
		out.Tickets = FabricateTestTickets(order.OrderNumber, order.Quantity)
		return out, nil
	}

	assigned, err := s.Tickets.Assigned(ctx, order.ID)
	if err != nil {
		return nil, fmt.Errorf("load assigned codes: %w", err)
	}
	out.Tickets = assigned
	out.AssignmentPending = len(assigned) < order.Quantity
	return out, nil
}

// AdminUpdateStatus applies an operator override. It is not bound by the
// completion guard and may move an order out of COMPLETED.
func (s *OrderService) AdminUpdateStatus(ctx context.Context, orderID string, upd models.AdminOrderUpdate) (*models.Order, error) {
	if upd.Status != nil && !upd.Status.Valid() {
		return nil, ErrInvalidStatus
	}
	if upd.PaymentStatus != nil && !upd.PaymentStatus.Valid() {
		return nil, ErrInvalidStatus
	}

	before, err := s.getOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if _, err := s.DB.AdminUpdate(ctx, orderID, upd, s.Now()); err != nil {
		return nil, fmt.Errorf("update order: %w", err)
	}

	after, err := s.getOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}

	var changes []string
	if upd.Status != nil && *upd.Status != before.Status {
		changes = append(changes, fmt.Sprintf("Order status: %s → %s", before.Status, after.Status))
	}
	if upd.PaymentStatus != nil && *upd.PaymentStatus != before.PaymentStatus {
		changes = append(changes, fmt.Sprintf("Payment status: %s → %s", before.PaymentStatus, after.PaymentStatus))
	}
	if len(changes) > 0 {
		notes := "Admin update: " + strings.Join(changes, ", ")
		if upd.Notes != "" {
			notes += " (" + upd.Notes + ")"
		}
		s.Logger.LogOrder("STATUS_UPDATED", orderID, notes)
		if s.Audit != nil {
			s.Audit.StatusUpdated(ctx, *after, ticketTypeName(after), notes)
		}
	}
	return after, nil
}

func (s *OrderService) ListOrders(ctx context.Context, f orderdb.OrderFilter) ([]models.Order, int, error) {
	return s.DB.ListOrders(ctx, f)
}

// ---------------- TICKET TYPES ----------------

func (s *OrderService) ListTicketTypes(ctx context.Context) ([]models.TicketType, error) {
	return s.DB.ListTicketTypes(ctx)
}

func (s *OrderService) getOrder(ctx context.Context, id string) (*models.Order, error) {
	order, err := s.DB.GetOrderByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("load order: %w", err)
	}
	return order, nil
}

func (s *OrderService) callbackURL(orderID string) string {
	q := url.Values{}
	q.Set("orderId", orderID)
	q.Set("status", "success")
	return s.PublicURL + "/api/payments/paymaya-callback?" + q.Encode()
}
