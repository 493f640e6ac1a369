package order

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"ms-ticketcodes/internal/logger"
	"ms-ticketcodes/internal/models"
	"ms-ticketcodes/internal/notify"
	tickets "ms-ticketcodes/internal/tickets/service"
	"ms-ticketcodes/internal/utils"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
)

type Source string

const (
	SourceCallback Source = "callback"
	SourceWebhook  Source = "webhook"
	SourceAdmin    Source = "admin"
)

type Outcome string

const (
	OutcomeCompleted        Outcome = "completed"
	OutcomeAlreadyCompleted Outcome = "already_completed"
	OutcomeUnresolved       Outcome = "unresolved"
	OutcomeNotPending       Outcome = "not_pending"
)

const awaitingBatchSize = 100

// Signal is one completion report, whichever entry point it arrived on.
// Callbacks carry OrderID; webhooks carry only ExternalID. Amount is the
// provider's raw figure and is parsed only once the order is known to be
// awaiting payment.
type Signal struct {
	Source     Source
	OrderID    string
	ExternalID string
	Amount     string
	Test       bool
}

type CompletionResult struct {
	Outcome           Outcome                 `json:"outcome"`
	Order             *models.Order           `json:"order,omitempty"`
	Tickets           []models.AssignedTicket `json:"tickets"`
	AssignmentPending bool                    `json:"assignmentPending"`
	TestMode          bool                    `json:"testMode"`
}

type PaymentStore interface {
	GetOrderByID(ctx context.Context, id string) (*models.Order, error)
	GetOrderForUpdate(ctx context.Context, idb bun.IDB, id string) (*models.Order, error)
	MarkPaymentCompleted(ctx context.Context, idb bun.IDB, id string, at time.Time) (bool, error)
	GetTransactionByExternalID(ctx context.Context, externalID string) (*models.PaymentTransaction, error)
	GetTransactionByOrder(ctx context.Context, idb bun.IDB, orderID string) (*models.PaymentTransaction, error)
	UpsertTransaction(ctx context.Context, idb bun.IDB, txn *models.PaymentTransaction) error
	ListAwaitingCodes(ctx context.Context, limit int) ([]models.Order, error)
}

type TicketAllocator interface {
	Allocate(ctx context.Context, orderID string, quantity int) (tickets.AllocationResult, error)
	Assigned(ctx context.Context, orderID string) ([]models.AssignedTicket, error)
}

type CompletionLock interface {
	Acquire(ctx context.Context, orderID string) (func(), error)
}

type Notifier interface {
	PaymentCompleted(ctx context.Context, c notify.Completion)
	TicketsAssigned(ctx context.Context, c notify.Completion)
}

type PaymentService struct {
	DB                   *bun.DB
	Store                PaymentStore
	Tickets              TicketAllocator
	Lock                 CompletionLock
	Notifier             Notifier
	Logger               *logger.Logger
	TestMode             bool
	RequireWebhookAmount bool
	Tolerance            decimal.Decimal
	Now                  func() time.Time
}

func NewPaymentService(db *bun.DB, store PaymentStore, alloc TicketAllocator, lock CompletionLock, n Notifier, log *logger.Logger) *PaymentService {
	return &PaymentService{
		DB:        db,
		Store:     store,
		Tickets:   alloc,
		Lock:      lock,
		Notifier:  n,
		Logger:    log,
		Tolerance: decimal.RequireFromString("0.01"),
		Now:       func() time.Time { return time.Now().UTC() },
	}
}

// ParseAmount turns a reported amount into a decimal. Empty input means the
// provider sent none.
func ParseAmount(raw string) (*decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return nil, validationError(ReasonInvalidAmount, ErrInvalidAmount, fmt.Sprintf("unparseable amount %q", raw))
	}
	return &d, nil
}

// CompletePayment moves an order to COMPLETED/CONFIRMED exactly once,
// records the provider transaction, binds ticket codes and hands the result
// to the notifier. Repeated or concurrent signals for a completed order are
// acknowledged without side effects, as are signals for an order an operator
// has already refunded, cancelled or failed.
func (s *PaymentService) CompletePayment(ctx context.Context, sig Signal) (*CompletionResult, error) {
	orderID, resolved, err := s.resolve(ctx, sig)
	if err != nil {
		return nil, err
	}
	if orderID == "" {
		s.Logger.LogPayment("UNRESOLVED", sigRef(sig), fmt.Sprintf("%s signal did not match any order", sig.Source))
		return &CompletionResult{Outcome: OutcomeUnresolved}, nil
	}

	result, completion, err := s.transition(ctx, orderID, sig, resolved)
	if err != nil {
		return nil, err
	}

	// Outside the completion lock.
	if completion != nil && s.Notifier != nil {
		s.Notifier.PaymentCompleted(context.WithoutCancel(ctx), *completion)
	}
	return result, nil
}

// transition runs the guarded state change and the allocation under the
// completion lock. It returns the completion to announce when this call won.
func (s *PaymentService) transition(ctx context.Context, orderID string, sig Signal, resolved *models.PaymentTransaction) (*CompletionResult, *notify.Completion, error) {
	if s.Lock != nil {
		release, err := s.Lock.Acquire(ctx, orderID)
		if err != nil {
			s.Logger.Warn("PAYMENT", fmt.Sprintf("Proceeding without completion lock for order %s: %v", orderID, err))
		} else {
			defer release()
		}
	}

	var (
		order      *models.Order
		txn        *models.PaymentTransaction
		already    bool
		notPending bool
		testMode   bool
	)
	err := s.DB.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var err error
		order, err = s.Store.GetOrderForUpdate(ctx, tx, orderID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				order = nil
				return nil
			}
			return processingError(fmt.Sprintf("load order %s: %v", orderID, err), err)
		}

		txn, err = s.Store.GetTransactionByOrder(ctx, tx, orderID)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return processingError(fmt.Sprintf("load transaction for order %s: %v", orderID, err), err)
		}
		if errors.Is(err, sql.ErrNoRows) {
			txn = nil
		}
		if txn == nil && resolved != nil {
			txn = resolved
		}
		testMode = s.TestMode && (sig.Test || (txn != nil && txn.TestMode))

		if order.IsCompleted() {
			already = true
			return nil
		}
		if !order.AwaitingPayment() {
			notPending = true
			return nil
		}

		reported, err := s.checkAmount(sig, order, txn)
		if err != nil {
			return err
		}

		now := s.Now()
		won, err := s.Store.MarkPaymentCompleted(ctx, tx, orderID, now)
		if err != nil {
			return processingError(fmt.Sprintf("mark order %s completed: %v", orderID, err), err)
		}
		if !won {
			current, err := s.Store.GetOrderForUpdate(ctx, tx, orderID)
			if err != nil {
				return processingError(fmt.Sprintf("reload order %s: %v", orderID, err), err)
			}
			order = current
			already = current.IsCompleted()
			notPending = !already
			return nil
		}
		order.PaymentStatus = models.PaymentCompleted
		order.Status = models.OrderConfirmed
		order.UpdatedAt = now

		record := s.completedTransaction(sig, reported, order, txn, testMode, now)
		if err := s.Store.UpsertTransaction(ctx, tx, record); err != nil {
			return processingError(fmt.Sprintf("record transaction for order %s: %v", orderID, err), err)
		}
		txn = record
		return nil
	})
	if err != nil {
		var perr *PaymentError
		if errors.As(err, &perr) {
			if perr.Category == CategoryValidation {
				s.Logger.LogSecurity("PAYMENT_REJECTED", perr.InternalError)
			} else {
				s.Logger.Error("PAYMENT", perr.InternalError)
			}
			return nil, nil, perr
		}
		s.Logger.Error("PAYMENT", fmt.Sprintf("Completion for order %s failed: %v", orderID, err))
		return nil, nil, processingError(fmt.Sprintf("completion transaction for order %s: %v", orderID, err), err)
	}

	if order == nil {
		s.Logger.LogPayment("UNRESOLVED", sigRef(sig), fmt.Sprintf("order %s does not exist", orderID))
		return &CompletionResult{Outcome: OutcomeUnresolved}, nil, nil
	}

	if already {
		res, err := s.alreadyCompleted(ctx, order, testMode)
		return res, nil, err
	}

	if notPending {
		s.Logger.Warn("PAYMENT", fmt.Sprintf("Ignoring %s signal for order %s: status %s, payment %s",
			sig.Source, order.OrderNumber, order.Status, order.PaymentStatus))
		return &CompletionResult{Outcome: OutcomeNotPending, Order: s.reload(ctx, order), TestMode: testMode}, nil, nil
	}

	s.Logger.LogPayment("COMPLETED", txn.ExternalID, fmt.Sprintf("Order %s paid via %s", order.OrderNumber, sig.Source))

	result := &CompletionResult{Outcome: OutcomeCompleted, TestMode: testMode}
	if testMode {
		result.Tickets = FabricateTestTickets(order.OrderNumber, order.Quantity)
	} else {
		alloc, err := s.Tickets.Allocate(ctx, order.ID, order.Quantity)
		if err != nil {
			s.Logger.Error("ALLOCATION", fmt.Sprintf("Order %s paid but allocation failed: %v", order.OrderNumber, err))
			result.AssignmentPending = true
		} else {
			result.Tickets = alloc.Tickets
			result.AssignmentPending = alloc.Insufficient
		}
	}

	full := s.reload(ctx, order)
	result.Order = full

	return result, &notify.Completion{
		Order:             *full,
		TicketTypeName:    ticketTypeName(full),
		Tickets:           result.Tickets,
		AssignmentPending: result.AssignmentPending,
		TestMode:          testMode,
		Source:            string(sig.Source),
	}, nil
}

// AllocateOrder re-runs allocation for one completed order, e.g. after the
// pool was topped up. New codes trigger a fresh receipt and audit row.
func (s *PaymentService) AllocateOrder(ctx context.Context, orderID string) (*CompletionResult, error) {
	order, err := s.Store.GetOrderByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	if !order.IsCompleted() {
		return nil, ErrNothingToAllocate
	}

	txn, err := s.Store.GetTransactionByOrder(ctx, s.DB, orderID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err == nil && txn.TestMode {
		return &CompletionResult{
			Outcome:  OutcomeAlreadyCompleted,
			Order:    order,
			Tickets:  FabricateTestTickets(order.OrderNumber, order.Quantity),
			TestMode: true,
		}, nil
	}

	before, err := s.Tickets.Assigned(ctx, orderID)
	if err != nil {
		return nil, err
	}
	alloc, err := s.Tickets.Allocate(ctx, orderID, order.Quantity)
	if err != nil {
		return nil, err
	}

	result := &CompletionResult{
		Outcome:           OutcomeAlreadyCompleted,
		Order:             order,
		Tickets:           alloc.Tickets,
		AssignmentPending: alloc.Insufficient,
	}
	if len(alloc.Tickets) > len(before) && s.Notifier != nil {
		s.Notifier.TicketsAssigned(context.WithoutCancel(ctx), notify.Completion{
			Order:             *order,
			TicketTypeName:    ticketTypeName(order),
			Tickets:           alloc.Tickets,
			AssignmentPending: alloc.Insufficient,
			Source:            string(SourceAdmin),
		})
	}
	return result, nil
}

// SweepSummary reports one pass over the orders still waiting for codes.
type SweepSummary struct {
	Checked   int      `json:"checked"`
	Fulfilled int      `json:"fulfilled"`
	Pending   int      `json:"pending"`
	Failed    []string `json:"failed,omitempty"`
}

// AllocatePending tops up every completed order that holds fewer codes than
// it paid for. It stops at the first order the pool can no longer cover.
func (s *PaymentService) AllocatePending(ctx context.Context) (SweepSummary, error) {
	var summary SweepSummary

	orders, err := s.Store.ListAwaitingCodes(ctx, awaitingBatchSize)
	if err != nil {
		return summary, fmt.Errorf("list orders awaiting codes: %w", err)
	}

	for i := range orders {
		if ctx.Err() != nil {
			return summary, ctx.Err()
		}
		summary.Checked++

		res, err := s.AllocateOrder(ctx, orders[i].ID)
		if err != nil {
			s.Logger.Error("ALLOCATION", fmt.Sprintf("Sweep could not allocate order %s: %v", orders[i].OrderNumber, err))
			summary.Failed = append(summary.Failed, orders[i].ID)
			continue
		}
		if res.AssignmentPending {
			summary.Pending = len(orders) - summary.Fulfilled - len(summary.Failed)
			break
		}
		summary.Fulfilled++
	}

	s.Logger.Info("ALLOCATION", fmt.Sprintf("Pending sweep checked %d orders, fulfilled %d, still pending %d",
		summary.Checked, summary.Fulfilled, summary.Pending))
	return summary, nil
}

// FabricateTestTickets builds placeholder codes for a test-mode payment.
// They are deterministic per order and never touch the pool.
func FabricateTestTickets(orderNumber string, quantity int) []models.AssignedTicket {
	out := make([]models.AssignedTicket, 0, quantity)
	for i := 1; i <= quantity; i++ {
		out = append(out, models.AssignedTicket{
			TicketNumber: fmt.Sprintf("TEST-%02d", i),
			TicketCode:   fmt.Sprintf("TEST-%s-%02d", orderNumber, i),
		})
	}
	return out
}

func (s *PaymentService) resolve(ctx context.Context, sig Signal) (string, *models.PaymentTransaction, error) {
	if sig.OrderID != "" {
		return sig.OrderID, nil, nil
	}
	if sig.ExternalID == "" {
		return "", nil, nil
	}

	txn, err := s.Store.GetTransactionByExternalID(ctx, sig.ExternalID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil, nil
		}
		return "", nil, processingError(fmt.Sprintf("resolve transaction %s: %v", sig.ExternalID, err), err)
	}
	return txn.OrderID, txn, nil
}

// checkAmount parses the reported amount and compares it with what the order
// expects. It returns the parsed figure for the transaction record.
func (s *PaymentService) checkAmount(sig Signal, order *models.Order, txn *models.PaymentTransaction) (*decimal.Decimal, error) {
	if sig.Source == SourceAdmin {
		return nil, nil
	}
	reported, err := ParseAmount(sig.Amount)
	if err != nil {
		return nil, validationError(ReasonInvalidAmount, ErrInvalidAmount,
			fmt.Sprintf("order %s: unparseable amount %q", order.OrderNumber, strings.TrimSpace(sig.Amount)))
	}
	if reported == nil {
		if sig.Source == SourceWebhook && s.RequireWebhookAmount {
			return nil, validationError(ReasonAmountRequired, ErrAmountRequired,
				fmt.Sprintf("webhook for order %s carried no amount", order.OrderNumber))
		}
		return nil, nil
	}

	expected := order.TotalAmount
	if sig.Source == SourceWebhook && txn != nil {
		expected = txn.Amount
	}
	if reported.Sub(expected).Abs().GreaterThan(s.Tolerance) {
		return nil, validationError(ReasonAmountMismatch, ErrAmountMismatch,
			fmt.Sprintf("order %s: reported %s, expected %s", order.OrderNumber, reported.StringFixed(2), expected.StringFixed(2)))
	}
	return reported, nil
}

func (s *PaymentService) completedTransaction(sig Signal, reported *decimal.Decimal, order *models.Order, existing *models.PaymentTransaction, testMode bool, now time.Time) *models.PaymentTransaction {
	record := &models.PaymentTransaction{
		ID:        uuid.NewString(),
		OrderID:   order.ID,
		Provider:  models.ProviderPayMaya,
		Amount:    order.TotalAmount,
		Status:    models.TransactionCompleted,
		TestMode:  testMode,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if existing != nil {
		record.ID = existing.ID
		record.CreatedAt = existing.CreatedAt
		record.PaymentURL = existing.PaymentURL
		record.Amount = existing.Amount
	}
	if reported != nil {
		record.Amount = *reported
	}

	switch {
	case sig.ExternalID != "":
		record.ExternalID = sig.ExternalID
	case existing != nil && existing.ExternalID != "":
		record.ExternalID = existing.ExternalID
	default:
		record.ExternalID = utils.FallbackExternalID(order.ID)
	}
	return record
}

func (s *PaymentService) alreadyCompleted(ctx context.Context, order *models.Order, testMode bool) (*CompletionResult, error) {
	s.Logger.LogPayment("DUPLICATE", order.ID, fmt.Sprintf("Order %s already completed, acknowledging", order.OrderNumber))

	result := &CompletionResult{Outcome: OutcomeAlreadyCompleted, Order: s.reload(ctx, order), TestMode: testMode}
	if testMode {
		result.Tickets = FabricateTestTickets(order.OrderNumber, order.Quantity)
		return result, nil
	}

	assigned, err := s.Tickets.Assigned(ctx, order.ID)
	if err != nil {
		s.Logger.Warn("ALLOCATION", fmt.Sprintf("Could not read codes for order %s: %v", order.OrderNumber, err))
		result.AssignmentPending = true
		return result, nil
	}
	result.Tickets = assigned
	result.AssignmentPending = len(assigned) < order.Quantity
	return result, nil
}

// reload fetches the order with its ticket type for notifications. The
// in-transaction copy is used if the read fails.
func (s *PaymentService) reload(ctx context.Context, order *models.Order) *models.Order {
	full, err := s.Store.GetOrderByID(ctx, order.ID)
	if err != nil {
		s.Logger.Warn("DATABASE", fmt.Sprintf("Reload of order %s failed: %v", order.ID, err))
		return order
	}
	return full
}

func ticketTypeName(o *models.Order) string {
	if o.TicketType != nil {
		return o.TicketType.Name
	}
	return ""
}

func sigRef(sig Signal) string {
	if sig.ExternalID != "" {
		return sig.ExternalID
	}
	return sig.OrderID
}
