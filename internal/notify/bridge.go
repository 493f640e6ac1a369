// Package notify fans payment and order events out to the best-effort
// sinks: receipt email, spreadsheet audit log, Kafka and the status stream.
// Every sink is optional and no sink failure is returned to the caller.
package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"ms-ticketcodes/internal/logger"
	"ms-ticketcodes/internal/models"

	"github.com/shopspring/decimal"
)

const (
	ActionOrderCreated     = "ORDER_CREATED"
	ActionPaymentCompleted = "PAYMENT_COMPLETED"
	ActionTicketsAssigned  = "TICKETS_ASSIGNED"
	ActionStatusUpdated    = "STATUS_UPDATED"
)

const pendingNote = "Ticket assignment pending"

// Receipt is what the customer is emailed once payment completes.
type Receipt struct {
	Order             models.Order
	TicketTypeName    string
	Tickets           []models.AssignedTicket
	AssignmentPending bool
	TestMode          bool
}

// AuditEntry is one appended row of the operator audit log.
type AuditEntry struct {
	Timestamp     time.Time
	OrderNumber   string
	CustomerName  string
	Email         string
	Phone         string
	TicketType    string
	Quantity      int
	Total         decimal.Decimal
	OrderStatus   string
	PaymentStatus string
	Action        string
	TicketNumbers []string
	TicketCodes   []string
	Notes         string
}

type ReceiptSender interface {
	SendReceipt(ctx context.Context, r Receipt) error
}

type AuditLogger interface {
	LogEvent(ctx context.Context, e AuditEntry) error
}

type EventPublisher interface {
	PublishPaymentCompleted(ctx context.Context, evt models.PaymentCompletedEvent) error
}

type StatusBroadcaster interface {
	Publish(orderID string, update models.OrderWithTickets)
}

// Completion describes a freshly completed payment or a late allocation.
type Completion struct {
	Order             models.Order
	TicketTypeName    string
	Tickets           []models.AssignedTicket
	AssignmentPending bool
	TestMode          bool
	Source            string
}

type Bridge struct {
	Receipts ReceiptSender
	Audit    AuditLogger
	Events   EventPublisher
	Stream   StatusBroadcaster
	Logger   *logger.Logger
	Timeout  time.Duration
}

func NewBridge(receipts ReceiptSender, audit AuditLogger, events EventPublisher, stream StatusBroadcaster, log *logger.Logger) *Bridge {
	return &Bridge{
		Receipts: receipts,
		Audit:    audit,
		Events:   events,
		Stream:   stream,
		Logger:   log,
		Timeout:  15 * time.Second,
	}
}

// PaymentCompleted sends the receipt, appends the audit row, publishes the
// event and pushes the result to any open status stream.
func (b *Bridge) PaymentCompleted(ctx context.Context, c Completion) {
	b.sendReceipt(ctx, c)
	b.logEvent(ctx, completionEntry(c, ActionPaymentCompleted))

	if b.Events != nil {
		evt := models.PaymentCompletedEvent{
			OrderID:           c.Order.ID,
			OrderNumber:       c.Order.OrderNumber,
			Amount:            c.Order.TotalAmount,
			Source:            c.Source,
			Tickets:           c.Tickets,
			AssignmentPending: c.AssignmentPending,
			TestMode:          c.TestMode,
			CompletedAt:       c.Order.UpdatedAt,
		}
		b.run(ctx, "kafka", c.Order.ID, func(ctx context.Context) error {
			return b.Events.PublishPaymentCompleted(ctx, evt)
		})
	}

	b.broadcast(c)
}

// TicketsAssigned reports codes bound after the payment itself completed,
// e.g. once the pool was topped up.
func (b *Bridge) TicketsAssigned(ctx context.Context, c Completion) {
	b.sendReceipt(ctx, c)
	b.logEvent(ctx, completionEntry(c, ActionTicketsAssigned))
	b.broadcast(c)
}

func (b *Bridge) OrderCreated(ctx context.Context, order models.Order, ticketTypeName string) {
	b.logEvent(ctx, orderEntry(order, ticketTypeName, ActionOrderCreated, ""))
}

func (b *Bridge) StatusUpdated(ctx context.Context, order models.Order, ticketTypeName, notes string) {
	b.logEvent(ctx, orderEntry(order, ticketTypeName, ActionStatusUpdated, notes))
}

func (b *Bridge) sendReceipt(ctx context.Context, c Completion) {
	if b.Receipts == nil {
		return
	}
	r := Receipt{
		Order:             c.Order,
		TicketTypeName:    c.TicketTypeName,
		Tickets:           c.Tickets,
		AssignmentPending: c.AssignmentPending,
		TestMode:          c.TestMode,
	}
	b.run(ctx, "email", c.Order.ID, func(ctx context.Context) error {
		return b.Receipts.SendReceipt(ctx, r)
	})
}

func (b *Bridge) logEvent(ctx context.Context, e AuditEntry) {
	if b.Audit == nil {
		return
	}
	b.run(ctx, "audit", e.OrderNumber, func(ctx context.Context) error {
		return b.Audit.LogEvent(ctx, e)
	})
}

func (b *Bridge) broadcast(c Completion) {
	if b.Stream == nil {
		return
	}
	b.Stream.Publish(c.Order.ID, models.OrderWithTickets{
		Order:             c.Order,
		Tickets:           c.Tickets,
		AssignmentPending: c.AssignmentPending,
	})
}

// run calls one sink detached from the caller's cancellation and logs any
// failure or panic instead of returning it.
func (b *Bridge) run(ctx context.Context, sink, ref string, fn func(context.Context) error) {
	ctx = context.WithoutCancel(ctx)
	if b.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.Timeout)
		defer cancel()
	}

	defer func() {
		if r := recover(); r != nil {
			b.Logger.Error("NOTIFY", fmt.Sprintf("%s sink panicked for %s: %v", sink, ref, r))
		}
	}()

	if err := fn(ctx); err != nil {
		b.Logger.Error("NOTIFY", fmt.Sprintf("%s sink failed for %s: %v", sink, ref, err))
		return
	}
	b.Logger.Debug("NOTIFY", fmt.Sprintf("%s sink delivered for %s", sink, ref))
}

func completionEntry(c Completion, action string) AuditEntry {
	e := orderEntry(c.Order, c.TicketTypeName, action, "")
	for _, t := range c.Tickets {
		e.TicketNumbers = append(e.TicketNumbers, t.TicketNumber)
		e.TicketCodes = append(e.TicketCodes, t.TicketCode)
	}

	var notes []string
	if c.AssignmentPending {
		notes = append(notes, pendingNote)
	}
	if c.TestMode {
		notes = append(notes, "Test payment")
	}
	if c.Source != "" {
		notes = append(notes, "via "+c.Source)
	}
	e.Notes = strings.Join(notes, "; ")
	return e
}

func orderEntry(o models.Order, ticketTypeName, action, notes string) AuditEntry {
	return AuditEntry{
		Timestamp:     time.Now().UTC(),
		OrderNumber:   o.OrderNumber,
		CustomerName:  o.CustomerName,
		Email:         o.CustomerEmail,
		Phone:         o.CustomerPhone,
		TicketType:    ticketTypeName,
		Quantity:      o.Quantity,
		Total:         o.TotalAmount,
		OrderStatus:   string(o.Status),
		PaymentStatus: string(o.PaymentStatus),
		Action:        action,
		Notes:         notes,
	}
}
