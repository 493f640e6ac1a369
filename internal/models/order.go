package models

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
)

type OrderStatus string

const (
	OrderPending   OrderStatus = "PENDING"
	OrderConfirmed OrderStatus = "CONFIRMED"
	OrderCancelled OrderStatus = "CANCELLED"
	OrderRefunded  OrderStatus = "REFUNDED"
)

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "PENDING"
	PaymentCompleted PaymentStatus = "COMPLETED"
	PaymentFailed    PaymentStatus = "FAILED"
	PaymentRefunded  PaymentStatus = "REFUNDED"
)

func (s OrderStatus) Valid() bool {
	switch s {
	case OrderPending, OrderConfirmed, OrderCancelled, OrderRefunded:
		return true
	}
	return false
}

func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentPending, PaymentCompleted, PaymentFailed, PaymentRefunded:
		return true
	}
	return false
}

type Order struct {
	bun.BaseModel `bun:"table:orders"`

	ID               string          `bun:"id,pk" json:"id"`
	OrderNumber      string          `bun:"order_number,notnull,unique" json:"orderNumber"`
	TicketTypeID     string          `bun:"ticket_type_id,notnull" json:"ticketTypeId"`
	CustomerName     string          `bun:"customer_name,notnull" json:"customerName"`
	CustomerEmail    string          `bun:"customer_email,notnull" json:"customerEmail"`
	CustomerPhone    string          `bun:"customer_phone,notnull" json:"customerPhone"`
	ShirtSize        string          `bun:"shirt_size" json:"shirtSize"`
	EmergencyContact string          `bun:"emergency_contact" json:"emergencyContact"`
	EmergencyPhone   string          `bun:"emergency_phone" json:"emergencyPhone"`
	Quantity         int             `bun:"quantity,notnull" json:"quantity"`
	TotalAmount      decimal.Decimal `bun:"total_amount,type:decimal(12,2),notnull" json:"totalAmount"`
	Status           OrderStatus     `bun:"status,notnull" json:"status"`
	PaymentStatus    PaymentStatus   `bun:"payment_status,notnull" json:"paymentStatus"`
	CreatedAt        time.Time       `bun:"created_at,notnull" json:"createdAt"`
	UpdatedAt        time.Time       `bun:"updated_at,notnull" json:"updatedAt"`

	TicketType *TicketType `bun:"rel:belongs-to,join:ticket_type_id=id" json:"ticketType,omitempty"`
}

func (o *Order) IsCompleted() bool {
	return o.PaymentStatus == PaymentCompleted
}

// AwaitingPayment reports whether a completion signal may still move the
// order. Refunded, failed and cancelled orders stay where an operator put them.
func (o *Order) AwaitingPayment() bool {
	return o.PaymentStatus == PaymentPending && o.Status != OrderCancelled && o.Status != OrderRefunded
}

type CreateOrderRequest struct {
	TicketTypeID     string `json:"ticketTypeId" validate:"required"`
	CustomerName     string `json:"customerName" validate:"required,max=200"`
	CustomerEmail    string `json:"customerEmail" validate:"required,email"`
	CustomerPhone    string `json:"customerPhone" validate:"required,min=7,max=32"`
	ShirtSize        string `json:"shirtSize" validate:"omitempty,oneof=XS S M L XL XXL"`
	EmergencyContact string `json:"emergencyContact" validate:"required,max=200"`
	EmergencyPhone   string `json:"emergencyPhone" validate:"required,min=7,max=32"`
	Quantity         int    `json:"quantity" validate:"required,min=1,max=50"`
}

// AdminOrderUpdate carries the fields an operator may override. Nil means unchanged.
type AdminOrderUpdate struct {
	Status        *OrderStatus   `json:"status,omitempty"`
	PaymentStatus *PaymentStatus `json:"paymentStatus,omitempty"`
	Notes         string         `json:"notes,omitempty"`
}

type OrderWithTickets struct {
	Order             Order            `json:"order"`
	Tickets           []AssignedTicket `json:"tickets"`
	AssignmentPending bool             `json:"assignmentPending"`
}
