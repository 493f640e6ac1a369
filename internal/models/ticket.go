package models

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
)

// TicketCode is one pre-provisioned code in the pool. OrderID and
// AssignedAt are either both set or both empty.
type TicketCode struct {
	bun.BaseModel `bun:"table:ticket_codes"`

	ID           string     `bun:"id,pk" json:"id"`
	TicketNumber string     `bun:"ticket_number,notnull,unique" json:"ticketNumber"`
	TicketCode   string     `bun:"ticket_code,notnull,unique" json:"ticketCode"`
	Seq          int64      `bun:"seq,notnull,unique" json:"-"`
	OrderID      *string    `bun:"order_id" json:"orderId,omitempty"`
	AssignedAt   *time.Time `bun:"assigned_at" json:"assignedAt,omitempty"`
	CreatedAt    time.Time  `bun:"created_at,notnull" json:"createdAt"`
}

func (c *TicketCode) IsAssigned() bool {
	return c.OrderID != nil
}

func (c *TicketCode) ToAssigned() AssignedTicket {
	return AssignedTicket{TicketNumber: c.TicketNumber, TicketCode: c.TicketCode}
}

// AssignedTicket is the customer-facing view of a bound code.
type AssignedTicket struct {
	TicketNumber string `json:"ticketNumber"`
	TicketCode   string `json:"ticketCode"`
}

// CodeInput is a pair read from an import source.
type CodeInput struct {
	TicketNumber string
	TicketCode   string
}

type TicketType struct {
	bun.BaseModel `bun:"table:ticket_types"`

	ID          string          `bun:"id,pk" json:"id"`
	Name        string          `bun:"name,notnull,unique" json:"name"`
	Description string          `bun:"description" json:"description"`
	Price       decimal.Decimal `bun:"price,type:decimal(12,2),notnull" json:"price"`
	MaxQuantity *int            `bun:"max_quantity" json:"maxQuantity,omitempty"`
	IsActive    bool            `bun:"is_active,notnull" json:"isActive"`
	CreatedAt   time.Time       `bun:"created_at,notnull" json:"createdAt"`
}

type PoolStats struct {
	Total    int `json:"total"`
	Assigned int `json:"assigned"`
	Free     int `json:"free"`
}
