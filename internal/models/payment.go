package models

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
)

type TransactionStatus string

const (
	TransactionPending   TransactionStatus = "PENDING"
	TransactionCompleted TransactionStatus = "COMPLETED"
	TransactionFailed    TransactionStatus = "FAILED"
)

const ProviderPayMaya = "PAYMAYA"

// PaymentTransaction is the provider-side record of a payment attempt.
// There is at most one per order and ExternalID is unique across the table.
type PaymentTransaction struct {
	bun.BaseModel `bun:"table:payment_transactions"`

	ID         string            `bun:"id,pk" json:"id"`
	OrderID    string            `bun:"order_id,notnull,unique" json:"orderId"`
	Provider   string            `bun:"provider,notnull" json:"provider"`
	ExternalID string            `bun:"external_id,notnull,unique" json:"externalId"`
	Amount     decimal.Decimal   `bun:"amount,type:decimal(12,2),notnull" json:"amount"`
	Status     TransactionStatus `bun:"status,notnull" json:"status"`
	TestMode   bool              `bun:"test_mode,notnull,default:false" json:"testMode"`
	PaymentURL string            `bun:"payment_url,nullzero" json:"paymentUrl,omitempty"`
	CreatedAt  time.Time         `bun:"created_at,notnull" json:"createdAt"`
	UpdatedAt  time.Time         `bun:"updated_at,notnull" json:"updatedAt"`
}

type PaymentIntentRequest struct {
	OrderID string `json:"orderId" validate:"required"`
}

type PaymentIntentResponse struct {
	OrderID       string          `json:"orderId"`
	OrderNumber   string          `json:"orderNumber"`
	TransactionID string          `json:"transactionId"`
	PaymentURL    string          `json:"paymentUrl"`
	Amount        decimal.Decimal `json:"amount"`
	TestMode      bool            `json:"testMode"`
}

// PaymentCompletedEvent is published once per order when payment is first
// recorded as completed.
type PaymentCompletedEvent struct {
	OrderID           string           `json:"orderId"`
	OrderNumber       string           `json:"orderNumber"`
	Amount            decimal.Decimal  `json:"amount"`
	Source            string           `json:"source"`
	Tickets           []AssignedTicket `json:"tickets"`
	AssignmentPending bool             `json:"assignmentPending"`
	TestMode          bool             `json:"testMode"`
	CompletedAt       time.Time        `json:"completedAt"`
}

// CodesProvisionedEvent announces that new codes were added to the pool.
type CodesProvisionedEvent struct {
	Inserted   int       `json:"inserted"`
	Skipped    int       `json:"skipped"`
	Source     string    `json:"source"`
	ImportedAt time.Time `json:"importedAt"`
}
