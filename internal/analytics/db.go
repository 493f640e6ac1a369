package analytics

import (
	"context"

	"ms-ticketcodes/internal/models"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
)

// DB handles analytics database operations
type DB struct {
	bun *bun.DB
}

// NewDB creates a new analytics DB handler
func NewDB(db *bun.DB) *DB {
	return &DB{bun: db}
}

// CountByStatus counts orders in one order status.
func (db *DB) CountByStatus(ctx context.Context, status models.OrderStatus) (int, error) {
	return db.bun.NewSelect().
		Model((*models.Order)(nil)).
		Where("status = ?", status).
		Count(ctx)
}

// PaidRevenue sums total_amount over orders whose payment completed.
func (db *DB) PaidRevenue(ctx context.Context) (decimal.Decimal, error) {
	var revenue decimal.Decimal
	err := db.bun.NewRaw("SELECT COALESCE(SUM(total_amount), 0) FROM orders WHERE payment_status = ?", models.PaymentCompleted).
		Scan(ctx, &revenue)
	return revenue.Round(2), err
}

// TicketBreakdown groups confirmed orders by ticket type.
func (db *DB) TicketBreakdown(ctx context.Context) ([]TicketTypeSales, error) {
	var rows []TicketTypeSales
	err := db.bun.NewRaw(`
		SELECT
			tt.name AS ticket_type,
			COALESCE(SUM(o.quantity), 0) AS quantity,
			COUNT(o.id) AS orders
		FROM
			orders o
		JOIN
			ticket_types tt ON tt.id = o.ticket_type_id
		WHERE
			o.status = ?
		GROUP BY
			tt.name
		ORDER BY
			tt.name
	`, models.OrderConfirmed).Scan(ctx, &rows)
	return rows, err
}

// RecentOrders returns the newest orders with their ticket type.
func (db *DB) RecentOrders(ctx context.Context, limit int) ([]models.Order, error) {
	var orders []models.Order
	err := db.bun.NewSelect().
		Model(&orders).
		Relation("TicketType").
		OrderExpr("?TableAlias.created_at DESC").
		Limit(limit).
		Scan(ctx)
	return orders, err
}

// OrdersForExport returns every order, newest first, optionally filtered
// by order status.
func (db *DB) OrdersForExport(ctx context.Context, status string) ([]models.Order, error) {
	var orders []models.Order
	q := db.bun.NewSelect().
		Model(&orders).
		Relation("TicketType").
		OrderExpr("?TableAlias.created_at DESC")
	if status != "" {
		q = q.Where("?TableAlias.status = ?", status)
	}
	err := q.Scan(ctx)
	return orders, err
}
