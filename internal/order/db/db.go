package db

import (
	"context"
	"time"

	"ms-ticketcodes/internal/models"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"
)

type DB struct {
	Bun *bun.DB
}

// ---------------- ORDERS ----------------

// GetOrderByID → fetch one order with its ticket type
func (d *DB) GetOrderByID(ctx context.Context, id string) (*models.Order, error) {
	var order models.Order
	err := d.Bun.NewSelect().
		Model(&order).
		Relation("TicketType").
		Where("?TableAlias.id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// GetOrderForUpdate → read an order inside a transaction, holding its row
// lock on Postgres until the transaction ends
func (d *DB) GetOrderForUpdate(ctx context.Context, idb bun.IDB, id string) (*models.Order, error) {
	var order models.Order
	q := idb.NewSelect().
		Model(&order).
		Where("id = ?", id).
		Limit(1)
	if idb.Dialect().Name() == dialect.PG {
		q = q.For("UPDATE")
	}
	if err := q.Scan(ctx); err != nil {
		return nil, err
	}
	return &order, nil
}

// CreateOrder → insert new order
func (d *DB) CreateOrder(ctx context.Context, order *models.Order) error {
	_, err := d.Bun.NewInsert().Model(order).Exec(ctx)
	return err
}

// MarkPaymentCompleted → PENDING to COMPLETED/CONFIRMED. Reports false when
// the order is no longer awaiting payment (completed, refunded, failed or
// cancelled), so only one caller wins and overrides are never undone.
func (d *DB) MarkPaymentCompleted(ctx context.Context, idb bun.IDB, id string, at time.Time) (bool, error) {
	res, err := idb.NewUpdate().
		Model((*models.Order)(nil)).
		Set("payment_status = ?", models.PaymentCompleted).
		Set("status = ?", models.OrderConfirmed).
		Set("updated_at = ?", at).
		Where("id = ?", id).
		Where("payment_status = ?", models.PaymentPending).
		Where("status NOT IN (?)", bun.In([]models.OrderStatus{models.OrderCancelled, models.OrderRefunded})).
		Exec(ctx)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// AdminUpdate → operator override of the status fields. Not guarded by the
// completion check.
func (d *DB) AdminUpdate(ctx context.Context, id string, upd models.AdminOrderUpdate, at time.Time) (int64, error) {
	q := d.Bun.NewUpdate().
		Model((*models.Order)(nil)).
		Set("updated_at = ?", at).
		Where("id = ?", id)
	if upd.Status != nil {
		q = q.Set("status = ?", *upd.Status)
	}
	if upd.PaymentStatus != nil {
		q = q.Set("payment_status = ?", *upd.PaymentStatus)
	}
	res, err := q.Exec(ctx)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ListAwaitingCodes → completed, non-test orders holding fewer codes than
// their quantity, oldest first
func (d *DB) ListAwaitingCodes(ctx context.Context, limit int) ([]models.Order, error) {
	var orders []models.Order
	err := d.Bun.NewSelect().
		Model(&orders).
		Where("?TableAlias.payment_status = ?", models.PaymentCompleted).
		Where("?TableAlias.quantity > (SELECT COUNT(*) FROM ticket_codes AS tc WHERE tc.order_id = ?TableAlias.id)").
		Where("NOT EXISTS (SELECT 1 FROM payment_transactions AS pt WHERE pt.order_id = ?TableAlias.id AND pt.test_mode = ?)", true).
		OrderExpr("?TableAlias.updated_at ASC").
		Limit(limit).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return orders, nil
}

type OrderFilter struct {
	Status string
	Search string
	Page   int
	Limit  int
}

// ListOrders → admin listing, newest first, with a total for paging
func (d *DB) ListOrders(ctx context.Context, f OrderFilter) ([]models.Order, int, error) {
	if f.Limit <= 0 || f.Limit > 100 {
		f.Limit = 20
	}
	if f.Page <= 0 {
		f.Page = 1
	}

	var orders []models.Order
	q := d.Bun.NewSelect().
		Model(&orders).
		Relation("TicketType").
		OrderExpr("?TableAlias.created_at DESC").
		Limit(f.Limit).
		Offset((f.Page - 1) * f.Limit)
	if f.Status != "" {
		q = q.Where("?TableAlias.status = ?", f.Status)
	}
	if f.Search != "" {
		like := "%" + f.Search + "%"
		q = q.WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.
				Where("LOWER(?TableAlias.order_number) LIKE LOWER(?)", like).
				WhereOr("LOWER(?TableAlias.customer_name) LIKE LOWER(?)", like).
				WhereOr("LOWER(?TableAlias.customer_email) LIKE LOWER(?)", like)
		})
	}

	total, err := q.ScanAndCount(ctx)
	if err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}

// ---------------- PAYMENT TRANSACTIONS ----------------

// GetTransactionByExternalID → resolve a provider reference to its record
func (d *DB) GetTransactionByExternalID(ctx context.Context, externalID string) (*models.PaymentTransaction, error) {
	var txn models.PaymentTransaction
	err := d.Bun.NewSelect().
		Model(&txn).
		Where("external_id = ?", externalID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &txn, nil
}

// GetTransactionByOrder → the transaction attached to an order, if any
func (d *DB) GetTransactionByOrder(ctx context.Context, idb bun.IDB, orderID string) (*models.PaymentTransaction, error) {
	var txn models.PaymentTransaction
	err := idb.NewSelect().
		Model(&txn).
		Where("order_id = ?", orderID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &txn, nil
}

// UpsertTransaction → one transaction per order; a later write replaces
// every mutable column of the earlier one
func (d *DB) UpsertTransaction(ctx context.Context, idb bun.IDB, txn *models.PaymentTransaction) error {
	_, err := idb.NewInsert().
		Model(txn).
		On("CONFLICT (order_id) DO UPDATE").
		Set("external_id = EXCLUDED.external_id").
		Set("amount = EXCLUDED.amount").
		Set("status = EXCLUDED.status").
		Set("test_mode = EXCLUDED.test_mode").
		Set("payment_url = EXCLUDED.payment_url").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	return err
}

// ---------------- TICKET TYPES ----------------

func (d *DB) ListTicketTypes(ctx context.Context) ([]models.TicketType, error) {
	var types []models.TicketType
	err := d.Bun.NewSelect().
		Model(&types).
		Where("is_active = ?", true).
		OrderExpr("price ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return types, nil
}

func (d *DB) GetTicketType(ctx context.Context, id string) (*models.TicketType, error) {
	var tt models.TicketType
	err := d.Bun.NewSelect().
		Model(&tt).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &tt, nil
}
