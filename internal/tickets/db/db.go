package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"ms-ticketcodes/internal/models"
	"ms-ticketcodes/internal/utils"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"
)

// DB is the ticket code pool. Methods that take a bun.IDB run on whatever
// handle they are given, so the allocator can call them inside its
// transaction.
type DB struct {
	Bun *bun.DB
}

// LockOrderRow takes the order's row lock on Postgres so two allocations for
// the same order run one after the other. On other dialects it only checks
// the order exists. Returns sql.ErrNoRows for an unknown order.
func (d *DB) LockOrderRow(ctx context.Context, idb bun.IDB, orderID string) error {
	var id string
	q := idb.NewSelect().
		Table("orders").
		Column("id").
		Where("id = ?", orderID)
	if idb.Dialect().Name() == dialect.PG {
		q = q.For("UPDATE")
	}
	return q.Scan(ctx, &id)
}

// ListByOrder returns the codes bound to an order in provisioning order.
func (d *DB) ListByOrder(ctx context.Context, idb bun.IDB, orderID string) ([]models.TicketCode, error) {
	var codes []models.TicketCode
	err := idb.NewSelect().
		Model(&codes).
		Where("order_id = ?", orderID).
		OrderExpr("seq ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return codes, nil
}

// SelectFree picks up to n unassigned codes, oldest first. On Postgres the
// rows are locked and rows already locked by another transaction are
// skipped, so concurrent allocators never wait on or pick the same code.
func (d *DB) SelectFree(ctx context.Context, idb bun.IDB, n int) ([]models.TicketCode, error) {
	if n <= 0 {
		return nil, nil
	}

	var codes []models.TicketCode
	q := idb.NewSelect().
		Model(&codes).
		Where("order_id IS NULL").
		OrderExpr("seq ASC").
		Limit(n)
	if idb.Dialect().Name() == dialect.PG {
		q = q.For("UPDATE SKIP LOCKED")
	}
	if err := q.Scan(ctx); err != nil {
		return nil, err
	}
	return codes, nil
}

// Bind assigns the given codes to orderID. Only rows that are still free
// are touched; the number of rows actually bound is returned.
func (d *DB) Bind(ctx context.Context, idb bun.IDB, ids []string, orderID string, at time.Time) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	res, err := idb.NewUpdate().
		Model((*models.TicketCode)(nil)).
		Set("order_id = ?", orderID).
		Set("assigned_at = ?", at).
		Where("id IN (?)", bun.In(ids)).
		Where("order_id IS NULL").
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ImportCodes appends codes to the pool. Pairs whose number or code already
// exists are skipped. Returns how many rows were inserted. On Postgres the
// table is locked against other writers for the duration so concurrent
// imports cannot hand out the same seq; allocations wait for the import.
func (d *DB) ImportCodes(ctx context.Context, inputs []models.CodeInput) (int, error) {
	if len(inputs) == 0 {
		return 0, nil
	}

	inserted := 0
	err := d.Bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if tx.Dialect().Name() == dialect.PG {
			if _, err := tx.ExecContext(ctx, "LOCK TABLE ticket_codes IN SHARE ROW EXCLUSIVE MODE"); err != nil {
				return fmt.Errorf("lock ticket_codes: %w", err)
			}
		}

		var maxSeq sql.NullInt64
		if err := tx.NewSelect().
			Model((*models.TicketCode)(nil)).
			ColumnExpr("MAX(seq)").
			Scan(ctx, &maxSeq); err != nil {
			return fmt.Errorf("read max seq: %w", err)
		}

		now := time.Now().UTC()
		next := maxSeq.Int64 + 1
		for _, in := range inputs {
			code := &models.TicketCode{
				ID:           utils.NewID(),
				TicketNumber: in.TicketNumber,
				TicketCode:   in.TicketCode,
				Seq:          next,
				CreatedAt:    now,
			}
			res, err := tx.NewInsert().
				Model(code).
				On("CONFLICT DO NOTHING").
				Exec(ctx)
			if err != nil {
				return fmt.Errorf("insert code %s: %w", in.TicketNumber, err)
			}
			if n, _ := res.RowsAffected(); n > 0 {
				inserted++
				next++
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return inserted, nil
}

// Stats counts the pool as a whole.
func (d *DB) Stats(ctx context.Context) (models.PoolStats, error) {
	var stats models.PoolStats

	total, err := d.Bun.NewSelect().Model((*models.TicketCode)(nil)).Count(ctx)
	if err != nil {
		return stats, err
	}
	assigned, err := d.Bun.NewSelect().
		Model((*models.TicketCode)(nil)).
		Where("order_id IS NOT NULL").
		Count(ctx)
	if err != nil {
		return stats, err
	}

	stats.Total = total
	stats.Assigned = assigned
	stats.Free = total - assigned
	return stats, nil
}
