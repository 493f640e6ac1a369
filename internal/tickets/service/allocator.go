package tickets

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"ms-ticketcodes/internal/logger"
	"ms-ticketcodes/internal/models"

	"github.com/uptrace/bun"
)

var (
	ErrInvalidQuantity = errors.New("quantity must be positive")
	ErrOrderNotFound   = errors.New("order not found")
)

type PoolStore interface {
	LockOrderRow(ctx context.Context, idb bun.IDB, orderID string) error
	ListByOrder(ctx context.Context, idb bun.IDB, orderID string) ([]models.TicketCode, error)
	SelectFree(ctx context.Context, idb bun.IDB, n int) ([]models.TicketCode, error)
	Bind(ctx context.Context, idb bun.IDB, ids []string, orderID string, at time.Time) (int64, error)
}

// AllocationResult holds the codes bound to an order after an allocation.
// Insufficient is set when the pool could not cover the full quantity;
// the codes that were available are still bound.
type AllocationResult struct {
	Tickets      []models.AssignedTicket
	Insufficient bool
}

type Allocator struct {
	DB     *bun.DB
	Pool   PoolStore
	Logger *logger.Logger
	Now    func() time.Time
}

func NewAllocator(db *bun.DB, pool PoolStore, log *logger.Logger) *Allocator {
	return &Allocator{
		DB:     db,
		Pool:   pool,
		Logger: log,
		Now:    func() time.Time { return time.Now().UTC() },
	}
}

// Allocate makes sure orderID holds quantity codes, binding free ones from
// the pool as needed. It is safe to call repeatedly: codes already bound to
// the order are kept and returned first, and a call with the same or a
// smaller quantity never binds anything new.
func (a *Allocator) Allocate(ctx context.Context, orderID string, quantity int) (AllocationResult, error) {
	var result AllocationResult
	if quantity <= 0 {
		return result, ErrInvalidQuantity
	}

	err := a.DB.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := a.Pool.LockOrderRow(ctx, tx, orderID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrOrderNotFound
			}
			return fmt.Errorf("lock order: %w", err)
		}

		existing, err := a.Pool.ListByOrder(ctx, tx, orderID)
		if err != nil {
			return fmt.Errorf("list assigned codes: %w", err)
		}
		if len(existing) >= quantity {
			result.Tickets = toAssigned(existing[:quantity])
			return nil
		}

		needed := quantity - len(existing)
		free, err := a.Pool.SelectFree(ctx, tx, needed)
		if err != nil {
			return fmt.Errorf("select free codes: %w", err)
		}

		ids := make([]string, 0, len(free))
		for _, c := range free {
			ids = append(ids, c.ID)
		}
		if _, err := a.Pool.Bind(ctx, tx, ids, orderID, a.Now()); err != nil {
			return fmt.Errorf("bind codes: %w", err)
		}

		bound, err := a.Pool.ListByOrder(ctx, tx, orderID)
		if err != nil {
			return fmt.Errorf("reload assigned codes: %w", err)
		}
		if len(bound) > quantity {
			bound = bound[:quantity]
		}
		result.Tickets = toAssigned(bound)
		result.Insufficient = len(bound) < quantity
		return nil
	})
	if err != nil {
		a.Logger.Error("ALLOCATION", fmt.Sprintf("Allocation for order %s failed: %v", orderID, err))
		return AllocationResult{}, err
	}

	a.Logger.LogAllocation(orderID, quantity, len(result.Tickets), result.Insufficient)
	return result, nil
}

// Assigned returns the codes already bound to an order without binding more.
func (a *Allocator) Assigned(ctx context.Context, orderID string) ([]models.AssignedTicket, error) {
	codes, err := a.Pool.ListByOrder(ctx, a.DB, orderID)
	if err != nil {
		return nil, err
	}
	return toAssigned(codes), nil
}

func toAssigned(codes []models.TicketCode) []models.AssignedTicket {
	out := make([]models.AssignedTicket, 0, len(codes))
	for i := range codes {
		out = append(out, codes[i].ToAssigned())
	}
	return out
}
