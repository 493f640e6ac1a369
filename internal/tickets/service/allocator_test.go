package tickets_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"ms-ticketcodes/internal/database/sqlitetest"
	"ms-ticketcodes/internal/logger"
	"ms-ticketcodes/internal/models"
	ticketdb "ms-ticketcodes/internal/tickets/db"
	tickets "ms-ticketcodes/internal/tickets/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
)

func newAllocator(t *testing.T) (*tickets.Allocator, *bun.DB) {
	bunDB := sqlitetest.New(t)
	sqlitetest.SeedTicketType(t, bunDB, "Premium", "1500")
	return tickets.NewAllocator(bunDB, &ticketdb.DB{Bun: bunDB}, logger.NewDiscard()), bunDB
}

func codesOf(tickets []models.AssignedTicket) []string {
	out := make([]string, 0, len(tickets))
	for _, tk := range tickets {
		out = append(out, tk.TicketCode)
	}
	return out
}

func TestAllocateBindsOldestFreeCodes(t *testing.T) {
	alloc, bunDB := newAllocator(t)
	ctx := context.Background()
	sqlitetest.SeedOrder(t, bunDB, "o1", 2, "3000")
	sqlitetest.SeedCodes(t, bunDB, 1, 5)

	res, err := alloc.Allocate(ctx, "o1", 2)
	require.NoError(t, err)
	assert.False(t, res.Insufficient)
	assert.Equal(t, []string{"CODE-0001", "CODE-0002"}, codesOf(res.Tickets))
	assert.Equal(t, "T0001", res.Tickets[0].TicketNumber)
}

func TestAllocateIsIdempotent(t *testing.T) {
	alloc, bunDB := newAllocator(t)
	ctx := context.Background()
	sqlitetest.SeedOrder(t, bunDB, "o1", 3, "4500")
	sqlitetest.SeedCodes(t, bunDB, 1, 10)

	first, err := alloc.Allocate(ctx, "o1", 3)
	require.NoError(t, err)

	again, err := alloc.Allocate(ctx, "o1", 3)
	require.NoError(t, err)
	assert.Equal(t, first.Tickets, again.Tickets)

	smaller, err := alloc.Allocate(ctx, "o1", 2)
	require.NoError(t, err)
	assert.Equal(t, first.Tickets[:2], smaller.Tickets)

	assigned, err := alloc.Assigned(ctx, "o1")
	require.NoError(t, err)
	assert.Len(t, assigned, 3, "re-invocation must not bind extra codes")
}

func TestAllocateReportsInsufficientPool(t *testing.T) {
	alloc, bunDB := newAllocator(t)
	ctx := context.Background()
	sqlitetest.SeedOrder(t, bunDB, "o1", 3, "4500")
	sqlitetest.SeedCodes(t, bunDB, 1, 1)

	res, err := alloc.Allocate(ctx, "o1", 3)
	require.NoError(t, err)
	assert.True(t, res.Insufficient)
	assert.Equal(t, []string{"CODE-0001"}, codesOf(res.Tickets))

	// topping up the pool lets a later call finish the order
	sqlitetest.SeedCodes(t, bunDB, 2, 5)
	res, err = alloc.Allocate(ctx, "o1", 3)
	require.NoError(t, err)
	assert.False(t, res.Insufficient)
	assert.Equal(t, []string{"CODE-0001", "CODE-0002", "CODE-0003"}, codesOf(res.Tickets))
}

func TestAllocateEmptyPool(t *testing.T) {
	alloc, bunDB := newAllocator(t)
	sqlitetest.SeedOrder(t, bunDB, "o1", 1, "1500")

	res, err := alloc.Allocate(context.Background(), "o1", 1)
	require.NoError(t, err)
	assert.True(t, res.Insufficient)
	assert.Empty(t, res.Tickets)
}

func TestAllocateRejectsBadInput(t *testing.T) {
	alloc, _ := newAllocator(t)
	ctx := context.Background()

	_, err := alloc.Allocate(ctx, "o1", 0)
	assert.ErrorIs(t, err, tickets.ErrInvalidQuantity)

	_, err = alloc.Allocate(ctx, "missing", 1)
	assert.ErrorIs(t, err, tickets.ErrOrderNotFound)
}

func TestConcurrentAllocationsAreDisjoint(t *testing.T) {
	alloc, bunDB := newAllocator(t)
	ctx := context.Background()

	const orders = 8
	for i := 0; i < orders; i++ {
		sqlitetest.SeedOrder(t, bunDB, fmt.Sprintf("o%d", i), 2, "3000")
	}
	sqlitetest.SeedCodes(t, bunDB, 1, 12)

	var wg sync.WaitGroup
	results := make([]tickets.AllocationResult, orders)
	errs := make([]error, orders)
	for i := 0; i < orders; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = alloc.Allocate(ctx, fmt.Sprintf("o%d", i), 2)
		}(i)
	}
	wg.Wait()

	seen := map[string]string{}
	short := 0
	for i, res := range results {
		require.NoError(t, errs[i])
		if res.Insufficient {
			short++
		}
		for _, code := range codesOf(res.Tickets) {
			owner, dup := seen[code]
			assert.False(t, dup, "code %s bound to o%d and %s", code, i, owner)
			seen[code] = fmt.Sprintf("o%d", i)
		}
	}
	assert.Len(t, seen, 12, "every code in the pool should be used")
	assert.Equal(t, 2, short, "12 codes cover 6 orders of 2")
}
