// Package sqlitetest opens in-memory SQLite databases with the service
// schema for package tests.
package sqlitetest

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"ms-ticketcodes/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

// New returns a bun.DB over a private in-memory database. A single
// connection is used so the database survives between queries and
// concurrent writers queue behind each other.
func New(t testing.TB) *bun.DB {
	t.Helper()

	sqldb, err := sql.Open(sqliteshim.ShimName, ":memory:")
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)

	db := bun.NewDB(sqldb, sqlitedialect.New())
	t.Cleanup(func() { db.Close() })

	ctx := context.Background()
	for _, model := range []interface{}{
		(*models.TicketType)(nil),
		(*models.Order)(nil),
		(*models.PaymentTransaction)(nil),
		(*models.TicketCode)(nil),
	} {
		_, err := db.NewCreateTable().Model(model).IfNotExists().Exec(ctx)
		require.NoError(t, err)
	}
	return db
}

// SeedTicketType inserts an active ticket type with the given price.
func SeedTicketType(t testing.TB, db bun.IDB, name, price string) *models.TicketType {
	t.Helper()

	tt := &models.TicketType{
		ID:        name + "-type",
		Name:      name,
		Price:     decimal.RequireFromString(price),
		IsActive:  true,
		CreatedAt: time.Now().UTC(),
	}
	_, err := db.NewInsert().Model(tt).Exec(context.Background())
	require.NoError(t, err)
	return tt
}

// SeedOrder inserts a PENDING order of quantity tickets for total.
func SeedOrder(t testing.TB, db bun.IDB, id string, quantity int, total string) *models.Order {
	t.Helper()

	now := time.Now().UTC()
	o := &models.Order{
		ID:            id,
		OrderNumber:   "CR-TEST-" + id,
		TicketTypeID:  "Premium-type",
		CustomerName:  "Juan Dela Cruz",
		CustomerEmail: "juan@example.com",
		CustomerPhone: "+639171234567",
		Quantity:      quantity,
		TotalAmount:   decimal.RequireFromString(total),
		Status:        models.OrderPending,
		PaymentStatus: models.PaymentPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	_, err := db.NewInsert().Model(o).Exec(context.Background())
	require.NoError(t, err)
	return o
}

// SeedCodes inserts n free codes numbered from start, in provisioning order.
func SeedCodes(t testing.TB, db bun.IDB, start, n int) []models.TicketCode {
	t.Helper()

	codes := make([]models.TicketCode, 0, n)
	now := time.Now().UTC()
	for i := 0; i < n; i++ {
		num := start + i
		codes = append(codes, models.TicketCode{
			ID:           fmt.Sprintf("code-%d", num),
			TicketNumber: fmt.Sprintf("T%04d", num),
			TicketCode:   fmt.Sprintf("CODE-%04d", num),
			Seq:          int64(num),
			CreatedAt:    now,
		})
	}
	if n == 0 {
		return codes
	}
	_, err := db.NewInsert().Model(&codes).Exec(context.Background())
	require.NoError(t, err)
	return codes
}
