package tickets_test

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"testing"
	"time"

	"ms-ticketcodes/internal/database/migrations"
	"ms-ticketcodes/internal/logger"
	"ms-ticketcodes/internal/models"
	ticketdb "ms-ticketcodes/internal/tickets/db"
	tickets "ms-ticketcodes/internal/tickets/service"

	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
)

func startPostgres(t *testing.T) *bun.DB {
	if testing.Short() {
		t.Skip("Skipping Postgres integration test in short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx := context.Background()
	pg, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "tickets",
				"POSTGRES_PASSWORD": "tickets",
				"POSTGRES_DB":       "tickets",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { pg.Terminate(ctx) })

	host, err := pg.Host(ctx)
	require.NoError(t, err)
	port, err := pg.MappedPort(ctx, "5432")
	require.NoError(t, err)

	dsn := fmt.Sprintf("postgres://tickets:tickets@%s:%s/tickets?sslmode=disable", host, port.Port())
	sqldb, err := sql.Open("postgres", dsn)
	require.NoError(t, err)
	bunDB := bun.NewDB(sqldb, pgdialect.New())
	t.Cleanup(func() { bunDB.Close() })

	runner := migrations.NewRunner(bunDB, migrations.DefaultOptions(), logger.NewDiscard())
	require.NoError(t, runner.RunMigrations())
	return bunDB
}

func TestPostgresConcurrentAllocation(t *testing.T) {
	bunDB := startPostgres(t)
	ctx := context.Background()

	const orders = 20
	for i := 0; i < orders; i++ {
		_, err := bunDB.ExecContext(ctx, `INSERT INTO orders
			(id, order_number, ticket_type_id, customer_name, customer_email, customer_phone, quantity, total_amount, status, payment_status)
			VALUES (?, ?, '7f7d2b1e-4c55-4a8e-9a51-0f4f6f0a2c01', 'Runner', 'r@example.com', '09170000000', 3, 4500, 'CONFIRMED', 'COMPLETED')`,
			fmt.Sprintf("o%02d", i), fmt.Sprintf("CR-PG-%02d", i))
		require.NoError(t, err)
	}
	for i := 1; i <= 50; i++ {
		_, err := bunDB.ExecContext(ctx, `INSERT INTO ticket_codes (id, ticket_number, ticket_code, seq) VALUES (?, ?, ?, ?)`,
			fmt.Sprintf("c%03d", i), fmt.Sprintf("T%03d", i), fmt.Sprintf("CODE-%03d", i), i)
		require.NoError(t, err)
	}

	alloc := tickets.NewAllocator(bunDB, &ticketdb.DB{Bun: bunDB}, logger.NewDiscard())

	// every order is allocated twice at the same time
	var wg sync.WaitGroup
	var mu sync.Mutex
	var failures []error
	for i := 0; i < orders; i++ {
		for rep := 0; rep < 2; rep++ {
			wg.Add(1)
			go func(id string) {
				defer wg.Done()
				if _, err := alloc.Allocate(ctx, id, 3); err != nil {
					mu.Lock()
					failures = append(failures, err)
					mu.Unlock()
				}
			}(fmt.Sprintf("o%02d", i))
		}
	}
	wg.Wait()
	require.Empty(t, failures)

	var perOrder []struct {
		OrderID string `bun:"order_id"`
		N       int    `bun:"n"`
	}
	err := bunDB.NewSelect().
		TableExpr("ticket_codes").
		ColumnExpr("order_id, COUNT(*) AS n").
		Where("order_id IS NOT NULL").
		GroupExpr("order_id").
		Scan(ctx, &perOrder)
	require.NoError(t, err)

	total := 0
	for _, row := range perOrder {
		assert.LessOrEqual(t, row.N, 3, "order %s over-allocated", row.OrderID)
		total += row.N
	}
	assert.Equal(t, 50, total, "the whole pool should be handed out")
}

func TestPostgresConcurrentImports(t *testing.T) {
	bunDB := startPostgres(t)
	ctx := context.Background()
	pool := &ticketdb.DB{Bun: bunDB}

	const batches, perBatch = 4, 25
	var wg sync.WaitGroup
	errs := make([]error, batches)
	for b := 0; b < batches; b++ {
		wg.Add(1)
		go func(b int) {
			defer wg.Done()
			inputs := make([]models.CodeInput, 0, perBatch)
			for i := 0; i < perBatch; i++ {
				n := b*perBatch + i
				inputs = append(inputs, models.CodeInput{
					TicketNumber: fmt.Sprintf("IMP%03d", n),
					TicketCode:   fmt.Sprintf("IMPORT-%03d", n),
				})
			}
			_, errs[b] = pool.ImportCodes(ctx, inputs)
		}(b)
	}
	wg.Wait()
	for _, err := range errs {
		require.NoError(t, err)
	}

	var seqs struct {
		Total    int `bun:"total"`
		Distinct int `bun:"distinct_seq"`
	}
	err := bunDB.NewSelect().
		TableExpr("ticket_codes").
		ColumnExpr("COUNT(*) AS total, COUNT(DISTINCT seq) AS distinct_seq").
		Where("ticket_number LIKE 'IMP%'").
		Scan(ctx, &seqs)
	require.NoError(t, err)
	assert.Equal(t, batches*perBatch, seqs.Total)
	assert.Equal(t, seqs.Total, seqs.Distinct)
}
