package analytics

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"ms-ticketcodes/internal/models"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
)

const recentOrdersLimit = 5

type PoolReader interface {
	Stats(ctx context.Context) (models.PoolStats, error)
}

// Service handles analytics operations
type Service struct {
	db   *DB
	pool PoolReader
}

// NewService creates a new analytics service
func NewService(db *bun.DB, pool PoolReader) *Service {
	return &Service{db: NewDB(db), pool: pool}
}

// TicketTypeSales is the confirmed volume of one ticket type.
type TicketTypeSales struct {
	TicketType string `bun:"ticket_type" json:"ticketType"`
	Quantity   int    `bun:"quantity" json:"quantity"`
	Orders     int    `bun:"orders" json:"orders"`
}

// DashboardStats is what the admin dashboard shows at a glance.
type DashboardStats struct {
	TotalOrders     int               `json:"totalOrders"`
	TotalRevenue    decimal.Decimal   `json:"totalRevenue"`
	TicketsSold     int               `json:"ticketsSold"`
	TicketBreakdown []TicketTypeSales `json:"ticketBreakdown"`
	Pool            models.PoolStats  `json:"pool"`
	RecentOrders    []models.Order    `json:"recentOrders"`
}

// GetDashboardStats counts confirmed orders and tickets, sums paid revenue
// and reports how much of the code pool is left.
func (s *Service) GetDashboardStats(ctx context.Context) (*DashboardStats, error) {
	confirmed, err := s.db.CountByStatus(ctx, models.OrderConfirmed)
	if err != nil {
		return nil, fmt.Errorf("count confirmed orders: %w", err)
	}

	revenue, err := s.db.PaidRevenue(ctx)
	if err != nil {
		return nil, fmt.Errorf("sum revenue: %w", err)
	}

	breakdown, err := s.db.TicketBreakdown(ctx)
	if err != nil {
		return nil, fmt.Errorf("ticket breakdown: %w", err)
	}

	recent, err := s.db.RecentOrders(ctx, recentOrdersLimit)
	if err != nil {
		return nil, fmt.Errorf("recent orders: %w", err)
	}

	pool, err := s.pool.Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("pool stats: %w", err)
	}

	result := &DashboardStats{
		TotalOrders:     confirmed,
		TotalRevenue:    revenue,
		TicketBreakdown: make([]TicketTypeSales, 0, len(breakdown)),
		Pool:            pool,
		RecentOrders:    recent,
	}
	for _, b := range breakdown {
		result.TicketsSold += b.Quantity
		result.TicketBreakdown = append(result.TicketBreakdown, b)
	}
	if result.RecentOrders == nil {
		result.RecentOrders = []models.Order{}
	}
	return result, nil
}

var exportHeader = []string{
	"Order Number",
	"Date",
	"Customer Name",
	"Email",
	"Phone",
	"Ticket Type",
	"Quantity",
	"Total Amount",
	"Status",
	"Payment Status",
	"Shirt Size",
	"Emergency Contact",
}

// ExportOrders writes orders as CSV, newest first.
func (s *Service) ExportOrders(ctx context.Context, w io.Writer, status string) (int, error) {
	orders, err := s.db.OrdersForExport(ctx, status)
	if err != nil {
		return 0, fmt.Errorf("load orders: %w", err)
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(exportHeader); err != nil {
		return 0, err
	}
	for _, o := range orders {
		typeName := ""
		if o.TicketType != nil {
			typeName = o.TicketType.Name
		}
		if err := cw.Write([]string{
			o.OrderNumber,
			o.CreatedAt.UTC().Format(time.RFC3339),
			o.CustomerName,
			o.CustomerEmail,
			o.CustomerPhone,
			typeName,
			strconv.Itoa(o.Quantity),
			o.TotalAmount.StringFixed(2),
			string(o.Status),
			string(o.PaymentStatus),
			o.ShirtSize,
			o.EmergencyContact,
		}); err != nil {
			return 0, err
		}
	}
	cw.Flush()
	return len(orders), cw.Error()
}
