// Package sheets writes the operator audit log to, and reads ticket codes
// from, a Google spreadsheet.
package sheets

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"ms-ticketcodes/internal/logger"
	"ms-ticketcodes/internal/notify"

	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

var ErrNotConfigured = errors.New("google sheets credentials not configured")

var auditHeader = []interface{}{
	"Timestamp",
	"Order Number",
	"Customer Name",
	"Customer Email",
	"Customer Phone",
	"Ticket Type",
	"Quantity",
	"Total Amount",
	"Order Status",
	"Payment Status",
	"Action",
	"Notes",
	"Ticket Codes",
}

var needsQuoting = regexp.MustCompile(`[\s,'"!]`)

// NewService builds a Sheets client from a service-account JSON document.
func NewService(ctx context.Context, credentialsJSON string, readOnly bool, opts ...option.ClientOption) (*sheets.Service, error) {
	if credentialsJSON == "" {
		return nil, ErrNotConfigured
	}
	scope := sheets.SpreadsheetsScope
	if readOnly {
		scope = sheets.SpreadsheetsReadonlyScope
	}
	opts = append([]option.ClientOption{
		option.WithCredentialsJSON([]byte(credentialsJSON)),
		option.WithScopes(scope),
	}, opts...)

	svc, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets client: %w", err)
	}
	return svc, nil
}

// A1Range joins a sheet name and a range, quoting the name when needed.
func A1Range(sheetName, rng string) string {
	if needsQuoting.MatchString(sheetName) {
		sheetName = "'" + strings.ReplaceAll(sheetName, "'", "''") + "'"
	}
	return sheetName + "!" + rng
}

type AuditLogger struct {
	Service       *sheets.Service
	SpreadsheetID string
	SheetName     string
	Logger        *logger.Logger
}

func NewAuditLogger(svc *sheets.Service, spreadsheetID, sheetName string, log *logger.Logger) *AuditLogger {
	return &AuditLogger{
		Service:       svc,
		SpreadsheetID: spreadsheetID,
		SheetName:     sheetName,
		Logger:        log,
	}
}

// EnsureHeader writes the header row into an empty sheet.
func (a *AuditLogger) EnsureHeader(ctx context.Context) error {
	resp, err := a.Service.Spreadsheets.Values.
		Get(a.SpreadsheetID, A1Range(a.SheetName, "A1:M1")).
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("read header row: %w", err)
	}
	if len(resp.Values) > 0 {
		return nil
	}

	_, err = a.Service.Spreadsheets.Values.
		Append(a.SpreadsheetID, A1Range(a.SheetName, "A1"), &sheets.ValueRange{Values: [][]interface{}{auditHeader}}).
		ValueInputOption("RAW").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("write header row: %w", err)
	}
	a.Logger.Info("SHEETS", fmt.Sprintf("Initialized audit sheet %s", a.SheetName))
	return nil
}

// LogEvent appends one audit row.
func (a *AuditLogger) LogEvent(ctx context.Context, e notify.AuditEntry) error {
	_, err := a.Service.Spreadsheets.Values.
		Append(a.SpreadsheetID, A1Range(a.SheetName, "A:Z"), &sheets.ValueRange{Values: [][]interface{}{auditRow(e)}}).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("append audit row: %w", err)
	}
	a.Logger.Debug("SHEETS", fmt.Sprintf("Order logged: %s - %s", e.OrderNumber, e.Action))
	return nil
}

func auditRow(e notify.AuditEntry) []interface{} {
	codes := make([]string, 0, len(e.TicketCodes))
	for i, c := range e.TicketCodes {
		if i < len(e.TicketNumbers) {
			codes = append(codes, e.TicketNumbers[i]+":"+c)
			continue
		}
		codes = append(codes, c)
	}

	return []interface{}{
		e.Timestamp.UTC().Format(time.RFC3339),
		e.OrderNumber,
		e.CustomerName,
		e.Email,
		e.Phone,
		e.TicketType,
		fmt.Sprintf("%d", e.Quantity),
		e.Total.StringFixed(2),
		e.OrderStatus,
		e.PaymentStatus,
		e.Action,
		e.Notes,
		strings.Join(codes, ", "),
	}
}

// CodeReader reads (ticket number, code) rows from a sheet tab.
type CodeReader struct {
	Service       *sheets.Service
	SpreadsheetID string
	SheetName     string
	Range         string
}

// ReadRows returns every row in the configured range as trimmed strings.
func (r *CodeReader) ReadRows(ctx context.Context) ([][]string, error) {
	resp, err := r.Service.Spreadsheets.Values.
		Get(r.SpreadsheetID, A1Range(r.SheetName, r.Range)).
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", r.SheetName, err)
	}

	rows := make([][]string, 0, len(resp.Values))
	for _, raw := range resp.Values {
		row := make([]string, 0, len(raw))
		for _, cell := range raw {
			row = append(row, strings.TrimSpace(fmt.Sprint(cell)))
		}
		rows = append(rows, row)
	}
	return rows, nil
}
