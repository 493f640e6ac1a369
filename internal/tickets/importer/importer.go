// Package importer loads pre-provisioned ticket codes into the pool from a
// spreadsheet tab or a CSV file.
package importer

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"ms-ticketcodes/internal/logger"
	"ms-ticketcodes/internal/models"
)

type Store interface {
	ImportCodes(ctx context.Context, inputs []models.CodeInput) (int, error)
}

// Announcer is told about every import that added codes.
type Announcer interface {
	PublishCodesProvisioned(ctx context.Context, evt models.CodesProvisionedEvent) error
}

// RowSource yields raw (ticket number, code) rows, header included.
type RowSource interface {
	ReadRows(ctx context.Context) ([][]string, error)
}

// Result summarises one import run.
type Result struct {
	RowsRead  int `json:"rowsRead"`
	Valid     int `json:"valid"`
	Blank     int `json:"blank"`
	Inserted  int `json:"inserted"`
	Duplicate int `json:"duplicate"`
}

type Importer struct {
	Store  Store
	Events Announcer
	Logger *logger.Logger
	Now    func() time.Time
}

func New(store Store, events Announcer, log *logger.Logger) *Importer {
	return &Importer{
		Store:  store,
		Events: events,
		Logger: log,
		Now:    func() time.Time { return time.Now().UTC() },
	}
}

// Import reads src, inserts the valid pairs and announces the result when
// anything new was added. source names the origin in logs and events.
func (i *Importer) Import(ctx context.Context, src RowSource, source string) (Result, error) {
	rows, err := src.ReadRows(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("read rows from %s: %w", source, err)
	}
	return i.ImportRows(ctx, rows, source)
}

func (i *Importer) ImportRows(ctx context.Context, rows [][]string, source string) (Result, error) {
	codes, res := ParseRows(rows)
	if len(codes) == 0 {
		i.Logger.Warn("IMPORT", fmt.Sprintf("No valid (ticket number, code) rows found in %s", source))
		return res, nil
	}

	inserted, err := i.Store.ImportCodes(ctx, codes)
	if err != nil {
		return res, fmt.Errorf("import codes: %w", err)
	}
	res.Inserted = inserted
	res.Duplicate = res.Valid - inserted

	i.Logger.Info("IMPORT", fmt.Sprintf("%s: rows read %d, valid %d, inserted %d, skipped as duplicate %d",
		source, res.RowsRead, res.Valid, res.Inserted, res.Duplicate))

	if inserted > 0 && i.Events != nil {
		evt := models.CodesProvisionedEvent{
			Inserted:   inserted,
			Skipped:    res.Duplicate + res.Blank,
			Source:     source,
			ImportedAt: i.Now(),
		}
		if err := i.Events.PublishCodesProvisioned(ctx, evt); err != nil {
			i.Logger.Error("IMPORT", fmt.Sprintf("Codes imported but announcement failed: %v", err))
		}
	}
	return res, nil
}

// ParseRows drops an optional header row and any row missing either value.
// A pair repeated within the input is kept once.
func ParseRows(rows [][]string) ([]models.CodeInput, Result) {
	if len(rows) > 0 && isHeader(rows[0]) {
		rows = rows[1:]
	}
	res := Result{RowsRead: len(rows)}

	seenNumber := make(map[string]bool, len(rows))
	seenCode := make(map[string]bool, len(rows))
	codes := make([]models.CodeInput, 0, len(rows))
	for _, row := range rows {
		number, code := cell(row, 0), cell(row, 1)
		if number == "" || code == "" {
			res.Blank++
			continue
		}
		res.Valid++
		if seenNumber[number] || seenCode[code] {
			continue
		}
		seenNumber[number] = true
		seenCode[code] = true
		codes = append(codes, models.CodeInput{TicketNumber: number, TicketCode: code})
	}
	return codes, res
}

func isHeader(row []string) bool {
	return strings.Contains(strings.ToLower(cell(row, 0)), "ticket") &&
		strings.Contains(strings.ToLower(cell(row, 1)), "code")
}

func cell(row []string, i int) string {
	if i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

// CSVSource reads rows from a comma separated file.
type CSVSource struct {
	Reader io.Reader
}

func (s CSVSource) ReadRows(ctx context.Context) ([][]string, error) {
	r := csv.NewReader(s.Reader)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	var rows [][]string
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			return rows, nil
		}
		if err != nil {
			return nil, fmt.Errorf("parse csv: %w", err)
		}
		rows = append(rows, rec)
	}
}
