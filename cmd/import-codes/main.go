// Command import-codes loads pre-provisioned ticket codes into the pool,
// either from the configured Google Sheets tab or from a CSV file.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"ms-ticketcodes/internal/config"
	"ms-ticketcodes/internal/database"
	"ms-ticketcodes/internal/kafka"
	"ms-ticketcodes/internal/logger"
	"ms-ticketcodes/internal/notify/sheets"
	ticketdb "ms-ticketcodes/internal/tickets/db"
	"ms-ticketcodes/internal/tickets/importer"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
)

func main() {
	csvPath := pflag.StringP("csv", "f", "", "read codes from this CSV file instead of Google Sheets")
	announce := pflag.Bool("announce", true, "publish a codes-provisioned event when Kafka is enabled")
	pflag.Parse()

	_ = godotenv.Load()
	cfg := config.Load()
	log := logger.NewLogger(logger.Options{Service: "import-codes", Dir: cfg.Log.Dir, Level: cfg.Log.Level})
	defer log.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	bunDB, err := database.Connect(cfg.Database, log)
	if err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Failed to connect to PostgreSQL: %v", err))
	}
	defer bunDB.Close()

	var announcer importer.Announcer
	if *announce && cfg.Kafka.Enabled {
		producer := kafka.NewProducer(cfg.Kafka.Brokers, kafka.Topics{
			PaymentCompleted: cfg.Kafka.Topics.PaymentCompleted,
			CodesProvisioned: cfg.Kafka.Topics.CodesProvisioned,
		}, log)
		defer producer.Close()
		announcer = producer
	}

	pool := &ticketdb.DB{Bun: bunDB}
	imp := importer.New(pool, announcer, log)

	var (
		src    importer.RowSource
		source string
	)
	if *csvPath != "" {
		f, err := os.Open(*csvPath)
		if err != nil {
			log.Fatal("IMPORT", fmt.Sprintf("Failed to open %s: %v", *csvPath, err))
		}
		defer f.Close()
		src = importer.CSVSource{Reader: f}
		source = "csv:" + *csvPath
	} else {
		svc, err := sheets.NewService(ctx, cfg.Sheets.CredentialsJSON, true)
		if err != nil {
			log.Fatal("SHEETS", fmt.Sprintf("Cannot read codes sheet: %v", err))
		}
		src = &sheets.CodeReader{
			Service:       svc,
			SpreadsheetID: cfg.Sheets.SpreadsheetID,
			SheetName:     cfg.Sheets.CodesSheetName,
			Range:         cfg.Sheets.CodesSheetRange,
		}
		source = "sheets:" + cfg.Sheets.CodesSheetName
	}

	res, err := imp.Import(ctx, src, source)
	if err != nil {
		log.Fatal("IMPORT", fmt.Sprintf("Import failed: %v", err))
	}

	stats, err := pool.Stats(ctx)
	if err != nil {
		log.Warn("IMPORT", fmt.Sprintf("Could not read pool stats: %v", err))
		return
	}
	log.Info("IMPORT", fmt.Sprintf("Done: %d rows, %d inserted, %d duplicate, %d blank. Pool %d total, %d free",
		res.RowsRead, res.Inserted, res.Duplicate, res.Blank, stats.Total, stats.Free))
}
