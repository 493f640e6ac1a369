// Command migrate applies or rolls back the embedded schema migrations.
//
//	migrate                 apply everything, reference data included
//	migrate --schema-only   apply the schema only
//	migrate --down          roll everything back
package main

import (
	"fmt"

	"ms-ticketcodes/internal/config"
	"ms-ticketcodes/internal/database"
	"ms-ticketcodes/internal/database/migrations"
	"ms-ticketcodes/internal/logger"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
)

func main() {
	down := pflag.Bool("down", false, "roll back all migrations")
	schemaOnly := pflag.Bool("schema-only", false, "skip reference-data migrations")
	pflag.Parse()

	_ = godotenv.Load()
	cfg := config.Load()
	log := logger.NewLogger(logger.Options{Service: "migrate", Dir: cfg.Log.Dir, Level: cfg.Log.Level})
	defer log.Close()

	bunDB, err := database.Connect(cfg.Database, log)
	if err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Failed to connect to PostgreSQL: %v", err))
	}

	opts := migrations.DefaultOptions()
	opts.SeedData = !*schemaOnly
	runner := migrations.NewRunner(bunDB, opts, log)
	// Close also closes bunDB's connection pool.
	defer runner.Close()

	if *down {
		if err := runner.MigrateDown(); err != nil {
			log.Fatal("MIGRATION", err.Error())
		}
		log.Info("MIGRATION", "All migrations rolled back")
		return
	}
	if err := runner.RunMigrations(); err != nil {
		log.Fatal("MIGRATION", err.Error())
	}
	log.Info("MIGRATION", "✅ Migrations applied")
}
