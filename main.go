package main

import (
	"context"
	"log"

	"supptrace/adapters/postgres"
	"supptrace/app"
	"supptrace/internal"
	"supptrace/internal/cache"
	"supptrace/internal/community"
	"supptrace/internal/config"
	"supptrace/internal/errors"
	"supptrace/internal/migration"
	"supptrace/ui"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
)

func main() {
	// Load environment variables from .env file if present
	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	db, err := initDatabase(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	gin.SetMode(cfg.Server.GinMode)
	logger := internal.DefaultLogger

	entries := postgres.NewEntryRepository(db)
	periods := postgres.NewPeriodRepository(db)
	supplements := postgres.NewSupplementRepository(db)
	reports := postgres.NewReportRepository(db)
	communityReader := postgres.NewCommunityReader(db)

	bus := cache.NewInvalidationBus(logger)
	enricher := community.NewEnricher(communityReader, cfg.Analysis.CommunityMinPopulation, logger)

	reportService := app.NewReportService(cfg.Analysis, entries, periods, supplements, reports, enricher, bus, logger)
	periodService := app.NewPeriodService(periods, supplements, bus, logger)

	if cfg.Ops.Enabled {
		admin := ui.NewAdminServer(db, bus)
		go func() {
			addr := ":" + cfg.Ops.Port
			logger.Info("ops server listening on %s", addr)
			if err := admin.Start(addr); err != nil {
				logger.Error("ops server stopped: %v", err)
			}
		}()
	}

	server := ui.NewServer(reportService, periodService, supplements, logger)
	if err := server.Start(":" + cfg.Server.Port); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}

// initDatabase connects to PostgreSQL and brings the schema up to date
func initDatabase(cfg *config.Config) (*sqlx.DB, error) {
	if cfg.Database.URL == "" {
		return nil, errors.ConfigInvalid("DATABASE_URL is required")
	}

	db, err := sqlx.Connect("postgres", cfg.Database.URL)
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect to database")
	}

	if err := db.Ping(); err != nil {
		return nil, errors.Wrap(err, "failed to ping database")
	}

	migrator := migration.NewRunner()
	if err := migrator.Run(context.Background(), db); err != nil {
		return nil, errors.Wrap(err, "database migration failed")
	}

	return db, nil
}
