package main

import (
	"context"
	"flag"
	"log"
	"os"

	"go.uber.org/zap"

	"kerotrack/internal/config"
	"kerotrack/internal/logger"
	"kerotrack/internal/report"
	"kerotrack/internal/repository"
)

// Standalone exporter: pulls reading history from the database and
// writes the refill-period and monthly usage/cost summaries as an
// xlsx workbook. Intended for cron or ad-hoc runs.
func main() {
	days := flag.Int("days", 365, "history window in days")
	trendRuns := flag.Int("trend-runs", 12, "analysis runs on the trend sheet")
	out := flag.String("out", "kerotrack_report.xlsx", "output workbook path")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	zapLogger, err := logger.NewLogger(cfg.Log.Level, cfg.Log.Format, "kerotrack-report")
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer zapLogger.Sync()

	db, err := repository.NewPostgresDB(&cfg.Database)
	if err != nil {
		zapLogger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	ctx := context.Background()
	readings, err := repository.NewReadingsRepository(db, zapLogger).GetSince(ctx, *days)
	if err != nil {
		zapLogger.Fatal("Failed to load readings", zap.Error(err))
	}
	if len(readings) == 0 {
		zapLogger.Fatal("No readings in the requested window", zap.Int("days", *days))
	}

	// Trend sheet is best effort: a fresh install has no runs yet.
	trend, err := repository.NewAnalysisRepository(db, zapLogger).GetRecent(ctx, *trendRuns)
	if err != nil {
		zapLogger.Warn("Failed to load analysis history, skipping trend sheet", zap.Error(err))
	}

	builder := report.NewBuilder(cfg.Detection, cfg.Analysis.CO2PerLitre, zapLogger)
	workbook, err := report.GenerateWorkbook(
		builder.RefillPeriods(readings),
		builder.Monthly(readings),
		trend,
	)
	if err != nil {
		zapLogger.Fatal("Failed to generate workbook", zap.Error(err))
	}

	if err := os.WriteFile(*out, workbook, 0o644); err != nil {
		zapLogger.Fatal("Failed to write workbook", zap.Error(err))
	}

	zapLogger.Info("Report written",
		zap.String("path", *out),
		zap.Int("readings", len(readings)),
		zap.Int("days", *days),
	)
}
