package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	config "github.com/maheshrc27/reelflow/configs"
	"github.com/maheshrc27/reelflow/internal/repository"
	"github.com/maheshrc27/reelflow/internal/service"
)

func main() {
	dryRun := flag.Bool("dry-run", false, "report what would be migrated without writing")
	flag.Parse()

	slog.SetDefault(slog.New(tint.NewHandler(os.Stderr, &tint.Options{TimeFormat: time.DateTime})))

	if err := godotenv.Load(); err != nil {
		slog.Warn("failed to load .env file", "error", err)
	}
	cfg, err := config.LoadConfig()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	if cfg.SecretKey == "" {
		slog.Error("SECRET_KEY is required to encrypt migrated tokens")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	db, err := repository.Open(ctx, cfg.PostgresURI)
	if err != nil {
		slog.Error("database is unreachable", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := repository.Migrate(db); err != nil {
		slog.Error("failed to apply migrations", "error", err)
		os.Exit(1)
	}

	report, err := service.BackfillLegacyCredentials(ctx,
		repository.NewProfileRepository(db),
		repository.NewCredentialRepository(db),
		cfg.SecretKey,
		*dryRun)
	if err != nil {
		slog.Error("credential migration failed", "error", err)
		os.Exit(1)
	}

	slog.Info("credential migration finished",
		"dry_run", *dryRun,
		"found", report.Found,
		"migrated", report.Migrated,
		"skipped", report.Skipped,
		"failed", report.Failed)
	if report.Failed > 0 {
		os.Exit(1)
	}
}
