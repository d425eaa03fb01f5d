package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/joseph-ayodele/docintel/db/migrations"
	"github.com/joseph-ayodele/docintel/internal/common"
	"github.com/joseph-ayodele/docintel/internal/profiles"
	repo "github.com/joseph-ayodele/docintel/internal/repository"
)

// migrate applies pending SQL migrations, then seeds the profile catalogue
// named by PROFILES_FILE when set. Existing profile versions are left alone.
func main() {
	cfg := common.LoadConfig()
	logger := common.NewLogger(cfg.Log)
	slog.SetDefault(logger)

	if cfg.Database.DSN == "" {
		logger.Error("DB_URL env var is required")
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	pool, err := repo.Open(ctx, repo.Config{
		DSN:         cfg.Database.DSN,
		MaxConns:    2,
		DialTimeout: cfg.Database.DialTimeout,
	}, logger)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer repo.Close(pool, logger)

	if _, err := repo.Migrate(ctx, pool, migrations.FS, logger); err != nil {
		logger.Error("migrate failed", "error", err)
		os.Exit(1)
	}

	if cfg.ProfilesFile == "" {
		return
	}
	catalog, err := profiles.LoadFile(cfg.ProfilesFile)
	if err != nil {
		logger.Error("invalid profile catalogue", "file", cfg.ProfilesFile, "error", err)
		os.Exit(1)
	}

	seedCtx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()
	svc := profiles.NewService(repo.NewProfileRepository(repo.NewTenantScope(pool, logger), logger), logger)
	res, err := svc.Seed(seedCtx, catalog)
	if err != nil {
		logger.Error("profile seed failed", "error", err)
		os.Exit(1)
	}
	logger.Info("profiles seeded", "file", cfg.ProfilesFile, "created", res.Created, "skipped", res.Skipped)
}
