// Command migrate applies the reference schema to DATABASE_URL.
// With "print" as its only argument it writes the schema to stdout instead.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"expensehq.app/web/common/logger"
	"expensehq.app/web/core/config"
	"expensehq.app/web/core/db"
	"expensehq.app/web/internal/backend/postgres"
)

func main() {
	if len(os.Args) == 2 && os.Args[1] == "print" {
		fmt.Print(postgres.Schema())
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		slog.ErrorContext(ctx, "failed to load config", "error", err)
		os.Exit(1)
	}
	logger.Setup(cfg)

	if !cfg.DB.Enabled() {
		slog.ErrorContext(ctx, "DATABASE_URL is required")
		os.Exit(1)
	}

	database, err := db.New(ctx, db.Config{DSN: cfg.DB.DSN, MaxConns: 1, MinConns: 1})
	if err != nil {
		slog.ErrorContext(ctx, "failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer database.Close()

	if err := postgres.Migrate(ctx, database); err != nil {
		slog.ErrorContext(ctx, "migration failed", "error", err)
		os.Exit(1)
	}
	slog.InfoContext(ctx, "schema applied")
}
