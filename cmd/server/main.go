package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"consulta/internal/auth"
	"consulta/internal/config"
	"consulta/internal/dataset"
	"consulta/internal/logging"
	"consulta/internal/query"
	"consulta/internal/schema"
	"consulta/internal/storage"
	"consulta/internal/web"

	"github.com/joho/godotenv"
)

func main() {
	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("configuration loaded",
		"port", cfg.Server.Port,
		"database", cfg.Database.Path,
		"rate_limit_enabled", cfg.Rate.Enabled,
		"queries_per_minute", cfg.Rate.QueriesPerMinute,
	)

	db, err := storage.Open(cfg.Database.Path)
	if err != nil {
		slog.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	ctx := context.Background()

	users := auth.NewStore(db)
	if err := users.EnsureAdmin(ctx, cfg.Auth.AdminPassword); err != nil {
		slog.Error("failed to seed admin account", "error", err)
		os.Exit(1)
	}

	schemaStore, err := schema.NewStore(ctx, db)
	if err != nil {
		slog.Error("failed to load schema config", "error", err)
		os.Exit(1)
	}

	tables := dataset.NewStore()
	archive := dataset.NewArchive(db)

	// Restore the active dataset from the last upload, if any. A corrupt
	// stored dataset is logged and skipped; the service starts empty.
	if rec, raw, err := archive.Active(ctx); err != nil {
		slog.Error("failed to read stored dataset", "error", err)
		os.Exit(1)
	} else if rec != nil {
		table, err := dataset.Load(raw, rec.Filename)
		if err != nil {
			slog.Warn("stored dataset failed to parse, starting empty",
				"upload_id", rec.ID,
				"filename", rec.Filename,
				"error", err,
			)
		} else {
			tables.Replace(table)
			slog.Info("dataset restored",
				"filename", rec.Filename,
				"columns", len(table.Columns()),
				"rows", table.Len(),
			)
		}
	}

	engine := query.New(tables, schemaStore)
	tokens := auth.NewTokenIssuer(cfg.Auth.Secret, cfg.Auth.TokenTTL)

	server := web.NewServer(cfg, web.Deps{
		Users:   users,
		Tokens:  tokens,
		Tables:  tables,
		Archive: archive,
		Schema:  schemaStore,
		Engine:  engine,
	})

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}
	}()

	slog.Info("server starting", "addr", cfg.Server.Addr())
	if err := server.Start(); err != nil {
		slog.Info("server stopped", "error", err)
	}
}
