package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"github.com/lardosa/contacerta/internal/config"
	"github.com/lardosa/contacerta/internal/importer"
	"github.com/lardosa/contacerta/internal/ledger"
	"github.com/lardosa/contacerta/internal/logging"
	"github.com/lardosa/contacerta/internal/sheet"
	"github.com/lardosa/contacerta/internal/store"
	"github.com/lardosa/contacerta/internal/web"
)

func main() {
	// Load .env if present (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("configuration loaded", "config", cfg.String())

	sheet.MaxFileSize = cfg.Import.MaxFileSize

	poolConfig, err := pgxpool.ParseConfig(cfg.Database.URL)
	if err != nil {
		slog.Error("failed to parse database URL", "error", err)
		os.Exit(1)
	}
	poolConfig.MaxConns = int32(cfg.Database.MaxConns)
	poolConfig.MinConns = int32(cfg.Database.MinConns)
	poolConfig.MaxConnLifetime = cfg.Database.MaxConnLifetime

	ctx := context.Background()
	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		slog.Error("failed to ping database", "error", err)
		os.Exit(1)
	}

	st := store.New(pool)
	if err := st.Migrate(ctx); err != nil {
		slog.Error("failed to migrate schema", "error", err)
		os.Exit(1)
	}

	service := importer.NewService(
		st,
		func(ctx context.Context) (ledger.Reference, error) {
			return st.LoadReference(ctx, importer.NormalizeKey)
		},
		parserConfig(cfg),
		cfg.Import.SkipExisting,
	)

	server := web.NewServer(service, cfg)

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

// parserConfig turns the jurisdiction settings into the parser's tax
// policies.
func parserConfig(cfg *config.Config) importer.ParserConfig {
	return importer.ParserConfig{
		TaxPolicies: map[ledger.Country]ledger.TaxPolicy{
			ledger.CountryPT: {
				PrimaryRate:       decimal.NewFromFloat(cfg.Import.PTPrimaryRate),
				SecondaryRate:     decimal.NewFromFloat(cfg.Import.PTSecondaryRate),
				SecondaryAdditive: cfg.Import.PTSecondaryAdditive,
			},
			ledger.CountryBR: {
				PrimaryRate:       decimal.NewFromFloat(cfg.Import.BRPrimaryRate),
				SecondaryRate:     decimal.NewFromFloat(cfg.Import.BRSecondaryRate),
				SecondaryAdditive: cfg.Import.BRSecondaryAdditive,
			},
		},
	}
}
