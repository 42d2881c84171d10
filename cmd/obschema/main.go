// Command obschema creates the QuestDB orderbook table over the PostgreSQL
// wire endpoint and reports the current row count. Run it once before
// starting obstream against a fresh QuestDB instance.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"time"

	"github.com/gogog01-29-2021/orderbook-pipeline/internal/config"
	"github.com/gogog01-29-2021/orderbook-pipeline/internal/store/questdb"
)

func main() {
	configPath := flag.String("config", "config.toml", "path to configuration file")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load config",
			slog.String("path", *configPath),
			slog.String("error", err.Error()),
		)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	client, err := questdb.NewSchemaClient(ctx, cfg.QuestDB.PgDSN)
	if err != nil {
		logger.Error("failed to connect", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer client.Close()

	if err := client.CreateSchema(ctx, cfg.QuestDB.Table); err != nil {
		logger.Error("failed to create schema",
			slog.String("table", cfg.QuestDB.Table),
			slog.String("error", err.Error()),
		)
		os.Exit(1)
	}

	count, err := client.RowCount(ctx, cfg.QuestDB.Table)
	if err != nil {
		logger.Error("failed to count rows",
			slog.String("table", cfg.QuestDB.Table),
			slog.String("error", err.Error()),
		)
		os.Exit(1)
	}

	logger.Info("schema ready",
		slog.String("table", cfg.QuestDB.Table),
		slog.Int64("rows", count),
	)
}
