package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/acasal/costs-collector/internal/common"
	"github.com/acasal/costs-collector/internal/pipeline"
	"github.com/acasal/costs-collector/internal/registry"
)

func main() {
	var sinceStr = flag.String("since", "", "window start YYYY-MM-DD (default: 90 days ago)")
	flag.Parse()

	var since *time.Time
	if *sinceStr != "" {
		parsed, err := time.Parse("2006-01-02", *sinceStr)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: invalid --since date format, use YYYY-MM-DD: %v\n", err)
			os.Exit(1)
		}
		since = &parsed
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	slog.SetDefault(logger)

	ctx := context.Background()
	cfg := common.LoadConfig()
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	reg, cleanup, err := openRegistry(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to open registry", "error", err)
		os.Exit(1)
	}
	defer cleanup()

	gate := pipeline.NewIdempotencyGate(reg, logger).
		WithLookback(time.Duration(cfg.Pipeline.LookbackDays) * 24 * time.Hour)
	stats, err := gate.Statistics(ctx, since)
	if err != nil {
		logger.Error("failed to compute statistics", "error", err)
		os.Exit(1)
	}

	out, err := json.MarshalIndent(stats, "", "  ")
	if err != nil {
		logger.Error("failed to encode statistics", "error", err)
		os.Exit(1)
	}
	fmt.Println(string(out))
}

func openRegistry(ctx context.Context, cfg *common.Config, logger *slog.Logger) (registry.Registry, func(), error) {
	switch cfg.Registry.Backend {
	case "xlsx":
		reg, err := registry.NewXLSXRegistry(cfg.Registry.XLSXPath, logger)
		return reg, func() {}, err
	case "postgres":
		reg, err := registry.NewPostgresRegistry(ctx, registry.PoolConfig{
			DSN:              cfg.Registry.DSN,
			MaxConns:         cfg.Registry.MaxConns,
			MinConns:         cfg.Registry.MinConns,
			MaxConnLifetime:  cfg.Registry.MaxConnLifetime,
			MaxConnIdleTime:  cfg.Registry.MaxConnIdleTime,
			DialTimeout:      cfg.Registry.DialTimeout,
			StatementTimeout: cfg.Registry.StatementTimeout,
		}, logger)
		if err != nil {
			return nil, nil, err
		}
		return reg, reg.Close, nil
	case "sqlite":
		reg, err := registry.NewSQLiteRegistry(ctx, cfg.Registry.SQLitePath, logger)
		if err != nil {
			return nil, nil, err
		}
		return reg, func() { _ = reg.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown registry backend %q", cfg.Registry.Backend)
	}
}
