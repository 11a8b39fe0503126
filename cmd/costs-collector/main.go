package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/acasal/costs-collector/internal/archive"
	"github.com/acasal/costs-collector/internal/common"
	"github.com/acasal/costs-collector/internal/extract"
	"github.com/acasal/costs-collector/internal/pipeline"
	"github.com/acasal/costs-collector/internal/registry"
	"github.com/acasal/costs-collector/internal/source"
)

// printError prints an error message to stderr, falling back to stdout if stderr fails
func printError(format string, args ...interface{}) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		fmt.Printf(format, args...)
	}
}

func main() {
	var (
		sinceStr = flag.String("since", "", "lookback date YYYY-MM-DD (default: 90 days ago)")
		manifest = flag.String("sources", "", "path to sources.json (overrides SOURCES_MANIFEST)")
		inmem    = flag.Bool("inmem", false, "use an in-memory SQLite ledger")
		verbose  = flag.Bool("v", false, "enable debug logging")
	)
	flag.Parse()

	var since *time.Time
	if *sinceStr != "" {
		parsed, err := time.Parse("2006-01-02", *sinceStr)
		if err != nil {
			printError("Error: invalid --since date format, use YYYY-MM-DD: %v\n", err)
			os.Exit(1)
		}
		since = &parsed
	}

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	ctx := context.Background()

	cfg := common.LoadConfig()
	if *manifest != "" {
		cfg.Sources.ManifestPath = *manifest
	}
	if *inmem {
		cfg.Registry.Backend = "sqlite"
		cfg.Registry.SQLitePath = ":memory:"
	}
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

	archiver, err := buildArchiver(cfg, logger)
	if err != nil {
		logger.Error("failed to configure archive", "error", err)
		os.Exit(1)
	}

	sources, err := source.LoadManifest(cfg.Sources.ManifestPath, logger)
	if err != nil {
		logger.Error("failed to load sources manifest", "error", err)
		os.Exit(1)
	}

	textExtractor := extract.NewPDFTextExtractor(extract.Config{
		Pdftotext:   cfg.Pipeline.Pdftotext,
		ArtifactDir: cfg.Pipeline.ArtifactDir,
	}, logger)
	metadata := extract.NewMetadataExtractor(textExtractor, logger)
	gate := pipeline.NewIdempotencyGate(reg, logger).
		WithLookback(time.Duration(cfg.Pipeline.LookbackDays) * 24 * time.Hour)
	orch := pipeline.NewOrchestrator(sources, archiver, reg, metadata, gate, logger)

	report := orch.ProcessInvoices(ctx, since)

	out, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		logger.Error("failed to encode run report", "error", err)
		os.Exit(1)
	}
	fmt.Println(string(out))

	if report.TotalFailed > 0 || len(report.Errors) > 0 {
		os.Exit(2)
	}
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

func buildArchiver(cfg *common.Config, logger *slog.Logger) (archive.Archiver, error) {
	var backends []archive.Archiver
	if cfg.Archive.RootDir != "" {
		fs, err := archive.NewFSArchive(cfg.Archive.RootDir, "primary", logger)
		if err != nil {
			return nil, err
		}
		backends = append(backends, fs)
	}
	if cfg.Archive.S3Bucket != "" {
		s3a, err := archive.NewS3Archive(archive.S3Config{
			Bucket:   cfg.Archive.S3Bucket,
			Region:   cfg.Archive.S3Region,
			Prefix:   cfg.Archive.S3Prefix,
			Endpoint: cfg.Archive.S3Endpoint,
			Kind:     "secondary",
		}, logger)
		if err != nil {
			return nil, err
		}
		backends = append(backends, s3a)
	}
	if len(backends) == 0 {
		return nil, fmt.Errorf("no archive backend configured: set ARCHIVE_DIR and/or ARCHIVE_S3_BUCKET")
	}
	return archive.NewMultiArchive(logger, backends...), nil
}
