package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/acasal/costs-collector/constants"
	"github.com/acasal/costs-collector/internal/common"
	"github.com/acasal/costs-collector/internal/entity"
)

// PoolConfig mirrors the pgx pool tuning knobs exposed through the
// environment.
type PoolConfig struct {
	DSN              string
	MaxConns         int32
	MinConns         int32
	MaxConnLifetime  time.Duration
	MaxConnIdleTime  time.Duration
	DialTimeout      time.Duration
	StatementTimeout time.Duration
}

const postgresSchema = `
CREATE TABLE IF NOT EXISTS registered_invoice (
	id              BIGSERIAL PRIMARY KEY,
	invoice_date    DATE NOT NULL,
	concept         TEXT NOT NULL,
	type            TEXT NOT NULL,
	cost            NUMERIC(12,2) NOT NULL,
	tax             NUMERIC(12,2) NOT NULL,
	deductible_rate DOUBLE PRECISION NOT NULL,
	file_hash       TEXT NOT NULL UNIQUE,
	archive_ids     TEXT NOT NULL DEFAULT '',
	processed_date  TIMESTAMPTZ NOT NULL,
	status          TEXT NOT NULL
)`

// PostgresRegistry keeps the ledger in a Postgres table behind a pgx pool.
type PostgresRegistry struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

func NewPostgresRegistry(ctx context.Context, cfg PoolConfig, logger *slog.Logger) (*PostgresRegistry, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("registry.postgres.connecting")
	pc, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("%w: parse dsn: %v", common.ErrRegistry, err)
	}
	pc.MaxConns = cfg.MaxConns
	pc.MinConns = cfg.MinConns
	pc.MaxConnLifetime = cfg.MaxConnLifetime
	pc.MaxConnIdleTime = cfg.MaxConnIdleTime
	pc.ConnConfig.RuntimeParams["application_name"] = "costs-collector"
	if cfg.StatementTimeout > 0 {
		pc.ConnConfig.RuntimeParams["statement_timeout"] = cfg.StatementTimeout.String()
	}

	dialCtx := ctx
	if cfg.DialTimeout > 0 {
		var cancel context.CancelFunc
		dialCtx, cancel = context.WithTimeout(ctx, cfg.DialTimeout)
		defer cancel()
	}
	pool, err := pgxpool.NewWithConfig(dialCtx, pc)
	if err != nil {
		return nil, fmt.Errorf("%w: connect: %v", common.ErrRegistry, err)
	}
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%w: ensure schema: %v", common.ErrRegistry, err)
	}
	logger.Info("registry.postgres.ok")
	return &PostgresRegistry{pool: pool, logger: logger}, nil
}

func (r *PostgresRegistry) Close() { r.pool.Close() }

func (r *PostgresRegistry) RegisteredSince(ctx context.Context, since time.Time) ([]entity.RegisteredInvoice, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT invoice_date, concept, type, cost::text, tax::text, deductible_rate,
		       file_hash, archive_ids, processed_date, status
		FROM registered_invoice
		WHERE processed_date >= $1
		ORDER BY processed_date`, since)
	if err != nil {
		return nil, fmt.Errorf("%w: query ledger: %v", common.ErrRegistry, err)
	}
	defer rows.Close()

	var out []entity.RegisteredInvoice
	for rows.Next() {
		var (
			costStr, taxStr, archiveIDs string
			reg                         entity.RegisteredInvoice
		)
		if err := rows.Scan(&reg.InvoiceDate, &reg.Concept, &reg.Type, &costStr, &taxStr,
			&reg.DeductibleRate, &reg.FileHash, &archiveIDs, &reg.ProcessedDate, &reg.Status); err != nil {
			return nil, fmt.Errorf("%w: scan ledger row: %v", common.ErrRegistry, err)
		}
		if reg.Cost, err = decimal.NewFromString(costStr); err != nil {
			return nil, fmt.Errorf("%w: cost: %v", common.ErrRegistry, err)
		}
		if reg.Tax, err = decimal.NewFromString(taxStr); err != nil {
			return nil, fmt.Errorf("%w: tax: %v", common.ErrRegistry, err)
		}
		if archiveIDs != "" {
			reg.ArchiveIDs = strings.Split(archiveIDs, ";")
		}
		validated, err := entity.NewRegisteredInvoice(reg)
		if err != nil {
			return nil, err
		}
		out = append(out, *validated)
	}
	return out, rows.Err()
}

func (r *PostgresRegistry) Register(ctx context.Context, inv *entity.Invoice, results []entity.ArchiveResult) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO registered_invoice
			(invoice_date, concept, type, cost, tax, deductible_rate,
			 file_hash, archive_ids, processed_date, status)
		VALUES ($1, $2, $3, $4::numeric, $5::numeric, $6, $7, $8, $9, $10)`,
		inv.InvoiceDate,
		inv.Concept,
		inv.Type,
		inv.Cost.StringFixed(2),
		inv.Tax.StringFixed(2),
		inv.DeductibleRate,
		inv.SHA256Hex,
		strings.Join(successfulArchiveIDs(results), ";"),
		time.Now().UTC(),
		string(constants.StatusSuccess),
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return fmt.Errorf("%w: file hash %s", common.ErrDuplicate, inv.SHA256Hex)
		}
		return fmt.Errorf("%w: insert ledger row: %v", common.ErrRegistry, err)
	}
	r.logger.Debug("registry.postgres.registered", "file_name", inv.FileName)
	return nil
}
