package registry

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"github.com/acasal/costs-collector/constants"
	"github.com/acasal/costs-collector/internal/common"
	"github.com/acasal/costs-collector/internal/entity"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS registered_invoice (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	invoice_date    TEXT NOT NULL,
	concept         TEXT NOT NULL,
	type            TEXT NOT NULL,
	cost            TEXT NOT NULL,
	tax             TEXT NOT NULL,
	deductible_rate REAL NOT NULL,
	file_hash       TEXT NOT NULL,
	archive_ids     TEXT NOT NULL DEFAULT '',
	processed_date  TEXT NOT NULL,
	status          TEXT NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_registered_invoice_hash ON registered_invoice (file_hash);
`

// SQLiteRegistry keeps the ledger in a local SQLite database; pass ":memory:"
// for throwaway runs.
type SQLiteRegistry struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewSQLiteRegistry(ctx context.Context, path string, logger *slog.Logger) (*SQLiteRegistry, error) {
	if logger == nil {
		logger = slog.Default()
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("%w: open sqlite: %v", common.ErrRegistry, err)
	}
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: ensure schema: %v", common.ErrRegistry, err)
	}
	logger.Info("registry.sqlite.ok", "path", path)
	return &SQLiteRegistry{db: db, logger: logger}, nil
}

func (r *SQLiteRegistry) Close() error { return r.db.Close() }

func (r *SQLiteRegistry) RegisteredSince(ctx context.Context, since time.Time) ([]entity.RegisteredInvoice, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT invoice_date, concept, type, cost, tax, deductible_rate,
		       file_hash, archive_ids, processed_date, status
		FROM registered_invoice
		WHERE processed_date >= ?
		ORDER BY processed_date`,
		since.UTC().Format(time.RFC3339))
	if err != nil {
		return nil, fmt.Errorf("%w: query ledger: %v", common.ErrRegistry, err)
	}
	defer func() { _ = rows.Close() }()

	var out []entity.RegisteredInvoice
	for rows.Next() {
		var (
			invoiceDate, costStr, taxStr, archiveIDs, processedDate string
			reg                                                     entity.RegisteredInvoice
		)
		if err := rows.Scan(&invoiceDate, &reg.Concept, &reg.Type, &costStr, &taxStr,
			&reg.DeductibleRate, &reg.FileHash, &archiveIDs, &processedDate, &reg.Status); err != nil {
			return nil, fmt.Errorf("%w: scan ledger row: %v", common.ErrRegistry, err)
		}
		if reg.InvoiceDate, err = time.Parse("2006-01-02", invoiceDate); err != nil {
			return nil, fmt.Errorf("%w: invoice date: %v", common.ErrRegistry, err)
		}
		if reg.Cost, err = decimal.NewFromString(costStr); err != nil {
			return nil, fmt.Errorf("%w: cost: %v", common.ErrRegistry, err)
		}
		if reg.Tax, err = decimal.NewFromString(taxStr); err != nil {
			return nil, fmt.Errorf("%w: tax: %v", common.ErrRegistry, err)
		}
		if reg.ProcessedDate, err = time.Parse(time.RFC3339, processedDate); err != nil {
			return nil, fmt.Errorf("%w: processed date: %v", common.ErrRegistry, err)
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

func (r *SQLiteRegistry) Register(ctx context.Context, inv *entity.Invoice, results []entity.ArchiveResult) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO registered_invoice
			(invoice_date, concept, type, cost, tax, deductible_rate,
			 file_hash, archive_ids, processed_date, status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		inv.InvoiceDate.Format("2006-01-02"),
		inv.Concept,
		inv.Type,
		inv.Cost.StringFixed(2),
		inv.Tax.StringFixed(2),
		inv.DeductibleRate,
		inv.SHA256Hex,
		strings.Join(successfulArchiveIDs(results), ";"),
		time.Now().UTC().Format(time.RFC3339),
		string(constants.StatusSuccess),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return fmt.Errorf("%w: file hash %s", common.ErrDuplicate, inv.SHA256Hex)
		}
		return fmt.Errorf("%w: insert ledger row: %v", common.ErrRegistry, err)
	}
	r.logger.Debug("registry.sqlite.registered", "file_name", inv.FileName)
	return nil
}
