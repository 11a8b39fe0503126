package registry

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/acasal/costs-collector/constants"
	"github.com/acasal/costs-collector/internal/common"
	"github.com/acasal/costs-collector/internal/entity"
)

const ledgerSheet = "Ledger"

var ledgerHeaders = []string{
	"Invoice Date",
	"Concept",
	"Type",
	"Cost",
	"Tax",
	"Deductible Rate",
	"File Hash",
	"Archive IDs",
	"Processed Date",
	"Status",
}

// XLSXRegistry keeps the ledger in a spreadsheet workbook, one row per
// registered invoice. The workbook is reopened per operation; the file on
// disk is the source of truth.
type XLSXRegistry struct {
	path   string
	logger *slog.Logger
}

func NewXLSXRegistry(path string, logger *slog.Logger) (*XLSXRegistry, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if strings.TrimSpace(path) == "" {
		return nil, common.ValidationErrorf("xlsx ledger path is empty")
	}
	return &XLSXRegistry{path: path, logger: logger}, nil
}

func (r *XLSXRegistry) RegisteredSince(ctx context.Context, since time.Time) ([]entity.RegisteredInvoice, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, created, err := r.open()
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	if created {
		return nil, nil
	}

	rows, err := f.GetRows(ledgerSheet)
	if err != nil {
		return nil, fmt.Errorf("%w: read ledger sheet: %v", common.ErrRegistry, err)
	}

	var out []entity.RegisteredInvoice
	for i, row := range rows {
		if i == 0 {
			continue // header
		}
		reg, err := parseLedgerRow(row)
		if err != nil {
			r.logger.Warn("registry.xlsx.bad_row", "row", i+1, "error", err)
			continue
		}
		if reg.ProcessedDate.Before(since) {
			continue
		}
		out = append(out, *reg)
	}
	return out, nil
}

func (r *XLSXRegistry) Register(ctx context.Context, inv *entity.Invoice, results []entity.ArchiveResult) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	f, _, err := r.open()
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	rows, err := f.GetRows(ledgerSheet)
	if err != nil {
		return fmt.Errorf("%w: read ledger sheet: %v", common.ErrRegistry, err)
	}

	// the File Hash column is the workbook's stand-in for a unique index
	for i, row := range rows {
		if i == 0 || len(row) <= 6 {
			continue
		}
		if row[6] == inv.SHA256Hex {
			return fmt.Errorf("%w: file hash %s", common.ErrDuplicate, inv.SHA256Hex)
		}
	}

	rowNum := len(rows) + 1
	values := []any{
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
	}
	for col, v := range values {
		cell, _ := excelize.CoordinatesToCellName(col+1, rowNum)
		if err := f.SetCellValue(ledgerSheet, cell, v); err != nil {
			return fmt.Errorf("%w: write cell %s: %v", common.ErrRegistry, cell, err)
		}
	}

	if err := f.SaveAs(r.path); err != nil {
		return fmt.Errorf("%w: save ledger: %v", common.ErrRegistry, err)
	}

	r.logger.Debug("registry.xlsx.ok", "row", rowNum, "file_name", inv.FileName)
	return nil
}

// open loads the workbook, creating it with a header row when missing.
func (r *XLSXRegistry) open() (*excelize.File, bool, error) {
	f, err := excelize.OpenFile(r.path)
	if err == nil {
		if idx, _ := f.GetSheetIndex(ledgerSheet); idx == -1 {
			_ = f.Close()
			return nil, false, fmt.Errorf("%w: workbook %s has no %s sheet", common.ErrRegistry, r.path, ledgerSheet)
		}
		return f, false, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, false, fmt.Errorf("%w: open ledger: %v", common.ErrRegistry, err)
	}

	f = excelize.NewFile()
	if _, err := f.NewSheet(ledgerSheet); err != nil {
		_ = f.Close()
		return nil, false, fmt.Errorf("%w: create ledger sheet: %v", common.ErrRegistry, err)
	}
	if idx, _ := f.GetSheetIndex(ledgerSheet); idx != -1 {
		f.SetActiveSheet(idx)
	}
	_ = f.DeleteSheet("Sheet1")
	for col, h := range ledgerHeaders {
		cell, _ := excelize.CoordinatesToCellName(col+1, 1)
		_ = f.SetCellValue(ledgerSheet, cell, h)
	}
	_ = f.SetColWidth(ledgerSheet, "A", "A", 14)
	_ = f.SetColWidth(ledgerSheet, "B", "C", 22)
	_ = f.SetColWidth(ledgerSheet, "D", "F", 14)
	_ = f.SetColWidth(ledgerSheet, "G", "H", 48)
	_ = f.SetColWidth(ledgerSheet, "I", "J", 22)
	if err := f.SaveAs(r.path); err != nil {
		_ = f.Close()
		return nil, false, fmt.Errorf("%w: create ledger: %v", common.ErrRegistry, err)
	}
	r.logger.Info("registry.xlsx.created", "path", r.path)
	return f, true, nil
}

func parseLedgerRow(row []string) (*entity.RegisteredInvoice, error) {
	if len(row) < len(ledgerHeaders) {
		return nil, fmt.Errorf("short row: %d cells", len(row))
	}
	invoiceDate, err := time.Parse("2006-01-02", row[0])
	if err != nil {
		return nil, fmt.Errorf("invoice date: %w", err)
	}
	cost, err := decimal.NewFromString(row[3])
	if err != nil {
		return nil, fmt.Errorf("cost: %w", err)
	}
	tax, err := decimal.NewFromString(row[4])
	if err != nil {
		return nil, fmt.Errorf("tax: %w", err)
	}
	rate, err := strconv.ParseFloat(row[5], 64)
	if err != nil {
		return nil, fmt.Errorf("deductible rate: %w", err)
	}
	processed, err := time.Parse(time.RFC3339, row[8])
	if err != nil {
		return nil, fmt.Errorf("processed date: %w", err)
	}
	var archiveIDs []string
	if row[7] != "" {
		archiveIDs = strings.Split(row[7], ";")
	}
	return entity.NewRegisteredInvoice(entity.RegisteredInvoice{
		InvoiceDate:    invoiceDate,
		Concept:        row[1],
		Type:           row[2],
		Cost:           cost,
		Tax:            tax,
		DeductibleRate: rate,
		FileHash:       row[6],
		ArchiveIDs:     archiveIDs,
		ProcessedDate:  processed,
		Status:         row[9],
	})
}
