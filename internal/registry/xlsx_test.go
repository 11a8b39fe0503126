package registry

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/acasal/costs-collector/internal/common"
	"github.com/acasal/costs-collector/internal/entity"
)

func ledgerInvoice(t *testing.T, date time.Time, concept, cost, tax string) *entity.Invoice {
	t.Helper()
	inv, err := entity.InvoiceFromContent(
		[]byte("document "+concept+" "+cost),
		concept+".pdf",
		"application/pdf",
		date,
		concept,
		"Monthly Bill",
		decimal.RequireFromString(cost),
		decimal.RequireFromString(tax),
		0.5,
	)
	require.NoError(t, err)
	return inv
}

func archiveResults(t *testing.T, ids ...string) []entity.ArchiveResult {
	t.Helper()
	var out []entity.ArchiveResult
	for _, id := range ids {
		res, err := entity.NewArchiveSuccess(id, "primary", "file:///archive/"+id)
		require.NoError(t, err)
		out = append(out, res)
	}
	return out
}

func TestXLSXRegistry_EmptyPath(t *testing.T) {
	_, err := NewXLSXRegistry("  ", nil)
	assert.ErrorIs(t, err, common.ErrValidation)
}

func TestXLSXRegistry_CreatesWorkbookOnFirstQuery(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.xlsx")
	reg, err := NewXLSXRegistry(path, nil)
	require.NoError(t, err)

	got, err := reg.RegisteredSince(context.Background(), time.Time{})
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.FileExists(t, path)

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows(ledgerSheet)
	require.NoError(t, err)
	require.Len(t, rows, 1, "header row only")
	assert.Equal(t, ledgerHeaders, rows[0])
}

func TestXLSXRegistry_Roundtrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.xlsx")
	reg, err := NewXLSXRegistry(path, nil)
	require.NoError(t, err)

	date := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	inv := ledgerInvoice(t, date, "Electricity", "50.00", "10.50")
	require.NoError(t, reg.Register(context.Background(), inv, archiveResults(t, "2024/Electricity/a.pdf", "s3/bucket/a.pdf")))
	require.NoError(t, reg.Register(context.Background(), ledgerInvoice(t, date.AddDate(0, 1, 0), "Water", "30.00", "6.30"), archiveResults(t, "2024/Water/b.pdf")))

	got, err := reg.RegisteredSince(context.Background(), time.Time{})
	require.NoError(t, err)
	require.Len(t, got, 2)

	first := got[0]
	assert.True(t, first.InvoiceDate.Equal(date), "invoice date roundtrips")
	assert.Equal(t, "Electricity", first.Concept)
	assert.Equal(t, "Monthly Bill", first.Type)
	assert.True(t, first.Cost.Equal(decimal.RequireFromString("50.00")))
	assert.True(t, first.Tax.Equal(decimal.RequireFromString("10.50")))
	assert.InDelta(t, 0.5, first.DeductibleRate, 1e-9)
	assert.Equal(t, inv.SHA256Hex, first.FileHash)
	assert.Equal(t, []string{"2024/Electricity/a.pdf", "s3/bucket/a.pdf"}, first.ArchiveIDs)
	assert.Equal(t, "success", first.Status)
	assert.WithinDuration(t, time.Now().UTC(), first.ProcessedDate, time.Minute)
}

func TestXLSXRegistry_DuplicateHash(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.xlsx")
	reg, err := NewXLSXRegistry(path, nil)
	require.NoError(t, err)

	date := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	inv := ledgerInvoice(t, date, "Electricity", "50.00", "10.50")
	require.NoError(t, reg.Register(context.Background(), inv, archiveResults(t, "a")))

	err = reg.Register(context.Background(), inv, archiveResults(t, "b"))
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrDuplicate)
	assert.Contains(t, err.Error(), inv.SHA256Hex)

	got, err := reg.RegisteredSince(context.Background(), time.Time{})
	require.NoError(t, err)
	assert.Len(t, got, 1, "duplicate registration leaves a single row")
}

func TestXLSXRegistry_SinceFiltersByProcessedDate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.xlsx")
	reg, err := NewXLSXRegistry(path, nil)
	require.NoError(t, err)

	date := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	require.NoError(t, reg.Register(context.Background(), ledgerInvoice(t, date, "Electricity", "50.00", "10.50"), archiveResults(t, "a")))

	got, err := reg.RegisteredSince(context.Background(), time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Empty(t, got, "entries processed before the window are excluded")
}

func TestXLSXRegistry_SkipsMalformedRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.xlsx")
	reg, err := NewXLSXRegistry(path, nil)
	require.NoError(t, err)

	date := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	require.NoError(t, reg.Register(context.Background(), ledgerInvoice(t, date, "Electricity", "50.00", "10.50"), archiveResults(t, "a")))

	// Corrupt the cost cell of an extra hand-written row.
	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	bad := []any{"2024-02-01", "Water", "Bill", "not-a-number", "1.00", 0.5, "h", "", time.Now().UTC().Format(time.RFC3339), "success"}
	for col, v := range bad {
		cell, _ := excelize.CoordinatesToCellName(col+1, 3)
		require.NoError(t, f.SetCellValue(ledgerSheet, cell, v))
	}
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())

	got, err := reg.RegisteredSince(context.Background(), time.Time{})
	require.NoError(t, err)
	require.Len(t, got, 1, "malformed row is skipped, not fatal")
	assert.Equal(t, "Electricity", got[0].Concept)
}

func TestXLSXRegistry_RejectsForeignWorkbook(t *testing.T) {
	path := filepath.Join(t.TempDir(), "other.xlsx")
	f := excelize.NewFile()
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())

	reg, err := NewXLSXRegistry(path, nil)
	require.NoError(t, err)
	_, err = reg.RegisteredSince(context.Background(), time.Time{})
	assert.ErrorIs(t, err, common.ErrRegistry)
}
