package entity

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/acasal/costs-collector/internal/common"
)

func testContent() []byte {
	return []byte("%PDF-1.4 fake invoice document body")
}

func validInvoice(t *testing.T) *Invoice {
	t.Helper()
	inv, err := InvoiceFromContent(
		testContent(),
		"factura_enero.pdf",
		"application/pdf",
		time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
		"Electricity",
		"Monthly Bill",
		decimal.RequireFromString("50.00"),
		decimal.RequireFromString("10.50"),
		0.5,
	)
	require.NoError(t, err)
	return inv
}

func TestInvoiceFromContent_ComputesHashesAndSize(t *testing.T) {
	inv := validInvoice(t)
	assert.Equal(t, len(testContent()), inv.Size)
	assert.Len(t, inv.MD5Hex, 32)
	assert.Len(t, inv.SHA256Hex, 64)
}

func TestInvoice_DerivedAmountsAreExact(t *testing.T) {
	inv := validInvoice(t)
	assert.True(t, inv.Total().Equal(decimal.RequireFromString("60.50")), "total = cost + tax")
	assert.True(t, inv.DeductibleAmount().Equal(decimal.RequireFromString("30.25")), "deductible = total * rate")
}

func TestNewInvoice_Validation(t *testing.T) {
	base := *validInvoice(t)

	tests := []struct {
		name   string
		mutate func(*Invoice)
	}{
		{"negative cost", func(i *Invoice) { i.Cost = decimal.RequireFromString("-0.01") }},
		{"negative tax", func(i *Invoice) { i.Tax = decimal.RequireFromString("-1.00") }},
		{"deductible rate above one", func(i *Invoice) { i.DeductibleRate = 1.01 }},
		{"deductible rate below zero", func(i *Invoice) { i.DeductibleRate = -0.01 }},
		{"empty concept", func(i *Invoice) { i.Concept = "  " }},
		{"empty type", func(i *Invoice) { i.Type = "" }},
		{"empty file name", func(i *Invoice) { i.FileName = "" }},
		{"empty content", func(i *Invoice) { i.Content = nil }},
		{"size mismatch", func(i *Invoice) { i.Size = i.Size + 1 }},
		{"md5 mismatch", func(i *Invoice) { i.MD5Hex = "deadbeef" }},
		{"sha256 mismatch", func(i *Invoice) { i.SHA256Hex = "deadbeef" }},
		{"empty content type", func(i *Invoice) { i.ContentType = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inv := base
			tt.mutate(&inv)
			_, err := NewInvoice(inv)
			require.Error(t, err)
			assert.ErrorIs(t, err, common.ErrValidation)
		})
	}
}

func TestNewInvoice_DeductibleRateBoundaries(t *testing.T) {
	for _, rate := range []float64{0.0, 1.0} {
		inv := *validInvoice(t)
		inv.DeductibleRate = rate
		_, err := NewInvoice(inv)
		assert.NoError(t, err, "rate %v must be valid", rate)
	}
}

func TestInvoice_SetAmounts(t *testing.T) {
	inv := validInvoice(t)
	date := time.Date(2024, 3, 12, 0, 0, 0, 0, time.UTC)

	err := inv.SetAmounts(date, decimal.RequireFromString("60.52"), decimal.RequireFromString("10.50"))
	require.NoError(t, err)
	assert.Equal(t, date, inv.InvoiceDate)
	assert.True(t, inv.Cost.Equal(decimal.RequireFromString("60.52")))

	assert.ErrorIs(t, inv.SetAmounts(date, decimal.RequireFromString("-1"), decimal.Zero), common.ErrValidation)
	assert.ErrorIs(t, inv.SetAmounts(time.Time{}, decimal.Zero, decimal.Zero), common.ErrValidation)
}

func TestArchiveResult_ErrorMessageInvariant(t *testing.T) {
	ok, err := NewArchiveSuccess("2024/Electricity/a.pdf", "primary", "file:///archive/a.pdf")
	require.NoError(t, err)
	assert.True(t, ok.Success)
	assert.Empty(t, ok.ErrorMessage)

	failed, err := NewArchiveFailure("secondary", "quota exceeded")
	require.NoError(t, err)
	assert.False(t, failed.Success)
	assert.Equal(t, "quota exceeded", failed.ErrorMessage)

	_, err = NewArchiveFailure("secondary", "")
	assert.ErrorIs(t, err, common.ErrValidation, "failed result requires an error message")

	bad := ArchiveResult{ArchiveID: "x", ArchiveKind: "primary", FileURL: "file:///x", Success: true, ErrorMessage: "boom"}
	assert.ErrorIs(t, bad.validate(), common.ErrValidation, "success and error message are mutually exclusive")
}

func TestNewRegisteredInvoice_StatusSet(t *testing.T) {
	base := RegisteredInvoice{
		InvoiceDate:    time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
		Concept:        "Electricity",
		Type:           "Monthly Bill",
		Cost:           decimal.RequireFromString("50.00"),
		Tax:            decimal.RequireFromString("10.50"),
		DeductibleRate: 1.0,
		FileHash:       "abc123",
		ProcessedDate:  time.Now(),
	}

	for _, status := range []string{"success", "failed", "skipped"} {
		r := base
		r.Status = status
		_, err := NewRegisteredInvoice(r)
		assert.NoError(t, err, "status %q", status)
	}

	r := base
	r.Status = "pending"
	_, err := NewRegisteredInvoice(r)
	assert.ErrorIs(t, err, common.ErrValidation)
}
