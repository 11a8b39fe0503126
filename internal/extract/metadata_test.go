package extract

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/acasal/costs-collector/internal/common"
)

func TestExtractDate(t *testing.T) {
	tests := []struct {
		name string
		text string
		want time.Time
	}{
		{
			name: "day first with slashes",
			text: "Fecha de factura: 15/01/2024",
			want: time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
		},
		{
			name: "day first with dashes",
			text: "Emitida el 03-11-2023",
			want: time.Date(2023, 11, 3, 0, 0, 0, 0, time.UTC),
		},
		{
			name: "year first",
			text: "Invoice date 2024-02-29 ref 991",
			want: time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC),
		},
		{
			name: "spanish long form",
			text: "Valencia, a 12 de marzo de 2024",
			want: time.Date(2024, 3, 12, 0, 0, 0, 0, time.UTC),
		},
		{
			name: "spanish long form uppercase month",
			text: "1 de Septiembre de 2023",
			want: time.Date(2023, 9, 1, 0, 0, 0, 0, time.UTC),
		},
		{
			name: "numeric wins over long form",
			text: "12 de marzo de 2024 ... 15/01/2024",
			want: time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
		},
		{
			name: "invalid day skipped for later valid match",
			text: "ref 45/13/2024 emitted 15/01/2024",
			want: time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractDate(tt.text)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExtractDate_FailsLoudly(t *testing.T) {
	// No recognizable date must fail; the current date is never substituted.
	for _, text := range []string{
		"",
		"no dates here, just 60,52 €",
		"13 de thermidor de 2024",
		"99/99/9999",
	} {
		_, err := ExtractDate(text)
		require.Error(t, err, "text %q", text)
		assert.ErrorIs(t, err, common.ErrExtraction)

		var xerr *common.ExtractionError
		require.ErrorAs(t, err, &xerr)
		assert.Equal(t, "date", xerr.Field)
	}
}

func TestExtractAmounts_LabeledTaxRule(t *testing.T) {
	// Known real invoice layout: the labeled token wins as the tax, and the
	// largest candidate is taken as the cost directly.
	text := "Importe total: 60,52 €\nde los cuales 10,50 € IVA\n"

	cost, tax, err := ExtractAmounts(text)
	require.NoError(t, err)
	assert.True(t, cost.Equal(decimal.RequireFromString("60.52")), "cost = %s", cost)
	assert.True(t, tax.Equal(decimal.RequireFromString("10.50")), "tax = %s", tax)
}

func TestExtractAmounts_LabelBeforeAmount(t *testing.T) {
	text := "Total 121,00 EUR\nIVA: 21,00 EUR\n"

	cost, tax, err := ExtractAmounts(text)
	require.NoError(t, err)
	assert.True(t, cost.Equal(decimal.RequireFromString("121.00")))
	assert.True(t, tax.Equal(decimal.RequireFromString("21.00")))
}

func TestExtractAmounts_UnlabeledBaseAndDifference(t *testing.T) {
	// Without a labeled tax the second candidate is the base and the tax is
	// the difference.
	text := "Base imponible 50,02\nTotal factura 60,52 €"

	cost, tax, err := ExtractAmounts(text)
	require.NoError(t, err)
	assert.True(t, cost.Equal(decimal.RequireFromString("50.02")), "cost = %s", cost)
	assert.True(t, tax.Equal(decimal.RequireFromString("10.50")), "tax = %s", tax)
}

func TestExtractAmounts_SingleAmountFails(t *testing.T) {
	_, _, err := ExtractAmounts("Total: 45,00 €")
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrExtraction)

	var xerr *common.ExtractionError
	require.ErrorAs(t, err, &xerr)
	assert.Equal(t, "amounts", xerr.Field)
}

func TestExtractAmounts_RepeatedSingleValueUsesStatutoryRate(t *testing.T) {
	// Two occurrences of one distinct amount: the total is treated as
	// VAT-inclusive at 21%.
	text := "Total 121,00 €\nCobrado 121,00 €"

	cost, tax, err := ExtractAmounts(text)
	require.NoError(t, err)
	assert.True(t, cost.Equal(decimal.RequireFromString("100.00")), "cost = %s", cost)
	assert.True(t, tax.Equal(decimal.RequireFromString("21.00")), "tax = %s", tax)
}

func TestExtractAmounts_PointSeparatorAndCurrencyWords(t *testing.T) {
	text := "Subtotal 39.90 EUR, total 48.28 EUR"

	cost, tax, err := ExtractAmounts(text)
	require.NoError(t, err)
	assert.True(t, cost.Equal(decimal.RequireFromString("39.90")))
	assert.True(t, tax.Equal(decimal.RequireFromString("8.38")))
}

func TestExtractFromText_Deterministic(t *testing.T) {
	text := "Factura de 15/01/2024\nBase 50,02 €\nIVA 10,50 €\nTotal 60,52 €"

	first, err := ExtractFromText(text)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := ExtractFromText(text)
		require.NoError(t, err)
		assert.Equal(t, first.InvoiceDate, again.InvoiceDate)
		assert.True(t, first.Cost.Equal(again.Cost))
		assert.True(t, first.Tax.Equal(again.Tax))
	}
}
