package extract

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/acasal/costs-collector/constants"
	"github.com/acasal/costs-collector/internal/common"
	"github.com/acasal/costs-collector/internal/entity"
)

// Invoices are free-form text, not structured data, so the amount extraction
// is layered heuristics: deliberately best-effort, not exact.

var (
	// DD/MM/YYYY or DD-MM-YYYY
	dayFirstDate = regexp.MustCompile(`(\d{1,2})[/-](\d{1,2})[/-](\d{4})`)
	// YYYY/MM/DD or YYYY-MM-DD
	yearFirstDate = regexp.MustCompile(`(\d{4})[/-](\d{1,2})[/-](\d{1,2})`)
	// "12 de marzo de 2024"
	longFormDate = regexp.MustCompile(`(?i)(\d{1,2})\s+de\s+(\p{L}+)\s+de\s+(\d{4})`)

	// digits, a decimal separator that may be , or ., exactly two fraction digits
	amountToken = regexp.MustCompile(`\b\d+[.,]\d{2}\b`)

	// a number immediately adjacent to a tax-label token, either side;
	// adjacency never crosses a line break
	amountThenTaxLabel = regexp.MustCompile(`(?i)(\d+[.,]\d{2})[ \t]*(?:€|EUR)?[ \t]*(?:IVA|VAT|impuestos?)\b`)
	taxLabelThenAmount = regexp.MustCompile(`(?i)\b(?:IVA|VAT|impuestos?)\b[^0-9\n]{0,12}(\d+[.,]\d{2})\b`)
)

// vatDivisor treats an amount as VAT-inclusive at the Spanish general rate
// when no better tax evidence exists in the document.
var vatDivisor = decimal.NewFromFloat(1.21)

// Metadata is the structured triple recovered from a document.
type Metadata struct {
	InvoiceDate time.Time
	Cost        decimal.Decimal
	Tax         decimal.Decimal
}

// MetadataExtractor converts a raw invoice document into structured
// financial facts.
type MetadataExtractor struct {
	text   TextExtractor
	logger *slog.Logger
}

func NewMetadataExtractor(text TextExtractor, logger *slog.Logger) *MetadataExtractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &MetadataExtractor{text: text, logger: logger}
}

// ExtractMetadata reads the invoice's document, recovers {date, cost, tax}
// and overwrites the invoice's financial fields in place. The source-supplied
// values are placeholders; the document is authoritative.
func (s *MetadataExtractor) ExtractMetadata(ctx context.Context, inv *entity.Invoice) error {
	res, err := s.text.Extract(ctx, inv.Content)
	if err != nil {
		s.logger.Error("extract.metadata.failed", "file_name", inv.FileName, "error", err)
		return err
	}

	meta, err := ExtractFromText(res.Text)
	if err != nil {
		s.logger.Error("extract.metadata.failed", "file_name", inv.FileName, "error", err)
		return err
	}

	if err := inv.SetAmounts(meta.InvoiceDate, meta.Cost, meta.Tax); err != nil {
		return err
	}

	s.logger.Info("extract.metadata.ok",
		"file_name", inv.FileName,
		"invoice_date", meta.InvoiceDate.Format("2006-01-02"),
		"cost", meta.Cost.String(),
		"tax", meta.Tax.String(),
		"method", res.Method,
		"pages", res.Pages,
	)
	return nil
}

// ExtractFromText runs the date and amount heuristics over document text.
// Deterministic: the same text always yields the same metadata.
func ExtractFromText(text string) (Metadata, error) {
	date, err := ExtractDate(text)
	if err != nil {
		return Metadata{}, err
	}
	cost, tax, err := ExtractAmounts(text)
	if err != nil {
		return Metadata{}, err
	}
	return Metadata{InvoiceDate: date, Cost: cost, Tax: tax}, nil
}

// ExtractDate recovers the invoice date. Numeric patterns win over the
// localized long form; a text with no recognizable date fails loudly —
// silently mis-dating a financial record is worse than failing the invoice.
func ExtractDate(text string) (time.Time, error) {
	for _, m := range dayFirstDate.FindAllStringSubmatch(text, -1) {
		if t, ok := makeDate(m[3], m[2], m[1]); ok {
			return t, nil
		}
	}
	for _, m := range yearFirstDate.FindAllStringSubmatch(text, -1) {
		if t, ok := makeDate(m[1], m[2], m[3]); ok {
			return t, nil
		}
	}
	for _, m := range longFormDate.FindAllStringSubmatch(text, -1) {
		month, ok := constants.SpanishMonth(m[2])
		if !ok {
			continue
		}
		if t, ok := makeDate(m[3], strconv.Itoa(int(month)), m[1]); ok {
			return t, nil
		}
	}
	return time.Time{}, common.NewExtractionError("date", nil)
}

// ExtractAmounts recovers the (cost, tax) pair from document text.
//
// All currency-amount tokens are collected and the candidates sorted
// descending; the largest is the total. A field-labeled tax amount wins as
// the tax, with the total taken as the cost. Without a label, the second
// distinct candidate is the base and tax is the difference. With a single
// distinct candidate the total is treated as VAT-inclusive at the statutory
// rate.
func ExtractAmounts(text string) (decimal.Decimal, decimal.Decimal, error) {
	var positives []decimal.Decimal
	for _, tok := range amountToken.FindAllString(text, -1) {
		amount, err := parseAmount(tok)
		if err != nil || !amount.IsPositive() {
			continue
		}
		positives = append(positives, amount)
	}
	if len(positives) < 2 {
		return decimal.Zero, decimal.Zero,
			common.NewExtractionError("amounts", fmt.Errorf("found %d positive amounts, need at least 2", len(positives)))
	}

	distinct := distinctDescending(positives)
	total := distinct[0]

	if tax, ok := labeledTax(text); ok && tax.LessThan(total) {
		return total, tax, nil
	}
	if len(distinct) > 1 {
		base := distinct[1]
		return base, total.Sub(base), nil
	}
	base := total.Div(vatDivisor).Round(2)
	return base, total.Sub(base), nil
}

// labeledTax looks for an amount immediately adjacent to a tax-label token.
func labeledTax(text string) (decimal.Decimal, bool) {
	for _, re := range []*regexp.Regexp{amountThenTaxLabel, taxLabelThenAmount} {
		if m := re.FindStringSubmatch(text); m != nil {
			if amount, err := parseAmount(m[1]); err == nil && amount.IsPositive() {
				return amount, true
			}
		}
	}
	return decimal.Zero, false
}

func parseAmount(tok string) (decimal.Decimal, error) {
	// comma decimal separator -> canonical point
	if i := len(tok) - 3; i > 0 && tok[i] == ',' {
		tok = tok[:i] + "." + tok[i+1:]
	}
	return decimal.NewFromString(tok)
}

func distinctDescending(amounts []decimal.Decimal) []decimal.Decimal {
	seen := make(map[string]struct{}, len(amounts))
	var out []decimal.Decimal
	for _, a := range amounts {
		key := a.StringFixed(2)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].GreaterThan(out[j]) })
	return out
}

// makeDate builds a calendar date from string components, rejecting values
// that do not survive a round trip (e.g. day 45, month 13).
func makeDate(year, month, day string) (time.Time, bool) {
	y, err := strconv.Atoi(year)
	if err != nil {
		return time.Time{}, false
	}
	m, err := strconv.Atoi(month)
	if err != nil {
		return time.Time{}, false
	}
	d, err := strconv.Atoi(day)
	if err != nil {
		return time.Time{}, false
	}
	if y < 1990 || y > 2100 {
		return time.Time{}, false
	}
	t := time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC)
	if t.Year() != y || int(t.Month()) != m || t.Day() != d {
		return time.Time{}, false
	}
	return t, true
}
