package entity

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/acasal/costs-collector/constants"
	"github.com/acasal/costs-collector/internal/common"
)

// RegisteredInvoice is the ledger-side projection of a processed invoice.
// The idempotency gate reads these back to build its duplicate-lookup index.
type RegisteredInvoice struct {
	InvoiceDate    time.Time       `json:"invoice_date"`
	Concept        string          `json:"concept"`
	Type           string          `json:"type"`
	Cost           decimal.Decimal `json:"cost"`
	Tax            decimal.Decimal `json:"tax"`
	DeductibleRate float64         `json:"deductible_rate"`
	FileHash       string          `json:"file_hash"`
	ArchiveIDs     []string        `json:"archive_ids,omitempty"`
	ProcessedDate  time.Time       `json:"processed_date"`
	Status         string          `json:"status"`
}

// NewRegisteredInvoice validates the projection's invariants.
func NewRegisteredInvoice(r RegisteredInvoice) (*RegisteredInvoice, error) {
	if r.DeductibleRate < 0.0 || r.DeductibleRate > 1.0 {
		return nil, common.ValidationErrorf("deductible rate %v out of range [0,1]", r.DeductibleRate)
	}
	if r.Cost.IsNegative() {
		return nil, common.ValidationErrorf("cost amount %s is negative", r.Cost)
	}
	if r.Tax.IsNegative() {
		return nil, common.ValidationErrorf("tax amount %s is negative", r.Tax)
	}
	if strings.TrimSpace(r.Concept) == "" {
		return nil, common.ValidationErrorf("concept is empty")
	}
	if strings.TrimSpace(r.Type) == "" {
		return nil, common.ValidationErrorf("type is empty")
	}
	if strings.TrimSpace(r.FileHash) == "" {
		return nil, common.ValidationErrorf("file hash is empty")
	}
	if !constants.IsValidStatus(r.Status) {
		return nil, common.ValidationErrorf("status %q is not one of success/failed/skipped", r.Status)
	}
	return &r, nil
}

// Total is the full invoiced amount including VAT.
func (r *RegisteredInvoice) Total() decimal.Decimal {
	return r.Cost.Add(r.Tax)
}

// DeductibleAmount is the portion of the total treated as deductible.
func (r *RegisteredInvoice) DeductibleAmount() decimal.Decimal {
	return r.Total().Mul(decimal.NewFromFloat(r.DeductibleRate))
}

// IsSuccessful reports whether the invoice was archived and registered.
func (r *RegisteredInvoice) IsSuccessful() bool {
	return r.Status == string(constants.StatusSuccess)
}
