package entity

import (
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/acasal/costs-collector/internal/common"
)

// Invoice is the unified unit of work flowing through the pipeline: financial
// metadata plus the downloaded document bytes. Sources construct it (possibly
// with zero-valued financial fields), the extraction service overwrites the
// financial fields once with values read from the document, and the
// orchestrator consumes it.
type Invoice struct {
	// Metadata fields
	InvoiceDate    time.Time       `json:"invoice_date"`
	Concept        string          `json:"concept"`         // e.g. "Electricity", "Internet", "Water"
	Type           string          `json:"type"`            // e.g. "Monthly Bill", "Quarterly Bill"
	Cost           decimal.Decimal `json:"cost"`            // base amount, read from the document
	Tax            decimal.Decimal `json:"tax"`             // VAT amount, read from the document
	DeductibleRate float64         `json:"deductible_rate"` // fraction in [0,1]
	FileName       string          `json:"file_name"`

	// File fields
	Content     []byte `json:"-"`
	ContentType string `json:"content_type"`
	Size        int    `json:"size"`
	MD5Hex      string `json:"md5"`
	SHA256Hex   string `json:"sha256"`
}

// NewInvoice validates every invariant and returns the invoice, failing fast
// on any violation. Values are never clamped or coerced.
func NewInvoice(inv Invoice) (*Invoice, error) {
	if inv.DeductibleRate < 0.0 || inv.DeductibleRate > 1.0 {
		return nil, common.ValidationErrorf("deductible rate %v out of range [0,1]", inv.DeductibleRate)
	}
	if inv.Cost.IsNegative() {
		return nil, common.ValidationErrorf("cost amount %s is negative", inv.Cost)
	}
	if inv.Tax.IsNegative() {
		return nil, common.ValidationErrorf("tax amount %s is negative", inv.Tax)
	}
	if strings.TrimSpace(inv.Concept) == "" {
		return nil, common.ValidationErrorf("concept is empty")
	}
	if strings.TrimSpace(inv.Type) == "" {
		return nil, common.ValidationErrorf("type is empty")
	}
	if strings.TrimSpace(inv.FileName) == "" {
		return nil, common.ValidationErrorf("file name is empty")
	}
	if len(inv.Content) == 0 {
		return nil, common.ValidationErrorf("file content is empty")
	}
	if strings.TrimSpace(inv.ContentType) == "" {
		return nil, common.ValidationErrorf("content type is empty")
	}
	if inv.Size != len(inv.Content) {
		return nil, common.ValidationErrorf("declared size %d does not match content length %d", inv.Size, len(inv.Content))
	}
	if inv.MD5Hex != md5Hex(inv.Content) {
		return nil, common.ValidationErrorf("md5 hash does not match content")
	}
	if inv.SHA256Hex != sha256Hex(inv.Content) {
		return nil, common.ValidationErrorf("sha256 hash does not match content")
	}
	return &inv, nil
}

// InvoiceFromContent builds an Invoice from raw document bytes, computing the
// size and integrity hashes.
func InvoiceFromContent(content []byte, fileName, contentType string, invoiceDate time.Time, concept, typ string, cost, tax decimal.Decimal, deductibleRate float64) (*Invoice, error) {
	return NewInvoice(Invoice{
		InvoiceDate:    invoiceDate,
		Concept:        concept,
		Type:           typ,
		Cost:           cost,
		Tax:            tax,
		DeductibleRate: deductibleRate,
		FileName:       fileName,
		Content:        content,
		ContentType:    contentType,
		Size:           len(content),
		MD5Hex:         md5Hex(content),
		SHA256Hex:      sha256Hex(content),
	})
}

// Total is the full invoiced amount including VAT.
func (i *Invoice) Total() decimal.Decimal {
	return i.Cost.Add(i.Tax)
}

// DeductibleAmount is the portion of the total treated as deductible.
func (i *Invoice) DeductibleAmount() decimal.Decimal {
	return i.Total().Mul(decimal.NewFromFloat(i.DeductibleRate))
}

// SetAmounts overwrites the financial fields with values read from the
// document, re-validating the invariants they are subject to.
func (i *Invoice) SetAmounts(invoiceDate time.Time, cost, tax decimal.Decimal) error {
	if cost.IsNegative() {
		return common.ValidationErrorf("cost amount %s is negative", cost)
	}
	if tax.IsNegative() {
		return common.ValidationErrorf("tax amount %s is negative", tax)
	}
	if invoiceDate.IsZero() {
		return common.ValidationErrorf("invoice date is zero")
	}
	i.InvoiceDate = invoiceDate
	i.Cost = cost
	i.Tax = tax
	return nil
}

func md5Hex(b []byte) string {
	sum := md5.Sum(b)
	return hex.EncodeToString(sum[:])
}

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
