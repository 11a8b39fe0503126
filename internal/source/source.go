package source

import (
	"context"
	"errors"
	"time"

	"github.com/acasal/costs-collector/internal/entity"
)

// ErrEndOfInvoices is returned by Iterator.Next after the last invoice.
var ErrEndOfInvoices = errors.New("no more invoices")

// Source yields invoices from one specific provider. Each yielded invoice
// already carries the downloaded document; financial fields may be zero
// placeholders which the extraction service later overwrites.
type Source interface {
	// Name identifies the source in logs and run reports.
	Name() string
	// Concept is the provider-specific category, e.g. "Electricity".
	Concept() string
	// Type is the provider-specific billing cadence, e.g. "Monthly Bill".
	Type() string
	// DeductibleRate is the provider-specific deductible fraction in [0,1].
	DeductibleRate() float64
	// Invoices acquires the provider session and returns a finite,
	// non-restartable iterator over invoices newer than since, ordered
	// newest-first.
	Invoices(ctx context.Context, since time.Time) (Iterator, error)
}

// Iterator is a lazy sequence of invoices. Close releases the underlying
// session and must be called on all exit paths, including early termination.
type Iterator interface {
	Next(ctx context.Context) (*entity.Invoice, error)
	Close() error
}
