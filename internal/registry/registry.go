package registry

import (
	"context"
	"time"

	"github.com/acasal/costs-collector/internal/entity"
)

// Registry is the ledger of previously processed invoices. It is the source
// of truth for deduplication and is always re-queried; nothing is cached
// between runs.
type Registry interface {
	// RegisteredSince returns every ledger entry processed on or after since.
	RegisteredSince(ctx context.Context, since time.Time) ([]entity.RegisteredInvoice, error)
	// Register appends the invoice to the ledger with its archive references.
	// A registry-side duplicate signal is reported as common.ErrDuplicate.
	Register(ctx context.Context, inv *entity.Invoice, results []entity.ArchiveResult) error
}

// successfulArchiveIDs collects the IDs of the archive backends that stored
// the document.
func successfulArchiveIDs(results []entity.ArchiveResult) []string {
	var ids []string
	for _, r := range results {
		if r.Success {
			ids = append(ids, r.ArchiveID)
		}
	}
	return ids
}
