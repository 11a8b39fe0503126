package archive

import (
	"context"

	"github.com/acasal/costs-collector/internal/entity"
)

// Archiver durably stores an invoice's document and returns retrievable
// references, one per storage backend.
type Archiver interface {
	// Archive stores the invoice document. One ArchiveResult is returned per
	// backend; a failed backend yields a failed result rather than an error
	// as long as at least one backend succeeded.
	Archive(ctx context.Context, inv *entity.Invoice) ([]entity.ArchiveResult, error)
	// InvoiceURL resolves an archive ID to a retrievable URL.
	InvoiceURL(ctx context.Context, archiveID string) (string, error)
	// Kind is the backend tag stamped on every ArchiveResult, success or not.
	Kind() string
}
