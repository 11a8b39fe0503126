package archive

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/acasal/costs-collector/internal/common"
	"github.com/acasal/costs-collector/internal/entity"
)

// MultiArchive fans an invoice out to several backends. A backend failure
// becomes a failed ArchiveResult; only when every backend fails does Archive
// return an error.
type MultiArchive struct {
	backends []Archiver
	logger   *slog.Logger
}

func NewMultiArchive(logger *slog.Logger, backends ...Archiver) *MultiArchive {
	if logger == nil {
		logger = slog.Default()
	}
	return &MultiArchive{backends: backends, logger: logger}
}

func (m *MultiArchive) Kind() string { return "multi" }

func (m *MultiArchive) Archive(ctx context.Context, inv *entity.Invoice) ([]entity.ArchiveResult, error) {
	if len(m.backends) == 0 {
		return nil, common.ValidationErrorf("no archive backends configured")
	}

	var results []entity.ArchiveResult
	succeeded := 0
	for _, backend := range m.backends {
		rs, err := backend.Archive(ctx, inv)
		if err != nil {
			kind := backend.Kind()
			failure, ferr := entity.NewArchiveFailure(kind, err.Error())
			if ferr != nil {
				return nil, ferr
			}
			m.logger.Warn("archive.backend.failed", "kind", kind, "file_name", inv.FileName, "error", err)
			results = append(results, failure)
			continue
		}
		for _, r := range rs {
			if r.Success {
				succeeded++
			}
		}
		results = append(results, rs...)
	}

	if succeeded == 0 {
		var msgs []string
		for _, r := range results {
			if !r.Success {
				msgs = append(msgs, r.ErrorMessage)
			}
		}
		return results, fmt.Errorf("%w: all archive backends failed: %s", common.ErrStorage, strings.Join(msgs, "; "))
	}
	return results, nil
}

// InvoiceURL asks each backend in order and returns the first resolution.
func (m *MultiArchive) InvoiceURL(ctx context.Context, archiveID string) (string, error) {
	var lastErr error
	for _, backend := range m.backends {
		url, err := backend.InvoiceURL(ctx, archiveID)
		if err == nil {
			return url, nil
		}
		lastErr = err
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("%w: no archive backends configured", common.ErrStorage)
	}
	return "", lastErr
}
