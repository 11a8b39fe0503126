package entity

import (
	"strings"

	"github.com/acasal/costs-collector/internal/common"
)

// ArchiveResult is the outcome of archiving an invoice document to one
// storage backend.
type ArchiveResult struct {
	ArchiveID    string `json:"archive_id"`
	ArchiveKind  string `json:"archive_kind"` // backend tag, e.g. "primary", "secondary"
	FileURL      string `json:"file_url"`
	Success      bool   `json:"success"`
	ErrorMessage string `json:"error_message,omitempty"`
}

// NewArchiveSuccess builds a successful result. All identifiers are required.
func NewArchiveSuccess(archiveID, archiveKind, fileURL string) (ArchiveResult, error) {
	r := ArchiveResult{
		ArchiveID:   archiveID,
		ArchiveKind: archiveKind,
		FileURL:     fileURL,
		Success:     true,
	}
	return r, r.validate()
}

// NewArchiveFailure builds a failed result carrying the backend error.
func NewArchiveFailure(archiveKind, errorMessage string) (ArchiveResult, error) {
	r := ArchiveResult{
		ArchiveKind:  archiveKind,
		Success:      false,
		ErrorMessage: errorMessage,
	}
	return r, r.validate()
}

func (r ArchiveResult) validate() error {
	if strings.TrimSpace(r.ArchiveKind) == "" {
		return common.ValidationErrorf("archive kind is empty")
	}
	if r.Success {
		if strings.TrimSpace(r.ArchiveID) == "" {
			return common.ValidationErrorf("archive id is empty")
		}
		if strings.TrimSpace(r.FileURL) == "" {
			return common.ValidationErrorf("file url is empty")
		}
		if r.ErrorMessage != "" {
			return common.ValidationErrorf("error message set on a successful result")
		}
		return nil
	}
	if strings.TrimSpace(r.ErrorMessage) == "" {
		return common.ValidationErrorf("error message required on a failed result")
	}
	return nil
}
