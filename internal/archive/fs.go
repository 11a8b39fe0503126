package archive

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/acasal/costs-collector/internal/common"
	"github.com/acasal/costs-collector/internal/entity"
)

// FSArchive stores invoice documents under <root>/<year>/<concept>/<file>.
// Archive IDs are the root-relative paths, so InvoiceURL can resolve them
// without an index.
type FSArchive struct {
	root   string
	kind   string
	logger *slog.Logger
}

func NewFSArchive(root, kind string, logger *slog.Logger) (*FSArchive, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if strings.TrimSpace(root) == "" {
		return nil, common.ValidationErrorf("archive root is empty")
	}
	if kind == "" {
		kind = "primary"
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("%w: create archive root: %v", common.ErrStorage, err)
	}
	return &FSArchive{root: root, kind: kind, logger: logger}, nil
}

func (a *FSArchive) Kind() string { return a.kind }

func (a *FSArchive) Archive(ctx context.Context, inv *entity.Invoice) ([]entity.ArchiveResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	relDir := filepath.Join(strconv.Itoa(inv.InvoiceDate.Year()), sanitize(inv.Concept))
	dir := filepath.Join(a.root, relDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: create archive dir: %v", common.ErrStorage, err)
	}

	name := archiveFileName(inv)
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, inv.Content, 0o644); err != nil {
		return nil, fmt.Errorf("%w: write %s: %v", common.ErrStorage, path, err)
	}

	archiveID := filepath.ToSlash(filepath.Join(relDir, name))
	res, err := entity.NewArchiveSuccess(archiveID, a.kind, "file://"+path)
	if err != nil {
		return nil, err
	}

	a.logger.Debug("archive.fs.ok", "archive_id", archiveID, "bytes", len(inv.Content))
	return []entity.ArchiveResult{res}, nil
}

func (a *FSArchive) InvoiceURL(ctx context.Context, archiveID string) (string, error) {
	path := filepath.Join(a.root, filepath.FromSlash(archiveID))
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("%w: %s: %v", common.ErrStorage, archiveID, err)
	}
	return "file://" + path, nil
}

// archiveFileName keeps the original name but prefixes the invoice date and a
// short random suffix so re-downloads of the same portal file never collide.
func archiveFileName(inv *entity.Invoice) string {
	base := sanitize(strings.TrimSuffix(inv.FileName, filepath.Ext(inv.FileName)))
	suffix := uuid.NewString()[:8]
	return fmt.Sprintf("%s_%s_%s.pdf", inv.InvoiceDate.Format("2006-01-02"), base, suffix)
}

func sanitize(s string) string {
	s = strings.TrimSpace(s)
	repl := strings.NewReplacer("/", "-", "\\", "-", " ", "_", ":", "-")
	return repl.Replace(s)
}
