package source

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/acasal/costs-collector/constants"
	"github.com/acasal/costs-collector/internal/common"
	"github.com/acasal/costs-collector/internal/entity"
)

// DirectorySource yields invoices from PDF documents already downloaded into
// a local directory, newest-first by modification time. It stands in for a
// portal source when documents arrive by other means (email export, manual
// download).
type DirectorySource struct {
	spec   Spec
	logger *slog.Logger
}

func NewDirectorySource(spec Spec, logger *slog.Logger) *DirectorySource {
	if logger == nil {
		logger = slog.Default()
	}
	return &DirectorySource{spec: spec, logger: logger}
}

func (s *DirectorySource) Name() string            { return s.spec.Name }
func (s *DirectorySource) Concept() string         { return s.spec.Concept }
func (s *DirectorySource) Type() string            { return s.spec.Type }
func (s *DirectorySource) DeductibleRate() float64 { return s.spec.DeductibleRate }

// Invoices scans the directory once and returns an iterator that reads each
// document lazily on Next.
func (s *DirectorySource) Invoices(ctx context.Context, since time.Time) (Iterator, error) {
	type candidate struct {
		path    string
		modTime time.Time
	}
	var candidates []candidate

	err := filepath.WalkDir(s.spec.Path, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			return nil
		}
		ext := constants.NormalizeExt(filepath.Ext(path))
		if _, ok := constants.AllowedExtensions[ext]; !ok {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		if info.ModTime().Before(since) {
			return nil
		}
		candidates = append(candidates, candidate{path: path, modTime: info.ModTime()})
		return nil
	})
	if err != nil {
		return nil, common.WrapError(fmt.Errorf("%w: scan %s: %v", common.ErrProvider, s.spec.Path, err), "directory source")
	}

	// newest-first is the source's contract
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].modTime.After(candidates[j].modTime)
	})

	paths := make([]string, len(candidates))
	modTimes := make([]time.Time, len(candidates))
	for i, c := range candidates {
		paths[i] = c.path
		modTimes[i] = c.modTime
	}

	s.logger.Debug("source.scan.ok", "source", s.spec.Name, "documents", len(paths))
	return &dirIterator{src: s, paths: paths, modTimes: modTimes}, nil
}

type dirIterator struct {
	src      *DirectorySource
	paths    []string
	modTimes []time.Time
	pos      int
	closed   bool
}

func (it *dirIterator) Next(ctx context.Context) (*entity.Invoice, error) {
	if it.closed {
		return nil, ErrEndOfInvoices
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if it.pos >= len(it.paths) {
		return nil, ErrEndOfInvoices
	}
	path := it.paths[it.pos]
	modTime := it.modTimes[it.pos]
	it.pos++

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", common.ErrProvider, path, err)
	}

	// Financial fields start zero-valued; the extraction service fills them
	// from the document. The mod time is only a placeholder date.
	inv, err := entity.InvoiceFromContent(
		content,
		filepath.Base(path),
		constants.ContentTypePDF,
		modTime,
		it.src.spec.Concept,
		it.src.spec.Type,
		decimal.Zero,
		decimal.Zero,
		it.src.spec.DeductibleRate,
	)
	if err != nil {
		return nil, fmt.Errorf("build invoice from %s: %w", path, err)
	}
	return inv, nil
}

func (it *dirIterator) Close() error {
	it.closed = true
	it.paths = nil
	it.modTimes = nil
	return nil
}
