package extract

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/acasal/costs-collector/internal/common"
)

// minDocumentBytes rejects placeholder documents before any parsing is
// attempted; anything under 1KB is not a real invoice.
const minDocumentBytes = 1000

var pdfMagic = []byte("%PDF-")

type Config struct {
	Pdftotext   string // binary name or absolute path; if empty -> "pdftotext"
	ArtifactDir string // where temp documents are materialized; if empty -> os.TempDir()
}

// PDFTextExtractor extracts text from PDF bytes by shelling out to poppler.
// The layout-aware mode runs first; when it yields only whitespace, the
// linear raw mode is the fallback.
type PDFTextExtractor struct {
	cfg    Config
	runner Runner
	logger *slog.Logger
}

func NewPDFTextExtractor(cfg Config, logger *slog.Logger) *PDFTextExtractor {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Pdftotext == "" {
		cfg.Pdftotext = "pdftotext"
	}
	return &PDFTextExtractor{cfg: cfg, runner: execRunner{logger: logger}, logger: logger}
}

// ValidateDocument checks that content looks like a well-formed, non-trivial
// PDF. Malformed or placeholder documents must be rejected before heuristic
// parsing, to avoid manufacturing plausible-looking numbers from noise.
func ValidateDocument(content []byte) error {
	if len(content) < minDocumentBytes {
		return common.ValidationErrorf("document too small (%d bytes)", len(content))
	}
	if !bytes.HasPrefix(content, pdfMagic) {
		return common.ValidationErrorf("document is not a PDF")
	}
	return nil
}

// Extract materializes content to a temp file and runs pdftotext over it.
func (e *PDFTextExtractor) Extract(ctx context.Context, content []byte) (TextExtractionResult, error) {
	start := time.Now()

	if err := ValidateDocument(content); err != nil {
		return TextExtractionResult{}, err
	}

	path, cleanup, err := e.materialize(content)
	if err != nil {
		return TextExtractionResult{}, err
	}
	defer cleanup()

	var warnings []string

	// pdftotext -layout -enc UTF-8 -eol unix <path> -
	text, errb, err := e.pdftotext(ctx, path, "-layout")
	if err != nil {
		warnings = append(warnings, string(errb))
	}
	method := "pdf-layout"
	if strings.TrimSpace(text) == "" {
		// Layout mode yielded nothing useful; try the linear reader.
		text, errb, err = e.pdftotext(ctx, path, "-raw")
		method = "pdf-raw"
		if err != nil {
			warnings = append(warnings, string(errb))
			return TextExtractionResult{Warnings: warnings},
				common.NewExtractionError("text", fmt.Errorf("pdftotext: %w", err))
		}
	}
	if strings.TrimSpace(text) == "" {
		return TextExtractionResult{Warnings: warnings},
			common.NewExtractionError("text", fmt.Errorf("document yielded no text"))
	}

	// A form-feed \f is used as page separator by default.
	pages := 1 + strings.Count(strings.TrimRight(text, "\f"), "\f")

	res := TextExtractionResult{
		Text:     text,
		Pages:    pages,
		Method:   method,
		Duration: time.Since(start),
		Warnings: warnings,
	}
	e.logger.Debug("extract.text.ok", "method", method, "pages", pages, "bytes", len(text))
	return res, nil
}

func (e *PDFTextExtractor) pdftotext(ctx context.Context, path, mode string) (string, []byte, error) {
	out, errb, err := e.runner.Run(ctx, e.cfg.Pdftotext, mode, "-enc", "UTF-8", "-eol", "unix", path, "-")
	return string(out), errb, err
}

func (e *PDFTextExtractor) materialize(content []byte) (string, func(), error) {
	dir := e.cfg.ArtifactDir
	if dir == "" {
		dir = os.TempDir()
	}
	tmpDir, err := os.MkdirTemp(dir, "cc-doc-*")
	if err != nil {
		return "", nil, fmt.Errorf("mkdtemp: %w", err)
	}
	cleanup := func() {
		if err := os.RemoveAll(tmpDir); err != nil {
			e.logger.Warn("failed to remove temp dir", "path", tmpDir, "error", err)
		}
	}
	path := filepath.Join(tmpDir, "invoice.pdf")
	if err := os.WriteFile(path, content, 0o600); err != nil {
		cleanup()
		return "", nil, fmt.Errorf("write temp document: %w", err)
	}
	return path, cleanup, nil
}
