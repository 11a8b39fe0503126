package extract

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/acasal/costs-collector/internal/common"
)

// stubRunner returns canned output per pdftotext mode flag.
type stubRunner struct {
	byMode map[string]string
	errBy  map[string]error
	calls  []string
}

func (s *stubRunner) Run(_ context.Context, _ string, args ...string) ([]byte, []byte, error) {
	mode := args[0]
	s.calls = append(s.calls, mode)
	if err := s.errBy[mode]; err != nil {
		return nil, []byte("boom"), err
	}
	return []byte(s.byMode[mode]), nil, nil
}

func pdfBytes(t *testing.T) []byte {
	t.Helper()
	var b bytes.Buffer
	b.WriteString("%PDF-1.4\n")
	b.Write(bytes.Repeat([]byte("0"), minDocumentBytes))
	return b.Bytes()
}

func TestValidateDocument(t *testing.T) {
	tests := []struct {
		name    string
		content []byte
		wantErr bool
	}{
		{"valid pdf", pdfBytes(t), false},
		{"too small", []byte("%PDF-1.4 tiny"), true},
		{"wrong magic", bytes.Repeat([]byte("A"), 2000), true},
		{"empty", nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateDocument(tt.content)
			if tt.wantErr {
				assert.ErrorIs(t, err, common.ErrValidation)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestPDFTextExtractor_LayoutFirst(t *testing.T) {
	runner := &stubRunner{byMode: map[string]string{
		"-layout": "Factura 15/01/2024\fpage two",
		"-raw":    "should not be used",
	}}
	e := NewPDFTextExtractor(Config{}, nil)
	e.runner = runner

	res, err := e.Extract(context.Background(), pdfBytes(t))
	require.NoError(t, err)
	assert.Equal(t, "pdf-layout", res.Method)
	assert.Equal(t, 2, res.Pages)
	assert.Equal(t, []string{"-layout"}, runner.calls)
}

func TestPDFTextExtractor_FallsBackToRaw(t *testing.T) {
	runner := &stubRunner{byMode: map[string]string{
		"-layout": " \n\t ",
		"-raw":    "linear text 60,52",
	}}
	e := NewPDFTextExtractor(Config{}, nil)
	e.runner = runner

	res, err := e.Extract(context.Background(), pdfBytes(t))
	require.NoError(t, err)
	assert.Equal(t, "pdf-raw", res.Method)
	assert.Equal(t, "linear text 60,52", res.Text)
	assert.Equal(t, []string{"-layout", "-raw"}, runner.calls)
}

func TestPDFTextExtractor_BothModesEmpty(t *testing.T) {
	runner := &stubRunner{byMode: map[string]string{"-layout": "", "-raw": "  "}}
	e := NewPDFTextExtractor(Config{}, nil)
	e.runner = runner

	_, err := e.Extract(context.Background(), pdfBytes(t))
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrExtraction)
}

func TestPDFTextExtractor_BothModesFail(t *testing.T) {
	cmdErr := errors.New("exit status 1")
	runner := &stubRunner{
		byMode: map[string]string{},
		errBy:  map[string]error{"-layout": cmdErr, "-raw": cmdErr},
	}
	e := NewPDFTextExtractor(Config{}, nil)
	e.runner = runner

	_, err := e.Extract(context.Background(), pdfBytes(t))
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrExtraction)
}

func TestPDFTextExtractor_RejectsMalformedBeforeParsing(t *testing.T) {
	runner := &stubRunner{byMode: map[string]string{"-layout": "plausible 60,52 noise 10,50"}}
	e := NewPDFTextExtractor(Config{}, nil)
	e.runner = runner

	_, err := e.Extract(context.Background(), []byte("not a pdf"))
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrValidation)
	assert.Empty(t, runner.calls, "no text extraction attempted on a malformed document")
}

func TestNewPDFTextExtractor_RunnerSharesLogger(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	e := NewPDFTextExtractor(Config{}, logger)

	r, ok := e.runner.(execRunner)
	require.True(t, ok)
	assert.Same(t, logger, r.logger, "command logging goes through the injected logger")
}
