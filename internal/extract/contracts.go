package extract

import (
	"context"
	"time"
)

// TextExtractor turns raw document bytes into text.
type TextExtractor interface {
	Extract(ctx context.Context, content []byte) (TextExtractionResult, error)
}

type TextExtractionResult struct {
	Text     string
	Pages    int
	Method   string // "pdf-layout" | "pdf-raw"
	Duration time.Duration
	Warnings []string
}
