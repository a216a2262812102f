package extract

import (
	"context"
	"time"

	"github.com/joseph-ayodele/invoice-extractor/internal/ocr"
)

// TextSource is stage 1: file -> text. *ocr.Extractor satisfies it.
type TextSource interface {
	Extract(ctx context.Context, path string) (ocr.ExtractionResult, error)
}

type TextExtractionResult struct {
	Text       string
	Pages      int
	SourceType string // "PDF" | "IMAGE"
	Method     string // "pdf-ocr" | "image-ocr"
	Language   string
	Duration   time.Duration
	Warnings   []string
	Confidence float32
	// Failed is set when the text is empty because extraction broke, as
	// opposed to a document that simply holds no text.
	Failed bool
}
