package extract

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/joseph-ayodele/invoice-extractor/internal/common"
)

// OCRAdapter wraps a TextSource with the never-fail contract: every error
// and panic is logged and downgraded to empty text.
type OCRAdapter struct {
	source TextSource
	logger *slog.Logger
}

func NewOCRAdapter(source TextSource, logger *slog.Logger) *OCRAdapter {
	return &OCRAdapter{
		source: source,
		logger: logger,
	}
}

func (a *OCRAdapter) ExtractText(ctx context.Context, path string) (res TextExtractionResult) {
	defer func() {
		if r := recover(); r != nil {
			a.fail(ctx, path, &res, fmt.Errorf("panic: %v", r))
		}
	}()

	r, err := a.source.Extract(ctx, path)
	res = TextExtractionResult{
		Text:       r.Text,
		Pages:      r.Pages,
		SourceType: r.SourceType,
		Method:     r.Method,
		Language:   r.Language,
		Duration:   r.Duration,
		Warnings:   r.Warnings,
		Confidence: r.Confidence,
	}
	if err != nil {
		a.fail(ctx, path, &res, err)
		return res
	}

	a.logger.Info("extract.text.ok",
		"document_id", documentID(ctx),
		"path", path,
		"pages", res.Pages,
		"method", res.Method,
		"chars", len(res.Text),
		"confidence", res.Confidence,
		"warnings", len(res.Warnings),
		"elapsed_ms", res.Duration.Milliseconds(),
	)
	return res
}

func (a *OCRAdapter) fail(ctx context.Context, path string, res *TextExtractionResult, err error) {
	err = fmt.Errorf("%w: %w", common.ErrTextExtraction, err)
	a.logger.Error("extract.text.failed", "document_id", documentID(ctx), "path", path, "error", err)
	res.Text = ""
	res.Failed = true
	res.Warnings = append(res.Warnings, err.Error())
}

func documentID(ctx context.Context) any {
	if id, ok := common.DocumentIDFromContext(ctx); ok {
		return id
	}
	return nil
}
