package ocr

import (
	"context"
	"fmt"
	"strings"

	"github.com/joseph-ayodele/invoice-extractor/constants"
)

// extractPDF renders the first MaxPages pages and OCRs each one. Every page
// gets a "--- Page N ---" marker even when its own OCR failed.
func (e *Extractor) extractPDF(ctx context.Context, path string) (ExtractionResult, error) {
	res := ExtractionResult{SourceType: constants.PDF, Method: "pdf-ocr"}

	total, err := e.raster.PageCount(ctx, path)
	if err != nil {
		return res, fmt.Errorf("count pages: %w", err)
	}
	pages := min(total, e.cfg.MaxPages)
	if pages == 0 {
		return res, fmt.Errorf("pdf has no pages")
	}
	if total > pages {
		e.logger.Debug("pdf truncated to page limit", "path", path, "pages", total, "limit", pages)
	}

	var b strings.Builder
	for i := 0; i < pages; i++ {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		txt, err := e.pageText(ctx, path, i)
		if err != nil {
			e.logger.Warn("ocr.page.error", "path", path, "page", i+1, "error", err)
			res.Warnings = append(res.Warnings, fmt.Sprintf("page %d: %v", i+1, err))
		}
		fmt.Fprintf(&b, "--- Page %d ---\n%s\n", i+1, txt)
	}

	res.Text = b.String()
	res.Pages = pages
	return res, nil
}

func (e *Extractor) pageText(ctx context.Context, path string, index int) (string, error) {
	img, err := e.raster.RenderPage(ctx, path, index, e.cfg.DPI)
	if err != nil {
		return "", fmt.Errorf("render: %w", err)
	}
	txt, err := e.engine.Recognize(ctx, img)
	if err != nil {
		return "", fmt.Errorf("recognize: %w", err)
	}
	return Normalize(txt), nil
}
