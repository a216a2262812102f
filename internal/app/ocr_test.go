//go:build !gosseract && !fitz

package app

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"github.com/joseph-ayodele/invoice-extractor/internal/common"
)

func TestOCRBackendsWithoutCgoTags(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	engine, raster := ocrBackends(common.OCRConfig{Engine: "gosseract", Rasterizer: "fitz"}, logger)
	if engine != nil || raster != nil {
		t.Fatalf("expected command line fallbacks, got %T %T", engine, raster)
	}
	out := buf.String()
	if !strings.Contains(out, "ocr.engine.unavailable") || !strings.Contains(out, "ocr.rasterizer.unavailable") {
		t.Fatalf("missing fallback warnings: %q", out)
	}

	buf.Reset()
	if engine, raster := ocrBackends(common.OCRConfig{Engine: "cli", Rasterizer: "pdftoppm"}, logger); engine != nil || raster != nil {
		t.Fatalf("cli config selected %T %T", engine, raster)
	}
	if buf.Len() != 0 {
		t.Fatalf("cli config should not warn: %q", buf.String())
	}
	if NewOCR(common.OCRConfig{Engine: "gosseract"}, logger) == nil {
		t.Fatal("NewOCR returned nil")
	}
}
