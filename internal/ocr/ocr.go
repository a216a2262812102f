package ocr

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/joseph-ayodele/invoice-extractor/constants"
)

type Config struct {
	Pdftoppm  string // binary name or absolute path; if empty -> "pdftoppm"
	Tesseract string // binary name or absolute path; if empty -> "tesseract"

	Languages   string // tesseract language spec, default "eng+ara"
	DPI         int    // rasterization DPI for PDF pages, default 200
	MaxPages    int    // pages rendered per PDF, default 2
	TessdataDir string
}

// Engine is the OCR capability: image -> text.
type Engine interface {
	RecognizeFile(ctx context.Context, path string) (string, error)
	Recognize(ctx context.Context, image []byte) (string, error)
}

// Rasterizer is the PDF capability: file, page index -> PNG image.
type Rasterizer interface {
	PageCount(ctx context.Context, path string) (int, error)
	RenderPage(ctx context.Context, path string, index, dpi int) ([]byte, error)
}

type ExtractionResult struct {
	Text       string
	Pages      int
	SourceType string // constants.PDF | constants.IMAGE
	Method     string // "pdf-ocr" | "image-ocr"
	Language   string
	Duration   time.Duration
	Warnings   []string
	Confidence float32
}

type Extractor struct {
	cfg    Config
	engine Engine
	raster Rasterizer
	logger *slog.Logger
}

// NewExtractor fills config defaults. A nil engine or rasterizer falls back
// to the tesseract and pdftoppm command line tools.
func NewExtractor(cfg Config, engine Engine, raster Rasterizer, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Pdftoppm == "" {
		cfg.Pdftoppm = "pdftoppm"
	}
	if cfg.Tesseract == "" {
		cfg.Tesseract = "tesseract"
	}
	if cfg.Languages == "" {
		cfg.Languages = "eng+ara"
	}
	if cfg.DPI <= 0 {
		cfg.DPI = 200
	}
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = 2
	}
	if engine == nil {
		engine = NewCLIEngine(cfg, nil, logger)
	}
	if raster == nil {
		raster = NewPopplerRasterizer(cfg, nil, logger)
	}
	return &Extractor{cfg: cfg, engine: engine, raster: raster, logger: logger}
}

// Extract picks a strategy based on file extension.
func (e *Extractor) Extract(ctx context.Context, path string) (ExtractionResult, error) {
	start := time.Now()
	ext := constants.NormalizeExt(filepath.Ext(path))
	e.logger.Debug("starting ocr extraction", "path", path, "ext", ext)

	var (
		res ExtractionResult
		err error
	)
	switch constants.MapExtToFormat(ext) {
	case constants.PDF:
		res, err = e.extractPDF(ctx, path)
	case constants.IMAGE:
		res, err = e.extractImage(ctx, path)
	default:
		e.logger.Error("unsupported ocr extension", "extension", ext)
		return ExtractionResult{}, fmt.Errorf("unsupported extension: %q", ext)
	}
	res.Duration = time.Since(start)
	res.Language = e.cfg.Languages
	res.Confidence = heuristicConfidence(res.Text)
	return res, err
}
