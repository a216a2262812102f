// Package app wires configuration into a ready pipeline. The binaries under
// cmd share it so that the daemon and the one-shot tools run the same stack.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	gcs "cloud.google.com/go/storage"

	"github.com/joseph-ayodele/invoice-extractor/internal/common"
	"github.com/joseph-ayodele/invoice-extractor/internal/extract"
	"github.com/joseph-ayodele/invoice-extractor/internal/llm"
	"github.com/joseph-ayodele/invoice-extractor/internal/llm/gemini"
	"github.com/joseph-ayodele/invoice-extractor/internal/llm/gigachat"
	"github.com/joseph-ayodele/invoice-extractor/internal/llm/openai"
	"github.com/joseph-ayodele/invoice-extractor/internal/ocr"
	"github.com/joseph-ayodele/invoice-extractor/internal/pipeline"
	"github.com/joseph-ayodele/invoice-extractor/internal/repository"
	"github.com/joseph-ayodele/invoice-extractor/internal/storage"
)

type App struct {
	DB        *repository.DB
	Documents repository.DocumentRepository
	Invoices  repository.InvoiceRepository
	Processor *pipeline.Processor

	logger  *slog.Logger
	closers []func()
}

// New opens the store, applies the schema when configured to, and builds
// the processor. Close releases everything New acquired.
func New(ctx context.Context, cfg *common.Config, logger *slog.Logger) (*App, error) {
	a := &App{logger: logger}

	db, err := repository.Open(ctx, repository.Config{
		Driver:           repository.Dialect(cfg.Database.Driver),
		DSN:              cfg.Database.DSN,
		MaxConns:         cfg.Database.MaxConns,
		MinConns:         cfg.Database.MinConns,
		MaxConnLifetime:  cfg.Database.MaxConnLifetime,
		MaxConnIdleTime:  cfg.Database.MaxConnIdleTime,
		DialTimeout:      cfg.Database.DialTimeout,
		StatementTimeout: cfg.Database.StatementTimeout,
	}, logger)
	if err != nil {
		return nil, common.InfrastructureError("could not open database", err)
	}
	a.DB = db
	a.closers = append(a.closers, func() { db.Close(logger) })

	if err := db.HealthCheck(ctx, 5*time.Second, logger); err != nil {
		a.Close()
		return nil, common.InfrastructureError("database is unreachable", err)
	}
	if cfg.Database.AutoMigrate {
		if err := db.Migrate(ctx, logger); err != nil {
			a.Close()
			return nil, common.InfrastructureError("could not apply schema", err)
		}
	}

	a.Documents = repository.NewDocumentRepository(db, logger)
	a.Invoices = repository.NewInvoiceRepository(db, logger)

	gen, closeGen := NewGenerator(ctx, cfg.LLM, logger)
	a.closers = append(a.closers, closeGen)

	prompts, overridden := llm.LoadPrompts(cfg.LLM.PromptsDir, logger)
	if len(overridden) > 0 {
		logger.Info("prompt templates overridden", "dir", cfg.LLM.PromptsDir, "files", overridden)
	}

	var client *gcs.Client
	if cfg.Storage.GCSEnabled {
		client, err = gcs.NewClient(ctx)
		if err != nil {
			// gs:// sources fail per run; local files still work
			logger.Warn("storage client unavailable", "error", err)
			client = nil
		} else {
			a.closers = append(a.closers, func() { _ = client.Close() })
		}
	}

	a.Processor = pipeline.NewProcessor(
		storage.NewResolver(client, cfg.Storage.TempDir, logger),
		a.Documents,
		extract.NewOCRAdapter(NewOCR(cfg.OCR, logger), logger),
		extract.NewFieldExtractor(gen, prompts, cfg.LLM.Timeout, logger),
		extract.NewAuditor(gen, prompts, cfg.LLM.Timeout, logger),
		pipeline.NewWriter(db, a.Documents, a.Invoices, logger),
		logger,
	)
	return a, nil
}

// Close runs the release funcs in reverse order.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

// NewGenerator selects the configured model backend behind a retrying
// wrapper. A backend that cannot be constructed is replaced by one whose
// calls report missing credentials, so the pipeline fails per document
// instead of at startup.
func NewGenerator(ctx context.Context, cfg common.LLMConfig, logger *slog.Logger) (llm.Generator, func()) {
	var (
		base    llm.Generator
		closeFn = func() {}
	)

	switch cfg.Provider {
	case "openai":
		base = openai.NewClient(openai.Config{
			APIKey:      cfg.APIKey,
			BaseURL:     cfg.BaseURL,
			Model:       cfg.Model,
			Temperature: cfg.Temperature,
			Timeout:     cfg.Timeout,
		}, logger)
	case "gigachat":
		c, err := gigachat.New(ctx, gigachat.Config{
			APIKey:             cfg.APIKey,
			Scope:              cfg.GigaChatScope,
			Model:              cfg.Model,
			InsecureSkipVerify: cfg.GigaChatInsecure,
		}, logger)
		if err != nil {
			logger.Error("llm backend unavailable", "provider", cfg.Provider, "error", err)
			base = llm.Unconfigured{Provider: cfg.Provider, Reason: err.Error()}
			break
		}
		base = c
		closeFn = func() { _ = c.Close() }
	case "gemini", "":
		c, err := gemini.New(ctx, gemini.Config{
			Project:     cfg.GCPProject,
			Region:      cfg.GCPRegion,
			Model:       cfg.Model,
			Temperature: cfg.Temperature,
		}, logger)
		if err != nil {
			logger.Error("llm backend unavailable", "provider", "gemini", "error", err)
			base = llm.Unconfigured{Provider: "gemini", Reason: err.Error()}
			break
		}
		base = c
		closeFn = func() { _ = c.Close() }
	default:
		base = llm.Unconfigured{Provider: cfg.Provider, Reason: fmt.Sprintf("unknown provider %q", cfg.Provider)}
	}

	return llm.NewRetryGenerator(base, cfg.MaxAttempts, cfg.RetryInitial, cfg.RetryMax, logger), closeFn
}

// NewOCR picks the OCR engine and PDF rasterizer. Anything other than the
// in-process choices, or an in-process choice this binary was built
// without, falls back to the tesseract and pdftoppm binaries.
func NewOCR(cfg common.OCRConfig, logger *slog.Logger) *ocr.Extractor {
	ocrCfg := ocr.Config{
		Pdftoppm:    cfg.Pdftoppm,
		Tesseract:   cfg.Tesseract,
		Languages:   cfg.Languages,
		DPI:         cfg.DPI,
		MaxPages:    cfg.MaxPages,
		TessdataDir: cfg.TessdataDir,
	}
	engine, raster := ocrBackends(cfg, logger)
	logger.Info("ocr configured", "engine", cfg.Engine, "rasterizer", cfg.Rasterizer, "languages", cfg.Languages, "max_pages", cfg.MaxPages)
	return ocr.NewExtractor(ocrCfg, engine, raster, logger)
}

// ocrBackends returns the in-process engine and rasterizer named by cfg. A
// nil result selects the command line tool.
func ocrBackends(cfg common.OCRConfig, logger *slog.Logger) (ocr.Engine, ocr.Rasterizer) {
	var engine ocr.Engine
	if cfg.Engine == "gosseract" {
		if engine = inProcessEngine(cfg); engine == nil {
			logger.Warn("ocr.engine.unavailable", "engine", cfg.Engine, "hint", "build with -tags gosseract")
		}
	}
	var raster ocr.Rasterizer
	if cfg.Rasterizer == "fitz" {
		if raster = inProcessRasterizer(); raster == nil {
			logger.Warn("ocr.rasterizer.unavailable", "rasterizer", cfg.Rasterizer, "hint", "build with -tags fitz")
		}
	}
	return engine, raster
}
