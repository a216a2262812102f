// Package pipeline runs one document through text extraction,
// classification, field extraction, audit and persistence.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/invoice-extractor/constants"
	"github.com/joseph-ayodele/invoice-extractor/internal/classify"
	"github.com/joseph-ayodele/invoice-extractor/internal/common"
	"github.com/joseph-ayodele/invoice-extractor/internal/extract"
	"github.com/joseph-ayodele/invoice-extractor/internal/llm"
	"github.com/joseph-ayodele/invoice-extractor/internal/repository"
	"github.com/joseph-ayodele/invoice-extractor/internal/storage"
)

// terminalWriteTimeout bounds the fallback and FAILED writes, which run even
// when the caller's context is already done.
const terminalWriteTimeout = 15 * time.Second

type SourceResolver interface {
	Resolve(ctx context.Context, path string) (*storage.LocalFile, error)
}

type TextExtractor interface {
	ExtractText(ctx context.Context, path string) extract.TextExtractionResult
}

type FieldExtractor interface {
	Extract(ctx context.Context, text string, docType constants.DocType) (llm.Extraction, error)
}

type Auditor interface {
	Audit(ctx context.Context, data llm.Extraction) llm.ValidationOutcome
}

// Processor coordinates the stages of a single run. Stages execute strictly
// in sequence; concurrent runs share nothing but the store.
type Processor struct {
	source  SourceResolver
	docs    repository.DocumentRepository
	text    TextExtractor
	fields  FieldExtractor
	auditor Auditor
	writer  *Writer
	logger  *slog.Logger
}

func NewProcessor(
	source SourceResolver,
	docs repository.DocumentRepository,
	text TextExtractor,
	fields FieldExtractor,
	auditor Auditor,
	writer *Writer,
	logger *slog.Logger,
) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{
		source:  source,
		docs:    docs,
		text:    text,
		fields:  fields,
		auditor: auditor,
		writer:  writer,
		logger:  logger,
	}
}

// Process runs documentID, stored at filePath, to a terminal status. On
// failure the document is FAILED, raw text is kept as a fallback record
// when there was any, and the stage's error is returned.
func (p *Processor) Process(ctx context.Context, filePath string, documentID int64) (res *Result, err error) {
	runID := uuid.NewString()
	ctx = common.WithRunID(common.WithDocumentID(ctx, documentID), runID)
	log := p.logger.With("run_id", runID, "document_id", documentID)
	start := time.Now()

	doc, err := p.docs.Get(ctx, documentID)
	if err != nil {
		log.Error("pipeline.process.lookup_failed", "error", err)
		return nil, err
	}
	if doc.Status.IsTerminal() {
		log.Warn("pipeline.process.already_processed", "status", doc.Status)
		return nil, fmt.Errorf("document %d is %s: %w", documentID, doc.Status, common.ErrAlreadyProcessed)
	}

	changed, err := p.writer.Claim(ctx, documentID)
	if err != nil {
		log.Error("pipeline.process.claim_failed", "error", err)
		return nil, err
	}
	if !changed {
		log.Warn("pipeline.process.claimed_elsewhere")
		return nil, fmt.Errorf("document %d is owned by another run: %w", documentID, common.ErrAlreadyProcessed)
	}
	log.Info("pipeline.process.start", "file_path", filePath)

	var rawText string
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: pipeline panic: %v", common.ErrInternal, r)
			res = nil
			p.fail(ctx, log, documentID, filePath, rawText, err)
		}
	}()

	file, err := p.source.Resolve(ctx, filePath)
	if err != nil {
		// nothing was extracted, so there is no fallback to write
		p.fail(ctx, log, documentID, filePath, "", err)
		return nil, err
	}
	defer func() {
		if cerr := file.Close(); cerr != nil {
			log.Warn("pipeline.process.cleanup_failed", "error", cerr)
		}
	}()

	text := p.text.ExtractText(ctx, file.Path)
	rawText = text.Text

	docType := classify.Classify(rawText)
	log.Info("pipeline.process.classified", "doc_type", docType, "chars", len(rawText), "ocr_failed", text.Failed)

	data, err := p.fields.Extract(ctx, rawText, docType)
	if err != nil {
		p.fail(ctx, log, documentID, filePath, rawText, err)
		return nil, err
	}

	verdict := p.auditor.Audit(ctx, data)

	inv, warnings := BuildInvoice(documentID, filePath, rawText, docType, data)
	for _, w := range warnings {
		log.Warn("pipeline.record.warning", "warning", w)
	}

	invoiceID, err := p.writer.Commit(ctx, inv)
	if err != nil {
		p.fail(ctx, log, documentID, filePath, rawText, err)
		return nil, err
	}

	log.Info("pipeline.process.completed",
		"invoice_id", invoiceID,
		"doc_type", docType,
		"verdict", verdict.Status,
		"audit_skipped", verdict.Skipped,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return &Result{
		Extraction: data,
		DocumentID: documentID,
		InvoiceID:  invoiceID,
		DocType:    docType,
		Validation: verdict,
		Warnings:   warnings,
	}, nil
}

// fail runs the fallback and FAILED writes in their own transactions. Their
// errors are logged and never replace cause.
func (p *Processor) fail(ctx context.Context, log *slog.Logger, documentID int64, filePath, rawText string, cause error) {
	log.Error("pipeline.process.failed", "kind", common.Kind(cause), "error", cause)

	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), terminalWriteTimeout)
	defer cancel()

	if _, err := p.writer.Fallback(wctx, documentID, filePath, rawText); err != nil {
		log.Error("pipeline.process.fallback_lost", "error", err, "cause", cause)
	}
	changed, err := p.writer.MarkFailed(wctx, documentID)
	if err != nil {
		log.Error("pipeline.process.status_lost", "error", err, "cause", cause)
		return
	}
	if !changed {
		log.Warn("pipeline.process.status_unchanged", "cause", cause)
	}
}
