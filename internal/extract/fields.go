package extract

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/joseph-ayodele/invoice-extractor/constants"
	"github.com/joseph-ayodele/invoice-extractor/internal/common"
	"github.com/joseph-ayodele/invoice-extractor/internal/llm"
)

const DefaultModelTimeout = 45 * time.Second

// FieldExtractor is stage 3: text -> llm.Extraction. Every failure it
// returns matches common.ErrAIExtraction.
type FieldExtractor struct {
	gen     llm.Generator
	prompts llm.Prompts
	timeout time.Duration
	logger  *slog.Logger
}

func NewFieldExtractor(gen llm.Generator, prompts llm.Prompts, timeout time.Duration, logger *slog.Logger) *FieldExtractor {
	if timeout <= 0 {
		timeout = DefaultModelTimeout
	}
	return &FieldExtractor{
		gen:     gen,
		prompts: prompts,
		timeout: timeout,
		logger:  logger,
	}
}

func (f *FieldExtractor) Extract(ctx context.Context, text string, docType constants.DocType) (llm.Extraction, error) {
	start := time.Now()
	docID := documentID(ctx)

	if strings.TrimSpace(text) == "" {
		return llm.Extraction{}, common.AIExtractionError("no text to extract fields from", nil)
	}

	f.logger.Info("extract.fields.start", "document_id", docID, "doc_type", docType, "text_len", len(text))

	system, prompt := f.prompts.ExtractionPrompt(docType, text)

	callCtx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()
	raw, err := f.gen.Generate(callCtx, system, prompt)
	if err != nil {
		msg := "model call failed"
		switch {
		case errors.Is(err, common.ErrMissingCredentials):
			msg = "model credentials not configured"
		case errors.Is(err, context.DeadlineExceeded):
			msg = "model call timed out"
		}
		f.logger.Error("extract.fields.model_error", "document_id", docID, "error", err, "elapsed_ms", time.Since(start).Milliseconds())
		return llm.Extraction{}, common.AIExtractionError(msg, err)
	}

	out, _, err := llm.ParseExtraction(raw, f.logger)
	if err != nil {
		f.logger.Error("extract.fields.parse_error",
			"document_id", docID,
			"error", err,
			"response_len", len(raw),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		var reported *llm.ReportedError
		if errors.As(err, &reported) {
			return llm.Extraction{}, common.AIExtractionError(reported.Message, err)
		}
		return llm.Extraction{}, common.AIExtractionError("unparsable model response", err)
	}

	f.logger.Info("extract.fields.ok",
		"document_id", docID,
		"vendor", deref(out.VendorInfo.Name),
		"number", deref(out.InvoiceDetails.Number),
		"date", deref(out.InvoiceDetails.Date),
		"currency", deref(out.Financials.Currency),
		"items", len(out.Items),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return out, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
