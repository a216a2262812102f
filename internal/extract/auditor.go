package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/joseph-ayodele/invoice-extractor/internal/common"
	"github.com/joseph-ayodele/invoice-extractor/internal/llm"
)

// Auditor is stage 4. It never fails: anything that stops the audit from
// running yields llm.SkippedOutcome.
type Auditor struct {
	gen     llm.Generator
	prompts llm.Prompts
	timeout time.Duration
	now     func() time.Time
	logger  *slog.Logger
}

type AuditorOption func(*Auditor)

// WithClock fixes the date the future-date rule is checked against.
func WithClock(now func() time.Time) AuditorOption {
	return func(a *Auditor) { a.now = now }
}

func NewAuditor(gen llm.Generator, prompts llm.Prompts, timeout time.Duration, logger *slog.Logger, opts ...AuditorOption) *Auditor {
	if timeout <= 0 {
		timeout = DefaultModelTimeout
	}
	a := &Auditor{
		gen:     gen,
		prompts: prompts,
		timeout: timeout,
		now:     time.Now,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *Auditor) Audit(ctx context.Context, data llm.Extraction) (out llm.ValidationOutcome) {
	start := time.Now()
	docID := documentID(ctx)

	defer func() {
		if r := recover(); r != nil {
			out = a.skip(docID, common.AIValidationError("auditor panicked", fmt.Errorf("%v", r)))
		}
	}()

	input, err := json.Marshal(data)
	if err != nil {
		return a.skip(docID, common.AIValidationError("encode extraction", err))
	}
	system, prompt := a.prompts.AuditPrompt(input, a.now())

	callCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()
	raw, err := a.gen.Generate(callCtx, system, prompt)
	if err != nil {
		return a.skip(docID, common.AIValidationError("auditor call failed", err))
	}

	verdict, err := llm.ParseVerdict(raw)
	if err != nil {
		return a.skip(docID, common.AIValidationError("unparsable auditor response", err))
	}

	a.logger.Info("extract.audit.ok",
		"document_id", docID,
		"status", verdict.Status,
		"reasons", len(verdict.Reasons),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return verdict
}

func (a *Auditor) skip(docID any, err error) llm.ValidationOutcome {
	a.logger.Warn("extract.audit.skipped", "document_id", docID, "error", err)
	return llm.SkippedOutcome(err.Error())
}
