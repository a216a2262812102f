package pipeline

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/joseph-ayodele/invoice-extractor/constants"
	"github.com/joseph-ayodele/invoice-extractor/internal/common"
	"github.com/joseph-ayodele/invoice-extractor/internal/entity"
	"github.com/joseph-ayodele/invoice-extractor/internal/extract"
	"github.com/joseph-ayodele/invoice-extractor/internal/llm"
	"github.com/joseph-ayodele/invoice-extractor/internal/repository"
	"github.com/joseph-ayodele/invoice-extractor/internal/storage"
)

const invoiceText = "INVOICE\nInvoice Number: INV-001\nDate: 2023-10-25\nVendor: Acme Corp\nTotal: 500.00\nCurrency: USD"

const invoiceReply = `{"invoice_details":{"number":"INV-001","date":"2023-10-25"},"vendor_info":{"name":"Acme Corp"},"financials":{"total_amount":500.00,"currency":"USD"},"items":[]}`

type fakeText struct {
	text  string
	calls int
}

func (f *fakeText) ExtractText(context.Context, string) extract.TextExtractionResult {
	f.calls++
	return extract.TextExtractionResult{Text: f.text}
}

type fakeFields struct {
	out   llm.Extraction
	err   error
	panic bool
}

func (f fakeFields) Extract(context.Context, string, constants.DocType) (llm.Extraction, error) {
	if f.panic {
		panic("model client nil")
	}
	return f.out, f.err
}

type fakeAuditor struct{ out llm.ValidationOutcome }

func (f fakeAuditor) Audit(context.Context, llm.Extraction) llm.ValidationOutcome { return f.out }

func reply(s string) llm.Generator {
	return llm.GeneratorFunc(func(context.Context, string, string) (string, error) { return s, nil })
}

type harness struct {
	db       *repository.DB
	docs     repository.DocumentRepository
	invoices repository.InvoiceRepository
	writer   *Writer
	logger   *slog.Logger
	dir      string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ctx := context.Background()
	db, err := repository.OpenSQLite(ctx, ":memory:", logger)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { db.Close(logger) })
	if err := db.Migrate(ctx, logger); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	docs := repository.NewDocumentRepository(db, logger)
	invoices := repository.NewInvoiceRepository(db, logger)
	return &harness{
		db:       db,
		docs:     docs,
		invoices: invoices,
		writer:   NewWriter(db, docs, invoices, logger),
		logger:   logger,
		dir:      t.TempDir(),
	}
}

// document creates a PENDING document backed by a real file.
func (h *harness) document(t *testing.T, name string) (*entity.Document, string) {
	t.Helper()
	path := filepath.Join(h.dir, name)
	if err := os.WriteFile(path, []byte("scan"), 0o600); err != nil {
		t.Fatal(err)
	}
	doc, err := h.docs.Create(context.Background(), path, nil)
	if err != nil {
		t.Fatalf("create document: %v", err)
	}
	return doc, path
}

func (h *harness) processor(text TextExtractor, fields FieldExtractor, auditor Auditor) *Processor {
	return NewProcessor(storage.NewResolver(nil, "", h.logger), h.docs, text, fields, auditor, h.writer, h.logger)
}

func (h *harness) status(t *testing.T, id int64) constants.DocumentStatus {
	t.Helper()
	doc, err := h.docs.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("get document: %v", err)
	}
	return doc.Status
}

func (h *harness) invoiceCount(t *testing.T, documentID int64) int {
	t.Helper()
	var n int
	err := h.db.SQL.QueryRowContext(context.Background(), "SELECT COUNT(*) FROM invoices WHERE document_id = ?", documentID).Scan(&n)
	if err != nil {
		t.Fatalf("count invoices: %v", err)
	}
	return n
}

func TestProcessInvoiceEndToEnd(t *testing.T) {
	h := newHarness(t)
	doc, path := h.document(t, "inv-001.pdf")
	clock := func() time.Time { return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC) }
	p := h.processor(
		&fakeText{text: invoiceText},
		extract.NewFieldExtractor(reply("```json\n"+invoiceReply+"\n```"), llm.DefaultPrompts(), time.Second, h.logger),
		extract.NewAuditor(reply(`{"status":"valid"}`), llm.DefaultPrompts(), time.Second, h.logger, extract.WithClock(clock)),
	)

	res, err := p.Process(context.Background(), path, doc.ID)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if res.DocumentID != doc.ID || res.InvoiceID == 0 || res.DocType != constants.DocTypeInvoice {
		t.Fatalf("result = %+v", res)
	}
	if !res.Validation.Valid() || res.Validation.Skipped {
		t.Fatalf("validation = %+v", res.Validation)
	}

	inv, err := h.invoices.GetByDocumentID(context.Background(), doc.ID)
	if err != nil {
		t.Fatalf("get invoice: %v", err)
	}
	if inv.ID != res.InvoiceID || *inv.InvoiceNumber != "INV-001" || *inv.Vendor != "Acme Corp" || *inv.Total != 500 {
		t.Fatalf("invoice = %+v", inv)
	}
	if inv.Date == nil || inv.Date.Format(time.DateOnly) != "2023-10-25" {
		t.Fatalf("date = %v", inv.Date)
	}
	if inv.DocType != "invoice" || *inv.RawContent != invoiceText || *inv.FilePath != path || inv.Verified {
		t.Fatalf("invoice metadata = %+v", inv)
	}
	if len(inv.LineItems) != 0 {
		t.Fatalf("line items = %d, want 0", len(inv.LineItems))
	}
	if got := h.status(t, doc.ID); got != constants.StatusCompleted {
		t.Fatalf("status = %s, want COMPLETED", got)
	}
}

func TestResultJSON(t *testing.T) {
	num := "INV-001"
	res := Result{
		Extraction: llm.Extraction{InvoiceDetails: llm.InvoiceDetails{Number: &num}, Items: []llm.Item{}},
		DocumentID: 7,
		InvoiceID:  3,
		DocType:    constants.DocTypeInvoice,
		Validation: llm.ValidationOutcome{Status: llm.VerdictValid},
	}
	b, err := json.Marshal(res)
	if err != nil {
		t.Fatal(err)
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		t.Fatal(err)
	}
	if m["document_id"] != 7.0 || m["invoice_id"] != 3.0 {
		t.Fatalf("ids missing: %s", b)
	}
	if m["invoice_details"].(map[string]any)["number"] != "INV-001" {
		t.Fatalf("extraction fields not at top level: %s", b)
	}
	if !strings.Contains(string(b), `"validation_result":{"status":"valid","reasons":[]}`) {
		t.Fatalf("validation_result = %s", b)
	}
}

func TestProcessLineItemsRoundTrip(t *testing.T) {
	h := newHarness(t)
	doc, path := h.document(t, "r.png")
	str := func(s string) *string { return &s }
	num := func(f float64) *float64 { return &f }
	items := []llm.Item{
		{Description: str("Coffee"), Quantity: num(2), UnitPrice: num(3.5), TotalPrice: num(7)},
		{Description: str("Bagel"), Quantity: num(1), UnitPrice: num(2.25), TotalPrice: num(2.25)},
		{Description: str("Juice"), Quantity: num(3), UnitPrice: num(4), TotalPrice: num(12), Discount: num(1)},
	}
	p := h.processor(&fakeText{text: "RECEIPT"}, fakeFields{out: llm.Extraction{Items: items}}, fakeAuditor{out: llm.SkippedOutcome("down")})

	res, err := p.Process(context.Background(), path, doc.ID)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if !res.Validation.Skipped || res.DocType != constants.DocTypeReceipt {
		t.Fatalf("result = %+v", res)
	}
	got, err := h.invoices.ListLineItems(context.Background(), res.InvoiceID)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != len(items) {
		t.Fatalf("line items = %d, want %d", len(got), len(items))
	}
	for i, want := range items {
		if *got[i].Description != *want.Description || *got[i].Quantity != *want.Quantity || *got[i].UnitPrice != *want.UnitPrice {
			t.Fatalf("item %d = %+v, want %+v", i, got[i], want)
		}
	}
}

func TestProcessFailures(t *testing.T) {
	extractionErr := common.AIExtractionError("unparsable model response", errors.New("bad json"))

	tests := []struct {
		name         string
		text         string
		fields       fakeFields
		missingFile  bool
		wantErr      error
		wantFallback bool
		wantOCRCalls int
	}{
		{"extraction fails with text", "INVOICE 42", fakeFields{err: extractionErr}, false, common.ErrAIExtraction, true, 1},
		{"extraction fails without text", "", fakeFields{err: extractionErr}, false, common.ErrAIExtraction, false, 1},
		{"whitespace text is still kept", "\f\n", fakeFields{err: extractionErr}, false, common.ErrAIExtraction, true, 1},
		{"missing file", "INVOICE", fakeFields{}, true, common.ErrInfrastructure, false, 0},
		{"stage panics", "INVOICE 42", fakeFields{panic: true}, false, common.ErrInternal, true, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			doc, path := h.document(t, "a.pdf")
			if tt.missingFile {
				if err := os.Remove(path); err != nil {
					t.Fatal(err)
				}
			}
			text := &fakeText{text: tt.text}
			p := h.processor(text, tt.fields, fakeAuditor{})

			res, err := p.Process(context.Background(), path, doc.ID)
			if res != nil || !errors.Is(err, tt.wantErr) {
				t.Fatalf("Process = %v, %v; want error %v", res, err, tt.wantErr)
			}
			if text.calls != tt.wantOCRCalls {
				t.Fatalf("ocr calls = %d, want %d", text.calls, tt.wantOCRCalls)
			}
			if got := h.status(t, doc.ID); got != constants.StatusFailed {
				t.Fatalf("status = %s, want FAILED", got)
			}

			inv, err := h.invoices.GetByDocumentID(context.Background(), doc.ID)
			if !tt.wantFallback {
				if !errors.Is(err, common.ErrNotFound) {
					t.Fatalf("expected no record, got %+v, %v", inv, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("fallback record: %v", err)
			}
			if inv.DocType != "error_fallback" || *inv.RawContent != tt.text || *inv.FilePath != path {
				t.Fatalf("fallback = %+v", inv)
			}
			if inv.InvoiceNumber != nil || inv.Vendor != nil || inv.Total != nil || len(inv.LineItems) != 0 {
				t.Fatalf("fallback carries header fields: %+v", inv)
			}
		})
	}
}

func TestProcessCommitFailureStillMarksFailed(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	doc, path := h.document(t, "dup.pdf")

	// an existing record makes both the commit and the fallback hit the
	// unique document_id constraint
	err := repository.WithTx(ctx, h.db, h.logger, func(tx *sql.Tx) error {
		_, err := h.invoices.Insert(ctx, tx, &entity.Invoice{DocumentID: doc.ID, DocType: "invoice"})
		return err
	})
	if err != nil {
		t.Fatal(err)
	}

	p := h.processor(&fakeText{text: "INVOICE"}, fakeFields{}, fakeAuditor{})
	if _, err := p.Process(ctx, path, doc.ID); !errors.Is(err, common.ErrPersistence) {
		t.Fatalf("err = %v, want ErrPersistence", err)
	}
	if got := h.status(t, doc.ID); got != constants.StatusFailed {
		t.Fatalf("status = %s, want FAILED", got)
	}
	if n := h.invoiceCount(t, doc.ID); n != 1 {
		t.Fatalf("invoices = %d, want the original 1", n)
	}
}

func TestProcessIdempotencyGuard(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	p := h.processor(&fakeText{text: invoiceText}, fakeFields{}, fakeAuditor{out: llm.ValidationOutcome{Status: llm.VerdictValid}})

	if _, err := p.Process(ctx, "/nowhere.pdf", 999); !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("unknown document: err = %v", err)
	}

	doc, path := h.document(t, "once.pdf")
	if _, err := p.Process(ctx, path, doc.ID); err != nil {
		t.Fatalf("first run: %v", err)
	}
	_, err := p.Process(ctx, path, doc.ID)
	if !errors.Is(err, common.ErrAlreadyProcessed) {
		t.Fatalf("second run: err = %v, want ErrAlreadyProcessed", err)
	}
	if got := h.status(t, doc.ID); got != constants.StatusCompleted {
		t.Fatalf("status = %s, want COMPLETED", got)
	}
	if n := h.invoiceCount(t, doc.ID); n != 1 {
		t.Fatalf("invoices = %d, want 1", n)
	}

	owned, path := h.document(t, "owned.pdf")
	if _, err := h.writer.Claim(ctx, owned.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := p.Process(ctx, path, owned.ID); !errors.Is(err, common.ErrAlreadyProcessed) {
		t.Fatalf("claimed document: err = %v, want ErrAlreadyProcessed", err)
	}
	if got := h.status(t, owned.ID); got != constants.StatusProcessing {
		t.Fatalf("status = %s, a rejected run must not touch it", got)
	}
}

// claimFailingDocs fails every move to PROCESSING.
type claimFailingDocs struct {
	repository.DocumentRepository
}

func (d claimFailingDocs) Transition(ctx context.Context, q repository.Querier, id int64, to constants.DocumentStatus) (bool, error) {
	if to == constants.StatusProcessing {
		return false, errors.New("database is locked")
	}
	return d.DocumentRepository.Transition(ctx, q, id, to)
}

func TestProcessClaimErrorLeavesPending(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	doc, path := h.document(t, "locked.pdf")

	text := &fakeText{text: invoiceText}
	writer := NewWriter(h.db, claimFailingDocs{h.docs}, h.invoices, h.logger)
	p := NewProcessor(storage.NewResolver(nil, "", h.logger), h.docs, text, fakeFields{}, fakeAuditor{}, writer, h.logger)

	if _, err := p.Process(ctx, path, doc.ID); !errors.Is(err, common.ErrPersistence) {
		t.Fatalf("err = %v, want ErrPersistence", err)
	}
	if text.calls != 0 {
		t.Fatalf("ocr ran %d times before a claim", text.calls)
	}
	if got := h.status(t, doc.ID); got != constants.StatusPending {
		t.Fatalf("status = %s, want PENDING for a later resume", got)
	}
	if n := h.invoiceCount(t, doc.ID); n != 0 {
		t.Fatalf("invoices = %d, want 0", n)
	}

	if _, err := h.processor(text, fakeFields{}, fakeAuditor{}).Process(ctx, path, doc.ID); err != nil {
		t.Fatalf("resumed run: %v", err)
	}
	if got := h.status(t, doc.ID); got != constants.StatusCompleted {
		t.Fatalf("status = %s, want COMPLETED", got)
	}
}

func TestProcessCancelledContextStillTerminal(t *testing.T) {
	h := newHarness(t)
	doc, path := h.document(t, "slow.pdf")
	ctx, cancel := context.WithCancel(context.Background())

	fields := llm.GeneratorFunc(func(ctx context.Context, _, _ string) (string, error) {
		cancel()
		return "", ctx.Err()
	})
	p := h.processor(&fakeText{text: "INVOICE"}, extract.NewFieldExtractor(fields, llm.DefaultPrompts(), time.Second, h.logger), fakeAuditor{})

	if _, err := p.Process(ctx, path, doc.ID); !errors.Is(err, common.ErrAIExtraction) {
		t.Fatalf("err = %v", err)
	}
	if got := h.status(t, doc.ID); got != constants.StatusFailed {
		t.Fatalf("status = %s, want FAILED", got)
	}
	if n := h.invoiceCount(t, doc.ID); n != 1 {
		t.Fatalf("fallback record missing after cancellation")
	}
}

func TestBuildInvoice(t *testing.T) {
	str := func(s string) *string { return &s }
	num := func(f float64) *float64 { return &f }

	inv, warnings := BuildInvoice(1, "/f.pdf", "raw", constants.DocTypeGeneric, llm.Extraction{
		VendorInfo:     llm.VendorInfo{Name: str("  ")},
		InvoiceDetails: llm.InvoiceDetails{Date: str("25th of Octember")},
		Financials:     llm.Financials{TotalAmount: num(-3), Currency: str("usd")},
	})
	if inv.Vendor != nil || inv.Date != nil || *inv.Total != -3 {
		t.Fatalf("invoice = %+v", inv)
	}
	if len(warnings) < 3 {
		t.Fatalf("warnings = %v, want date, currency and amount problems", warnings)
	}

	inv, warnings = BuildInvoice(1, "/f.pdf", "raw", constants.DocTypeInvoice, llm.Extraction{
		InvoiceDetails: llm.InvoiceDetails{Date: str("2023-10-25")},
	})
	if len(warnings) != 0 || inv.Date.Format(time.DateOnly) != "2023-10-25" {
		t.Fatalf("invoice = %+v, warnings = %v", inv, warnings)
	}
}

func TestParseDocumentDate(t *testing.T) {
	for _, s := range []string{"2023-10-25", "2023/10/25", "25.10.2023", "October 25, 2023", "Oct 25, 2023", "25 October 2023"} {
		d, ok := ParseDocumentDate(s)
		if !ok || d.Format(time.DateOnly) != "2023-10-25" {
			t.Errorf("ParseDocumentDate(%q) = %v, %v", s, d, ok)
		}
	}
	if _, ok := ParseDocumentDate("soon"); ok {
		t.Error("garbage date parsed")
	}
}

func TestLookup(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	doc, path := h.document(t, "l.pdf")

	view, err := Lookup(ctx, h.docs, h.invoices, doc.ID)
	if err != nil || view.Invoice != nil || view.Document.Status != constants.StatusPending {
		t.Fatalf("view = %+v, %v", view, err)
	}

	p := h.processor(&fakeText{text: "INVOICE 1"}, fakeFields{err: common.AIExtractionError("down", nil)}, fakeAuditor{})
	_, _ = p.Process(ctx, path, doc.ID)

	view, err = Lookup(ctx, h.docs, h.invoices, doc.ID)
	if err != nil || !view.Fallback || view.Document.Status != constants.StatusFailed {
		t.Fatalf("view = %+v, %v", view, err)
	}

	if _, err := Lookup(ctx, h.docs, h.invoices, 12345); !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("err = %v", err)
	}
}
