package repository

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/joseph-ayodele/invoice-extractor/constants"
	"github.com/joseph-ayodele/invoice-extractor/internal/common"
	"github.com/joseph-ayodele/invoice-extractor/internal/entity"
)

func testDB(t *testing.T) (*DB, *slog.Logger) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ctx := context.Background()
	db, err := OpenSQLite(ctx, ":memory:", logger)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { db.Close(logger) })
	if err := db.Migrate(ctx, logger); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db, logger
}

func ptr[T any](v T) *T { return &v }

func TestDocumentLifecycle(t *testing.T) {
	db, logger := testDB(t)
	ctx := context.Background()
	docs := NewDocumentRepository(db, logger)

	doc, err := docs.Create(ctx, "/data/in/inv-001.pdf", ptr("batch-1"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if doc.ID == 0 || doc.Filename != "inv-001.pdf" || doc.Status != constants.StatusPending {
		t.Fatalf("unexpected document: %+v", doc)
	}

	got, err := docs.Get(ctx, doc.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.BatchID == nil || *got.BatchID != "batch-1" || got.UploadDate.IsZero() {
		t.Fatalf("unexpected row: %+v", got)
	}

	steps := []struct {
		to   constants.DocumentStatus
		want bool
	}{
		{constants.StatusCompleted, false}, // PENDING cannot complete
		{constants.StatusProcessing, true},
		{constants.StatusProcessing, false}, // already PROCESSING
		{constants.StatusCompleted, true},
		{constants.StatusFailed, false}, // terminal
	}
	for i, s := range steps {
		changed, err := docs.Transition(ctx, db.SQL, doc.ID, s.to)
		if err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
		if changed != s.want {
			t.Fatalf("step %d to %s: changed=%v, want %v", i, s.to, changed, s.want)
		}
	}

	got, _ = docs.Get(ctx, doc.ID)
	if got.Status != constants.StatusCompleted {
		t.Fatalf("status = %s, want COMPLETED", got.Status)
	}

	if _, err := docs.Transition(ctx, db.SQL, doc.ID, constants.StatusPending); !errors.Is(err, common.ErrInvalidInput) {
		t.Fatalf("transition to PENDING: err = %v, want ErrInvalidInput", err)
	}
}

func TestDocumentNotFound(t *testing.T) {
	db, logger := testDB(t)
	_, err := NewDocumentRepository(db, logger).Get(context.Background(), 404)
	if !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestInvoiceRoundTrip(t *testing.T) {
	db, logger := testDB(t)
	ctx := context.Background()
	docs := NewDocumentRepository(db, logger)
	invoices := NewInvoiceRepository(db, logger)

	doc, err := docs.Create(ctx, "/tmp/a.png", nil)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	date := time.Date(2023, 10, 25, 0, 0, 0, 0, time.UTC)
	inv := &entity.Invoice{
		DocumentID:    doc.ID,
		InvoiceNumber: ptr("INV-001"),
		Date:          &date,
		Vendor:        ptr("Acme Corp"),
		Total:         ptr(500.0),
		Currency:      ptr("USD"),
		DocType:       string(constants.DocTypeInvoice),
		RawContent:    ptr("INVOICE"),
		LineItems: []entity.LineItem{
			{Description: ptr("Widget"), Quantity: ptr(2.0), UnitPrice: ptr(100.0), TotalPrice: ptr(200.0)},
			{Description: ptr("Gadget"), Quantity: ptr(3.0), UnitPrice: ptr(100.0), TotalPrice: ptr(300.0), Discount: ptr(5.0)},
		},
	}

	err = WithTx(ctx, db, logger, func(tx *sql.Tx) error {
		_, err := invoices.Insert(ctx, tx, inv)
		return err
	})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}

	got, err := invoices.GetByDocumentID(ctx, doc.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.ID != inv.ID || *got.InvoiceNumber != "INV-001" || *got.Vendor != "Acme Corp" || *got.Total != 500 {
		t.Fatalf("unexpected invoice: %+v", got)
	}
	if got.Date == nil || !got.Date.Equal(date) {
		t.Fatalf("date = %v, want %v", got.Date, date)
	}
	if got.Tax != nil || got.Verified {
		t.Fatalf("tax should be NULL and verified false: %+v", got)
	}
	if len(got.LineItems) != 2 {
		t.Fatalf("line items = %d, want 2", len(got.LineItems))
	}
	for i, want := range inv.LineItems {
		li := got.LineItems[i]
		if *li.Description != *want.Description || *li.Quantity != *want.Quantity || *li.UnitPrice != *want.UnitPrice {
			t.Fatalf("item %d = %+v, want %+v", i, li, want)
		}
	}
	if got.LineItems[0].Discount != nil || *got.LineItems[1].Discount != 5 {
		t.Fatalf("discounts not preserved: %+v", got.LineItems)
	}
}

func TestWithTxRollsBack(t *testing.T) {
	db, logger := testDB(t)
	ctx := context.Background()
	docs := NewDocumentRepository(db, logger)
	invoices := NewInvoiceRepository(db, logger)

	doc, _ := docs.Create(ctx, "/tmp/b.pdf", nil)
	boom := errors.New("boom")

	err := WithTx(ctx, db, logger, func(tx *sql.Tx) error {
		if _, err := invoices.Insert(ctx, tx, &entity.Invoice{DocumentID: doc.ID, DocType: "invoice"}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}
	if _, err := invoices.GetByDocumentID(ctx, doc.ID); !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("invoice should have been rolled back, err = %v", err)
	}
}

func TestInvoiceUniquePerDocument(t *testing.T) {
	db, logger := testDB(t)
	ctx := context.Background()
	doc, _ := NewDocumentRepository(db, logger).Create(ctx, "/tmp/c.pdf", nil)
	invoices := NewInvoiceRepository(db, logger)

	if _, err := invoices.Insert(ctx, db.SQL, &entity.Invoice{DocumentID: doc.ID, DocType: "receipt"}); err != nil {
		t.Fatalf("first insert: %v", err)
	}
	if _, err := invoices.Insert(ctx, db.SQL, &entity.Invoice{DocumentID: doc.ID, DocType: "error_fallback"}); err == nil {
		t.Fatal("second insert for the same document should violate the unique constraint")
	}
}

func TestInvoiceRequiresDocument(t *testing.T) {
	db, logger := testDB(t)
	_, err := NewInvoiceRepository(db, logger).Insert(context.Background(), db.SQL, &entity.Invoice{DocumentID: 999, DocType: "invoice"})
	if err == nil {
		t.Fatal("insert referencing a missing document should fail")
	}
}
