package pipeline

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/joseph-ayodele/invoice-extractor/constants"
	"github.com/joseph-ayodele/invoice-extractor/internal/common"
	"github.com/joseph-ayodele/invoice-extractor/internal/entity"
	"github.com/joseph-ayodele/invoice-extractor/internal/repository"
)

// Writer owns the three independent transactional regions of a run: the
// primary commit, the raw-text fallback and the FAILED status update. None
// of them is nested in another.
type Writer struct {
	db       *repository.DB
	docs     repository.DocumentRepository
	invoices repository.InvoiceRepository
	logger   *slog.Logger
}

func NewWriter(db *repository.DB, docs repository.DocumentRepository, invoices repository.InvoiceRepository, logger *slog.Logger) *Writer {
	return &Writer{
		db:       db,
		docs:     docs,
		invoices: invoices,
		logger:   logger,
	}
}

// Commit inserts the invoice with its line items and moves the document
// PROCESSING -> COMPLETED in one transaction. Errors match
// common.ErrPersistence.
func (w *Writer) Commit(ctx context.Context, inv *entity.Invoice) (int64, error) {
	var invoiceID int64
	err := repository.WithTx(ctx, w.db, w.logger, func(tx *sql.Tx) error {
		id, err := w.invoices.Insert(ctx, tx, inv)
		if err != nil {
			return fmt.Errorf("insert invoice: %w", err)
		}
		changed, err := w.docs.Transition(ctx, tx, inv.DocumentID, constants.StatusCompleted)
		if err != nil {
			return fmt.Errorf("complete document: %w", err)
		}
		if !changed {
			return fmt.Errorf("document %d is not PROCESSING", inv.DocumentID)
		}
		invoiceID = id
		return nil
	})
	if err != nil {
		w.logger.Error("pipeline.commit.failed", "document_id", inv.DocumentID, "error", err)
		return 0, common.PersistenceError("commit extraction", err)
	}
	w.logger.Info("pipeline.commit.ok", "document_id", inv.DocumentID, "invoice_id", invoiceID, "line_items", len(inv.LineItems))
	return invoiceID, nil
}

// Fallback preserves rawText as an error_fallback record. It reports
// whether a record was written; empty text writes nothing.
func (w *Writer) Fallback(ctx context.Context, documentID int64, filePath, rawText string) (bool, error) {
	if rawText == "" {
		w.logger.Info("pipeline.fallback.skipped", "document_id", documentID, "reason", "no raw text")
		return false, nil
	}
	inv := &entity.Invoice{
		DocumentID: documentID,
		FilePath:   &filePath,
		RawContent: &rawText,
		DocType:    string(constants.DocTypeErrorFallback),
	}
	err := repository.WithTx(ctx, w.db, w.logger, func(tx *sql.Tx) error {
		_, err := w.invoices.Insert(ctx, tx, inv)
		return err
	})
	if err != nil {
		w.logger.Error("pipeline.fallback.failed", "document_id", documentID, "error", err)
		return false, common.PersistenceError("write fallback record", err)
	}
	w.logger.Warn("pipeline.fallback.ok", "document_id", documentID, "invoice_id", inv.ID, "raw_len", len(rawText))
	return true, nil
}

// Claim moves the document PENDING -> PROCESSING. False means another run
// got there first or the document already left PENDING.
func (w *Writer) Claim(ctx context.Context, documentID int64) (bool, error) {
	changed, err := w.docs.Transition(ctx, w.db.SQL, documentID, constants.StatusProcessing)
	if err != nil {
		return false, common.PersistenceError("mark document processing", err)
	}
	return changed, nil
}

// MarkFailed moves the document to FAILED from PENDING or PROCESSING. A
// document already terminal is left alone.
func (w *Writer) MarkFailed(ctx context.Context, documentID int64) (bool, error) {
	var changed bool
	err := repository.WithTx(ctx, w.db, w.logger, func(tx *sql.Tx) error {
		var err error
		changed, err = w.docs.Transition(ctx, tx, documentID, constants.StatusFailed)
		return err
	})
	if err != nil {
		w.logger.Error("pipeline.mark_failed.failed", "document_id", documentID, "error", err)
		return false, common.PersistenceError("mark document failed", err)
	}
	w.logger.Info("pipeline.mark_failed", "document_id", documentID, "changed", changed)
	return changed, nil
}
