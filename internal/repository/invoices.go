package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	sq "github.com/Masterminds/squirrel"

	"github.com/joseph-ayodele/invoice-extractor/internal/common"
	"github.com/joseph-ayodele/invoice-extractor/internal/entity"
)

var invoiceColumns = []string{
	"id", "document_id", "invoice_number", "date", "vendor", "total", "tax", "currency",
	"file_path", "doc_type", "summary", "raw_content", "verified", "audit_log",
}

type InvoiceRepository interface {
	// Insert writes the invoice and its line items, in order, through q.
	Insert(ctx context.Context, q Querier, inv *entity.Invoice) (int64, error)
	GetByDocumentID(ctx context.Context, documentID int64) (*entity.Invoice, error)
	ListLineItems(ctx context.Context, invoiceID int64) ([]entity.LineItem, error)
}

type invoiceRepository struct {
	db     *DB
	logger *slog.Logger
}

func NewInvoiceRepository(db *DB, logger *slog.Logger) InvoiceRepository {
	return &invoiceRepository{
		db:     db,
		logger: logger,
	}
}

func (r *invoiceRepository) Insert(ctx context.Context, q Querier, inv *entity.Invoice) (int64, error) {
	query, args, err := r.db.Builder().
		Insert("invoices").
		Columns("document_id", "invoice_number", "date", "vendor", "total", "tax", "currency",
			"file_path", "doc_type", "summary", "raw_content", "verified").
		Values(inv.DocumentID, nullable(inv.InvoiceNumber), nullable(inv.Date), nullable(inv.Vendor),
			nullable(inv.Total), nullable(inv.Tax), nullable(inv.Currency), nullable(inv.FilePath),
			inv.DocType, nullable(inv.Summary), nullable(inv.RawContent), inv.Verified).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build insert invoice: %w", err)
	}

	var id int64
	if err := q.QueryRowContext(ctx, query, args...).Scan(&id); err != nil {
		r.logger.Error("failed to insert invoice", "document_id", inv.DocumentID, "doc_type", inv.DocType, "error", err)
		return 0, err
	}

	for i := range inv.LineItems {
		item := &inv.LineItems[i]
		item.InvoiceID = id
		query, args, err := r.db.Builder().
			Insert("line_items").
			Columns("invoice_id", "description", "quantity", "unit_price", "total_price", "discount").
			Values(id, nullable(item.Description), nullable(item.Quantity), nullable(item.UnitPrice),
				nullable(item.TotalPrice), nullable(item.Discount)).
			Suffix("RETURNING id").
			ToSql()
		if err != nil {
			return 0, fmt.Errorf("build insert line item: %w", err)
		}
		if err := q.QueryRowContext(ctx, query, args...).Scan(&item.ID); err != nil {
			r.logger.Error("failed to insert line item", "invoice_id", id, "position", i, "error", err)
			return 0, err
		}
	}

	inv.ID = id
	return id, nil
}

func (r *invoiceRepository) GetByDocumentID(ctx context.Context, documentID int64) (*entity.Invoice, error) {
	query, args, err := r.db.Builder().
		Select(invoiceColumns...).
		From("invoices").
		Where(sq.Eq{"document_id": documentID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select invoice: %w", err)
	}

	var inv entity.Invoice
	var number, vendor, currency, filePath, summary, rawContent sql.NullString
	var total, tax sql.NullFloat64
	var date nullTime
	var auditLog []byte
	err = r.db.SQL.QueryRowContext(ctx, query, args...).Scan(
		&inv.ID, &inv.DocumentID, &number, &date, &vendor, &total, &tax, &currency,
		&filePath, &inv.DocType, &summary, &rawContent, &inv.Verified, &auditLog,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("invoice for document %d: %w", documentID, common.ErrNotFound)
	}
	if err != nil {
		r.logger.Error("failed to get invoice", "document_id", documentID, "error", err)
		return nil, err
	}
	inv.InvoiceNumber = strPtr(number)
	inv.Date = date.ptr()
	inv.Vendor = strPtr(vendor)
	inv.Total = floatPtr(total)
	inv.Tax = floatPtr(tax)
	inv.Currency = strPtr(currency)
	inv.FilePath = strPtr(filePath)
	inv.Summary = strPtr(summary)
	inv.RawContent = strPtr(rawContent)
	if len(auditLog) > 0 {
		inv.AuditLog = auditLog
	}

	items, err := r.ListLineItems(ctx, inv.ID)
	if err != nil {
		return nil, err
	}
	inv.LineItems = items
	return &inv, nil
}

func (r *invoiceRepository) ListLineItems(ctx context.Context, invoiceID int64) ([]entity.LineItem, error) {
	query, args, err := r.db.Builder().
		Select("id", "invoice_id", "description", "quantity", "unit_price", "total_price", "discount").
		From("line_items").
		Where(sq.Eq{"invoice_id": invoiceID}).
		OrderBy("id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select line items: %w", err)
	}
	rows, err := r.db.SQL.QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("failed to list line items", "invoice_id", invoiceID, "error", err)
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var items []entity.LineItem
	for rows.Next() {
		var item entity.LineItem
		var desc sql.NullString
		var qty, unitPrice, totalPrice, discount sql.NullFloat64
		if err := rows.Scan(&item.ID, &item.InvoiceID, &desc, &qty, &unitPrice, &totalPrice, &discount); err != nil {
			return nil, err
		}
		item.Description = strPtr(desc)
		item.Quantity = floatPtr(qty)
		item.UnitPrice = floatPtr(unitPrice)
		item.TotalPrice = floatPtr(totalPrice)
		item.Discount = floatPtr(discount)
		items = append(items, item)
	}
	return items, rows.Err()
}
