package entity

import (
	"encoding/json"
	"time"
)

// Invoice is the persisted extraction record of a document. A fallback
// record only carries DocumentID, FilePath, RawContent and DocType.
type Invoice struct {
	ID            int64           `json:"id"`
	DocumentID    int64           `json:"document_id"`
	InvoiceNumber *string         `json:"invoice_number,omitempty"`
	Date          *time.Time      `json:"date,omitempty"`
	Vendor        *string         `json:"vendor,omitempty"`
	Total         *float64        `json:"total,omitempty"`
	Tax           *float64        `json:"tax,omitempty"`
	Currency      *string         `json:"currency,omitempty"`
	FilePath      *string         `json:"file_path,omitempty"`
	DocType       string          `json:"doc_type"`
	Summary       *string         `json:"summary,omitempty"`
	RawContent    *string         `json:"raw_content,omitempty"`
	Verified      bool            `json:"verified"`
	AuditLog      json.RawMessage `json:"audit_log,omitempty"`
	LineItems     []LineItem      `json:"line_items,omitempty"`
}

// LineItem belongs to exactly one Invoice.
type LineItem struct {
	ID          int64    `json:"id"`
	InvoiceID   int64    `json:"invoice_id"`
	Description *string  `json:"description,omitempty"`
	Quantity    *float64 `json:"quantity,omitempty"`
	UnitPrice   *float64 `json:"unit_price,omitempty"`
	TotalPrice  *float64 `json:"total_price,omitempty"`
	Discount    *float64 `json:"discount,omitempty"`
}
