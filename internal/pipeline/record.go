package pipeline

import (
	"strings"
	"time"

	"github.com/joseph-ayodele/invoice-extractor/constants"
	"github.com/joseph-ayodele/invoice-extractor/internal/common"
	"github.com/joseph-ayodele/invoice-extractor/internal/entity"
	"github.com/joseph-ayodele/invoice-extractor/internal/llm"
)

var dateLayouts = []string{
	time.DateOnly,
	"2006/01/02",
	"02.01.2006",
	"January 2, 2006",
	"Jan 2, 2006",
	"2 January 2006",
	time.RFC3339,
}

// ParseDocumentDate accepts the date shapes models return in practice.
func ParseDocumentDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			y, m, d := t.Date()
			return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), true
		}
	}
	return time.Time{}, false
}

// BuildInvoice maps an extraction onto the persisted record. It never
// fails; field problems come back as warnings and an unparsable date is
// stored as NULL.
func BuildInvoice(documentID int64, filePath, rawText string, docType constants.DocType, data llm.Extraction) (*entity.Invoice, []string) {
	inv := &entity.Invoice{
		DocumentID:    documentID,
		InvoiceNumber: trimmed(data.InvoiceDetails.Number),
		Vendor:        trimmed(data.VendorInfo.Name),
		Total:         data.Financials.TotalAmount,
		Tax:           data.Financials.TaxAmount,
		Currency:      trimmed(data.Financials.Currency),
		FilePath:      &filePath,
		DocType:       string(docType),
		Summary:       trimmed(data.Summary),
		RawContent:    &rawText,
		LineItems:     make([]entity.LineItem, 0, len(data.Items)),
	}

	v := common.NewValidator().
		Field("invoice_details.date", data.InvoiceDetails.Date, common.ISODate).
		Field("financials.currency", inv.Currency, common.CurrencyCode).
		Field("financials.total_amount", inv.Total, common.NonNegative).
		Field("financials.tax_amount", inv.Tax, common.NonNegative)

	var warnings []string
	if d := trimmed(data.InvoiceDetails.Date); d != nil {
		if t, ok := ParseDocumentDate(*d); ok {
			inv.Date = &t
		} else {
			warnings = append(warnings, "unparsable date "+*d+" stored as NULL")
		}
	}

	for _, it := range data.Items {
		inv.LineItems = append(inv.LineItems, entity.LineItem{
			Description: trimmed(it.Description),
			Quantity:    it.Quantity,
			UnitPrice:   it.UnitPrice,
			TotalPrice:  it.TotalPrice,
			Discount:    it.Discount,
		})
	}

	for _, e := range v.Errors() {
		warnings = append(warnings, e.Error())
	}
	return inv, warnings
}

func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	t := strings.TrimSpace(*s)
	if t == "" {
		return nil
	}
	return &t
}
