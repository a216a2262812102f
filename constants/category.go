package constants

// DocType is the category persisted on invoices.doc_type.
type DocType string

const (
	DocTypeReceipt DocType = "receipt"
	DocTypeInvoice DocType = "invoice"
	DocTypeGeneric DocType = "generic"

	// DocTypeErrorFallback tags a record that only preserves raw text.
	DocTypeErrorFallback DocType = "error_fallback"
)

var allDocTypes = []DocType{
	DocTypeReceipt,
	DocTypeInvoice,
	DocTypeGeneric,
}

// DocTypes returns the classifier categories as strings.
func DocTypes() []string {
	result := make([]string, len(allDocTypes))
	for i, dt := range allDocTypes {
		result[i] = string(dt)
	}
	return result
}

func (d DocType) String() string { return string(d) }
