// Package classify labels extracted text with a document category.
package classify

import (
	"strings"

	"github.com/joseph-ayodele/invoice-extractor/constants"
)

var (
	receiptMarkers = []string{"receipt", "total cash"}
	invoiceMarkers = []string{"invoice", "bill to"}
)

// Classify is a case-insensitive keyword match. Receipt markers win over
// invoice markers; anything else is generic.
func Classify(text string) constants.DocType {
	lower := strings.ToLower(text)
	switch {
	case containsAny(lower, receiptMarkers):
		return constants.DocTypeReceipt
	case containsAny(lower, invoiceMarkers):
		return constants.DocTypeInvoice
	default:
		return constants.DocTypeGeneric
	}
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}
