package pipeline

import (
	"github.com/joseph-ayodele/invoice-extractor/constants"
	"github.com/joseph-ayodele/invoice-extractor/internal/llm"
)

// Result is what a successful run returns: the extraction fields at the top
// level plus the identities and the auditor's verdict.
type Result struct {
	llm.Extraction
	DocumentID int64                 `json:"document_id"`
	InvoiceID  int64                 `json:"invoice_id"`
	DocType    constants.DocType     `json:"doc_type"`
	Validation llm.ValidationOutcome `json:"validation_result"`
	Warnings   []string              `json:"warnings,omitempty"`
}
