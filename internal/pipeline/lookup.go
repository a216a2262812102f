package pipeline

import (
	"context"
	"errors"

	"github.com/joseph-ayodele/invoice-extractor/constants"
	"github.com/joseph-ayodele/invoice-extractor/internal/common"
	"github.com/joseph-ayodele/invoice-extractor/internal/entity"
	"github.com/joseph-ayodele/invoice-extractor/internal/repository"
)

// DocumentView is a document with its extraction record, if one exists.
type DocumentView struct {
	Document *entity.Document `json:"document"`
	Invoice  *entity.Invoice  `json:"invoice,omitempty"`
	// Fallback is set when the only record is the raw-text fallback.
	Fallback bool `json:"fallback"`
}

// Lookup reads a document by identity, for callers that track documents
// rather than task handles.
func Lookup(ctx context.Context, docs repository.DocumentRepository, invoices repository.InvoiceRepository, documentID int64) (*DocumentView, error) {
	doc, err := docs.Get(ctx, documentID)
	if err != nil {
		return nil, err
	}
	view := &DocumentView{Document: doc}

	inv, err := invoices.GetByDocumentID(ctx, documentID)
	switch {
	case errors.Is(err, common.ErrNotFound):
		return view, nil
	case err != nil:
		return nil, err
	}
	view.Invoice = inv
	view.Fallback = inv.DocType == string(constants.DocTypeErrorFallback)
	return view, nil
}
