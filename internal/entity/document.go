package entity

import (
	"time"

	"github.com/joseph-ayodele/invoice-extractor/constants"
)

// Document represents an ingested file for data transfer between layers.
type Document struct {
	ID         int64                    `json:"id"`
	Filename   string                   `json:"filename"`
	FilePath   string                   `json:"file_path"`
	UploadDate time.Time                `json:"upload_date"`
	BatchID    *string                  `json:"batch_id,omitempty"`
	Status     constants.DocumentStatus `json:"status"`
}
