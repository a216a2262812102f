package ocr

import (
	"context"
	"fmt"

	"github.com/joseph-ayodele/invoice-extractor/constants"
)

func (e *Extractor) extractImage(ctx context.Context, path string) (ExtractionResult, error) {
	txt, err := e.engine.RecognizeFile(ctx, path)
	if err != nil {
		return ExtractionResult{SourceType: constants.IMAGE, Method: "image-ocr"}, fmt.Errorf("ocr image: %w", err)
	}
	return ExtractionResult{
		Text:       Normalize(txt),
		Pages:      1,
		SourceType: constants.IMAGE,
		Method:     "image-ocr",
	}, nil
}
