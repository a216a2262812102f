//go:build !gosseract

package app

import (
	"github.com/joseph-ayodele/invoice-extractor/internal/common"
	"github.com/joseph-ayodele/invoice-extractor/internal/ocr"
)

func inProcessEngine(common.OCRConfig) ocr.Engine { return nil }
