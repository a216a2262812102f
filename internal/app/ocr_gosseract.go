//go:build gosseract

package app

import (
	"github.com/joseph-ayodele/invoice-extractor/internal/common"
	"github.com/joseph-ayodele/invoice-extractor/internal/ocr"
	"github.com/joseph-ayodele/invoice-extractor/internal/ocr/tesseract"
)

func inProcessEngine(cfg common.OCRConfig) ocr.Engine {
	langs := cfg.Languages
	if langs == "" {
		langs = "eng+ara"
	}
	return tesseract.New(langs, cfg.TessdataDir)
}
