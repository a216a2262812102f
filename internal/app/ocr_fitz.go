//go:build fitz

package app

import (
	"github.com/joseph-ayodele/invoice-extractor/internal/ocr"
	"github.com/joseph-ayodele/invoice-extractor/internal/ocr/fitz"
)

func inProcessRasterizer() ocr.Rasterizer { return fitz.New() }
