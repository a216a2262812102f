//go:build !fitz

package app

import "github.com/joseph-ayodele/invoice-extractor/internal/ocr"

func inProcessRasterizer() ocr.Rasterizer { return nil }
