//go:build fitz

// Package fitz rasterizes PDF pages with MuPDF. It needs cgo and is only
// compiled with the fitz build tag.
package fitz

import (
	"context"
	"fmt"

	gofitz "github.com/gen2brain/go-fitz"
)

// Rasterizer implements ocr.Rasterizer.
type Rasterizer struct{}

func New() *Rasterizer { return &Rasterizer{} }

func (Rasterizer) PageCount(_ context.Context, path string) (int, error) {
	doc, err := gofitz.New(path)
	if err != nil {
		return 0, fmt.Errorf("open pdf: %w", err)
	}
	defer func() { _ = doc.Close() }()
	return doc.NumPage(), nil
}

// RenderPage returns page index (0-based) as PNG bytes.
func (Rasterizer) RenderPage(ctx context.Context, path string, index, dpi int) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	doc, err := gofitz.New(path)
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	defer func() { _ = doc.Close() }()

	if index < 0 || index >= doc.NumPage() {
		return nil, fmt.Errorf("page %d out of range (%d pages)", index+1, doc.NumPage())
	}
	img, err := doc.ImagePNG(index, float64(dpi))
	if err != nil {
		return nil, fmt.Errorf("render page %d: %w", index+1, err)
	}
	return img, nil
}
