//go:build gosseract

// Package tesseract is the in-process OCR engine backed by libtesseract.
// It needs cgo and the tesseract and leptonica headers, so it is only
// compiled with the gosseract build tag.
package tesseract

import (
	"context"
	"fmt"
	"strings"

	"github.com/otiai10/gosseract/v2"
)

// Engine implements ocr.Engine with gosseract. A fresh client is created per
// call; gosseract clients are not safe for concurrent use.
type Engine struct {
	languages     []string
	tessdataDir   string
	clientFactory func() *gosseract.Client
}

// New builds an engine for a tesseract language spec such as "eng+ara".
func New(languages, tessdataDir string) *Engine {
	var langs []string
	for _, l := range strings.Split(languages, "+") {
		if l = strings.TrimSpace(l); l != "" {
			langs = append(langs, l)
		}
	}
	return &Engine{languages: langs, tessdataDir: tessdataDir, clientFactory: gosseract.NewClient}
}

func (e *Engine) RecognizeFile(ctx context.Context, path string) (string, error) {
	return e.recognize(ctx, func(c *gosseract.Client) error { return c.SetImage(path) })
}

func (e *Engine) Recognize(ctx context.Context, image []byte) (string, error) {
	return e.recognize(ctx, func(c *gosseract.Client) error { return c.SetImageFromBytes(image) })
}

func (e *Engine) recognize(ctx context.Context, setImage func(*gosseract.Client) error) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	c := e.clientFactory()
	defer func() { _ = c.Close() }()

	if e.tessdataDir != "" {
		c.TessdataPrefix = e.tessdataDir
	}
	if len(e.languages) > 0 {
		if err := c.SetLanguage(e.languages...); err != nil {
			return "", fmt.Errorf("set languages: %w", err)
		}
	}
	if err := setImage(c); err != nil {
		return "", fmt.Errorf("set image: %w", err)
	}
	text, err := c.Text()
	if err != nil {
		return "", fmt.Errorf("recognize text: %w", err)
	}
	return text, nil
}
