package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/joseph-ayodele/invoice-extractor/internal/app"
	"github.com/joseph-ayodele/invoice-extractor/internal/classify"
	"github.com/joseph-ayodele/invoice-extractor/internal/common"
	"github.com/joseph-ayodele/invoice-extractor/internal/logging"
)

// runocr prints the OCR text and category of a single file without touching
// the database or a model.
func main() {
	cfg := common.LoadConfig()
	logger, flush := logging.New(cfg.Log)
	defer flush()
	slog.SetDefault(logger)

	if len(os.Args) != 2 {
		logger.Error("usage", "cmd", "runocr <path>")
		os.Exit(2)
	}
	path := os.Args[1]

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	extractor := app.NewOCR(cfg.OCR, logger)

	start := time.Now()
	res, err := extractor.Extract(ctx, path)
	dur := time.Since(start)
	if err != nil {
		logger.Error("text extraction failed", "path", path, "error", err, "duration_ms", dur.Milliseconds())
		os.Exit(1)
	}

	logger.Info("text extraction OK",
		"method", res.Method,
		"pages", res.Pages,
		"bytes", len(res.Text),
		"confidence", res.Confidence,
		"warnings", len(res.Warnings),
		"doc_type", classify.Classify(res.Text),
		"duration_ms", dur.Milliseconds(),
	)
	fmt.Println(res.Text)
}
