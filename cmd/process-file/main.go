package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joseph-ayodele/invoice-extractor/internal/app"
	"github.com/joseph-ayodele/invoice-extractor/internal/async"
	"github.com/joseph-ayodele/invoice-extractor/internal/common"
	"github.com/joseph-ayodele/invoice-extractor/internal/ingest"
	"github.com/joseph-ayodele/invoice-extractor/internal/logging"
	"github.com/joseph-ayodele/invoice-extractor/internal/pipeline"
)

// printError prints an error message to stderr, falling back to stdout if stderr fails
func printError(format string, args ...any) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		fmt.Printf(format, args...)
	}
}

func main() {
	var (
		file    = flag.String("file", "", "document to register and process")
		dir     = flag.String("dir", "", "directory whose documents are registered and processed")
		batch   = flag.String("batch", "", "batch id recorded on new documents")
		show    = flag.Int64("show", 0, "print the stored state of a document id and exit")
		inmem   = flag.Bool("inmem", false, "use an in-memory SQLite database")
		workers = flag.Int("workers", 2, "concurrent documents when -dir is set")
	)
	flag.Parse()

	if *file == "" && *dir == "" && *show == 0 {
		printError("Error: one of -file, -dir or -show is required\n")
		flag.Usage()
		os.Exit(2)
	}

	cfg := common.LoadConfig()
	if *inmem {
		cfg.Database.Driver = "sqlite"
		cfg.Database.DSN = ":memory:"
		cfg.Database.AutoMigrate = true
	}
	logger, flush := logging.New(cfg.Log)
	defer flush()
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		printError("Error: %v\n", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		printError("Error: %v\n", err)
		os.Exit(1)
	}
	defer a.Close()

	switch {
	case *show != 0:
		err = showDocument(ctx, a, *show)
	case *file != "":
		err = processFile(ctx, a, *file, *batch, logger)
	default:
		err = processDir(ctx, a, cfg, *dir, *batch, *workers, logger)
	}
	if err != nil {
		printError("Error [%s]: %v\n", common.Kind(err), err)
		a.Close()
		flush()
		os.Exit(1)
	}
}

func showDocument(ctx context.Context, a *app.App, id int64) error {
	view, err := pipeline.Lookup(ctx, a.Documents, a.Invoices, id)
	if err != nil {
		return err
	}
	return printJSON(view)
}

func processFile(ctx context.Context, a *app.App, path, batch string, logger *slog.Logger) error {
	id, err := ingest.NewIntake(a.Documents, nil, logger).Register(ctx, path, batch)
	if err != nil {
		return err
	}
	doc, err := a.Documents.Get(ctx, id)
	if err != nil {
		return err
	}
	res, err := a.Processor.Process(ctx, doc.FilePath, id)
	if err != nil {
		return fmt.Errorf("document %d: %w", id, err)
	}
	return printJSON(res)
}

func processDir(ctx context.Context, a *app.App, cfg *common.Config, root, batch string, workers int, logger *slog.Logger) error {
	queue := async.NewDispatcher(a.Processor, logger,
		async.WithWorkers(workers),
		async.WithProcessTimeout(cfg.Worker.ProcessTimeout),
	)
	intake := ingest.NewIntake(a.Documents, queue, logger)

	results, stats, scanErr := intake.ScanDirectory(ctx, root, ingest.ScanOptions{
		BatchID:     batch,
		SkipHidden:  true,
		Concurrency: workers,
	})

	drainCtx, cancel := context.WithTimeout(context.Background(), cfg.Worker.ProcessTimeout+time.Minute)
	defer cancel()
	if err := queue.Shutdown(drainCtx); err != nil {
		return fmt.Errorf("waiting for workers: %w", err)
	}
	if scanErr != nil {
		return scanErr
	}

	var completed, failed int
	for _, r := range results {
		if r.TaskID == "" {
			fmt.Printf("%-6s %s: %s\n", "SKIP", r.Path, r.Err)
			continue
		}
		st, _ := queue.Poll(r.TaskID)
		switch st.Status {
		case async.TaskCompleted:
			completed++
			fmt.Printf("%-6s %s: document %d, invoice %d, %s\n", "OK", r.Path, r.DocumentID, st.Result.InvoiceID, st.Result.DocType)
		default:
			failed++
			fmt.Printf("%-6s %s: document %d, %s: %s\n", "FAIL", r.Path, r.DocumentID, st.ErrorKind, st.Error)
		}
	}
	fmt.Printf("\nScanned: %d  Matched: %d  Completed: %d  Failed: %d  Skipped: %d\n",
		stats.Scanned, stats.Matched, completed, failed, stats.Failed)
	if failed > 0 || stats.Failed > 0 {
		return errors.New("some documents did not complete")
	}
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
