package ingest

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/joseph-ayodele/invoice-extractor/internal/async"
	"github.com/joseph-ayodele/invoice-extractor/internal/common"
	"github.com/joseph-ayodele/invoice-extractor/internal/repository"
	"github.com/joseph-ayodele/invoice-extractor/internal/storage"
)

// Submitter hands a registered document to the worker pool.
type Submitter interface {
	Submit(ctx context.Context, job async.Job) (async.TaskID, error)
}

// Intake creates PENDING documents for incoming files and dispatches them.
type Intake struct {
	docs   repository.DocumentRepository
	queue  Submitter
	logger *slog.Logger
}

func NewIntake(docs repository.DocumentRepository, queue Submitter, logger *slog.Logger) *Intake {
	return &Intake{
		docs:   docs,
		queue:  queue,
		logger: logger,
	}
}

// Register records path as a PENDING document. Local paths must point at an
// existing regular file; object store URIs are checked when processed.
func (in *Intake) Register(ctx context.Context, path, batchID string) (int64, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return 0, fmt.Errorf("file path is required: %w", common.ErrInvalidInput)
	}
	if !AllowedExt(filepath.Ext(path)) {
		return 0, fmt.Errorf("unsupported or missing extension %q: %w", filepath.Ext(path), common.ErrInvalidInput)
	}

	if !strings.HasPrefix(path, storage.GCSScheme) {
		abs, err := filepath.Abs(path)
		if err != nil {
			return 0, fmt.Errorf("abs path: %w", err)
		}
		info, err := os.Stat(abs)
		if err != nil {
			in.logger.Error("ingest.register.stat_failed", "file_path", abs, "error", err)
			return 0, common.InfrastructureError("source file is not readable", err)
		}
		if !info.Mode().IsRegular() {
			return 0, fmt.Errorf("%s is not a regular file: %w", abs, common.ErrInvalidInput)
		}
		path = abs
	}

	var batch *string
	if b := strings.TrimSpace(batchID); b != "" {
		batch = &b
	}
	doc, err := in.docs.Create(ctx, path, batch)
	if err != nil {
		return 0, common.PersistenceError("could not register document", err)
	}
	in.logger.Info("ingest.register.ok", "document_id", doc.ID, "file_path", path, "batch_id", batchID)
	return doc.ID, nil
}

// RegisterAndSubmit registers path and queues it for processing.
func (in *Intake) RegisterAndSubmit(ctx context.Context, path, batchID string) (int64, async.TaskID, error) {
	id, err := in.Register(ctx, path, batchID)
	if err != nil {
		return 0, "", err
	}
	doc, err := in.docs.Get(ctx, id)
	if err != nil {
		return id, "", err
	}
	task, err := in.queue.Submit(ctx, async.Job{FilePath: doc.FilePath, DocumentID: id})
	if err != nil {
		in.logger.Error("ingest.submit.failed", "document_id", id, "error", err)
		return id, "", err
	}
	return id, task, nil
}

// Consume registers and submits every path received until paths closes or
// ctx is done. A path seen before in this session is ignored.
func (in *Intake) Consume(ctx context.Context, paths <-chan string, batchID string) {
	seen := map[string]struct{}{}
	for {
		select {
		case <-ctx.Done():
			return
		case p, ok := <-paths:
			if !ok {
				return
			}
			if _, dup := seen[p]; dup {
				continue
			}
			seen[p] = struct{}{}
			if _, _, err := in.RegisterAndSubmit(ctx, p, batchID); err != nil {
				in.logger.Warn("ingest.consume.skipped", "file_path", p, "kind", common.Kind(err), "error", err)
			}
		}
	}
}

// FileResult is the per-file outcome of a directory scan.
type FileResult struct {
	Path       string
	DocumentID int64
	TaskID     async.TaskID
	Err        string
}

// DirStats summarizes a directory scan.
type DirStats struct {
	Scanned   uint32
	Matched   uint32
	Succeeded uint32
	Failed    uint32
}

type ScanOptions struct {
	BatchID     string
	SkipHidden  bool
	Concurrency int // default 4
}

// ScanDirectory registers and submits every intake file under root. Per-file
// failures are reported in the results; only a walk error or a cancelled
// context fails the scan.
func (in *Intake) ScanDirectory(ctx context.Context, root string, opts ScanOptions) ([]FileResult, DirStats, error) {
	if strings.TrimSpace(root) == "" {
		return nil, DirStats{}, fmt.Errorf("root_path is required: %w", common.ErrInvalidInput)
	}

	var stats DirStats
	var matched []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		stats.Scanned++
		if walkErr != nil {
			return walkErr
		}
		if opts.SkipHidden && path != root && IsHidden(path) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || !AllowedExt(filepath.Ext(path)) {
			return nil
		}
		matched = append(matched, path)
		return nil
	})
	if err != nil {
		return nil, stats, fmt.Errorf("walk: %w", err)
	}
	stats.Matched = uint32(len(matched))

	limit := opts.Concurrency
	if limit <= 0 {
		limit = 4
	}
	results := make([]FileResult, len(matched))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, path := range matched {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			id, task, err := in.RegisterAndSubmit(gctx, path, opts.BatchID)
			res := FileResult{Path: path, DocumentID: id, TaskID: task}
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				res.Err = err.Error()
				stats.Failed++
			} else {
				stats.Succeeded++
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return results, stats, err
	}
	in.logger.Info("ingest.scan.done", "root", root, "matched", stats.Matched, "succeeded", stats.Succeeded, "failed", stats.Failed)
	return results, stats, nil
}
