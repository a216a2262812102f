// Package storage resolves a document's file_path into a readable local file.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"

	gcs "cloud.google.com/go/storage"

	"github.com/joseph-ayodele/invoice-extractor/internal/common"
)

const GCSScheme = "gs://"

// LocalFile is a file ready for OCR. Close removes it when it is a
// downloaded copy and is a no-op for files already on disk.
type LocalFile struct {
	Path   string
	remove bool
}

func (f *LocalFile) Close() error {
	if f == nil || !f.remove {
		return nil
	}
	return os.Remove(f.Path)
}

// Resolver maps local paths and gs:// URIs to local files. A nil GCS client
// makes every gs:// path an infrastructure error.
type Resolver struct {
	gcs     *gcs.Client
	tempDir string
	logger  *slog.Logger
}

func NewResolver(client *gcs.Client, tempDir string, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		gcs:     client,
		tempDir: tempDir,
		logger:  logger,
	}
}

// Resolve returns common.ErrInfrastructure-matching errors for anything
// that is missing or unreachable.
func (r *Resolver) Resolve(ctx context.Context, p string) (*LocalFile, error) {
	if strings.HasPrefix(p, GCSScheme) {
		return r.download(ctx, p)
	}
	st, err := os.Stat(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, common.InfrastructureError("input file missing: "+p, err)
	}
	if err != nil {
		return nil, common.InfrastructureError("stat input file", err)
	}
	if st.IsDir() {
		return nil, common.InfrastructureError("input path is a directory: "+p, nil)
	}
	return &LocalFile{Path: p}, nil
}

func (r *Resolver) download(ctx context.Context, uri string) (*LocalFile, error) {
	bucket, object, err := ParseGCSURI(uri)
	if err != nil {
		return nil, common.InfrastructureError("parse gcs uri", err)
	}
	if r.gcs == nil {
		return nil, common.InfrastructureError("gcs client not configured for "+uri, nil)
	}

	reader, err := r.gcs.Bucket(bucket).Object(object).NewReader(ctx)
	if errors.Is(err, gcs.ErrObjectNotExist) || errors.Is(err, gcs.ErrBucketNotExist) {
		return nil, common.InfrastructureError("input object missing: "+uri, err)
	}
	if err != nil {
		return nil, common.InfrastructureError(fmt.Sprintf("failed to get GCS object reader for %s", uri), err)
	}
	defer func() { _ = reader.Close() }()

	// keep the extension so the extractor can pick PDF vs image
	tmp, err := os.CreateTemp(r.tempDir, "gcs-*"+path.Ext(object))
	if err != nil {
		return nil, common.InfrastructureError("create temp file", err)
	}
	n, err := io.Copy(tmp, reader)
	closeErr := tmp.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(tmp.Name())
		return nil, common.InfrastructureError("download "+uri, err)
	}

	r.logger.Info("storage.gcs.downloaded", "uri", uri, "bytes", n, "local", filepath.Base(tmp.Name()))
	return &LocalFile{Path: tmp.Name(), remove: true}, nil
}

// ParseGCSURI splits gs://bucket/object.
func ParseGCSURI(uri string) (bucket, object string, err error) {
	rest, ok := strings.CutPrefix(uri, GCSScheme)
	if !ok {
		return "", "", fmt.Errorf("not a gcs uri: %q", uri)
	}
	bucket, object, ok = strings.Cut(rest, "/")
	if !ok || bucket == "" || object == "" {
		return "", "", fmt.Errorf("gcs uri needs bucket and object: %q", uri)
	}
	return bucket, object, nil
}
