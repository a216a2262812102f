package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/joseph-ayodele/invoice-extractor/constants"
	"github.com/joseph-ayodele/invoice-extractor/internal/common"
	"github.com/joseph-ayodele/invoice-extractor/internal/entity"
)

var documentColumns = []string{"id", "filename", "file_path", "upload_date", "batch_id", "status"}

type DocumentRepository interface {
	Create(ctx context.Context, filePath string, batchID *string) (*entity.Document, error)
	Get(ctx context.Context, id int64) (*entity.Document, error)
	ListByStatus(ctx context.Context, status constants.DocumentStatus, limit uint64) ([]*entity.Document, error)
	// Transition moves the document to "to" only when its current status is a
	// legal predecessor. It reports whether a row changed.
	Transition(ctx context.Context, q Querier, id int64, to constants.DocumentStatus) (bool, error)
}

type documentRepository struct {
	db     *DB
	logger *slog.Logger
}

func NewDocumentRepository(db *DB, logger *slog.Logger) DocumentRepository {
	return &documentRepository{
		db:     db,
		logger: logger,
	}
}

func (r *documentRepository) Create(ctx context.Context, filePath string, batchID *string) (*entity.Document, error) {
	doc := &entity.Document{
		Filename:   filepath.Base(filePath),
		FilePath:   filePath,
		UploadDate: time.Now().UTC(),
		BatchID:    batchID,
		Status:     constants.StatusPending,
	}
	query, args, err := r.db.Builder().
		Insert("documents").
		Columns("filename", "file_path", "upload_date", "batch_id", "status").
		Values(doc.Filename, doc.FilePath, doc.UploadDate, nullable(batchID), string(doc.Status)).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build insert document: %w", err)
	}
	if err := r.db.SQL.QueryRowContext(ctx, query, args...).Scan(&doc.ID); err != nil {
		r.logger.Error("failed to create document", "file_path", filePath, "error", err)
		return nil, err
	}
	r.logger.Debug("document created", "document_id", doc.ID, "file_path", filePath)
	return doc, nil
}

func (r *documentRepository) Get(ctx context.Context, id int64) (*entity.Document, error) {
	query, args, err := r.db.Builder().
		Select(documentColumns...).
		From("documents").
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select document: %w", err)
	}
	doc, err := scanDocument(r.db.SQL.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("document %d: %w", id, common.ErrNotFound)
	}
	if err != nil {
		r.logger.Error("failed to get document", "document_id", id, "error", err)
		return nil, err
	}
	return doc, nil
}

func (r *documentRepository) ListByStatus(ctx context.Context, status constants.DocumentStatus, limit uint64) ([]*entity.Document, error) {
	b := r.db.Builder().
		Select(documentColumns...).
		From("documents").
		Where(sq.Eq{"status": string(status)}).
		OrderBy("id")
	if limit > 0 {
		b = b.Limit(limit)
	}
	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list documents: %w", err)
	}
	rows, err := r.db.SQL.QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("failed to list documents", "status", status, "error", err)
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []*entity.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, doc)
	}
	return out, rows.Err()
}

func (r *documentRepository) Transition(ctx context.Context, q Querier, id int64, to constants.DocumentStatus) (bool, error) {
	from := constants.PredecessorsOf(to)
	if len(from) == 0 {
		return false, fmt.Errorf("no transition leads to %s: %w", to, common.ErrInvalidInput)
	}
	guard := make([]string, len(from))
	for i, s := range from {
		guard[i] = string(s)
	}

	query, args, err := r.db.Builder().
		Update("documents").
		Set("status", string(to)).
		Where(sq.Eq{"id": id, "status": guard}).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build status update: %w", err)
	}
	res, err := q.ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("failed to update document status", "document_id", id, "to", to, "error", err)
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n == 0 {
		r.logger.Warn("document status guard rejected transition", "document_id", id, "to", to)
	}
	return n > 0, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (*entity.Document, error) {
	var (
		doc      entity.Document
		uploaded nullTime
		batchID  sql.NullString
		status   string
	)
	if err := row.Scan(&doc.ID, &doc.Filename, &doc.FilePath, &uploaded, &batchID, &status); err != nil {
		return nil, err
	}
	doc.UploadDate = uploaded.Time
	doc.BatchID = strPtr(batchID)
	doc.Status = constants.DocumentStatus(status)
	return &doc, nil
}
