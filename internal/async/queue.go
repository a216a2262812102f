package async

import (
	"context"
	"time"

	"github.com/joseph-ayodele/invoice-extractor/internal/pipeline"
)

// Job is one document to run through the pipeline.
type Job struct {
	FilePath   string
	DocumentID int64
}

type TaskID string

type TaskStatus string

const (
	TaskProcessing TaskStatus = "processing"
	TaskCompleted  TaskStatus = "completed"
	TaskFailed     TaskStatus = "failed"
)

// TaskState is what a poller sees for a handle.
type TaskState struct {
	ID          TaskID           `json:"task_id"`
	DocumentID  int64            `json:"document_id"`
	Status      TaskStatus       `json:"status"`
	Result      *pipeline.Result `json:"result,omitempty"`
	Error       string           `json:"error,omitempty"`
	ErrorKind   string           `json:"error_kind,omitempty"`
	SubmittedAt time.Time        `json:"submitted_at"`
	FinishedAt  time.Time        `json:"finished_at,omitzero"`
}

// Runner is the unit of work a worker executes. *pipeline.Processor satisfies it.
type Runner interface {
	Process(ctx context.Context, filePath string, documentID int64) (*pipeline.Result, error)
}

type Queue interface {
	Submit(ctx context.Context, job Job) (TaskID, error)
	Poll(id TaskID) (TaskState, bool)
	Shutdown(ctx context.Context) error
}
