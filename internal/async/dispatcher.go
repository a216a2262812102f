package async

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/invoice-extractor/internal/common"
	"github.com/joseph-ayodele/invoice-extractor/internal/pipeline"
)

// Dispatcher runs jobs on a fixed worker pool and keeps a pollable state per
// task. Finished states are evicted once older than the retention window.
type Dispatcher struct {
	runner    Runner
	logger    *slog.Logger
	workers   int
	timeout   time.Duration
	retention time.Duration
	now       func() time.Time

	ch   chan TaskID
	wg   sync.WaitGroup
	once sync.Once

	// sendMu guards closed and the channel close against in-flight sends.
	sendMu sync.RWMutex
	closed bool

	mu       sync.Mutex
	tasks    map[TaskID]*TaskState
	jobs     map[TaskID]Job
	inflight map[int64]TaskID
}

var _ Queue = (*Dispatcher)(nil)

type Option func(*Dispatcher)

func WithWorkers(n int) Option {
	return func(d *Dispatcher) {
		if n > 0 {
			d.workers = n
		}
	}
}

func WithQueueSize(n int) Option {
	return func(d *Dispatcher) {
		if n > 0 {
			d.ch = make(chan TaskID, n)
		}
	}
}

func WithProcessTimeout(td time.Duration) Option {
	return func(d *Dispatcher) {
		if td > 0 {
			d.timeout = td
		}
	}
}

func WithRetention(td time.Duration) Option {
	return func(d *Dispatcher) {
		if td > 0 {
			d.retention = td
		}
	}
}

func withClock(now func() time.Time) Option {
	return func(d *Dispatcher) { d.now = now }
}

func NewDispatcher(runner Runner, logger *slog.Logger, opts ...Option) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	d := &Dispatcher{
		runner:    runner,
		logger:    logger,
		workers:   4,
		timeout:   3 * time.Minute,
		retention: time.Hour,
		now:       time.Now,
		ch:        make(chan TaskID, 256),
		tasks:     make(map[TaskID]*TaskState),
		jobs:      make(map[TaskID]Job),
		inflight:  make(map[int64]TaskID),
	}
	for _, o := range opts {
		o(d)
	}
	d.start()
	return d
}

func (d *Dispatcher) start() {
	d.once.Do(func() {
		for i := 0; i < d.workers; i++ {
			d.wg.Add(1)
			go func(workerID int) {
				defer d.wg.Done()
				d.logger.Debug("dispatch.worker.started", "worker_id", workerID)
				for id := range d.ch {
					d.run(workerID, id)
				}
				d.logger.Debug("dispatch.worker.stopped", "worker_id", workerID)
			}(i + 1)
		}
	})
}

// Submit queues job and returns its handle. A document that already has a
// task in flight gets that task's handle back. Submit blocks while the
// queue is full, until ctx is done.
func (d *Dispatcher) Submit(ctx context.Context, job Job) (TaskID, error) {
	d.sendMu.RLock()
	defer d.sendMu.RUnlock()
	if d.closed {
		d.logger.Warn("dispatch.submit.closed", "document_id", job.DocumentID)
		return "", common.ErrQueueClosed
	}

	d.mu.Lock()
	d.evictLocked()
	if id, ok := d.inflight[job.DocumentID]; ok {
		d.mu.Unlock()
		d.logger.Info("dispatch.submit.duplicate", "document_id", job.DocumentID, "task_id", id)
		return id, nil
	}
	id := TaskID(uuid.NewString())
	d.tasks[id] = &TaskState{
		ID:          id,
		DocumentID:  job.DocumentID,
		Status:      TaskProcessing,
		SubmittedAt: d.now(),
	}
	d.jobs[id] = job
	d.inflight[job.DocumentID] = id
	d.mu.Unlock()

	select {
	case d.ch <- id:
		d.logger.Info("dispatch.submit.queued", "document_id", job.DocumentID, "task_id", id)
		return id, nil
	default:
	}
	d.logger.Warn("dispatch.submit.backpressure", "document_id", job.DocumentID, "task_id", id)
	select {
	case d.ch <- id:
		return id, nil
	case <-ctx.Done():
		d.forget(id)
		return "", ctx.Err()
	}
}

// Poll returns a copy of the task's state.
func (d *Dispatcher) Poll(id TaskID) (TaskState, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.evictLocked()
	st, ok := d.tasks[id]
	if !ok {
		return TaskState{}, false
	}
	return *st, true
}

// Shutdown stops intake and waits for queued tasks to drain or ctx to end.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	d.sendMu.Lock()
	if d.closed {
		d.sendMu.Unlock()
		return nil
	}
	d.closed = true
	close(d.ch)
	d.sendMu.Unlock()

	done := make(chan struct{})
	go func() { defer close(done); d.wg.Wait() }()

	select {
	case <-ctx.Done():
		d.logger.Warn("dispatch.shutdown.interrupted")
		return ctx.Err()
	case <-done:
		d.logger.Info("dispatch.shutdown.drained")
		return nil
	}
}

func (d *Dispatcher) run(workerID int, id TaskID) {
	d.mu.Lock()
	job, ok := d.jobs[id]
	d.mu.Unlock()
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	var (
		res *pipeline.Result
		err error
	)
	func() {
		defer func() {
			if r := recover(); r != nil {
				res, err = nil, fmt.Errorf("%w: worker panic: %v", common.ErrInternal, r)
			}
		}()
		res, err = d.runner.Process(ctx, job.FilePath, job.DocumentID)
	}()
	d.finish(id, res, err)

	if err != nil {
		d.logger.Error("dispatch.task.failed", "worker_id", workerID, "task_id", id, "document_id", job.DocumentID, "kind", common.Kind(err), "error", err)
		return
	}
	d.logger.Info("dispatch.task.completed", "worker_id", workerID, "task_id", id, "document_id", job.DocumentID)
}

func (d *Dispatcher) finish(id TaskID, res *pipeline.Result, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	st, ok := d.tasks[id]
	if !ok {
		return
	}
	st.FinishedAt = d.now()
	if err != nil {
		st.Status = TaskFailed
		st.Error = err.Error()
		st.ErrorKind = common.Kind(err)
		st.Result = nil
	} else {
		st.Status = TaskCompleted
		st.Result = res
	}
	delete(d.jobs, id)
	if d.inflight[st.DocumentID] == id {
		delete(d.inflight, st.DocumentID)
	}
}

func (d *Dispatcher) forget(id TaskID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if st, ok := d.tasks[id]; ok && d.inflight[st.DocumentID] == id {
		delete(d.inflight, st.DocumentID)
	}
	delete(d.tasks, id)
	delete(d.jobs, id)
}

func (d *Dispatcher) evictLocked() {
	cutoff := d.now().Add(-d.retention)
	for id, st := range d.tasks {
		if st.Status != TaskProcessing && st.FinishedAt.Before(cutoff) {
			delete(d.tasks, id)
		}
	}
}
