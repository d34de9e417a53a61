// Package worker drains archive jobs off the queue and writes them to
// durable storage with bounded retries.
package worker

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"time"

	"github.com/okian/feedmill/internal/adapters/mq/queue"
	"github.com/okian/feedmill/internal/adapters/store"
	"github.com/okian/feedmill/pkg/logger"
	"github.com/okian/feedmill/pkg/metrics"
	"github.com/okian/feedmill/pkg/retry"
)

// Default worker configuration constants.
const (
	defaultWorkerCount  = 4
	poolShutdownTimeout = 30 * time.Second

	archiveAttempts     = 3
	archiveInitialDelay = 200 * time.Millisecond
)

// Archiver persists a batch of stage snapshots.
type Archiver interface {
	UpsertSnapshots(ctx context.Context, stage string, records []store.Record) error
}

// Queue defines how workers receive jobs.
type Queue interface {
	Dequeue(ctx context.Context) <-chan queue.Job
}

// Worker processes archive jobs until stopped.
type Worker interface {
	// Run starts the worker loop until ctx is canceled.
	Run(ctx context.Context)

	// Shutdown gracefully stops the worker.
	Shutdown(ctx context.Context) error
}

// ArchiveWorker implements Worker against an Archiver.
type ArchiveWorker struct {
	queue    Queue
	archiver Archiver
	name     string

	shutdown chan struct{}
	done     chan struct{}

	logger logger.Logger
}

// NewArchiveWorker creates a new worker with configuration options.
func NewArchiveWorker(q Queue, archiver Archiver, opts ...Option) *ArchiveWorker {
	w := &ArchiveWorker{
		queue:    q,
		archiver: archiver,
		name:     "worker",
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
		logger:   logger.Get().Named("worker"),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.name != "worker" {
		w.logger = w.logger.Named(w.name)
	}
	return w
}

// Run starts the worker loop.
func (w *ArchiveWorker) Run(ctx context.Context) {
	defer close(w.done)

	jobs := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case job, ok := <-jobs:
			if !ok {
				return
			}
			if err := w.processJob(ctx, job); err != nil {
				w.logger.Error(ctx, "archive failed",
					logger.String("stage", job.Stage),
					logger.Int("records", len(job.Records)),
					logger.Error(err),
				)
			}
		}
	}
}

// Shutdown gracefully stops the worker.
func (w *ArchiveWorker) Shutdown(ctx context.Context) error {
	close(w.shutdown)

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// processJob writes one batch, retrying transient failures.
func (w *ArchiveWorker) processJob(ctx context.Context, job queue.Job) error {
	attempt := 0
	err := retry.Do(ctx, func(ctx context.Context) error {
		attempt++
		if attempt > 1 {
			metrics.RecordPersistRetry()
		}
		return w.archiver.UpsertSnapshots(ctx, job.Stage, job.Records)
	},
		retry.WithMaxAttempts(archiveAttempts),
		retry.WithInitialDelay(archiveInitialDelay),
	)
	if err != nil {
		metrics.RecordPersistFailure(job.Stage)
		return fmt.Errorf("archive %s batch: %w", job.Stage, err)
	}

	metrics.RecordPersistSuccess(job.Stage)
	return nil
}

// Pool manages multiple workers draining the same queue.
type Pool struct {
	workers []*ArchiveWorker
	queue   Queue

	logger logger.Logger
}

// NewPool creates a new worker pool.
func NewPool(workerCount int, q Queue, archiver Archiver) *Pool {
	if workerCount < 1 {
		workerCount = defaultWorkerCount
		if n := runtime.NumCPU(); n > workerCount {
			workerCount = n
		}
	}

	pool := &Pool{
		workers: make([]*ArchiveWorker, workerCount),
		queue:   q,
		logger:  logger.Get().Named("worker-pool"),
	}
	for i := 0; i < workerCount; i++ {
		pool.workers[i] = NewArchiveWorker(q, archiver, WithName("worker-"+strconv.Itoa(i)))
	}
	return pool
}

// Start starts all workers in the pool.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		go w.Run(ctx)
	}
}

// Shutdown closes the queue, then waits for the workers to drain it.
func (p *Pool) Shutdown(ctx context.Context) error {
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	for i, w := range p.workers {
		select {
		case <-w.done:
		case <-shutdownCtx.Done():
			p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
		}
	}
	return nil
}
