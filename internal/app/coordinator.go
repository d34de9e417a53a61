package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/okian/feedmill/internal/adapters/mq/queue"
	"github.com/okian/feedmill/internal/adapters/store"
	"github.com/okian/feedmill/pkg/logger"
	"github.com/okian/feedmill/pkg/metrics"
	"github.com/okian/feedmill/pkg/retry"
)

// Coordinator persistence defaults.
const (
	persistAttempts     = 3
	persistInitialDelay = 200 * time.Millisecond
)

// Persister writes a batch of stage snapshots durably.
type Persister interface {
	UpsertSnapshots(ctx context.Context, stage string, records []store.Record) error
}

// Enqueuer accepts archive jobs for detached processing.
type Enqueuer interface {
	Enqueue(ctx context.Context, job queue.Job) bool
}

// Batch is one category of snapshots to persist.
type Batch struct {
	Stage   string
	Records []store.Record
}

// Result reports one category's persistence outcome.
type Result struct {
	Stage   string `json:"stage"`
	Success bool   `json:"success"`
	Count   int    `json:"count"`
	Error   string `json:"error,omitempty"`
}

// Coordinator isolates snapshot writes per category: every batch is
// attempted with its own retries and one category's failure never stops
// the others. The Archive path hands batches to the worker queue instead
// of writing inline.
type Coordinator struct {
	persister Persister
	enqueuer  Enqueuer
	log       logger.Logger
}

// CoordinatorOption applies a configuration option to the Coordinator.
type CoordinatorOption func(*Coordinator)

// WithCoordinatorLogger sets a custom logger.
func WithCoordinatorLogger(log logger.Logger) CoordinatorOption {
	return func(c *Coordinator) {
		if log != nil {
			c.log = log
		}
	}
}

// NewCoordinator builds a coordinator. enqueuer may be nil, in which case
// Archive falls back to inline persistence.
func NewCoordinator(persister Persister, enqueuer Enqueuer, opts ...CoordinatorOption) *Coordinator {
	c := &Coordinator{
		persister: persister,
		enqueuer:  enqueuer,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.log == nil {
		c.log = logger.Get().Named("coordinator")
	}
	return c
}

// PersistAll writes every batch concurrently and reports each outcome in
// input order. Empty batches succeed with a zero count and no write.
func (c *Coordinator) PersistAll(ctx context.Context, batches []Batch) []Result {
	results := make([]Result, len(batches))

	var wg sync.WaitGroup
	for i, batch := range batches {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = c.persistBatch(ctx, batch)
		}()
	}
	wg.Wait()

	return results
}

// persistBatch writes one category with bounded retries.
func (c *Coordinator) persistBatch(ctx context.Context, batch Batch) Result {
	result := Result{Stage: batch.Stage, Count: len(batch.Records)}
	if len(batch.Records) == 0 {
		result.Success = true
		return result
	}

	attempt := 0
	err := retry.Do(ctx, func(ctx context.Context) error {
		attempt++
		if attempt > 1 {
			metrics.RecordPersistRetry()
		}
		return c.persister.UpsertSnapshots(ctx, batch.Stage, batch.Records)
	},
		retry.WithMaxAttempts(persistAttempts),
		retry.WithInitialDelay(persistInitialDelay),
	)
	if err != nil {
		metrics.RecordPersistFailure(batch.Stage)
		result.Error = err.Error()
		c.log.Error(ctx, "persist failed",
			logger.String("stage", batch.Stage),
			logger.Int("records", len(batch.Records)),
			logger.Error(err),
		)
		return result
	}

	metrics.RecordPersistSuccess(batch.Stage)
	result.Success = true
	return result
}

// Archive queues one batch for detached persistence. A full queue drops
// the batch; snapshots are best-effort history, not truth.
func (c *Coordinator) Archive(ctx context.Context, stage string, records []store.Record) {
	if len(records) == 0 {
		return
	}

	if c.enqueuer == nil {
		// No queue wired: persist on a detached goroutine so callers never
		// wait out the retry backoff. Detached from the caller's deadline,
		// like a queued job would be.
		bg := context.WithoutCancel(ctx)
		go func() {
			if result := c.persistBatch(bg, Batch{Stage: stage, Records: records}); !result.Success {
				c.log.Warn(bg, "detached archive failed", logger.String("stage", stage))
			}
		}()
		return
	}

	if !c.enqueuer.Enqueue(ctx, queue.Job{Stage: stage, Records: records}) {
		c.log.Warn(ctx, "archive queue rejected batch",
			logger.String("stage", stage),
			logger.Int("records", len(records)),
		)
	}
}

// String renders a result for logs.
func (r Result) String() string {
	if r.Success {
		return fmt.Sprintf("%s: ok (%d records)", r.Stage, r.Count)
	}
	return fmt.Sprintf("%s: failed (%d records): %s", r.Stage, r.Count, r.Error)
}
