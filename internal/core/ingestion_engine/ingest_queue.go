package ingestion_engine

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/markdave123-py/ragline/internal/logger"
	"github.com/markdave123-py/ragline/internal/models"
)

// ErrQueueFull is returned by Enqueue when no slot is free.
var ErrQueueFull = errors.New("ingestion queue is full")

// IngestQueue runs ingestion in the background for callers that should not
// wait for it, such as uploads.
type IngestQueue struct {
	ingestor Ingestor
	jobs     chan models.DocumentReference
	timeout  time.Duration
	logger   *slog.Logger
	wg       sync.WaitGroup
}

// NewIngestQueue builds a queue holding up to size pending documents. Each
// job gets its own timeout, independent of the request that enqueued it.
func NewIngestQueue(ingestor Ingestor, size int, timeout time.Duration) *IngestQueue {
	if size <= 0 {
		size = 64
	}
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &IngestQueue{
		ingestor: ingestor,
		jobs:     make(chan models.DocumentReference, size),
		timeout:  timeout,
		logger:   logger.WithComponent("ingest-queue"),
	}
}

// Start runs numWorkers goroutines reading from the jobs channel until ctx is done.
func (q *IngestQueue) Start(ctx context.Context, numWorkers int) {
	for w := 1; w <= numWorkers; w++ {
		q.wg.Add(1)
		go func(w int) {
			defer q.wg.Done()
			for {
				select {
				case <-ctx.Done():
					q.logger.Debug("worker shutting down", "worker", w)
					return
				case ref := <-q.jobs:
					q.process(ctx, w, ref)
				}
			}
		}(w)
	}
}

func (q *IngestQueue) process(ctx context.Context, worker int, ref models.DocumentReference) {
	jobCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), q.timeout)
	defer cancel()

	q.logger.Info("processing document", "document", ref.String(), "worker", worker)
	if _, err := q.ingestor.Ingest(jobCtx, ref); err != nil {
		q.logger.Error("background ingestion failed", "document", ref.String(), "error", err)
	}
}

// Enqueue schedules ref without blocking.
func (q *IngestQueue) Enqueue(ref models.DocumentReference) error {
	select {
	case q.jobs <- ref:
		return nil
	default:
		return ErrQueueFull
	}
}

// Wait blocks until every worker has returned after ctx cancellation.
func (q *IngestQueue) Wait() {
	q.wg.Wait()
}
