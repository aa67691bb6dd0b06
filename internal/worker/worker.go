package worker

import (
	"context"
	"log/slog"
	"time"

	"reply-orchestrator/internal/domain"
	"reply-orchestrator/internal/infra/metrics"
	"reply-orchestrator/internal/usecase"
)

const (
	jobTimeout     = 120 * time.Second
	initialBackoff = 1 * time.Second
	maxBackoff     = 5 * time.Minute
)

// Options tunes the drain loop. The inter-batch pause is the
// backpressure valve keeping the embedding gateway from being flooded
// during bulk loads.
type Options struct {
	BatchSize       int
	InterBatchPause time.Duration
	PollInterval    time.Duration
}

func (o Options) withDefaults() Options {
	if o.BatchSize <= 0 {
		o.BatchSize = 10
	}
	if o.InterBatchPause <= 0 {
		o.InterBatchPause = 2 * time.Second
	}
	if o.PollInterval <= 0 {
		o.PollInterval = 500 * time.Millisecond
	}
	return o
}

// IngestWorker drains the ingestion job queue in fixed-size batches.
type IngestWorker struct {
	jobRepo       domain.IngestJobRepository
	ingestUsecase usecase.IngestDocumentUsecase
	logger        *slog.Logger
	opts          Options
	stopChan      chan struct{}
	doneChan      chan struct{}
	backoff       time.Duration
}

func NewIngestWorker(
	jobRepo domain.IngestJobRepository,
	ingestUsecase usecase.IngestDocumentUsecase,
	logger *slog.Logger,
	opts Options,
) *IngestWorker {
	return &IngestWorker{
		jobRepo:       jobRepo,
		ingestUsecase: ingestUsecase,
		logger:        logger,
		opts:          opts.withDefaults(),
		stopChan:      make(chan struct{}),
		doneChan:      make(chan struct{}),
	}
}

func (w *IngestWorker) Start() {
	w.logger.Info("Starting IngestWorker",
		"batch_size", w.opts.BatchSize,
		"inter_batch_pause", w.opts.InterBatchPause.String(),
	)
	go w.run()
}

func (w *IngestWorker) Stop() {
	w.logger.Info("Stopping IngestWorker")
	close(w.stopChan)
	<-w.doneChan
}

func (w *IngestWorker) run() {
	defer close(w.doneChan)

	ticker := time.NewTicker(w.opts.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stopChan:
			return
		case <-ticker.C:
			processed := w.processBatch()
			switch {
			case w.backoff > 0:
				ticker.Reset(w.backoff)
			case processed > 0:
				// Pause between full batches so a bulk load cannot flood
				// the embedding gateway.
				ticker.Reset(w.opts.InterBatchPause)
			default:
				ticker.Reset(w.opts.PollInterval)
			}
		}
	}
}

// processBatch claims one batch and runs every job in it. Returns the
// number of jobs claimed.
func (w *IngestWorker) processBatch() int {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	jobs, err := w.jobRepo.AcquireBatch(ctx, w.opts.BatchSize)
	if err != nil {
		w.logger.Error("Failed to acquire job batch", "error", err)
		w.backoff = w.nextBackoff(w.backoff)
		return 0
	}
	if len(jobs) == 0 {
		w.backoff = 0
		return 0
	}

	if pending, err := w.jobRepo.PendingCount(ctx); err == nil {
		metrics.PendingIngestJobs.Set(float64(pending))
	}

	batchFailed := false
	for _, job := range jobs {
		if err := w.processJob(ctx, job); err != nil {
			batchFailed = true
		}
	}

	if batchFailed {
		w.backoff = w.nextBackoff(w.backoff)
		w.logger.Warn("Worker backing off", "backoff", w.backoff.String())
	} else {
		w.backoff = 0
	}
	return len(jobs)
}

func (w *IngestWorker) processJob(ctx context.Context, job domain.IngestJob) error {
	w.logger.Info("Processing ingest job",
		"job_id", job.ID,
		"source_type", string(job.SourceType),
		"source_id", job.SourceID,
	)

	_, processErr := w.ingestUsecase.Ingest(ctx, usecase.IngestInput{
		SourceType: job.SourceType,
		SourceID:   job.SourceID,
		Text:       job.Text,
		Meta:       job.Meta,
		Overwrite:  job.Overwrite,
	})

	// A conflict means the document is already there; the job is done.
	if domain.KindOf(processErr) == domain.KindConflict {
		processErr = nil
	}

	status := "completed"
	var errMsg *string
	if processErr != nil {
		status = "failed"
		msg := processErr.Error()
		errMsg = &msg
		w.logger.Warn("Ingest job failed", "job_id", job.ID, "error", processErr)
	} else {
		w.logger.Info("Ingest job completed", "job_id", job.ID)
	}

	if err := w.jobRepo.UpdateStatus(ctx, job.ID, status, errMsg); err != nil {
		w.logger.Error("Failed to update job status", "job_id", job.ID, "error", err)
	}
	return processErr
}

func (w *IngestWorker) nextBackoff(current time.Duration) time.Duration {
	if current == 0 {
		return initialBackoff
	}
	next := current * 2
	if next > maxBackoff {
		return maxBackoff
	}
	return next
}
