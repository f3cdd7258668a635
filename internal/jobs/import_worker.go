package jobs

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"fulfill-service/internal/repository"
	"fulfill-service/internal/services"
)

const (
	defaultQueueSize = 64
	maxJobAttempts   = 3
	attemptBackoff   = 2 * time.Second
)

// ImportWorker runs queued import jobs in the background. Jobs are
// executed one at a time in enqueue order; a job that errors is retried
// up to maxJobAttempts before being left in its failed state.
type ImportWorker struct {
	importer *services.ImportService
	jobs     *repository.ImportJobsRepository
	logger   *logrus.Logger
	queue    chan uuid.UUID
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// NewImportWorker creates a new import worker
func NewImportWorker(importer *services.ImportService, jobs *repository.ImportJobsRepository, logger *logrus.Logger) *ImportWorker {
	return &ImportWorker{
		importer: importer,
		jobs:     jobs,
		logger:   logger,
		queue:    make(chan uuid.UUID, defaultQueueSize),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Enqueue schedules a job for execution. Returns false when the queue is
// full; the job stays PENDING and can be re-enqueued later.
func (w *ImportWorker) Enqueue(jobID uuid.UUID) bool {
	select {
	case w.queue <- jobID:
		return true
	default:
		w.logger.WithField("job_id", jobID).Warn("Import queue full, job left pending")
		return false
	}
}

// Start begins draining the queue. Blocks until Stop is called or the
// context is cancelled; run it in its own goroutine.
func (w *ImportWorker) Start(ctx context.Context) {
	w.logger.Info("Import worker started")
	defer close(w.doneCh)

	for {
		select {
		case jobID := <-w.queue:
			w.runJob(ctx, jobID)
		case <-w.stopCh:
			w.logger.Info("Import worker stopped")
			return
		case <-ctx.Done():
			w.logger.Info("Import worker context cancelled")
			return
		}
	}
}

// Stop signals the worker to stop and waits for the in-flight job to finish.
func (w *ImportWorker) Stop() {
	close(w.stopCh)
	<-w.doneCh
}

func (w *ImportWorker) runJob(ctx context.Context, jobID uuid.UUID) {
	log := w.logger.WithField("job_id", jobID)

	for attempt := 1; attempt <= maxJobAttempts; attempt++ {
		err := w.importer.Run(ctx, jobID)
		if err == nil {
			return
		}
		if errors.Is(err, repository.ErrNotFound) {
			log.Warn("Import job vanished before execution")
			return
		}

		log.WithError(err).WithField("attempt", attempt).Error("Import job attempt failed")
		if attempt < maxJobAttempts {
			select {
			case <-time.After(attemptBackoff * time.Duration(attempt)):
			case <-ctx.Done():
				return
			}
			// A failed attempt left the job in FAILED; move it back to
			// PENDING so the next attempt can run.
			if err := w.jobs.ResetForRetry(ctx, jobID); err != nil {
				log.WithError(err).Warn("Could not requeue job for retry")
				return
			}
		}
	}

	log.Error("Import job exhausted all attempts")
}
