package services

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"fulfill-service/internal/repository"
)

// ImportService runs persisted import jobs: a counting pass over the
// stored file to fix the total, then a chunked processing pass that
// upserts each batch and advances the job's progress.
type ImportService struct {
	jobs      *repository.ImportJobsRepository
	engine    *UpsertEngine
	chunkSize int
	logger    *logrus.Entry
}

// NewImportService creates the import runner. A non-positive chunkSize
// falls back to DefaultChunkSize.
func NewImportService(jobs *repository.ImportJobsRepository, engine *UpsertEngine, chunkSize int, logger *logrus.Logger) *ImportService {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	return &ImportService{
		jobs:      jobs,
		engine:    engine,
		chunkSize: chunkSize,
		logger:    logger.WithField("component", "import-service"),
	}
}

// Run executes the job end to end and moves it to a terminal status.
// Returns repository.ErrNotFound when no such job exists. A job already
// in a terminal status is left untouched.
func (s *ImportService) Run(ctx context.Context, jobID uuid.UUID) error {
	job, err := s.jobs.GetJobByID(ctx, jobID)
	if err != nil {
		return err
	}

	log := s.logger.WithField("job_id", jobID)

	if err := s.jobs.MarkProcessing(ctx, jobID); err != nil {
		if errors.Is(err, repository.ErrJobFinished) {
			log.WithField("status", job.Status).Info("Import job already finished, skipping")
			return nil
		}
		return err
	}

	source, err := NewCSVSource([]byte(job.FileContent))
	if err != nil {
		return s.fail(ctx, jobID, log, err)
	}

	total, err := countValidRows(source)
	if err != nil {
		return s.fail(ctx, jobID, log, fmt.Errorf("failed to count records: %w", err))
	}
	if err := s.jobs.SetTotalRecords(ctx, jobID, total); err != nil {
		return s.fail(ctx, jobID, log, err)
	}

	log.WithField("total_records", total).Info("Starting import job")

	if err := source.Reset(); err != nil {
		return s.fail(ctx, jobID, log, err)
	}
	chunker := NewChunker(source, s.chunkSize)
	processed := 0
	created := 0
	updated := 0

	for {
		batch, err := chunker.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return s.fail(ctx, jobID, log, fmt.Errorf("failed to read records: %w", err))
		}

		batchCreated, batchUpdated, err := s.engine.Apply(ctx, batch.Records)
		if err != nil {
			return s.fail(ctx, jobID, log, fmt.Errorf("failed to process batch: %w", err))
		}

		created += batchCreated
		updated += batchUpdated
		processed += batch.RowCount

		if err := s.jobs.UpdateProgress(ctx, jobID, processed, total); err != nil {
			return s.fail(ctx, jobID, log, err)
		}
	}

	if err := s.jobs.MarkCompleted(ctx, jobID, processed); err != nil {
		return s.fail(ctx, jobID, log, err)
	}

	log.WithFields(logrus.Fields{
		"processed": processed,
		"created":   created,
		"updated":   updated,
		"skipped":   chunker.SkippedTotal(),
	}).Info("Import job completed")

	return nil
}

// countValidRows is the first pass: scan the whole source and count rows
// that would survive validation, without touching the store.
func countValidRows(source RowSource) (int, error) {
	total := 0
	for {
		row, err := source.Next()
		if err == io.EOF {
			return total, nil
		}
		if err != nil {
			return 0, err
		}
		if _, _, ok := ValidateRow(row); ok {
			total++
		}
	}
}

func (s *ImportService) fail(ctx context.Context, jobID uuid.UUID, log *logrus.Entry, cause error) error {
	log.WithError(cause).Error("Import job failed")
	if err := s.jobs.MarkFailed(ctx, jobID, cause.Error()); err != nil && !errors.Is(err, repository.ErrJobFinished) {
		log.WithError(err).Error("Failed to record import job failure")
	}
	return cause
}
