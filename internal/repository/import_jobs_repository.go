package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"fulfill-service/internal/models"
)

// ErrJobFinished is returned when a mutation targets a job that already
// reached a terminal state.
var ErrJobFinished = errors.New("import job already finished")

// ImportJobsRepository persists import job state. It enforces the job state
// machine at the storage layer: terminal jobs are never mutated.
type ImportJobsRepository struct {
	db *gorm.DB
}

// NewImportJobsRepository creates a new ImportJobsRepository.
func NewImportJobsRepository(db *gorm.DB) *ImportJobsRepository {
	return &ImportJobsRepository{db: db}
}

// CreateJob persists a new pending job carrying the raw CSV payload.
func (r *ImportJobsRepository) CreateJob(ctx context.Context, job *models.ImportJob) error {
	if job.Status == "" {
		job.Status = models.ImportStatusPending
	}
	return r.db.WithContext(ctx).Create(job).Error
}

// GetJobByID retrieves a job by ID.
func (r *ImportJobsRepository) GetJobByID(ctx context.Context, id uuid.UUID) (*models.ImportJob, error) {
	var job models.ImportJob
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&job).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &job, nil
}

// ListJobs returns jobs newest first.
func (r *ImportJobsRepository) ListJobs(ctx context.Context, limit int) ([]models.ImportJob, error) {
	if limit <= 0 {
		limit = 20
	}
	var jobs []models.ImportJob
	err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Find(&jobs).Error
	return jobs, err
}

// guardedUpdate applies updates only while the job is non-terminal.
func (r *ImportJobsRepository) guardedUpdate(ctx context.Context, id uuid.UUID, updates map[string]interface{}) error {
	result := r.db.WithContext(ctx).Model(&models.ImportJob{}).
		Where("id = ? AND status NOT IN ?", id,
			[]models.ImportStatus{models.ImportStatusCompleted, models.ImportStatusFailed}).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		var count int64
		if err := r.db.WithContext(ctx).Model(&models.ImportJob{}).Where("id = ?", id).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return ErrNotFound
		}
		return ErrJobFinished
	}
	return nil
}

// MarkProcessing transitions a pending job to processing.
func (r *ImportJobsRepository) MarkProcessing(ctx context.Context, id uuid.UUID) error {
	return r.guardedUpdate(ctx, id, map[string]interface{}{
		"status": models.ImportStatusProcessing,
	})
}

// SetTotalRecords persists the valid-record count established by the
// orchestrator's first pass.
func (r *ImportJobsRepository) SetTotalRecords(ctx context.Context, id uuid.UUID, total int) error {
	return r.guardedUpdate(ctx, id, map[string]interface{}{
		"total_records": total,
	})
}

// UpdateProgress persists processed, total and the derived percentage in
// one write. Progress is floor(processed/total*100) when total is
// positive, 0 otherwise.
func (r *ImportJobsRepository) UpdateProgress(ctx context.Context, id uuid.UUID, processed, total int) error {
	progress := 0
	if total > 0 {
		progress = processed * 100 / total
	}
	return r.guardedUpdate(ctx, id, map[string]interface{}{
		"processed_records": processed,
		"total_records":     total,
		"progress":          progress,
	})
}

// MarkCompleted finalizes a job: progress is forced to 100 even for
// imports with zero valid records.
func (r *ImportJobsRepository) MarkCompleted(ctx context.Context, id uuid.UUID, processed int) error {
	return r.guardedUpdate(ctx, id, map[string]interface{}{
		"status":            models.ImportStatusCompleted,
		"progress":          100,
		"processed_records": processed,
	})
}

// ResetForRetry moves a failed job back to pending so the worker can
// attempt it again, clearing the recorded error and counters. Completed
// jobs are never reset; reports ErrJobFinished for them.
func (r *ImportJobsRepository) ResetForRetry(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Model(&models.ImportJob{}).
		Where("id = ? AND status = ?", id, models.ImportStatusFailed).
		Updates(map[string]interface{}{
			"status":            models.ImportStatusPending,
			"error_message":     nil,
			"progress":          0,
			"processed_records": 0,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		var count int64
		if err := r.db.WithContext(ctx).Model(&models.ImportJob{}).Where("id = ?", id).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return ErrNotFound
		}
		return ErrJobFinished
	}
	return nil
}

// MarkFailed records the failure message and transitions the job to its
// terminal failed state.
func (r *ImportJobsRepository) MarkFailed(ctx context.Context, id uuid.UUID, message string) error {
	return r.guardedUpdate(ctx, id, map[string]interface{}{
		"status":        models.ImportStatusFailed,
		"error_message": message,
	})
}
