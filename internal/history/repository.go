// Package history stores one PostingAttempt row per form-fill run.
package history

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"gorm.io/gorm"

	"listingpilot/backend/internal/models"
	"listingpilot/backend/internal/tasks"
)

var ErrNotFound = errors.New("posting attempt not found")

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Create(ctx context.Context, attempt *models.PostingAttempt) error {
	if err := r.db.WithContext(ctx).Create(attempt).Error; err != nil {
		return fmt.Errorf("save posting attempt %s: %w", attempt.AttemptID, err)
	}
	return nil
}

// List returns one page of attempts, newest first, and the total count.
func (r *Repository) List(ctx context.Context, page, pageSize int) ([]models.PostingAttempt, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	var total int64
	if err := r.db.WithContext(ctx).Model(&models.PostingAttempt{}).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count posting attempts: %w", err)
	}

	var attempts []models.PostingAttempt
	err := r.db.WithContext(ctx).Order("id DESC").Offset((page - 1) * pageSize).Limit(pageSize).Find(&attempts).Error
	if err != nil {
		return nil, 0, fmt.Errorf("list posting attempts: %w", err)
	}
	return attempts, total, nil
}

func (r *Repository) Get(ctx context.Context, attemptID string) (*models.PostingAttempt, error) {
	var attempt models.PostingAttempt
	err := r.db.WithContext(ctx).Where("attempt_id = ?", attemptID).First(&attempt).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, attemptID)
	}
	if err != nil {
		return nil, fmt.Errorf("read posting attempt %s: %w", attemptID, err)
	}
	return &attempt, nil
}

// PurgeOlderThan permanently removes attempts created before cutoff.
func (r *Repository) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result := r.db.WithContext(ctx).Unscoped().Where("created_at < ?", cutoff).Delete(&models.PostingAttempt{})
	if result.Error != nil {
		return 0, fmt.Errorf("purge posting attempts: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// Creator is the write side of Repository.
type Creator interface {
	Create(ctx context.Context, attempt *models.PostingAttempt) error
}

// AsyncWriter records attempts through the task queue so a slow database
// never delays the reply to the caller.
type AsyncWriter struct {
	queue *tasks.Queue
	repo  Creator
}

func NewAsyncWriter(queue *tasks.Queue, repo Creator) *AsyncWriter {
	return &AsyncWriter{queue: queue, repo: repo}
}

func (w *AsyncWriter) Record(attempt models.PostingAttempt) {
	queued := w.queue.Submit("record posting attempt "+attempt.AttemptID, func(ctx context.Context) error {
		return w.repo.Create(ctx, &attempt)
	})
	if !queued {
		log.Printf("⚠️ Posting attempt %s was not recorded (success=%v)", attempt.AttemptID, attempt.Success)
	}
}
