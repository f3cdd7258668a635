package repository

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"fulfill-service/internal/models"
)

// ErrDuplicateWebhook is returned when a URL is already subscribed to the
// same event type.
var ErrDuplicateWebhook = errors.New("webhook already registered for this event type")

// WebhooksRepository handles database operations for webhook subscriptions.
type WebhooksRepository struct {
	db *gorm.DB
}

// NewWebhooksRepository creates a new WebhooksRepository.
func NewWebhooksRepository(db *gorm.DB) *WebhooksRepository {
	return &WebhooksRepository{db: db}
}

// CreateWebhook registers a new webhook subscription.
func (r *WebhooksRepository) CreateWebhook(ctx context.Context, webhook *models.Webhook) error {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Webhook{}).
		Where("url = ? AND event_type = ?", webhook.URL, webhook.EventType).
		Count(&count).Error
	if err != nil {
		return err
	}
	if count > 0 {
		return ErrDuplicateWebhook
	}
	if err := r.db.WithContext(ctx).Create(webhook).Error; err != nil {
		// The unique index may still fire under concurrent registration.
		if strings.Contains(err.Error(), "UNIQUE") || strings.Contains(err.Error(), "duplicate") {
			return ErrDuplicateWebhook
		}
		return err
	}
	return nil
}

// GetWebhookByID retrieves a webhook by ID.
func (r *WebhooksRepository) GetWebhookByID(ctx context.Context, id uuid.UUID) (*models.Webhook, error) {
	var webhook models.Webhook
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&webhook).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &webhook, nil
}

// ListWebhooks returns webhooks newest first, optionally filtered by
// enabled status.
func (r *WebhooksRepository) ListWebhooks(ctx context.Context, enabled *bool) ([]models.Webhook, error) {
	var webhooks []models.Webhook
	query := r.db.WithContext(ctx).Model(&models.Webhook{})
	if enabled != nil {
		query = query.Where("enabled = ?", *enabled)
	}
	err := query.Order("created_at DESC").Find(&webhooks).Error
	return webhooks, err
}

// ListEnabledByEventType returns the enabled webhooks subscribed to an
// event type; the dispatcher fans out to these.
func (r *WebhooksRepository) ListEnabledByEventType(ctx context.Context, eventType string) ([]models.Webhook, error) {
	var webhooks []models.Webhook
	err := r.db.WithContext(ctx).
		Where("event_type = ? AND enabled = ?", eventType, true).
		Find(&webhooks).Error
	return webhooks, err
}

// UpdateWebhook applies the given field updates to a webhook.
func (r *WebhooksRepository) UpdateWebhook(ctx context.Context, id uuid.UUID, updates map[string]interface{}) (*models.Webhook, error) {
	result := r.db.WithContext(ctx).Model(&models.Webhook{}).
		Where("id = ?", id).
		Updates(updates)
	if result.Error != nil {
		if strings.Contains(result.Error.Error(), "UNIQUE") || strings.Contains(result.Error.Error(), "duplicate") {
			return nil, ErrDuplicateWebhook
		}
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, ErrNotFound
	}
	return r.GetWebhookByID(ctx, id)
}

// DeleteWebhook removes a webhook subscription.
func (r *WebhooksRepository) DeleteWebhook(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Webhook{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
