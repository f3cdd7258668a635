package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Product lifecycle event types delivered to webhooks.
const (
	EventProductCreated = "product.created"
	EventProductUpdated = "product.updated"
	EventProductDeleted = "product.deleted"
)

// KnownEventType reports whether the given event type can be subscribed to.
func KnownEventType(eventType string) bool {
	switch eventType {
	case EventProductCreated, EventProductUpdated, EventProductDeleted:
		return true
	}
	return false
}

// Webhook is a subscription of one URL to one product lifecycle event type.
// The same URL may subscribe to several event types, but only once each.
type Webhook struct {
	ID        uuid.UUID `json:"id" gorm:"type:uuid;primary_key"`
	URL       string    `json:"url" gorm:"size:500;not null;uniqueIndex:idx_webhooks_url_event"`
	EventType string    `json:"eventType" gorm:"size:50;not null;index;uniqueIndex:idx_webhooks_url_event"`
	Enabled   bool      `json:"enabled" gorm:"index"`
	CreatedAt time.Time `json:"createdAt" gorm:"index"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (Webhook) TableName() string {
	return "webhooks"
}

func (w *Webhook) BeforeCreate(tx *gorm.DB) error {
	if w.ID == uuid.Nil {
		w.ID = uuid.New()
	}
	return nil
}

// CreateWebhookRequest is the payload for registering a webhook.
type CreateWebhookRequest struct {
	URL       string `json:"url" binding:"required,url"`
	EventType string `json:"eventType" binding:"required"`
	Enabled   *bool  `json:"enabled,omitempty"`
}

// UpdateWebhookRequest is the payload for updating a webhook.
type UpdateWebhookRequest struct {
	URL       *string `json:"url,omitempty"`
	EventType *string `json:"eventType,omitempty"`
	Enabled   *bool   `json:"enabled,omitempty"`
}

// WebhookTestResult reports the outcome of a manual webhook test delivery.
type WebhookTestResult struct {
	Status       string   `json:"status"`
	StatusCode   int      `json:"statusCode,omitempty"`
	ResponseTime *float64 `json:"responseTime,omitempty"`
	ResponseBody string   `json:"responseBody,omitempty"`
	Error        string   `json:"error,omitempty"`
}
