package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"fulfill-service/internal/events"
	"fulfill-service/internal/models"
	"fulfill-service/internal/repository"
)

type WebhooksHandler struct {
	repo       *repository.WebhooksRepository
	dispatcher *events.WebhookDispatcher
}

func NewWebhooksHandler(repo *repository.WebhooksRepository, dispatcher *events.WebhookDispatcher) *WebhooksHandler {
	return &WebhooksHandler{
		repo:       repo,
		dispatcher: dispatcher,
	}
}

// CreateWebhook registers a URL for a product lifecycle event type.
// POST /api/v1/webhooks
func (h *WebhooksHandler) CreateWebhook(c *gin.Context) {
	var req models.CreateWebhookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}

	if !models.KnownEventType(req.EventType) {
		respondError(c, http.StatusBadRequest, "UNKNOWN_EVENT_TYPE", "Unsupported event type: "+req.EventType)
		return
	}

	webhook := &models.Webhook{
		URL:       req.URL,
		EventType: req.EventType,
		Enabled:   true,
	}
	if req.Enabled != nil {
		webhook.Enabled = *req.Enabled
	}

	if err := h.repo.CreateWebhook(c.Request.Context(), webhook); err != nil {
		if errors.Is(err, repository.ErrDuplicateWebhook) {
			respondError(c, http.StatusConflict, "DUPLICATE_WEBHOOK", "This URL is already subscribed to this event type")
			return
		}
		respondError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to create webhook")
		return
	}

	c.JSON(http.StatusCreated, webhook)
}

// GetWebhook retrieves a webhook by ID.
// GET /api/v1/webhooks/:id
func (h *WebhooksHandler) GetWebhook(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_ID", "Invalid webhook ID")
		return
	}

	webhook, err := h.repo.GetWebhookByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			respondError(c, http.StatusNotFound, "NOT_FOUND", "Webhook not found")
			return
		}
		respondError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to get webhook")
		return
	}

	c.JSON(http.StatusOK, webhook)
}

// ListWebhooks lists webhooks, optionally filtered by enabled state.
// GET /api/v1/webhooks
func (h *WebhooksHandler) ListWebhooks(c *gin.Context) {
	var enabled *bool
	if raw := c.Query("enabled"); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "enabled must be a boolean")
			return
		}
		enabled = &parsed
	}

	webhooks, err := h.repo.ListWebhooks(c.Request.Context(), enabled)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list webhooks")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"webhooks": webhooks,
	})
}

// UpdateWebhook partially updates a webhook.
// PATCH /api/v1/webhooks/:id
func (h *WebhooksHandler) UpdateWebhook(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_ID", "Invalid webhook ID")
		return
	}

	var req models.UpdateWebhookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}

	updates := make(map[string]interface{})
	if req.URL != nil {
		updates["url"] = *req.URL
	}
	if req.EventType != nil {
		if !models.KnownEventType(*req.EventType) {
			respondError(c, http.StatusBadRequest, "UNKNOWN_EVENT_TYPE", "Unsupported event type: "+*req.EventType)
			return
		}
		updates["event_type"] = *req.EventType
	}
	if req.Enabled != nil {
		updates["enabled"] = *req.Enabled
	}
	if len(updates) == 0 {
		respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "No fields to update")
		return
	}

	webhook, err := h.repo.UpdateWebhook(c.Request.Context(), id, updates)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			respondError(c, http.StatusNotFound, "NOT_FOUND", "Webhook not found")
		case errors.Is(err, repository.ErrDuplicateWebhook):
			respondError(c, http.StatusConflict, "DUPLICATE_WEBHOOK", "This URL is already subscribed to this event type")
		default:
			respondError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to update webhook")
		}
		return
	}

	c.JSON(http.StatusOK, webhook)
}

// DeleteWebhook removes a webhook.
// DELETE /api/v1/webhooks/:id
func (h *WebhooksHandler) DeleteWebhook(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_ID", "Invalid webhook ID")
		return
	}

	if err := h.repo.DeleteWebhook(c.Request.Context(), id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			respondError(c, http.StatusNotFound, "NOT_FOUND", "Webhook not found")
			return
		}
		respondError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to delete webhook")
		return
	}

	c.Status(http.StatusNoContent)
}

// TestWebhook delivers a synchronous test payload to the webhook's URL and
// reports the response.
// POST /api/v1/webhooks/:id/test
func (h *WebhooksHandler) TestWebhook(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_ID", "Invalid webhook ID")
		return
	}

	webhook, err := h.repo.GetWebhookByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			respondError(c, http.StatusNotFound, "NOT_FOUND", "Webhook not found")
			return
		}
		respondError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to get webhook")
		return
	}

	result := h.dispatcher.Test(webhook)
	c.JSON(http.StatusOK, result)
}
