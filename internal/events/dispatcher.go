package events

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"fulfill-service/internal/models"
	"fulfill-service/internal/repository"
)

// EventSink receives product lifecycle events. Handlers publish through
// this interface so delivery failures never surface on the API path.
type EventSink interface {
	Publish(ctx context.Context, eventType string, payload interface{})
}

const (
	defaultDeliveryTimeout = 10 * time.Second
	deliveryAttempts       = 3
	retryBackoff           = time.Second
)

// WebhookDispatcher fans product events out to every enabled webhook
// subscribed to the event type. Deliveries run in the background and are
// retried a fixed number of times; a webhook that still fails is logged
// and skipped, never blocking the caller.
type WebhookDispatcher struct {
	webhooks *repository.WebhooksRepository
	client   *http.Client
	logger   *logrus.Entry
}

// NewWebhookDispatcher creates a dispatcher. A non-positive timeout falls
// back to the default delivery timeout.
func NewWebhookDispatcher(webhooks *repository.WebhooksRepository, timeout time.Duration, logger *logrus.Logger) *WebhookDispatcher {
	if timeout <= 0 {
		timeout = defaultDeliveryTimeout
	}
	return &WebhookDispatcher{
		webhooks: webhooks,
		client:   &http.Client{Timeout: timeout},
		logger:   logger.WithField("component", "webhook-dispatcher"),
	}
}

// WebhookEnvelope is the JSON body POSTed to subscribers.
type WebhookEnvelope struct {
	Event     string      `json:"event"`
	Data      interface{} `json:"data"`
	Timestamp time.Time   `json:"timestamp"`
}

// Publish delivers the event to all enabled subscribers asynchronously.
func (d *WebhookDispatcher) Publish(ctx context.Context, eventType string, payload interface{}) {
	subscribers, err := d.webhooks.ListEnabledByEventType(ctx, eventType)
	if err != nil {
		d.logger.WithError(err).WithField("event_type", eventType).
			Error("Failed to load webhook subscribers")
		return
	}
	if len(subscribers) == 0 {
		return
	}

	envelope := WebhookEnvelope{
		Event:     eventType,
		Data:      payload,
		Timestamp: time.Now().UTC(),
	}
	body, err := json.Marshal(envelope)
	if err != nil {
		d.logger.WithError(err).WithField("event_type", eventType).
			Error("Failed to encode webhook payload")
		return
	}

	for _, webhook := range subscribers {
		go d.deliverWithRetry(webhook, body)
	}
}

func (d *WebhookDispatcher) deliverWithRetry(webhook models.Webhook, body []byte) {
	log := d.logger.WithFields(logrus.Fields{
		"webhook_id": webhook.ID,
		"event_type": webhook.EventType,
		"url":        webhook.URL,
	})

	var lastErr error
	for attempt := 1; attempt <= deliveryAttempts; attempt++ {
		status, err := d.post(webhook.URL, body)
		if err == nil && status < http.StatusBadRequest {
			log.WithField("attempt", attempt).Debug("Webhook delivered")
			return
		}
		if err != nil {
			lastErr = err
		} else {
			lastErr = fmt.Errorf("received status %d", status)
		}
		if attempt < deliveryAttempts {
			time.Sleep(retryBackoff * time.Duration(attempt))
		}
	}

	log.WithError(lastErr).Warn("Webhook delivery failed after retries")
}

func (d *WebhookDispatcher) post(url string, body []byte) (int, error) {
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	return resp.StatusCode, nil
}

// Test delivers a synchronous ping to a single webhook and reports the
// outcome, used by the webhook test endpoint.
func (d *WebhookDispatcher) Test(webhook *models.Webhook) models.WebhookTestResult {
	envelope := WebhookEnvelope{
		Event:     webhook.EventType,
		Data:      map[string]interface{}{"test": true, "webhook_id": webhook.ID},
		Timestamp: time.Now().UTC(),
	}
	body, _ := json.Marshal(envelope)

	start := time.Now()
	req, err := http.NewRequest(http.MethodPost, webhook.URL, bytes.NewReader(body))
	if err != nil {
		return models.WebhookTestResult{Status: "error", Error: err.Error()}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	elapsed := time.Since(start).Seconds()
	if err != nil {
		return models.WebhookTestResult{Status: "error", ResponseTime: &elapsed, Error: err.Error()}
	}
	defer resp.Body.Close()

	preview, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))

	status := "success"
	if resp.StatusCode >= http.StatusBadRequest {
		status = "error"
	}
	return models.WebhookTestResult{
		Status:       status,
		StatusCode:   resp.StatusCode,
		ResponseTime: &elapsed,
		ResponseBody: string(preview),
	}
}
