package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"stock-tracker/internal/config"
	"stock-tracker/internal/models"
	"stock-tracker/internal/security"
)

// WebhookNotifier sends notifications via HTTP webhook.
type WebhookNotifier struct {
	url     string
	enabled bool
	client  *http.Client
}

// NewWebhookNotifier creates a new WebhookNotifier.
func NewWebhookNotifier(cfg config.WebhookConfig) *WebhookNotifier {
	return &WebhookNotifier{
		url:     cfg.URL,
		enabled: cfg.Enabled && cfg.URL != "",
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Name returns the name of the notifier.
func (w *WebhookNotifier) Name() string {
	return "webhook"
}

// IsEnabled returns whether the notifier is enabled.
func (w *WebhookNotifier) IsEnabled() bool {
	return w.enabled
}

// SendEvent posts ev with its rendered text.
func (w *WebhookNotifier) SendEvent(ctx context.Context, ev models.AlertEvent) error {
	meta := ev.Meta()
	return w.post(ctx, map[string]any{
		"type":      ev.Kind(),
		"id":        meta.ID,
		"symbol":    models.EventSymbol(ev),
		"message":   FormatEvent(ev),
		"data":      ev,
		"timestamp": meta.At.Format(time.RFC3339),
	})
}

// SendText posts a plain message.
func (w *WebhookNotifier) SendText(ctx context.Context, text string) error {
	return w.post(ctx, map[string]any{
		"type":      "text",
		"message":   text,
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

// SendPhoto posts the image base64 encoded.
func (w *WebhookNotifier) SendPhoto(ctx context.Context, filename string, png []byte, caption string) error {
	return w.post(ctx, map[string]any{
		"type":      "photo",
		"filename":  filename,
		"caption":   caption,
		"image":     png,
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

func (w *WebhookNotifier) post(ctx context.Context, payload map[string]any) error {
	if !w.enabled {
		return nil
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshaling webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating webhook request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "StockTracker/1.0")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("sending webhook: %w", security.RedactError(err))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}

	return nil
}
