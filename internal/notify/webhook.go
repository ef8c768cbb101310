package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/Steinwealth/UltimaBot/internal/models"
)

// WebhookSubscriber posts each event as JSON to a URL.
type WebhookSubscriber struct {
	url    string
	client *http.Client
}

// NewWebhookSubscriber creates a webhook subscriber.
func NewWebhookSubscriber(url string, timeout time.Duration) *WebhookSubscriber {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &WebhookSubscriber{
		url: url,
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

// Name returns the subscriber name.
func (w *WebhookSubscriber) Name() string {
	return "webhook"
}

// Send posts the event.
func (w *WebhookSubscriber) Send(ctx context.Context, ev models.Event) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshaling webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating webhook request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "UltimaBot/1.0")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("sending webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}

	return nil
}
