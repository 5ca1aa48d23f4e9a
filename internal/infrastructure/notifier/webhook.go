package notifier

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"portal-api/internal/domain/notification"
)

// webhookPayload is the JSON body posted to NOTIFY_WEBHOOK_URL.
type webhookPayload struct {
	Event      notification.Event `json:"event"`
	Subject    string             `json:"subject"`
	Text       string             `json:"text"`
	Fields     map[string]string  `json:"fields,omitempty"`
	OccurredAt string             `json:"occurred_at"`
}

// WebhookSender posts notifications as JSON.
type WebhookSender struct {
	client *resty.Client
	url    string
}

// NewWebhookSender posts to url with the given per-request timeout.
func NewWebhookSender(url string, timeout time.Duration, serviceName string) *WebhookSender {
	client := resty.New().
		SetTimeout(timeout).
		SetHeader("User-Agent", serviceName+"/1.0").
		SetHeader("Content-Type", "application/json")
	return &WebhookSender{client: client, url: url}
}

func (w *WebhookSender) Name() string { return "webhook" }

func (w *WebhookSender) Send(ctx context.Context, n notification.Notification) error {
	resp, err := w.client.R().
		SetContext(ctx).
		SetHeader("X-Portal-Event", string(n.Event)).
		SetBody(webhookPayload{
			Event:      n.Event,
			Subject:    n.Subject,
			Text:       n.Text(),
			Fields:     n.Fields,
			OccurredAt: n.OccurredAt.UTC().Format(time.RFC3339),
		}).
		Post(w.url)
	if err != nil {
		return fmt.Errorf("send webhook: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode())
	}
	return nil
}
