// Package webhook delivers outbound event notifications to creditor-owned
// endpoints. Delivery is best effort: one attempt, no retry queue.
package webhook

import (
	"context"
	"time"

	"github.com/go-resty/resty/v2"

	"negociaai/backend/internal/domain"
)

const eventAgreementCreated = "agreement_created"

type eventPayload struct {
	Event     string           `json:"event"`
	Timestamp string           `json:"timestamp"`
	Agreement *domain.Agreement `json:"agreement,omitempty"`
}

type Notifier struct {
	client *resty.Client
}

func NewNotifier(timeout time.Duration) *Notifier {
	client := resty.New().
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("User-Agent", "negociaai-webhook/1.0")

	return &Notifier{client: client}
}

// AgreementCreated posts the agreement_created event if the creditor has a
// webhook URL configured and the event enabled. Errors are returned for the
// caller to log; delivery failure never affects the agreement itself.
func (n *Notifier) AgreementCreated(ctx context.Context, cfg domain.WebhookConfig, agreement domain.Agreement) error {
	if cfg.URL == "" || !cfg.OnAgreementCreated {
		return nil
	}

	payload := eventPayload{
		Event:     eventAgreementCreated,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Agreement: &agreement,
	}

	req := n.client.R().SetContext(ctx).SetBody(payload)
	if cfg.Token != "" {
		req.SetAuthToken(cfg.Token)
	}
	_, err := req.Post(cfg.URL)
	return err
}

// Test sends a ping event so creditors can verify their endpoint from the
// settings page before saving it.
func (n *Notifier) Test(ctx context.Context, url string, token string) domain.WebhookTestResponse {
	payload := eventPayload{
		Event:     "ping",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	req := n.client.R().SetContext(ctx).SetBody(payload)
	if token != "" {
		req.SetAuthToken(token)
	}
	resp, err := req.Post(url)
	if err != nil {
		return domain.WebhookTestResponse{Success: false, Error: err.Error()}
	}
	return domain.WebhookTestResponse{
		Success: resp.StatusCode() >= 200 && resp.StatusCode() < 300,
		Status:  resp.StatusCode(),
	}
}
