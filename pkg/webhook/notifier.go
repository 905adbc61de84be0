package webhook

import (
	"context"

	"github.com/lcdc/cutlog/pkg/config"
	"github.com/lcdc/cutlog/pkg/logger"
	"github.com/lcdc/cutlog/pkg/output"
)

// Delivery is the result of one webhook in a Notify call.
type Delivery struct {
	Name     string
	Response *Response
}

// Notifier fans a report out to the configured webhooks.
type Notifier struct {
	client   *Client
	webhooks []config.WebhookConfig
	log      *logger.Logger
}

// NewNotifier creates a notifier for the given webhooks.
func NewNotifier(webhooks []config.WebhookConfig, log *logger.Logger) *Notifier {
	if log == nil {
		log = logger.Nop()
	}
	return &Notifier{
		client:   NewClient(),
		webhooks: webhooks,
		log:      log.With("service", "Notifier"),
	}
}

// Notify posts a summary of the report's ingestion run to every webhook
// whose trigger fires. Delivery failures are logged and returned, never
// treated as run failures.
func (n *Notifier) Notify(ctx context.Context, report *output.Report) []Delivery {
	var out []Delivery
	var payload *Payload
	for _, wh := range n.webhooks {
		if !ShouldFire(wh.Trigger, report.HasIssues()) {
			continue
		}

		name := wh.Name
		if name == "" {
			name = wh.URL
		}

		if payload == nil {
			payload = NewPayload(report)
		}
		resp := n.client.Send(ctx, payload, SendOptions{
			URL:     wh.URL,
			Token:   wh.Token,
			Timeout: wh.Timeout,
		})
		if resp.Success() {
			n.log.Info("webhook sent", "webhook", name, "event", payload.Event, "status", resp.StatusCode, "elapsed", resp.Duration)
		} else {
			n.log.Warn("webhook failed", "webhook", name, "error", resp.Error)
		}
		out = append(out, Delivery{Name: name, Response: resp})
	}
	return out
}

// ShouldFire reports whether a webhook with trigger fires for a run.
// An empty trigger behaves like on_failures.
func ShouldFire(trigger config.WebhookTrigger, hasFailures bool) bool {
	switch trigger {
	case config.WebhookTriggerAlways:
		return true
	case config.WebhookTriggerNever:
		return false
	default:
		return hasFailures
	}
}
