package outbox

import (
	"context"

	"github.com/clearrail/claimflow/httpclient"
	"github.com/clearrail/claimflow/logger"
)

// WebhookPublisher delivers events to an HTTP sink, one POST per event,
// through the resilient client. Duplicate deliveries are the sink's
// problem to dedupe by event id.
type WebhookPublisher struct {
	client *httpclient.Client
}

// NewWebhookPublisher wraps the given client as a Publisher.
func NewWebhookPublisher(client *httpclient.Client) *WebhookPublisher {
	return &WebhookPublisher{client: client}
}

func (p *WebhookPublisher) Publish(ctx context.Context, event Event) error {
	return p.client.PostJSON(ctx, "/events", event, nil)
}

// LogPublisher writes events to the log instead of delivering them. Used
// when no sink is configured, typically local development.
type LogPublisher struct{}

func (LogPublisher) Publish(ctx context.Context, event Event) error {
	logger.Get(ctx).Info("outbox event (no sink configured)",
		"event_id", event.ID,
		"event_type", event.EventType,
		"aggregate_id", event.AggregateID)

	return nil
}
