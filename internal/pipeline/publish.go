package pipeline

import (
	"context"

	"github.com/jardins/ghlsync/internal/ghl"
	"github.com/jardins/ghlsync/internal/logging"
	"github.com/jardins/ghlsync/internal/metrics"
)

// Publisher upserts named custom values into a location. The decision to
// create or update is made per call by listing the location's existing
// values and matching on exact name.
type Publisher struct {
	client  *ghl.Client
	logger  *logging.Logger
	metrics *metrics.Metrics
}

// NewPublisher creates a publisher.
func NewPublisher(client *ghl.Client, logger *logging.Logger, m *metrics.Metrics) *Publisher {
	if logger == nil {
		logger = logging.NewLogger()
	}
	return &Publisher{client: client, logger: logger, metrics: m}
}

// Publish writes content under the named custom value in the location,
// updating the first existing value with that exact name or creating a new
// one. A lookup failure aborts before any write is attempted.
func (p *Publisher) Publish(ctx context.Context, locationToken, locationID, name, content string) error {
	values, err := p.client.ListCustomValues(ctx, locationToken, locationID)
	if err != nil {
		return err
	}

	var existingID string
	for _, v := range values {
		if v.Name == name {
			existingID = v.ID
			break
		}
	}

	operation := "create"
	if existingID != "" {
		operation = "update"
		err = p.client.UpdateCustomValue(ctx, locationToken, locationID, existingID, name, content)
	} else {
		err = p.client.CreateCustomValue(ctx, locationToken, locationID, name, content)
	}
	if err != nil {
		p.metrics.RecordPublish(operation, "failure")
		return err
	}

	p.metrics.RecordPublish(operation, "success")
	p.logger.InfoWithContext(ctx, "custom value published",
		"location_id", locationID,
		"name", name,
		"operation", operation,
		"bytes", len(content),
	)
	return nil
}
