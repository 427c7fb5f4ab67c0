package conversation

import (
	"context"
	"fmt"

	"github.com/leadrail/leadrail/pkg/logging"
)

// Publisher enqueues pipeline jobs for asynchronous processing.
type Publisher struct {
	queue  queueClient
	logger *logging.Logger
}

// NewPublisher creates a queue-backed publisher.
func NewPublisher(queue queueClient, logger *logging.Logger) *Publisher {
	if queue == nil {
		panic("conversation: queue cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Publisher{
		queue:  queue,
		logger: logger,
	}
}

// EnqueueMessage publishes a debounced inbound message for processing.
func (p *Publisher) EnqueueMessage(ctx context.Context, jobID string, req MessageRequest) error {
	if ctx == nil {
		ctx = context.Background()
	}

	payload, body, err := encodePayload(queuePayload{ID: jobID, Message: req})
	if err != nil {
		return err
	}

	if err := p.queue.Send(ctx, body); err != nil {
		return fmt.Errorf("conversation: enqueue job: %w", err)
	}

	p.logger.Debug("pipeline job enqueued", "job_id", payload.ID, "channel", req.Channel)
	return nil
}
