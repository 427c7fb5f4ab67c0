package conversation

import (
	"context"
	"time"

	"github.com/leadrail/leadrail/pkg/logging"
)

// Worker drains pipeline jobs from the queue and runs them through the
// service. Every received job is acknowledged, succeed or fail: the service
// appends conversation turns before sending, so redelivering a failed job
// would append a second turn pair for the same inbound event. A failure is
// terminal for that event only.
type Worker struct {
	queue   queueClient
	service *Service
	logger  *logging.Logger
}

func NewWorker(queue queueClient, service *Service, logger *logging.Logger) *Worker {
	if queue == nil {
		panic("conversation: queue required")
	}
	if service == nil {
		panic("conversation: service required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Worker{queue: queue, service: service, logger: logger}
}

// Run consumes jobs until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		messages, err := w.queue.Receive(ctx, 10, 5)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			w.logger.Error("queue receive failed", "error", err)
			time.Sleep(time.Second)
			continue
		}

		for _, msg := range messages {
			w.handle(ctx, msg)
		}
	}
}

func (w *Worker) handle(ctx context.Context, msg queueMessage) {
	payload, err := decodePayload(msg.Body)
	if err != nil {
		w.logger.Error("dropping malformed pipeline job", "error", err, "message_id", msg.ID)
		if err := w.queue.Delete(ctx, msg.ReceiptHandle); err != nil {
			w.logger.Warn("delete malformed job failed", "error", err)
		}
		return
	}

	if err := w.service.ProcessMessage(ctx, payload.Message); err != nil {
		// Acked anyway. The turns for this event are already stored, so a
		// retry would duplicate them; one bad event must not stop the next
		// independent one.
		w.logger.Error("pipeline job failed, not retrying", "error", err, "job_id", payload.ID)
	}

	if err := w.queue.Delete(ctx, msg.ReceiptHandle); err != nil {
		w.logger.Warn("delete job failed", "error", err, "job_id", payload.ID)
	}
}
