package conversation

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
)

// SQSQueue is a queueClient backed by AWS/LocalStack SQS. It carries the
// durable job stream between the webhook API and the pipeline workers.
type SQSQueue struct {
	client     *sqs.Client
	queueURL   string
	visibility int32
}

// SQSQueueConfig configures an SQS-backed job queue.
type SQSQueueConfig struct {
	Client   *sqs.Client
	QueueURL string
	// VisibilitySeconds hides a received job from other workers while it is
	// being processed. Zero keeps the queue's own default.
	VisibilitySeconds int
}

// NewSQSQueue creates a queue wrapper around the provided SQS client.
func NewSQSQueue(cfg SQSQueueConfig) *SQSQueue {
	if cfg.Client == nil {
		panic("conversation: SQS client required")
	}
	if cfg.QueueURL == "" {
		panic("conversation: SQS queue URL required")
	}
	return &SQSQueue{
		client:     cfg.Client,
		queueURL:   cfg.QueueURL,
		visibility: int32(cfg.VisibilitySeconds),
	}
}

func (q *SQSQueue) Send(ctx context.Context, body string) error {
	if _, err := q.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(q.queueURL),
		MessageBody: aws.String(body),
	}); err != nil {
		return fmt.Errorf("conversation: send SQS message: %w", err)
	}
	return nil
}

func (q *SQSQueue) Receive(ctx context.Context, maxMessages int, waitSeconds int) ([]queueMessage, error) {
	input := &sqs.ReceiveMessageInput{
		QueueUrl:            aws.String(q.queueURL),
		MaxNumberOfMessages: int32(maxMessages),
		WaitTimeSeconds:     int32(waitSeconds),
	}
	if q.visibility > 0 {
		input.VisibilityTimeout = q.visibility
	}

	output, err := q.client.ReceiveMessage(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("conversation: receive SQS messages: %w", err)
	}

	jobs := make([]queueMessage, 0, len(output.Messages))
	for _, msg := range output.Messages {
		jobs = append(jobs, queueMessage{
			ID:            aws.ToString(msg.MessageId),
			Body:          aws.ToString(msg.Body),
			ReceiptHandle: aws.ToString(msg.ReceiptHandle),
		})
	}
	return jobs, nil
}

// Delete acknowledges a processed job. An empty receipt handle is a no-op so
// the in-memory queue and SQS behave the same.
func (q *SQSQueue) Delete(ctx context.Context, receiptHandle string) error {
	if receiptHandle == "" {
		return nil
	}
	if _, err := q.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(q.queueURL),
		ReceiptHandle: aws.String(receiptHandle),
	}); err != nil {
		return fmt.Errorf("conversation: delete SQS message: %w", err)
	}
	return nil
}
