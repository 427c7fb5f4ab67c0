package conversation

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

type queueClient interface {
	Send(ctx context.Context, body string) error
	Receive(ctx context.Context, maxMessages int, waitSeconds int) ([]queueMessage, error)
	Delete(ctx context.Context, receiptHandle string) error
}

type queueMessage struct {
	ID            string
	Body          string
	ReceiptHandle string
}

// MessageRequest is one debounced, idempotency-claimed inbound message ready
// for the pipeline.
type MessageRequest struct {
	TenantID    string `json:"tenant_id"`
	Channel     string `json:"channel"`
	ContactKey  string `json:"contact_key"`
	DisplayName string `json:"display_name,omitempty"`
	Text        string `json:"text"`
}

type queuePayload struct {
	ID      string         `json:"id"`
	Message MessageRequest `json:"message"`
}

func encodePayload(payload queuePayload) (queuePayload, string, error) {
	if payload.ID == "" {
		payload.ID = uuid.NewString()
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return queuePayload{}, "", fmt.Errorf("conversation: encode payload: %w", err)
	}
	return payload, string(body), nil
}

func decodePayload(body string) (queuePayload, error) {
	var payload queuePayload
	if err := json.Unmarshal([]byte(body), &payload); err != nil {
		return queuePayload{}, fmt.Errorf("conversation: decode payload: %w", err)
	}
	return payload, nil
}
