// Package sms normalizes Telnyx-shaped SMS webhooks.
package sms

import (
	"strings"
	"time"

	"github.com/leadrail/leadrail/internal/events"
)

const eventMessageReceived = "message.received"

// WebhookPayload is the Telnyx v2 webhook envelope.
type WebhookPayload struct {
	Data struct {
		EventType  string         `json:"event_type"`
		ID         string         `json:"id"`
		OccurredAt time.Time      `json:"occurred_at"`
		Payload    MessagePayload `json:"payload"`
	} `json:"data"`
}

// MessagePayload is the message object inside a messaging webhook.
type MessagePayload struct {
	ID        string `json:"id"`
	Direction string `json:"direction"`
	Text      string `json:"text"`
	From      struct {
		PhoneNumber string `json:"phone_number"`
	} `json:"from"`
	To []struct {
		PhoneNumber string `json:"phone_number"`
	} `json:"to"`
}

// Adapter normalizes SMS webhooks into InboundEvents.
type Adapter struct {
	tenantID string
}

func NewAdapter(tenantID string) *Adapter {
	if tenantID == "" {
		panic("sms: tenant id required")
	}
	return &Adapter{tenantID: tenantID}
}

// Normalize translates one webhook delivery. Delivery receipts for our own
// outbound sends arrive on the same endpoint and are ignored by event type
// and direction.
func (a *Adapter) Normalize(payload WebhookPayload) (*events.InboundEvent, events.SkipReason) {
	if payload.Data.EventType != eventMessageReceived {
		return nil, events.SkipWrongEventType
	}
	msg := payload.Data.Payload
	if msg.Direction != "" && msg.Direction != "inbound" {
		return nil, events.SkipSelfOriginated
	}
	if msg.From.PhoneNumber == "" {
		return nil, events.SkipUnknownShape
	}
	text := strings.TrimSpace(msg.Text)
	if text == "" {
		return nil, events.SkipEmptyText
	}

	received := payload.Data.OccurredAt
	if received.IsZero() {
		received = time.Now().UTC()
	}
	providerID := msg.ID
	if providerID == "" {
		providerID = payload.Data.ID
	}
	return &events.InboundEvent{
		Channel:           events.ChannelSMS,
		TenantID:          a.tenantID,
		ContactKey:        msg.From.PhoneNumber,
		Text:              text,
		ProviderMessageID: providerID,
		ReceivedAt:        received.UTC(),
	}, events.SkipNone
}
