package sms

import (
	"testing"
	"time"

	"github.com/leadrail/leadrail/internal/events"
)

func inboundPayload(text string) WebhookPayload {
	var p WebhookPayload
	p.Data.EventType = "message.received"
	p.Data.ID = "evt-1"
	p.Data.OccurredAt = time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)
	p.Data.Payload.ID = "sms-1"
	p.Data.Payload.Direction = "inbound"
	p.Data.Payload.Text = text
	p.Data.Payload.From.PhoneNumber = "+15550001111"
	return p
}

func TestNormalizeInbound(t *testing.T) {
	adapter := NewAdapter("tenant-1")

	evt, reason := adapter.Normalize(inboundPayload("do you take walk-ins?"))
	if reason != events.SkipNone {
		t.Fatalf("unexpected skip: %v", reason)
	}
	if evt.Channel != events.ChannelSMS || evt.ContactKey != "+15550001111" {
		t.Errorf("event: %+v", evt)
	}
	if evt.ProviderMessageID != "sms-1" {
		t.Errorf("provider message id: got %q", evt.ProviderMessageID)
	}
}

func TestNormalizeSkips(t *testing.T) {
	adapter := NewAdapter("tenant-1")

	finalized := inboundPayload("Thanks for reaching out!")
	finalized.Data.EventType = "message.finalized"

	outbound := inboundPayload("our own reply")
	outbound.Data.Payload.Direction = "outbound"

	blank := inboundPayload("  \n ")

	noSender := inboundPayload("hi")
	noSender.Data.Payload.From.PhoneNumber = ""

	tests := []struct {
		name    string
		payload WebhookPayload
		want    events.SkipReason
	}{
		{"delivery receipt", finalized, events.SkipWrongEventType},
		{"outbound echo", outbound, events.SkipSelfOriginated},
		{"blank text", blank, events.SkipEmptyText},
		{"missing sender", noSender, events.SkipUnknownShape},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			evt, reason := adapter.Normalize(tt.payload)
			if reason != tt.want || evt != nil {
				t.Errorf("got event=%v reason=%v, want nil event reason=%v", evt, reason, tt.want)
			}
		})
	}
}
