// Package outbound routes pipeline replies to the right channel client.
package outbound

import (
	"context"
	"fmt"

	"github.com/leadrail/leadrail/internal/conversation"
	"github.com/leadrail/leadrail/internal/events"
)

// TextSender sends one text message and reports the provider message id.
type TextSender interface {
	SendText(ctx context.Context, toPhone, text string) (string, error)
}

// Dispatcher implements the pipeline's reply boundary over the configured
// channel clients. Voice has no outbound text path; a reply routed there is a
// wiring bug, not a provider failure.
type Dispatcher struct {
	whatsapp TextSender
	sms      TextSender
}

func NewDispatcher(whatsapp, sms TextSender) *Dispatcher {
	return &Dispatcher{whatsapp: whatsapp, sms: sms}
}

func (d *Dispatcher) SendReply(ctx context.Context, reply conversation.OutboundReply) (string, error) {
	var sender TextSender
	switch events.Channel(reply.Channel) {
	case events.ChannelWhatsApp:
		sender = d.whatsapp
	case events.ChannelSMS:
		sender = d.sms
	default:
		return "", fmt.Errorf("outbound: no sender for channel %q", reply.Channel)
	}
	if sender == nil {
		return "", fmt.Errorf("outbound: channel %q not configured", reply.Channel)
	}
	id, err := sender.SendText(ctx, reply.To, reply.Body)
	if err != nil {
		return "", fmt.Errorf("outbound: send on %s: %w", reply.Channel, err)
	}
	return id, nil
}
