package whatsapp

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/leadrail/leadrail/internal/events"
)

const (
	eventMessagesUpsert = "messages.upsert"
	jidSuffix           = "@s.whatsapp.net"

	// Substituted when a voice note cannot be transcribed, so the contact's
	// turn still reaches the agent instead of being dropped.
	transcriptionUnavailable = "[audio message — transcription unavailable]"
)

// Transcriber converts an inbound voice note into text.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, mimetype string) (string, error)
}

// Adapter normalizes gateway payloads into InboundEvents. It is pure with
// respect to storage; the only network call it may make is transcription.
type Adapter struct {
	tenantID    string
	transcriber Transcriber // optional
}

func NewAdapter(tenantID string, transcriber Transcriber) *Adapter {
	if tenantID == "" {
		panic("whatsapp: tenant id required")
	}
	return &Adapter{tenantID: tenantID, transcriber: transcriber}
}

// TenantID reports the tenant this adapter ingests for.
func (a *Adapter) TenantID() string { return a.tenantID }

// NormalizeWebhook translates one push delivery. A non-empty SkipReason with
// a nil event means the payload was recognized and deliberately ignored; the
// caller still acknowledges it to the gateway.
func (a *Adapter) NormalizeWebhook(ctx context.Context, payload WebhookPayload) (*events.InboundEvent, events.SkipReason) {
	if payload.Event != eventMessagesUpsert {
		return nil, events.SkipWrongEventType
	}
	return a.NormalizeMessage(ctx, payload.Data)
}

// NormalizeMessage translates one gateway message, shared by the push and
// poll paths. Unrecognized shapes fail closed.
func (a *Adapter) NormalizeMessage(ctx context.Context, msg Message) (*events.InboundEvent, events.SkipReason) {
	if msg.Key.FromMe {
		return nil, events.SkipSelfOriginated
	}
	phone, ok := parseRemoteJid(msg.Key.RemoteJid)
	if !ok {
		return nil, events.SkipUnknownShape
	}

	text, kind, reason := a.extractText(ctx, msg.Message)
	if reason != events.SkipNone {
		return nil, reason
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, events.SkipEmptyText
	}

	received := time.Now().UTC()
	if msg.MessageTimestamp > 0 {
		received = time.Unix(msg.MessageTimestamp, 0).UTC()
	}
	return &events.InboundEvent{
		Channel:           events.ChannelWhatsApp,
		TenantID:          a.tenantID,
		ContactKey:        phone,
		Text:              text,
		ProviderMessageID: msg.Key.ID,
		SenderDisplayName: strings.TrimSpace(msg.PushName),
		ReceivedAt:        received,
		AttachmentKind:    kind,
	}, events.SkipNone
}

func (a *Adapter) extractText(ctx context.Context, content MessageContent) (string, events.AttachmentKind, events.SkipReason) {
	switch {
	case content.Conversation != "":
		return content.Conversation, events.AttachmentNone, events.SkipNone
	case content.ExtendedTextMessage != nil:
		return content.ExtendedTextMessage.Text, events.AttachmentNone, events.SkipNone
	case content.AudioMessage != nil:
		return a.transcribe(ctx, content.AudioMessage), events.AttachmentAudio, events.SkipNone
	default:
		return "", events.AttachmentNone, events.SkipUnknownShape
	}
}

func (a *Adapter) transcribe(ctx context.Context, audio *AudioMessage) string {
	if a.transcriber == nil || audio.Base64 == "" {
		return transcriptionUnavailable
	}
	raw, err := base64.StdEncoding.DecodeString(audio.Base64)
	if err != nil {
		return transcriptionUnavailable
	}
	text, err := a.transcriber.Transcribe(ctx, raw, audio.Mimetype)
	if err != nil || strings.TrimSpace(text) == "" {
		return transcriptionUnavailable
	}
	return text
}

// parseRemoteJid extracts the E.164 phone from a "<digits>@s.whatsapp.net"
// sender key. Group and broadcast jids use other suffixes and are rejected.
func parseRemoteJid(jid string) (string, bool) {
	number, ok := strings.CutSuffix(jid, jidSuffix)
	if !ok || number == "" {
		return "", false
	}
	for _, r := range number {
		if r < '0' || r > '9' {
			return "", false
		}
	}
	return fmt.Sprintf("+%s", number), true
}
