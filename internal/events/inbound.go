package events

import "time"

// Channel identifies the source of an inbound event.
type Channel string

const (
	ChannelVoice    Channel = "voice"
	ChannelWhatsApp Channel = "whatsapp"
	ChannelSMS      Channel = "sms"
)

// AttachmentKind classifies the inbound message payload.
type AttachmentKind string

const (
	AttachmentNone  AttachmentKind = ""
	AttachmentAudio AttachmentKind = "audio"
)

// InboundEvent is the normalized shape every channel adapter produces.
// Adapters are pure: they translate provider payloads into this struct and
// nothing else touches storage before the idempotency guard has claimed the
// provider message id.
type InboundEvent struct {
	Channel           Channel        `json:"channel"`
	TenantID          string         `json:"tenant_id"`
	ContactKey        string         `json:"contact_key"` // E.164 phone
	Text              string         `json:"text"`
	ProviderMessageID string         `json:"provider_message_id"`
	SenderDisplayName string         `json:"sender_display_name,omitempty"`
	ReceivedAt        time.Time      `json:"received_at"`
	AttachmentKind    AttachmentKind `json:"attachment_kind,omitempty"`
}

// SkipReason explains why an adapter ignored a provider payload. Ignored
// payloads are still acknowledged with a success status so providers stop
// retrying them.
type SkipReason string

const (
	SkipNone           SkipReason = ""
	SkipSelfOriginated SkipReason = "self_originated"
	SkipWrongEventType SkipReason = "wrong_event_type"
	SkipEmptyText      SkipReason = "empty_text"
	SkipUnknownShape   SkipReason = "unknown_shape"
)
