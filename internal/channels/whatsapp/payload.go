package whatsapp

// WebhookPayload is the push-delivered event envelope from the WhatsApp
// gateway. The poll endpoint returns the same Message shape in a list.
type WebhookPayload struct {
	Event    string  `json:"event"`
	Instance string  `json:"instance,omitempty"`
	Data     Message `json:"data"`
}

// Message is one gateway message. Exactly one of the Message content
// variants is populated depending on the message kind.
type Message struct {
	Key              MessageKey     `json:"key"`
	PushName         string         `json:"pushName,omitempty"`
	MessageTimestamp int64          `json:"messageTimestamp,omitempty"`
	Message          MessageContent `json:"message"`
}

// MessageKey identifies a message and its sender.
type MessageKey struct {
	RemoteJid string `json:"remoteJid"` // "<digits>@s.whatsapp.net"
	FromMe    bool   `json:"fromMe"`
	ID        string `json:"id"`
}

// MessageContent carries the kind-specific body variants.
type MessageContent struct {
	Conversation        string               `json:"conversation,omitempty"`
	ExtendedTextMessage *ExtendedTextMessage `json:"extendedTextMessage,omitempty"`
	AudioMessage        *AudioMessage        `json:"audioMessage,omitempty"`
}

// ExtendedTextMessage is the quoted-reply / link-preview text variant.
type ExtendedTextMessage struct {
	Text string `json:"text"`
}

// AudioMessage is a voice note. The gateway inlines the media as base64.
type AudioMessage struct {
	Base64   string `json:"base64,omitempty"`
	Mimetype string `json:"mimetype,omitempty"`
	Seconds  int    `json:"seconds,omitempty"`
}

// ListMessagesResponse is the poll endpoint's page of recent messages,
// newest first.
type ListMessagesResponse struct {
	Messages struct {
		Records []Message `json:"records"`
	} `json:"messages"`
}

// sendTextRequest is the gateway's send-text body.
type sendTextRequest struct {
	Number string `json:"number"`
	Text   string `json:"text"`
}

// sendTextResponse carries the id the gateway assigned to our outbound send.
type sendTextResponse struct {
	Key MessageKey `json:"key"`
}
