package voice

import "github.com/leadrail/leadrail/internal/calls"

// Event names delivered by the voice platform's webhook.
const (
	EventCallStarted  = "call_started"
	EventCallEnded    = "call_ended"
	EventCallAnalyzed = "call_analyzed"
)

// WebhookPayload is the voice platform's webhook envelope.
type WebhookPayload struct {
	Event string      `json:"event"`
	Call  CallPayload `json:"call"`
}

// CallPayload is the call object inside every voice webhook. Transcript and
// Analysis are populated only on the ended/analyzed events.
type CallPayload struct {
	CallID         string                  `json:"call_id"`
	AgentID        string                  `json:"agent_id,omitempty"`
	FromNumber     string                  `json:"from_number"`
	ToNumber       string                  `json:"to_number"`
	Direction      string                  `json:"direction,omitempty"`
	StartTimestamp int64                   `json:"start_timestamp,omitempty"` // unix millis
	EndTimestamp   int64                   `json:"end_timestamp,omitempty"`
	Transcript     string                  `json:"transcript,omitempty"`
	TranscriptObj  []calls.TranscriptEntry `json:"transcript_object,omitempty"`
	RecordingURL   string                  `json:"recording_url,omitempty"`
	Analysis       *calls.Analysis         `json:"call_analysis,omitempty"`
}

// DurationSeconds derives the call length from the platform's millisecond
// timestamps.
func (c CallPayload) DurationSeconds() int {
	if c.EndTimestamp <= c.StartTimestamp {
		return 0
	}
	return int((c.EndTimestamp - c.StartTimestamp) / 1000)
}
