package calls

import "time"

// CallStatus tracks a voice call session.
type CallStatus string

const (
	CallStatusInProgress CallStatus = "in_progress"
	CallStatusEnded      CallStatus = "ended"
	CallStatusAnalyzed   CallStatus = "analyzed"
)

// TranscriptEntry is one ordered entry in a call transcript. Besides plain
// agent/user turns the voice platform interleaves tool-call invocation and
// result entries, correlated by ToolCallID.
type TranscriptEntry struct {
	Role       string `json:"role"` // agent | user | tool_call_invocation | tool_call_result
	Content    string `json:"content,omitempty"`
	Name       string `json:"name,omitempty"`         // tool name on invocations
	ToolCallID string `json:"tool_call_id,omitempty"` // pairs invocation with result
	Arguments  string `json:"arguments,omitempty"`    // raw JSON args on invocations
}

// Analysis is the post-call analysis block. It may arrive after or instead of
// the call-ended event, so both paths must tolerate the other having run.
type Analysis struct {
	Summary        string         `json:"call_summary,omitempty"`
	Successful     bool           `json:"call_successful,omitempty"`
	CustomData     map[string]any `json:"custom_analysis_data,omitempty"`
	UserSentiment  string         `json:"user_sentiment,omitempty"`
	CaseType       string         `json:"case_type,omitempty"`
	Urgency        string         `json:"urgency,omitempty"`
}

// CallRecord is one row per voice-call session id.
type CallRecord struct {
	ID              string            `json:"id"`
	SessionID       string            `json:"session_id"`
	TenantID        string            `json:"tenant_id"`
	FromNumber      string            `json:"from_number"`
	ToNumber        string            `json:"to_number"`
	Transcript      []TranscriptEntry `json:"transcript,omitempty"`
	Summary         string            `json:"summary,omitempty"`
	DurationSeconds int               `json:"duration_seconds"`
	Status          CallStatus        `json:"status"`
	RecordingURL    string            `json:"recording_url,omitempty"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
}

// BookingCandidate is an extracted, not-yet-committed appointment request.
// WhenLocal is a naive local date-time; Timezone is the IANA zone it should be
// interpreted in (empty means the value is already UTC).
type BookingCandidate struct {
	WhenLocal       string `json:"when_local"` // 2006-01-02T15:04:05
	Timezone        string `json:"timezone,omitempty"`
	DurationMinutes int    `json:"duration_minutes,omitempty"`
	AttendeeName    string `json:"attendee_name,omitempty"`
	AttendeeEmail   string `json:"attendee_email,omitempty"`
	Notes           string `json:"notes,omitempty"`
}
