package leads

import "time"

// Status tracks the lead lifecycle.
type Status string

const (
	StatusNew          Status = "new"
	StatusQualified    Status = "qualified"
	StatusAppointment  Status = "appointment_scheduled"
	StatusConverted    Status = "converted"
	StatusLost         Status = "lost"
)

// Lead is an end customer identified by phone number within a tenant. Created
// on the first inbound event from an unseen number; never hard-deleted by the
// pipeline.
type Lead struct {
	ID            string    `json:"id"`
	TenantID      string    `json:"tenant_id"`
	Phone         string    `json:"phone"`
	Name          string    `json:"name,omitempty"`
	Channel       string    `json:"channel"`
	Status        Status    `json:"status"`
	CaseType      string    `json:"case_type,omitempty"`
	Urgency       string    `json:"urgency,omitempty"`
	CallSessionID string    `json:"call_session_id,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}
