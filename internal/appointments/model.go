package appointments

import "time"

// Status tracks an appointment through its lifecycle.
type Status string

const (
	StatusScheduled Status = "scheduled"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
	StatusNoShow    Status = "no_show"
)

// Appointment belongs to exactly one lead and one tenant. ScheduledAt is
// always a UTC instant.
type Appointment struct {
	ID              string    `json:"id"`
	TenantID        string    `json:"tenant_id"`
	LeadID          string    `json:"lead_id"`
	ScheduledAt     time.Time `json:"scheduled_at"`
	DurationMinutes int       `json:"duration_minutes"`
	Channel         string    `json:"channel"`
	Status          Status    `json:"status"`
	Notes           string    `json:"notes,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

// CreateRequest describes a booking to commit.
type CreateRequest struct {
	TenantID        string
	LeadID          string
	ScheduledAt     time.Time // UTC
	DurationMinutes int
	Channel         string
	Notes           string
}

// Result is the outcome of a create attempt. Exactly one of Appointment,
// AlreadyBooked, or Conflict describes what happened; none of the three is an
// error condition for the caller.
type Result struct {
	Appointment   *Appointment
	AlreadyBooked bool
	Conflict      bool
	Reason        string
}
