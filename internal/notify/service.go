package notify

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/leadrail/leadrail/internal/appointments"
	"github.com/leadrail/leadrail/pkg/logging"
)

// EmailSender sends a plain email. Implementations can be swapped without
// changing callers.
type EmailSender interface {
	Send(ctx context.Context, msg EmailMessage) error
}

// EmailMessage represents an email to be sent.
type EmailMessage struct {
	To      string
	ToName  string
	Subject string
	Body    string
}

// Service records tenant-owner notifications and optionally emails them.
// Everything here is best effort: notification delivery is not part of any
// booking guarantee, so failures are logged and swallowed.
type Service struct {
	pool   *pgxpool.Pool
	email  EmailSender
	owners OwnerDirectory
	logger *logging.Logger
}

// OwnerDirectory resolves the notification address for a tenant.
type OwnerDirectory interface {
	OwnerEmail(ctx context.Context, tenantID string) (address, name string, err error)
}

func NewService(pool *pgxpool.Pool, email EmailSender, owners OwnerDirectory, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{pool: pool, email: email, owners: owners, logger: logger}
}

// AppointmentBooked enqueues a notification record for the tenant owner and,
// when an email sender is configured, dispatches an email.
func (s *Service) AppointmentBooked(ctx context.Context, tenantID string, appt *appointments.Appointment) {
	if appt == nil {
		return
	}
	body := fmt.Sprintf("New appointment booked for %s (%d min) via %s.",
		appt.ScheduledAt.Format("Mon Jan 2 15:04 MST"), appt.DurationMinutes, appt.Channel)

	if err := s.insert(ctx, tenantID, "appointment_booked", body); err != nil {
		s.logger.Warn("notification record insert failed", "error", err, "tenant_id", tenantID)
	}

	if s.email == nil || s.owners == nil {
		return
	}
	address, name, err := s.owners.OwnerEmail(ctx, tenantID)
	if err != nil || address == "" {
		s.logger.Warn("owner email lookup failed", "error", err, "tenant_id", tenantID)
		return
	}
	msg := EmailMessage{
		To:      address,
		ToName:  name,
		Subject: "New appointment booked",
		Body:    body,
	}
	if err := s.email.Send(ctx, msg); err != nil {
		s.logger.Warn("owner notification email failed", "error", err, "tenant_id", tenantID)
	}
}

func (s *Service) insert(ctx context.Context, tenantID, kind, body string) error {
	if s.pool == nil {
		return nil
	}
	query := `
		INSERT INTO notifications (id, tenant_id, kind, body)
		VALUES ($1, $2, $3, $4)
	`
	if _, err := s.pool.Exec(ctx, query, uuid.New(), tenantID, kind, body); err != nil {
		return fmt.Errorf("notify: insert record: %w", err)
	}
	return nil
}
