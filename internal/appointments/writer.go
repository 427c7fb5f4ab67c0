package appointments

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/leadrail/leadrail/internal/leads"
	"github.com/leadrail/leadrail/pkg/logging"
)

var writerTracer = otel.Tracer("leadrail.internal.appointments")

const defaultDurationMinutes = 30

// leadUpdater is the slice of the leads repository the writer needs.
type leadUpdater interface {
	UpdateStatus(ctx context.Context, leadID string, status leads.Status) error
}

// notifier records an owner notification for a new booking. Best effort.
type notifier interface {
	AppointmentBooked(ctx context.Context, tenantID string, appt *Appointment)
}

// Writer commits booking candidates, guarding against duplicate creation from
// independent event sources and against overlapping slots.
type Writer struct {
	repo   Repository
	leads  leadUpdater
	notify notifier
	logger *logging.Logger
}

func NewWriter(repo Repository, leadRepo leadUpdater, notify notifier, logger *logging.Logger) *Writer {
	if repo == nil {
		panic("appointments: repository required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Writer{repo: repo, leads: leadRepo, notify: notify, logger: logger}
}

// Create books the appointment. Outcomes, in check order:
//
//   - the lead already has a scheduled appointment → no-op success
//     (AlreadyBooked). Creation can be triggered by both the call-ended and
//     the call-analyzed event for the same booking, so this existence re-check
//     runs immediately before insert, not earlier in the flow.
//   - another scheduled appointment overlaps [when, when+duration) for the
//     tenant → Conflict with a relayable reason.
//   - otherwise insert, then best-effort: move the lead to
//     appointment_scheduled and notify the tenant owner. Failures of either
//     are logged and never roll back the appointment.
func (w *Writer) Create(ctx context.Context, req CreateRequest) (Result, error) {
	ctx, span := writerTracer.Start(ctx, "appointments.create")
	defer span.End()
	span.SetAttributes(
		attribute.String("leadrail.tenant_id", req.TenantID),
		attribute.String("leadrail.lead_id", req.LeadID),
	)

	if req.TenantID == "" || req.LeadID == "" {
		return Result{}, fmt.Errorf("appointments: tenant and lead required")
	}
	if req.ScheduledAt.IsZero() {
		return Result{}, fmt.Errorf("appointments: scheduled time required")
	}
	if req.DurationMinutes <= 0 {
		req.DurationMinutes = defaultDurationMinutes
	}

	booked, err := w.repo.HasScheduledForLead(ctx, req.LeadID)
	if err != nil {
		span.RecordError(err)
		return Result{}, err
	}
	if booked {
		w.logger.Info("lead already has a scheduled appointment, skipping create",
			"tenant_id", req.TenantID, "lead_id", req.LeadID)
		return Result{AlreadyBooked: true, Reason: "an appointment is already scheduled for this contact"}, nil
	}

	conflict, err := w.repo.HasConflict(ctx, req.TenantID, req.ScheduledAt, req.DurationMinutes)
	if err != nil {
		span.RecordError(err)
		return Result{}, err
	}
	if conflict {
		w.logger.Info("appointment slot conflict",
			"tenant_id", req.TenantID, "lead_id", req.LeadID, "scheduled_at", req.ScheduledAt)
		return Result{Conflict: true, Reason: "that time slot is already taken, want to try another time?"}, nil
	}

	appt, err := w.repo.Insert(ctx, req)
	if err != nil {
		span.RecordError(err)
		return Result{}, err
	}

	if w.leads != nil {
		if err := w.leads.UpdateStatus(ctx, req.LeadID, leads.StatusAppointment); err != nil {
			w.logger.Warn("lead status update failed after booking", "error", err, "lead_id", req.LeadID)
		}
	}
	if w.notify != nil {
		w.notify.AppointmentBooked(ctx, req.TenantID, appt)
	}

	w.logger.Info("appointment created",
		"tenant_id", req.TenantID, "lead_id", req.LeadID,
		"appointment_id", appt.ID, "scheduled_at", appt.ScheduledAt)
	return Result{Appointment: appt}, nil
}
