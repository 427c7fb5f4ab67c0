package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/leadrail/leadrail/internal/appointments"
	"github.com/leadrail/leadrail/internal/calls"
	"github.com/leadrail/leadrail/internal/channels/voice"
	"github.com/leadrail/leadrail/internal/leads"
	"github.com/leadrail/leadrail/internal/observability/metrics"
	"github.com/leadrail/leadrail/internal/tenancy"
	"github.com/leadrail/leadrail/pkg/logging"
)

type callStore interface {
	UpsertFromEvent(ctx context.Context, rec calls.CallRecord) (*calls.CallRecord, error)
	ApplyAnalysis(ctx context.Context, sessionID, tenantID string, analysis calls.Analysis) error
	GetBySession(ctx context.Context, tenantID, sessionID string) (*calls.CallRecord, error)
}

type appointmentWriter interface {
	Create(ctx context.Context, req appointments.CreateRequest) (appointments.Result, error)
}

// VoiceWebhookHandler receives voice platform call lifecycle webhooks:
// call_started, call_ended, call_analyzed. The analyzed event drives booking
// extraction; everything downstream of the call-record upsert is best-effort.
type VoiceWebhookHandler struct {
	secret   string
	tenantID string
	timezone string
	calls    callStore
	leads    leads.Repository
	guard    idempotencyGuard
	writer   appointmentWriter
	metrics  *metrics.PipelineMetrics
	logger   *logging.Logger
}

// VoiceWebhookConfig wires a voice webhook handler.
type VoiceWebhookConfig struct {
	Secret   string // empty disables signature verification
	TenantID string
	Timezone string // IANA zone for naive booking times
	Calls    callStore
	Leads    leads.Repository
	Guard    idempotencyGuard
	Writer   appointmentWriter
	Metrics  *metrics.PipelineMetrics
	Logger   *logging.Logger
}

func NewVoiceWebhookHandler(cfg VoiceWebhookConfig) *VoiceWebhookHandler {
	if cfg.TenantID == "" {
		panic("handlers: tenant id required")
	}
	if cfg.Calls == nil {
		panic("handlers: call store required")
	}
	if cfg.Leads == nil {
		panic("handlers: leads repository required")
	}
	if cfg.Guard == nil {
		panic("handlers: idempotency guard required")
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	return &VoiceWebhookHandler{
		secret:   cfg.Secret,
		tenantID: cfg.TenantID,
		timezone: cfg.Timezone,
		calls:    cfg.Calls,
		leads:    cfg.Leads,
		guard:    cfg.Guard,
		writer:   cfg.Writer,
		metrics:  cfg.Metrics,
		logger:   cfg.Logger,
	}
}

// Handle processes one voice platform delivery. Ignored and duplicate events
// ack with 200; bad signatures get 401; only storage failures on the call
// record itself return 5xx.
func (h *VoiceWebhookHandler) Handle(w http.ResponseWriter, r *http.Request) {
	ctx, span := handlerTracer.Start(r.Context(), "handlers.voice_webhook")
	defer span.End()
	start := time.Now()
	defer func() { h.metrics.ObserveWebhookLatency("voice", time.Since(start).Seconds()) }()

	body, err := io.ReadAll(io.LimitReader(r.Body, 4<<20))
	if err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	if !voice.VerifySignature(h.secret, body, r.Header.Get("X-Signature")) {
		h.logger.Warn("voice webhook signature rejected")
		http.Error(w, "invalid signature", http.StatusUnauthorized)
		return
	}

	var payload voice.WebhookPayload
	if err := json.Unmarshal(body, &payload); err != nil || payload.Call.CallID == "" {
		h.logger.Warn("voice webhook body undecodable", "error", err)
		writeAck(w, "ignored")
		return
	}

	first, err := h.guard.TryClaim(ctx, "voice", payload.Event+":"+payload.Call.CallID)
	if err != nil {
		span.RecordError(err)
		http.Error(w, "storage unavailable", http.StatusInternalServerError)
		return
	}
	if !first {
		h.metrics.ObserveInbound("voice", "duplicate")
		writeAck(w, "duplicate")
		return
	}

	switch payload.Event {
	case voice.EventCallStarted:
		err = h.handleStarted(ctx, payload.Call)
	case voice.EventCallEnded:
		err = h.handleEnded(ctx, payload.Call)
	case voice.EventCallAnalyzed:
		err = h.handleAnalyzed(ctx, payload.Call)
	default:
		h.metrics.ObserveInbound("voice", "wrong_event_type")
		writeAck(w, "ignored")
		return
	}
	if err != nil {
		span.RecordError(err)
		h.logger.Error("voice event processing failed",
			"error", err, "event", payload.Event, "call_id", payload.Call.CallID)
		http.Error(w, "processing failed", http.StatusInternalServerError)
		return
	}
	h.metrics.ObserveInbound("voice", "accepted")
	writeAck(w, "accepted")
}

// tenant prefers the request-scoped tenant set by the tenancy middleware and
// falls back to the handler's configured default.
func (h *VoiceWebhookHandler) tenant(ctx context.Context) string {
	if t, ok := tenancy.TenantIDFromContext(ctx); ok {
		return t
	}
	return h.tenantID
}

func (h *VoiceWebhookHandler) handleStarted(ctx context.Context, call voice.CallPayload) error {
	lead, err := h.leads.FindOrCreate(ctx, h.tenant(ctx), call.FromNumber, "", "voice")
	if err != nil {
		return err
	}
	if err := h.leads.AttachCallSession(ctx, lead.ID, call.CallID); err != nil {
		h.logger.Warn("call session attach failed", "error", err, "lead_id", lead.ID)
	}
	_, err = h.calls.UpsertFromEvent(ctx, calls.CallRecord{
		SessionID:  call.CallID,
		TenantID:   h.tenant(ctx),
		FromNumber: call.FromNumber,
		ToNumber:   call.ToNumber,
		Status:     calls.CallStatusInProgress,
	})
	return err
}

// handleEnded stores the final transcript and attempts booking extraction.
// Extraction runs here AND on the analyzed event: either can arrive without
// the other, and the writer's already-booked re-check absorbs the overlap
// when both fire for the same call.
func (h *VoiceWebhookHandler) handleEnded(ctx context.Context, call voice.CallPayload) error {
	_, err := h.calls.UpsertFromEvent(ctx, calls.CallRecord{
		SessionID:       call.CallID,
		TenantID:        h.tenant(ctx),
		FromNumber:      call.FromNumber,
		ToNumber:        call.ToNumber,
		Transcript:      call.TranscriptObj,
		DurationSeconds: call.DurationSeconds(),
		Status:          calls.CallStatusEnded,
		RecordingURL:    call.RecordingURL,
	})
	if err != nil {
		return err
	}

	if cand, ok := calls.ExtractBooking(call.TranscriptObj, call.Analysis); ok {
		h.commitBooking(ctx, call, cand)
	}
	return nil
}

// handleAnalyzed applies the analysis block and attempts booking extraction.
// Extraction and appointment creation never fail the webhook: the call record
// is already stored, and the platform should not retry on a soft miss.
func (h *VoiceWebhookHandler) handleAnalyzed(ctx context.Context, call voice.CallPayload) error {
	var analysis calls.Analysis
	if call.Analysis != nil {
		analysis = *call.Analysis
	}
	if err := h.calls.ApplyAnalysis(ctx, call.CallID, h.tenant(ctx), analysis); err != nil {
		return err
	}
	if call.Analysis != nil {
		h.classifyLead(ctx, call, analysis)
	}

	transcript := call.TranscriptObj
	if len(transcript) == 0 {
		if rec, err := h.calls.GetBySession(ctx, h.tenant(ctx), call.CallID); err == nil && rec != nil {
			transcript = rec.Transcript
		}
	}

	cand, ok := calls.ExtractBooking(transcript, call.Analysis)
	if !ok {
		h.metrics.ObserveBooking("voice", "no_candidate")
		return nil
	}
	h.commitBooking(ctx, call, cand)
	return nil
}

// classifyLead copies the analysis classification onto the lead and moves a
// still-new lead to qualified or lost based on the call outcome. Best effort:
// the call record already carries the analysis either way.
func (h *VoiceWebhookHandler) classifyLead(ctx context.Context, call voice.CallPayload, analysis calls.Analysis) {
	lead, err := h.leads.FindByCallSession(ctx, h.tenant(ctx), call.CallID)
	if err != nil || lead == nil {
		return
	}
	status := leads.StatusLost
	if analysis.Successful {
		status = leads.StatusQualified
	}
	if err := h.leads.ApplyClassification(ctx, lead.ID, analysis.CaseType, analysis.Urgency, status); err != nil {
		h.logger.Warn("lead classification failed", "error", err, "lead_id", lead.ID)
	}
}

func (h *VoiceWebhookHandler) commitBooking(ctx context.Context, call voice.CallPayload, cand *calls.BookingCandidate) {
	if h.writer == nil {
		return
	}
	tz := cand.Timezone
	if tz == "" {
		tz = h.timezone
	}
	whenUTC, err := calls.ToUTC(cand.WhenLocal, tz)
	if err != nil {
		h.logger.Warn("booking candidate time unparseable, skipping",
			"error", err, "when_local", cand.WhenLocal, "call_id", call.CallID)
		h.metrics.ObserveBooking("voice", "unparseable")
		return
	}

	lead, err := h.leads.FindByCallSession(ctx, h.tenant(ctx), call.CallID)
	if err != nil || lead == nil {
		lead, err = h.leads.FindOrCreate(ctx, h.tenant(ctx), call.FromNumber, cand.AttendeeName, "voice")
		if err != nil {
			h.logger.Warn("lead resolution for booking failed", "error", err, "call_id", call.CallID)
			h.metrics.ObserveBooking("voice", "error")
			return
		}
	}

	result, err := h.writer.Create(ctx, appointments.CreateRequest{
		TenantID:        h.tenant(ctx),
		LeadID:          lead.ID,
		ScheduledAt:     whenUTC,
		DurationMinutes: cand.DurationMinutes,
		Channel:         "voice",
		Notes:           cand.Notes,
	})
	switch {
	case err != nil:
		h.logger.Warn("appointment create failed", "error", err, "lead_id", lead.ID)
		h.metrics.ObserveBooking("voice", "error")
	case result.AlreadyBooked:
		h.metrics.ObserveBooking("voice", "already_booked")
	case result.Conflict:
		h.metrics.ObserveBooking("voice", "conflict")
	default:
		h.metrics.ObserveBooking("voice", "created")
	}
}
