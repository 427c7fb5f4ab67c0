package conversation

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/leadrail/leadrail/internal/appointments"
	"github.com/leadrail/leadrail/internal/calls"
	"github.com/leadrail/leadrail/internal/leads"
	"github.com/leadrail/leadrail/internal/observability/metrics"
	"github.com/leadrail/leadrail/pkg/logging"
)

var serviceTracer = otel.Tracer("leadrail.internal.conversation")

// OutboundReply is one message to push back to the contact.
type OutboundReply struct {
	TenantID string
	Channel  string
	To       string
	Body     string
}

// ReplyMessenger dispatches an outbound reply on the contact's channel and
// returns the provider message id of the send, when the provider reports one.
type ReplyMessenger interface {
	SendReply(ctx context.Context, reply OutboundReply) (providerMessageID string, err error)
}

type conversationStore interface {
	FindOrCreate(ctx context.Context, tenantID, leadID string) (*Conversation, error)
	AppendTurn(ctx context.Context, conversationID string, turn Turn) error
	History(ctx context.Context, conversationID string) ([]Turn, error)
}

type turnCache interface {
	Save(ctx context.Context, conversationID string, history []Turn) error
	Load(ctx context.Context, conversationID string) ([]Turn, error)
}

type bookingWriter interface {
	Create(ctx context.Context, req appointments.CreateRequest) (appointments.Result, error)
}

type provenanceTagger interface {
	TryClaim(ctx context.Context, provider, eventID string) (bool, error)
}

// ServiceConfig wires the pipeline's collaborators.
type ServiceConfig struct {
	Leads        leads.Repository
	Store        conversationStore
	Cache        turnCache // optional
	Agent        Agent     // already guarded
	Writer       bookingWriter
	Sender       ReplyMessenger
	Provenance   provenanceTagger // optional; tags our own sends so pollers skip them
	Metrics      *metrics.PipelineMetrics
	Logger       *logging.Logger
	BusinessName string
	AgentName    string
	Timezone     string
}

// Service runs the per-message pipeline: resolve lead and conversation,
// append the user turn, invoke the agent, append the assistant turn, commit
// any booking candidate, send the reply.
type Service struct {
	cfg ServiceConfig
}

func NewService(cfg ServiceConfig) *Service {
	if cfg.Leads == nil {
		panic("conversation: leads repository required")
	}
	if cfg.Store == nil {
		panic("conversation: store required")
	}
	if cfg.Agent == nil {
		panic("conversation: agent required")
	}
	if cfg.Sender == nil {
		panic("conversation: sender required")
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	return &Service{cfg: cfg}
}

// ProcessMessage handles one debounced inbound message end to end. Exactly
// one outbound reply is produced per call: the agent boundary substitutes
// fallback text on its own failures, so only infrastructure errors (storage,
// send endpoint) surface as errors here, and they abort this event only.
func (s *Service) ProcessMessage(ctx context.Context, req MessageRequest) error {
	ctx, span := serviceTracer.Start(ctx, "conversation.process_message")
	defer span.End()
	span.SetAttributes(
		attribute.String("leadrail.tenant_id", req.TenantID),
		attribute.String("leadrail.channel", req.Channel),
	)

	lead, err := s.cfg.Leads.FindOrCreate(ctx, req.TenantID, req.ContactKey, req.DisplayName, req.Channel)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("conversation: resolve lead: %w", err)
	}

	conv, err := s.cfg.Store.FindOrCreate(ctx, req.TenantID, lead.ID)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("conversation: resolve conversation: %w", err)
	}

	history := s.loadHistory(ctx, conv.ID)

	userTurn := Turn{Role: RoleUser, Content: req.Text}
	if err := s.cfg.Store.AppendTurn(ctx, conv.ID, userTurn); err != nil {
		span.RecordError(err)
		return fmt.Errorf("conversation: append user turn: %w", err)
	}

	reply, err := s.cfg.Agent.Reply(ctx, AgentRequest{
		History: history,
		Latest:  req.Text,
		Context: AgentContext{
			BusinessName: s.cfg.BusinessName,
			AgentName:    s.cfg.AgentName,
			Timezone:     s.cfg.Timezone,
		},
	})
	if err != nil {
		// The guarded agent converts its own failures into fallback text; an
		// error here means the boundary itself is miswired.
		span.RecordError(err)
		return fmt.Errorf("conversation: agent boundary: %w", err)
	}

	assistantTurn := Turn{Role: RoleAssistant, Content: reply.Text}
	if err := s.cfg.Store.AppendTurn(ctx, conv.ID, assistantTurn); err != nil {
		span.RecordError(err)
		return fmt.Errorf("conversation: append assistant turn: %w", err)
	}

	if s.cfg.Cache != nil {
		if err := s.cfg.Cache.Save(ctx, conv.ID, append(history, userTurn, assistantTurn)); err != nil {
			s.cfg.Logger.Warn("history cache save failed", "error", err, "conversation_id", conv.ID)
		}
	}

	if reply.Booking != nil && s.cfg.Writer != nil {
		s.commitBooking(ctx, lead, req, reply.Booking)
	}

	providerID, err := s.cfg.Sender.SendReply(ctx, OutboundReply{
		TenantID: req.TenantID,
		Channel:  req.Channel,
		To:       req.ContactKey,
		Body:     reply.Text,
	})
	if err != nil {
		span.RecordError(err)
		s.cfg.Metrics.ObserveReply(req.Channel, "send_failed")
		return fmt.Errorf("conversation: send reply: %w", err)
	}
	s.cfg.Metrics.ObserveReply(req.Channel, "sent")

	// Tag our own send so the polling path never re-ingests it as an inbound
	// message. Provenance, not keyword sniffing.
	if s.cfg.Provenance != nil && providerID != "" {
		if _, err := s.cfg.Provenance.TryClaim(ctx, req.Channel, providerID); err != nil {
			s.cfg.Logger.Warn("provenance tag failed", "error", err, "provider_message_id", providerID)
		}
	}
	return nil
}

func (s *Service) loadHistory(ctx context.Context, conversationID string) []Turn {
	if s.cfg.Cache != nil {
		if history, err := s.cfg.Cache.Load(ctx, conversationID); err == nil && history != nil {
			return history
		} else if err != nil {
			s.cfg.Logger.Warn("history cache load failed", "error", err, "conversation_id", conversationID)
		}
	}
	history, err := s.cfg.Store.History(ctx, conversationID)
	if err != nil {
		s.cfg.Logger.Warn("history load failed, continuing with empty context",
			"error", err, "conversation_id", conversationID)
		return nil
	}
	return history
}

// commitBooking converts and writes a booking candidate. Every failure here
// is degraded-not-fatal: the conversational reply still goes out.
func (s *Service) commitBooking(ctx context.Context, lead *leads.Lead, req MessageRequest, cand *calls.BookingCandidate) {
	tz := cand.Timezone
	if tz == "" {
		tz = s.cfg.Timezone
	}
	whenUTC, err := calls.ToUTC(cand.WhenLocal, tz)
	if err != nil {
		s.cfg.Logger.Warn("booking candidate time unparseable, skipping",
			"error", err, "when_local", cand.WhenLocal, "lead_id", lead.ID)
		s.cfg.Metrics.ObserveBooking(req.Channel, "unparseable")
		return
	}

	result, err := s.cfg.Writer.Create(ctx, appointments.CreateRequest{
		TenantID:        req.TenantID,
		LeadID:          lead.ID,
		ScheduledAt:     whenUTC,
		DurationMinutes: cand.DurationMinutes,
		Channel:         req.Channel,
		Notes:           cand.Notes,
	})
	if err != nil {
		s.cfg.Logger.Error("appointment create failed", "error", err, "lead_id", lead.ID)
		s.cfg.Metrics.ObserveBooking(req.Channel, "error")
		return
	}
	switch {
	case result.AlreadyBooked:
		s.cfg.Metrics.ObserveBooking(req.Channel, "already_booked")
	case result.Conflict:
		s.cfg.Metrics.ObserveBooking(req.Channel, "conflict")
	default:
		s.cfg.Metrics.ObserveBooking(req.Channel, "created")
	}
}
