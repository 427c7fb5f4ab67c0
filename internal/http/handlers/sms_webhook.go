package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/leadrail/leadrail/internal/channels/sms"
	"github.com/leadrail/leadrail/internal/conversation"
	"github.com/leadrail/leadrail/internal/debounce"
	"github.com/leadrail/leadrail/internal/events"
	"github.com/leadrail/leadrail/internal/observability/metrics"
	"github.com/leadrail/leadrail/pkg/logging"
)

// SMSWebhookHandler receives SMS provider webhooks. Shares the chat path's
// guard-then-debounce flow; SMS payloads carry no display name.
type SMSWebhookHandler struct {
	adapter   *sms.Adapter
	secret    string
	guard     idempotencyGuard
	publisher pipelinePublisher
	debouncer *debounce.Debouncer
	tenantID  string
	metrics   *metrics.PipelineMetrics
	logger    *logging.Logger
}

// SMSWebhookConfig wires an SMS webhook handler.
type SMSWebhookConfig struct {
	TenantID      string
	Secret        string // empty disables signature verification
	Guard         idempotencyGuard
	Publisher     pipelinePublisher
	DebounceQuiet time.Duration
	Metrics       *metrics.PipelineMetrics
	Logger        *logging.Logger
}

func NewSMSWebhookHandler(cfg SMSWebhookConfig) *SMSWebhookHandler {
	if cfg.TenantID == "" {
		panic("handlers: tenant id required")
	}
	if cfg.Guard == nil {
		panic("handlers: idempotency guard required")
	}
	if cfg.Publisher == nil {
		panic("handlers: publisher required")
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	h := &SMSWebhookHandler{
		adapter:   sms.NewAdapter(cfg.TenantID),
		secret:    cfg.Secret,
		guard:     cfg.Guard,
		publisher: cfg.Publisher,
		tenantID:  cfg.TenantID,
		metrics:   cfg.Metrics,
		logger:    cfg.Logger,
	}
	h.debouncer = debounce.New(cfg.DebounceQuiet, h.flush, cfg.Logger)
	return h
}

func (h *SMSWebhookHandler) Handle(w http.ResponseWriter, r *http.Request) {
	ctx, span := handlerTracer.Start(r.Context(), "handlers.sms_webhook")
	defer span.End()
	start := time.Now()
	defer func() { h.metrics.ObserveWebhookLatency("sms", time.Since(start).Seconds()) }()

	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	if !sms.VerifySignature(h.secret, body, r.Header.Get("X-Signature")) {
		h.logger.Warn("sms webhook signature rejected")
		http.Error(w, "invalid signature", http.StatusUnauthorized)
		return
	}

	var payload sms.WebhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		h.logger.Warn("sms webhook body undecodable", "error", err)
		writeAck(w, "ignored")
		return
	}

	evt, skip := h.adapter.Normalize(payload)
	if skip != events.SkipNone {
		h.metrics.ObserveInbound("sms", string(skip))
		writeAck(w, "ignored")
		return
	}

	first, err := h.guard.TryClaim(ctx, string(evt.Channel), evt.ProviderMessageID)
	if err != nil {
		span.RecordError(err)
		h.logger.Error("idempotency claim failed", "error", err, "provider_message_id", evt.ProviderMessageID)
		http.Error(w, "storage unavailable", http.StatusInternalServerError)
		return
	}
	if !first {
		h.metrics.ObserveInbound("sms", "duplicate")
		writeAck(w, "duplicate")
		return
	}

	h.debouncer.Add(ctx, evt.ContactKey, evt.Text)
	h.metrics.ObserveInbound("sms", "accepted")
	writeAck(w, "accepted")
}

func (h *SMSWebhookHandler) flush(ctx context.Context, contactKey, combined string) {
	req := conversation.MessageRequest{
		TenantID:   h.tenantID,
		Channel:    string(events.ChannelSMS),
		ContactKey: contactKey,
		Text:       combined,
	}
	if err := h.publisher.EnqueueMessage(ctx, uuid.NewString(), req); err != nil {
		h.logger.Error("debounced message enqueue failed", "error", err, "contact", contactKey)
	}
}
