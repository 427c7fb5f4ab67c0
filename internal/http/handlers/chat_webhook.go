package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"

	"github.com/leadrail/leadrail/internal/channels/whatsapp"
	"github.com/leadrail/leadrail/internal/conversation"
	"github.com/leadrail/leadrail/internal/debounce"
	"github.com/leadrail/leadrail/internal/events"
	"github.com/leadrail/leadrail/internal/observability/metrics"
	"github.com/leadrail/leadrail/pkg/logging"
)

var handlerTracer = otel.Tracer("leadrail.internal.http.handlers")

type idempotencyGuard interface {
	TryClaim(ctx context.Context, provider, eventID string) (bool, error)
}

type pipelinePublisher interface {
	EnqueueMessage(ctx context.Context, jobID string, req conversation.MessageRequest) error
}

// ChatWebhookHandler receives WhatsApp gateway push deliveries. Accepted
// messages pass the idempotency guard and land in the per-contact debouncer;
// the debouncer's flush enqueues one combined pipeline job.
type ChatWebhookHandler struct {
	adapter   *whatsapp.Adapter
	guard     idempotencyGuard
	publisher pipelinePublisher
	debouncer *debounce.Debouncer
	metrics   *metrics.PipelineMetrics
	logger    *logging.Logger

	// names holds the display name seen with a contact's pending fragments.
	// Entries are consumed by flush, so the map is bounded by the number of
	// contacts currently inside their quiet window.
	mu    sync.Mutex
	names map[string]string
}

// ChatWebhookConfig wires a chat webhook handler.
type ChatWebhookConfig struct {
	Adapter       *whatsapp.Adapter
	Guard         idempotencyGuard
	Publisher     pipelinePublisher
	DebounceQuiet time.Duration
	Metrics       *metrics.PipelineMetrics
	Logger        *logging.Logger
}

func NewChatWebhookHandler(cfg ChatWebhookConfig) *ChatWebhookHandler {
	if cfg.Adapter == nil {
		panic("handlers: whatsapp adapter required")
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
	h := &ChatWebhookHandler{
		adapter:   cfg.Adapter,
		guard:     cfg.Guard,
		publisher: cfg.Publisher,
		metrics:   cfg.Metrics,
		logger:    cfg.Logger,
		names:     make(map[string]string),
	}
	h.debouncer = debounce.New(cfg.DebounceQuiet, h.flush, cfg.Logger)
	return h
}

// Handle processes one gateway delivery. Ignored and duplicate payloads are
// acknowledged with 200 so the gateway stops retrying; only infrastructure
// failures return 5xx.
func (h *ChatWebhookHandler) Handle(w http.ResponseWriter, r *http.Request) {
	ctx, span := handlerTracer.Start(r.Context(), "handlers.chat_webhook")
	defer span.End()
	start := time.Now()
	defer func() { h.metrics.ObserveWebhookLatency("whatsapp", time.Since(start).Seconds()) }()

	var payload whatsapp.WebhookPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		h.logger.Warn("chat webhook body undecodable", "error", err)
		writeAck(w, "ignored")
		return
	}

	evt, skip := h.adapter.NormalizeWebhook(ctx, payload)
	if skip != events.SkipNone {
		h.metrics.ObserveInbound("whatsapp", string(skip))
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
		h.metrics.ObserveInbound("whatsapp", "duplicate")
		writeAck(w, "duplicate")
		return
	}

	h.rememberName(evt.ContactKey, evt.SenderDisplayName)
	h.debouncer.Add(ctx, evt.ContactKey, evt.Text)
	h.metrics.ObserveInbound("whatsapp", "accepted")
	writeAck(w, "accepted")
}

func (h *ChatWebhookHandler) flush(ctx context.Context, contactKey, combined string) {
	req := conversation.MessageRequest{
		TenantID:    h.adapter.TenantID(),
		Channel:     string(events.ChannelWhatsApp),
		ContactKey:  contactKey,
		DisplayName: h.takeName(contactKey),
		Text:        combined,
	}
	if err := h.publisher.EnqueueMessage(ctx, uuid.NewString(), req); err != nil {
		h.logger.Error("debounced message enqueue failed", "error", err, "contact", contactKey)
	}
}

func (h *ChatWebhookHandler) rememberName(contactKey, name string) {
	if name == "" {
		return
	}
	h.mu.Lock()
	h.names[contactKey] = name
	h.mu.Unlock()
}

// takeName pops the contact's buffered display name along with the flush that
// uses it, so idle contacts leave nothing behind.
func (h *ChatWebhookHandler) takeName(contactKey string) string {
	h.mu.Lock()
	defer h.mu.Unlock()
	name := h.names[contactKey]
	delete(h.names, contactKey)
	return name
}

func writeAck(w http.ResponseWriter, status string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"status": status})
}
