package bootstrap

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/leadrail/leadrail/internal/appointments"
	"github.com/leadrail/leadrail/internal/calls"
	"github.com/leadrail/leadrail/internal/channels/outbound"
	"github.com/leadrail/leadrail/internal/channels/sms"
	"github.com/leadrail/leadrail/internal/channels/whatsapp"
	appconfig "github.com/leadrail/leadrail/internal/config"
	"github.com/leadrail/leadrail/internal/conversation"
	"github.com/leadrail/leadrail/internal/events"
	"github.com/leadrail/leadrail/internal/leads"
	"github.com/leadrail/leadrail/internal/notify"
	"github.com/leadrail/leadrail/internal/observability/metrics"
	"github.com/leadrail/leadrail/pkg/logging"
)

// Pipeline bundles the wired pipeline components a binary needs.
type Pipeline struct {
	Leads     leads.Repository
	Processed *events.ProcessedStore
	Calls     *calls.Store
	Writer    *appointments.Writer
	Metrics   *metrics.PipelineMetrics
	Service   *conversation.Service
	WhatsApp  *whatsapp.Client // nil when the gateway is not configured

	// Transcriber turns inbound voice notes into text; backed by the same
	// model as the agent.
	Transcriber whatsapp.Transcriber

	agent *conversation.GeminiAgent
}

// Close releases resources held by the pipeline's collaborators.
func (p *Pipeline) Close() error {
	if p.agent != nil {
		return p.agent.Close()
	}
	return nil
}

// BuildPipeline wires repositories, channel clients, the agent boundary, and
// the conversation service from config. The same construction serves the API
// server, the queue worker, and the poller.
func BuildPipeline(ctx context.Context, cfg *appconfig.Config, pool *pgxpool.Pool, redisClient *redis.Client, logger *logging.Logger) (*Pipeline, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bootstrap: config is required")
	}
	if pool == nil {
		return nil, fmt.Errorf("bootstrap: pgx pool is required")
	}
	if logger == nil {
		logger = logging.Default()
	}

	leadsRepo := leads.NewPostgresRepository(pool)
	processed := events.NewProcessedStore(pool)
	callStore := calls.NewStore(pool)
	apptRepo := appointments.NewPostgresRepository(pool)

	emailSender := notify.NewSendGridSender(notify.SendGridConfig{
		APIKey:    cfg.SendGridAPIKey,
		FromEmail: cfg.SendGridFromEmail,
		FromName:  cfg.SendGridFromName,
	}, logger)
	var email notify.EmailSender
	if emailSender != nil {
		email = emailSender
	}
	notifier := notify.NewService(pool, email, nil, logger)

	writer := appointments.NewWriter(apptRepo, leadsRepo, notifier, logger)
	pipelineMetrics := metrics.NewPipelineMetrics(prometheus.DefaultRegisterer)

	gemini, err := conversation.NewGeminiAgent(ctx, cfg.GeminiAPIKey, cfg.GeminiModelID)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: gemini agent: %w", err)
	}
	agent := conversation.NewGuardedAgent(gemini, cfg.AgentTimeout, logger)

	var waClient *whatsapp.Client
	if cfg.WhatsAppBaseURL != "" && cfg.WhatsAppInstanceID != "" {
		waClient = whatsapp.NewClient(whatsapp.ClientConfig{
			BaseURL:    cfg.WhatsAppBaseURL,
			APIKey:     cfg.WhatsAppAPIKey,
			InstanceID: cfg.WhatsAppInstanceID,
			Logger:     logger,
		})
	}
	var smsClient *sms.Client
	if cfg.SMSAPIKey != "" {
		smsClient = sms.NewClient(sms.ClientConfig{
			APIKey:    cfg.SMSAPIKey,
			ProfileID: cfg.SMSProfileID,
			Logger:    logger,
		})
	}

	var waSender, smsSender outbound.TextSender
	if waClient != nil {
		waSender = waClient
	}
	if smsClient != nil {
		smsSender = smsClient
	}

	var cache *conversation.HistoryCache
	if redisClient != nil {
		cache = conversation.NewHistoryCache(redisClient, nil)
	}

	svcCfg := conversation.ServiceConfig{
		Leads:        leadsRepo,
		Store:        conversation.NewStore(pool),
		Agent:        agent,
		Writer:       writer,
		Sender:       outbound.NewDispatcher(waSender, smsSender),
		Provenance:   processed,
		Metrics:      pipelineMetrics,
		Logger:       logger,
		BusinessName: cfg.BusinessName,
		AgentName:    cfg.AgentDisplayName,
		Timezone:     cfg.DefaultTimezone,
	}
	if cache != nil {
		svcCfg.Cache = cache
	}

	return &Pipeline{
		Leads:       leadsRepo,
		Processed:   processed,
		Calls:       callStore,
		Writer:      writer,
		Metrics:     pipelineMetrics,
		Service:     conversation.NewService(svcCfg),
		WhatsApp:    waClient,
		Transcriber: gemini,
		agent:       gemini,
	}, nil
}
