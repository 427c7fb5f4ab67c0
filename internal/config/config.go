package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	Port           string
	Env            string
	LogLevel       string
	DatabaseURL    string
	UseMemoryQueue bool
	WorkerCount    int

	// Voice platform webhook verification
	VoiceWebhookSecret string

	// WhatsApp gateway (push webhook + polling fallback)
	WhatsAppBaseURL     string
	WhatsAppAPIKey      string
	WhatsAppInstanceID  string
	WhatsAppPollEnabled bool
	WhatsAppPollSpec    string

	// SMS gateway
	SMSAPIKey        string
	SMSProfileID     string
	SMSWebhookSecret string

	// Pipeline tuning
	TenantID         string
	DebounceQuiet    time.Duration
	CooldownWindow   time.Duration
	AgentTimeout     time.Duration
	DefaultTimezone  string
	BusinessName     string
	AgentDisplayName string

	// Gemini agent
	GeminiAPIKey  string
	GeminiModelID string

	// SendGrid owner notifications
	SendGridAPIKey    string
	SendGridFromEmail string
	SendGridFromName  string

	// AWS / queue
	AWSRegion           string
	AWSAccessKeyID      string
	AWSSecretAccessKey  string
	AWSEndpointOverride string
	PipelineQueueURL    string

	// Redis
	RedisAddr     string
	RedisPassword string
	RedisTLS      bool
}

// Load reads configuration from environment variables. A .env file in the
// working directory is loaded first when present; real env vars win.
func Load() *Config {
	_ = godotenv.Load()
	return &Config{
		Port:           getEnv("PORT", "8080"),
		Env:            getEnv("ENV", "development"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		DatabaseURL:    getEnv("DATABASE_URL", ""),
		UseMemoryQueue: getEnvAsBool("USE_MEMORY_QUEUE", false),
		WorkerCount:    getEnvAsInt("WORKER_COUNT", 2),

		VoiceWebhookSecret: getEnv("VOICE_WEBHOOK_SECRET", ""),

		WhatsAppBaseURL:     strings.TrimRight(getEnv("WHATSAPP_BASE_URL", ""), "/"),
		WhatsAppAPIKey:      getEnv("WHATSAPP_API_KEY", ""),
		WhatsAppInstanceID:  getEnv("WHATSAPP_INSTANCE_ID", ""),
		WhatsAppPollEnabled: getEnvAsBool("WHATSAPP_POLL_ENABLED", false),
		WhatsAppPollSpec:    getEnv("WHATSAPP_POLL_SPEC", "@every 1m"),

		SMSAPIKey:        getEnv("SMS_API_KEY", ""),
		SMSProfileID:     getEnv("SMS_PROFILE_ID", ""),
		SMSWebhookSecret: getEnv("SMS_WEBHOOK_SECRET", ""),

		TenantID:         getEnv("TENANT_ID", "default"),
		DebounceQuiet:    getEnvAsDuration("DEBOUNCE_QUIET", 8*time.Second),
		CooldownWindow:   getEnvAsDuration("COOLDOWN_WINDOW", 120*time.Second),
		AgentTimeout:     getEnvAsDuration("AGENT_TIMEOUT", 20*time.Second),
		DefaultTimezone:  getEnv("DEFAULT_TIMEZONE", "UTC"),
		BusinessName:     getEnv("BUSINESS_NAME", ""),
		AgentDisplayName: getEnv("AGENT_DISPLAY_NAME", "Assistant"),

		GeminiAPIKey:  getEnv("GEMINI_API_KEY", ""),
		GeminiModelID: getEnv("GEMINI_MODEL_ID", "gemini-2.5-flash"),

		SendGridAPIKey:    getEnv("SENDGRID_API_KEY", ""),
		SendGridFromEmail: getEnv("SENDGRID_FROM_EMAIL", ""),
		SendGridFromName:  getEnv("SENDGRID_FROM_NAME", "LeadRail"),

		AWSRegion:           getEnv("AWS_REGION", "us-east-1"),
		AWSAccessKeyID:      getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:  getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpointOverride: getEnv("AWS_ENDPOINT_OVERRIDE", ""),
		PipelineQueueURL:    getEnv("PIPELINE_QUEUE_URL", ""),

		RedisAddr:     getEnv("REDIS_ADDR", "redis:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),
	}
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}
