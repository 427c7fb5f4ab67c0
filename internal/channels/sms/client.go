package sms

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/leadrail/leadrail/pkg/logging"
)

const (
	defaultAPIBase     = "https://api.telnyx.com/v2"
	defaultHTTPTimeout = 15 * time.Second
)

// Client sends outbound SMS through the provider's REST API.
type Client struct {
	baseURL    string
	apiKey     string
	profileID  string
	fromNumber string
	httpClient *http.Client
	logger     *logging.Logger
}

// ClientConfig configures an SMS client.
type ClientConfig struct {
	BaseURL    string // defaults to the provider API
	APIKey     string
	ProfileID  string
	FromNumber string
	Logger     *logging.Logger
}

func NewClient(cfg ClientConfig) *Client {
	if cfg.APIKey == "" {
		panic("sms: api key required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultAPIBase
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	return &Client{
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		profileID:  cfg.ProfileID,
		fromNumber: cfg.FromNumber,
		httpClient: &http.Client{Timeout: defaultHTTPTimeout},
		logger:     cfg.Logger,
	}
}

type sendMessageRequest struct {
	From               string `json:"from"`
	To                 string `json:"to"`
	Text               string `json:"text"`
	MessagingProfileID string `json:"messaging_profile_id,omitempty"`
}

type sendMessageResponse struct {
	Data struct {
		ID string `json:"id"`
	} `json:"data"`
}

// SendText delivers one SMS and returns the provider's message id.
func (c *Client) SendText(ctx context.Context, toPhone, text string) (string, error) {
	payload, err := json.Marshal(sendMessageRequest{
		From:               c.fromNumber,
		To:                 toPhone,
		Text:               text,
		MessagingProfileID: c.profileID,
	})
	if err != nil {
		return "", fmt.Errorf("sms: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/messages", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("sms: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("sms: send: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("sms: read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Warn("sms send failed", "status", resp.StatusCode, "body", string(raw))
		return "", fmt.Errorf("sms: provider returned status %d", resp.StatusCode)
	}

	var out sendMessageResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("sms: decode response: %w", err)
	}
	return out.Data.ID, nil
}
