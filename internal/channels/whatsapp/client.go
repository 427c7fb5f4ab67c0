package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/leadrail/leadrail/pkg/logging"
)

const defaultHTTPTimeout = 15 * time.Second

// Client talks to the WhatsApp gateway's REST API: sending text and listing
// recent messages for the polling fallback.
type Client struct {
	baseURL    string
	apiKey     string
	instanceID string
	httpClient *http.Client
	logger     *logging.Logger
}

// ClientConfig configures a gateway client.
type ClientConfig struct {
	BaseURL    string
	APIKey     string
	InstanceID string
	Logger     *logging.Logger
}

func NewClient(cfg ClientConfig) *Client {
	if cfg.BaseURL == "" {
		panic("whatsapp: base url required")
	}
	if cfg.InstanceID == "" {
		panic("whatsapp: instance id required")
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		instanceID: cfg.InstanceID,
		httpClient: &http.Client{Timeout: defaultHTTPTimeout},
		logger:     cfg.Logger,
	}
}

// SendText pushes one text message to the contact and returns the message id
// the gateway assigned to the send.
func (c *Client) SendText(ctx context.Context, toPhone, text string) (string, error) {
	body := sendTextRequest{
		Number: strings.TrimPrefix(toPhone, "+"),
		Text:   text,
	}
	url := fmt.Sprintf("%s/message/sendText/%s", c.baseURL, c.instanceID)

	var resp sendTextResponse
	if err := c.doJSON(ctx, http.MethodPost, url, body, &resp); err != nil {
		return "", fmt.Errorf("whatsapp: send text: %w", err)
	}
	return resp.Key.ID, nil
}

// ListMessages fetches the contact's recent messages for the polling path,
// newest first.
func (c *Client) ListMessages(ctx context.Context, contactPhone string, limit int) ([]Message, error) {
	body := map[string]any{
		"where": map[string]any{
			"key": map[string]any{
				"remoteJid": strings.TrimPrefix(contactPhone, "+") + jidSuffix,
			},
		},
		"limit": limit,
	}
	url := fmt.Sprintf("%s/chat/findMessages/%s", c.baseURL, c.instanceID)

	var resp ListMessagesResponse
	if err := c.doJSON(ctx, http.MethodPost, url, body, &resp); err != nil {
		return nil, fmt.Errorf("whatsapp: list messages: %w", err)
	}
	return resp.Messages.Records, nil
}

// ListRecent fetches the newest messages across all chats, newest first. The
// polling fallback scans these for inbound text the webhook path missed.
func (c *Client) ListRecent(ctx context.Context, limit int) ([]Message, error) {
	body := map[string]any{"limit": limit}
	url := fmt.Sprintf("%s/chat/findMessages/%s", c.baseURL, c.instanceID)

	var resp ListMessagesResponse
	if err := c.doJSON(ctx, http.MethodPost, url, body, &resp); err != nil {
		return nil, fmt.Errorf("whatsapp: list recent: %w", err)
	}
	return resp.Messages.Records, nil
}

func (c *Client) doJSON(ctx context.Context, method, url string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("apikey", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Warn("gateway request failed",
			"status", resp.StatusCode, "url", url, "body", string(raw))
		return fmt.Errorf("gateway returned status %d", resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
