package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/leadrail/leadrail/internal/calls"
)

// bookingMarker prefixes the structured line the model emits once it has
// collected a complete booking intent. Everything after the marker is a JSON
// BookingCandidate; the marker line is stripped from the user-facing reply.
const bookingMarker = "BOOKING:"

// GeminiAgent implements Agent using Google's Gemini API.
type GeminiAgent struct {
	client  *genai.Client
	modelID string
}

// NewGeminiAgent creates a Gemini-backed agent.
func NewGeminiAgent(ctx context.Context, apiKey, modelID string) (*GeminiAgent, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("conversation: gemini api key is required")
	}
	if strings.TrimSpace(modelID) == "" {
		modelID = "gemini-2.5-flash"
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("conversation: create gemini client: %w", err)
	}
	return &GeminiAgent{client: client, modelID: modelID}, nil
}

// Reply sends the conversation to Gemini and returns the reply plus any
// structured booking payload the model emitted.
func (a *GeminiAgent) Reply(ctx context.Context, req AgentRequest) (AgentReply, error) {
	model := a.client.GenerativeModel(a.modelID)
	model.SystemInstruction = genai.NewUserContent(genai.Text(systemPrompt(req.Context)))

	cs := model.StartChat()
	for _, turn := range req.History {
		content := strings.TrimSpace(turn.Content)
		if content == "" {
			continue
		}
		role := "user"
		if turn.Role == RoleAssistant {
			role = "model"
		}
		cs.History = append(cs.History, &genai.Content{
			Role:  role,
			Parts: []genai.Part{genai.Text(content)},
		})
	}

	resp, err := cs.SendMessage(ctx, genai.Text(req.Latest))
	if err != nil {
		return AgentReply{}, fmt.Errorf("conversation: gemini send: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return AgentReply{}, errors.New("conversation: gemini returned no candidates")
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			sb.WriteString(string(text))
		}
	}
	text, booking := splitBookingMarker(sb.String())
	return AgentReply{Text: text, Booking: booking}, nil
}

// Transcribe converts an inbound voice note to text with the same model, so
// audio messages can join the text pipeline.
func (a *GeminiAgent) Transcribe(ctx context.Context, audio []byte, mimetype string) (string, error) {
	if len(audio) == 0 {
		return "", errors.New("conversation: empty audio payload")
	}
	model := a.client.GenerativeModel(a.modelID)
	resp, err := model.GenerateContent(ctx,
		genai.Text("Transcribe this voice message verbatim. Reply with the transcript only."),
		genai.Blob{MIMEType: mimetype, Data: audio},
	)
	if err != nil {
		return "", fmt.Errorf("conversation: gemini transcribe: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", errors.New("conversation: gemini returned no transcript")
	}
	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			sb.WriteString(string(text))
		}
	}
	return strings.TrimSpace(sb.String()), nil
}

// Close releases the underlying client.
func (a *GeminiAgent) Close() error {
	return a.client.Close()
}

func systemPrompt(ctx AgentContext) string {
	business := ctx.BusinessName
	if business == "" {
		business = "the business"
	}
	name := ctx.AgentName
	if name == "" {
		name = "Assistant"
	}
	tz := ctx.Timezone
	if tz == "" {
		tz = "UTC"
	}
	return fmt.Sprintf(
		"You are %s, the intake assistant for %s. Answer briefly and help the "+
			"contact schedule an appointment. The business timezone is %s. When "+
			"you have agreed on a concrete date and time, finish your reply with "+
			"a line of the form %s {\"when_local\":\"2006-01-02T15:04:05\","+
			"\"timezone\":\"%s\",\"attendee_name\":\"...\"}.",
		name, business, tz, bookingMarker, tz)
}

// splitBookingMarker separates a trailing BOOKING: line from the reply text.
// Malformed payloads are dropped: the conversational reply still goes out.
func splitBookingMarker(raw string) (string, *calls.BookingCandidate) {
	idx := strings.LastIndex(raw, bookingMarker)
	if idx < 0 {
		return strings.TrimSpace(raw), nil
	}
	text := strings.TrimSpace(raw[:idx])
	payload := strings.TrimSpace(raw[idx+len(bookingMarker):])

	var cand calls.BookingCandidate
	if err := json.Unmarshal([]byte(payload), &cand); err != nil || cand.WhenLocal == "" {
		return text, nil
	}
	return text, &cand
}
