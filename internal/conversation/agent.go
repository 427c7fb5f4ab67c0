package conversation

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/leadrail/leadrail/internal/calls"
	"github.com/leadrail/leadrail/pkg/logging"
)

// AgentContext is the channel/tenant context handed to the agent alongside
// the conversation history.
type AgentContext struct {
	BusinessName string
	AgentName    string
	Timezone     string
}

// AgentRequest carries the full conversation history plus the latest combined
// message.
type AgentRequest struct {
	History []Turn
	Latest  string
	Context AgentContext
}

// AgentReply is what comes back from the collaborator: reply text and an
// optional structured booking payload.
type AgentReply struct {
	Text    string
	Booking *calls.BookingCandidate
}

// Agent is the external text-generation collaborator. Implementations must be
// swappable without touching the pipeline.
type Agent interface {
	Reply(ctx context.Context, req AgentRequest) (AgentReply, error)
}

const (
	// minReplyLength is the response-quality floor: anything shorter is
	// replaced with fallbackPrompt rather than sent as a near-empty message.
	minReplyLength = 5

	fallbackPrompt  = "Thanks for your message! Could you tell me a bit more about what you're looking for?"
	apologyResponse = "Sorry, I'm having trouble responding right now. We'll get back to you shortly."

	defaultAgentTimeout = 20 * time.Second
)

// guardedAgent wraps an Agent with the boundary behavior the pipeline relies
// on: a bounded timeout, a response-quality floor, and an apology instead of
// an error. A single attempt per inbound message; no internal retry.
type guardedAgent struct {
	inner   Agent
	timeout time.Duration
	logger  *logging.Logger
}

// NewGuardedAgent wraps the collaborator so that callers always get a usable
// reply back. Invocation errors surface as the apology text, never as an
// error, so the send step still runs.
func NewGuardedAgent(inner Agent, timeout time.Duration, logger *logging.Logger) Agent {
	if inner == nil {
		panic("conversation: agent required")
	}
	if timeout <= 0 {
		timeout = defaultAgentTimeout
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &guardedAgent{inner: inner, timeout: timeout, logger: logger}
}

func (g *guardedAgent) Reply(ctx context.Context, req AgentRequest) (AgentReply, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	reply, err := g.inner.Reply(ctx, req)
	if err != nil {
		g.logger.Warn("agent invocation failed, substituting apology", "error", err)
		return AgentReply{Text: apologyResponse}, nil
	}
	if utf8.RuneCountInString(strings.TrimSpace(reply.Text)) < minReplyLength {
		g.logger.Warn("agent reply below quality floor, substituting fallback", "reply", reply.Text)
		reply.Text = fallbackPrompt
	}
	return reply, nil
}
