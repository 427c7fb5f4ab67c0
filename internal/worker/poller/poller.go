// Package poller implements the polling fallback for the WhatsApp channel:
// instead of waiting for push webhooks, it lists recent gateway messages on a
// schedule and feeds at most one unprocessed message per cycle through the
// pipeline, behind the tenant-wide cooldown gate.
package poller

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/leadrail/leadrail/internal/channels/whatsapp"
	"github.com/leadrail/leadrail/internal/conversation"
	"github.com/leadrail/leadrail/internal/events"
	"github.com/leadrail/leadrail/pkg/logging"
)

var tracer = otel.Tracer("leadrail.internal.worker.poller")

const defaultFetchLimit = 50

// cycleState names each step of one poll invocation. The cycle is an explicit
// machine rather than straight-line code so a skipped step always has a
// recorded reason.
type cycleState string

const (
	stateCheckCooldown cycleState = "check_cooldown"
	stateFetch         cycleState = "fetch_messages"
	stateSelect        cycleState = "select_message"
	stateClaim         cycleState = "claim_idempotency"
	stateAcquire       cycleState = "acquire_cooldown"
	stateProcess       cycleState = "process"
	stateRecordMark    cycleState = "record_high_water_mark"
	stateDone          cycleState = "done"
)

type messageLister interface {
	ListRecent(ctx context.Context, limit int) ([]whatsapp.Message, error)
}

type idempotencyGuard interface {
	TryClaim(ctx context.Context, provider, eventID string) (bool, error)
	AlreadyProcessed(ctx context.Context, provider, eventID string) (bool, error)
}

type cooldownGate interface {
	Ready(ctx context.Context, tenantID string) (bool, error)
	TryAcquire(ctx context.Context, tenantID string) (bool, error)
}

type messageProcessor interface {
	ProcessMessage(ctx context.Context, req conversation.MessageRequest) error
}

type markStore interface {
	HighWaterMark(ctx context.Context, tenantID string) (time.Time, error)
	RecordHighWaterMark(ctx context.Context, tenantID string, t time.Time) error
}

// Config wires a Poller.
type Config struct {
	TenantID   string
	Lister     messageLister
	Adapter    *whatsapp.Adapter
	Guard      idempotencyGuard
	Gate       cooldownGate
	Pipeline   messageProcessor
	Marks      markStore
	FetchLimit int
	Logger     *logging.Logger
}

// Poller runs one pipeline pass per schedule tick. One message per cycle is a
// deliberate throttle, paired with the cooldown gate, not an oversight.
type Poller struct {
	cfg Config
}

func New(cfg Config) *Poller {
	if cfg.TenantID == "" {
		panic("poller: tenant id required")
	}
	if cfg.Lister == nil {
		panic("poller: message lister required")
	}
	if cfg.Adapter == nil {
		panic("poller: adapter required")
	}
	if cfg.Guard == nil {
		panic("poller: idempotency guard required")
	}
	if cfg.Gate == nil {
		panic("poller: cooldown gate required")
	}
	if cfg.Pipeline == nil {
		panic("poller: pipeline required")
	}
	if cfg.FetchLimit <= 0 {
		cfg.FetchLimit = defaultFetchLimit
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	return &Poller{cfg: cfg}
}

// RunCycle executes one poll invocation. Errors are infrastructure failures
// for this cycle only; the scheduler keeps ticking regardless.
func (p *Poller) RunCycle(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "poller.run_cycle")
	defer span.End()

	state := stateCheckCooldown
	var (
		candidates []whatsapp.Message
		evt        *events.InboundEvent
	)

	for state != stateDone {
		span.SetAttributes(attribute.String("leadrail.poll_state", string(state)))
		switch state {
		case stateCheckCooldown:
			ready, err := p.cfg.Gate.Ready(ctx, p.cfg.TenantID)
			if err != nil {
				return fmt.Errorf("poller: %s: %w", state, err)
			}
			if !ready {
				p.cfg.Logger.Debug("poll cycle skipped, cooldown active", "tenant_id", p.cfg.TenantID)
				return nil
			}
			state = stateFetch

		case stateFetch:
			msgs, err := p.cfg.Lister.ListRecent(ctx, p.cfg.FetchLimit)
			if err != nil {
				return fmt.Errorf("poller: %s: %w", state, err)
			}
			candidates = msgs
			state = stateSelect

		case stateSelect:
			selected, err := p.selectOne(ctx, candidates)
			if err != nil {
				return fmt.Errorf("poller: %s: %w", state, err)
			}
			if selected == nil {
				return nil
			}
			evt = selected
			state = stateClaim

		case stateClaim:
			first, err := p.cfg.Guard.TryClaim(ctx, string(evt.Channel), evt.ProviderMessageID)
			if err != nil {
				return fmt.Errorf("poller: %s: %w", state, err)
			}
			if !first {
				// Raced with the webhook path or another poller.
				p.cfg.Logger.Debug("poll candidate already claimed", "provider_message_id", evt.ProviderMessageID)
				return nil
			}
			state = stateAcquire

		case stateAcquire:
			acquired, err := p.cfg.Gate.TryAcquire(ctx, p.cfg.TenantID)
			if err != nil {
				return fmt.Errorf("poller: %s: %w", state, err)
			}
			if !acquired {
				// Lost the race after the early check. The message stays
				// claimed; a reply for it would now exceed the send ceiling.
				p.cfg.Logger.Warn("cooldown lost after claim, skipping send",
					"provider_message_id", evt.ProviderMessageID)
				return nil
			}
			state = stateProcess

		case stateProcess:
			if err := p.cfg.Pipeline.ProcessMessage(ctx, conversation.MessageRequest{
				TenantID:    evt.TenantID,
				Channel:     string(evt.Channel),
				ContactKey:  evt.ContactKey,
				DisplayName: evt.SenderDisplayName,
				Text:        evt.Text,
			}); err != nil {
				return fmt.Errorf("poller: %s: %w", state, err)
			}
			state = stateRecordMark

		case stateRecordMark:
			if p.cfg.Marks != nil {
				if err := p.cfg.Marks.RecordHighWaterMark(ctx, p.cfg.TenantID, evt.ReceivedAt); err != nil {
					p.cfg.Logger.Warn("high water mark record failed", "error", err)
				}
			}
			state = stateDone
		}
	}
	return nil
}

// selectOne normalizes candidates oldest-first and returns the first one that
// is new: not self-originated, not older than the high-water mark, and not
// already processed (which also covers our own provenance-tagged sends).
func (p *Poller) selectOne(ctx context.Context, msgs []whatsapp.Message) (*events.InboundEvent, error) {
	mark := time.Time{}
	if p.cfg.Marks != nil {
		m, err := p.cfg.Marks.HighWaterMark(ctx, p.cfg.TenantID)
		if err != nil {
			p.cfg.Logger.Warn("high water mark read failed", "error", err)
		} else {
			mark = m
		}
	}

	for i := len(msgs) - 1; i >= 0; i-- {
		evt, skip := p.cfg.Adapter.NormalizeMessage(ctx, msgs[i])
		if skip != events.SkipNone {
			continue
		}
		if !mark.IsZero() && !evt.ReceivedAt.After(mark) {
			continue
		}
		done, err := p.cfg.Guard.AlreadyProcessed(ctx, string(evt.Channel), evt.ProviderMessageID)
		if err != nil {
			return nil, err
		}
		if done {
			continue
		}
		return evt, nil
	}
	return nil, nil
}
