package conversation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/leadrail/leadrail/internal/appointments"
	"github.com/leadrail/leadrail/internal/calls"
	"github.com/leadrail/leadrail/internal/leads"
)

type stubLeads struct {
	lead *leads.Lead
}

func (s *stubLeads) FindOrCreate(ctx context.Context, tenantID, phone, name, channel string) (*leads.Lead, error) {
	return s.lead, nil
}
func (s *stubLeads) GetByID(ctx context.Context, tenantID, id string) (*leads.Lead, error) {
	return s.lead, nil
}
func (s *stubLeads) FindByCallSession(ctx context.Context, tenantID, sessionID string) (*leads.Lead, error) {
	return s.lead, nil
}
func (s *stubLeads) AttachCallSession(ctx context.Context, leadID, sessionID string) error {
	return nil
}
func (s *stubLeads) UpdateStatus(ctx context.Context, leadID string, status leads.Status) error {
	return nil
}
func (s *stubLeads) ApplyClassification(ctx context.Context, leadID, caseType, urgency string, status leads.Status) error {
	return nil
}

type stubConvStore struct {
	turns []Turn
}

func (s *stubConvStore) FindOrCreate(ctx context.Context, tenantID, leadID string) (*Conversation, error) {
	return &Conversation{ID: "conv-1", LeadID: leadID, TenantID: tenantID}, nil
}
func (s *stubConvStore) AppendTurn(ctx context.Context, conversationID string, turn Turn) error {
	s.turns = append(s.turns, turn)
	return nil
}
func (s *stubConvStore) History(ctx context.Context, conversationID string) ([]Turn, error) {
	return append([]Turn(nil), s.turns...), nil
}

type stubSender struct {
	sent []OutboundReply
	id   string
	err  error
}

func (s *stubSender) SendReply(ctx context.Context, reply OutboundReply) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	s.sent = append(s.sent, reply)
	return s.id, nil
}

type stubWriter struct {
	requests []appointments.CreateRequest
	result   appointments.Result
}

func (s *stubWriter) Create(ctx context.Context, req appointments.CreateRequest) (appointments.Result, error) {
	s.requests = append(s.requests, req)
	return s.result, nil
}

type stubProvenance struct {
	claimed []string
}

func (s *stubProvenance) TryClaim(ctx context.Context, provider, eventID string) (bool, error) {
	s.claimed = append(s.claimed, provider+":"+eventID)
	return true, nil
}

func newTestService(agent Agent, sender *stubSender, writer *stubWriter, prov *stubProvenance) (*Service, *stubConvStore) {
	store := &stubConvStore{}
	cfg := ServiceConfig{
		Leads:    &stubLeads{lead: &leads.Lead{ID: "lead-1", TenantID: "tenant-1", Phone: "+15550001111"}},
		Store:    store,
		Agent:    agent,
		Sender:   sender,
		Timezone: "America/Detroit",
	}
	if writer != nil {
		cfg.Writer = writer
	}
	if prov != nil {
		cfg.Provenance = prov
	}
	return NewService(cfg), store
}

func testRequest() MessageRequest {
	return MessageRequest{
		TenantID:   "tenant-1",
		Channel:    "whatsapp",
		ContactKey: "+15550001111",
		Text:       "hi, do you have anything friday?",
	}
}

func TestProcessMessageAppendsTurnPairAndSendsOnce(t *testing.T) {
	sender := &stubSender{id: "out-1"}
	agent := NewGuardedAgent(&scriptedAgent{reply: AgentReply{Text: "We do! Morning or afternoon?"}}, time.Second, nil)
	svc, store := newTestService(agent, sender, nil, nil)

	if err := svc.ProcessMessage(context.Background(), testRequest()); err != nil {
		t.Fatalf("ProcessMessage: %v", err)
	}

	if len(store.turns) != 2 {
		t.Fatalf("expected exactly one user+assistant turn pair, got %d turns", len(store.turns))
	}
	if store.turns[0].Role != RoleUser || store.turns[1].Role != RoleAssistant {
		t.Errorf("turn roles: %v %v", store.turns[0].Role, store.turns[1].Role)
	}
	if len(sender.sent) != 1 {
		t.Fatalf("expected exactly one outbound send, got %d", len(sender.sent))
	}
}

func TestProcessMessageAgentFailureStillReplies(t *testing.T) {
	sender := &stubSender{}
	agent := NewGuardedAgent(&scriptedAgent{err: errors.New("model down")}, time.Second, nil)
	svc, _ := newTestService(agent, sender, nil, nil)

	if err := svc.ProcessMessage(context.Background(), testRequest()); err != nil {
		t.Fatalf("agent failure must not abort the pipeline: %v", err)
	}
	if len(sender.sent) != 1 {
		t.Fatalf("expected exactly one fallback reply, got %d", len(sender.sent))
	}
	if sender.sent[0].Body != apologyResponse {
		t.Errorf("body: got %q", sender.sent[0].Body)
	}
}

func TestProcessMessageCommitsBooking(t *testing.T) {
	sender := &stubSender{}
	writer := &stubWriter{}
	agent := NewGuardedAgent(&scriptedAgent{reply: AgentReply{
		Text: "Booked you for Friday 5pm!",
		Booking: &calls.BookingCandidate{
			WhenLocal: "2026-01-30T17:00:00",
			Timezone:  "America/Detroit",
		},
	}}, time.Second, nil)
	svc, _ := newTestService(agent, sender, writer, nil)

	if err := svc.ProcessMessage(context.Background(), testRequest()); err != nil {
		t.Fatalf("ProcessMessage: %v", err)
	}
	if len(writer.requests) != 1 {
		t.Fatalf("expected one booking attempt, got %d", len(writer.requests))
	}
	want := time.Date(2026, 1, 30, 22, 0, 0, 0, time.UTC)
	if !writer.requests[0].ScheduledAt.Equal(want) {
		t.Errorf("scheduled at: got %s want %s", writer.requests[0].ScheduledAt, want)
	}
}

func TestProcessMessageUnparseableBookingStillReplies(t *testing.T) {
	sender := &stubSender{}
	writer := &stubWriter{}
	agent := NewGuardedAgent(&scriptedAgent{reply: AgentReply{
		Text:    "Let me check availability for you.",
		Booking: &calls.BookingCandidate{WhenLocal: "proximamente"},
	}}, time.Second, nil)
	svc, _ := newTestService(agent, sender, writer, nil)

	if err := svc.ProcessMessage(context.Background(), testRequest()); err != nil {
		t.Fatalf("ProcessMessage: %v", err)
	}
	if len(writer.requests) != 0 {
		t.Fatal("unparseable candidate must not reach the writer")
	}
	if len(sender.sent) != 1 {
		t.Fatal("reply must still be sent")
	}
}

func TestProcessMessageTagsProvenance(t *testing.T) {
	sender := &stubSender{id: "provider-msg-9"}
	prov := &stubProvenance{}
	agent := NewGuardedAgent(&scriptedAgent{reply: AgentReply{Text: "Happy to help with that."}}, time.Second, nil)
	svc, _ := newTestService(agent, sender, nil, prov)

	if err := svc.ProcessMessage(context.Background(), testRequest()); err != nil {
		t.Fatalf("ProcessMessage: %v", err)
	}
	if len(prov.claimed) != 1 || prov.claimed[0] != "whatsapp:provider-msg-9" {
		t.Fatalf("provenance claims: %v", prov.claimed)
	}
}

func TestProcessMessageSendFailureIsFatalForEvent(t *testing.T) {
	sender := &stubSender{err: errors.New("gateway unreachable")}
	agent := NewGuardedAgent(&scriptedAgent{reply: AgentReply{Text: "This reply never leaves."}}, time.Second, nil)
	svc, _ := newTestService(agent, sender, nil, nil)

	if err := svc.ProcessMessage(context.Background(), testRequest()); err == nil {
		t.Fatal("infrastructure send failure must surface as an error")
	}
}
