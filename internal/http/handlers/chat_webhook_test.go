package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/leadrail/leadrail/internal/channels/whatsapp"
	"github.com/leadrail/leadrail/internal/conversation"
)

type fakeGuard struct {
	mu      sync.Mutex
	claimed map[string]bool
	err     error
}

func (g *fakeGuard) TryClaim(ctx context.Context, provider, eventID string) (bool, error) {
	if g.err != nil {
		return false, g.err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.claimed == nil {
		g.claimed = make(map[string]bool)
	}
	key := provider + ":" + eventID
	if g.claimed[key] {
		return false, nil
	}
	g.claimed[key] = true
	return true, nil
}

type fakePublisher struct {
	mu   sync.Mutex
	jobs []conversation.MessageRequest
}

func (p *fakePublisher) EnqueueMessage(ctx context.Context, jobID string, req conversation.MessageRequest) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.jobs = append(p.jobs, req)
	return nil
}

func (p *fakePublisher) snapshot() []conversation.MessageRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]conversation.MessageRequest(nil), p.jobs...)
}

func chatBody(t *testing.T, id, text string) *bytes.Buffer {
	t.Helper()
	payload := whatsapp.WebhookPayload{
		Event: "messages.upsert",
		Data: whatsapp.Message{
			Key:      whatsapp.MessageKey{RemoteJid: "15550001111@s.whatsapp.net", ID: id},
			PushName: "Maria",
			Message:  whatsapp.MessageContent{Conversation: text},
		},
	}
	buf := &bytes.Buffer{}
	if err := json.NewEncoder(buf).Encode(payload); err != nil {
		t.Fatalf("encode payload: %v", err)
	}
	return buf
}

func newChatHandler(t *testing.T, quiet time.Duration) (*ChatWebhookHandler, *fakeGuard, *fakePublisher) {
	t.Helper()
	guard := &fakeGuard{}
	pub := &fakePublisher{}
	h := NewChatWebhookHandler(ChatWebhookConfig{
		Adapter:       whatsapp.NewAdapter("tenant-1", nil),
		Guard:         guard,
		Publisher:     pub,
		DebounceQuiet: quiet,
	})
	return h, guard, pub
}

func postChat(h *ChatWebhookHandler, body *bytes.Buffer) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/webhooks/whatsapp", body)
	rec := httptest.NewRecorder()
	h.Handle(rec, req)
	return rec
}

func TestChatWebhookCoalescesFragments(t *testing.T) {
	h, _, pub := newChatHandler(t, 40*time.Millisecond)

	for i, text := range []string{"a", "b", "c"} {
		rec := postChat(h, chatBody(t, "msg-"+string(rune('0'+i)), text))
		if rec.Code != http.StatusOK {
			t.Fatalf("status: got %d", rec.Code)
		}
	}

	deadline := time.Now().Add(2 * time.Second)
	for len(pub.snapshot()) == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}

	jobs := pub.snapshot()
	if len(jobs) != 1 {
		t.Fatalf("expected one coalesced job, got %d", len(jobs))
	}
	if jobs[0].Text != "a\nb\nc" {
		t.Errorf("combined text: got %q", jobs[0].Text)
	}
	if jobs[0].ContactKey != "+15550001111" || jobs[0].DisplayName != "Maria" {
		t.Errorf("job: %+v", jobs[0])
	}
}

// The display-name buffer must not accumulate one entry per contact forever:
// flushing a contact consumes their entry.
func TestChatWebhookNameBufferDrainedOnFlush(t *testing.T) {
	h, _, pub := newChatHandler(t, 30*time.Millisecond)

	rec := postChat(h, chatBody(t, "msg-1", "hola"))
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d", rec.Code)
	}

	h.mu.Lock()
	buffered := len(h.names)
	h.mu.Unlock()
	if buffered != 1 {
		t.Fatalf("expected the pending contact's name buffered, got %d entries", buffered)
	}

	deadline := time.Now().Add(2 * time.Second)
	for len(pub.snapshot()) == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if jobs := pub.snapshot(); len(jobs) != 1 || jobs[0].DisplayName != "Maria" {
		t.Fatalf("jobs: %+v", jobs)
	}

	h.mu.Lock()
	remaining := len(h.names)
	h.mu.Unlock()
	if remaining != 0 {
		t.Fatalf("name buffer must be empty after flush, got %d entries", remaining)
	}
}

func TestChatWebhookDuplicateAcked(t *testing.T) {
	h, _, pub := newChatHandler(t, 20*time.Millisecond)

	first := postChat(h, chatBody(t, "msg-dup", "hola"))
	second := postChat(h, chatBody(t, "msg-dup", "hola"))
	if first.Code != http.StatusOK || second.Code != http.StatusOK {
		t.Fatalf("both deliveries must ack 200: %d %d", first.Code, second.Code)
	}
	var resp map[string]string
	if err := json.Unmarshal(second.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode ack: %v", err)
	}
	if resp["status"] != "duplicate" {
		t.Errorf("second delivery status: got %q", resp["status"])
	}

	time.Sleep(100 * time.Millisecond)
	if jobs := pub.snapshot(); len(jobs) != 1 {
		t.Fatalf("duplicate delivery produced extra jobs: %d", len(jobs))
	}
}

func TestChatWebhookIgnoredPayloadsAck(t *testing.T) {
	h, _, pub := newChatHandler(t, 20*time.Millisecond)

	fromMe := whatsapp.WebhookPayload{
		Event: "messages.upsert",
		Data: whatsapp.Message{
			Key:     whatsapp.MessageKey{RemoteJid: "15550001111@s.whatsapp.net", FromMe: true, ID: "m"},
			Message: whatsapp.MessageContent{Conversation: "our own send"},
		},
	}
	buf := &bytes.Buffer{}
	json.NewEncoder(buf).Encode(fromMe)
	if rec := postChat(h, buf); rec.Code != http.StatusOK {
		t.Errorf("self-originated must ack 200, got %d", rec.Code)
	}

	if rec := postChat(h, bytes.NewBufferString("not json")); rec.Code != http.StatusOK {
		t.Errorf("undecodable body must ack 200, got %d", rec.Code)
	}

	time.Sleep(60 * time.Millisecond)
	if jobs := pub.snapshot(); len(jobs) != 0 {
		t.Fatalf("ignored payloads produced jobs: %d", len(jobs))
	}
}

func TestChatWebhookGuardFailureIs5xx(t *testing.T) {
	guard := &fakeGuard{err: context.DeadlineExceeded}
	pub := &fakePublisher{}
	h := NewChatWebhookHandler(ChatWebhookConfig{
		Adapter:       whatsapp.NewAdapter("tenant-1", nil),
		Guard:         guard,
		Publisher:     pub,
		DebounceQuiet: 20 * time.Millisecond,
	})

	rec := postChat(h, chatBody(t, "msg-1", "hola"))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("storage failure must 5xx, got %d", rec.Code)
	}
}
