package whatsapp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestClientSendText(t *testing.T) {
	var got sendTextRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/message/sendText/inst-1" {
			t.Errorf("path: got %s", r.URL.Path)
		}
		if r.Header.Get("apikey") != "secret" {
			t.Errorf("apikey header: got %q", r.Header.Get("apikey"))
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		json.NewEncoder(w).Encode(sendTextResponse{Key: MessageKey{ID: "out-77", FromMe: true}})
	}))
	defer srv.Close()

	client := NewClient(ClientConfig{BaseURL: srv.URL, APIKey: "secret", InstanceID: "inst-1"})

	id, err := client.SendText(context.Background(), "+15550001111", "See you Friday at 5pm!")
	if err != nil {
		t.Fatalf("SendText: %v", err)
	}
	if id != "out-77" {
		t.Errorf("provider message id: got %q", id)
	}
	if got.Number != "15550001111" {
		t.Errorf("destination: got %q", got.Number)
	}
}

func TestClientSendTextGatewayError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "instance disconnected", http.StatusBadGateway)
	}))
	defer srv.Close()

	client := NewClient(ClientConfig{BaseURL: srv.URL, InstanceID: "inst-1"})
	if _, err := client.SendText(context.Background(), "+15550001111", "hi"); err == nil {
		t.Fatal("expected error on non-2xx status")
	}
}

func TestClientListMessages(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/findMessages/inst-1" {
			t.Errorf("path: got %s", r.URL.Path)
		}
		var resp ListMessagesResponse
		resp.Messages.Records = []Message{
			textMessage("15550001111@s.whatsapp.net", "m-2", "still there?"),
			textMessage("15550001111@s.whatsapp.net", "m-1", "hola"),
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	client := NewClient(ClientConfig{BaseURL: srv.URL, InstanceID: "inst-1"})
	msgs, err := client.ListMessages(context.Background(), "+15550001111", 10)
	if err != nil {
		t.Fatalf("ListMessages: %v", err)
	}
	if len(msgs) != 2 || msgs[0].Key.ID != "m-2" {
		t.Errorf("messages: %+v", msgs)
	}
}
