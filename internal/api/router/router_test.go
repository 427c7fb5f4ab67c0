package router

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestRouterHealth(t *testing.T) {
	r := New(&Config{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("health status: got %d", rec.Code)
	}
}

func TestRouterUnconfiguredWebhookIs404(t *testing.T) {
	r := New(&Config{})

	req := httptest.NewRequest(http.MethodPost, "/webhooks/whatsapp", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound && rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("unexpected status %d for unconfigured webhook", rec.Code)
	}
}
