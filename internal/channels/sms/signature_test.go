package sms

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"testing"
)

func sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func TestVerifySignature(t *testing.T) {
	body := []byte(`{"data":{"event_type":"message.received"}}`)

	tests := []struct {
		name      string
		secret    string
		signature string
		want      bool
	}{
		{"valid signature", "s3cret", sign("s3cret", body), true},
		{"wrong signature", "s3cret", "deadbeef", false},
		{"missing signature", "s3cret", "", false},
		{"signed with other secret", "s3cret", sign("other", body), false},
		{"no secret configured accepts anything", "", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := VerifySignature(tt.secret, body, tt.signature); got != tt.want {
				t.Errorf("VerifySignature = %v, want %v", got, tt.want)
			}
		})
	}
}
