package calls

import (
	"testing"
	"time"
)

func bookingTranscript(toolName, resultJSON, argsJSON string) []TranscriptEntry {
	return []TranscriptEntry{
		{Role: "agent", Content: "When works for you?"},
		{Role: "user", Content: "Friday at 5"},
		{Role: "tool_call_invocation", Name: toolName, ToolCallID: "tc-1", Arguments: argsJSON},
		{Role: "tool_call_result", ToolCallID: "tc-1", Content: resultJSON},
		{Role: "agent", Content: "You're all set."},
	}
}

func TestExtractStructuredBooking(t *testing.T) {
	transcript := bookingTranscript(
		"book_appointment",
		`{"status":"success","appointment_id":"apt-1"}`,
		`{"time":"2026-01-30T17:00:00","timezone":"America/Detroit","name":"Alex Rivera","email":"alex@example.com","duration_minutes":45}`,
	)

	cand, ok := ExtractBooking(transcript, nil)
	if !ok {
		t.Fatal("expected a booking candidate")
	}
	if cand.WhenLocal != "2026-01-30T17:00:00" {
		t.Errorf("when: got %s", cand.WhenLocal)
	}
	if cand.Timezone != "America/Detroit" {
		t.Errorf("timezone: got %s", cand.Timezone)
	}
	if cand.AttendeeName != "Alex Rivera" || cand.AttendeeEmail != "alex@example.com" {
		t.Errorf("attendee: got %s / %s", cand.AttendeeName, cand.AttendeeEmail)
	}
	if cand.DurationMinutes != 45 {
		t.Errorf("duration: got %d", cand.DurationMinutes)
	}
}

func TestExtractStructuredRequiresSuccess(t *testing.T) {
	transcript := bookingTranscript(
		"schedule_appointment",
		`{"status":"error","message":"slot taken"}`,
		`{"time":"2026-01-30T17:00:00"}`,
	)
	if _, ok := ExtractBooking(transcript, nil); ok {
		t.Fatal("failed tool result must not produce a candidate")
	}
}

func TestExtractStructuredIgnoresUnrelatedTools(t *testing.T) {
	transcript := bookingTranscript(
		"lookup_pricing",
		`{"status":"success"}`,
		`{"time":"2026-01-30T17:00:00"}`,
	)
	if _, ok := ExtractBooking(transcript, nil); ok {
		t.Fatal("non-booking tool must not produce a candidate")
	}
}

func TestExtractStructuredMalformedPayloads(t *testing.T) {
	tests := []struct {
		name   string
		result string
		args   string
	}{
		{"garbage result", "not json", `{"time":"2026-01-30T17:00:00"}`},
		{"garbage args", `{"status":"success"}`, "not json"},
		{"missing time", `{"status":"success"}`, `{"name":"Alex"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			transcript := bookingTranscript("book_appointment", tt.result, tt.args)
			if _, ok := ExtractBooking(transcript, nil); ok {
				t.Fatal("malformed payload must not produce a candidate")
			}
		})
	}
}

func TestExtractNarrativeBooking(t *testing.T) {
	analysis := &Analysis{CustomData: map[string]any{
		"appointment_scheduled": true,
		"appointment_date":      "2026-03-10",
		"appointment_time":      "2:30 PM",
		"timezone":              "America/Detroit",
		"patient_name":          "Jordan Lee",
	}}

	cand, ok := ExtractBooking(nil, analysis)
	if !ok {
		t.Fatal("expected a narrative candidate")
	}
	if cand.WhenLocal != "2026-03-10T14:30:00" {
		t.Errorf("when: got %s", cand.WhenLocal)
	}
	if cand.AttendeeName != "Jordan Lee" {
		t.Errorf("attendee: got %s", cand.AttendeeName)
	}
}

func TestExtractNarrativeRelativeDates(t *testing.T) {
	today := time.Now().UTC().Format("2006-01-02")
	tomorrow := time.Now().UTC().AddDate(0, 0, 1).Format("2006-01-02")

	tests := []struct {
		date     string
		wantDay  string
	}{
		{"today", today},
		{"hoy", today},
		{"tomorrow", tomorrow},
		{"mañana", tomorrow},
		{"manana", tomorrow},
	}
	for _, tt := range tests {
		t.Run(tt.date, func(t *testing.T) {
			analysis := &Analysis{CustomData: map[string]any{
				"appointment_scheduled": "true",
				"appointment_date":      tt.date,
			}}
			cand, ok := ExtractBooking(nil, analysis)
			if !ok {
				t.Fatal("expected a candidate")
			}
			// No time captured: default hour is 9.
			if cand.WhenLocal != tt.wantDay+"T09:00:00" {
				t.Errorf("got %s, want %sT09:00:00", cand.WhenLocal, tt.wantDay)
			}
		})
	}
}

func TestExtractNarrativeFailsSoft(t *testing.T) {
	tests := []struct {
		name   string
		custom map[string]any
	}{
		{"no flag", map[string]any{"appointment_date": "2026-03-10"}},
		{"flag false", map[string]any{"appointment_scheduled": false, "appointment_date": "2026-03-10"}},
		{"missing date", map[string]any{"appointment_scheduled": true}},
		{"malformed date", map[string]any{"appointment_scheduled": true, "appointment_date": "proximamente"}},
		{"malformed time", map[string]any{"appointment_scheduled": true, "appointment_date": "2026-03-10", "appointment_time": "whenever"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, ok := ExtractBooking(nil, &Analysis{CustomData: tt.custom}); ok {
				t.Fatal("expected no candidate")
			}
		})
	}
}

func TestParseClockTime(t *testing.T) {
	tests := []struct {
		raw      string
		wantHour int
		wantMin  int
		ok       bool
	}{
		{"5", 5, 0, true},
		{"17", 17, 0, true},
		{"5:45", 5, 45, true},
		{"5 PM", 17, 0, true},
		{"12 pm", 12, 0, true},
		{"12 am", 0, 0, true},
		{"11:30 AM", 11, 30, true},
		{"25", 0, 0, false},
		{"13 pm", 0, 0, false},
		{"5:75", 0, 0, false},
		{"noonish", 0, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			h, m, ok := parseClockTime(tt.raw)
			if ok != tt.ok || h != tt.wantHour || m != tt.wantMin {
				t.Errorf("parseClockTime(%q) = %d:%02d %v, want %d:%02d %v", tt.raw, h, m, ok, tt.wantHour, tt.wantMin, tt.ok)
			}
		})
	}
}
