package calls

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// bookingToolPattern matches the voice agent's booking tool names
// (book_appointment, schedule_appointment, create_booking and variants).
var bookingToolPattern = regexp.MustCompile(`(?i)(book|schedul|create).{0,12}(appointment|booking|meeting)`)

var timePattern = regexp.MustCompile(`(?i)^\s*(\d{1,2})(?::(\d{2}))?\s*(am|pm)?\s*$`)

// ExtractBooking pulls a booking intent out of call output. Two independent
// strategies are tried in order, first success wins:
//
//  1. structured: a booking-tool invocation in the transcript whose paired
//     result (matched by tool_call_id) reports success;
//  2. narrative: an "appointment scheduled" flag plus a date in the analysis
//     custom data.
//
// Every malformed payload yields (nil, false) rather than an error: extraction
// is best effort and must never abort the surrounding event handler.
func ExtractBooking(transcript []TranscriptEntry, analysis *Analysis) (*BookingCandidate, bool) {
	if cand, ok := extractStructured(transcript); ok {
		return cand, true
	}
	if analysis != nil {
		if cand, ok := extractNarrative(analysis.CustomData); ok {
			return cand, true
		}
	}
	return nil, false
}

type toolResult struct {
	Status string `json:"status"`
}

type toolArgs struct {
	Time            string `json:"time"`
	Datetime        string `json:"datetime"`
	StartTime       string `json:"start_time"`
	Timezone        string `json:"timezone"`
	Name            string `json:"name"`
	Email           string `json:"email"`
	Notes           string `json:"notes"`
	DurationMinutes int    `json:"duration_minutes"`
}

func extractStructured(transcript []TranscriptEntry) (*BookingCandidate, bool) {
	results := make(map[string]string, 4)
	for _, entry := range transcript {
		if entry.Role == "tool_call_result" && entry.ToolCallID != "" {
			results[entry.ToolCallID] = entry.Content
		}
	}

	for _, entry := range transcript {
		if entry.Role != "tool_call_invocation" {
			continue
		}
		if !bookingToolPattern.MatchString(entry.Name) {
			continue
		}
		raw, ok := results[entry.ToolCallID]
		if !ok {
			continue
		}
		var res toolResult
		if err := json.Unmarshal([]byte(raw), &res); err != nil {
			continue
		}
		if !strings.EqualFold(res.Status, "success") {
			continue
		}

		var args toolArgs
		if err := json.Unmarshal([]byte(entry.Arguments), &args); err != nil {
			continue
		}
		when := firstNonEmpty(args.Time, args.Datetime, args.StartTime)
		if strings.TrimSpace(when) == "" {
			continue
		}
		return &BookingCandidate{
			WhenLocal:       strings.TrimSpace(when),
			Timezone:        strings.TrimSpace(args.Timezone),
			DurationMinutes: args.DurationMinutes,
			AttendeeName:    strings.TrimSpace(args.Name),
			AttendeeEmail:   strings.TrimSpace(args.Email),
			Notes:           strings.TrimSpace(args.Notes),
		}, true
	}
	return nil, false
}

func extractNarrative(custom map[string]any) (*BookingCandidate, bool) {
	if custom == nil {
		return nil, false
	}
	if !truthy(custom["appointment_scheduled"]) {
		return nil, false
	}
	rawDate, _ := custom["appointment_date"].(string)
	day, ok := parseRelativeDate(rawDate, time.Now().UTC())
	if !ok {
		return nil, false
	}

	hour, minute := 9, 0 // default morning slot when no time was captured
	if rawTime, _ := custom["appointment_time"].(string); strings.TrimSpace(rawTime) != "" {
		h, m, ok := parseClockTime(rawTime)
		if !ok {
			return nil, false
		}
		hour, minute = h, m
	}

	tz, _ := custom["timezone"].(string)
	name, _ := custom["patient_name"].(string)
	if name == "" {
		name, _ = custom["name"].(string)
	}
	notes, _ := custom["notes"].(string)

	return &BookingCandidate{
		WhenLocal:    fmt.Sprintf("%sT%02d:%02d:00", day.Format("2006-01-02"), hour, minute),
		Timezone:     strings.TrimSpace(tz),
		AttendeeName: strings.TrimSpace(name),
		Notes:        strings.TrimSpace(notes),
	}, true
}

// parseRelativeDate understands "today"/"tomorrow" in English and Spanish plus
// an explicit YYYY-MM-DD. Anything else yields no candidate; richer relative
// grammar ("next Tuesday", "the 15th") is deliberately unsupported.
func parseRelativeDate(raw string, now time.Time) (time.Time, bool) {
	s := strings.ToLower(strings.TrimSpace(raw))
	switch s {
	case "":
		return time.Time{}, false
	case "today", "hoy":
		return now, true
	case "tomorrow", "mañana", "manana":
		return now.AddDate(0, 0, 1), true
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, true
	}
	return time.Time{}, false
}

// parseClockTime accepts "H", "H:MM", and AM/PM-suffixed forms.
func parseClockTime(raw string) (hour, minute int, ok bool) {
	m := timePattern.FindStringSubmatch(raw)
	if m == nil {
		return 0, 0, false
	}
	hour, err := strconv.Atoi(m[1])
	if err != nil || hour > 23 {
		return 0, 0, false
	}
	if m[2] != "" {
		minute, err = strconv.Atoi(m[2])
		if err != nil || minute > 59 {
			return 0, 0, false
		}
	}
	switch strings.ToLower(m[3]) {
	case "pm":
		if hour > 12 {
			return 0, 0, false
		}
		if hour != 12 {
			hour += 12
		}
	case "am":
		if hour > 12 {
			return 0, 0, false
		}
		if hour == 12 {
			hour = 0
		}
	}
	return hour, minute, true
}

func truthy(v any) bool {
	switch val := v.(type) {
	case bool:
		return val
	case string:
		return strings.EqualFold(val, "true") || strings.EqualFold(val, "yes")
	default:
		return false
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
