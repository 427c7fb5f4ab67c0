package calls

import (
	"fmt"
	"strings"
	"time"
)

const naiveLayout = "2006-01-02T15:04:05"

// ToUTC converts a naive local date-time plus an IANA zone into the true UTC
// instant. The naive string is first parsed as if it were UTC to obtain a
// reference instant; rendering that same instant in the target zone and
// re-parsing the rendering yields the zone's offset at that specific moment,
// which is then added back. Computing the offset per instant rather than as a
// fixed constant is what keeps daylight-saving transitions correct.
//
// An empty timezone means the string is already UTC (documented fallback, not
// an error).
func ToUTC(local string, ianaTimezone string) (time.Time, error) {
	raw := strings.TrimSpace(local)
	if raw == "" {
		return time.Time{}, fmt.Errorf("calls: empty local time")
	}

	// Values that already carry zone information are honored as-is.
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UTC(), nil
	}

	ref, err := parseNaive(raw)
	if err != nil {
		return time.Time{}, err
	}
	if ianaTimezone == "" {
		return ref, nil
	}

	loc, err := time.LoadLocation(ianaTimezone)
	if err != nil {
		return time.Time{}, fmt.Errorf("calls: unknown timezone %q: %w", ianaTimezone, err)
	}

	rendered := ref.In(loc).Format(naiveLayout)
	inZone, err := time.Parse(naiveLayout, rendered)
	if err != nil {
		return time.Time{}, fmt.Errorf("calls: re-parse zoned rendering: %w", err)
	}
	offset := ref.Sub(inZone)
	return ref.Add(offset), nil
}

func parseNaive(raw string) (time.Time, error) {
	for _, layout := range []string{naiveLayout, "2006-01-02T15:04", "2006-01-02 15:04:05", "2006-01-02 15:04"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("calls: cannot parse local time %q", raw)
}
