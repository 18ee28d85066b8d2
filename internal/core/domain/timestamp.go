package domain

import "time"

// LocalTimestampLayout is used when a substitute timestamp has to be produced.
const LocalTimestampLayout = "2006-01-02T15:04:05.000000"

var timestampLayouts = buildTimestampLayouts()

func buildTimestampLayouts() []string {
	dates := []string{"2006-01-02"}
	times := []string{"15:04", "15:04:05", "15:04:05.999999999"}
	zones := []string{"", "Z07:00", "Z0700", "Z07"}

	layouts := make([]string, 0, 1+2*len(times)*len(zones))
	layouts = append(layouts, dates...)
	for _, sep := range []string{"T", " "} {
		for _, clock := range times {
			for _, zone := range zones {
				layouts = append(layouts, dates[0]+sep+clock+zone)
			}
		}
	}
	return layouts
}

// IsValidTimestamp reports whether ts is an ISO-8601 date or date-time.
// A nil value is never valid.
func IsValidTimestamp(ts *string) bool {
	if ts == nil {
		return false
	}
	_, ok := ParseTimestamp(*ts)
	return ok
}

// ParseTimestamp does not trim: surrounding whitespace makes the value invalid.
func ParseTimestamp(raw string) (time.Time, bool) {
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if parsed, err := time.Parse(layout, raw); err == nil {
			return parsed, true
		}
	}
	return time.Time{}, false
}
