package services

import (
	"strings"
	"time"
)

// offsetLayouts match vendor timestamps that carry their own zone. Those are
// parsed directly; zone inference applies only to bare wall-clock strings.
var offsetLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05Z0700",
	"2006-01-02T15:04Z07:00",
	"2006-01-02 15:04:05 -07:00",
	"2006-01-02 15:04:05 -0700",
}

// wallClockLayouts match the normalized strings the parser produces, plus a
// few shapes vendors send directly.
var wallClockLayouts = []string{
	"2006-01-02 15:04",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// ToInstant converts a vendor timestamp to an absolute UTC instant. Bare
// wall-clock values are interpreted in loc (the configured import timezone):
// the zone's UTC offset at that wall-clock moment is subtracted, which is
// what ParseInLocation computes, DST included. Unparsable input yields nil.
func ToInstant(raw string, loc *time.Location) *time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}

	for _, layout := range offsetLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			utc := t.UTC()
			return &utc
		}
	}

	for _, layout := range wallClockLayouts {
		if t, err := time.ParseInLocation(layout, raw, loc); err == nil {
			utc := t.UTC()
			return &utc
		}
	}

	return nil
}
