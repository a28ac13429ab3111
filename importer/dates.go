package importer

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Vendor dates are wildly inconsistent: day-first, year-first, one to three
// parts, three separator styles. The only reliable anchor is that a year is
// the lone 4-digit part.

var (
	dateSepRegex = regexp.MustCompile(`[./-]`)
	offsetRegex  = regexp.MustCompile(`(Z|[+-]\d{2}:?\d{2})$`)
)

// NormalizeDate reduces a vendor date string to "2006-01-02". Returns ""
// (unset, not an error) when no single 4-digit year part exists or the
// resulting calendar date is invalid.
func NormalizeDate(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}

	parts := dateSepRegex.Split(s, -1)
	if len(parts) == 0 || len(parts) > 3 {
		return ""
	}

	yearIdx := -1
	for i, p := range parts {
		if len(p) == 4 {
			if yearIdx != -1 {
				return ""
			}
			yearIdx = i
		}
	}
	if yearIdx == -1 {
		return ""
	}

	year, err := strconv.Atoi(parts[yearIdx])
	if err != nil {
		return ""
	}

	rest := make([]string, 0, 2)
	for i, p := range parts {
		if i != yearIdx {
			rest = append(rest, p)
		}
	}

	month, day := 1, 1
	switch len(rest) {
	case 0:
	case 1:
		// "03.2021" or "2021-03": the leftover part is the month.
		if month, err = strconv.Atoi(rest[0]); err != nil {
			return ""
		}
	case 2:
		// Year-first feeds order month before day, day-first feeds the
		// reverse; either way the part adjacent to the year is the month.
		var monthStr, dayStr string
		if yearIdx == 0 {
			monthStr, dayStr = rest[0], rest[1]
		} else {
			dayStr, monthStr = rest[0], rest[1]
		}
		if month, err = strconv.Atoi(monthStr); err != nil {
			return ""
		}
		if day, err = strconv.Atoi(dayStr); err != nil {
			return ""
		}
	}

	if !validDate(year, month, day) {
		return ""
	}
	return fmt.Sprintf("%04d-%02d-%02d", year, month, day)
}

// validDate rejects dates that normalize away (e.g. Feb 31 rolls to March).
func validDate(year, month, day int) bool {
	if year < 1900 || year > 2200 || month < 1 || month > 12 || day < 1 || day > 31 {
		return false
	}
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	return t.Year() == year && int(t.Month()) == month && t.Day() == day
}

// CombineDateTime joins a vendor date and time part into one normalized
// wall-clock string ("2006-01-02 15:04"), time defaulting to midnight.
// Strings already carrying an explicit zone offset pass through verbatim so
// zone inference is bypassed downstream.
func CombineDateTime(datePart, timePart string) string {
	datePart = strings.TrimSpace(datePart)
	if datePart == "" {
		return ""
	}
	if HasExplicitOffset(datePart) {
		return datePart
	}

	date := NormalizeDate(datePart)
	if date == "" {
		return ""
	}

	clock := normalizeClock(timePart)
	return date + " " + clock
}

// HasExplicitOffset reports whether a vendor timestamp carries its own zone.
func HasExplicitOffset(s string) bool {
	// Bare dates like "2021-03-05" have no clock to offset.
	if !strings.ContainsAny(s, ": ") && !strings.Contains(s, "T") {
		return false
	}
	return offsetRegex.MatchString(strings.TrimSpace(s))
}

func normalizeClock(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "00:00"
	}

	for _, layout := range []string{"15:04", "15:04:05", "15.04", "3:04 PM"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("15:04")
		}
	}
	return "00:00"
}
