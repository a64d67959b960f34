package timecalc

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// DateLayout is the calendar date format used by the fleet API.
const DateLayout = "2006-01-02"

// FormatDuration formats seconds as "1h 40m" or "45m", matching the
// dashboard's display of trip durations.
func FormatDuration(seconds int64) string {
	if seconds < 0 {
		seconds = 0
	}
	h := seconds / 3600
	m := (seconds % 3600) / 60
	if h > 0 {
		return fmt.Sprintf("%dh %dm", h, m)
	}
	return fmt.Sprintf("%dm", m)
}

// FormatDistance formats kilometres with one decimal; anything below 100m
// shows as "0 km".
func FormatDistance(km float64) string {
	if km < 0.1 {
		return "0 km"
	}
	return fmt.Sprintf("%.1f km", km)
}

// DayAfter returns the calendar date following date, both in DateLayout.
// The trips endpoint treats end_date as exclusive, so callers pass
// DayAfter(end) to receive the whole final day.
func DayAfter(date string) (string, error) {
	d, err := time.Parse(DateLayout, date)
	if err != nil {
		return "", fmt.Errorf("invalid date %q: %w", date, err)
	}
	return d.AddDate(0, 0, 1).Format(DateLayout), nil
}

// Window returns the inclusive date range [now-days, now] in loc.
func Window(now time.Time, days int, loc *time.Location) (string, string) {
	if loc == nil {
		loc = time.UTC
	}
	end := now.In(loc)
	start := end.AddDate(0, 0, -days)
	return start.Format(DateLayout), end.Format(DateLayout)
}

// LoadLocation resolves an IANA zone name, falling back to UTC for "" or an
// unknown name.
func LoadLocation(name string) *time.Location {
	if name == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC
	}
	return loc
}

// shortOffset matches a trailing hour-only UTC offset such as "+13" or "-05".
var shortOffset = regexp.MustCompile(`(T\d{2}:\d{2}(?::\d{2}(?:\.\d+)?)?)([+-]\d{2})$`)

// ParseTimestamp parses the timestamp formats the fleet backend emits:
// RFC 3339, "2024-01-07 23:59:00+13" (space separator, hour-only offset) and
// zone-less local times, which are read in loc.
func ParseTimestamp(ts string, loc *time.Location) (time.Time, error) {
	s := strings.TrimSpace(ts)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}
	s = strings.Replace(s, " ", "T", 1)
	s = shortOffset.ReplaceAllString(s, "${1}${2}:00")

	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}

	if loc == nil {
		loc = time.UTC
	}
	for _, layout := range []string{
		"2006-01-02T15:04:05.000000",
		"2006-01-02T15:04:05",
		"2006-01-02T15:04",
	} {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("cannot parse timestamp %q", ts)
}

// ClockTime renders ts as "15:04" in loc, or returns ts unchanged when it
// cannot be parsed.
func ClockTime(ts string, loc *time.Location) string {
	t, err := ParseTimestamp(ts, loc)
	if err != nil {
		return ts
	}
	if loc != nil {
		t = t.In(loc)
	}
	return t.Format("15:04")
}
