// README: Availability-slot matching against time windows and the current clock.
package discovery

import (
	"strings"
	"time"
)

// Named windows a player can filter by. Hours are local to the server clock;
// schedules are stored without timezones.
var windowHours = map[string][2]int{
	"morning":   {6, 12},
	"afternoon": {12, 17},
	"evening":   {17, 21},
	"night":     {21, 24},
}

// slotMatches reports whether any availability slot overlaps the named
// window on today's weekday. An unknown window name matches nothing; a
// candidate with no schedule matches only when they are available right now.
func slotMatches(slots []AvailabilitySlot, window string, now time.Time) bool {
	hours, ok := windowHours[strings.ToLower(window)]
	if !ok {
		return false
	}
	if len(slots) == 0 {
		return false
	}
	day := strings.ToLower(now.Weekday().String())
	for _, s := range slots {
		if strings.ToLower(s.Day) != day {
			continue
		}
		from, okFrom := parseHour(s.From)
		to, okTo := parseHour(s.To)
		if !okFrom || !okTo {
			continue
		}
		if from < hours[1] && to > hours[0] {
			return true
		}
	}
	return false
}

// availableNow reports whether the clock falls inside any of today's slots.
func availableNow(slots []AvailabilitySlot, now time.Time) bool {
	day := strings.ToLower(now.Weekday().String())
	hour := now.Hour()
	for _, s := range slots {
		if strings.ToLower(s.Day) != day {
			continue
		}
		from, okFrom := parseHour(s.From)
		to, okTo := parseHour(s.To)
		if !okFrom || !okTo {
			continue
		}
		if hour >= from && hour < to {
			return true
		}
	}
	return false
}

// parseHour accepts "18", "18:00", or "18:30" and returns the hour.
func parseHour(v string) (int, bool) {
	v = strings.TrimSpace(v)
	if i := strings.IndexByte(v, ':'); i >= 0 {
		v = v[:i]
	}
	if v == "" {
		return 0, false
	}
	h := 0
	for _, c := range v {
		if c < '0' || c > '9' {
			return 0, false
		}
		h = h*10 + int(c-'0')
	}
	if h < 0 || h > 24 {
		return 0, false
	}
	return h, true
}
