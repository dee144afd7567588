package geofence

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"safeguard-backend/internal/geo"
	"safeguard-backend/internal/model"
)

// Schedule is a parsed daily window. Days follow time.Weekday numbering
// (0 = Sunday). An end before the start wraps past midnight.
type Schedule struct {
	startMinute int
	endMinute   int
	days        map[time.Weekday]bool
}

// ParseSchedule validates and parses a stored schedule spec.
func ParseSchedule(spec model.ScheduleSpec) (*Schedule, error) {
	start, err := parseClock(spec.StartTime)
	if err != nil {
		return nil, geo.Invalidf("schedule start: %v", err)
	}
	end, err := parseClock(spec.EndTime)
	if err != nil {
		return nil, geo.Invalidf("schedule end: %v", err)
	}

	days := make(map[time.Weekday]bool, len(spec.Days))
	for _, d := range spec.Days {
		if d < 0 || d > 6 {
			return nil, geo.Invalidf("schedule day %d out of range [0, 6]", d)
		}
		days[time.Weekday(d)] = true
	}

	return &Schedule{startMinute: start, endMinute: end, days: days}, nil
}

// AppliesAt reports whether the schedule covers the given instant.
func (s *Schedule) AppliesAt(t time.Time) bool {
	if len(s.days) > 0 && !s.days[t.Weekday()] {
		return false
	}

	m := t.Hour()*60 + t.Minute()
	if s.startMinute <= s.endMinute {
		return m >= s.startMinute && m <= s.endMinute
	}
	// Overnight window, e.g. 22:00-06:00.
	return m >= s.startMinute || m <= s.endMinute
}

// parseClock parses an HH:mm string into minutes since midnight.
func parseClock(v string) (int, error) {
	parts := strings.Split(v, ":")
	if len(parts) != 2 {
		return 0, fmt.Errorf("%q is not HH:mm", v)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("%q has an invalid hour", v)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("%q has an invalid minute", v)
	}
	return h*60 + m, nil
}
