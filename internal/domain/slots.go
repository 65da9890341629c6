package domain

import (
	"errors"
	"fmt"
	"time"
)

// SlotStepMinutes is the fixed stride between candidate slot starts.
const SlotStepMinutes = 30

const minutesPerDay = 24 * 60

// TimeSpan is a half-open [Start, End) interval in UTC.
type TimeSpan struct {
	Start time.Time
	End   time.Time
}

// Overlaps reports whether two half-open intervals intersect.
func (s TimeSpan) Overlaps(o TimeSpan) bool {
	return s.Start.Before(o.End) && o.Start.Before(s.End)
}

// GenerateSlots walks the window on the given calendar date in
// 30-minute steps and returns the "HH:MM" start labels whose putative
// appointment interval [t, t+duration) clears every busy span and the
// window's break. Busy spans are tested one by one; they do not need to
// be merged or ordered. The result is empty when the duration does not
// fit the window at all.
func GenerateSlots(window AvailabilityWindow, date time.Time, loc *time.Location, busy []TimeSpan, durationMinutes int) []string {
	slots := make([]string, 0, 16)
	if durationMinutes <= 0 {
		return slots
	}

	blocked := make([]TimeSpan, 0, len(busy)+1)
	blocked = append(blocked, busy...)
	if window.BreakStartMinute != nil && window.BreakEndMinute != nil && *window.BreakStartMinute < *window.BreakEndMinute {
		blocked = append(blocked, TimeSpan{
			Start: clockOnDate(date, *window.BreakStartMinute, loc).UTC(),
			End:   clockOnDate(date, *window.BreakEndMinute, loc).UTC(),
		})
	}

	duration := time.Duration(durationMinutes) * time.Minute

	for minute := window.StartMinute; minute+durationMinutes <= window.EndMinute; minute += SlotStepMinutes {
		start := clockOnDate(date, minute, loc)
		candidate := TimeSpan{Start: start.UTC(), End: start.Add(duration).UTC()}

		available := true
		for _, b := range blocked {
			if candidate.Overlaps(b) {
				available = false
				break
			}
		}
		if available {
			slots = append(slots, FormatClock(minute))
		}
	}

	return slots
}

// DayBounds returns the UTC span covering the calendar date in loc.
func DayBounds(date time.Time, loc *time.Location) TimeSpan {
	start := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, loc)
	end := time.Date(date.Year(), date.Month(), date.Day()+1, 0, 0, 0, 0, loc)
	return TimeSpan{Start: start.UTC(), End: end.UTC()}
}

// ISOWeekday maps time.Weekday to 1..7 with Monday = 1.
func ISOWeekday(wd time.Weekday) int16 {
	if wd == time.Sunday {
		return 7
	}
	return int16(wd)
}

// ParseClock parses a "HH:MM" wall-clock label into minutes from
// midnight. "24:00" is accepted so a window can end at midnight, the
// same upper bound ValidClockMinute admits.
func ParseClock(s string) (int, error) {
	if s == "24:00" {
		return minutesPerDay, nil
	}
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("invalid clock %q, want HH:MM", s)
	}
	return t.Hour()*60 + t.Minute(), nil
}

// FormatClock renders minutes from midnight as "HH:MM".
func FormatClock(minute int) string {
	return fmt.Sprintf("%02d:%02d", minute/60, minute%60)
}

// ValidClockMinute reports whether the value is a representable minute
// of day.
func ValidClockMinute(minute int) bool {
	return minute >= 0 && minute <= minutesPerDay
}

// ParseTimestamp accepts ISO-8601 timestamps with and without an
// explicit UTC offset. Offset-less stamps are interpreted in loc, so a
// client that copies a local "HH:MM" slot back verbatim lands on the
// provider's wall clock. The result is always UTC.
func ParseTimestamp(s string, loc *time.Location) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	if t, err := time.ParseInLocation("2006-01-02T15:04:05", s, loc); err == nil {
		return t.UTC(), nil
	}
	return time.Time{}, fmt.Errorf("invalid timestamp %q, want ISO-8601 like 2026-04-26T14:30:00Z", s)
}

// ComputeEndTime projects the appointment end from its start and the
// service duration.
func ComputeEndTime(start time.Time, durationMinutes int) (time.Time, error) {
	if durationMinutes <= 0 {
		return time.Time{}, errors.New("duration must be a positive number of minutes")
	}
	return start.Add(time.Duration(durationMinutes) * time.Minute), nil
}

func clockOnDate(date time.Time, minute int, loc *time.Location) time.Time {
	return time.Date(date.Year(), date.Month(), date.Day(), minute/60, minute%60, 0, 0, loc)
}
