package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

const (
	DateLayout  = "2006-01-02"
	ClockLayout = "15:04"
	minutesDay  = 24 * 60
)

// ParseDate validates a YYYY-MM-DD calendar date.
func ParseDate(s string) (time.Time, error) {
	d, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: expected YYYY-MM-DD", s)
	}
	return d, nil
}

// ParseClock converts HH:MM (or HH:MM:SS) to minutes since midnight.
// Every field must be exactly two ASCII digits.
func ParseClock(s string) (int, error) {
	in := s
	if len(s) == 8 {
		if s[5] != ':' || !isDigits(s[6:]) {
			return 0, fmt.Errorf("invalid time %q: expected HH:MM", in)
		}
		s = s[:5]
	}
	if len(s) != 5 || s[2] != ':' || !isDigits(s[:2]) || !isDigits(s[3:]) {
		return 0, fmt.Errorf("invalid time %q: expected HH:MM", in)
	}
	h := int(s[0]-'0')*10 + int(s[1]-'0')
	m := int(s[3]-'0')*10 + int(s[4]-'0')
	if h > 23 || m > 59 {
		return 0, fmt.Errorf("invalid time %q: out of range", in)
	}
	return h*60 + m, nil
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// FormatClock renders minutes since midnight as HH:MM.
func FormatClock(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

// AddMinutes shifts an HH:MM clock, failing when the result leaves the day.
func AddMinutes(clock string, minutes int) (string, error) {
	start, err := ParseClock(clock)
	if err != nil {
		return "", err
	}
	end := start + minutes
	if end > minutesDay {
		return "", fmt.Errorf("time %s + %d minutes crosses midnight", clock, minutes)
	}
	if end == minutesDay {
		return "24:00", nil
	}
	return FormatClock(end), nil
}

// TimeRange is a half-open [Start, End) interval within one day.
type TimeRange struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// Minutes returns the range bounds as minutes since midnight.
func (r TimeRange) Minutes() (int, int, error) {
	start, err := ParseClock(r.Start)
	if err != nil {
		return 0, 0, err
	}
	end, err := ParseEndClock(r.End)
	if err != nil {
		return 0, 0, err
	}
	if start >= end {
		return 0, 0, fmt.Errorf("range %s-%s: start must be before end", r.Start, r.End)
	}
	return start, end, nil
}

// ParseEndClock is ParseClock that also accepts 24:00 as an end bound.
func ParseEndClock(s string) (int, error) {
	if s == "24:00" {
		return minutesDay, nil
	}
	return ParseClock(s)
}

// Overlaps is strict half-open intersection.
func Overlaps(aStart, aEnd, bStart, bEnd int) bool {
	return aStart < bEnd && bStart < aEnd
}

// WeeklySchedule maps a lowercase English weekday ("monday") to its ranges.
type WeeklySchedule map[string][]TimeRange

// For returns the ranges that apply on the given date.
func (w WeeklySchedule) For(date time.Time) []TimeRange {
	if w == nil {
		return nil
	}
	return w[weekdayKey(date.Weekday())]
}

// Validate checks every range of the schedule.
func (w WeeklySchedule) Validate() error {
	for day, ranges := range w {
		if !validWeekday(day) {
			return fmt.Errorf("unknown weekday %q", day)
		}
		for _, r := range ranges {
			if _, _, err := r.Minutes(); err != nil {
				return fmt.Errorf("%s: %w", day, err)
			}
		}
	}
	return nil
}

func (w WeeklySchedule) Value() (driver.Value, error) {
	if w == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(w)
}

func (w *WeeklySchedule) Scan(src interface{}) error {
	var data []byte
	switch v := src.(type) {
	case nil:
		*w = WeeklySchedule{}
		return nil
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into WeeklySchedule", src)
	}
	out := WeeklySchedule{}
	if err := json.Unmarshal(data, &out); err != nil {
		return fmt.Errorf("decode weekly schedule: %w", err)
	}
	*w = out
	return nil
}

func weekdayKey(d time.Weekday) string {
	switch d {
	case time.Monday:
		return "monday"
	case time.Tuesday:
		return "tuesday"
	case time.Wednesday:
		return "wednesday"
	case time.Thursday:
		return "thursday"
	case time.Friday:
		return "friday"
	case time.Saturday:
		return "saturday"
	default:
		return "sunday"
	}
}

func validWeekday(day string) bool {
	switch day {
	case "monday", "tuesday", "wednesday", "thursday", "friday", "saturday", "sunday":
		return true
	}
	return false
}
