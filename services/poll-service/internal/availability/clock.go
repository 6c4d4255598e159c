package availability

import (
	"fmt"
	"time"
)

const minutesPerDay = 24 * 60

// ClockTime is a time of day in minutes since midnight, 0 through 1439.
type ClockTime int

// LastMinute is 23:59, the ceiling for inferred end times.
const LastMinute ClockTime = minutesPerDay - 1

func NewClockTime(hour, minute int) ClockTime {
	return ClockTime(hour*60 + minute)
}

func (c ClockTime) Hour() int   { return int(c) / 60 }
func (c ClockTime) Minute() int { return int(c) % 60 }

func (c ClockTime) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour(), c.Minute())
}

// On anchors c to the calendar day of day, in day's location.
func (c ClockTime) On(day time.Time) time.Time {
	y, m, d := day.Date()
	return time.Date(y, m, d, c.Hour(), c.Minute(), 0, 0, day.Location())
}

// ParseClockTime accepts a single H:MM or HH:MM token.
func ParseClockTime(s string) (ClockTime, error) {
	p := ParseTimeLabel(s)
	if !p.Recognized || p.HasEnd {
		return 0, fmt.Errorf("invalid time of day %q", s)
	}
	return p.Start, nil
}
