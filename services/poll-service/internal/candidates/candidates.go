// Package candidates generates the default date and time labels of a new event.
package candidates

import (
	"errors"
	"time"

	"github.com/chosei-dev/chosei/services/poll-service/internal/availability"
)

const maxDays = 92

var (
	ErrInvalidRange = errors.New("end is before start")
	ErrTooMany      = errors.New("date range is too long")
)

// DateLabels lists every day from start to end inclusive as "YYYY-MM-DD", so
// a range crossing New Year keeps its years.
func DateLabels(start, end time.Time) ([]string, error) {
	first := midnight(start)
	last := midnight(end)
	if last.Before(first) {
		return nil, ErrInvalidRange
	}

	var labels []string
	for d := first; !d.After(last); d = d.AddDate(0, 0, 1) {
		if len(labels) == maxDays {
			return nil, ErrTooMany
		}
		labels = append(labels, d.Format(time.DateOnly))
	}
	return labels, nil
}

// TimeLabels lists "HH:MM" instants from start up to and including end, every stepMinutes.
func TimeLabels(start, end availability.ClockTime, stepMinutes int) ([]string, error) {
	if end < start {
		return nil, ErrInvalidRange
	}
	if stepMinutes <= 0 {
		stepMinutes = availability.DefaultIntervalMinutes
	}

	var labels []string
	for t := start; t <= end; t += availability.ClockTime(stepMinutes) {
		labels = append(labels, t.String())
	}
	return labels, nil
}

func midnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
