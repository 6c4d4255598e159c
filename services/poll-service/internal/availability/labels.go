package availability

import (
	"regexp"
	"strconv"
	"time"
)

var (
	dateLabelPattern = regexp.MustCompile(`(?:(\d{4})[-/年])?(\d{1,2})[-/月](\d{1,2})日?`)

	timeRangePattern   = regexp.MustCompile(`^(0?[0-9]|1[0-9]|2[0-3]):([0-5][0-9])\s*[-~]\s*(0?[0-9]|1[0-9]|2[0-3]):([0-5][0-9])$`)
	timeInstantPattern = regexp.MustCompile(`^(0?[0-9]|1[0-9]|2[0-3]):([0-5][0-9])$`)
)

// ParsedDate is a date label resolved to midnight of a calendar day. Date is
// the zero time when Recognized is false.
type ParsedDate struct {
	Recognized bool
	Date       time.Time
}

// Key identifies the calendar day, independent of which label produced it.
func (d ParsedDate) Key() string {
	return d.Date.Format(time.DateOnly)
}

// ParsedTimeRange is a parsed time label. HasEnd is false for bare instants
// such as "09:00" until AddEndTimes fills End.
type ParsedTimeRange struct {
	Recognized bool
	Start      ClockTime
	End        ClockTime
	HasEnd     bool
}

// DateParser resolves a date label against a reference date.
type DateParser func(label string, ref time.Time) ParsedDate

// ParseDateLabel recognizes YYYY-MM-DD, YYYY/MM/DD, YYYY年M月D日 and the same
// forms without a year, anywhere inside label. A missing year is taken from
// ref, and the date is built in ref's location. Out-of-range months and days
// are not rejected: they roll over the way time.Date normalizes them.
func ParseDateLabel(label string, ref time.Time) ParsedDate {
	m := dateLabelPattern.FindStringSubmatch(label)
	if m == nil {
		return ParsedDate{}
	}
	year := ref.Year()
	if m[1] != "" {
		year, _ = strconv.Atoi(m[1])
	}
	month, _ := strconv.Atoi(m[2])
	day, _ := strconv.Atoi(m[3])
	return ParsedDate{
		Recognized: true,
		Date:       time.Date(year, time.Month(month), day, 0, 0, 0, 0, ref.Location()),
	}
}

// ParseTimeLabel recognizes "H:MM-H:MM" / "H:MM~H:MM" ranges (spaces allowed
// around the separator) and bare "H:MM" instants. The range form wins.
func ParseTimeLabel(label string) ParsedTimeRange {
	if m := timeRangePattern.FindStringSubmatch(label); m != nil {
		return ParsedTimeRange{
			Recognized: true,
			Start:      clockFrom(m[1], m[2]),
			End:        clockFrom(m[3], m[4]),
			HasEnd:     true,
		}
	}
	if m := timeInstantPattern.FindStringSubmatch(label); m != nil {
		return ParsedTimeRange{Recognized: true, Start: clockFrom(m[1], m[2])}
	}
	return ParsedTimeRange{}
}

func clockFrom(hour, minute string) ClockTime {
	h, _ := strconv.Atoi(hour)
	m, _ := strconv.Atoi(minute)
	return NewClockTime(h, m)
}
