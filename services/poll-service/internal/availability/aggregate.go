package availability

import (
	"fmt"
	"sort"
	"time"
)

type Interval struct {
	Start time.Time
	End   time.Time
}

// DateAvailability holds the merged ranges of one calendar day, sorted by
// start. A range whose End is not after its Start runs into the next day.
type DateAvailability struct {
	Date   time.Time
	Ranges []TimeRange
}

func (d DateAvailability) Intervals() []Interval {
	out := make([]Interval, len(d.Ranges))
	for i, r := range d.Ranges {
		out[i] = Materialize(d.Date, r)
	}
	return out
}

// Materialize anchors r to date. When the end time of day is not after the
// start, the end moves to the following day.
func Materialize(date time.Time, r TimeRange) Interval {
	start := r.Start.On(date)
	end := r.End.On(date)
	if !end.After(start) {
		end = r.End.On(date.AddDate(0, 0, 1))
	}
	return Interval{Start: start, End: end}
}

type RejectKind string

const (
	RejectDate RejectKind = "date"
	RejectTime RejectKind = "time"
)

// Rejection describes a label that was dropped from aggregation.
type Rejection struct {
	Kind  RejectKind
	ID    string
	Label string
}

type AggregateOptions struct {
	// Ref supplies the year and location for date labels.
	Ref time.Time
	// ParseDate defaults to ParseDateLabel.
	ParseDate DateParser
	// OnReject, when set, is called once per dropped date row or time column.
	OnReject func(Rejection)
}

type dateGroup struct {
	date   time.Time
	ranges []TimeRange
}

// Aggregate turns a matrix into per-day merged availability. ranges must be
// parallel to m.TimeIDs. Rows with an unrecognized date label are dropped whole,
// unrecognized time columns are ignored, and rows resolving to the same
// calendar day are pooled before merging. Days without any available cell
// are omitted; groups keep the order in which their day first appeared.
func Aggregate(m Matrix, ranges []TimeRange, opts AggregateOptions) ([]DateAvailability, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	if len(ranges) != len(m.TimeIDs) {
		return nil, fmt.Errorf("%w: %d time ranges for %d time columns", ErrMalformedMatrix, len(ranges), len(m.TimeIDs))
	}
	parse := opts.ParseDate
	if parse == nil {
		parse = ParseDateLabel
	}
	reject := opts.OnReject
	if reject == nil {
		reject = func(Rejection) {}
	}

	for j, r := range ranges {
		if !r.Recognized {
			reject(Rejection{Kind: RejectTime, ID: m.TimeIDs[j], Label: m.TimeLabels[j]})
		}
	}

	var groups []*dateGroup
	index := map[string]*dateGroup{}
	for i, label := range m.DateLabels {
		pd := parse(label, opts.Ref)
		if !pd.Recognized {
			reject(Rejection{Kind: RejectDate, ID: m.DateIDs[i], Label: label})
			continue
		}
		g, ok := index[pd.Key()]
		if !ok {
			g = &dateGroup{date: pd.Date}
			index[pd.Key()] = g
			groups = append(groups, g)
		}
		for j, r := range ranges {
			if r.Recognized && m.Available[i][j] {
				g.ranges = append(g.ranges, r)
			}
		}
	}

	out := make([]DateAvailability, 0, len(groups))
	for _, g := range groups {
		if len(g.ranges) == 0 {
			continue
		}
		out = append(out, DateAvailability{Date: g.date, Ranges: MergeRanges(g.ranges)})
	}
	return out, nil
}

// MergeRanges sorts by start and folds overlapping or touching ranges: a
// range starting exactly where the previous one ends is absorbed, a one
// minute gap is not. Overnight ranges extend past midnight for the
// comparison and cover at most 24 hours. The input is not modified.
func MergeRanges(in []TimeRange) []TimeRange {
	if len(in) == 0 {
		return nil
	}
	sorted := make([]TimeRange, len(in))
	copy(sorted, in)
	sort.SliceStable(sorted, func(a, b int) bool { return sorted[a].Start < sorted[b].Start })

	var out []TimeRange
	cur := sorted[0]
	curEnd := extendedEnd(cur)
	for _, r := range sorted[1:] {
		if int(r.Start) <= curEnd {
			curEnd = max(curEnd, extendedEnd(r))
			continue
		}
		out = append(out, closeRange(cur, curEnd))
		cur, curEnd = r, extendedEnd(r)
	}
	return append(out, closeRange(cur, curEnd))
}

// extendedEnd is the end in minutes from the start day's midnight.
func extendedEnd(r TimeRange) int {
	if r.End <= r.Start {
		return int(r.End) + minutesPerDay
	}
	return int(r.End)
}

func closeRange(r TimeRange, end int) TimeRange {
	end = min(end, int(r.Start)+minutesPerDay)
	return TimeRange{Start: r.Start, End: ClockTime(end % minutesPerDay), Recognized: true}
}
