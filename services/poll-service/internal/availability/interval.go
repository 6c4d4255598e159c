package availability

import "sort"

const (
	DefaultIntervalMinutes = 60

	// Gaps longer than this between consecutive instants are not treated as a cadence.
	maxCadenceMinutes = 8 * 60
)

// TimeRange is a resolved time column. Recognized is false for labels that
// could not be parsed; their Start and End are meaningless.
type TimeRange struct {
	Start      ClockTime
	End        ClockTime
	Recognized bool
}

// EstimateInterval infers the slot length from the bare instants in entries:
// the most frequent difference between consecutive instants, in label order,
// ignoring differences outside (0, 480]. Ties go to the shorter interval.
// With fewer than two usable differences it returns defaultMinutes.
func EstimateInterval(entries []ParsedTimeRange, defaultMinutes int) int {
	var (
		prev    ClockTime
		hasPrev bool
		counts  = map[int]int{}
		valid   int
	)
	for _, e := range entries {
		if !e.Recognized || e.HasEnd {
			continue
		}
		if hasPrev {
			if d := int(e.Start - prev); d > 0 && d <= maxCadenceMinutes {
				counts[d]++
				valid++
			}
		}
		prev, hasPrev = e.Start, true
	}
	if valid < 2 {
		return defaultMinutes
	}

	diffs := make([]int, 0, len(counts))
	for d := range counts {
		diffs = append(diffs, d)
	}
	sort.Ints(diffs)
	best := diffs[0]
	for _, d := range diffs[1:] {
		if counts[d] > counts[best] {
			best = d
		}
	}
	return best
}

// CalculateEndTime adds intervalMinutes to start without crossing midnight:
// anything past the end of the day is clamped to 23:59.
func CalculateEndTime(start ClockTime, intervalMinutes int) ClockTime {
	end := int(start) + intervalMinutes
	if end > int(LastMinute) {
		return LastMinute
	}
	return ClockTime(end)
}

// AddEndTimes returns a copy of entries in which every recognized bare instant
// carries an end time. The interval is estimated once for the whole sequence.
func AddEndTimes(entries []ParsedTimeRange, defaultMinutes int) []ParsedTimeRange {
	out := make([]ParsedTimeRange, len(entries))
	copy(out, entries)
	if len(out) == 0 {
		return out
	}

	interval := EstimateInterval(entries, defaultMinutes)
	for i := range out {
		if !out[i].Recognized || out[i].HasEnd {
			continue
		}
		out[i].End = CalculateEndTime(out[i].Start, interval)
		out[i].HasEnd = true
	}
	return out
}

// ResolveTimeRanges parses labels and fills missing ends. The result is
// parallel to labels so column indexes stay aligned with the matrix.
func ResolveTimeRanges(labels []string, defaultMinutes int) []TimeRange {
	parsed := make([]ParsedTimeRange, len(labels))
	for i, l := range labels {
		parsed[i] = ParseTimeLabel(l)
	}
	filled := AddEndTimes(parsed, defaultMinutes)

	ranges := make([]TimeRange, len(filled))
	for i, p := range filled {
		if p.Recognized {
			ranges[i] = TimeRange{Start: p.Start, End: p.End, Recognized: true}
		}
	}
	return ranges
}
