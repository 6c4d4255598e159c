package availability

import "time"

// TimeResolver turns time labels into ranges parallel to the labels.
type TimeResolver func(labels []string, defaultMinutes int) []TimeRange

// Pipeline runs matrix → ranges → per-day merge → patterns with its
// collaborators injected. The zero value uses the package parsers, UTC and
// the wall clock.
type Pipeline struct {
	DefaultIntervalMinutes int
	Location               *time.Location
	Now                    func() time.Time
	ParseDate              DateParser
	ResolveTimes           TimeResolver
	OnReject               func(Rejection)
}

// Ref is the reference instant for year defaulting, in the pipeline location.
func (p Pipeline) Ref() time.Time {
	now := time.Now
	if p.Now != nil {
		now = p.Now
	}
	loc := p.Location
	if loc == nil {
		loc = time.UTC
	}
	return now().In(loc)
}

func (p Pipeline) ranges(labels []string) []TimeRange {
	resolve := p.ResolveTimes
	if resolve == nil {
		resolve = ResolveTimeRanges
	}
	def := p.DefaultIntervalMinutes
	if def <= 0 {
		def = DefaultIntervalMinutes
	}
	return resolve(labels, def)
}

// Aggregate resolves the time columns of m and merges its available cells per day.
func (p Pipeline) Aggregate(m Matrix) ([]DateAvailability, error) {
	return Aggregate(m, p.ranges(m.TimeLabels), AggregateOptions{
		Ref:       p.Ref(),
		ParseDate: p.ParseDate,
		OnReject:  p.OnReject,
	})
}

// Patterns runs the whole pipeline. An empty result means nothing usable was selected.
func (p Pipeline) Patterns(m Matrix, ownerID *string) ([]Pattern, error) {
	days, err := p.Aggregate(m)
	if err != nil {
		return nil, err
	}
	return FormatPatterns(days, ownerID), nil
}
