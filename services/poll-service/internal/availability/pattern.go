package availability

import "time"

// Pattern is one contiguous block of availability, ready to be stored.
// UserID is nil for anonymous submissions.
type Pattern struct {
	UserID *string
	Start  time.Time
	End    time.Time
}

// FormatPatterns flattens the merged ranges of every day into patterns owned
// by ownerID. Exact (start, end) repeats collapse onto the first occurrence;
// storage upserts on the same (user, start, end) key.
func FormatPatterns(days []DateAvailability, ownerID *string) []Pattern {
	type span struct{ start, end int64 }
	seen := map[span]bool{}

	var out []Pattern
	for _, d := range days {
		for _, iv := range d.Intervals() {
			k := span{iv.Start.UnixNano(), iv.End.UnixNano()}
			if seen[k] {
				continue
			}
			seen[k] = true
			out = append(out, Pattern{UserID: ownerID, Start: iv.Start, End: iv.End})
		}
	}
	return out
}
