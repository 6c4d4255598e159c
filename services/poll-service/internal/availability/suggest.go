package availability

import "time"

// Cell is one recognized (date, time) slot of an event, anchored in time.
type Cell struct {
	DateID string
	TimeID string
	Start  time.Time
	End    time.Time
}

// Cells materializes every slot of g whose date and time labels both parse.
func (p Pipeline) Cells(g Grid) []Cell {
	if g.validate() != nil {
		return nil
	}
	parse := p.ParseDate
	if parse == nil {
		parse = ParseDateLabel
	}
	ref := p.Ref()
	ranges := p.ranges(g.TimeLabels)

	var cells []Cell
	for i, label := range g.DateLabels {
		pd := parse(label, ref)
		if !pd.Recognized {
			continue
		}
		for j, r := range ranges {
			if !r.Recognized {
				continue
			}
			iv := Materialize(pd.Date, r)
			cells = append(cells, Cell{DateID: g.DateIDs[i], TimeID: g.TimeIDs[j], Start: iv.Start, End: iv.End})
		}
	}
	return cells
}

// Suggest returns the cells of g lying entirely inside one of patterns. These
// are the slots a returning participant can be pre-filled with.
func (p Pipeline) Suggest(g Grid, patterns []Pattern) []Cell {
	var out []Cell
	for _, c := range p.Cells(g) {
		if coveredBy(c.Start, c.End, patterns) {
			out = append(out, c)
		}
	}
	return out
}

func coveredBy(start, end time.Time, patterns []Pattern) bool {
	for _, pt := range patterns {
		// Half-open: [start,end) ⊆ [pt.Start,pt.End).
		if !start.Before(pt.Start) && !end.After(pt.End) {
			return true
		}
	}
	return false
}
