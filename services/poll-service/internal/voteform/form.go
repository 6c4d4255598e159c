// Package voteform decodes the availability grid a participant submits as a
// urlencoded form.
//
// Keys:
//
//	eventId                 required
//	participantName         display name of the participant
//	date-label-<dateId>     label of a date row
//	time-label-<timeId>     label of a time column
//	<dateId>__<timeId>=on   a checked cell
package voteform

import (
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/chosei-dev/chosei/services/poll-service/internal/availability"
	"github.com/gorilla/schema"
)

const (
	dateLabelPrefix = "date-label-"
	timeLabelPrefix = "time-label-"
	cellSeparator   = "__"
	checked         = "on"
)

var ErrMissingEventID = errors.New("voteform: Event ID is required")

// Entry is one key/value pair in submission order.
type Entry struct {
	Key   string
	Value string
}

// Cell is a checked <dateId>__<timeId> key, resolved or not against the labels.
type Cell struct {
	DateID string
	TimeID string
}

type Submission struct {
	EventID         string
	ParticipantName string
	Matrix          availability.Matrix
	// Checked lists every cell submitted as "on", first occurrence order,
	// including cells whose ids carry no label key.
	Checked []Cell
}

type header struct {
	EventID         string `schema:"eventId"`
	ParticipantName string `schema:"participantName"`
}

var decoder = func() *schema.Decoder {
	d := schema.NewDecoder()
	d.IgnoreUnknownKeys(true)
	return d
}()

// orderedLabels keeps ids in first-seen order; a repeated id relabels in place.
type orderedLabels struct {
	ids    []string
	labels []string
	pos    map[string]int
}

func (o *orderedLabels) set(id, label string) {
	if o.pos == nil {
		o.pos = map[string]int{}
	}
	if i, ok := o.pos[id]; ok {
		o.labels[i] = label
		return
	}
	o.pos[id] = len(o.ids)
	o.ids = append(o.ids, id)
	o.labels = append(o.labels, label)
}

// Parse builds a Submission from ordered form entries. A missing or blank
// eventId fails the whole parse before anything else is read. Cell keys
// referring to unknown ids are ignored.
func Parse(entries []Entry) (Submission, error) {
	fixed := url.Values{}
	for _, e := range entries {
		if e.Key == "eventId" || e.Key == "participantName" {
			fixed.Add(e.Key, e.Value)
		}
	}
	var h header
	if err := decoder.Decode(&h, fixed); err != nil {
		return Submission{}, fmt.Errorf("voteform: decode header: %w", err)
	}
	h.EventID = strings.TrimSpace(h.EventID)
	if h.EventID == "" {
		return Submission{}, ErrMissingEventID
	}

	var dates, times orderedLabels
	var checkedCells []Cell
	selected := map[string]bool{}
	for _, e := range entries {
		switch {
		case strings.HasPrefix(e.Key, dateLabelPrefix):
			dates.set(strings.TrimPrefix(e.Key, dateLabelPrefix), e.Value)
		case strings.HasPrefix(e.Key, timeLabelPrefix):
			times.set(strings.TrimPrefix(e.Key, timeLabelPrefix), e.Value)
		case strings.Contains(e.Key, cellSeparator):
			on := e.Value == checked
			if on && !selected[e.Key] {
				if d, t, ok := strings.Cut(e.Key, cellSeparator); ok && d != "" && t != "" {
					checkedCells = append(checkedCells, Cell{DateID: d, TimeID: t})
				}
			}
			selected[e.Key] = selected[e.Key] || on
		}
	}

	m := availability.NewMatrix(availability.Grid{
		DateIDs:    dates.ids,
		DateLabels: dates.labels,
		TimeIDs:    times.ids,
		TimeLabels: times.labels,
	})
	for i, d := range m.DateIDs {
		for j, t := range m.TimeIDs {
			m.Available[i][j] = selected[CellKey(d, t)]
		}
	}

	return Submission{
		EventID:         h.EventID,
		ParticipantName: strings.TrimSpace(h.ParticipantName),
		Matrix:          m,
		Checked:         checkedCells,
	}, nil
}

func CellKey(dateID, timeID string) string {
	return dateID + cellSeparator + timeID
}

// ReadEntries decodes an application/x-www-form-urlencoded body, keeping the
// order of the pairs. url.ParseQuery would lose it.
func ReadEntries(r io.Reader) ([]Entry, error) {
	body, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	var entries []Entry
	for _, pair := range strings.Split(string(body), "&") {
		if pair == "" {
			continue
		}
		rawKey, rawValue, _ := strings.Cut(pair, "=")
		key, err := url.QueryUnescape(rawKey)
		if err != nil {
			return nil, fmt.Errorf("voteform: bad key %q: %w", rawKey, err)
		}
		value, err := url.QueryUnescape(rawValue)
		if err != nil {
			return nil, fmt.Errorf("voteform: bad value for %q: %w", key, err)
		}
		entries = append(entries, Entry{Key: key, Value: value})
	}
	return entries, nil
}
