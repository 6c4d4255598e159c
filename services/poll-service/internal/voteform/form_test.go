package voteform

import (
	"errors"
	"reflect"
	"strings"
	"testing"
)

func entries(pairs ...string) []Entry {
	out := make([]Entry, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, Entry{Key: pairs[i], Value: pairs[i+1]})
	}
	return out
}

func TestParseBuildsOrderedMatrix(t *testing.T) {
	sub, err := Parse(entries(
		"eventId", "evt-1",
		"participantName", " Aiko ",
		"date-label-d2", "2025-07-16",
		"time-label-t1", "09:00-10:00",
		"date-label-d1", "2025-07-15",
		"d2__t1", "on",
		"time-label-t2", "10:00-11:00",
		"d1__t2", "on",
		"d1__t1", "off",
	))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if sub.EventID != "evt-1" || sub.ParticipantName != "Aiko" {
		t.Fatalf("unexpected header %+v", sub)
	}
	m := sub.Matrix
	if !reflect.DeepEqual(m.DateIDs, []string{"d2", "d1"}) || !reflect.DeepEqual(m.DateLabels, []string{"2025-07-16", "2025-07-15"}) {
		t.Fatalf("dates not in insertion order: %v %v", m.DateIDs, m.DateLabels)
	}
	if !reflect.DeepEqual(m.TimeIDs, []string{"t1", "t2"}) {
		t.Fatalf("times not in insertion order: %v", m.TimeIDs)
	}
	want := [][]bool{{true, false}, {false, true}}
	if !reflect.DeepEqual(m.Available, want) {
		t.Fatalf("expected %v, got %v", want, m.Available)
	}
	if err := m.Validate(); err != nil {
		t.Fatalf("matrix invalid: %v", err)
	}
}

func TestParseRepeatedLabelKeepsPosition(t *testing.T) {
	sub, err := Parse(entries(
		"eventId", "e",
		"date-label-a", "7/1",
		"date-label-b", "7/2",
		"date-label-a", "7/3",
	))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if !reflect.DeepEqual(sub.Matrix.DateIDs, []string{"a", "b"}) || !reflect.DeepEqual(sub.Matrix.DateLabels, []string{"7/3", "7/2"}) {
		t.Fatalf("unexpected dates %v %v", sub.Matrix.DateIDs, sub.Matrix.DateLabels)
	}
}

func TestParseMissingEventID(t *testing.T) {
	for _, in := range [][]Entry{
		entries("date-label-a", "7/1", "time-label-x", "09:00", "a__x", "on"),
		entries("eventId", "   ", "date-label-a", "7/1"),
		nil,
	} {
		_, err := Parse(in)
		if !errors.Is(err, ErrMissingEventID) {
			t.Fatalf("expected ErrMissingEventID, got %v", err)
		}
		if !strings.Contains(err.Error(), "Event ID") {
			t.Fatalf("error should mention Event ID: %v", err)
		}
	}
}

func TestParseIgnoresUnknownCells(t *testing.T) {
	sub, err := Parse(entries(
		"eventId", "e",
		"date-label-a", "7/1",
		"time-label-x", "09:00",
		"ghost__x", "on",
		"a__ghost", "on",
	))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if sub.Matrix.Selected() != 0 {
		t.Fatalf("expected no selected cells, got %v", sub.Matrix.Available)
	}
}

func TestParseWithoutLabels(t *testing.T) {
	sub, err := Parse(entries("eventId", "e", "a__x", "on"))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(sub.Matrix.DateIDs) != 0 || len(sub.Matrix.Available) != 0 {
		t.Fatalf("expected empty matrix, got %+v", sub.Matrix)
	}
}

func TestParseCollectsCheckedCells(t *testing.T) {
	sub, err := Parse(entries(
		"eventId", "e",
		"d2__t1", "on",
		"d1__t1", "off",
		"d1__t2", "on",
		"d2__t1", "on",
		"__t3", "on",
		"date-label-d1", "2025-07-15",
	))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	want := []Cell{{DateID: "d2", TimeID: "t1"}, {DateID: "d1", TimeID: "t2"}}
	if !reflect.DeepEqual(sub.Checked, want) {
		t.Fatalf("expected %v, got %v", want, sub.Checked)
	}
}

func TestReadEntriesPreservesOrder(t *testing.T) {
	body := "eventId=evt-1&date-label-z=2025%2F07%2F15&date-label-a=7%E6%9C%8816%E6%97%A5&&z__t=on&participantName=Ai+ko"
	got, err := ReadEntries(strings.NewReader(body))
	if err != nil {
		t.Fatalf("ReadEntries failed: %v", err)
	}
	want := entries(
		"eventId", "evt-1",
		"date-label-z", "2025/07/15",
		"date-label-a", "7月16日",
		"z__t", "on",
		"participantName", "Ai ko",
	)
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}

	if _, err := ReadEntries(strings.NewReader("bad=%zz")); err == nil {
		t.Fatal("expected escape error")
	}
}
